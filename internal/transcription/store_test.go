package transcription

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yoockh/virtualvisits/internal/models"
)

func metadata(conn, corr string) models.TranscriptionMetadata {
	return models.TranscriptionMetadata{
		SubscriptionID:   "sub-1",
		Locale:           "en-US",
		CallConnectionID: conn,
		CorrelationID:    corr,
	}
}

func TestHappyPath(t *testing.T) {
	s := NewStore(nil)
	s.RegisterCallConnection("conn1", "call1", "")
	s.StoreMetadata(metadata("conn1", "corr1"))
	hello := models.Utterance{Text: "hello", Confidence: 0.9, ResultStatus: models.ResultFinal}
	require.True(t, s.StoreUtterance(hello, "corr1"))

	require.True(t, s.HasTranscriptions("call1"))
	sess, ok := s.GetTranscriptionData("call1")
	require.True(t, ok)
	require.Equal(t, "corr1", sess.CorrelationID)
	require.Equal(t, "en-US", sess.Metadata.Locale)
	require.Equal(t, []models.Utterance{hello}, sess.Data)

	cc, ok := s.GetCallConnection("conn1")
	require.True(t, ok)
	require.Equal(t, "corr1", cc.CorrelationID)
}

func TestRegisterLastWriteWins(t *testing.T) {
	s := NewStore(nil)
	s.RegisterCallConnection("conn1", "callA", "")
	s.RegisterCallConnection("conn1", "callB", "")

	_, ok := s.FindCallConnectionByServerCallID("callA")
	require.False(t, ok)
	id, ok := s.FindCallConnectionByServerCallID("callB")
	require.True(t, ok)
	require.Equal(t, "conn1", id)
	require.Equal(t, 1, s.Stats().Connections)
}

func TestRegisterIfAbsentKeepsCorrelation(t *testing.T) {
	s := NewStore(nil)
	require.True(t, s.RegisterCallConnectionIfAbsent("conn1", "call1", ""))
	s.StoreMetadata(metadata("conn1", "corr1"))
	require.False(t, s.RegisterCallConnectionIfAbsent("conn1", "call1", ""))

	cc, ok := s.GetCallConnection("conn1")
	require.True(t, ok)
	require.Equal(t, "corr1", cc.CorrelationID)
}

func TestFindFirstMatchInRegistrationOrder(t *testing.T) {
	s := NewStore(nil)
	s.RegisterCallConnection("conn1", "aHR0cHM6Ly9jYWxs-1", "")
	s.RegisterCallConnection("conn2", "aHR0cHM6Ly9jYWxs-1", "")

	id, ok := s.FindCallConnectionByServerCallID("aHR0cHM6Ly9jYWxs-1")
	require.True(t, ok)
	require.Equal(t, "conn1", id)

	id, ok = s.FindCallConnectionByServerCallID("Ly9jYWxs")
	require.True(t, ok)
	require.Equal(t, "conn1", id)

	_, ok = s.FindCallConnectionByServerCallID("")
	require.False(t, ok)
}

func TestFindPrefersExactMatchOverEarlierContainment(t *testing.T) {
	s := NewStore(nil)
	s.RegisterCallConnection("connA", "call10", "")
	s.RegisterCallConnection("connB", "call1", "")
	s.StoreMetadata(models.TranscriptionMetadata{CallConnectionID: "connB", CorrelationID: "corrB", Locale: "en-US"})

	id, ok := s.FindCallConnectionByServerCallID("call1")
	require.True(t, ok)
	require.Equal(t, "connB", id)

	sess, ok := s.GetTranscriptionData("call1")
	require.True(t, ok)
	require.Equal(t, "corrB", sess.CorrelationID)

	id, ok = s.FindCallConnectionByServerCallID("all1")
	require.True(t, ok)
	require.Equal(t, "connA", id, "containment still resolves in registration order")
}

func TestUtteranceBeforeMetadataIsLost(t *testing.T) {
	s := NewStore(nil)
	s.RegisterCallConnection("conn1", "call1", "")

	early := models.Utterance{Text: "too early", ResultStatus: models.ResultFinal}
	require.False(t, s.StoreUtterance(early, "corr1"))

	_, ok := s.GetTranscriptionData("call1")
	require.False(t, ok)

	s.StoreMetadata(metadata("conn1", "corr1"))
	sess, ok := s.GetTranscriptionData("call1")
	require.True(t, ok)
	require.Empty(t, sess.Data)
}

func TestMetadataWithoutCorrelationIDIsDropped(t *testing.T) {
	s := NewStore(nil)
	s.RegisterCallConnection("conn1", "call1", "")
	s.StoreMetadata(metadata("conn1", ""))

	require.False(t, s.HasTranscriptions("call1"))
	require.Equal(t, 0, s.Stats().Sessions)
	require.False(t, s.StoreUtterance(models.Utterance{Text: "x"}, ""))
}

func TestRedeliveredMetadataKeepsUtterances(t *testing.T) {
	s := NewStore(nil)
	s.RegisterCallConnection("conn1", "call1", "")
	s.StoreMetadata(metadata("conn1", "corr1"))
	s.StoreUtterance(models.Utterance{Text: "one"}, "corr1")

	again := metadata("conn1", "corr1")
	again.Locale = "fr-FR"
	s.StoreMetadata(again)

	sess, ok := s.GetTranscriptionData("call1")
	require.True(t, ok)
	require.Len(t, sess.Data, 1)
	require.Equal(t, "en-US", sess.Metadata.Locale)
}

func TestUpdatesOnUnknownConnectionAreNoops(t *testing.T) {
	s := NewStore(nil)
	s.UpdateCorrelationID("ghost", "corr")
	s.UpdateServerCallID("ghost", "call")
	_, ok := s.GetCallConnection("ghost")
	require.False(t, ok)
}

func TestUpdateServerCallID(t *testing.T) {
	s := NewStore(nil)
	s.RegisterCallConnection("conn1", "old", "")
	s.UpdateServerCallID("conn1", "new")

	_, ok := s.FindCallConnectionByServerCallID("old")
	require.False(t, ok)
	id, ok := s.FindCallConnectionByServerCallID("new")
	require.True(t, ok)
	require.Equal(t, "conn1", id)
}

func TestConnectionWithoutTranscription(t *testing.T) {
	s := NewStore(nil)
	s.RegisterCallConnection("conn1", "call1", "")
	require.False(t, s.HasTranscriptions("call1"))
	_, ok := s.GetTranscriptionData("call1")
	require.False(t, ok)
}

func TestRosterGrowsMonotonically(t *testing.T) {
	s := NewStore(nil)
	alice := models.Participant{UserID: "8:acs:alice", DisplayName: "Alice"}
	bob := models.Participant{UserID: "8:acs:bob", DisplayName: "Bob"}
	calls := []models.Participant{alice, bob, alice, alice}
	for _, p := range calls {
		s.AppendParticipant("call1", p)
	}
	require.Equal(t, calls, s.GetParticipants("call1"))
}

func TestStoreParticipantsReplaces(t *testing.T) {
	s := NewStore(nil)
	s.AppendParticipant("call1", models.Participant{UserID: "a"})
	s.StoreParticipants("call1", []models.Participant{{UserID: "b"}, {UserID: "c"}})
	require.Equal(t, []models.Participant{{UserID: "b"}, {UserID: "c"}}, s.GetParticipants("call1"))
}

func TestAbsenceVersusEmptiness(t *testing.T) {
	s := NewStore(nil)

	participants := s.GetParticipants("unknown")
	require.NotNil(t, participants)
	require.Empty(t, participants)
	require.False(t, s.HasRoster("unknown"))

	_, ok := s.GetTranscriptionData("unknown")
	require.False(t, ok)
}

func TestReturnedDataIsACopy(t *testing.T) {
	s := NewStore(nil)
	s.RegisterCallConnection("conn1", "call1", "")
	s.StoreMetadata(metadata("conn1", "corr1"))
	s.StoreUtterance(models.Utterance{Text: "original"}, "corr1")
	s.AppendParticipant("call1", models.Participant{UserID: "a"})

	sess, _ := s.GetTranscriptionData("call1")
	sess.Data[0].Text = "mutated"
	roster := s.GetParticipants("call1")
	roster[0].UserID = "mutated"

	sess, _ = s.GetTranscriptionData("call1")
	require.Equal(t, "original", sess.Data[0].Text)
	require.Equal(t, "a", s.GetParticipants("call1")[0].UserID)
}

func TestConcurrentWriters(t *testing.T) {
	s := NewStore(nil)
	s.RegisterCallConnection("conn1", "call1", "")
	s.StoreMetadata(metadata("conn1", "corr1"))

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				s.StoreUtterance(models.Utterance{Text: fmt.Sprintf("%d-%d", w, i)}, "corr1")
				s.AppendParticipant("call1", models.Participant{UserID: fmt.Sprintf("u%d", w)})
				s.RegisterCallConnectionIfAbsent("conn1", "call1", "")
				_ = s.HasTranscriptions("call1")
			}
		}(w)
	}
	wg.Wait()

	sess, ok := s.GetTranscriptionData("call1")
	require.True(t, ok)
	require.Len(t, sess.Data, writers*perWriter)
	require.Len(t, s.GetParticipants("call1"), writers*perWriter)
}
