package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/virtualvisits/internal/logger"
	"github.com/yoockh/virtualvisits/internal/models"
	"github.com/yoockh/virtualvisits/internal/notifications"
	"github.com/yoockh/virtualvisits/internal/providers/callautomation"
	"github.com/yoockh/virtualvisits/internal/services"
	"github.com/yoockh/virtualvisits/internal/transcription"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubCalls struct {
	startErr error
	started  []string
	stopped  []string
}

func (s *stubCalls) ConnectCall(_ context.Context, locator models.CallLocator, _ callautomation.ConnectOptions) (*callautomation.Connection, error) {
	return &callautomation.Connection{CallConnectionID: "conn-" + locator.RoomID, ServerCallID: "call-" + locator.RoomID}, nil
}

func (s *stubCalls) StartTranscription(_ context.Context, id string, _ callautomation.TranscriptionOptions) error {
	s.started = append(s.started, id)
	return s.startErr
}

func (s *stubCalls) StopTranscription(_ context.Context, id string, _ string) error {
	s.stopped = append(s.stopped, id)
	return nil
}

type testEnv struct {
	store *transcription.Store
	hub   *notifications.Hub
	calls *stubCalls
	r     *gin.Engine
}

func newTestEnv() *testEnv {
	l := logger.Discard()
	env := &testEnv{
		store: transcription.NewStore(l),
		hub:   notifications.NewHub(l, nil),
		calls: &stubCalls{},
		r:     gin.New(),
	}
	tsvc := services.NewTranscriptionService(env.store, env.calls, env.hub, services.ConnectSettings{Locale: "en-US"}, nil, l)
	esvc := services.NewCallEventService(env.store, env.hub, nil, nil, l)

	th := NewTranscriptionHandler(tsvc)
	ch := NewCallAutomationHandler(esvc, l)
	env.r.POST("/api/callAutomationEvent", ch.Event)
	env.r.POST("/api/startTranscription", th.Start)
	env.r.POST("/api/stopTranscription", th.Stop)
	env.r.POST("/api/fetchTranscript", th.FetchTranscript)
	env.r.POST("/api/fetchParticipants", th.FetchParticipants)
	env.r.POST("/api/transcriptionStatus", th.Status)
	env.r.POST("/api/updateParticipants", th.UpdateParticipants)
	env.r.POST("/api/connectRoomsCall", th.ConnectRoomsCall)
	return env
}

func (e *testEnv) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decodeAPIError(t *testing.T, w *httptest.ResponseRecorder) APIError {
	t.Helper()
	var out APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}
