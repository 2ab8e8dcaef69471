// Package transcription tracks which call connection, server call, and
// transcription correlation belong together, along with the transcript and
// participant roster accumulated for each call.
//
// The store is fed by independent event sources (automation callbacks, the
// transcription websocket, browser requests) in no guaranteed order. All
// methods are safe for concurrent use.
package transcription

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/virtualvisits/internal/logger"
	"github.com/yoockh/virtualvisits/internal/models"
)

type Store struct {
	log *logrus.Logger

	mu sync.RWMutex
	// connection ids in registration order; used by FindCallConnectionByServerCallID
	order       []string
	connections map[string]*models.CallConnection
	sessions    map[string]*models.TranscriptionSession
	rosters     map[string][]models.Participant
}

type Stats struct {
	Connections int
	Sessions    int
	Rosters     int
}

func NewStore(l *logrus.Logger) *Store {
	if l == nil {
		l = logger.Discard()
	}
	return &Store{
		log:         l,
		connections: make(map[string]*models.CallConnection),
		sessions:    make(map[string]*models.TranscriptionSession),
		rosters:     make(map[string][]models.Participant),
	}
}

// RegisterCallConnection inserts or overwrites the connection entry. Last write wins.
func (s *Store) RegisterCallConnection(callConnectionID, serverCallID, correlationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registerLocked(callConnectionID, serverCallID, correlationID)
}

// RegisterCallConnectionIfAbsent registers the connection unless it is already
// known, and reports whether it did.
func (s *Store) RegisterCallConnectionIfAbsent(callConnectionID, serverCallID, correlationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.connections[callConnectionID]; ok {
		return false
	}
	s.registerLocked(callConnectionID, serverCallID, correlationID)
	return true
}

func (s *Store) registerLocked(callConnectionID, serverCallID, correlationID string) {
	if _, ok := s.connections[callConnectionID]; !ok {
		s.order = append(s.order, callConnectionID)
	}
	s.connections[callConnectionID] = &models.CallConnection{
		CallConnectionID: callConnectionID,
		ServerCallID:     serverCallID,
		CorrelationID:    correlationID,
	}
	s.log.WithFields(logrus.Fields{
		"call_connection_id": callConnectionID,
		"server_call_id":     serverCallID,
	}).Info("call connection registered")
}

func (s *Store) GetCallConnection(callConnectionID string) (models.CallConnection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cc, ok := s.connections[callConnectionID]
	if !ok {
		return models.CallConnection{}, false
	}
	return *cc, true
}

// FindCallConnectionByServerCallID returns the first registered connection whose
// server call id equals or contains serverCallID.
func (s *Store) FindCallConnectionByServerCallID(serverCallID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLocked(serverCallID)
}

func (s *Store) findLocked(serverCallID string) (string, bool) {
	if serverCallID == "" {
		return "", false
	}
	// exact match first, then containment, each in registration order
	for _, id := range s.order {
		if s.connections[id].ServerCallID == serverCallID {
			return id, true
		}
	}
	for _, id := range s.order {
		if strings.Contains(s.connections[id].ServerCallID, serverCallID) {
			return id, true
		}
	}
	return "", false
}

func (s *Store) UpdateCorrelationID(callConnectionID, correlationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCorrelationLocked(callConnectionID, correlationID)
}

func (s *Store) updateCorrelationLocked(callConnectionID, correlationID string) {
	cc, ok := s.connections[callConnectionID]
	if !ok {
		s.log.WithField("call_connection_id", callConnectionID).Warn("correlation id for unknown call connection ignored")
		return
	}
	cc.CorrelationID = correlationID
}

func (s *Store) UpdateServerCallID(callConnectionID, serverCallID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cc, ok := s.connections[callConnectionID]
	if !ok {
		return
	}
	cc.ServerCallID = serverCallID
}

// StoreMetadata opens the transcription session for md.CorrelationID. A repeated
// metadata frame keeps the utterances already collected.
func (s *Store) StoreMetadata(md models.TranscriptionMetadata) {
	if md.CorrelationID == "" {
		s.log.WithField("call_connection_id", md.CallConnectionID).Error("transcription metadata without correlation id dropped")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[md.CorrelationID]; !ok {
		s.sessions[md.CorrelationID] = &models.TranscriptionSession{
			CorrelationID: md.CorrelationID,
			Metadata:      md,
		}
	}
	s.updateCorrelationLocked(md.CallConnectionID, md.CorrelationID)
}

// StoreUtterance appends u to the session of correlationID and reports whether it
// was stored. Utterances for a session without metadata are dropped.
func (s *Store) StoreUtterance(u models.Utterance, correlationID string) bool {
	if correlationID == "" {
		s.log.Error("transcription data without correlation id dropped")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[correlationID]
	if !ok {
		s.log.WithField("correlation_id", correlationID).Error("transcription data before metadata dropped")
		return false
	}
	sess.Data = append(sess.Data, u)
	return true
}

func (s *Store) HasTranscriptions(serverCallID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.correlationLocked(serverCallID)
	return ok
}

// GetTranscriptionData resolves serverCallID to its transcription session. The
// result is a copy.
func (s *Store) GetTranscriptionData(serverCallID string) (models.TranscriptionSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	correlationID, ok := s.correlationLocked(serverCallID)
	if !ok {
		return models.TranscriptionSession{}, false
	}
	sess, ok := s.sessions[correlationID]
	if !ok {
		s.log.WithField("correlation_id", correlationID).Info("no transcription session for correlation id")
		return models.TranscriptionSession{}, false
	}
	out := *sess
	out.Data = append([]models.Utterance(nil), sess.Data...)
	return out, true
}

func (s *Store) correlationLocked(serverCallID string) (string, bool) {
	id, ok := s.findLocked(serverCallID)
	if !ok {
		s.log.WithField("server_call_id", serverCallID).Info("no call connection for server call id")
		return "", false
	}
	cc := s.connections[id]
	if cc.CorrelationID == "" {
		s.log.WithField("call_connection_id", id).Info("transcription not started for call connection")
		return "", false
	}
	return cc.CorrelationID, true
}

// StoreParticipants replaces the roster of serverCallID.
func (s *Store) StoreParticipants(serverCallID string, participants []models.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rosters[serverCallID] = append([]models.Participant(nil), participants...)
}

func (s *Store) AppendParticipant(serverCallID string, p models.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rosters[serverCallID] = append(s.rosters[serverCallID], p)
}

// GetParticipants never returns nil; an unknown call yields an empty roster.
func (s *Store) GetParticipants(serverCallID string) []models.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Participant{}, s.rosters[serverCallID]...)
}

// HasRoster reports whether any participant was ever reported for serverCallID.
func (s *Store) HasRoster(serverCallID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rosters[serverCallID]
	return ok
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Connections: len(s.connections),
		Sessions:    len(s.sessions),
		Rosters:     len(s.rosters),
	}
}
