package services

import (
	"context"
	"sync"

	"github.com/yoockh/virtualvisits/internal/events"
	"github.com/yoockh/virtualvisits/internal/models"
	"github.com/yoockh/virtualvisits/internal/providers/callautomation"
)

type fakeCalls struct {
	connectErr error
	startErr   error
	stopErr    error

	connected *callautomation.Connection
	started   []string
	stopped   []string
	locators  []models.CallLocator
	lastOpts  callautomation.TranscriptionOptions
}

func (f *fakeCalls) ConnectCall(_ context.Context, locator models.CallLocator, _ callautomation.ConnectOptions) (*callautomation.Connection, error) {
	f.locators = append(f.locators, locator)
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return f.connected, nil
}

func (f *fakeCalls) StartTranscription(_ context.Context, id string, opts callautomation.TranscriptionOptions) error {
	f.started = append(f.started, id)
	f.lastOpts = opts
	return f.startErr
}

func (f *fakeCalls) StopTranscription(_ context.Context, id string, _ string) error {
	f.stopped = append(f.stopped, id)
	return f.stopErr
}

type sentEvent struct {
	event   string
	payload any
}

type fakeBroadcaster struct {
	mu   sync.Mutex
	sent []sentEvent
}

func (f *fakeBroadcaster) Broadcast(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEvent{event: event, payload: payload})
	return nil
}

func (f *fakeBroadcaster) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.event)
	}
	return out
}

type fakePublisher struct {
	published []events.TranscriptEvent
	err       error
}

func (f *fakePublisher) PublishFinal(_ context.Context, ev events.TranscriptEvent) error {
	f.published = append(f.published, ev)
	return f.err
}

type fakeSurveys struct {
	saved []*models.SurveyResult
	err   error
}

func (f *fakeSurveys) Upsert(_ context.Context, s *models.SurveyResult) error {
	f.saved = append(f.saved, s)
	return f.err
}

type fakeIdentity struct {
	scopes [][]string
	err    error
}

func (f *fakeIdentity) CreateUserAndToken(_ context.Context, scopes []string) (*models.UserToken, error) {
	f.scopes = append(f.scopes, scopes)
	if f.err != nil {
		return nil, f.err
	}
	return &models.UserToken{
		User:  models.CommunicationUser{CommunicationUserID: "8:acs:test"},
		Token: "tok",
	}, nil
}
