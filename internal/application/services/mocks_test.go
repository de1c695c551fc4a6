package services_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/zatekoja/visitscribe/internal/domain/entities"
)

// Mocks

type MockCounterStore struct {
	mock.Mock
}

func (m *MockCounterStore) IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	args := m.Called(ctx, key, delta, ttl)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCounterStore) Get(ctx context.Context, key string) (int64, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Error(1)
}

type MockTranscriptRepository struct {
	mock.Mock
}

func (m *MockTranscriptRepository) GetByID(ctx context.Context, id string) (*entities.Transcript, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Transcript), args.Error(1)
}

func (m *MockTranscriptRepository) UpdateStatus(ctx context.Context, id string, status entities.ProcessingStatus, reason string) error {
	args := m.Called(ctx, id, status, reason)
	return args.Error(0)
}

func (m *MockTranscriptRepository) UpdateQuality(ctx context.Context, id string, quality entities.TranscriptQuality) error {
	args := m.Called(ctx, id, quality)
	return args.Error(0)
}

type MockClinicalNoteRepository struct {
	mock.Mock
}

func (m *MockClinicalNoteRepository) GetByTranscriptID(ctx context.Context, transcriptID string) (*entities.ClinicalNote, error) {
	args := m.Called(ctx, transcriptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ClinicalNote), args.Error(1)
}

func (m *MockClinicalNoteRepository) Upsert(ctx context.Context, note *entities.ClinicalNote) error {
	args := m.Called(ctx, note)
	return args.Error(0)
}

// scriptedGateway replays canned responses per subsystem and records every request.
type scriptedGateway struct {
	mu        sync.Mutex
	responses map[entities.Subsystem][]gatewayReply
	requests  []*entities.GatewayRequest
	stream    []entities.StreamEvent
	streamErr error
}

type gatewayReply struct {
	resp *entities.GatewayResponse
	err  error
}

func newScriptedGateway() *scriptedGateway {
	return &scriptedGateway{responses: make(map[entities.Subsystem][]gatewayReply)}
}

func (g *scriptedGateway) reply(subsystem entities.Subsystem, text string) *scriptedGateway {
	g.responses[subsystem] = append(g.responses[subsystem], gatewayReply{
		resp: &entities.GatewayResponse{Text: text, StatusCode: 200, Model: "test-model"},
	})
	return g
}

func (g *scriptedGateway) fail(subsystem entities.Subsystem, err error) *scriptedGateway {
	g.responses[subsystem] = append(g.responses[subsystem], gatewayReply{err: err})
	return g
}

func (g *scriptedGateway) Complete(ctx context.Context, req *entities.GatewayRequest) (*entities.GatewayResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)

	queue := g.responses[req.Subsystem]
	if len(queue) == 0 {
		return &entities.GatewayResponse{Text: "{}", StatusCode: 200, Model: req.Model}, nil
	}
	next := queue[0]
	if len(queue) > 1 {
		g.responses[req.Subsystem] = queue[1:]
	}
	return next.resp, next.err
}

func (g *scriptedGateway) Stream(ctx context.Context, req *entities.GatewayRequest) (<-chan entities.StreamEvent, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	events, err := g.stream, g.streamErr
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}

	ch := make(chan entities.StreamEvent)
	go func() {
		defer close(ch)
		for _, ev := range events {
			ch <- ev
		}
	}()
	return ch, nil
}

func (g *scriptedGateway) Requests() []*entities.GatewayRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*entities.GatewayRequest(nil), g.requests...)
}

// recordingSink collects emitted events.
type recordingSink struct {
	mu     sync.Mutex
	events []sinkEvent
	err    error
}

type sinkEvent struct {
	Type string
	Data any
}

func (s *recordingSink) Emit(eventType string, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, sinkEvent{Type: eventType, Data: data})
	return s.err
}

func (s *recordingSink) Types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Type)
	}
	return out
}
