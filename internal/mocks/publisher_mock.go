package mocks

import (
	"context"
	"sync"

	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
)

// MockPulseEventPublisher implements ports.PulseEventPublisher so the outbox
// relay can be tested without RabbitMQ.
type MockPulseEventPublisher struct {
	mu sync.RWMutex

	PublishedEvents  []ports.PulseEventMessage
	PublishError     error
	PublishCallCount int
}

var _ ports.PulseEventPublisher = (*MockPulseEventPublisher)(nil)

func NewMockPulseEventPublisher() *MockPulseEventPublisher {
	return &MockPulseEventPublisher{}
}

func (m *MockPulseEventPublisher) PublishPulseEvent(ctx context.Context, evt ports.PulseEventMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PublishCallCount++
	if m.PublishError != nil {
		return m.PublishError
	}
	m.PublishedEvents = append(m.PublishedEvents, evt)
	return nil
}

// GetPublishedEvents returns a copy of everything published so far.
func (m *MockPulseEventPublisher) GetPublishedEvents() []ports.PulseEventMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]ports.PulseEventMessage, len(m.PublishedEvents))
	copy(events, m.PublishedEvents)
	return events
}

func (m *MockPulseEventPublisher) GetPublishCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PublishCallCount
}
