// Package mocks provides hand-written port implementations for tests, with
// call tracking and error injection.
package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
)

// SentPush records one push delivered through MockPushGateway.
type SentPush struct {
	Token   string
	Message ports.PushMessage
}

// MockPushGateway implements ports.PushGateway. Per-token failures are
// injected through TokenErrors; a domain.ErrUnregisteredToken entry is
// reported as unregistered by SendMulticast.
type MockPushGateway struct {
	mu sync.Mutex

	Sent       []SentPush
	Multicasts [][]string

	SendError   error
	TokenErrors map[string]error
}

var _ ports.PushGateway = (*MockPushGateway)(nil)

func NewMockPushGateway() *MockPushGateway {
	return &MockPushGateway{TokenErrors: make(map[string]error)}
}

// FailToken makes every delivery to token fail with err.
func (m *MockPushGateway) FailToken(token string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TokenErrors[token] = err
}

func (m *MockPushGateway) SendPush(ctx context.Context, token string, msg ports.PushMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.errorFor(token); err != nil {
		return err
	}
	m.Sent = append(m.Sent, SentPush{Token: token, Message: msg})
	return nil
}

func (m *MockPushGateway) SendMulticast(ctx context.Context, tokens []string, msg ports.PushMessage) ports.MulticastResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Multicasts = append(m.Multicasts, append([]string(nil), tokens...))

	var res ports.MulticastResult
	for _, tok := range tokens {
		if err := m.errorFor(tok); err != nil {
			res.FailureCount++
			res.FailedTokens = append(res.FailedTokens, tok)
			if errors.Is(err, domain.ErrUnregisteredToken) {
				res.UnregisteredTokens = append(res.UnregisteredTokens, tok)
			}
			continue
		}
		res.SuccessCount++
		m.Sent = append(m.Sent, SentPush{Token: tok, Message: msg})
	}
	return res
}

func (m *MockPushGateway) errorFor(token string) error {
	if m.SendError != nil {
		return m.SendError
	}
	return m.TokenErrors[token]
}

// SentTo returns the pushes delivered to token.
func (m *MockPushGateway) SentTo(token string) []ports.PushMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []ports.PushMessage
	for _, s := range m.Sent {
		if s.Token == token {
			out = append(out, s.Message)
		}
	}
	return out
}

func (m *MockPushGateway) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// MockEmailGateway implements ports.EmailGateway.
type MockEmailGateway struct {
	mu sync.Mutex

	Sent []ports.EmailMessage

	SendError error
}

var _ ports.EmailGateway = (*MockEmailGateway)(nil)

func NewMockEmailGateway() *MockEmailGateway {
	return &MockEmailGateway{}
}

func (m *MockEmailGateway) SendEmail(ctx context.Context, msg ports.EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SendError != nil {
		return m.SendError
	}
	m.Sent = append(m.Sent, msg)
	return nil
}

// Recipients returns the To address of every delivered email.
func (m *MockEmailGateway) Recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.Sent))
	for _, msg := range m.Sent {
		out = append(out, msg.To)
	}
	return out
}
