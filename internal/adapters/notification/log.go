package notification

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
)

// ErrChannelDisabled is returned by the log gateways, which stand in for a
// delivery channel that was not configured.
var ErrChannelDisabled = errors.New("notification: channel not configured")

// LogPushGateway records pushes in the log instead of sending them.
type LogPushGateway struct {
	logger zerolog.Logger
}

var _ ports.PushGateway = (*LogPushGateway)(nil)

func NewLogPushGateway(logger zerolog.Logger) *LogPushGateway {
	return &LogPushGateway{logger: logger}
}

func (g *LogPushGateway) SendPush(ctx context.Context, token string, msg ports.PushMessage) error {
	g.logger.Info().Str("title", msg.Title).Interface("data", msg.Data).Msg("push: not configured, message dropped")
	return ErrChannelDisabled
}

func (g *LogPushGateway) SendMulticast(ctx context.Context, tokens []string, msg ports.PushMessage) ports.MulticastResult {
	g.logger.Info().Int("tokens", len(tokens)).Str("title", msg.Title).Msg("push: not configured, multicast dropped")
	return ports.MulticastResult{
		FailureCount: len(tokens),
		FailedTokens: append([]string(nil), tokens...),
	}
}

// LogEmailGateway records emails in the log instead of sending them.
type LogEmailGateway struct {
	logger zerolog.Logger
}

var _ ports.EmailGateway = (*LogEmailGateway)(nil)

func NewLogEmailGateway(logger zerolog.Logger) *LogEmailGateway {
	return &LogEmailGateway{logger: logger}
}

func (g *LogEmailGateway) SendEmail(ctx context.Context, msg ports.EmailMessage) error {
	g.logger.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("email: not configured, message dropped")
	return ErrChannelDisabled
}
