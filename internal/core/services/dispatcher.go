package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
	"github.com/AchilleasB/inrem/pulse-service/internal/metrics"
)

const (
	defaultNotifyTimeout     = 10 * time.Second
	defaultNotifyConcurrency = 8
)

type DispatcherConfig struct {
	// Timeout bounds every outbound gateway call.
	Timeout time.Duration
	// Concurrency bounds parallel email fallbacks.
	Concurrency int
}

// NotificationDispatcher sends soft check-ins and guardian alerts. Delivery
// is best effort: failures are logged and counted, never returned.
type NotificationDispatcher struct {
	push      ports.PushGateway
	email     ports.EmailGateway
	directory ports.Directory
	cfg       DispatcherConfig
	logger    zerolog.Logger
}

var (
	_ ports.SoftCheckInSender   = (*NotificationDispatcher)(nil)
	_ ports.GuardianAlertSender = (*NotificationDispatcher)(nil)
)

func NewNotificationDispatcher(
	push ports.PushGateway,
	email ports.EmailGateway,
	directory ports.Directory,
	cfg DispatcherConfig,
	logger zerolog.Logger,
) *NotificationDispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultNotifyTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultNotifyConcurrency
	}
	return &NotificationDispatcher{
		push:      push,
		email:     email,
		directory: directory,
		cfg:       cfg,
		logger:    logger,
	}
}

// SendSoftCheckIn pushes the check-in request to the ward. There is no
// fallback channel for the ward's own check-in.
func (d *NotificationDispatcher) SendSoftCheckIn(ctx context.Context, user domain.User, eventID string) bool {
	log := d.logger.With().Str("user_id", user.ID).Str("event_id", eventID).Logger()

	if !user.HasDeliveryToken() {
		log.Warn().Msg("dispatcher: user has no delivery token, soft check-in not sent")
		metrics.Notification(metrics.ChannelPush, metrics.KindSoftCheckIn, metrics.OutcomeSkipped)
		return false
	}

	callCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	err := d.push.SendPush(callCtx, user.DeliveryToken, softCheckInMessage(user, eventID))
	switch {
	case errors.Is(err, domain.ErrUnregisteredToken):
		log.Warn().Msg("dispatcher: delivery token unregistered, clearing it")
		metrics.Notification(metrics.ChannelPush, metrics.KindSoftCheckIn, metrics.OutcomeUnregistered)
		d.clearTokens(ctx, []string{user.DeliveryToken})
		return false
	case err != nil:
		log.Error().Err(err).Msg("dispatcher: soft check-in push failed")
		metrics.Notification(metrics.ChannelPush, metrics.KindSoftCheckIn, metrics.OutcomeFailure)
		return false
	}

	metrics.Notification(metrics.ChannelPush, metrics.KindSoftCheckIn, metrics.OutcomeSuccess)
	log.Info().Msg("dispatcher: soft check-in sent")
	return true
}

// SendGuardianAlert multicasts the alert to every guardian with a token and
// emails guardians that have no token or whose push failed. It returns the
// number of guardians reached by push; email outcomes are only logged.
func (d *NotificationDispatcher) SendGuardianAlert(ctx context.Context, ward domain.User, guardians []domain.User, eventID string) int {
	if len(guardians) == 0 {
		return 0
	}
	log := d.logger.With().Str("ward_id", ward.ID).Str("event_id", eventID).Logger()

	tokens := make([]string, 0, len(guardians))
	seen := make(map[string]struct{}, len(guardians))
	for _, g := range guardians {
		if !g.HasDeliveryToken() {
			continue
		}
		if _, dup := seen[g.DeliveryToken]; dup {
			continue
		}
		seen[g.DeliveryToken] = struct{}{}
		tokens = append(tokens, g.DeliveryToken)
	}

	var result ports.MulticastResult
	if len(tokens) > 0 {
		callCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
		result = d.push.SendMulticast(callCtx, tokens, guardianAlertMessage(ward, eventID))
		cancel()

		metrics.NotificationsTotal.WithLabelValues(metrics.ChannelPush, metrics.KindGuardianAlert, metrics.OutcomeSuccess).
			Add(float64(result.SuccessCount))
		metrics.NotificationsTotal.WithLabelValues(metrics.ChannelPush, metrics.KindGuardianAlert, metrics.OutcomeFailure).
			Add(float64(result.FailureCount))
		log.Info().
			Int("success", result.SuccessCount).
			Int("failure", result.FailureCount).
			Msg("dispatcher: guardian alert multicast sent")

		if len(result.UnregisteredTokens) > 0 {
			d.clearTokens(ctx, result.UnregisteredTokens)
		}
	} else {
		log.Warn().Msg("dispatcher: no guardian has a delivery token")
	}

	failed := make(map[string]struct{}, len(result.FailedTokens))
	for _, tok := range result.FailedTokens {
		failed[tok] = struct{}{}
	}

	var fallback []domain.User
	for _, g := range guardians {
		_, pushFailed := failed[g.DeliveryToken]
		if g.HasDeliveryToken() && !pushFailed {
			continue
		}
		if g.Email == "" {
			log.Warn().Str("guardian_id", g.ID).Msg("dispatcher: guardian unreachable, no token and no email")
			continue
		}
		fallback = append(fallback, g)
	}
	if len(fallback) > 0 {
		d.emailFallback(ctx, ward, fallback, eventID, log)
	}

	return result.SuccessCount
}

func (d *NotificationDispatcher) emailFallback(ctx context.Context, ward domain.User, guardians []domain.User, eventID string, log zerolog.Logger) {
	var g errgroup.Group
	g.SetLimit(d.cfg.Concurrency)

	for _, guardian := range guardians {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
			defer cancel()

			if err := d.email.SendEmail(callCtx, guardianAlertEmail(guardian.Email, ward, eventID)); err != nil {
				log.Error().Err(err).Str("guardian_id", guardian.ID).Msg("dispatcher: fallback email failed")
				metrics.Notification(metrics.ChannelEmail, metrics.KindGuardianAlert, metrics.OutcomeFailure)
				return nil
			}
			log.Info().Str("guardian_id", guardian.ID).Msg("dispatcher: fallback email sent")
			metrics.Notification(metrics.ChannelEmail, metrics.KindGuardianAlert, metrics.OutcomeSuccess)
			return nil
		})
	}
	_ = g.Wait()
}

func (d *NotificationDispatcher) clearTokens(ctx context.Context, tokens []string) {
	if d.directory == nil {
		return
	}
	for _, tok := range tokens {
		if err := d.directory.ClearDeliveryToken(ctx, tok); err != nil {
			d.logger.Error().Err(err).Msg("dispatcher: failed to clear unregistered token")
		}
	}
}
