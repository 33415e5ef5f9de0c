package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/AchilleasB/inrem/pulse-service/internal/clock"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
	"github.com/AchilleasB/inrem/pulse-service/internal/metrics"
)

// DetectionReport summarises one detector pass.
type DetectionReport struct {
	Scanned       int
	Opened        []domain.PulseEvent
	SkippedQuiet  int
	SkippedActive int
	SkippedOpen   int
	Notified      int
	Failed        int
}

// InactivityDetector opens a soft check-in for every monitored user who has
// been silent longer than their policy allows.
type InactivityDetector struct {
	directory ports.Directory
	events    ports.EventStore
	notifier  ports.SoftCheckInSender
	clock     clock.Clock
	location  *time.Location
	logger    zerolog.Logger
}

// NewInactivityDetector evaluates quiet hours in location; nil means UTC.
func NewInactivityDetector(
	directory ports.Directory,
	events ports.EventStore,
	notifier ports.SoftCheckInSender,
	clk clock.Clock,
	location *time.Location,
	logger zerolog.Logger,
) *InactivityDetector {
	if location == nil {
		location = time.UTC
	}
	return &InactivityDetector{
		directory: directory,
		events:    events,
		notifier:  notifier,
		clock:     clk,
		location:  location,
		logger:    logger,
	}
}

// Run scans all monitored users once. Per-user failures are logged and
// counted; only a failure to list users aborts the pass.
func (d *InactivityDetector) Run(ctx context.Context) (DetectionReport, error) {
	var report DetectionReport

	users, err := d.directory.ListMonitoredUsers(ctx)
	if err != nil {
		return report, fmt.Errorf("list monitored users: %w", err)
	}

	for _, mu := range users {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++
		if err := d.check(ctx, mu, &report); err != nil {
			report.Failed++
			d.logger.Error().Err(err).Str("user_id", mu.User.ID).Msg("detector: user check failed")
		}
	}

	d.logger.Info().
		Int("scanned", report.Scanned).
		Int("opened", len(report.Opened)).
		Int("skipped_quiet", report.SkippedQuiet).
		Int("skipped_open", report.SkippedOpen).
		Int("failed", report.Failed).
		Msg("detector: pass finished")
	return report, nil
}

func (d *InactivityDetector) check(ctx context.Context, mu domain.MonitoredUser, report *DetectionReport) error {
	user, policy := mu.User, mu.Policy
	if !user.IsActive || user.IsDeceased || !policy.IsActive {
		return nil
	}

	now := d.clock.Now()
	if policy.InQuietHours(domain.TimeOfDayOf(now.In(d.location))) {
		report.SkippedQuiet++
		return nil
	}

	if !domain.IsInactive(user.LastActiveAt, policy.Threshold(), now) {
		report.SkippedActive++
		return nil
	}

	_, err := d.events.FindOpenEvent(ctx, user.ID)
	switch {
	case err == nil:
		report.SkippedOpen++
		return nil
	case !errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("find open event: %w", err)
	}

	event := domain.NewSoftCheck(uuid.NewString(), user.ID, now)
	if err := d.events.CreateEvent(ctx, event); err != nil {
		if errors.Is(err, domain.ErrOpenEventExists) {
			// Another writer opened one between our check and create.
			report.SkippedOpen++
			return nil
		}
		return fmt.Errorf("create event: %w", err)
	}
	report.Opened = append(report.Opened, event)
	metrics.EventsOpened.Inc()
	d.logger.Info().Str("user_id", user.ID).Str("event_id", event.ID).Msg("detector: opened check-in event")

	if d.notifier.SendSoftCheckIn(ctx, user, event.ID) {
		report.Notified++
	}
	return nil
}
