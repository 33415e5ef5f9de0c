package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/AchilleasB/inrem/pulse-service/internal/clock"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
	"github.com/AchilleasB/inrem/pulse-service/internal/metrics"
)

// EscalationReport summarises one escalation pass.
type EscalationReport struct {
	Candidates  int
	Escalated   []domain.PulseEvent
	NoGuardians int
	PushReached int
	Failed      int
}

// EscalationEngine moves unanswered soft checks to the guardian alert stage.
type EscalationEngine struct {
	directory ports.Directory
	events    ports.EventStore
	notifier  ports.GuardianAlertSender
	clock     clock.Clock
	logger    zerolog.Logger
}

func NewEscalationEngine(
	directory ports.Directory,
	events ports.EventStore,
	notifier ports.GuardianAlertSender,
	clk clock.Clock,
	logger zerolog.Logger,
) *EscalationEngine {
	return &EscalationEngine{
		directory: directory,
		events:    events,
		notifier:  notifier,
		clock:     clk,
		logger:    logger,
	}
}

func (e *EscalationEngine) Run(ctx context.Context) (EscalationReport, error) {
	var report EscalationReport

	candidates, err := e.events.FindEscalationCandidates(ctx)
	if err != nil {
		return report, fmt.Errorf("find escalation candidates: %w", err)
	}
	report.Candidates = len(candidates)

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := e.escalate(ctx, c, &report); err != nil {
			report.Failed++
			e.logger.Error().Err(err).
				Str("event_id", c.Event.ID).
				Str("user_id", c.User.ID).
				Msg("escalation: candidate failed")
		}
	}

	e.logger.Info().
		Int("candidates", report.Candidates).
		Int("escalated", len(report.Escalated)).
		Int("failed", report.Failed).
		Msg("escalation: pass finished")
	return report, nil
}

func (e *EscalationEngine) escalate(ctx context.Context, c domain.EscalationCandidate, report *EscalationReport) error {
	if !c.Policy.EscalationEnabled {
		return nil
	}
	now := e.clock.Now()
	if !c.Event.EscalationDue(c.Policy.EscalationDelay(), now) {
		return nil
	}

	event := c.Event
	if err := event.Escalate(now); err != nil {
		return err
	}
	if err := e.events.UpdateEvent(ctx, event); err != nil {
		if errors.Is(err, domain.ErrEventNotOpen) {
			e.logger.Info().Str("event_id", event.ID).Msg("escalation: event closed before escalation, skipping")
			return nil
		}
		return fmt.Errorf("persist escalation: %w", err)
	}
	report.Escalated = append(report.Escalated, event)
	metrics.EventsEscalated.Inc()
	e.logger.Info().Str("event_id", event.ID).Str("user_id", c.User.ID).Msg("escalation: escalated to guardian alert")

	guardians, err := e.directory.ListGuardians(ctx, c.User.ID)
	if err != nil {
		return fmt.Errorf("list guardians: %w", err)
	}
	if len(guardians) == 0 {
		report.NoGuardians++
		e.logger.Info().Str("user_id", c.User.ID).Msg("escalation: ward has no guardians, nobody to alert")
		return nil
	}

	reached := e.notifier.SendGuardianAlert(ctx, c.User, guardians, event.ID)
	report.PushReached += reached
	e.logger.Info().
		Str("event_id", event.ID).
		Int("guardians", len(guardians)).
		Int("push_reached", reached).
		Msg("escalation: guardian alert dispatched")
	return nil
}
