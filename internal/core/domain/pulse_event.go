package domain

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a PulseEvent. OPEN is the only
// non-terminal value.
type Status string

const (
	StatusOpen      Status = "open"
	StatusResolved  Status = "resolved"
	StatusDismissed Status = "dismissed"
	// StatusExpired is reserved; nothing drives it automatically yet.
	StatusExpired Status = "expired"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusResolved, StatusDismissed, StatusExpired:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s.Valid() && s != StatusOpen
}

// Stage is the escalation level of an OPEN event. Stages only move forward.
type Stage string

const (
	StageSoftCheck     Stage = "soft_check"
	StageGuardianAlert Stage = "guardian_alert"
	// StageEmergency is reserved; nothing drives it automatically yet.
	StageEmergency Stage = "emergency"
)

var stageOrder = map[Stage]int{
	StageSoftCheck:     0,
	StageGuardianAlert: 1,
	StageEmergency:     2,
}

func (s Stage) Valid() bool {
	_, ok := stageOrder[s]
	return ok
}

// next returns the stage directly after s, if any.
func (s Stage) next() (Stage, bool) {
	switch s {
	case StageSoftCheck:
		return StageGuardianAlert, true
	case StageGuardianAlert:
		return StageEmergency, true
	}
	return "", false
}

const (
	ResolutionUserResponse   = "user_response"
	ResolutionGuardianAction = "guardian_action"
	ResolutionAutoTimeout    = "auto_timeout"
)

// PulseEvent is one welfare-check lifecycle for a user.
type PulseEvent struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	Status             Status     `json:"status"`
	Stage              Stage      `json:"stage"`
	CreatedAt          time.Time  `json:"created_at"`
	SoftCheckSentAt    *time.Time `json:"soft_check_sent_at,omitempty"`
	GuardianNotifiedAt *time.Time `json:"guardian_notified_at,omitempty"`
	ResolvedAt         *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy         string     `json:"resolved_by,omitempty"`
	ResolutionMethod   string     `json:"resolution_method,omitempty"`
}

// NewSoftCheck opens an event at the soft check-in stage.
func NewSoftCheck(id, userID string, now time.Time) PulseEvent {
	sent := now
	return PulseEvent{
		ID:              id,
		UserID:          userID,
		Status:          StatusOpen,
		Stage:           StageSoftCheck,
		CreatedAt:       now,
		SoftCheckSentAt: &sent,
	}
}

func (e PulseEvent) IsOpen() bool {
	return e.Status == StatusOpen
}

// EscalationDue reports whether the soft check has gone unanswered for
// longer than delay. Events without a soft check timestamp never qualify.
func (e PulseEvent) EscalationDue(delay time.Duration, now time.Time) bool {
	if !e.IsOpen() || e.Stage != StageSoftCheck || e.SoftCheckSentAt == nil {
		return false
	}
	return now.Sub(*e.SoftCheckSentAt) > delay
}

// Advance moves an OPEN event to the given stage. Only the immediate next
// stage is accepted.
func (e *PulseEvent) Advance(to Stage, now time.Time) error {
	if !e.IsOpen() {
		return fmt.Errorf("%w: advance %s event %s", ErrInvalidTransition, e.Status, e.ID)
	}
	next, ok := e.Stage.next()
	if !ok || next != to {
		return fmt.Errorf("%w: stage %s -> %s", ErrInvalidTransition, e.Stage, to)
	}
	e.Stage = to
	if to == StageGuardianAlert {
		at := now
		e.GuardianNotifiedAt = &at
	}
	return nil
}

// Escalate advances a soft check to the guardian alert stage.
func (e *PulseEvent) Escalate(now time.Time) error {
	return e.Advance(StageGuardianAlert, now)
}

// Close moves an OPEN event to a terminal status.
func (e *PulseEvent) Close(to Status, by, method string, now time.Time) error {
	if !e.IsOpen() || !to.Terminal() {
		return fmt.Errorf("%w: status %s -> %s", ErrInvalidTransition, e.Status, to)
	}
	at := now
	e.Status = to
	e.ResolvedAt = &at
	e.ResolvedBy = by
	e.ResolutionMethod = method
	return nil
}

// EscalationCandidate is an OPEN soft-check event joined with the owner and
// the owner's policy.
type EscalationCandidate struct {
	Event  PulseEvent
	Policy MonitoringPolicy
	User   User
}

// Resolution describes how matching OPEN events are closed.
type Resolution struct {
	UserID string
	// EventID narrows the resolution to a single event when set.
	EventID    string
	Status     Status
	ResolvedBy string
	Method     string
	At         time.Time
	// TouchActivity refreshes the owner's last_active_at in the same unit.
	TouchActivity bool
}
