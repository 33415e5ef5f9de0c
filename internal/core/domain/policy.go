package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultThresholdHours         = 12
	DefaultEscalationDelayMinutes = 60

	MinThresholdHours         = 1
	MaxThresholdHours         = 168
	MaxEscalationDelayMinutes = 1440
)

// TimeOfDay is a wall-clock time expressed as seconds since midnight.
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from hour and minute.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60)
}

// TimeOfDayOf extracts the wall-clock part of t in its own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(h*3600 + m*60 + s)
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDayOf(t), nil
		}
	}
	return 0, fmt.Errorf("%w: time of day %q", ErrInvalidPolicy, s)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/3600, int(t)%3600/60)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Scan implements sql.Scanner for TIME columns.
func (t *TimeOfDay) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*t = TimeOfDayOf(v)
		return nil
	case []byte:
		return t.scanString(string(v))
	case string:
		return t.scanString(v)
	}
	return fmt.Errorf("time of day: cannot scan %T", src)
}

func (t *TimeOfDay) scanString(s string) error {
	// Postgres may append fractional seconds.
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value implements driver.Valuer.
func (t TimeOfDay) Value() (driver.Value, error) {
	return fmt.Sprintf("%02d:%02d:%02d", int(t)/3600, int(t)%3600/60, int(t)%60), nil
}

// MonitoringPolicy holds one user's detection and escalation settings.
type MonitoringPolicy struct {
	UserID                 string    `json:"-"`
	ThresholdHours         int       `json:"threshold_hours"`
	QuietStart             TimeOfDay `json:"quiet_start"`
	QuietEnd               TimeOfDay `json:"quiet_end"`
	EscalationEnabled      bool      `json:"escalation_enabled"`
	EscalationDelayMinutes int       `json:"escalation_delay_minutes"`
	IsActive               bool      `json:"is_active"`
}

// DefaultPolicy is created the first time a user reads their settings.
func DefaultPolicy(userID string) MonitoringPolicy {
	return MonitoringPolicy{
		UserID:                 userID,
		ThresholdHours:         DefaultThresholdHours,
		QuietStart:             NewTimeOfDay(23, 0),
		QuietEnd:               NewTimeOfDay(7, 0),
		EscalationEnabled:      true,
		EscalationDelayMinutes: DefaultEscalationDelayMinutes,
		IsActive:               true,
	}
}

func (p MonitoringPolicy) Threshold() time.Duration {
	return time.Duration(p.ThresholdHours) * time.Hour
}

func (p MonitoringPolicy) EscalationDelay() time.Duration {
	return time.Duration(p.EscalationDelayMinutes) * time.Minute
}

// InQuietHours reports whether t falls inside the policy's quiet window.
func (p MonitoringPolicy) InQuietHours(t TimeOfDay) bool {
	return WithinQuietHours(t, p.QuietStart, p.QuietEnd)
}

// WithinQuietHours checks containment in [start, end], treating a window
// with start > end as wrapping past midnight.
func WithinQuietHours(t, start, end TimeOfDay) bool {
	if start <= end {
		return start <= t && t <= end
	}
	return t >= start || t <= end
}

// IsInactive reports whether a user whose last activity is lastActive has
// exceeded threshold at now. A user never seen is inactive.
func IsInactive(lastActive *time.Time, threshold time.Duration, now time.Time) bool {
	if lastActive == nil {
		return true
	}
	return now.Sub(*lastActive) > threshold
}

// PolicyPatch is a partial policy update; nil fields are left untouched.
type PolicyPatch struct {
	ThresholdHours         *int       `json:"threshold_hours,omitempty"`
	QuietStart             *TimeOfDay `json:"quiet_start,omitempty"`
	QuietEnd               *TimeOfDay `json:"quiet_end,omitempty"`
	EscalationEnabled      *bool      `json:"escalation_enabled,omitempty"`
	EscalationDelayMinutes *int       `json:"escalation_delay_minutes,omitempty"`
	IsActive               *bool      `json:"is_active,omitempty"`
}

// Apply validates the patch and returns the updated policy.
func (p PolicyPatch) Apply(policy MonitoringPolicy) (MonitoringPolicy, error) {
	if p.ThresholdHours != nil {
		if *p.ThresholdHours < MinThresholdHours || *p.ThresholdHours > MaxThresholdHours {
			return policy, fmt.Errorf("%w: threshold_hours must be between %d and %d",
				ErrInvalidPolicy, MinThresholdHours, MaxThresholdHours)
		}
		policy.ThresholdHours = *p.ThresholdHours
	}
	if p.EscalationDelayMinutes != nil {
		if *p.EscalationDelayMinutes < 0 || *p.EscalationDelayMinutes > MaxEscalationDelayMinutes {
			return policy, fmt.Errorf("%w: escalation_delay_minutes must be between 0 and %d",
				ErrInvalidPolicy, MaxEscalationDelayMinutes)
		}
		policy.EscalationDelayMinutes = *p.EscalationDelayMinutes
	}
	if p.QuietStart != nil {
		policy.QuietStart = *p.QuietStart
	}
	if p.QuietEnd != nil {
		policy.QuietEnd = *p.QuietEnd
	}
	if p.EscalationEnabled != nil {
		policy.EscalationEnabled = *p.EscalationEnabled
	}
	if p.IsActive != nil {
		policy.IsActive = *p.IsActive
	}
	return policy, nil
}
