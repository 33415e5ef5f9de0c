package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinQuietHours(t *testing.T) {
	start, end := NewTimeOfDay(23, 0), NewTimeOfDay(7, 0)

	tests := []struct {
		name string
		at   TimeOfDay
		want bool
	}{
		{"before_window", NewTimeOfDay(22, 30), false},
		{"late_evening", NewTimeOfDay(23, 30), true},
		{"early_morning", NewTimeOfDay(3, 0), true},
		{"midday", NewTimeOfDay(12, 0), false},
		{"start_inclusive", NewTimeOfDay(23, 0), true},
		{"end_inclusive", NewTimeOfDay(7, 0), true},
		{"just_after_end", NewTimeOfDay(7, 1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WithinQuietHours(tt.at, start, end))
		})
	}
}

func TestWithinQuietHours_SameDayWindow(t *testing.T) {
	start, end := NewTimeOfDay(13, 0), NewTimeOfDay(15, 0)
	assert.True(t, WithinQuietHours(NewTimeOfDay(14, 0), start, end))
	assert.False(t, WithinQuietHours(NewTimeOfDay(16, 0), start, end))
	assert.False(t, WithinQuietHours(NewTimeOfDay(2, 0), start, end))
}

func TestIsInactive(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	ago := func(d time.Duration) *time.Time {
		at := now.Add(-d)
		return &at
	}

	tests := []struct {
		name       string
		lastActive *time.Time
		want       bool
	}{
		{"never_active", nil, true},
		{"past_threshold", ago(13 * time.Hour), true},
		{"within_threshold", ago(11 * time.Hour), false},
		{"exactly_threshold", ago(12 * time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsInactive(tt.lastActive, 12*time.Hour, now))
		})
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy("u1")
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, 12*time.Hour, p.Threshold())
	assert.Equal(t, time.Hour, p.EscalationDelay())
	assert.Equal(t, "23:00", p.QuietStart.String())
	assert.Equal(t, "07:00", p.QuietEnd.String())
	assert.True(t, p.EscalationEnabled)
	assert.True(t, p.IsActive)
}

func TestTimeOfDay_Parsing(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"07:00", NewTimeOfDay(7, 0), false},
		{"23:30:00", NewTimeOfDay(23, 30), false},
		{" 06:15 ", NewTimeOfDay(6, 15), false},
		{"25:00", 0, true},
		{"noon", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPolicy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimeOfDay_ScanAndValue(t *testing.T) {
	var tod TimeOfDay
	require.NoError(t, tod.Scan([]byte("23:00:00.000000")))
	assert.Equal(t, NewTimeOfDay(23, 0), tod)

	require.NoError(t, tod.Scan(time.Date(0, 1, 1, 7, 30, 0, 0, time.UTC)))
	assert.Equal(t, NewTimeOfDay(7, 30), tod)

	assert.Error(t, tod.Scan(42))

	v, err := NewTimeOfDay(6, 5).Value()
	require.NoError(t, err)
	assert.Equal(t, "06:05:00", v)
}

func TestPolicyPatch_Apply(t *testing.T) {
	intp := func(v int) *int { return &v }
	boolp := func(v bool) *bool { return &v }
	quiet := NewTimeOfDay(22, 0)

	base := DefaultPolicy("u1")

	updated, err := PolicyPatch{
		ThresholdHours:         intp(24),
		QuietStart:             &quiet,
		EscalationEnabled:      boolp(false),
		EscalationDelayMinutes: intp(0),
	}.Apply(base)
	require.NoError(t, err)
	assert.Equal(t, 24, updated.ThresholdHours)
	assert.Equal(t, quiet, updated.QuietStart)
	assert.Equal(t, base.QuietEnd, updated.QuietEnd)
	assert.False(t, updated.EscalationEnabled)
	assert.Zero(t, updated.EscalationDelayMinutes)

	invalid := []PolicyPatch{
		{ThresholdHours: intp(0)},
		{ThresholdHours: intp(169)},
		{EscalationDelayMinutes: intp(-1)},
		{EscalationDelayMinutes: intp(1441)},
	}
	for _, p := range invalid {
		_, err := p.Apply(base)
		assert.ErrorIs(t, err, ErrInvalidPolicy)
	}
}

func TestPolicyPatch_DecodesJSON(t *testing.T) {
	var patch PolicyPatch
	require.NoError(t, json.Unmarshal([]byte(`{"threshold_hours":6,"quiet_end":"08:30"}`), &patch))
	require.NotNil(t, patch.ThresholdHours)
	require.NotNil(t, patch.QuietEnd)
	assert.Nil(t, patch.QuietStart)
	assert.Equal(t, NewTimeOfDay(8, 30), *patch.QuietEnd)
}
