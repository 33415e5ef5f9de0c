package domain

import (
	"fmt"
	"time"
)

// User is a monitored person as seen by the pulse engine. The same record
// serves wards and guardians.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	IsActive     bool       `json:"is_active"`
	IsDeceased   bool       `json:"is_deceased"`
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
	// DeliveryToken is the push registration token; empty when no device is
	// registered.
	DeliveryToken string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

// HasDeliveryToken reports whether push delivery can be attempted.
func (u User) HasDeliveryToken() bool {
	return u.DeliveryToken != ""
}

// MonitoredUser pairs a user with the policy that governs detection.
type MonitoredUser struct {
	User   User
	Policy MonitoringPolicy
}

type SignalType string

const (
	SignalAppOpen       SignalType = "app_open"
	SignalAppForeground SignalType = "app_foreground"
	SignalTouchEvent    SignalType = "touch_event"
	SignalHeartbeat     SignalType = "heartbeat"
	SignalManualCheckIn SignalType = "manual_checkin"
)

// ParseSignalType maps the wire value to a SignalType. The empty string
// defaults to heartbeat.
func ParseSignalType(s string) (SignalType, error) {
	switch t := SignalType(s); t {
	case "":
		return SignalHeartbeat, nil
	case SignalAppOpen, SignalAppForeground, SignalTouchEvent, SignalHeartbeat, SignalManualCheckIn:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSignalType, s)
}

// ActivitySignal is one proof of life from a user's device.
type ActivitySignal struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	SignalType SignalType `json:"signal_type"`
	Timestamp  time.Time  `json:"timestamp"`
	DeviceInfo string     `json:"device_info,omitempty"`
}
