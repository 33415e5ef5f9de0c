package domain

import "time"

// GuardianLink says GuardianID watches over WardID.
type GuardianLink struct {
	ID         string    `json:"id"`
	WardID     string    `json:"ward_id"`
	GuardianID string    `json:"guardian_id"`
	Alias      string    `json:"alias,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Invitation is a short-lived code a ward hands to a prospective guardian.
type Invitation struct {
	Code      string    `json:"code"`
	WardID    string    `json:"ward_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (i Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
