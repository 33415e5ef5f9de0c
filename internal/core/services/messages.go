package services

import (
	"fmt"
	"html"

	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
)

const (
	pushTypeSoftCheckIn   = "SOFT_CHECKIN"
	pushTypeGuardianAlert = "GUARDIAN_ALERT"
)

func softCheckInMessage(user domain.User, eventID string) ports.PushMessage {
	return ports.PushMessage{
		Title: "Are you doing okay?",
		Body:  "We haven't seen any activity from you in a while. Open the app to let us know you're fine.",
		Data: map[string]string{
			"type":     pushTypeSoftCheckIn,
			"event_id": eventID,
			"user_id":  user.ID,
		},
	}
}

func guardianAlertMessage(ward domain.User, eventID string) ports.PushMessage {
	return ports.PushMessage{
		Title: "Urgent: no activity detected",
		Body:  fmt.Sprintf("%s has not been active for a long time. Please check on them.", ward.Email),
		Data: map[string]string{
			"type":     pushTypeGuardianAlert,
			"event_id": eventID,
			"ward_id":  ward.ID,
			"severity": "HIGH",
		},
	}
}

func guardianAlertEmail(to string, ward domain.User, eventID string) ports.EmailMessage {
	text := fmt.Sprintf(`Hello,

%s, who has you registered as a guardian, has not shown any activity for a long time.

Please check on them. You can find the details in the app.

Event ID: %s

- The InRem team
`, ward.Email, eventID)

	wardHTML := html.EscapeString(ward.Email)
	body := fmt.Sprintf(`<html>
<body style="font-family: sans-serif; line-height: 1.6;">
  <h2 style="color: #E57373;">Urgent: welfare check needed</h2>
  <p>Hello,</p>
  <p><strong>%s</strong>, who has you registered as a guardian, has not shown any activity for a long time.</p>
  <p><strong>Please check on them.</strong> You can find the details in the app.</p>
  <hr>
  <p style="color: #888; font-size: 12px;">Event ID: %s</p>
  <p style="color: #888; font-size: 12px;">- The InRem team</p>
</body>
</html>
`, wardHTML, html.EscapeString(eventID))

	return ports.EmailMessage{
		To:      to,
		Subject: "[InRem] Urgent: welfare check needed",
		Text:    text,
		HTML:    body,
	}
}
