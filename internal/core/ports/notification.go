package ports

import "context"

// PushMessage is a provider-neutral push notification.
type PushMessage struct {
	Title string
	Body  string
	Data  map[string]string
}

// MulticastResult summarises one fan-out. FailedTokens includes the
// unregistered ones.
type MulticastResult struct {
	SuccessCount       int
	FailureCount       int
	FailedTokens       []string
	UnregisteredTokens []string
}

type PushGateway interface {
	// SendPush returns domain.ErrUnregisteredToken for dead tokens; any
	// other error is transient.
	SendPush(ctx context.Context, token string, msg PushMessage) error
	SendMulticast(ctx context.Context, tokens []string, msg PushMessage) MulticastResult
}

type EmailMessage struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type EmailGateway interface {
	SendEmail(ctx context.Context, msg EmailMessage) error
}
