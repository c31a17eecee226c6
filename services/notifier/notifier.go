package notifier

import "context"

// Notifier sends plain-text status messages to one configured destination
type Notifier interface {
	// Send delivers text. Failures are notify errors.
	Send(ctx context.Context, text string) error
}
