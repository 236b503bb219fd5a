// Package notify tells operators about jobs that failed for good.
package notify

import "context"

// Notification represents a notification message.
type Notification struct {
	Subject string            `json:"subject"`
	Body    string            `json:"body"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Notifier is the interface for sending notifications.
type Notifier interface {
	// Send sends a notification.
	Send(ctx context.Context, notification Notification) error
}

// Multi sends every notification to each notifier in turn and returns the
// first error after trying all of them.
type Multi []Notifier

// Send implements Notifier.
func (m Multi) Send(ctx context.Context, notification Notification) error {
	var first error
	for _, n := range m {
		if err := n.Send(ctx, notification); err != nil && first == nil {
			first = err
		}
	}
	return first
}
