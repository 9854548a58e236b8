// Package queue defines message payloads exchanged over the message
// broker and the background consumer that delivers them.
package queue

// EmailQueueName is the durable queue carrying outbound notification
// emails.  Handlers publish to it and the consumer delivers over SMTP,
// so a slow or failing mail server never blocks a request.
const EmailQueueName = "notification.email"

// EmailEvent is one outbound email.  The body is prerendered by the
// publisher so the consumer needs no template state.
type EmailEvent struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Kind     string `json:"kind"`      // e.g. "verify_email", "sample_registered"
	UserID   uint64 `json:"user_id"`   // recipient user when known, else 0
	SampleID uint64 `json:"sample_id"` // related sample when relevant, else 0
	QueuedAt string `json:"queued_at"`
}
