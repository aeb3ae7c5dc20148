// Package queue moves the admin-notification fan-out off the submission
// path. A submitted request publishes one event to a durable queue; a
// background consumer performs the actual delivery, so a slow or failing
// provider never delays or fails the submitter.
package queue

// requestQueueName is the durable queue carrying intake events.
const requestQueueName = "tokenrequest.submitted"

// RequestSubmittedEvent is published when a token request is persisted. It
// carries only the id; the consumer re-reads the request so it always works
// from current state.
type RequestSubmittedEvent struct {
	RequestID   string `json:"request_id"`
	SubmittedAt string `json:"submitted_at"`
}
