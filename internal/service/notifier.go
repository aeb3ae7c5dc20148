package service

import (
	"context"
	"log"
	"time"
)

// Notifier decouples the admin fan-out from the submission that triggers it.
// RequestSubmitted must return quickly; the actual delivery happens later,
// on a consumer or a background goroutine.
type Notifier interface {
	RequestSubmitted(requestID string) error
}

// GoNotifier runs the fan-out on a goroutine with its own deadline. It is
// the fallback when no message broker is configured; semantics are the same,
// only the handoff is process-local and lost on crash.
type GoNotifier struct {
	Run     func(ctx context.Context, requestID string) error
	Timeout time.Duration
}

func NewGoNotifier(run func(ctx context.Context, requestID string) error) *GoNotifier {
	return &GoNotifier{Run: run, Timeout: 30 * time.Second}
}

func (n *GoNotifier) RequestSubmitted(requestID string) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.Timeout)
		defer cancel()
		if err := n.Run(ctx, requestID); err != nil {
			log.Printf("notifier: fan-out for %s failed: %v", requestID, err)
		}
	}()
	return nil
}
