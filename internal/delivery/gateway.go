// Package delivery defines the outbound notification gateway consumed by the
// workflow engine. The concrete transport (SMS aggregator, SMTP relay) lives
// outside this service; the core only depends on this contract and records
// every outcome in the delivery log regardless of success.
package delivery

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/showdeck/access/internal/model"
)

// Result is what a provider reports for an accepted message.
type Result struct {
	ProviderRef string
}

// Gateway sends one message to one destination. Implementations may be slow
// and may fail; callers bound them with the request context and must never
// hold a lock across a Send.
type Gateway interface {
	Send(ctx context.Context, destination string, channel model.Channel, content string) (Result, error)
}

// LogGateway is the development gateway: it prints the message to the
// operational log and always succeeds. Useful before a real provider is
// configured and in local runs.
type LogGateway struct{}

func (LogGateway) Send(_ context.Context, destination string, channel model.Channel, content string) (Result, error) {
	ref := uuid.NewString()
	log.Printf("delivery: [%s] to %s ref=%s: %s", channel, destination, ref, content)
	return Result{ProviderRef: ref}, nil
}
