// Package audit appends immutable entries to the audit trail. Entries go to
// the durable store and, when a mirror writer is configured, to a JSON-lines
// stream for live tailing. Sensitive metadata values are masked before the
// mirror write; the store receives them as given, but callers must never put
// raw secrets in metadata in the first place.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/showdeck/access/internal/model"
	"github.com/showdeck/access/internal/repository"
)

type Recorder struct {
	store  repository.AuditStore
	mirror io.Writer
	now    func() time.Time
}

func NewRecorder(store repository.AuditStore) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// WithMirror adds a JSON-lines mirror (typically stdout or a log file).
func (r *Recorder) WithMirror(w io.Writer) *Recorder {
	r.mirror = w
	return r
}

// WithClock replaces the time source for deterministic tests.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Record appends one entry. A failed append is logged but not returned:
// audit failures must not unwind the state change they describe, and every
// caller records after its mutation has committed.
func (r *Recorder) Record(ctx context.Context, actorID string, actorRole model.Role, targetID, action, detail string, metadata map[string]any) {
	e := &model.AuditLogEntry{
		ID:        uuid.NewString(),
		At:        r.now().UTC(),
		ActorID:   actorID,
		ActorRole: actorRole,
		TargetID:  targetID,
		Action:    action,
		Detail:    detail,
		Metadata:  metadata,
	}
	if err := r.store.AppendAudit(ctx, e); err != nil {
		log.Printf("audit: append failed for action %s: %v", action, err)
	}
	if r.mirror != nil {
		masked := *e
		if masked.Metadata != nil {
			masked.Metadata = maskSensitive(masked.Metadata)
		}
		if b, err := json.Marshal(masked); err == nil {
			r.mirror.Write(b)
			r.mirror.Write([]byte("\n"))
		}
	}
}

// maskSensitive returns a copy with values under secret-looking keys redacted.
func maskSensitive(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		lower := strings.ToLower(k)
		if strings.Contains(lower, "token") || strings.Contains(lower, "secret") ||
			strings.Contains(lower, "digest") || strings.Contains(lower, "password") {
			out[k] = "***REDACTED***"
			continue
		}
		out[k] = v
	}
	return out
}
