package mysql

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/showdeck/access/internal/model"
)

// AppendAudit inserts one immutable entry. There is no update path by design.
func (s *Store) AppendAudit(ctx context.Context, e *model.AuditLogEntry) error {
	var meta any
	if e.Metadata != nil {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
		meta = string(b)
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO audit_log (id, at, actor_id, actor_role, target_id, action, detail, metadata)
		 VALUES (?,?,?,?,?,?,?,?)`,
		e.ID, e.At, e.ActorID, e.ActorRole, e.TargetID, e.Action, e.Detail, meta)
	return err
}

func (s *Store) ListAudit(ctx context.Context, limit int) ([]*model.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, at, actor_id, actor_role, target_id, action, detail, metadata
		 FROM audit_log ORDER BY at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.AuditLogEntry
	for rows.Next() {
		var (
			e    model.AuditLogEntry
			meta sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.At, &e.ActorID, &e.ActorRole,
			&e.TargetID, &e.Action, &e.Detail, &meta); err != nil {
			return nil, err
		}
		if meta.Valid && meta.String != "" {
			_ = json.Unmarshal([]byte(meta.String), &e.Metadata)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *Store) AppendDelivery(ctx context.Context, d *model.DeliveryLog) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO delivery_log (id, owner_id, destination, channel, status, provider_ref, error, at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		d.ID, d.OwnerID, d.Destination, d.Channel, d.Status, d.ProviderRef, d.Error, d.At)
	return err
}

func (s *Store) ListDeliveryForOwner(ctx context.Context, ownerID string) ([]*model.DeliveryLog, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, owner_id, destination, channel, status, provider_ref, error, at
		 FROM delivery_log WHERE owner_id=? ORDER BY at`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.DeliveryLog
	for rows.Next() {
		var d model.DeliveryLog
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.Destination, &d.Channel,
			&d.Status, &d.ProviderRef, &d.Error, &d.At); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}
