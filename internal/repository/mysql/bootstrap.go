package mysql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/showdeck/access/internal/model"
	"github.com/showdeck/access/internal/repository"
)

// The bootstrap marker is a single row with a fixed primary key. The insert
// is the linearization point for the whole bootstrap operation: a racing
// second writer hits the duplicate-key error, not a second master admin.
const bootstrapRowID = 1

func (s *Store) GetBootstrap(ctx context.Context) (*model.Bootstrap, error) {
	var b model.Bootstrap
	err := s.DB.QueryRowContext(ctx,
		`SELECT master_ready, master_admin_id, created_at FROM bootstrap WHERE id=? LIMIT 1`,
		bootstrapRowID).Scan(&b.MasterReady, &b.MasterAdminID, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) CreateBootstrap(ctx context.Context, b *model.Bootstrap) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO bootstrap (id, master_ready, master_admin_id, created_at) VALUES (?,?,?,?)`,
		bootstrapRowID, b.MasterReady, b.MasterAdminID, b.CreatedAt)
	if isDuplicate(err) {
		return repository.ErrBootstrapExists
	}
	return err
}

func (s *Store) DeleteBootstrap(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM bootstrap WHERE id=?`, bootstrapRowID)
	return err
}
