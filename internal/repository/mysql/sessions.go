package mysql

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/showdeck/access/internal/model"
	"github.com/showdeck/access/internal/repository"
)

func (s *Store) CreateSession(ctx context.Context, sess *model.Session) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO sessions (id, username, role, client, created_at) VALUES (?,?,?,?,?)`,
		sess.ID, strings.ToLower(sess.Username), sess.Role, sess.Client, sess.CreatedAt)
	return err
}

func (s *Store) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var sess model.Session
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, username, role, client, created_at FROM sessions WHERE id=? LIMIT 1`,
		id).Scan(&sess.ID, &sess.Username, &sess.Role, &sess.Client, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM sessions WHERE id=?`, id)
	return err
}

func (s *Store) DeleteSessionsForUser(ctx context.Context, username string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM sessions WHERE username=?`,
		strings.ToLower(username))
	return err
}

// ReplaceSessionsForUser runs the delete and the insert in one transaction;
// the username index lock serializes concurrent replacements for the same
// user, so at most one session survives.
func (s *Store) ReplaceSessionsForUser(ctx context.Context, username string, sess *model.Session) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	uname := strings.ToLower(username)
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE username=?`, uname); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, username, role, client, created_at) VALUES (?,?,?,?,?)`,
		sess.ID, uname, sess.Role, sess.Client, sess.CreatedAt); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
