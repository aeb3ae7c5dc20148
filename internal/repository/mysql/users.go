package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/showdeck/access/internal/model"
	"github.com/showdeck/access/internal/repository"
)

const userCols = `id, username, token_digest, role, status, email, phone,
profile_name, social_handle, source, request_id, expires_at, created_by,
created_at, updated_at, last_delivery, version`

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	u.Username = strings.ToLower(u.Username)
	u.Version = 1
	ld, err := marshalDelivery(u.LastDelivery)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO users (`+userCols+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		u.ID, u.Username, u.TokenDigest, u.Role, u.Status, u.Email, u.Phone,
		u.Profile.Name, u.Profile.SocialHandle, u.Profile.Source, u.Profile.RequestID,
		u.ExpiresAt, u.CreatedBy, u.CreatedAt, u.UpdatedAt, ld, u.Version)
	if isDuplicate(err) {
		return repository.ErrUsernameExists
	}
	return err
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.scanUser(s.DB.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE id=? LIMIT 1`, id))
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.scanUser(s.DB.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE username=? LIMIT 1`,
		strings.ToLower(username)))
}

func (s *Store) UpdateUser(ctx context.Context, u *model.User) error {
	u.Username = strings.ToLower(u.Username)
	ld, err := marshalDelivery(u.LastDelivery)
	if err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx,
		`UPDATE users SET username=?, token_digest=?, role=?, status=?, email=?,
		 phone=?, profile_name=?, social_handle=?, source=?, request_id=?,
		 expires_at=?, updated_at=?, last_delivery=?, version=version+1
		 WHERE id=? AND version=?`,
		u.Username, u.TokenDigest, u.Role, u.Status, u.Email, u.Phone,
		u.Profile.Name, u.Profile.SocialHandle, u.Profile.Source, u.Profile.RequestID,
		u.ExpiresAt, u.UpdatedAt, ld, u.ID, u.Version)
	if err != nil {
		if isDuplicate(err) {
			return repository.ErrUsernameExists
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish a missing row from a stale version.
		var v int
		err := s.DB.QueryRowContext(ctx, `SELECT version FROM users WHERE id=?`, u.ID).Scan(&v)
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		if err != nil {
			return err
		}
		return repository.ErrVersionConflict
	}
	u.Version++
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+userCols+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (s *Store) ListUsersByRole(ctx context.Context, role model.Role) ([]*model.User, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+userCols+` FROM users WHERE role=? ORDER BY created_at`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanUser(row rowScanner) (*model.User, error) {
	var (
		u   model.User
		exp sql.NullTime
		ld  sql.NullString
	)
	err := row.Scan(&u.ID, &u.Username, &u.TokenDigest, &u.Role, &u.Status,
		&u.Email, &u.Phone, &u.Profile.Name, &u.Profile.SocialHandle,
		&u.Profile.Source, &u.Profile.RequestID, &exp, &u.CreatedBy,
		&u.CreatedAt, &u.UpdatedAt, &ld, &u.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if exp.Valid {
		t := exp.Time
		u.ExpiresAt = &t
	}
	if ld.Valid && ld.String != "" {
		var d model.DeliverySummary
		if err := json.Unmarshal([]byte(ld.String), &d); err == nil {
			u.LastDelivery = &d
		}
	}
	return &u, nil
}

func collectUsers(rows *sql.Rows) ([]*model.User, error) {
	var out []*model.User
	for rows.Next() {
		var (
			u   model.User
			exp sql.NullTime
			ld  sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.TokenDigest, &u.Role, &u.Status,
			&u.Email, &u.Phone, &u.Profile.Name, &u.Profile.SocialHandle,
			&u.Profile.Source, &u.Profile.RequestID, &exp, &u.CreatedBy,
			&u.CreatedAt, &u.UpdatedAt, &ld, &u.Version); err != nil {
			return nil, err
		}
		if exp.Valid {
			t := exp.Time
			u.ExpiresAt = &t
		}
		if ld.Valid && ld.String != "" {
			var d model.DeliverySummary
			if err := json.Unmarshal([]byte(ld.String), &d); err == nil {
				u.LastDelivery = &d
			}
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}

func marshalDelivery(d *model.DeliverySummary) (any, error) {
	if d == nil {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
