package mysql

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/showdeck/access/internal/model"
	"github.com/showdeck/access/internal/repository"
)

const requestCols = `id, first_name, last_name, social_handle, desired_username,
phone, status, linked_user_id, admin_notify, admin_notify_err,
applicant_notify, applicant_notify_err, created_at, updated_at, version`

func (s *Store) CreateRequest(ctx context.Context, r *model.TokenRequest) error {
	r.DesiredUsername = strings.ToLower(r.DesiredUsername)
	r.Version = 1
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO token_requests (`+requestCols+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.ID, r.FirstName, r.LastName, r.SocialHandle, r.DesiredUsername,
		r.Phone, r.Status, r.LinkedUserID, r.AdminNotify, r.AdminNotifyErr,
		r.ApplicantNotify, r.ApplicantNotifyErr, r.CreatedAt, r.UpdatedAt, r.Version)
	return err
}

func (s *Store) GetRequest(ctx context.Context, id string) (*model.TokenRequest, error) {
	var r model.TokenRequest
	err := s.DB.QueryRowContext(ctx,
		`SELECT `+requestCols+` FROM token_requests WHERE id=? LIMIT 1`, id).
		Scan(&r.ID, &r.FirstName, &r.LastName, &r.SocialHandle, &r.DesiredUsername,
			&r.Phone, &r.Status, &r.LinkedUserID, &r.AdminNotify, &r.AdminNotifyErr,
			&r.ApplicantNotify, &r.ApplicantNotifyErr, &r.CreatedAt, &r.UpdatedAt, &r.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateRequest writes the request back with compare-and-swap on version.
// The zero-row case is resolved into not-found vs stale-version so the
// workflow can translate a lost race into "already processed".
func (s *Store) UpdateRequest(ctx context.Context, r *model.TokenRequest) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE token_requests SET status=?, linked_user_id=?, admin_notify=?,
		 admin_notify_err=?, applicant_notify=?, applicant_notify_err=?,
		 updated_at=?, version=version+1
		 WHERE id=? AND version=?`,
		r.Status, r.LinkedUserID, r.AdminNotify, r.AdminNotifyErr,
		r.ApplicantNotify, r.ApplicantNotifyErr, r.UpdatedAt, r.ID, r.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var v int
		err := s.DB.QueryRowContext(ctx,
			`SELECT version FROM token_requests WHERE id=?`, r.ID).Scan(&v)
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		if err != nil {
			return err
		}
		return repository.ErrVersionConflict
	}
	r.Version++
	return nil
}

func (s *Store) ListRequests(ctx context.Context, status model.RequestStatus) ([]*model.TokenRequest, error) {
	query := `SELECT ` + requestCols + ` FROM token_requests`
	args := []any{}
	if status != "" {
		query += ` WHERE status=?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.TokenRequest
	for rows.Next() {
		var r model.TokenRequest
		if err := rows.Scan(&r.ID, &r.FirstName, &r.LastName, &r.SocialHandle,
			&r.DesiredUsername, &r.Phone, &r.Status, &r.LinkedUserID,
			&r.AdminNotify, &r.AdminNotifyErr, &r.ApplicantNotify,
			&r.ApplicantNotifyErr, &r.CreatedAt, &r.UpdatedAt, &r.Version); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
