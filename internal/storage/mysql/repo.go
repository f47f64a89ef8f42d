package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"reviews_dashboard/internal/domain"
)

// Repo is the durable approval store.
type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) SetApproval(ctx context.Context, id domain.ReviewID, approved bool) error {
	_, err := r.db.ExecContext(ctx, upsertApprovalSQL, id.String(), approved)
	return err
}

func (r *Repo) GetApproval(ctx context.Context, id domain.ReviewID) (bool, error) {
	var approved bool
	err := r.db.QueryRowContext(ctx, getApprovalSQL, id.String()).Scan(&approved)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get approval %s: %w", id, err)
	}
	return approved, nil
}

func (r *Repo) ListApprovals(ctx context.Context) (map[domain.ReviewID]bool, error) {
	rows, err := r.db.QueryContext(ctx, listApprovalsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[domain.ReviewID]bool{}
	for rows.Next() {
		var (
			id       string
			approved bool
		)
		if err := rows.Scan(&id, &approved); err != nil {
			return nil, err
		}
		out[domain.ReviewID(id)] = approved
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
