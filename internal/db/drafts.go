package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vdavid/mailsync/internal/models"
)

// ErrDraftNotFound is returned when a requested draft cannot be found.
var ErrDraftNotFound = errors.New("draft not found")

// SaveDraft inserts a new draft, or updates an existing one when the
// draft carries an id.
func SaveDraft(ctx context.Context, pool *pgxpool.Pool, draft *models.Draft) error {
	if draft.ID == 0 {
		err := pool.QueryRow(ctx, `
			INSERT INTO drafts (account_id, to_addresses, cc_addresses, bcc_addresses,
				subject, body_plain, body_html)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at, updated_at
		`,
			draft.AccountID,
			draft.ToAddresses,
			draft.CCAddresses,
			draft.BCCAddresses,
			draft.Subject,
			draft.BodyPlain,
			draft.BodyHTML,
		).Scan(&draft.ID, &draft.CreatedAt, &draft.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create draft: %w", err)
		}
		return nil
	}

	err := pool.QueryRow(ctx, `
		UPDATE drafts
		SET to_addresses = $2,
			cc_addresses = $3,
			bcc_addresses = $4,
			subject = $5,
			body_plain = $6,
			body_html = $7,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`,
		draft.ID,
		draft.ToAddresses,
		draft.CCAddresses,
		draft.BCCAddresses,
		draft.Subject,
		draft.BodyPlain,
		draft.BodyHTML,
	).Scan(&draft.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDraftNotFound
	}

	if err != nil {
		return fmt.Errorf("failed to update draft: %w", err)
	}

	return nil
}

// GetDraft returns a draft by its id.
func GetDraft(ctx context.Context, pool *pgxpool.Pool, draftID int64) (*models.Draft, error) {
	var draft models.Draft

	err := pool.QueryRow(ctx, `
		SELECT id, account_id, to_addresses, cc_addresses, bcc_addresses,
			subject, body_plain, body_html, created_at, updated_at
		FROM drafts
		WHERE id = $1
	`, draftID).Scan(
		&draft.ID,
		&draft.AccountID,
		&draft.ToAddresses,
		&draft.CCAddresses,
		&draft.BCCAddresses,
		&draft.Subject,
		&draft.BodyPlain,
		&draft.BodyHTML,
		&draft.CreatedAt,
		&draft.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDraftNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}

	return &draft, nil
}

// GetDrafts returns all drafts for an account, most recently updated
// first.
func GetDrafts(ctx context.Context, pool *pgxpool.Pool, accountID int64) ([]*models.Draft, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, account_id, to_addresses, cc_addresses, bcc_addresses,
			subject, body_plain, body_html, created_at, updated_at
		FROM drafts
		WHERE account_id = $1
		ORDER BY updated_at DESC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get drafts: %w", err)
	}
	defer rows.Close()

	var drafts []*models.Draft
	for rows.Next() {
		var draft models.Draft
		if err := rows.Scan(
			&draft.ID,
			&draft.AccountID,
			&draft.ToAddresses,
			&draft.CCAddresses,
			&draft.BCCAddresses,
			&draft.Subject,
			&draft.BodyPlain,
			&draft.BodyHTML,
			&draft.CreatedAt,
			&draft.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		drafts = append(drafts, &draft)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating drafts: %w", err)
	}

	return drafts, nil
}

// DeleteDraft deletes a draft by its id.
func DeleteDraft(ctx context.Context, pool *pgxpool.Pool, draftID int64) error {
	tag, err := pool.Exec(ctx, `DELETE FROM drafts WHERE id = $1`, draftID)
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrDraftNotFound
	}

	return nil
}
