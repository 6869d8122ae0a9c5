package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vdavid/mailsync/internal/models"
)

// ErrSignatureNotFound is returned when a requested signature cannot be
// found.
var ErrSignatureNotFound = errors.New("signature not found")

// SaveSignature inserts or updates a signature. When the signature is
// marked default, the account's previous default is cleared in the same
// transaction so at most one default exists per account.
func SaveSignature(ctx context.Context, pool *pgxpool.Pool, signature *models.Signature) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if signature.IsDefault {
		_, err = tx.Exec(ctx, `
			UPDATE signatures SET is_default = FALSE
			WHERE account_id = $1 AND id <> $2
		`, signature.AccountID, signature.ID)
		if err != nil {
			return fmt.Errorf("failed to clear default signature: %w", err)
		}
	}

	if signature.ID == 0 {
		err = tx.QueryRow(ctx, `
			INSERT INTO signatures (account_id, name, content_html, content_plain, is_default)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`,
			signature.AccountID,
			signature.Name,
			signature.ContentHTML,
			signature.ContentPlain,
			signature.IsDefault,
		).Scan(&signature.ID)
		if err != nil {
			return fmt.Errorf("failed to create signature: %w", err)
		}
	} else {
		tag, err := tx.Exec(ctx, `
			UPDATE signatures
			SET name = $2, content_html = $3, content_plain = $4, is_default = $5
			WHERE id = $1
		`,
			signature.ID,
			signature.Name,
			signature.ContentHTML,
			signature.ContentPlain,
			signature.IsDefault,
		)
		if err != nil {
			return fmt.Errorf("failed to update signature: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrSignatureNotFound
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit signature: %w", err)
	}

	return nil
}

// GetSignatures returns all signatures for an account, default first.
func GetSignatures(ctx context.Context, pool *pgxpool.Pool, accountID int64) ([]*models.Signature, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, account_id, name, content_html, content_plain, is_default
		FROM signatures
		WHERE account_id = $1
		ORDER BY is_default DESC, name
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get signatures: %w", err)
	}
	defer rows.Close()

	var signatures []*models.Signature
	for rows.Next() {
		var s models.Signature
		if err := rows.Scan(&s.ID, &s.AccountID, &s.Name, &s.ContentHTML, &s.ContentPlain, &s.IsDefault); err != nil {
			return nil, fmt.Errorf("failed to scan signature: %w", err)
		}
		signatures = append(signatures, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signatures: %w", err)
	}

	return signatures, nil
}

// GetDefaultSignature returns the account's default signature, or
// ErrSignatureNotFound when none is set.
func GetDefaultSignature(ctx context.Context, pool *pgxpool.Pool, accountID int64) (*models.Signature, error) {
	var s models.Signature

	err := pool.QueryRow(ctx, `
		SELECT id, account_id, name, content_html, content_plain, is_default
		FROM signatures
		WHERE account_id = $1 AND is_default
	`, accountID).Scan(&s.ID, &s.AccountID, &s.Name, &s.ContentHTML, &s.ContentPlain, &s.IsDefault)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSignatureNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get default signature: %w", err)
	}

	return &s, nil
}

// DeleteSignature deletes a signature by its id.
func DeleteSignature(ctx context.Context, pool *pgxpool.Pool, signatureID int64) error {
	tag, err := pool.Exec(ctx, `DELETE FROM signatures WHERE id = $1`, signatureID)
	if err != nil {
		return fmt.Errorf("failed to delete signature: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrSignatureNotFound
	}

	return nil
}
