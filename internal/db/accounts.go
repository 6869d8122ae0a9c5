package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vdavid/mailsync/internal/models"
)

// ErrAccountNotFound is returned when a requested account cannot be found.
var ErrAccountNotFound = errors.New("account not found")

// CreateAccount inserts a new account and returns it with its assigned id.
func CreateAccount(ctx context.Context, pool *pgxpool.Pool, email, displayName, provider string) (*models.Account, error) {
	account := &models.Account{
		Email:       email,
		DisplayName: displayName,
		Provider:    provider,
	}

	err := pool.QueryRow(ctx, `
		INSERT INTO accounts (email_address, display_name, provider_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (email_address) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			provider_type = EXCLUDED.provider_type
		RETURNING id
	`, email, displayName, provider).Scan(&account.ID)

	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return account, nil
}

// GetAccount returns an account by id.
func GetAccount(ctx context.Context, pool *pgxpool.Pool, accountID int64) (*models.Account, error) {
	var account models.Account

	err := pool.QueryRow(ctx, `
		SELECT id, email_address, display_name, provider_type
		FROM accounts
		WHERE id = $1
	`, accountID).Scan(&account.ID, &account.Email, &account.DisplayName, &account.Provider)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}

// GetAccounts returns all accounts.
func GetAccounts(ctx context.Context, pool *pgxpool.Pool) ([]*models.Account, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, email_address, display_name, provider_type
		FROM accounts
		ORDER BY id
	`)

	if err != nil {
		return nil, fmt.Errorf("failed to get accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		var account models.Account
		if err := rows.Scan(&account.ID, &account.Email, &account.DisplayName, &account.Provider); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

// DeleteAccount removes an account. Folders, messages, drafts, and
// signatures cascade in the schema.
func DeleteAccount(ctx context.Context, pool *pgxpool.Pool, accountID int64) error {
	tag, err := pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	return nil
}
