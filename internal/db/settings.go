package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vdavid/mailsync/internal/models"
)

// ErrSettingNotFound is returned when a requested setting key does not
// exist.
var ErrSettingNotFound = errors.New("setting not found")

// SetSetting stores a key/value pair, overwriting any existing value.
func SetSetting(ctx context.Context, pool *pgxpool.Pool, key, value string) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}

	return nil
}

// GetSetting returns the value stored under key.
func GetSetting(ctx context.Context, pool *pgxpool.Pool, key string) (string, error) {
	var value string
	err := pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrSettingNotFound
	}

	if err != nil {
		return "", fmt.Errorf("failed to get setting: %w", err)
	}

	return value, nil
}

// GetSettings returns all stored settings.
func GetSettings(ctx context.Context, pool *pgxpool.Pool) ([]*models.Setting, error) {
	rows, err := pool.Query(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	defer rows.Close()

	var settings []*models.Setting
	for rows.Next() {
		var s models.Setting
		if err := rows.Scan(&s.Key, &s.Value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings = append(settings, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settings: %w", err)
	}

	return settings, nil
}

// DeleteSetting removes a setting by key.
func DeleteSetting(ctx context.Context, pool *pgxpool.Pool, key string) error {
	tag, err := pool.Exec(ctx, `DELETE FROM settings WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete setting: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrSettingNotFound
	}

	return nil
}
