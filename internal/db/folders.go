package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vdavid/mailsync/internal/models"
)

// ErrFolderNotFound is returned when a requested folder cannot be found.
var ErrFolderNotFound = errors.New("folder not found")

// SaveFolder inserts a folder or, if a folder with the same (account, path)
// already exists, returns the cached row's id. Folder discovery runs on
// every sync pass, so this must be idempotent.
func SaveFolder(ctx context.Context, pool *pgxpool.Pool, folder *models.Folder) error {
	err := pool.QueryRow(ctx, `
		INSERT INTO folders (account_id, name, path, parent_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, path) DO UPDATE SET
			name = EXCLUDED.name
		RETURNING id
	`, folder.AccountID, folder.Name, folder.Path, folder.ParentID).Scan(&folder.ID)

	if err != nil {
		return fmt.Errorf("failed to save folder: %w", err)
	}

	return nil
}

// GetFolder returns a folder by id.
func GetFolder(ctx context.Context, pool *pgxpool.Pool, folderID int64) (*models.Folder, error) {
	var folder models.Folder

	err := pool.QueryRow(ctx, `
		SELECT id, account_id, name, path, parent_id
		FROM folders
		WHERE id = $1
	`, folderID).Scan(&folder.ID, &folder.AccountID, &folder.Name, &folder.Path, &folder.ParentID)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFolderNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}

	return &folder, nil
}

// GetFolders returns all folders for an account.
func GetFolders(ctx context.Context, pool *pgxpool.Pool, accountID int64) ([]*models.Folder, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, account_id, name, path, parent_id
		FROM folders
		WHERE account_id = $1
		ORDER BY path
	`, accountID)

	if err != nil {
		return nil, fmt.Errorf("failed to get folders: %w", err)
	}
	defer rows.Close()

	var folders []*models.Folder
	for rows.Next() {
		var folder models.Folder
		if err := rows.Scan(&folder.ID, &folder.AccountID, &folder.Name, &folder.Path, &folder.ParentID); err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, &folder)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating folders: %w", err)
	}

	return folders, nil
}
