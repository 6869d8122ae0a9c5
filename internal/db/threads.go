package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vdavid/mailsync/internal/models"
)

// ErrThreadNotFound is returned when a requested thread cannot be found.
var ErrThreadNotFound = errors.New("thread not found")

// GetThread returns a thread by its id.
func GetThread(ctx context.Context, pool *pgxpool.Pool, threadID int64) (*models.Thread, error) {
	var thread models.Thread

	err := pool.QueryRow(ctx, `
		SELECT id, account_id, subject_hash, first_message_id, last_message_id,
			message_count, created_at, updated_at
		FROM threads
		WHERE id = $1
	`, threadID).Scan(
		&thread.ID,
		&thread.AccountID,
		&thread.SubjectHash,
		&thread.FirstMessageID,
		&thread.LastMessageID,
		&thread.MessageCount,
		&thread.CreatedAt,
		&thread.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrThreadNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}

	return &thread, nil
}

// GetThreadMessages returns a thread's message headers in chronological
// order.
func GetThreadMessages(ctx context.Context, pool *pgxpool.Pool, threadID int64) ([]*models.MessageHeader, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, subject, from_header, date, is_read, has_attachments, is_starred
		FROM messages
		WHERE thread_id = $1
		ORDER BY date ASC NULLS FIRST, id ASC
	`, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to get thread messages: %w", err)
	}
	defer rows.Close()

	return scanMessageHeaders(rows)
}

// GetThreadsForAccount returns all threads for an account, most recently
// updated first.
func GetThreadsForAccount(ctx context.Context, pool *pgxpool.Pool, accountID int64) ([]*models.Thread, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, account_id, subject_hash, first_message_id, last_message_id,
			message_count, created_at, updated_at
		FROM threads
		WHERE account_id = $1
		ORDER BY updated_at DESC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get threads: %w", err)
	}
	defer rows.Close()

	var threads []*models.Thread
	for rows.Next() {
		var thread models.Thread
		if err := rows.Scan(
			&thread.ID,
			&thread.AccountID,
			&thread.SubjectHash,
			&thread.FirstMessageID,
			&thread.LastMessageID,
			&thread.MessageCount,
			&thread.CreatedAt,
			&thread.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		threads = append(threads, &thread)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating threads: %w", err)
	}

	return threads, nil
}
