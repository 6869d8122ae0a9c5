package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vdavid/mailsync/internal/models"
)

// ErrAttachmentNotFound is returned when a requested attachment or its
// blob cannot be found.
var ErrAttachmentNotFound = errors.New("attachment not found")

// SaveAttachment stores an attachment's metadata and blob in a single
// transaction, so a metadata row can never exist without its content.
func SaveAttachment(ctx context.Context, pool *pgxpool.Pool, attachment *models.Attachment, data []byte) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO attachments (message_id, filename, mime_type, size_bytes)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, attachment.MessageID, attachment.Filename, attachment.MimeType, attachment.SizeBytes).Scan(&attachment.ID)
	if err != nil {
		return fmt.Errorf("failed to save attachment: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO attachment_blobs (attachment_id, data)
		VALUES ($1, $2)
	`, attachment.ID, data)
	if err != nil {
		return fmt.Errorf("failed to save attachment blob: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit attachment: %w", err)
	}

	return nil
}

// GetAttachmentsForMessage returns attachment metadata for a message,
// without the blobs.
func GetAttachmentsForMessage(ctx context.Context, pool *pgxpool.Pool, messageID int64) ([]*models.Attachment, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, message_id, filename, mime_type, size_bytes
		FROM attachments
		WHERE message_id = $1
		ORDER BY id
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attachments: %w", err)
	}
	defer rows.Close()

	var attachments []*models.Attachment
	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(&a.ID, &a.MessageID, &a.Filename, &a.MimeType, &a.SizeBytes); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		attachments = append(attachments, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attachments: %w", err)
	}

	return attachments, nil
}

// GetAttachmentBlob returns an attachment's content.
func GetAttachmentBlob(ctx context.Context, pool *pgxpool.Pool, attachmentID int64) ([]byte, error) {
	var data []byte
	err := pool.QueryRow(ctx, `
		SELECT data FROM attachment_blobs WHERE attachment_id = $1
	`, attachmentID).Scan(&data)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAttachmentNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get attachment blob: %w", err)
	}

	return data, nil
}
