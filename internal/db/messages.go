package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vdavid/mailsync/internal/models"
)

// ErrMessageNotFound is returned when a requested message cannot be found.
var ErrMessageNotFound = errors.New("message not found")

// SaveMessage saves or updates a message in the database. The upsert is
// keyed by (account_id, folder_id, imap_uid) and preserves the existing
// row's primary id, thread link, and local read/starred flags, so foreign
// keys stay valid across re-syncs.
func SaveMessage(ctx context.Context, pool *pgxpool.Pool, message *models.Message) error {
	err := pool.QueryRow(ctx, `
		INSERT INTO messages (
			account_id,
			folder_id,
			imap_uid,
			message_id_header,
			from_header,
			to_header,
			cc_header,
			subject,
			date,
			body_plain,
			body_html,
			has_attachments,
			is_read,
			is_starred
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (account_id, folder_id, imap_uid) DO UPDATE SET
			message_id_header = EXCLUDED.message_id_header,
			from_header = EXCLUDED.from_header,
			to_header = EXCLUDED.to_header,
			cc_header = EXCLUDED.cc_header,
			subject = EXCLUDED.subject,
			date = EXCLUDED.date,
			body_plain = EXCLUDED.body_plain,
			body_html = EXCLUDED.body_html,
			has_attachments = EXCLUDED.has_attachments
		RETURNING id, is_read, is_starred, thread_id
	`,
		message.AccountID,
		message.FolderID,
		message.IMAPUID,
		message.MessageIDHeader,
		message.FromHeader,
		message.ToHeader,
		message.CCHeader,
		message.Subject,
		message.Date,
		message.BodyPlain,
		message.BodyHTML,
		message.HasAttachments,
		message.IsRead,
		message.IsStarred,
	).Scan(&message.ID, &message.IsRead, &message.IsStarred, &message.ThreadID)

	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	return nil
}

// GetMessage returns a message by its database id.
func GetMessage(ctx context.Context, pool *pgxpool.Pool, messageID int64) (*models.Message, error) {
	var msg models.Message

	err := pool.QueryRow(ctx, `
		SELECT id, account_id, folder_id, imap_uid, message_id_header,
			from_header, to_header, cc_header, subject, date,
			body_plain, body_html, has_attachments, is_read, is_starred, thread_id
		FROM messages
		WHERE id = $1
	`, messageID).Scan(
		&msg.ID,
		&msg.AccountID,
		&msg.FolderID,
		&msg.IMAPUID,
		&msg.MessageIDHeader,
		&msg.FromHeader,
		&msg.ToHeader,
		&msg.CCHeader,
		&msg.Subject,
		&msg.Date,
		&msg.BodyPlain,
		&msg.BodyHTML,
		&msg.HasAttachments,
		&msg.IsRead,
		&msg.IsStarred,
		&msg.ThreadID,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMessageNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return &msg, nil
}

// GetMessageByUID returns a message by its IMAP UID within a folder.
func GetMessageByUID(ctx context.Context, pool *pgxpool.Pool, accountID, folderID, imapUID int64) (*models.Message, error) {
	var msg models.Message

	err := pool.QueryRow(ctx, `
		SELECT id, account_id, folder_id, imap_uid, message_id_header,
			from_header, to_header, cc_header, subject, date,
			body_plain, body_html, has_attachments, is_read, is_starred, thread_id
		FROM messages
		WHERE account_id = $1 AND folder_id = $2 AND imap_uid = $3
	`, accountID, folderID, imapUID).Scan(
		&msg.ID,
		&msg.AccountID,
		&msg.FolderID,
		&msg.IMAPUID,
		&msg.MessageIDHeader,
		&msg.FromHeader,
		&msg.ToHeader,
		&msg.CCHeader,
		&msg.Subject,
		&msg.Date,
		&msg.BodyPlain,
		&msg.BodyHTML,
		&msg.HasAttachments,
		&msg.IsRead,
		&msg.IsStarred,
		&msg.ThreadID,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMessageNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return &msg, nil
}

// ListMessages returns message headers for a folder, newest first.
func ListMessages(ctx context.Context, pool *pgxpool.Pool, folderID int64, limit, offset int) ([]*models.MessageHeader, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, subject, from_header, date, is_read, has_attachments, is_starred
		FROM messages
		WHERE folder_id = $1
		ORDER BY date DESC NULLS LAST
		LIMIT $2 OFFSET $3
	`, folderID, limit, offset)

	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	return scanMessageHeaders(rows)
}

// CountMessages returns the number of messages in a folder.
func CountMessages(ctx context.Context, pool *pgxpool.Pool, folderID int64) (int64, error) {
	var count int64
	err := pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages WHERE folder_id = $1
	`, folderID).Scan(&count)

	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}

	return count, nil
}

// GetStarredMessages returns all starred message headers for an account,
// newest first.
func GetStarredMessages(ctx context.Context, pool *pgxpool.Pool, accountID int64) ([]*models.MessageHeader, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, subject, from_header, date, is_read, has_attachments, is_starred
		FROM messages
		WHERE account_id = $1 AND is_starred
		ORDER BY date DESC NULLS LAST
	`, accountID)

	if err != nil {
		return nil, fmt.Errorf("failed to get starred messages: %w", err)
	}
	defer rows.Close()

	return scanMessageHeaders(rows)
}

// SearchMessages runs a full-text search over the account's messages. The
// search column is generated from subject, from, to, and plain body, so it
// can never lag behind the row it mirrors.
func SearchMessages(ctx context.Context, pool *pgxpool.Pool, accountID int64, query string, limit, offset int) ([]*models.MessageHeader, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, subject, from_header, date, is_read, has_attachments, is_starred
		FROM messages
		WHERE account_id = $1 AND search @@ websearch_to_tsquery('simple', $2)
		ORDER BY date DESC NULLS LAST
		LIMIT $3 OFFSET $4
	`, accountID, query, limit, offset)

	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	defer rows.Close()

	return scanMessageHeaders(rows)
}

// SetMessageRead updates a message's read flag.
func SetMessageRead(ctx context.Context, pool *pgxpool.Pool, messageID int64, isRead bool) error {
	return execOnMessage(ctx, pool, `UPDATE messages SET is_read = $2 WHERE id = $1`, messageID, isRead)
}

// SetMessageStarred updates a message's starred flag.
func SetMessageStarred(ctx context.Context, pool *pgxpool.Pool, messageID int64, isStarred bool) error {
	return execOnMessage(ctx, pool, `UPDATE messages SET is_starred = $2 WHERE id = $1`, messageID, isStarred)
}

// MoveMessage moves a message to another folder. The thread link survives:
// threads are scoped by account, not folder.
func MoveMessage(ctx context.Context, pool *pgxpool.Pool, messageID, targetFolderID int64) error {
	return execOnMessage(ctx, pool, `UPDATE messages SET folder_id = $2 WHERE id = $1`, messageID, targetFolderID)
}

// DeleteMessage deletes a message and eagerly repairs its thread's
// aggregates in the same transaction.
func DeleteMessage(ctx context.Context, pool *pgxpool.Pool, messageID int64) error {
	return deleteMessages(ctx, pool, []int64{messageID}, true)
}

// BulkSetRead updates the read flag on many messages at once.
func BulkSetRead(ctx context.Context, pool *pgxpool.Pool, messageIDs []int64, isRead bool) error {
	if len(messageIDs) == 0 {
		return nil
	}

	_, err := pool.Exec(ctx, `UPDATE messages SET is_read = $2 WHERE id = ANY($1)`, messageIDs, isRead)
	if err != nil {
		return fmt.Errorf("failed to bulk update read flag: %w", err)
	}

	return nil
}

// BulkSetStarred updates the starred flag on many messages at once.
func BulkSetStarred(ctx context.Context, pool *pgxpool.Pool, messageIDs []int64, isStarred bool) error {
	if len(messageIDs) == 0 {
		return nil
	}

	_, err := pool.Exec(ctx, `UPDATE messages SET is_starred = $2 WHERE id = ANY($1)`, messageIDs, isStarred)
	if err != nil {
		return fmt.Errorf("failed to bulk update starred flag: %w", err)
	}

	return nil
}

// BulkDeleteMessages deletes many messages, repairing every affected
// thread in the same transaction.
func BulkDeleteMessages(ctx context.Context, pool *pgxpool.Pool, messageIDs []int64) error {
	if len(messageIDs) == 0 {
		return nil
	}
	return deleteMessages(ctx, pool, messageIDs, false)
}

// deleteMessages removes the given messages. Threads that reference a
// deleted message are repointed at surviving messages first, so the
// cascade on threads.first/last_message_id never fires for a thread that
// still has members; emptied threads are dropped explicitly.
func deleteMessages(ctx context.Context, pool *pgxpool.Pool, messageIDs []int64, requireAll bool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT DISTINCT thread_id FROM messages WHERE id = ANY($1) AND thread_id IS NOT NULL
	`, messageIDs)
	if err != nil {
		return fmt.Errorf("failed to find affected threads: %w", err)
	}

	var threadIDs []int64
	for rows.Next() {
		var threadID int64
		if err := rows.Scan(&threadID); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan thread id: %w", err)
		}
		threadIDs = append(threadIDs, threadID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating threads: %w", err)
	}

	for _, threadID := range threadIDs {
		if err := repairThread(ctx, tx, threadID, messageIDs); err != nil {
			return err
		}
	}

	tag, err := tx.Exec(ctx, `DELETE FROM messages WHERE id = ANY($1)`, messageIDs)
	if err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}

	if requireAll && tag.RowsAffected() < int64(len(messageIDs)) {
		return ErrMessageNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	return nil
}

// repairThread recomputes a thread's aggregates from the messages that
// will survive the deletion of excludedIDs, or deletes the thread when
// none survive.
func repairThread(ctx context.Context, tx pgx.Tx, threadID int64, excludedIDs []int64) error {
	rows, err := tx.Query(ctx, `
		SELECT id FROM messages
		WHERE thread_id = $1 AND NOT (id = ANY($2))
		ORDER BY date ASC NULLS FIRST, id ASC
	`, threadID, excludedIDs)
	if err != nil {
		return fmt.Errorf("failed to query surviving messages: %w", err)
	}

	var survivors []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan surviving message: %w", err)
		}
		survivors = append(survivors, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating surviving messages: %w", err)
	}

	if len(survivors) == 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM threads WHERE id = $1`, threadID); err != nil {
			return fmt.Errorf("failed to delete emptied thread: %w", err)
		}
		return nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE threads
		SET first_message_id = $2,
			last_message_id = $3,
			message_count = $4,
			updated_at = now()
		WHERE id = $1
	`, threadID, survivors[0], survivors[len(survivors)-1], len(survivors))
	if err != nil {
		return fmt.Errorf("failed to repair thread: %w", err)
	}

	return nil
}

func execOnMessage(ctx context.Context, pool *pgxpool.Pool, sql string, messageID int64, arg any) error {
	tag, err := pool.Exec(ctx, sql, messageID, arg)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}

	return nil
}

func scanMessageHeaders(rows pgx.Rows) ([]*models.MessageHeader, error) {
	var headers []*models.MessageHeader
	for rows.Next() {
		var header models.MessageHeader
		if err := rows.Scan(
			&header.ID,
			&header.Subject,
			&header.From,
			&header.Date,
			&header.IsRead,
			&header.HasAttachments,
			&header.IsStarred,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message header: %w", err)
		}
		headers = append(headers, &header)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message headers: %w", err)
	}

	return headers, nil
}
