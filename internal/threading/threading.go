// Package threading groups messages into conversations by normalized
// subject. A thread is keyed by (account, subject hash); replies and
// forwards fold into the thread of the message they answer because the
// normalization strips their subject prefixes.
package threading

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vdavid/mailsync/internal/models"
)

// NormalizeSubject strips reply and forward prefixes and bracketed tags
// from a subject until no more can be removed, then lowercases and trims
// it. "Re: Re: Fwd: [List] Hello" and "hello" normalize to the same
// string.
func NormalizeSubject(subject string) string {
	s := strings.TrimSpace(subject)

	for {
		trimmed := strings.TrimSpace(s)
		lower := strings.ToLower(trimmed)

		switch {
		case strings.HasPrefix(lower, "re:"):
			s = trimmed[3:]
		case strings.HasPrefix(lower, "fwd:"):
			s = trimmed[4:]
		case strings.HasPrefix(lower, "fw:"):
			s = trimmed[3:]
		case strings.HasPrefix(trimmed, "["):
			end := strings.Index(trimmed, "]")
			if end < 0 {
				return strings.ToLower(trimmed)
			}
			s = trimmed[end+1:]
		default:
			return strings.ToLower(trimmed)
		}
	}
}

// SubjectHash returns the hex FNV-1a hash of the normalized subject.
func SubjectHash(subject string) string {
	h := fnv.New64a()
	h.Write([]byte(NormalizeSubject(subject)))
	return fmt.Sprintf("%x", h.Sum64())
}

// Classify assigns a message to its thread, creating the thread if this
// is the first message with that subject. The thread upsert and the
// message's thread link are committed atomically, so aggregates can never
// drift from membership. Only call this for messages that do not yet
// belong to a thread.
func Classify(ctx context.Context, pool *pgxpool.Pool, message *models.Message) error {
	hash := SubjectHash(message.Subject)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var threadID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO threads (account_id, subject_hash, first_message_id, last_message_id, message_count)
		VALUES ($1, $2, $3, $3, 1)
		ON CONFLICT (account_id, subject_hash) DO UPDATE SET
			last_message_id = EXCLUDED.last_message_id,
			message_count = threads.message_count + 1,
			updated_at = now()
		RETURNING id
	`, message.AccountID, hash, message.ID).Scan(&threadID)
	if err != nil {
		return fmt.Errorf("failed to upsert thread: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE messages SET thread_id = $2 WHERE id = $1`, message.ID, threadID)
	if err != nil {
		return fmt.Errorf("failed to link message to thread: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit thread classification: %w", err)
	}

	message.ThreadID = &threadID
	return nil
}
