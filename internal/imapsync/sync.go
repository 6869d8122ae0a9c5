package imapsync

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/emersion/go-imap"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vdavid/mailsync/internal/contacts"
	"github.com/vdavid/mailsync/internal/db"
	"github.com/vdavid/mailsync/internal/models"
	"github.com/vdavid/mailsync/internal/threading"
)

// FolderStats summarizes one folder sync pass.
type FolderStats struct {
	Fetched int
	Saved   int
	New     int
	Skipped int
}

// SyncFolder mirrors a single remote folder into the cache: it selects
// the folder, searches all UIDs, and fetches flags, envelope, and body
// in one batched UID fetch. A message that fails to parse is logged and
// skipped; the rest of the folder still syncs.
func SyncFolder(ctx context.Context, pool *pgxpool.Pool, c *Client, accountID int64, folder *models.Folder) (*FolderStats, error) {
	stats := &FolderStats{}

	if _, err := c.c.Select(folder.Path, true); err != nil {
		return nil, fmt.Errorf("failed to select folder %s: %w", folder.Path, err)
	}

	uids, err := c.c.UidSearch(imap.NewSearchCriteria())
	if err != nil {
		return nil, fmt.Errorf("failed to search folder %s: %w", folder.Path, err)
	}

	if len(uids) == 0 {
		return stats, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{
		imap.FetchUid,
		imap.FetchFlags,
		imap.FetchEnvelope,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)

	go func() {
		done <- c.c.UidFetch(seqSet, items, messages)
	}()

	for imapMsg := range messages {
		stats.Fetched++

		if err := storeMessage(ctx, pool, imapMsg, accountID, folder, stats); err != nil {
			log.Printf("Warning: skipping message UID %d in %s: %v", imapMsg.Uid, folder.Path, err)
			stats.Skipped++
		}
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages from %s: %w", folder.Path, err)
	}

	return stats, nil
}

// storeMessage parses one fetched message and writes it to the cache.
// Attachments and contacts are only recorded the first time a UID is
// seen; the upsert keeps flags and thread links on later passes.
func storeMessage(ctx context.Context, pool *pgxpool.Pool, imapMsg *imap.Message, accountID int64, folder *models.Folder, stats *FolderStats) error {
	msg, attachments, err := ParseMessage(imapMsg, accountID, folder.ID)
	if err != nil {
		return err
	}

	_, err = db.GetMessageByUID(ctx, pool, accountID, folder.ID, msg.IMAPUID)
	isNew := errors.Is(err, db.ErrMessageNotFound)
	if err != nil && !isNew {
		return err
	}

	if err := db.SaveMessage(ctx, pool, msg); err != nil {
		return err
	}
	stats.Saved++

	if isNew {
		stats.New++

		for _, attachment := range attachments {
			attachment.Attachment.MessageID = msg.ID
			if err := db.SaveAttachment(ctx, pool, &attachment.Attachment, attachment.Data); err != nil {
				return err
			}
		}

		if err := contacts.Observe(ctx, pool, msg.FromHeader, msg.ToHeader, msg.CCHeader); err != nil {
			log.Printf("Warning: failed to record contacts for message %d: %v", msg.ID, err)
		}
	}

	if msg.ThreadID == nil {
		if err := threading.Classify(ctx, pool, msg); err != nil {
			return err
		}
	}

	return nil
}
