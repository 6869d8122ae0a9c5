package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/vdavid/mailsync/internal/db"
	"github.com/vdavid/mailsync/internal/models"
)

// MessageDetail is a full message plus its attachment metadata.
type MessageDetail struct {
	Message     *models.Message
	Attachments []*models.Attachment
}

// Messages returns one page of a folder's message headers, newest
// first.
func (s *Service) Messages(ctx context.Context, folderID int64, limit, offset int) ([]*models.MessageHeader, error) {
	if err := validatePagination(limit, offset); err != nil {
		return nil, err
	}
	return db.ListMessages(ctx, s.pool, folderID, limit, offset)
}

// MessageCount returns how many messages a folder holds.
func (s *Service) MessageCount(ctx context.Context, folderID int64) (int64, error) {
	return db.CountMessages(ctx, s.pool, folderID)
}

// Message returns a message with its attachment metadata.
func (s *Service) Message(ctx context.Context, messageID int64) (*MessageDetail, error) {
	msg, err := db.GetMessage(ctx, s.pool, messageID)
	if err != nil {
		return nil, err
	}

	attachments, err := db.GetAttachmentsForMessage(ctx, s.pool, messageID)
	if err != nil {
		return nil, err
	}

	return &MessageDetail{Message: msg, Attachments: attachments}, nil
}

// AttachmentData returns an attachment's content.
func (s *Service) AttachmentData(ctx context.Context, attachmentID int64) ([]byte, error) {
	return db.GetAttachmentBlob(ctx, s.pool, attachmentID)
}

// SetRead updates a message's read flag.
func (s *Service) SetRead(ctx context.Context, messageID int64, isRead bool) error {
	return db.SetMessageRead(ctx, s.pool, messageID, isRead)
}

// SetStarred updates a message's starred flag.
func (s *Service) SetStarred(ctx context.Context, messageID int64, isStarred bool) error {
	return db.SetMessageStarred(ctx, s.pool, messageID, isStarred)
}

// Move moves a message to another folder.
func (s *Service) Move(ctx context.Context, messageID, targetFolderID int64) error {
	return db.MoveMessage(ctx, s.pool, messageID, targetFolderID)
}

// Delete removes a message from the cache.
func (s *Service) Delete(ctx context.Context, messageID int64) error {
	return db.DeleteMessage(ctx, s.pool, messageID)
}

// BulkSetRead updates the read flag on many messages.
func (s *Service) BulkSetRead(ctx context.Context, messageIDs []int64, isRead bool) error {
	return db.BulkSetRead(ctx, s.pool, messageIDs, isRead)
}

// BulkSetStarred updates the starred flag on many messages.
func (s *Service) BulkSetStarred(ctx context.Context, messageIDs []int64, isStarred bool) error {
	return db.BulkSetStarred(ctx, s.pool, messageIDs, isStarred)
}

// BulkDelete removes many messages from the cache.
func (s *Service) BulkDelete(ctx context.Context, messageIDs []int64) error {
	return db.BulkDeleteMessages(ctx, s.pool, messageIDs)
}

// Starred returns the account's starred messages.
func (s *Service) Starred(ctx context.Context, accountID int64) ([]*models.MessageHeader, error) {
	return db.GetStarredMessages(ctx, s.pool, accountID)
}

// Search runs a full-text search over the account's cached messages.
func (s *Service) Search(ctx context.Context, accountID int64, query string, limit, offset int) ([]*models.MessageHeader, error) {
	if err := validatePagination(limit, offset); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: search query is empty", ErrInvalidInput)
	}
	return db.SearchMessages(ctx, s.pool, accountID, query, limit, offset)
}

// Thread returns a conversation with its messages in chronological
// order.
func (s *Service) Thread(ctx context.Context, threadID int64) (*models.Thread, []*models.MessageHeader, error) {
	thread, err := db.GetThread(ctx, s.pool, threadID)
	if err != nil {
		return nil, nil, err
	}

	messages, err := db.GetThreadMessages(ctx, s.pool, threadID)
	if err != nil {
		return nil, nil, err
	}

	return thread, messages, nil
}

// Threads lists the account's conversations, most recently active
// first.
func (s *Service) Threads(ctx context.Context, accountID int64) ([]*models.Thread, error) {
	return db.GetThreadsForAccount(ctx, s.pool, accountID)
}
