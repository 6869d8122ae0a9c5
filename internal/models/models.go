// Package models contains the entities shared between the sync engine,
// the cache store, and the API facade.
package models

import "time"

// Account is a mail account added through the OAuth flow. Deleting an
// account cascades to its folders, messages, drafts, and signatures.
type Account struct {
	ID          int64
	Email       string
	DisplayName string
	Provider    string
}

// Folder is a mailbox discovered on the IMAP server, unique per
// (account, path).
type Folder struct {
	ID        int64
	AccountID int64
	Name      string
	Path      string
	ParentID  *int64
}

// Message is a cached copy of a remote message, identified remotely by
// (account, folder, imap_uid).
type Message struct {
	ID              int64
	AccountID       int64
	FolderID        int64
	IMAPUID         int64
	MessageIDHeader string
	FromHeader      string
	ToHeader        string
	CCHeader        string
	Subject         string
	Date            *time.Time
	BodyPlain       string
	BodyHTML        string
	HasAttachments  bool
	IsRead          bool
	IsStarred       bool
	ThreadID        *int64
}

// MessageHeader is the listing projection of a message.
type MessageHeader struct {
	ID             int64
	Subject        string
	From           string
	Date           *time.Time
	IsRead         bool
	HasAttachments bool
	IsStarred      bool
}

// Attachment is attachment metadata; the binary payload lives in a blob
// row keyed 1:1 by the attachment id.
type Attachment struct {
	ID        int64
	MessageID int64
	Filename  string
	MimeType  string
	SizeBytes int64
}

// Thread is an account-scoped conversation grouping keyed by the hash of
// the normalized subject.
type Thread struct {
	ID             int64
	AccountID      int64
	SubjectHash    string
	FirstMessageID int64
	LastMessageID  int64
	MessageCount   int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Contact is a globally (not per-account) deduplicated address-book entry
// mined from observed traffic.
type Contact struct {
	ID       int64
	Email    string
	Name     string
	LastUsed time.Time
	UseCount int64
}

// Draft is an unsent message owned by an account.
type Draft struct {
	ID           int64
	AccountID    int64
	ToAddresses  string
	CCAddresses  string
	BCCAddresses string
	Subject      string
	BodyPlain    string
	BodyHTML     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Signature is a reusable signature block; at most one per account is the
// default.
type Signature struct {
	ID           int64
	AccountID    int64
	Name         string
	ContentHTML  string
	ContentPlain string
	IsDefault    bool
}

// Setting is a key-value application setting.
type Setting struct {
	Key   string
	Value string
}
