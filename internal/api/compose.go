package api

import (
	"context"

	"github.com/vdavid/mailsync/internal/contacts"
	"github.com/vdavid/mailsync/internal/db"
	"github.com/vdavid/mailsync/internal/models"
	"github.com/vdavid/mailsync/internal/smtpout"
)

// SendRequest is a composed message to submit.
type SendRequest struct {
	AccountID int64
	To        []string
	CC        []string
	BCC       []string
	Subject   string
	BodyPlain string
	BodyHTML  string
}

// Send validates and submits a composed message, then records its
// recipients as contacts.
func (s *Service) Send(ctx context.Context, req *SendRequest) error {
	if err := validateCompose(req.To, req.CC, req.BCC, req.Subject, req.BodyPlain, req.BodyHTML); err != nil {
		return err
	}

	account, err := db.GetAccount(ctx, s.pool, req.AccountID)
	if err != nil {
		return err
	}

	err = s.sender.Send(ctx, account, &smtpout.Outgoing{
		To:        req.To,
		CC:        req.CC,
		BCC:       req.BCC,
		Subject:   req.Subject,
		BodyPlain: req.BodyPlain,
		BodyHTML:  req.BodyHTML,
	})
	if err != nil {
		return err
	}

	headers := append(append(append([]string{}, req.To...), req.CC...), req.BCC...)
	return contacts.Observe(ctx, s.pool, headers...)
}

// SaveDraft validates and stores a draft.
func (s *Service) SaveDraft(ctx context.Context, draft *models.Draft) error {
	if err := validateSubject(draft.Subject); err != nil {
		return err
	}
	if err := validateBody(draft.BodyPlain); err != nil {
		return err
	}
	if err := validateBody(draft.BodyHTML); err != nil {
		return err
	}
	if err := validateAddressHeader("to", draft.ToAddresses); err != nil {
		return err
	}
	if err := validateAddressHeader("cc", draft.CCAddresses); err != nil {
		return err
	}
	if err := validateAddressHeader("bcc", draft.BCCAddresses); err != nil {
		return err
	}

	return db.SaveDraft(ctx, s.pool, draft)
}

// Draft returns a draft by id.
func (s *Service) Draft(ctx context.Context, draftID int64) (*models.Draft, error) {
	return db.GetDraft(ctx, s.pool, draftID)
}

// Drafts lists the account's drafts.
func (s *Service) Drafts(ctx context.Context, accountID int64) ([]*models.Draft, error) {
	return db.GetDrafts(ctx, s.pool, accountID)
}

// DeleteDraft removes a draft.
func (s *Service) DeleteDraft(ctx context.Context, draftID int64) error {
	return db.DeleteDraft(ctx, s.pool, draftID)
}

// SaveSignature stores a signature, keeping at most one default per
// account.
func (s *Service) SaveSignature(ctx context.Context, signature *models.Signature) error {
	return db.SaveSignature(ctx, s.pool, signature)
}

// Signatures lists the account's signatures.
func (s *Service) Signatures(ctx context.Context, accountID int64) ([]*models.Signature, error) {
	return db.GetSignatures(ctx, s.pool, accountID)
}

// DeleteSignature removes a signature.
func (s *Service) DeleteSignature(ctx context.Context, signatureID int64) error {
	return db.DeleteSignature(ctx, s.pool, signatureID)
}

// SetSetting stores a settings key/value pair.
func (s *Service) SetSetting(ctx context.Context, key, value string) error {
	return db.SetSetting(ctx, s.pool, key, value)
}

// Setting returns a settings value.
func (s *Service) Setting(ctx context.Context, key string) (string, error) {
	return db.GetSetting(ctx, s.pool, key)
}

// Settings returns all stored settings.
func (s *Service) Settings(ctx context.Context) ([]*models.Setting, error) {
	return db.GetSettings(ctx, s.pool)
}

// SearchContacts returns matching contacts for autocomplete, most used
// first.
func (s *Service) SearchContacts(ctx context.Context, query string, limit int) ([]*models.Contact, error) {
	if err := validatePagination(limit, 0); err != nil {
		return nil, err
	}
	return contacts.Search(ctx, s.pool, query, limit)
}

// RecentContacts returns the most recently used contacts.
func (s *Service) RecentContacts(ctx context.Context, limit int) ([]*models.Contact, error) {
	if err := validatePagination(limit, 0); err != nil {
		return nil, err
	}
	return contacts.Recent(ctx, s.pool, limit)
}

// FrequentContacts returns the most used contacts.
func (s *Service) FrequentContacts(ctx context.Context, limit int) ([]*models.Contact, error) {
	if err := validatePagination(limit, 0); err != nil {
		return nil, err
	}
	return contacts.Frequent(ctx, s.pool, limit)
}
