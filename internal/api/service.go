// Package api is the facade the UI layer calls. It validates inputs,
// delegates to the cache store, and triggers sync and send operations.
// Everything it returns comes from the local cache; nothing here waits
// on the network except Refresh and Send.
package api

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vdavid/mailsync/internal/auth"
	"github.com/vdavid/mailsync/internal/db"
	"github.com/vdavid/mailsync/internal/models"
	"github.com/vdavid/mailsync/internal/smtpout"
	"github.com/vdavid/mailsync/internal/syncer"
)

// Service bundles the operations exposed to the UI.
type Service struct {
	pool   *pgxpool.Pool
	authr  *auth.Authenticator
	engine *syncer.Engine
	sender *smtpout.Sender
}

// New creates the Service.
func New(pool *pgxpool.Pool, authr *auth.Authenticator, engine *syncer.Engine, sender *smtpout.Sender) *Service {
	return &Service{
		pool:   pool,
		authr:  authr,
		engine: engine,
		sender: sender,
	}
}

// BeginAuth starts adding an account and returns the authorization URL
// to open in a browser, plus the state identifying the flow.
func (s *Service) BeginAuth(providerName string) (authURL, state string, err error) {
	return s.authr.BeginAuth(providerName)
}

// BeginAuthForEmail is BeginAuth with the provider inferred from the
// address's domain.
func (s *Service) BeginAuthForEmail(email string) (authURL, state string, err error) {
	return s.authr.BeginAuthForEmail(email)
}

// CompleteAuth finishes adding an account from the OAuth callback.
func (s *Service) CompleteAuth(ctx context.Context, state, code string) (*models.Account, error) {
	return s.authr.CompleteAuth(ctx, s.pool, state, code)
}

// Accounts lists the configured accounts.
func (s *Service) Accounts(ctx context.Context) ([]*models.Account, error) {
	return db.GetAccounts(ctx, s.pool)
}

// RemoveAccount deletes an account, its cached mail, and its stored
// refresh token.
func (s *Service) RemoveAccount(ctx context.Context, accountID int64) error {
	if err := db.DeleteAccount(ctx, s.pool, accountID); err != nil {
		return err
	}
	return s.authr.Forget(accountID)
}

// Folders lists the cached folders of an account.
func (s *Service) Folders(ctx context.Context, accountID int64) ([]*models.Folder, error) {
	return db.GetFolders(ctx, s.pool, accountID)
}

// Refresh runs an on-demand sync for one account and reports what it
// did.
func (s *Service) Refresh(ctx context.Context, accountID int64) (*syncer.AccountResult, error) {
	return s.engine.SyncOne(ctx, accountID)
}
