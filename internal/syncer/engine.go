// Package syncer schedules mail synchronization: a periodic full pass
// over every account plus on-demand refreshes. Accounts sync
// independently; one account failing never blocks the others.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vdavid/mailsync/internal/auth"
	"github.com/vdavid/mailsync/internal/config"
	"github.com/vdavid/mailsync/internal/db"
	"github.com/vdavid/mailsync/internal/imapsync"
	"github.com/vdavid/mailsync/internal/models"
)

// ErrSyncInProgress is returned when a sync is requested for an account
// that is already syncing.
var ErrSyncInProgress = errors.New("sync already in progress for account")

// connectRetries bounds how often a transient connection failure is
// retried within one sync pass.
const connectRetries = 3

// AccountResult is the outcome of syncing one account.
type AccountResult struct {
	AccountID int64
	Email     string
	Folders   int
	Fetched   int
	Saved     int
	New       int
	Skipped   int

	// FolderErrors lists folders that failed within an otherwise
	// completed pass; Err is set only when the whole pass failed.
	FolderErrors []FolderError
	Err          error
}

// FolderError records a single folder's sync failure.
type FolderError struct {
	Path string
	Err  error
}

// Report aggregates the results of one full sync pass.
type Report struct {
	Started  time.Time
	Finished time.Time
	Results  []AccountResult
}

// Failed returns the results of accounts whose sync failed.
func (r *Report) Failed() []AccountResult {
	var failed []AccountResult
	for _, result := range r.Results {
		if result.Err != nil {
			failed = append(failed, result)
		}
	}
	return failed
}

// Engine runs the sync schedule.
type Engine struct {
	cfg   *config.Config
	pool  *pgxpool.Pool
	authr *auth.Authenticator

	mu       sync.Mutex
	inFlight map[int64]struct{}

	// connect establishes an authenticated session for an account, and
	// syncFolder mirrors one folder. Tests replace them to avoid real
	// servers.
	connect    func(ctx context.Context, account *models.Account) (*imapsync.Client, error)
	syncFolder func(ctx context.Context, pool *pgxpool.Pool, c *imapsync.Client, accountID int64, folder *models.Folder) (*imapsync.FolderStats, error)
}

// New creates an Engine that syncs through real provider connections.
func New(cfg *config.Config, pool *pgxpool.Pool, authr *auth.Authenticator) *Engine {
	e := &Engine{
		cfg:      cfg,
		pool:     pool,
		authr:    authr,
		inFlight: make(map[int64]struct{}),
	}
	e.connect = e.dialAccount
	e.syncFolder = imapsync.SyncFolder
	return e
}

// Run performs an initial sync pass, then syncs every account on the
// configured interval until the context is canceled.
func (e *Engine) Run(ctx context.Context) {
	e.logReport(e.SyncAll(ctx))

	ticker := time.NewTicker(e.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.logReport(e.SyncAll(ctx))
		}
	}
}

// SyncAll syncs every account, continuing past per-account failures.
func (e *Engine) SyncAll(ctx context.Context) *Report {
	report := &Report{Started: time.Now()}
	defer func() { report.Finished = time.Now() }()

	accounts, err := db.GetAccounts(ctx, e.pool)
	if err != nil {
		log.Printf("Warning: failed to list accounts for sync: %v", err)
		return report
	}

	for _, account := range accounts {
		result := e.syncAccount(ctx, account)
		report.Results = append(report.Results, result)
	}

	return report
}

// SyncOne syncs a single account on demand, bounded by the manual sync
// timeout.
func (e *Engine) SyncOne(ctx context.Context, accountID int64) (*AccountResult, error) {
	account, err := db.GetAccount(ctx, e.pool, accountID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.ManualSyncTimeout)
	defer cancel()

	result := e.syncAccount(ctx, account)
	if result.Err != nil {
		return &result, result.Err
	}
	return &result, nil
}

// WatchAccount keeps an IDLE session open on the account's INBOX and
// triggers a sync whenever the server reports new mail. Blocks until the
// context is canceled.
func (e *Engine) WatchAccount(ctx context.Context, account *models.Account) {
	imapsync.WatchInbox(ctx,
		func(ctx context.Context) (*imapsync.Client, error) {
			return e.connect(ctx, account)
		},
		func(ctx context.Context) {
			if _, err := e.SyncOne(ctx, account.ID); err != nil && !errors.Is(err, ErrSyncInProgress) {
				log.Printf("Warning: inbox-triggered sync failed for %s: %v", account.Email, err)
			}
		},
	)
}

// syncAccount runs one full pass for an account: connect, mirror the
// folder list, then sync each folder. At most one pass runs per account
// at a time.
func (e *Engine) syncAccount(ctx context.Context, account *models.Account) AccountResult {
	result := AccountResult{AccountID: account.ID, Email: account.Email}

	if !e.tryLock(account.ID) {
		result.Err = ErrSyncInProgress
		return result
	}
	defer e.unlock(account.ID)

	c, err := e.connectWithRetry(ctx, account)
	if err != nil {
		result.Err = err
		return result
	}
	defer func() { _ = c.Logout() }()

	folders, err := imapsync.SyncFolders(ctx, e.pool, c, account.ID)
	if err != nil {
		result.Err = fmt.Errorf("failed to sync folders for %s: %w", account.Email, err)
		return result
	}
	result.Folders = len(folders)

	e.syncFolderSet(ctx, c, account.ID, folders, &result)
	return result
}

// syncFolderSet mirrors each folder in turn. One folder failing must not
// keep its siblings from syncing, so failures are recorded and the loop
// continues; only context cancelation stops the pass.
func (e *Engine) syncFolderSet(ctx context.Context, c *imapsync.Client, accountID int64, folders []*models.Folder, result *AccountResult) {
	for _, folder := range folders {
		if ctx.Err() != nil {
			result.Err = ctx.Err()
			return
		}

		stats, err := e.syncFolder(ctx, e.pool, c, accountID, folder)
		if err != nil {
			result.FolderErrors = append(result.FolderErrors, FolderError{Path: folder.Path, Err: err})
			continue
		}

		result.Fetched += stats.Fetched
		result.Saved += stats.Saved
		result.New += stats.New
		result.Skipped += stats.Skipped
	}
}

// connectWithRetry retries transient connection failures with
// exponential backoff. Rejected credentials are permanent: retrying
// with the same token cannot succeed.
func (e *Engine) connectWithRetry(ctx context.Context, account *models.Account) (*imapsync.Client, error) {
	operation := func() (*imapsync.Client, error) {
		c, err := e.connect(ctx, account)
		if err != nil {
			if errors.Is(err, imapsync.ErrAuthRejected) || errors.Is(err, auth.ErrMissingRefreshToken) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return c, nil
	}

	return backoff.RetryWithData(operation,
		backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), connectRetries), ctx))
}

// dialAccount opens and authenticates a provider connection.
func (e *Engine) dialAccount(ctx context.Context, account *models.Account) (*imapsync.Client, error) {
	provider, err := e.authr.ProviderFor(account)
	if err != nil {
		return nil, err
	}

	token, err := e.authr.AccessToken(ctx, account)
	if err != nil {
		return nil, err
	}

	c, err := imapsync.Connect(provider.IMAPAddr, true)
	if err != nil {
		return nil, err
	}

	if err := c.Authenticate(account.Email, token); err != nil {
		_ = c.Logout()
		return nil, err
	}

	return c, nil
}

func (e *Engine) tryLock(accountID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, busy := e.inFlight[accountID]; busy {
		return false
	}
	e.inFlight[accountID] = struct{}{}
	return true
}

func (e *Engine) unlock(accountID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, accountID)
}

func (e *Engine) logReport(report *Report) {
	for _, result := range report.Results {
		if result.Err != nil {
			log.Printf("Warning: sync failed for %s: %v", result.Email, result.Err)
			continue
		}
		for _, fe := range result.FolderErrors {
			log.Printf("Warning: failed to sync folder %s for %s: %v", fe.Path, result.Email, fe.Err)
		}
		log.Printf("Synced %s: %d folders, %d messages (%d new, %d skipped) in %s",
			result.Email, result.Folders, result.Saved, result.New, result.Skipped,
			report.Finished.Sub(report.Started).Round(time.Millisecond))
	}
}
