package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vdavid/mailsync/internal/config"
	"github.com/vdavid/mailsync/internal/imapsync"
	"github.com/vdavid/mailsync/internal/models"
)

func testEngine() *Engine {
	cfg := &config.Config{
		SyncInterval:      5 * time.Minute,
		ManualSyncTimeout: time.Minute,
	}
	return New(cfg, nil, nil)
}

func TestTryLock(t *testing.T) {
	e := testEngine()

	assert.True(t, e.tryLock(1))
	assert.False(t, e.tryLock(1), "second lock on same account must fail")
	assert.True(t, e.tryLock(2), "other accounts are independent")

	e.unlock(1)
	assert.True(t, e.tryLock(1), "lock is reusable after unlock")
}

func TestSyncAccountRefusesConcurrentPass(t *testing.T) {
	e := testEngine()
	account := &models.Account{ID: 1, Email: "user@gmail.com"}

	require.True(t, e.tryLock(account.ID))
	defer e.unlock(account.ID)

	result := e.syncAccount(context.Background(), account)
	assert.ErrorIs(t, result.Err, ErrSyncInProgress)
}

func TestSyncAccountAuthFailureIsNotRetried(t *testing.T) {
	e := testEngine()

	var attempts int
	e.connect = func(ctx context.Context, account *models.Account) (*imapsync.Client, error) {
		attempts++
		return nil, imapsync.ErrAuthRejected
	}

	account := &models.Account{ID: 1, Email: "user@gmail.com"}
	result := e.syncAccount(context.Background(), account)

	assert.ErrorIs(t, result.Err, imapsync.ErrAuthRejected)
	assert.Equal(t, 1, attempts, "rejected credentials must not be retried")
}

func TestSyncAccountReleasesLockOnFailure(t *testing.T) {
	e := testEngine()
	e.connect = func(ctx context.Context, account *models.Account) (*imapsync.Client, error) {
		return nil, imapsync.ErrAuthRejected
	}

	account := &models.Account{ID: 1, Email: "user@gmail.com"}
	_ = e.syncAccount(context.Background(), account)

	assert.True(t, e.tryLock(account.ID), "lock must be released after a failed pass")
}

func TestFolderFailureDoesNotAbortSiblings(t *testing.T) {
	e := testEngine()

	selectFailed := errors.New("mailbox doesn't exist: Broken")
	e.syncFolder = func(ctx context.Context, pool *pgxpool.Pool, c *imapsync.Client, accountID int64, folder *models.Folder) (*imapsync.FolderStats, error) {
		if folder.Path == "Broken" {
			return nil, selectFailed
		}
		return &imapsync.FolderStats{Fetched: 2, Saved: 2, New: 1}, nil
	}

	folders := []*models.Folder{
		{Path: "INBOX"},
		{Path: "Broken"},
		{Path: "Archive"},
	}

	var result AccountResult
	e.syncFolderSet(context.Background(), nil, 1, folders, &result)

	assert.NoError(t, result.Err, "a folder failure must not fail the pass")
	assert.Equal(t, 4, result.Fetched, "folders after the failed one must still sync")
	assert.Equal(t, 2, result.New)
	require.Len(t, result.FolderErrors, 1)
	assert.Equal(t, "Broken", result.FolderErrors[0].Path)
	assert.ErrorIs(t, result.FolderErrors[0].Err, selectFailed)
}

func TestFolderSetStopsOnContextCancel(t *testing.T) {
	e := testEngine()

	var calls int
	e.syncFolder = func(ctx context.Context, pool *pgxpool.Pool, c *imapsync.Client, accountID int64, folder *models.Folder) (*imapsync.FolderStats, error) {
		calls++
		return &imapsync.FolderStats{}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var result AccountResult
	e.syncFolderSet(ctx, nil, 1, []*models.Folder{{Path: "INBOX"}, {Path: "Archive"}}, &result)

	assert.ErrorIs(t, result.Err, context.Canceled)
	assert.Zero(t, calls)
}

func TestConnectWithRetryStopsOnContextCancel(t *testing.T) {
	e := testEngine()

	transient := errors.New("connection reset")
	e.connect = func(ctx context.Context, account *models.Account) (*imapsync.Client, error) {
		return nil, transient
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.connectWithRetry(ctx, &models.Account{ID: 1})
	assert.Error(t, err)
}

func TestReportFailed(t *testing.T) {
	report := &Report{
		Results: []AccountResult{
			{AccountID: 1, Email: "ok@gmail.com"},
			{AccountID: 2, Email: "bad@gmail.com", Err: imapsync.ErrConnect},
			{AccountID: 3, Email: "fine@outlook.com"},
		},
	}

	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, int64(2), failed[0].AccountID)
}
