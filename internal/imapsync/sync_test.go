package imapsync

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vdavid/mailsync/internal/db"
	"github.com/vdavid/mailsync/internal/models"
	"github.com/vdavid/mailsync/internal/testutil"
)

// The memory backend ships with one message already in INBOX.
const preexistingMessages = 1

func connectTestServer(t *testing.T, srv *testutil.TestIMAPServer) *Client {
	t.Helper()

	c, err := Connect(srv.Address, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Logout() })

	require.NoError(t, c.Login(srv.Username(), srv.Password()))
	return c
}

func findFolder(t *testing.T, folders []*models.Folder, path string) *models.Folder {
	t.Helper()
	for _, folder := range folders {
		if folder.Path == path {
			return folder
		}
	}
	t.Fatalf("folder %s not found", path)
	return nil
}

func TestSyncFolders(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()
	srv := testutil.NewTestIMAPServer(t)

	ctx := context.Background()
	account, err := db.CreateAccount(ctx, pool, "test@gmail.com", "Test", "google")
	require.NoError(t, err)

	c := connectTestServer(t, srv)

	folders, err := SyncFolders(ctx, pool, c, account.ID)
	require.NoError(t, err)
	require.NotEmpty(t, folders)
	inbox := findFolder(t, folders, "INBOX")

	// A second discovery pass reuses the same rows.
	again, err := SyncFolders(ctx, pool, c, account.ID)
	require.NoError(t, err)
	assert.Equal(t, inbox.ID, findFolder(t, again, "INBOX").ID)
}

func TestSyncFolderMirrorsInbox(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()
	srv := testutil.NewTestIMAPServer(t)

	ctx := context.Background()
	account, err := db.CreateAccount(ctx, pool, "test@gmail.com", "Test", "google")
	require.NoError(t, err)

	srv.AddMessage(t, "INBOX", "<kickoff@example.com>", "Sync test", "alice@example.com", "test@gmail.com", time.Now().Add(-time.Hour))
	srv.AddMessage(t, "INBOX", "<reply@example.com>", "Re: Sync test", "bob@example.com", "test@gmail.com", time.Now())

	c := connectTestServer(t, srv)

	folders, err := SyncFolders(ctx, pool, c, account.ID)
	require.NoError(t, err)
	inbox := findFolder(t, folders, "INBOX")

	stats, err := SyncFolder(ctx, pool, c, account.ID, inbox)
	require.NoError(t, err)
	assert.Equal(t, preexistingMessages+2, stats.Fetched)
	assert.Equal(t, preexistingMessages+2, stats.New)
	assert.Zero(t, stats.Skipped)

	count, err := db.CountMessages(ctx, pool, inbox.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(preexistingMessages+2), count)

	// The reply joined the original's thread.
	original, err := pooledMessageBySubject(ctx, pool, inbox.ID, "Sync test")
	require.NoError(t, err)
	reply, err := pooledMessageBySubject(ctx, pool, inbox.ID, "Re: Sync test")
	require.NoError(t, err)
	require.NotNil(t, original.ThreadID)
	require.NotNil(t, reply.ThreadID)
	assert.Equal(t, *original.ThreadID, *reply.ThreadID)
}

func TestSyncFolderIsIdempotent(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()
	srv := testutil.NewTestIMAPServer(t)

	ctx := context.Background()
	account, err := db.CreateAccount(ctx, pool, "test@gmail.com", "Test", "google")
	require.NoError(t, err)

	srv.AddMessage(t, "INBOX", "<stable@example.com>", "Stable", "alice@example.com", "test@gmail.com", time.Now())

	c := connectTestServer(t, srv)

	folders, err := SyncFolders(ctx, pool, c, account.ID)
	require.NoError(t, err)
	inbox := findFolder(t, folders, "INBOX")

	first, err := SyncFolder(ctx, pool, c, account.ID, inbox)
	require.NoError(t, err)
	require.Equal(t, preexistingMessages+1, first.New)

	msg, err := pooledMessageBySubject(ctx, pool, inbox.ID, "Stable")
	require.NoError(t, err)
	require.NoError(t, db.SetMessageRead(ctx, pool, msg.ID, true))

	second, err := SyncFolder(ctx, pool, c, account.ID, inbox)
	require.NoError(t, err)
	assert.Zero(t, second.New, "second pass must not treat anything as new")
	assert.Equal(t, first.Fetched, second.Fetched)

	after, err := db.GetMessage(ctx, pool, msg.ID)
	require.NoError(t, err)
	assert.True(t, after.IsRead, "re-sync must preserve local flags")
	assert.NotNil(t, after.ThreadID, "re-sync must preserve the thread link")

	count, err := db.CountMessages(ctx, pool, inbox.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(preexistingMessages+1), count)
}

func pooledMessageBySubject(ctx context.Context, pool *pgxpool.Pool, folderID int64, subject string) (*models.Message, error) {
	var id int64
	err := pool.QueryRow(ctx, `SELECT id FROM messages WHERE folder_id = $1 AND subject = $2`, folderID, subject).Scan(&id)
	if err != nil {
		return nil, err
	}
	return db.GetMessage(ctx, pool, id)
}
