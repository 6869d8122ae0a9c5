package db_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vdavid/mailsync/internal/db"
	"github.com/vdavid/mailsync/internal/models"
	"github.com/vdavid/mailsync/internal/testutil"
	"github.com/vdavid/mailsync/internal/threading"
)

func TestThreadLifecycle(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	account, folder := newAccountAndFolder(t, ctx, pool)

	first := newMessage(account, folder, 1, "Project kickoff")
	reply := newMessage(account, folder, 2, "Re: Project kickoff")
	other := newMessage(account, folder, 3, "Lunch?")

	for _, msg := range []*models.Message{first, reply, other} {
		require.NoError(t, db.SaveMessage(ctx, pool, msg))
		require.NoError(t, threading.Classify(ctx, pool, msg))
	}

	require.NotNil(t, first.ThreadID)
	require.NotNil(t, reply.ThreadID)
	assert.Equal(t, *first.ThreadID, *reply.ThreadID, "reply must join the original's thread")
	assert.NotEqual(t, *first.ThreadID, *other.ThreadID)

	thread, err := db.GetThread(ctx, pool, *first.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), thread.MessageCount)
	assert.Equal(t, first.ID, thread.FirstMessageID)
	assert.Equal(t, reply.ID, thread.LastMessageID)

	messages, err := db.GetThreadMessages(ctx, pool, thread.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	threads, err := db.GetThreadsForAccount(ctx, pool, account.ID)
	require.NoError(t, err)
	assert.Len(t, threads, 2)
}

func TestDeleteMessageRepairsThread(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	account, folder := newAccountAndFolder(t, ctx, pool)

	first := newMessage(account, folder, 1, "Planning")
	second := newMessage(account, folder, 2, "Re: Planning")
	third := newMessage(account, folder, 3, "Re: Re: Planning")

	for _, msg := range []*models.Message{first, second, third} {
		require.NoError(t, db.SaveMessage(ctx, pool, msg))
		require.NoError(t, threading.Classify(ctx, pool, msg))
	}
	threadID := *first.ThreadID

	// Deleting the last message repoints the thread at the survivors.
	require.NoError(t, db.DeleteMessage(ctx, pool, third.ID))

	thread, err := db.GetThread(ctx, pool, threadID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), thread.MessageCount)
	assert.Equal(t, first.ID, thread.FirstMessageID)
	assert.Equal(t, second.ID, thread.LastMessageID)

	// Deleting the first message promotes the remaining one.
	require.NoError(t, db.DeleteMessage(ctx, pool, first.ID))

	thread, err = db.GetThread(ctx, pool, threadID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), thread.MessageCount)
	assert.Equal(t, second.ID, thread.FirstMessageID)
	assert.Equal(t, second.ID, thread.LastMessageID)

	// Deleting the last member removes the thread itself.
	require.NoError(t, db.DeleteMessage(ctx, pool, second.ID))

	_, err = db.GetThread(ctx, pool, threadID)
	assert.ErrorIs(t, err, db.ErrThreadNotFound)
}

func TestBulkDeleteRepairsAcrossThreads(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	account, folder := newAccountAndFolder(t, ctx, pool)

	a1 := newMessage(account, folder, 1, "Alpha")
	a2 := newMessage(account, folder, 2, "Re: Alpha")
	b1 := newMessage(account, folder, 3, "Beta")

	for _, msg := range []*models.Message{a1, a2, b1} {
		require.NoError(t, db.SaveMessage(ctx, pool, msg))
		require.NoError(t, threading.Classify(ctx, pool, msg))
	}

	require.NoError(t, db.BulkDeleteMessages(ctx, pool, []int64{a2.ID, b1.ID}))

	// Alpha survives with one member, Beta is gone entirely.
	thread, err := db.GetThread(ctx, pool, *a1.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), thread.MessageCount)

	_, err = db.GetThread(ctx, pool, *b1.ThreadID)
	assert.ErrorIs(t, err, db.ErrThreadNotFound)
}
