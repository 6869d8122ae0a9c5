package contacts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vdavid/mailsync/internal/testutil"
)

func TestObserve(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()

	require.NoError(t, Observe(ctx, pool, "Alice <alice@example.com>", "bob@example.com"))
	require.NoError(t, Observe(ctx, pool, "alice@example.com"))

	results, err := Frequent(ctx, pool, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Alice was seen twice and ranks first.
	assert.Equal(t, "alice@example.com", results[0].Email)
	assert.Equal(t, int64(2), results[0].UseCount)
	assert.Equal(t, "Alice", results[0].Name, "bare re-observation must not clear the name")

	assert.Equal(t, "bob@example.com", results[1].Email)
	assert.Equal(t, int64(1), results[1].UseCount)
}

func TestObserveUpdatesName(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()

	require.NoError(t, Observe(ctx, pool, "carol@example.com"))
	require.NoError(t, Observe(ctx, pool, "Carol Jones <carol@example.com>"))

	results, err := Recent(ctx, pool, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Carol Jones", results[0].Name)
}

func TestSearchContacts(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()

	require.NoError(t, Observe(ctx, pool, "Alice <alice@example.com>", "bob@other.org"))

	byEmail, err := Search(ctx, pool, "other", 10)
	require.NoError(t, err)
	require.Len(t, byEmail, 1)
	assert.Equal(t, "bob@other.org", byEmail[0].Email)

	byName, err := Search(ctx, pool, "ali", 10)
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "alice@example.com", byName[0].Email)

	none, err := Search(ctx, pool, "zzz", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
