package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "db", "cache.db3"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLite_GetPut(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	_, ok, err := store.Get(ctx, BucketCasts, "6546")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, BucketCasts, "6546", []byte(`{"casts":[]}`)))
	require.NoError(t, store.Put(ctx, BucketCasts, "6546", []byte(`{"casts":[1]}`)))

	data, ok, err := store.Get(ctx, BucketCasts, "6546")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"casts":[1]}`, string(data))

	// buckets are independent
	_, ok, err = store.Get(ctx, BucketReplies, "6546")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, BucketConversations, "0xabc", []byte(`{}`)))
	_, ok, err = store.Get(ctx, BucketConversations, "0xabc")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLite_UnknownBucket(t *testing.T) {
	store := openTestStore(t)
	_, _, err := store.Get(context.Background(), Bucket("users"), "1")
	assert.Error(t, err)
}

type payload struct {
	Items []string `json:"items"`
	Next  *string  `json:"next"`
}

func TestGetOrFetch(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	calls := 0
	fetch := func(context.Context) (payload, error) {
		calls++
		return payload{Items: []string{"a", "b"}}, nil
	}

	first, hit, err := GetOrFetch(ctx, store, BucketCasts, "1", zap.NewNop(), fetch)
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := GetOrFetch(ctx, store, BucketCasts, "1", zap.NewNop(), fetch)
	require.NoError(t, err)
	assert.True(t, hit)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestGetOrFetch_FetchErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	boom := errors.New("boom")

	_, _, err := GetOrFetch(ctx, store, BucketReplies, "1", zap.NewNop(), func(context.Context) (payload, error) {
		return payload{}, boom
	})
	assert.ErrorIs(t, err, boom)

	_, ok, err := store.Get(ctx, BucketReplies, "1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetOrFetch_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.Put(ctx, BucketConversations, "0x1", []byte("not json")))

	_, _, err := GetOrFetch(ctx, store, BucketConversations, "0x1", zap.NewNop(), func(context.Context) (payload, error) {
		t.Fatal("fetch must not run on a hit")
		return payload{}, nil
	})
	assert.Error(t, err)
}

func TestSQLite_IntegerKeyRequired(t *testing.T) {
	store := openTestStore(t)
	err := store.Put(context.Background(), BucketCasts, "0xabc", []byte(`{}`))
	assert.Error(t, err)
}
