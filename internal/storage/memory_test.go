package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStrings(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	v, err := m.Get(ctx, "missing")
	require.NoError(t, err)
	require.Equal(t, "", v)

	require.NoError(t, m.Set(ctx, "k", "v", 0))
	v, err = m.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", v)

	ok, err := m.Exists(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, m.Del(ctx, "k"))
	ok, err = m.Exists(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "short", "1", 20*time.Millisecond))

	ok, err := m.Exists(ctx, "short")
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)

	ok, err = m.Exists(ctx, "short")
	require.NoError(t, err)
	require.False(t, ok)

	v, err := m.Get(ctx, "short")
	require.NoError(t, err)
	require.Equal(t, "", v)
}

func TestMemoryHashes(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	h, err := m.HGetAll(ctx, "h")
	require.NoError(t, err)
	require.Empty(t, h)

	require.NoError(t, m.HSet(ctx, "h", map[string]string{"a": "1", "b": "x"}))
	require.NoError(t, m.HSet(ctx, "h", map[string]string{"b": "y"}))

	h, err = m.HGetAll(ctx, "h")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"a": "1", "b": "y"}, h)

	n, err := m.HIncrBy(ctx, "h", "a", 2)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	n, err = m.HIncrBy(ctx, "h", "fresh", 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, err = m.HIncrBy(ctx, "h", "b", 1)
	require.Error(t, err, "non-numeric field must not be incremented")
}

func TestMemoryListsAndSets(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.RPush(ctx, "l", "a"))
	require.NoError(t, m.RPush(ctx, "l", "b"))
	items, err := m.LRange(ctx, "l")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, items)

	require.NoError(t, m.SAdd(ctx, "s", "x"))
	require.NoError(t, m.SAdd(ctx, "s", "x"))
	ok, err := m.SIsMember(ctx, "s", "x")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = m.SIsMember(ctx, "s", "y")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, m.Del(ctx, "l", "s"))
	items, err = m.LRange(ctx, "l")
	require.NoError(t, err)
	require.Empty(t, items)
	ok, err = m.SIsMember(ctx, "s", "x")
	require.NoError(t, err)
	require.False(t, ok)
}
