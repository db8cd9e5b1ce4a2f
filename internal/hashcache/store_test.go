package hashcache

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go-copyhash"
)

var _ copyhash.HashCache = (*Store)(nil)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "hashes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_GetSet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	_, ok := s.Get(ctx, "a.png|10|1|average")
	assert.False(t, ok)

	s.Set(ctx, "a.png|10|1|average", "ffff000000000000")
	got, ok := s.Get(ctx, "a.png|10|1|average")
	require.True(t, ok)
	assert.Equal(t, "ffff000000000000", got)

	s.Set(ctx, "a.png|10|1|average", "0000000000000000")
	got, _ = s.Get(ctx, "a.png|10|1|average")
	assert.Equal(t, "0000000000000000", got)

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_Reopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "hashes.db")

	s, err := Open(path)
	require.NoError(t, err)
	s.Set(ctx, "k", "00, 00")
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, ok := s.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "00, 00", got)
}

func TestStore_ConcurrentSet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Set(ctx, string(rune('a'+i)), "00")
		}()
	}
	wg.Wait()

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
}
