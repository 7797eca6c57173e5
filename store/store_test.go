package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "run1", "n0", map[string]any{"sum": 15}))

	v, err := s.Get(ctx, "run1", "n0")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"sum": 15}, v)

	_, err = s.Get(ctx, "run1", "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = s.Get(ctx, "other-namespace", "n0")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestHashContentDeterministic(t *testing.T) {
	a := map[string]any{"b": 1, "a": 2}
	b := map[string]any{"a": 2, "b": 1}

	ha, err := HashContent(a)
	require.NoError(t, err)
	hb, err := HashContent(b)
	require.NoError(t, err)

	// encoding/json sorts map keys, so logically-equal maps hash equal
	// regardless of construction order.
	assert.Equal(t, ha, hb)
}

func TestKeysAndDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "run1", "a", 1))
	require.NoError(t, s.Put(ctx, "run1", "b", 2))

	keys, err := s.Keys(ctx, "run1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)

	require.NoError(t, s.Delete(ctx, "run1", "a"))
	keys, err = s.Keys(ctx, "run1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys)
}
