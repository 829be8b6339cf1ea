package journal

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openInMemory(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	j := openInMemory(t)

	for i := 0; i < 5; i++ {
		e := &Entry{Source: "artifact", Changed: []string{fmt.Sprintf("app.ns%d", i)}}
		require.NoError(t, j.Record(ctx, e))
		assert.NotEqual(t, uuid.Nil, e.ID)
		assert.False(t, e.AppliedAt.IsZero())
	}

	all, err := j.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, e := range all {
		assert.Equal(t, []string{fmt.Sprintf("app.ns%d", i)}, e.Changed, "entries are listed oldest first")
	}

	recent, err := j.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, []string{"app.ns4"}, recent[1].Changed)
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	j := openInMemory(t)

	e := &Entry{Source: "edit", Error: "content does not match expected value", ErrorKind: "StaleMatch"}
	require.NoError(t, j.Record(ctx, e))

	got, err := j.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "StaleMatch", got.ErrorKind)

	_, err = j.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPersistentJournalSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	j, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, j.Record(ctx, &Entry{Source: "load", EntryFn: "app.main/main!"}))
	require.NoError(t, j.Close())

	j, err = Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer j.Close()

	all, err := j.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "app.main/main!", all[0].EntryFn)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}
