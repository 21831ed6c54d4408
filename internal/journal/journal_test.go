package journal

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestJournal opens a journal in a temp directory.
func createTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		j, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, j.Append(ctx, Entry{Seq: int64(i + 1), Name: "entity:created", Payload: "{}"}))
		require.NoError(t, j.Close())
	}

	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	entries, err := j.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	version, err := j.pragma(ctx, "user_version")
	require.NoError(t, err)
	assert.Equal(t, "1", version)
}

func TestOpen_UpgradesOlderJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j, err := Open(path)
	require.NoError(t, err)
	_, err = j.db.ExecContext(ctx, "DROP INDEX idx_events_entity; PRAGMA user_version = 0")
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()

	var n int
	require.NoError(t, j.db.QueryRowContext(ctx,
		"SELECT count(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_events_entity'").Scan(&n))
	assert.Equal(t, 1, n)

	version, err := j.pragma(ctx, "user_version")
	require.NoError(t, err)
	assert.Equal(t, "1", version)
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/journal.db")
	assert.Error(t, err)
}

func TestClose_NilDB(t *testing.T) {
	j := &Journal{}
	assert.NoError(t, j.Close())
}

func TestPragmas(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	tests := map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1", // NORMAL
		"busy_timeout": "5000",
	}
	for name, want := range tests {
		got, err := j.pragma(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}

func TestAppend_IdempotentOnSeq(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Append(ctx, Entry{Seq: 1, Name: "entity:created", EntityID: "a", Payload: `{"id":"a"}`}))
	require.NoError(t, j.Append(ctx, Entry{Seq: 1, Name: "entity:deleted", EntityID: "b", Payload: `{"id":"b"}`}))

	entries, err := j.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "entity:created", entries[0].Name)
}

func TestList_OrderAndFilter(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	for _, e := range []Entry{
		{Seq: 3, Name: "entity:updated", EntityID: "a", Payload: "{}"},
		{Seq: 1, Name: "entity:init", Payload: `"users.csv"`},
		{Seq: 2, Name: "entity:created", EntityID: "a", Payload: "{}"},
		{Seq: 4, Name: "entity:created", EntityID: "b", Payload: "{}"},
	} {
		require.NoError(t, j.Append(ctx, e))
	}

	all, err := j.List(ctx, Filter{})
	require.NoError(t, err)
	var seqs []int64
	for _, e := range all {
		seqs = append(seqs, e.Seq)
	}
	assert.Equal(t, []int64{1, 2, 3, 4}, seqs)

	created, err := j.List(ctx, Filter{Name: "entity:created"})
	require.NoError(t, err)
	assert.Len(t, created, 2)

	forA, err := j.List(ctx, Filter{EntityID: "a"})
	require.NoError(t, err)
	assert.Len(t, forA, 2)

	both, err := j.List(ctx, Filter{Name: "entity:created", EntityID: "b"})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, int64(4), both[0].Seq)

	none, err := j.List(ctx, Filter{Name: "nope"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestLastSeq(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	seq, err := j.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	require.NoError(t, j.Append(ctx, Entry{Seq: 7, Name: "x", Payload: "{}"}))
	seq, err = j.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), seq)
}

func TestClock(t *testing.T) {
	c := NewClockAt(5)
	assert.Equal(t, int64(5), c.Current())
	assert.Equal(t, int64(6), c.Next())
	assert.Equal(t, int64(7), c.Next())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 100; k++ {
				c.Next()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1007), c.Current())
}
