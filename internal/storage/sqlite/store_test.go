package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/understudybot/understudy/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordSeen_Upsert(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	store.RecordSeen(ctx, "alice", "#lab", "hello")
	store.RecordSeen(ctx, "alice", "#ops", "goodbye")

	records := store.LookupSeen(ctx, "alice")
	require.Len(t, records, 1)
	assert.Equal(t, "alice", records[0].Nick)
	assert.Equal(t, "#ops", records[0].Channel)
	assert.Equal(t, "goodbye", records[0].Message)
}

func TestLookupSeen_Wildcard(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	for _, nick := range []string{"alice", "albert", "bob", "carol"} {
		store.RecordSeen(ctx, nick, "#lab", "hi")
	}

	assert.Len(t, store.LookupSeen(ctx, "al*"), 2)
	assert.Len(t, store.LookupSeen(ctx, "*"), 3, "wildcard lookups cap at 3 records")
	assert.Empty(t, store.LookupSeen(ctx, "zed"))
}

func TestSetFactoid_AppendAndReplace(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	require.True(t, store.SetFactoid(ctx, "alice", "coffee", false, "good", true))
	require.True(t, store.SetFactoid(ctx, "bob", "coffee", false, "hot", false))

	facts := store.GetFactoid(ctx, "coffee")
	require.Len(t, facts, 2)
	assert.Equal(t, "good", facts[0].Value)
	assert.Equal(t, "hot", facts[1].Value)

	// A replacing set wipes all previous values.
	require.True(t, store.SetFactoid(ctx, "carol", "coffee", false, "cold", true))
	facts = store.GetFactoid(ctx, "coffee")
	require.Len(t, facts, 1)
	assert.Equal(t, "cold", facts[0].Value)
	assert.Equal(t, "carol", facts[0].Author)

	// The replace logged a forget event paired with the new set.
	entries := store.FactoidInfo(ctx, "coffee")
	require.Len(t, entries, 4)
	assert.Equal(t, "cold", entries[0].Value)
	assert.True(t, entries[1].Deleted)
}

func TestSetFactoid_LockedItemRefused(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	require.True(t, store.SetFactoid(ctx, "alice", "rules", false, "sacred", true))
	_, err := store.db.Exec(`UPDATE factoids SET locked = 1 WHERE item = ?`, "rules")
	require.NoError(t, err)

	assert.False(t, store.SetFactoid(ctx, "bob", "rules", false, "mutable", true))
	assert.False(t, store.ForgetFactoid(ctx, "rules", "bob"))

	facts := store.GetFactoid(ctx, "rules")
	require.Len(t, facts, 1)
	assert.Equal(t, "sacred", facts[0].Value)

	// Refused mutations leave no history behind.
	assert.Len(t, store.FactoidInfo(ctx, "rules"), 1)
}

func TestForgetFactoid(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	require.True(t, store.SetFactoid(ctx, "alice", "tea", false, "fine", true))
	require.True(t, store.SetFactoid(ctx, "alice", "tea", false, "warm", false))

	assert.True(t, store.ForgetFactoid(ctx, "tea", "bob"))
	assert.Empty(t, store.GetFactoid(ctx, "tea"))

	// Forgetting again is a no-op.
	assert.False(t, store.ForgetFactoid(ctx, "tea", "bob"))

	entries := store.FactoidInfo(ctx, "tea")
	require.NotEmpty(t, entries)
	assert.True(t, entries[0].Deleted)
	assert.Equal(t, "bob", entries[0].Author)
}

func TestFactoidInfo_HistoryAndLimit(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	require.True(t, store.SetFactoid(ctx, "alice", "lore", false, "v1", true))
	for i := 0; i < 5; i++ {
		require.True(t, store.SetFactoid(ctx, "alice", "lore", false, "more", false))
	}

	entries := store.FactoidInfo(ctx, "lore")
	assert.Len(t, entries, 4, "info caps at the 4 most recent events")

	assert.Empty(t, store.FactoidInfo(ctx, "never-set"))
}

func TestGetFactoid_BumpsReferenceCounter(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	require.True(t, store.SetFactoid(ctx, "alice", "cake", false, "a lie", true))

	store.GetFactoid(ctx, "cake")
	store.GetFactoid(ctx, "cake")

	entries := store.FactoidInfo(ctx, "cake")
	require.NotEmpty(t, entries)
	assert.True(t, entries[0].HasRefCount)
	assert.EqualValues(t, 2, entries[0].RefCount)

	// A miss never touches the counter.
	store.GetFactoid(ctx, "pie")
	entries = store.FactoidInfo(ctx, "cake")
	assert.EqualValues(t, 2, entries[0].RefCount)
}

func TestDrainTells_FIFOAndExactlyOnce(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	require.True(t, store.EnqueueTell(ctx, "alice", "bob", "first", false))
	require.True(t, store.EnqueueTell(ctx, "carol", "bob", "second", true))
	require.True(t, store.EnqueueTell(ctx, "alice", "eve", "other", false))

	tells := store.DrainTells(ctx, "bob")
	require.Len(t, tells, 2)
	assert.Equal(t, "first", tells[0].Message)
	assert.Equal(t, "second", tells[1].Message)
	assert.False(t, tells[0].CompanionRelevant)
	assert.True(t, tells[1].CompanionRelevant)

	assert.Empty(t, store.DrainTells(ctx, "bob"), "a drained batch is gone")

	// eve's tell survives bob's drain.
	require.Len(t, store.DrainTells(ctx, "eve"), 1)
}

func TestBumpReference(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	ref, ok := store.BumpReference(ctx, core.NamespaceThingiverse, "1234")
	require.True(t, ok)
	assert.EqualValues(t, 1, ref.Count)
	assert.Empty(t, ref.Title)

	store.SetTitle(ctx, core.NamespaceThingiverse, "1234", "Benchy")

	ref, ok = store.BumpReference(ctx, core.NamespaceThingiverse, "1234")
	require.True(t, ok)
	assert.EqualValues(t, 2, ref.Count)
	assert.Equal(t, "Benchy", ref.Title)

	// Counters are per namespace.
	other, ok := store.BumpReference(ctx, core.NamespaceYoutube, "1234")
	require.True(t, ok)
	assert.EqualValues(t, 1, other.Count)
}

func TestMood(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	assert.EqualValues(t, 0, store.Mood(ctx, "botsnack", "botsmack"))

	require.True(t, store.SetFactoid(ctx, "alice", "botsnack", false, "<reply>yum", true))
	require.True(t, store.SetFactoid(ctx, "alice", "botsmack", false, "<reply>ow", true))

	for i := 0; i < 3; i++ {
		store.GetFactoid(ctx, "botsnack")
	}
	store.GetFactoid(ctx, "botsmack")

	assert.EqualValues(t, 2, store.Mood(ctx, "botsnack", "botsmack"))
	assert.EqualValues(t, -2, store.Mood(ctx, "botsmack", "botsnack"))
}
