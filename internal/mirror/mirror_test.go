package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphmirror/linkcache/internal/keyValStore"
	"github.com/graphmirror/linkcache/pkg/provider"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	kv, err := keyValStore.NewKeyValStore(keyValStore.StoreConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return New(kv)
}

func includeAll(string, string) bool { return true }

func TestAppendAndScan(t *testing.T) {
	store := newTestStore(t)

	links := []provider.LinkRecord{
		{SourceID: "a", TargetID: "b", TypeID: "knows"},
		{SourceID: "a", TargetID: "c", TypeID: "knows"},
		{SourceID: "b", TargetID: "a", TypeID: "likes"},
	}
	require.NoError(t, store.AppendLinks(links))

	got, err := store.Scan([]string{"a"}, includeAll)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].TargetID)
	assert.Equal(t, "c", got[1].TargetID)

	got, err = store.Scan([]string{"b"}, includeAll)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "likes", got[0].TypeID)
}

func TestScanFiltersByPair(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.AppendLinks([]provider.LinkRecord{
		{SourceID: "a", TargetID: "b", TypeID: "t"},
		{SourceID: "a", TargetID: "c", TypeID: "t"},
		{SourceID: "a", TargetID: "a", TypeID: "self"},
	}))

	got, err := store.Scan([]string{"a"}, func(source, target string) bool {
		return target != source && target != "c"
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].TargetID)
}

func TestDuplicateAppendIsIdempotent(t *testing.T) {
	store := newTestStore(t)

	link := provider.LinkRecord{SourceID: "a", TargetID: "b", TypeID: "knows"}
	require.NoError(t, store.AppendLinks([]provider.LinkRecord{link}))
	require.NoError(t, store.AppendLinks([]provider.LinkRecord{link}))

	got, err := store.Scan([]string{"a"}, includeAll)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestParallelEdgesWithDistinctTypesAreKept(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.AppendLinks([]provider.LinkRecord{
		{SourceID: "a", TargetID: "b", TypeID: "knows"},
		{SourceID: "a", TargetID: "b", TypeID: "likes"},
	}))

	got, err := store.Scan([]string{"a"}, includeAll)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestScanOrderFollowsTargets(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.AppendLinks([]provider.LinkRecord{
		{SourceID: "s", TargetID: "z", TypeID: "t"},
		{SourceID: "s", TargetID: "a", TypeID: "t"},
		{SourceID: "s", TargetID: "m", TypeID: "t"},
	}))

	got, err := store.Scan([]string{"s"}, includeAll)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].TargetID)
	assert.Equal(t, "m", got[1].TargetID)
	assert.Equal(t, "z", got[2].TargetID)
}
