package index

import (
	"testing"

	"github.com/stretchr/testify/require"

	"photomap/internal/atlas"
)

func TestFirstBuildStreamsPartialResults(t *testing.T) {
	t.Parallel()

	ix := New()
	ix.Begin()
	ix.Add([]atlas.GeoItem{{ID: "a"}}, []string{"trips"})
	items, _ := ix.Snapshot()
	require.Len(t, items, 1, "first build should be queryable mid-crawl")

	ix.Add([]atlas.GeoItem{{ID: "b"}}, []string{""})
	ix.Commit()
	items, folders := ix.Snapshot()
	require.Len(t, items, 2)
	require.Equal(t, []string{"trips", ""}, folders)
	require.False(t, ix.Building())
}

func TestAddRebasesFolderIndices(t *testing.T) {
	t.Parallel()

	ix := New()
	ix.Add([]atlas.GeoItem{{ID: "a", FolderIndex: 0}}, []string{"alps"})
	ix.Add([]atlas.GeoItem{{ID: "b", FolderIndex: 0}, {ID: "c", FolderIndex: 1}},
		[]string{"coast", "coast/dunes"})

	items, folders := ix.Snapshot()
	byID := map[string]atlas.GeoItem{}
	for _, gi := range items {
		byID[gi.ID] = gi
	}
	require.Equal(t, "alps", folders[byID["a"].FolderIndex])
	require.Equal(t, "coast", folders[byID["b"].FolderIndex])
	require.Equal(t, "coast/dunes", folders[byID["c"].FolderIndex])
}

func TestRebuildHidesStagedUntilCommit(t *testing.T) {
	t.Parallel()

	ix := New()
	ix.Begin()
	ix.Add([]atlas.GeoItem{{ID: "old"}}, []string{""})
	ix.Commit()

	ix.Begin()
	ix.Add([]atlas.GeoItem{{ID: "new-1"}, {ID: "new-2"}}, []string{""})

	items, _ := ix.Snapshot()
	require.Len(t, items, 1)
	require.Equal(t, "old", items[0].ID)

	ix.Commit()
	items, _ = ix.Snapshot()
	require.Len(t, items, 2)
}

func TestAbortKeepsPreviousGeneration(t *testing.T) {
	t.Parallel()

	ix := New()
	ix.Begin()
	ix.Add([]atlas.GeoItem{{ID: "a"}}, []string{""})
	ix.Commit()

	ix.Begin()
	ix.Add([]atlas.GeoItem{{ID: "partial"}}, []string{""})
	ix.Abort()

	items, _ := ix.Snapshot()
	require.Len(t, items, 1)
	require.Equal(t, "a", items[0].ID)
}

func TestSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	ix := New()
	ix.Add([]atlas.GeoItem{{ID: "a", Name: "one"}}, []string{""})
	items, _ := ix.Snapshot()
	items[0].Name = "mutated"

	again, _ := ix.Snapshot()
	require.Equal(t, "one", again[0].Name)
}
