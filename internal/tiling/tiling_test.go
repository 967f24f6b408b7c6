package tiling

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"photomap/internal/atlas"
)

func item(id string, lat, lng float64, date atlas.Numdate) atlas.GeoItem {
	return atlas.GeoItem{
		ID:       id,
		Position: atlas.Position{Lat: lat, Lng: lng},
		Date:     date,
		Name:     id,
	}
}

func TestTilesSingleItemViewport(t *testing.T) {
	t.Parallel()

	// 600px across a 1-degree viewport yields 0.1-degree tiles.
	q := Query{
		Viewport:   atlas.Viewport{SW: atlas.Position{Lat: 0, Lng: 0}, NE: atlas.Position{Lat: 1, Lng: 1}},
		PixelWidth: 600,
	}
	items := []atlas.GeoItem{item("a", 0.05, 0.05, 20230612)}

	res := Tiles(q, items, nil)
	require.Len(t, res.Tiles, 1)
	tile := res.Tiles[0]
	require.Equal(t, 1, tile.Total)
	require.Len(t, tile.Items, 1)
	require.Equal(t, "a", tile.Items[0].ID)
	require.InDelta(t, 0.0, tile.Bounds.SW.Lat, 1e-9)
	require.InDelta(t, 0.1, tile.Bounds.NE.Lng, 1e-9)
}

func TestTilesAntimeridianContiguous(t *testing.T) {
	t.Parallel()

	q := Query{
		Viewport:   atlas.Viewport{SW: atlas.Position{Lat: 10, Lng: 170}, NE: atlas.Position{Lat: 20, Lng: -170}},
		PixelWidth: 600,
	}
	items := []atlas.GeoItem{
		item("west-of-line", 15, 179.5, 20230101),
		item("east-of-line", 15, -179.5, 20230101),
	}

	res := Tiles(q, items, nil)
	require.Len(t, res.Tiles, 2)

	// Tile size is 20*60/600 = 2 degrees; the two items must land in
	// adjacent columns of one grid, not two disjoint ranges.
	g := newGrid(q.Viewport, q.PixelWidth)
	colWest, _, ok := g.locate(items[0].Position)
	require.True(t, ok)
	colEast, _, ok := g.locate(items[1].Position)
	require.True(t, ok)
	require.Equal(t, colWest+1, colEast)
}

func TestTileStabilityUnderPanning(t *testing.T) {
	t.Parallel()

	// Two overlapping viewports of the same pixel width must produce
	// identical tile boundaries for an item visible in both.
	target := item("pin", 0.52, 0.48, 20230101)
	a := Query{
		Viewport:   atlas.Viewport{SW: atlas.Position{Lat: 0, Lng: 0}, NE: atlas.Position{Lat: 1, Lng: 1}},
		PixelWidth: 600,
	}
	b := Query{
		Viewport:   atlas.Viewport{SW: atlas.Position{Lat: 0.35, Lng: 0.35}, NE: atlas.Position{Lat: 1.35, Lng: 1.35}},
		PixelWidth: 600,
	}

	resA := Tiles(a, []atlas.GeoItem{target}, nil)
	resB := Tiles(b, []atlas.GeoItem{target}, nil)
	require.Len(t, resA.Tiles, 1)
	require.Len(t, resB.Tiles, 1)
	require.InDelta(t, resA.Tiles[0].Bounds.SW.Lat, resB.Tiles[0].Bounds.SW.Lat, 1e-9)
	require.InDelta(t, resA.Tiles[0].Bounds.SW.Lng, resB.Tiles[0].Bounds.SW.Lng, 1e-9)
}

func TestTallyCoversEveryItem(t *testing.T) {
	t.Parallel()

	q := Query{
		Viewport:   atlas.Viewport{SW: atlas.Position{Lat: 0, Lng: 0}, NE: atlas.Position{Lat: 10, Lng: 10}},
		PixelWidth: 600,
		Filter:     atlas.Filter{DateFrom: 20230101, DateTo: 20231231, Text: "beach"},
	}
	var items []atlas.GeoItem
	for i := 0; i < 40; i++ {
		it := item(fmt.Sprintf("it-%d", i), float64(i)-5, float64(i*7%360)-180, atlas.Numdate(20220101+i*100))
		if i%3 == 0 {
			it.Name = "beach-day"
		}
		items = append(items, it)
	}

	res := Tiles(q, items, nil)
	total := 0
	for _, cell := range res.Tally {
		total += cell.InBoundsInFilter + cell.InBoundsOutFilter +
			cell.OutBoundsInFilter + cell.OutBoundsOutFilter
	}
	require.Equal(t, len(items), total)
}

func TestTileCapKeepsExactTotal(t *testing.T) {
	t.Parallel()

	q := Query{
		Viewport:   atlas.Viewport{SW: atlas.Position{Lat: 0, Lng: 0}, NE: atlas.Position{Lat: 1, Lng: 1}},
		PixelWidth: 60, // one tile covers the whole viewport
	}
	var items []atlas.GeoItem
	for i := 0; i < atlas.TileItemCap+7; i++ {
		items = append(items, item(fmt.Sprintf("p%d", i), 0.5, 0.5, 20230101))
	}

	res := Tiles(q, items, nil)
	require.Len(t, res.Tiles, 1)
	require.Equal(t, atlas.TileItemCap+7, res.Tiles[0].Total)
	require.Len(t, res.Tiles[0].Items, atlas.TileItemCap)
}

func TestFilteredTileKeepsFailingExample(t *testing.T) {
	t.Parallel()

	q := Query{
		Viewport:   atlas.Viewport{SW: atlas.Position{Lat: 0, Lng: 0}, NE: atlas.Position{Lat: 1, Lng: 1}},
		PixelWidth: 60,
		Filter:     atlas.Filter{Text: "nomatch"},
	}
	items := []atlas.GeoItem{item("only", 0.5, 0.5, 20230101)}

	res := Tiles(q, items, nil)
	require.Len(t, res.Tiles, 1)
	require.Zero(t, res.Tiles[0].Total)
	require.Empty(t, res.Tiles[0].Items)
	require.NotNil(t, res.Tiles[0].FilteredExample)
	require.Equal(t, "only", res.Tiles[0].FilteredExample.ID)
}

func TestTextFilterMatchesFolderAndTags(t *testing.T) {
	t.Parallel()

	folders := []string{"pictures/2023", "pictures/2023/iceland trip"}
	q := Query{
		Viewport:   atlas.Viewport{SW: atlas.Position{Lat: 0, Lng: 0}, NE: atlas.Position{Lat: 1, Lng: 1}},
		PixelWidth: 60,
		Filter:     atlas.Filter{Text: "iceland"},
	}
	byFolder := item("by-folder", 0.5, 0.5, 20230101)
	byFolder.FolderIndex = 1
	byTag := item("by-tag", 0.5, 0.6, 20230101)
	byTag.Tags = []string{"iceland", "glacier"}
	miss := item("miss", 0.5, 0.7, 20230101)

	res := Tiles(q, []atlas.GeoItem{byFolder, byTag, miss}, folders)
	require.Len(t, res.Tiles, 1)
	require.Equal(t, 2, res.Tiles[0].Total)
}

func TestBoundsAntimeridianGrowth(t *testing.T) {
	t.Parallel()

	items := []atlas.GeoItem{
		item("west", 5, 179, 20230101),
		item("east", -5, -179, 20230101),
	}
	b, ok := BoundsForDateRange(items, 0, 0)
	require.True(t, ok)
	require.InDelta(t, 179.0, b.West, 1e-9)
	require.InDelta(t, -179.0, b.East, 1e-9)
	// Width across the meridian is ~2 degrees, not ~358.
	require.InDelta(t, 2.0, mod360(b.East-b.West), 1e-9)
	require.InDelta(t, -5.0, b.South, 1e-9)
	require.InDelta(t, 5.0, b.North, 1e-9)
}

func TestBoundsDateRange(t *testing.T) {
	t.Parallel()

	items := []atlas.GeoItem{
		item("in", 10, 20, 20230615),
		item("out", 50, 60, 20240101),
	}
	b, ok := BoundsForDateRange(items, 20230101, 20231231)
	require.True(t, ok)
	require.InDelta(t, 10.0, b.South, 1e-9)
	require.InDelta(t, 20.0, b.East, 1e-9)

	_, ok = BoundsForDateRange(items, 19900101, 19901231)
	require.False(t, ok)
}
