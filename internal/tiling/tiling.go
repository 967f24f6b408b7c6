// Package tiling partitions an indexed item set into stable viewport
// tiles and a per-date tally for interactive map rendering. The whole
// query is a single linear pass over the item set; it is expected to
// stay in single-digit milliseconds for ~50k items.
package tiling

import (
	"math"
	"strings"

	"photomap/internal/atlas"
)

// targetTilePx is the approximate on-screen width of one tile. Tile
// size in degrees derives only from the viewport span and pixel width,
// never from prior pan state, so tile boundaries stay put while the
// user pans.
const targetTilePx = 60

// Query describes one tiling request.
type Query struct {
	Viewport   atlas.Viewport
	PixelWidth int
	Filter     atlas.Filter
}

// Result carries the non-empty tiles for the viewport plus the global
// tally covering every item, on-screen or not.
type Result struct {
	Tiles []atlas.Tile
	Tally atlas.Tally
}

// grid is the tile lattice derived from a query. The origin is global
// (tile edges are multiples of the tile size), which is what makes
// overlapping viewports of the same width produce aligned tiles.
type grid struct {
	tileSize     float64
	snappedWest  float64
	snappedSouth float64
	cols, rows   int
}

func newGrid(vp atlas.Viewport, pixelWidth int) grid {
	lngSpan := mod360(vp.NE.Lng - vp.SW.Lng)
	if lngSpan == 0 {
		lngSpan = 360
	}
	if pixelWidth <= 0 {
		pixelWidth = targetTilePx
	}
	tileSize := lngSpan * targetTilePx / float64(pixelWidth)

	snappedWest := math.Floor(vp.SW.Lng/tileSize) * tileSize
	snappedSouth := math.Floor(vp.SW.Lat/tileSize) * tileSize

	// Snapping can push the west edge past the east edge when the
	// viewport already spans (nearly) the whole globe, collapsing the
	// mod-360 span. Size the grid from whichever span is larger.
	snappedLngSpan := mod360(vp.NE.Lng - snappedWest)
	if snappedLngSpan < lngSpan {
		snappedLngSpan = lngSpan
	}
	latSpan := vp.NE.Lat - vp.SW.Lat
	snappedLatSpan := vp.NE.Lat - snappedSouth
	if snappedLatSpan < latSpan {
		snappedLatSpan = latSpan
	}

	return grid{
		tileSize:     tileSize,
		snappedWest:  snappedWest,
		snappedSouth: snappedSouth,
		cols:         int(math.Ceil(snappedLngSpan/tileSize)) + 1,
		rows:         int(math.Ceil(snappedLatSpan/tileSize)) + 1,
	}
}

// locate returns the tile coordinates for a position, or ok=false when
// the position falls outside the grid.
func (g grid) locate(p atlas.Position) (col, row int, ok bool) {
	offLng := mod360(p.Lng - g.snappedWest)
	offLat := p.Lat - g.snappedSouth
	if offLat < 0 {
		return 0, 0, false
	}
	col = int(offLng / g.tileSize)
	row = int(offLat / g.tileSize)
	if col >= g.cols || row >= g.rows {
		return 0, 0, false
	}
	return col, row, true
}

// tileBounds returns the geographic rectangle of a tile cell.
func (g grid) tileBounds(col, row int) atlas.Viewport {
	west := normalizeLng(g.snappedWest + float64(col)*g.tileSize)
	south := g.snappedSouth + float64(row)*g.tileSize
	return atlas.Viewport{
		SW: atlas.Position{Lat: south, Lng: west},
		NE: atlas.Position{Lat: south + g.tileSize, Lng: normalizeLng(west + g.tileSize)},
	}
}

// Tiles runs the query against the complete item set. folders is the
// document's folder-path table used for text matching by FolderIndex.
func Tiles(q Query, items []atlas.GeoItem, folders []string) Result {
	g := newGrid(q.Viewport, q.PixelWidth)
	matcher := newTextMatcher(q.Filter.Text, folders)

	lngSpan := mod360(q.Viewport.NE.Lng - q.Viewport.SW.Lng)
	if lngSpan == 0 {
		lngSpan = 360
	}

	tally := make(atlas.Tally)
	cells := make(map[int]*atlas.Tile)

	for i := range items {
		it := &items[i]

		inFilter := q.Filter.MatchesDate(it.Date) && matcher.matches(it)
		inBounds := it.Position.Lat >= q.Viewport.SW.Lat &&
			it.Position.Lat <= q.Viewport.NE.Lat &&
			mod360(it.Position.Lng-q.Viewport.SW.Lng) <= lngSpan

		cell := tally[it.Date]
		if cell == nil {
			cell = &atlas.TallyCell{}
			tally[it.Date] = cell
		}
		switch {
		case inBounds && inFilter:
			cell.InBoundsInFilter++
		case inBounds:
			cell.InBoundsOutFilter++
		case inFilter:
			cell.OutBoundsInFilter++
		default:
			cell.OutBoundsOutFilter++
		}

		if !inBounds {
			continue
		}
		col, row, ok := g.locate(it.Position)
		if !ok {
			continue
		}
		key := row*g.cols + col
		tile := cells[key]
		if tile == nil {
			b := g.tileBounds(col, row)
			tile = &atlas.Tile{
				Bounds: b,
				Center: atlas.Position{
					Lat: b.SW.Lat + g.tileSize/2,
					Lng: normalizeLng(b.SW.Lng + g.tileSize/2),
				},
			}
			cells[key] = tile
		}
		if inFilter {
			tile.Total++
			if len(tile.Items) < atlas.TileItemCap {
				tile.Items = append(tile.Items, *it)
			}
		} else if tile.FilteredExample == nil {
			ex := *it
			tile.FilteredExample = &ex
		}
	}

	out := make([]atlas.Tile, 0, len(cells))
	for _, tile := range cells {
		if len(tile.Items) == 0 && tile.FilteredExample == nil {
			continue
		}
		out = append(out, *tile)
	}
	return Result{Tiles: out, Tally: tally}
}

// textMatcher resolves a free-text filter against item names, tags,
// and the folder-path table. Folder matches are precomputed into an
// index set so the per-item check is a map lookup.
type textMatcher struct {
	query          string
	matchingFolder map[int]bool
}

func newTextMatcher(text string, folders []string) textMatcher {
	m := textMatcher{query: strings.ToLower(strings.TrimSpace(text))}
	if m.query == "" {
		return m
	}
	m.matchingFolder = make(map[int]bool)
	for i, f := range folders {
		if strings.Contains(f, m.query) {
			m.matchingFolder[i] = true
		}
	}
	return m
}

func (m textMatcher) matches(it *atlas.GeoItem) bool {
	if m.query == "" {
		return true
	}
	if strings.Contains(it.Name, m.query) {
		return true
	}
	if m.matchingFolder[it.FolderIndex] {
		return true
	}
	for _, tag := range it.Tags {
		if strings.Contains(tag, m.query) {
			return true
		}
	}
	return false
}

// mod360 maps a longitude delta into [0, 360).
func mod360(v float64) float64 {
	m := math.Mod(v, 360)
	if m < 0 {
		m += 360
	}
	return m
}

// normalizeLng wraps a longitude into [-180, 180).
func normalizeLng(v float64) float64 {
	m := mod360(v + 180)
	return m - 180
}
