// Package atlas defines the core types shared across the indexing and
// query subsystems: geotagged items, per-folder cache documents,
// viewports, filters, and the tiling/tally result shapes.
package atlas

import (
	"math"
	"time"
)

// SchemaVersion is the cache document schema understood by this build.
// A persisted document with any other version is treated as stale and
// re-crawled (its thumbnail payloads are still reused by item ID).
const SchemaVersion = 3

// Numdate is a calendar date in compact YYYYMMDD integer form. The
// encoding sorts naturally and stores in a quarter of the bytes of an
// RFC 3339 string across tens of thousands of items.
type Numdate int

// NumdateOf converts a timestamp to its Numdate in UTC.
func NumdateOf(t time.Time) Numdate {
	t = t.UTC()
	return Numdate(t.Year()*10000 + int(t.Month())*100 + t.Day())
}

// Position is a WGS84 coordinate rounded to 5 decimal places
// (roughly meter precision, which is as good as camera GPS gets).
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RoundCoord rounds a coordinate to the stored 5-decimal precision.
func RoundCoord(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}

// GeoItem is one indexed photo or video.
type GeoItem struct {
	// ID is the item's identity in the remote store, used for
	// thumbnail reuse across cache invalidations.
	ID       string   `json:"id"`
	Position Position `json:"position"`
	Date     Numdate  `json:"date"`
	// Thumbnail is either a remote URL or, once resolved, an inline
	// data URI. Items whose thumbnail fetch failed keep the URL.
	Thumbnail string `json:"thumbnail"`
	// Name is the lowercased file name.
	Name string `json:"name"`
	// FolderIndex points into the owning document's folder-path table.
	FolderIndex int `json:"folderIndex"`
	// Tags are lowercased descriptive labels from the remote store.
	Tags []string `json:"tags,omitempty"`
}

// CacheDocument is the per-folder index artifact persisted in the
// remote store. GeoItems[0..ImmediateChildCount) are the folder's own
// files; later entries are merged descendants whose FolderIndex is
// valid against the cumulative Folders table. Folders[0] is the
// folder's own lowercased path whenever it owns at least one file.
type CacheDocument struct {
	SchemaVersion int    `json:"schemaVersion"`
	FolderID      string `json:"folderId"`
	// Size, LastModified, ETag and CTag are validation fields captured
	// from the live folder at crawl time. The document substitutes for
	// re-crawling its folder iff Size matches the live folder size and
	// SchemaVersion matches the expected one.
	Size                int64     `json:"size"`
	LastModified        time.Time `json:"lastModified"`
	ETag                string    `json:"eTag"`
	CTag                string    `json:"cTag"`
	ImmediateChildCount int       `json:"immediateChildCount"`
	Folders             []string  `json:"folders"`
	GeoItems            []GeoItem `json:"geoItems"`
}

// Valid reports whether the document is an authoritative substitute
// for re-crawling the folder whose live size is liveSize.
func (d *CacheDocument) Valid(liveSize int64) bool {
	return d != nil && d.SchemaVersion == SchemaVersion && d.Size == liveSize
}

// ThumbnailsByID collects resolved inline thumbnails keyed by item ID.
// Even an invalid document donates these: metadata drift does not make
// an already-fetched thumbnail wrong for the same item.
func (d *CacheDocument) ThumbnailsByID() map[string]string {
	if d == nil {
		return nil
	}
	out := make(map[string]string, len(d.GeoItems))
	for i := range d.GeoItems {
		it := &d.GeoItems[i]
		if it.ID != "" && isInline(it.Thumbnail) {
			out[it.ID] = it.Thumbnail
		}
	}
	return out
}

// IsInlineThumbnail reports whether a thumbnail value is already
// inlined data rather than a remote URL.
func IsInlineThumbnail(thumbnail string) bool {
	return isInline(thumbnail)
}

func isInline(thumbnail string) bool {
	return len(thumbnail) > 5 && thumbnail[:5] == "data:"
}

// Viewport is the visible map region, SW to NE corner. A viewport may
// span the antimeridian, in which case SW.Lng > NE.Lng.
type Viewport struct {
	SW Position `json:"sw"`
	NE Position `json:"ne"`
}

// Filter restricts items by date range and/or free text. Zero values
// mean "no restriction" for the respective dimension.
type Filter struct {
	// DateFrom/DateTo bound Date inclusively when nonzero.
	DateFrom Numdate `json:"dateFrom,omitempty"`
	DateTo   Numdate `json:"dateTo,omitempty"`
	// Text matches case-insensitively against item name, owning folder
	// path, and tags.
	Text string `json:"text,omitempty"`
}

// Empty reports whether the filter passes every item.
func (f Filter) Empty() bool {
	return f.DateFrom == 0 && f.DateTo == 0 && f.Text == ""
}

// MatchesDate applies the inclusive date range.
func (f Filter) MatchesDate(d Numdate) bool {
	if f.DateFrom != 0 && d < f.DateFrom {
		return false
	}
	if f.DateTo != 0 && d > f.DateTo {
		return false
	}
	return true
}

// TileItemCap is the maximum number of filter-passing items kept per
// tile. It bounds on-screen marker cost; the exact passing total is
// still tracked for badge counts.
const TileItemCap = 10

// Tile is one fixed-geometry viewport cell with its clustered items.
type Tile struct {
	// Bounds is the tile's geographic rectangle and Center its middle.
	Bounds Viewport `json:"bounds"`
	Center Position `json:"center"`
	// Items holds up to TileItemCap filter-passing items.
	Items []GeoItem `json:"items"`
	// Total is the exact count of filter-passing items in the tile.
	Total int `json:"total"`
	// FilteredExample is one filter-failing item, so a fully filtered
	// tile is distinguishable from an empty one.
	FilteredExample *GeoItem `json:"filteredExample,omitempty"`
}

// TallyCell counts items for one date, split by viewport membership
// and filter outcome. Every indexed item lands in exactly one of the
// four counters.
type TallyCell struct {
	InBoundsInFilter   int `json:"inBoundsInFilter"`
	InBoundsOutFilter  int `json:"inBoundsOutFilter"`
	OutBoundsInFilter  int `json:"outBoundsInFilter"`
	OutBoundsOutFilter int `json:"outBoundsOutFilter"`
}

// Tally maps each date to its cell, covering every item regardless of
// viewport membership so the temporal histogram keeps full context.
type Tally map[Numdate]*TallyCell

// Bounds is a latitude/longitude bounding box. West may be greater
// than East when the box crosses the antimeridian.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}
