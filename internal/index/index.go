// Package index holds the in-memory item index that queries are served
// from. The first build streams items into view as they arrive; later
// rebuilds stage a fresh generation and swap it in atomically when the
// crawl completes, so queries never see a half-replaced index.
package index

import (
	"sync"
	"time"

	"photomap/internal/atlas"
)

// generation is one self-consistent set of items plus the folder-path
// table their FolderIndex values point into.
type generation struct {
	items   []atlas.GeoItem
	folders []string
}

// add re-bases a batch's folder indices into this generation's table
// and appends the batch.
func (g *generation) add(items []atlas.GeoItem, folders []string) {
	base := len(g.folders)
	g.folders = append(g.folders, folders...)
	for _, gi := range items {
		gi.FolderIndex += base
		g.items = append(g.items, gi)
	}
}

// Index is the live, query-facing collection of indexed items.
type Index struct {
	mu       sync.RWMutex
	live     generation
	staged   generation
	building bool
	status   string
	updated  time.Time
}

// New creates an empty Index.
func New() *Index {
	return &Index{status: "idle"}
}

// Begin stages a new generation for an incoming crawl.
func (ix *Index) Begin() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.staged = generation{}
	ix.building = true
	ix.updated = time.Now().UTC()
}

// Add appends freshly indexed items to the staged generation. Outside a
// build the items go straight to the live view.
func (ix *Index) Add(items []atlas.GeoItem, folders []string) {
	if len(items) == 0 {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.building {
		ix.staged.add(items, folders)
	} else {
		ix.live.add(items, folders)
	}
	ix.updated = time.Now().UTC()
}

// Commit swaps the staged generation live.
func (ix *Index) Commit() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if !ix.building {
		return
	}
	ix.live = ix.staged
	ix.staged = generation{}
	ix.building = false
	ix.updated = time.Now().UTC()
}

// Abort discards the staged generation, keeping the previous live view.
// A first build has no previous generation, so its partial results are
// promoted rather than thrown away.
func (ix *Index) Abort() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if !ix.building {
		return
	}
	if len(ix.live.items) == 0 {
		ix.live = ix.staged
	}
	ix.staged = generation{}
	ix.building = false
}

// Snapshot returns the items and folder table queries should see right
// now, as copies. During the first build that is the partially
// assembled staged generation.
func (ix *Index) Snapshot() ([]atlas.GeoItem, []string) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	src := ix.visible()
	items := make([]atlas.GeoItem, len(src.items))
	copy(items, src.items)
	folders := make([]string, len(src.folders))
	copy(folders, src.folders)
	return items, folders
}

// SetStatus records the latest human-readable progress line.
func (ix *Index) SetStatus(status string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.status = status
	ix.updated = time.Now().UTC()
}

// Status returns the latest progress line, the current item count, and
// when the index last changed.
func (ix *Index) Status() (string, int, time.Time) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.status, len(ix.visible().items), ix.updated
}

// Building reports whether a crawl is currently staging a generation.
func (ix *Index) Building() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.building
}

// visible picks the generation queries should read. Callers hold a
// lock.
func (ix *Index) visible() *generation {
	if ix.building && len(ix.live.items) == 0 {
		return &ix.staged
	}
	return &ix.live
}
