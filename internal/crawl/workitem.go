// Package crawl implements the incremental crawl-and-cache engine that
// walks the remote folder tree, validates and merges per-folder cache
// documents, and assembles the flat geospatial index.
package crawl

import (
	"sort"
	"strings"
	"time"

	"photomap/internal/atlas"
	"photomap/internal/drive"
)

// State is the lifecycle phase of a WorkItem. A WorkItem transitions
// StateStart -> StateEnd exactly once, and only after every direct
// child folder has itself reached StateEnd and been merged.
type State int

// WorkItem states.
const (
	StateStart State = iota
	StateEnd
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateEnd:
		return "end"
	default:
		return "unknown"
	}
}

// WorkItem is the transient crawl unit for one folder's traversal.
// Items are single-owner: exactly one of the ready queue, the fetch
// queue, or the waiting table holds an item at any moment, and the
// remote document for its path is written by exactly one finish-action.
type WorkItem struct {
	state State

	// path is the ordered, lowercased list of folder names from the
	// root; empty for the root itself.
	path     []string
	folderID string

	// Live validation fields captured when the folder was discovered.
	liveSize     int64
	liveModified time.Time
	eTag         string
	cTag         string

	// pending holds outbound sub-requests awaiting a batch slot;
	// responses holds what came back, keyed by sub-request ID.
	pending   []drive.SubRequest
	responses map[string]drive.SubResponse

	listReqID  string
	docReqID   string
	writeReqID string

	doc *atlas.CacheDocument

	// children accumulates listing pages when the folder paginates.
	children []drive.Item

	// thumbReuse maps item ID to an inlined thumbnail recovered from a
	// stale cache document.
	thumbReuse map[string]string

	remainingSubfolders int
}

// docName derives the deterministic cache-document name for the item's
// folder. Names order such that deeper, alphabetically-later subtrees
// sort lexicographically later.
func (w *WorkItem) docName() string {
	return cacheDocName(w.path)
}

func cacheDocName(path []string) string {
	if len(path) == 0 {
		return "map-cache"
	}
	return "map-cache-" + strings.Join(path, "-")
}

// joinPath is the lowercased folder-table form of a path.
func joinPath(path []string) string {
	return strings.Join(path, "/")
}

// workQueue is a simple deque of work items.
type workQueue struct {
	items []*WorkItem
}

func (q *workQueue) empty() bool {
	return len(q.items) == 0
}

func (q *workQueue) push(w *WorkItem) {
	q.items = append(q.items, w)
}

func (q *workQueue) pushFront(w *WorkItem) {
	q.items = append([]*WorkItem{w}, q.items...)
}

func (q *workQueue) pop() *WorkItem {
	w := q.items[0]
	q.items = q.items[1:]
	return w
}

// sortByDocNameDesc orders the queue so that deep, alphabetically-later
// subtrees run first. Finishing those before starting new shallow
// parents bounds how many partially-complete parents accumulate in the
// waiting table at once.
func (q *workQueue) sortByDocNameDesc() {
	sort.SliceStable(q.items, func(i, j int) bool {
		return q.items[i].docName() > q.items[j].docName()
	})
}
