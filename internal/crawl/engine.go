package crawl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"photomap/internal/atlas"
	"photomap/internal/drive"
	"photomap/internal/metrics"
	"photomap/internal/thumb"
)

// Config controls engine behavior.
type Config struct {
	// ThrottleDelay is how long the crawl parks after the backend
	// reports an activity limit on a listing. Default 30s.
	ThrottleDelay time.Duration
}

// Engine is the crawl state machine. One crawl runs at a time; the
// main loop is sequential, suspending only on batch calls, backoff
// sleeps, and the thumbnail resolver's bounded fan-out.
type Engine struct {
	batcher  *drive.Batcher
	uploader *drive.Uploader
	resolver *thumb.Resolver
	clock    atlas.Clock
	sleeper  atlas.Sleeper
	progress atlas.ProgressSink
	logger   *zap.Logger
	cfg      Config

	ready   workQueue
	fetch   workQueue
	waiting map[string]*WorkItem

	// Progress bookkeeping: bytes already processed against the root's
	// total, and when the engine last made successful headway (for the
	// throttling indicator).
	bytesDone    int64
	bytesTotal   int64
	started      time.Time
	lastActivity time.Time
}

// New constructs an Engine. Nil progress and logger default to no-ops.
func New(
	batcher *drive.Batcher,
	uploader *drive.Uploader,
	resolver *thumb.Resolver,
	clock atlas.Clock,
	sleeper atlas.Sleeper,
	progress atlas.ProgressSink,
	cfg Config,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if progress == nil {
		progress = atlas.NopProgress{}
	}
	if cfg.ThrottleDelay <= 0 {
		cfg.ThrottleDelay = 30 * time.Second
	}
	return &Engine{
		batcher:  batcher,
		uploader: uploader,
		resolver: resolver,
		clock:    clock,
		sleeper:  sleeper,
		progress: progress,
		logger:   logger,
		cfg:      cfg,
		waiting:  make(map[string]*WorkItem),
	}
}

// Run crawls the whole tree and returns the assembled root document.
// Throttling never fails the crawl; a hard failure on any folder's
// listing aborts it (documents already persisted by finished subtrees
// remain valid in the remote store).
func (e *Engine) Run(ctx context.Context) (*atlas.CacheDocument, error) {
	e.started = e.clock.Now()
	e.lastActivity = e.started

	root, err := e.bootstrapRoot(ctx)
	if err != nil {
		return nil, err
	}
	e.enqueueStart(root)

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("crawl canceled: %w", err)
		}
		if e.ready.empty() {
			if e.fetch.empty() {
				return nil, fmt.Errorf("crawl stalled: no work left before root completed")
			}
			if err := e.executeFetchBatch(ctx); err != nil {
				return nil, err
			}
			continue
		}

		item := e.ready.pop()
		switch item.state {
		case StateStart:
			if err := e.processStart(ctx, item); err != nil {
				return nil, err
			}
		case StateEnd:
			doc, done, err := e.processEnd(ctx, item)
			if err != nil {
				return nil, err
			}
			if done {
				return doc, nil
			}
		}
	}
}

// bootstrapRoot fetches the root folder's live metadata so its cache
// document can be validated like any other folder's.
func (e *Engine) bootstrapRoot(ctx context.Context) (*WorkItem, error) {
	id := uuid.NewString()
	responses, err := e.batcher.Execute(ctx, []drive.SubRequest{{
		ID:     id,
		Method: http.MethodGet,
		Path:   "/folders/root",
	}})
	if err != nil {
		return nil, fmt.Errorf("fetch root metadata: %w", err)
	}
	res := responses[id]
	if !res.OK() {
		return nil, fmt.Errorf("root metadata returned status %d", res.Status)
	}
	var rootItem drive.Item
	if err := json.Unmarshal(res.Body, &rootItem); err != nil {
		return nil, fmt.Errorf("decode root metadata: %w", err)
	}

	e.bytesTotal = rootItem.Size
	return &WorkItem{
		state:        StateStart,
		folderID:     rootItem.ID,
		liveSize:     rootItem.Size,
		liveModified: rootItem.LastModified,
		eTag:         rootItem.ETag,
		cTag:         rootItem.CTag,
	}, nil
}

// enqueueStart queues the two reads every folder needs: its children
// listing and its sibling cache document.
func (e *Engine) enqueueStart(item *WorkItem) {
	item.listReqID = uuid.NewString()
	item.docReqID = uuid.NewString()
	item.pending = []drive.SubRequest{
		{
			ID:     item.listReqID,
			Method: http.MethodGet,
			Path:   "/folders/" + item.folderID + "/children",
		},
		{
			ID:     item.docReqID,
			Method: http.MethodGet,
			Path:   "/docs/" + item.docName(),
		},
	}
	e.fetch.push(item)
}

// executeFetchBatch drains up to the batcher's capacity from the fetch
// queue, runs one batch call, and moves the covered items to the ready
// queue with their responses attached.
func (e *Engine) executeFetchBatch(ctx context.Context) error {
	var batch []*WorkItem
	var subs []drive.SubRequest
	for !e.fetch.empty() && len(subs)+len(e.fetch.items[0].pending) <= drive.MaxSubRequests {
		item := e.fetch.pop()
		subs = append(subs, item.pending...)
		batch = append(batch, item)
	}

	responses, err := e.batcher.Execute(ctx, subs)
	if err != nil {
		return fmt.Errorf("batch execute: %w", err)
	}
	for _, item := range batch {
		item.responses = make(map[string]drive.SubResponse, len(item.pending))
		for _, sub := range item.pending {
			if res, ok := responses[sub.ID]; ok {
				item.responses[sub.ID] = res
			}
		}
		item.pending = nil
		e.ready.push(item)
	}
	return nil
}

// throttlePause parks the crawl for the fixed delay and requeues the
// item at the front of the fetch queue for a fresh attempt. This is
// scheduling, not failure.
func (e *Engine) throttlePause(ctx context.Context, item *WorkItem, source string, refresh func()) error {
	metrics.ThrottleEvents.WithLabelValues(source).Inc()
	since := e.clock.Now().Sub(e.lastActivity)
	e.progress.Status(fmt.Sprintf("throttling for %ds/%dmin",
		int(since.Seconds()), int(since.Minutes())))
	e.logger.Info("listing throttled, pausing crawl",
		zap.String("folder", joinPath(item.path)),
		zap.Duration("delay", e.cfg.ThrottleDelay),
	)
	if err := e.sleeper.Sleep(ctx, e.cfg.ThrottleDelay); err != nil {
		return err
	}
	item.responses = nil
	refresh()
	return nil
}

func (e *Engine) processStart(ctx context.Context, item *WorkItem) error {
	listing := item.responses[item.listReqID]

	if listing.Throttled() {
		return e.throttlePause(ctx, item, "listing", func() {
			// Re-issue both reads; the stale doc response is cheap to
			// refetch and keeps the item self-contained.
			item.children = nil
			e.fetchFront(item, func() { e.enqueueStartFront(item) })
		})
	}
	if !listing.OK() {
		return fmt.Errorf("children listing for %q returned status %d", joinPath(item.path), listing.Status)
	}

	// A valid sibling cache document substitutes for crawling the
	// whole subtree. This is the dominant cost saving on repeat runs.
	if item.doc == nil && item.thumbReuse == nil {
		// A throttled doc read is retried like a throttled listing;
		// treating it as a miss would re-enumerate the whole subtree.
		if docRes, ok := item.responses[item.docReqID]; ok && docRes.Throttled() {
			return e.throttlePause(ctx, item, "document", func() {
				item.children = nil
				e.fetchFront(item, func() { e.enqueueStartFront(item) })
			})
		}
		if cached, valid := e.decodeCacheDoc(item); valid {
			metrics.CacheHits.Inc()
			e.emitItems(cached.GeoItems, cached.Folders)
			e.noteProgress(item.liveSize)
			item.doc = cached
			item.state = StateEnd
			e.ready.pushFront(item)
			return nil
		} else if cached != nil {
			item.thumbReuse = cached.ThumbnailsByID()
		}
	}

	var page drive.ListPage
	if err := json.Unmarshal(listing.Body, &page); err != nil {
		return fmt.Errorf("decode listing for %q: %w", joinPath(item.path), err)
	}
	item.children = append(item.children, page.Value...)
	if page.NextLink != "" {
		item.listReqID = uuid.NewString()
		item.pending = []drive.SubRequest{{
			ID:     item.listReqID,
			Method: http.MethodGet,
			Path:   page.NextLink,
		}}
		e.fetch.pushFront(item)
		return nil
	}

	e.buildDocument(item)
	return e.finishIfComplete(ctx, item)
}

// decodeCacheDoc parses the sibling cache-document response. The
// second return reports whether the document is a valid substitute for
// crawling the folder; an invalid document is still returned so its
// thumbnails can be reused.
func (e *Engine) decodeCacheDoc(item *WorkItem) (*atlas.CacheDocument, bool) {
	res, ok := item.responses[item.docReqID]
	if !ok || !res.OK() {
		return nil, false
	}
	var doc atlas.CacheDocument
	if err := json.Unmarshal(res.Body, &doc); err != nil {
		e.logger.Warn("cache document undecodable, re-crawling",
			zap.String("folder", joinPath(item.path)),
			zap.Error(err),
		)
		return nil, false
	}
	return &doc, doc.Valid(item.liveSize)
}

// buildDocument enumerates the accumulated children into subfolder
// work items and this folder's own geo items.
func (e *Engine) buildDocument(item *WorkItem) {
	doc := &atlas.CacheDocument{
		SchemaVersion: atlas.SchemaVersion,
		FolderID:      item.folderID,
		Size:          item.liveSize,
		LastModified:  item.liveModified,
		ETag:          item.eTag,
		CTag:          item.cTag,
	}

	for i := range item.children {
		child := &item.children[i]
		if child.IsFolder() {
			sub := &WorkItem{
				state:        StateStart,
				path:         append(append([]string{}, item.path...), strings.ToLower(child.Name)),
				folderID:     child.ID,
				liveSize:     child.Size,
				liveModified: child.LastModified,
				eTag:         child.ETag,
				cTag:         child.CTag,
			}
			item.remainingSubfolders++
			e.enqueueStart(sub)
			continue
		}
		gi, ok := geoItemFrom(child, item.thumbReuse)
		if !ok {
			continue
		}
		doc.GeoItems = append(doc.GeoItems, gi)
		e.noteProgress(child.Size)
	}

	doc.ImmediateChildCount = len(doc.GeoItems)
	if doc.ImmediateChildCount > 0 {
		doc.Folders = []string{joinPath(item.path)}
	}
	item.doc = doc
	item.children = nil
}

// geoItemFrom converts a file listing entry, requiring the geo,
// thumbnail, and date fields; files missing any of them are not
// indexable and are skipped.
func geoItemFrom(child *drive.Item, thumbReuse map[string]string) (atlas.GeoItem, bool) {
	if child.Location == nil || child.ThumbnailURL == "" ||
		child.Photo == nil || child.Photo.TakenDateTime.IsZero() {
		return atlas.GeoItem{}, false
	}
	thumbnail := child.ThumbnailURL
	if inline, ok := thumbReuse[child.ID]; ok {
		metrics.Thumbnails.WithLabelValues("reused").Inc()
		thumbnail = inline
	}
	tags := make([]string, 0, len(child.Tags))
	for _, tag := range child.Tags {
		tags = append(tags, strings.ToLower(tag))
	}
	if len(tags) == 0 {
		tags = nil
	}
	return atlas.GeoItem{
		ID: child.ID,
		Position: atlas.Position{
			Lat: atlas.RoundCoord(child.Location.Latitude),
			Lng: atlas.RoundCoord(child.Location.Longitude),
		},
		Date:      atlas.NumdateOf(child.Photo.TakenDateTime),
		Thumbnail: thumbnail,
		Name:      strings.ToLower(child.Name),
		Tags:      tags,
	}, true
}

// finishIfComplete runs the folder's finish-action when no subfolders
// remain; otherwise it parks the item in the waiting table and
// reorders the fetch queue so deeper subtrees complete first.
func (e *Engine) finishIfComplete(ctx context.Context, item *WorkItem) error {
	if item.remainingSubfolders == 0 {
		return e.finishFolder(ctx, item)
	}
	e.waiting[item.docName()] = item
	e.fetch.sortByDocNameDesc()
	return nil
}

// finishFolder is the single writer for the folder's remote document:
// it resolves the folder's own thumbnails, emits its items, and routes
// persistence through the batch write or the chunked uploader.
func (e *Engine) finishFolder(ctx context.Context, item *WorkItem) error {
	if err := e.resolveOwnThumbnails(ctx, item); err != nil {
		return err
	}
	e.emitItems(item.doc.GeoItems[:item.doc.ImmediateChildCount], item.doc.Folders)

	payload, err := json.Marshal(item.doc)
	if err != nil {
		return fmt.Errorf("marshal document %q: %w", item.docName(), err)
	}

	item.state = StateEnd
	if len(payload) >= drive.MaxWritePayload {
		total := int64(len(payload))
		err := e.uploader.Upload(ctx, "/docs/"+item.docName(), payload, func(sent, _ int64) {
			e.progress.Status(fmt.Sprintf("uploading %s: %d/%d bytes", item.docName(), sent, total))
		})
		if err != nil {
			// Persistence failure never poisons the in-memory index.
			e.logger.Error("chunked cache write failed",
				zap.String("doc", item.docName()),
				zap.Error(err),
			)
		}
		// Resubmit as END directly; no further round trip needed.
		e.ready.pushFront(item)
		return nil
	}

	item.writeReqID = uuid.NewString()
	item.pending = []drive.SubRequest{{
		ID:      item.writeReqID,
		Method:  http.MethodPut,
		Path:    "/docs/" + item.docName(),
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    payload,
	}}
	e.fetch.pushFront(item)
	return nil
}

// resolveOwnThumbnails inlines the thumbnails of the folder's own
// items (deferred until the folder finishes). Failures are non-fatal;
// the item keeps its remote URL.
func (e *Engine) resolveOwnThumbnails(ctx context.Context, item *WorkItem) error {
	var jobs []thumb.Job
	own := item.doc.GeoItems[:item.doc.ImmediateChildCount]
	for i := range own {
		if own[i].Thumbnail != "" && !atlas.IsInlineThumbnail(own[i].Thumbnail) {
			jobs = append(jobs, thumb.Job{URL: own[i].Thumbnail, Item: &own[i]})
		}
	}
	if len(jobs) == 0 {
		return nil
	}

	err := e.resolver.Resolve(ctx, jobs, func(resolved, total int, throttled bool) {
		if throttled {
			metrics.ThrottleEvents.WithLabelValues("thumbnail").Inc()
		}
		e.progress.Status(fmt.Sprintf("thumbnails %d/%d for %s", resolved, total, joinPath(item.path)))
	})
	if err != nil {
		return fmt.Errorf("resolve thumbnails for %q: %w", joinPath(item.path), err)
	}
	for _, job := range jobs {
		if atlas.IsInlineThumbnail(job.Item.Thumbnail) {
			metrics.Thumbnails.WithLabelValues("resolved").Inc()
		} else {
			metrics.Thumbnails.WithLabelValues("failed").Inc()
		}
	}
	return nil
}

func (e *Engine) processEnd(ctx context.Context, item *WorkItem) (*atlas.CacheDocument, bool, error) {
	if res, ok := item.responses[item.writeReqID]; ok && item.writeReqID != "" {
		if res.Throttled() {
			err := e.throttlePause(ctx, item, "document", func() {
				e.fetchFront(item, func() { e.rearmWrite(item) })
			})
			return nil, false, err
		}
		if !res.OK() {
			// Fatal for this folder's caching only; the collected
			// items still merge upward and remain queryable.
			e.logger.Error("cache document write rejected",
				zap.String("doc", item.docName()),
				zap.Int("status", res.Status),
			)
		}
	}

	if len(item.path) == 0 {
		e.progress.Status("index complete")
		return item.doc, true, nil
	}

	parentName := cacheDocName(item.path[:len(item.path)-1])
	parent, ok := e.waiting[parentName]
	if !ok {
		// Invariant violation: every non-root END has a waiting
		// parent by construction. Logged rather than crashing a crawl
		// that may be tens of minutes in.
		e.logger.Error("no waiting parent for finished subtree",
			zap.String("folder", joinPath(item.path)),
			zap.String("parent_doc", parentName),
		)
		return nil, false, nil
	}

	// The parent's folder table has grown as earlier siblings merged;
	// shift incoming folder indices past what is already there.
	base := len(parent.doc.Folders)
	for i := range item.doc.GeoItems {
		gi := item.doc.GeoItems[i]
		gi.FolderIndex += base
		parent.doc.GeoItems = append(parent.doc.GeoItems, gi)
	}
	parent.doc.Folders = append(parent.doc.Folders, item.doc.Folders...)

	parent.remainingSubfolders--
	if parent.remainingSubfolders == 0 {
		delete(e.waiting, parentName)
		if err := e.finishFolder(ctx, parent); err != nil {
			return nil, false, err
		}
	}
	return nil, false, nil
}

// rearmWrite re-queues the persistence write after a throttled write
// sub-response.
func (e *Engine) rearmWrite(item *WorkItem) {
	payload, err := json.Marshal(item.doc)
	if err != nil {
		e.logger.Error("re-marshal document failed", zap.String("doc", item.docName()), zap.Error(err))
		e.ready.pushFront(item)
		return
	}
	item.writeReqID = uuid.NewString()
	item.pending = []drive.SubRequest{{
		ID:      item.writeReqID,
		Method:  http.MethodPut,
		Path:    "/docs/" + item.docName(),
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    payload,
	}}
}

// fetchFront clears an item's request state, lets refresh rebuild its
// pending requests, and puts it at the head of the fetch queue.
func (e *Engine) fetchFront(item *WorkItem, refresh func()) {
	item.pending = nil
	refresh()
	if len(item.pending) > 0 {
		e.fetch.pushFront(item)
	}
}

// enqueueStartFront rebuilds a START item's two reads at the front of
// the fetch queue.
func (e *Engine) enqueueStartFront(item *WorkItem) {
	item.listReqID = uuid.NewString()
	item.docReqID = uuid.NewString()
	item.pending = []drive.SubRequest{
		{ID: item.listReqID, Method: http.MethodGet, Path: "/folders/" + item.folderID + "/children"},
		{ID: item.docReqID, Method: http.MethodGet, Path: "/docs/" + item.docName()},
	}
}

// emitItems publishes a batch whose FolderIndex values refer to
// folders; both are copied so downstream consumers own them.
func (e *Engine) emitItems(items []atlas.GeoItem, folders []string) {
	if len(items) == 0 {
		return
	}
	batch := make([]atlas.GeoItem, len(items))
	copy(batch, items)
	table := make([]string, len(folders))
	copy(table, folders)
	e.progress.Items(batch, table)
	metrics.ItemsIndexed.Add(float64(len(batch)))
}

// noteProgress advances the byte counter and reports a coarse ETA.
func (e *Engine) noteProgress(bytes int64) {
	e.lastActivity = e.clock.Now()
	if bytes <= 0 {
		return
	}
	e.bytesDone += bytes
	metrics.CrawlBytes.Add(float64(bytes))
	if e.bytesTotal <= 0 || e.bytesDone == 0 {
		return
	}
	elapsed := e.clock.Now().Sub(e.started)
	frac := float64(e.bytesDone) / float64(e.bytesTotal)
	if frac > 1 {
		frac = 1
	}
	remaining := time.Duration(float64(elapsed)/frac) - elapsed
	e.progress.Status(fmt.Sprintf("indexed %d of %d bytes (%.0f%%), eta %s",
		e.bytesDone, e.bytesTotal, frac*100, remaining.Round(time.Second)))
}
