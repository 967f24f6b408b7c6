package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"photomap/internal/atlas"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func (s *captureSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, batch...)
	return nil
}

func (s *captureSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *captureSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func TestHubDeliversEventsInOrder(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{MaxBatchWait: 10 * time.Millisecond}, sink)

	hub.CrawlStarted()
	hub.Status("listing folders")
	hub.Items([]atlas.GeoItem{{ID: "a"}, {ID: "b"}}, []string{"trips"})
	hub.CrawlFinished(nil)

	require.NoError(t, hub.Close(context.Background()))

	events := sink.snapshot()
	require.Len(t, events, 4)
	require.Equal(t, KindCrawlStart, events[0].Kind)
	require.Equal(t, KindStatus, events[1].Kind)
	require.Equal(t, "listing folders", events[1].Status)
	require.Equal(t, KindItems, events[2].Kind)
	require.Len(t, events[2].Items, 2)
	require.Equal(t, KindCrawlDone, events[3].Kind)
	require.True(t, sink.closed)
}

func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)

	hub.Emit(Event{TS: time.Now(), Kind: KindStatus}) // missing text
	hub.Emit(Event{Kind: KindCrawlStart})             // missing timestamp
	hub.Status("valid")

	require.NoError(t, hub.Close(context.Background()))
	events := sink.snapshot()
	require.Len(t, events, 1)
	require.Equal(t, "valid", events[0].Status)
}

func TestHubNeverBlocksWhenBufferFull(t *testing.T) {
	t.Parallel()

	// A sink that blocks until released keeps the hub's buffer full.
	release := make(chan struct{})
	blocking := &blockingSink{release: release}
	hub := NewHub(Config{BufferSize: 1, MaxBatchEvents: 1, MaxBatchWait: time.Millisecond}, blocking)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			hub.Status("flood")
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("emitters blocked on a saturated hub")
	}
	close(release)
	require.NoError(t, hub.Close(context.Background()))
}

func TestHubCrawlFinishedError(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)
	hub.CrawlFinished(context.DeadlineExceeded)
	require.NoError(t, hub.Close(context.Background()))

	events := sink.snapshot()
	require.Len(t, events, 1)
	require.Equal(t, KindCrawlError, events[0].Kind)
	require.Contains(t, events[0].Err, "deadline")
}

type blockingSink struct {
	release <-chan struct{}
}

func (s *blockingSink) Consume(ctx context.Context, _ []Event) error {
	select {
	case <-s.release:
	case <-ctx.Done():
	}
	return nil
}

func (s *blockingSink) Close(context.Context) error { return nil }
