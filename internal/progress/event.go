// Package progress defines the event structures emitted by the crawl.
package progress

import (
	"errors"
	"fmt"
	"time"

	"photomap/internal/atlas"
)

// Kind denotes the type of milestone represented by an Event.
type Kind string

// Supported progress kinds.
const (
	KindCrawlStart Kind = "CRAWL_START"
	KindStatus     Kind = "STATUS"
	KindItems      Kind = "ITEMS"
	KindCrawlDone  Kind = "CRAWL_DONE"
	KindCrawlError Kind = "CRAWL_ERROR"
)

// Event captures a single component of crawl progress.
type Event struct {
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Kind denotes which lifecycle or streaming milestone occurred.
	Kind Kind
	// Status carries the human-readable progress line for STATUS events.
	Status string
	// Items carries newly indexed items for ITEMS events; Folders is
	// the folder-path table their FolderIndex values refer to.
	Items   []atlas.GeoItem
	Folders []string
	// Err carries the failure text for CRAWL_ERROR events.
	Err string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Kind {
	case KindCrawlStart, KindCrawlDone:
	case KindStatus:
		if e.Status == "" {
			return errors.New("status event requires text")
		}
	case KindItems:
		if len(e.Items) == 0 {
			return errors.New("items event requires items")
		}
	case KindCrawlError:
		if e.Err == "" {
			return errors.New("error event requires error text")
		}
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	return nil
}
