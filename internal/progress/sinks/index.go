package sinks

import (
	"context"

	"photomap/internal/atlas"
	"photomap/internal/progress"
)

// Index is the slice of the live query index this sink needs.
type Index interface {
	Begin()
	Add(items []atlas.GeoItem, folders []string)
	Commit()
	Abort()
	SetStatus(status string)
}

// IndexSink feeds the progress stream into the live query index, so
// queries see items as the crawl streams them in.
type IndexSink struct {
	index Index
}

// NewIndexSink constructs an IndexSink over the provided index.
func NewIndexSink(index Index) *IndexSink {
	return &IndexSink{index: index}
}

// Consume applies the batch to the index in event order.
func (s *IndexSink) Consume(_ context.Context, batch []progress.Event) error {
	if s == nil || s.index == nil {
		return nil
	}
	for _, evt := range batch {
		switch evt.Kind {
		case progress.KindCrawlStart:
			s.index.Begin()
		case progress.KindItems:
			s.index.Add(evt.Items, evt.Folders)
		case progress.KindStatus:
			s.index.SetStatus(evt.Status)
		case progress.KindCrawlDone:
			s.index.Commit()
			s.index.SetStatus("index complete")
		case progress.KindCrawlError:
			s.index.Abort()
			s.index.SetStatus("crawl failed: " + evt.Err)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *IndexSink) Close(context.Context) error {
	return nil
}
