// Package drive implements the client for the remote hierarchical
// photo store: folder listings, per-folder cache documents, the
// batched request protocol with its response quirks, and the chunked
// upload path for oversized cache documents.
package drive

import (
	"encoding/json"
	"time"
)

// Item is one entry in a folder listing.
type Item struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Size         int64          `json:"size"`
	LastModified time.Time      `json:"lastModifiedDateTime"`
	ETag         string         `json:"eTag"`
	CTag         string         `json:"cTag"`
	Folder       *FolderFacet   `json:"folder,omitempty"`
	Photo        *PhotoFacet    `json:"photo,omitempty"`
	Location     *LocationFacet `json:"location,omitempty"`
	ThumbnailURL string         `json:"thumbnailUrl,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
}

// IsFolder reports whether the item is a subfolder.
func (i *Item) IsFolder() bool {
	return i.Folder != nil
}

// FolderFacet is present on folder items.
type FolderFacet struct {
	ChildCount int `json:"childCount"`
}

// PhotoFacet carries capture metadata for photos and videos.
type PhotoFacet struct {
	TakenDateTime time.Time `json:"takenDateTime"`
}

// LocationFacet carries GPS coordinates when the backend extracted
// them from the media's metadata.
type LocationFacet struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ListPage is one page of a children listing.
type ListPage struct {
	Value    []Item `json:"value"`
	NextLink string `json:"@odata.nextLink,omitempty"`
}

// SubRequest is one logical request inside a batch call. ID correlates
// the matching SubResponse.
type SubRequest struct {
	ID      string            `json:"id"`
	Method  string            `json:"method"`
	Path    string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// SubResponse is one demultiplexed response from a batch call.
type SubResponse struct {
	ID      string            `json:"id"`
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// Throttled reports whether the sub-response signals backend
// throttling (a scheduling event, never a failure).
func (r SubResponse) Throttled() bool {
	return r.Status == 429 || r.Status == 503
}

// OK reports whether the sub-response carries a success status.
func (r SubResponse) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

type batchEnvelope struct {
	Requests []SubRequest `json:"requests"`
}

type batchPayload struct {
	Responses []SubResponse `json:"responses"`
}

// uploadSession is the response to a createUploadSession call.
type uploadSession struct {
	UploadURL string `json:"uploadUrl"`
}
