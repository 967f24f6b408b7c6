package api

import (
	"encoding/json"
	"net/http"
	"time"

	"photomap/internal/atlas"
	"photomap/internal/metrics"
	"photomap/internal/tiling"
)

// maxQueryPixelWidth bounds the grid resolution a client can request.
const maxQueryPixelWidth = 16384

type tilesRequest struct {
	Viewport   atlas.Viewport `json:"viewport"`
	PixelWidth int            `json:"pixelWidth"`
	Filter     atlas.Filter   `json:"filter"`
}

type tilesResponse struct {
	Tiles []atlas.Tile `json:"tiles"`
	Tally atlas.Tally  `json:"tally"`
}

func (s *Server) queryTiles(w http.ResponseWriter, r *http.Request) {
	var req tilesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.PixelWidth <= 0 || req.PixelWidth > maxQueryPixelWidth {
		s.writeError(w, http.StatusBadRequest, "pixelWidth must be between 1 and 16384")
		return
	}
	if req.Viewport.SW.Lat > req.Viewport.NE.Lat {
		s.writeError(w, http.StatusBadRequest, "viewport south edge is above its north edge")
		return
	}

	start := time.Now()
	items, folders := s.index.Snapshot()
	result := tiling.Tiles(tiling.Query{
		Viewport:   req.Viewport,
		PixelWidth: req.PixelWidth,
		Filter:     req.Filter,
	}, items, folders)
	metrics.QueryDuration.WithLabelValues("tiles").Observe(time.Since(start).Seconds())

	s.writeJSON(w, http.StatusOK, tilesResponse{Tiles: result.Tiles, Tally: result.Tally})
}

type boundsRequest struct {
	DateFrom atlas.Numdate `json:"dateFrom"`
	DateTo   atlas.Numdate `json:"dateTo"`
}

type boundsResponse struct {
	Bounds *atlas.Bounds `json:"bounds"`
}

func (s *Server) queryBounds(w http.ResponseWriter, r *http.Request) {
	var req boundsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	start := time.Now()
	items, _ := s.index.Snapshot()
	bounds, ok := tiling.BoundsForDateRange(items, req.DateFrom, req.DateTo)
	metrics.QueryDuration.WithLabelValues("bounds").Observe(time.Since(start).Seconds())

	if !ok {
		// No matching items; a null bounds tells the client to keep
		// its current view.
		s.writeJSON(w, http.StatusOK, boundsResponse{})
		return
	}
	s.writeJSON(w, http.StatusOK, boundsResponse{Bounds: &bounds})
}

type statusResponse struct {
	Status     string    `json:"status"`
	Items      int       `json:"items"`
	Building   bool      `json:"building"`
	LastUpdate time.Time `json:"lastUpdate"`
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	status, count, updated := s.index.Status()
	s.writeJSON(w, http.StatusOK, statusResponse{
		Status:     status,
		Items:      count,
		Building:   s.index.Building(),
		LastUpdate: updated,
	})
}
