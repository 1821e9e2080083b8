package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"gametrack/pkg/catalog"
)

const (
	filtersKey = "catalog:filters"
	filtersTTL = 24 * time.Hour
)

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// handleListGames serves the filtered, sorted, paginated catalog listing.
//
// Query parameters: q, genre, platform, publisher, order (popular|name|date),
// asc, page, page_size, adult. The adult flag only takes effect for callers
// holding the admin token; everyone else gets the filtered view.
func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	params := catalog.ListParams{
		Text:  r.URL.Query().Get("q"),
		Order: catalog.Order(r.URL.Query().Get("order")),
		Asc:   r.URL.Query().Get("asc") == "true",
	}

	var err error
	if params.Genre, err = optionalID(r, "genre"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid genre")
		return
	}
	if params.Platform, err = optionalID(r, "platform"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid platform")
		return
	}
	if params.Publisher, err = optionalID(r, "publisher"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid publisher")
		return
	}

	params.Page = intParam(r, "page", 1)
	params.PageSize = intParam(r, "page_size", catalog.DefaultPageSize)
	if params.PageSize > catalog.DefaultPageSize {
		params.PageSize = catalog.DefaultPageSize
	}

	if r.URL.Query().Get("adult") == "true" && s.isAdmin(r) {
		params.IncludeAdult = true
	}

	result, err := s.query.List(params)
	if errors.Is(err, catalog.ErrPreparing) {
		writeJSON(w, http.StatusAccepted, statusResponse{Status: "downloading"})
		return
	}
	if err != nil {
		s.logger.WithHTTP().WithError(err).Error("Catalog listing failed")
		writeError(w, http.StatusInternalServerError, "catalog unavailable")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetGame looks up a single item: relational store first when
// configured, then the upstream API.
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return
	}

	if s.details != nil {
		item, err := s.details.GetItem(r.Context(), id)
		if err != nil {
			s.logger.WithHTTP().WithError(err).Warn("Detail store lookup failed, falling back to API")
		} else if item != nil {
			writeJSON(w, http.StatusOK, item)
			return
		}
	}

	if s.remote == nil {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}

	game, err := s.remote.GameByID(r.Context(), id)
	if err != nil {
		s.logger.WithHTTP().WithError(err).Error("Upstream detail lookup failed")
		writeError(w, http.StatusBadGateway, "upstream lookup failed")
		return
	}
	if game == nil {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}

	writeJSON(w, http.StatusOK, catalog.FromGame(*game))
}

// handleFilters serves the genre/platform/theme option lists, cached for a
// day since they change on IGDB's timescale, not ours.
func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	if s.cache != nil {
		if data, err := s.cache.Get(filtersKey); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(data)
			return
		}
	}

	if s.remote == nil {
		writeError(w, http.StatusServiceUnavailable, "filters unavailable")
		return
	}

	options, err := s.remote.Filters(r.Context())
	if err != nil {
		s.logger.WithHTTP().WithError(err).Error("Filter option fetch failed")
		writeError(w, http.StatusBadGateway, "upstream filter fetch failed")
		return
	}

	if s.cache != nil {
		if data, err := json.Marshal(options); err == nil {
			if err := s.cache.Set(filtersKey, data, filtersTTL); err != nil {
				s.logger.WithHTTP().WithError(err).Warn("Failed to cache filter options")
			}
		}
	}

	writeJSON(w, http.StatusOK, options)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.query.Stats(intParam(r, "sample", 10))
	if err != nil {
		s.logger.WithHTTP().WithError(err).Error("Stats computation failed")
		writeError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.control.Status())
}

func (s *Server) handleSyncStart(w http.ResponseWriter, r *http.Request) {
	err := s.control.TriggerNow()
	if errors.Is(err, catalog.ErrAlreadyRunning) {
		writeJSON(w, http.StatusConflict, statusResponse{Status: "already running"})
		return
	}
	if err != nil {
		s.logger.WithHTTP().WithError(err).Error("Refresh trigger failed")
		writeError(w, http.StatusInternalServerError, "failed to start refresh")
		return
	}
	writeJSON(w, http.StatusAccepted, statusResponse{Status: "started"})
}

func (s *Server) handleSyncStop(w http.ResponseWriter, r *http.Request) {
	if err := s.control.RequestStop(); err != nil {
		s.logger.WithHTTP().WithError(err).Error("Stop request failed")
		writeError(w, http.StatusInternalServerError, "failed to request stop")
		return
	}
	writeJSON(w, http.StatusAccepted, statusResponse{Status: "stop requested"})
}

// handleSyncClear drops the snapshot and sync state. Admin only: losing the
// snapshot degrades every reader until the next refresh completes.
func (s *Server) handleSyncClear(w http.ResponseWriter, r *http.Request) {
	if !s.isAdmin(r) {
		writeError(w, http.StatusForbidden, "admin token required")
		return
	}

	if err := s.snapshots.Clear(); err != nil {
		s.logger.WithHTTP().WithError(err).Error("Snapshot clear failed")
		writeError(w, http.StatusInternalServerError, "failed to clear snapshot")
		return
	}
	if err := s.states.Clear(); err != nil {
		s.logger.WithHTTP().WithError(err).Error("State clear failed")
		writeError(w, http.StatusInternalServerError, "failed to clear sync state")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: "cleared"})
}

func optionalID(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func intParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
