package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/finder"
	"github.com/starford/sowilo/internal/listing"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/opener"
)

// Finder is the query engine behind the API.
type Finder interface {
	Query(ctx context.Context, raw string) *finder.Result
	Perform(ctx context.Context, a models.Action, op opener.Opener) ([]models.Effect, error)
}

// CacheController exposes and resets the listing cache.
type CacheController interface {
	Current() (listing.Listing, bool)
	Stats() (hits, misses int64)
	Reset()
}

// Handler holds API route handlers.
type Handler struct {
	finder Finder
	opener opener.Opener
	cache  CacheController
}

// NewHandler creates a new Handler. cache may be nil.
func NewHandler(f Finder, op opener.Opener, cache CacheController) *Handler {
	return &Handler{finder: f, opener: op, cache: cache}
}

// Find handles GET /api/find.
//
//	@Summary		Run a finder query
//	@Tags			finder
//	@Produce		json
//	@Param			q	query		string	false	"Raw input line; empty browses the root"
//	@Success		200	{object}	FindResponse
//	@Security		BearerAuth
//	@Router			/find [get]
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	res := h.finder.Query(r.Context(), r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, newFindResponse(res))
}

// Action handles POST /api/actions.
//
//	@Summary		Evaluate an item action
//	@Tags			finder
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.Action	true	"Action taken from a result item"
//	@Success		200		{object}	ActionResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/actions [post]
func (h *Handler) Action(w http.ResponseWriter, r *http.Request) {
	var a models.Action
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	effects, err := h.finder.Perform(r.Context(), a, h.opener)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrUnknownAction):
			writeJSON(w, http.StatusBadRequest, errorBody("unknown action"))
		case errors.Is(err, apperr.ErrOutsideRoot):
			writeJSON(w, http.StatusBadRequest, errorBody("path outside search directory"))
		default:
			slog.Error("perform action failed",
				slog.String("action", string(a.Kind)),
				slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, ActionResponse{Effects: effects})
}

// Cache handles GET /api/cache.
//
//	@Summary		Describe the cached directory listing
//	@Tags			finder
//	@Produce		json
//	@Success		200	{object}	CacheResponse
//	@Security		BearerAuth
//	@Router			/cache [get]
func (h *Handler) Cache(w http.ResponseWriter, _ *http.Request) {
	if h.cache == nil {
		writeJSON(w, http.StatusOK, CacheResponse{})
		return
	}
	var resp CacheResponse
	resp.Hits, resp.Misses = h.cache.Stats()
	if l, ok := h.cache.Current(); ok {
		resp.Cached = true
		resp.Dir = l.Dir
		resp.Recursive = l.Recursive
		resp.Entries = len(l.Entries)
		resp.WalkedAt = l.WalkedAt.UTC().Format(time.RFC3339)
		resp.TookMS = float64(l.Took.Microseconds()) / 1000
	}
	writeJSON(w, http.StatusOK, resp)
}

// ResetCache handles POST /api/cache/reset. The next query walks again.
//
//	@Summary		Drop the cached directory listing
//	@Tags			finder
//	@Success		204
//	@Security		BearerAuth
//	@Router			/cache/reset [post]
func (h *Handler) ResetCache(w http.ResponseWriter, _ *http.Request) {
	if h.cache != nil {
		h.cache.Reset()
	}
	w.WriteHeader(http.StatusNoContent)
}
