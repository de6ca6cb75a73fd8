package api

import (
	"net/http"

	"github.com/okian/facequiz/pkg/logger"
)

// VisitorHandler serves the visitor and game counters.
type VisitorHandler struct {
	tracker VisitTracker
	logger  logger.Logger
}

// NewVisitorHandler creates a new visitor handler.
func NewVisitorHandler(tracker VisitTracker, l logger.Logger) *VisitorHandler {
	return &VisitorHandler{tracker: tracker, logger: l}
}

// HandleVisitorCount handles GET /visitor-count.
func (h *VisitorHandler) HandleVisitorCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.tracker.VisitorCount(r.Context())
	if err != nil {
		fail(r.Context(), h.logger, w, "visitor_count", err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: n})
}

// HandleHistory handles GET /visitor-count-history.
func (h *VisitorHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	days, err := h.tracker.VisitorHistory(r.Context())
	if err != nil {
		fail(r.Context(), h.logger, w, "visitor_history", err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(days))
}

// HandleTopCountries handles GET /topPlayedCountryCodes?n=N.
func (h *VisitorHandler) HandleTopCountries(w http.ResponseWriter, r *http.Request) {
	top, err := h.tracker.TopCountries(r.Context(), intOr(r.URL.Query().Get("n"), 0))
	if err != nil {
		fail(r.Context(), h.logger, w, "top_countries", err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(top))
}

// HandleIncrementGames handles POST /increment-games.
func (h *VisitorHandler) HandleIncrementGames(w http.ResponseWriter, r *http.Request) {
	n, err := h.tracker.IncrementGames(r.Context())
	if err != nil {
		fail(r.Context(), h.logger, w, "increment_games", err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: n})
}

// HandleGameCount handles GET /game-count.
func (h *VisitorHandler) HandleGameCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.tracker.GameCount(r.Context())
	if err != nil {
		fail(r.Context(), h.logger, w, "game_count", err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: n})
}
