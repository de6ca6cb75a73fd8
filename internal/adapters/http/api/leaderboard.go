// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	service "github.com/okian/facequiz/internal/app"
	"github.com/okian/facequiz/internal/domain/model"
	"github.com/okian/facequiz/pkg/logger"
)

const maxSubmitBody = 4 << 10

// LeaderboardHandler handles leaderboard reads and submissions.
type LeaderboardHandler struct {
	board  Leaderboard
	logger logger.Logger
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(board Leaderboard, l logger.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{board: board, logger: l}
}

type submitRequest struct {
	Name   string `json:"name"`
	Scored int    `json:"scored"`
	Total  int    `json:"total"`
}

type submitResponse struct {
	Success  bool                    `json:"success"`
	Conflict bool                    `json:"conflict,omitempty"`
	Entry    *model.LeaderboardEntry `json:"entry,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

type isLeaderResponse struct {
	IsLeader bool `json:"isLeader"`
}

// HandleGetLeaderboard handles GET /leaderboard. Keys are quiz lengths.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.board.ListTop(r.Context())
	if err != nil {
		fail(r.Context(), h.logger, w, "leaderboard", err)
		return
	}
	out := make(map[string][]model.RankedEntry, len(board))
	for total, entries := range board {
		out[strconv.Itoa(total)] = orEmpty(entries)
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleSubmit handles POST /leaderboard with {name, scored, total}.
func (h *LeaderboardHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmitBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: invalid JSON body", ErrBadRequest))
		return
	}

	res, err := h.board.Submit(r.Context(), req.Name, req.Scored, req.Total)
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	case err != nil:
		fail(r.Context(), h.logger, w, "leaderboard_submit", err)
		return
	case res.Conflict:
		writeJSON(w, http.StatusConflict, submitResponse{
			Conflict: true,
			Error:    fmt.Sprintf("%q already has a score for %d questions", req.Name, req.Total),
		})
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{Success: true, Entry: &res.Entry})
}

// HandleIsLeader handles GET /is-leader?scored=S&total=T. Numbers are read
// from their leading digits like the other query params; values with no
// leading number become NaN rather than a 400.
func (h *LeaderboardHandler) HandleIsLeader(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ok, err := h.board.IsLeader(r.Context(), floatOrNaN(q.Get("scored")), floatOrNaN(q.Get("total")))
	if err != nil {
		fail(r.Context(), h.logger, w, "is_leader", err)
		return
	}
	writeJSON(w, http.StatusOK, isLeaderResponse{IsLeader: ok})
}
