package api

import (
	"net/http"

	"github.com/okian/facequiz/pkg/logger"
)

const defaultQuizRounds = 10

// PeopleHandler serves person samples and quiz rounds.
type PeopleHandler struct {
	people PeopleReader
	logger logger.Logger
}

// NewPeopleHandler creates a new people handler.
func NewPeopleHandler(people PeopleReader, l logger.Logger) *PeopleHandler {
	return &PeopleHandler{people: people, logger: l}
}

// HandleRandom handles GET /random: a list holding one random record.
func (h *PeopleHandler) HandleRandom(w http.ResponseWriter, r *http.Request) {
	h.random(w, r, 1)
}

// HandleRandomCount handles GET /random/{count}. Counts that are not
// positive integers sample one record.
func (h *PeopleHandler) HandleRandomCount(w http.ResponseWriter, r *http.Request) {
	h.random(w, r, positiveOr(r.PathValue("count"), 1))
}

func (h *PeopleHandler) random(w http.ResponseWriter, r *http.Request, n int) {
	out, err := h.people.Random(r.Context(), n)
	if err != nil {
		fail(r.Context(), h.logger, w, "random", err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(out))
}

// HandlePeople handles GET /people.
//
// Query: name, ethnicity, gender (exact), occupation (repeatable or comma
// separated), minAge, maxAge, limit. Unparsable numbers do not filter.
func (h *PeopleHandler) HandlePeople(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.people.People(r.Context(), peopleFilter(q), intOr(q.Get("limit"), 0))
	if err != nil {
		fail(r.Context(), h.logger, w, "people", err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(out))
}

// HandleGrouped handles GET /people/grouped?limit=N.
func (h *PeopleHandler) HandleGrouped(w http.ResponseWriter, r *http.Request) {
	rounds, err := h.people.Grouped(r.Context(), positiveOr(r.URL.Query().Get("limit"), defaultQuizRounds))
	if err != nil {
		fail(r.Context(), h.logger, w, "people_grouped", err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(rounds))
}
