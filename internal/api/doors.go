package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/doorsync/doorsync-core/internal/door"
	"github.com/doorsync/doorsync-core/internal/history"
)

// statusResponse is the body of GET /api/v1/status.
type statusResponse struct {
	Stream string            `json:"stream"`
	Doors  map[string]string `json:"doors"`
}

// doorResponse is the body of GET /api/v1/doors/{id}.
type doorResponse struct {
	DoorID int    `json:"door_id"`
	State  string `json:"state"`
	Moving bool   `json:"moving"`
}

// handleStatus returns all door states plus the stream connection state.
//
// Clients should treat the snapshot as possibly stale whenever stream is
// not "connected".
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.store.Snapshot()

	doors := make(map[string]string, len(snapshot))
	for id, state := range snapshot {
		doors[strconv.Itoa(int(id))] = string(state)
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Stream: string(s.stream.State()),
		Doors:  doors,
	})
}

// handleGetDoor returns one door's state.
func (s *Server) handleGetDoor(w http.ResponseWriter, r *http.Request) {
	id, ok := doorIDParam(w, r)
	if !ok {
		return
	}

	state, err := s.store.Get(id)
	if err != nil {
		writeNotFound(w, "door not found")
		return
	}

	writeJSON(w, http.StatusOK, doorResponse{
		DoorID: int(id),
		State:  string(state),
		Moving: state.Moving(),
	})
}

// handleDoorHistory returns recent transitions for one door, newest first.
//
// Responds 404 when the history store is disabled in config.
func (s *Server) handleDoorHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeNotFound(w, "history is disabled")
		return
	}

	id, ok := doorIDParam(w, r)
	if !ok {
		return
	}
	if !s.store.Has(id) {
		writeNotFound(w, "door not found")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	entries, err := s.history.RecentForDoor(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("querying door history", "door_id", int(id), "error", err)
		writeInternalError(w, "querying history")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"door_id": int(id),
		"entries": entries,
	})
}

// doorIDParam parses the {id} route parameter, writing a 400 on failure.
func doorIDParam(w http.ResponseWriter, r *http.Request) (door.ID, bool) {
	raw := chi.URLParam(r, "id")
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeBadRequest(w, "door id must be an integer")
		return 0, false
	}
	return door.ID(n), true
}
