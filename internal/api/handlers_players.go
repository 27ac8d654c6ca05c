package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/outpost-sh/outpost/internal/auth"
	"github.com/outpost-sh/outpost/internal/instance"
)

// viewableInstance resolves the uuid route param to an instance the requester
// may view, writing the error response itself on failure.
func (s *Server) viewableInstance(w http.ResponseWriter, r *http.Request) (instance.Instance, bool) {
	requester := auth.FromContext(r.Context())
	id := instance.ID(chi.URLParam(r, "uuid"))

	inst, ok := s.registry.Get(id)
	if !ok {
		writeError(w, ErrInstanceNotFound, fmt.Sprintf("instance %s does not exist", id))
		return nil, false
	}
	if !requester.Can(auth.ViewInstance(id)) {
		writeError(w, ErrPermissionDenied, "you are not allowed to view this instance")
		return nil, false
	}
	return inst, true
}

func (s *Server) getPlayerList(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.viewableInstance(w, r)
	if !ok {
		return
	}

	players, err := inst.Players()
	if err != nil {
		writeError(w, ErrInternal, err.Error())
		return
	}
	if players == nil {
		players = []instance.Player{}
	}
	writeJSON(w, http.StatusOK, players)
}

func (s *Server) getPlayerCount(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.viewableInstance(w, r)
	if !ok {
		return
	}

	count, err := inst.PlayerCount()
	if err != nil {
		writeError(w, ErrInternal, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, count)
}

func (s *Server) getMaxPlayerCount(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.viewableInstance(w, r)
	if !ok {
		return
	}

	max, err := inst.MaxPlayerCount()
	if err != nil {
		writeError(w, ErrInternal, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, max)
}

func (s *Server) setMaxPlayerCount(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.viewableInstance(w, r)
	if !ok {
		return
	}

	var count int
	if err := json.NewDecoder(r.Body).Decode(&count); err != nil {
		writeError(w, ErrMalformedRequest, "invalid request body: "+err.Error())
		return
	}

	if err := inst.SetMaxPlayerCount(count); err != nil {
		writeError(w, ErrMalformedRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}
