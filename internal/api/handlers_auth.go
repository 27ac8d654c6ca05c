package api

import (
	"encoding/json"
	"net/http"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrMalformedRequest, "invalid request body: "+err.Error())
		return
	}

	token, err := s.gate.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, ErrUnauthorized, "invalid username or password")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}
