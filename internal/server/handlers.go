package server

import (
	"net/http"
	"strconv"

	"twentyone/internal/game"
)

type createSessionRequest struct {
	MaxPlayers int    `json:"max_players"`
	HostName   string `json:"host_name"`
}

type startRequest struct {
	HostPlayerID uint `json:"host_player_id"`
}

type dealCardRequest struct {
	PlayerID uint `json:"player_id"`
}

type standPlayerRequest struct {
	PlayerID uint `json:"player_id"`
}

type rematchProposeRequest struct {
	HostPlayerID uint `json:"host_player_id"`
}

type rematchResponseRequest struct {
	PlayerID uint `json:"player_id"`
	Accepted bool `json:"accepted"`
}

func (s *Server) sessionID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

func (s *Server) user(w http.ResponseWriter, r *http.Request) (game.User, bool) {
	user, err := s.identities.Resolve(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return game.User{}, false
	}
	return user, true
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	var req createSessionRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	result, err := s.game.CreateSession(r.Context(), user, req.MaxPlayers, req.HostName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.game.ListOpenSessions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	snap, err := s.game.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	result, err := s.game.JoinSession(r.Context(), id, user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if _, ok := s.user(w, r); !ok {
		return
	}
	var req startRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	result, err := s.game.StartSession(r.Context(), id, req.HostPlayerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRequestCard(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	result, err := s.game.RequestCard(r.Context(), id, user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDealCard(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	var req dealCardRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	result, err := s.game.DealCard(r.Context(), id, user, req.PlayerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStand(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	result, err := s.game.Stand(r.Context(), id, user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStandPlayer(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	var req standPlayerRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	result, err := s.game.StandPlayer(r.Context(), id, user, req.PlayerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	result, err := s.game.LeaveSession(r.Context(), id, user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if _, ok := s.user(w, r); !ok {
		return
	}
	outcome, err := s.game.FinishSession(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if _, ok := s.user(w, r); !ok {
		return
	}
	outcome, err := s.game.RevealAndFinish(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleProposeRematch(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if _, ok := s.user(w, r); !ok {
		return
	}
	var req rematchProposeRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	result, err := s.game.ProposeRematch(r.Context(), id, req.HostPlayerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRematchResponse(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if _, ok := s.user(w, r); !ok {
		return
	}
	var req rematchResponseRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	result, err := s.game.RespondToRematch(r.Context(), id, req.PlayerID, req.Accepted)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCardRequests(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	requests, err := s.game.PendingCardRequests(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
}
