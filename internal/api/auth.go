package api

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/versafe/versafe-core/internal/apperr"
	"github.com/versafe/versafe-core/internal/idgen"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token   string       `json:"token"`
	Refresh string       `json:"refresh"`
	User    userResponse `json:"user"`
}

type userResponse struct {
	ID          idgen.ID `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), apperr.Wrap(apperr.KindValidation, "malformed request body", err))
		return
	}
	user, pair, err := s.core.Authenticate.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), err)
		return
	}
	writeData(w, http.StatusOK, loginResponse{
		Token:   pair.Token,
		Refresh: pair.Refresh,
		User:    userResponse{ID: user.ID, Email: user.Email, DisplayName: user.DisplayName},
	})
}

type refreshRequest struct {
	UserID  idgen.ID `json:"user_id"`
	Refresh string   `json:"refresh"`
}

type refreshResponse struct {
	Token   string `json:"token"`
	Refresh string `json:"refresh"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), apperr.Wrap(apperr.KindValidation, "malformed request body", err))
		return
	}
	pair, err := s.core.Authenticate.Refresh(r.Context(), req.Refresh, req.UserID)
	if err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), err)
		return
	}
	writeData(w, http.StatusOK, refreshResponse{Token: pair.Token, Refresh: pair.Refresh})
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), apperr.Wrap(apperr.KindValidation, "malformed request body", err))
		return
	}
	user, err := s.core.Authenticate.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), err)
		return
	}
	writeData(w, http.StatusCreated, userResponse{ID: user.ID, Email: user.Email, DisplayName: user.DisplayName})
}
