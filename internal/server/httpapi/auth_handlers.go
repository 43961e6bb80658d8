package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/simpleauth/internal/server/services"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type accessTokenResponse struct {
	AccessToken  string `json:"accessToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	RefreshToken string `json:"refreshToken"`
}

func toAccessTokenResponse(r *services.AccessTokenResponse) accessTokenResponse {
	return accessTokenResponse{
		AccessToken:  r.AccessToken,
		ExpiresIn:    r.ExpiresIn,
		RefreshToken: r.RefreshToken,
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	resp, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.logger.Warn(r.Context(), "login rejected", "username", req.Username)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccessTokenResponse(resp))
}

func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refreshToken is required")
		return
	}

	resp, err := s.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.logger.Warn(r.Context(), "refresh rejected")
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccessTokenResponse(resp))
}
