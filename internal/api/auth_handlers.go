package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/callgreet/callgreet/internal/api/middleware"
	"github.com/callgreet/callgreet/internal/database"
	"github.com/callgreet/callgreet/internal/database/models"
)

type setupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	Username  string `json:"username"`
}

type meResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// handleSetup creates the first admin user. It only works while no admin
// exists; after that it always returns 409.
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	var req setupRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	if errMsg := validateUsername(req.Username); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validatePassword(req.Password); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	ctx := r.Context()

	count, err := s.users.Count(ctx)
	if err != nil {
		slog.Error("setup: failed to count admin users", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if count > 0 {
		writeError(w, http.StatusConflict, "setup already completed")
		return
	}

	hash, err := database.HashPassword(req.Password)
	if err != nil {
		slog.Error("setup: failed to hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user := &models.AdminUser{Username: req.Username, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		slog.Error("setup: failed to create admin user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("admin user created", "username", req.Username)
	writeJSON(w, http.StatusCreated, map[string]string{"username": req.Username})
}

// handleLogin verifies credentials and issues a JWT.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	user, err := s.users.GetByUsername(r.Context(), req.Username)
	if err != nil {
		// Same response for unknown user and bad password.
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	ok, err := database.CheckPassword(req.Password, user.PasswordHash)
	if err != nil || !ok {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, expiresAt, err := middleware.GenerateToken(s.jwtSecret, user.ID, user.Username)
	if err != nil {
		slog.Error("login: failed to generate token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
		Username:  user.Username,
	})
}

// handleMe returns the authenticated admin user.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, meResponse{ID: user.ID, Username: user.Username})
}
