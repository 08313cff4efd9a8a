package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/chatterbox-server/chatterbox/internal/api/middleware"
	"github.com/chatterbox-server/chatterbox/internal/database"
	"github.com/chatterbox-server/chatterbox/internal/database/models"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 32
	minPasswordLen = 6
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// validate normalizes the username and checks both fields.
func (req *credentialsRequest) validate() error {
	req.Username = strings.TrimSpace(req.Username)
	if len(req.Username) < minUsernameLen || len(req.Username) > maxUsernameLen {
		return errors.New("username must be between 3 and 32 characters")
	}
	if len(req.Password) < minPasswordLen {
		return errors.New("password must be at least 6 characters")
	}
	return nil
}

// handleRegister creates a new account.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := database.HashPassword(req.Password)
	if err != nil {
		slog.Error("password hashing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	user := &models.User{Username: req.Username, PasswordHash: hash}
	if err := s.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, database.ErrUsernameTaken) {
			writeError(w, http.StatusConflict, "username already exists")
			return
		}
		slog.Error("user create failed", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	slog.Info("user registered", "username", req.Username)
	writeJSON(w, http.StatusCreated, response{
		Success: true,
		Message: "User registered successfully",
	})
}

type loginResponse struct {
	response
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	Username  string `json:"username"`
}

// handleLogin verifies credentials and issues an API token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	user, err := s.users.GetByUsername(r.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, database.ErrUserNotFound) {
			slog.Error("user lookup failed", "username", req.Username, "error", err)
		}
		// Same response for unknown user and wrong password.
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	if !database.CheckPassword(req.Password, user.PasswordHash) {
		slog.Warn("failed login attempt", "username", req.Username, "remote_addr", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token, expiresAt, err := middleware.GenerateToken(s.jwtSecret, user.Username)
	if err != nil {
		slog.Error("token generation failed", "username", user.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	if err := s.users.TouchLastLogin(r.Context(), user.Username); err != nil {
		slog.Warn("failed to update last login", "username", user.Username, "error", err)
	}

	slog.Info("user logged in", "username", user.Username)
	writeJSON(w, http.StatusOK, loginResponse{
		response:  response{Success: true, Message: "Login successful"},
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
		Username:  user.Username,
	})
}
