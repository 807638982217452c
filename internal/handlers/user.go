package handlers

import (
	"encoding/json"
	"net/http"

	"parking-ticket-backend/internal/middleware"
	"parking-ticket-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// UserHandler handles account HTTP requests
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PushTokenRequest represents the request body for device registration
type PushTokenRequest struct {
	Token string `json:"token"`
}

// Register handles POST /api/v1/auth/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.userService.Register(r.Context(), req)
	if err != nil {
		status, message := errorStatus(err)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Msg("Failed to register user")
		}
		respondError(w, message, status)
		return
	}

	log.Info().Str("user_id", user.ID).Msg("User registered")
	respondJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

// Login handles POST /api/v1/auth/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		status, message := errorStatus(err)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Msg("Failed to log in")
		}
		respondError(w, message, status)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// RegisterPushToken handles POST /api/v1/auth/push-token
func (h *UserHandler) RegisterPushToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req PushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.userService.RegisterPushToken(ctx, userID, req.Token); err != nil {
		status, message := errorStatus(err)
		if status == http.StatusNotFound {
			message = "User not found"
		}
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to register push token")
		}
		respondError(w, message, status)
		return
	}

	log.Info().Str("user_id", userID).Msg("Push token registered")
	respondJSON(w, http.StatusOK, map[string]string{"message": "Push token registered"})
}
