package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"Taskly/internal/config"
	"Taskly/internal/middleware"
	"Taskly/internal/service"
)

// UserHandler — регистрация, вход и проверка сессии.
type UserHandler struct {
	UserService *service.UserService
	Logger      *zap.SugaredLogger
	Config      *config.Config
}

func NewUserHandler(userService *service.UserService, logger *zap.SugaredLogger, cfg *config.Config) *UserHandler {
	return &UserHandler{UserService: userService, Logger: logger, Config: cfg}
}

type credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type resultResponse struct {
	Result string `json:"result"`
}

func decodeCredentials(r *http.Request) (credentials, error) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		return c, err
	}
	if c.Login == "" || c.Password == "" {
		return c, service.ErrEmptyCredentials
	}
	return c, nil
}

// Register регистрация пользователя, сразу выдаёт cookie
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	creds, err := decodeCredentials(r)
	if err != nil {
		h.Logger.Warnw("Register: invalid request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.UserService.Register(r.Context(), creds.Login, creds.Password)
	switch {
	case errors.Is(err, service.ErrLoginTaken):
		writeError(w, http.StatusConflict, "login already taken")
		return
	case err != nil:
		h.Logger.Errorw("Register: service error", "login", creds.Login, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := middleware.SetLoginCookie(w, user.ID, h.Config.AuthSecret); err != nil {
		h.Logger.Errorw("Register: cannot issue token", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.Logger.Infow("user registered", "user_id", user.ID, "login", user.Login)
	writeJSON(w, http.StatusOK, resultResponse{Result: "registered"})
}

// Login вход по логину и паролю
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	creds, err := decodeCredentials(r)
	if err != nil {
		h.Logger.Warnw("Login: invalid request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.UserService.Login(r.Context(), creds.Login, creds.Password)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid login or password")
		return
	case err != nil:
		h.Logger.Errorw("Login: service error", "login", creds.Login, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := middleware.SetLoginCookie(w, user.ID, h.Config.AuthSecret); err != nil {
		h.Logger.Errorw("Login: cannot issue token", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Result: "ok"})
}

// Status проверка авторизации
func (h *UserHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, resultResponse{Result: "anonymous"})
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Result: fmt.Sprintf("authorized: User ID = %d", userID)})
}
