package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/conceptforge/conceptforge/internal/metaproject"
	"github.com/conceptforge/conceptforge/internal/platform/httpx"
)

// Handler exposes the login endpoint: credentials in, session key out.
type Handler struct {
	logger   *slog.Logger
	login    *LoginService
	sessions TokenStore
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, login *LoginService, sessions TokenStore) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		login:    login,
		sessions: sessions,
		validate: validator.New(),
	}
}

// MountRoutes registers the login route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
}

type loginRequest struct {
	User     string `json:"user" validate:"required"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string    `json:"token"`
	User     string    `json:"user"`
	IssuedAt time.Time `json:"issued_at"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed login payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	token, err := h.login.Login(r.Context(), metaproject.UserID(req.User), req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
			return
		}
		h.logger.Error("login", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	key := uuid.NewString()
	if err := h.sessions.Put(r.Context(), key, token); err != nil {
		h.logger.Error("store session", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	h.logger.Info("login", slog.String("user", req.User))
	httpx.JSON(w, http.StatusOK, loginResponse{
		Token:    key,
		User:     string(token.User),
		IssuedAt: token.IssuedAt,
	})
}
