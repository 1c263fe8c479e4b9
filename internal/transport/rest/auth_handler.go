package rest

import (
	"errors"
	"log/slog"
	"net/http"

	catalogerrors "github.com/abgdnv/gocatalog/internal/errors"
	"github.com/abgdnv/gocatalog/internal/service"
	"github.com/abgdnv/gocatalog/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// AuthHandler serves the public registration and login endpoints.
type AuthHandler struct {
	auth   service.AuthService
	binder *Handler
	logger *slog.Logger
}

func NewAuthHandler(auth service.AuthService, logger *slog.Logger) *AuthHandler {
	logger = logger.With("component", "rest_auth")
	return &AuthHandler{
		auth:   auth,
		binder: &Handler{validate: validator.New(), logger: logger},
		logger: logger,
	}
}

func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var dto service.RegisterDto
	if !h.binder.bind(w, r, &dto) {
		return
	}

	created, err := h.auth.Register(r.Context(), dto)
	if err != nil {
		if errors.Is(err, catalogerrors.ErrUserExists) {
			web.RespondError(w, h.logger, http.StatusConflict, "User already exists!")
			return
		}
		h.logger.ErrorContext(r.Context(), "Failed to register user", "error", err)
		web.RespondError(w, h.logger, http.StatusInternalServerError, "Failed to register user")
		return
	}
	web.RespondOK(w, h.logger, http.StatusCreated, "User created successfully!", created)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var dto service.LoginDto
	if !h.binder.bind(w, r, &dto) {
		return
	}

	token, err := h.auth.Login(r.Context(), dto)
	if err != nil {
		if errors.Is(err, catalogerrors.ErrInvalidCredentials) {
			h.logger.WarnContext(r.Context(), "Rejected login", "username", dto.Username)
			web.RespondError(w, h.logger, http.StatusUnauthorized, "Invalid credentials!")
			return
		}
		h.logger.ErrorContext(r.Context(), "Failed to log in", "error", err)
		web.RespondError(w, h.logger, http.StatusInternalServerError, "Failed to log in")
		return
	}
	web.RespondOK(w, h.logger, http.StatusOK, "Login successful!", token)
}
