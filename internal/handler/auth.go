package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/timecapsule/timecapsule/internal/auth"
	"github.com/timecapsule/timecapsule/internal/handler/dto"
	"github.com/timecapsule/timecapsule/internal/model"
	"github.com/timecapsule/timecapsule/internal/service"
)

// AccountService registers users and issues session tokens.
type AccountService interface {
	Register(ctx context.Context, input service.RegisterInput) (*model.User, error)
	Login(ctx context.Context, email, password string) (auth.Token, error)
}

// AuthHandler handles registration and login.
type AuthHandler struct {
	svc    AccountService
	logger *slog.Logger
	now    func() time.Time
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc AccountService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		svc:    svc,
		logger: logger,
		now:    time.Now,
	}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	user, err := h.svc.Register(r.Context(), service.RegisterInput{
		Name:     req.Nome,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ToUserResponse(user))
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToTokenResponse(token, h.now()))
}
