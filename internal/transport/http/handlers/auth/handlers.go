package authhandler

import (
	"context"
	"errors"
	"net/http"

	"teacherhr/internal/domain/auth"
	"teacherhr/internal/platform/logger"
	"teacherhr/internal/transport/http/api"
	"teacherhr/internal/transport/http/middleware"
	"teacherhr/internal/transport/http/shared"
)

type Service interface {
	Login(ctx context.Context, email, password string) (auth.Session, error)
	Me(ctx context.Context, userID string) (auth.AuthUser, error)
}

type Handler struct {
	Service Service
	Log     *logger.Logger
}

func NewHandler(service Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{Service: service, Log: log}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload loginRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}

	session, err := h.Service.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.Log.Info("login rejected", "email", payload.Email, "ip", middleware.ClientIP(r))
			api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", reqID)
			return
		}
		h.Log.Error("login failed", "error", err, "request_id", reqID)
		api.Fail(w, http.StatusInternalServerError, "login_failed", "failed to sign in", reqID)
		return
	}
	api.Success(w, session, reqID)
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	me, err := h.Service.Me(r.Context(), user.UserID)
	if err != nil {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "account is no longer active", reqID)
		return
	}
	api.Success(w, me, reqID)
}
