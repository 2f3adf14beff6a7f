// AngelaMos | 2026
// handler.go

package session

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/harborview/gateway/internal/core"
	"github.com/harborview/gateway/internal/middleware"
	"github.com/harborview/gateway/internal/refresh"
	"github.com/harborview/gateway/internal/token"
)

type TokenDecoder interface {
	Decode(raw string) (*token.ClaimSet, error)
}

// Handler exposes the caller's own session surface: identity echo, active
// devices, device revocation and logout. Identity is established upstream
// by the gate.
type Handler struct {
	coordinator *refresh.Coordinator
	decoder     TokenDecoder
}

func NewHandler(coordinator *refresh.Coordinator, decoder TokenDecoder) *Handler {
	return &Handler{coordinator: coordinator, decoder: decoder}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/session", func(r chi.Router) {
		r.Get("/me", h.GetMe)
		r.Get("/sessions", h.GetSessions)
		r.Delete("/sessions/{deviceID}", h.RevokeSession)
		r.Post("/logout", h.Logout)
	})
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		core.Unauthorized(w, "")
		return
	}

	core.OK(w, MeResponse{
		Username:   identity.Username,
		Email:      identity.Email,
		Department: identity.Department,
		JobTitle:   identity.JobTitle,
		Role:       identity.Role,
	})
}

func (h *Handler) GetSessions(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())
	if username == "" {
		core.Unauthorized(w, "")
		return
	}

	sessions, err := h.coordinator.ActiveSessions(r.Context(), username)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, SessionsResponse{Sessions: sessions})
}

func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())
	if username == "" {
		core.Unauthorized(w, "")
		return
	}

	deviceID := chi.URLParam(r, "deviceID")
	if deviceID == "" {
		core.BadRequest(w, "device ID required")
		return
	}

	if err := h.coordinator.RevokeDevice(r.Context(), username, deviceID); err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())
	if username == "" {
		core.Unauthorized(w, "")
		return
	}

	refreshCookie := ""
	if cookie, err := r.Cookie(middleware.RefreshCookieName); err == nil {
		refreshCookie = cookie.Value
	}

	err := h.coordinator.Logout(r.Context(), refreshCookie, username)
	if err != nil {
		if errors.Is(err, core.ErrForbidden) {
			core.Forbidden(w, "cannot revoke another user's session")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	// The access token outlives the chain revocation unless it is
	// blacklisted for the rest of its lifetime.
	if cookie, cookieErr := r.Cookie(middleware.AuthCookieName); cookieErr == nil {
		if claims, decodeErr := h.decoder.Decode(cookie.Value); decodeErr == nil {
			if blErr := h.coordinator.BlacklistAccessToken(r.Context(), claims); blErr != nil {
				slog.Warn("access token blacklist failed",
					"username", username,
					"error", blErr,
				)
			}
		}
	}

	middleware.ClearSessionCookies(w, r)
	core.NoContent(w)
}
