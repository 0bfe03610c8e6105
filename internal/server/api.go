package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pulse/internal/models"
	"github.com/desertthunder/pulse/internal/shared"
)

// TokenAPI is the session surface exposed over HTTP.
type TokenAPI interface {
	Tokens(ctx context.Context) (models.TokenPair, error)
	Refresh(ctx context.Context, force bool) (models.TokenPair, error)
	Logout(ctx context.Context) error
}

// ColorAPI is the color cache surface exposed over HTTP.
type ColorAPI interface {
	Cached(ctx context.Context, entityID string) (models.RGB, bool)
	Extract(ctx context.Context, entityID, imageURL string) (models.RGB, error)
}

// APIHandler serves the companion JSON API.
type APIHandler struct {
	tokens TokenAPI
	colors ColorAPI
	logger *log.Logger
}

// TokenResponse is the body of the token endpoints.
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	ExpiresIn    int       `json:"expires_in"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewAPIHandler creates an [APIHandler]. A nil colors disables the color route.
func NewAPIHandler(tokens TokenAPI, colors ColorAPI, logger *log.Logger) *APIHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &APIHandler{
		tokens: tokens,
		colors: colors,
		logger: shared.WithLogger(logger, "component", "api"),
	}
}

// Register adds the API routes to r.
func (h *APIHandler) Register(r *BasicRouter) {
	r.HandleFunc(http.MethodGet, "/api/auth/tokens", h.getTokens)
	r.HandleFunc(http.MethodPost, "/api/auth/refresh", h.refresh)
	r.HandleFunc(http.MethodPost, "/api/auth/logout", h.logout)
	if h.colors != nil {
		r.HandleFunc(http.MethodGet, "/api/colors/{id}", h.getColor)
	}
}

func tokenResponse(pair models.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
		ExpiresIn:    int(pair.ExpiresIn(time.Now()).Seconds()),
	}
}

// getTokens returns the stored pair without refreshing it.
func (h *APIHandler) getTokens(w http.ResponseWriter, r *http.Request) {
	pair, err := h.tokens.Tokens(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		writeError(w, http.StatusUnauthorized, "Tokens not found")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse(pair))
}

func (h *APIHandler) refresh(w http.ResponseWriter, r *http.Request) {
	pair, err := h.tokens.Refresh(r.Context(), true)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse(pair))
}

func (h *APIHandler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.tokens.Logout(r.Context()); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// getColor returns the cached color for id, extracting it from ?url= on a miss.
func (h *APIHandler) getColor(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	imageURL := r.URL.Query().Get("url")

	if rgb, ok := h.colors.Cached(r.Context(), id); ok {
		writeJSON(w, http.StatusOK, models.ColorCacheEntry{EntityID: id, RGB: rgb})
		return
	}
	if imageURL == "" {
		writeError(w, http.StatusNotFound, shared.ErrCacheMiss.Error())
		return
	}

	rgb, err := h.colors.Extract(r.Context(), id, imageURL)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ColorCacheEntry{EntityID: id, RGB: rgb})
}

func (h *APIHandler) fail(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "status", status, "error", err)
	} else {
		h.logger.Debug("request rejected", "status", status, "error", err)
	}
	writeError(w, status, err.Error())
}

// StatusFor maps a domain error onto an HTTP status.
func StatusFor(err error) int {
	var workerErr *shared.WorkerError
	switch {
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrMissingArgument), errors.Is(err, shared.ErrInvalidArgument):
		return http.StatusBadRequest
	case shared.NeedsLogin(err), errors.Is(err, shared.ErrAuthFailed):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrCacheMiss), errors.Is(err, shared.ErrKeyNotFound):
		return http.StatusNotFound
	case errors.As(err, &workerErr), errors.Is(err, shared.ErrAPIRequest):
		return http.StatusBadGateway
	case errors.Is(err, shared.ErrAborted), errors.Is(err, shared.ErrWorkerPoolClose):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := shared.MarshalJSON(v, false)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(data, '\n'))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
