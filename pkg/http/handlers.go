package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"shortener/pkg/logging"
	"shortener/pkg/service"
)

type Handler struct {
	linkService *service.LinkService
}

func NewHandler(linkService *service.LinkService) *Handler {
	return &Handler{linkService: linkService}
}

// SetupRoutes mounts the API surface. rateLimit may be nil when no Redis is
// configured.
func SetupRoutes(r chi.Router, h *Handler, rateLimit func(http.Handler) http.Handler) {
	r.Use(correlationMiddleware)

	r.Route("/api", func(api chi.Router) {
		if rateLimit != nil {
			api.Use(rateLimit)
		}
		api.Post("/urls", h.CreateShortURL)
		api.Get("/urls/{code}/analytics", h.GetAnalytics)
	})

	r.Get("/{code}", h.Redirect)
}

func correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithCorrelationID(r.Context())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) CreateShortURL(w http.ResponseWriter, r *http.Request) {
	var req service.CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if problems := validateCreateRequest(&req, time.Now().UTC()); len(problems) > 0 {
		writeValidationErrors(w, problems)
		return
	}

	resp, err := h.linkService.CreateLink(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidURL):
			writeError(w, http.StatusBadRequest, "url must be a valid http/https URL")
		case errors.Is(err, service.ErrCodeGenerationExhausted):
			writeError(w, http.StatusServiceUnavailable, "could not allocate a short code")
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Location", "/api/urls/"+resp.Code)
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	target, err := h.linkService.Resolve(r.Context(), code, r.UserAgent())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if target == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	analytics, err := h.linkService.GetAnalytics(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(analytics)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeValidationErrors(w http.ResponseWriter, problems map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]any{"errors": problems})
}
