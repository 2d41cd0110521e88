// Package handlers wires the HTTP surface. Transport encoding lives here;
// all consent semantics stay inside the consent engine.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gunjansamrit/GuardianVault01/internal/accounts"
	"github.com/gunjansamrit/GuardianVault01/internal/config"
	"github.com/gunjansamrit/GuardianVault01/internal/consent"
	"github.com/gunjansamrit/GuardianVault01/internal/items"
	"github.com/gunjansamrit/GuardianVault01/internal/middleware"
	"github.com/gunjansamrit/GuardianVault01/internal/token"
)

// Dependencies holds everything the router needs.
type Dependencies struct {
	Config   *config.Config
	Logger   *slog.Logger
	Engine   *consent.Engine
	Accounts *accounts.Service
	Items    *items.Service
	Tokens   *token.Manager
	Limiter  *middleware.RateLimiter
}

// NewRouter builds the HTTP router.
func NewRouter(deps *Dependencies) http.Handler {
	h := &handler{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logging(deps.Logger))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/signup", h.Signup)
	r.Post("/auth/login", h.Login)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(deps.Tokens))
		if deps.Limiter != nil {
			r.Use(middleware.RateLimit(deps.Limiter))
		}

		r.Post("/items", h.AddItem)
		r.Get("/items", h.ListItems)
		r.Get("/items/{itemID}", h.GetItem)
		r.Put("/items/{itemID}", h.UpdateItem)
		r.Delete("/items/{itemID}", h.DeleteItem)

		r.Post("/access", h.Access)
		r.Post("/consents/{consentID}/decision", h.Decide)
		r.Get("/consents/pending", h.ListPending)
		r.Get("/consents/history", h.ListHistory)
	})

	return r
}

type handler struct {
	deps *Dependencies
}

// Response helpers

type apiResponse struct {
	Data any `json:"data,omitempty"`
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Data: data})
}

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := apiError{}
	resp.Error.Code = code
	resp.Error.Message = message
	json.NewEncoder(w).Encode(resp)
}

// engineError maps an engine error onto the wire. Crypto and internal
// failures stay opaque so key material and ciphertext never leak into
// responses.
func engineError(w http.ResponseWriter, err error) {
	switch consent.Classify(err) {
	case consent.KindNotFound:
		jsonError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case consent.KindInvalidInput:
		jsonError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case consent.KindForbidden:
		jsonError(w, http.StatusForbidden, "FORBIDDEN", err.Error())
	case consent.KindConflict:
		jsonError(w, http.StatusConflict, "CONFLICT", "Concurrent update, please retry")
	default:
		jsonError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

// Health handles GET /healthz.
func (h *handler) Health(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
