package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gunjansamrit/GuardianVault01/internal/accounts"
	"github.com/gunjansamrit/GuardianVault01/internal/consent"
	"github.com/gunjansamrit/GuardianVault01/internal/store"
)

// Signup handles POST /auth/signup.
func (h *handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind        string `json:"kind"`
		DisplayName string `json:"display_name"`
		Email       string `json:"email"`
		Username    string `json:"username"`
		Password    string `json:"password"`
		Key         string `json:"key,omitempty"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, h.deps.Config.Security.MaxRequestBodySize)).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body")
		return
	}

	if req.DisplayName == "" || req.Email == "" || req.Username == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "INVALID_INPUT", "display_name, email, username and password are required")
		return
	}

	party, err := h.deps.Accounts.Signup(r.Context(), accounts.SignupParams{
		Kind:        consent.PartyKind(req.Kind),
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Username:    req.Username,
		Password:    req.Password,
		RawKey:      req.Key,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateEmail):
			jsonError(w, http.StatusConflict, "CONFLICT", "Email already registered")
		case errors.Is(err, store.ErrDuplicateUsername):
			jsonError(w, http.StatusConflict, "CONFLICT", "Username already taken")
		case errors.Is(err, accounts.ErrMissingKey):
			jsonError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		default:
			jsonError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Signup failed")
		}
		return
	}

	jsonResponse(w, http.StatusCreated, map[string]any{
		"party_id":     party.ID,
		"kind":         party.Kind,
		"display_name": party.DisplayName,
	})
}

// Login handles POST /auth/login.
func (h *handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, h.deps.Config.Security.MaxRequestBodySize)).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body")
		return
	}

	signed, party, err := h.deps.Accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			jsonError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid username or password")
			return
		}
		jsonError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"token":    signed,
		"party_id": party.ID,
		"kind":     party.Kind,
	})
}
