package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gunjansamrit/GuardianVault01/internal/consent"
	"github.com/gunjansamrit/GuardianVault01/internal/middleware"
	"github.com/gunjansamrit/GuardianVault01/internal/token"
)

type itemResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Kind string    `json:"kind"`
}

// requireIndividual rejects callers that cannot own items. Only individuals
// hold vault keys.
func requireIndividual(w http.ResponseWriter, r *http.Request) *token.Claims {
	claims := middleware.GetClaims(r.Context())
	if claims == nil || claims.Kind != consent.PartyIndividual {
		jsonError(w, http.StatusForbidden, "FORBIDDEN", "Only individuals can manage items")
		return nil
	}
	return claims
}

// AddItem handles POST /api/v1/items.
func (h *handler) AddItem(w http.ResponseWriter, r *http.Request) {
	claims := requireIndividual(w, r)
	if claims == nil {
		return
	}

	var req struct {
		Name  string `json:"name"`
		Kind  string `json:"kind"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, h.deps.Config.Security.MaxRequestBodySize)).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body")
		return
	}
	if req.Name == "" || req.Value == "" {
		jsonError(w, http.StatusBadRequest, "INVALID_INPUT", "name and value are required")
		return
	}

	kind := consent.ItemKind(req.Kind)
	if kind == "" {
		kind = consent.ItemRecord
	}
	if kind != consent.ItemRecord && kind != consent.ItemFile {
		jsonError(w, http.StatusBadRequest, "INVALID_INPUT", "kind must be record or file")
		return
	}

	item, err := h.deps.Items.Add(r.Context(), claims.PartyID, req.Name, kind, []byte(req.Value))
	if err != nil {
		engineError(w, err)
		return
	}

	jsonResponse(w, http.StatusCreated, itemResponse{ID: item.ID, Name: item.Name, Kind: string(item.Kind)})
}

// ListItems handles GET /api/v1/items.
func (h *handler) ListItems(w http.ResponseWriter, r *http.Request) {
	claims := requireIndividual(w, r)
	if claims == nil {
		return
	}

	list, err := h.deps.Items.List(r.Context(), claims.PartyID)
	if err != nil {
		engineError(w, err)
		return
	}

	out := make([]itemResponse, len(list))
	for i, item := range list {
		out[i] = itemResponse{ID: item.ID, Name: item.Name, Kind: string(item.Kind)}
	}
	jsonResponse(w, http.StatusOK, out)
}

// GetItem handles GET /api/v1/items/{itemID}.
func (h *handler) GetItem(w http.ResponseWriter, r *http.Request) {
	claims := requireIndividual(w, r)
	if claims == nil {
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid item id")
		return
	}

	item, value, err := h.deps.Items.Get(r.Context(), claims.PartyID, itemID)
	if err != nil {
		engineError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"id":    item.ID,
		"name":  item.Name,
		"kind":  item.Kind,
		"value": string(value),
	})
}

// UpdateItem handles PUT /api/v1/items/{itemID}.
func (h *handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	claims := requireIndividual(w, r)
	if claims == nil {
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid item id")
		return
	}

	var req struct {
		Name  string  `json:"name"`
		Value *string `json:"value"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, h.deps.Config.Security.MaxRequestBodySize)).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body")
		return
	}

	var value []byte
	if req.Value != nil {
		value = []byte(*req.Value)
	}

	item, err := h.deps.Items.Update(r.Context(), claims.PartyID, itemID, req.Name, value)
	if err != nil {
		engineError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, itemResponse{ID: item.ID, Name: item.Name, Kind: string(item.Kind)})
}

// DeleteItem handles DELETE /api/v1/items/{itemID}.
func (h *handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	claims := requireIndividual(w, r)
	if claims == nil {
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid item id")
		return
	}

	if err := h.deps.Items.Delete(r.Context(), claims.PartyID, itemID); err != nil {
		if errors.Is(err, consent.ErrItemNotFound) {
			jsonError(w, http.StatusNotFound, "NOT_FOUND", "Item not found")
			return
		}
		engineError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}
