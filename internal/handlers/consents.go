package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gunjansamrit/GuardianVault01/internal/consent"
	"github.com/gunjansamrit/GuardianVault01/internal/middleware"
)

// Access handles POST /api/v1/access. Seekers call it both to request
// consent and to read an item once consent is granted.
func (h *handler) Access(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())

	var req struct {
		ItemID string `json:"item_id"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, h.deps.Config.Security.MaxRequestBodySize)).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body")
		return
	}

	itemID, err := uuid.Parse(req.ItemID)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid item id")
		return
	}

	res, err := h.deps.Engine.RequestOrAccess(r.Context(), itemID, claims.PartyID)
	if err != nil {
		engineError(w, err)
		return
	}

	out := map[string]any{
		"consent_id":   res.ConsentID,
		"status":       res.Status,
		"granted":      res.Granted,
		"request_sent": res.RequestSent,
	}
	if res.Granted {
		out["item_name"] = res.ItemName
		out["item_value"] = res.ItemValue
		out["access_count"] = res.AccessCount
		out["validity_period"] = res.ValidityPeriod
	}
	jsonResponse(w, http.StatusOK, out)
}

// Decide handles POST /api/v1/consents/{consentID}/decision.
func (h *handler) Decide(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())

	consentID, err := uuid.Parse(chi.URLParam(r, "consentID"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid consent id")
		return
	}

	var req struct {
		Action         string     `json:"action"`
		AccessCount    *int32     `json:"access_count,omitempty"`
		ValidityPeriod *time.Time `json:"validity_period,omitempty"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, h.deps.Config.Security.MaxRequestBodySize)).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body")
		return
	}

	res, err := h.deps.Engine.Decide(r.Context(), consentID, claims.PartyID, consent.Action(req.Action), req.AccessCount, req.ValidityPeriod)
	if err != nil {
		engineError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"consent_id": res.ConsentID,
		"status":     res.NewStatus,
	})
}

// ListPending handles GET /api/v1/consents/pending.
func (h *handler) ListPending(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())

	summaries, err := h.deps.Engine.ListPendingForOwner(r.Context(), claims.PartyID)
	if err != nil {
		engineError(w, err)
		return
	}

	out := make([]map[string]any, len(summaries))
	for i, s := range summaries {
		out[i] = map[string]any{
			"consent_id":   s.ConsentID,
			"item_name":    s.ItemName,
			"seeker_name":  s.SeekerName,
			"seeker_email": s.SeekerEmail,
			"status":       s.Status,
			"created_at":   s.CreatedAt,
		}
	}
	jsonResponse(w, http.StatusOK, out)
}

// ListHistory handles GET /api/v1/consents/history. With one or more "id"
// query params it returns the trail for those consents; otherwise it covers
// every consent where the caller is the provider.
func (h *handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())

	var (
		entries []consent.HistoryEntry
		err     error
	)
	if raw := r.URL.Query()["id"]; len(raw) > 0 {
		ids := make([]uuid.UUID, 0, len(raw))
		for _, s := range raw {
			id, parseErr := uuid.Parse(s)
			if parseErr != nil {
				jsonError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid consent id")
				return
			}
			ids = append(ids, id)
		}
		entries, err = h.deps.Engine.ListHistoryForConsentIDs(r.Context(), ids)
	} else {
		entries, err = h.deps.Engine.ListHistoryForOwner(r.Context(), claims.PartyID)
	}
	if err != nil {
		engineError(w, err)
		return
	}

	out := make([]map[string]any, len(entries))
	for i, e := range entries {
		out[i] = map[string]any{
			"id":              e.ID,
			"consent_id":      e.ConsentID,
			"changed_by":      e.ChangedBy,
			"previous_status": e.PreviousStatus,
			"new_status":      e.NewStatus,
			"remarks":         e.Remarks,
			"timestamp":       e.Timestamp,
		}
	}
	jsonResponse(w, http.StatusOK, out)
}
