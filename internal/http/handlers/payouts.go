package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tryonserver/internal/domain"
	"tryonserver/internal/middleware"
)

type payoutCreateRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Method      string `json:"method"`
}

type payoutView struct {
	ID          string `json:"id"`
	AmountCents int64  `json:"amount_cents"`
	Method      string `json:"method"`
	Status      string `json:"status"`
}

// PayoutCreate opens a payout request for the authenticated model.
func (a *App) PayoutCreate(w http.ResponseWriter, r *http.Request) {
	modelID := middleware.SubjectFromContext(r.Context())
	if modelID == "" || middleware.RoleFromContext(r.Context()) != middleware.RoleModel {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing model context")
		return
	}
	var req payoutCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	payout, err := a.Payouts.Create(r.Context(), modelID, req.AmountCents, req.Method)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusCreated, payoutView{
		ID:          payout.ID,
		AmountCents: payout.AmountCents,
		Method:      payout.Method,
		Status:      string(payout.Status),
	})
}

type payoutTransitionRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// PayoutTransition moves a payout through its lifecycle. Admin only.
func (a *App) PayoutTransition(w http.ResponseWriter, r *http.Request) {
	actor := middleware.SubjectFromContext(r.Context())
	if actor == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing context")
		return
	}
	if middleware.RoleFromContext(r.Context()) != middleware.RoleAdmin {
		a.fail(w, domain.ErrForbidden)
		return
	}
	payoutID := chi.URLParam(r, "id")
	var req payoutTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	payout, err := a.Payouts.Transition(r.Context(), payoutID, actor, domain.PayoutStatus(req.Status), req.Reason)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, payoutView{
		ID:          payout.ID,
		AmountCents: payout.AmountCents,
		Method:      payout.Method,
		Status:      string(payout.Status),
	})
}

// PayoutList returns the authenticated model's payout history.
func (a *App) PayoutList(w http.ResponseWriter, r *http.Request) {
	modelID := middleware.SubjectFromContext(r.Context())
	if modelID == "" || middleware.RoleFromContext(r.Context()) != middleware.RoleModel {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing model context")
		return
	}
	payouts, err := a.Payouts.ListByModel(r.Context(), modelID)
	if err != nil {
		a.fail(w, err)
		return
	}
	items := make([]payoutView, 0, len(payouts))
	for _, p := range payouts {
		items = append(items, payoutView{ID: p.ID, AmountCents: p.AmountCents, Method: p.Method, Status: string(p.Status)})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
