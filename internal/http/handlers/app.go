package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"tryonserver/internal/access"
	"tryonserver/internal/domain"
	"tryonserver/internal/infra"
	"tryonserver/internal/ledger"
	"tryonserver/internal/queue"
	"tryonserver/internal/storage"
)

// Admitter is the admission surface the batch handlers call.
type Admitter interface {
	Admit(ctx context.Context, businessID string, req queue.BatchRequest) (*domain.Batch, error)
}

// App bundles the handler dependencies.
type App struct {
	Config     *infra.Config
	Logger     zerolog.Logger
	Admitter   Admitter
	Businesses domain.BusinessRepository
	Batches    domain.BatchRepository
	Jobs       domain.JobRepository
	Gate       *access.Gate
	Store      storage.Sink
	Payouts    *ledger.Payouts
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{"error": errCode, "message": message})
}

// fail maps domain errors onto the API's status and error codes.
func (a *App) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "authentication required")
	case errors.Is(err, domain.ErrConsentRequired):
		a.error(w, http.StatusForbidden, "consent_required", "no approved consent grant for this model")
	case errors.Is(err, domain.ErrPurchaseRequired):
		a.error(w, http.StatusForbidden, "purchase_required", "model output requires a recorded purchase")
	case errors.Is(err, domain.ErrInsufficientCredits):
		a.error(w, http.StatusForbidden, "insufficient_credits", "not enough credits for this batch")
	case errors.Is(err, domain.ErrInsufficientBalance):
		a.error(w, http.StatusForbidden, "insufficient_balance", "available balance below requested amount")
	case errors.Is(err, domain.ErrForbidden):
		a.error(w, http.StatusForbidden, "forbidden", "not allowed")
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
	default:
		a.Logger.Error().Err(err).Msg("handler: internal error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
