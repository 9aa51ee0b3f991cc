package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/growthops/mercadoads/internal/automation"
	"github.com/growthops/mercadoads/internal/gateway"
	"github.com/growthops/mercadoads/internal/mlads"
)

var errBudgetNotPositive = errors.New("daily budget must be positive")

// respondEngineError maps engine sentinel errors onto HTTP statuses. Known
// sentinels carry their message to the client verbatim (they are stable codes
// the frontend branches on); anything else is logged server-side and answered
// with a generic message so internal details never leak.
func respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gateway.ErrNotConnected),
		errors.Is(err, mlads.ErrMissingAdvertiser):
		// Workspace-level configuration problems the user has to fix first.
		respondError(w, http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, automation.ErrCampaignNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, automation.ErrRunInProgress):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, automation.ErrInvalidTransition),
		errors.Is(err, automation.ErrManualCampaignRequired),
		errors.Is(err, automation.ErrNoExistingCampaigns),
		errors.Is(err, mlads.ErrNotSupported),
		errors.Is(err, mlads.ErrPermissionDenied),
		errors.Is(err, mlads.ErrAdCreateFailed):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Printf("ERROR [500]: %v", err)
		respondError(w, http.StatusInternalServerError, "an internal error occurred")
	}
}
