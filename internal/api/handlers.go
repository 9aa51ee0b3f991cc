package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/growthops/mercadoads/internal/automation"
	"github.com/growthops/mercadoads/internal/domain"
)

// AutomationService is the engine surface the route layer consumes.
// *automation.Service implements it; tests substitute fakes.
type AutomationService interface {
	ListCurves(ctx context.Context, workspaceID string) ([]domain.CurveConfig, error)
	ClassifyProducts(ctx context.Context, workspaceID string) (*automation.Classification, error)
	PlanAutomation(ctx context.Context, workspaceID string) (*automation.Plan, error)
	ApplyAutomation(ctx context.Context, workspaceID string, overrides *automation.Overrides) (*automation.ApplyResult, error)
	ListCampaigns(ctx context.Context, workspaceID string) (*automation.CampaignsView, error)
	UpdateCampaignStatus(ctx context.Context, workspaceID, campaignID string, status domain.CampaignStatus) (*domain.Campaign, error)
	UpdateCampaignBudget(ctx context.Context, workspaceID, campaignID string, budget float64) (*domain.Campaign, error)
	CurveHistory(ctx context.Context, workspaceID string, limit int) ([]domain.CurveHistoryEntry, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	svc AutomationService
}

// NewHandlers creates a new Handlers instance
func NewHandlers(svc AutomationService) *Handlers {
	return &Handlers{svc: svc}
}

// HealthCheck returns the health status of the API
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

// ListCurves returns the workspace's curve configuration, creating the
// default rows on first call.
func (h *Handlers) ListCurves(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	curves, err := h.svc.ListCurves(r.Context(), workspaceID)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"curves": curves})
}

// CurveHistory returns the latest tier transitions.
func (h *Handlers) CurveHistory(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := h.svc.CurveHistory(r.Context(), workspaceID, limit)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.CurveHistoryEntry{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"history": entries})
}

// ClassifyProducts runs a read-only classification pass over the catalog.
func (h *Handlers) ClassifyProducts(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	result, err := h.svc.ClassifyProducts(r.Context(), workspaceID)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// PlanAutomation previews what an automation run would change.
func (h *Handlers) PlanAutomation(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	plan, err := h.svc.PlanAutomation(r.Context(), workspaceID)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

// applyRequest carries optional per-tier overrides for one automation run.
type applyRequest struct {
	CampaignNames map[domain.Tier]string  `json:"campaign_names"`
	DailyBudgets  map[domain.Tier]float64 `json:"daily_budgets"`
}

func (req *applyRequest) validate() error {
	for tier := range req.CampaignNames {
		if err := tier.Validate(); err != nil {
			return err
		}
	}
	for tier, budget := range req.DailyBudgets {
		if err := tier.Validate(); err != nil {
			return err
		}
		if budget <= 0 {
			return errBudgetNotPositive
		}
	}
	return nil
}

// ApplyAutomation executes a full automation run for the workspace.
func (h *Handlers) ApplyAutomation(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")

	var req applyRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var overrides *automation.Overrides
	if len(req.CampaignNames) > 0 || len(req.DailyBudgets) > 0 {
		overrides = &automation.Overrides{Names: req.CampaignNames, Budgets: req.DailyBudgets}
	}

	result, err := h.svc.ApplyAutomation(r.Context(), workspaceID, overrides)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ListCampaigns returns the local campaign view with best-effort metrics.
func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	view, err := h.svc.ListCampaigns(r.Context(), workspaceID)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// UpdateCampaignStatus pauses or reactivates a campaign.
func (h *Handlers) UpdateCampaignStatus(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	campaignID := chi.URLParam(r, "campaignID")

	var req struct {
		Status domain.CampaignStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	campaign, err := h.svc.UpdateCampaignStatus(r.Context(), workspaceID, campaignID, req.Status)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, campaign)
}

// UpdateCampaignBudget changes a campaign's daily budget.
func (h *Handlers) UpdateCampaignBudget(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	campaignID := chi.URLParam(r, "campaignID")

	var req struct {
		DailyBudget float64 `json:"daily_budget"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.DailyBudget <= 0 {
		respondError(w, http.StatusBadRequest, errBudgetNotPositive.Error())
		return
	}

	campaign, err := h.svc.UpdateCampaignBudget(r.Context(), workspaceID, campaignID, req.DailyBudget)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, campaign)
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
