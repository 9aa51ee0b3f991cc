package automation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/growthops/mercadoads/internal/config"
	"github.com/growthops/mercadoads/internal/domain"
	"github.com/growthops/mercadoads/internal/mlads"
	"github.com/growthops/mercadoads/internal/pkg/distlock"
)

// Platform is the full remote surface the engine consumes. *mlads.Client
// implements it; tests substitute fakes.
type Platform interface {
	AdvertiserContext(ctx context.Context, workspaceID string) (mlads.AdvertiserContext, error)
	CreateCampaign(ctx context.Context, workspaceID string, actx mlads.AdvertiserContext, params mlads.CreateCampaignParams) (string, error)
	UpdateCampaign(ctx context.Context, workspaceID string, actx mlads.AdvertiserContext, remoteID string, patch mlads.CampaignPatch) error
	SearchCampaigns(ctx context.Context, workspaceID string, actx mlads.AdvertiserContext) ([]mlads.Campaign, error)
	CreateAd(ctx context.Context, workspaceID string, actx mlads.AdvertiserContext, params mlads.AdParams) (string, error)
	UpdateAd(ctx context.Context, workspaceID string, actx mlads.AdvertiserContext, remoteAdID string, params mlads.AdParams) error
	SearchAds(ctx context.Context, workspaceID string, actx mlads.AdvertiserContext, params mlads.SearchAdsParams) ([]mlads.Ad, error)
	CampaignSummary(ctx context.Context, workspaceID string, actx mlads.AdvertiserContext, dateFrom, dateTo string) (*mlads.MetricsSummary, error)
	DailyCampaignMetrics(ctx context.Context, workspaceID string, actx mlads.AdvertiserContext, dateFrom, dateTo string) ([]mlads.DailyMetric, error)
}

// LockFactory builds a distributed lock for a key. A nil factory disables
// locking (single-instance deployments and tests).
type LockFactory func(key string) distlock.DistLock

// Service is the automation orchestrator: the entry points the route layer
// calls.
type Service struct {
	store     *Store
	platform  Platform
	cfg       config.AutomationConfig
	metrics   *MetricsAggregator
	campaigns *CampaignReconciler
	adRec     *AdReconciler
	optimizer *BudgetOptimizer
	newLock   LockFactory
	loc       *time.Location
}

// NewService wires the engine together.
func NewService(store *Store, platform Platform, cfg config.AutomationConfig, newLock LockFactory) *Service {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.UTC
	}
	cooldown := time.Duration(cfg.BudgetCooldownHours) * time.Hour
	return &Service{
		store:     store,
		platform:  platform,
		cfg:       cfg,
		metrics:   NewMetricsAggregator(platform),
		campaigns: NewCampaignReconciler(store, platform),
		adRec:     NewAdReconciler(store, platform, cfg.MaxCPCFor),
		optimizer: NewBudgetOptimizer(store, platform, cooldown),
		newLock:   newLock,
		loc:       loc,
	}
}

// ListCurves upserts the three tier rows with resolved budgets and returns
// them ordered by priority. Write-through by design: callers treat it as
// idempotent initialization.
func (s *Service) ListCurves(ctx context.Context, workspaceID string) ([]domain.CurveConfig, error) {
	if err := s.store.UpsertCurveDefaults(ctx, workspaceID, s.cfg.BudgetFor); err != nil {
		return nil, err
	}
	return s.store.ListCurves(ctx, workspaceID)
}

// Classification is the output of one classification pass.
type Classification struct {
	Items           []domain.ClassifiedProduct `json:"items"`
	Summary         map[domain.Tier]int        `json:"summary"`
	MetricsDegraded bool                       `json:"metrics_degraded"`
	MetricsReason   string                     `json:"metrics_reason,omitempty"`
}

// ClassifyProducts classifies the whole catalog against trailing ad metrics.
func (s *Service) ClassifyProducts(ctx context.Context, workspaceID string) (*Classification, error) {
	products, err := s.store.ListProducts(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	itemIDs := make([]string, 0, len(products))
	for _, p := range products {
		itemIDs = append(itemIDs, p.ItemID)
	}
	metrics := s.metrics.FetchItemMetrics(ctx, workspaceID, itemIDs)

	out := &Classification{
		Items:           make([]domain.ClassifiedProduct, 0, len(products)),
		Summary:         map[domain.Tier]int{domain.TierA: 0, domain.TierB: 0, domain.TierC: 0},
		MetricsDegraded: metrics.Degraded,
		MetricsReason:   metrics.Reason,
	}
	for _, p := range products {
		item := Classify(p, metrics.Get(p.ItemID))
		out.Items = append(out.Items, item)
		out.Summary[item.Tier]++
	}
	return out, nil
}

// PlannedCampaign describes what ensureCampaigns would do for one tier.
type PlannedCampaign struct {
	Tier        domain.Tier `json:"curve"`
	Action      string      `json:"action"` // create | keep
	Name        string      `json:"name"`
	DailyBudget float64     `json:"daily_budget"`
}

// PlannedMove describes one product whose campaign assignment would change.
type PlannedMove struct {
	ItemID   string          `json:"ml_item_id"`
	FromTier *domain.Tier    `json:"from_curve,omitempty"`
	ToTier   domain.Tier     `json:"to_curve"`
	Action   domain.AdAction `json:"action"`
	Reason   string          `json:"reason"`
}

// Plan is the read-only preview of an automation run.
type Plan struct {
	Classification *Classification   `json:"classification"`
	Campaigns      []PlannedCampaign `json:"campaigns"`
	Moves          []PlannedMove     `json:"moves"`
}

// PlanAutomation computes what applyAutomation would change without calling
// any platform write endpoint.
func (s *Service) PlanAutomation(ctx context.Context, workspaceID string) (*Plan, error) {
	curves, err := s.ListCurves(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	cls, err := s.ClassifyProducts(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Classification: cls}
	for _, curve := range curves {
		existing, err := s.store.CampaignByTier(ctx, workspaceID, curve.Tier)
		if err != nil {
			return nil, err
		}
		planned := PlannedCampaign{
			Tier:        curve.Tier,
			Action:      "create",
			Name:        campaignName(curve.Tier),
			DailyBudget: curve.DailyBudget,
		}
		if existing != nil && existing.RemoteID != nil {
			planned.Action = "keep"
			planned.Name = existing.Name
			if existing.DailyBudget != nil {
				planned.DailyBudget = *existing.DailyBudget
			}
		}
		plan.Campaigns = append(plan.Campaigns, planned)
	}

	for _, item := range cls.Items {
		link, err := s.store.LatestProductLink(ctx, workspaceID, item.ItemID)
		if err != nil {
			return nil, err
		}
		if link != nil && link.Tier == item.Tier && link.Status == linkStatus(item.Action) {
			continue
		}
		move := PlannedMove{
			ItemID: item.ItemID,
			ToTier: item.Tier,
			Action: item.Action,
			Reason: item.Reason,
		}
		if link != nil {
			prev := link.Tier
			move.FromTier = &prev
		}
		plan.Moves = append(plan.Moves, move)
	}
	return plan, nil
}

// ItemError is one product's reconciliation failure.
type ItemError struct {
	ItemID  string `json:"ml_item_id"`
	Message string `json:"message"`
}

// ApplyResult reports a full automation pass. Per-item failures are
// collected, not fatal: one bad item must not block the rest.
type ApplyResult struct {
	ProcessedCount int                 `json:"processedCount"`
	Errors         []ItemError         `json:"errors"`
	Warnings       []string            `json:"warnings"`
	Summary        map[domain.Tier]int `json:"summary"`
}

// ApplyAutomation runs the full pass: ensure campaigns, optimize the tier-A
// budget, reconcile every classified product's ad. Platform accounts that
// forbid campaign creation fall back to adopting previously synced remote
// campaigns, and only proceed when all three tiers map to distinct
// campaigns.
func (s *Service) ApplyAutomation(ctx context.Context, workspaceID string, overrides *Overrides) (*ApplyResult, error) {
	if s.newLock != nil {
		lock := s.newLock(distlock.WorkspaceRunKey(workspaceID))
		ok, err := lock.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			return nil, ErrRunInProgress
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				log.Printf("[MercadoAds] run lock release failed for workspace %s: %v", workspaceID, err)
			}
		}()
	}

	actx, err := s.platform.AdvertiserContext(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	curves, err := s.ListCurves(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	cls, err := s.ClassifyProducts(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	campaigns, err := s.campaigns.EnsureCampaigns(ctx, workspaceID, actx, curves, overrides)
	if err != nil {
		if !errors.Is(err, mlads.ErrNotSupported) && !errors.Is(err, mlads.ErrPermissionDenied) {
			return nil, err
		}
		log.Printf("[MercadoAds] campaign creation unavailable for workspace %s, adopting existing campaigns: %v", workspaceID, err)
		if syncErr := s.campaigns.SyncExistingCampaigns(ctx, workspaceID, actx); syncErr != nil {
			return nil, syncErr
		}
		campaigns, err = s.campaigns.AdoptExistingCampaigns(ctx, workspaceID)
		if err != nil {
			return nil, err
		}
	}

	result := &ApplyResult{Summary: cls.Summary, Errors: []ItemError{}, Warnings: []string{}}
	if err := s.optimizer.Optimize(ctx, workspaceID, actx, campaigns); err != nil {
		if !errors.Is(err, ErrBudgetUpdateFailed) {
			return nil, err
		}
		result.Warnings = append(result.Warnings, err.Error())
	}
	for _, item := range cls.Items {
		campaign := campaigns[item.Tier]
		if campaign == nil {
			result.Errors = append(result.Errors, ItemError{ItemID: item.ItemID, Message: "no campaign for tier " + string(item.Tier)})
			continue
		}
		if _, err := s.adRec.UpsertAd(ctx, workspaceID, actx, campaign, item); err != nil {
			result.Errors = append(result.Errors, ItemError{ItemID: item.ItemID, Message: err.Error()})
			continue
		}
		result.ProcessedCount++
	}

	log.Printf("[MercadoAds] automation applied for workspace %s: %d processed, %d errors",
		workspaceID, result.ProcessedCount, len(result.Errors))
	return result, nil
}

// CampaignMetrics is the display-level metrics block, nil when the platform
// does not answer.
type CampaignMetrics struct {
	Summary  *mlads.MetricsSummary `json:"summary"`
	Daily    []mlads.DailyMetric   `json:"daily"`
	DateFrom string                `json:"date_from"`
	DateTo   string                `json:"date_to"`
}

// CampaignsView is the joined local view of campaigns plus best-effort
// metrics.
type CampaignsView struct {
	Campaigns []domain.Campaign `json:"campaigns"`
	Metrics   *CampaignMetrics  `json:"metrics"`
}

// ListCampaigns syncs remote campaigns and their ads best-effort, then
// returns the local view with trailing-window metrics. Sync and metrics
// failures degrade to the stored view.
func (s *Service) ListCampaigns(ctx context.Context, workspaceID string) (*CampaignsView, error) {
	actx, err := s.platform.AdvertiserContext(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	if err := s.campaigns.SyncExistingCampaigns(ctx, workspaceID, actx); err != nil {
		log.Printf("[MercadoAds] campaign sync failed for workspace %s: %v", workspaceID, err)
	}
	if err := s.syncCampaignProducts(ctx, workspaceID, actx); err != nil {
		log.Printf("[MercadoAds] campaign product sync failed for workspace %s: %v", workspaceID, err)
	}

	campaigns, err := s.store.ListCampaignsWithStats(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	view := &CampaignsView{Campaigns: campaigns}
	from, to := dateWindow(time.Now(), metricsWindowDays, s.loc)
	summary, err := s.platform.CampaignSummary(ctx, workspaceID, actx, from, to)
	if err != nil {
		log.Printf("[MercadoAds] campaign metrics unavailable for workspace %s: %v", workspaceID, err)
		return view, nil
	}
	metrics := &CampaignMetrics{Summary: summary, DateFrom: from, DateTo: to}
	if daily, err := s.platform.DailyCampaignMetrics(ctx, workspaceID, actx, from, to); err == nil {
		metrics.Daily = daily
	} else {
		log.Printf("[MercadoAds] daily metrics unavailable for workspace %s: %v", workspaceID, err)
	}
	view.Metrics = metrics
	return view, nil
}

// syncCampaignProducts mirrors remote ads into junction rows (manual origin)
// and refreshes per-campaign ad counts.
func (s *Service) syncCampaignProducts(ctx context.Context, workspaceID string, actx mlads.AdvertiserContext) error {
	campaigns, err := s.store.CampaignsWithRemote(ctx, workspaceID)
	if err != nil {
		return err
	}
	if len(campaigns) == 0 {
		return nil
	}
	byRemote := make(map[string]*domain.Campaign, len(campaigns))
	for i := range campaigns {
		byRemote[*campaigns[i].RemoteID] = &campaigns[i]
	}

	from, to := dateWindow(time.Now(), metricsWindowDays, s.loc)
	ads, err := s.platform.SearchAds(ctx, workspaceID, actx, mlads.SearchAdsParams{DateFrom: from, DateTo: to})
	if err != nil {
		if errors.Is(err, mlads.ErrNotSupported) {
			return nil
		}
		return err
	}

	type counts struct{ total, active int }
	byCampaign := make(map[string]*counts)
	productIDs := make(map[string]*string)

	for _, ad := range ads {
		campaign, ok := byRemote[string(ad.CampaignID)]
		if !ok || ad.ItemID == "" {
			continue
		}

		productID, cached := productIDs[ad.ItemID]
		if !cached {
			productID, err = s.store.ProductIDByItem(ctx, workspaceID, ad.ItemID)
			if err != nil {
				return err
			}
			productIDs[ad.ItemID] = productID
		}

		tier := campaign.Tier
		if !tier.Valid() {
			tier = domain.TierC
		}
		status := domain.ProductLinkStatus(ad.Status)
		if status != domain.LinkPaused && status != domain.LinkRemoved {
			status = domain.LinkActive
		}

		var remoteAdID *string
		if id := ad.RemoteID(); id != "" {
			remoteAdID = &id
		}
		err := s.store.UpsertProductLink(ctx, ProductLinkParams{
			WorkspaceID: workspaceID,
			CampaignID:  campaign.ID,
			ProductID:   productID,
			ItemID:      ad.ItemID,
			RemoteAdID:  remoteAdID,
			Tier:        tier,
			Source:      domain.SourceManual,
			Status:      status,
		})
		if err != nil {
			return err
		}

		c := byCampaign[campaign.ID]
		if c == nil {
			c = &counts{}
			byCampaign[campaign.ID] = c
		}
		c.total++
		if status == domain.LinkActive {
			c.active++
		}
	}

	for campaignID, c := range byCampaign {
		if err := s.store.UpdateCampaignAdCounts(ctx, campaignID, c.total, c.active); err != nil {
			return err
		}
	}
	return nil
}

// UpdateCampaignStatus changes a campaign's status remotely (when it has a
// remote id) and locally. Only legal lifecycle transitions are accepted.
func (s *Service) UpdateCampaignStatus(ctx context.Context, workspaceID, campaignID string, status domain.CampaignStatus) (*domain.Campaign, error) {
	if status != domain.CampaignActive && status != domain.CampaignPaused {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTransition, status)
	}

	campaign, err := s.store.GetCampaign(ctx, workspaceID, campaignID)
	if err != nil {
		return nil, err
	}
	if !campaign.Status.CanTransition(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, campaign.Status, status)
	}

	if campaign.RemoteID != nil {
		actx, err := s.platform.AdvertiserContext(ctx, workspaceID)
		if err != nil {
			return nil, err
		}
		if err := s.platform.UpdateCampaign(ctx, workspaceID, actx, *campaign.RemoteID, mlads.CampaignPatch{Status: string(status)}); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateCampaignStatus(ctx, campaignID, status); err != nil {
		return nil, err
	}
	campaign.Status = status
	return campaign, nil
}

// UpdateCampaignBudget changes a campaign's daily budget remotely (when it
// has a remote id) and locally.
func (s *Service) UpdateCampaignBudget(ctx context.Context, workspaceID, campaignID string, budget float64) (*domain.Campaign, error) {
	if budget <= 0 {
		return nil, fmt.Errorf("daily budget must be positive, got %.2f", budget)
	}

	campaign, err := s.store.GetCampaign(ctx, workspaceID, campaignID)
	if err != nil {
		return nil, err
	}

	if campaign.RemoteID != nil {
		actx, err := s.platform.AdvertiserContext(ctx, workspaceID)
		if err != nil {
			return nil, err
		}
		if err := s.platform.UpdateCampaign(ctx, workspaceID, actx, *campaign.RemoteID, mlads.CampaignPatch{Budget: &budget}); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateCampaignBudget(ctx, campaignID, budget); err != nil {
		return nil, err
	}
	campaign.DailyBudget = &budget
	return campaign, nil
}

// CurveHistory returns the latest tier transitions for display.
func (s *Service) CurveHistory(ctx context.Context, workspaceID string, limit int) ([]domain.CurveHistoryEntry, error) {
	return s.store.ListCurveHistory(ctx, workspaceID, limit)
}
