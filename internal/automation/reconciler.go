package automation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/growthops/mercadoads/internal/domain"
	"github.com/growthops/mercadoads/internal/mlads"
)

type campaignPlatform interface {
	CreateCampaign(ctx context.Context, workspaceID string, actx mlads.AdvertiserContext, params mlads.CreateCampaignParams) (string, error)
	SearchCampaigns(ctx context.Context, workspaceID string, actx mlads.AdvertiserContext) ([]mlads.Campaign, error)
}

// Overrides lets a caller pin campaign names or budgets per tier for one
// automation run.
type Overrides struct {
	Names   map[domain.Tier]string
	Budgets map[domain.Tier]float64
}

func (o *Overrides) name(t domain.Tier) string {
	if o == nil {
		return ""
	}
	return o.Names[t]
}

func (o *Overrides) budget(t domain.Tier, fallback float64) float64 {
	if o == nil {
		return fallback
	}
	if b, ok := o.Budgets[t]; ok {
		return b
	}
	return fallback
}

// CampaignReconciler keeps one remote campaign per tier.
type CampaignReconciler struct {
	store    *Store
	platform campaignPlatform
}

// NewCampaignReconciler creates a reconciler over store and platform.
func NewCampaignReconciler(store *Store, platform campaignPlatform) *CampaignReconciler {
	return &CampaignReconciler{store: store, platform: platform}
}

// EnsureCampaigns guarantees each tier has a campaign with a remote id. A
// campaign that already carries a remote id is never renamed or rebudgeted:
// humans may have tuned it on the platform and the engine must not clobber
// that. Creation failures surface so the caller can fall back to adoption.
func (r *CampaignReconciler) EnsureCampaigns(ctx context.Context, workspaceID string, actx mlads.AdvertiserContext, curves []domain.CurveConfig, overrides *Overrides) (map[domain.Tier]*domain.Campaign, error) {
	out := make(map[domain.Tier]*domain.Campaign, len(curves))
	for i := range curves {
		curve := curves[i]
		existing, err := r.store.CampaignByTier(ctx, workspaceID, curve.Tier)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.RemoteID != nil {
			camp, err := r.refreshExisting(ctx, workspaceID, actx, curve, existing, overrides)
			if err != nil {
				return nil, err
			}
			out[curve.Tier] = camp
			continue
		}

		budget := overrides.budget(curve.Tier, curve.DailyBudget)
		name := overrides.name(curve.Tier)
		if name == "" {
			name = campaignName(curve.Tier)
		}
		strategy, roasTarget := strategyFor(curve.Tier, curve.MinROAS)

		remoteID, err := r.platform.CreateCampaign(ctx, workspaceID, actx, mlads.CreateCampaignParams{
			Name:       name,
			Status:     "active",
			Budget:     budget,
			Strategy:   strategy,
			Channel:    "marketplace",
			ROASTarget: roasTarget,
		})
		if err != nil {
			return nil, fmt.Errorf("create campaign for tier %s: %w", curve.Tier, err)
		}

		camp, err := r.store.UpsertManagedCampaign(ctx, ManagedCampaignParams{
			WorkspaceID:  workspaceID,
			CurveID:      &curve.ID,
			Tier:         curve.Tier,
			CampaignType: curve.CampaignType,
			AdvertiserID: actx.AdvertiserID,
			RemoteID:     &remoteID,
			Name:         name,
			Status:       domain.CampaignActive,
			DailyBudget:  budget,
			Strategy:     strategy,
		})
		if err != nil {
			return nil, err
		}
		out[curve.Tier] = camp
		log.Printf("[MercadoAds] created tier %s campaign %s (remote %s)", curve.Tier, camp.ID, remoteID)
	}
	return out, nil
}

// refreshExisting persists requested local changes for a campaign that
// already has a remote id and stamps last_automation_at. The remote side is
// never touched: name and budget only change when the caller asked.
func (r *CampaignReconciler) refreshExisting(ctx context.Context, workspaceID string, actx mlads.AdvertiserContext, curve domain.CurveConfig, existing *domain.Campaign, overrides *Overrides) (*domain.Campaign, error) {
	name := overrides.name(curve.Tier)
	if name == "" {
		name = existing.Name
	}
	budget := curve.DailyBudget
	if existing.DailyBudget != nil {
		budget = *existing.DailyBudget
	}
	budget = overrides.budget(curve.Tier, budget)
	strategy, _ := strategyFor(curve.Tier, curve.MinROAS)

	return r.store.UpsertManagedCampaign(ctx, ManagedCampaignParams{
		WorkspaceID:  workspaceID,
		CurveID:      existing.CurveID,
		Tier:         curve.Tier,
		CampaignType: existing.CampaignType,
		AdvertiserID: actx.AdvertiserID,
		RemoteID:     existing.RemoteID,
		Name:         name,
		Status:       existing.Status,
		DailyBudget:  budget,
		Strategy:     strategy,
	})
}

// SyncExistingCampaigns mirrors every remote campaign locally in manual
// mode, detecting the tier from the campaign name when possible. Accounts
// without Product Ads API access sync nothing, silently.
func (r *CampaignReconciler) SyncExistingCampaigns(ctx context.Context, workspaceID string, actx mlads.AdvertiserContext) error {
	remote, err := r.platform.SearchCampaigns(ctx, workspaceID, actx)
	if err != nil {
		if errors.Is(err, mlads.ErrNotSupported) {
			return nil
		}
		return err
	}

	for _, camp := range remote {
		remoteID := camp.RemoteID()
		if remoteID == "" {
			continue
		}
		name := camp.Name
		if name == "" {
			name = "Campanha " + remoteID
		}
		status := camp.Status
		if status == "" {
			status = "active"
		}
		err := r.store.UpsertSyncedCampaign(ctx, SyncedCampaignParams{
			WorkspaceID:  workspaceID,
			AdvertiserID: actx.AdvertiserID,
			RemoteID:     remoteID,
			Name:         name,
			Status:       status,
			DailyBudget:  camp.Budget,
			Tier:         tierFromName(name),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// AdoptExistingCampaigns maps previously synced remote campaigns to tiers
// for accounts where campaign creation is unsupported. Adoption only
// proceeds when all three tiers map to distinct campaigns; anything less
// would route test products into a performance budget, so it fails
// explicitly instead.
func (r *CampaignReconciler) AdoptExistingCampaigns(ctx context.Context, workspaceID string) (map[domain.Tier]*domain.Campaign, error) {
	campaigns, err := r.store.CampaignsWithRemote(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if len(campaigns) == 0 {
		return nil, ErrNoExistingCampaigns
	}

	out := make(map[domain.Tier]*domain.Campaign, len(domain.Tiers()))
	for i := range campaigns {
		camp := &campaigns[i]
		if !camp.Tier.Valid() {
			continue
		}
		if _, taken := out[camp.Tier]; !taken {
			out[camp.Tier] = camp
		}
	}

	for _, tier := range domain.Tiers() {
		if out[tier] == nil {
			return nil, fmt.Errorf("%w: no campaign mapped for tier %s", ErrManualCampaignRequired, tier)
		}
	}
	return out, nil
}

// campaignName is the display name the engine gives its own campaigns.
func campaignName(t domain.Tier) string {
	switch t {
	case domain.TierA:
		return "[Curva A] Performance"
	case domain.TierB:
		return "[Curva B] Otimizacao"
	case domain.TierC:
		return "[Curva C] Teste Controlado"
	}
	return "[Curva " + string(t) + "]"
}

// tierFromName detects a tier from a campaign display name, nil when the
// name carries no curve marker.
func tierFromName(name string) *domain.Tier {
	lower := strings.ToLower(name)
	for _, tier := range domain.Tiers() {
		if strings.Contains(lower, "curva "+strings.ToLower(string(tier))) {
			t := tier
			return &t
		}
	}
	return nil
}

// strategyFor maps a tier to the platform bidding strategy. Performance
// campaigns chase profitability with a ROAS target, optimization campaigns
// chase growth, test campaigns buy visibility.
func strategyFor(t domain.Tier, minROAS float64) (strategy string, roasTarget *float64) {
	target := func(fallback float64) *float64 {
		v := minROAS
		if v <= 0 {
			v = fallback
		}
		if v < 1 {
			v = 1
		}
		return &v
	}
	switch t {
	case domain.TierA:
		return "profitability", target(3)
	case domain.TierB:
		return "growth", target(1.5)
	case domain.TierC:
		return "visibility", nil
	}
	return "visibility", nil
}
