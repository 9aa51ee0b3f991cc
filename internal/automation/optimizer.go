package automation

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/growthops/mercadoads/internal/domain"
	"github.com/growthops/mercadoads/internal/mlads"
)

const (
	// roasScaleDays of ROAS at or above roasScaleMin raise the budget.
	roasScaleDays = 7
	roasScaleMin  = 3.0
	budgetRaise   = 1.2

	// roasShrinkDays of ROAS below roasShrinkMax lower the budget.
	roasShrinkDays = 3
	roasShrinkMax  = 2.0
	budgetCut      = 0.7
)

type campaignMetricsWriter interface {
	DailyCampaignMetrics(ctx context.Context, workspaceID string, actx mlads.AdvertiserContext, dateFrom, dateTo string) ([]mlads.DailyMetric, error)
	UpdateCampaign(ctx context.Context, workspaceID string, actx mlads.AdvertiserContext, remoteID string, patch mlads.CampaignPatch) error
}

// BudgetOptimizer adjusts the tier-A campaign budget from recent daily ROAS.
// B and C budgets are deliberate fixed bets and never touched.
type BudgetOptimizer struct {
	store    *Store
	platform campaignMetricsWriter
	cooldown time.Duration
	loc      *time.Location
	now      func() time.Time
}

// NewBudgetOptimizer creates an optimizer with the given cooldown between
// adjustments of the same campaign.
func NewBudgetOptimizer(store *Store, platform campaignMetricsWriter, cooldown time.Duration) *BudgetOptimizer {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.UTC
	}
	return &BudgetOptimizer{store: store, platform: platform, cooldown: cooldown, loc: loc, now: time.Now}
}

// Optimize inspects the tier-A campaign and applies at most one budget
// adjustment per cooldown period. History failures are advisory: they log
// and skip rather than failing the automation run. A failed remote budget
// write returns ErrBudgetUpdateFailed so the caller can report it without
// aborting the run.
func (o *BudgetOptimizer) Optimize(ctx context.Context, workspaceID string, actx mlads.AdvertiserContext, campaigns map[domain.Tier]*domain.Campaign) error {
	camp := campaigns[domain.TierA]
	if camp == nil || camp.RemoteID == nil || camp.DailyBudget == nil {
		return nil
	}
	// Adopted campaigns belong to a human on the platform; the engine never
	// rebudgets them remotely.
	if camp.AutomationMode != domain.AutomationManaged {
		return nil
	}

	now := o.now()
	if last := camp.LastBudgetOptimization(); !last.IsZero() && now.Sub(last) < o.cooldown {
		return nil
	}

	from, to := dateWindow(now, roasScaleDays, o.loc)
	history, err := o.platform.DailyCampaignMetrics(ctx, workspaceID, actx, from, to)
	if err != nil {
		log.Printf("[MercadoAds] budget history fetch failed for workspace %s: %v", workspaceID, err)
		return nil
	}

	factor, reason, ok := decideBudget(history)
	if !ok {
		return nil
	}

	newBudget := math.Round(*camp.DailyBudget*factor*100) / 100
	if newBudget <= 0 || newBudget == *camp.DailyBudget {
		return nil
	}

	if err := o.platform.UpdateCampaign(ctx, workspaceID, actx, *camp.RemoteID, mlads.CampaignPatch{Budget: &newBudget}); err != nil {
		log.Printf("[MercadoAds] remote budget update failed for campaign %s: %v", camp.ID, err)
		return fmt.Errorf("campaign %s: %w: %v", camp.ID, ErrBudgetUpdateFailed, err)
	}

	if err := o.store.UpdateCampaignBudget(ctx, camp.ID, newBudget); err != nil {
		return err
	}
	stamp := now.UTC().Format(time.RFC3339)
	if err := o.store.SetCampaignMetadata(ctx, camp.ID, domain.MetaLastBudgetOptimization, stamp); err != nil {
		return err
	}
	camp.DailyBudget = &newBudget

	log.Printf("[MercadoAds] budget adjusted for campaign %s: %.2f -> %.2f (%s)", camp.ID, newBudget/factor, newBudget, reason)
	return nil
}

// decideBudget applies the budget rules to a daily ROAS history sorted by
// date ascending. Both rules require a full window of days before they
// trigger; sparse history never adjusts the budget.
func decideBudget(history []mlads.DailyMetric) (factor float64, reason string, ok bool) {
	if len(history) >= roasScaleDays && allDays(history, roasScaleDays, func(r float64) bool { return r >= roasScaleMin }) {
		return budgetRaise, "ROAS >= 3 nos últimos 7 dias", true
	}
	if len(history) >= roasShrinkDays && allDays(history, roasShrinkDays, func(r float64) bool { return r < roasShrinkMax }) {
		return budgetCut, "ROAS < 2 nos últimos 3 dias", true
	}
	return 0, "", false
}

// allDays reports whether the trailing n days of history all satisfy pred.
func allDays(history []mlads.DailyMetric, n int, pred func(roas float64) bool) bool {
	for _, day := range history[len(history)-n:] {
		if !pred(dayROAS(day)) {
			return false
		}
	}
	return true
}

// dayROAS prefers the ratio of attributed revenue to spend; the reported
// ROAS field is a fallback for days the platform omits the raw numbers.
func dayROAS(day mlads.DailyMetric) float64 {
	if day.Cost > 0 {
		return day.Revenue / day.Cost
	}
	return day.ROAS
}
