package automation

import (
	"context"
	"time"

	"github.com/growthops/mercadoads/internal/domain"
	"github.com/growthops/mercadoads/internal/mlads"
	"github.com/growthops/mercadoads/internal/pkg/logger"
)

// metricsWindowDays is the trailing window every classification pass reads.
const metricsWindowDays = 30

// MetricsResult carries per-item ad metrics for a trailing window. Metrics
// are advisory input to classification, so fetch failures degrade to
// all-zero metrics instead of failing the run; Degraded records that this
// happened so callers and tests can tell zeros from absence.
type MetricsResult struct {
	Items    map[string]domain.ItemMetrics
	DateFrom string
	DateTo   string
	Degraded bool
	Reason   string
}

// Get returns the metrics for an item, zero-valued when the item was not
// seen in the window.
func (r MetricsResult) Get(itemID string) domain.ItemMetrics {
	return r.Items[itemID]
}

type adSearcher interface {
	AdvertiserContext(ctx context.Context, workspaceID string) (mlads.AdvertiserContext, error)
	SearchAds(ctx context.Context, workspaceID string, actx mlads.AdvertiserContext, params mlads.SearchAdsParams) ([]mlads.Ad, error)
}

// MetricsAggregator accumulates per-item ad performance over the trailing
// window, paging through the platform's ads search.
type MetricsAggregator struct {
	platform adSearcher
	loc      *time.Location
	now      func() time.Time
}

// NewMetricsAggregator creates an aggregator windowing in São Paulo calendar
// days, matching how the platform reports Brazilian marketplace metrics.
func NewMetricsAggregator(platform adSearcher) *MetricsAggregator {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.UTC
	}
	return &MetricsAggregator{platform: platform, loc: loc, now: time.Now}
}

// FetchItemMetrics returns accumulated metrics per remote item id for the
// trailing 30 days. Items found remotely but absent from itemIDs are
// included. Any platform error degrades the result instead of propagating.
func (a *MetricsAggregator) FetchItemMetrics(ctx context.Context, workspaceID string, itemIDs []string) MetricsResult {
	from, to := dateWindow(a.now(), metricsWindowDays, a.loc)
	result := MetricsResult{
		Items:    make(map[string]domain.ItemMetrics, len(itemIDs)),
		DateFrom: from,
		DateTo:   to,
	}
	for _, id := range itemIDs {
		result.Items[id] = domain.ItemMetrics{}
	}

	actx, err := a.platform.AdvertiserContext(ctx, workspaceID)
	if err != nil {
		return a.degrade(result, workspaceID, err)
	}

	ads, err := a.platform.SearchAds(ctx, workspaceID, actx, mlads.SearchAdsParams{
		DateFrom: from,
		DateTo:   to,
	})
	if err != nil {
		return a.degrade(result, workspaceID, err)
	}

	for _, ad := range ads {
		if ad.ItemID == "" {
			continue
		}
		m := result.Items[ad.ItemID]
		m.Cost += ad.Cost
		m.Clicks += int(ad.Clicks)
		m.Prints += int(ad.Prints)
		m.Sales += int(ad.Units)
		m.Revenue += ad.Revenue
		result.Items[ad.ItemID] = m
	}

	// Derived rates are computed once accumulation is complete so multi-ad
	// items do not average partial pages.
	for id, m := range result.Items {
		if m.Clicks > 0 {
			m.CPC = m.Cost / float64(m.Clicks)
		}
		if m.Prints > 0 {
			m.CTR = float64(m.Clicks) / float64(m.Prints)
		}
		result.Items[id] = m
	}
	return result
}

func (a *MetricsAggregator) degrade(result MetricsResult, workspaceID string, err error) MetricsResult {
	logger.Warn("item metrics fetch degraded", "workspace_id", workspaceID, "error", err.Error())
	result.Degraded = true
	result.Reason = err.Error()
	for id := range result.Items {
		result.Items[id] = domain.ItemMetrics{}
	}
	return result
}

// dateWindow returns the inclusive YYYY-MM-DD bounds of the trailing `days`
// calendar days in loc, ending today: today-(days-1) through today.
func dateWindow(now time.Time, days int, loc *time.Location) (from, to string) {
	local := now.In(loc)
	to = local.Format("2006-01-02")
	from = local.AddDate(0, 0, -(days - 1)).Format("2006-01-02")
	return from, to
}
