package automation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/growthops/mercadoads/internal/domain"
	"github.com/growthops/mercadoads/internal/mlads"
)

type fakeAdSearcher struct {
	ads       []mlads.Ad
	searchErr error
	actxErr   error
	gotParams mlads.SearchAdsParams
}

func (f *fakeAdSearcher) AdvertiserContext(context.Context, string) (mlads.AdvertiserContext, error) {
	if f.actxErr != nil {
		return mlads.AdvertiserContext{}, f.actxErr
	}
	return mlads.AdvertiserContext{AdvertiserID: "777", SiteID: "MLB"}, nil
}

func (f *fakeAdSearcher) SearchAds(_ context.Context, _ string, _ mlads.AdvertiserContext, params mlads.SearchAdsParams) ([]mlads.Ad, error) {
	f.gotParams = params
	return f.ads, f.searchErr
}

func fixedAggregator(platform adSearcher, now time.Time) *MetricsAggregator {
	agg := NewMetricsAggregator(platform)
	agg.now = func() time.Time { return now }
	return agg
}

func TestFetchItemMetricsAccumulates(t *testing.T) {
	platform := &fakeAdSearcher{ads: []mlads.Ad{
		{ItemID: "MLB1", Clicks: 10, Prints: 100, Cost: 5, Units: 1, Revenue: 50},
		{ItemID: "MLB1", Clicks: 30, Prints: 300, Cost: 15, Units: 2, Revenue: 150},
		{ItemID: "MLB9", Clicks: 4, Prints: 0, Cost: 2},
	}}
	agg := fixedAggregator(platform, time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC))

	result := agg.FetchItemMetrics(context.Background(), "ws-1", []string{"MLB1", "MLB2"})
	if result.Degraded {
		t.Fatalf("unexpected degraded result: %s", result.Reason)
	}

	m1 := result.Get("MLB1")
	if m1.Clicks != 40 || m1.Prints != 400 || m1.Cost != 20 || m1.Sales != 3 || m1.Revenue != 200 {
		t.Errorf("MLB1 = %+v", m1)
	}
	if m1.CPC != 0.5 {
		t.Errorf("MLB1.CPC = %v, want 0.5", m1.CPC)
	}
	if m1.CTR != 0.1 {
		t.Errorf("MLB1.CTR = %v, want 0.1", m1.CTR)
	}

	// Requested but never advertised: zero metrics, zero rates.
	if m2 := result.Get("MLB2"); m2 != (domain.ItemMetrics{}) {
		t.Errorf("MLB2 = %+v, want zero", m2)
	}

	// Found remotely even though not requested.
	if m9 := result.Get("MLB9"); m9.Clicks != 4 || m9.CPC != 0.5 {
		t.Errorf("MLB9 = %+v", m9)
	}
}

func TestFetchItemMetricsDegradesOnError(t *testing.T) {
	platform := &fakeAdSearcher{searchErr: errors.New("boom")}
	agg := fixedAggregator(platform, time.Now())

	result := agg.FetchItemMetrics(context.Background(), "ws-1", []string{"MLB1"})
	if !result.Degraded {
		t.Fatal("expected degraded result")
	}
	if result.Reason != "boom" {
		t.Errorf("Reason = %q", result.Reason)
	}
	if m := result.Get("MLB1"); m.Clicks != 0 || m.Cost != 0 {
		t.Errorf("degraded metrics not zeroed: %+v", m)
	}
}

func TestFetchItemMetricsWindow(t *testing.T) {
	platform := &fakeAdSearcher{}
	// Midnight UTC on Sep 1 is still Aug 31 in São Paulo.
	agg := fixedAggregator(platform, time.Date(2026, 9, 1, 1, 0, 0, 0, time.UTC))

	result := agg.FetchItemMetrics(context.Background(), "ws-1", nil)
	if result.DateTo != "2026-08-31" {
		t.Errorf("DateTo = %q, want 2026-08-31", result.DateTo)
	}
	if result.DateFrom != "2026-08-02" {
		t.Errorf("DateFrom = %q, want 2026-08-02", result.DateFrom)
	}
	if platform.gotParams.DateFrom != result.DateFrom || platform.gotParams.DateTo != result.DateTo {
		t.Errorf("search params window = %+v", platform.gotParams)
	}
}

func TestDateWindow(t *testing.T) {
	loc := time.UTC
	from, to := dateWindow(time.Date(2026, 3, 10, 15, 0, 0, 0, loc), 7, loc)
	if to != "2026-03-10" || from != "2026-03-04" {
		t.Errorf("dateWindow = (%q, %q)", from, to)
	}
}
