package automation

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/growthops/mercadoads/internal/config"
	"github.com/growthops/mercadoads/internal/domain"
	"github.com/growthops/mercadoads/internal/gateway"
	"github.com/growthops/mercadoads/internal/mlads"
)

type fakePlatform struct {
	actxErr           error
	searchAds         []mlads.Ad
	searchAdsErr      error
	campaigns         []mlads.Campaign
	searchCampaignErr error
	createCampaign    func(params mlads.CreateCampaignParams) (string, error)
	createAd          func(params mlads.AdParams) (string, error)
	updateAd          func(remoteAdID string, params mlads.AdParams) error
	updateCampaignErr error
	summary           *mlads.MetricsSummary
	summaryErr        error
	daily             []mlads.DailyMetric
	dailyErr          error
}

func (f *fakePlatform) AdvertiserContext(context.Context, string) (mlads.AdvertiserContext, error) {
	if f.actxErr != nil {
		return mlads.AdvertiserContext{}, f.actxErr
	}
	return mlads.AdvertiserContext{AdvertiserID: "777", SiteID: "MLB"}, nil
}

func (f *fakePlatform) CreateCampaign(_ context.Context, _ string, _ mlads.AdvertiserContext, params mlads.CreateCampaignParams) (string, error) {
	if f.createCampaign == nil {
		return "", mlads.ErrNotSupported
	}
	return f.createCampaign(params)
}

func (f *fakePlatform) UpdateCampaign(context.Context, string, mlads.AdvertiserContext, string, mlads.CampaignPatch) error {
	return f.updateCampaignErr
}

func (f *fakePlatform) SearchCampaigns(context.Context, string, mlads.AdvertiserContext) ([]mlads.Campaign, error) {
	return f.campaigns, f.searchCampaignErr
}

func (f *fakePlatform) CreateAd(_ context.Context, _ string, _ mlads.AdvertiserContext, params mlads.AdParams) (string, error) {
	if f.createAd == nil {
		return "ad-1", nil
	}
	return f.createAd(params)
}

func (f *fakePlatform) UpdateAd(_ context.Context, _ string, _ mlads.AdvertiserContext, remoteAdID string, params mlads.AdParams) error {
	if f.updateAd == nil {
		return nil
	}
	return f.updateAd(remoteAdID, params)
}

func (f *fakePlatform) SearchAds(context.Context, string, mlads.AdvertiserContext, mlads.SearchAdsParams) ([]mlads.Ad, error) {
	return f.searchAds, f.searchAdsErr
}

func (f *fakePlatform) CampaignSummary(context.Context, string, mlads.AdvertiserContext, string, string) (*mlads.MetricsSummary, error) {
	return f.summary, f.summaryErr
}

func (f *fakePlatform) DailyCampaignMetrics(context.Context, string, mlads.AdvertiserContext, string, string) ([]mlads.DailyMetric, error) {
	return f.daily, f.dailyErr
}

func testConfig() config.AutomationConfig {
	return config.AutomationConfig{
		BudgetA: 65, BudgetB: 25, BudgetC: 10,
		MaxCPCA: 1.5, MaxCPCB: 0.9, MaxCPCC: 0.5,
		BudgetCooldownHours: 24,
	}
}

func campaignRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "workspace_id", "curve_id", "curve", "campaign_type", "advertiser_id",
		"ml_campaign_id", "name", "status", "daily_budget", "automation_status",
		"last_synced_at", "last_automation_at", "metadata", "created_at", "updated_at",
	})
}

func expectCurveBootstrap(mock sqlmock.Sqlmock) {
	for range domain.Tiers() {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ml_ads_curves")).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectQuery("FROM ml_ads_curves").WillReturnRows(sqlmock.NewRows([]string{
		"id", "workspace_id", "curve", "name", "campaign_type", "daily_budget",
		"min_revenue_30d", "min_orders_30d", "min_roas", "min_conversion",
		"priority", "created_at", "updated_at",
	}).
		AddRow("cv-a", "ws-1", "A", "Curva A", "PERFORMANCE", 65.0, 5000.0, 15, 3.0, 0.02, 1, testTime, testTime).
		AddRow("cv-b", "ws-1", "B", "Curva B", "OTIMIZACAO", 25.0, 1500.0, 5, 1.5, 0.012, 2, testTime, testTime).
		AddRow("cv-c", "ws-1", "C", "Curva C", "TESTE", 10.0, 0.0, 0, 0.0, 0.0, 3, testTime, testTime))
}

func productColumns() []string {
	return []string{
		"id", "ml_item_id", "title", "sku", "classification",
		"revenue_30d", "sales_30d", "conversion_rate_30d", "profit_unit",
	}
}

func TestApplyAutomationPartialFailure(t *testing.T) {
	store, mock := newMockStore(t)
	platform := &fakePlatform{
		createAd: func(params mlads.AdParams) (string, error) {
			if params.ItemID == "MLB2" {
				return "", errors.New("ml_ads_product_ad_create_failed")
			}
			return "ad-" + params.ItemID, nil
		},
	}
	svc := NewService(store, platform, testConfig(), nil)

	expectCurveBootstrap(mock)
	mock.ExpectQuery("FROM products").WillReturnRows(sqlmock.NewRows(productColumns()).
		AddRow("p1", "MLB1", nil, nil, nil, 900.0, 3, 0.0, 50.0).
		AddRow("p2", "MLB2", nil, nil, nil, 0.0, 0, 0.0, nil))

	// Campaigns already exist remotely; each tier refreshes its local row
	// without any remote call. The tier-A one was optimized minutes ago so
	// the budget optimizer keeps its hands off.
	recent := `{"last_budget_optimization_at":"` + time.Now().UTC().Format(time.RFC3339) + `"}`
	rowA := func() *sqlmock.Rows {
		return campaignRows().AddRow("camp-a", "ws-1", "cv-a", "A", "PERFORMANCE", "777",
			"9001", "[Curva A] Performance", "active", 65.0, "managed", nil, nil, []byte(recent), testTime, testTime)
	}
	rowB := func() *sqlmock.Rows {
		return campaignRows().AddRow("camp-b", "ws-1", "cv-b", "B", "OTIMIZACAO", "777",
			"9002", "[Curva B] Otimizacao", "active", 25.0, "managed", nil, nil, []byte(`{}`), testTime, testTime)
	}
	rowC := func() *sqlmock.Rows {
		return campaignRows().AddRow("camp-c", "ws-1", "cv-c", "C", "TESTE", "777",
			"9003", "[Curva C] Teste Controlado", "active", 10.0, "managed", nil, nil, []byte(`{}`), testTime, testTime)
	}
	mock.ExpectQuery("FROM ml_ads_campaigns").WithArgs("ws-1", "A").WillReturnRows(rowA())
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO ml_ads_campaigns")).WillReturnRows(rowA())
	mock.ExpectQuery("FROM ml_ads_campaigns").WithArgs("ws-1", "B").WillReturnRows(rowB())
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO ml_ads_campaigns")).WillReturnRows(rowB())
	mock.ExpectQuery("FROM ml_ads_campaigns").WithArgs("ws-1", "C").WillReturnRows(rowC())
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO ml_ads_campaigns")).WillReturnRows(rowC())

	// MLB1 reconciles into the tier-A campaign.
	mock.ExpectQuery("FROM ml_ads_campaign_products").WithArgs("ws-1", "MLB1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM ml_ads_campaign_products")).
		WithArgs("ws-1", "MLB1", "camp-a").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ml_ads_campaign_products")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ml_ads_curve_history")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// MLB2's ad creation fails; only the link lookup happens.
	mock.ExpectQuery("FROM ml_ads_campaign_products").WithArgs("ws-1", "MLB2").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	result, err := svc.ApplyAutomation(context.Background(), "ws-1", nil)
	if err != nil {
		t.Fatalf("ApplyAutomation() error = %v", err)
	}
	if result.ProcessedCount != 1 {
		t.Errorf("ProcessedCount = %d, want 1", result.ProcessedCount)
	}
	if len(result.Errors) != 1 || result.Errors[0].ItemID != "MLB2" {
		t.Errorf("Errors = %+v", result.Errors)
	}
	if result.Summary[domain.TierA] != 1 || result.Summary[domain.TierC] != 1 {
		t.Errorf("Summary = %+v", result.Summary)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestApplyAutomationWarnsOnBudgetWriteFailure(t *testing.T) {
	store, mock := newMockStore(t)
	platform := &fakePlatform{
		daily:             days(4, 4, 4, 4, 4, 4, 4),
		updateCampaignErr: errors.New("validation_error"),
	}
	svc := NewService(store, platform, testConfig(), nil)

	expectCurveBootstrap(mock)
	mock.ExpectQuery("FROM products").WillReturnRows(sqlmock.NewRows(productColumns()))

	rows := map[domain.Tier]func() *sqlmock.Rows{
		domain.TierA: func() *sqlmock.Rows {
			return campaignRows().AddRow("camp-a", "ws-1", "cv-a", "A", "PERFORMANCE", "777",
				"9001", "[Curva A] Performance", "active", 65.0, "managed", nil, nil, []byte(`{}`), testTime, testTime)
		},
		domain.TierB: func() *sqlmock.Rows {
			return campaignRows().AddRow("camp-b", "ws-1", "cv-b", "B", "OTIMIZACAO", "777",
				"9002", "[Curva B] Otimizacao", "active", 25.0, "managed", nil, nil, []byte(`{}`), testTime, testTime)
		},
		domain.TierC: func() *sqlmock.Rows {
			return campaignRows().AddRow("camp-c", "ws-1", "cv-c", "C", "TESTE", "777",
				"9003", "[Curva C] Teste Controlado", "active", 10.0, "managed", nil, nil, []byte(`{}`), testTime, testTime)
		},
	}
	for _, tier := range domain.Tiers() {
		mock.ExpectQuery("FROM ml_ads_campaigns").WithArgs("ws-1", string(tier)).
			WillReturnRows(rows[tier]())
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO ml_ads_campaigns")).
			WillReturnRows(rows[tier]())
	}

	result, err := svc.ApplyAutomation(context.Background(), "ws-1", nil)
	if err != nil {
		t.Fatalf("ApplyAutomation() error = %v", err)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("Warnings = %v, want one budget warning", result.Warnings)
	}
	if !strings.Contains(result.Warnings[0], ErrBudgetUpdateFailed.Error()) {
		t.Errorf("Warnings[0] = %q", result.Warnings[0])
	}
	if len(result.Errors) != 0 || result.ProcessedCount != 0 {
		t.Errorf("result = %+v", result)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestApplyAutomationAdoptionGuard(t *testing.T) {
	store, mock := newMockStore(t)
	// Creation is unsupported and the only remote campaign carries no curve
	// marker, so adoption cannot map all three tiers.
	platform := &fakePlatform{
		campaigns: []mlads.Campaign{{ID: "555", Name: "Minha campanha", Status: "active"}},
	}
	svc := NewService(store, platform, testConfig(), nil)

	expectCurveBootstrap(mock)
	mock.ExpectQuery("FROM products").WillReturnRows(sqlmock.NewRows(productColumns()))
	mock.ExpectQuery("FROM ml_ads_campaigns").WithArgs("ws-1", "A").
		WillReturnRows(campaignRows())
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ml_ads_campaigns")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM ml_ads_campaigns").WithArgs("ws-1").
		WillReturnRows(campaignRows().AddRow("camp-x", "ws-1", nil, nil, "PRODUCT_ADS", "777",
			"555", "Minha campanha", "active", nil, "manual", nil, nil, []byte(`{}`), testTime, testTime))

	_, err := svc.ApplyAutomation(context.Background(), "ws-1", nil)
	if !errors.Is(err, ErrManualCampaignRequired) {
		t.Fatalf("error = %v, want ErrManualCampaignRequired", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestApplyAutomationAdoptsTaggedCampaigns(t *testing.T) {
	store, mock := newMockStore(t)
	platform := &fakePlatform{
		campaigns: []mlads.Campaign{
			{ID: "1", Name: "Curva A manual", Status: "active"},
			{ID: "2", Name: "curva b teste", Status: "active"},
			{ID: "3", Name: "CURVA C", Status: "paused"},
		},
	}
	svc := NewService(store, platform, testConfig(), nil)

	expectCurveBootstrap(mock)
	mock.ExpectQuery("FROM products").WillReturnRows(sqlmock.NewRows(productColumns()))
	mock.ExpectQuery("FROM ml_ads_campaigns").WithArgs("ws-1", "A").
		WillReturnRows(campaignRows())
	for range platform.campaigns {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ml_ads_campaigns")).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectQuery("FROM ml_ads_campaigns").WithArgs("ws-1").
		WillReturnRows(campaignRows().
			AddRow("camp-1", "ws-1", nil, "A", "PRODUCT_ADS", "777", "1", "Curva A manual", "active", nil, "manual", nil, nil, []byte(`{}`), testTime, testTime).
			AddRow("camp-2", "ws-1", nil, "B", "PRODUCT_ADS", "777", "2", "curva b teste", "active", nil, "manual", nil, nil, []byte(`{}`), testTime, testTime).
			AddRow("camp-3", "ws-1", nil, "C", "PRODUCT_ADS", "777", "3", "CURVA C", "paused", nil, "manual", nil, nil, []byte(`{}`), testTime, testTime))

	result, err := svc.ApplyAutomation(context.Background(), "ws-1", nil)
	if err != nil {
		t.Fatalf("ApplyAutomation() error = %v", err)
	}
	if result.ProcessedCount != 0 || len(result.Errors) != 0 {
		t.Errorf("result = %+v", result)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestApplyAutomationNotConnected(t *testing.T) {
	store, _ := newMockStore(t)
	platform := &fakePlatform{actxErr: gateway.ErrNotConnected}
	svc := NewService(store, platform, testConfig(), nil)

	_, err := svc.ApplyAutomation(context.Background(), "ws-1", nil)
	if !errors.Is(err, gateway.ErrNotConnected) {
		t.Fatalf("error = %v, want ErrNotConnected", err)
	}
}

func TestUpdateCampaignStatusInvalidTransition(t *testing.T) {
	store, mock := newMockStore(t)
	svc := NewService(store, &fakePlatform{}, testConfig(), nil)

	mock.ExpectQuery("FROM ml_ads_campaigns").WithArgs("camp-a", "ws-1").
		WillReturnRows(campaignRows().AddRow("camp-a", "ws-1", nil, "A", "PERFORMANCE", "777",
			"9001", "[Curva A] Performance", "archived", 65.0, "managed", nil, nil, []byte(`{}`), testTime, testTime))

	_, err := svc.UpdateCampaignStatus(context.Background(), "ws-1", "camp-a", domain.CampaignActive)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("error = %v, want ErrInvalidTransition", err)
	}
}

func TestUpdateCampaignBudgetWritesRemoteThenLocal(t *testing.T) {
	store, mock := newMockStore(t)
	platform := &fakePlatform{}
	svc := NewService(store, platform, testConfig(), nil)

	mock.ExpectQuery("FROM ml_ads_campaigns").WithArgs("camp-a", "ws-1").
		WillReturnRows(campaignRows().AddRow("camp-a", "ws-1", nil, "A", "PERFORMANCE", "777",
			"9001", "[Curva A] Performance", "active", 65.0, "managed", nil, nil, []byte(`{}`), testTime, testTime))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE ml_ads_campaigns SET daily_budget")).
		WithArgs(80.0, "camp-a").
		WillReturnResult(sqlmock.NewResult(0, 1))

	campaign, err := svc.UpdateCampaignBudget(context.Background(), "ws-1", "camp-a", 80)
	if err != nil {
		t.Fatalf("UpdateCampaignBudget() error = %v", err)
	}
	if campaign.DailyBudget == nil || *campaign.DailyBudget != 80 {
		t.Errorf("DailyBudget = %v, want 80", campaign.DailyBudget)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
