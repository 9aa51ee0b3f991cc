package automation

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/growthops/mercadoads/internal/domain"
)

var testTime = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store := NewStore(db)
	// Schema bootstrap is memoized; burn it here so individual tests only
	// declare the statements they exercise.
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS ml_ads_curves").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return store, mock
}

func TestUpsertCurveDefaults(t *testing.T) {
	store, mock := newMockStore(t)

	budgets := map[domain.Tier]float64{domain.TierA: 65, domain.TierB: 25, domain.TierC: 10}
	for _, tier := range domain.Tiers() {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ml_ads_curves")).
			WithArgs(sqlmock.AnyArg(), "ws-1", string(tier), sqlmock.AnyArg(), sqlmock.AnyArg(),
				budgets[tier], sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	err := store.UpsertCurveDefaults(context.Background(), "ws-1", func(t domain.Tier) float64 { return budgets[t] })
	if err != nil {
		t.Fatalf("UpsertCurveDefaults() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestLatestProductLinkMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("FROM ml_ads_campaign_products").
		WithArgs("ws-1", "MLB1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	link, err := store.LatestProductLink(context.Background(), "ws-1", "MLB1")
	if err != nil {
		t.Fatalf("LatestProductLink() error = %v", err)
	}
	if link != nil {
		t.Errorf("link = %+v, want nil", link)
	}
}

func TestJunctionReassignment(t *testing.T) {
	store, mock := newMockStore(t)

	// Moving MLB1 into campaign camp-b removes its row under camp-a and
	// upserts the (camp-b, MLB1) row.
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM ml_ads_campaign_products")).
		WithArgs("ws-1", "MLB1", "camp-b").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ml_ads_campaign_products")).
		WithArgs(sqlmock.AnyArg(), "ws-1", "camp-b", nil, "MLB1", "ad-9", "B",
			string(domain.SourceAutomation), string(domain.LinkActive)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.DeleteProductLinksExcept(context.Background(), "ws-1", "MLB1", "camp-b"); err != nil {
		t.Fatalf("DeleteProductLinksExcept() error = %v", err)
	}
	adID := "ad-9"
	err := store.UpsertProductLink(context.Background(), ProductLinkParams{
		WorkspaceID: "ws-1",
		CampaignID:  "camp-b",
		ItemID:      "MLB1",
		RemoteAdID:  &adID,
		Tier:        domain.TierB,
		Source:      domain.SourceAutomation,
		Status:      domain.LinkActive,
	})
	if err != nil {
		t.Fatalf("UpsertProductLink() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpsertSyncedCampaignGuardsTierSlot(t *testing.T) {
	store, mock := newMockStore(t)

	// The tier column is filled through a guard that backs off to NULL when
	// another campaign already holds the slot, so a second remote campaign
	// named "curva a" cannot abort the sync on the (workspace, curve) unique.
	stmt := `(?s)INSERT INTO ml_ads_campaigns.*CASE WHEN EXISTS.*ml_campaign_id IS DISTINCT FROM.*ON CONFLICT \(workspace_id, ml_campaign_id\)`
	tier := domain.TierA
	budget := 30.0
	mock.ExpectExec(stmt).
		WithArgs(sqlmock.AnyArg(), "ws-1", "A", "777", "555", "curva a", "active", 30.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpsertSyncedCampaign(context.Background(), SyncedCampaignParams{
		WorkspaceID:  "ws-1",
		AdvertiserID: "777",
		RemoteID:     "555",
		Name:         "curva a",
		Status:       "active",
		DailyBudget:  &budget,
		Tier:         &tier,
	})
	if err != nil {
		t.Fatalf("UpsertSyncedCampaign() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGetCampaignNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("FROM ml_ads_campaigns").
		WithArgs("camp-x", "ws-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetCampaign(context.Background(), "ws-1", "camp-x")
	if err != ErrCampaignNotFound {
		t.Fatalf("error = %v, want ErrCampaignNotFound", err)
	}
}

func TestUpdateCampaignBudgetMissingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE ml_ads_campaigns SET daily_budget")).
		WithArgs(78.0, "camp-x").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateCampaignBudget(context.Background(), "camp-x", 78)
	if err != ErrCampaignNotFound {
		t.Fatalf("error = %v, want ErrCampaignNotFound", err)
	}
}

func TestSetCampaignMetadata(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("SET metadata = COALESCE(metadata, '{}'::jsonb) ||")).
		WithArgs([]byte(`{"last_budget_optimization_at":"2026-08-31T12:00:00Z"}`), "camp-a").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.SetCampaignMetadata(context.Background(), "camp-a",
		domain.MetaLastBudgetOptimization, "2026-08-31T12:00:00Z")
	if err != nil {
		t.Fatalf("SetCampaignMetadata() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestListCurvesOrdersByPriority(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{
		"id", "workspace_id", "curve", "name", "campaign_type", "daily_budget",
		"min_revenue_30d", "min_orders_30d", "min_roas", "min_conversion",
		"priority", "created_at", "updated_at",
	}).
		AddRow("c1", "ws-1", "A", "Curva A", "PERFORMANCE", 65.0, 5000.0, 15, 3.0, 0.02, 1, testTime, testTime).
		AddRow("c2", "ws-1", "B", "Curva B", "OTIMIZACAO", 25.0, 1500.0, 5, 1.5, 0.012, 2, testTime, testTime).
		AddRow("c3", "ws-1", "C", "Curva C", "TESTE", 10.0, 0.0, 0, 0.0, 0.0, 3, testTime, testTime)
	mock.ExpectQuery("FROM ml_ads_curves").WithArgs("ws-1").WillReturnRows(rows)

	curves, err := store.ListCurves(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("ListCurves() error = %v", err)
	}
	if len(curves) != 3 {
		t.Fatalf("curves = %d, want 3", len(curves))
	}
	if curves[0].Tier != domain.TierA || curves[0].DailyBudget != 65 {
		t.Errorf("curves[0] = %+v", curves[0])
	}
	if curves[2].CampaignType != "TESTE" {
		t.Errorf("curves[2] = %+v", curves[2])
	}
}
