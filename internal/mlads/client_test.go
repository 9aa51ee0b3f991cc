package mlads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/growthops/mercadoads/internal/gateway"
)

type fakeDoer struct {
	calls   []gateway.Request
	handler func(req gateway.Request) (any, error)
}

func (f *fakeDoer) Do(_ context.Context, _ string, req gateway.Request, out any) error {
	f.calls = append(f.calls, req)
	v, err := f.handler(req)
	if err != nil {
		return err
	}
	if out == nil || v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

type fakeCreds struct {
	userID string
}

func (f *fakeCreds) Credentials(context.Context, string) (*gateway.Credentials, error) {
	return &gateway.Credentials{AccessToken: "tok", UserID: f.userID}, nil
}

func apiErr(status int, body string) error {
	return &gateway.APIError{StatusCode: status, Body: body}
}

var testCtx = AdvertiserContext{AdvertiserID: "777", SiteID: "MLB"}

func TestCreateCampaignFallsBackToMarketplaceFamily(t *testing.T) {
	doer := &fakeDoer{handler: func(req gateway.Request) (any, error) {
		if strings.HasPrefix(req.Path, "/advertising/product_ads/") {
			return nil, apiErr(http.StatusForbidden, "forbidden")
		}
		if req.Path != "/advertising/MLB/advertisers/777/product_ads/campaigns" {
			t.Errorf("unexpected path %q", req.Path)
		}
		return map[string]any{"id": 9001}, nil
	}}
	client := NewClient(doer, &fakeCreds{}, "MLB", "")

	id, err := client.CreateCampaign(context.Background(), "ws-1", testCtx, CreateCampaignParams{
		Name: "Curva A", Status: "active", Budget: 65, Strategy: "profitability", Channel: "marketplace",
	})
	if err != nil {
		t.Fatalf("CreateCampaign() error = %v", err)
	}
	if id != "9001" {
		t.Errorf("id = %q, want 9001", id)
	}
	if len(doer.calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(doer.calls))
	}
	if got := doer.calls[0].Headers["api-version"]; got != "2" {
		t.Errorf("api-version = %q, want 2", got)
	}
}

func TestCreateCampaignNotSupported(t *testing.T) {
	doer := &fakeDoer{handler: func(gateway.Request) (any, error) {
		return nil, apiErr(http.StatusMethodNotAllowed, "method not allowed")
	}}
	client := NewClient(doer, &fakeCreds{}, "MLB", "")

	_, err := client.CreateCampaign(context.Background(), "ws-1", testCtx, CreateCampaignParams{Name: "Curva C"})
	if !errors.Is(err, ErrNotSupported) {
		t.Fatalf("error = %v, want ErrNotSupported", err)
	}
}

func TestCreateCampaignPermissionDenied(t *testing.T) {
	doer := &fakeDoer{handler: func(gateway.Request) (any, error) {
		return nil, apiErr(http.StatusUnauthorized, "User does not have permission to write.")
	}}
	client := NewClient(doer, &fakeCreds{}, "MLB", "")

	_, err := client.CreateCampaign(context.Background(), "ws-1", testCtx, CreateCampaignParams{Name: "Curva B"})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("error = %v, want ErrPermissionDenied", err)
	}
}

func TestSearchCampaignsMergesBothFamilies(t *testing.T) {
	doer := &fakeDoer{handler: func(req gateway.Request) (any, error) {
		if strings.HasPrefix(req.Path, "/advertising/product_ads/") {
			return map[string]any{"results": []map[string]any{
				{"id": 1, "name": "Curva A - Performance", "status": "active"},
			}}, nil
		}
		return map[string]any{"results": []map[string]any{
			{"id": "1", "name": "stale name", "status": "paused"},
			{"id": 2, "name": "Manual", "status": "active"},
		}}, nil
	}}
	client := NewClient(doer, &fakeCreds{}, "MLB", "")

	campaigns, err := client.SearchCampaigns(context.Background(), "ws-1", testCtx)
	if err != nil {
		t.Fatalf("SearchCampaigns() error = %v", err)
	}
	if len(campaigns) != 2 {
		t.Fatalf("campaigns = %d, want 2", len(campaigns))
	}
	// product_ads family wins on id conflicts
	if campaigns[0].RemoteID() != "1" || campaigns[0].Name != "Curva A - Performance" {
		t.Errorf("campaigns[0] = %+v", campaigns[0])
	}
	if campaigns[1].RemoteID() != "2" {
		t.Errorf("campaigns[1] = %+v", campaigns[1])
	}
}

func TestSearchCampaignsNeitherFamilySupported(t *testing.T) {
	doer := &fakeDoer{handler: func(gateway.Request) (any, error) {
		return nil, apiErr(http.StatusNotFound, "not found")
	}}
	client := NewClient(doer, &fakeCreds{}, "MLB", "")

	_, err := client.SearchCampaigns(context.Background(), "ws-1", testCtx)
	if !errors.Is(err, ErrNotSupported) {
		t.Fatalf("error = %v, want ErrNotSupported", err)
	}
}

func TestSearchAdsPaginates(t *testing.T) {
	page := func(n int, start int) []map[string]any {
		ads := make([]map[string]any, n)
		for i := range ads {
			ads[i] = map[string]any{
				"id": start + i, "campaign_id": 9001, "item_id": "MLB1", "status": "active",
				"clicks": 2, "cost": 1.5,
			}
		}
		return ads
	}
	doer := &fakeDoer{handler: func(req gateway.Request) (any, error) {
		if req.Query.Get("metrics") != adMetricsFields {
			t.Errorf("metrics = %q", req.Query.Get("metrics"))
		}
		switch req.Query.Get("offset") {
		case "0":
			return map[string]any{"results": page(200, 0)}, nil
		case "200":
			return map[string]any{"results": page(10, 200)}, nil
		default:
			t.Errorf("unexpected offset %q", req.Query.Get("offset"))
			return map[string]any{"results": []map[string]any{}}, nil
		}
	}}
	client := NewClient(doer, &fakeCreds{}, "MLB", "")

	ads, err := client.SearchAds(context.Background(), "ws-1", testCtx, SearchAdsParams{
		DateFrom: "2026-08-01", DateTo: "2026-08-30",
	})
	if err != nil {
		t.Fatalf("SearchAds() error = %v", err)
	}
	if len(ads) != 210 {
		t.Errorf("ads = %d, want 210", len(ads))
	}
	if ads[0].Clicks != 2 || ads[0].Cost != 1.5 {
		t.Errorf("ads[0] metrics = %+v", ads[0])
	}
}

func TestAdvertiserContextDiscovery(t *testing.T) {
	doer := &fakeDoer{handler: func(req gateway.Request) (any, error) {
		if req.Path != "/advertising/advertisers" {
			t.Errorf("path = %q", req.Path)
		}
		if got := req.Query.Get("product_id"); got != "PADS" {
			t.Errorf("product_id = %q", got)
		}
		if got := req.Headers["Api-Version"]; got != "1" {
			t.Errorf("Api-Version = %q", got)
		}
		return map[string]any{"advertisers": []map[string]any{
			{"advertiser_id": 555, "site_id": "MLA"},
		}}, nil
	}}
	client := NewClient(doer, &fakeCreds{userID: "123"}, "MLB", "")

	actx, err := client.AdvertiserContext(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("AdvertiserContext() error = %v", err)
	}
	if actx.AdvertiserID != "555" || actx.SiteID != "MLA" {
		t.Errorf("actx = %+v", actx)
	}
}

func TestAdvertiserContextFallsBackToUserID(t *testing.T) {
	doer := &fakeDoer{handler: func(gateway.Request) (any, error) {
		return nil, apiErr(http.StatusNotFound, "not_found")
	}}
	client := NewClient(doer, &fakeCreds{userID: "123"}, "MLB", "")

	actx, err := client.AdvertiserContext(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("AdvertiserContext() error = %v", err)
	}
	if actx.AdvertiserID != "123" || actx.SiteID != "MLB" {
		t.Errorf("actx = %+v", actx)
	}
}

func TestAdvertiserContextMissing(t *testing.T) {
	doer := &fakeDoer{handler: func(gateway.Request) (any, error) {
		return nil, apiErr(http.StatusNotFound, "not_found")
	}}
	client := NewClient(doer, &fakeCreds{}, "MLB", "")

	_, err := client.AdvertiserContext(context.Background(), "ws-1")
	if !errors.Is(err, ErrMissingAdvertiser) {
		t.Fatalf("error = %v, want ErrMissingAdvertiser", err)
	}
}

func TestDailyCampaignMetricsAggregates(t *testing.T) {
	doer := &fakeDoer{handler: func(req gateway.Request) (any, error) {
		if got := req.Query.Get("aggregation_type"); got != "DAILY" {
			t.Errorf("aggregation_type = %q", got)
		}
		return map[string]any{"results": []map[string]any{
			{"date": "2026-08-02", "clicks": 3, "cost": 1.0, "total_amount": 30},
			{"date": "2026-08-01", "clicks": 5, "cost": 2.0, "total_amount": 50},
			{"date": "2026-08-02", "clicks": 1, "cost": 0.5, "total_amount": 10},
		}}, nil
	}}
	client := NewClient(doer, &fakeCreds{}, "MLB", "")

	daily, err := client.DailyCampaignMetrics(context.Background(), "ws-1", testCtx, "2026-08-01", "2026-08-30")
	if err != nil {
		t.Fatalf("DailyCampaignMetrics() error = %v", err)
	}
	if len(daily) != 2 {
		t.Fatalf("daily = %d, want 2", len(daily))
	}
	if daily[0].Date != "2026-08-01" || daily[0].Clicks != 5 {
		t.Errorf("daily[0] = %+v", daily[0])
	}
	if daily[1].Date != "2026-08-02" || daily[1].Clicks != 4 || daily[1].Revenue != 40 {
		t.Errorf("daily[1] = %+v", daily[1])
	}
}
