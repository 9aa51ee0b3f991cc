// Package mlads is the Mercado Ads (Product Ads) API client.
//
// The API exposes two path families for the same campaign resources: the
// product_ads family (/advertising/product_ads/advertisers/{id}/...) and the
// marketplace family (/advertising/{site}/advertisers/{id}/product_ads/...).
// Which family an account answers depends on how it was onboarded, so every
// call tries the product_ads family first and falls back to the marketplace
// family on a permission error.
package mlads

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/growthops/mercadoads/internal/gateway"
	"github.com/growthops/mercadoads/internal/pkg/logger"
)

// adMetricsFields is the metrics selection for ads searches.
const adMetricsFields = "clicks,prints,cost,cpc,acos,roas,units_quantity,total_amount"

// campaignMetricsFields adds the organic counters available on campaign
// searches.
const campaignMetricsFields = adMetricsFields + ",organic_units_quantity,organic_units_amount"

const (
	campaignPageSize = 50
	adPageSize       = 200
)

// CredentialReader exposes the stored credentials a workspace holds.
type CredentialReader interface {
	Credentials(ctx context.Context, workspaceID string) (*gateway.Credentials, error)
}

// Client wraps the gateway with Product Ads endpoint knowledge.
type Client struct {
	doer  gateway.Doer
	creds CredentialReader

	defaultSiteID string
	// advertiserOverride forces a fixed advertiser id, bypassing discovery.
	advertiserOverride string
}

// NewClient creates a Product Ads client. defaultSiteID is used when
// advertiser discovery does not report a site. advertiserOverride may be
// empty.
func NewClient(doer gateway.Doer, creds CredentialReader, defaultSiteID, advertiserOverride string) *Client {
	return &Client{
		doer:               doer,
		creds:              creds,
		defaultSiteID:      defaultSiteID,
		advertiserOverride: advertiserOverride,
	}
}

// AdvertiserContext resolves the advertiser for a workspace. It asks the
// advertisers listing for accounts enabled for Product Ads and falls back to
// the configured override or the token's user id.
func (c *Client) AdvertiserContext(ctx context.Context, workspaceID string) (AdvertiserContext, error) {
	var resp advertisersResponse
	err := c.doer.Do(ctx, workspaceID, gateway.Request{
		Method:  http.MethodGet,
		Path:    "/advertising/advertisers",
		Query:   url.Values{"product_id": {"PADS"}},
		Headers: map[string]string{"Api-Version": "1"},
	}, &resp)
	if err == nil && len(resp.Advertisers) > 0 && resp.Advertisers[0].AdvertiserID != "" {
		adv := resp.Advertisers[0]
		siteID := adv.SiteID
		if siteID == "" {
			siteID = c.defaultSiteID
		}
		return AdvertiserContext{AdvertiserID: string(adv.AdvertiserID), SiteID: siteID}, nil
	}
	if err != nil && !gateway.IsStatus(err, http.StatusNotFound) {
		logger.Warn("advertiser listing failed", "workspace_id", workspaceID, "error", err.Error())
	}

	if c.advertiserOverride != "" {
		return AdvertiserContext{AdvertiserID: c.advertiserOverride, SiteID: c.defaultSiteID}, nil
	}

	creds, err := c.creds.Credentials(ctx, workspaceID)
	if err != nil {
		return AdvertiserContext{}, err
	}
	if creds.UserID == "" {
		return AdvertiserContext{}, ErrMissingAdvertiser
	}
	return AdvertiserContext{AdvertiserID: creds.UserID, SiteID: c.defaultSiteID}, nil
}

func standardPath(advertiserID, suffix string) string {
	return "/advertising/product_ads/advertisers/" + advertiserID + "/" + suffix
}

func marketplacePath(actx AdvertiserContext, suffix string) string {
	return "/advertising/" + actx.SiteID + "/advertisers/" + actx.AdvertiserID + "/product_ads/" + suffix
}

// dualRequest issues the call against the product_ads family and retries the
// marketplace family when the first family rejects the account. The result
// is normalized: unsupported accounts get ErrNotSupported, write-permission
// rejections get ErrPermissionDenied.
func (c *Client) dualRequest(ctx context.Context, workspaceID string, actx AdvertiserContext, method, suffix string, query url.Values, body, out any) error {
	req := gateway.Request{
		Method:  method,
		Path:    standardPath(actx.AdvertiserID, suffix),
		Query:   query,
		Headers: map[string]string{"api-version": "2"},
		Body:    body,
	}

	err := c.doer.Do(ctx, workspaceID, req, out)
	if gateway.IsStatus(err, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusMethodNotAllowed) {
		req.Path = marketplacePath(actx, suffix)
		err = c.doer.Do(ctx, workspaceID, req, out)
	}
	return normalizeError(err)
}

func normalizeError(err error) error {
	if err == nil {
		return nil
	}
	if gateway.IsStatus(err, http.StatusNotFound, http.StatusMethodNotAllowed) {
		return fmt.Errorf("%w: %v", ErrNotSupported, err)
	}
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) &&
		(apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) &&
		strings.Contains(apiErr.Body, "does not have permission to write") {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return err
}

// CreateCampaign creates a campaign and returns its remote id.
func (c *Client) CreateCampaign(ctx context.Context, workspaceID string, actx AdvertiserContext, params CreateCampaignParams) (string, error) {
	var resp createResponse
	if err := c.dualRequest(ctx, workspaceID, actx, http.MethodPost, "campaigns", nil, params, &resp); err != nil {
		return "", err
	}
	id := resp.remoteID()
	if id == "" {
		return "", fmt.Errorf("%w: empty campaign id in response", ErrNotSupported)
	}
	return id, nil
}

// UpdateCampaign applies a partial update to a remote campaign.
func (c *Client) UpdateCampaign(ctx context.Context, workspaceID string, actx AdvertiserContext, remoteID string, patch CampaignPatch) error {
	return c.dualRequest(ctx, workspaceID, actx, http.MethodPut, "campaigns/"+remoteID, nil, patch, nil)
}

// SearchCampaigns lists campaigns from both path families merged by remote
// id. The product_ads family wins on conflicts. A family answering 404/405
// is skipped; when neither family answers, ErrNotSupported is returned.
func (c *Client) SearchCampaigns(ctx context.Context, workspaceID string, actx AdvertiserContext) ([]Campaign, error) {
	merged := make([]Campaign, 0, campaignPageSize)
	seen := make(map[string]bool)
	supported := 0

	paths := []string{
		standardPath(actx.AdvertiserID, "campaigns/search"),
		marketplacePath(actx, "campaigns/search"),
	}
	for _, path := range paths {
		campaigns, err := c.searchCampaignsAt(ctx, workspaceID, path)
		if err != nil {
			if gateway.IsStatus(err, http.StatusNotFound, http.StatusMethodNotAllowed, http.StatusUnauthorized, http.StatusForbidden) {
				continue
			}
			return nil, err
		}
		supported++
		for _, camp := range campaigns {
			id := camp.RemoteID()
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			merged = append(merged, camp)
		}
	}

	if supported == 0 {
		return nil, ErrNotSupported
	}
	return merged, nil
}

func (c *Client) searchCampaignsAt(ctx context.Context, workspaceID, path string) ([]Campaign, error) {
	var all []Campaign
	for offset := 0; ; offset += campaignPageSize {
		var resp searchResponse[Campaign]
		err := c.doer.Do(ctx, workspaceID, gateway.Request{
			Method: http.MethodGet,
			Path:   path,
			Query: url.Values{
				"limit":  {strconv.Itoa(campaignPageSize)},
				"offset": {strconv.Itoa(offset)},
			},
			Headers: map[string]string{"api-version": "2"},
		}, &resp)
		if err != nil {
			return nil, err
		}
		all = append(all, resp.Results...)
		if len(resp.Results) < campaignPageSize {
			return all, nil
		}
	}
}

// CreateAd creates a product ad and returns its remote id.
func (c *Client) CreateAd(ctx context.Context, workspaceID string, actx AdvertiserContext, params AdParams) (string, error) {
	var resp createResponse
	if err := c.dualRequest(ctx, workspaceID, actx, http.MethodPost, "ads", nil, params, &resp); err != nil {
		return "", err
	}
	id := resp.remoteID()
	if id == "" {
		return "", ErrAdCreateFailed
	}
	return id, nil
}

// UpdateAd updates an existing product ad. A 404 for the ad itself surfaces
// as a gateway APIError so callers can recreate the ad.
func (c *Client) UpdateAd(ctx context.Context, workspaceID string, actx AdvertiserContext, remoteAdID string, params AdParams) error {
	req := gateway.Request{
		Method:  http.MethodPut,
		Path:    standardPath(actx.AdvertiserID, "ads/"+remoteAdID),
		Headers: map[string]string{"api-version": "2"},
		Body:    params,
	}
	err := c.doer.Do(ctx, workspaceID, req, nil)
	if gateway.IsStatus(err, http.StatusUnauthorized, http.StatusForbidden, http.StatusMethodNotAllowed) {
		req.Path = marketplacePath(actx, "ads/"+remoteAdID)
		err = c.doer.Do(ctx, workspaceID, req, nil)
	}
	return err
}

// SearchAds lists product ads with metrics for the given date window,
// paginating through the full result set.
func (c *Client) SearchAds(ctx context.Context, workspaceID string, actx AdvertiserContext, params SearchAdsParams) ([]Ad, error) {
	statuses := params.Statuses
	if len(statuses) == 0 {
		statuses = []string{"active", "paused", "idle"}
	}

	var all []Ad
	for offset := 0; ; offset += adPageSize {
		query := url.Values{
			"limit":             {strconv.Itoa(adPageSize)},
			"offset":            {strconv.Itoa(offset)},
			"metrics":           {adMetricsFields},
			"filters[statuses]": {strings.Join(statuses, ",")},
		}
		if params.DateFrom != "" {
			query.Set("date_from", params.DateFrom)
		}
		if params.DateTo != "" {
			query.Set("date_to", params.DateTo)
		}

		var resp searchResponse[Ad]
		if err := c.dualRequest(ctx, workspaceID, actx, http.MethodGet, "ads/search", query, nil, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Results...)
		if len(resp.Results) < adPageSize {
			return all, nil
		}
	}
}

// CampaignSummary returns the aggregated campaign metrics for a date window.
func (c *Client) CampaignSummary(ctx context.Context, workspaceID string, actx AdvertiserContext, dateFrom, dateTo string) (*MetricsSummary, error) {
	query := url.Values{
		"limit":           {strconv.Itoa(campaignPageSize)},
		"offset":          {"0"},
		"date_from":       {dateFrom},
		"date_to":         {dateTo},
		"metrics":         {campaignMetricsFields},
		"metrics_summary": {"true"},
	}
	var resp searchResponse[Campaign]
	if err := c.dualRequest(ctx, workspaceID, actx, http.MethodGet, "campaigns/search", query, nil, &resp); err != nil {
		return nil, err
	}
	if resp.MetricsSummary == nil {
		return &MetricsSummary{}, nil
	}
	return resp.MetricsSummary, nil
}

// DailyCampaignMetrics returns per-day campaign metrics for a date window,
// summed across campaigns and sorted by date.
func (c *Client) DailyCampaignMetrics(ctx context.Context, workspaceID string, actx AdvertiserContext, dateFrom, dateTo string) ([]DailyMetric, error) {
	byDate := make(map[string]*DailyMetric)
	for offset := 0; ; offset += campaignPageSize {
		query := url.Values{
			"limit":            {strconv.Itoa(campaignPageSize)},
			"offset":           {strconv.Itoa(offset)},
			"date_from":        {dateFrom},
			"date_to":          {dateTo},
			"metrics":          {campaignMetricsFields},
			"aggregation_type": {"DAILY"},
		}
		var resp searchResponse[DailyMetric]
		if err := c.dualRequest(ctx, workspaceID, actx, http.MethodGet, "campaigns/search", query, nil, &resp); err != nil {
			return nil, err
		}
		for _, row := range resp.Results {
			if row.Date == "" {
				continue
			}
			agg, ok := byDate[row.Date]
			if !ok {
				agg = &DailyMetric{Date: row.Date}
				byDate[row.Date] = agg
			}
			agg.Clicks += row.Clicks
			agg.Prints += row.Prints
			agg.Cost += row.Cost
			agg.ACOS += row.ACOS
			agg.ROAS += row.ROAS
			agg.Units += row.Units
			agg.Revenue += row.Revenue
		}
		if len(resp.Results) < campaignPageSize {
			break
		}
	}

	daily := make([]DailyMetric, 0, len(byDate))
	for _, m := range byDate {
		daily = append(daily, *m)
	}
	sort.Slice(daily, func(i, j int) bool { return daily[i].Date < daily[j].Date })
	return daily, nil
}
