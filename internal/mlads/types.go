package mlads

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// IDString decodes a remote identifier that the API returns sometimes as a
// JSON number and sometimes as a string.
type IDString string

func (s *IDString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = IDString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*s = IDString(n.String())
	return nil
}

// AdvertiserContext identifies the Product Ads advertiser used for every
// campaign and ad call.
type AdvertiserContext struct {
	AdvertiserID string
	SiteID       string
}

// Campaign is a remote Product Ads campaign.
type Campaign struct {
	ID         IDString `json:"id"`
	CampaignID IDString `json:"campaign_id"`
	Name       string   `json:"name"`
	Status     string   `json:"status"`
	Budget     *float64 `json:"budget"`
	Strategy   string   `json:"strategy"`
	Channel    string   `json:"channel"`
}

// RemoteID returns the campaign's identifier regardless of which field the
// API populated.
func (c Campaign) RemoteID() string {
	if c.ID != "" {
		return string(c.ID)
	}
	return string(c.CampaignID)
}

// Ad is a remote product ad, optionally carrying metrics for the requested
// date window.
type Ad struct {
	ID          IDString `json:"id"`
	AdID        IDString `json:"ad_id"`
	ProductAdID IDString `json:"product_ad_id"`
	CampaignID  IDString `json:"campaign_id"`
	ItemID      string   `json:"item_id"`
	Status      string   `json:"status"`

	Clicks  float64 `json:"clicks"`
	Prints  float64 `json:"prints"`
	Cost    float64 `json:"cost"`
	Units   float64 `json:"units_quantity"`
	Revenue float64 `json:"total_amount"`
}

// RemoteID returns the ad's identifier regardless of which field the API
// populated.
func (a Ad) RemoteID() string {
	if a.ID != "" {
		return string(a.ID)
	}
	if a.AdID != "" {
		return string(a.AdID)
	}
	return string(a.ProductAdID)
}

// CreateCampaignParams carries the fields for campaign creation.
type CreateCampaignParams struct {
	Name       string   `json:"name"`
	Status     string   `json:"status"`
	Budget     float64  `json:"budget"`
	Strategy   string   `json:"strategy"`
	Channel    string   `json:"channel"`
	ROASTarget *float64 `json:"roas_target,omitempty"`
}

// CampaignPatch carries a partial campaign update. Zero-valued fields are
// omitted from the request.
type CampaignPatch struct {
	Status string   `json:"status,omitempty"`
	Budget *float64 `json:"budget,omitempty"`
}

// AdParams carries the fields for creating or updating a product ad.
type AdParams struct {
	CampaignID string  `json:"campaign_id"`
	ItemID     string  `json:"item_id"`
	Status     string  `json:"status"`
	Bid        BidSpec `json:"bid"`
}

// BidSpec is the bid block of an ad payload.
type BidSpec struct {
	MaxCPC float64 `json:"max_cpc"`
}

// SearchAdsParams narrows an ads search. Dates use YYYY-MM-DD.
type SearchAdsParams struct {
	DateFrom string
	DateTo   string
	Statuses []string
}

// MetricsSummary is the aggregated campaign metrics block.
type MetricsSummary struct {
	Clicks         float64 `json:"clicks"`
	Prints         float64 `json:"prints"`
	Cost           float64 `json:"cost"`
	CPC            float64 `json:"cpc"`
	ACOS           float64 `json:"acos"`
	ROAS           float64 `json:"roas"`
	Units          float64 `json:"units_quantity"`
	Revenue        float64 `json:"total_amount"`
	OrganicUnits   float64 `json:"organic_units_quantity"`
	OrganicRevenue float64 `json:"organic_units_amount"`
}

// DailyMetric is one day of campaign metrics.
type DailyMetric struct {
	Date    string  `json:"date"`
	Clicks  float64 `json:"clicks"`
	Prints  float64 `json:"prints"`
	Cost    float64 `json:"cost"`
	ACOS    float64 `json:"acos"`
	ROAS    float64 `json:"roas"`
	Units   float64 `json:"units_quantity"`
	Revenue float64 `json:"total_amount"`
}

type searchResponse[T any] struct {
	Results        []T             `json:"results"`
	Paging         paging          `json:"paging"`
	MetricsSummary *MetricsSummary `json:"metrics_summary"`
}

type paging struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

type advertisersResponse struct {
	Advertisers []struct {
		AdvertiserID IDString `json:"advertiser_id"`
		SiteID       string   `json:"site_id"`
	} `json:"advertisers"`
}

type createResponse struct {
	ID          IDString `json:"id"`
	CampaignID  IDString `json:"campaign_id"`
	ProductAdID IDString `json:"product_ad_id"`
}

func (r createResponse) remoteID() string {
	if r.ID != "" {
		return string(r.ID)
	}
	if r.CampaignID != "" {
		return string(r.CampaignID)
	}
	return string(r.ProductAdID)
}
