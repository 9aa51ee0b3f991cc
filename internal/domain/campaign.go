package domain

import (
	"time"
)

// CampaignStatus enumerates the lifecycle states of a local campaign mirror.
// draft -> active <-> paused -> archived; error is reachable from any state
// on an unrecoverable remote failure.
type CampaignStatus string

const (
	CampaignDraft    CampaignStatus = "draft"
	CampaignActive   CampaignStatus = "active"
	CampaignPaused   CampaignStatus = "paused"
	CampaignArchived CampaignStatus = "archived"
	CampaignError    CampaignStatus = "error"
)

// CanTransition reports whether moving from s to next is a legal lifecycle
// step. Error is always reachable; archived is terminal.
func (s CampaignStatus) CanTransition(next CampaignStatus) bool {
	if next == CampaignError {
		return true
	}
	switch s {
	case CampaignDraft:
		return next == CampaignActive || next == CampaignPaused || next == CampaignArchived
	case CampaignActive:
		return next == CampaignPaused || next == CampaignArchived
	case CampaignPaused:
		return next == CampaignActive || next == CampaignArchived
	case CampaignError:
		return next == CampaignActive || next == CampaignPaused || next == CampaignArchived
	}
	return false
}

// AutomationMode controls how much the engine is allowed to touch a campaign.
// Managed campaigns are fully owned by the engine. Manual campaigns were
// created by a human directly on the platform and are adopted read-only:
// the engine never renames or rebudgets them. SyncOnly rows exist purely to
// mirror remote state.
type AutomationMode string

const (
	AutomationManaged  AutomationMode = "managed"
	AutomationManual   AutomationMode = "manual"
	AutomationSyncOnly AutomationMode = "sync_only"
)

// Campaign is the local mirror of a remote advertising-platform campaign.
// RemoteID is nil until the first successful remote create; at most one row
// exists per (workspace, tier) under normal operation.
type Campaign struct {
	ID             string         `json:"id" db:"id"`
	WorkspaceID    string         `json:"workspace_id" db:"workspace_id"`
	CurveID        *string        `json:"curve_id" db:"curve_id"`
	Tier           Tier           `json:"curve" db:"curve"`
	CampaignType   string         `json:"campaign_type" db:"campaign_type"`
	AdvertiserID   string         `json:"advertiser_id" db:"advertiser_id"`
	RemoteID       *string        `json:"ml_campaign_id" db:"ml_campaign_id"`
	Name           string         `json:"name" db:"name"`
	Status         CampaignStatus `json:"status" db:"status"`
	DailyBudget    *float64       `json:"daily_budget" db:"daily_budget"`
	AutomationMode AutomationMode `json:"automation_status" db:"automation_status"`
	TotalProducts  int            `json:"total_products" db:"total_products"`
	ActiveProducts int            `json:"active_products" db:"active_products"`
	Metadata       map[string]any `json:"metadata" db:"metadata"`
	LastSyncedAt   *time.Time     `json:"last_synced_at" db:"last_synced_at"`
	LastAutomation *time.Time     `json:"last_automation_at" db:"last_automation_at"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// MetaLastBudgetOptimization is the metadata key holding the RFC3339
// timestamp of the last budget-optimizer adjustment.
const MetaLastBudgetOptimization = "last_budget_optimization_at"

// LastBudgetOptimization reads the optimizer cooldown stamp from metadata.
// Returns the zero time when absent or unparseable.
func (c *Campaign) LastBudgetOptimization() time.Time {
	raw, ok := c.Metadata[MetaLastBudgetOptimization]
	if !ok {
		return time.Time{}
	}
	s, ok := raw.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ProductLinkStatus enumerates the lifecycle of a junction row.
// active <-> paused -> removed.
type ProductLinkStatus string

const (
	LinkActive  ProductLinkStatus = "active"
	LinkPaused  ProductLinkStatus = "paused"
	LinkRemoved ProductLinkStatus = "removed"
)

// ProductLinkSource records who created a junction row.
type ProductLinkSource string

const (
	SourceAutomation ProductLinkSource = "automation"
	SourceManual     ProductLinkSource = "manual"
	SourceImport     ProductLinkSource = "import"
)

// CampaignProduct is the junction row linking one advertised item to the one
// campaign currently running it. ProductID is nil when the remote item does
// not map to a locally known product. RemoteAdID is nil until the ad is
// created on the platform.
type CampaignProduct struct {
	ID          string            `json:"id" db:"id"`
	WorkspaceID string            `json:"workspace_id" db:"workspace_id"`
	CampaignID  string            `json:"campaign_id" db:"campaign_id"`
	ProductID   *string           `json:"product_id" db:"product_id"`
	ItemID      string            `json:"ml_item_id" db:"ml_item_id"`
	RemoteAdID  *string           `json:"ml_ad_id" db:"ml_ad_id"`
	Tier        Tier              `json:"curve" db:"curve"`
	Source      ProductLinkSource `json:"source" db:"source"`
	Status      ProductLinkStatus `json:"status" db:"status"`
	AddedAt     time.Time         `json:"added_at" db:"added_at"`
	LastMovedAt *time.Time        `json:"last_moved_at" db:"last_moved_at"`
}
