package domain

import "time"

// CurveConfig holds the per-workspace thresholds for one tier. Exactly one
// row exists per (workspace, tier); rows are upserted with resolved defaults
// on every automation run and never deleted. The min_* thresholds are
// advisory inputs to the legacy heuristic classifier.
type CurveConfig struct {
	ID            string    `json:"id" db:"id"`
	WorkspaceID   string    `json:"workspace_id" db:"workspace_id"`
	Tier          Tier      `json:"curve" db:"curve"`
	Name          string    `json:"name" db:"name"`
	CampaignType  string    `json:"campaign_type" db:"campaign_type"`
	DailyBudget   float64   `json:"daily_budget" db:"daily_budget"`
	MinRevenue30d float64   `json:"min_revenue_30d" db:"min_revenue_30d"`
	MinOrders30d  int       `json:"min_orders_30d" db:"min_orders_30d"`
	MinROAS       float64   `json:"min_roas" db:"min_roas"`
	MinConversion float64   `json:"min_conversion" db:"min_conversion"`
	Priority      int       `json:"priority" db:"priority"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Product is the subset of the workspace product catalog the classifier
// consumes. The products table itself is owned by the catalog sync, not by
// this engine; we only read it.
type Product struct {
	ID             string   `json:"id" db:"id"`
	ItemID         string   `json:"ml_item_id" db:"ml_item_id"`
	Title          *string  `json:"title" db:"title"`
	SKU            *string  `json:"sku" db:"sku"`
	Classification *string  `json:"classification" db:"classification"`
	Revenue30d     float64  `json:"revenue_30d" db:"revenue_30d"`
	Sales30d       int      `json:"sales_30d" db:"sales_30d"`
	Conversion30d  float64  `json:"conversion_rate_30d" db:"conversion_rate_30d"`
	ProfitUnit     *float64 `json:"profit_unit" db:"profit_unit"`
}

// ItemMetrics is the trailing-window ad performance accumulated for one
// remote item. CPC and CTR are derived after accumulation completes.
type ItemMetrics struct {
	Cost    float64 `json:"cost"`
	Clicks  int     `json:"clicks"`
	Prints  int     `json:"prints"`
	Sales   int     `json:"sales"`
	Revenue float64 `json:"revenue"`
	CPC     float64 `json:"cpc"`
	CTR     float64 `json:"ctr"`
}

// ClassifiedProduct is the transient output of one classification pass and
// the input to ad reconciliation. Never persisted.
type ClassifiedProduct struct {
	ProductID  string   `json:"productId"`
	ItemID     string   `json:"mlItemId"`
	Tier       Tier     `json:"curve"`
	Action     AdAction `json:"action"`
	Title      *string  `json:"title,omitempty"`
	SKU        *string  `json:"sku,omitempty"`
	Reason     string   `json:"reason"`
	Sales30d   int      `json:"sales30d"`
	Revenue30d float64  `json:"revenue30d"`
	Cost30d    float64  `json:"cost30d"`
	ACOS       float64  `json:"acos"`
}

// CurveHistoryEntry records one tier transition with the metrics that
// justified it. Append-only; never mutated after insert.
type CurveHistoryEntry struct {
	ID           string    `json:"id" db:"id"`
	WorkspaceID  string    `json:"workspace_id" db:"workspace_id"`
	ProductID    *string   `json:"product_id" db:"product_id"`
	ItemID       string    `json:"ml_item_id" db:"ml_item_id"`
	PreviousTier *Tier     `json:"previous_curve" db:"previous_curve"`
	NewTier      Tier      `json:"new_curve" db:"new_curve"`
	Revenue30d   float64   `json:"revenue_30d" db:"revenue_30d"`
	Orders30d    int       `json:"orders_30d" db:"orders_30d"`
	ROAS30d      float64   `json:"roas_30d" db:"roas_30d"`
	CampaignID   *string   `json:"campaign_id" db:"campaign_id"`
	Reason       string    `json:"reason" db:"reason"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
