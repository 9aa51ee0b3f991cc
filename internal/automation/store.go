package automation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/growthops/mercadoads/internal/domain"
)

// Store is the Postgres persistence layer for the automation engine. All
// writes use upsert semantics keyed on the natural uniqueness constraints,
// so concurrent runs for the same workspace converge instead of conflicting.
type Store struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

// NewStore creates a store backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the engine's tables if missing. The DDL runs at most
// once per process; cmd/migrate also calls this so deployments can migrate
// ahead of serving.
func (s *Store) EnsureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, schemaDDL)
	})
	return s.schemaErr
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS ml_ads_curves (
	id UUID PRIMARY KEY,
	workspace_id UUID NOT NULL,
	curve TEXT NOT NULL,
	name TEXT NOT NULL,
	campaign_type TEXT NOT NULL,
	daily_budget NUMERIC(14,2) NOT NULL DEFAULT 0,
	min_revenue_30d NUMERIC(18,2) DEFAULT 0,
	min_orders_30d INTEGER DEFAULT 0,
	min_roas NUMERIC(10,2) DEFAULT 0,
	min_conversion NUMERIC(10,4) DEFAULT 0,
	priority INTEGER NOT NULL DEFAULT 100,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (workspace_id, curve),
	CONSTRAINT ml_ads_curves_curve_chk CHECK (curve IN ('A','B','C'))
);
CREATE INDEX IF NOT EXISTS idx_ml_ads_curves_priority ON ml_ads_curves (workspace_id, priority);

CREATE TABLE IF NOT EXISTS ml_ads_campaigns (
	id UUID PRIMARY KEY,
	workspace_id UUID NOT NULL,
	curve_id UUID REFERENCES ml_ads_curves(id) ON DELETE SET NULL,
	curve TEXT,
	campaign_type TEXT NOT NULL,
	advertiser_id TEXT NOT NULL,
	ml_campaign_id TEXT,
	name TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft','active','paused','archived','error')),
	daily_budget NUMERIC(14,2),
	bidding_strategy TEXT,
	automation_status TEXT NOT NULL DEFAULT 'managed' CHECK (automation_status IN ('managed','manual','sync_only')),
	last_synced_at TIMESTAMPTZ,
	last_automation_at TIMESTAMPTZ,
	metadata JSONB DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (workspace_id, ml_campaign_id),
	UNIQUE (workspace_id, curve)
);
CREATE INDEX IF NOT EXISTS idx_ml_ads_campaigns_status ON ml_ads_campaigns (workspace_id, status);

CREATE TABLE IF NOT EXISTS ml_ads_campaign_products (
	id UUID PRIMARY KEY,
	workspace_id UUID NOT NULL,
	campaign_id UUID NOT NULL REFERENCES ml_ads_campaigns(id) ON DELETE CASCADE,
	product_id UUID,
	ml_item_id TEXT,
	ml_ad_id TEXT,
	curve TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT 'automation' CHECK (source IN ('automation','manual','import')),
	status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active','paused','removed')),
	added_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_moved_at TIMESTAMPTZ,
	UNIQUE (campaign_id, ml_item_id),
	UNIQUE (workspace_id, ml_ad_id)
);
CREATE INDEX IF NOT EXISTS idx_ml_ads_campaign_products_item ON ml_ads_campaign_products (ml_item_id);

CREATE TABLE IF NOT EXISTS ml_ads_curve_history (
	id UUID PRIMARY KEY,
	workspace_id UUID NOT NULL,
	product_id UUID,
	ml_item_id TEXT,
	previous_curve TEXT,
	new_curve TEXT NOT NULL,
	revenue_30d NUMERIC(18,2),
	orders_30d INTEGER,
	roas_30d NUMERIC(10,2),
	campaign_id UUID REFERENCES ml_ads_campaigns(id) ON DELETE SET NULL,
	reason TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_ml_ads_curve_history_workspace ON ml_ads_curve_history (workspace_id, created_at DESC);
`

// curveDefault is one tier's fixed threshold set.
type curveDefault struct {
	tier          domain.Tier
	name          string
	campaignType  string
	minRevenue30d float64
	minOrders30d  int
	minROAS       float64
	minConversion float64
	priority      int
}

var curveDefaults = []curveDefault{
	{domain.TierA, "Curva A", "PERFORMANCE", 5000, 15, 3, 0.02, 1},
	{domain.TierB, "Curva B", "OTIMIZACAO", 1500, 5, 1.5, 0.012, 2},
	{domain.TierC, "Curva C", "TESTE", 0, 0, 0, 0, 3},
}

// UpsertCurveDefaults writes the three tier rows with the resolved budgets.
// Idempotent: repeated calls only move updated_at.
func (s *Store) UpsertCurveDefaults(ctx context.Context, workspaceID string, budgetFor func(domain.Tier) float64) error {
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}

	for _, def := range curveDefaults {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO ml_ads_curves (
				id, workspace_id, curve, name, campaign_type, daily_budget,
				min_revenue_30d, min_orders_30d, min_roas, min_conversion, priority
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			ON CONFLICT (workspace_id, curve) DO UPDATE SET
				name = EXCLUDED.name,
				campaign_type = EXCLUDED.campaign_type,
				daily_budget = EXCLUDED.daily_budget,
				min_revenue_30d = EXCLUDED.min_revenue_30d,
				min_orders_30d = EXCLUDED.min_orders_30d,
				min_roas = EXCLUDED.min_roas,
				min_conversion = EXCLUDED.min_conversion,
				priority = EXCLUDED.priority,
				updated_at = NOW()`,
			uuid.NewString(), workspaceID, def.tier, def.name, def.campaignType,
			budgetFor(def.tier), def.minRevenue30d, def.minOrders30d, def.minROAS,
			def.minConversion, def.priority)
		if err != nil {
			return fmt.Errorf("upsert curve %s: %w", def.tier, err)
		}
	}
	return nil
}

// ListCurves returns the workspace's curve rows ordered by priority.
func (s *Store) ListCurves(ctx context.Context, workspaceID string) ([]domain.CurveConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, curve, name, campaign_type, daily_budget,
		       min_revenue_30d, min_orders_30d, min_roas, min_conversion, priority,
		       created_at, updated_at
		FROM ml_ads_curves
		WHERE workspace_id = $1
		ORDER BY priority ASC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list curves: %w", err)
	}
	defer rows.Close()

	var curves []domain.CurveConfig
	for rows.Next() {
		var c domain.CurveConfig
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.Tier, &c.Name, &c.CampaignType,
			&c.DailyBudget, &c.MinRevenue30d, &c.MinOrders30d, &c.MinROAS,
			&c.MinConversion, &c.Priority, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan curve: %w", err)
		}
		curves = append(curves, c)
	}
	return curves, rows.Err()
}

// ListProducts reads the classifier's view of the product catalog. The
// products table belongs to the catalog sync; this engine only reads it.
func (s *Store) ListProducts(ctx context.Context, workspaceID string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ml_item_id, title, sku, classification,
		       COALESCE(revenue_30d, 0), COALESCE(sales_30d, 0),
		       COALESCE(conversion_rate_30d, 0), profit_unit
		FROM products
		WHERE workspace_id = $1
		  AND status != 'deleted'
		  AND ml_item_id IS NOT NULL`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.ItemID, &p.Title, &p.SKU, &p.Classification,
			&p.Revenue30d, &p.Sales30d, &p.Conversion30d, &p.ProfitUnit); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ProductIDByItem resolves a local product id from a remote item id, nil
// when the item is not in the catalog.
func (s *Store) ProductIDByItem(ctx context.Context, workspaceID, itemID string) (*string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM products WHERE workspace_id = $1 AND ml_item_id = $2 LIMIT 1`,
		workspaceID, itemID).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve product id: %w", err)
	}
	return &id, nil
}

const campaignColumns = `id, workspace_id, curve_id, curve, campaign_type, advertiser_id,
	ml_campaign_id, name, status, daily_budget, automation_status,
	last_synced_at, last_automation_at, metadata, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*domain.Campaign, error) {
	var c domain.Campaign
	var tier sql.NullString
	var metadata []byte
	err := row.Scan(&c.ID, &c.WorkspaceID, &c.CurveID, &tier, &c.CampaignType,
		&c.AdvertiserID, &c.RemoteID, &c.Name, &c.Status, &c.DailyBudget,
		&c.AutomationMode, &c.LastSyncedAt, &c.LastAutomation, &metadata,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Tier = domain.Tier(tier.String)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
			return nil, fmt.Errorf("decode campaign metadata: %w", err)
		}
	}
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	return &c, nil
}

// CampaignByTier returns the workspace's campaign for a tier, nil when none
// exists yet.
func (s *Store) CampaignByTier(ctx context.Context, workspaceID string, tier domain.Tier) (*domain.Campaign, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+campaignColumns+`
		FROM ml_ads_campaigns
		WHERE workspace_id = $1 AND curve = $2`, workspaceID, tier)
	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("campaign by tier: %w", err)
	}
	return c, nil
}

// GetCampaign returns one campaign by id, scoped to the workspace.
func (s *Store) GetCampaign(ctx context.Context, workspaceID, campaignID string) (*domain.Campaign, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+campaignColumns+`
		FROM ml_ads_campaigns
		WHERE id = $1 AND workspace_id = $2`, campaignID, workspaceID)
	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

// ManagedCampaignParams carries an engine-owned campaign upsert.
type ManagedCampaignParams struct {
	WorkspaceID  string
	CurveID      *string
	Tier         domain.Tier
	CampaignType string
	AdvertiserID string
	RemoteID     *string
	Name         string
	Status       domain.CampaignStatus
	DailyBudget  float64
	Strategy     string
}

// UpsertManagedCampaign writes an engine-owned campaign row keyed on
// (workspace, tier) and returns the stored row.
func (s *Store) UpsertManagedCampaign(ctx context.Context, p ManagedCampaignParams) (*domain.Campaign, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO ml_ads_campaigns (
			id, workspace_id, curve_id, curve, campaign_type, advertiser_id,
			ml_campaign_id, name, status, daily_budget, bidding_strategy,
			automation_status, last_automation_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,'managed',NOW(),NOW())
		ON CONFLICT (workspace_id, curve) DO UPDATE SET
			curve_id = EXCLUDED.curve_id,
			campaign_type = EXCLUDED.campaign_type,
			advertiser_id = EXCLUDED.advertiser_id,
			ml_campaign_id = COALESCE(EXCLUDED.ml_campaign_id, ml_ads_campaigns.ml_campaign_id),
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			daily_budget = EXCLUDED.daily_budget,
			bidding_strategy = EXCLUDED.bidding_strategy,
			last_automation_at = NOW(),
			updated_at = NOW()
		RETURNING `+campaignColumns,
		uuid.NewString(), p.WorkspaceID, p.CurveID, p.Tier, p.CampaignType,
		p.AdvertiserID, p.RemoteID, p.Name, p.Status, p.DailyBudget, p.Strategy)
	c, err := scanCampaign(row)
	if err != nil {
		return nil, fmt.Errorf("upsert managed campaign: %w", err)
	}
	return c, nil
}

// SyncedCampaignParams carries a remote campaign discovered by the sync path.
type SyncedCampaignParams struct {
	WorkspaceID  string
	AdvertiserID string
	RemoteID     string
	Name         string
	Status       string
	DailyBudget  *float64
	Tier         *domain.Tier
}

// UpsertSyncedCampaign mirrors a human-created remote campaign locally in
// manual mode, keyed on (workspace, remote id). The tier is only filled when
// the name heuristic detected one and no other campaign already holds that
// tier slot, otherwise the (workspace, curve) unique would abort the sync.
func (s *Store) UpsertSyncedCampaign(ctx context.Context, p SyncedCampaignParams) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ml_ads_campaigns (
			id, workspace_id, curve, campaign_type, advertiser_id, ml_campaign_id,
			name, status, daily_budget, automation_status, last_synced_at, updated_at
		) VALUES ($1,$2,
			CASE WHEN EXISTS (
				SELECT 1 FROM ml_ads_campaigns
				WHERE workspace_id = $2 AND curve = $3 AND ml_campaign_id IS DISTINCT FROM $5
			) THEN NULL ELSE $3 END,
			'PRODUCT_ADS',$4,$5,$6,$7,$8,'manual',NOW(),NOW())
		ON CONFLICT (workspace_id, ml_campaign_id) DO UPDATE SET
			curve = COALESCE(ml_ads_campaigns.curve, EXCLUDED.curve),
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			daily_budget = EXCLUDED.daily_budget,
			advertiser_id = EXCLUDED.advertiser_id,
			last_synced_at = NOW(),
			updated_at = NOW()`,
		uuid.NewString(), p.WorkspaceID, p.Tier, p.AdvertiserID, p.RemoteID,
		p.Name, p.Status, p.DailyBudget)
	if err != nil {
		return fmt.Errorf("upsert synced campaign: %w", err)
	}
	return nil
}

// CampaignsWithRemote lists the workspace's non-archived campaigns that have
// a remote id, used by the adoption fallback.
func (s *Store) CampaignsWithRemote(ctx context.Context, workspaceID string) ([]domain.Campaign, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+campaignColumns+`
		FROM ml_ads_campaigns
		WHERE workspace_id = $1 AND ml_campaign_id IS NOT NULL AND status != 'archived'
		ORDER BY created_at ASC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("campaigns with remote: %w", err)
	}
	defer rows.Close()

	var campaigns []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, rows.Err()
}

// ListCampaignsWithStats returns all campaigns with junction-row counts for
// display.
func (s *Store) ListCampaignsWithStats(ctx context.Context, workspaceID string) ([]domain.Campaign, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.workspace_id, c.curve_id, c.curve, c.campaign_type, c.advertiser_id,
		       c.ml_campaign_id, c.name, c.status, c.daily_budget, c.automation_status,
		       c.last_synced_at, c.last_automation_at, c.metadata, c.created_at, c.updated_at,
		       COUNT(cp.id) AS total_products,
		       COUNT(cp.id) FILTER (WHERE cp.status = 'active') AS active_products
		FROM ml_ads_campaigns c
		LEFT JOIN ml_ads_campaign_products cp ON cp.campaign_id = c.id
		WHERE c.workspace_id = $1
		GROUP BY c.id
		ORDER BY c.curve NULLS LAST, c.created_at ASC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []domain.Campaign
	for rows.Next() {
		var c domain.Campaign
		var tier sql.NullString
		var metadata []byte
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.CurveID, &tier, &c.CampaignType,
			&c.AdvertiserID, &c.RemoteID, &c.Name, &c.Status, &c.DailyBudget,
			&c.AutomationMode, &c.LastSyncedAt, &c.LastAutomation, &metadata,
			&c.CreatedAt, &c.UpdatedAt, &c.TotalProducts, &c.ActiveProducts); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		c.Tier = domain.Tier(tier.String)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
				return nil, fmt.Errorf("decode campaign metadata: %w", err)
			}
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// UpdateCampaignStatus persists a local status change.
func (s *Store) UpdateCampaignStatus(ctx context.Context, campaignID string, status domain.CampaignStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE ml_ads_campaigns SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, campaignID)
	if err != nil {
		return fmt.Errorf("update campaign status: %w", err)
	}
	return requireRow(res)
}

// UpdateCampaignBudget persists a local budget change.
func (s *Store) UpdateCampaignBudget(ctx context.Context, campaignID string, budget float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE ml_ads_campaigns SET daily_budget = $1, updated_at = NOW() WHERE id = $2`,
		budget, campaignID)
	if err != nil {
		return fmt.Errorf("update campaign budget: %w", err)
	}
	return requireRow(res)
}

// SetCampaignMetadata merges one key into the campaign's metadata document.
func (s *Store) SetCampaignMetadata(ctx context.Context, campaignID, key string, value any) error {
	patch, err := json.Marshal(map[string]any{key: value})
	if err != nil {
		return fmt.Errorf("encode metadata patch: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE ml_ads_campaigns
		SET metadata = COALESCE(metadata, '{}'::jsonb) || $1::jsonb, updated_at = NOW()
		WHERE id = $2`, patch, campaignID)
	if err != nil {
		return fmt.Errorf("set campaign metadata: %w", err)
	}
	return requireRow(res)
}

// UpdateCampaignAdCounts stores the remote ad totals gathered by the product
// sync.
func (s *Store) UpdateCampaignAdCounts(ctx context.Context, campaignID string, total, active int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE ml_ads_campaigns
		SET metadata = COALESCE(metadata, '{}'::jsonb) ||
			jsonb_build_object('remote_ads_total', $1::int, 'remote_ads_active', $2::int),
			last_synced_at = NOW(), updated_at = NOW()
		WHERE id = $3`, total, active, campaignID)
	if err != nil {
		return fmt.Errorf("update campaign ad counts: %w", err)
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

// LatestProductLink returns the most recent junction row for an item, nil
// when the item was never linked.
func (s *Store) LatestProductLink(ctx context.Context, workspaceID, itemID string) (*domain.CampaignProduct, error) {
	var link domain.CampaignProduct
	var tier string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, campaign_id, product_id, ml_item_id, ml_ad_id,
		       curve, source, status, added_at, last_moved_at
		FROM ml_ads_campaign_products
		WHERE workspace_id = $1 AND ml_item_id = $2
		ORDER BY added_at DESC
		LIMIT 1`, workspaceID, itemID).Scan(
		&link.ID, &link.WorkspaceID, &link.CampaignID, &link.ProductID,
		&link.ItemID, &link.RemoteAdID, &tier, &link.Source, &link.Status,
		&link.AddedAt, &link.LastMovedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest product link: %w", err)
	}
	link.Tier = domain.Tier(tier)
	return &link, nil
}

// DeleteProductLinksExcept removes an item's junction rows pointing at any
// campaign other than keepCampaignID. An item advertises under exactly one
// campaign at a time.
func (s *Store) DeleteProductLinksExcept(ctx context.Context, workspaceID, itemID, keepCampaignID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM ml_ads_campaign_products
		WHERE workspace_id = $1 AND ml_item_id = $2 AND campaign_id <> $3`,
		workspaceID, itemID, keepCampaignID)
	if err != nil {
		return fmt.Errorf("delete product links: %w", err)
	}
	return nil
}

// ProductLinkParams carries a junction-row upsert.
type ProductLinkParams struct {
	WorkspaceID string
	CampaignID  string
	ProductID   *string
	ItemID      string
	RemoteAdID  *string
	Tier        domain.Tier
	Source      domain.ProductLinkSource
	Status      domain.ProductLinkStatus
}

// UpsertProductLink writes the junction row for (campaign, item). A nil
// RemoteAdID or ProductID never clobbers a previously stored value.
func (s *Store) UpsertProductLink(ctx context.Context, p ProductLinkParams) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ml_ads_campaign_products (
			id, workspace_id, campaign_id, product_id, ml_item_id, ml_ad_id,
			curve, source, status, added_at, last_moved_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW())
		ON CONFLICT (campaign_id, ml_item_id) DO UPDATE SET
			product_id = COALESCE(EXCLUDED.product_id, ml_ads_campaign_products.product_id),
			ml_ad_id = COALESCE(EXCLUDED.ml_ad_id, ml_ads_campaign_products.ml_ad_id),
			curve = EXCLUDED.curve,
			source = EXCLUDED.source,
			status = EXCLUDED.status,
			last_moved_at = NOW()`,
		uuid.NewString(), p.WorkspaceID, p.CampaignID, p.ProductID, p.ItemID,
		p.RemoteAdID, p.Tier, p.Source, p.Status)
	if err != nil {
		return fmt.Errorf("upsert product link: %w", err)
	}
	return nil
}

// InsertCurveHistory appends one tier-transition audit row.
func (s *Store) InsertCurveHistory(ctx context.Context, e domain.CurveHistoryEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ml_ads_curve_history (
			id, workspace_id, product_id, ml_item_id, previous_curve, new_curve,
			revenue_30d, orders_30d, roas_30d, campaign_id, reason, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NOW())`,
		uuid.NewString(), e.WorkspaceID, e.ProductID, e.ItemID, e.PreviousTier,
		e.NewTier, e.Revenue30d, e.Orders30d, e.ROAS30d, e.CampaignID, e.Reason)
	if err != nil {
		return fmt.Errorf("insert curve history: %w", err)
	}
	return nil
}

// ListCurveHistory returns the latest tier transitions for display, newest
// first.
func (s *Store) ListCurveHistory(ctx context.Context, workspaceID string, limit int) ([]domain.CurveHistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, product_id, ml_item_id, previous_curve, new_curve,
		       COALESCE(revenue_30d, 0), COALESCE(orders_30d, 0), COALESCE(roas_30d, 0),
		       campaign_id, COALESCE(reason, ''), created_at
		FROM ml_ads_curve_history
		WHERE workspace_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list curve history: %w", err)
	}
	defer rows.Close()

	var entries []domain.CurveHistoryEntry
	for rows.Next() {
		var e domain.CurveHistoryEntry
		var prev sql.NullString
		if err := rows.Scan(&e.ID, &e.WorkspaceID, &e.ProductID, &e.ItemID, &prev,
			&e.NewTier, &e.Revenue30d, &e.Orders30d, &e.ROAS30d, &e.CampaignID,
			&e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan curve history: %w", err)
		}
		if prev.Valid {
			t := domain.Tier(prev.String)
			e.PreviousTier = &t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
