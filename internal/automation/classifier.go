package automation

import (
	"fmt"
	"math"
	"strings"

	"github.com/growthops/mercadoads/internal/domain"
)

// Classify maps one product's trailing metrics to a tier, an ad action and a
// human-readable reason. Deterministic: same inputs always yield the same
// decision.
//
// When the product carries a classification tag computed by the upstream
// analytics job, the tag wins verbatim (D has no campaign and falls to C).
// Otherwise the heuristic rules apply in fixed order: a product that proved
// it cannot convert is paused before any other rule gets a chance to call it
// merely untested.
func Classify(p domain.Product, m domain.ItemMetrics) domain.ClassifiedProduct {
	out := domain.ClassifiedProduct{
		ProductID:  p.ID,
		ItemID:     p.ItemID,
		Title:      p.Title,
		SKU:        p.SKU,
		Sales30d:   p.Sales30d,
		Revenue30d: p.Revenue30d,
		Cost30d:    m.Cost,
		ACOS:       acosOf(m.Cost, p.Revenue30d),
	}

	if tag := externalTag(p.Classification); tag != "" {
		out.Tier, _ = domain.ParseTier(tag)
		out.Action = domain.ActionActivate
		out.Reason = fmt.Sprintf("Classificação Full: %s", tag)
		return out
	}

	allowed := allowedACOS(p.Revenue30d, p.Sales30d, p.ProfitUnit)
	switch {
	case p.Sales30d == 0 && m.Clicks >= 15:
		out.Tier = domain.TierC
		out.Action = domain.ActionPause
		out.Reason = fmt.Sprintf("%d cliques sem venda", m.Clicks)
	case p.Sales30d >= 2 && out.ACOS <= allowed*1.2:
		out.Tier = domain.TierA
		out.Action = domain.ActionActivate
		out.Reason = fmt.Sprintf("Vendas %d e ACOS %.2f <= %.2f", p.Sales30d, out.ACOS, allowed*1.2)
	case p.Sales30d >= 1:
		out.Tier = domain.TierB
		out.Action = domain.ActionActivate
		out.Reason = fmt.Sprintf("Vendas %d: produto promissor", p.Sales30d)
	default:
		out.Tier = domain.TierC
		out.Action = domain.ActionActivate
		out.Reason = "produto novo/sazonal: manter em teste"
	}
	return out
}

// externalTag returns the normalized analytics classification, or "" when
// the product has none.
func externalTag(classification *string) string {
	if classification == nil {
		return ""
	}
	tag := strings.ToUpper(strings.TrimSpace(*classification))
	switch tag {
	case "A", "B", "C", "D":
		return tag
	}
	return ""
}

// allowedACOS is the maximum acceptable ACOS for a product: the per-unit
// profit margin over the average ticket, clamped to [0.05, 0.6]. Products
// with no attributed revenue get a flat 0.2.
func allowedACOS(revenue float64, sales int, profitUnit *float64) float64 {
	if revenue <= 0 {
		return 0.2
	}

	var avgTicket float64
	if sales > 0 {
		avgTicket = revenue / float64(sales)
	}

	var pu float64
	if profitUnit != nil {
		pu = *profitUnit
	}

	var ratio float64
	switch {
	case avgTicket > 0:
		ratio = pu / avgTicket
	case pu > 0:
		ratio = math.Inf(1)
	}
	return math.Min(0.6, math.Max(0.05, ratio))
}

// acosOf is ad spend over attributed revenue. Spend without revenue is an
// infinite ACOS; no spend is zero.
func acosOf(cost, revenue float64) float64 {
	if revenue > 0 {
		return cost / revenue
	}
	if cost > 0 {
		return math.Inf(1)
	}
	return 0
}
