// Package automation implements the budget-curve engine for Mercado Ads.
//
// Products are classified into three tiers (A/B/C) from their trailing
// 30-day performance, each tier maps to one Product Ads campaign, and a
// reconciliation pass moves every product's ad into its tier's campaign.
// A budget optimizer nudges the tier-A campaign budget from recent ROAS.
//
// All remote access goes through the Platform interface so the engine can
// be exercised against fakes. Persistence lives in Store; the classifier,
// the metrics date windowing and the budget decision are pure functions.
package automation
