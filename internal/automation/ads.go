package automation

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/growthops/mercadoads/internal/domain"
	"github.com/growthops/mercadoads/internal/gateway"
	"github.com/growthops/mercadoads/internal/mlads"
)

type adPlatform interface {
	CreateAd(ctx context.Context, workspaceID string, actx mlads.AdvertiserContext, params mlads.AdParams) (string, error)
	UpdateAd(ctx context.Context, workspaceID string, actx mlads.AdvertiserContext, remoteAdID string, params mlads.AdParams) error
}

// AdReconciler moves product ads into their tier's campaign.
type AdReconciler struct {
	store    *Store
	platform adPlatform
	bidFor   func(domain.Tier) float64
}

// NewAdReconciler creates a reconciler; bidFor resolves the max-CPC bid per
// tier.
func NewAdReconciler(store *Store, platform adPlatform, bidFor func(domain.Tier) float64) *AdReconciler {
	return &AdReconciler{store: store, platform: platform, bidFor: bidFor}
}

// UpsertAd ensures one classified product advertises under campaign with the
// tier's bid and the classifier's action. A remote ad that no longer exists
// is recreated. After the remote write, junction rows for the item under any
// other campaign are removed and the (campaign, item) row is upserted; tier
// transitions are recorded to the curve history.
func (r *AdReconciler) UpsertAd(ctx context.Context, workspaceID string, actx mlads.AdvertiserContext, campaign *domain.Campaign, cp domain.ClassifiedProduct) (string, error) {
	if campaign.RemoteID == nil {
		return "", fmt.Errorf("campaign %s has no remote id", campaign.ID)
	}

	link, err := r.store.LatestProductLink(ctx, workspaceID, cp.ItemID)
	if err != nil {
		return "", err
	}

	params := mlads.AdParams{
		CampaignID: *campaign.RemoteID,
		ItemID:     cp.ItemID,
		Status:     string(cp.Action),
		Bid:        mlads.BidSpec{MaxCPC: r.bidFor(cp.Tier)},
	}

	var remoteAdID string
	if link != nil && link.RemoteAdID != nil {
		remoteAdID = *link.RemoteAdID
	}

	if remoteAdID != "" {
		err := r.platform.UpdateAd(ctx, workspaceID, actx, remoteAdID, params)
		switch {
		case err == nil:
		case gateway.IsStatus(err, http.StatusNotFound):
			// The ad was removed on the platform; recreate it.
			log.Printf("[MercadoAds] ad %s gone remotely, recreating for item %s", remoteAdID, cp.ItemID)
			remoteAdID = ""
		default:
			return "", err
		}
	}

	if remoteAdID == "" {
		remoteAdID, err = r.platform.CreateAd(ctx, workspaceID, actx, params)
		if err != nil {
			return "", err
		}
	}

	if err := r.store.DeleteProductLinksExcept(ctx, workspaceID, cp.ItemID, campaign.ID); err != nil {
		return "", err
	}

	var productID *string
	if cp.ProductID != "" {
		productID = &cp.ProductID
	}
	err = r.store.UpsertProductLink(ctx, ProductLinkParams{
		WorkspaceID: workspaceID,
		CampaignID:  campaign.ID,
		ProductID:   productID,
		ItemID:      cp.ItemID,
		RemoteAdID:  &remoteAdID,
		Tier:        cp.Tier,
		Source:      domain.SourceAutomation,
		Status:      linkStatus(cp.Action),
	})
	if err != nil {
		return "", err
	}

	if link == nil || link.Tier != cp.Tier {
		entry := domain.CurveHistoryEntry{
			WorkspaceID: workspaceID,
			ProductID:   productID,
			ItemID:      cp.ItemID,
			NewTier:     cp.Tier,
			Revenue30d:  cp.Revenue30d,
			Orders30d:   cp.Sales30d,
			ROAS30d:     roasOf(cp.Revenue30d, cp.Cost30d),
			CampaignID:  &campaign.ID,
			Reason:      cp.Reason,
		}
		if link != nil {
			prev := link.Tier
			entry.PreviousTier = &prev
		}
		if err := r.store.InsertCurveHistory(ctx, entry); err != nil {
			return "", err
		}
	}

	return remoteAdID, nil
}

func linkStatus(action domain.AdAction) domain.ProductLinkStatus {
	if action == domain.ActionPause {
		return domain.LinkPaused
	}
	return domain.LinkActive
}

func roasOf(revenue, cost float64) float64 {
	if cost > 0 {
		return revenue / cost
	}
	return 0
}
