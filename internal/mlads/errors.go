package mlads

import "errors"

var (
	// ErrNotSupported indicates the account has no Product Ads API access;
	// the API answers 404 or 405 for campaign management endpoints.
	ErrNotSupported = errors.New("ml_ads_campaign_create_not_supported")

	// ErrPermissionDenied indicates the token lacks write permission.
	ErrPermissionDenied = errors.New("ml_ads_permission_denied_write")

	// ErrMissingAdvertiser indicates no advertiser could be resolved for the
	// workspace.
	ErrMissingAdvertiser = errors.New("ml_ads_missing_advertiser")

	// ErrAdCreateFailed indicates the API accepted an ad creation but
	// returned no identifier.
	ErrAdCreateFailed = errors.New("ml_ads_product_ad_create_failed")
)
