package automation

import "errors"

var (
	// ErrManualCampaignRequired indicates campaign creation is not supported
	// for the account and the existing remote campaigns cannot be mapped to
	// all three tiers, so a human must create the campaigns on the platform.
	ErrManualCampaignRequired = errors.New("ml_ads_manual_campaign_creation_required")

	// ErrNoExistingCampaigns indicates the adoption fallback found no remote
	// campaigns to adopt.
	ErrNoExistingCampaigns = errors.New("ml_ads_no_existing_campaigns")

	// ErrCampaignNotFound indicates the campaign id does not exist for the
	// workspace.
	ErrCampaignNotFound = errors.New("campaign not found")

	// ErrInvalidTransition indicates a requested campaign status change is
	// not a legal lifecycle step.
	ErrInvalidTransition = errors.New("invalid campaign status transition")

	// ErrRunInProgress indicates another automation run holds the workspace
	// lock.
	ErrRunInProgress = errors.New("automation run already in progress")

	// ErrBudgetUpdateFailed indicates the remote budget write was rejected by
	// the platform. The run continues; the failure is reported as a warning.
	ErrBudgetUpdateFailed = errors.New("remote budget update failed")
)
