package model

// Configuration keys. Values are stored as JSON.
const (
	KeyDeviceID      = "device_id"
	KeyKioskName     = "kiosk_name"
	KeyOrgID         = "organization_id"
	KeyOrgName       = "organization_name"
	KeyOrgLogo       = "organization_logo"
	KeySiteID        = "site_id"
	KeySiteName      = "site_name"
	KeyPhotoRequired = "photo_required"
	KeyLastSyncAt    = "last_sync_at"

	// KeyRosterOrgID names the organization the cached roster belongs to.
	KeyRosterOrgID = "roster_organization_id"
)

// IdentityKeys are rewritten as a unit when the active terminal changes.
var IdentityKeys = []string{
	KeyDeviceID,
	KeyKioskName,
	KeyOrgID,
	KeyOrgName,
	KeyOrgLogo,
	KeySiteID,
	KeySiteName,
}

// IdentityConfig returns the identity-bearing configuration for t.
func IdentityConfig(t Terminal) map[string]any {
	return map[string]any{
		KeyDeviceID:  t.ID,
		KeyKioskName: t.Name,
		KeyOrgID:     t.OrgID,
		KeyOrgName:   t.OrgName,
		KeyOrgLogo:   t.LogoURL,
		KeySiteID:    t.SiteID,
		KeySiteName:  t.SiteName,
	}
}

// PolicyConfig returns the configuration written by a successful config pull
// for terminal id.
func PolicyConfig(id string, kc KioskConfig) map[string]any {
	return map[string]any{
		KeyDeviceID:      id,
		KeyKioskName:     kc.KioskName,
		KeyOrgID:         kc.OrgID,
		KeyOrgName:       kc.OrgName,
		KeyOrgLogo:       kc.OrgLogoURL,
		KeySiteID:        kc.SiteID,
		KeySiteName:      kc.SiteName,
		KeyPhotoRequired: kc.PhotoRequired,
	}
}
