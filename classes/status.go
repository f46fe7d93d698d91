package cls

import "time"

type LicenseStatus string

const (
	StatusActive  LicenseStatus = "active"
	StatusPending LicenseStatus = "pending"
	StatusExpired LicenseStatus = "expired"
)

// lead time before renewal at which a license becomes pending. This is
// a calendar month (time.AddDate normalising rule, so Jan 31 + 1 month
// lands in early March), NOT the flat day window the dashboard uses -
// the two figures disagree for 28/29/31 day months and that mismatch is
// known product behaviour. Do not unify without a stakeholder decision.
const pendingWindowMonths = 1

// flat day window used only for the dashboard "renewing soon" figure.
// Deliberately separate from pendingWindowMonths, see above.
const DashboardPendingWindowDays = 30

// derive the lifecycle status of a license from its renewal date.
// Status is never stored - always recompute from the current instant.
func Classify(renewalDate time.Time, now time.Time) LicenseStatus {
	if renewalDate.Before(now) {
		return StatusExpired
	}
	if !renewalDate.After(now.AddDate(0, pendingWindowMonths, 0)) {
		return StatusPending
	}
	return StatusActive
}

// whether renewalDate falls within the next `days` days of now.
// Dashboard stat helper, not used by the notification tiers.
func RenewsWithinDays(renewalDate time.Time, now time.Time, days int) bool {
	if renewalDate.Before(now) {
		return false
	}
	return !renewalDate.After(now.AddDate(0, 0, days))
}
