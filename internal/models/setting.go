package models

import "time"

// Setting keys used by the portal. Reads fall back to defaults when the
// row is absent, so a fresh database behaves sanely.
const (
	SettingMaintenanceMode = "maintenance_mode"
	SettingLogoutTimer     = "logout_timer"
)

const DefaultLogoutTimerMinutes = 15

type Setting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}
