package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// UpdateSettingsRequest is a partial update: nil fields keep their current
// value. The email password is write-only and never echoed back.
type UpdateSettingsRequest struct {
	EmailAddress  *string `json:"email_address"  validate:"omitempty,email"`
	EmailPassword *string `json:"email_password"`

	CheckIntervalMinutes *int `json:"check_interval_minutes" validate:"omitempty,min=15,max=1440"`

	AutoImportOrders *bool   `json:"auto_import_orders"`
	ImportFrequency  *string `json:"import_frequency" validate:"omitempty,oneof=every_6h every_12h daily"`

	GlobalAlertsEnabled *bool            `json:"global_alerts_enabled"`
	GlobalNewPct        *decimal.Decimal `json:"global_new_pct"`
	GlobalNewDollars    *decimal.Decimal `json:"global_new_dollars"`
	GlobalUsedPct       *decimal.Decimal `json:"global_used_pct"`
	GlobalUsedDollars   *decimal.Decimal `json:"global_used_dollars"`

	BatchEmailAlerts *bool `json:"batch_email_alerts"`

	RecallScanEnabled   *bool   `json:"recall_scan_enabled"`
	RecallScanFrequency *string `json:"recall_scan_frequency" validate:"omitempty,oneof=every_check daily weekly"`

	DefaultExpirationDays *int  `json:"default_expiration_days" validate:"omitempty,min=1,max=365"`
	AutoArchive           *bool `json:"auto_archive"`
}

type SettingsResponse struct {
	EmailAddress    string `json:"email_address"`
	EmailConfigured bool   `json:"email_configured"`

	CheckIntervalMinutes int `json:"check_interval_minutes"`

	AutoImportOrders bool       `json:"auto_import_orders"`
	ImportFrequency  string     `json:"import_frequency"`
	LastEmailScan    *time.Time `json:"last_email_scan"`

	GlobalAlertsEnabled bool             `json:"global_alerts_enabled"`
	GlobalNewPct        *decimal.Decimal `json:"global_new_pct"`
	GlobalNewDollars    *decimal.Decimal `json:"global_new_dollars"`
	GlobalUsedPct       *decimal.Decimal `json:"global_used_pct"`
	GlobalUsedDollars   *decimal.Decimal `json:"global_used_dollars"`

	BatchEmailAlerts bool `json:"batch_email_alerts"`

	RecallScanEnabled   bool       `json:"recall_scan_enabled"`
	RecallScanFrequency string     `json:"recall_scan_frequency"`
	LastRecallScan      *time.Time `json:"last_recall_scan"`

	DefaultExpirationDays int  `json:"default_expiration_days"`
	AutoArchive           bool `json:"auto_archive"`
}
