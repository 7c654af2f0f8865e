package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Import frequency values.
const (
	ImportEvery6h  = "every_6h"
	ImportEvery12h = "every_12h"
	ImportDaily    = "daily"
)

// Recall scan cadence values.
const (
	RecallEveryCheck = "every_check"
	RecallDaily      = "daily"
	RecallWeekly     = "weekly"
)

// Settings is the single-row process-wide configuration. The bootstrap
// config (port, DB path) stays in env vars; everything the user can change
// from the dashboard lives here.
type Settings struct {
	ID uint `gorm:"primaryKey"`

	// Mail account used both for sending alerts and for scanning order
	// confirmations. Alerts are self-addressed.
	EmailAddress  string `gorm:"not null;default:''"`
	EmailPassword string `gorm:"not null;default:''"`

	CheckIntervalMinutes int `gorm:"not null;default:180"`

	AutoImportOrders bool   `gorm:"not null;default:true"`
	ImportFrequency  string `gorm:"not null;default:'every_12h'"`
	LastEmailScan    *time.Time

	GlobalAlertsEnabled bool             `gorm:"not null;default:false"`
	GlobalNewPct        *decimal.Decimal `gorm:"type:decimal(5,2)"`
	GlobalNewDollars    *decimal.Decimal `gorm:"type:decimal(10,2)"`
	GlobalUsedPct       *decimal.Decimal `gorm:"type:decimal(5,2)"`
	GlobalUsedDollars   *decimal.Decimal `gorm:"type:decimal(10,2)"`

	BatchEmailAlerts bool `gorm:"not null;default:false"`

	RecallScanEnabled   bool   `gorm:"not null;default:true"`
	RecallScanFrequency string `gorm:"not null;default:'daily'"`
	LastRecallScan      *time.Time

	DefaultExpirationDays int  `gorm:"not null;default:35"`
	AutoArchive           bool `gorm:"not null;default:true"`

	UpdatedAt time.Time
}

// EmailConfigured reports whether mail credentials are present. Missing
// credentials short-circuit import and notification steps without failing
// the cycle.
func (s *Settings) EmailConfigured() bool {
	return s.EmailAddress != "" && s.EmailPassword != ""
}

// ImportInterval maps the configured import frequency to a duration.
func (s *Settings) ImportInterval() time.Duration {
	switch s.ImportFrequency {
	case ImportEvery6h:
		return 6 * time.Hour
	case ImportDaily:
		return 24 * time.Hour
	default:
		return 12 * time.Hour
	}
}

// ImportDue reports whether an order import should run this cycle.
func (s *Settings) ImportDue(now time.Time) bool {
	if !s.AutoImportOrders || !s.EmailConfigured() {
		return false
	}
	return s.LastEmailScan == nil || now.Sub(*s.LastEmailScan) >= s.ImportInterval()
}

// RecallScanDue reports whether a recall scan should run this cycle.
func (s *Settings) RecallScanDue(now time.Time) bool {
	if !s.RecallScanEnabled {
		return false
	}
	switch s.RecallScanFrequency {
	case RecallEveryCheck:
		return true
	case RecallWeekly:
		return s.LastRecallScan == nil || now.Sub(*s.LastRecallScan) >= 7*24*time.Hour
	default:
		return s.LastRecallScan == nil || now.Sub(*s.LastRecallScan) >= 24*time.Hour
	}
}

// CheckInterval is the base wait between cycles, before jitter.
func (s *Settings) CheckInterval() time.Duration {
	minutes := s.CheckIntervalMinutes
	if minutes <= 0 {
		minutes = DefaultIntervalMin
	}
	return time.Duration(minutes) * time.Minute
}

// GlobalNewThresholds returns the global new-condition thresholds, or nils
// when global alerts are disabled (per-item thresholds then apply).
func (s *Settings) GlobalNewThresholds() (pct, dollars *decimal.Decimal) {
	if !s.GlobalAlertsEnabled {
		return nil, nil
	}
	return s.GlobalNewPct, s.GlobalNewDollars
}

// GlobalUsedThresholds is the used-condition counterpart.
func (s *Settings) GlobalUsedThresholds() (pct, dollars *decimal.Decimal) {
	if !s.GlobalAlertsEnabled {
		return nil, nil
	}
	return s.GlobalUsedPct, s.GlobalUsedDollars
}
