package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

// AddProductsRequest accepts a mixed batch of product URLs and bare ASINs.
// Unparseable entries are reported back as skipped, never as a hard failure.
type AddProductsRequest struct {
	Items          []string         `json:"items"           validate:"required,min=1,dive,required"`
	TargetPrice    *decimal.Decimal `json:"target_price"`
	ExpirationDays *int             `json:"expiration_days" validate:"omitempty,min=1,max=365"`
}

// UpdateProductRequest is a partial update: nil fields are left untouched.
type UpdateProductRequest struct {
	Title            *string          `json:"title"              validate:"omitempty,min=3,max=300"`
	TargetPrice      *decimal.Decimal `json:"target_price"`
	AlertNewPct      *decimal.Decimal `json:"alert_new_pct"`
	AlertNewDollars  *decimal.Decimal `json:"alert_new_dollars"`
	AlertUsedPct     *decimal.Decimal `json:"alert_used_pct"`
	AlertUsedDollars *decimal.Decimal `json:"alert_used_dollars"`
	Quantity         *int             `json:"quantity"           validate:"omitempty,min=1"`
	ExpiresAt        *time.Time       `json:"expires_at"`
	ClearTarget      bool             `json:"clear_target"`
	ClearExpiration  bool             `json:"clear_expiration"`
}

type ProductFilter struct {
	Sort string `form:"sort,default=added"` // added | title | price
}

type ScanOrdersRequest struct {
	DaysBack *int `json:"days_back" validate:"omitempty,min=1,max=90"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type RecallResponse struct {
	Status          string     `json:"status"`
	ID              *int64     `json:"id,omitempty"`
	Number          *string    `json:"number,omitempty"`
	Title           *string    `json:"title,omitempty"`
	Description     *string    `json:"description,omitempty"`
	URL             *string    `json:"url,omitempty"`
	Hazard          *string    `json:"hazard,omitempty"`
	Remedy          *string    `json:"remedy,omitempty"`
	Date            *string    `json:"date,omitempty"`
	ConsumerContact *string    `json:"consumer_contact,omitempty"`
	LastCheck       *time.Time `json:"last_check,omitempty"`
}

type ProductResponse struct {
	ID     string `json:"id"`
	ASIN   string `json:"asin"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source string `json:"source"`

	TargetPrice      *decimal.Decimal `json:"target_price"`
	CurrentNewPrice  *decimal.Decimal `json:"current_new_price"`
	CurrentUsedPrice *decimal.Decimal `json:"current_used_price"`
	LowestNewPrice   *decimal.Decimal `json:"lowest_new_price"`
	HighestNewPrice  *decimal.Decimal `json:"highest_new_price"`
	LowestUsedPrice  *decimal.Decimal `json:"lowest_used_price"`
	HighestUsedPrice *decimal.Decimal `json:"highest_used_price"`

	AlertNewPct      *decimal.Decimal `json:"alert_new_pct"`
	AlertNewDollars  *decimal.Decimal `json:"alert_new_dollars"`
	AlertUsedPct     *decimal.Decimal `json:"alert_used_pct"`
	AlertUsedDollars *decimal.Decimal `json:"alert_used_dollars"`

	OrderDate     *time.Time       `json:"order_date"`
	OrderID       *string          `json:"order_id"`
	Quantity      int              `json:"quantity"`
	PurchasePrice *decimal.Decimal `json:"purchase_price"`

	LastChecked   *time.Time `json:"last_checked"`
	LastAlertSent *time.Time `json:"last_alert_sent"`
	ExpiresAt     *time.Time `json:"expires_at"`
	ArchivedAt    *time.Time `json:"archived_at"`
	IsArchived    bool       `json:"is_archived"`

	Recall RecallResponse `json:"recall"`

	CreatedAt time.Time `json:"created_at"`
}

type SkippedItem struct {
	Input  string `json:"input"`
	Reason string `json:"reason"`
}

type AddProductsResponse struct {
	Added   []ProductResponse `json:"added"`
	Skipped []SkippedItem     `json:"skipped"`
}

type ProductListResponse struct {
	Data  []ProductResponse `json:"data"`
	Total int               `json:"total"`
}

type ScanOrdersResponse struct {
	OrdersApplied int `json:"orders_applied"`
}

type ArchiveExpiredResponse struct {
	Archived int `json:"archived"`
}
