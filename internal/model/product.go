package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Fixed engine constants. These are deliberately not configurable: the
// cooldown and history bound are part of the alerting contract, not tuning.
const (
	MaxPriceHistory    = 90
	AlertCooldown      = 12 * time.Hour
	DefaultRetainDays  = 35
	DefaultIntervalMin = 180
)

// Product source values.
const (
	SourceManual = "manual"
	SourceEmail  = "email"
)

// Recall status values. Transitions go through ApplyRecallMatch,
// DismissRecall and ResetRecall only.
const (
	RecallNone      = "none"
	RecallMatched   = "matched"
	RecallDismissed = "dismissed"
)

var (
	ErrRecallAlreadyMatched = errors.New("product already has a matched recall")
	ErrRecallNotMatched     = errors.New("product has no matched recall to dismiss")
	ErrRecallNotDismissed   = errors.New("product recall is not dismissed")
)

// PricePoint is one sample in a product's bounded price history.
type PricePoint struct {
	Timestamp time.Time        `json:"ts"`
	New       *decimal.Decimal `json:"new,omitempty"`
	Used      *decimal.Decimal `json:"used,omitempty"`
}

// Product is a tracked catalog item. ASIN is the stable external key and is
// immutable once set. All price fields are nullable decimals: nil means
// "never observed", which the alert logic treats differently from zero.
type Product struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	ASIN   string    `gorm:"uniqueIndex;not null"`
	Title  string
	URL    string
	Source string `gorm:"not null;default:'manual'"` // manual | email

	TargetPrice      *decimal.Decimal `gorm:"type:decimal(10,2)"`
	CurrentNewPrice  *decimal.Decimal `gorm:"type:decimal(10,2)"`
	CurrentUsedPrice *decimal.Decimal `gorm:"type:decimal(10,2)"`
	PrevNewPrice     *decimal.Decimal `gorm:"type:decimal(10,2)"`
	PrevUsedPrice    *decimal.Decimal `gorm:"type:decimal(10,2)"`
	LowestNewPrice   *decimal.Decimal `gorm:"type:decimal(10,2)"`
	HighestNewPrice  *decimal.Decimal `gorm:"type:decimal(10,2)"`
	LowestUsedPrice  *decimal.Decimal `gorm:"type:decimal(10,2)"`
	HighestUsedPrice *decimal.Decimal `gorm:"type:decimal(10,2)"`

	// Bounded FIFO of recent samples, oldest evicted first.
	PriceHistory []PricePoint `gorm:"serializer:json"`

	// Per-item drop thresholds. Overridden wholesale by the global
	// thresholds when global alerts are enabled in Settings.
	AlertNewPct      *decimal.Decimal `gorm:"type:decimal(5,2)"`
	AlertNewDollars  *decimal.Decimal `gorm:"type:decimal(10,2)"`
	AlertUsedPct     *decimal.Decimal `gorm:"type:decimal(5,2)"`
	AlertUsedDollars *decimal.Decimal `gorm:"type:decimal(10,2)"`

	// Purchase context from order import. PurchasePrice is the primary
	// "what I paid" reference for new-condition drop evaluation.
	OrderDate     *time.Time
	OrderID       *string `gorm:"index"`
	Quantity      int     `gorm:"not null;default:1"`
	PurchasePrice *decimal.Decimal `gorm:"type:decimal(10,2)"`

	LastChecked   *time.Time
	LastAlertSent *time.Time

	ExpiresAt  *time.Time
	ArchivedAt *time.Time
	IsActive   bool `gorm:"not null;default:true"`
	IsArchived bool `gorm:"not null;default:false;index"`

	RecallStatus          string `gorm:"not null;default:'none'"`
	RecallID              *int64
	RecallNumber          *string
	RecallTitle           *string
	RecallDescription     *string
	RecallURL             *string
	RecallHazard          *string
	RecallRemedy          *string
	RecallDate            *string
	RecallConsumerContact *string
	LastRecallCheck       *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Product) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Source == "" {
		p.Source = SourceManual
	}
	if p.RecallStatus == "" {
		p.RecallStatus = RecallNone
	}
	return nil
}

// HasPlaceholderTitle reports whether the title is still a synthetic
// placeholder ("Loading... B0XXXXXXXX" / "Order Item B0XXXXXXXX") that a
// scrape or recall scan should not trust.
func (p *Product) HasPlaceholderTitle() bool {
	return strings.Contains(p.Title, "Loading") ||
		strings.Contains(p.Title, "Order Item") ||
		len(p.Title) < 5
}

// ApplyScrape folds one scrape result into the product: title correction,
// prev/current shift, extrema widening and a history sample. Returns true
// if anything changed; LastChecked is only stamped on change.
func (p *Product) ApplyScrape(title string, newPrice, usedPrice *decimal.Decimal) bool {
	updated := false

	if title != "" {
		// Replace the stored title when it is a placeholder or when the
		// site changed it materially.
		different := !strings.EqualFold(title, p.Title) && len(title) >= 10
		if p.HasPlaceholderTitle() || different {
			p.Title = title
			updated = true
		}
	}

	if newPrice != nil {
		if p.CurrentNewPrice != nil {
			p.PrevNewPrice = p.CurrentNewPrice
		} else {
			p.PrevNewPrice = newPrice
		}
		p.CurrentNewPrice = newPrice
		if p.LowestNewPrice == nil || newPrice.LessThan(*p.LowestNewPrice) {
			p.LowestNewPrice = newPrice
		}
		if p.HighestNewPrice == nil || newPrice.GreaterThan(*p.HighestNewPrice) {
			p.HighestNewPrice = newPrice
		}
		updated = true
	}

	if usedPrice != nil {
		if p.CurrentUsedPrice != nil {
			p.PrevUsedPrice = p.CurrentUsedPrice
		} else {
			p.PrevUsedPrice = usedPrice
		}
		p.CurrentUsedPrice = usedPrice
		if p.LowestUsedPrice == nil || usedPrice.LessThan(*p.LowestUsedPrice) {
			p.LowestUsedPrice = usedPrice
		}
		if p.HighestUsedPrice == nil || usedPrice.GreaterThan(*p.HighestUsedPrice) {
			p.HighestUsedPrice = usedPrice
		}
		updated = true
	}

	if updated {
		p.addPricePoint(newPrice, usedPrice)
		now := time.Now()
		p.LastChecked = &now
	}
	return updated
}

func (p *Product) addPricePoint(newPrice, usedPrice *decimal.Decimal) {
	p.PriceHistory = append(p.PriceHistory, PricePoint{
		Timestamp: time.Now(),
		New:       newPrice,
		Used:      usedPrice,
	})
	if len(p.PriceHistory) > MaxPriceHistory {
		p.PriceHistory = p.PriceHistory[len(p.PriceHistory)-MaxPriceHistory:]
	}
}

// RefNewPrice is the reference against which new-condition drops are
// measured: what was paid, else the lifetime high, else the previous price.
func (p *Product) RefNewPrice() *decimal.Decimal {
	return firstPositive(p.PurchasePrice, p.HighestNewPrice, p.PrevNewPrice)
}

// RefUsedPrice references the used market first: the purchase price was for
// new condition and would overstate a used-price drop.
func (p *Product) RefUsedPrice() *decimal.Decimal {
	return firstPositive(p.HighestUsedPrice, p.PurchasePrice, p.PrevUsedPrice)
}

// ShouldAlertNew decides whether a scraped new-condition price meets the
// drop thresholds. The first-ever check only establishes a baseline and
// never alerts. Global thresholds, when non-nil, override the per-item
// ones wholesale.
func (p *Product) ShouldAlertNew(price decimal.Decimal, globalPct, globalDollars *decimal.Decimal) bool {
	if p.LastChecked == nil {
		return false
	}
	ref := p.RefNewPrice()
	if ref == nil {
		return false
	}
	pct := effectiveThreshold(globalPct, p.AlertNewPct)
	dollars := effectiveThreshold(globalDollars, p.AlertNewDollars)
	return dropMeets(*ref, price, pct, dollars)
}

// ShouldAlertUsed is the used-condition counterpart of ShouldAlertNew.
func (p *Product) ShouldAlertUsed(price decimal.Decimal, globalPct, globalDollars *decimal.Decimal) bool {
	if p.LastChecked == nil {
		return false
	}
	ref := p.RefUsedPrice()
	if ref == nil {
		return false
	}
	pct := effectiveThreshold(globalPct, p.AlertUsedPct)
	dollars := effectiveThreshold(globalDollars, p.AlertUsedDollars)
	return dropMeets(*ref, price, pct, dollars)
}

// HitTarget reports whether a price reached the absolute target. Evaluated
// independently of the drop thresholds and of global overrides.
func (p *Product) HitTarget(price decimal.Decimal) bool {
	return p.TargetPrice != nil && price.LessThanOrEqual(*p.TargetPrice)
}

// InCooldown reports whether an alert fired recently enough that a new one
// must be suppressed.
func (p *Product) InCooldown(now time.Time) bool {
	return p.LastAlertSent != nil && now.Sub(*p.LastAlertSent) < AlertCooldown
}

// Archive marks the product archived. Archived products keep being scanned
// for recalls but are skipped by the price cycle.
func (p *Product) Archive(now time.Time) {
	p.IsArchived = true
	p.ArchivedAt = &now
}

// Restore brings an archived product back into the active set.
func (p *Product) Restore() {
	p.IsArchived = false
	p.ArchivedAt = nil
	p.IsActive = true
}

// Expired reports whether the product's retention window has passed.
func (p *Product) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && p.ExpiresAt.Before(now)
}

// RecallInfo is the normalized recall shape shared by all recall sources.
type RecallInfo struct {
	ID              int64
	Number          string
	Title           string
	Description     string
	URL             string
	Hazard          string
	Remedy          string
	Date            string
	ConsumerContact string
	Source          string // cpsc | fda
}

// ApplyRecallMatch transitions none -> matched. A product that is already
// matched or dismissed keeps its existing recall until explicitly reset.
func (p *Product) ApplyRecallMatch(info RecallInfo, now time.Time) error {
	if p.RecallStatus != RecallNone {
		return ErrRecallAlreadyMatched
	}
	p.RecallStatus = RecallMatched
	p.RecallID = &info.ID
	p.RecallNumber = &info.Number
	p.RecallTitle = &info.Title
	p.RecallDescription = &info.Description
	p.RecallURL = &info.URL
	p.RecallHazard = &info.Hazard
	p.RecallRemedy = &info.Remedy
	p.RecallDate = &info.Date
	p.RecallConsumerContact = &info.ConsumerContact
	p.LastRecallCheck = &now
	return nil
}

// DismissRecall transitions matched -> dismissed. The recall fields are kept
// so the dashboard can still show what was dismissed.
func (p *Product) DismissRecall() error {
	if p.RecallStatus != RecallMatched {
		return ErrRecallNotMatched
	}
	p.RecallStatus = RecallDismissed
	return nil
}

// ResetRecall transitions dismissed -> none, clearing every recall field so
// the next scan starts fresh.
func (p *Product) ResetRecall() error {
	if p.RecallStatus != RecallDismissed {
		return ErrRecallNotDismissed
	}
	p.RecallStatus = RecallNone
	p.RecallID = nil
	p.RecallNumber = nil
	p.RecallTitle = nil
	p.RecallDescription = nil
	p.RecallURL = nil
	p.RecallHazard = nil
	p.RecallRemedy = nil
	p.RecallDate = nil
	p.RecallConsumerContact = nil
	return nil
}

// MarkRecallClear stamps a checked-but-unmatched product. No-op for matched
// or dismissed products.
func (p *Product) MarkRecallClear(now time.Time) {
	if p.RecallStatus == RecallMatched || p.RecallStatus == RecallDismissed {
		return
	}
	p.RecallStatus = RecallNone
	p.LastRecallCheck = &now
}

func firstPositive(candidates ...*decimal.Decimal) *decimal.Decimal {
	for _, c := range candidates {
		if c != nil && c.IsPositive() {
			return c
		}
	}
	return nil
}

func effectiveThreshold(global, item *decimal.Decimal) *decimal.Decimal {
	if global != nil {
		return global
	}
	return item
}

var hundred = decimal.NewFromInt(100)

func dropMeets(ref, price decimal.Decimal, pct, dollars *decimal.Decimal) bool {
	drop := ref.Sub(price)
	if pct != nil && pct.IsPositive() {
		if drop.Div(ref).Mul(hundred).GreaterThanOrEqual(*pct) {
			return true
		}
	}
	if dollars != nil && dollars.IsPositive() {
		if drop.GreaterThanOrEqual(*dollars) {
			return true
		}
	}
	return false
}
