package scraper

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	priceRe    = regexp.MustCompile(`\$(\d{1,3}(?:,\d{3})*\.\d{2})`)
	asinURLRe  = regexp.MustCompile(`(?i)/(?:dp|gp/product|gp/aw/d)/([A-Z0-9]{10})(?:[/?]|$)`)
	bareASINRe = regexp.MustCompile(`(?i)^[A-Z0-9]{10}$`)

	priceFloor   = decimal.NewFromInt(1)
	priceCeiling = decimal.NewFromInt(100000)
)

// ParsePrice extracts a dollar amount from display text. Values outside
// [1.00, 100000] are rejected as selector noise (swatch counts, review
// totals).
func ParsePrice(text string) *decimal.Decimal {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	p, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return nil
	}
	if p.LessThan(priceFloor) || p.GreaterThan(priceCeiling) {
		return nil
	}
	return &p
}

// ExtractASIN pulls the catalog id out of a product URL. Bare ten-character
// ids are accepted as-is.
func ExtractASIN(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if bareASINRe.MatchString(raw) {
		return strings.ToUpper(raw)
	}
	if m := asinURLRe.FindStringSubmatch(raw); m != nil {
		return strings.ToUpper(m[1])
	}
	return ""
}

// TruncateTitle caps a scraped title at the display bound.
func TruncateTitle(title string) string {
	title = strings.TrimSpace(title)
	if len(title) > TitleMaxLen {
		return title[:TitleMaxLen]
	}
	return title
}
