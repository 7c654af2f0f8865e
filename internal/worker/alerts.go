package worker

import (
	"fmt"
	"strings"

	"pricewatch/internal/model"

	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// targetAlertLine describes a price reaching the absolute target.
func targetAlertLine(kind string, price, target decimal.Decimal) string {
	return fmt.Sprintf("%s $%s hit target $%s", kind, price.StringFixed(2), target.StringFixed(2))
}

// dropAlertLine describes a threshold-crossing drop against the reference
// price, mentioning what was paid when known.
func dropAlertLine(kind string, ref, price decimal.Decimal, paid *decimal.Decimal) string {
	drop := ref.Sub(price)
	pct := drop.Div(ref).Mul(oneHundred)
	line := fmt.Sprintf("%s dropped %s%% ($%s) to $%s",
		kind, pct.StringFixed(1), drop.StringFixed(2), price.StringFixed(2))
	if paid != nil {
		line += fmt.Sprintf(" (paid $%s)", paid.StringFixed(2))
	}
	return line
}

func alertSubject(p *model.Product) string {
	title := p.Title
	if len(title) > 40 {
		title = title[:40]
	}
	return "Price alert: " + title
}

// alertBody is the individual alert email: title, purchase context, the
// alert lines and the product link.
func alertBody(p *model.Product, alerts []string) string {
	var b strings.Builder
	b.WriteString(p.Title + "\n")
	if p.PurchasePrice != nil {
		fmt.Fprintf(&b, "You paid: $%s\n", p.PurchasePrice.StringFixed(2))
	}
	b.WriteString("\n" + strings.Join(alerts, "\n"))
	b.WriteString("\n\n" + p.URL + "\n")
	return b.String()
}

// batchEntry is one product's alerts collected for a batched email.
type batchEntry struct {
	Title  string
	URL    string
	Paid   *decimal.Decimal
	Alerts []string
}

func batchSubject(entries []batchEntry) string {
	return fmt.Sprintf("Price alerts for %d products", len(entries))
}

func batchBody(entries []batchEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d products have price alerts this cycle.\n\n", len(entries))
	for _, e := range entries {
		b.WriteString(e.Title + "\n")
		if e.Paid != nil {
			fmt.Fprintf(&b, "You paid: $%s\n", e.Paid.StringFixed(2))
		}
		b.WriteString(strings.Join(e.Alerts, "\n"))
		b.WriteString("\n" + e.URL + "\n\n")
	}
	return b.String()
}

// recallSubject and recallBody cover the safety-recall notification sent
// when a scan matches one or more products.
func recallSubject(matched []*model.Product) string {
	if len(matched) == 1 {
		return "Safety recall matched: " + firstNonEmpty(deref(matched[0].RecallTitle), matched[0].Title)
	}
	return fmt.Sprintf("Safety recalls matched for %d products", len(matched))
}

func recallBody(matched []*model.Product) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A recall scan matched %d of your products.\n\n", len(matched))
	for _, p := range matched {
		b.WriteString(p.Title + "\n")
		if p.RecallTitle != nil {
			b.WriteString("Recall: " + *p.RecallTitle + "\n")
		}
		if p.RecallHazard != nil && *p.RecallHazard != "" {
			b.WriteString("Hazard: " + *p.RecallHazard + "\n")
		}
		if p.RecallRemedy != nil && *p.RecallRemedy != "" {
			b.WriteString("Remedy: " + *p.RecallRemedy + "\n")
		}
		if p.RecallURL != nil && *p.RecallURL != "" {
			b.WriteString(*p.RecallURL + "\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("Stop using any recalled product immediately and follow the remedy instructions above.\n")
	return b.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
