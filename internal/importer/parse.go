package importer

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Order is one imported purchase. ItemPrice is nil when the confirmation
// covered several items: the order total must not be attributed to any
// single one of them.
type Order struct {
	ASIN        string
	ProductName string
	OrderDate   time.Time
	OrderID     string
	Quantity    int
	ItemPrice   *decimal.Decimal
}

var (
	orderIDRe = regexp.MustCompile(`(\d{3}-\d{7}-\d{7})`)

	// Confirmation emails carry the ordered item behind URL-encoded
	// redirect links tagged fed_asin (or i_fed/t_fed for the image and
	// text variants). Recommendation links use different ref tags, so
	// these patterns select only what was actually bought.
	fedASINRe    = regexp.MustCompile(`(?i)dp%2F([A-Z0-9]{10})%3F[^&]*?fed_asin`)
	linkedASINRe = regexp.MustCompile(`(?i)dp%2F([A-Z0-9]{10})%3F[^&]*?[it]_fed`)
	plainASINRe  = regexp.MustCompile(`(?i)/dp/([A-Z0-9]{10})`)

	orderedSubjectRe = regexp.MustCompile(`(?i)Ordered:\s*(.+)`)
	orderOfSubjectRe = regexp.MustCompile(`(?i)order\s+of\s+(.+)`)
	leadingQtyRe     = regexp.MustCompile(`^\d+\s+`)
	moreItemsRe      = regexp.MustCompile(`(?i)\s*and\s+\d+\s+more\s+items?.*$`)
	trailingDotsRe   = regexp.MustCompile(`\.{2,}$`)

	qtyPriceRe   = regexp.MustCompile(`Quantity:\s*(\d+)\s+([\d.]+)\s*USD`)
	qtyRe        = regexp.MustCompile(`Quantity:\s*(\d+)`)
	grandTotalRe = regexp.MustCompile(`([\d.]+)\s*USD\s*Grand\s*Total`)
	dollarRe     = regexp.MustCompile(`\$\s*([\d.]+)`)
)

// Subjects that look order-related but are not purchases.
var skipSubjectWords = []string{
	"shipped", "delivered", "refund", "return", "cancel", "arriving", "problem",
}

// orderSubject reports whether a subject line is an order confirmation.
func orderSubject(subject string) bool {
	lower := strings.ToLower(subject)
	if !strings.Contains(lower, "ordered") && !strings.Contains(lower, "your amazon.com order") {
		return false
	}
	for _, w := range skipSubjectWords {
		if strings.Contains(lower, w) {
			return false
		}
	}
	return true
}

func extractOrderID(raw string) string {
	if m := orderIDRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

// extractASINs finds the ordered items' catalog ids in the raw message.
// The tagged redirect patterns are tried first; the plain /dp/ fallback is
// restricted to the order section (before "Continue shopping") so footer
// recommendations don't leak in.
func extractASINs(raw string) []string {
	seen := make(map[string]bool)
	var asins []string
	add := func(matches [][]string) {
		for _, m := range matches {
			asin := strings.ToUpper(m[1])
			if !seen[asin] {
				seen[asin] = true
				asins = append(asins, asin)
			}
		}
	}

	add(fedASINRe.FindAllStringSubmatch(raw, -1))
	add(linkedASINRe.FindAllStringSubmatch(raw, -1))
	if len(asins) > 0 {
		return asins
	}

	add(plainASINRe.FindAllStringSubmatch(orderSection(raw), -1))
	if len(asins) > 0 {
		return asins
	}

	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return nil
	}
	add(plainASINRe.FindAllStringSubmatch(orderSection(decoded), -1))
	return asins
}

func orderSection(raw string) string {
	if i := strings.Index(raw, "Continue shopping"); i >= 0 {
		return raw[:i]
	}
	return raw[:len(raw)/2]
}

// productNameFromSubject recovers a usable product name from the subject
// line, or "" when the subject carries none.
func productNameFromSubject(subject string) string {
	var name string
	if m := orderedSubjectRe.FindStringSubmatch(subject); m != nil {
		name = m[1]
	} else if strings.Contains(strings.ToLower(subject), "your amazon.com order") {
		if m := orderOfSubjectRe.FindStringSubmatch(subject); m != nil {
			name = m[1]
		}
	}
	if name == "" {
		return ""
	}

	name = strings.TrimSpace(name)
	name = leadingQtyRe.ReplaceAllString(name, "")
	name = strings.Trim(name, "\"'“”‘’`")
	name = moreItemsRe.ReplaceAllString(name, "")
	name = trailingDotsRe.ReplaceAllString(name, "")
	name = strings.Trim(strings.TrimSpace(name), "\"'“”‘’`")
	if len(name) < 3 {
		return ""
	}
	return name
}

// extractQuantityPrice reads quantity and per-item price from the plain
// text body. multiItem suppresses the price entirely.
func extractQuantityPrice(plain string, multiItem bool) (int, *decimal.Decimal) {
	if m := qtyPriceRe.FindStringSubmatch(plain); m != nil {
		qty, _ := strconv.Atoi(m[1])
		if qty < 1 {
			qty = 1
		}
		if multiItem {
			return qty, nil
		}
		return qty, parseAmount(m[2])
	}

	qty := 1
	if m := qtyRe.FindStringSubmatch(plain); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 {
			qty = n
		}
	}
	if multiItem {
		return qty, nil
	}

	if m := grandTotalRe.FindStringSubmatch(plain); m != nil {
		if p := parseAmount(m[1]); p != nil {
			return qty, p
		}
	}
	for _, m := range dollarRe.FindAllStringSubmatch(plain, -1) {
		if p := parseAmount(m[1]); p != nil {
			return qty, p
		}
	}
	return qty, nil
}

func parseAmount(s string) *decimal.Decimal {
	p, err := decimal.NewFromString(s)
	if err != nil || !p.IsPositive() {
		return nil
	}
	return &p
}

// parseMessage turns one confirmation email into orders, one per ordered
// item. Returns nil when the subject is irrelevant, the order id was seen
// already, or no catalog id could be recovered.
func parseMessage(subject string, date time.Time, raw, plain string, seenOrderIDs map[string]bool) []Order {
	if !orderSubject(subject) {
		return nil
	}

	orderID := extractOrderID(raw)
	if orderID != "" {
		if seenOrderIDs[orderID] {
			return nil
		}
		seenOrderIDs[orderID] = true
	}

	asins := extractASINs(raw)
	if len(asins) == 0 {
		return nil
	}

	name := productNameFromSubject(subject)
	qty, price := extractQuantityPrice(plain, len(asins) > 1)

	orders := make([]Order, 0, len(asins))
	for _, asin := range asins {
		productName := name
		if productName == "" {
			productName = "Order Item " + asin
		}
		orders = append(orders, Order{
			ASIN:        asin,
			ProductName: productName,
			OrderDate:   date,
			OrderID:     orderID,
			Quantity:    qty,
			ItemPrice:   price,
		})
	}
	return orders
}
