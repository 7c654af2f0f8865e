package recall

import (
	"regexp"
	"strings"
)

// Query is one recall-source search string with a specificity weight.
// Higher weight means more specific; queries are ordered most-specific
// first so a scan can short-circuit on a confident hit.
type Query struct {
	Text   string
	Weight int
}

// Keywords are the searchable terms derived from a product title.
type Keywords struct {
	Brand       string
	ProductType string
	Queries     []Query
}

var (
	placeholderRe = regexp.MustCompile(`(?i)\b(Loading|Order Item|B[0-9][A-Z0-9]{8})\b`)
	punctRe       = regexp.MustCompile(`[,\-–—|/\\()\[\]{}]`)
	spaceRe       = regexp.MustCompile(`\s+`)
	hasLetterRe   = regexp.MustCompile(`[a-zA-Z]`)
	codeRe        = regexp.MustCompile(`^[A-Z0-9]{2,}$`)
)

// Marketing filler and units stripped before keyword selection. Brand-like
// generics (amazon, basics, essentials) are deliberately kept so store
// brands stay matchable.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "for": true,
	"with": true, "in": true, "on": true, "of": true, "to": true, "by": true,
	"from": true, "is": true, "it": true, "that": true, "this": true,
	"be": true, "at": true, "as": true, "pack": true, "set": true,
	"count": true, "piece": true, "inch": true, "inches": true, "ft": true,
	"oz": true, "lb": true, "lbs": true, "ml": true, "size": true,
	"color": true, "new": true, "edition": true, "version": true,
	"updated": true, "latest": true, "prime": true, "brand": true,
	"item": true, "best": true, "seller": true, "great": true,
	"value": true, "premium": true, "professional": true, "ultra": true,
	"super": true, "pro": true, "plus": true, "max": true, "mini": true,
	"deluxe": true,
}

// ExtractKeywords derives brand, product type and ranked search queries
// from a free-text title. An empty query set means the title carries no
// usable terms and no scan is possible. That is a normal outcome for
// placeholder titles, not an error.
func ExtractKeywords(title string) Keywords {
	if title == "" {
		return Keywords{}
	}

	clean := placeholderRe.ReplaceAllString(title, "")
	clean = punctRe.ReplaceAllString(clean, " ")
	clean = strings.TrimSpace(spaceRe.ReplaceAllString(clean, " "))

	var words []string
	for _, w := range strings.Fields(clean) {
		if stopWords[strings.ToLower(w)] || len(w) <= 1 || !hasLetterRe.MatchString(w) {
			continue
		}
		words = append(words, w)
	}
	if len(words) == 0 {
		return Keywords{}
	}

	// Brand = first surviving word ("Weber", "Instant", "Nature").
	brand := words[0]

	// Product type = the core nouns describing what the product IS.
	// Skip numbers and short all-caps model codes.
	var typeWords []string
	for _, w := range words[1:] {
		if len(w) <= 3 || isDigit(w[0]) || codeRe.MatchString(w) {
			continue
		}
		typeWords = append(typeWords, w)
	}

	kw := Keywords{Brand: strings.ToLower(brand)}
	if len(typeWords) > 0 {
		n := len(typeWords)
		if n > 3 {
			n = 3
		}
		kw.ProductType = strings.ToLower(strings.Join(typeWords[:n], " "))
	}

	if len(typeWords) > 0 {
		n := len(typeWords)
		if n > 2 {
			n = 2
		}
		kw.Queries = append(kw.Queries, Query{
			Text:   brand + " " + strings.Join(typeWords[:n], " "),
			Weight: 3,
		})
	}
	kw.Queries = append(kw.Queries, Query{Text: brand, Weight: 1})
	if len(typeWords) > 0 {
		kw.Queries = append(kw.Queries, Query{Text: brand + " " + typeWords[0], Weight: 2})
	}
	return kw
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
