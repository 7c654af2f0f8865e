package recall

import (
	"regexp"
	"strings"
)

// CPSCProduct is one product entry inside a consumer-safety recall record.
type CPSCProduct struct {
	Name        string `json:"Name"`
	Description string `json:"Description"`
	Model       string `json:"Model"`
}

// CPSCName is the {Name} shape CPSC uses for hazards, remedies,
// manufacturers and retailers alike.
type CPSCName struct {
	Name string `json:"Name"`
}

// CPSCUPC is one UPC entry on a recall record.
type CPSCUPC struct {
	UPC string `json:"UPC"`
}

// CPSCRecall is a recall record in the CPSC REST schema.
type CPSCRecall struct {
	RecallID        int64         `json:"RecallID"`
	RecallNumber    string        `json:"RecallNumber"`
	RecallDate      string        `json:"RecallDate"`
	Title           string        `json:"Title"`
	Description     string        `json:"Description"`
	URL             string        `json:"URL"`
	ConsumerContact string        `json:"ConsumerContact"`
	Products        []CPSCProduct `json:"Products"`
	Hazards         []CPSCName    `json:"Hazards"`
	Remedies        []CPSCName    `json:"Remedies"`
	Manufacturers   []CPSCName    `json:"Manufacturers"`
	Retailers       []CPSCName    `json:"Retailers"`
	ProductUPCs     []CPSCUPC     `json:"ProductUPCs"`
}

// FDARecall is an enforcement report in the openFDA schema. Flat: one
// description and one reason instead of nested product lists.
type FDARecall struct {
	RecallNumber         string `json:"recall_number"`
	ProductDescription   string `json:"product_description"`
	ReasonForRecall      string `json:"reason_for_recall"`
	RecallingFirm        string `json:"recalling_firm"`
	Classification       string `json:"classification"`
	RecallInitiationDate string `json:"recall_initiation_date"`
	Status               string `json:"status"`
	VoluntaryMandated    string `json:"voluntary_mandated"`
	City                 string `json:"city"`
	State                string `json:"state"`
}

// Scoring is intentionally strict: false negatives are better than false
// positives. A match needs two independent signals (brand AND product-type
// overlap) before it can clear the acceptance threshold.

var (
	longWordRe  = regexp.MustCompile(`\b[a-z]{4,}\b`)
	shortWordRe = regexp.MustCompile(`\b([a-zA-Z0-9]{2,3})\b`)
)

// Short grammar words excluded from the 2-3 character capture. Without this
// list every capitalized sentence opener would count as a model code.
var shortSkipWords = map[string]bool{
	"the": true, "and": true, "for": true, "but": true, "not": true,
	"are": true, "was": true, "has": true, "its": true, "you": true,
	"can": true, "may": true, "all": true, "any": true, "who": true,
	"why": true, "how": true, "did": true, "get": true, "got": true,
	"had": true, "him": true, "her": true, "his": true, "our": true,
	"own": true, "new": true, "old": true, "one": true, "two": true,
	"big": true, "few": true, "set": true, "use": true, "say": true,
	"see": true, "try": true, "day": true, "way": true, "end": true,
	"yet": true, "now": true, "let": true, "put": true, "run": true,
	"cut": true, "off": true, "ask": true, "add": true, "men": true,
	"per": true,
}

// Recall boilerplate subtracted from every word set before overlap counting.
var genericWords = map[string]bool{
	"product": true, "item": true, "model": true, "number": true,
	"about": true, "units": true, "sold": true, "stores": true,
	"between": true, "through": true, "from": true, "were": true,
	"with": true, "that": true, "this": true, "have": true, "been": true,
	"consumers": true, "should": true, "contact": true, "company": true,
	"free": true, "replacement": true, "refund": true, "risk": true,
	"injury": true, "hazard": true, "recall": true, "recalled": true,
	"due": true, "poses": true, "posing": true, "also": true, "each": true,
	"made": true, "make": true, "more": true, "most": true, "much": true,
	"only": true, "over": true, "some": true, "such": true, "than": true,
	"them": true, "then": true, "they": true, "very": true, "when": true,
	"will": true, "your": true, "used": true, "like": true, "does": true,
	"just": true, "into": true, "back": true, "after": true, "could": true,
	"would": true, "which": true, "first": true, "other": true,
	"where": true, "still": true, "every": true, "under": true,
	"while": true, "these": true, "being": true, "there": true,
	"those": true, "might": true, "comes": true, "including": true,
	"contains": true, "found": true,
}

// hybridWords builds the word set used for overlap scoring: 4+ letter
// words, plus 2-3 character tokens that carry a digit or were capitalized
// in the original text. The short tokens capture model codes (D3, G65) and
// product names (Pot, Gem) that plain length filtering would discard.
func hybridWords(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range longWordRe.FindAllString(strings.ToLower(text), -1) {
		words[w] = true
	}
	for _, m := range shortWordRe.FindAllStringSubmatch(text, -1) {
		w := m[1]
		if containsDigit(w) || (isUpper(w[0]) && !shortSkipWords[strings.ToLower(w)]) {
			words[strings.ToLower(w)] = true
		}
	}
	return words
}

func productSpecificWords(text string) map[string]bool {
	return subtract(hybridWords(text), genericWords)
}

func subtract(set, remove map[string]bool) map[string]bool {
	out := make(map[string]bool, len(set))
	for w := range set {
		if !remove[w] {
			out[w] = true
		}
	}
	return out
}

func overlapCount(a, b map[string]bool) int {
	n := 0
	for w := range a {
		if b[w] {
			n++
		}
	}
	return n
}

func containsDigit(s string) bool {
	for i := 0; i < len(s); i++ {
		if isDigit(s[i]) {
			return true
		}
	}
	return false
}

func isUpper(b byte) bool { return b >= 'A' && b <= 'Z' }

func wholeWordMatch(word, text string) bool {
	if word == "" {
		return false
	}
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
	return re.MatchString(text)
}

// signals is the raw additive phase of a score: signal strength and which
// gates activated, before any clamping.
type signals struct {
	points     int
	brandFound bool
	typeMatch  bool
	definitive bool // identifier match, overrides the accumulated points
}

// clampScore applies the acceptance gates to a raw signal set. No brand
// match caps the result at 15 (can never alert); no product-type overlap
// caps it at 30 (below the acceptance threshold).
func clampScore(sig signals) int {
	score := sig.points
	if sig.definitive {
		score = 100
	}
	if !sig.brandFound {
		score = minInt(score, 15)
	}
	if !sig.typeMatch {
		score = minInt(score, 30)
	}
	return minInt(score, 100)
}

// ScoreCPSC rates how well a CPSC recall matches a product title, 0-100.
func ScoreCPSC(title string, rec *CPSCRecall) int {
	if title == "" || rec == nil {
		return 0
	}

	kw := ExtractKeywords(title)
	productWords := productSpecificWords(title)
	// Brand strength is scored separately; leaving it in the word set would
	// double-count it as product-type overlap.
	delete(productWords, kw.Brand)

	var sig signals

	// Brand gate: brand as a whole word anywhere in the recall's combined
	// product names, descriptions, title and manufacturer names.
	var parts []string
	for _, p := range rec.Products {
		parts = append(parts, strings.ToLower(p.Name), strings.ToLower(p.Description))
	}
	parts = append(parts, strings.ToLower(rec.Title))
	for _, m := range rec.Manufacturers {
		parts = append(parts, strings.ToLower(m.Name))
	}
	recallText := strings.Join(parts, " ")
	if len(kw.Brand) >= 2 && wholeWordMatch(kw.Brand, recallText) {
		sig.brandFound = true
		sig.points += 30
	}

	// Product-type gate: keep only the single best sub-product score so an
	// unrelated multi-item recall bundle cannot inflate the total.
	titleLower := strings.ToLower(title)
	best := 0
	for _, p := range rec.Products {
		sub := 0
		prodWords := productSpecificWords(p.Name + " " + p.Description)
		if n := overlapCount(productWords, prodWords); n >= 2 {
			sub += minInt(n*12, 40)
		}
		if m := strings.TrimSpace(p.Model); len(m) >= 3 && strings.Contains(titleLower, strings.ToLower(m)) {
			sub += 25
		}
		if sub > best {
			best = sub
		}
	}
	if best > 0 {
		sig.typeMatch = true
		sig.points += best
	}

	// Secondary signals, uncapped by the gates above.
	recallTitleWords := subtract(wordsOf(rec.Title), genericWords)
	if n := overlapCount(productWords, recallTitleWords); n >= 2 {
		sig.points += minInt(n*8, 20)
	}
	for _, r := range rec.Retailers {
		if strings.Contains(strings.ToLower(r.Name), "amazon") {
			sig.points += 5
		}
	}
	for _, u := range rec.ProductUPCs {
		if v := strings.TrimSpace(u.UPC); v != "" && strings.Contains(title, v) {
			sig.definitive = true
		}
	}

	return clampScore(sig)
}

// ScoreFDA rates how well an openFDA enforcement report matches a product
// title, 0-100. The brand gate is stricter than CPSC's: the description
// field is long free prose, so a brand word buried deep in it means little.
func ScoreFDA(title string, rec *FDARecall) int {
	if title == "" || rec == nil {
		return 0
	}

	kw := ExtractKeywords(title)
	productWords := productSpecificWords(title)
	delete(productWords, kw.Brand)

	var sig signals

	desc := strings.ToLower(rec.ProductDescription)
	firm := strings.ToLower(rec.RecallingFirm)

	// Brand gate: firm name, or one of the first three description words
	// (where brands actually appear on enforcement reports).
	if len(kw.Brand) >= 2 {
		brandInFirm := wholeWordMatch(kw.Brand, firm)
		brandLeadsDesc := false
		lead := strings.Fields(strings.TrimSpace(desc))
		if len(lead) > 3 {
			lead = lead[:3]
		}
		for _, w := range lead {
			if kw.Brand == strings.Trim(w, ",-()") {
				brandLeadsDesc = true
				break
			}
		}
		if brandInFirm || brandLeadsDesc {
			sig.brandFound = true
			sig.points += 30
		}
	}

	// Product-type gate against the single description field.
	descWords := productSpecificWords(rec.ProductDescription)
	if n := overlapCount(productWords, descWords); n >= 2 {
		sig.typeMatch = true
		sig.points += minInt(n*12, 40)
	}

	// Reason overlap is a weak signal, tightly capped.
	reasonWords := subtract(wordsOf(rec.ReasonForRecall), genericWords)
	if n := overlapCount(productWords, reasonWords); n > 0 {
		sig.points += minInt(n*3, 10)
	}

	return clampScore(sig)
}

// wordsOf is the plain 4+ letter extraction, without the short-token pass.
func wordsOf(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range longWordRe.FindAllString(strings.ToLower(text), -1) {
		words[w] = true
	}
	return words
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
