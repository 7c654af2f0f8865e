package recall

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"pricewatch/internal/model"

	"github.com/rs/zerolog/log"
)

// Acceptance thresholds. 55 requires the brand gate (30) plus meaningful
// product overlap (25+); 85 is confident enough to stop querying early.
const (
	MinMatchScore     = 55
	ShortCircuitScore = 85

	maxCandidatesPerQuery = 25
	cpscQueryDelay        = 500 * time.Millisecond
	fdaQueryDelay         = 300 * time.Millisecond
)

// Reconciler queries the recall sources for one product, scores every
// candidate and picks the best qualifying match. CPSC goes first since it
// covers the broadest share of retail goods; openFDA is the fallback for
// food, drug and device recalls, searched with the two highest-weight
// queries only.
type Reconciler struct {
	cpsc *CPSCClient
	fda  *FDAClient
}

func NewReconciler(cpsc *CPSCClient, fda *FDAClient) *Reconciler {
	return &Reconciler{cpsc: cpsc, fda: fda}
}

// Scan returns the best qualifying recall for a title, or nil when nothing
// clears the acceptance threshold. Errors on individual queries are logged
// and skipped; absence of a match is the default outcome. An empty keyword
// set means no scan is possible and also returns nil.
func (r *Reconciler) Scan(ctx context.Context, title string) (*model.RecallInfo, error) {
	kw := ExtractKeywords(title)
	if len(kw.Queries) == 0 {
		return nil, nil
	}

	if info, err := r.scanCPSC(ctx, title, kw.Queries); info != nil || err != nil {
		return info, err
	}
	return r.scanFDA(ctx, title, kw.Queries)
}

func (r *Reconciler) scanCPSC(ctx context.Context, title string, queries []Query) (*model.RecallInfo, error) {
	var best *CPSCRecall
	bestScore := 0

	for _, q := range queries {
		recalls, err := r.cpsc.Search(ctx, q.Text)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Str("query", q.Text).Msg("recall: cpsc query failed")
			continue
		}

		n := len(recalls)
		if n > maxCandidatesPerQuery {
			n = maxCandidatesPerQuery
		}
		for i := 0; i < n; i++ {
			if score := ScoreCPSC(title, &recalls[i]); score > bestScore {
				bestScore = score
				best = &recalls[i]
			}
			if bestScore >= ShortCircuitScore {
				break
			}
		}

		if bestScore >= ShortCircuitScore {
			break
		}
		if err := sleepCtx(ctx, cpscQueryDelay); err != nil {
			return nil, err
		}
	}

	if best != nil && bestScore >= MinMatchScore {
		return normalizeCPSC(best), nil
	}
	return nil, nil
}

func (r *Reconciler) scanFDA(ctx context.Context, title string, queries []Query) (*model.RecallInfo, error) {
	if len(queries) > 2 {
		queries = queries[:2]
	}

	var best *FDARecall
	bestScore := 0

	for _, q := range queries {
		for _, category := range FDACategories {
			results, err := r.fda.Search(ctx, category, q.Text)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				log.Warn().Err(err).Str("query", q.Text).Str("category", category).
					Msg("recall: fda query failed")
				continue
			}

			for i := range results {
				if score := ScoreFDA(title, &results[i]); score > bestScore {
					bestScore = score
					best = &results[i]
				}
			}

			if err := sleepCtx(ctx, fdaQueryDelay); err != nil {
				return nil, err
			}
		}
	}

	if best != nil && bestScore >= MinMatchScore {
		return normalizeFDA(best), nil
	}
	return nil, nil
}

func normalizeCPSC(rec *CPSCRecall) *model.RecallInfo {
	info := &model.RecallInfo{
		ID:              rec.RecallID,
		Number:          rec.RecallNumber,
		Title:           truncate(rec.Title, 500),
		Description:     truncate(rec.Description, 1000),
		URL:             rec.URL,
		Date:            rec.RecallDate,
		ConsumerContact: truncate(rec.ConsumerContact, 500),
		Source:          "cpsc",
	}
	if len(rec.Hazards) > 0 {
		info.Hazard = truncate(rec.Hazards[0].Name, 500)
	}
	if len(rec.Remedies) > 0 {
		info.Remedy = truncate(rec.Remedies[0].Name, 500)
	}
	return info
}

// normalizeFDA maps an enforcement report onto the common recall shape:
// the severity classification folds into the hazard text, the YYYYMMDD
// initiation date becomes ISO, and a stable numeric id is synthesized from
// the recall number since openFDA has none.
func normalizeFDA(rec *FDARecall) *model.RecallInfo {
	severity := ""
	switch rec.Classification {
	case "Class I":
		severity = "SERIOUS: Reasonable probability of serious adverse health consequences or death"
	case "Class II":
		severity = "Moderate: May cause temporary or medically reversible adverse health consequences"
	case "Class III":
		severity = "Low: Not likely to cause adverse health consequences"
	}

	hazard := rec.ReasonForRecall
	if severity != "" {
		hazard = fmt.Sprintf("[%s - %s] %s", rec.Classification, severity, hazard)
	}

	date := rec.RecallInitiationDate
	if len(date) >= 8 {
		date = date[:4] + "-" + date[4:6] + "-" + date[6:8]
	}

	number := rec.RecallNumber
	if number == "" {
		number = "N/A"
	}
	firm := rec.RecallingFirm
	if firm == "" {
		firm = "Unknown"
	}

	return &model.RecallInfo{
		ID:              syntheticRecallID(rec.RecallNumber),
		Number:          number,
		Title:           fmt.Sprintf("FDA Recall: %s - %s", firm, truncate(rec.ProductDescription, 100)),
		Description:     truncate(rec.ProductDescription, 1000),
		URL:             "https://www.fda.gov/safety/recalls-market-withdrawals-safety-alerts",
		Hazard:          truncate(hazard, 500),
		Remedy:          fmt.Sprintf("Status: %s. %s", orUnknown(rec.Status), rec.VoluntaryMandated),
		Date:            date,
		ConsumerContact: fmt.Sprintf("%s - %s, %s", rec.RecallingFirm, rec.City, rec.State),
		Source:          "fda",
	}
}

func syntheticRecallID(number string) int64 {
	h := fnv.New32a()
	h.Write([]byte(number))
	return int64(h.Sum32()) % 100_000_000
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
