package scraper

import (
	"context"
	"errors"
	"sync"

	"pricewatch/internal/infra"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// TitleMaxLen bounds scraped titles so card layouts and email subjects stay
// readable.
const TitleMaxLen = 77

// Sentinel errors for the failure taxonomy. Bot detection must stay
// distinguishable from "no price found" so the dashboard can say so.
var (
	ErrBotDetected = errors.New("bot detection triggered (CAPTCHA), try again later")
	ErrBlocked     = errors.New("minimal page returned (possible block), try again later")
)

// Result is one scrape outcome. Nil prices mean the listing had no offer of
// that condition, which is a normal outcome, not an error.
type Result struct {
	Title     string
	NewPrice  *decimal.Decimal
	UsedPrice *decimal.Decimal
}

// Scraper fetches current prices and the title for one catalog id.
type Scraper interface {
	Fetch(ctx context.Context, asin string) (*Result, error)
}

// Auto picks between the rich collector strategy and the lean HTTP one.
// Availability is probed once per process; the lean strategy is the
// guaranteed fallback and is also tried per-call when the rich strategy
// errors out. A circuit breaker around the rich path stops hammering a
// storefront that has started blocking the collector.
type Auto struct {
	rich    *CollyScraper
	lean    *LeanScraper
	breaker *infra.CircuitBreaker

	probeOnce sync.Once
	useRich   bool
}

func NewAuto() *Auto {
	return &Auto{
		rich:    NewCollyScraper(),
		lean:    NewLeanScraper(),
		breaker: infra.NewCircuitBreaker(infra.DefaultCBConfig()),
	}
}

func (a *Auto) Fetch(ctx context.Context, asin string) (*Result, error) {
	a.probeOnce.Do(func() {
		a.useRich = a.rich.Available(ctx)
		if a.useRich {
			log.Info().Msg("scraper: collector strategy selected")
		} else {
			log.Info().Msg("scraper: plain HTTP strategy selected")
		}
	})

	if a.useRich {
		var res *Result
		err := a.breaker.Execute(func() error {
			var ferr error
			res, ferr = a.rich.Fetch(ctx, asin)
			return ferr
		})
		if err == nil {
			return res, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if !errors.Is(err, infra.ErrCircuitOpen) {
			log.Warn().Err(err).Str("asin", asin).Msg("scraper: collector failed, falling back to plain HTTP")
		}
	}
	return a.lean.Fetch(ctx, asin)
}
