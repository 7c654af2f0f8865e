package worker

import (
	"context"
	"errors"

	"pricewatch/internal/model"
	"pricewatch/internal/repository"
	"pricewatch/internal/scraper"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CheckPoolSize bounds concurrent on-demand checks so the dashboard stays
// responsive without multiplying scrape traffic.
const CheckPoolSize = 2

// ErrCheckTimeout distinguishes "the check did not finish in time" from a
// scrape that failed outright.
var ErrCheckTimeout = errors.New("check timed out, try again later")

// CheckPool runs user-triggered "check now" requests on a small bounded
// pool, each under a hard timeout. Independent of the scheduled cycle; the
// two may race on the same product, which is acceptable (last write wins,
// price extrema widen commutatively).
type CheckPool struct {
	products repository.ProductRepository
	scraper  scraper.Scraper
	slots    chan struct{}
}

func NewCheckPool(products repository.ProductRepository, sc scraper.Scraper) *CheckPool {
	return &CheckPool{
		products: products,
		scraper:  sc,
		slots:    make(chan struct{}, CheckPoolSize),
	}
}

// Check scrapes one product immediately and persists the result. Blocks
// for a free slot, then enforces the scrape timeout.
func (cp *CheckPool) Check(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	select {
	case cp.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-cp.slots }()

	jobID := uuid.New().String()[:8]
	p, err := cp.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	log.Info().Str("job", jobID).Str("asin", p.ASIN).Msg("check: on-demand check started")

	cctx, cancel := context.WithTimeout(ctx, ScrapeTimeout)
	defer cancel()

	type outcome struct {
		res *scraper.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := cp.scraper.Fetch(cctx, p.ASIN)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			if errors.Is(o.err, context.DeadlineExceeded) {
				return nil, ErrCheckTimeout
			}
			return nil, o.err
		}
		p.ApplyScrape(o.res.Title, o.res.NewPrice, o.res.UsedPrice)
		if err := cp.products.Update(ctx, p); err != nil {
			return nil, err
		}
		log.Info().Str("job", jobID).Str("asin", p.ASIN).Msg("check: on-demand check done")
		return p, nil
	case <-cctx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrCheckTimeout
	}
}
