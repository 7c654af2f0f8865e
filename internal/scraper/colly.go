package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/shopspring/decimal"
)

// CollyScraper is the rich strategy: a collector with cookie handling and
// full browser headers. Shares the lean strategy's selectors; the split
// exists because the two fetch paths fail differently under blocking.
type CollyScraper struct{}

func NewCollyScraper() *CollyScraper { return &CollyScraper{} }

func (s *CollyScraper) newCollector() *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(chromeUA),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(40 * time.Second)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		r.Headers.Set("Upgrade-Insecure-Requests", "1")
	})
	return c
}

// Available probes the storefront once per process. A blocked or truncated
// response means the collector strategy is of no use this session.
func (s *CollyScraper) Available(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	ok := false
	c := s.newCollector()
	c.OnResponse(func(r *colly.Response) {
		lower := strings.ToLower(string(r.Body))
		ok = r.StatusCode == 200 && len(r.Body) > 5000 && !strings.Contains(lower, "captcha")
	})
	if err := c.Visit("https://www.amazon.com/"); err != nil {
		return false
	}
	c.Wait()
	return ok
}

func (s *CollyScraper) Fetch(ctx context.Context, asin string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{}
	var fetchErr error

	c := s.newCollector()
	c.OnResponse(func(r *colly.Response) {
		if err := detectBlockBody(string(r.Body)); err != nil {
			fetchErr = err
		}
	})
	c.OnHTML("html", func(e *colly.HTMLElement) {
		if fetchErr != nil {
			return
		}
		if t := e.DOM.Find("#productTitle").First(); t.Length() > 0 {
			res.Title = TruncateTitle(t.Text())
		}
		for _, sel := range newPriceSelectors {
			if el := e.DOM.Find(sel).First(); el.Length() > 0 {
				if p := ParsePrice(el.Text()); p != nil {
					res.NewPrice = p
					break
				}
			}
		}
	})

	if err := c.Visit(fmt.Sprintf("https://www.amazon.com/dp/%s", asin)); err != nil {
		return nil, fmt.Errorf("scraper: collector visit %s: %w", asin, err)
	}
	c.Wait()
	if fetchErr != nil {
		return nil, fetchErr
	}

	if err := sleepCtx(ctx, 2500*time.Millisecond); err != nil {
		return nil, err
	}

	var newOffers, usedOffers []decimal.Decimal
	oc := s.newCollector()
	oc.OnResponse(func(r *colly.Response) {
		body := string(r.Body)
		if err := detectBlockBody(body); err != nil {
			fetchErr = err
			return
		}
		for _, re := range usedFromRes {
			for _, m := range re.FindAllStringSubmatch(body, -1) {
				if p, err := decimal.NewFromString(m[1]); err == nil &&
					p.GreaterThanOrEqual(priceFloor) && p.LessThanOrEqual(priceCeiling) {
					usedOffers = append(usedOffers, p)
				}
			}
		}
	})
	oc.OnHTML("html", func(e *colly.HTMLElement) {
		if fetchErr != nil {
			return
		}
		n, u := collectOffers(e.DOM)
		newOffers = append(newOffers, n...)
		usedOffers = append(usedOffers, u...)
	})

	offersURL := fmt.Sprintf("https://www.amazon.com/gp/offer-listing/%s/ref=dp_olp_all_mbc?ie=UTF8&condition=all", asin)
	if err := oc.Visit(offersURL); err != nil {
		// Main page data still stands; only the used price is lost.
		return res, nil
	}
	oc.Wait()
	if fetchErr != nil {
		return nil, fetchErr
	}

	if best := minPrice(newOffers); best != nil {
		if res.NewPrice == nil || best.LessThan(*res.NewPrice) {
			res.NewPrice = best
		}
	}
	res.UsedPrice = minPrice(usedOffers)

	return res, nil
}

func detectBlockBody(html string) error {
	lower := strings.ToLower(html)
	if strings.Contains(lower, "captcha") {
		return ErrBotDetected
	}
	if len(html) < 5000 && strings.Contains(lower, "robot") {
		return ErrBlocked
	}
	return nil
}
