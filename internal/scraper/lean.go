package scraper

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// The storefront rotates its price markup; try selectors newest-first.
var newPriceSelectors = []string{
	"#corePrice_feature_div .a-offscreen",
	".reinventPricePriceToPayMargin .a-offscreen",
	"#priceblock_ourprice",
	"#priceblock_dealprice",
	"#apex_offerDisplay_desktop .a-offscreen",
	".a-price .a-offscreen",
	"#tp_price_block_total_price_ww .a-offscreen",
	"#price_inside_buybox",
	"#newBuyBoxPrice",
}

var usedConditionWords = []string{
	"used", "renewed", "refurbished", "acceptable", "good", "very good", "like new",
}

var (
	priceAmountRe = regexp.MustCompile(`"priceAmount":\s*(\d+\.?\d*)`)
	spanPriceRe   = regexp.MustCompile(`\$(\d{1,5}\.\d{2})\s*</span>`)
	usedFromRes   = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Used\s*\([^)]*\)\s*from\s*\$(\d+\.\d{2})`),
		regexp.MustCompile(`(?i)Used\s+from\s+\$(\d+\.\d{2})`),
	}
)

// LeanScraper fetches the product and offer-listing pages with a plain HTTP
// client and parses them with goquery. No browser, no screenshots; always
// available.
type LeanScraper struct {
	client *http.Client
}

func NewLeanScraper() *LeanScraper {
	return &LeanScraper{client: &http.Client{Timeout: 30 * time.Second}}
}

func (s *LeanScraper) Fetch(ctx context.Context, asin string) (*Result, error) {
	res := &Result{}

	html, doc, err := s.get(ctx, fmt.Sprintf("https://www.amazon.com/dp/%s", asin))
	if err != nil {
		return nil, err
	}
	if err := detectBlock(html, doc); err != nil {
		return nil, err
	}

	if t := doc.Find("#productTitle").First(); t.Length() > 0 {
		res.Title = TruncateTitle(t.Text())
	}

	for _, sel := range newPriceSelectors {
		if el := doc.Find(sel).First(); el.Length() > 0 {
			if p := ParsePrice(el.Text()); p != nil {
				res.NewPrice = p
				break
			}
		}
	}
	if res.NewPrice == nil {
		res.NewPrice = regexPriceFallback(html)
	}

	// Polite delay before the second page.
	if err := sleepCtx(ctx, time.Duration(2000+rand.Intn(2000))*time.Millisecond); err != nil {
		return nil, err
	}

	offersURL := fmt.Sprintf("https://www.amazon.com/gp/offer-listing/%s/ref=dp_olp_all_mbc?ie=UTF8&condition=all", asin)
	offersHTML, offersDoc, err := s.get(ctx, offersURL)
	if err != nil {
		// The main page already yielded data; a failed offers page only
		// costs the used price.
		log.Warn().Err(err).Str("asin", asin).Msg("scraper: offers page fetch failed")
		return res, nil
	}

	newOffers, usedOffers := collectOffers(offersDoc.Selection)
	for _, re := range usedFromRes {
		for _, m := range re.FindAllStringSubmatch(offersHTML, -1) {
			if p, err := decimal.NewFromString(m[1]); err == nil &&
				p.GreaterThanOrEqual(priceFloor) && p.LessThanOrEqual(priceCeiling) {
				usedOffers = append(usedOffers, p)
			}
		}
	}

	if best := minPrice(newOffers); best != nil {
		if res.NewPrice == nil || best.LessThan(*res.NewPrice) {
			res.NewPrice = best
		}
	}
	res.UsedPrice = minPrice(usedOffers)

	return res, nil
}

func (s *LeanScraper) get(ctx context.Context, url string) (string, *goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("scraper: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("scraper: fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("scraper: read %s: %w", url, err)
	}
	html := string(body)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", nil, fmt.Errorf("scraper: parse %s: %w", url, err)
	}
	return html, doc, nil
}

func detectBlock(html string, doc *goquery.Document) error {
	lower := strings.ToLower(html)
	if strings.Contains(lower, "captcha") || doc.Find("#captchacharacters").Length() > 0 {
		return ErrBotDetected
	}
	if len(html) < 5000 && strings.Contains(lower, "robot") {
		return ErrBlocked
	}
	return nil
}

// collectOffers reads the pinned offer and the offer list, splitting prices
// by condition heading.
func collectOffers(doc *goquery.Selection) (newOffers, usedOffers []decimal.Decimal) {
	classify := func(condition string, p *decimal.Decimal) {
		if p == nil {
			return
		}
		for _, w := range usedConditionWords {
			if strings.Contains(condition, w) {
				usedOffers = append(usedOffers, *p)
				return
			}
		}
		if strings.Contains(condition, "new") || condition == "" {
			newOffers = append(newOffers, *p)
		}
	}

	if pinned := doc.Find("#aod-pinned-offer").First(); pinned.Length() > 0 {
		condition := strings.ToLower(strings.TrimSpace(pinned.Find("#aod-offer-heading").Text()))
		classify(condition, ParsePrice(pinned.Find(".a-price .a-offscreen").First().Text()))
	}

	doc.Find("#aod-offer-list #aod-offer").Each(func(_ int, offer *goquery.Selection) {
		condition := strings.ToLower(strings.TrimSpace(offer.Find("#aod-offer-heading").Text()))
		classify(condition, ParsePrice(offer.Find(".a-price .a-offscreen").First().Text()))
	})
	return newOffers, usedOffers
}

func regexPriceFallback(html string) *decimal.Decimal {
	floor := decimal.NewFromFloat(0.50)
	for _, re := range []*regexp.Regexp{priceAmountRe, spanPriceRe} {
		if m := re.FindStringSubmatch(html); m != nil {
			if p, err := decimal.NewFromString(m[1]); err == nil &&
				p.GreaterThanOrEqual(floor) && p.LessThanOrEqual(priceCeiling) {
				return &p
			}
		}
	}
	return nil
}

func minPrice(prices []decimal.Decimal) *decimal.Decimal {
	if len(prices) == 0 {
		return nil
	}
	best := prices[0]
	for _, p := range prices[1:] {
		if p.LessThan(best) {
			best = p
		}
	}
	return &best
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
