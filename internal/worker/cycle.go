package worker

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"pricewatch/internal/importer"
	"pricewatch/internal/model"
	"pricewatch/internal/recall"
	"pricewatch/internal/repository"
	"pricewatch/internal/scraper"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	// IntervalJitter randomizes the wait between cycles so repeated runs
	// do not present a perfectly periodic signature.
	IntervalJitter = 45 * time.Minute

	// ScrapeTimeout is the hard bound on one product's scrape.
	ScrapeTimeout = 90 * time.Second

	// Pacing between products in a cycle. Sequential by design: parallel
	// scraping of the same site invites blocking.
	productDelayMin = 5 * time.Second
	productDelayMax = 10 * time.Second

	// Recall sources get a pause between products too.
	recallProductDelay = time.Second

	// The scheduled import looks back one week; the manual scan from the
	// dashboard uses the importer's wider default.
	autoImportLookbackDays = 7
)

var oneCent = decimal.New(1, -2)

// ErrEmailNotConfigured is returned by manual scans when the mail account
// has not been set up yet.
var ErrEmailNotConfigured = errors.New("email credentials not configured")

// Status is the scheduler state snapshot the dashboard reads.
type Status struct {
	Running bool       `json:"running"`
	LastRun *time.Time `json:"last_run,omitempty"`
	NextRun *time.Time `json:"next_run,omitempty"`
}

// Cycle is the orchestrating loop: per cycle it imports orders, scans for
// recalls, archives expired products and re-checks every active product's
// price, then sleeps a jittered interval. It is the sole periodic mutator
// of the store.
type Cycle struct {
	products  repository.ProductRepository
	settings  repository.SettingsRepository
	scraper   scraper.Scraper
	importer  importer.OrderImporter
	recalls   *recall.Reconciler
	notifiers NotifierFactory

	mu      sync.Mutex
	running bool
	lastRun *time.Time
	nextRun *time.Time
}

func NewCycle(
	products repository.ProductRepository,
	settings repository.SettingsRepository,
	sc scraper.Scraper,
	imp importer.OrderImporter,
	rec *recall.Reconciler,
	notifiers NotifierFactory,
) *Cycle {
	return &Cycle{
		products:  products,
		settings:  settings,
		scraper:   sc,
		importer:  imp,
		recalls:   rec,
		notifiers: notifiers,
	}
}

// Status returns the current scheduler snapshot.
func (c *Cycle) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{Running: c.running, LastRun: c.lastRun, NextRun: c.nextRun}
}

func (c *Cycle) setRunning(running bool) {
	c.mu.Lock()
	c.running = running
	if !running {
		now := time.Now()
		c.lastRun = &now
	}
	c.mu.Unlock()
}

func (c *Cycle) setNextRun(t time.Time) {
	c.mu.Lock()
	c.nextRun = &t
	c.mu.Unlock()
}

// Start launches the scheduler goroutine. It runs until ctx is cancelled;
// cancellation is checked between products and every second of the
// inter-cycle sleep, never mid-flight.
func (c *Cycle) Start(ctx context.Context) {
	go func() {
		log.Info().Msg("cycle: scheduler started")
		for {
			if ctx.Err() != nil {
				log.Info().Msg("cycle: scheduler shutting down")
				return
			}

			c.setRunning(true)
			if err := c.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("cycle: run failed")
			}
			c.setRunning(false)

			wait := c.nextWait(ctx)
			next := time.Now().Add(wait)
			c.setNextRun(next)
			log.Info().Time("next_run", next).Dur("wait", wait).Msg("cycle: sleeping")

			if err := sleepBySeconds(ctx, wait); err != nil {
				log.Info().Msg("cycle: scheduler shutting down")
				return
			}
		}
	}()
}

// nextWait is baseInterval +/- jitter, uniform within the jitter window.
func (c *Cycle) nextWait(ctx context.Context) time.Duration {
	base := time.Duration(model.DefaultIntervalMin) * time.Minute
	if st, err := c.settings.Get(ctx); err == nil {
		base = st.CheckInterval()
	}
	jitter := time.Duration(rand.Int63n(int64(2*IntervalJitter))) - IntervalJitter
	wait := base + jitter
	if wait < time.Minute {
		wait = time.Minute
	}
	return wait
}

// RunOnce executes a single cycle. Individual product failures are logged
// and never abort the remainder of the cycle.
func (c *Cycle) RunOnce(ctx context.Context) error {
	st, err := c.settings.Get(ctx)
	if err != nil {
		return err
	}
	now := time.Now()

	if st.ImportDue(now) {
		if _, err := c.importOrders(ctx, st, autoImportLookbackDays); err != nil {
			log.Error().Err(err).Msg("cycle: order import failed")
		} else {
			scanned := time.Now()
			st.LastEmailScan = &scanned
			if err := c.settings.Update(ctx, st); err != nil {
				log.Error().Err(err).Msg("cycle: stamp email scan")
			}
		}
	}

	if st.RecallScanDue(now) {
		if _, err := c.recallScan(ctx, st); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("cycle: recall scan failed")
		} else {
			scanned := time.Now()
			st.LastRecallScan = &scanned
			if err := c.settings.Update(ctx, st); err != nil {
				log.Error().Err(err).Msg("cycle: stamp recall scan")
			}
		}
	}

	if st.AutoArchive {
		c.archiveExpired(ctx)
	}

	return c.priceSweep(ctx, st)
}

// ScanOrdersNow runs an immediate order import outside the scheduled cycle,
// with the caller's lookback window. Returns the number of orders applied.
func (c *Cycle) ScanOrdersNow(ctx context.Context, daysBack int) (int, error) {
	st, err := c.settings.Get(ctx)
	if err != nil {
		return 0, err
	}
	if !st.EmailConfigured() {
		return 0, ErrEmailNotConfigured
	}
	n, err := c.importOrders(ctx, st, daysBack)
	if err != nil {
		return 0, err
	}
	scanned := time.Now()
	st.LastEmailScan = &scanned
	if err := c.settings.Update(ctx, st); err != nil {
		log.Error().Err(err).Msg("cycle: stamp email scan")
	}
	return n, nil
}

// ScanRecallsNow runs an immediate recall scan outside the scheduled cycle.
// Returns the number of newly matched products.
func (c *Cycle) ScanRecallsNow(ctx context.Context) (int, error) {
	st, err := c.settings.Get(ctx)
	if err != nil {
		return 0, err
	}
	n, err := c.recallScan(ctx, st)
	if err != nil {
		return n, err
	}
	scanned := time.Now()
	st.LastRecallScan = &scanned
	if err := c.settings.Update(ctx, st); err != nil {
		log.Error().Err(err).Msg("cycle: stamp recall scan")
	}
	return n, nil
}

// importOrders pulls recent order confirmations into the store. Re-ordered
// archived products are restored with fresh purchase context.
func (c *Cycle) importOrders(ctx context.Context, st *model.Settings, daysBack int) (int, error) {
	creds := importer.Credentials{Address: st.EmailAddress, Password: st.EmailPassword}
	orders, err := c.importer.Scan(ctx, creds, daysBack)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, o := range orders {
		if err := c.applyOrder(ctx, st, o); err != nil {
			log.Error().Err(err).Str("asin", o.ASIN).Msg("cycle: apply order")
			continue
		}
		applied++
	}
	if len(orders) > 0 {
		log.Info().Int("orders", len(orders)).Msg("cycle: order import applied")
	}
	return applied, nil
}

func (c *Cycle) applyOrder(ctx context.Context, st *model.Settings, o importer.Order) error {
	existing, err := c.products.FindByASIN(ctx, o.ASIN)
	if err == nil {
		if !existing.IsArchived {
			return nil
		}
		existing.Restore()
		existing.Source = model.SourceEmail
		existing.OrderID = strPtr(o.OrderID)
		od := o.OrderDate
		existing.OrderDate = &od
		existing.Quantity = o.Quantity
		if o.ItemPrice != nil {
			existing.PurchasePrice = o.ItemPrice
			target := o.ItemPrice.Sub(oneCent)
			existing.TargetPrice = &target
		}
		existing.ExpiresAt = expiryFrom(o.OrderDate, st.DefaultExpirationDays)
		return c.products.Update(ctx, existing)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	od := o.OrderDate
	p := &model.Product{
		ASIN:          o.ASIN,
		URL:           "https://www.amazon.com/dp/" + o.ASIN,
		Title:         o.ProductName,
		Source:        model.SourceEmail,
		OrderDate:     &od,
		OrderID:       strPtr(o.OrderID),
		Quantity:      o.Quantity,
		PurchasePrice: o.ItemPrice,
		ExpiresAt:     expiryFrom(o.OrderDate, st.DefaultExpirationDays),
	}
	if o.ItemPrice != nil {
		target := o.ItemPrice.Sub(oneCent)
		p.TargetPrice = &target
	}
	return c.products.Create(ctx, p)
}

// expiryFrom computes the retention deadline from the order date, not the
// import time: a late import must not extend the window.
func expiryFrom(orderDate time.Time, retentionDays int) *time.Time {
	if retentionDays <= 0 {
		return nil
	}
	if orderDate.IsZero() {
		orderDate = time.Now()
	}
	exp := orderDate.AddDate(0, 0, retentionDays)
	return &exp
}

// recallScan checks every product, archived included: recalls do not expire
// with the retention window. Matched and dismissed products keep their
// state; checked-but-unmatched ones are stamped explicitly.
func (c *Cycle) recallScan(ctx context.Context, st *model.Settings) (int, error) {
	all, err := c.products.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	var matched []*model.Product
	for i := range all {
		if ctx.Err() != nil {
			return len(matched), ctx.Err()
		}
		p := &all[i]
		if p.RecallStatus == model.RecallMatched || p.RecallStatus == model.RecallDismissed {
			continue
		}
		if p.HasPlaceholderTitle() {
			continue
		}

		info, err := c.recalls.Scan(ctx, p.Title)
		if err != nil {
			if ctx.Err() != nil {
				return len(matched), ctx.Err()
			}
			log.Error().Err(err).Str("asin", p.ASIN).Msg("cycle: recall scan product")
			continue
		}

		now := time.Now()
		if info != nil {
			if err := p.ApplyRecallMatch(*info, now); err != nil {
				log.Warn().Err(err).Str("asin", p.ASIN).Msg("cycle: recall transition rejected")
			} else {
				matched = append(matched, p)
				log.Warn().Str("asin", p.ASIN).Str("recall", info.Number).Msg("cycle: recall matched")
			}
		} else {
			p.MarkRecallClear(now)
		}
		if err := c.products.Update(ctx, p); err != nil {
			log.Error().Err(err).Str("asin", p.ASIN).Msg("cycle: persist recall state")
		}

		if err := sleepCtx(ctx, recallProductDelay); err != nil {
			return len(matched), err
		}
	}

	if len(matched) > 0 {
		c.send(st, recallSubject(matched), recallBody(matched))
	}
	log.Info().Int("checked", len(all)).Int("matched", len(matched)).Msg("cycle: recall scan complete")
	return len(matched), nil
}

func (c *Cycle) archiveExpired(ctx context.Context) {
	expired, err := c.products.ListExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("cycle: list expired")
		return
	}
	now := time.Now()
	for i := range expired {
		p := &expired[i]
		p.Archive(now)
		if err := c.products.Update(ctx, p); err != nil {
			log.Error().Err(err).Str("asin", p.ASIN).Msg("cycle: archive expired")
		}
	}
	if len(expired) > 0 {
		log.Info().Int("count", len(expired)).Msg("cycle: auto-archived expired products")
	}
}

// priceSweep re-checks every active product sequentially with randomized
// pacing between products.
func (c *Cycle) priceSweep(ctx context.Context, st *model.Settings) error {
	products, err := c.products.ListActive(ctx)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		return nil
	}
	log.Info().Int("products", len(products)).Bool("global_alerts", st.GlobalAlertsEnabled).
		Msg("cycle: price sweep")

	var batched []batchEntry
	for i := range products {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.checkProduct(ctx, &products[i], st, &batched)

		delay := productDelayMin + time.Duration(rand.Int63n(int64(productDelayMax-productDelayMin)))
		if err := sleepCtx(ctx, delay); err != nil {
			return err
		}
	}

	if st.BatchEmailAlerts && len(batched) > 0 {
		if c.send(st, batchSubject(batched), batchBody(batched)) {
			log.Info().Int("products", len(batched)).Msg("cycle: sent batched alert")
		}
	}
	return nil
}

// checkProduct scrapes one product, evaluates alerts against the
// pre-update state (the first-ever check only establishes a baseline) and
// persists the result. Failures are logged, never propagated.
func (c *Cycle) checkProduct(ctx context.Context, p *model.Product, st *model.Settings, batched *[]batchEntry) {
	sctx, cancel := context.WithTimeout(ctx, ScrapeTimeout)
	res, err := c.scraper.Fetch(sctx, p.ASIN)
	cancel()
	if err != nil {
		log.Error().Err(err).Str("asin", p.ASIN).Msg("cycle: scrape failed")
		return
	}

	var alerts []string
	if res.NewPrice != nil {
		if p.HitTarget(*res.NewPrice) {
			alerts = append(alerts, targetAlertLine("NEW", *res.NewPrice, *p.TargetPrice))
		}
		gPct, gDollars := st.GlobalNewThresholds()
		if p.ShouldAlertNew(*res.NewPrice, gPct, gDollars) {
			if ref := p.RefNewPrice(); ref != nil {
				alerts = append(alerts, dropAlertLine("NEW", *ref, *res.NewPrice, p.PurchasePrice))
			}
		}
	}
	if res.UsedPrice != nil {
		if p.HitTarget(*res.UsedPrice) {
			alerts = append(alerts, targetAlertLine("USED", *res.UsedPrice, *p.TargetPrice))
		}
		gPct, gDollars := st.GlobalUsedThresholds()
		if p.ShouldAlertUsed(*res.UsedPrice, gPct, gDollars) {
			if ref := p.RefUsedPrice(); ref != nil {
				alerts = append(alerts, dropAlertLine("USED", *ref, *res.UsedPrice, p.PurchasePrice))
			}
		}
	}

	p.ApplyScrape(res.Title, res.NewPrice, res.UsedPrice)

	now := time.Now()
	if len(alerts) > 0 && !p.InCooldown(now) {
		if st.BatchEmailAlerts {
			*batched = append(*batched, batchEntry{
				Title: p.Title, URL: p.URL, Paid: p.PurchasePrice, Alerts: alerts,
			})
			p.LastAlertSent = &now
		} else if c.send(st, alertSubject(p), alertBody(p, alerts)) {
			p.LastAlertSent = &now
		}
	}

	if err := c.products.Update(ctx, p); err != nil {
		log.Error().Err(err).Str("asin", p.ASIN).Msg("cycle: persist product")
	}
}

// send delivers through every configured notifier; true when at least one
// delivery succeeded. Failures are swallowed after logging.
func (c *Cycle) send(st *model.Settings, subject, body string) bool {
	sent := false
	for _, n := range c.notifiers(st) {
		if err := n.Send(subject, body, ""); err != nil {
			log.Warn().Err(err).Msg("cycle: notification failed")
			continue
		}
		sent = true
	}
	return sent
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// sleepBySeconds sleeps in one-second steps so shutdown is never more than
// a second away during the inter-cycle wait.
func sleepBySeconds(ctx context.Context, d time.Duration) error {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if err := sleepCtx(ctx, time.Second); err != nil {
			return err
		}
	}
	return nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
