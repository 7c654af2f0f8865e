package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"pricewatch/internal/importer"
	"pricewatch/internal/model"
	"pricewatch/internal/recall"
	"pricewatch/internal/scraper"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

// ── In-memory repository stubs ───────────────────────────────────────────────

type stubProductRepo struct {
	mu       sync.Mutex
	products map[uuid.UUID]*model.Product
}

func newStubProductRepo() *stubProductRepo {
	return &stubProductRepo{products: make(map[uuid.UUID]*model.Product)}
}

func (r *stubProductRepo) Create(_ context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.RecallStatus == "" {
		p.RecallStatus = model.RecallNone
	}
	cp := *p
	r.products[p.ID] = &cp
	return nil
}

func (r *stubProductRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *stubProductRepo) FindByASIN(_ context.Context, asin string) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.ASIN == asin {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubProductRepo) ListActive(_ context.Context) ([]model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Product
	for _, p := range r.products {
		if !p.IsArchived && p.IsActive {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *stubProductRepo) ListAll(_ context.Context) ([]model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Product
	for _, p := range r.products {
		out = append(out, *p)
	}
	return out, nil
}

func (r *stubProductRepo) ListArchived(_ context.Context) ([]model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Product
	for _, p := range r.products {
		if p.IsArchived {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *stubProductRepo) ListExpired(_ context.Context) ([]model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var out []model.Product
	for _, p := range r.products {
		if !p.IsArchived && p.Expired(now) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *stubProductRepo) Update(_ context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.products[p.ID] = &cp
	return nil
}

func (r *stubProductRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.products, id)
	return nil
}

func (r *stubProductRepo) DB() *gorm.DB { return nil }

type stubSettingsRepo struct {
	mu sync.Mutex
	st *model.Settings
}

func (r *stubSettingsRepo) Get(_ context.Context) (*model.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *r.st
	return &cp, nil
}

func (r *stubSettingsRepo) Update(_ context.Context, s *model.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.st = &cp
	return nil
}

// ── Collaborator stubs ───────────────────────────────────────────────────────

type stubScraper struct {
	res *scraper.Result
	err error
}

func (s *stubScraper) Fetch(_ context.Context, _ string) (*scraper.Result, error) {
	return s.res, s.err
}

type stubImporter struct {
	orders []importer.Order
	err    error
}

func (s *stubImporter) Scan(_ context.Context, _ importer.Credentials, _ int) ([]importer.Order, error) {
	return s.orders, s.err
}

type recordedMessage struct {
	Subject string
	Body    string
}

type recorderNotifier struct {
	mu   sync.Mutex
	sent []recordedMessage
}

func (n *recorderNotifier) Send(subject, body, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, recordedMessage{subject, body})
	return nil
}

func (n *recorderNotifier) messages() []recordedMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]recordedMessage(nil), n.sent...)
}

func recorderFactory(n *recorderNotifier) NotifierFactory {
	return func(_ *model.Settings) []Notifier { return []Notifier{n} }
}

// quietSettings disables the import and recall phases so a test exercises
// only the price sweep.
func quietSettings() *model.Settings {
	return &model.Settings{
		CheckIntervalMinutes: model.DefaultIntervalMin,
		AutoImportOrders:     false,
		RecallScanEnabled:    false,
		AutoArchive:          false,
	}
}

func checkedProduct() *model.Product {
	p := &model.Product{
		ID:            uuid.New(),
		ASIN:          "B08N5WRWNW",
		Title:         "Widget Pro 3000",
		URL:           "https://www.amazon.com/dp/B08N5WRWNW",
		IsActive:      true,
		PurchasePrice: dp("50.00"),
		AlertNewPct:   dp("10"),
		RecallStatus:  model.RecallNone,
	}
	p.ApplyScrape("", dp("50.00"), nil) // establish a baseline
	return p
}

// ── Price sweep ──────────────────────────────────────────────────────────────

func TestRunOnce_AlertSentOnDrop(t *testing.T) {
	repo := newStubProductRepo()
	p := checkedProduct()
	require.NoError(t, repo.Create(context.Background(), p))

	notifier := &recorderNotifier{}
	c := NewCycle(repo, &stubSettingsRepo{st: quietSettings()},
		&stubScraper{res: &scraper.Result{Title: "Widget Pro 3000", NewPrice: dp("30.00")}},
		&stubImporter{}, nil, recorderFactory(notifier))

	require.NoError(t, c.RunOnce(context.Background()))

	msgs := notifier.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Subject, "Price alert")
	assert.Contains(t, msgs[0].Body, "NEW dropped 40.0% ($20.00) to $30.00")
	assert.Contains(t, msgs[0].Body, "(paid $50.00)")

	saved, err := repo.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.NotNil(t, saved.LastAlertSent)
	assert.True(t, saved.CurrentNewPrice.Equal(d("30.00")))
}

func TestRunOnce_CooldownSuppressesAlert(t *testing.T) {
	repo := newStubProductRepo()
	p := checkedProduct()
	sent := time.Now().Add(-time.Hour)
	p.LastAlertSent = &sent
	require.NoError(t, repo.Create(context.Background(), p))

	notifier := &recorderNotifier{}
	c := NewCycle(repo, &stubSettingsRepo{st: quietSettings()},
		&stubScraper{res: &scraper.Result{NewPrice: dp("30.00")}},
		&stubImporter{}, nil, recorderFactory(notifier))

	require.NoError(t, c.RunOnce(context.Background()))

	assert.Empty(t, notifier.messages())
	// The price still gets recorded.
	saved, _ := repo.FindByID(context.Background(), p.ID)
	assert.True(t, saved.CurrentNewPrice.Equal(d("30.00")))
}

func TestRunOnce_FirstCheckOnlyBaselines(t *testing.T) {
	repo := newStubProductRepo()
	p := &model.Product{
		ID:            uuid.New(),
		ASIN:          "B08N5WRWNW",
		Title:         "Widget Pro 3000",
		IsActive:      true,
		PurchasePrice: dp("50.00"),
		AlertNewPct:   dp("10"),
		RecallStatus:  model.RecallNone,
	}
	require.NoError(t, repo.Create(context.Background(), p))

	notifier := &recorderNotifier{}
	c := NewCycle(repo, &stubSettingsRepo{st: quietSettings()},
		&stubScraper{res: &scraper.Result{NewPrice: dp("30.00")}},
		&stubImporter{}, nil, recorderFactory(notifier))

	require.NoError(t, c.RunOnce(context.Background()))

	assert.Empty(t, notifier.messages())
	saved, _ := repo.FindByID(context.Background(), p.ID)
	require.NotNil(t, saved.LastChecked)
	assert.True(t, saved.LowestNewPrice.Equal(d("30.00")))
	assert.True(t, saved.HighestNewPrice.Equal(d("30.00")))
}

func TestRunOnce_BatchedAlertsCollapseToOneMessage(t *testing.T) {
	repo := newStubProductRepo()
	p1 := checkedProduct()
	p2 := checkedProduct()
	p2.ID = uuid.New()
	p2.ASIN = "B07XJ8C8F5"
	p2.Title = "Gadget Max 500"
	require.NoError(t, repo.Create(context.Background(), p1))
	require.NoError(t, repo.Create(context.Background(), p2))

	st := quietSettings()
	st.BatchEmailAlerts = true

	notifier := &recorderNotifier{}
	c := NewCycle(repo, &stubSettingsRepo{st: st},
		&stubScraper{res: &scraper.Result{NewPrice: dp("30.00")}},
		&stubImporter{}, nil, recorderFactory(notifier))

	require.NoError(t, c.RunOnce(context.Background()))

	msgs := notifier.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Subject, "2 products")
	assert.Contains(t, msgs[0].Body, "Widget Pro 3000")
	assert.Contains(t, msgs[0].Body, "Gadget Max 500")
}

func TestRunOnce_GlobalThresholdOverridesItem(t *testing.T) {
	repo := newStubProductRepo()
	p := checkedProduct() // item threshold 10%
	require.NoError(t, repo.Create(context.Background(), p))

	st := quietSettings()
	st.GlobalAlertsEnabled = true
	st.GlobalNewPct = dp("50")

	notifier := &recorderNotifier{}
	c := NewCycle(repo, &stubSettingsRepo{st: st},
		&stubScraper{res: &scraper.Result{NewPrice: dp("30.00")}},
		&stubImporter{}, nil, recorderFactory(notifier))

	require.NoError(t, c.RunOnce(context.Background()))

	// 40% drop beats the 10% item threshold but not the 50% global one.
	assert.Empty(t, notifier.messages())
}

func TestRunOnce_ScrapeFailureLeavesProductUntouched(t *testing.T) {
	repo := newStubProductRepo()
	p := checkedProduct()
	require.NoError(t, repo.Create(context.Background(), p))

	notifier := &recorderNotifier{}
	c := NewCycle(repo, &stubSettingsRepo{st: quietSettings()},
		&stubScraper{err: errors.New("boom")},
		&stubImporter{}, nil, recorderFactory(notifier))

	require.NoError(t, c.RunOnce(context.Background()))

	saved, _ := repo.FindByID(context.Background(), p.ID)
	assert.True(t, saved.CurrentNewPrice.Equal(d("50.00")))
	assert.Empty(t, notifier.messages())
}

// ── Archival ─────────────────────────────────────────────────────────────────

func TestRunOnce_AutoArchivesExpired(t *testing.T) {
	repo := newStubProductRepo()
	p := checkedProduct()
	past := time.Now().Add(-24 * time.Hour)
	p.ExpiresAt = &past
	require.NoError(t, repo.Create(context.Background(), p))

	st := quietSettings()
	st.AutoArchive = true

	c := NewCycle(repo, &stubSettingsRepo{st: st},
		&stubScraper{res: &scraper.Result{}},
		&stubImporter{}, nil, recorderFactory(&recorderNotifier{}))

	require.NoError(t, c.RunOnce(context.Background()))

	saved, _ := repo.FindByID(context.Background(), p.ID)
	assert.True(t, saved.IsArchived)
	assert.NotNil(t, saved.ArchivedAt)
}

// ── Order import ─────────────────────────────────────────────────────────────

func TestScanOrdersNow_CreatesProductWithTargetAndExpiry(t *testing.T) {
	repo := newStubProductRepo()
	settings := &stubSettingsRepo{st: &model.Settings{
		EmailAddress:          "user@example.com",
		EmailPassword:         "app-password",
		DefaultExpirationDays: 35,
	}}

	ordered := time.Now().Add(-48 * time.Hour)
	imp := &stubImporter{orders: []importer.Order{{
		ASIN:        "B08N5WRWNW",
		ProductName: "Widget Pro 3000",
		OrderDate:   ordered,
		OrderID:     "123-4567890-1234567",
		Quantity:    1,
		ItemPrice:   dp("49.99"),
	}}}

	c := NewCycle(repo, settings, &stubScraper{}, imp, nil, recorderFactory(&recorderNotifier{}))

	applied, err := c.ScanOrdersNow(context.Background(), 32)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	p, err := repo.FindByASIN(context.Background(), "B08N5WRWNW")
	require.NoError(t, err)
	assert.Equal(t, model.SourceEmail, p.Source)
	require.NotNil(t, p.TargetPrice)
	assert.True(t, p.TargetPrice.Equal(d("49.98"))) // one cent under the paid price
	require.NotNil(t, p.ExpiresAt)
	assert.WithinDuration(t, ordered.AddDate(0, 0, 35), *p.ExpiresAt, time.Second)

	st, _ := settings.Get(context.Background())
	assert.NotNil(t, st.LastEmailScan)
}

func TestScanOrdersNow_RestoresArchivedOnReorder(t *testing.T) {
	repo := newStubProductRepo()
	p := checkedProduct()
	p.Archive(time.Now().Add(-time.Hour))
	require.NoError(t, repo.Create(context.Background(), p))

	settings := &stubSettingsRepo{st: &model.Settings{
		EmailAddress:          "user@example.com",
		EmailPassword:         "app-password",
		DefaultExpirationDays: 35,
	}}
	imp := &stubImporter{orders: []importer.Order{{
		ASIN:      p.ASIN,
		OrderDate: time.Now(),
		OrderID:   "123-4567890-1234567",
		Quantity:  2,
		ItemPrice: dp("45.00"),
	}}}

	c := NewCycle(repo, settings, &stubScraper{}, imp, nil, recorderFactory(&recorderNotifier{}))

	_, err := c.ScanOrdersNow(context.Background(), 32)
	require.NoError(t, err)

	saved, _ := repo.FindByID(context.Background(), p.ID)
	assert.False(t, saved.IsArchived)
	assert.Equal(t, 2, saved.Quantity)
	assert.True(t, saved.PurchasePrice.Equal(d("45.00")))
	assert.True(t, saved.TargetPrice.Equal(d("44.99")))
}

func TestScanOrdersNow_RequiresCredentials(t *testing.T) {
	c := NewCycle(newStubProductRepo(), &stubSettingsRepo{st: &model.Settings{}},
		&stubScraper{}, &stubImporter{}, nil, recorderFactory(&recorderNotifier{}))

	_, err := c.ScanOrdersNow(context.Background(), 32)
	assert.ErrorIs(t, err, ErrEmailNotConfigured)
}

// ── Recall scan ──────────────────────────────────────────────────────────────

func recallServers(t *testing.T, recalls []recall.CPSCRecall) *recall.Reconciler {
	t.Helper()
	cpscSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(recalls)
	}))
	t.Cleanup(cpscSrv.Close)
	fdaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(fdaSrv.Close)

	return recall.NewReconciler(
		&recall.CPSCClient{BaseURL: cpscSrv.URL, HTTPClient: cpscSrv.Client()},
		&recall.FDAClient{BaseURL: fdaSrv.URL, HTTPClient: fdaSrv.Client()},
	)
}

func TestScanRecallsNow_StampsUnmatchedProducts(t *testing.T) {
	repo := newStubProductRepo()
	p := checkedProduct()
	require.NoError(t, repo.Create(context.Background(), p))

	settings := &stubSettingsRepo{st: quietSettings()}
	c := NewCycle(repo, settings, &stubScraper{}, &stubImporter{},
		recallServers(t, nil), recorderFactory(&recorderNotifier{}))

	matched, err := c.ScanRecallsNow(context.Background())
	require.NoError(t, err)
	assert.Zero(t, matched)

	saved, _ := repo.FindByID(context.Background(), p.ID)
	assert.Equal(t, model.RecallNone, saved.RecallStatus)
	assert.NotNil(t, saved.LastRecallCheck)

	st, _ := settings.Get(context.Background())
	assert.NotNil(t, st.LastRecallScan)
}

func TestScanRecallsNow_MatchNotifiesAndPersists(t *testing.T) {
	repo := newStubProductRepo()
	p := checkedProduct()
	p.Title = "Acme Blender Pitcher 012345678905"
	require.NoError(t, repo.Create(context.Background(), p))

	definitive := recall.CPSCRecall{
		RecallID:     1234,
		RecallNumber: "24-101",
		Title:        "Acme Blender Pitchers Recalled",
		Products:     []recall.CPSCProduct{{Name: "Acme Blender Pitcher Deluxe"}},
		ProductUPCs:  []recall.CPSCUPC{{UPC: "012345678905"}},
		Hazards:      []recall.CPSCName{{Name: "Laceration"}},
	}

	notifier := &recorderNotifier{}
	c := NewCycle(repo, &stubSettingsRepo{st: quietSettings()}, &stubScraper{},
		&stubImporter{}, recallServers(t, []recall.CPSCRecall{definitive}),
		recorderFactory(notifier))

	matched, err := c.ScanRecallsNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, matched)

	saved, _ := repo.FindByID(context.Background(), p.ID)
	assert.Equal(t, model.RecallMatched, saved.RecallStatus)
	require.NotNil(t, saved.RecallNumber)
	assert.Equal(t, "24-101", *saved.RecallNumber)

	msgs := notifier.messages()
	require.Len(t, msgs, 1)
	assert.True(t, strings.Contains(msgs[0].Subject, "recall") ||
		strings.Contains(msgs[0].Subject, "Recall"))
}

func TestScanRecallsNow_SkipsMatchedAndPlaceholderTitles(t *testing.T) {
	repo := newStubProductRepo()

	matched := checkedProduct()
	matched.RecallStatus = model.RecallMatched
	require.NoError(t, repo.Create(context.Background(), matched))

	placeholder := checkedProduct()
	placeholder.ID = uuid.New()
	placeholder.ASIN = "B07XJ8C8F5"
	placeholder.Title = "Loading B07XJ8C8F5"
	require.NoError(t, repo.Create(context.Background(), placeholder))

	c := NewCycle(repo, &stubSettingsRepo{st: quietSettings()}, &stubScraper{},
		&stubImporter{}, recallServers(t, nil), recorderFactory(&recorderNotifier{}))

	n, err := c.ScanRecallsNow(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	savedMatched, _ := repo.FindByID(context.Background(), matched.ID)
	assert.Equal(t, model.RecallMatched, savedMatched.RecallStatus)
	savedPlaceholder, _ := repo.FindByID(context.Background(), placeholder.ID)
	assert.Nil(t, savedPlaceholder.LastRecallCheck)
}

// ── Scheduling ───────────────────────────────────────────────────────────────

func TestNextWait_JitterStaysInBounds(t *testing.T) {
	st := quietSettings()
	st.CheckIntervalMinutes = 180
	c := NewCycle(newStubProductRepo(), &stubSettingsRepo{st: st},
		&stubScraper{}, &stubImporter{}, nil, recorderFactory(&recorderNotifier{}))

	base := 180 * time.Minute
	for i := 0; i < 50; i++ {
		wait := c.nextWait(context.Background())
		assert.GreaterOrEqual(t, wait, base-IntervalJitter)
		assert.LessOrEqual(t, wait, base+IntervalJitter)
	}
}
