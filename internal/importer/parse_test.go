package importer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderDate = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func TestOrderSubject(t *testing.T) {
	cases := []struct {
		subject string
		want    bool
	}{
		{"Ordered: \"Widget Pro 3000\"", true},
		{"Your Amazon.com order of Widget Pro 3000", true},
		{"Your Amazon.com order has shipped", false},
		{"Delivered: Widget Pro 3000", false},
		{"Your refund for Widget Pro 3000", false},
		{"Ordered: Widget, arriving tomorrow", false},
		{"Weekly deals just for you", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, orderSubject(tc.subject), tc.subject)
	}
}

func TestExtractASINs_FedRedirectPreferred(t *testing.T) {
	raw := `<a href="https://www.amazon.com/gp/r.html?C=abc&R=def&T=C&U=https%3A%2F%2Fwww.amazon.com%2Fdp%2FB08N5WRWNW%3Fref_%3Dpe_fed_asin_title">item</a>` +
		`<a href="https://www.amazon.com/dp/B000RECOMND">you may also like</a>`

	asins := extractASINs(raw)
	require.Len(t, asins, 1)
	assert.Equal(t, "B08N5WRWNW", asins[0])
}

func TestExtractASINs_PlainFallbackScopedToOrderSection(t *testing.T) {
	raw := `Your order: https://www.amazon.com/dp/B08N5WRWNW details here` +
		` Continue shopping https://www.amazon.com/dp/B000RECOMND`

	asins := extractASINs(raw)
	require.Len(t, asins, 1)
	assert.Equal(t, "B08N5WRWNW", asins[0])
}

func TestExtractASINs_DedupesPreservingOrder(t *testing.T) {
	raw := `dp%2FB08N5WRWNW%3Fref_%3Dpe_fed_asin_img` +
		` dp%2FB07XJ8C8F5%3Fref_%3Dpe_fed_asin_title` +
		` dp%2FB08N5WRWNW%3Fref_%3Dpe_fed_asin_title`

	asins := extractASINs(raw)
	require.Len(t, asins, 2)
	assert.Equal(t, []string{"B08N5WRWNW", "B07XJ8C8F5"}, asins)
}

func TestProductNameFromSubject(t *testing.T) {
	cases := []struct {
		subject string
		want    string
	}{
		{`Ordered: "Widget Pro 3000"`, "Widget Pro 3000"},
		{"Ordered: 2 Widget Pro 3000", "Widget Pro 3000"},
		{"Ordered: Widget Pro 3000 and 2 more items", "Widget Pro 3000"},
		{"Ordered: Widget Pro 3000...", "Widget Pro 3000"},
		{"Your Amazon.com order of Widget Pro 3000", "Widget Pro 3000"},
		{"Your Amazon.com order has been received", ""},
		{"Ordered: ab", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, productNameFromSubject(tc.subject), tc.subject)
	}
}

func TestExtractQuantityPrice(t *testing.T) {
	plain := "Widget Pro 3000\nQuantity: 2 49.99 USD\n99.98 USD Grand Total"
	qty, price := extractQuantityPrice(plain, false)
	assert.Equal(t, 2, qty)
	require.NotNil(t, price)
	assert.Equal(t, "49.99", price.StringFixed(2))
}

func TestExtractQuantityPrice_GrandTotalFallback(t *testing.T) {
	plain := "Widget Pro 3000\n49.99 USD Grand Total"
	qty, price := extractQuantityPrice(plain, false)
	assert.Equal(t, 1, qty)
	require.NotNil(t, price)
	assert.Equal(t, "49.99", price.StringFixed(2))
}

func TestExtractQuantityPrice_MultiItemDropsPrice(t *testing.T) {
	plain := "Quantity: 2 49.99 USD\n99.98 USD Grand Total"
	qty, price := extractQuantityPrice(plain, true)
	assert.Equal(t, 2, qty)
	assert.Nil(t, price)
}

func TestParseMessage_SingleItem(t *testing.T) {
	raw := `Order #123-4567890-1234567 dp%2FB08N5WRWNW%3Fref_%3Dpe_fed_asin_title`
	plain := "Quantity: 1 49.99 USD"
	seen := make(map[string]bool)

	orders := parseMessage(`Ordered: "Widget Pro 3000"`, orderDate, raw, plain, seen)
	require.Len(t, orders, 1)

	o := orders[0]
	assert.Equal(t, "B08N5WRWNW", o.ASIN)
	assert.Equal(t, "Widget Pro 3000", o.ProductName)
	assert.Equal(t, "123-4567890-1234567", o.OrderID)
	assert.Equal(t, 1, o.Quantity)
	require.NotNil(t, o.ItemPrice)
	assert.Equal(t, "49.99", o.ItemPrice.StringFixed(2))
	assert.Equal(t, orderDate, o.OrderDate)
}

func TestParseMessage_MultiItemOrderHasNoItemPrice(t *testing.T) {
	raw := `Order #123-4567890-1234567` +
		` dp%2FB08N5WRWNW%3Fref_%3Dpe_fed_asin_title` +
		` dp%2FB07XJ8C8F5%3Fref_%3Dpe_fed_asin_title`
	plain := "149.98 USD Grand Total"
	seen := make(map[string]bool)

	orders := parseMessage("Ordered: Widget Pro 3000 and 1 more item", orderDate, raw, plain, seen)
	require.Len(t, orders, 2)
	for _, o := range orders {
		assert.Nil(t, o.ItemPrice, o.ASIN)
	}
}

func TestParseMessage_DuplicateOrderIDSkipped(t *testing.T) {
	raw := `Order #123-4567890-1234567 dp%2FB08N5WRWNW%3Fref_%3Dpe_fed_asin_title`
	seen := make(map[string]bool)

	first := parseMessage(`Ordered: "Widget Pro 3000"`, orderDate, raw, "", seen)
	require.Len(t, first, 1)

	second := parseMessage(`Ordered: "Widget Pro 3000"`, orderDate, raw, "", seen)
	assert.Nil(t, second)
}

func TestParseMessage_IrrelevantSubject(t *testing.T) {
	raw := `dp%2FB08N5WRWNW%3Fref_%3Dpe_fed_asin_title`
	assert.Nil(t, parseMessage("Your package has shipped", orderDate, raw, "", map[string]bool{}))
}

func TestParseMessage_NoASINFallsOut(t *testing.T) {
	assert.Nil(t, parseMessage(`Ordered: "Widget Pro 3000"`, orderDate, "no links here", "", map[string]bool{}))
}

func TestParseMessage_NamelessSubjectGetsPlaceholder(t *testing.T) {
	raw := `dp%2FB08N5WRWNW%3Fref_%3Dpe_fed_asin_title`
	orders := parseMessage("Your Amazon.com order has been received", orderDate, raw, "", map[string]bool{})
	require.Len(t, orders, 1)
	assert.Equal(t, "Order Item B08N5WRWNW", orders[0].ProductName)
}
