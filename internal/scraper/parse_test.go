package scraper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"$19.99", "19.99"},
		{"Price: $1,299.00 with free shipping", "1299.00"},
		{"$1.00", "1.00"},
		{"$100000.00", "100000.00"},
	}
	for _, tc := range cases {
		got := ParsePrice(tc.in)
		require.NotNil(t, got, tc.in)
		assert.Equal(t, tc.want, got.StringFixed(2), tc.in)
	}
}

func TestParsePrice_RejectsNoise(t *testing.T) {
	cases := []string{
		"",
		"no price here",
		"19.99",       // no dollar sign
		"$0.50",       // below floor
		"$999,999.00", // above ceiling
		"$19",         // no cents
	}
	for _, in := range cases {
		assert.Nil(t, ParsePrice(in), in)
	}
}

func TestExtractASIN(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"B08N5WRWNW", "B08N5WRWNW"},
		{"b08n5wrwnw", "B08N5WRWNW"},
		{"https://www.amazon.com/dp/B08N5WRWNW", "B08N5WRWNW"},
		{"https://www.amazon.com/dp/B08N5WRWNW?ref=ppx_yo2ov", "B08N5WRWNW"},
		{"https://www.amazon.com/Some-Product-Name/dp/B08N5WRWNW/ref=sr_1_3", "B08N5WRWNW"},
		{"https://www.amazon.com/gp/product/B08N5WRWNW", "B08N5WRWNW"},
		{"https://www.amazon.com/gp/aw/d/B08N5WRWNW", "B08N5WRWNW"},
		{"", ""},
		{"not a url", ""},
		{"https://www.amazon.com/s?k=blender", ""},
		{"B08N5WRWN", ""}, // nine chars
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExtractASIN(tc.in), tc.in)
	}
}

func TestTruncateTitle(t *testing.T) {
	short := "Widget Pro 3000"
	assert.Equal(t, short, TruncateTitle("  "+short+"  "))

	long := strings.Repeat("x", TitleMaxLen+20)
	got := TruncateTitle(long)
	assert.Len(t, got, TitleMaxLen)
}
