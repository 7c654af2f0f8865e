package recall

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// A similar-but-different recall from the same brand must stay below the
// acceptance threshold: brand alone is not a match.
func TestScoreCPSC_BrandWithoutTypeOverlapCapped(t *testing.T) {
	rec := &CPSCRecall{
		Products: []CPSCProduct{{Name: "Weber Spirit Grill Model E-210"}},
	}
	score := ScoreCPSC("Weber Genesis II Gas Grill E-335", rec)

	assert.Equal(t, 30, score)
	assert.Less(t, score, MinMatchScore)
}

// Strong product-type overlap without the brand can never alert.
func TestScoreCPSC_TypeOverlapWithoutBrandCapped(t *testing.T) {
	rec := &CPSCRecall{
		Products: []CPSCProduct{{Name: "SuperBrand Glass Blender Pitcher Set"}},
	}
	score := ScoreCPSC("Acme Glass Blender Pitcher", rec)

	assert.LessOrEqual(t, score, 15)
}

func TestScoreCPSC_BrandAndTypeClearThreshold(t *testing.T) {
	rec := &CPSCRecall{
		Products: []CPSCProduct{{Name: "Acme Glass Blender Pitcher 8-Cup"}},
	}
	score := ScoreCPSC("Acme Glass Blender Pitcher", rec)

	assert.GreaterOrEqual(t, score, MinMatchScore)
}

func TestScoreCPSC_ModelNumberBoost(t *testing.T) {
	base := &CPSCRecall{
		Products: []CPSCProduct{{Name: "Acme Glass Blender Pitcher"}},
	}
	withModel := &CPSCRecall{
		Products: []CPSCProduct{{Name: "Acme Glass Blender Pitcher", Model: "BL7500"}},
	}
	title := "Acme Glass Blender Pitcher BL7500"

	assert.Greater(t, ScoreCPSC(title, withModel), ScoreCPSC(title, base))
}

// A multi-product recall bundle only counts its single best sub-product, so
// unrelated items in the same recall cannot inflate the score.
func TestScoreCPSC_BestSubProductOnly(t *testing.T) {
	bundle := &CPSCRecall{
		Products: []CPSCProduct{
			{Name: "Acme Glass Blender Pitcher"},
			{Name: "Acme Toaster Oven"},
			{Name: "Acme Desk Lamp"},
		},
	}
	single := &CPSCRecall{
		Products: []CPSCProduct{{Name: "Acme Glass Blender Pitcher"}},
	}
	title := "Acme Glass Blender Pitcher"

	assert.Equal(t, ScoreCPSC(title, single), ScoreCPSC(title, bundle))
}

// A UPC hit is definitive but the gates still apply: without a brand match
// the result stays capped.
func TestScoreCPSC_UPCWithoutBrandStaysCapped(t *testing.T) {
	rec := &CPSCRecall{
		Products:    []CPSCProduct{{Name: "Unrelated Gadget"}},
		ProductUPCs: []CPSCUPC{{UPC: "012345678905"}},
	}
	score := ScoreCPSC("Mystery Device 012345678905", rec)

	assert.Equal(t, 15, score)
}

func TestScoreCPSC_UPCWithBrandAndTypeIsDefinitive(t *testing.T) {
	rec := &CPSCRecall{
		Products:    []CPSCProduct{{Name: "Acme Blender Pitcher Deluxe"}},
		ProductUPCs: []CPSCUPC{{UPC: "012345678905"}},
	}
	score := ScoreCPSC("Acme Blender Pitcher 012345678905", rec)

	assert.Equal(t, 100, score)
}

func TestScoreCPSC_EmptyInputs(t *testing.T) {
	assert.Equal(t, 0, ScoreCPSC("", &CPSCRecall{}))
	assert.Equal(t, 0, ScoreCPSC("Acme Blender", nil))
}

func TestScoreFDA_BrandInFirmAndDescriptionOverlap(t *testing.T) {
	rec := &FDARecall{
		ProductDescription: "Nature Valley Crunchy Granola Bars Oats n Honey",
		RecallingFirm:      "General Mills",
		ReasonForRecall:    "undeclared peanuts",
	}
	score := ScoreFDA("Nature Valley Granola Bars", rec)

	assert.GreaterOrEqual(t, score, MinMatchScore)
}

func TestScoreFDA_BrandBuriedInDescriptionNotEnough(t *testing.T) {
	// Brand appears past the first three description words and not in the
	// firm name, so the brand gate stays closed.
	rec := &FDARecall{
		ProductDescription: "Crunchy Granola Bars by Acme Snack Division",
		RecallingFirm:      "Wholesale Foods Inc",
	}
	score := ScoreFDA("Acme Granola Bars Crunchy Snack", rec)

	assert.LessOrEqual(t, score, 15)
}

func TestScoreFDA_TypeOverlapWithoutBrandCapped(t *testing.T) {
	rec := &FDARecall{
		ProductDescription: "Crunchy Granola Bars Family Pack",
		RecallingFirm:      "Wholesale Foods Inc",
	}
	score := ScoreFDA("Acme Granola Bars Crunchy Snack", rec)

	assert.LessOrEqual(t, score, 15)
}

func TestHybridWords_CapturesModelCodes(t *testing.T) {
	words := hybridWords("Dewalt D3 Compact Drill 20V")

	assert.True(t, words["d3"])
	assert.True(t, words["20v"])
	assert.True(t, words["compact"])
	assert.True(t, words["drill"])
	// Bare lowercase short grammar words stay out.
	assert.False(t, words["the"])
}
