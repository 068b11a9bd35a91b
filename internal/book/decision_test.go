package book

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/colorcorrect"
	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/margin"
	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/pagenum"
	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/raster"
)

func testAnalyses(n int) []PageAnalysis {
	analyses := make([]PageAnalysis, n)
	for i := range n {
		analyses[i] = PageAnalysis{
			PageIndex: i,
			Margin: margin.Detection{
				PageIndex: i,
				Margins:   margin.Margins{Top: 50, Bottom: 50, Left: 40, Right: 40},
				Content:   raster.Rect{X: 40, Y: 50, W: 520, H: 700},
				Width:     600,
				Height:    800,
			},
			Color: colorcorrect.Stats{
				Paper: [3]float64{240, 235, 220},
				Ink:   [3]float64{30, 30, 30},
				Valid: true,
			},
			PageNum: pagenum.Detection{
				PageIndex: i,
				Number:    i + 1,
				Position:  raster.Rect{X: 280, Y: 760, W: 20, H: 14},
				Found:     true,
			},
		}
	}
	return analyses
}

func TestAggregateProducesAllDecisions(t *testing.T) {
	bk := PageBook{PageCount: 10, Width: 600, Height: 800}
	d := Aggregate(bk, testAnalyses(10), AggregateOptions{
		Color:         colorcorrect.DefaultOptions(),
		PageNum:       pagenum.DefaultOptions(),
		ColorEnabled:  true,
		OffsetEnabled: true,
	})

	assert.Equal(t, margin.Margins{Top: 50, Bottom: 50, Left: 40, Right: 40}, d.Unified)
	assert.Equal(t, raster.Rect{X: 40, Y: 50, W: 520, H: 700}, d.Crops.Odd)
	assert.False(t, d.Color.IsIdentity())
	assert.Equal(t, 0, d.Offsets.PageNumberShift)
	assert.InDelta(t, 1.0, d.Offsets.Confidence, 1e-9)
	require.Len(t, d.Offsets.Shifts, 10)
}

func TestAggregateDisabledStagesAreIdentity(t *testing.T) {
	bk := PageBook{PageCount: 10, Width: 600, Height: 800}
	d := Aggregate(bk, testAnalyses(10), AggregateOptions{
		Color:   colorcorrect.DefaultOptions(),
		PageNum: pagenum.DefaultOptions(),
	})
	assert.True(t, d.Color.IsIdentity())
	assert.Equal(t, 0, d.Offsets.PageNumberShift)
	require.Len(t, d.Offsets.Shifts, 10)
	for _, s := range d.Offsets.Shifts {
		assert.Equal(t, pagenum.Shift{}, s)
	}
}

func TestAggregateSkipsEmptyPages(t *testing.T) {
	analyses := testAnalyses(10)
	// One page the margin detector reported empty.
	analyses[4].Margin = margin.Detection{PageIndex: 4, Width: 600, Height: 800}

	bk := PageBook{PageCount: 10, Width: 600, Height: 800}
	d := Aggregate(bk, analyses, AggregateOptions{})
	// Unified margins come from the nine valid pages.
	assert.Equal(t, margin.Margins{Top: 50, Bottom: 50, Left: 40, Right: 40}, d.Unified)
}

func TestAggregateSinglePageBook(t *testing.T) {
	bk := PageBook{PageCount: 1, Width: 600, Height: 800}
	d := Aggregate(bk, testAnalyses(1), AggregateOptions{})
	// Even parity is empty: whole page.
	assert.Equal(t, raster.WholePage(600, 800), d.Crops.Even)
	// Odd parity has one page, below the fence minimum: unified
	// margins fallback.
	assert.Equal(t, d.Unified.ContentRect(600, 800), d.Crops.Odd)
}

func TestErrorClassification(t *testing.T) {
	err := NewError(KindInput, "open", errors.New("boom"))
	assert.Equal(t, ExitInput, ExitCode(err))
	assert.Contains(t, err.Error(), "input error")

	perr := NewPageError(3, "analyze", errors.New("boom"))
	assert.Equal(t, ExitProcessing, ExitCode(perr))
	assert.Contains(t, perr.Error(), "page 4")

	assert.Equal(t, ExitDependency, ExitCode(NewError(KindDependency, "ocr", errors.New("missing"))))
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitProcessing, ExitCode(errors.New("plain")))
}
