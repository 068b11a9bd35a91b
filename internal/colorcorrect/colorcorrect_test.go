package colorcorrect

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/testutil"
)

// twoTonePage builds a page that is mostly paper with an ink block
// large enough to anchor the dark pool.
func twoTonePage(paper, ink color.NRGBA) *image.NRGBA {
	img := testutil.UniformImage(400, 400, paper)
	block := image.Rect(50, 50, 150, 150)
	draw.Draw(img, block, &image.Uniform{ink}, image.Point{}, draw.Src)
	return img
}

func TestAnalyzeTwoTonePage(t *testing.T) {
	paper := color.NRGBA{R: 240, G: 230, B: 200, A: 255}
	ink := color.NRGBA{R: 40, G: 35, B: 30, A: 255}
	// The yellowed paper's chroma (240−200 = 40) exceeds the default
	// saturation threshold of 30; raise it so the paper samples count.
	opts := DefaultOptions()
	opts.SaturationThreshold = 45
	stats, err := Analyze(twoTonePage(paper, ink), opts)
	require.NoError(t, err)
	require.True(t, stats.Valid)

	assert.InDelta(t, 240, stats.Paper[0], 2)
	assert.InDelta(t, 230, stats.Paper[1], 2)
	assert.InDelta(t, 200, stats.Paper[2], 2)
	assert.InDelta(t, 40, stats.Ink[0], 2)
	assert.InDelta(t, 35, stats.Ink[1], 2)
	assert.InDelta(t, 30, stats.Ink[2], 2)
}

func TestAnalyzeAllWhitePageInvalid(t *testing.T) {
	img := testutil.UniformImage(400, 400, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	stats, err := Analyze(img, DefaultOptions())
	require.NoError(t, err)
	assert.False(t, stats.Valid)
}

func TestAnalyzeSaturatedPixelsDiscarded(t *testing.T) {
	// A pure-color illustration page: all pixels exceed the chroma
	// threshold, so no achromatic samples remain.
	img := testutil.UniformImage(400, 400, color.NRGBA{R: 255, G: 0, B: 0, A: 255})
	stats, err := Analyze(img, DefaultOptions())
	require.NoError(t, err)
	assert.False(t, stats.Valid)
}

func TestAnalyzeIllustrationDoesNotPoisonPaper(t *testing.T) {
	paper := color.NRGBA{R: 250, G: 250, B: 250, A: 255}
	ink := color.NRGBA{R: 20, G: 20, B: 20, A: 255}
	img := twoTonePage(paper, ink)
	// Bright saturated illustration patch.
	draw.Draw(img, image.Rect(200, 200, 350, 350),
		&image.Uniform{color.NRGBA{R: 255, G: 80, B: 80, A: 255}}, image.Point{}, draw.Src)

	stats, err := Analyze(img, DefaultOptions())
	require.NoError(t, err)
	require.True(t, stats.Valid)
	// Paper estimate stays achromatic despite the red patch.
	assert.InDelta(t, stats.Paper[0], stats.Paper[2], 3)
}

func TestDecideYellowedPaper(t *testing.T) {
	stats := make([]Stats, 0, 10)
	for range 10 {
		stats = append(stats, Stats{
			Paper: [3]float64{240, 230, 200},
			Ink:   [3]float64{40, 35, 30},
			Valid: true,
		})
	}
	p := Decide(stats, DefaultOptions())
	// B channel: scale = 255/(200−30) = 1.5
	assert.InDelta(t, 255.0/170.0, p.Scale[2], 1e-6)
	assert.InDelta(t, 255.0/200.0, p.Scale[0], 1e-6)
}

func TestDecideMapsMedianPaperAndInk(t *testing.T) {
	stats := []Stats{}
	for range 8 {
		stats = append(stats, Stats{
			Paper: [3]float64{240, 230, 200},
			Ink:   [3]float64{40, 35, 30},
			Valid: true,
		})
	}
	p := Decide(stats, DefaultOptions())

	paperPage := testutil.UniformImage(50, 50, color.NRGBA{R: 240, G: 230, B: 200, A: 255})
	out, err := Apply(paperPage, p)
	require.NoError(t, err)
	assert.InDelta(t, 255, out.Pix[0], 1)
	assert.InDelta(t, 255, out.Pix[1], 1)
	assert.InDelta(t, 255, out.Pix[2], 1)

	inkPage := testutil.UniformImage(50, 50, color.NRGBA{R: 40, G: 35, B: 30, A: 255})
	out, err = Apply(inkPage, p)
	require.NoError(t, err)
	assert.InDelta(t, 0, out.Pix[0], 1)
	assert.InDelta(t, 0, out.Pix[1], 1)
	assert.InDelta(t, 0, out.Pix[2], 1)
}

func TestDecideOutlierPageRejected(t *testing.T) {
	stats := []Stats{}
	for range 9 {
		stats = append(stats, Stats{
			Paper: [3]float64{240, 240, 240},
			Ink:   [3]float64{30, 30, 30},
			Valid: true,
		})
	}
	// A page scanned against a black cover: far-off paper estimate.
	stats = append(stats, Stats{
		Paper: [3]float64{90, 90, 90},
		Ink:   [3]float64{10, 10, 10},
		Valid: true,
	})
	p := Decide(stats, DefaultOptions())
	// The inlier median is untouched by the outlier.
	assert.InDelta(t, 255.0/210.0, p.Scale[0], 1e-6)
}

func TestDecideLowDynamicRangeChannelIsIdentity(t *testing.T) {
	stats := []Stats{{
		Paper: [3]float64{200, 200, 36},
		Ink:   [3]float64{30, 30, 30},
		Valid: true,
	}}
	p := Decide(stats, DefaultOptions())
	assert.Equal(t, 1.0, p.Scale[2])
	assert.Equal(t, 0.0, p.Offset[2])
	assert.InDelta(t, 1.5, p.Scale[0], 1e-6)
}

func TestDecideScaleClamped(t *testing.T) {
	stats := []Stats{{
		Paper: [3]float64{60, 60, 60},
		Ink:   [3]float64{40, 40, 40},
		Valid: true,
	}}
	p := Decide(stats, DefaultOptions())
	for c := range 3 {
		assert.Equal(t, 4.0, p.Scale[c])
	}
}

func TestDecideNoValidPagesIsIdentity(t *testing.T) {
	p := Decide([]Stats{{Valid: false}, {Valid: false}}, DefaultOptions())
	assert.True(t, p.IsIdentity())
	p = Decide(nil, DefaultOptions())
	assert.True(t, p.IsIdentity())
}

func TestApplyIdentityIsNoOp(t *testing.T) {
	cfg := testutil.DefaultPageConfig()
	page := testutil.NewPage(cfg)
	out, err := Apply(page, Identity())
	require.NoError(t, err)
	assert.True(t, testutil.IdenticalImages(page, out))
}

func TestApplyGhostSuppression(t *testing.T) {
	stats := []Stats{}
	for range 8 {
		stats = append(stats, Stats{
			Paper: [3]float64{250, 250, 250},
			Ink:   [3]float64{5, 5, 5},
			Valid: true,
		})
	}
	p := Decide(stats, DefaultOptions())

	// A faint ghost: just above the suppression threshold after
	// correction. scale ≈ 255/245, offset ≈ −scale·5.
	ghost := testutil.UniformImage(10, 10, color.NRGBA{R: 242, G: 242, B: 242, A: 255})
	out, err := Apply(ghost, p)
	require.NoError(t, err)
	// Corrected value ≈ 246.6; blending pushes it further toward white.
	assert.GreaterOrEqual(t, out.Pix[0], uint8(247))
}

func TestApplyWhiteClipSnapsToWhite(t *testing.T) {
	p := Identity()
	p.Scale = [3]float64{1.001, 1.001, 1.001} // non-identity so suppression runs
	near := testutil.UniformImage(10, 10, color.NRGBA{R: 252, G: 252, B: 252, A: 255})
	out, err := Apply(near, p)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), out.Pix[0])
	assert.Equal(t, uint8(255), out.Pix[1])
	assert.Equal(t, uint8(255), out.Pix[2])
}

func TestMedianFloat(t *testing.T) {
	assert.InDelta(t, 3.0, medianFloat([]float64{5, 1, 3, 2, 4}), 1e-6)
	assert.InDelta(t, 2.5, medianFloat([]float64{1, 2, 3, 4}), 1e-6)
	assert.Equal(t, 0.0, medianFloat(nil))
}
