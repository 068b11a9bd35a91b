package margin

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/raster"
	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/testutil"
)

func TestDetectFindsContentBox(t *testing.T) {
	cfg := testutil.DefaultPageConfig()
	cfg.Content = raster.Rect{X: 100, Y: 150, W: 300, H: 400}
	page := testutil.NewPage(cfg)

	det, err := Detect(page, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 100, det.Margins.Left)
	assert.Equal(t, 150, det.Margins.Top)
	assert.Equal(t, cfg.Width-cfg.Content.Right(), det.Margins.Right)
	// The text-block renderer stops at the last full line, so the
	// bottom margin is at least the geometric remainder.
	assert.GreaterOrEqual(t, det.Margins.Bottom, cfg.Height-cfg.Content.Bottom())

	// The content rect contains every ink pixel by construction.
	assert.True(t, det.Content.Contains(raster.Rect{X: 100, Y: 150, W: 300, H: 8}))
}

func TestDetectCroppedPageHasZeroMargins(t *testing.T) {
	cfg := testutil.DefaultPageConfig()
	cfg.Content = raster.Rect{X: 100, Y: 150, W: 300, H: 400}
	page := testutil.NewPage(cfg)

	det, err := Detect(page, DefaultOptions())
	require.NoError(t, err)

	cropped, err := Trim(page, det.Margins)
	require.NoError(t, err)

	again, err := Detect(cropped, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, again.Margins.Top)
	assert.Equal(t, 0, again.Margins.Bottom)
	assert.Equal(t, 0, again.Margins.Left)
	assert.Equal(t, 0, again.Margins.Right)
}

func TestDetectEmptyPage(t *testing.T) {
	page := testutil.UniformImage(200, 300, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	_, err := Detect(page, DefaultOptions())
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestDetectNilImage(t *testing.T) {
	_, err := Detect(nil, DefaultOptions())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoContent)
}

func TestDetectMinMarginFloor(t *testing.T) {
	cfg := testutil.DefaultPageConfig()
	cfg.Content = raster.Rect{X: 2, Y: 2, W: 590, H: 780}
	page := testutil.NewPage(cfg)

	opts := DefaultOptions()
	opts.MinMargin = 10
	det, err := Detect(page, opts)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, det.Margins.Left, 10)
	assert.GreaterOrEqual(t, det.Margins.Top, 10)
}

func TestDetectEdgeMode(t *testing.T) {
	cfg := testutil.DefaultPageConfig()
	cfg.Content = raster.Rect{X: 100, Y: 150, W: 300, H: 400}
	page := testutil.NewPage(cfg)

	opts := DefaultOptions()
	opts.Mode = EdgeDetection
	det, err := Detect(page, opts)
	require.NoError(t, err)
	// Gradient detection sees the ink boundary within a pixel.
	assert.InDelta(t, 100, det.Margins.Left, 2)
	assert.InDelta(t, 150, det.Margins.Top, 2)
}

func TestUnifyTakesComponentwiseMinimum(t *testing.T) {
	dets := []Detection{
		{Margins: Margins{Top: 10, Bottom: 40, Left: 25, Right: 5}},
		{Margins: Margins{Top: 30, Bottom: 20, Left: 15, Right: 35}},
		{Margins: Margins{Top: 20, Bottom: 30, Left: 45, Right: 25}},
	}
	u := Unify(dets)
	assert.Equal(t, Margins{Top: 10, Bottom: 20, Left: 15, Right: 5}, u)
}

func TestUnifyEmpty(t *testing.T) {
	assert.Equal(t, Margins{}, Unify(nil))
}

func TestUnifiedMarginsPreserveContent(t *testing.T) {
	// Content boxes at different positions; the unified cut must keep
	// every page's content.
	configs := []raster.Rect{
		{X: 60, Y: 80, W: 400, H: 600},
		{X: 100, Y: 120, W: 380, H: 560},
		{X: 80, Y: 100, W: 420, H: 580},
	}
	var dets []Detection
	for i, content := range configs {
		cfg := testutil.DefaultPageConfig()
		cfg.Content = content
		page := testutil.NewPage(cfg)
		det, err := Detect(page, DefaultOptions())
		require.NoError(t, err)
		det.PageIndex = i
		dets = append(dets, det)
	}

	u := Unify(dets)
	for _, det := range dets {
		kept := u.ContentRect(det.Width, det.Height)
		assert.True(t, kept.Contains(det.Content),
			"unified margins must keep page %d content %+v within %+v", det.PageIndex, det.Content, kept)
	}
}

func TestTrimAndPadToSize(t *testing.T) {
	page := testutil.UniformImage(100, 100, color.NRGBA{R: 50, G: 60, B: 70, A: 255})
	trimmed, err := Trim(page, Margins{Top: 10, Bottom: 10, Left: 20, Right: 20})
	require.NoError(t, err)
	assert.Equal(t, 60, trimmed.Bounds().Dx())
	assert.Equal(t, 80, trimmed.Bounds().Dy())

	padded, err := PadToSize(trimmed, 200, 200, [3]uint8{255, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 200, padded.Bounds().Dx())
	// Corner pixel carries the background.
	assert.Equal(t, uint8(255), padded.Pix[0])
	assert.Equal(t, uint8(0), padded.Pix[1])

	_, err = Trim(page, Margins{Top: 60, Bottom: 60})
	assert.Error(t, err)
}
