// Package margin decides per-page content bounds and the book-wide crop
// regions derived from them.
package margin

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/mempool"
	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/raster"
)

// ErrNoContent indicates a page with no content rows or columns at the
// detection threshold. Such pages are excluded from aggregation.
var ErrNoContent = errors.New("no content detected in page")

// DetectionMode selects the content-detection algorithm.
type DetectionMode int

const (
	// BackgroundColor classifies pixels against a luminance threshold.
	BackgroundColor DetectionMode = iota
	// EdgeDetection classifies rows and columns by gradient magnitude.
	EdgeDetection
	// Combined averages the background and edge results.
	Combined
)

// Options controls margin detection.
type Options struct {
	// BackgroundThreshold is the luminance at or above which a pixel
	// counts as background.
	BackgroundThreshold uint8
	// MinContentRatio is the fraction of content pixels a row or column
	// needs to count as content.
	MinContentRatio float64
	// Mode selects the detection algorithm.
	Mode DetectionMode
	// MinMargin floors each detected margin, in pixels.
	MinMargin int
}

// DefaultOptions returns the detection defaults.
func DefaultOptions() Options {
	return Options{
		BackgroundThreshold: 240,
		MinContentRatio:     0.01,
		Mode:                BackgroundColor,
		MinMargin:           0,
	}
}

// Margins holds per-edge margins in pixels.
type Margins struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
	Right  int `json:"right"`
}

// TotalHorizontal returns left+right.
func (m Margins) TotalHorizontal() int { return m.Left + m.Right }

// TotalVertical returns top+bottom.
func (m Margins) TotalVertical() int { return m.Top + m.Bottom }

// ContentRect converts the margins into the region they keep on a
// width×height page.
func (m Margins) ContentRect(width, height int) raster.Rect {
	return raster.Rect{
		X: m.Left,
		Y: m.Top,
		W: width - m.TotalHorizontal(),
		H: height - m.TotalVertical(),
	}
}

// Detection is the per-page margin analysis result.
type Detection struct {
	PageIndex int
	Margins   Margins
	Content   raster.Rect
	Width     int
	Height    int
}

// Detect finds the content bounding box of a page. It returns
// ErrNoContent when no row or column reaches the content ratio.
func Detect(img image.Image, opts Options) (Detection, error) {
	if img == nil {
		return Detection{}, &raster.RasterError{Operation: "margin-detect", Err: errors.New("input image is nil")}
	}
	gray := imaging.Grayscale(img)
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	if w == 0 || h == 0 {
		return Detection{}, &raster.RasterError{Operation: "margin-detect", Err: fmt.Errorf("empty image %dx%d", w, h)}
	}

	var contentRows, contentCols []bool
	switch opts.Mode {
	case EdgeDetection:
		contentRows, contentCols = edgeMask(gray, w, h)
		defer mempool.PutBool(contentRows)
		defer mempool.PutBool(contentCols)
	case Combined:
		br, bc := thresholdMask(gray, w, h, opts)
		er, ec := edgeMask(gray, w, h)
		contentRows = averageMask(br, er)
		contentCols = averageMask(bc, ec)
		defer mempool.PutBool(br)
		defer mempool.PutBool(bc)
		defer mempool.PutBool(er)
		defer mempool.PutBool(ec)
	default:
		contentRows, contentCols = thresholdMask(gray, w, h, opts)
		defer mempool.PutBool(contentRows)
		defer mempool.PutBool(contentCols)
	}

	top, bottom, okV := maskSpan(contentRows)
	left, right, okH := maskSpan(contentCols)
	if !okV || !okH {
		return Detection{PageIndex: -1, Width: w, Height: h}, ErrNoContent
	}

	m := Margins{
		Top:    max(top, opts.MinMargin),
		Bottom: max(h-bottom, opts.MinMargin),
		Left:   max(left, opts.MinMargin),
		Right:  max(w-right, opts.MinMargin),
	}
	if m.TotalHorizontal() >= w || m.TotalVertical() >= h {
		return Detection{PageIndex: -1, Width: w, Height: h}, ErrNoContent
	}

	return Detection{
		PageIndex: -1,
		Margins:   m,
		Content:   m.ContentRect(w, h),
		Width:     w,
		Height:    h,
	}, nil
}

// thresholdMask marks rows and columns whose content-pixel count meets
// the ratio. A pixel is content iff its luminance is below the
// background threshold.
func thresholdMask(gray *image.NRGBA, w, h int, opts Options) (rows, cols []bool) {
	rowCounts := make([]int, h)
	colCounts := make([]int, w)
	for y := 0; y < h; y++ {
		base := y * gray.Stride
		for x := 0; x < w; x++ {
			// Grayscale image: R==G==B, read R directly.
			if gray.Pix[base+x*4] < opts.BackgroundThreshold {
				rowCounts[y]++
				colCounts[x]++
			}
		}
	}
	rows = mempool.GetBool(h)
	cols = mempool.GetBool(w)
	minRow := opts.MinContentRatio * float64(w)
	minCol := opts.MinContentRatio * float64(h)
	for y, c := range rowCounts {
		rows[y] = float64(c) >= minRow
	}
	for x, c := range colCounts {
		cols[x] = float64(c) >= minCol
	}
	return rows, cols
}

// edgeMask marks rows and columns containing a gradient step above the
// edge threshold.
func edgeMask(gray *image.NRGBA, w, h int) (rows, cols []bool) {
	const edgeThreshold = 30
	rows = mempool.GetBool(h)
	cols = mempool.GetBool(w)
	for y := 1; y < h-1; y++ {
		base := y * gray.Stride
		for x := 1; x < w-1; x++ {
			center := int(gray.Pix[base+x*4])
			maxDiff := abs(int(gray.Pix[base+(x-1)*4]) - center)
			if d := abs(int(gray.Pix[base+(x+1)*4]) - center); d > maxDiff {
				maxDiff = d
			}
			if d := abs(int(gray.Pix[(y-1)*gray.Stride+x*4]) - center); d > maxDiff {
				maxDiff = d
			}
			if d := abs(int(gray.Pix[(y+1)*gray.Stride+x*4]) - center); d > maxDiff {
				maxDiff = d
			}
			if maxDiff > edgeThreshold {
				rows[y] = true
				cols[x] = true
			}
		}
	}
	return rows, cols
}

// averageMask combines two masks: a line counts as content if either
// detector saw it. Used by the Combined mode.
func averageMask(a, b []bool) []bool {
	out := make([]bool, len(a))
	for i := range a {
		out[i] = a[i] || b[i]
	}
	return out
}

// maskSpan returns the half-open [first, last+1) span of true entries.
func maskSpan(mask []bool) (start, end int, ok bool) {
	start, end = -1, -1
	for i, v := range mask {
		if v {
			if start < 0 {
				start = i
			}
			end = i + 1
		}
	}
	if start < 0 {
		return 0, 0, false
	}
	return start, end, true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Unify computes the componentwise minimum margins over all detections.
// Applying unified margins never removes content from any page.
func Unify(detections []Detection) Margins {
	if len(detections) == 0 {
		return Margins{}
	}
	u := detections[0].Margins
	for _, d := range detections[1:] {
		u.Top = min(u.Top, d.Margins.Top)
		u.Bottom = min(u.Bottom, d.Margins.Bottom)
		u.Left = min(u.Left, d.Margins.Left)
		u.Right = min(u.Right, d.Margins.Right)
	}
	return u
}

// Trim crops an image by the given margins.
func Trim(img image.Image, m Margins) (*image.NRGBA, error) {
	if img == nil {
		return nil, &raster.RasterError{Operation: "trim", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	region := m.ContentRect(w, h)
	if region.Empty() {
		return nil, &raster.RasterError{Operation: "trim", Err: fmt.Errorf("margins %+v leave no content on %dx%d page", m, w, h)}
	}
	return raster.Crop(img, region)
}

// PadToSize centers an image on a target-size canvas filled with the
// given background color.
func PadToSize(img image.Image, targetWidth, targetHeight int, background [3]uint8) (*image.NRGBA, error) {
	if img == nil {
		return nil, &raster.RasterError{Operation: "pad", Err: errors.New("input image is nil")}
	}
	if targetWidth <= 0 || targetHeight <= 0 {
		return nil, &raster.RasterError{Operation: "pad", Err: fmt.Errorf("invalid target dimensions: %dx%d", targetWidth, targetHeight)}
	}
	canvas := imaging.New(targetWidth, targetHeight, nrgba(background))
	b := img.Bounds()
	x := (targetWidth - b.Dx()) / 2
	y := (targetHeight - b.Dy()) / 2
	x = max(x, 0)
	y = max(y, 0)
	return imaging.Paste(canvas, img, image.Pt(x, y)), nil
}
