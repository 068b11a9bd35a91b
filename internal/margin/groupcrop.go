package margin

import (
	"image/color"
	"sort"

	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/raster"
)

// tukeyK is the fence multiplier: [Q1 − k·IQR, Q3 + k·IQR].
const tukeyK = 1.5

// minPagesPerParity is the smallest parity class the fence operates on.
// Below it the parity falls back to unified margins.
const minPagesPerParity = 4

// CropRegions holds the group-crop decision, split by parity so that
// recto/verso asymmetry survives aggregation.
type CropRegions struct {
	Odd  raster.Rect `json:"odd"`
	Even raster.Rect `json:"even"`
}

// ForPage returns the region for a 0-based physical page index.
func (c CropRegions) ForPage(pageIndex int) raster.Rect {
	if IsOddPage(pageIndex) {
		return c.Odd
	}
	return c.Even
}

// IsOddPage reports whether the 0-based physical index is an odd page
// in the 1-based sense (pages 1, 3, 5, …).
func IsOddPage(pageIndex int) bool { return pageIndex%2 == 0 }

// GroupCrop computes per-parity crop regions from per-page content
// boxes using Tukey-fence outlier rejection on each of the four edges.
// Parities with fewer than minPagesPerParity valid pages fall back to
// the unified-margin region; empty parities get the whole page.
func GroupCrop(detections []Detection, pageWidth, pageHeight int, unified Margins) CropRegions {
	var odd, even []raster.Rect
	for _, d := range detections {
		if d.Content.Empty() {
			continue
		}
		if IsOddPage(d.PageIndex) {
			odd = append(odd, d.Content)
		} else {
			even = append(even, d.Content)
		}
	}
	return CropRegions{
		Odd:  parityRegion(odd, pageWidth, pageHeight, unified),
		Even: parityRegion(even, pageWidth, pageHeight, unified),
	}
}

func parityRegion(boxes []raster.Rect, pageWidth, pageHeight int, unified Margins) raster.Rect {
	if len(boxes) == 0 {
		return raster.WholePage(pageWidth, pageHeight)
	}
	if len(boxes) < minPagesPerParity {
		r := unified.ContentRect(pageWidth, pageHeight).Clip(pageWidth, pageHeight)
		if r.Empty() {
			return raster.WholePage(pageWidth, pageHeight)
		}
		return r
	}

	lefts := make([]float64, len(boxes))
	tops := make([]float64, len(boxes))
	rights := make([]float64, len(boxes))
	bottoms := make([]float64, len(boxes))
	for i, b := range boxes {
		lefts[i] = float64(b.X)
		tops[i] = float64(b.Y)
		rights[i] = float64(b.Right())
		bottoms[i] = float64(b.Bottom())
	}

	left := minInlier(lefts)
	top := minInlier(tops)
	right := maxInlier(rights)
	bottom := maxInlier(bottoms)

	region := raster.Rect{X: left, Y: top, W: right - left, H: bottom - top}
	region = region.Clip(pageWidth, pageHeight)
	if region.Empty() {
		return raster.WholePage(pageWidth, pageHeight)
	}
	return region
}

// TukeyInliers returns the values within [Q1 − k·IQR, Q3 + k·IQR].
// With all-equal inputs the IQR is zero and every value is an inlier.
func TukeyInliers(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1
	lower := q1 - tukeyK*iqr
	upper := q3 + tukeyK*iqr

	inliers := make([]float64, 0, len(values))
	for _, v := range values {
		if v >= lower && v <= upper {
			inliers = append(inliers, v)
		}
	}
	return inliers
}

// quantile interpolates linearly between order statistics of a sorted
// slice (the R type-7 convention).
func quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := p * float64(n-1)
	i := int(pos)
	if i >= n-1 {
		return sorted[n-1]
	}
	frac := pos - float64(i)
	return sorted[i] + frac*(sorted[i+1]-sorted[i])
}

func minInlier(values []float64) int {
	in := TukeyInliers(values)
	m := in[0]
	for _, v := range in[1:] {
		if v < m {
			m = v
		}
	}
	return int(m)
}

func maxInlier(values []float64) int {
	in := TukeyInliers(values)
	m := in[0]
	for _, v := range in[1:] {
		if v > m {
			m = v
		}
	}
	return int(m)
}

func nrgba(c [3]uint8) color.NRGBA {
	return color.NRGBA{R: c[0], G: c[1], B: c[2], A: 255}
}
