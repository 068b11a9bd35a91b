// Package finalize produces output pages at a fixed target height with
// crop, shift, and paper-color padding applied.
package finalize

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/raster"
)

// Options controls the finalize stage.
type Options struct {
	// TargetHeight is the exact output height in pixels.
	TargetHeight int
	// FeatherPixels widens exposed edges with a linear ramp toward the
	// paper color. Zero disables feathering.
	FeatherPixels int
	// Resample selects the resize kernel.
	Resample raster.Resample
	// PatchSize is the corner patch edge used for paper estimation.
	PatchSize int
	// PatchVarianceLimit rejects corner patches whose luminance
	// variance exceeds it (non-paper corners).
	PatchVarianceLimit float64
	// FallbackPaper is used when every corner patch is rejected.
	FallbackPaper [3]uint8
}

// DefaultOptions returns the finalize defaults.
func DefaultOptions() Options {
	return Options{
		TargetHeight:       3508,
		FeatherPixels:      0,
		Resample:           raster.Lanczos3,
		PatchSize:          32,
		PatchVarianceLimit: 300,
		FallbackPaper:      [3]uint8{255, 255, 255},
	}
}

// Finalize crops, resizes to the target height, shifts, and pads a
// page. The operation order is fixed: crop, resize, shift, feather.
func Finalize(img image.Image, crop raster.Rect, shiftX, shiftY int, opts Options) (*image.NRGBA, error) {
	if img == nil {
		return nil, &raster.RasterError{Operation: "finalize", Err: errors.New("input image is nil")}
	}
	if opts.TargetHeight <= 0 {
		return nil, &raster.RasterError{Operation: "finalize", Err: fmt.Errorf("invalid target height %d", opts.TargetHeight)}
	}

	b := img.Bounds()
	region := crop.Clip(b.Dx(), b.Dy())
	if region.Empty() {
		region = raster.WholePage(b.Dx(), b.Dy())
	}
	cropped, err := raster.Crop(img, region)
	if err != nil {
		return nil, err
	}

	cw, ch := cropped.Bounds().Dx(), cropped.Bounds().Dy()
	outW := int(math.Round(float64(cw) * float64(opts.TargetHeight) / float64(ch)))
	if outW < 1 {
		outW = 1
	}
	resized, err := raster.Resize(cropped, outW, opts.TargetHeight, opts.Resample)
	if err != nil {
		return nil, err
	}

	paper := EstimatePaperColor(resized, opts)

	if shiftX == 0 && shiftY == 0 {
		return resized, nil
	}

	shifted := applyShift(resized, shiftX, shiftY, paper)
	if opts.FeatherPixels > 0 {
		featherExposed(shifted, shiftX, shiftY, opts.FeatherPixels, paper)
	}
	return shifted, nil
}

// applyShift translates the image on a same-size canvas filled with the
// paper color. Pixels shifted off-canvas are discarded.
func applyShift(img *image.NRGBA, dx, dy int, paper [3]uint8) *image.NRGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	canvas := imaging.New(w, h, color.NRGBA{R: paper[0], G: paper[1], B: paper[2], A: 255})
	return imaging.Paste(canvas, img, image.Pt(dx, dy))
}

// featherExposed blends a linear ramp toward paper on the content side
// of every edge the shift exposed.
func featherExposed(img *image.NRGBA, dx, dy, feather int, paper [3]uint8) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	// Content occupies [x0,x1) × [y0,y1) after the paste.
	x0 := max(dx, 0)
	y0 := max(dy, 0)
	x1 := min(w+dx, w)
	y1 := min(h+dy, h)

	if dx > 0 {
		featherColumns(img, x0, min(x0+feather, x1), y0, y1, x0, feather, paper)
	}
	if dx < 0 {
		featherColumns(img, max(x1-feather, x0), x1, y0, y1, x1-1, feather, paper)
	}
	if dy > 0 {
		featherRows(img, y0, min(y0+feather, y1), x0, x1, y0, feather, paper)
	}
	if dy < 0 {
		featherRows(img, max(y1-feather, y0), y1, x0, x1, y1-1, feather, paper)
	}
}

func featherColumns(img *image.NRGBA, xFrom, xTo, y0, y1, edge, feather int, paper [3]uint8) {
	for x := xFrom; x < xTo; x++ {
		t := 1 - float64(absInt(x-edge))/float64(feather)
		if t <= 0 {
			continue
		}
		for y := y0; y < y1; y++ {
			blendPixel(img, x, y, t, paper)
		}
	}
}

func featherRows(img *image.NRGBA, yFrom, yTo, x0, x1, edge, feather int, paper [3]uint8) {
	for y := yFrom; y < yTo; y++ {
		t := 1 - float64(absInt(y-edge))/float64(feather)
		if t <= 0 {
			continue
		}
		for x := x0; x < x1; x++ {
			blendPixel(img, x, y, t, paper)
		}
	}
}

func blendPixel(img *image.NRGBA, x, y int, t float64, paper [3]uint8) {
	off := y*img.Stride + x*4
	for c := range 3 {
		v := float64(img.Pix[off+c])
		p := float64(paper[c])
		img.Pix[off+c] = uint8(math.Round(v + t*(p-v)))
	}
}

// EstimatePaperColor samples a patch at each corner of the pre-shift
// resized page, rejects patches with high luminance variance, and
// averages the survivors. All rejected falls back to the configured
// paper color.
func EstimatePaperColor(img *image.NRGBA, opts Options) [3]uint8 {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	ps := opts.PatchSize
	if ps <= 0 {
		ps = 32
	}
	ps = min(ps, min(w, h))

	corners := []raster.Rect{
		{X: 0, Y: 0, W: ps, H: ps},
		{X: w - ps, Y: 0, W: ps, H: ps},
		{X: 0, Y: h - ps, W: ps, H: ps},
		{X: w - ps, Y: h - ps, W: ps, H: ps},
	}

	var sum [3]float64
	surviving := 0
	for _, c := range corners {
		mean, variance := patchStats(img, c)
		if variance > opts.PatchVarianceLimit {
			continue
		}
		for i := range 3 {
			sum[i] += mean[i]
		}
		surviving++
	}
	if surviving == 0 {
		return opts.FallbackPaper
	}
	var out [3]uint8
	for i := range 3 {
		out[i] = uint8(math.Round(sum[i] / float64(surviving)))
	}
	return out
}

func patchStats(img *image.NRGBA, patch raster.Rect) (mean [3]float64, variance float64) {
	var lumSum, lumSqSum float64
	n := 0
	for y := patch.Y; y < patch.Bottom(); y++ {
		base := y * img.Stride
		for x := patch.X; x < patch.Right(); x++ {
			off := base + x*4
			r, g, b := img.Pix[off], img.Pix[off+1], img.Pix[off+2]
			mean[0] += float64(r)
			mean[1] += float64(g)
			mean[2] += float64(b)
			lum := raster.Luminance(r, g, b)
			lumSum += lum
			lumSqSum += lum * lum
			n++
		}
	}
	if n == 0 {
		return mean, 0
	}
	for i := range 3 {
		mean[i] /= float64(n)
	}
	lumMean := lumSum / float64(n)
	variance = lumSqSum/float64(n) - lumMean*lumMean
	return mean, variance
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
