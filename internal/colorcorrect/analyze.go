// Package colorcorrect derives one book-wide affine color transform
// from per-page paper and ink statistics and applies it with ghost
// suppression.
package colorcorrect

import (
	"errors"
	"image"
	"sort"

	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/raster"
)

// Options controls per-page statistics gathering and the global decide.
type Options struct {
	// SampleStep is the lattice stride for pixel sub-sampling.
	SampleStep int
	// SaturationThreshold is the chroma (max−min channel) above which a
	// sample is considered a color illustration pixel and discarded.
	SaturationThreshold int
	// PoolFraction selects how much of the luminance-sorted sample list
	// feeds each of the paper and ink pools.
	PoolFraction float64
	// MinSamples is the achromatic sample count below which a page is
	// invalid.
	MinSamples int
	// MinDynamicRange is the paper−ink luminance gap below which a page
	// is invalid.
	MinDynamicRange float64
	// MADScale is the multiplier on the median absolute deviation used
	// for outlier rejection.
	MADScale float64
	// GhostThreshold is the post-correction luminance above which pixels
	// blend toward white.
	GhostThreshold uint8
	// WhiteClipRange snaps pixels within this distance of white.
	WhiteClipRange uint8
}

// DefaultOptions returns the analysis defaults.
func DefaultOptions() Options {
	return Options{
		SampleStep:          4,
		SaturationThreshold: 30,
		PoolFraction:        0.05,
		MinSamples:          100,
		MinDynamicRange:     32,
		MADScale:            2.5,
		GhostThreshold:      245,
		WhiteClipRange:      5,
	}
}

// Stats holds a page's paper and ink color estimates.
type Stats struct {
	Paper [3]float64
	Ink   [3]float64
	Valid bool
}

type sample struct {
	lum     float32
	r, g, b uint8
}

// Analyze estimates the paper (bright) and ink (dark) colors of a page
// by sub-sampling achromatic pixels on a lattice. Pages without enough
// achromatic samples or dynamic range come back with Valid=false.
func Analyze(img image.Image, opts Options) (Stats, error) {
	if img == nil {
		return Stats{}, &raster.RasterError{Operation: "color-analyze", Err: errors.New("input image is nil")}
	}
	nrgba := raster.ToNRGBA(img)
	w, h := nrgba.Bounds().Dx(), nrgba.Bounds().Dy()
	step := opts.SampleStep
	if step < 1 {
		step = 1
	}

	capacity := (w/step + 1) * (h/step + 1)
	samples := make([]sample, 0, capacity)
	for y := 0; y < h; y += step {
		base := y * nrgba.Stride
		for x := 0; x < w; x += step {
			off := base + x*4
			r, g, b := nrgba.Pix[off], nrgba.Pix[off+1], nrgba.Pix[off+2]
			if chroma(r, g, b) > opts.SaturationThreshold {
				continue
			}
			lum := float32(raster.Luminance(r, g, b))
			samples = append(samples, sample{lum: lum, r: r, g: g, b: b})
		}
	}

	if len(samples) < opts.MinSamples {
		return Stats{}, nil
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i].lum < samples[j].lum })

	poolSize := int(float64(len(samples)) * opts.PoolFraction)
	if poolSize < 1 {
		poolSize = 1
	}
	ink, inkLum := meanRGB(samples[:poolSize])
	paper, paperLum := meanRGB(samples[len(samples)-poolSize:])

	if paperLum-inkLum < opts.MinDynamicRange {
		return Stats{Paper: paper, Ink: ink}, nil
	}
	return Stats{Paper: paper, Ink: ink, Valid: true}, nil
}

func chroma(r, g, b uint8) int {
	maxC := max(int(r), max(int(g), int(b)))
	minC := min(int(r), min(int(g), int(b)))
	return maxC - minC
}

func meanRGB(pool []sample) (rgb [3]float64, lum float64) {
	var sr, sg, sb, sl float64
	for _, s := range pool {
		sr += float64(s.r)
		sg += float64(s.g)
		sb += float64(s.b)
		sl += float64(s.lum)
	}
	n := float64(len(pool))
	return [3]float64{sr / n, sg / n, sb / n}, sl / n
}
