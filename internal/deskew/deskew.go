// Package deskew estimates and corrects small page rotations.
package deskew

import (
	"errors"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/raster"
)

// Options controls skew estimation.
type Options struct {
	// MaxAngle bounds the sweep, ± degrees.
	MaxAngle float64
	// StepAngle is the sweep granularity in degrees.
	StepAngle float64
	// MinAngle is the smallest correction worth applying.
	MinAngle float64
	// WorkingHeight downsamples the page to this height for scoring.
	WorkingHeight int
	// InkThreshold is the luminance below which a pixel counts as ink.
	InkThreshold uint8
	// Background fills corners exposed by the rotation.
	Background [3]uint8
}

// DefaultOptions returns the deskew defaults.
func DefaultOptions() Options {
	return Options{
		MaxAngle:      2.0,
		StepAngle:     0.1,
		MinAngle:      0.05,
		WorkingHeight: 800,
		InkThreshold:  128,
		Background:    [3]uint8{255, 255, 255},
	}
}

// EstimateAngle sweeps candidate angles and scores each by the variance
// of the sheared horizontal ink projection: text lines line up at the
// correct angle, concentrating ink into few rows.
func EstimateAngle(img image.Image, opts Options) (float64, error) {
	if img == nil {
		return 0, &raster.RasterError{Operation: "deskew", Err: errors.New("input image is nil")}
	}
	work := img
	b := img.Bounds()
	if opts.WorkingHeight > 0 && b.Dy() > opts.WorkingHeight {
		w := b.Dx() * opts.WorkingHeight / b.Dy()
		if w < 1 {
			w = 1
		}
		work = imaging.Resize(img, w, opts.WorkingHeight, imaging.Linear)
	}
	gray := imaging.Grayscale(work)
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()

	type inkPixel struct{ x, y int }
	var ink []inkPixel
	for y := 0; y < h; y++ {
		base := y * gray.Stride
		for x := 0; x < w; x++ {
			if gray.Pix[base+x*4] < opts.InkThreshold {
				ink = append(ink, inkPixel{x: x, y: y})
			}
		}
	}
	if len(ink) == 0 {
		return 0, nil
	}

	bestAngle, bestScore := 0.0, -1.0
	for a := -opts.MaxAngle; a <= opts.MaxAngle+1e-9; a += opts.StepAngle {
		tan := math.Tan(a * math.Pi / 180)
		counts := make([]int, h)
		for _, p := range ink {
			row := p.y + int(float64(p.x)*tan)
			if row >= 0 && row < h {
				counts[row]++
			}
		}
		score := projectionVariance(counts)
		if score > bestScore || (score == bestScore && math.Abs(a) < math.Abs(bestAngle)) {
			bestScore = score
			bestAngle = a
		}
	}
	// Snap tiny estimates to zero so straight pages stay untouched.
	if math.Abs(bestAngle) < opts.MinAngle {
		return 0, nil
	}
	return bestAngle, nil
}

func projectionVariance(counts []int) float64 {
	var sum, sqSum float64
	for _, c := range counts {
		f := float64(c)
		sum += f
		sqSum += f * f
	}
	n := float64(len(counts))
	mean := sum / n
	return sqSum/n - mean*mean
}

// Rotate corrects the page by the given angle, filling exposed corners
// with the background color. Angles below MinAngle return the input
// cloned unchanged.
func Rotate(img image.Image, angle float64, opts Options) (*image.NRGBA, error) {
	if img == nil {
		return nil, &raster.RasterError{Operation: "deskew", Err: errors.New("input image is nil")}
	}
	if math.Abs(angle) < opts.MinAngle {
		return raster.ToNRGBA(img), nil
	}
	bg := color.NRGBA{R: opts.Background[0], G: opts.Background[1], B: opts.Background[2], A: 255}
	rotated := imaging.Rotate(img, angle, bg)
	// Small-angle scans carry implicit padding; crop back to the
	// original canvas instead of growing the page.
	b := img.Bounds()
	return imaging.CropCenter(rotated, b.Dx(), b.Dy()), nil
}

// Correct estimates the skew and applies the rotation in one call.
func Correct(img image.Image, opts Options) (*image.NRGBA, float64, error) {
	angle, err := EstimateAngle(img, opts)
	if err != nil {
		return nil, 0, err
	}
	out, err := Rotate(img, angle, opts)
	if err != nil {
		return nil, 0, err
	}
	return out, angle, nil
}
