// Package pagenum locates printed page numbers, infers the book-wide
// physical-to-logical shift, and derives per-page alignment offsets.
package pagenum

import (
	"context"
	"errors"
	"image"
	"strconv"

	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/raster"
)

// Token is a recognized text fragment with its bounding box in page
// coordinates.
type Token struct {
	Text string
	Box  raster.Rect
}

// Detector is the capability the page-number stage needs from an OCR
// engine: recognize tokens inside a band of a page.
type Detector interface {
	DetectTokens(ctx context.Context, img image.Image, band raster.Rect) ([]Token, error)
}

// Options controls detection and offset analysis.
type Options struct {
	// ScanRegionRatio is the height fraction of the bottom band
	// submitted to OCR.
	ScanRegionRatio float64
	// MaxNumber is the largest accepted page number.
	MaxNumber int
	// ShiftSearchRange bounds the candidate shifts tried, ±range.
	ShiftSearchRange int
	// MinMatchCount is the absolute floor on matches to accept a shift.
	MinMatchCount int
	// MinMatchRatio is the relative floor on matches over detections.
	MinMatchRatio float64
	// MaxShiftFraction clamps per-page shifts to this fraction of
	// min(W,H).
	MaxShiftFraction float64
}

// DefaultOptions returns the page-number defaults.
func DefaultOptions() Options {
	return Options{
		ScanRegionRatio:  0.15,
		MaxNumber:        9999,
		ShiftSearchRange: 300,
		MinMatchCount:    5,
		MinMatchRatio:    0.333,
		MaxShiftFraction: 0.05,
	}
}

// Detection is the per-page page-number result. Found=false means no
// confident detection; the page still flows through the pipeline.
type Detection struct {
	PageIndex int
	Number    int
	Position  raster.Rect
	Found     bool
}

// ScanBand returns the bottom band of a width×height page.
func ScanBand(width, height int, ratio float64) raster.Rect {
	bandH := int(float64(height) * ratio)
	if bandH < 1 {
		bandH = 1
	}
	if bandH > height {
		bandH = height
	}
	return raster.Rect{X: 0, Y: height - bandH, W: width, H: bandH}
}

// Detect runs OCR over the page's bottom band and picks the best
// page-number candidate: digits only, value within range, box inside
// the band; largest area wins, ties to the token closest to the page
// bottom. OCR failure yields a not-found detection, never an error
// that stops the book.
func Detect(ctx context.Context, det Detector, img image.Image, pageIndex int, opts Options) Detection {
	d := Detection{PageIndex: pageIndex}
	if det == nil || img == nil {
		return d
	}
	b := img.Bounds()
	band := ScanBand(b.Dx(), b.Dy(), opts.ScanRegionRatio)

	tokens, err := det.DetectTokens(ctx, img, band)
	if err != nil {
		return d
	}

	var best *Token
	var bestNumber int
	for i := range tokens {
		t := &tokens[i]
		n, ok := parseNumber(t.Text, opts.MaxNumber)
		if !ok {
			continue
		}
		if !band.Contains(t.Box) {
			continue
		}
		if best == nil || betterCandidate(t, best) {
			best = t
			bestNumber = n
		}
	}
	if best == nil {
		return d
	}
	d.Number = bestNumber
	d.Position = best.Box
	d.Found = true
	return d
}

// betterCandidate prefers the larger token, then the lower one.
func betterCandidate(t, best *Token) bool {
	ta, ba := t.Box.Area(), best.Box.Area()
	if ta != ba {
		return ta > ba
	}
	return t.Box.Y > best.Box.Y
}

// parseNumber accepts decimal-digit-only tokens in [1, maxNumber].
// Roman numerals and decorated numbers fail here and are rejected, not
// guessed.
func parseNumber(text string, maxNumber int) (int, bool) {
	if text == "" {
		return 0, false
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(text)
	if err != nil || n < 1 || n > maxNumber {
		return 0, false
	}
	return n, true
}

// ErrNoDetector indicates the OCR capability is unavailable.
var ErrNoDetector = errors.New("page number detector unavailable")
