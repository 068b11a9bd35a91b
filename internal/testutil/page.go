// Package testutil builds synthetic book pages for pipeline tests.
package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/raster"
)

// PageConfig describes a synthetic scanned page.
type PageConfig struct {
	Width      int
	Height     int
	Paper      color.NRGBA
	Ink        color.NRGBA
	// Content is the region filled with body text blocks.
	Content raster.Rect
	// PageNumber, when positive, is drawn near the bottom at
	// PageNumberX (its left edge). Zero means no printed number.
	PageNumber  int
	PageNumberX int
	// Rotation tilts the page by this many degrees around its center.
	Rotation float64
}

// DefaultPageConfig returns a letter-ish test page.
func DefaultPageConfig() PageConfig {
	return PageConfig{
		Width:  600,
		Height: 800,
		Paper:  color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		Ink:    color.NRGBA{R: 0, G: 0, B: 0, A: 255},
		Content: raster.Rect{X: 80, Y: 100, W: 440, H: 560},
	}
}

// NewPage renders the configured page.
func NewPage(cfg PageConfig) *image.NRGBA {
	img := imaging.New(cfg.Width, cfg.Height, cfg.Paper)

	if !cfg.Content.Empty() {
		drawTextBlock(img, cfg.Content, cfg.Ink)
	}
	if cfg.PageNumber > 0 {
		drawPageNumber(img, cfg)
	}
	if cfg.Rotation != 0 {
		rotated := imaging.Rotate(img, cfg.Rotation, cfg.Paper)
		img = imaging.CropCenter(rotated, cfg.Width, cfg.Height)
	}
	return img
}

// drawTextBlock fills the region with line-like ink runs so margin and
// deskew analyses see realistic row structure.
func drawTextBlock(img *image.NRGBA, region raster.Rect, ink color.NRGBA) {
	const lineHeight = 14
	const lineThickness = 8
	for y := region.Y; y+lineThickness <= region.Bottom(); y += lineHeight {
		// Vary line length a little, deterministically.
		length := region.W - (y/lineHeight%4)*12
		r := image.Rect(region.X, y, region.X+length, y+lineThickness)
		draw.Draw(img, r, &image.Uniform{ink}, image.Point{}, draw.Src)
	}
}

// drawPageNumber renders the decimal digits with the basic 7x13 font.
func drawPageNumber(img *image.NRGBA, cfg PageConfig) {
	text := fmt.Sprintf("%d", cfg.PageNumber)
	face := basicfont.Face7x13
	y := cfg.Height - 30
	x := cfg.PageNumberX
	if x <= 0 {
		width := font.MeasureString(face, text).Ceil()
		x = (cfg.Width - width) / 2
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{cfg.Ink},
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// PageNumberRect returns where drawPageNumber placed the number, in
// page coordinates, for test assertions.
func PageNumberRect(cfg PageConfig) raster.Rect {
	text := fmt.Sprintf("%d", cfg.PageNumber)
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	x := cfg.PageNumberX
	if x <= 0 {
		x = (cfg.Width - width) / 2
	}
	ascent := face.Metrics().Ascent.Ceil()
	y := cfg.Height - 30
	return raster.Rect{X: x, Y: y - ascent, W: width, H: face.Metrics().Height.Ceil()}
}

// UniformImage builds a single-color image.
func UniformImage(width, height int, c color.NRGBA) *image.NRGBA {
	return imaging.New(width, height, c)
}

// CompareImages reports whether two images match within a mean-error
// tolerance in [0, 1].
func CompareImages(a, b image.Image, tolerance float64) bool {
	ba, bb := a.Bounds(), b.Bounds()
	if ba.Dx() != bb.Dx() || ba.Dy() != bb.Dy() {
		return false
	}
	var totalDiff float64
	var pixels float64
	for y := 0; y < ba.Dy(); y++ {
		for x := 0; x < ba.Dx(); x++ {
			r1, g1, b1, _ := a.At(ba.Min.X+x, ba.Min.Y+y).RGBA()
			r2, g2, b2, _ := b.At(bb.Min.X+x, bb.Min.Y+y).RGBA()
			dr := float64(r1) - float64(r2)
			dg := float64(g1) - float64(g2)
			db := float64(b1) - float64(b2)
			totalDiff += math.Sqrt(dr*dr + dg*dg + db*db)
			pixels++
		}
	}
	maxDiff := math.Sqrt(3 * 65535 * 65535)
	return totalDiff/pixels/maxDiff <= tolerance
}

// IdenticalImages reports exact pixel equality.
func IdenticalImages(a, b *image.NRGBA) bool {
	if a.Bounds().Dx() != b.Bounds().Dx() || a.Bounds().Dy() != b.Bounds().Dy() {
		return false
	}
	w, h := a.Bounds().Dx(), a.Bounds().Dy()
	for y := 0; y < h; y++ {
		rowA := a.Pix[y*a.Stride : y*a.Stride+w*4]
		rowB := b.Pix[y*b.Stride : y*b.Stride+w*4]
		for i := range rowA {
			if rowA[i] != rowB[i] {
				return false
			}
		}
	}
	return true
}
