package raster

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// RasterError represents errors that can occur during raster operations.
type RasterError struct {
	Operation string
	Err       error
}

func (e *RasterError) Error() string {
	return fmt.Sprintf("raster error in %s: %v", e.Operation, e.Err)
}

func (e *RasterError) Unwrap() error { return e.Err }

// Rect is a half-open pixel rectangle in page coordinates.
// (0,0) is the top-left corner of the page.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Right returns the exclusive right edge.
func (r Rect) Right() int { return r.X + r.W }

// Bottom returns the exclusive bottom edge.
func (r Rect) Bottom() int { return r.Y + r.H }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Clip intersects the rectangle with a width×height page.
func (r Rect) Clip(width, height int) Rect {
	x0 := max(r.X, 0)
	y0 := max(r.Y, 0)
	x1 := min(r.Right(), width)
	y1 := min(r.Bottom(), height)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Contains reports whether inner lies entirely within r.
func (r Rect) Contains(inner Rect) bool {
	return inner.X >= r.X && inner.Y >= r.Y &&
		inner.Right() <= r.Right() && inner.Bottom() <= r.Bottom()
}

// Center returns the rectangle's center point.
func (r Rect) Center() (x, y float64) {
	return float64(r.X) + float64(r.W)/2, float64(r.Y) + float64(r.H)/2
}

// Area returns the pixel area of the rectangle.
func (r Rect) Area() int {
	if r.Empty() {
		return 0
	}
	return r.W * r.H
}

// ToImageRect converts to the stdlib image.Rectangle representation.
func (r Rect) ToImageRect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.Right(), r.Bottom())
}

// FromImageRect converts an image.Rectangle into a Rect.
func FromImageRect(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// WholePage returns a rectangle covering the full width×height page.
func WholePage(width, height int) Rect {
	return Rect{X: 0, Y: 0, W: width, H: height}
}

// Resample selects the resampling kernel used for geometric operations.
// Lanczos3 is the shipped kernel; Nearest and Bilinear exist for tests
// where exact pixel predictions are needed.
type Resample int

const (
	Lanczos3 Resample = iota
	Bilinear
	Nearest
)

func (r Resample) String() string {
	switch r {
	case Bilinear:
		return "bilinear"
	case Nearest:
		return "nearest"
	default:
		return "lanczos3"
	}
}

// Filter returns the imaging filter implementing the kernel.
func (r Resample) Filter() imaging.ResampleFilter {
	switch r {
	case Bilinear:
		return imaging.Linear
	case Nearest:
		return imaging.NearestNeighbor
	default:
		return imaging.Lanczos
	}
}

// ToNRGBA clones an image into the 8-bit RGBA representation all
// pipeline stages operate on. Grayscale inputs come out with equal
// channels.
func ToNRGBA(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}

// Resize scales an image to exactly width×height using the given kernel.
func Resize(img image.Image, width, height int, kernel Resample) (*image.NRGBA, error) {
	if img == nil {
		return nil, &RasterError{Operation: "resize", Err: errors.New("input image is nil")}
	}
	if width <= 0 || height <= 0 {
		return nil, &RasterError{Operation: "resize", Err: fmt.Errorf("invalid target dimensions: %dx%d", width, height)}
	}
	return imaging.Resize(img, width, height, kernel.Filter()), nil
}

// Crop extracts the given region from the image. The region is clipped
// to the image bounds first.
func Crop(img image.Image, region Rect) (*image.NRGBA, error) {
	if img == nil {
		return nil, &RasterError{Operation: "crop", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	clipped := region.Clip(b.Dx(), b.Dy())
	if clipped.Empty() {
		return nil, &RasterError{Operation: "crop", Err: fmt.Errorf("region %+v outside image %dx%d", region, b.Dx(), b.Dy())}
	}
	return imaging.Crop(img, clipped.ToImageRect().Add(b.Min)), nil
}

// Luminance computes the Rec.601 luma of an 8-bit RGB triple.
func Luminance(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}
