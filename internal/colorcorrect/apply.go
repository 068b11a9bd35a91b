package colorcorrect

import (
	"errors"
	"image"
	"math"

	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/raster"
)

// Apply runs the affine correction and ghost suppression over a page,
// producing a new raster. The input is not modified.
func Apply(img image.Image, p GlobalParam) (*image.NRGBA, error) {
	if img == nil {
		return nil, &raster.RasterError{Operation: "color-apply", Err: errors.New("input image is nil")}
	}
	out := raster.ToNRGBA(img)
	if p.IsIdentity() {
		// Identity means the decide stage downgraded; leave pixels
		// untouched, ghosts included.
		return out, nil
	}
	w, h := out.Bounds().Dx(), out.Bounds().Dy()
	whiteFloor := 255.0 - float64(p.WhiteClipRange)
	ghost := float64(p.GhostThreshold)
	ghostRange := 255.0 - ghost

	for y := 0; y < h; y++ {
		base := y * out.Stride
		for x := 0; x < w; x++ {
			off := base + x*4
			r, g, b := out.Pix[off], out.Pix[off+1], out.Pix[off+2]
			r = applyChannel(r, p.Scale[0], p.Offset[0])
			g = applyChannel(g, p.Scale[1], p.Offset[1])
			b = applyChannel(b, p.Scale[2], p.Offset[2])
			lum := raster.Luminance(r, g, b)
			switch {
			case lum >= whiteFloor:
				r, g, b = 255, 255, 255
			case lum > ghost && ghostRange > 0:
				t := (lum - ghost) / ghostRange
				if t > 1 {
					t = 1
				}
				r = blendToWhite(r, t)
				g = blendToWhite(g, t)
				b = blendToWhite(b, t)
			}
			out.Pix[off], out.Pix[off+1], out.Pix[off+2] = r, g, b
		}
	}
	return out, nil
}

func applyChannel(v uint8, scale, offset float64) uint8 {
	f := math.Round(scale*float64(v) + offset)
	if f < 0 {
		return 0
	}
	if f > 255 {
		return 255
	}
	return uint8(f)
}

func blendToWhite(v uint8, t float64) uint8 {
	f := math.Round(float64(v) + t*(255-float64(v)))
	if f > 255 {
		f = 255
	}
	return uint8(f)
}
