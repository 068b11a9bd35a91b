package pagenum

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/raster"
)

// TesseractDetector recognizes digit tokens with a local Tesseract
// engine. Each DetectTokens call opens and closes its own client, so
// one detector can serve concurrent workers.
type TesseractDetector struct {
	// Languages passed to Tesseract; defaults to "eng".
	Languages []string
}

// NewTesseractDetector returns a detector using the default language.
func NewTesseractDetector() *TesseractDetector {
	return &TesseractDetector{Languages: []string{"eng"}}
}

// Available reports whether the Tesseract engine can be initialized.
func Available() bool {
	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()
	return client.Version() != ""
}

// DetectTokens crops the band, feeds it to Tesseract with a digit
// whitelist, and maps word boxes back into page coordinates.
func (t *TesseractDetector) DetectTokens(ctx context.Context, img image.Image, band raster.Rect) ([]Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	crop, err := raster.Crop(img, band)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, crop); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()
	if len(t.Languages) > 0 {
		if err := client.SetLanguage(t.Languages...); err != nil {
			return nil, err
		}
	}
	if err := client.SetWhitelist("0123456789"); err != nil {
		return nil, err
	}
	if err := client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		return nil, err
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, err
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, err
	}

	tokens := make([]Token, 0, len(boxes))
	for _, b := range boxes {
		word := strings.TrimSpace(b.Word)
		if word == "" {
			continue
		}
		tokens = append(tokens, Token{
			Text: word,
			Box: raster.Rect{
				X: band.X + b.Box.Min.X,
				Y: band.Y + b.Box.Min.Y,
				W: b.Box.Dx(),
				H: b.Box.Dy(),
			},
		})
	}
	return tokens, nil
}
