package raster

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
)

// SupportedImageExtensions lists supported file extensions for loading.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedImageExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Load opens and decodes a page image file.
func Load(path string) (*image.NRGBA, error) {
	if path == "" {
		return nil, &RasterError{Operation: "load", Err: errors.New("empty path")}
	}
	if !IsSupportedImage(path) {
		return nil, &RasterError{Operation: "load", Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
	}

	f, err := os.Open(path) //nolint:gosec // G304: Reading pipeline-produced image paths is expected
	if err != nil {
		return nil, &RasterError{Operation: "load", Err: err}
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &RasterError{Operation: "decode", Err: err}
	}
	return ToNRGBA(img), nil
}

// Save writes a page image as PNG, creating parent directories as needed.
func Save(img image.Image, path string) error {
	if img == nil {
		return &RasterError{Operation: "save", Err: errors.New("input image is nil")}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return &RasterError{Operation: "save", Err: err}
	}
	f, err := os.Create(path) //nolint:gosec // G304: Writing pipeline-produced image paths is expected
	if err != nil {
		return &RasterError{Operation: "save", Err: err}
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return &RasterError{Operation: "encode", Err: err}
	}
	if err := f.Close(); err != nil {
		return &RasterError{Operation: "save", Err: err}
	}
	return nil
}
