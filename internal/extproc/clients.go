package extproc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/raster"
)

// Upscaler enlarges a page raster through an external model.
type Upscaler interface {
	Upscale(ctx context.Context, srcPath, dstPath string) error
}

// ProcessUpscaler drives an upscaler binary through file exchange:
// `<binary> [--gpu] -i <src> -o <dst>`.
type ProcessUpscaler struct {
	Binary   string
	UseGPU   bool
	Launcher Launcher
	Retry    RetryPolicy
}

// NewProcessUpscaler wires the production upscaler bridge.
func NewProcessUpscaler(binary string, useGPU bool) *ProcessUpscaler {
	return &ProcessUpscaler{
		Binary:   binary,
		UseGPU:   useGPU,
		Launcher: ExecLauncher{},
		Retry:    DefaultRetryPolicy(),
	}
}

// Upscale implements Upscaler.
func (u *ProcessUpscaler) Upscale(ctx context.Context, srcPath, dstPath string) error {
	args := []string{"-i", srcPath, "-o", dstPath}
	if u.UseGPU {
		args = append([]string{"--gpu"}, args...)
	}
	err := u.Retry.Do(ctx, func() error {
		_, runErr := u.Launcher.Run(ctx, u.Binary, args, nil)
		return runErr
	})
	if err != nil {
		return fmt.Errorf("upscale %s: %w", srcPath, err)
	}
	if _, statErr := os.Stat(dstPath); statErr != nil {
		return fmt.Errorf("upscale %s: output missing: %w", srcPath, statErr)
	}
	return nil
}

// TextRun is a recognized text fragment with its bounding box, as
// returned by the Japanese OCR collaborator.
type TextRun struct {
	Text string      `json:"text"`
	Box  raster.Rect `json:"box"`
}

// JapaneseOCR recognizes full-page text runs for the searchable layer.
type JapaneseOCR interface {
	Recognize(ctx context.Context, imagePath string) ([]TextRun, error)
}

// ProcessJapaneseOCR drives an OCR binary that accepts an image path
// and emits a JSON array of text runs on stdout.
type ProcessJapaneseOCR struct {
	Binary   string
	UseGPU   bool
	Launcher Launcher
	Retry    RetryPolicy
}

// NewProcessJapaneseOCR wires the production Japanese OCR bridge.
func NewProcessJapaneseOCR(binary string, useGPU bool) *ProcessJapaneseOCR {
	return &ProcessJapaneseOCR{
		Binary:   binary,
		UseGPU:   useGPU,
		Launcher: ExecLauncher{},
		Retry:    DefaultRetryPolicy(),
	}
}

// Recognize implements JapaneseOCR.
func (o *ProcessJapaneseOCR) Recognize(ctx context.Context, imagePath string) ([]TextRun, error) {
	args := []string{imagePath}
	if o.UseGPU {
		args = append([]string{"--gpu"}, args...)
	}
	var out []byte
	err := o.Retry.Do(ctx, func() error {
		var runErr error
		out, runErr = o.Launcher.Run(ctx, o.Binary, args, nil)
		return runErr
	})
	if err != nil {
		return nil, fmt.Errorf("ocr %s: %w", imagePath, err)
	}
	var runs []TextRun
	if err := json.Unmarshal(out, &runs); err != nil {
		return nil, fmt.Errorf("ocr %s: bad response: %w", imagePath, err)
	}
	return runs, nil
}

func newByteReader(b []byte) io.Reader { return bytes.NewReader(b) }
