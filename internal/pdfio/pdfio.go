// Package pdfio reads scanned-book PDFs into page rasters and writes
// processed pages back out as a PDF.
package pdfio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/raster"
)

// PDFError represents errors during PDF demux or mux.
type PDFError struct {
	Operation string
	Path      string
	Err       error
}

func (e *PDFError) Error() string {
	return fmt.Sprintf("pdf %s %s: %v", e.Operation, e.Path, e.Err)
}

func (e *PDFError) Unwrap() error { return e.Err }

// PageCount validates the input and returns its page count.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, &PDFError{Operation: "open", Path: path, Err: err}
	}
	if n == 0 {
		return 0, &PDFError{Operation: "open", Path: path, Err: errors.New("no pages")}
	}
	return n, nil
}

// ProgressFunc reports per-page progress.
type ProgressFunc func(done, total int)

// Rasterize renders every page of the PDF to PNG files in dir at the
// given DPI and returns the file paths in page order. Rendering is
// sequential; rasterization is I/O-bound and go-fitz serializes access
// to the document anyway.
func Rasterize(ctx context.Context, pdfPath, dir string, dpi int, progress ProgressFunc) ([]string, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, &PDFError{Operation: "open", Path: pdfPath, Err: err}
	}
	defer func() { _ = doc.Close() }()

	n := doc.NumPage()
	if n == 0 {
		return nil, &PDFError{Operation: "rasterize", Path: pdfPath, Err: errors.New("no pages")}
	}

	paths := make([]string, 0, n)
	for page := 0; page < n; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := doc.ImageDPI(page, float64(dpi))
		if err != nil {
			return nil, &PDFError{Operation: "rasterize", Path: pdfPath, Err: fmt.Errorf("page %d: %w", page+1, err)}
		}
		out := filepath.Join(dir, fmt.Sprintf("page_%04d.png", page))
		if err := raster.Save(img, out); err != nil {
			return nil, &PDFError{Operation: "rasterize", Path: pdfPath, Err: fmt.Errorf("page %d: %w", page+1, err)}
		}
		paths = append(paths, out)
		if progress != nil {
			progress(page+1, n)
		}
	}
	return paths, nil
}

// Assemble builds the output PDF from the finalized page images, in
// order.
func Assemble(ctx context.Context, imagePaths []string, outputPDF string) error {
	if len(imagePaths) == 0 {
		return &PDFError{Operation: "assemble", Path: outputPDF, Err: errors.New("no pages")}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	imp := pdfcpu.DefaultImportConfig()
	imp.Scale = 1
	imp.Pos = types.Center
	if err := api.ImportImagesFile(imagePaths, outputPDF, imp, nil); err != nil {
		return &PDFError{Operation: "assemble", Path: outputPDF, Err: err}
	}
	return nil
}

// Scratch is the per-run intermediate directory. It holds per-stage
// page images and is removed on success.
type Scratch struct {
	Dir string
}

// NewScratch creates a scratch directory for one conversion run.
func NewScratch() (*Scratch, error) {
	dir, err := os.MkdirTemp("", "superbook-*")
	if err != nil {
		return nil, &PDFError{Operation: "scratch", Path: "", Err: err}
	}
	return &Scratch{Dir: dir}, nil
}

// StageDir returns (and creates) a subdirectory for one stage's output.
func (s *Scratch) StageDir(stage string) (string, error) {
	dir := filepath.Join(s.Dir, stage)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", &PDFError{Operation: "scratch", Path: dir, Err: err}
	}
	return dir, nil
}

// Cleanup removes the scratch directory.
func (s *Scratch) Cleanup() error {
	if s == nil || s.Dir == "" {
		return nil
	}
	return os.RemoveAll(s.Dir)
}
