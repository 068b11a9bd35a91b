package pdfio

import (
	"context"
	"errors"
	"image"
	"os"

	"github.com/jung-kurt/gofpdf"

	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/extproc"
)

// SandwichPage pairs a finalized page image with its recognized text
// runs.
type SandwichPage struct {
	ImagePath string
	Runs      []extproc.TextRun
}

// AssembleSandwich builds a searchable PDF: each page carries an
// invisible text layer under the page image, so selection and search
// work over the scan.
func AssembleSandwich(ctx context.Context, pages []SandwichPage, outputPDF string, dpi int) error {
	if len(pages) == 0 {
		return &PDFError{Operation: "assemble", Path: outputPDF, Err: errors.New("no pages")}
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFont("Arial", "", 10)

	// Pixel-to-millimeter scale at the output DPI.
	mmPerPx := 25.4 / float64(dpi)

	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		w, h, err := imageSize(page.ImagePath)
		if err != nil {
			return &PDFError{Operation: "assemble", Path: page.ImagePath, Err: err}
		}
		wMM := float64(w) * mmPerPx
		hMM := float64(h) * mmPerPx
		orientation := "P"
		if wMM > hMM {
			orientation = "L"
		}
		pdf.AddPageFormat(orientation, gofpdf.SizeType{Wd: wMM, Ht: hMM})

		// Text first, image on top: the text stays selectable but
		// invisible beneath the scan.
		for _, run := range page.Runs {
			if run.Text == "" || run.Box.Empty() {
				continue
			}
			x := float64(run.Box.X) * mmPerPx
			y := float64(run.Box.Y) * mmPerPx
			bw := float64(run.Box.W) * mmPerPx
			bh := float64(run.Box.H) * mmPerPx
			pdf.SetXY(x, y)
			pdf.SetFontSize(bh / 0.3528)
			pdf.CellFormat(bw, bh, run.Text, "", 0, "LT", false, 0, "")
		}

		pdf.ImageOptions(page.ImagePath, 0, 0, wMM, hMM, false,
			gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	}

	f, err := os.Create(outputPDF) //nolint:gosec // G304: user-chosen output path
	if err != nil {
		return &PDFError{Operation: "assemble", Path: outputPDF, Err: err}
	}
	if err := pdf.OutputAndClose(f); err != nil {
		return &PDFError{Operation: "assemble", Path: outputPDF, Err: err}
	}
	return nil
}

func imageSize(path string) (int, int, error) {
	f, err := os.Open(path) //nolint:gosec // G304: pipeline-produced path
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = f.Close() }()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
