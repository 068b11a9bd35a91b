package pdfio

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/extproc"
	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/raster"
	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/testutil"
)

func TestPageCountMissingFile(t *testing.T) {
	_, err := PageCount(filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
	var perr *PDFError
	assert.ErrorAs(t, err, &perr)
}

func TestScratchLifecycle(t *testing.T) {
	s, err := NewScratch()
	require.NoError(t, err)

	dir, err := s.StageDir("raster")
	require.NoError(t, err)
	assert.DirExists(t, dir)

	nested, err := s.StageDir("raster")
	require.NoError(t, err)
	assert.Equal(t, dir, nested)

	require.NoError(t, s.Cleanup())
	assert.NoDirExists(t, s.Dir)

	// Cleanup on nil receiver is a no-op.
	var nilScratch *Scratch
	assert.NoError(t, nilScratch.Cleanup())
}

func TestAssembleRejectsEmptyInput(t *testing.T) {
	err := Assemble(context.Background(), nil, "out.pdf")
	assert.Error(t, err)
}

func TestAssembleSandwichBuildsSearchablePDF(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "page.png")
	img := testutil.UniformImage(200, 300, color.NRGBA{R: 250, G: 250, B: 250, A: 255})
	require.NoError(t, raster.Save(img, imgPath))

	out := filepath.Join(dir, "book.pdf")
	pages := []SandwichPage{{
		ImagePath: imgPath,
		Runs: []extproc.TextRun{
			{Text: "sample", Box: raster.Rect{X: 10, Y: 20, W: 80, H: 14}},
		},
	}}
	require.NoError(t, AssembleSandwich(context.Background(), pages, out, 300))

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(500))
}

func TestAssembleSandwichEmptyInput(t *testing.T) {
	err := AssembleSandwich(context.Background(), nil, "out.pdf", 300)
	assert.Error(t, err)
}
