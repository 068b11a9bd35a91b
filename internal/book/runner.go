// Package book orchestrates the page pipeline: per-page analyses fan
// out over a worker pool, fold into one immutable BookDecision, and
// the apply stages run against that decision.
package book

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/colorcorrect"
	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/config"
	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/deskew"
	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/extproc"
	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/finalize"
	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/margin"
	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/pagenum"
	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/pdfio"
	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/raster"
)

// Runner holds the wired pipeline collaborators for one conversion.
type Runner struct {
	Config   *config.Config
	Log      *slog.Logger
	Detector pagenum.Detector
	Upscaler extproc.Upscaler
	OCR      extproc.JapaneseOCR
}

// NewRunner wires the production collaborators for the requested
// features. A missing collaborator is fatal when its feature was
// requested; the default-on upscaler degrades to a warning instead.
func NewRunner(cfg *config.Config, log *slog.Logger) (*Runner, error) {
	if log == nil {
		log = slog.Default()
	}
	r := &Runner{Config: cfg, Log: log}

	if cfg.Upscale {
		if err := extproc.LookPath(cfg.External.UpscalerBinary); err != nil {
			log.Warn("upscaler unavailable, disabling upscaling", "binary", cfg.External.UpscalerBinary, "error", err)
			cfg.Upscale = false
		} else {
			r.Upscaler = extproc.NewProcessUpscaler(cfg.External.UpscalerBinary, cfg.GPU)
		}
	}
	if cfg.OCR {
		if err := extproc.LookPath(cfg.External.OCRBinary); err != nil {
			return nil, NewError(KindDependency, "ocr", err)
		}
		r.OCR = extproc.NewProcessJapaneseOCR(cfg.External.OCRBinary, cfg.GPU)
	}
	if cfg.OffsetAlignment {
		if !pagenum.Available() {
			return nil, NewError(KindDependency, "page-number ocr", errors.New("tesseract engine unavailable"))
		}
		r.Detector = pagenum.NewTesseractDetector()
	}
	return r, nil
}

// Run converts input to output, returning the run summary. Fatal
// errors abort with a classified error; per-page failures are recorded
// in the summary and the page proceeds with fallback.
func (r *Runner) Run(ctx context.Context, input, output string) (*Summary, error) {
	start := time.Now()
	cfg := r.Config
	summary := &Summary{Input: input, Output: output}

	pageCount, err := pdfio.PageCount(input)
	if err != nil {
		return nil, NewError(KindInput, "open", err)
	}
	summary.PageCount = pageCount
	r.Log.Info("converting", "input", input, "pages", pageCount, "dpi", cfg.DPI)

	scratch, err := pdfio.NewScratch()
	if err != nil {
		return nil, NewError(KindOutput, "scratch", err)
	}

	paths, err := r.prepare(ctx, scratch, input, summary)
	if err != nil {
		return nil, err
	}

	bk, analyses, err := r.analyze(ctx, paths, summary)
	if err != nil {
		return nil, err
	}
	bk.DPI = cfg.DPI
	bk.PageCount = pageCount

	decision := Aggregate(bk, analyses, AggregateOptions{
		Color:         colorcorrect.DefaultOptions(),
		PageNum:       pagenum.DefaultOptions(),
		ColorEnabled:  cfg.ColorCorrection,
		OffsetEnabled: cfg.OffsetAlignment,
	})
	summary.Decision = decision
	r.logDecision(decision)

	finalPaths, err := r.apply(ctx, scratch, paths, bk, decision, summary)
	if err != nil {
		return nil, err
	}

	if err := r.assemble(ctx, finalPaths, output, summary); err != nil {
		return nil, err
	}

	if err := scratch.Cleanup(); err != nil {
		r.Log.Warn("scratch cleanup failed", "dir", scratch.Dir, "error", err)
	}

	summary.Duration = time.Since(start)
	summary.Processed = pageCount - summary.Failed
	r.Log.Info("done", "output", output, "pages", summary.Processed, "fallback_pages", summary.Failed,
		"duration", summary.Duration.Round(time.Millisecond))
	return summary, nil
}

// prepare rasterizes the input and runs the pre-analysis stages:
// upscale, internal-resolution normalization, deskew.
func (r *Runner) prepare(ctx context.Context, scratch *pdfio.Scratch, input string, summary *Summary) ([]string, error) {
	cfg := r.Config

	rasterDir, err := scratch.StageDir("raster")
	if err != nil {
		return nil, NewError(KindOutput, "scratch", err)
	}
	paths, err := pdfio.Rasterize(ctx, input, rasterDir, cfg.DPI, func(done, total int) {
		r.Log.Debug("rasterized", "page", done, "total", total)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, NewError(KindInput, "rasterize", err)
	}

	if cfg.Upscale && r.Upscaler != nil {
		paths, err = r.upscale(ctx, scratch, paths, summary)
		if err != nil {
			return nil, err
		}
	}

	if cfg.InternalResolution {
		paths, err = r.normalizeResolution(ctx, scratch, paths, summary)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Deskew {
		paths, err = r.deskewPages(ctx, scratch, paths, summary)
		if err != nil {
			return nil, err
		}
	}

	return paths, nil
}

func (r *Runner) upscale(ctx context.Context, scratch *pdfio.Scratch, paths []string, summary *Summary) ([]string, error) {
	dir, err := scratch.StageDir("upscaled")
	if err != nil {
		return nil, NewError(KindOutput, "scratch", err)
	}
	out := make([]string, len(paths))
	errs := ForEachPage(ctx, len(paths), r.workerConfig(0), func(ctx context.Context, i int) error {
		dst := filepath.Join(dir, filepath.Base(paths[i]))
		if err := r.Upscaler.Upscale(ctx, paths[i], dst); err != nil {
			// Fall back to the original raster for this page.
			out[i] = paths[i]
			return err
		}
		out[i] = dst
		return nil
	})
	r.collectPageErrors(errs, "upscale", summary)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Runner) normalizeResolution(ctx context.Context, scratch *pdfio.Scratch, paths []string, summary *Summary) ([]string, error) {
	dir, err := scratch.StageDir("normalized")
	if err != nil {
		return nil, NewError(KindOutput, "scratch", err)
	}
	out := make([]string, len(paths))
	errs := ForEachPage(ctx, len(paths), r.workerConfig(0), func(ctx context.Context, i int) error {
		img, err := raster.Load(paths[i])
		if err != nil {
			out[i] = paths[i]
			return err
		}
		normalized, err := normalizeToCanvas(img, config.InternalResolutionWidth, config.InternalResolutionHeight)
		if err != nil {
			out[i] = paths[i]
			return err
		}
		dst := filepath.Join(dir, filepath.Base(paths[i]))
		if err := raster.Save(normalized, dst); err != nil {
			out[i] = paths[i]
			return err
		}
		out[i] = dst
		return nil
	})
	r.collectPageErrors(errs, "normalize", summary)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// normalizeToCanvas fits a page onto the fixed internal canvas,
// preserving aspect ratio and padding with white.
func normalizeToCanvas(img image.Image, width, height int) (image.Image, error) {
	b := img.Bounds()
	scaleW := float64(width) / float64(b.Dx())
	scaleH := float64(height) / float64(b.Dy())
	scale := min(scaleW, scaleH)
	w := max(int(float64(b.Dx())*scale), 1)
	h := max(int(float64(b.Dy())*scale), 1)
	resized, err := raster.Resize(img, w, h, raster.Lanczos3)
	if err != nil {
		return nil, err
	}
	return margin.PadToSize(resized, width, height, [3]uint8{255, 255, 255})
}

func (r *Runner) deskewPages(ctx context.Context, scratch *pdfio.Scratch, paths []string, summary *Summary) ([]string, error) {
	dir, err := scratch.StageDir("deskewed")
	if err != nil {
		return nil, NewError(KindOutput, "scratch", err)
	}
	opts := deskew.DefaultOptions()
	out := make([]string, len(paths))
	errs := ForEachPage(ctx, len(paths), r.workerConfig(0), func(ctx context.Context, i int) error {
		img, err := raster.Load(paths[i])
		if err != nil {
			out[i] = paths[i]
			return err
		}
		corrected, angle, err := deskew.Correct(img, opts)
		if err != nil {
			out[i] = paths[i]
			return err
		}
		if angle != 0 {
			r.Log.Debug("deskewed", "page", i+1, "angle", angle)
		}
		dst := filepath.Join(dir, filepath.Base(paths[i]))
		if err := raster.Save(corrected, dst); err != nil {
			out[i] = paths[i]
			return err
		}
		out[i] = dst
		return nil
	})
	r.collectPageErrors(errs, "deskew", summary)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// analyze runs the per-page analyses over the worker pool and gathers
// them in page-index order.
func (r *Runner) analyze(ctx context.Context, paths []string, summary *Summary) (PageBook, []PageAnalysis, error) {
	cfg := r.Config

	first, err := raster.Load(paths[0])
	if err != nil {
		return PageBook{}, nil, NewError(KindInput, "analyze", err)
	}
	bk := PageBook{
		PageCount: len(paths),
		Width:     first.Bounds().Dx(),
		Height:    first.Bounds().Dy(),
	}

	marginOpts := margin.DefaultOptions()
	marginOpts.MinMargin = int(cfg.MarginTrimPercent / 100 * float64(min(bk.Width, bk.Height)))
	colorOpts := colorcorrect.DefaultOptions()
	pnOpts := pagenum.DefaultOptions()

	analyses, errs := MapPages(ctx, len(paths), r.workerConfig(pageBytes(bk)), func(ctx context.Context, i int) (PageAnalysis, error) {
		a := PageAnalysis{PageIndex: i}
		img, err := raster.Load(paths[i])
		if err != nil {
			return a, err
		}

		det, err := margin.Detect(img, marginOpts)
		if err != nil && !errors.Is(err, margin.ErrNoContent) {
			return a, err
		}
		det.PageIndex = i
		a.Margin = det

		if cfg.ColorCorrection {
			stats, err := colorcorrect.Analyze(img, colorOpts)
			if err != nil {
				return a, err
			}
			a.Color = stats
		}

		if cfg.OffsetAlignment && r.Detector != nil {
			a.PageNum = pagenum.Detect(ctx, r.Detector, img, i, pnOpts)
		}
		return a, nil
	})
	r.collectPageErrors(errs, "analyze", summary)
	if err := ctx.Err(); err != nil {
		return PageBook{}, nil, err
	}
	return bk, analyses, nil
}

// apply runs the per-page apply stages against the immutable decision:
// color correction, then finalize.
func (r *Runner) apply(ctx context.Context, scratch *pdfio.Scratch, paths []string, bk PageBook, decision BookDecision, summary *Summary) ([]string, error) {
	cfg := r.Config
	current := paths

	if cfg.ColorCorrection && !decision.Color.IsIdentity() {
		dir, err := scratch.StageDir("colored")
		if err != nil {
			return nil, NewError(KindOutput, "scratch", err)
		}
		out := make([]string, len(current))
		errs := ForEachPage(ctx, len(current), r.workerConfig(pageBytes(bk)), func(ctx context.Context, i int) error {
			img, err := raster.Load(current[i])
			if err != nil {
				out[i] = current[i]
				return err
			}
			corrected, err := colorcorrect.Apply(img, decision.Color)
			if err != nil {
				out[i] = current[i]
				return err
			}
			dst := filepath.Join(dir, filepath.Base(current[i]))
			if err := raster.Save(corrected, dst); err != nil {
				out[i] = current[i]
				return err
			}
			out[i] = dst
			return nil
		})
		r.collectPageErrors(errs, "color", summary)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current = out
	}

	finalDir, err := scratch.StageDir("final")
	if err != nil {
		return nil, NewError(KindOutput, "scratch", err)
	}
	items := make([]finalize.BatchItem, len(current))
	finalPaths := make([]string, len(current))
	for i, src := range current {
		dst := filepath.Join(finalDir, fmt.Sprintf("page_%04d.png", i))
		shift := pagenum.Shift{}
		if cfg.OffsetAlignment && i < len(decision.Offsets.Shifts) {
			shift = decision.Offsets.Shifts[i]
		}
		items[i] = finalize.BatchItem{
			Src:    src,
			Dst:    dst,
			IsOdd:  margin.IsOddPage(i),
			ShiftX: shift.X,
			ShiftY: shift.Y,
		}
		finalPaths[i] = dst
	}

	finOpts := finalize.DefaultOptions()
	finOpts.TargetHeight = cfg.OutputHeight
	errs := finalize.Batch(ctx, items, decision.Crops, finOpts, finalize.BatchConfig{
		MaxWorkers: r.workerConfig(pageBytes(bk)).EffectiveWorkers(len(items)),
		Progress: func(done, total int) {
			r.Log.Debug("finalized", "page", done, "total", total)
		},
	})
	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			summary.RecordPageError(NewPageError(i, "finalize", err))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failed == len(items) {
		return nil, NewError(KindOutput, "finalize", errors.New("no page could be finalized"))
	}
	// Pages that failed finalize fall back to the pre-finalize raster
	// so the output still carries every page.
	for i, err := range errs {
		if err != nil {
			finalPaths[i] = current[i]
		}
	}
	return finalPaths, nil
}

// assemble writes the output PDF, with the searchable text layer when
// OCR is enabled.
func (r *Runner) assemble(ctx context.Context, finalPaths []string, output string, summary *Summary) error {
	if r.Config.OCR && r.OCR != nil {
		pages := make([]pdfio.SandwichPage, len(finalPaths))
		errs := ForEachPage(ctx, len(finalPaths), r.workerConfig(0), func(ctx context.Context, i int) error {
			runs, err := r.OCR.Recognize(ctx, finalPaths[i])
			pages[i] = pdfio.SandwichPage{ImagePath: finalPaths[i], Runs: runs}
			return err
		})
		r.collectPageErrors(errs, "text-layer", summary)
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := pdfio.AssembleSandwich(ctx, pages, output, r.Config.DPI); err != nil {
			return NewError(KindOutput, "assemble", err)
		}
		return nil
	}
	if err := pdfio.Assemble(ctx, finalPaths, output); err != nil {
		return NewError(KindOutput, "assemble", err)
	}
	return nil
}

func (r *Runner) workerConfig(peakPageBytes uint64) WorkerConfig {
	return WorkerConfig{
		MaxWorkers:        r.Config.EffectiveThreads(),
		MemoryBudgetBytes: r.Config.MemoryBudgetBytes,
		PeakPageBytes:     peakPageBytes,
	}
}

// pageBytes estimates the peak per-worker working set: input raster,
// output raster, and one scratch copy.
func pageBytes(bk PageBook) uint64 {
	return uint64(bk.Width) * uint64(bk.Height) * 4 * 3
}

func (r *Runner) collectPageErrors(errs []error, op string, summary *Summary) {
	for i, err := range errs {
		if err == nil || errors.Is(err, context.Canceled) {
			continue
		}
		summary.RecordPageError(NewPageError(i, op, err))
		r.Log.Warn("page failed, continuing with fallback", "stage", op, "page", i+1, "error", err)
	}
}

func (r *Runner) logDecision(d BookDecision) {
	r.Log.Info("book decision",
		"unified_margins", fmt.Sprintf("%+v", d.Unified),
		"odd_crop", fmt.Sprintf("%+v", d.Crops.Odd),
		"even_crop", fmt.Sprintf("%+v", d.Crops.Even),
		"color_identity", d.Color.IsIdentity(),
		"page_number_shift", d.Offsets.PageNumberShift,
		"shift_confidence", d.Offsets.Confidence)
}
