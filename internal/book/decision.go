package book

import (
	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/colorcorrect"
	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/margin"
	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/pagenum"
)

// PageBook describes the book being processed: fixed facts shared by
// every stage.
type PageBook struct {
	PageCount int
	// Width and Height are the analysis-time page dimensions.
	Width  int
	Height int
	DPI    int
}

// PageAnalysis collects one page's analysis results. Missing analyses
// leave their zero values; Margin.Content.Empty() marks a page the
// margin detector skipped.
type PageAnalysis struct {
	PageIndex int
	Margin    margin.Detection
	Color     colorcorrect.Stats
	PageNum   pagenum.Detection
}

// BookDecision is the immutable record of every book-wide decision.
// It is computed from the complete per-page analysis set before any
// apply stage runs, and only read afterwards.
type BookDecision struct {
	Unified margin.Margins
	Crops   margin.CropRegions
	Color   colorcorrect.GlobalParam
	Offsets pagenum.OffsetAnalysis
}

// AggregateOptions carries the per-analysis options into aggregation.
type AggregateOptions struct {
	Color   colorcorrect.Options
	PageNum pagenum.Options
	// ColorEnabled and OffsetEnabled gate the optional decisions.
	ColorEnabled  bool
	OffsetEnabled bool
}

// Aggregate folds the per-page analyses into the BookDecision. The
// analyses slice is indexed by page, so medians and ties are
// reproducible. Disabled or downgraded decisions come back as
// identity: unified margins of zero pages are zero, the color param is
// identity, the offset analysis carries all-zero shifts.
func Aggregate(bk PageBook, analyses []PageAnalysis, opts AggregateOptions) BookDecision {
	valid := make([]margin.Detection, 0, len(analyses))
	for _, a := range analyses {
		if !a.Margin.Content.Empty() {
			valid = append(valid, a.Margin)
		}
	}

	unified := margin.Unify(valid)
	crops := margin.GroupCrop(valid, bk.Width, bk.Height, unified)

	colorParam := colorcorrect.Identity()
	if opts.ColorEnabled {
		stats := make([]colorcorrect.Stats, 0, len(analyses))
		for _, a := range analyses {
			stats = append(stats, a.Color)
		}
		colorParam = colorcorrect.Decide(stats, opts.Color)
	}

	offsets := pagenum.OffsetAnalysis{Shifts: make([]pagenum.Shift, bk.PageCount)}
	if opts.OffsetEnabled {
		dets := make([]pagenum.Detection, 0, len(analyses))
		for _, a := range analyses {
			dets = append(dets, a.PageNum)
		}
		offsets = pagenum.Analyze(dets, bk.PageCount, bk.Width, bk.Height, opts.PageNum)
	}

	return BookDecision{
		Unified: unified,
		Crops:   crops,
		Color:   colorParam,
		Offsets: offsets,
	}
}
