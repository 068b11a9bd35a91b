package finalize

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/margin"
	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/raster"
)

// BatchItem names one page's input and output files and its parity.
type BatchItem struct {
	Src   string
	Dst   string
	IsOdd bool
	// ShiftX and ShiftY are the page's alignment translation in output
	// coordinates.
	ShiftX int
	ShiftY int
}

// ProgressFunc is called after each page completes.
type ProgressFunc func(done, total int)

// BatchConfig bounds the batch worker pool.
type BatchConfig struct {
	// MaxWorkers caps concurrency; 0 means runtime.NumCPU().
	MaxWorkers int
	// Progress is optional.
	Progress ProgressFunc
}

// Batch finalizes every item, reading Src and writing Dst. Results are
// identical to sequential single-page Finalize calls: each page is
// independent and the crop region is chosen by parity alone. The
// context is checked between pages; in-flight pages complete.
func Batch(ctx context.Context, items []BatchItem, crops margin.CropRegions, opts Options, cfg BatchConfig) []error {
	errs := make([]error, len(items))
	if len(items) == 0 {
		return errs
	}
	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(items) {
		workers = len(items)
	}

	jobs := make(chan int, len(items))
	var wg sync.WaitGroup
	var mu sync.Mutex
	done := 0

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if err := ctx.Err(); err != nil {
					errs[idx] = err
					continue
				}
				errs[idx] = finalizeOne(items[idx], crops, opts)
				if cfg.Progress != nil {
					mu.Lock()
					done++
					cfg.Progress(done, len(items))
					mu.Unlock()
				}
			}
		}()
	}

	for i := range items {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return errs
}

func finalizeOne(item BatchItem, crops margin.CropRegions, opts Options) error {
	img, err := raster.Load(item.Src)
	if err != nil {
		return fmt.Errorf("finalize %s: %w", item.Src, err)
	}
	region := crops.Even
	if item.IsOdd {
		region = crops.Odd
	}
	out, err := Finalize(img, region, item.ShiftX, item.ShiftY, opts)
	if err != nil {
		return fmt.Errorf("finalize %s: %w", item.Src, err)
	}
	if err := raster.Save(out, item.Dst); err != nil {
		return fmt.Errorf("finalize %s: %w", item.Src, err)
	}
	return nil
}
