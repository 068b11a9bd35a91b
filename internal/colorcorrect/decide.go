package colorcorrect

import (
	"sort"

	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/mempool"
)

const (
	// scaleMin and scaleMax clamp the per-channel contrast stretch.
	scaleMin = 0.5
	scaleMax = 4.0
	// minChannelRange is the paper−ink gap below which a channel keeps
	// the identity transform.
	minChannelRange = 8
)

// GlobalParam is the book-wide affine correction plus the
// ghost-suppression curve. It is immutable once decided.
type GlobalParam struct {
	Scale          [3]float64
	Offset         [3]float64
	GhostThreshold uint8
	WhiteClipRange uint8
}

// Identity returns the no-op transform.
func Identity() GlobalParam {
	return GlobalParam{
		Scale:          [3]float64{1, 1, 1},
		Offset:         [3]float64{0, 0, 0},
		GhostThreshold: DefaultOptions().GhostThreshold,
		WhiteClipRange: DefaultOptions().WhiteClipRange,
	}
}

// IsIdentity reports whether the affine part is a no-op.
func (p GlobalParam) IsIdentity() bool {
	for c := range 3 {
		if p.Scale[c] != 1 || p.Offset[c] != 0 {
			return false
		}
	}
	return true
}

// Decide computes the global transform mapping median paper to white
// and median ink to black, after MAD outlier rejection over the
// per-page pools. An empty inlier pool downgrades to identity; the
// stage never fails.
func Decide(stats []Stats, opts Options) GlobalParam {
	var valid []Stats
	for _, s := range stats {
		if s.Valid {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return identityWith(opts)
	}

	inliers := rejectOutliers(valid, opts.MADScale)
	if len(inliers) == 0 {
		return identityWith(opts)
	}

	param := identityWith(opts)
	for c := range 3 {
		paper := medianOf(inliers, func(s Stats) float64 { return s.Paper[c] })
		ink := medianOf(inliers, func(s Stats) float64 { return s.Ink[c] })
		if paper-ink < minChannelRange {
			continue
		}
		scale := 255.0 / (paper - ink)
		if scale < scaleMin {
			scale = scaleMin
		} else if scale > scaleMax {
			scale = scaleMax
		}
		param.Scale[c] = scale
		param.Offset[c] = -scale * ink
	}
	return param
}

func identityWith(opts Options) GlobalParam {
	p := Identity()
	p.GhostThreshold = opts.GhostThreshold
	p.WhiteClipRange = opts.WhiteClipRange
	return p
}

// rejectOutliers drops pages whose paper or ink value falls outside
// median ± MADScale·MAD in any channel of either pool.
func rejectOutliers(stats []Stats, madScale float64) []Stats {
	type fence struct{ lo, hi float64 }
	fences := make([]fence, 0, 6)
	extract := make([]func(Stats) float64, 0, 6)
	for c := range 3 {
		c := c
		extract = append(extract, func(s Stats) float64 { return s.Paper[c] })
		extract = append(extract, func(s Stats) float64 { return s.Ink[c] })
	}
	for _, get := range extract {
		m := medianOf(stats, get)
		dev := make([]float64, len(stats))
		for i, s := range stats {
			d := get(s) - m
			if d < 0 {
				d = -d
			}
			dev[i] = d
		}
		mad := medianFloat(dev)
		thr := madScale * mad
		fences = append(fences, fence{lo: m - thr, hi: m + thr})
	}

	inliers := make([]Stats, 0, len(stats))
	for _, s := range stats {
		keep := true
		for i, get := range extract {
			v := get(s)
			if v < fences[i].lo || v > fences[i].hi {
				keep = false
				break
			}
		}
		if keep {
			inliers = append(inliers, s)
		}
	}
	return inliers
}

func medianOf(stats []Stats, get func(Stats) float64) float64 {
	vals := make([]float64, len(stats))
	for i, s := range stats {
		vals[i] = get(s)
	}
	return medianFloat(vals)
}

// medianFloat computes the median without disturbing the input order.
func medianFloat(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	scratch := mempool.GetFloat32(n)
	defer mempool.PutFloat32(scratch)
	for i, v := range values {
		scratch[i] = float32(v)
	}
	sort.Slice(scratch, func(i, j int) bool { return scratch[i] < scratch[j] })
	if n%2 == 1 {
		return float64(scratch[n/2])
	}
	return (float64(scratch[n/2-1]) + float64(scratch[n/2])) / 2
}
