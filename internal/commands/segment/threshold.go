// Package segment implements the IMAGE->BINARY command family:
// threshold, selecting the cut value by one of the
// MANUAL/LI/MIN_ERROR/TRIANGLE/MOMENTS/OTSU modes.
package segment

import (
	"encoding/json"
	"math"

	"github.com/imagec/engine/internal/errs"
	"github.com/imagec/engine/internal/executor"
	"github.com/imagec/engine/internal/imgbuf"
)

// Mode selects the threshold cut-value algorithm.
type Mode string

const (
	ModeManual   Mode = "MANUAL"
	ModeLi       Mode = "LI"
	ModeMinError Mode = "MIN_ERROR"
	ModeTriangle Mode = "TRIANGLE"
	ModeMoments  Mode = "MOMENTS"
	ModeOtsu     Mode = "OTSU"
)

// Threshold converts the active IMAGE into a BINARY mask by comparing
// each sample against a cut value chosen by Mode.
type Threshold struct {
	Mode       Mode
	ManualCut  float64
	Bins       int
}

// NewThreshold decodes {"mode": string, "manualCut": float64, "bins": int} params.
func NewThreshold(params []byte) (executor.Command, error) {
	var p struct {
		Mode      Mode    `json:"mode"`
		ManualCut float64 `json:"manualCut"`
		Bins      int     `json:"bins"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if p.Mode == "" {
		p.Mode = ModeManual
	}
	if p.Bins <= 0 {
		p.Bins = 256
	}
	return &Threshold{Mode: p.Mode, ManualCut: p.ManualCut, Bins: p.Bins}, nil
}

func (t *Threshold) Name() string               { return "threshold" }
func (t *Threshold) Input() executor.InputType   { return executor.InputImage }
func (t *Threshold) Output() executor.OutputType { return executor.OutputBinary }

func (t *Threshold) Execute(ctx *executor.Context) error {
	img := ctx.Active.Image
	cut, err := t.cutValue(img)
	if err != nil {
		return err
	}
	mask := imgbuf.NewBinaryMask(img.Width, img.Height, img.Origin)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			if img.At(x, y, 0) >= cut {
				mask.Set(x, y, true)
			}
		}
	}
	ctx.SetBinary(mask)
	return nil
}

func (t *Threshold) cutValue(img *imgbuf.ImageBuffer) (float64, error) {
	if t.Mode == ModeManual {
		return t.ManualCut, nil
	}

	h := imgbuf.NewHistogram(img, t.Bins, 0, img.MaxValue()+1)
	binWidth := (img.MaxValue() + 1) / float64(t.Bins)

	var idx int
	switch t.Mode {
	case ModeOtsu:
		idx = otsu(h.Bins)
	case ModeTriangle:
		idx = triangle(h.Bins)
	case ModeLi:
		idx = li(h.Bins)
	case ModeMoments:
		idx = moments(h.Bins)
	case ModeMinError:
		idx = minError(h.Bins)
	default:
		return 0, errs.New(errs.CodeSegmentationFailed, "threshold: unknown mode "+string(t.Mode))
	}
	return float64(idx+1) * binWidth, nil
}

// otsu maximizes between-class variance.
func otsu(hist []uint64) int {
	total := uint64(0)
	for _, c := range hist {
		total += c
	}
	if total == 0 {
		return 0
	}
	var sumAll float64
	for i, c := range hist {
		sumAll += float64(i) * float64(c)
	}

	var sumB, wB float64
	var best float64 = -1
	bestIdx := 0
	for i, c := range hist {
		wB += float64(c)
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(i) * float64(c)
		mB := sumB / wB
		mF := (sumAll - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			bestIdx = i
		}
	}
	return bestIdx
}

// triangle finds the histogram bin farthest from the line connecting
// the peak bin to the far empty tail.
func triangle(hist []uint64) int {
	peak := 0
	for i, c := range hist {
		if c > hist[peak] {
			peak = i
		}
	}
	// find the last non-zero bin past the peak, or the first, whichever
	// side has a longer run, matching the classic ImageJ triangle method.
	lo, hi := 0, len(hist)-1
	for lo < len(hist) && hist[lo] == 0 {
		lo++
	}
	for hi > 0 && hist[hi] == 0 {
		hi--
	}
	tail := hi
	if peak-lo > hi-peak {
		tail = lo
	}

	x1, y1 := float64(peak), float64(hist[peak])
	x2, y2 := float64(tail), float64(hist[tail])
	dx, dy := x2-x1, y2-y1
	norm := dx*dx + dy*dy
	if norm == 0 {
		return peak
	}

	start, end := peak, tail
	if start > end {
		start, end = end, start
	}
	bestDist := -1.0
	bestIdx := peak
	for i := start; i <= end; i++ {
		// perpendicular distance from (i, hist[i]) to the line (x1,y1)-(x2,y2)
		d := dx*(y1-float64(hist[i])) - (x1-float64(i))*dy
		if d < 0 {
			d = -d
		}
		if d > bestDist {
			bestDist = d
			bestIdx = i
		}
	}
	return bestIdx
}

// li implements Li's iterative minimum cross-entropy method.
func li(hist []uint64) int {
	var sum, count float64
	for i, c := range hist {
		sum += float64(i) * float64(c)
		count += float64(c)
	}
	if count == 0 {
		return 0
	}
	threshold := sum / count
	for iter := 0; iter < 100; iter++ {
		var sumBelow, countBelow, sumAbove, countAbove float64
		for i, c := range hist {
			if float64(i) <= threshold {
				sumBelow += float64(i) * float64(c)
				countBelow += float64(c)
			} else {
				sumAbove += float64(i) * float64(c)
				countAbove += float64(c)
			}
		}
		meanBelow, meanAbove := 0.0, 0.0
		if countBelow > 0 {
			meanBelow = sumBelow / countBelow
		}
		if countAbove > 0 {
			meanAbove = sumAbove / countAbove
		}
		next := 0.0
		if meanBelow > 0 && meanAbove > 0 {
			next = (meanAbove - meanBelow) / (math.Log(meanAbove) - math.Log(meanBelow))
		} else {
			next = (meanBelow + meanAbove) / 2
		}
		if math.Abs(next-threshold) < 0.5 {
			threshold = next
			break
		}
		threshold = next
	}
	return int(threshold)
}

// moments selects the threshold reproducing the first three moments
// of the original histogram in a two-level approximation.
func moments(hist []uint64) int {
	total := 0.0
	for _, c := range hist {
		total += float64(c)
	}
	if total == 0 {
		return 0
	}
	var m1, m2, m3 float64
	for i, c := range hist {
		p := float64(c) / total
		x := float64(i)
		m1 += x * p
		m2 += x * x * p
		m3 += x * x * x * p
	}
	cd := m2 - m1*m1
	c0 := (-m2*m2 + m1*m3) / cd
	c1 := (m1*m2 - m3) / cd
	z0 := 0.5 * (-c1 - math.Sqrt(c1*c1-4*c0))
	z1 := 0.5 * (-c1 + math.Sqrt(c1*c1-4*c0))
	pd := (z1 - m1) / (z1 - z0)

	sum := 0.0
	for i, c := range hist {
		sum += float64(c) / total
		if sum > pd {
			return i
		}
	}
	return len(hist) - 1
}

// minError implements Kittler-Illingworth minimum error thresholding,
// a simplified Gaussian-mixture search.
func minError(hist []uint64) int {
	bestIdx := otsu(hist) // seed from Otsu, then locally refine
	bestCost := minErrorCost(hist, bestIdx)
	for i := 1; i < len(hist)-1; i++ {
		cost := minErrorCost(hist, i)
		if cost < bestCost {
			bestCost = cost
			bestIdx = i
		}
	}
	return bestIdx
}

func minErrorCost(hist []uint64, t int) float64 {
	var n0, n1, s0, s1, sq0, sq1 float64
	for i, c := range hist {
		x := float64(i)
		if i <= t {
			n0 += float64(c)
			s0 += x * float64(c)
			sq0 += x * x * float64(c)
		} else {
			n1 += float64(c)
			s1 += x * float64(c)
			sq1 += x * x * float64(c)
		}
	}
	if n0 == 0 || n1 == 0 {
		return 1e18
	}
	mean0, mean1 := s0/n0, s1/n1
	var0 := sq0/n0 - mean0*mean0
	var1 := sq1/n1 - mean1*mean1
	if var0 <= 0 {
		var0 = 1e-6
	}
	if var1 <= 0 {
		var1 = 1e-6
	}
	total := n0 + n1
	p0, p1 := n0/total, n1/total
	return p0*math.Log(var0) + p1*math.Log(var1) - 2*(p0*math.Log(p0)+p1*math.Log(p1))
}
