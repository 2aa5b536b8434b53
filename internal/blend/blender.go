package blend

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/orthoblend/internal/ortho"
)

// WeightType selects the accumulator representation for the weight-sum
// pyramid (spec.md §4.4's "weight data type"). It selects how the running
// denominator is stored and summed, together with the matching
// normalization factor and coverage threshold, so results can differ
// slightly at the margins (see coverageThreshold) —
// Float32 sums natural [0,1]-scale weights; Int16 sums a Q8 fixed-point
// approximation of the same quantity, trading a little precision (and a
// genuine, unchecked overflow risk across many overlapping tiles, as
// spec.md §4.4 accepts) for integer-only arithmetic.
type WeightType int

const (
	Float32 WeightType = iota
	Int16
)

// Config configures one Blender instance.
type Config struct {
	NumBands   int // clamped to [0, 50] by New; see spec.md §6
	WeightType WeightType
}

// Blender is the Laplacian/Gaussian-pyramid dual-mask compositor. Its
// pyramids live from Prepare to Blend and are released after (spec.md
// §3's lifecycle rule); a Blender is not safe for concurrent Feed calls —
// spec.md §9 reserves tile-level parallelism for the mask generator only.
type Blender struct {
	cfg Config

	dstROI image.Rectangle
	padded image.Rectangle
	n      int
	sizes  []image.Point

	l     [][]int16
	wsumF [][]float32
	wsumI [][]int16

	fed bool
}

// New constructs an unprepared Blender.
func New(cfg Config) *Blender {
	if cfg.NumBands < 0 {
		cfg.NumBands = 0
	}
	if cfg.NumBands > 50 {
		cfg.NumBands = 50
	}
	return &Blender{cfg: cfg}
}

// Prepare allocates the pyramid accumulators for dstROI, the canvas
// region the caller intends to blend into.
func (b *Blender) Prepare(dstROI image.Rectangle) error {
	if dstROI.Dx() <= 0 || dstROI.Dy() <= 0 {
		return ortho.Wrap(ortho.KindCanvasInvalid, "", fmt.Errorf("non-positive dst ROI %v", dstROI))
	}

	maxDim := dstROI.Dx()
	if dstROI.Dy() > maxDim {
		maxDim = dstROI.Dy()
	}
	n := b.cfg.NumBands
	if cap := log2Ceil(maxDim); n > cap {
		n = cap
	}

	step := 1 << n
	paddedW := ceilToMultiple(dstROI.Dx(), step)
	paddedH := ceilToMultiple(dstROI.Dy(), step)

	b.n = n
	b.dstROI = dstROI
	b.padded = image.Rect(dstROI.Min.X, dstROI.Min.Y, dstROI.Min.X+paddedW, dstROI.Min.Y+paddedH)

	b.sizes = make([]image.Point, n+1)
	b.sizes[0] = image.Pt(paddedW, paddedH)
	for i := 1; i <= n; i++ {
		b.sizes[i] = image.Pt((b.sizes[i-1].X+1)/2, (b.sizes[i-1].Y+1)/2)
	}

	b.l = make([][]int16, n+1)
	for i, sz := range b.sizes {
		b.l[i] = make([]int16, sz.X*sz.Y*3)
	}

	switch b.cfg.WeightType {
	case Float32:
		b.wsumF = make([][]float32, n+1)
		for i, sz := range b.sizes {
			b.wsumF[i] = make([]float32, sz.X*sz.Y)
		}
	case Int16:
		b.wsumI = make([][]int16, n+1)
		for i, sz := range b.sizes {
			b.wsumI[i] = make([]int16, sz.X*sz.Y)
		}
	}

	b.fed = false
	return nil
}

// Feed accumulates one tile's contribution. image, weight, and blend must
// share the same dimensions; topLeft is the tile's canvas-space placement.
func (b *Blender) Feed(img image.Image, weight, blendMask *image.Gray, topLeft image.Point) error {
	if b.sizes == nil {
		return ortho.Wrap(ortho.KindTypeMismatch, "", fmt.Errorf("feed called before prepare"))
	}

	ib := img.Bounds()
	tw, th := ib.Dx(), ib.Dy()
	if wb := weight.Bounds(); wb.Dx() != tw || wb.Dy() != th {
		return ortho.Wrap(ortho.KindTypeMismatch, "", fmt.Errorf("weight mask size %v != image size %dx%d", wb, tw, th))
	}
	if bb := blendMask.Bounds(); bb.Dx() != tw || bb.Dy() != th {
		return ortho.Wrap(ortho.KindTypeMismatch, "", fmt.Errorf("blend mask size %v != image size %dx%d", bb, tw, th))
	}

	tileBounds := image.Rect(topLeft.X, topLeft.Y, topLeft.X+tw, topLeft.Y+th)

	support, err := b.supportRegion(tileBounds)
	if err != nil {
		return err
	}

	imgPlane := reflectPadImage(img, tileBounds, support)
	lap := laplacianPyramid(imgPlane, b.n)

	convert := convertFloat
	if b.cfg.WeightType == Int16 {
		convert = convertFixed
	}
	wPlane := zeroPadMask(weight, tileBounds, support, convert)
	bPlane := zeroPadMask(blendMask, tileBounds, support, convert)
	wg := gaussianPyramid(wPlane, b.n)
	bg := gaussianPyramid(bPlane, b.n)

	for i := 0; i <= b.n; i++ {
		b.accumulateLevel(i, support, lap[i], wg[i], bg[i])
	}

	b.fed = true
	return nil
}

// accumulateLevel folds one tile's level-i Laplacian/weight/blend planes
// into the canvas-level accumulators, at the canvas-pyramid coordinates
// the support region maps to once halved i times.
func (b *Blender) accumulateLevel(level int, support image.Rectangle, lap, w, bl plane) {
	size := b.sizes[level]
	destX := (support.Min.X - b.padded.Min.X) >> level
	destY := (support.Min.Y - b.padded.Min.Y) >> level

	lAcc := b.l[level]

	for y := 0; y < lap.h; y++ {
		dy := destY + y
		if dy < 0 || dy >= size.Y {
			continue
		}
		for x := 0; x < lap.w; x++ {
			dx := destX + x
			if dx < 0 || dx >= size.X {
				continue
			}

			wVal := w.at(x, y, 0)
			bVal := bl.at(x, y, 0)
			pixelIdx := dy*size.X + dx

			var bFrac float64
			if b.cfg.WeightType == Float32 {
				bFrac = bVal
			} else {
				bFrac = bVal / 256.0
			}

			base := pixelIdx * 3
			for c := 0; c < 3; c++ {
				contribution := lap.at(x, y, c) * bFrac
				lAcc[base+c] += int16(math.Round(contribution))
			}

			switch b.cfg.WeightType {
			case Float32:
				b.wsumF[level][pixelIdx] += float32(wVal)
			case Int16:
				b.wsumI[level][pixelIdx] += int16(math.Round(wVal))
			}
		}
	}
}

// supportRegion computes the grid-aligned region of the padded canvas a
// tile can contribute to (spec.md §4.4 step 1 of feed): extend outward by
// the reflect gap, clip to the padded canvas, then snap to the pyramid's
// 2^n grid.
func (b *Blender) supportRegion(tileBounds image.Rectangle) (image.Rectangle, error) {
	step := 1 << b.n
	gap := 3 * step

	extended := tileBounds.Inset(-gap)
	clipped := extended.Intersect(b.padded)
	if clipped.Empty() {
		return image.Rectangle{}, ortho.Wrap(ortho.KindIncompatibleLevel, "", fmt.Errorf("tile support region is empty"))
	}

	originX := b.padded.Min.X + ((clipped.Min.X-b.padded.Min.X)/step)*step
	originY := b.padded.Min.Y + ((clipped.Min.Y-b.padded.Min.Y)/step)*step
	width := ceilToMultiple(clipped.Max.X-originX, step)
	height := ceilToMultiple(clipped.Max.Y-originY, step)

	support := image.Rect(originX, originY, originX+width, originY+height).Intersect(b.padded)
	if support.Empty() {
		return image.Rectangle{}, ortho.Wrap(ortho.KindIncompatibleLevel, "", fmt.Errorf("tile support region is empty after clamp"))
	}
	return support, nil
}

// Blend collapses the pyramid and returns the blended composite
// (3-channel int16, the caller converts to 8-bit) and a coverage mask
// (255 where some tile's weight mask covered the pixel, else 0), cropped
// to the originally requested dst ROI.
func (b *Blender) Blend() (*Int16Image, *image.Gray, error) {
	if !b.fed {
		return nil, nil, ortho.Wrap(ortho.KindBlenderEmpty, "", nil)
	}

	for i := 0; i <= b.n; i++ {
		b.normalizeLevel(i)
	}

	for i := b.n; i > 0; i-- {
		up := upFromInt16(b.l[i], b.sizes[i], b.sizes[i-1])
		dst := b.l[i-1]
		for idx := range dst {
			dst[idx] += int16(math.Round(up.data[idx]))
		}
	}

	full := b.sizes[0]
	fullImg := &Int16Image{W: full.X, H: full.Y, Pix: b.l[0]}

	out := fullImg.Crop(image.Rect(0, 0, b.dstROI.Dx(), b.dstROI.Dy()))

	mask := image.NewGray(image.Rect(0, 0, b.dstROI.Dx(), b.dstROI.Dy()))
	threshold := b.coverageThreshold()
	wsum0 := b.wsumRaw(0)
	for y := 0; y < mask.Bounds().Dy(); y++ {
		for x := 0; x < mask.Bounds().Dx(); x++ {
			idx := y*full.X + x
			v := uint8(0)
			if wsum0[idx] > threshold {
				v = 255
			}
			mask.SetGray(x, y, color.Gray{Y: v})
			if v == 0 {
				base := (y*out.W + x) * 3
				out.Pix[base], out.Pix[base+1], out.Pix[base+2] = 0, 0, 0
			}
		}
	}

	b.l = nil
	b.wsumF = nil
	b.wsumI = nil

	return out, mask, nil
}

func (b *Blender) normalizeLevel(level int) {
	size := b.sizes[level]
	lAcc := b.l[level]

	for idx := 0; idx < size.X*size.Y; idx++ {
		var normFactor float64
		switch b.cfg.WeightType {
		case Float32:
			normFactor = 1.0 / (float64(b.wsumF[level][idx]) + 1e-5)
		case Int16:
			normFactor = 256.0 / (float64(b.wsumI[level][idx]) + 1.0)
		}
		base := idx * 3
		for c := 0; c < 3; c++ {
			lAcc[base+c] = int16(math.Round(float64(lAcc[base+c]) * normFactor))
		}
	}
}

// coverageThreshold is the accumulated weight a pixel must exceed to
// count as covered. In Int16 mode the thinnest possible nonzero weight
// (convertFixed's minimum quantization, 1) sums to exactly 1.0 for a
// pixel touched by only one tile at that weight, which fails a strict
// ">1.0" test: such a pixel is tile-covered but reports as uncovered.
func (b *Blender) coverageThreshold() float64 {
	if b.cfg.WeightType == Float32 {
		return 1e-5
	}
	return 1.0
}

func (b *Blender) wsumRaw(level int) []float64 {
	size := b.sizes[level]
	out := make([]float64, size.X*size.Y)
	switch b.cfg.WeightType {
	case Float32:
		for i, v := range b.wsumF[level] {
			out[i] = float64(v)
		}
	case Int16:
		for i, v := range b.wsumI[level] {
			out[i] = float64(v)
		}
	}
	return out
}

func log2Ceil(x int) int {
	if x <= 1 {
		return 0
	}
	n, v := 0, 1
	for v < x {
		v <<= 1
		n++
	}
	return n
}

func ceilToMultiple(v, step int) int {
	if step <= 1 {
		return v
	}
	return ((v + step - 1) / step) * step
}

func convertFloat(v uint8) float64 { return float64(v) / 255.0 }

// convertFixed is the Q8 fixed-point approximation of convertFloat: 0 maps
// to 0 (zero stays zero, so an unweighted pixel never contributes), every
// other byte maps into [1, 256] so a nonzero mask value never rounds down
// to a zero weight and silently vanishes (spec.md §4.4's "+1 offset ...
// to prevent zero-denominators").
func convertFixed(v uint8) float64 {
	if v == 0 {
		return 0
	}
	f := math.Round(float64(v) * 256.0 / 255.0)
	if f < 1 {
		f = 1
	}
	return f
}
