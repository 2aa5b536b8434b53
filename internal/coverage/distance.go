package coverage

import (
	"image"
	"image/color"
	"math"
)

// DistanceContext holds reusable buffers for the Euclidean distance
// transform, adapted from the teacher's mask.DistanceContext
// (internal/mask/distance.go) so the coverage mask builder can feather
// one tile's mask at a time without allocating fresh buffers per tile —
// matching the data model's "transient, released immediately after" rule
// for per-tile buffers.
type DistanceContext struct {
	v      []int
	z      []float64
	temp   []float64
	isEdge []bool
	rowBuf []float64
	colBuf []float64
}

// NewDistanceContext creates a context sized for images up to maxDim x maxDim.
func NewDistanceContext(maxDim int) *DistanceContext {
	ctx := &DistanceContext{}
	ctx.ensureCapacity(maxDim, maxDim)
	return ctx
}

func (c *DistanceContext) ensureCapacity(width, height int) {
	maxDim := width
	if height > maxDim {
		maxDim = height
	}
	area := width * height

	if len(c.v) < maxDim {
		c.v = make([]int, maxDim)
	}
	if len(c.z) < maxDim+1 {
		c.z = make([]float64, maxDim+1)
	}
	if len(c.temp) < area {
		c.temp = make([]float64, area)
	}
	if len(c.isEdge) < area {
		c.isEdge = make([]bool, area)
	}
	if len(c.rowBuf) < width {
		c.rowBuf = make([]float64, width)
	}
	if len(c.colBuf) < height {
		c.colBuf = make([]float64, height)
	}
}

// euclideanDistanceTransform computes, for every pixel with mask value > 0,
// its Euclidean distance to the nearest nonzero pixel that has a zero-valued
// 4-neighbour (such boundary pixels themselves get distance 0), normalized
// to 0-255 where maxDistance maps to 255 (clamped); zero-valued pixels stay
// 0, and a mask with no zero-valued pixel maps to 255 throughout. Algorithm: Felzenszwalb &
// Huttenlocher's separable squared-distance transform via parabola lower
// envelopes, run as two 1D passes.
func (c *DistanceContext) euclideanDistanceTransform(mask *image.Gray, maxDistance float64) *image.Gray {
	bounds := mask.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	c.ensureCapacity(width, height)

	infinity := maxDistance * maxDistance * 2.0
	temp, isEdge := c.temp, c.isEdge

	for i := 0; i < width*height; i++ {
		isEdge[i] = false
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if mask.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y == 0 {
				continue
			}
			idx := y*width + x
			if (x > 0 && mask.GrayAt(bounds.Min.X+x-1, bounds.Min.Y+y).Y == 0) ||
				(x < width-1 && mask.GrayAt(bounds.Min.X+x+1, bounds.Min.Y+y).Y == 0) ||
				(y > 0 && mask.GrayAt(bounds.Min.X+x, bounds.Min.Y+y-1).Y == 0) ||
				(y < height-1 && mask.GrayAt(bounds.Min.X+x, bounds.Min.Y+y+1).Y == 0) {
				isEdge[idx] = true
			}
		}
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := y*width + x
			if mask.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y == 0 {
				temp[idx] = infinity
			} else if isEdge[idx] {
				temp[idx] = 0.0
			} else {
				temp[idx] = infinity
			}
		}
	}

	rowBuf, colBuf := c.rowBuf, c.colBuf

	for y := 0; y < height; y++ {
		rowStart := y * width
		copy(rowBuf[:width], temp[rowStart:rowStart+width])
		distanceTransform1D(rowBuf[:width], rowBuf[:width], c.v, c.z)
		copy(temp[rowStart:rowStart+width], rowBuf[:width])
	}

	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			colBuf[y] = temp[y*width+x]
		}
		distanceTransform1D(colBuf[:height], colBuf[:height], c.v, c.z)
		for y := 0; y < height; y++ {
			temp[y*width+x] = colBuf[y]
		}
	}

	output := image.NewGray(bounds)
	maxDistSq := maxDistance * maxDistance

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := y*width + x
			val := mask.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y
			distSq := temp[idx]

			switch {
			case val == 0:
				output.SetGray(bounds.Min.X+x, bounds.Min.Y+y, color.Gray{Y: 0})
			case distSq >= infinity/2 || distSq >= maxDistSq:
				output.SetGray(bounds.Min.X+x, bounds.Min.Y+y, color.Gray{Y: 255})
			default:
				dist := math.Sqrt(distSq)
				output.SetGray(bounds.Min.X+x, bounds.Min.Y+y, color.Gray{Y: uint8(255.0 * dist / maxDistance)})
			}
		}
	}

	return output
}

// distanceTransform1D computes the squared distance transform along one
// dimension using the parabola lower envelope method.
func distanceTransform1D(input, output []float64, v []int, z []float64) {
	n := len(input)
	k := 0
	v[0] = 0
	z[0] = math.Inf(-1)
	z[1] = math.Inf(1)

	for q := 1; q < n; q++ {
		var s float64
		for k >= 0 {
			s = ((input[q] + float64(q*q)) - (input[v[k]] + float64(v[k]*v[k]))) /
				(2.0 * float64(q-v[k]))
			if s <= z[k] {
				k--
			} else {
				break
			}
		}
		k++
		v[k] = q
		z[k] = s
		z[k+1] = math.Inf(1)
	}

	k = 0
	for q := 0; q < n; q++ {
		for z[k+1] < float64(q) {
			k++
		}
		dx := float64(q - v[k])
		output[q] = dx*dx + input[v[k]]
	}
}
