// Package voronoi implements the Mask Generator (MG): one Voronoi
// ownership mask per tile, built from tile-center distances and
// constrained by per-tile validity masks, with a narrow seam-band gradient
// at Voronoi frontiers (spec.md §4.2).
package voronoi

import (
	"context"
	"image"
	"image/color"
	"math"
	"runtime"

	"github.com/MeKo-Tech/orthoblend/internal/ortho"
	"github.com/MeKo-Tech/orthoblend/internal/workerpool"
)

// Options configures mask generation.
type Options struct {
	// OverlapMargin is the half-width of the seam band, in pixels.
	OverlapMargin float64
	// Workers bounds how many tiles are processed concurrently. Each
	// tile's mask only depends on read-only tile geometry and validity
	// masks, so this is safe unlike the blender (spec.md §9). <= 0 uses
	// runtime.NumCPU(); 1 runs strictly sequentially, in
	// resolver-enumeration order.
	Workers int
}

// center is a precomputed tile center plus its bounds, avoiding repeated
// field access and orb.Point boxing in the O(T²·A) inner loop.
type center struct {
	cx, cy     float64
	minX, minY int
	maxX, maxY int
	validity   *image.Gray
}

// Generate produces one Voronoi mask per tile. validity[i] is tile i's
// loaded validity mask, or nil when the tile has none (treated as
// all-valid, matching the "zeroed substitute" wording of spec.md §4.2 —
// zero in the black=valid convention means every pixel is valid).
func Generate(ctx context.Context, tiles []*ortho.Tile, validity []*image.Gray, opts Options) ([]*image.Gray, error) {
	if opts.OverlapMargin < 0 {
		return nil, ortho.Wrap(ortho.KindInvalidGeometry, "", nil)
	}
	if len(tiles) == 0 {
		return nil, ortho.Wrap(ortho.KindInvalidGeometry, "", nil)
	}
	if len(validity) != len(tiles) {
		return nil, ortho.Wrap(ortho.KindInvalidGeometry, "", nil)
	}

	centers := make([]center, len(tiles))
	for i, t := range tiles {
		if validity[i] != nil {
			vb := validity[i].Bounds()
			if vb.Dx() != t.Width || vb.Dy() != t.Height {
				return nil, ortho.Wrap(ortho.KindMaskShapeMismatch, t.Name, nil)
			}
		}
		minX, minY, maxX, maxY := t.Bounds()
		centers[i] = center{
			cx:   float64(t.X) + float64(t.Width)/2,
			cy:   float64(t.Y) + float64(t.Height)/2,
			minX: minX, minY: minY, maxX: maxX, maxY: maxY,
			validity: validity[i],
		}
	}

	masks := make([]*image.Gray, len(tiles))

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	tasks := make([]workerpool.Task, len(tiles))
	for i := range tiles {
		i := i
		tasks[i] = workerpool.Task{Index: i, Run: func() error {
			masks[i] = generateOne(i, tiles, centers, opts.OverlapMargin)
			return nil
		}}
	}

	results := workerpool.Run(ctx, workers, tasks)
	for _, r := range results {
		if r.Err != nil {
			return nil, r.Err
		}
	}

	return masks, nil
}

// generateOne computes tile index self's full Voronoi mask.
func generateOne(self int, tiles []*ortho.Tile, centers []center, margin float64) *image.Gray {
	t := tiles[self]
	out := image.NewGray(image.Rect(0, 0, t.Width, t.Height))
	c := centers[self]

	for v := 0; v < t.Height; v++ {
		Y := t.Y + v
		for u := 0; u < t.Width; u++ {
			if c.validity != nil && c.validity.GrayAt(u, v).Y >= 128 {
				out.SetGray(u, v, color.Gray{Y: 0})
				continue
			}

			X := t.X + u
			dMin, dSecond := math.Inf(1), math.Inf(1)
			owner := -1

			for j := range tiles {
				cj := centers[j]
				if X < cj.minX || X >= cj.maxX || Y < cj.minY || Y >= cj.maxY {
					continue
				}
				if cj.validity != nil {
					lu, lv := X-cj.minX, Y-cj.minY
					if cj.validity.GrayAt(lu, lv).Y >= 128 {
						continue
					}
				}

				dx, dy := float64(X)-cj.cx, float64(Y)-cj.cy
				d := math.Sqrt(dx*dx + dy*dy)

				if d < dMin {
					dSecond = dMin
					dMin = d
					owner = j
				} else if d < dSecond {
					dSecond = d
				}
			}

			if owner < 0 {
				out.SetGray(u, v, color.Gray{Y: 0})
				continue
			}

			f := (dSecond - dMin) / 2
			var offset float64
			if owner == self {
				offset = f
			} else {
				offset = -f
			}

			out.SetGray(u, v, color.Gray{Y: rampByte(offset, margin)})
		}
	}

	return out
}

// rampByte implements the §4.2 step-6 output rule: full ownership at
// +margin and beyond, zero at -margin and beyond, a linear ramp between.
func rampByte(offset, margin float64) uint8 {
	if margin == 0 {
		if offset >= 0 {
			return 255
		}
		return 0
	}
	if offset >= margin {
		return 255
	}
	if offset < -margin {
		return 0
	}
	v := 255 * (offset + margin) / (2 * margin)
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(math.Round(v))
}
