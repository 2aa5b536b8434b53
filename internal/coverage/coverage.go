// Package coverage implements the Coverage Mask Builder (CMB): it derives
// one 8-bit mask from a (possibly absent) loaded mask image, in two modes
// (spec.md §4.3) — "sharp" for Voronoi masks and "feathered" for validity
// masks — plus a magenta-keyed fallback when no mask was authored at all.
package coverage

import (
	"image"
	"image/color"

	"github.com/MeKo-Tech/orthoblend/internal/ortho"
	"github.com/disintegration/gift"
)

const magentaBlurSigma = 0.6

// BuildSharp implements Mode A: copy the mask's luminance verbatim. Used
// for Voronoi masks, whose seam-band gradient must survive unmodified.
func BuildSharp(mask *image.Gray) *image.Gray {
	out := image.NewGray(mask.Bounds())
	copy(out.Pix, mask.Pix)
	return out
}

// BuildFeathered implements Mode B: binarize the mask (luminance < 128
// becomes 255/valid, else 0/invalid), then feather it by the minimum of a
// distance transform from invalid pixels and a distance transform from
// the tile's own border. ctx is reused across tiles by the pipeline.
func BuildFeathered(mask *image.Gray, featherRadius float64, ctx *DistanceContext) *image.Gray {
	bounds := mask.Bounds()
	binary := binarize(mask)

	if featherRadius <= 1 {
		return binary
	}

	dMask := ctx.euclideanDistanceTransform(binary, featherRadius)

	border := borderImage(bounds)
	dBorder := ctx.euclideanDistanceTransform(border, featherRadius)

	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			mv := dMask.GrayAt(x, y).Y
			bv := dBorder.GrayAt(x, y).Y
			v := mv
			if bv < v {
				v = bv
			}
			out.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return out
}

// BuildFromRaster derives a coverage mask directly from the raster when no
// mask was authored at all: pixels that exactly match magenta (255,0,255)
// are invalid, everything else is valid, then Mode B feathering applies.
//
// Before binarizing, the exact-match mask is passed through a light
// gift.GaussianBlur — the same anti-aliasing rationale the teacher's
// mask.GaussianBlur documents — because lossy raster encodes can leave a
// magenta/non-magenta boundary that isn't pixel-exact, and an unblurred
// threshold would produce a jagged, single-pixel-accurate edge instead of
// the smooth ramp §4.3 expects downstream.
func BuildFromRaster(img image.Image, featherRadius float64, ctx *DistanceContext) *image.Gray {
	bounds := img.Bounds()
	raw := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			r8, g8, b8 := uint8(r>>8), uint8(g>>8), uint8(b>>8)
			if r8 == 255 && g8 == 0 && b8 == 255 {
				raw.SetGray(x, y, color.Gray{Y: 255}) // invalid, white per validity convention
			} else {
				raw.SetGray(x, y, color.Gray{Y: 0}) // valid
			}
		}
	}

	blurred := blur(raw, magentaBlurSigma)
	return BuildFeathered(blurred, featherRadius, ctx)
}

func blur(mask *image.Gray, sigma float32) *image.Gray {
	g := gift.New(gift.GaussianBlur(sigma))
	dst := image.NewGray(g.Bounds(mask.Bounds()))
	g.Draw(dst, mask)
	return dst
}

// binarize applies the on-disk validity convention (black=valid,
// white=invalid) in reverse to produce a 255=valid mask.
func binarize(mask *image.Gray) *image.Gray {
	bounds := mask.Bounds()
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if mask.GrayAt(x, y).Y < 128 {
				out.SetGray(x, y, color.Gray{Y: 255})
			} else {
				out.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return out
}

// borderImage returns an all-255 image except for the four outermost
// rows/columns, which are 0 — the "frame" the feathering distance
// transform measures against so coverage ramps down toward tile edges
// even where the validity mask itself is valid all the way to the border.
func borderImage(bounds image.Rectangle) *image.Gray {
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if x == bounds.Min.X || x == bounds.Max.X-1 || y == bounds.Min.Y || y == bounds.Max.Y-1 {
				out.SetGray(x, y, color.Gray{Y: 0})
			} else {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return out
}

// EnsureMaskShape validates that a loaded mask's dimensions agree with its
// tile's raster, the precondition every Build* entry point assumes.
func EnsureMaskShape(t *ortho.Tile, mask *image.Gray) error {
	b := mask.Bounds()
	if b.Dx() != t.Width || b.Dy() != t.Height {
		return ortho.Wrap(ortho.KindMaskShapeMismatch, t.Name, nil)
	}
	return nil
}

// CountNonZero returns the number of nonzero pixels in a coverage mask; a
// count of zero is the EmptyMask failure condition (spec.md §7).
func CountNonZero(mask *image.Gray) int {
	n := 0
	for _, v := range mask.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}
