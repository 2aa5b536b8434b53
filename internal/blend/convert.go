package blend

import "image"

// reflectPadImage fills support (a superset of tileBounds, in canvas
// coordinates) with the tile's own pixels, mirrored outward past its edges
// via reflect101. This is distinct from zero-padding: the image itself
// must stay well-defined over the whole pyramid support region, since the
// Laplacian construction convolves across it, while the weight/blend masks
// correctly go to zero past the tile's true extent.
func reflectPadImage(img image.Image, tileBounds, support image.Rectangle) plane {
	tw, th := tileBounds.Dx(), tileBounds.Dy()
	ib := img.Bounds()
	offX := tileBounds.Min.X - support.Min.X
	offY := tileBounds.Min.Y - support.Min.Y

	out := newPlane(support.Dx(), support.Dy(), 3)
	for y := 0; y < out.h; y++ {
		ty := reflect101(y-offY, th)
		for x := 0; x < out.w; x++ {
			tx := reflect101(x-offX, tw)
			r, g, b, _ := img.At(ib.Min.X+tx, ib.Min.Y+ty).RGBA()
			out.set(x, y, 0, float64(r>>8))
			out.set(x, y, 1, float64(g>>8))
			out.set(x, y, 2, float64(b>>8))
		}
	}
	return out
}

// zeroPadMask fills support with mask's converted values inside
// tileBounds, and zero everywhere outside it — a tile contributes no
// weight or blend influence past its own extent.
func zeroPadMask(mask *image.Gray, tileBounds, support image.Rectangle, convert func(uint8) float64) plane {
	mb := mask.Bounds()
	offX := tileBounds.Min.X - support.Min.X
	offY := tileBounds.Min.Y - support.Min.Y

	out := newPlane(support.Dx(), support.Dy(), 1)
	for y := 0; y < out.h; y++ {
		ty := y - offY
		if ty < 0 || ty >= mb.Dy() {
			continue
		}
		for x := 0; x < out.w; x++ {
			tx := x - offX
			if tx < 0 || tx >= mb.Dx() {
				continue
			}
			out.set(x, y, 0, convert(mask.GrayAt(mb.Min.X+tx, mb.Min.Y+ty).Y))
		}
	}
	return out
}

// Int16Image is a 3-channel int16 raster, the blender's native output
// representation before 8-bit quantization (spec.md §4.4's "L[0] is the
// blended result").
type Int16Image struct {
	W, H int
	Pix  []int16 // interleaved, 3 channels per pixel
}

// At returns pixel (x, y)'s three channel values.
func (im *Int16Image) At(x, y int) (r, g, b int16) {
	base := (y*im.W + x) * 3
	return im.Pix[base], im.Pix[base+1], im.Pix[base+2]
}

// Crop returns a new Int16Image holding the sub-rectangle r of im.
func (im *Int16Image) Crop(r image.Rectangle) *Int16Image {
	out := &Int16Image{W: r.Dx(), H: r.Dy(), Pix: make([]int16, r.Dx()*r.Dy()*3)}
	for y := 0; y < out.H; y++ {
		srcBase := ((r.Min.Y + y) * im.W) * 3
		dstBase := y * out.W * 3
		copy(out.Pix[dstBase:dstBase+out.W*3], im.Pix[srcBase+r.Min.X*3:srcBase+(r.Min.X+out.W)*3])
	}
	return out
}

// ToNRGBA quantizes the int16 result to an 8-bit image, clamping each
// channel to [0, 255] (spec.md §4.4's final output step).
func (im *Int16Image) ToNRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, im.W, im.H))
	for y := 0; y < im.H; y++ {
		for x := 0; x < im.W; x++ {
			r, g, b := im.At(x, y)
			idx := out.PixOffset(x, y)
			out.Pix[idx+0] = clampByte(r)
			out.Pix[idx+1] = clampByte(g)
			out.Pix[idx+2] = clampByte(b)
			out.Pix[idx+3] = 255
		}
	}
	return out
}

func clampByte(v int16) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// upFromInt16 upsamples an int16 canvas-level plane (read-only) by one
// pyramid level, producing a float64 plane of size dstSize for the caller
// to round and add into the next level up.
func upFromInt16(src []int16, srcSize, dstSize image.Point) plane {
	srcPlane := newPlane(srcSize.X, srcSize.Y, 3)
	for i, v := range src {
		srcPlane.data[i] = float64(v)
	}
	return pyrUp(srcPlane, dstSize.X, dstSize.Y)
}
