// Package blend implements the Dual-Mask Blender (DMB): a Laplacian/
// Gaussian-pyramid multi-band compositor that accepts two masks per tile —
// a smooth weight mask driving pyramid accumulation and a sharp blend
// mask driving pixel contribution (spec.md §4.4).
package blend

// plane is a dense, interleaved floating-point image buffer used for the
// pyramid math. Gaussian/Laplacian construction needs fractional
// intermediate values regardless of the configured accumulator type, so
// every pyramid level is built in this representation and only quantized
// back to int16/float32 at the points spec.md §4.4 actually names an
// accumulator type (Wsum, and the per-tile Laplacian*blend contribution).
type plane struct {
	w, h, ch int
	data     []float64
}

func newPlane(w, h, ch int) plane {
	return plane{w: w, h: h, ch: ch, data: make([]float64, w*h*ch)}
}

func (p plane) at(x, y, c int) float64 {
	return p.data[(y*p.w+x)*p.ch+c]
}

func (p plane) set(x, y, c int, v float64) {
	p.data[(y*p.w+x)*p.ch+c] = v
}

// reflect101 mirrors an out-of-range index back into [0, n) without
// repeating the edge sample (OpenCV's BORDER_REFLECT_101), the standard
// border rule for pyramid convolution.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*(n-1) - i
		}
	}
	return i
}

// binomial5 is the classic [1 4 6 4 1]/16 five-tap approximation to a
// Gaussian, used by both pyrDown and pyrUp.
var binomial5 = [5]float64{1, 4, 6, 4, 1}

// pyrDown applies a separable 5-tap low-pass filter and decimates by 2,
// producing a level of size (ceil(w/2), ceil(h/2)).
func pyrDown(src plane) plane {
	ow, oh := (src.w+1)/2, (src.h+1)/2

	horiz := newPlane(src.w, src.h, src.ch)
	for y := 0; y < src.h; y++ {
		for x := 0; x < src.w; x++ {
			for c := 0; c < src.ch; c++ {
				sum := 0.0
				for k := -2; k <= 2; k++ {
					sum += binomial5[k+2] * src.at(reflect101(x+k, src.w), y, c)
				}
				horiz.set(x, y, c, sum/16)
			}
		}
	}

	out := newPlane(ow, oh, src.ch)
	for oy := 0; oy < oh; oy++ {
		y := oy * 2
		for ox := 0; ox < ow; ox++ {
			x := ox * 2
			for c := 0; c < src.ch; c++ {
				sum := 0.0
				for k := -2; k <= 2; k++ {
					sum += binomial5[k+2] * horiz.at(x, reflect101(y+k, src.h), c)
				}
				out.set(ox, oy, c, sum/16)
			}
		}
	}
	return out
}

// pyrUp upsamples src by 2 (zero-insertion followed by the same low-pass
// filter, scaled to preserve energy) and crops/reflect-extends the result
// to exactly (dstW, dstH) — the size of the pyramid level one above src.
func pyrUp(src plane, dstW, dstH int) plane {
	uw, uh := src.w*2, src.h*2

	expanded := newPlane(uw, uh, src.ch)
	for y := 0; y < src.h; y++ {
		for x := 0; x < src.w; x++ {
			for c := 0; c < src.ch; c++ {
				expanded.set(x*2, y*2, c, src.at(x, y, c))
			}
		}
	}

	horiz := newPlane(uw, uh, src.ch)
	for y := 0; y < uh; y++ {
		for x := 0; x < uw; x++ {
			for c := 0; c < src.ch; c++ {
				sum := 0.0
				for k := -2; k <= 2; k++ {
					sum += binomial5[k+2] * expanded.at(reflect101(x+k, uw), y, c)
				}
				horiz.set(x, y, c, sum/16*2)
			}
		}
	}

	full := newPlane(uw, uh, src.ch)
	for y := 0; y < uh; y++ {
		for x := 0; x < uw; x++ {
			for c := 0; c < src.ch; c++ {
				sum := 0.0
				for k := -2; k <= 2; k++ {
					sum += binomial5[k+2] * horiz.at(x, reflect101(y+k, uh), c)
				}
				full.set(x, y, c, sum/16*2)
			}
		}
	}

	if dstW == uw && dstH == uh {
		return full
	}

	out := newPlane(dstW, dstH, src.ch)
	for y := 0; y < dstH; y++ {
		sy := reflect101(y, uh)
		for x := 0; x < dstW; x++ {
			sx := reflect101(x, uw)
			for c := 0; c < src.ch; c++ {
				out.set(x, y, c, full.at(sx, sy, c))
			}
		}
	}
	return out
}

// laplacianPyramid builds the (n+1)-level Laplacian pyramid of img: the
// top n levels are band-pass residuals, and the last level is the
// smallest Gaussian (the "DC" band), following Burt & Adelson.
func laplacianPyramid(img plane, n int) []plane {
	gauss := make([]plane, n+1)
	gauss[0] = img
	for i := 1; i <= n; i++ {
		gauss[i] = pyrDown(gauss[i-1])
	}

	lap := make([]plane, n+1)
	lap[n] = gauss[n]
	for i := n - 1; i >= 0; i-- {
		up := pyrUp(gauss[i+1], gauss[i].w, gauss[i].h)
		diff := newPlane(gauss[i].w, gauss[i].h, gauss[i].ch)
		for idx := range diff.data {
			diff.data[idx] = gauss[i].data[idx] - up.data[idx]
		}
		lap[i] = diff
	}
	return lap
}

// gaussianPyramid builds the (n+1)-level Gaussian pyramid of img (used for
// the weight and blend mask pyramids, which need no band-pass residual).
func gaussianPyramid(img plane, n int) []plane {
	out := make([]plane, n+1)
	out[0] = img
	for i := 1; i <= n; i++ {
		out[i] = pyrDown(out[i-1])
	}
	return out
}
