package pipeline

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/orthoblend/internal/blend"
	"github.com/MeKo-Tech/orthoblend/internal/raster"
	"github.com/stretchr/testify/require"
)

func writeWorldFileFixture(t *testing.T, path string, originX, originY int) {
	t.Helper()
	content := "1\n0\n0\n-1\n" + itoa(originX) + "\n" + itoa(-originY) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf []byte
	for v > 0 {
		buf = append([]byte{byte('0' + v%10)}, buf...)
		v /= 10
	}
	if neg {
		buf = append([]byte{'-'}, buf...)
	}
	return string(buf)
}

func writeTileFixture(t *testing.T, dir, name string, x, y, w, h int, c color.NRGBA) {
	t.Helper()
	writeWorldFileFixture(t, filepath.Join(dir, name+".tfw"), x, y)

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for py := 0; py < h; py++ {
		for px := 0; px < w; px++ {
			img.SetNRGBA(px, py, c)
		}
	}
	codec := raster.NewDefaultCodec()
	require.NoError(t, codec.EncodeTIFF(filepath.Join(dir, name+".tif"), img))
}

// TestDriverRunProducesComposite exercises the full resolve -> mask ->
// blend -> emit sequence against two adjacent, non-overlapping tiles with
// no validity masks (spec.md scenario S1's fallback-canvas path).
func TestDriverRunProducesComposite(t *testing.T) {
	dir := t.TempDir()
	writeTileFixture(t, dir, "TileA", 0, 0, 16, 16, color.NRGBA{R: 200, G: 50, B: 50, A: 255})
	writeTileFixture(t, dir, "TileB", 16, 0, 16, 16, color.NRGBA{R: 50, G: 50, B: 200, A: 255})

	outPath := filepath.Join(dir, "out.png")
	drv := New(nil, nil)

	opts := Options{
		NumBands:      2,
		WeightType:    blend.Float32,
		FeatherRadius: 4,
		OverlapMargin: 2,
		UseVoronoi:    true,
	}

	_, err := drv.Run(context.Background(), dir, outPath, opts)
	require.NoError(t, err)

	info, err := os.Stat(outPath)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

// TestDriverRunCollectsDebugStages covers spec.md §6's debug parameter: when
// set, per-tile W/B masks are captured instead of discarded.
func TestDriverRunCollectsDebugStages(t *testing.T) {
	dir := t.TempDir()
	writeTileFixture(t, dir, "TileA", 0, 0, 12, 12, color.NRGBA{R: 10, G: 10, B: 10, A: 255})
	writeTileFixture(t, dir, "TileB", 12, 0, 12, 12, color.NRGBA{R: 250, G: 250, B: 250, A: 255})

	outPath := filepath.Join(dir, "out.png")
	drv := New(nil, nil)

	opts := Options{
		NumBands:      1,
		WeightType:    blend.Float32,
		FeatherRadius: 2,
		OverlapMargin: 1,
		UseVoronoi:    true,
		Debug:         true,
	}

	dc, err := drv.Run(context.Background(), dir, outPath, opts)
	require.NoError(t, err)
	require.NotNil(t, dc)
	require.NotEmpty(t, dc.Stages)
}

// TestDriverRunWithoutVoronoiUsesWeightMaskAsBlendMask covers the
// UseVoronoi=false path, where B degenerates to a copy of W.
func TestDriverRunWithoutVoronoiUsesWeightMaskAsBlendMask(t *testing.T) {
	dir := t.TempDir()
	writeTileFixture(t, dir, "TileA", 0, 0, 10, 10, color.NRGBA{R: 80, G: 80, B: 80, A: 255})
	writeTileFixture(t, dir, "TileB", 10, 0, 10, 10, color.NRGBA{R: 180, G: 180, B: 180, A: 255})

	outPath := filepath.Join(dir, "out.png")
	drv := New(nil, nil)

	opts := Options{
		NumBands:      1,
		WeightType:    blend.Int16,
		FeatherRadius: 3,
		OverlapMargin: 1,
		UseVoronoi:    false,
	}

	_, err := drv.Run(context.Background(), dir, outPath, opts)
	require.NoError(t, err)

	_, err = os.Stat(outPath)
	require.NoError(t, err)
}
