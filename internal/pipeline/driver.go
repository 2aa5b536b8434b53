// Package pipeline implements the Pipeline Driver (PD): the deterministic,
// single-threaded sequence that ties metadata resolution, mask generation,
// coverage mask construction, and dual-mask blending into one run
// (spec.md §4.5), adapted from the teacher's pipeline.Generator orchestration
// and DebugContext (internal/pipeline/generator.go).
package pipeline

import (
	"context"
	"image"
	"image/color"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MeKo-Tech/orthoblend/internal/blend"
	"github.com/MeKo-Tech/orthoblend/internal/coverage"
	"github.com/MeKo-Tech/orthoblend/internal/metadata"
	"github.com/MeKo-Tech/orthoblend/internal/metrics"
	"github.com/MeKo-Tech/orthoblend/internal/ortho"
	"github.com/MeKo-Tech/orthoblend/internal/raster"
	"github.com/MeKo-Tech/orthoblend/internal/resource"
	"github.com/MeKo-Tech/orthoblend/internal/voronoi"
)

// StageCapture is one debug-mode intermediate artifact.
type StageCapture struct {
	Name  string
	Image image.Image
}

// DebugContext optionally collects per-tile W/B masks (spec.md §6's
// debug parameter); nil means zero overhead, matching the teacher's
// DebugContext fast path.
type DebugContext struct {
	mu     sync.Mutex
	Stages []StageCapture
}

func (dc *DebugContext) capture(name string, img image.Image) {
	if dc == nil {
		return
	}
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.Stages = append(dc.Stages, StageCapture{Name: name, Image: img})
}

// Options configures one driver run (spec.md §6's parameter list).
type Options struct {
	NumBands      int
	WeightType    blend.WeightType
	FeatherRadius float64
	OverlapMargin float64
	UseVoronoi    bool
	Workers       int
	Debug         bool
}

// DefaultOptions mirrors spec.md §6's stated defaults.
func DefaultOptions() Options {
	return Options{
		NumBands:      14,
		WeightType:    blend.Float32,
		FeatherRadius: 512,
		OverlapMargin: 20,
		UseVoronoi:    true,
		Workers:       0,
	}
}

// Driver runs the resolve -> mask -> blend -> emit sequence.
type Driver struct {
	source  *raster.Source
	logger  *slog.Logger
	metrics *metrics.Collector
}

// New constructs a Driver. logger and m may be nil; nil logger uses slog's
// default, nil m disables metrics recording.
func New(logger *slog.Logger, m *metrics.Collector) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{source: raster.NewSource(raster.NewDefaultCodec()), logger: logger, metrics: m}
}

// Run executes the full pipeline against inputDir, writing the composite to
// outPath. It returns the collected debug stages when opts.Debug is set.
func (d *Driver) Run(ctx context.Context, inputDir, outPath string, opts Options) (*DebugContext, error) {
	var dc *DebugContext
	if opts.Debug {
		dc = &DebugContext{}
	}

	stop := d.timer("resolve")
	tiles, canvas, err := metadata.Resolve(inputDir)
	stop()
	if err != nil {
		return dc, err
	}
	d.logger.Info("resolved tiles", "count", len(tiles), "canvas_w", canvas.Width, "canvas_h", canvas.Height)

	resource.Advise(int64(canvas.Width)*int64(canvas.Height), opts.NumBands).LogSummary(d.logger)

	validity := make([]*image.Gray, len(tiles))
	for i, t := range tiles {
		if t.ValidityMaskPath == "" {
			continue
		}
		v, err := d.source.LoadValidityMask(t.ValidityMaskPath, t.Width, t.Height)
		if err != nil {
			return dc, err
		}
		validity[i] = v
	}

	var vmasks []*image.Gray
	if opts.UseVoronoi {
		stop := d.timer("generate_masks")
		vmasks, err = voronoi.Generate(ctx, tiles, validity, voronoi.Options{
			OverlapMargin: opts.OverlapMargin,
			Workers:       opts.Workers,
		})
		stop()
		if err != nil {
			return dc, err
		}
		for i, t := range tiles {
			path := voronoiMaskPath(t)
			if err := d.source.WriteVoronoiMask(path, vmasks[i]); err != nil {
				return dc, err
			}
			t.VoronoiMaskPath = path
		}
	}

	bl := blend.New(blend.Config{NumBands: opts.NumBands, WeightType: opts.WeightType})
	dstROI := image.Rect(0, 0, canvas.Width, canvas.Height)
	if err := bl.Prepare(dstROI); err != nil {
		return dc, err
	}

	distCtx := coverage.NewDistanceContext(maxTileDim(tiles))
	fed := 0

	for i, t := range tiles {
		stop := d.timer("feed_tile")
		ok, err := d.feedTile(bl, t, validity[i], vmasks, i, opts, distCtx, dc)
		stop()
		if err != nil {
			return dc, err
		}
		if ok {
			fed++
		}
	}

	if fed == 0 {
		return dc, ortho.Wrap(ortho.KindBlenderEmpty, inputDir, nil)
	}

	stop = d.timer("blend")
	result, outMask, err := bl.Blend()
	stop()
	if err != nil {
		return dc, err
	}

	if coverage.CountNonZero(outMask) == 0 {
		return dc, ortho.Wrap(ortho.KindEmptyMask, outPath, nil)
	}

	composite := result.ToNRGBA()
	if err := d.source.WriteComposite(outPath, composite); err != nil {
		return dc, err
	}

	if d.metrics != nil {
		d.metrics.TilesFed.Add(float64(fed))
	}

	return dc, nil
}

// feedTile loads one tile's raster and masks, builds W and B, applies
// mean-colour inpainting, and feeds the blender. It returns true once the
// tile is fed, and fails with EmptyMask when the tile's blend mask has no
// nonzero pixel.
func (d *Driver) feedTile(bl *blend.Blender, t *ortho.Tile, validityMask *image.Gray, vmasks []*image.Gray, idx int, opts Options, distCtx *coverage.DistanceContext, dc *DebugContext) (bool, error) {
	img, err := d.source.LoadRaster(t.ImagePath)
	if err != nil {
		return false, err
	}

	var w *image.Gray
	if validityMask != nil {
		w = coverage.BuildFeathered(validityMask, opts.FeatherRadius, distCtx)
	} else {
		w = coverage.BuildFromRaster(img, opts.FeatherRadius, distCtx)
	}
	if err := coverage.EnsureMaskShape(t, w); err != nil {
		return false, err
	}

	var b *image.Gray
	if opts.UseVoronoi {
		b = coverage.BuildSharp(vmasks[idx])
	} else {
		b = cloneGray(w)
	}
	if err := coverage.EnsureMaskShape(t, b); err != nil {
		return false, err
	}

	if coverage.CountNonZero(b) == 0 {
		return false, ortho.Wrap(ortho.KindEmptyMask, t.ImagePath, nil)
	}

	dc.capture(t.Name+"_W", w)
	dc.capture(t.Name+"_B", b)

	painted := inpaintMeanColor(img, b)

	if err := bl.Feed(painted, w, b, image.Pt(t.X, t.Y)); err != nil {
		return false, err
	}
	return true, nil
}

// inpaintMeanColor implements spec.md §4.5's mean-colour inpainting step:
// the tile's mean colour under B is painted into every B==0 pixel, so the
// Laplacian pyramid sees no discontinuity at the blend mask's boundary.
func inpaintMeanColor(img image.Image, b *image.Gray) image.Image {
	bounds := img.Bounds()
	var sumR, sumG, sumBl, count float64

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if b.GrayAt(x, y).Y == 0 {
				continue
			}
			r, g, bl, _ := img.At(x, y).RGBA()
			sumR += float64(r >> 8)
			sumG += float64(g >> 8)
			sumBl += float64(bl >> 8)
			count++
		}
	}

	if count == 0 {
		return img
	}
	meanR := uint8(sumR / count)
	meanG := uint8(sumG / count)
	meanB := uint8(sumBl / count)

	out := image.NewNRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if b.GrayAt(x, y).Y == 0 {
				out.SetNRGBA(x, y, color.NRGBA{R: meanR, G: meanG, B: meanB, A: 255})
				continue
			}
			r, g, bl, a := img.At(x, y).RGBA()
			out.SetNRGBA(x, y, color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(bl >> 8), A: uint8(a >> 8)})
		}
	}
	return out
}

func cloneGray(src *image.Gray) *image.Gray {
	out := image.NewGray(src.Bounds())
	copy(out.Pix, src.Pix)
	return out
}

func voronoiMaskPath(t *ortho.Tile) string {
	ext := filepath.Ext(t.ImagePath)
	base := strings.TrimSuffix(t.ImagePath, ext)
	return base + "_voronoi_mask.tif"
}

func maxTileDim(tiles []*ortho.Tile) int {
	m := 0
	for _, t := range tiles {
		if t.Width > m {
			m = t.Width
		}
		if t.Height > m {
			m = t.Height
		}
	}
	if m == 0 {
		m = 1
	}
	return m
}

func (d *Driver) timer(stage string) func() {
	if d.metrics == nil {
		return func() {}
	}
	return d.metrics.StartStage(stage)
}
