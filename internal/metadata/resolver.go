package metadata

import (
	"encoding/xml"
	"fmt"
	"image"
	_ "image/png" // registers the PNG format for rasterDimensions' probe decode
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/orthoblend/internal/ortho"
	_ "github.com/hhrutter/tiff" // registers the TIFF format for rasterDimensions' probe decode
	"github.com/paulmach/orb"
)

// rasterDimensions reads just enough of a raster to learn its pixel size,
// without decoding the full image (the data model's lifecycle rule keeps
// rasters transient; resolving metadata must not hold one resident).
func rasterDimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, ortho.Wrap(ortho.KindMissingInput, path, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, ortho.Wrap(ortho.KindMissingInput, path, err)
	}
	return cfg.Width, cfg.Height, nil
}

const (
	referenceWorldFileName = "Orthophotomosaic.tfw"
	metadataFileName       = "MTDOrtho.xml"
	worldFileExt           = ".tfw"
	validityPrefixFrom     = "Ort_"
	validityPrefixTo       = "PC_"
)

var rasterExtensions = []string{".tif", ".tiff", ".TIF", ".TIFF"}

// mtdOrtho is the minimal shape of MTDOrtho.xml this resolver reads:
// a NombrePixels element holding whitespace-separated "W H" integers.
type mtdOrtho struct {
	NombrePixels string `xml:"NombrePixels"`
}

// Resolve parses every world file in dir (directory order), resolves
// raster and validity-mask paths, computes per-tile canvas offsets, and
// derives the canvas size. A single malformed tile fails the entire call;
// there is no partial recovery.
func Resolve(dir string) ([]*ortho.Tile, ortho.Canvas, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, ortho.Canvas{}, ortho.Wrap(ortho.KindMetadataMalformed, dir, err)
	}

	var worldFiles []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(e.Name()) == worldFileExt && e.Name() != referenceWorldFileName {
			worldFiles = append(worldFiles, e.Name())
		}
	}
	sort.Strings(worldFiles)

	var tiles []*ortho.Tile
	var firstScaleX, firstScaleY float64

	for _, wfName := range worldFiles {
		wfPath := filepath.Join(dir, wfName)
		wf, err := parseWorldFile(wfPath)
		if err != nil {
			return nil, ortho.Canvas{}, err
		}
		if err := checkGeometry(wfPath, wf, &firstScaleX, &firstScaleY); err != nil {
			return nil, ortho.Canvas{}, err
		}

		base := strings.TrimSuffix(wfName, worldFileExt)
		rasterPath := findRaster(dir, base)
		if rasterPath == "" {
			// A world file with no matching raster is a reference
			// world file lacking its own imagery; skip it.
			continue
		}

		x := int(math.Round(wf.TranslateX / abs(wf.ScaleX)))
		y := int(math.Round(-wf.TranslateY / abs(wf.ScaleY)))

		w, h, err := rasterDimensions(rasterPath)
		if err != nil {
			return nil, ortho.Canvas{}, err
		}

		t := &ortho.Tile{
			Name:             base,
			ImagePath:        rasterPath,
			ValidityMaskPath: findValidityMask(dir, rasterPath),
			X:                x,
			Y:                y,
			Width:            w,
			Height:           h,
		}
		if err := t.Validate(); err != nil {
			return nil, ortho.Canvas{}, err
		}
		tiles = append(tiles, t)
	}

	if len(tiles) < 2 {
		return nil, ortho.Canvas{}, ortho.Wrap(ortho.KindCanvasInvalid, dir,
			fmt.Errorf("need at least two tiles, found %d", len(tiles)))
	}

	canvas, err := deriveCanvas(dir, tiles, firstScaleX, firstScaleY)
	if err != nil {
		return nil, ortho.Canvas{}, err
	}

	return tiles, canvas, nil
}

// findRaster probes the raster extension set for a world file's base name.
func findRaster(dir, base string) string {
	for _, ext := range rasterExtensions {
		p := filepath.Join(dir, base+ext)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// findValidityMask applies the Ort_ -> PC_ filename-prefix swap.
func findValidityMask(dir, rasterPath string) string {
	name := filepath.Base(rasterPath)
	if !strings.HasPrefix(name, validityPrefixFrom) {
		return ""
	}
	candidate := filepath.Join(dir, validityPrefixTo+strings.TrimPrefix(name, validityPrefixFrom))
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}

// deriveCanvas implements the two canvas-derivation modes from spec.md
// §4.1: referenced mode (a reference world file + metadata file both
// exist) and fallback mode (tight bounding box of all tiles).
func deriveCanvas(dir string, tiles []*ortho.Tile, scaleX, scaleY float64) (ortho.Canvas, error) {
	refPath := filepath.Join(dir, referenceWorldFileName)
	mtdPath := filepath.Join(dir, metadataFileName)

	if _, err := os.Stat(refPath); err == nil {
		if _, err := os.Stat(mtdPath); err == nil {
			return deriveCanvasReferenced(refPath, mtdPath, tiles, scaleX, scaleY)
		}
	}
	return deriveCanvasFallback(tiles), nil
}

func deriveCanvasReferenced(refPath, mtdPath string, tiles []*ortho.Tile, scaleX, scaleY float64) (ortho.Canvas, error) {
	refWF, err := parseWorldFile(refPath)
	if err != nil {
		return ortho.Canvas{}, err
	}
	if refWF.RotationX != 0 || refWF.RotationY != 0 {
		return ortho.Canvas{}, ortho.Wrap(ortho.KindUnsupportedGeometry, refPath, fmt.Errorf("nonzero rotation"))
	}

	refX := int(math.Round(refWF.TranslateX / abs(refWF.ScaleX)))
	refY := int(math.Round(-refWF.TranslateY / abs(refWF.ScaleY)))

	w, h, err := parseNombrePixels(mtdPath)
	if err != nil {
		return ortho.Canvas{}, err
	}

	for _, t := range tiles {
		t.X -= refX
		t.Y -= refY
	}

	return ortho.Canvas{Width: w, Height: h}, nil
}

func parseNombrePixels(path string) (int, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, ortho.Wrap(ortho.KindMetadataMalformed, path, err)
	}

	var doc mtdOrtho
	if err := xml.Unmarshal(data, &doc); err != nil {
		return 0, 0, ortho.Wrap(ortho.KindMetadataMalformed, path, err)
	}

	fields := strings.Fields(doc.NombrePixels)
	if len(fields) < 2 {
		return 0, 0, ortho.Wrap(ortho.KindMetadataMalformed, path,
			fmt.Errorf("NombrePixels must contain 'W H', got %q", doc.NombrePixels))
	}
	w, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, ortho.Wrap(ortho.KindMetadataMalformed, path, err)
	}
	h, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, ortho.Wrap(ortho.KindMetadataMalformed, path, err)
	}
	return w, h, nil
}

// deriveCanvasFallback computes the tight axis-aligned bounding box of all
// tiles using orb.Bound, shifts every tile so the box starts at (0,0), and
// returns the box size as the canvas size.
func deriveCanvasFallback(tiles []*ortho.Tile) ortho.Canvas {
	bound := orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
	for _, t := range tiles {
		minX, minY, maxX, maxY := t.Bounds()
		bound = bound.Extend(orb.Point{float64(minX), float64(minY)})
		bound = bound.Extend(orb.Point{float64(maxX), float64(maxY)})
	}

	shiftX := int(math.Round(bound.Min[0]))
	shiftY := int(math.Round(bound.Min[1]))

	for _, t := range tiles {
		t.X -= shiftX
		t.Y -= shiftY
	}

	return ortho.Canvas{
		Width:  int(math.Round(bound.Max[0] - bound.Min[0])),
		Height: int(math.Round(bound.Max[1] - bound.Min[1])),
	}
}
