package cmd

import (
	"context"
	"fmt"

	"github.com/MeKo-Tech/orthoblend/internal/blend"
	"github.com/MeKo-Tech/orthoblend/internal/metrics"
	"github.com/MeKo-Tech/orthoblend/internal/pipeline"
	"github.com/MeKo-Tech/orthoblend/internal/raster"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var blendCmd = &cobra.Command{
	Use:   "blend <input-dir> <output-path>",
	Short: "Composite a directory of georeferenced tiles into one orthomosaic",
	Args:  cobra.ExactArgs(2),
	RunE:  runBlend,
}

func init() {
	rootCmd.AddCommand(blendCmd)

	blendCmd.Flags().Int("num-bands", 14, "Number of pyramid bands (0-50)")
	blendCmd.Flags().Float64("feather-radius", 512, "Validity mask feather radius in pixels")
	blendCmd.Flags().Float64("overlap-margin", 20, "Voronoi seam band half-width in pixels")
	blendCmd.Flags().Bool("use-voronoi", true, "Use Voronoi masks as the blend mask (disable to fall back to W=B)")
	blendCmd.Flags().String("weight-type", "float32", "Weight accumulator type: float32 or int16")
	blendCmd.Flags().Int("workers", 0, "Worker count for mask generation (0 = number of CPUs)")
	blendCmd.Flags().Bool("debug", false, "Emit per-tile W and B masks alongside the output")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"blend.num_bands", "num-bands"},
		{"blend.feather_radius", "feather-radius"},
		{"blend.overlap_margin", "overlap-margin"},
		{"blend.use_voronoi", "use-voronoi"},
		{"blend.weight_type", "weight-type"},
		{"blend.workers", "workers"},
		{"blend.debug", "debug"},
	}
	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, blendCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runBlend(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	inputDir, outPath := args[0], args[1]

	numBands := viper.GetInt("blend.num_bands")
	if numBands < 0 || numBands > 50 {
		return fmt.Errorf("num-bands must be in [0, 50], got %d", numBands)
	}

	weightType := blend.Float32
	switch viper.GetString("blend.weight_type") {
	case "float32", "":
		weightType = blend.Float32
	case "int16":
		weightType = blend.Int16
	default:
		return fmt.Errorf("weight-type must be 'float32' or 'int16'")
	}

	opts := pipeline.Options{
		NumBands:      numBands,
		WeightType:    weightType,
		FeatherRadius: viper.GetFloat64("blend.feather_radius"),
		OverlapMargin: viper.GetFloat64("blend.overlap_margin"),
		UseVoronoi:    viper.GetBool("blend.use_voronoi"),
		Workers:       viper.GetInt("blend.workers"),
		Debug:         viper.GetBool("blend.debug"),
	}
	if opts.FeatherRadius < 0 || opts.OverlapMargin < 0 {
		return fmt.Errorf("feather-radius and overlap-margin must be >= 0")
	}

	m := metrics.New()
	driver := pipeline.New(logger, m)

	dc, err := driver.Run(context.Background(), inputDir, outPath, opts)
	if err != nil {
		return err
	}

	if opts.Debug && dc != nil {
		if err := writeDebugStages(dc, outPath); err != nil {
			return err
		}
		if err := printStageSummary(m); err != nil {
			return err
		}
	}

	logger.Info("blend complete", "output", outPath)
	return nil
}

// printStageSummary logs the prometheus-backed per-stage duration summary
// (sample count and total seconds per stage, plus tiles fed) that --debug
// promises alongside the PNG stage dumps.
func printStageSummary(m *metrics.Collector) error {
	families, err := m.Gather()
	if err != nil {
		return fmt.Errorf("gathering stage metrics: %w", err)
	}

	for _, fam := range families {
		switch fam.GetName() {
		case "orthoblend_stage_duration_seconds":
			for _, metric := range fam.GetMetric() {
				stage := labelValue(metric, "stage")
				h := metric.GetHistogram()
				logger.Info("stage duration", "stage", stage,
					"count", h.GetSampleCount(), "total_seconds", h.GetSampleSum())
			}
		case "orthoblend_tiles_fed_total":
			for _, metric := range fam.GetMetric() {
				logger.Info("tiles fed", "count", metric.GetCounter().GetValue())
			}
		}
	}
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func writeDebugStages(dc *pipeline.DebugContext, outPath string) error {
	codec := raster.NewDefaultCodec()
	for _, stage := range dc.Stages {
		path := outPath + "." + stage.Name + ".png"
		if err := codec.EncodePNG(path, stage.Image); err != nil {
			return fmt.Errorf("writing debug stage %s: %w", stage.Name, err)
		}
	}
	return nil
}
