package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	imagecropper "github.com/menta2k/image-cropper"
	"github.com/menta2k/image-cropper/internal/utils"
	"github.com/menta2k/image-cropper/pkg/geom"
	"github.com/menta2k/image-cropper/pkg/processing"
)

var cropCmd = &cobra.Command{
	Use:   "crop <image>",
	Short: "Crop an image without an interactive session",
	Long: `Crop an image with the edits given as flags and save the result.

The edits are applied in this order: rotation, flips, aspect ratio, subject
suggestion, explicit region, clip shape. The aspect ratio is locked so a
suggested subject box grows to it.

Examples:
  image-cropper crop photo.jpg --aspect square --shape oval
  image-cropper crop scan.png --rotate 90 --format png -o out/
  image-cropper crop photo.jpg --suggest ollama --debug
  image-cropper crop big.bmp.zst --region 100,100,800,600`,
	Args: cobra.ExactArgs(1),
	RunE: runCrop,
}

func init() {
	rootCmd.AddCommand(cropCmd)

	cropCmd.Flags().StringP("output", "o", "", "output directory (default from config)")
	cropCmd.Flags().String("format", "", "output format: jpg, png, webp (default from config)")
	cropCmd.Flags().Int("quality", 0, "jpeg/webp quality 1-100 (default from config)")
	cropCmd.Flags().Int("rotate", 0, "clockwise rotation in degrees, a multiple of 90")
	cropCmd.Flags().Bool("flip-h", false, "flip horizontally")
	cropCmd.Flags().Bool("flip-v", false, "flip vertically")
	cropCmd.Flags().String("aspect", "", "aspect ratio: square, widescreen, landscape, portrait or W:H")
	cropCmd.Flags().String("shape", "", "clip shape: rect, oval, triangle, star")
	cropCmd.Flags().String("region", "", "crop region x,y,w,h in pixels of the rotated image")
	cropCmd.Flags().String("suggest", "", "subject suggestion backend: none, saliency, ollama, llamacpp (default from config)")
	cropCmd.Flags().Bool("debug", false, "also write an overlay image showing the suggestion and region")
}

func runCrop(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	outputDir := cfg.Output.OutputDir
	if cmd.Flags().Changed("output") {
		outputDir, _ = cmd.Flags().GetString("output")
	}
	format := cfg.Output.Format
	if cmd.Flags().Changed("format") {
		format, _ = cmd.Flags().GetString("format")
	}
	format, err := processing.NormalizeFormat(format)
	if err != nil {
		return err
	}

	processor := cfg.Output.Processor()
	if cmd.Flags().Changed("quality") {
		q, _ := cmd.Flags().GetInt("quality")
		if q < 1 || q > 100 {
			return fmt.Errorf("quality must be between 1 and 100, got %d", q)
		}
		processor.Quality = q
	}

	style, err := cfg.Cropper.Style()
	if err != nil {
		return err
	}

	suggestCfg := cfg.Suggest
	if cmd.Flags().Changed("suggest") {
		suggestCfg.Backend, _ = cmd.Flags().GetString("suggest")
	}
	suggester, err := newSuggester(suggestCfg)
	if err != nil {
		return err
	}

	opts := imagecropper.Options{
		Style:        style,
		Suggester:    suggester,
		MinImageSize: cfg.Cropper.MinImageSize,
		Logger:       slog.Default(),
	}
	opts.Rotate, _ = cmd.Flags().GetInt("rotate")
	opts.FlipHorizontal, _ = cmd.Flags().GetBool("flip-h")
	opts.FlipVertical, _ = cmd.Flags().GetBool("flip-v")
	opts.Aspect, _ = cmd.Flags().GetString("aspect")
	opts.Shape, _ = cmd.Flags().GetString("shape")
	if s, _ := cmd.Flags().GetString("region"); s != "" {
		r, err := parseRegion(s)
		if err != nil {
			return err
		}
		opts.Region = &r
	}

	ic, err := imagecropper.New(opts)
	if err != nil {
		return err
	}

	file := args[0]
	if !utils.FileExists(file) {
		return fmt.Errorf("file not found: %s", file)
	}
	if !utils.IsImageFile(file) {
		return fmt.Errorf("unsupported input file: %s", file)
	}
	if err := utils.EnsureDir(outputDir); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	debug, _ := cmd.Flags().GetBool("debug")
	return cropOne(cmd, ic, processor, file, outputDir, format, debug)
}

func cropOne(cmd *cobra.Command, ic *imagecropper.ImageCropper, p *processing.Processor, file, outputDir, format string, debug bool) error {
	cfg := GetConfig()
	res, err := ic.CropFile(cmd.Context(), file)
	if err != nil {
		return err
	}

	out := utils.GenerateOutputFilename(file, outputDir, cfg.Output.Prefix, cfg.Output.Suffix, format)
	if err := p.SaveImage(res.Image, out, format); err != nil {
		return err
	}
	b := res.Image.Bounds()
	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%dx%d, %s, %v)\n", file, out, b.Dx(), b.Dy(), fileSize(out), res.Elapsed)

	if debug {
		overlay, err := imagecropper.DebugOverlay(cmd.Context(), res)
		if err != nil {
			return fmt.Errorf("failed to render debug overlay: %w", err)
		}
		debugOut := utils.GenerateOutputFilename(file, outputDir, cfg.Output.Prefix, cfg.Output.Suffix+"_debug", processing.FormatPNG)
		if err := p.SaveImage(overlay, debugOut, processing.FormatPNG); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  debug overlay: %s\n", debugOut)
	}
	return nil
}

// parseRegion parses "x,y,w,h".
func parseRegion(s string) (geom.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return geom.Rect{}, fmt.Errorf("region must be x,y,w,h: %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geom.Rect{}, fmt.Errorf("invalid region %q: %w", s, err)
		}
		v[i] = f
	}
	if v[2] <= 0 || v[3] <= 0 {
		return geom.Rect{}, fmt.Errorf("region width and height must be positive: %q", s)
	}
	return geom.RectOf(geom.Offset{X: v[0], Y: v[1]}, geom.Size{Width: v[2], Height: v[3]}), nil
}

func fileSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "?"
	}
	return utils.FormatFileSize(info.Size())
}
