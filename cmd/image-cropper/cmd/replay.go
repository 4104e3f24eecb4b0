package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/menta2k/image-cropper/internal/script"
	"github.com/menta2k/image-cropper/internal/utils"
	"github.com/menta2k/image-cropper/pkg/cropper"
	"github.com/menta2k/image-cropper/pkg/imgsrc"
	"github.com/menta2k/image-cropper/pkg/processing"
)

var replayCmd = &cobra.Command{
	Use:   "replay <script.yaml> <image>",
	Short: "Replay a recorded gesture session on an image",
	Long: `Replay a YAML gesture script against an image, the way a touch UI would
drive an interactive session, then compose and save the result.

A script lists view size and steps:

  view: {width: 1080, height: 1080}
  steps:
    - op: aspect
      value: square
    - op: drag
      from: {x: 540, y: 540}
      path: [{x: 600, y: 540}]
    - op: zoom
      center: {x: 540, y: 540}
      scales: [1.5, 2]
    - op: rotate_right
    - op: shape
      value: oval`,
	Args: cobra.ExactArgs(2),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringP("output", "o", "", "output file (default derived from the image name)")
	replayCmd.Flags().String("format", "", "output format: jpg, png, webp (default from output file or config)")
	replayCmd.Flags().String("suggest", "", "backend for suggest steps (default from config)")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	scriptPath, imagePath := args[0], args[1]

	s, err := script.Load(scriptPath)
	if err != nil {
		return err
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

	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	if format == "" && output != "" {
		format, _ = processing.FormatFromPath(output)
	}
	if format == "" {
		format = cfg.Output.Format
	}
	if format, err = processing.NormalizeFormat(format); err != nil {
		return err
	}
	if output == "" {
		if err := utils.EnsureDir(cfg.Output.OutputDir); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		output = utils.GenerateOutputFilename(imagePath, cfg.Output.OutputDir, cfg.Output.Prefix, cfg.Output.Suffix, format)
	}

	runner := &script.Runner{Suggester: suggester, Logger: slog.Default()}
	var runErr error
	c := cropper.New(
		cropper.WithStyle(style),
		cropper.WithLogger(slog.Default()),
		cropper.WithSessionHook(func(st *cropper.State) {
			_, runErr = runner.Run(cmd.Context(), s, st)
			st.Done(runErr == nil)
		}),
	)

	start := time.Now()
	res := c.Crop(cmd.Context(), func(context.Context) (imgsrc.ImageSrc, error) {
		src, err := imgsrc.OpenPath(imagePath)
		if err != nil {
			return nil, err
		}
		if err := imgsrc.Validate(src, cfg.Cropper.MinImageSize); err != nil {
			return nil, err
		}
		return src, nil
	})
	if runErr != nil {
		return fmt.Errorf("replay failed: %w", runErr)
	}
	switch res.Status {
	case cropper.Failed:
		return res.Err
	case cropper.Cancelled:
		return errors.New("crop cancelled")
	}

	if err := cfg.Output.Processor().SaveImage(res.Image, output, format); err != nil {
		return err
	}
	b := res.Image.Bounds()
	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%dx%d, %d steps, %v)\n",
		imagePath, output, b.Dx(), b.Dy(), len(s.Steps), time.Since(start).Round(time.Millisecond))
	return nil
}
