package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	imagecropper "github.com/menta2k/image-cropper"
	"github.com/menta2k/image-cropper/internal/server"
	"github.com/menta2k/image-cropper/pkg/geom"
	"github.com/menta2k/image-cropper/pkg/processing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the interactive crop session server",
	Long: `Start a WebSocket server for interactive crop sessions.

Clients open an image, send gestures and edits, request previews and accept
or cancel the session. Each connection holds one session; opening a new
image replaces the previous one.

Endpoints:
  GET /ws       - crop session WebSocket
  GET /health   - health check
  GET /metrics  - Prometheus metrics (path configurable)

Examples:
  image-cropper serve
  image-cropper serve --addr :9000 --view 720x1280`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default from config)")
	serveCmd.Flags().String("view", "", "view size WxH the previews are rendered for (default from config)")
	serveCmd.Flags().Int("max-upload-size", 0, "maximum image upload size in MB (default from config)")
	serveCmd.Flags().String("suggest", "", "subject suggestion backend (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	addr := cfg.Server.Addr
	if cmd.Flags().Changed("addr") {
		addr, _ = cmd.Flags().GetString("addr")
	}
	view := geom.IntSize{Width: cfg.Server.ViewWidth, Height: cfg.Server.ViewHeight}
	if cmd.Flags().Changed("view") {
		s, _ := cmd.Flags().GetString("view")
		v, err := parseViewSize(s)
		if err != nil {
			return err
		}
		view = v
	}
	maxUpload := cfg.Server.MaxUploadMB
	if cmd.Flags().Changed("max-upload-size") {
		maxUpload, _ = cmd.Flags().GetInt("max-upload-size")
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
	format, err := processing.NormalizeFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	srv := server.NewServer(server.Config{
		MetricsPath:  cfg.Server.MetricsPath,
		MaxUploadMB:  maxUpload,
		View:         view,
		Style:        style,
		MinImageSize: cfg.Cropper.MinImageSize,
		Processor:    cfg.Output.Processor(),
		Format:       format,
		Prefix:       cfg.Output.Prefix,
		Suffix:       cfg.Output.Suffix,
		Suggester:    suggester,
		Logger:       slog.Default(),
		Version:      imagecropper.Version,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting crop session server",
		"addr", addr, "view", view, "suggest", suggestCfg.Backend, "metrics", cfg.Server.MetricsPath)
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}

// parseViewSize parses "WxH".
func parseViewSize(s string) (geom.IntSize, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return geom.IntSize{}, fmt.Errorf("view must be WxH: %q", s)
	}
	width, err1 := strconv.Atoi(strings.TrimSpace(w))
	height, err2 := strconv.Atoi(strings.TrimSpace(h))
	if err1 != nil || err2 != nil || width < 1 || height < 1 {
		return geom.IntSize{}, fmt.Errorf("invalid view size: %q", s)
	}
	return geom.IntSize{Width: width, Height: height}, nil
}
