package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	imagecropper "github.com/menta2k/image-cropper"
	"github.com/menta2k/image-cropper/internal/config"
	"github.com/menta2k/image-cropper/pkg/suggest"
)

var (
	// Global configuration, loaded before every command runs.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "image-cropper",
	Short: "Interactive image cropping engine",
	Long: `Crop images by rotating, flipping, choosing an aspect ratio and a clip shape,
optionally letting a saliency detector or a vision model place the crop region.

This tool provides:
- One-shot crops driven by flags
- Replay of recorded gesture sessions
- A WebSocket session server for interactive clients
- Seekable zstd compression of BMP sources

Examples:
  image-cropper crop photo.jpg --aspect square --shape oval
  image-cropper replay session.yaml photo.jpg
  image-cropper serve --addr :8080`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewLoader(nil).Load(cfgFile)
		if err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}
		globalConfig = cfg
		slog.SetDefault(newLogger(cmd, cfg))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is search in ., $HOME/.config/image-cropper, /etc/image-cropper)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.Version = imagecropper.Version
}

// newLogger builds the structured logger for the configured level. Logs go
// to stderr so that stdout stays usable for results.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	var level slog.Level
	if cfg.Verbose {
		level = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// GetConfig returns the configuration loaded for the running command.
func GetConfig() *config.Config {
	if globalConfig == nil {
		return config.Default()
	}
	return globalConfig
}

// newSuggester creates the configured suggestion backend. It returns nil when
// suggestions are turned off.
func newSuggester(cfg config.SuggestConfig) (suggest.Suggester, error) {
	s, err := suggest.New(cfg.Options())
	if errors.Is(err, suggest.ErrNoBackend) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create suggestion backend: %w", err)
	}
	return s, nil
}
