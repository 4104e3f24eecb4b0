package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/image-cropper/pkg/cropper"
	"github.com/menta2k/image-cropper/pkg/geom"
	"github.com/menta2k/image-cropper/pkg/processing"
	"github.com/menta2k/image-cropper/pkg/shape"
	"github.com/menta2k/image-cropper/pkg/suggest"
)

// Config holds the application configuration
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Cropper CropperConfig `mapstructure:"cropper" yaml:"cropper" json:"cropper"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output" json:"output"`
	Suggest SuggestConfig `mapstructure:"suggest" yaml:"suggest" json:"suggest"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server" json:"server"`
}

// CropperConfig holds the crop session style
type CropperConfig struct {
	MinCropSize   float64  `mapstructure:"min_crop_size" yaml:"min_crop_size" json:"min_crop_size"`
	TouchRadius   float64  `mapstructure:"touch_radius" yaml:"touch_radius" json:"touch_radius"`
	Aspects       []string `mapstructure:"aspects" yaml:"aspects" json:"aspects"`
	Shapes        []string `mapstructure:"shapes" yaml:"shapes" json:"shapes"`
	InitialAspect string   `mapstructure:"initial_aspect" yaml:"initial_aspect" json:"initial_aspect"`
	// MaxResultWidth and MaxResultHeight cap the composed image; 0 disables
	// the cap.
	MaxResultWidth  float64 `mapstructure:"max_result_width" yaml:"max_result_width" json:"max_result_width"`
	MaxResultHeight float64 `mapstructure:"max_result_height" yaml:"max_result_height" json:"max_result_height"`
	MinImageSize    int     `mapstructure:"min_image_size" yaml:"min_image_size" json:"min_image_size"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Format    string `mapstructure:"format" yaml:"format" json:"format"`
	Quality   int    `mapstructure:"quality" yaml:"quality" json:"quality"`
	Lossless  bool   `mapstructure:"lossless" yaml:"lossless" json:"lossless"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix" json:"prefix"`
	Suffix    string `mapstructure:"suffix" yaml:"suffix" json:"suffix"`
}

// SuggestConfig selects the subject locator used for initial regions
type SuggestConfig struct {
	Backend    string `mapstructure:"backend" yaml:"backend" json:"backend"`
	URL        string `mapstructure:"url" yaml:"url" json:"url"`
	Model      string `mapstructure:"model" yaml:"model" json:"model"`
	MaxDim     int    `mapstructure:"max_dim" yaml:"max_dim" json:"max_dim"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
}

// ServerConfig holds configuration for the session server
type ServerConfig struct {
	Addr        string `mapstructure:"addr" yaml:"addr" json:"addr"`
	MetricsPath string `mapstructure:"metrics_path" yaml:"metrics_path" json:"metrics_path"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	ViewWidth   int    `mapstructure:"view_width" yaml:"view_width" json:"view_width"`
	ViewHeight  int    `mapstructure:"view_height" yaml:"view_height" json:"view_height"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Cropper: CropperConfig{
			MinCropSize:     cropper.DefaultMinCropSize,
			TouchRadius:     20,
			Aspects:         []string{"square", "widescreen", "landscape"},
			Shapes:          []string{"rect", "oval", "triangle", "star"},
			MaxResultWidth:  3000,
			MaxResultHeight: 3000,
			MinImageSize:    1,
		},
		Output: OutputConfig{
			Format:    processing.FormatJPEG,
			Quality:   90,
			OutputDir: "./output",
			Suffix:    "_cropped",
		},
		Suggest: SuggestConfig{
			Backend:    suggest.BackendSaliency,
			MaxDim:     768,
			TimeoutSec: 300,
		},
		Server: ServerConfig{
			Addr:        ":8080",
			MetricsPath: "/metrics",
			MaxUploadMB: 32,
			ViewWidth:   1080,
			ViewHeight:  1080,
		},
	}
}

// LoadFromFile loads configuration from a YAML or JSON file, chosen by
// extension. Fields missing from the file keep their defaults.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		err = json.Unmarshal(data, config)
	default:
		err = yaml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// SaveToFile saves configuration to a YAML or JSON file, chosen by extension
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	var err error
	if strings.EqualFold(filepath.Ext(filename), ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error")
	}

	if c.Cropper.MinCropSize < 0 {
		return fmt.Errorf("cropper.min_crop_size must not be negative")
	}
	if c.Cropper.TouchRadius < 0 {
		return fmt.Errorf("cropper.touch_radius must not be negative")
	}
	if c.Cropper.MaxResultWidth < 0 || c.Cropper.MaxResultHeight < 0 {
		return fmt.Errorf("cropper.max_result_width/height must not be negative")
	}
	if _, err := c.Cropper.Style(); err != nil {
		return fmt.Errorf("cropper: %w", err)
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}
	if _, err := processing.NormalizeFormat(c.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}

	switch strings.ToLower(c.Suggest.Backend) {
	case "", suggest.BackendNone, suggest.BackendSaliency, suggest.BackendOllama, suggest.BackendLlamaCpp:
	default:
		return fmt.Errorf("suggest.backend must be one of none, saliency, ollama, llamacpp")
	}

	if c.Server.ViewWidth < 1 || c.Server.ViewHeight < 1 {
		return fmt.Errorf("server.view_width and server.view_height must be positive")
	}
	return nil
}

// Style converts the cropper section to a session style
func (c CropperConfig) Style() (cropper.Style, error) {
	style := cropper.DefaultStyle()
	if c.MinCropSize > 0 {
		style.MinCropSize = c.MinCropSize
	}
	if c.TouchRadius > 0 {
		style.TouchRadius = c.TouchRadius
	}

	if len(c.Aspects) > 0 {
		style.Aspects = nil
		for _, name := range c.Aspects {
			a, err := cropper.ParseAspectRatio(name)
			if err != nil {
				return cropper.Style{}, err
			}
			style.Aspects = append(style.Aspects, a)
		}
	}
	if len(c.Shapes) > 0 {
		style.Shapes = nil
		for _, name := range c.Shapes {
			s, err := shape.ByName(name)
			if err != nil {
				return cropper.Style{}, err
			}
			style.Shapes = append(style.Shapes, s)
		}
	}
	if c.InitialAspect != "" {
		a, err := cropper.ParseAspectRatio(c.InitialAspect)
		if err != nil {
			return cropper.Style{}, err
		}
		style.InitialAspect = &a
	}

	style.MaxResultSize = nil
	if c.MaxResultWidth > 0 && c.MaxResultHeight > 0 {
		style.MaxResultSize = &geom.Size{Width: c.MaxResultWidth, Height: c.MaxResultHeight}
	}
	return style, nil
}

// Processor returns an encoder for the output section
func (c OutputConfig) Processor() *processing.Processor {
	p := processing.NewProcessor()
	if c.Quality > 0 {
		p.Quality = c.Quality
	}
	p.Lossless = c.Lossless
	return p
}

// Options converts the suggest section for suggest.New
func (c SuggestConfig) Options() suggest.Options {
	return suggest.Options{
		Backend: c.Backend,
		URL:     c.URL,
		Model:   c.Model,
		MaxDim:  c.MaxDim,
		Timeout: time.Duration(c.TimeoutSec) * time.Second,
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./" + ConfigFileName + ".yaml"
	}
	return filepath.Join(home, ".config", AppName, ConfigFileName+".yaml")
}
