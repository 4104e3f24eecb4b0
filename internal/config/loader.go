package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// AppName names the per-user configuration directory.
	AppName = "image-cropper"

	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "image-cropper"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "IMAGE_CROPPER"
)

// Loader reads configuration from files, environment variables and bound
// flags, in viper's precedence order.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on v. A nil v uses the global viper instance,
// which is where the CLI binds its flags.
func NewLoader(v *viper.Viper) *Loader {
	if v == nil {
		v = viper.GetViper()
	}
	return &Loader{v: v}
}

// Load reads configFile, or searches the standard paths when it is empty,
// and returns the validated configuration. A missing file in the search
// paths is not an error.
func (l *Loader) Load(configFile string) (*Config, error) {
	l.setupEnvironmentVariables()
	l.setDefaults()

	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		for _, p := range SearchPaths() {
			l.v.AddConfigPath(p)
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}

// ConfigFileUsed returns the path of the config file read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Viper returns the underlying viper instance.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// WriteDefault writes the default configuration to filename.
func (l *Loader) WriteDefault(filename string) error {
	l.setDefaults()
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	return l.v.WriteConfigAs(filename)
}

// SearchPaths returns the directories searched for a configuration file.
func SearchPaths() []string {
	paths := []string{"."}
	if configDir, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		paths = append(paths, filepath.Join(configDir, AppName))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", AppName))
	}
	return append(paths, "/etc/"+AppName)
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func (l *Loader) setDefaults() {
	d := Default()

	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("cropper.min_crop_size", d.Cropper.MinCropSize)
	l.v.SetDefault("cropper.touch_radius", d.Cropper.TouchRadius)
	l.v.SetDefault("cropper.aspects", d.Cropper.Aspects)
	l.v.SetDefault("cropper.shapes", d.Cropper.Shapes)
	l.v.SetDefault("cropper.initial_aspect", d.Cropper.InitialAspect)
	l.v.SetDefault("cropper.max_result_width", d.Cropper.MaxResultWidth)
	l.v.SetDefault("cropper.max_result_height", d.Cropper.MaxResultHeight)
	l.v.SetDefault("cropper.min_image_size", d.Cropper.MinImageSize)

	l.v.SetDefault("output.format", d.Output.Format)
	l.v.SetDefault("output.quality", d.Output.Quality)
	l.v.SetDefault("output.lossless", d.Output.Lossless)
	l.v.SetDefault("output.output_dir", d.Output.OutputDir)
	l.v.SetDefault("output.prefix", d.Output.Prefix)
	l.v.SetDefault("output.suffix", d.Output.Suffix)

	l.v.SetDefault("suggest.backend", d.Suggest.Backend)
	l.v.SetDefault("suggest.url", d.Suggest.URL)
	l.v.SetDefault("suggest.model", d.Suggest.Model)
	l.v.SetDefault("suggest.max_dim", d.Suggest.MaxDim)
	l.v.SetDefault("suggest.timeout_sec", d.Suggest.TimeoutSec)

	l.v.SetDefault("server.addr", d.Server.Addr)
	l.v.SetDefault("server.metrics_path", d.Server.MetricsPath)
	l.v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	l.v.SetDefault("server.view_width", d.Server.ViewWidth)
	l.v.SetDefault("server.view_height", d.Server.ViewHeight)
}
