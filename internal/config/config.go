package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/telhawk-systems/fmc-connections/internal/fmc"
)

// EnvPrefix prefixes every environment override, e.g. FMC_HOST.
const EnvPrefix = "FMC"

// Config holds the settings of one extraction run.
type Config struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"-"`

	Hours  int    `mapstructure:"hours" yaml:"hours"`
	Limit  int    `mapstructure:"limit" yaml:"limit"`
	Output string `mapstructure:"output" yaml:"output"`

	Fallback      string `mapstructure:"fallback" yaml:"fallback"`
	SummaryFormat string `mapstructure:"summary_format" yaml:"summary_format"`
	MetricsFile   string `mapstructure:"metrics_file" yaml:"metrics_file"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
	NoColor   bool   `mapstructure:"no_color" yaml:"no_color"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Port:          443,
		Hours:         1,
		Limit:         1000,
		Fallback:      string(fmc.FallbackNone),
		SummaryFormat: "text",
		LogLevel:      "warn",
		LogFormat:     "text",
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("host", d.Host)
	v.SetDefault("port", d.Port)
	v.SetDefault("username", d.Username)
	v.SetDefault("password", d.Password)
	v.SetDefault("hours", d.Hours)
	v.SetDefault("limit", d.Limit)
	v.SetDefault("output", d.Output)
	v.SetDefault("fallback", d.Fallback)
	v.SetDefault("summary_format", d.SummaryFormat)
	v.SetDefault("metrics_file", d.MetricsFile)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("no_color", d.NoColor)
}

// Load resolves the configuration with cascade:
// flags > FMC_* environment (after loading envFile) > configFile > defaults.
// configFile and envFile are optional; an empty configFile falls back to
// FMC_CONFIG. A missing envFile is not an error, a missing configFile is.
func Load(flags *pflag.FlagSet, configFile, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	if configFile == "" {
		configFile = os.Getenv(EnvPrefix + "_CONFIG")
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", bindErr)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate checks required settings and enumerations.
func (c *Config) Validate() error {
	var errs []error

	required := []struct{ name, value string }{
		{"host", c.Host},
		{"username", c.Username},
		{"password", c.Password},
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, fmt.Errorf("%s is required (--%s or %s_%s)", r.name, r.name, EnvPrefix, strings.ToUpper(r.name)))
		}
	}

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", c.Port))
	}
	if c.Hours < 1 {
		errs = append(errs, fmt.Errorf("hours must be at least 1, got %d", c.Hours))
	}
	if c.Limit < 1 {
		errs = append(errs, fmt.Errorf("limit must be at least 1, got %d", c.Limit))
	}
	if _, err := fmc.ParseFallback(c.Fallback); err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains([]string{"text", "json", "yaml"}, c.SummaryFormat) {
		errs = append(errs, fmt.Errorf("unknown summary format %q (expected text, json or yaml)", c.SummaryFormat))
	}
	if !slices.Contains([]string{"text", "json"}, c.LogFormat) {
		errs = append(errs, fmt.Errorf("unknown log format %q (expected text or json)", c.LogFormat))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "warning", "error"}, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}

	return errors.Join(errs...)
}

// Credentials returns the appliance address and API user.
func (c *Config) Credentials() fmc.Credentials {
	return fmc.Credentials{
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
	}
}

// FallbackPolicy returns the parsed fallback; call Validate first.
func (c *Config) FallbackPolicy() fmc.Fallback {
	f, _ := fmc.ParseFallback(c.Fallback)
	return f
}
