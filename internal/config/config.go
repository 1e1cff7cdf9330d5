package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "PARTCOPY"

// ErrInvalid is returned when the loaded configuration fails validation.
var ErrInvalid = errors.New("config: invalid configuration")

// Config holds all application configuration.
type Config struct {
	// Concurrency is the number of files transferred at the same time.
	Concurrency uint `mapstructure:"concurrency" validate:"required,gt=0,lte=64"`
	// PartConcurrency is the number of parts of one file uploaded at the same time.
	PartConcurrency uint `mapstructure:"part_concurrency" validate:"required,gt=0,lte=64"`
	// PartSizeMiB is the multipart chunk size.
	PartSizeMiB int `mapstructure:"part_size_mib" validate:"required,gt=0,lte=5120"`

	StoreDir string `mapstructure:"store_dir" validate:"required"`
	Bucket   string `mapstructure:"bucket" validate:"required,excludesall=/\\"`

	LogLevel  string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"required,oneof=text json"`
	Output    string `mapstructure:"output" validate:"required,oneof=table json yaml"`
}

// PartSize returns the chunk size in bytes.
func (c *Config) PartSize() int { return c.PartSizeMiB << 20 }

// Defaults mirror the transfer settings the tool has always used:
// one archive at a time, five parts in flight, 25 MiB parts.
var defaults = map[string]any{
	"concurrency":      1,
	"part_concurrency": 5,
	"part_size_mib":    25,
	"store_dir":        "./partcopy-store",
	"bucket":           "default",
	"log_level":        "info",
	"log_format":       "text",
	"output":           "table",
}

// Load builds a Config. path names an optional YAML file; flags, if non-nil,
// are bound by name with dashes mapped to underscores (--part-size-mib sets
// part_size_mib). Only flags set on the command line override other sources.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if _, known := defaults[key]; !known {
				return
			}
			if err := v.BindPFlag(key, f); err != nil {
				bindErr = errors.Join(bindErr, fmt.Errorf("bind flag %s: %w", f.Name, err))
			}
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}
