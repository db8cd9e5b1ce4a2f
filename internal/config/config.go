// Package config loads copyhash command settings from flags, environment,
// an optional .env file and an optional copyhash.yaml.
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/anatolykoptev/go-copyhash"
)

// EnvPrefix prefixes every environment variable, e.g. COPYHASH_WORKERS.
const EnvPrefix = "COPYHASH"

// Settings is the merged configuration of one command run.
type Settings struct {
	IdentityThreshold   int      `mapstructure:"identity_threshold"`
	SimilarityThreshold int      `mapstructure:"similarity_threshold"`
	Algorithms          []string `mapstructure:"algorithms"`
	ComputeMissing      bool     `mapstructure:"compute_missing"`
	Keep                []string `mapstructure:"keep"`
	Workers             int      `mapstructure:"workers"`
	Cache               string   `mapstructure:"cache"`        // SQLite hash cache path, empty disables it
	MetricsFile         string   `mapstructure:"metrics_file"` // Prometheus textfile path, empty disables it
	LogLevel            string   `mapstructure:"log_level"`
	LogFormat           string   `mapstructure:"log_format"`
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("identity_threshold", copyhash.DefaultIdentityThreshold)
	v.SetDefault("similarity_threshold", copyhash.DefaultSimilarityThreshold)
	v.SetDefault("algorithms", algorithmNames(copyhash.DefaultAlgorithms()))
	v.SetDefault("compute_missing", false)
	v.SetDefault("keep", []string{})
	v.SetDefault("workers", 1)
	v.SetDefault("cache", "")
	v.SetDefault("metrics_file", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}

// Load reads .env, then configFile (or copyhash.yaml from the working
// directory or ~/.config/copyhash when configFile is empty) into v and
// returns the validated settings.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("copyhash")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/copyhash")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the threshold ordering and the named algorithms and categories.
func (s *Settings) Validate() error {
	if s.IdentityThreshold < 0 {
		return fmt.Errorf("identity_threshold must be >= 0, got %d", s.IdentityThreshold)
	}
	if s.SimilarityThreshold < s.IdentityThreshold {
		return fmt.Errorf("similarity_threshold (%d) must be >= identity_threshold (%d)",
			s.SimilarityThreshold, s.IdentityThreshold)
	}
	if s.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", s.Workers)
	}
	if _, err := s.algorithms(); err != nil {
		return err
	}
	_, err := s.keep()
	return err
}

// MatcherConfig converts s into a library Config. Hooks and the hash cache
// are left for the caller to set.
func (s *Settings) MatcherConfig() (copyhash.Config, error) {
	algs, err := s.algorithms()
	if err != nil {
		return copyhash.Config{}, err
	}
	keep, err := s.keep()
	if err != nil {
		return copyhash.Config{}, err
	}

	cfg := copyhash.DefaultConfig()
	cfg.Algorithms = algs
	cfg.IdentityThreshold = s.IdentityThreshold
	cfg.SimilarityThreshold = s.SimilarityThreshold
	cfg.Keep = keep
	cfg.Workers = s.Workers
	if s.ComputeMissing {
		cfg.ComparePolicy = copyhash.CompareComputeMissing
	}
	return cfg, nil
}

func (s *Settings) algorithms() ([]copyhash.Algorithm, error) {
	if len(s.Algorithms) == 0 {
		return copyhash.DefaultAlgorithms(), nil
	}
	algs := make([]copyhash.Algorithm, 0, len(s.Algorithms))
	for _, name := range s.Algorithms {
		a, err := copyhash.AlgorithmByName(name)
		if err != nil {
			return nil, err
		}
		algs = append(algs, a)
	}
	return algs, nil
}

func (s *Settings) keep() ([]copyhash.Category, error) {
	keep := make([]copyhash.Category, 0, len(s.Keep))
	for _, name := range s.Keep {
		c, err := copyhash.ParseCategory(name)
		if err != nil {
			return nil, err
		}
		keep = append(keep, c)
	}
	return keep, nil
}

func algorithmNames(algs []copyhash.Algorithm) []string {
	names := make([]string, len(algs))
	for i, a := range algs {
		names[i] = a.Name
	}
	return names
}
