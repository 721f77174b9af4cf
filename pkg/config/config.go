// Package config loads imgtest settings from imgtest.yaml, a .env file and
// IMGTEST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/imgtest/pkg/report"
)

// FileName is the configuration file discovered from the working directory.
const FileName = "imgtest.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "IMGTEST_"

// Duration is a time.Duration written as "90s", "30m" in YAML.
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := parseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("invalid duration %q: negative", s)
	}
	return v, nil
}

// Config holds every run setting.
type Config struct {
	// Cases is the directory of test descriptors.
	Cases       string `yaml:"cases,omitempty"`
	BuildEngine string `yaml:"build_engine,omitempty"`
	Inspector   string `yaml:"inspector,omitempty"`
	Store       string `yaml:"store,omitempty"`
	// OutputDir keeps per-test build output; empty uses scratch space
	// under TempDir.
	OutputDir   string         `yaml:"output_dir,omitempty"`
	TempDir     string         `yaml:"tempdir,omitempty"`
	Libdir      string         `yaml:"libdir,omitempty"`
	Jobs        int            `yaml:"jobs,omitempty"`
	Timeout     Duration       `yaml:"timeout,omitempty"`
	TestTimeout Duration       `yaml:"test_timeout,omitempty"`
	DryRun      bool           `yaml:"dry_run,omitempty"`
	Filters     report.Options `yaml:"filters,omitempty"`

	// Path is the file the configuration was read from, if any.
	Path string `yaml:"-"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Cases:       filepath.Join("test", "data", "manifests"),
		BuildEngine: "osbuild",
		Inspector:   filepath.Join("tools", "image-info"),
		Store:       ".osbuild",
		TempDir:     os.TempDir(),
		Jobs:        1,
	}
}

// LoadFile reads path over the defaults. Relative paths in the file are
// resolved against its directory.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Path = path
	base := filepath.Dir(path)
	for _, p := range []*string{&cfg.Cases, &cfg.Store, &cfg.OutputDir, &cfg.TempDir, &cfg.Libdir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
	return cfg, nil
}

// Discover walks up from dir to the nearest imgtest.yaml. It returns an
// empty path and no error when there is none.
func Discover(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(abs, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", nil
		}
		abs = parent
	}
}

// Load reads the explicit config file, or the discovered one, or the
// defaults, then applies environment overrides.
func Load(explicit string) (*Config, error) {
	path := explicit
	if path == "" {
		var err error
		if path, err = Discover("."); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from IMGTEST_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"CASES":        &c.Cases,
		"BUILD_ENGINE": &c.BuildEngine,
		"INSPECTOR":    &c.Inspector,
		"STORE":        &c.Store,
		"OUTPUT_DIR":   &c.OutputDir,
		"TEMPDIR":      &c.TempDir,
		"LIBDIR":       &c.Libdir,
		"ARCH":         &c.Filters.Arch,
		"DISTRO":       &c.Filters.Distro,
		"NAME":         &c.Filters.Name,
		"WHERE":        &c.Filters.Where,
	}
	for key, p := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*p = v
		}
	}

	if v, ok := lookup(EnvPrefix + "JOBS"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sJOBS: %w", EnvPrefix, err)
		}
		c.Jobs = n
	}
	if v, ok := lookup(EnvPrefix + "DRY_RUN"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sDRY_RUN: %w", EnvPrefix, err)
		}
		c.DryRun = b
	}
	for key, p := range map[string]*Duration{"TIMEOUT": &c.Timeout, "TEST_TIMEOUT": &c.TestTimeout} {
		if v, ok := lookup(EnvPrefix + key); ok {
			d, err := parseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*p = Duration(d)
		}
	}
	return nil
}

// Validate checks the settings for a run. Tool paths are only required
// when something will be built.
func (c *Config) Validate() error {
	var errs []error
	if c.Jobs < 1 {
		errs = append(errs, fmt.Errorf("jobs must be at least 1, got %d", c.Jobs))
	}
	if c.Cases == "" {
		errs = append(errs, errors.New("cases directory is required"))
	}
	if !c.DryRun {
		if c.BuildEngine == "" {
			errs = append(errs, errors.New("build_engine is required"))
		}
		if c.Inspector == "" {
			errs = append(errs, errors.New("inspector is required"))
		}
		if c.Store == "" {
			errs = append(errs, errors.New("store is required"))
		}
	}
	return errors.Join(errs...)
}
