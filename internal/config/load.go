package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the project config file searched for upward from the
// working directory.
const FileName = ".saccade.yaml"

const envPrefix = "SACCADE_"

// LoadOptions selects the layers Load reads.
type LoadOptions struct {
	// WorkDir starts the upward search for FileName. Empty skips discovery.
	WorkDir string
	// Path is an explicit config file; it must exist.
	Path string
	// Getenv looks up environment variables. Nil skips the environment.
	Getenv func(string) string
}

// Load builds a Config from defaults, the discovered project file, the
// explicit file and SACCADE_* variables, later layers winning. It returns
// the files that were read.
func Load(opts LoadOptions) (*Config, []string, error) {
	cfg := Default()
	var sources []string

	if opts.WorkDir != "" {
		found, err := FindProjectConfig(opts.WorkDir)
		if err != nil {
			return nil, nil, err
		}
		if found != "" {
			if err := mergeFile(cfg, found); err != nil {
				return nil, nil, err
			}
			sources = append(sources, found)
		}
	}

	if opts.Path != "" {
		if err := mergeFile(cfg, opts.Path); err != nil {
			return nil, nil, err
		}
		sources = append(sources, opts.Path)
	}

	if opts.Getenv != nil {
		if err := ApplyEnv(cfg, opts.Getenv); err != nil {
			return nil, nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, sources, nil
}

// FindProjectConfig searches dir and its parents for FileName. It returns
// "" when none exists.
func FindProjectConfig(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}
	for {
		candidate := filepath.Join(abs, FileName)
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("checking %s: %w", candidate, err)
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", nil
		}
		abs = parent
	}
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := Merge(cfg, data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Merge decodes YAML data over cfg. Keys absent from data keep their
// current values.
func Merge(cfg *Config, data []byte) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg from SACCADE_* variables.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	str := func(name string, dst *string) {
		if v := getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
	list := func(name string, dst *[]string) {
		if v := getenv(envPrefix + name); v != "" {
			*dst = splitList(v)
		}
	}
	boolean := func(name string, dst *bool) error {
		v := getenv(envPrefix + name)
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid boolean for %s%s: %q", envPrefix, name, v)
		}
		*dst = b
		return nil
	}

	list("START_MARKERS", &cfg.StartMarkers)
	list("END_MARKERS", &cfg.EndMarkers)
	str("HARD_CUT_MARKER", &cfg.HardCutMarker)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("BORDER_WIDTH", &cfg.CurrentCell.BorderWidth)
	if err := boolean("USE_EXPLICIT_CELLS", &cfg.UseExplicitCellsIfPresent); err != nil {
		return err
	}
	if err := boolean("RENDER_COMMENTS", &cfg.RenderComments); err != nil {
		return err
	}
	if err := boolean("SHOW_CURRENT_CELL", &cfg.CurrentCell.Show); err != nil {
		return err
	}
	if v := getenv(envPrefix + "MARKER_SCAN_LINES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid integer for %sMARKER_SCAN_LINES: %q", envPrefix, v)
		}
		cfg.MarkerScanLines = n
	}
	if v := getenv(envPrefix + "FLASH_DURATION"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%sFLASH_DURATION: %w", envPrefix, err)
		}
		cfg.FlashDuration = d
	}
	return nil
}

// splitList parses a comma-separated list, keeping the spaces inside each
// item since markers such as "# %%" contain them.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimLeft(part, " "); strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// EnvVars lists the supported environment variables.
func EnvVars() map[string]string {
	return map[string]string{
		envPrefix + "START_MARKERS":      "Comma-separated cell start markers",
		envPrefix + "END_MARKERS":        "Comma-separated cell end markers",
		envPrefix + "HARD_CUT_MARKER":    "Comment prefix that always splits implicit cells",
		envPrefix + "USE_EXPLICIT_CELLS": "Prefer marker cells when present: true or false",
		envPrefix + "RENDER_COMMENTS":    "Render prose comments as markdown: true or false",
		envPrefix + "MARKER_SCAN_LINES":  "Lines scanned for markers",
		envPrefix + "SHOW_CURRENT_CELL":  "Draw the current cell border: true or false",
		envPrefix + "BORDER_WIDTH":       "Current cell border width",
		envPrefix + "FLASH_DURATION":     "Evaluation highlight duration, e.g. 200ms",
		envPrefix + "LOG_LEVEL":          "Log level: debug, info, warn or error",
	}
}
