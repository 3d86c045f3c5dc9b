// Package config holds saccade's settings and loads them from defaults,
// project files and the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/saccade/internal/cell"
	"github.com/phobologic/saccade/internal/logging"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full settings value. It is threaded explicitly into the
// engine; nothing reads it from global state.
type Config struct {
	StartMarkers              []string    `yaml:"start_markers" json:"startMarkers"`
	EndMarkers                []string    `yaml:"end_markers" json:"endMarkers"`
	HardCutMarker             string      `yaml:"hard_cut_marker" json:"hardCutMarker"`
	UseExplicitCellsIfPresent bool        `yaml:"use_explicit_cells_if_present" json:"useExplicitCellsIfPresent"`
	RenderComments            bool        `yaml:"render_comments" json:"renderComments"`
	MarkerScanLines           int         `yaml:"marker_scan_lines" json:"markerScanLines"`
	CurrentCell               CurrentCell `yaml:"current_cell" json:"currentCell"`
	FlashDuration             Duration    `yaml:"flash_duration" json:"flashDuration"`
	LogLevel                  string      `yaml:"log_level" json:"logLevel"`
}

// CurrentCell controls the current-cell border.
type CurrentCell struct {
	Show        bool   `yaml:"show" json:"show"`
	BorderWidth string `yaml:"border_width" json:"borderWidth"`
}

// Default returns the built-in settings.
func Default() *Config {
	opts := cell.DefaultOptions()
	return &Config{
		StartMarkers:    opts.StartMarkers,
		EndMarkers:      opts.EndMarkers,
		HardCutMarker:   opts.HardCutMarker,
		RenderComments:  opts.RenderComments,
		MarkerScanLines: opts.ScanLines,
		CurrentCell:     CurrentCell{Show: true, BorderWidth: "0"},
		FlashDuration:   Duration(200 * time.Millisecond),
		LogLevel:        "info",
	}
}

// CellOptions converts the settings the cell resolver needs.
func (c *Config) CellOptions() cell.Options {
	return cell.Options{
		StartMarkers:   append([]string(nil), c.StartMarkers...),
		EndMarkers:     append([]string(nil), c.EndMarkers...),
		HardCutMarker:  c.HardCutMarker,
		PreferExplicit: c.UseExplicitCellsIfPresent,
		ScanLines:      c.MarkerScanLines,
		RenderComments: c.RenderComments,
	}
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.StartMarkers = append([]string(nil), c.StartMarkers...)
	out.EndMarkers = append([]string(nil), c.EndMarkers...)
	return &out
}

// Validate checks the settings for values the engine cannot use.
func (c *Config) Validate() error {
	var problems []string
	if len(c.StartMarkers) == 0 {
		problems = append(problems, "start_markers: at least one marker is required")
	}
	for _, list := range []struct {
		name    string
		markers []string
	}{{"start_markers", c.StartMarkers}, {"end_markers", c.EndMarkers}} {
		for i, m := range list.markers {
			if strings.TrimSpace(m) == "" {
				problems = append(problems, fmt.Sprintf("%s[%d]: marker must not be blank", list.name, i))
			}
		}
	}
	if c.MarkerScanLines <= 0 {
		problems = append(problems, fmt.Sprintf("marker_scan_lines: must be positive, got %d", c.MarkerScanLines))
	}
	if c.FlashDuration < 0 {
		problems = append(problems, "flash_duration: must not be negative")
	}
	if !logging.ValidLevel(c.LogLevel) {
		problems = append(problems, fmt.Sprintf("log_level: unknown level %q", c.LogLevel))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Duration is a time.Duration that reads "200ms" style strings or a
// number of milliseconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func parseDuration(s string) (Duration, error) {
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parsing duration %q: %w", s, err)
	}
	return Duration(v), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var ms int64
	if err := node.Decode(&ms); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := parseDuration(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var ms float64
	if err := json.Unmarshal(data, &ms); err == nil {
		*d = Duration(time.Duration(ms * float64(time.Millisecond)))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("flash duration: %w", err)
	}
	v, err := parseDuration(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
