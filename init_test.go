package main

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/phobologic/saccade/internal/config"
)

func TestApplySectionCreate(t *testing.T) {
	t.Parallel()
	section := sentinelStart + "\nbody: 1\n" + sentinelEnd
	got := applySection("", section)
	if got != section+"\n" {
		t.Errorf("applySection on empty content = %q", got)
	}
}

// TestApplySectionAppend verifies that keys outside a sentinel block are
// preserved and the section is appended after a blank line.
func TestApplySectionAppend(t *testing.T) {
	t.Parallel()
	existing := "# team settings\nother_tool: true"
	section := sentinelStart + "\nnew: 1\n" + sentinelEnd
	got := applySection(existing, section)

	if !strings.HasPrefix(got, existing+"\n\n") {
		t.Errorf("existing content should be preserved at start:\n%s", got)
	}
	if !strings.HasSuffix(got, section+"\n") {
		t.Errorf("section should be appended:\n%s", got)
	}
}

func TestApplySectionUpdate(t *testing.T) {
	t.Parallel()
	before := "other_tool: true\n\n"
	after := "\n\nlast: 1\n"
	old := before + sentinelStart + "\nold: 1\n" + sentinelEnd + after

	section := sentinelStart + "\nnew: 1\n" + sentinelEnd
	got := applySection(old, section)

	if got != before+section+after {
		t.Errorf("applySection = %q", got)
	}
}

// TestInitSectionIsDefaultConfig verifies the written block decodes back to
// the built-in settings.
func TestInitSectionIsDefaultConfig(t *testing.T) {
	t.Parallel()
	section, err := generateSection()
	if err != nil {
		t.Fatalf("generateSection: %v", err)
	}
	if !strings.HasPrefix(section, sentinelStart+"\n") || !strings.HasSuffix(section, "\n"+sentinelEnd) {
		t.Fatalf("section not wrapped in sentinels:\n%s", section)
	}

	cfg := &config.Config{}
	if err := config.Merge(cfg, []byte(section)); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !reflect.DeepEqual(cfg, config.Default()) {
		t.Errorf("decoded section = %+v, want defaults %+v", cfg, config.Default())
	}
}

func TestInitCreatesFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), config.FileName)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"init", path}, &stdout, &stderr); err != nil {
		t.Fatalf("run init: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("file not created: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, sentinelStart) || !strings.Contains(content, sentinelEnd) {
		t.Errorf("sentinels missing from created file:\n%s", content)
	}
	if !strings.Contains(content, "flash_duration: 200ms") {
		t.Errorf("expected flash_duration default in file:\n%s", content)
	}
	if !strings.Contains(stderr.String(), "wrote saccade settings") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestInitDryRun(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), config.FileName)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"init", "--dry-run", path}, &stdout, &stderr); err != nil {
		t.Fatalf("run init: %v", err)
	}

	if _, err := os.Stat(path); err == nil {
		t.Error("--dry-run should not create the file")
	}
	if !strings.Contains(stdout.String(), sentinelStart) {
		t.Error("dry-run output missing sentinel start")
	}
}

func TestInitDryRunNoPath(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	if err := run([]string{"init", "--dry-run"}, &stdout, &stderr); err != nil {
		t.Fatalf("run init: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), sentinelStart) {
		t.Errorf("output should start with the section:\n%s", stdout.String())
	}
}

func TestInitDryRunShowsFullFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), config.FileName)

	existing := "# shared settings\nlog_level: debug\n"
	if err := os.WriteFile(path, []byte(existing), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if err := run([]string{"init", "--dry-run", path}, &stdout, &stderr); err != nil {
		t.Fatalf("run init: %v", err)
	}

	if !strings.HasPrefix(stdout.String(), existing) {
		t.Error("dry-run output missing existing file content")
	}
	data, _ := os.ReadFile(path)
	if string(data) != existing {
		t.Error("--dry-run must not modify the file")
	}
}

func TestInitIdempotent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), config.FileName)

	var buf bytes.Buffer
	if err := run([]string{"init", path}, &buf, &buf); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first, _ := os.ReadFile(path)

	if err := run([]string{"init", path}, &buf, &buf); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second, _ := os.ReadFile(path)

	if string(first) != string(second) {
		t.Errorf("init is not idempotent:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}
