// saccade splits scripts into notebook-style cells and grows selections
// along syntax and cell boundaries, as a CLI and as a language server.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/phobologic/saccade/internal/config"
	"github.com/phobologic/saccade/internal/lang"
	"github.com/phobologic/saccade/internal/logging"
	"github.com/phobologic/saccade/internal/model"
	"github.com/phobologic/saccade/internal/session"
)

var version = "dev"

const defaultMaxFileSize = 1_000_000 // 1 MB

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the global flags and the settings they resolve to.
type app struct {
	stdout, stderr io.Writer

	configPath string
	logLevel   string
	mode       string

	cfg    *config.Config
	logger *log.Logger
}

func run(args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	return root.Execute()
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "saccade",
		Short: "Cell and selection boundaries for scripts",
		Long: `saccade finds notebook-style cells in Python and Ruby scripts, either from
explicit markers such as "# %%" or inferred from blank-line spacing between
top-level statements, and grows selections from syntax nodes to whole cells.

Run "saccade serve" to use it from an editor over the language server protocol.`,
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate("saccade {{.Version}}\n")

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&a.mode, "mode", "auto", "cell mode: auto, implicit, explicit")

	root.AddCommand(
		newCellsCommand(a),
		newCellCommand(a),
		newExpandCommand(a),
		newExportCommand(a),
		newPreviewCommand(a),
		newServeCommand(a),
		newInitCommand(a),
	)
	return root
}

// setup resolves configuration layers and the logger before any subcommand runs.
func (a *app) setup(cmd *cobra.Command) error {
	if cmd.Name() == "init" {
		a.cfg = config.Default()
		a.logger = logging.NewWriter(a.stderr, a.cfg.LogLevel)
		return nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}
	cfg, sources, err := config.Load(config.LoadOptions{
		WorkDir: wd,
		Path:    a.configPath,
		Getenv:  os.Getenv,
	})
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		if !logging.ValidLevel(a.logLevel) {
			return fmt.Errorf("%w: unknown log level %q", config.ErrInvalid, a.logLevel)
		}
		cfg.LogLevel = a.logLevel
	}
	if a.mode != "" && model.ParseMode(a.mode) != model.Mode(a.mode) {
		return fmt.Errorf("%w: unknown mode %q", config.ErrInvalid, a.mode)
	}

	a.cfg = cfg
	a.logger = logging.NewWriter(a.stderr, cfg.LogLevel)
	for _, s := range sources {
		a.logger.Debug("loaded config", logging.FieldPath, s)
	}
	return nil
}

func (a *app) cellMode() model.Mode {
	return model.ParseMode(a.mode)
}

func (a *app) baseContext() context.Context {
	return logging.WithLogger(context.Background(), a.logger)
}

// opened is one script loaded into an engine.
type opened struct {
	engine *session.Engine
	uri    string
	path   string
	lang   *lang.Language
}

// openScript reads path into a fresh engine, refusing files above maxSize.
func (a *app) openScript(ctx context.Context, eng *session.Engine, path string, maxSize int64) (*opened, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s: is a directory", path)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, fmt.Errorf("%s: larger than %d bytes", path, maxSize)
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}

	l := lang.Detect(abs, "", src)
	if l == nil {
		a.logger.Warn("unrecognized language, only explicit cells are available", logging.FieldPath, path)
	}
	uri := "file://" + filepath.ToSlash(abs)
	eng.Open(ctx, uri, "", 1, string(src))
	return &opened{engine: eng, uri: uri, path: path, lang: l}, nil
}

func langName(l *lang.Language) string {
	if l == nil {
		return "unknown"
	}
	return l.Name
}
