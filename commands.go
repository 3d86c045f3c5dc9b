package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/phobologic/saccade/internal/model"
	"github.com/phobologic/saccade/internal/notebook"
	"github.com/phobologic/saccade/internal/server"
	"github.com/phobologic/saccade/internal/session"
	"github.com/phobologic/saccade/internal/toon"
)

var errNoCell = errors.New("no cell at that line")

func newCellsCommand(a *app) *cobra.Command {
	var (
		format  string
		maxSize int
	)
	cmd := &cobra.Command{
		Use:   "cells FILE...",
		Short: "List the cells of each script",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if format != "toon" && format != "table" {
				return fmt.Errorf("unknown format %q (want toon or table)", format)
			}
			ctx := a.baseContext()
			listings := make([]toon.Listing, 0, len(args))
			for _, path := range args {
				o, err := a.openScript(ctx, session.New(a.cfg), path, int64(maxSize))
				if err != nil {
					return err
				}
				cells, err := o.engine.Cells(ctx, o.uri, a.cellMode(), -1)
				if err != nil {
					return err
				}
				listings = append(listings, toon.Listing{
					Path:     path,
					Language: langName(o.lang),
					Mode:     effectiveMode(cells, a.cellMode()),
					Cells:    cells,
				})
			}
			if format == "table" {
				_, err := fmt.Fprint(a.stdout, renderTable(listings, colorEnabled(a.stdout)))
				return err
			}
			_, err := fmt.Fprintln(a.stdout, toon.Encode(listings...))
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", "toon", "output format: toon or table")
	cmd.Flags().IntVar(&maxSize, "max-file-size", defaultMaxFileSize, "skip files larger than this many bytes")
	return cmd
}

// effectiveMode reports which resolution produced cells. A requested
// auto mode is resolved by looking at what came back.
func effectiveMode(cells []model.Cell, requested model.Mode) model.Mode {
	if requested != model.Auto {
		return requested
	}
	for _, c := range cells {
		if c.Explicit {
			return model.Explicit
		}
	}
	return model.Implicit
}

func newCellCommand(a *app) *cobra.Command {
	var (
		line   int
		source bool
	)
	cmd := &cobra.Command{
		Use:   "cell FILE",
		Short: "Print the cell at a line",
		Long: `Print the cell containing --line (one-based). With --source, print the code a
kernel would run for it instead: comments stripped, or prose wrapped in
markdown display calls when render_comments is on.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if line < 1 {
				return fmt.Errorf("--line must be at least 1")
			}
			ctx := a.baseContext()
			o, err := a.openScript(ctx, session.New(a.cfg), args[0], defaultMaxFileSize)
			if err != nil {
				return err
			}
			pos := model.Position{Line: line - 1}
			if !source {
				c, ok, err := o.engine.CellAt(ctx, o.uri, pos, a.cellMode())
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w %d", errNoCell, line)
				}
				_, err = fmt.Fprintln(a.stdout, c.Text)
				return err
			}
			ev, ok, err := o.engine.Evaluate(ctx, o.uri, model.Caret(pos), a.cellMode())
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w %d", errNoCell, line)
			}
			_, err = fmt.Fprintln(a.stdout, ev.Source)
			return err
		},
	}
	cmd.Flags().IntVar(&line, "line", 1, "one-based line number")
	cmd.Flags().BoolVar(&source, "source", false, "print the evaluation source")
	return cmd
}

func newExpandCommand(a *app) *cobra.Command {
	var line, col, steps int
	cmd := &cobra.Command{
		Use:   "expand FILE",
		Short: "Print the ranges successive selection expands visit",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if line < 1 || col < 0 {
				return fmt.Errorf("--line must be at least 1 and --col at least 0")
			}
			ctx := a.baseContext()
			o, err := a.openScript(ctx, session.New(a.cfg), args[0], defaultMaxFileSize)
			if err != nil {
				return err
			}
			ranges, err := o.engine.SelectionRanges(ctx, o.uri, model.Position{Line: line - 1, Character: col})
			if err != nil {
				return err
			}
			if steps > 0 && len(ranges) > steps {
				ranges = ranges[:steps]
			}
			_, err = fmt.Fprintln(a.stdout, toon.EncodeRanges(args[0], ranges))
			return err
		},
	}
	cmd.Flags().IntVar(&line, "line", 1, "one-based line of the caret")
	cmd.Flags().IntVar(&col, "col", 0, "zero-based UTF-16 column of the caret")
	cmd.Flags().IntVarP(&steps, "steps", "n", 0, "stop after this many expansions (0 means all)")
	return cmd
}

func newPreviewCommand(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "preview FILE",
		Short: "Render a script's cells as an HTML fragment",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx := a.baseContext()
			o, err := a.openScript(ctx, session.New(a.cfg), args[0], defaultMaxFileSize)
			if err != nil {
				return err
			}
			cells, err := o.engine.Cells(ctx, o.uri, a.cellMode(), -1)
			if err != nil {
				return err
			}

			var w io.Writer = a.stdout
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return notebook.Preview(w, cells, o.lang)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the language server on stdin and stdout",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(a.baseContext(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(session.New(a.cfg), a.logger, version)
			err := srv.Serve(ctx, stdio{in: os.Stdin, out: a.stdout})
			if errors.Is(err, ctx.Err()) {
				return nil
			}
			return err
		},
	}
}

// stdio joins the process streams into the connection the server reads.
type stdio struct {
	in  io.ReadCloser
	out io.Writer
}

func (s stdio) Read(p []byte) (int, error)  { return s.in.Read(p) }
func (s stdio) Write(p []byte) (int, error) { return s.out.Write(p) }
func (s stdio) Close() error                { return s.in.Close() }
