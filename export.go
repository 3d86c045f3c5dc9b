package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/phobologic/saccade/internal/discover"
	"github.com/phobologic/saccade/internal/lang"
	"github.com/phobologic/saccade/internal/logging"
	"github.com/phobologic/saccade/internal/notebook"
	"github.com/phobologic/saccade/internal/session"
)

func newExportCommand(a *app) *cobra.Command {
	var (
		outDir  string
		langs   string
		maxSize int
		force   bool
	)
	cmd := &cobra.Command{
		Use:   "export PATH...",
		Short: "Write a Jupyter notebook next to each script",
		Long: `Convert scripts to .ipynb notebooks, one code or markdown cell per script
cell. Directories are walked, skipping files ignored by git. Existing
notebooks are left alone unless --force is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var filter []string
			if langs != "" {
				for _, name := range strings.Split(langs, ",") {
					name = strings.TrimSpace(name)
					if _, err := lang.Lookup(name); err != nil {
						return err
					}
					filter = append(filter, name)
				}
			}
			ctx := a.baseContext()
			scripts, err := discover.Scripts(ctx, args, filter)
			if err != nil {
				return fmt.Errorf("discovering scripts: %w", err)
			}

			job := exportJob{app: a, outDir: outDir, maxSize: int64(maxSize), force: force}
			written, failed := job.run(ctx, scripts)
			_, _ = fmt.Fprintf(a.stderr, "exported %d of %d scripts\n", written, len(scripts))
			if failed > 0 {
				return fmt.Errorf("%d scripts could not be exported", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "write notebooks here, mirroring the script layout")
	cmd.Flags().StringVarP(&langs, "langs", "l", "", "comma-separated languages to include")
	cmd.Flags().IntVar(&maxSize, "max-file-size", defaultMaxFileSize, "skip files larger than this many bytes")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing notebooks")
	return cmd
}

type exportJob struct {
	app     *app
	outDir  string
	maxSize int64
	force   bool
}

// target returns where the notebook for s goes.
func (j exportJob) target(s discover.Script) string {
	name := strings.TrimSuffix(s.Rel, filepath.Ext(s.Rel)) + ".ipynb"
	if j.outDir != "" {
		return filepath.Join(j.outDir, name)
	}
	return strings.TrimSuffix(s.Path, filepath.Ext(s.Path)) + ".ipynb"
}

// run exports scripts on a pool of workers, each with its own engine since
// parsers are not shared across goroutines. It returns how many notebooks
// were written and how many scripts failed.
func (j exportJob) run(ctx context.Context, scripts []discover.Script) (written, failed int) {
	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > len(scripts) {
		numWorkers = len(scripts)
	}

	work := make(chan discover.Script, len(scripts))
	type result struct {
		wrote bool
		err   error
	}
	results := make(chan result, len(scripts))

	var (
		wg       sync.WaitGroup
		stderrMu sync.Mutex
	)
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eng := session.New(j.app.cfg)
			for s := range work {
				wrote, err := j.exportOne(ctx, eng, s)
				if err != nil {
					stderrMu.Lock()
					_, _ = fmt.Fprintf(j.app.stderr, "Warning: %s: %v\n", s.Path, err)
					stderrMu.Unlock()
				}
				results <- result{wrote: wrote, err: err}
			}
		}()
	}

	for _, s := range scripts {
		work <- s
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		switch {
		case r.err != nil:
			failed++
		case r.wrote:
			written++
		}
	}
	return written, failed
}

func (j exportJob) exportOne(ctx context.Context, eng *session.Engine, s discover.Script) (bool, error) {
	dest := j.target(s)
	if !j.force {
		if _, err := os.Stat(dest); err == nil {
			j.app.logger.Info("notebook exists, skipping", logging.FieldPath, dest)
			return false, nil
		}
	}

	o, err := j.app.openScript(ctx, eng, s.Path, j.maxSize)
	if err != nil {
		return false, err
	}
	defer eng.Close(ctx, o.uri)

	cells, err := eng.Cells(ctx, o.uri, j.app.cellMode(), -1)
	if err != nil {
		return false, err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return false, err
	}
	f, err := os.Create(dest)
	if err != nil {
		return false, err
	}
	if err := writeNotebook(f, notebook.Build(cells, o.lang)); err != nil {
		return false, err
	}
	j.app.logger.Debug("exported", logging.FieldPath, s.Path, logging.FieldOutput, dest, logging.FieldCells, len(cells))
	return true, nil
}

func writeNotebook(f io.WriteCloser, nb *notebook.Notebook) error {
	if err := notebook.Write(f, nb); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
