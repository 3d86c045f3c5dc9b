// Package discover expands command-line arguments into the script files
// that can be split into cells.
package discover

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/saccade/internal/lang"
)

// ErrNoScripts is returned when none of the given paths yield a script.
var ErrNoScripts = errors.New("no scripts found")

// Script is one file that can be opened by the cell engine.
type Script struct {
	Path     string // as passed in, or joined onto the directory argument
	Rel      string // relative to the directory it was found under
	Language string
}

var skipDirs = map[string]struct{}{
	"__pycache__":  {},
	"node_modules": {},
	"venv":         {},
	"env":          {},
	"build":        {},
	"dist":         {},
	"egg-info":     {},
	"vendor":       {},
}

// Scripts resolves each path to the scripts it names. Files are taken as
// given when their extension maps to a known language; directories are
// walked, honoring git's view of tracked files or the top-level
// .gitignore. If languages is non-empty, only those languages are kept.
func Scripts(ctx context.Context, paths []string, languages []string) ([]Script, error) {
	keep := func(name string) bool {
		if name == "" {
			return false
		}
		if len(languages) == 0 {
			return true
		}
		for _, l := range languages {
			if strings.EqualFold(l, name) {
				return true
			}
		}
		return false
	}

	var out []Script
	seen := make(map[string]struct{})
	add := func(s Script) {
		if _, dup := seen[s.Path]; dup {
			return
		}
		seen[s.Path] = struct{}{}
		out = append(out, s)
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			name := lang.ForExtension(filepath.Ext(p))
			if keep(name) {
				add(Script{Path: p, Rel: filepath.Base(p), Language: name})
			}
			continue
		}
		found, err := walk(ctx, p, keep)
		if err != nil {
			return nil, err
		}
		for _, s := range found {
			add(s)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoScripts
	}
	return out, nil
}

func walk(ctx context.Context, root string, keep func(string) bool) ([]Script, error) {
	tracked := gitLsFiles(ctx, root)
	var gi *ignore.GitIgnore
	if tracked == nil {
		gi = loadGitignore(root)
	}

	var results []Script
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if tracked != nil {
			if _, ok := tracked[filepath.ToSlash(rel)]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		langName := lang.ForExtension(filepath.Ext(name))
		if !keep(langName) {
			return nil
		}
		results = append(results, Script{Path: path, Rel: rel, Language: langName})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Rel < results[j].Rel
	})
	return results, nil
}

// gitLsFiles returns the files git considers part of the work tree, or
// nil when root is not a repository root or git is unavailable.
func gitLsFiles(ctx context.Context, root string) map[string]struct{} {
	info, err := os.Stat(filepath.Join(root, ".git"))
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
