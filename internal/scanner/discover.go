package scanner

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/crimson-sun/rca/internal/engine"
	"github.com/crimson-sun/rca/internal/logging"
	"github.com/crimson-sun/rca/internal/model"
)

// DefaultRoots are the conventional log locations searched when a run names
// none.
var DefaultRoots = []string{
	"/var/log",
	"/opt/*/logs",
	"~/.local/share/logs",
}

var rotatedSuffix = regexp.MustCompile(`(\.\d+|-\d{8})$`)

var logNames = map[string]bool{
	"messages": true,
	"syslog":   true,
	"dmesg":    true,
	"secure":   true,
	"maillog":  true,
	"cron":     true,
	"daemon":   true,
	"debug":    true,
}

var logExts = map[string]bool{".log": true, ".err": true, ".out": true}

// LooksLikeLog reports whether a file name is a conventional log name,
// including rotated (".1", "-20261018") and gzipped variants.
func LooksLikeLog(name string) bool {
	name = strings.TrimSuffix(strings.ToLower(name), ".gz")
	for {
		trimmed := rotatedSuffix.ReplaceAllString(name, "")
		if trimmed == name {
			break
		}
		name = trimmed
	}
	return logNames[name] || logExts[filepath.Ext(name)]
}

// expandRoot resolves "~" and glob patterns. A root that matches nothing
// yields nothing.
func expandRoot(root string) []string {
	if root == "~" || strings.HasPrefix(root, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		root = filepath.Join(home, strings.TrimPrefix(root, "~"))
	}
	if !strings.ContainsAny(root, "*?[") {
		return []string{filepath.Clean(root)}
	}
	matches, err := filepath.Glob(root)
	if err != nil {
		return nil
	}
	return matches
}

// walker holds the state of one discovery pass.
type walker struct {
	s       *Scanner
	window  model.Window
	visited map[string]bool // resolved directories
	seen    map[string]bool // resolved files
	out     []model.LogSource
}

// Discover lists the sources to scan: regular log files under roots whose
// modification time falls inside window, followed by the streams reported by
// the configured connectors. The result is in presentation order.
func (s *Scanner) Discover(ctx context.Context, roots []string, window model.Window) ([]engine.Input, error) {
	files, err := s.discoverFiles(ctx, roots, window)
	if err != nil {
		return nil, err
	}
	inputs := make([]engine.Input, 0, len(files))
	for _, f := range files {
		inputs = append(inputs, engine.Input{Source: f})
	}
	inputs = append(inputs, s.discoverStreams(ctx, window)...)

	sort.SliceStable(inputs, func(i, j int) bool { return inputs[i].Source.Less(inputs[j].Source) })
	return inputs, nil
}

func (s *Scanner) discoverFiles(ctx context.Context, roots []string, window model.Window) ([]model.LogSource, error) {
	w := &walker{
		s:       s,
		window:  window,
		visited: make(map[string]bool),
		seen:    make(map[string]bool),
	}
	for _, root := range roots {
		for _, path := range expandRoot(root) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			info, err := os.Stat(path)
			if err != nil {
				s.log.Debugw("scan root skipped", logging.FieldSource, path, logging.FieldError, err)
				continue
			}
			if info.IsDir() {
				if err := w.walk(ctx, path, 0); err != nil {
					return nil, err
				}
				continue
			}
			// An explicit file root bypasses the name filter.
			w.consider(path, info, true)
		}
	}
	return w.out, nil
}

func (w *walker) walk(ctx context.Context, dir string, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return nil
	}
	if w.visited[resolved] {
		return nil
	}
	w.visited[resolved] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		w.s.log.Debugw("directory unreadable", logging.FieldSource, dir, logging.FieldError, err)
		return nil
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(dir, e.Name())
		// Stat follows symlinks; broken links are skipped.
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.IsDir() {
			if depth < w.s.maxDepth {
				if err := w.walk(ctx, path, depth+1); err != nil {
					return err
				}
			}
			continue
		}
		w.consider(path, info, false)
	}
	return nil
}

func (w *walker) consider(path string, info os.FileInfo, explicit bool) {
	if !info.Mode().IsRegular() {
		return
	}
	if !explicit && !w.s.match(filepath.Base(path)) {
		return
	}
	if !w.window.Contains(info.ModTime()) {
		return
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		resolved = path
	}
	if w.seen[resolved] {
		return
	}
	w.seen[resolved] = true
	w.out = append(w.out, model.LogSource{
		Path:         path,
		Kind:         model.KindFile,
		DiscoveredAt: w.s.now(),
		SizeBytes:    info.Size(),
		LastModified: info.ModTime(),
	})
}

// discoverStreams asks each connector for its streams. A failing connector
// is logged and skipped.
func (s *Scanner) discoverStreams(ctx context.Context, window model.Window) []engine.Input {
	var inputs []engine.Input
	for _, b := range s.connectors {
		streams, err := b.conn.Streams(ctx, b.cfg, window)
		if err != nil {
			s.log.Debugw("connector failed", "provider", b.cfg.Provider, logging.FieldError, err)
			continue
		}
		for _, st := range streams {
			if !window.Contains(st.Source.LastModified) {
				continue
			}
			inputs = append(inputs, engine.Input{Source: st.Source, Open: st.Open})
		}
	}
	return inputs
}
