// Package files renders project files and directory trees for chat.
package files

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"

	cberr "github.com/abdul-hamid-achik/codebridge/internal/errors"
)

const (
	CatUsage = "Usage: /cat <file> [range]\nExample: /cat main.go 10-30"

	defaultMaxCatLines  = 200
	defaultMaxFileSize  = 10 << 20
	defaultTreeMaxLines = 80
	defaultTreeDepth    = 2
)

// DefaultIgnore lists the directories /tree leaves out.
var DefaultIgnore = []string{
	".git", "node_modules", "__pycache__", ".next", "venv", ".venv",
	"dist", ".mypy_cache", ".pytest_cache",
}

// Config bounds what the viewer shows.
type Config struct {
	MaxCatLines  int
	MaxFileSize  int64
	TreeMaxLines int
	// TreeIgnore holds doublestar patterns matched against entry names and
	// root-relative paths.
	TreeIgnore []string
}

// Viewer implements /cat and /tree.
type Viewer struct {
	cfg Config
}

// NewViewer creates a viewer. Zero config values take the defaults.
func NewViewer(cfg Config) *Viewer {
	if cfg.MaxCatLines <= 0 {
		cfg.MaxCatLines = defaultMaxCatLines
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.TreeMaxLines <= 0 {
		cfg.TreeMaxLines = defaultTreeMaxLines
	}
	if cfg.TreeIgnore == nil {
		cfg.TreeIgnore = DefaultIgnore
	}
	return &Viewer{cfg: cfg}
}

// Cat shows a numbered slice of a file. arg is "<path> [a-b | n]".
func (v *Viewer) Cat(root, arg string) (string, error) {
	parts := strings.Fields(arg)
	if len(parts) == 0 {
		return "", cberr.Usage(CatUsage)
	}
	rel := parts[0]

	full, err := Resolve(root, rel)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		return "File not found: " + rel, nil
	}
	if info.Size() > v.cfg.MaxFileSize {
		return fmt.Sprintf("File too large: %s (limit %s)",
			humanize.IBytes(uint64(info.Size())), humanize.IBytes(uint64(v.cfg.MaxFileSize))), nil
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return "Read failed: " + err.Error(), nil
	}
	text := strings.ToValidUTF8(string(data), "�")
	lines := strings.SplitAfter(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	total := len(lines)

	start, end := 1, min(total, v.cfg.MaxCatLines)
	if len(parts) > 1 {
		start, end, err = v.parseRange(parts[1], total)
		if err != nil {
			return "", err
		}
		if start > end {
			return fmt.Sprintf("%s has %d lines", rel, total), nil
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d lines, showing %d-%d)\n", rel, total, start, end)
	for i := start; i <= end; i++ {
		fmt.Fprintf(&b, "%4d | %s", i, lines[i-1])
	}
	if end >= start && !strings.HasSuffix(lines[end-1], "\n") {
		b.WriteString("\n")
	}
	if end < total {
		fmt.Fprintf(&b, "\n... %d more lines (/cat %s %d)", total-end, rel, end+1)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// parseRange reads "a-b" or "n" (n starts a window of MaxCatLines lines).
func (v *Viewer) parseRange(rng string, total int) (int, int, error) {
	bad := cberr.Usage(fmt.Sprintf("Invalid line range: %s\nExample: 10-30 or 50", rng))

	if a, b, ok := strings.Cut(rng, "-"); ok {
		s, err1 := strconv.Atoi(a)
		e, err2 := strconv.Atoi(b)
		if err1 != nil || err2 != nil {
			return 0, 0, bad
		}
		return max(1, s), min(total, e), nil
	}
	s, err := strconv.Atoi(rng)
	if err != nil {
		return 0, 0, bad
	}
	start := max(1, s)
	return start, min(total, start+v.cfg.MaxCatLines-1), nil
}

// Tree draws the directory structure. arg is "[path] [depth]".
func (v *Viewer) Tree(root, arg string) (string, error) {
	parts := strings.Fields(arg)
	sub := "."
	if len(parts) > 0 {
		sub = parts[0]
	}
	depth := defaultTreeDepth
	if len(parts) > 1 {
		if d, err := strconv.Atoi(parts[1]); err == nil {
			depth = d
		}
	}

	target, err := Resolve(root, sub)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(target); err != nil || !info.IsDir() {
		return "Directory not found: " + sub, nil
	}

	realRoot, _ := filepath.EvalSymlinks(root)
	t := &treeBuilder{v: v, root: realRoot, lines: []string{sub + "/"}}
	t.walk(target, "", depth)

	if len(t.lines) >= v.cfg.TreeMaxLines {
		t.lines = append(t.lines, "... directory too large, truncated")
	}
	return strings.Join(t.lines, "\n"), nil
}

type treeBuilder struct {
	v     *Viewer
	root  string
	lines []string
}

func (t *treeBuilder) ignored(dir, name string) bool {
	rel, err := filepath.Rel(t.root, filepath.Join(dir, name))
	if err != nil {
		rel = name
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range t.v.cfg.TreeIgnore {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (t *treeBuilder) walk(dir, prefix string, depth int) {
	if depth <= 0 || len(t.lines) >= t.v.cfg.TreeMaxLines {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	var dirs, regular []string
	for _, e := range entries {
		name := e.Name()
		if t.ignored(dir, name) {
			continue
		}
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		switch {
		case info.IsDir():
			dirs = append(dirs, name)
		case info.Mode().IsRegular():
			regular = append(regular, name)
		}
	}

	items := append(dirs, regular...)
	for i, name := range items {
		if len(t.lines) >= t.v.cfg.TreeMaxLines {
			return
		}
		last := i == len(items)-1
		connector, childPrefix := "├── ", "│   "
		if last {
			connector, childPrefix = "└── ", "    "
		}

		if i < len(dirs) {
			t.lines = append(t.lines, prefix+connector+name+"/")
			full := filepath.Join(dir, name)
			// Symlinked directories are listed but not entered.
			if fi, err := os.Lstat(full); err == nil && fi.Mode()&os.ModeSymlink == 0 {
				t.walk(full, prefix+childPrefix, depth-1)
			}
		} else {
			t.lines = append(t.lines, prefix+connector+name)
		}
	}
}
