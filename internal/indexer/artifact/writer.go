// Package artifact persists and reads the two build outputs: the index
// (one JSON line per token) and the document statistics object. Each build
// is written into its own generation directory and published by atomically
// repointing the "current" symlink, so a reader never sees a half-written
// index.
package artifact

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
)

const (
	IndexFile      = "index.jsonl"
	StatsFile      = "docs_meta.json"
	CurrentLink    = "current"
	GenerationsDir = "generations"
	tmpSuffix      = ".tmp"
)

// Writer creates generations under dataDir.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer that publishes generations into dataDir.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Generation is an unpublished build output.
type Generation struct {
	Name     string
	dataDir  string
	tmpDir   string
	finalDir string
	done     bool
}

// Begin creates an empty temporary generation directory.
func (w *Writer) Begin() (*Generation, error) {
	name := fmt.Sprintf("gen-%020d", time.Now().UnixNano())
	finalDir := filepath.Join(w.dataDir, GenerationsDir, name)
	tmpDir := finalDir + tmpSuffix
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return nil, fmt.Errorf("creating generation directory: %w", err)
	}
	return &Generation{
		Name:     name,
		dataDir:  w.dataDir,
		tmpDir:   tmpDir,
		finalDir: finalDir,
	}, nil
}

// WriteIndex writes one JSON line per term entry, in the given order.
func (g *Generation) WriteIndex(entries []index.TermEntry) error {
	return g.writeFile(IndexFile, func(w *bufio.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for _, entry := range entries {
			if err := enc.Encode(entry); err != nil {
				return fmt.Errorf("encoding term %q: %w", entry.Term, err)
			}
		}
		return nil
	})
}

// WriteStats writes the statistics object.
func (g *Generation) WriteStats(stats index.DocStats) error {
	return g.writeFile(StatsFile, func(w *bufio.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(stats); err != nil {
			return fmt.Errorf("encoding statistics: %w", err)
		}
		return nil
	})
}

func (g *Generation) writeFile(name string, fill func(w *bufio.Writer) error) error {
	f, err := os.Create(filepath.Join(g.tmpDir, name))
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	defer f.Close()
	bw := bufio.NewWriterSize(f, 1<<20)
	if err := fill(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", name, err)
	}
	return f.Close()
}

// Commit renames the generation into place and repoints the current link.
// It returns the published directory.
func (g *Generation) Commit() (string, error) {
	if g.done {
		return "", fmt.Errorf("generation %s already finished", g.Name)
	}
	for _, name := range []string{IndexFile, StatsFile} {
		if _, err := os.Stat(filepath.Join(g.tmpDir, name)); err != nil {
			return "", fmt.Errorf("generation %s incomplete: %w", g.Name, err)
		}
	}
	if err := os.Rename(g.tmpDir, g.finalDir); err != nil {
		return "", fmt.Errorf("renaming generation directory: %w", err)
	}
	g.done = true

	target := filepath.Join(GenerationsDir, g.Name)
	tmpLink := filepath.Join(g.dataDir, CurrentLink+tmpSuffix)
	_ = os.Remove(tmpLink)
	if err := os.Symlink(target, tmpLink); err != nil {
		return "", fmt.Errorf("creating current link: %w", err)
	}
	if err := os.Rename(tmpLink, filepath.Join(g.dataDir, CurrentLink)); err != nil {
		return "", fmt.Errorf("swapping current link: %w", err)
	}
	if err := syncDir(g.dataDir); err != nil {
		return "", err
	}
	return g.finalDir, nil
}

// Abort discards an uncommitted generation.
func (g *Generation) Abort() error {
	if g.done {
		return nil
	}
	g.done = true
	return os.RemoveAll(g.tmpDir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("opening %s for sync: %w", dir, err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", dir, err)
	}
	return nil
}

// Prune removes published generations beyond the newest keep, never the
// one the current link points at. Leftover temporary directories from
// crashed builds are removed as well. It returns the removed names.
func Prune(dataDir string, keep int) ([]string, error) {
	genRoot := filepath.Join(dataDir, GenerationsDir)
	entries, err := os.ReadDir(genRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading generations: %w", err)
	}
	current := ""
	if dir, err := ResolveCurrent(dataDir); err == nil {
		current = filepath.Base(dir)
	}

	var published []string
	var removed []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, tmpSuffix) {
			if err := os.RemoveAll(filepath.Join(genRoot, name)); err != nil {
				return removed, fmt.Errorf("removing stale %s: %w", name, err)
			}
			removed = append(removed, name)
			continue
		}
		published = append(published, name)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(published)))
	for i, name := range published {
		if i < keep || name == current {
			continue
		}
		if err := os.RemoveAll(filepath.Join(genRoot, name)); err != nil {
			return removed, fmt.Errorf("removing generation %s: %w", name, err)
		}
		removed = append(removed, name)
	}
	return removed, nil
}
