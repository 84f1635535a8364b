package artifact

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
)

// ResolveCurrent returns the generation directory the current link points
// at. The link is resolved once; later swaps do not affect the result.
func ResolveCurrent(dataDir string) (string, error) {
	dir, err := filepath.EvalSymlinks(filepath.Join(dataDir, CurrentLink))
	if err != nil {
		return "", fmt.Errorf("resolving current generation in %s: %w", dataDir, err)
	}
	return dir, nil
}

// ReadIndex streams the index artifact in dir, calling fn for every entry in
// file order.
func ReadIndex(dir string, fn func(entry index.TermEntry) error) error {
	path := filepath.Join(dir, IndexFile)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(bufio.NewReaderSize(f, 1<<20))
	for n := 1; ; n++ {
		var entry index.TermEntry
		if err := dec.Decode(&entry); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("parsing index entry %d: %w", n, err)
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
}

// ReadStats reads the statistics artifact in dir.
func ReadStats(dir string) (*index.DocStats, error) {
	data, err := os.ReadFile(filepath.Join(dir, StatsFile))
	if err != nil {
		return nil, fmt.Errorf("reading statistics: %w", err)
	}
	var stats index.DocStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("parsing statistics: %w", err)
	}
	return &stats, nil
}
