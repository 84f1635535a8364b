package artifact

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
)

func sampleEntries() []index.TermEntry {
	return []index.TermEntry{
		{Term: "lion", Postings: index.PostingList{{DocID: 1, Frequency: 2}, {DocID: 3, Frequency: 3}}, GlobalTF: 5},
		{Term: "žirafa", Postings: index.PostingList{{DocID: 2, Frequency: 1}}, GlobalTF: 1},
	}
}

func sampleStats() index.DocStats {
	return index.DocStats{
		TotalDocs:  4,
		DocLengths: map[int]int{1: 4, 2: 3, 3: 5},
		Docs: map[int]document.Meta{
			1: {URL: "http://a/1", Title: "Lion Park"},
			2: {URL: "http://a/2", Title: "Tiger & <Reserve>"},
			3: {URL: "http://a/3", Title: "Lion Sanctuary", Type: "page"},
		},
	}
}

func publish(t *testing.T, w *Writer) string {
	t.Helper()
	gen, err := w.Begin()
	require.NoError(t, err)
	require.NoError(t, gen.WriteIndex(sampleEntries()))
	require.NoError(t, gen.WriteStats(sampleStats()))
	dir, err := gen.Commit()
	require.NoError(t, err)
	return dir
}

func TestWriteAndRead(t *testing.T) {
	dataDir := t.TempDir()
	dir := publish(t, NewWriter(dataDir))

	current, err := ResolveCurrent(dataDir)
	require.NoError(t, err)
	wantDir, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Equal(t, wantDir, current)

	var got []index.TermEntry
	require.NoError(t, ReadIndex(current, func(e index.TermEntry) error {
		got = append(got, e)
		return nil
	}))
	assert.Equal(t, sampleEntries(), got)

	stats, err := ReadStats(current)
	require.NoError(t, err)
	assert.Equal(t, sampleStats(), *stats)

	raw, err := os.ReadFile(filepath.Join(current, IndexFile))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `{"token":"lion","postings":[[1,2],[3,3]],"global_tf":5}`)
	assert.Contains(t, string(raw), "žirafa")
}

func TestCommitSwapsCurrent(t *testing.T) {
	dataDir := t.TempDir()
	w := NewWriter(dataDir)
	first := publish(t, w)
	time.Sleep(time.Millisecond)
	second := publish(t, w)
	require.NotEqual(t, first, second)

	current, err := ResolveCurrent(dataDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(second), filepath.Base(current))
}

func TestAbortLeavesCurrentUntouched(t *testing.T) {
	dataDir := t.TempDir()
	w := NewWriter(dataDir)
	first := publish(t, w)

	gen, err := w.Begin()
	require.NoError(t, err)
	require.NoError(t, gen.WriteIndex(sampleEntries()))
	require.NoError(t, gen.Abort())

	current, err := ResolveCurrent(dataDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(first), filepath.Base(current))
	_, err = os.Stat(gen.tmpDir)
	assert.True(t, os.IsNotExist(err))
}

func TestCommitRequiresBothArtifacts(t *testing.T) {
	gen, err := NewWriter(t.TempDir()).Begin()
	require.NoError(t, err)
	require.NoError(t, gen.WriteIndex(sampleEntries()))
	_, err = gen.Commit()
	assert.ErrorContains(t, err, "incomplete")
}

func TestPrune(t *testing.T) {
	dataDir := t.TempDir()
	w := NewWriter(dataDir)
	var dirs []string
	for i := 0; i < 4; i++ {
		dirs = append(dirs, publish(t, w))
		time.Sleep(time.Millisecond)
	}
	stale := filepath.Join(dataDir, GenerationsDir, "gen-crashed"+tmpSuffix)
	require.NoError(t, os.MkdirAll(stale, 0755))

	removed, err := Prune(dataDir, 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"gen-crashed" + tmpSuffix,
		filepath.Base(dirs[0]),
		filepath.Base(dirs[1]),
	}, removed)

	for _, d := range dirs[2:] {
		_, err := os.Stat(d)
		assert.NoError(t, err)
	}
}

func TestResolveCurrentMissing(t *testing.T) {
	_, err := ResolveCurrent(t.TempDir())
	assert.Error(t, err)
}

func TestReadIndexMalformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, IndexFile),
		[]byte("{\"token\":\"a\",\"postings\":[[1,1]],\"global_tf\":1}\n{\"token\":\"b\",\"postings\":[[1]]}\n"), 0o644))
	err := ReadIndex(dir, func(index.TermEntry) error { return nil })
	assert.ErrorContains(t, err, "entry 2")
}
