package executor

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/snapshot"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

func buildSnapshot(t testing.TB, lines string) *snapshot.Snapshot {
	t.Helper()
	mem := index.NewMemoryIndex()
	docs := make(map[int]document.Meta)
	r := corpus.NewReader(strings.NewReader(lines), 1<<20)
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		meta := document.Project(rec.Doc)
		docs[rec.ID] = meta
		mem.AddDocument(rec.ID, meta, tokenizer.Tokenize(document.Flatten(rec.Doc)))
	}
	return snapshot.New("test", r.Count(), mem.Entries(), docs)
}

const zoo = `{"title":"Park","text":"lion lion pride","url":"http://zoo/1"}
{"title":"Reserve","text":"tiger stripes","url":"http://zoo/2"}
{"title":"Sanctuary","text":"lion sanctuary lion lion","url":"http://zoo/3"}
`

func search(t *testing.T, snap *snapshot.Snapshot, req Request) []Result {
	t.Helper()
	res, err := New(nil).Search(context.Background(), snap, req)
	require.NoError(t, err)
	return res
}

func docIDs(results []Result) []int {
	out := make([]int, len(results))
	for i, r := range results {
		out[i] = r.DocID
	}
	return out
}

func TestSearchRanksByTermFrequency(t *testing.T) {
	snap := buildSnapshot(t, zoo)
	results := search(t, snap, Request{Query: "lion"})
	require.Equal(t, []int{3, 1}, docIDs(results))
	assert.Equal(t, Result{DocID: 3, Title: "Sanctuary", URL: "http://zoo/3", Score: 0.6037}, results[0])
	assert.Equal(t, 0.4871, results[1].Score)
}

func TestSearchExampleCorpus(t *testing.T) {
	snap := buildSnapshot(t, `{"title":"Lion Park","text":"lion lion pride"}
{"title":"Tiger Reserve","text":"tiger stripes"}
{"title":"Lion Sanctuary","text":"lion sanctuary lion"}
`)
	results := search(t, snap, Request{Query: "lion"})
	// Both documents hold "lion" three times once titles are counted, so
	// the scores tie and ascending document id decides.
	require.Equal(t, []int{1, 3}, docIDs(results))
	assert.Equal(t, results[0].Score, results[1].Score)
	assert.Equal(t, "Lion Park", results[0].Title)
}

func TestSearchExampleCorpusTextOnly(t *testing.T) {
	// Same records without titles: "lion" has tf 2 in doc 1 and tf 3 in
	// doc 3, so the higher frequency ranks first at equal idf.
	snap := buildSnapshot(t, `{"text":"lion lion pride"}
{"text":"tiger stripes"}
{"text":"lion sanctuary lion lion"}
`)
	results := search(t, snap, Request{Query: "lion"})
	require.Equal(t, []int{3, 1}, docIDs(results))
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.Equal(t, 0.6037, results[0].Score)
	assert.Equal(t, 0.4871, results[1].Score)

	results = search(t, snap, Request{Query: "lion", Mode: "probabilistic"})
	assert.NotContains(t, docIDs(results), 2)
}

func TestSearchConjunctive(t *testing.T) {
	snap := buildSnapshot(t, zoo)

	assert.Equal(t, []int{3}, docIDs(search(t, snap, Request{Query: "Lion SANCTUARY"})))
	assert.Equal(t, 1.7773, search(t, snap, Request{Query: "lion sanctuary"})[0].Score)

	assert.Empty(t, search(t, snap, Request{Query: "lion tiger"}))
	assert.Empty(t, search(t, snap, Request{Query: "lion elephant"}))
	assert.Empty(t, search(t, snap, Request{Query: "elephant"}))
}

func TestSearchEmptyQuery(t *testing.T) {
	snap := buildSnapshot(t, zoo)
	for _, q := range []string{"", "   ", "!!! ---", "_"} {
		res := search(t, snap, Request{Query: q})
		assert.NotNil(t, res)
		assert.Empty(t, res, "query %q", q)
	}
}

func TestSearchNormalizesQuery(t *testing.T) {
	snap := buildSnapshot(t, `{"title":"Košice","text":"Námestie slobody"}`)
	assert.Equal(t, []int{1}, docIDs(search(t, snap, Request{Query: "kosice NAMESTIE"})))
	assert.Equal(t, []int{1}, docIDs(search(t, snap, Request{Query: "KOŠICE"})))
}

func TestSearchModes(t *testing.T) {
	snap := buildSnapshot(t, zoo)

	assert.Equal(t,
		search(t, snap, Request{Query: "lion", Mode: "classic"}),
		search(t, snap, Request{Query: "lion"}),
	)

	prob := search(t, snap, Request{Query: "tiger", Mode: "probabilistic"})
	require.Len(t, prob, 1)
	assert.Equal(t, 0.6931, prob[0].Score)

	// df = 2 of N = 3 gives ln(1/2) < 0, clamped to zero
	prob = search(t, snap, Request{Query: "lion", Mode: "probabilistic"})
	assert.Equal(t, []int{1, 3}, docIDs(prob))
	for _, r := range prob {
		assert.Equal(t, 0.0, r.Score)
	}
}

func TestSearchInvalidArguments(t *testing.T) {
	snap := buildSnapshot(t, zoo)
	ex := New(nil)

	_, err := ex.Search(context.Background(), snap, Request{Query: "lion", Mode: "bogus"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	_, err = ex.Search(context.Background(), snap, Request{Query: "", Mode: "bogus"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	_, err = ex.Search(context.Background(), snap, Request{Query: "lion", Limit: -1})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestSearchLimit(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 25; i++ {
		b.WriteString(`{"text":"common"}` + "\n")
	}
	snap := buildSnapshot(t, b.String())

	assert.Len(t, search(t, snap, Request{Query: "common"}), DefaultLimit)
	assert.Equal(t, []int{1, 2, 3}, docIDs(search(t, snap, Request{Query: "common", Limit: 3})))
	assert.Len(t, search(t, snap, Request{Query: "common", Limit: 100}), 25)
}

func TestSearchDuplicateQueryTokens(t *testing.T) {
	snap := buildSnapshot(t, zoo)
	single := search(t, snap, Request{Query: "lion"})
	double := search(t, snap, Request{Query: "lion lion"})
	require.Equal(t, docIDs(single), docIDs(double))
	assert.Equal(t, 1.2075, double[0].Score)
}

func TestSearchScoresRoundedToFourPlaces(t *testing.T) {
	snap := buildSnapshot(t, zoo)
	for _, q := range []string{"lion", "zoo", "http zoo", "sanctuary", "tiger stripes"} {
		for _, mode := range []string{"classic", "probabilistic"} {
			for _, r := range search(t, snap, Request{Query: q, Mode: mode}) {
				assert.Equal(t, math.Round(r.Score*10000)/10000, r.Score)
			}
		}
	}
}

func TestSearchDeterministicAndConcurrent(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		if i%3 == 0 {
			b.WriteString(`{"text":"alpha beta alpha"}` + "\n")
		} else {
			b.WriteString(`{"text":"alpha beta"}` + "\n")
		}
	}
	snap := buildSnapshot(t, b.String())
	ex := New(nil)
	want, err := ex.Search(context.Background(), snap, Request{Query: "alpha beta", Limit: 50})
	require.NoError(t, err)
	require.Len(t, want, 50)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				got, err := ex.Search(context.Background(), snap, Request{Query: "alpha beta", Limit: 50})
				assert.NoError(t, err)
				assert.Equal(t, want, got)
			}
		}()
	}
	wg.Wait()
}

func TestIntersect(t *testing.T) {
	lists := []index.PostingList{
		{{DocID: 1, Frequency: 1}, {DocID: 3, Frequency: 1}, {DocID: 5, Frequency: 1}, {DocID: 7, Frequency: 1}},
		{{DocID: 3, Frequency: 2}, {DocID: 7, Frequency: 1}},
		{{DocID: 2, Frequency: 1}, {DocID: 3, Frequency: 1}, {DocID: 7, Frequency: 4}, {DocID: 9, Frequency: 1}},
	}
	assert.Equal(t, []int{3, 7}, intersect(lists))
	assert.Equal(t, []int{1, 3, 5, 7}, intersect(lists[:1]))

	disjoint := []index.PostingList{{{DocID: 1, Frequency: 1}}, {{DocID: 2, Frequency: 1}}}
	assert.Empty(t, intersect(disjoint))
}
