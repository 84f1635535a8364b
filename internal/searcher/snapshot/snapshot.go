// Package snapshot loads a published index generation into immutable
// in-memory structures. A Snapshot is never mutated after Load returns and
// may be shared by any number of concurrent queries without locking.
package snapshot

import (
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

// Snapshot is the read-only serving state of one generation.
type Snapshot struct {
	Generation  string
	Dir         string
	TotalDocs   int
	IndexedDocs int
	LoadedAt    time.Time

	postings map[string]index.PostingList
	globalTF map[string]int
	docs     map[int]document.Meta
}

// New assembles a snapshot from already validated parts. Loader is the
// normal way to obtain one; New exists for callers that build an index in
// memory.
func New(generation string, totalDocs int, entries []index.TermEntry, docs map[int]document.Meta) *Snapshot {
	snap := &Snapshot{
		Generation: generation,
		TotalDocs:  totalDocs,
		LoadedAt:   time.Now().UTC(),
		postings:   make(map[string]index.PostingList, len(entries)),
		globalTF:   make(map[string]int, len(entries)),
		docs:       docs,
	}
	indexed := make(map[int]struct{})
	for _, e := range entries {
		snap.postings[e.Term] = e.Postings
		snap.globalTF[e.Term] = e.GlobalTF
		for _, p := range e.Postings {
			indexed[p.DocID] = struct{}{}
		}
	}
	snap.IndexedDocs = len(indexed)
	return snap
}

// Postings returns the posting list for token, ordered by ascending id.
// Callers must not modify it.
func (s *Snapshot) Postings(token string) (index.PostingList, bool) {
	pl, ok := s.postings[token]
	return pl, ok
}

// GlobalTF returns the total number of occurrences of token in the corpus.
func (s *Snapshot) GlobalTF(token string) int {
	return s.globalTF[token]
}

// Doc returns the display metadata for id. Unknown ids yield empty metadata.
func (s *Snapshot) Doc(id int) document.Meta {
	return s.docs[id]
}

// Tokens returns the number of distinct tokens.
func (s *Snapshot) Tokens() int {
	return len(s.postings)
}

// Info summarises a snapshot for status endpoints.
type Info struct {
	Generation  string    `json:"generation"`
	TotalDocs   int       `json:"total_docs"`
	IndexedDocs int       `json:"indexed_docs"`
	Tokens      int       `json:"tokens"`
	LoadedAt    time.Time `json:"loaded_at"`
}

func (s *Snapshot) Info() Info {
	return Info{
		Generation:  s.Generation,
		TotalDocs:   s.TotalDocs,
		IndexedDocs: s.IndexedDocs,
		Tokens:      s.Tokens(),
		LoadedAt:    s.LoadedAt,
	}
}

// Holder publishes the snapshot currently being served. Swapping is atomic;
// in-flight queries keep the snapshot they started with.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// Current returns the serving snapshot or apperrors.ErrNotReady.
func (h *Holder) Current() (*Snapshot, error) {
	snap := h.current.Load()
	if snap == nil {
		return nil, apperrors.ErrNotReady
	}
	return snap, nil
}

// Swap installs snap and returns the previous snapshot, if any.
func (h *Holder) Swap(snap *Snapshot) *Snapshot {
	return h.current.Swap(snap)
}
