package index

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/document"
)

// Posting records how many times a token occurs in one document. It is
// serialised as the pair [doc_id, tf].
type Posting struct {
	DocID     int
	Frequency int
}

func (p Posting) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.DocID, p.Frequency})
}

func (p *Posting) UnmarshalJSON(data []byte) error {
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decoding posting: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("decoding posting: want [doc_id, tf], got %d values", len(pair))
	}
	p.DocID, p.Frequency = pair[0], pair[1]
	return nil
}

// PostingList is ordered by ascending document id.
type PostingList []Posting

// Find returns the frequency recorded for docID.
func (pl PostingList) Find(docID int) (int, bool) {
	i := sort.Search(len(pl), func(i int) bool {
		return pl[i].DocID >= docID
	})
	if i < len(pl) && pl[i].DocID == docID {
		return pl[i].Frequency, true
	}
	return 0, false
}

// TermEntry is one line of the index artifact.
type TermEntry struct {
	Term     string      `json:"token"`
	Postings PostingList `json:"postings"`
	GlobalTF int         `json:"global_tf"`
}

// DocStats is the statistics artifact. TotalDocs counts every record read,
// including records that produced no tokens.
type DocStats struct {
	TotalDocs  int                   `json:"total_docs"`
	DocLengths map[int]int           `json:"doc_lengths"`
	Docs       map[int]document.Meta `json:"docs"`
}
