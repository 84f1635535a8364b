package index

import (
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
)

// MemoryIndex accumulates postings during a single build pass. Documents
// must be added in ascending id order; postings are appended, never sorted.
// It is not safe for concurrent use.
type MemoryIndex struct {
	terms      map[string]*TermEntry
	order      []string
	docLengths map[int]int
	docs       map[int]document.Meta
	lastDocID  int
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		terms:      make(map[string]*TermEntry),
		docLengths: make(map[int]int),
		docs:       make(map[int]document.Meta),
	}
}

// AddDocument records the tokens of docID. A document without tokens is
// ignored and AddDocument reports false.
func (m *MemoryIndex) AddDocument(docID int, meta document.Meta, tokens []string) bool {
	if docID <= m.lastDocID {
		panic("index: documents must be added in ascending id order")
	}
	m.lastDocID = docID
	if len(tokens) == 0 {
		return false
	}
	order, counts := tokenizer.Frequencies(tokens)
	for _, term := range order {
		tf := counts[term]
		entry, exists := m.terms[term]
		if !exists {
			entry = &TermEntry{Term: term}
			m.terms[term] = entry
			m.order = append(m.order, term)
		}
		entry.Postings = append(entry.Postings, Posting{DocID: docID, Frequency: tf})
		entry.GlobalTF += tf
	}
	m.docLengths[docID] = len(tokens)
	m.docs[docID] = meta
	return true
}

// Entries returns the term entries in first-seen order.
func (m *MemoryIndex) Entries() []TermEntry {
	entries := make([]TermEntry, 0, len(m.order))
	for _, term := range m.order {
		entries = append(entries, *m.terms[term])
	}
	return entries
}

// Stats returns the statistics artifact for a corpus of totalDocs records.
func (m *MemoryIndex) Stats(totalDocs int) DocStats {
	return DocStats{
		TotalDocs:  totalDocs,
		DocLengths: m.docLengths,
		Docs:       m.docs,
	}
}

func (m *MemoryIndex) Terms() int {
	return len(m.order)
}

func (m *MemoryIndex) DocCount() int {
	return len(m.docLengths)
}
