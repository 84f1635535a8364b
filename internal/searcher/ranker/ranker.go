// Package ranker implements the TF-IDF scoring variants and the result
// ordering used by the query engine.
package ranker

import (
	"math"
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

// Mode selects the inverse document frequency formula.
type Mode string

const (
	Classic       Mode = "classic"
	Probabilistic Mode = "probabilistic"
)

// ParseMode maps a request value to a Mode. The empty string selects
// Classic; any other unknown value is an invalid-input error.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", Classic:
		return Classic, nil
	case Probabilistic:
		return Probabilistic, nil
	default:
		return "", apperrors.Invalidf("unknown scoring mode %q (want %q or %q)", s, Classic, Probabilistic)
	}
}

// IDF returns the inverse document frequency of a token found in df of n
// documents.
func (m Mode) IDF(df, n int) float64 {
	if m == Probabilistic {
		return IDFProbabilistic(df, n)
	}
	return IDFClassic(df, n)
}

// IDFClassic is ln((N+1)/(df+1)).
func IDFClassic(df, n int) float64 {
	return math.Log(float64(n+1) / float64(df+1))
}

// IDFProbabilistic is max(0, ln((N-df)/df)), and 0 when df is 0 or N.
func IDFProbabilistic(df, n int) float64 {
	if df <= 0 || df >= n {
		return 0
	}
	return math.Max(0, math.Log(float64(n-df)/float64(df)))
}

// TFWeight is the sublinear term frequency 1 + ln(tf).
func TFWeight(tf int) float64 {
	return 1 + math.Log(float64(tf))
}

type ScoredDoc struct {
	DocID int     `json:"doc_id"`
	Score float64 `json:"score"`
}

// Rank orders docs by descending score, breaking ties by ascending document
// id, and keeps at most limit of them. docs is sorted in place.
func Rank(docs []ScoredDoc, limit int) []ScoredDoc {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].DocID < docs[j].DocID
	})
	if limit >= 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs
}

// Round4 rounds a score to four decimal places.
func Round4(score float64) float64 {
	return math.Round(score*10000) / 10000
}
