// Package corpus streams newline-delimited JSON records and assigns each one
// its document id. The builder and the snapshot loader both enumerate the
// corpus through Reader so ids stay aligned between build and query time.
package corpus

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

const initialBufferSize = 64 * 1024

// DefaultMaxRecordBytes bounds a single line when the caller sets no limit.
const DefaultMaxRecordBytes = 64 << 20

// Record is one parsed corpus line.
type Record struct {
	ID   int
	Line int
	Doc  *document.Object
}

// Reader enumerates records in stream order. Blank lines are not records and
// consume no id.
type Reader struct {
	scanner *bufio.Scanner
	line    int
	nextID  int
}

// NewReader wraps r. maxRecordBytes bounds the length of a single line; zero
// or negative selects DefaultMaxRecordBytes.
func NewReader(r io.Reader, maxRecordBytes int) *Reader {
	if maxRecordBytes <= 0 {
		maxRecordBytes = DefaultMaxRecordBytes
	}
	s := bufio.NewScanner(r)
	bufSize := initialBufferSize
	if maxRecordBytes < bufSize {
		bufSize = maxRecordBytes
	}
	s.Buffer(make([]byte, 0, bufSize), maxRecordBytes)
	return &Reader{scanner: s, nextID: 1}
}

// Next returns the next record or io.EOF when the stream is exhausted. A
// line that does not hold a single JSON object yields an error wrapping
// apperrors.ErrIngestion.
func (r *Reader) Next() (Record, error) {
	for r.scanner.Scan() {
		r.line++
		raw := r.scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		doc, err := document.ParseRecord(raw)
		if err != nil {
			return Record{}, fmt.Errorf("%w: line %d: %v", apperrors.ErrIngestion, r.line, err)
		}
		rec := Record{ID: r.nextID, Line: r.line, Doc: doc}
		r.nextID++
		return rec, nil
	}
	if err := r.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return Record{}, fmt.Errorf("%w: line %d exceeds maximum record size", apperrors.ErrIngestion, r.line+1)
		}
		return Record{}, fmt.Errorf("reading corpus: %w", err)
	}
	return Record{}, io.EOF
}

// Count returns the number of records read so far.
func (r *Reader) Count() int {
	return r.nextID - 1
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	gzErr := g.Reader.Close()
	if err := g.file.Close(); err != nil {
		return err
	}
	return gzErr
}

// Open opens a corpus file, transparently decompressing paths ending in .gz.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus %s: %w", path, err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening gzip corpus %s: %w", path, err)
	}
	return &gzipFile{Reader: zr, file: f}, nil
}
