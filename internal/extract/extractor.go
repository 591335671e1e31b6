package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/unicode/norm"
)

// Document is one ingested source file with its extracted text and metadata.
type Document struct {
	Filename    string
	Text        string
	Year        int
	WordCount   int
	ProcessedAt string
}

// ExtractionError wraps a PDF parse failure for a specific document.
type ExtractionError struct {
	Filename string
	Err      error
}

func (e *ExtractionError) Error() string {
	if e.Filename == "" {
		return fmt.Sprintf("extracting pdf text: %v", e.Err)
	}
	return fmt.Sprintf("extracting text from %s: %v", e.Filename, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

const (
	minYear = 1900
	maxYear = 2030
)

// Extractor turns raw PDF bytes into cleaned documents.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractText parses PDF bytes and returns cleaned plain text: per-page text
// joined with newlines, trimmed, with lone surrogates removed, NFKD applied,
// and bytes that fail UTF-8 round-trip dropped.
func (e *Extractor) ExtractText(data []byte) (text string, err error) {
	// The parser panics on some malformed inputs; report those as parse errors.
	defer func() {
		if r := recover(); r != nil {
			err = &ExtractionError{Err: fmt.Errorf("pdf parser panic: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &ExtractionError{Err: err}
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", &ExtractionError{Err: fmt.Errorf("page %d: %w", i, err)}
		}
		pages = append(pages, pageText)
	}

	return cleanText(strings.TrimSpace(strings.Join(pages, "\n"))), nil
}

// cleanText removes problematic code points and normalizes text encoding.
func cleanText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if utf16.IsSurrogate(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToValidUTF8(norm.NFKD.String(b.String()), "")
}

// YearFromFilename parses a publication year from the first 4 characters of
// the filename (YYYY_name.pdf convention). Anything unparseable or outside
// [1900, 2030] falls back to the current calendar year, so filenames without
// a leading year silently get "now". That affects year filtering downstream.
func (e *Extractor) YearFromFilename(name string) int {
	return yearFromFilename(name, time.Now())
}

func yearFromFilename(name string, now time.Time) int {
	if len(name) < 4 {
		return now.Year()
	}
	year, err := strconv.Atoi(name[:4])
	if err != nil || year < minYear || year > maxYear {
		return now.Year()
	}
	return year
}

// Process extracts text and metadata from one PDF document.
func (e *Extractor) Process(data []byte, filename string) (Document, error) {
	text, err := e.ExtractText(data)
	if err != nil {
		var extErr *ExtractionError
		if errors.As(err, &extErr) {
			extErr.Filename = filename
		}
		return Document{}, err
	}

	return Document{
		Filename:    filename,
		Text:        text,
		Year:        e.YearFromFilename(filename),
		WordCount:   len(strings.Fields(text)),
		ProcessedAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
}
