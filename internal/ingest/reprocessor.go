package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"docqa/internal/extract"
)

// DocumentProcessor turns raw PDF bytes into an extracted document.
type DocumentProcessor interface {
	Process(data []byte, filename string) (extract.Document, error)
}

// Indexer is the slice of the vector index the reprocessor needs.
type Indexer interface {
	Clear() error
	AddDocuments(ctx context.Context, docs []extract.Document) (int, error)
}

// Result summarizes one reprocessing run.
type Result struct {
	DocumentsProcessed int `json:"documents_processed"`
	DocumentsFailed    int `json:"documents_failed"`
	ChunksIndexed      int `json:"chunk_count"`
}

// Reprocessor rebuilds the vector index from the PDFs in a directory.
// Runs are serialized: a second caller blocks until the first finishes.
type Reprocessor struct {
	docsDir   string
	processor DocumentProcessor
	indexer   Indexer
	logger    *slog.Logger

	mu sync.Mutex
}

func NewReprocessor(docsDir string, processor DocumentProcessor, indexer Indexer, logger *slog.Logger) *Reprocessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reprocessor{
		docsDir:   docsDir,
		processor: processor,
		indexer:   indexer,
		logger:    logger,
	}
}

// Reprocess re-ingests every PDF in the docs directory. When clearExisting is
// true the index is wiped first; otherwise the new chunks are appended.
// Individual documents that fail to parse are skipped with a warning, and a
// directory with nothing to ingest yields a zero Result rather than an error,
// leaving the index untouched.
func (r *Reprocessor) Reprocess(ctx context.Context, clearExisting bool) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	files, err := r.listPDFs()
	if err != nil {
		r.logger.Warn("docs directory not readable", "dir", r.docsDir, "error", err)
		return Result{}, nil
	}
	if len(files) == 0 {
		r.logger.Warn("no PDF documents found", "dir", r.docsDir)
		return Result{}, nil
	}

	var res Result
	docs := make([]extract.Document, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			r.logger.Warn("skipping unreadable document", "file", path, "error", err)
			res.DocumentsFailed++
			continue
		}

		doc, err := r.processor.Process(data, filepath.Base(path))
		if err != nil {
			r.logger.Warn("skipping document", "file", path, "error", err)
			res.DocumentsFailed++
			continue
		}
		if doc.Text == "" {
			r.logger.Warn("skipping document with no extractable text", "file", path)
			res.DocumentsFailed++
			continue
		}
		docs = append(docs, doc)
	}

	if len(docs) == 0 {
		r.logger.Warn("no documents could be processed", "dir", r.docsDir, "failed", res.DocumentsFailed)
		return res, nil
	}

	if clearExisting {
		if err := r.indexer.Clear(); err != nil {
			return res, fmt.Errorf("clearing index: %w", err)
		}
	}

	chunks, err := r.indexer.AddDocuments(ctx, docs)
	if err != nil {
		return res, fmt.Errorf("indexing documents: %w", err)
	}

	res.DocumentsProcessed = len(docs)
	res.ChunksIndexed = chunks
	r.logger.Info("reprocessing complete",
		"processed", res.DocumentsProcessed,
		"failed", res.DocumentsFailed,
		"chunks", res.ChunksIndexed)
	return res, nil
}

// listPDFs returns the paths of all PDF files directly in the docs directory,
// sorted by name (os.ReadDir order).
func (r *Reprocessor) listPDFs() ([]string, error) {
	entries, err := os.ReadDir(r.docsDir)
	if err != nil {
		return nil, fmt.Errorf("reading docs directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		files = append(files, filepath.Join(r.docsDir, e.Name()))
	}
	return files, nil
}
