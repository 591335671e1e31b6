package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"docqa/internal/extract"
)

// embedBatchSize is the number of chunks sent per embeddings request.
const embedBatchSize = 64

// Embedder generates embedding vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Splitter breaks document text into chunks.
type Splitter interface {
	Split(text string) []string
}

// SearchResult is one retrieved chunk with its source metadata.
type SearchResult struct {
	Content  string
	Filename string
	Year     int
	Score    float32
}

// Gateway is the single entry point to the vector index: it chunks and embeds
// documents on the way in and embeds queries on the way out. Read operations
// that feed informational endpoints degrade to empty results on storage
// errors; writes always propagate errors.
type Gateway struct {
	embedder Embedder
	store    *SQLiteVectorStore
	splitter Splitter
	logger   *slog.Logger
}

// NewGateway creates a Gateway over the given store.
func NewGateway(embedder Embedder, store *SQLiteVectorStore, splitter Splitter, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		embedder: embedder,
		store:    store,
		splitter: splitter,
		logger:   logger,
	}
}

// chunkRef ties a chunk text back to its parent document.
type chunkRef struct {
	text string
	doc  *extract.Document
}

// AddDocuments chunks, embeds, and stores the given documents. All chunks are
// embedded before anything is written, and the write is a single transaction,
// so a failure leaves the index unchanged. Returns the number of chunks stored.
func (g *Gateway) AddDocuments(ctx context.Context, docs []extract.Document) (int, error) {
	var chunks []chunkRef
	for i := range docs {
		doc := &docs[i]
		for _, text := range g.splitter.Split(doc.Text) {
			chunks = append(chunks, chunkRef{text: text, doc: doc})
		}
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, err := g.embedChunks(ctx, chunks)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	records := make([]Record, len(chunks))
	for i, c := range chunks {
		records[i] = Record{
			ID:        uuid.New().String(),
			Filename:  c.doc.Filename,
			Year:      c.doc.Year,
			WordCount: c.doc.WordCount,
			Content:   c.text,
			Embedding: vectors[i],
			CreatedAt: now,
		}
	}

	if err := g.store.Insert(records); err != nil {
		return 0, fmt.Errorf("storing %d chunks: %w", len(records), err)
	}

	g.logger.Info("documents indexed", "documents", len(docs), "chunks", len(records))
	return len(records), nil
}

// embedChunks embeds all chunk texts, issuing batched requests with bounded
// concurrency.
func (g *Gateway) embedChunks(ctx context.Context, chunks []chunkRef) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))

	gr, gCtx := errgroup.WithContext(ctx)
	gr.SetLimit(4) // Bound concurrency to avoid overwhelming the embeddings API.

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		start := start
		batch := make([]string, end-start)
		for i, c := range chunks[start:end] {
			batch[i] = c.text
		}

		gr.Go(func() error {
			vecs, err := g.embedder.EmbedBatch(gCtx, batch)
			if err != nil {
				return fmt.Errorf("embedding chunks %d-%d: %w", start, start+len(batch)-1, err)
			}
			copy(vectors[start:], vecs)
			return nil
		})
	}

	if err := gr.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Search embeds the query and returns the top-K most similar chunks,
// optionally restricted to a single document year. No matches is an empty
// result, not an error.
func (g *Gateway) Search(ctx context.Context, query string, topK int, year *int) ([]SearchResult, error) {
	vec, err := g.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	scored, err := g.store.Search(vec, topK, year)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	results := make([]SearchResult, len(scored))
	for i, s := range scored {
		results[i] = SearchResult{
			Content:  s.Content,
			Filename: s.Filename,
			Year:     s.Year,
			Score:    s.Score,
		}
	}
	return results, nil
}

// HasDocuments reports whether the index contains any chunks. Storage errors
// degrade to false so callers can treat the index as empty and rebuild.
func (g *Gateway) HasDocuments() bool {
	count, err := g.store.Count()
	if err != nil {
		g.logger.Warn("could not count indexed chunks", "error", err)
		return false
	}
	return count > 0
}

// Clear removes every chunk from the index.
func (g *Gateway) Clear() error {
	return g.store.Clear()
}

// AvailableYears returns the distinct document years in the index, ascending.
// Storage errors degrade to an empty list.
func (g *Gateway) AvailableYears() []int {
	years, err := g.store.Years()
	if err != nil {
		g.logger.Warn("could not list indexed years", "error", err)
		return nil
	}
	return years
}

// Stats returns corpus statistics. Storage errors degrade to zero values.
func (g *Gateway) Stats() Stats {
	st, err := g.store.Stats()
	if err != nil {
		g.logger.Warn("could not read index stats", "error", err)
		return Stats{}
	}
	return st
}
