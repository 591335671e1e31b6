package index

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"docqa/internal/extract"
)

// stubEmbedder returns a deterministic vector derived from the text, so an
// identical query scores highest against its own chunk.
type stubEmbedder struct {
	err   error
	calls int
}

func (s *stubEmbedder) vector(text string) []float32 {
	v := make([]float32, 8)
	var sum float32
	for _, b := range []byte(text) {
		sum += float32(b)
	}
	v[0] = float32(len(text))
	v[1] = sum / 100
	for i := 2; i < len(v); i++ {
		v[i] = float32((len(text)*i)%13) * 0.05
	}
	return v
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.calls++
	return s.vector(text), nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = s.vector(t)
	}
	return out, nil
}

// lineSplitter chunks on newlines, one chunk per non-empty line.
type lineSplitter struct{}

func (lineSplitter) Split(text string) []string {
	var chunks []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			chunks = append(chunks, line)
		}
	}
	return chunks
}

func newTestGateway(t *testing.T) (*Gateway, *stubEmbedder) {
	t.Helper()
	emb := &stubEmbedder{}
	return NewGateway(emb, openTestStore(t), lineSplitter{}, slog.Default()), emb
}

func testDoc(filename string, year int, text string) extract.Document {
	return extract.Document{
		Filename:  filename,
		Text:      text,
		Year:      year,
		WordCount: len(strings.Fields(text)),
	}
}

func TestGateway_AddAndSearch(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	docs := []extract.Document{
		testDoc("2020_alpha.pdf", 2020, "first chunk\nsecond chunk"),
		testDoc("2021_beta.pdf", 2021, "third chunk"),
	}
	n, err := g.AddDocuments(ctx, docs)
	if err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	if n != 3 {
		t.Fatalf("chunks stored = %d, want 3", n)
	}

	if !g.HasDocuments() {
		t.Error("HasDocuments = false after adding")
	}

	results, err := g.Search(ctx, "third chunk", 1, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Content != "third chunk" {
		t.Errorf("Content = %q, want %q", results[0].Content, "third chunk")
	}
	if results[0].Filename != "2021_beta.pdf" || results[0].Year != 2021 {
		t.Errorf("metadata = %q/%d", results[0].Filename, results[0].Year)
	}
}

func TestGateway_AddDocuments_Empty(t *testing.T) {
	g, emb := newTestGateway(t)

	n, err := g.AddDocuments(context.Background(), nil)
	if err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	if n != 0 {
		t.Errorf("chunks = %d, want 0", n)
	}
	if emb.calls != 0 {
		t.Errorf("embedder called %d times for empty input", emb.calls)
	}

	// Documents whose text yields no chunks also store nothing.
	n, err = g.AddDocuments(context.Background(), []extract.Document{testDoc("2020_empty.pdf", 2020, "  \n ")})
	if err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	if n != 0 {
		t.Errorf("chunks = %d, want 0", n)
	}
}

func TestGateway_AddDocuments_EmbedFailureLeavesIndexEmpty(t *testing.T) {
	g, emb := newTestGateway(t)
	emb.err = errors.New("embedding backend down")

	_, err := g.AddDocuments(context.Background(), []extract.Document{
		testDoc("2020_doc.pdf", 2020, "some chunk"),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if g.HasDocuments() {
		t.Error("index should be empty after failed add")
	}
}

func TestGateway_SearchYearFilter(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	docs := []extract.Document{
		testDoc("2019_old.pdf", 2019, "matching text"),
		testDoc("2022_new.pdf", 2022, "matching text"),
	}
	if _, err := g.AddDocuments(ctx, docs); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}

	year := 2019
	results, err := g.Search(ctx, "matching text", 10, &year)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Year != 2019 {
		t.Errorf("Year = %d, want 2019", results[0].Year)
	}
}

func TestGateway_ClearAndViews(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	if g.HasDocuments() {
		t.Error("HasDocuments = true on empty index")
	}
	if years := g.AvailableYears(); len(years) != 0 {
		t.Errorf("AvailableYears = %v, want empty", years)
	}
	if st := g.Stats(); st != (Stats{}) {
		t.Errorf("Stats = %+v, want zero value", st)
	}

	docs := []extract.Document{
		testDoc("2019_a.pdf", 2019, "one"),
		testDoc("2021_b.pdf", 2021, "two\nthree"),
	}
	if _, err := g.AddDocuments(ctx, docs); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}

	years := g.AvailableYears()
	if len(years) != 2 || years[0] != 2019 || years[1] != 2021 {
		t.Errorf("AvailableYears = %v, want [2019 2021]", years)
	}

	st := g.Stats()
	if st.ChunkCount != 3 || st.DocumentCount != 2 {
		t.Errorf("Stats = %+v", st)
	}
	if st.MinYear != 2019 || st.MaxYear != 2021 {
		t.Errorf("year range = %d-%d", st.MinYear, st.MaxYear)
	}

	if err := g.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if g.HasDocuments() {
		t.Error("HasDocuments = true after Clear")
	}
}
