package index

import (
	"fmt"
	"testing"
	"time"

	"docqa/internal/storage"
)

// openTestStore opens an in-memory database with migrations applied.
func openTestStore(t *testing.T) *SQLiteVectorStore {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewSQLiteVectorStore(s.DB())
}

func makeTestVector(dim int, seed float32) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = seed + float32(i)*0.001
	}
	return v
}

func testRecord(id string, year int, vec []float32) Record {
	return Record{
		ID:        id,
		Filename:  fmt.Sprintf("%d_report.pdf", year),
		Year:      year,
		WordCount: 100,
		Content:   "chunk content for " + id,
		Embedding: vec,
		CreatedAt: time.Now().UTC(),
	}
}

func TestInsertAndSearch(t *testing.T) {
	s := openTestStore(t)

	vec := makeTestVector(64, 0.1)
	if err := s.Insert([]Record{testRecord("r1", 2020, vec)}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	results, err := s.Search(vec, 1, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].ID != "r1" {
		t.Errorf("ID = %q, want r1", results[0].ID)
	}
	if results[0].Score < 0.99 {
		t.Errorf("score = %f, want > 0.99", results[0].Score)
	}
	if results[0].Filename != "2020_report.pdf" {
		t.Errorf("Filename = %q", results[0].Filename)
	}
}

func TestSearch_TopKOrdering(t *testing.T) {
	s := openTestStore(t)

	var records []Record
	for i := 0; i < 10; i++ {
		records = append(records, testRecord(fmt.Sprintf("r%d", i), 2020, makeTestVector(64, float32(i)*0.05)))
	}
	if err := s.Insert(records); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	query := makeTestVector(64, 0.0)
	results, err := s.Search(query, 3, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted by score descending: %f before %f",
				results[i-1].Score, results[i].Score)
		}
	}
}

func TestSearch_YearFilter(t *testing.T) {
	s := openTestStore(t)

	vec := makeTestVector(64, 0.1)
	records := []Record{
		testRecord("a", 2019, vec),
		testRecord("b", 2020, vec),
		testRecord("c", 2020, vec),
	}
	if err := s.Insert(records); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	year := 2020
	results, err := s.Search(vec, 10, &year)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, r := range results {
		if r.Year != 2020 {
			t.Errorf("got year %d, want 2020", r.Year)
		}
	}

	// A year with no documents is an empty result, not an error.
	missing := 1999
	results, err = s.Search(vec, 10, &missing)
	if err != nil {
		t.Fatalf("Search with missing year: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results for missing year, want 0", len(results))
	}
}

func TestSearch_EmptyStore(t *testing.T) {
	s := openTestStore(t)

	results, err := s.Search(makeTestVector(64, 0.1), 5, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestSearch_ZeroQueryVector(t *testing.T) {
	s := openTestStore(t)
	if err := s.Insert([]Record{testRecord("r1", 2020, makeTestVector(64, 0.1))}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	results, err := s.Search(make([]float32, 64), 5, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("zero vector should match nothing, got %d results", len(results))
	}
}

func TestClear(t *testing.T) {
	s := openTestStore(t)

	if err := s.Insert([]Record{testRecord("r1", 2020, makeTestVector(64, 0.1))}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	count, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("count after clear = %d, want 0", count)
	}

	// Clearing an already-empty store succeeds.
	if err := s.Clear(); err != nil {
		t.Errorf("Clear on empty store: %v", err)
	}
}

func TestYears(t *testing.T) {
	s := openTestStore(t)

	years, err := s.Years()
	if err != nil {
		t.Fatalf("Years: %v", err)
	}
	if len(years) != 0 {
		t.Errorf("got %v, want empty", years)
	}

	vec := makeTestVector(64, 0.1)
	records := []Record{
		testRecord("a", 2022, vec),
		testRecord("b", 2019, vec),
		testRecord("c", 2022, vec),
	}
	if err := s.Insert(records); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	years, err = s.Years()
	if err != nil {
		t.Fatalf("Years: %v", err)
	}
	if len(years) != 2 || years[0] != 2019 || years[1] != 2022 {
		t.Errorf("years = %v, want [2019 2022]", years)
	}
}

func TestStats(t *testing.T) {
	s := openTestStore(t)

	st, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st != (Stats{}) {
		t.Errorf("empty store stats = %+v, want zero value", st)
	}

	vec := makeTestVector(64, 0.1)
	records := []Record{
		testRecord("a", 2019, vec),
		testRecord("b", 2021, vec),
		{ID: "c", Filename: "2021_report.pdf", Year: 2021, Content: "x", Embedding: vec},
	}
	if err := s.Insert(records); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	st, err = s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.ChunkCount != 3 {
		t.Errorf("ChunkCount = %d, want 3", st.ChunkCount)
	}
	if st.DocumentCount != 2 {
		t.Errorf("DocumentCount = %d, want 2", st.DocumentCount)
	}
	if st.MinYear != 2019 || st.MaxYear != 2021 {
		t.Errorf("year range = %d-%d, want 2019-2021", st.MinYear, st.MaxYear)
	}
}

func TestEncodeDecodeFloat32s(t *testing.T) {
	in := []float32{0.5, -1.25, 3.75, 0}
	out, err := decodeFloat32s(encodeFloat32s(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("length = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("value %d = %f, want %f", i, out[i], in[i])
		}
	}

	if _, err := decodeFloat32s([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}
