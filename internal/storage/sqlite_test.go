package storage

import (
	"path/filepath"
	"testing"
)

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) == 0 {
		t.Fatal("no migrations applied")
	}
	if versions[0] != 1 {
		t.Errorf("first migration = %d, want 1", versions[0])
	}

	// The vector table should exist and be empty.
	var count int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM document_vectors").Scan(&count); err != nil {
		t.Fatalf("querying document_vectors: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestOpen_CreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	// Reopening must not re-apply migrations.
	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer s2.Close()

	versions, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	seen := map[int]int{}
	for _, v := range versions {
		seen[v]++
		if seen[v] > 1 {
			t.Errorf("migration %d applied more than once", v)
		}
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("0001_create_document_vectors.sql")
	if err != nil {
		t.Fatalf("parseMigrationVersion: %v", err)
	}
	if v != 1 {
		t.Errorf("version = %d, want 1", v)
	}

	if _, err := parseMigrationVersion("no_version.sql"); err == nil {
		t.Error("expected error for filename without version prefix")
	}
}
