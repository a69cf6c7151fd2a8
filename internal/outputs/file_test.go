package outputs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nickborgers/monorepo/scholar-citations/internal/models"
)

const testSource = "https://scholar.google.com/citations?user=abc123&hl=en"

// testSnapshot returns scenario A with a fixed capture time
func testSnapshot() *models.ProfileSnapshot {
	name := "Jane Doe"
	citations, hIndex, i10 := int64(1200), int64(15), int64(22)
	return &models.ProfileSnapshot{
		Name:        &name,
		CitationAll: &citations,
		HIndexAll:   &hIndex,
		I10IndexAll: &i10,
		FetchedAt:   models.NewTimestamp(time.Date(2024, 3, 1, 12, 30, 45, 123000000, time.UTC)),
		Source:      testSource,
	}
}

func TestEncodeSnapshot_ExactBytes(t *testing.T) {
	data, err := EncodeSnapshot(testSnapshot())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := `{
  "name": "Jane Doe",
  "citation_all": 1200,
  "h_index_all": 15,
  "i10_index_all": 22,
  "fetched_at": "2024-03-01T12:30:45.123Z",
  "source": "https://scholar.google.com/citations?user=abc123&hl=en"
}`
	if string(data) != expected {
		t.Errorf("Unexpected encoding:\n%s\nexpected:\n%s", data, expected)
	}
}

func TestEncodeSnapshot_NullFields(t *testing.T) {
	snapshot := testSnapshot()
	snapshot.Name = nil
	snapshot.I10IndexAll = nil

	data, err := EncodeSnapshot(snapshot)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}

	if len(decoded) != 6 {
		t.Errorf("Expected exactly 6 fields, got %d: %v", len(decoded), decoded)
	}
	for _, key := range []string{"name", "i10_index_all"} {
		value, ok := decoded[key]
		if !ok {
			t.Errorf("Expected key %q to be present", key)
		}
		if value != nil {
			t.Errorf("Expected %q to be null, got %v", key, value)
		}
	}
}

func TestFileWriter_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "nested", "citation.json")
	writer := NewFileWriter(path)

	if err := writer.Write(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	expected, _ := EncodeSnapshot(testSnapshot())
	if string(data) != string(expected) {
		t.Errorf("File content mismatch:\n%s", data)
	}
}

func TestFileWriter_ReplacesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "citation.json")
	if err := os.WriteFile(path, []byte(`{"stale": true, "padding": "xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"}`), 0o644); err != nil {
		t.Fatalf("Failed to seed file: %v", err)
	}

	writer := NewFileWriter(path)
	if err := writer.Write(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	var snapshot models.ProfileSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		t.Fatalf("Replaced file is not a valid snapshot: %v\n%s", err, data)
	}
	if snapshot.Source != testSource {
		t.Errorf("Expected source %q, got %q", testSource, snapshot.Source)
	}

	// No temp files left behind
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to list dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected only the output file in %s, found %d entries", dir, len(entries))
	}
}

func TestFileWriter_CancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "citation.json")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := NewFileWriter(path).Write(ctx, testSnapshot()); err == nil {
		t.Fatal("Expected error for cancelled context, got nil")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected no file to be written, stat returned %v", err)
	}
}
