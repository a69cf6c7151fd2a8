package outputs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nickborgers/monorepo/scholar-citations/internal/models"
)

// FileWriter persists a snapshot as pretty-printed JSON, replacing the
// target file as a whole
type FileWriter struct {
	path string
}

// NewFileWriter creates a writer for path
func NewFileWriter(path string) *FileWriter {
	return &FileWriter{path: path}
}

// Path returns the file the writer replaces
func (f *FileWriter) Path() string {
	return f.path
}

// Write encodes snapshot and swaps it into place. The containing directory is
// created if needed; on error the previous file is left untouched.
func (f *FileWriter) Write(ctx context.Context, snapshot *models.ProfileSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to set snapshot permissions: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", f.path, err)
	}
	return nil
}

// Name returns the output module name
func (f *FileWriter) Name() string {
	return "file"
}

// EncodeSnapshot renders snapshot with two-space indentation. HTML characters
// in the source URL are kept literal and there is no trailing newline.
func EncodeSnapshot(snapshot *models.ProfileSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
