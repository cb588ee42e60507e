package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/adsb-aircraft-db/internal/domain"
	"github.com/goccy/go-json"
)

// Writer persists partitions as one pretty-printed JSON file each.
// It implements pipeline.PartitionWriter.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a Writer rooted at the output directory.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, logger: logger}
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// WritePartitions writes every partition in key order. The first failure
// stops the run; the keys written before it are returned with the error.
func (w *Writer) WritePartitions(ctx context.Context, partitions domain.PartitionMap) ([]domain.PartitionKey, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create output dir: %w", domain.ErrWrite, err)
	}

	keys := partitions.Keys()
	written := make([]domain.PartitionKey, 0, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return written, fmt.Errorf("%w: %w", domain.ErrWrite, err)
		}
		if err := w.writePartition(key, partitions[key]); err != nil {
			return written, fmt.Errorf("%w: partition %s: %w", domain.ErrWrite, key, err)
		}
		written = append(written, key)
	}
	return written, nil
}

// writePartition replaces <dir>/<key>.json atomically via a temp file and rename.
func (w *Writer) writePartition(key domain.PartitionKey, records map[string]domain.CompactRecord) error {
	data, err := encodePartition(records)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(w.dir, "."+string(key)+"-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			w.remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(w.dir, key.FileName())); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	committed = true
	return nil
}

// encodePartition renders a partition with two-space indent. Map keys are
// sorted, so identical input gives identical bytes.
func encodePartition(records map[string]domain.CompactRecord) ([]byte, error) {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return append(data, '\n'), nil
}

// RemoveWorkingFile deletes the intermediate feed file. Failure is logged only.
func (w *Writer) RemoveWorkingFile(path string) {
	w.remove(path)
}

func (w *Writer) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		w.logger.Warn("remove file failed", "path", path, "error", err)
	}
}
