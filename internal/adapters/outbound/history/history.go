// Package history stores finished runs as JSON under the project directory.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/vibeheal/vibeheal/internal/domain"
)

const historyFile = ".vibeheal/history/runs.json"

// maxRecords bounds the file; older runs are dropped first.
const maxRecords = 500

// FileHistory implements domain.RunHistory using JSON file storage.
type FileHistory struct{}

func New() *FileHistory {
	return &FileHistory{}
}

// Save appends rec and rewrites the file atomically.
func (h *FileHistory) Save(dir string, rec domain.RunRecord) error {
	records, err := h.Load(dir)
	if err != nil {
		return err
	}

	records = append(records, rec)
	if len(records) > maxRecords {
		records = records[len(records)-maxRecords:]
	}

	fp := filepath.Join(dir, historyFile)
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}

	tmp := fp + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing history: %w", err)
	}
	return os.Rename(tmp, fp)
}

// Load returns stored runs oldest first. A missing file yields no records.
func (h *FileHistory) Load(dir string) ([]domain.RunRecord, error) {
	fp := filepath.Join(dir, historyFile)

	data, err := os.ReadFile(fp)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var records []domain.RunRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", historyFile, err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records, nil
}

// Last returns up to n most recent records, newest first.
func Last(records []domain.RunRecord, n int) []domain.RunRecord {
	if n <= 0 || n > len(records) {
		n = len(records)
	}
	out := make([]domain.RunRecord, 0, n)
	for i := len(records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, records[i])
	}
	return out
}
