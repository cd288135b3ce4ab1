// Package dataset reads, writes and reshapes chat transcript datasets.
package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
)

// ErrNotFound is returned when a dialogue id is not in the dataset.
var ErrNotFound = errors.New("dialogue not found")

var codec = sonic.ConfigDefault

// Load reads a dataset file.
func Load(path string) (Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ds Dataset
	if err := codec.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", path, err)
	}
	return ds, nil
}

// LoadOrEmpty reads a dataset file for resuming. A missing file yields an
// empty dataset silently; an unreadable or corrupt one is reported and also
// yields an empty dataset, which will overwrite it on the next save.
func LoadOrEmpty(path string) Dataset {
	ds, err := Load(path)
	switch {
	case err == nil:
		slog.Info("Loaded existing dataset", "path", path, "records", len(ds))
		return ds
	case errors.Is(err, fs.ErrNotExist):
		return Dataset{}
	default:
		slog.Warn("Existing dataset unreadable, starting fresh", "path", path, "error", err)
		return Dataset{}
	}
}

// Save overwrites path with the whole dataset. The file is written next to
// the target and renamed into place so readers never see a partial file.
func Save(path string, ds Dataset) error {
	if ds == nil {
		ds = Dataset{}
	}
	data, err := codec.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// NextID returns max(id)+1, or 1 for an empty dataset.
func (ds Dataset) NextID() int {
	maxID := 0
	for _, r := range ds {
		maxID = max(maxID, r.ID)
	}
	return maxID + 1
}

// Find returns the record with the given id.
func (ds Dataset) Find(id int) (*Record, error) {
	for i := range ds {
		if ds[i].ID == id {
			return &ds[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
}

// Merge concatenates datasets in order and renumbers ids to 1..N.
func Merge(parts ...Dataset) Dataset {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	merged := make(Dataset, 0, n)
	for _, p := range parts {
		merged = append(merged, p...)
	}
	for i := range merged {
		merged[i].ID = i + 1
	}
	return merged
}

// MergeFiles loads every existing file in paths and merges them. Missing
// files are skipped with a warning; corrupt files abort the merge.
func MergeFiles(paths []string) (Dataset, error) {
	parts := make([]Dataset, 0, len(paths))
	for _, p := range paths {
		ds, err := Load(p)
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Input file not found, skipping", "path", p)
			continue
		}
		if err != nil {
			return nil, err
		}
		parts = append(parts, ds)
	}
	return Merge(parts...), nil
}

// FormatChat renders a transcript as "[ROLE]: text" lines for prompting.
func FormatChat(chat []Message) string {
	lines := make([]string, len(chat))
	for i, m := range chat {
		lines[i] = fmt.Sprintf("[%s]: %s", strings.ToUpper(m.Role), m.Text)
	}
	return strings.Join(lines, "\n")
}

// LastAgentMessage returns the text of the final agent turn, or "" when the
// agent never spoke.
func LastAgentMessage(chat []Message) string {
	for i := len(chat) - 1; i >= 0; i-- {
		if chat[i].Role == RoleAgent {
			return chat[i].Text
		}
	}
	return ""
}
