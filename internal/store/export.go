package store

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pavelanni/timedexam/internal/model"
)

// RecordImport compares each file hash with the previous import, records the new hashes,
// and reports whether any previously imported file changed. New files do not count.
func (s *Store) RecordImport(files []FileHash) (bool, error) {
	changed := false
	for _, f := range files {
		prev, err := s.GetImportedFileHash(f.Path)
		if err != nil {
			return false, fmt.Errorf("get hash of %s: %w", f.Path, err)
		}
		if prev != "" && prev != f.Hash {
			changed = true
		}
		if err := s.SetImportedFileHash(f.Path, f.Hash); err != nil {
			return false, fmt.Errorf("set hash of %s: %w", f.Path, err)
		}
	}
	return changed, nil
}

// FileHash is a bank file path with its content hash.
type FileHash struct {
	Path string
	Hash string
}

// ExportJSON writes all archived attempts as an indented JSON array.
func (s *Store) ExportJSON(w io.Writer) error {
	attempts, err := s.ListAttempts()
	if err != nil {
		return fmt.Errorf("list attempts: %w", err)
	}
	if attempts == nil {
		attempts = []model.Attempt{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(attempts)
}
