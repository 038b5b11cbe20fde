package store

import (
	"database/sql"
	"strconv"
	"strings"
	"time"
)

// BankInfo describes the question bank the server was started with.
type BankInfo struct {
	Files      []string
	Questions  int
	LoadedAt   time.Time
	Changed    bool // any file hash differed from the previous import
	NumPerExam int
}

// SetMetadata upserts a key-value pair in the exam_metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO exam_metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM exam_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetBankInfo stores all BankInfo fields as metadata rows.
func (s *Store) SetBankInfo(info BankInfo) error {
	pairs := []struct{ k, v string }{
		{"bank_files", strings.Join(info.Files, "\n")},
		{"bank_questions", strconv.Itoa(info.Questions)},
		{"bank_loaded_at", info.LoadedAt.UTC().Format(time.RFC3339)},
		{"bank_changed", strconv.FormatBool(info.Changed)},
		{"num_per_exam", strconv.Itoa(info.NumPerExam)},
	}
	for _, p := range pairs {
		if err := s.SetMetadata(p.k, p.v); err != nil {
			return err
		}
	}
	return nil
}

// GetBankInfo reads BankInfo from metadata. Missing keys leave zero values.
func (s *Store) GetBankInfo() (BankInfo, error) {
	var info BankInfo

	files, err := s.GetMetadata("bank_files")
	if err != nil {
		return info, err
	}
	if files != "" {
		info.Files = strings.Split(files, "\n")
	}
	for _, f := range []struct {
		key string
		dst *int
	}{
		{"bank_questions", &info.Questions},
		{"num_per_exam", &info.NumPerExam},
	} {
		v, err := s.GetMetadata(f.key)
		if err != nil {
			return info, err
		}
		if v == "" {
			continue
		}
		if *f.dst, err = strconv.Atoi(v); err != nil {
			return info, err
		}
	}
	loaded, err := s.GetMetadata("bank_loaded_at")
	if err != nil {
		return info, err
	}
	if loaded != "" {
		if info.LoadedAt, err = time.Parse(time.RFC3339, loaded); err != nil {
			return info, err
		}
	}
	changed, err := s.GetMetadata("bank_changed")
	if err != nil {
		return info, err
	}
	info.Changed = changed == "true"
	return info, nil
}
