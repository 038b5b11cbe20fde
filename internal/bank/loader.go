package bank

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/timedexam/internal/model"
)

// ErrEmptyBank is returned when a bank holds no question records.
var ErrEmptyBank = errors.New("question bank is empty")

var validate = validator.New()

// File describes one loaded bank file.
type File struct {
	Path  string
	Hash  string
	Count int
}

// Flatten collects every question record of an arbitrarily nested bank.
// Arrays are walked in order. An object carrying a "question" key is a leaf;
// any other object is walked through its values in key order.
func Flatten(raw json.RawMessage) ([]model.Question, error) {
	var out []model.Question
	if err := walk(raw, "$", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func walk(raw json.RawMessage, path string, out *[]model.Question) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		for i, it := range items {
			if err := walk(it, fmt.Sprintf("%s[%d]", path, i), out); err != nil {
				return err
			}
		}
		return nil
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if _, ok := fields["question"]; ok {
			var q model.Question
			if err := json.Unmarshal(raw, &q); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			*out = append(*out, q)
			return nil
		}
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			if err := walk(fields[k], path+"."+k, out); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%s: unexpected value %.20q", path, string(raw))
	}
}

// Validate checks a single question record.
func Validate(q model.Question) error {
	if err := validate.Struct(q); err != nil {
		return err
	}
	seen := make(map[string]bool, len(q.Options))
	for _, o := range q.Options {
		key := strings.ToLower(o.Label)
		if seen[key] {
			return fmt.Errorf("duplicate option label %q", o.Label)
		}
		seen[key] = true
	}
	return nil
}

// UnknownLetters returns the answer letters that match no option label.
func UnknownLetters(q model.Question) []string {
	var unknown []string
	for _, l := range q.AnswerLetters {
		found := false
		for _, o := range q.Options {
			if strings.EqualFold(o.Label, l) {
				found = true
				break
			}
		}
		if !found {
			unknown = append(unknown, l)
		}
	}
	return unknown
}

// Parse flattens and validates a bank document.
func Parse(data []byte) ([]model.Question, error) {
	questions, err := Flatten(data)
	if err != nil {
		return nil, fmt.Errorf("flatten bank: %w", err)
	}
	for i, q := range questions {
		if err := Validate(q); err != nil {
			return nil, fmt.Errorf("question %d (%.40q): %w", i, q.Text, err)
		}
		if unknown := UnknownLetters(q); len(unknown) > 0 {
			slog.Warn("answer letters without matching option", "index", i, "letters", unknown)
		}
	}
	return questions, nil
}

// LoadFiles reads and parses every bank file, concatenating their records in path order.
func LoadFiles(paths []string) ([]model.Question, []File, error) {
	var all []model.Question
	var files []File
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", path, err)
		}
		questions, err := Parse(data)
		if err != nil {
			return nil, nil, fmt.Errorf("parse %s: %w", path, err)
		}
		sum := sha256.Sum256(data)
		files = append(files, File{Path: path, Hash: hex.EncodeToString(sum[:]), Count: len(questions)})
		all = append(all, questions...)
		slog.Info("loaded question bank", "path", path, "count", len(questions))
	}
	return all, files, nil
}
