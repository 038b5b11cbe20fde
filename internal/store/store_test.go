package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/pavelanni/timedexam/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testAttempt(id string, finished time.Time, correct int) model.Attempt {
	return model.Attempt{
		ID:         id,
		Reason:     model.FinishManual,
		StartedAt:  finished.Add(-time.Hour),
		FinishedAt: finished,
		Items: []model.Question{{
			Numero:        3,
			Text:          "Pick one",
			Options:       []model.Option{{Label: "a", Text: "x"}, {Label: "b", Text: "y"}},
			AnswerLetters: []string{"a"},
		}},
		Answers: [][]string{{"a"}},
		Result:  model.Result{Correct: correct, Total: 1, Grade: float64(correct) * 20, Required: 1, Passed: correct == 1},
	}
}

func TestAttemptArchive(t *testing.T) {
	s := newTestStore(t)

	count, err := s.AttemptCount()
	if err != nil {
		t.Fatalf("AttemptCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 attempts, got %d", count)
	}

	missing, err := s.GetAttempt("nope")
	if err != nil {
		t.Fatalf("GetAttempt missing: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for missing attempt")
	}

	base := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	if err := s.SaveAttempt(testAttempt("first", base, 1)); err != nil {
		t.Fatalf("SaveAttempt: %v", err)
	}
	if err := s.SaveAttempt(testAttempt("second", base.Add(time.Hour), 0)); err != nil {
		t.Fatalf("SaveAttempt: %v", err)
	}
	if err := s.SaveAttempt(testAttempt("first", base, 1)); err == nil {
		t.Error("expected duplicate id to fail")
	}

	got, err := s.GetAttempt("first")
	if err != nil {
		t.Fatalf("GetAttempt: %v", err)
	}
	if got.Reason != model.FinishManual || !got.Result.Passed || got.Result.Grade != 20 {
		t.Errorf("unexpected attempt: %+v", got)
	}
	if !got.FinishedAt.Equal(base) {
		t.Errorf("finished_at = %v, want %v", got.FinishedAt, base)
	}
	if len(got.Items) != 1 || got.Items[0].Numero != 3 || len(got.Items[0].Options) != 2 {
		t.Errorf("items not round-tripped: %+v", got.Items)
	}
	if len(got.Answers) != 1 || got.Answers[0][0] != "a" {
		t.Errorf("answers not round-tripped: %v", got.Answers)
	}

	list, err := s.ListAttempts()
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(list) != 2 || list[0].ID != "second" || list[1].ID != "first" {
		t.Errorf("expected [second first], got %d attempts", len(list))
	}
}

func TestUnansweredSlotsSurvive(t *testing.T) {
	s := newTestStore(t)
	a := testAttempt("partial", time.Now(), 0)
	a.Items = append(a.Items, a.Items[0])
	a.Answers = [][]string{nil, {"b"}}
	if err := s.SaveAttempt(a); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetAttempt("partial")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Answers) != 2 || got.Answers[0] != nil || got.Answers[1][0] != "b" {
		t.Errorf("answers = %v, want [nil [b]]", got.Answers)
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)

	// Missing file returns empty string.
	hash, err := s.GetImportedFileHash("/some/bank.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash, got %q", hash)
	}

	if err := s.SetImportedFileHash("/some/bank.json", "abc123"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	hash, _ = s.GetImportedFileHash("/some/bank.json")
	if hash != "abc123" {
		t.Errorf("expected 'abc123', got %q", hash)
	}

	// Update existing.
	if err := s.SetImportedFileHash("/some/bank.json", "def456"); err != nil {
		t.Fatalf("SetImportedFileHash update: %v", err)
	}
	hash, _ = s.GetImportedFileHash("/some/bank.json")
	if hash != "def456" {
		t.Errorf("expected 'def456', got %q", hash)
	}
}

func TestRecordImport(t *testing.T) {
	s := newTestStore(t)
	files := []FileHash{{Path: "a.json", Hash: "1"}, {Path: "b.json", Hash: "2"}}

	changed, err := s.RecordImport(files)
	if err != nil || changed {
		t.Fatalf("first import: changed=%v err=%v", changed, err)
	}
	changed, err = s.RecordImport(files)
	if err != nil || changed {
		t.Fatalf("same import: changed=%v err=%v", changed, err)
	}
	files[1].Hash = "3"
	changed, _ = s.RecordImport(files)
	if !changed {
		t.Error("expected change after hash update")
	}
}

func TestBankInfo(t *testing.T) {
	s := newTestStore(t)

	empty, err := s.GetBankInfo()
	if err != nil {
		t.Fatalf("GetBankInfo empty: %v", err)
	}
	if empty.Questions != 0 || empty.Files != nil || !empty.LoadedAt.IsZero() {
		t.Errorf("expected zero info, got %+v", empty)
	}

	want := BankInfo{
		Files:      []string{"a.json", "b.json"},
		Questions:  120,
		LoadedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Changed:    true,
		NumPerExam: 42,
	}
	if err := s.SetBankInfo(want); err != nil {
		t.Fatalf("SetBankInfo: %v", err)
	}
	got, err := s.GetBankInfo()
	if err != nil {
		t.Fatalf("GetBankInfo: %v", err)
	}
	if fmt.Sprint(got.Files) != fmt.Sprint(want.Files) || got.Questions != 120 ||
		!got.LoadedAt.Equal(want.LoadedAt) || !got.Changed || got.NumPerExam != 42 {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestExportJSON(t *testing.T) {
	s := newTestStore(t)

	var buf bytes.Buffer
	if err := s.ExportJSON(&buf); err != nil {
		t.Fatalf("ExportJSON empty: %v", err)
	}
	if got := bytes.TrimSpace(buf.Bytes()); string(got) != "[]" {
		t.Errorf("empty export = %s, want []", got)
	}

	if err := s.SaveAttempt(testAttempt("x", time.Now(), 1)); err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	if err := s.ExportJSON(&buf); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	var out []model.Attempt
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(out) != 1 || out[0].ID != "x" {
		t.Errorf("export = %+v", out)
	}
}
