package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pavelanni/timedexam/internal/model"
	"github.com/pavelanni/timedexam/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleAttempt() model.Attempt {
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return model.Attempt{
		ID:         "att-1",
		Reason:     model.FinishManual,
		StartedAt:  at,
		FinishedAt: at.Add(20 * time.Minute),
		Items: []model.Question{{
			Text:          "Capital of France?",
			Options:       []model.Option{{Label: "a", Text: "Paris"}, {Label: "b", Text: "Lyon"}},
			AnswerLetters: []string{"a"},
		}},
		Answers: [][]string{{"a"}},
		Result:  model.Result{Correct: 1, Total: 1, Grade: 20, Required: 1, Passed: true},
	}
}

func TestExportData(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveAttempt(sampleAttempt()); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		format  string
		id      string
		want    string
		wantErr bool
	}{
		{"summary csv", "csv", "", `"att-1","2026-03-02T10:00:00Z","2026-03-02T10:20:00Z","manual","1","1","20.00","true"`, false},
		{"archive json", "json", "", `"id": "att-1"`, false},
		{"attempt csv", "csv", "att-1", `"Paris"`, false},
		{"attempt detailed", "detailed", "att-1", "Nro,Pregunta", false},
		{"attempt json", "json", "att-1", `"reason": "manual"`, false},
		{"xlsx without id", "xlsx", "", "", true},
		{"unknown attempt", "csv", "nope", "", true},
		{"unknown format", "yaml", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := exportData(s, tt.format, tt.id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !strings.Contains(string(data), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, data)
			}
		})
	}

	data, err := exportData(s, "xlsx", "att-1")
	if err != nil || !bytes.HasPrefix(data, []byte("PK")) {
		t.Errorf("xlsx export: %v", err)
	}
}

func TestLoadBankRecordsInfo(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(t.TempDir(), "bank.json")
	bank := `[{"question":"Q1","options":[{"label":"a","text":"x"}],"answer_letters":["a"]}]`
	if err := os.WriteFile(path, []byte(bank), 0o644); err != nil {
		t.Fatal(err)
	}

	qs, err := loadBank(s, []string{path}, 42)
	if err != nil {
		t.Fatalf("loadBank: %v", err)
	}
	if len(qs) != 1 {
		t.Fatalf("got %d questions, want 1", len(qs))
	}
	info, err := s.GetBankInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Questions != 1 || info.NumPerExam != 42 || info.Changed || len(info.Files) != 1 {
		t.Errorf("first import: bank info = %+v", info)
	}

	if _, err := loadBank(s, []string{path}, 42); err != nil {
		t.Fatal(err)
	}
	if info, _ = s.GetBankInfo(); info.Changed {
		t.Error("unchanged bank flagged as changed")
	}

	if err := os.WriteFile(path, []byte(strings.Replace(bank, "Q1", "Q1 edited", 1)), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadBank(s, []string{path}, 42); err != nil {
		t.Fatal(err)
	}
	if info, _ = s.GetBankInfo(); !info.Changed {
		t.Error("edited bank should be flagged as changed")
	}
}

func TestBankCheck(t *testing.T) {
	path := filepath.Join("..", "..", "questions", "sample_es.json")
	cmd := bankCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"check", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("bank check: %v", err)
	}
	if !strings.Contains(out.String(), "4 questions (1 multi-answer)") || !strings.Contains(out.String(), "total\t4 questions") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}
