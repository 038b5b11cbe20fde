package bank

import (
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pavelanni/timedexam/internal/model"
)

const nestedBank = `[
  [
    {"numero": 1, "question": "Q1", "options": [{"label": "a", "text": "X"}, {"label": "b", "text": "Y"}], "answer_letters": ["a"]},
    [
      {"numero": "2", "question": "Q2", "options": [{"label": "a", "text": "X"}], "answer_letters": ["a"]}
    ]
  ],
  {"topic": {"items": [{"question": "Q3", "options": [{"label": "c", "text": "Z"}], "answer_letters": ["c"], "justificacion": "because"}]}},
  []
]`

func testRng() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func makeQuestions(n int) []model.Question {
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{
			Numero:        model.Ordinal(i + 1),
			Text:          "Q" + string(rune('A'+i%26)),
			Options:       []model.Option{{Label: "a", Text: "yes"}, {Label: "b", Text: "no"}},
			AnswerLetters: []string{"a"},
		}
	}
	return qs
}

func TestFlattenNested(t *testing.T) {
	qs, err := Flatten([]byte(nestedBank))
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if len(qs) != 3 {
		t.Fatalf("expected 3 leaves, got %d", len(qs))
	}
	got := map[string]bool{}
	for _, q := range qs {
		got[q.Text] = true
	}
	for _, want := range []string{"Q1", "Q2", "Q3"} {
		if !got[want] {
			t.Errorf("missing leaf %q", want)
		}
	}
	if qs[1].Numero != 2 {
		t.Errorf("string numero not parsed, got %d", qs[1].Numero)
	}
	if qs[2].Justification != "because" {
		t.Errorf("justification = %q", qs[2].Justification)
	}
}

func TestFlattenRejectsScalars(t *testing.T) {
	if _, err := Flatten([]byte(`[1, 2]`)); err == nil {
		t.Fatal("expected error for scalar leaves")
	}
}

func TestFlattenEmpty(t *testing.T) {
	qs, err := Flatten([]byte(`[[], [[]]]`))
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if len(qs) != 0 {
		t.Fatalf("expected no leaves, got %d", len(qs))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		q       model.Question
		wantErr bool
	}{
		{"valid", makeQuestions(1)[0], false},
		{"missing text", model.Question{Options: []model.Option{{Label: "a"}}, AnswerLetters: []string{"a"}}, true},
		{"no options", model.Question{Text: "Q", AnswerLetters: []string{"a"}}, true},
		{"no answer", model.Question{Text: "Q", Options: []model.Option{{Label: "a"}}}, true},
		{"long label", model.Question{Text: "Q", Options: []model.Option{{Label: "ab"}}, AnswerLetters: []string{"a"}}, true},
		{"duplicate label", model.Question{Text: "Q", Options: []model.Option{{Label: "a"}, {Label: "A"}}, AnswerLetters: []string{"a"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.q)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUnknownLetters(t *testing.T) {
	q := model.Question{Options: []model.Option{{Label: "a"}, {Label: "b"}}, AnswerLetters: []string{"A", "z"}}
	got := UnknownLetters(q)
	if len(got) != 1 || got[0] != "z" {
		t.Errorf("UnknownLetters = %v, want [z]", got)
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "bank.json")
	if err := os.WriteFile(p, []byte(nestedBank), 0o644); err != nil {
		t.Fatal(err)
	}
	qs, files, err := LoadFiles([]string{p})
	if err != nil {
		t.Fatalf("LoadFiles: %v", err)
	}
	if len(qs) != 3 || len(files) != 1 || files[0].Count != 3 {
		t.Fatalf("unexpected load result: %d questions, files %+v", len(qs), files)
	}
	if len(files[0].Hash) != 64 {
		t.Errorf("expected sha256 hex, got %q", files[0].Hash)
	}

	if _, _, err := LoadFiles([]string{filepath.Join(dir, "missing.json")}); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.json")
	doc := `[{"numero": "dos", "question": "Q", "options": [{"label": "a", "text": "X"}], "answer_letters": ["a"]}]`
	if err := os.WriteFile(bad, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err = LoadFiles([]string{p, bad})
	if err == nil || !strings.Contains(err.Error(), "bad.json") || !strings.Contains(err.Error(), "numero") {
		t.Errorf("non-numeric numero: got %v, want a load error naming the file", err)
	}
}

func TestShuffleIsPermutation(t *testing.T) {
	in := []int{1, 2, 3, 4, 5, 6, 7, 8}
	out := Shuffle(testRng(), in)
	if len(out) != len(in) {
		t.Fatalf("length changed: %d", len(out))
	}
	seen := map[int]int{}
	for _, v := range out {
		seen[v]++
	}
	for _, v := range in {
		if seen[v] != 1 {
			t.Errorf("value %d appears %d times", v, seen[v])
		}
	}
	for i, v := range in {
		if v != i+1 {
			t.Fatal("input was mutated")
		}
	}
}

func TestPickN(t *testing.T) {
	in := make([]int, 50)
	for i := range in {
		in[i] = i
	}
	out := PickN(testRng(), in, 42)
	if len(out) != 42 {
		t.Fatalf("expected 42, got %d", len(out))
	}
	seen := map[int]bool{}
	for _, v := range out {
		if v < 0 || v >= 50 {
			t.Errorf("value %d not from input", v)
		}
		if seen[v] {
			t.Errorf("duplicate %d", v)
		}
		seen[v] = true
	}

	short := PickN(testRng(), in[:5], 42)
	if len(short) != 5 {
		t.Errorf("short input: expected 5, got %d", len(short))
	}
}

func TestSample(t *testing.T) {
	if _, err := Sample(testRng(), nil, 42, false); !errors.Is(err, ErrEmptyBank) {
		t.Errorf("expected ErrEmptyBank, got %v", err)
	}

	qs, err := Sample(testRng(), makeQuestions(10), 42, false)
	if err != nil {
		t.Fatalf("degraded sample: %v", err)
	}
	if len(qs) != 10 {
		t.Errorf("expected whole bank, got %d", len(qs))
	}

	if _, err := Sample(testRng(), makeQuestions(10), 42, true); !errors.Is(err, ErrShortBank) {
		t.Errorf("expected ErrShortBank, got %v", err)
	}

	qs, err = Sample(testRng(), makeQuestions(50), 42, true)
	if err != nil {
		t.Fatalf("strict sample: %v", err)
	}
	if len(qs) != 42 {
		t.Errorf("expected 42, got %d", len(qs))
	}
}

func TestShuffleOptionsKeepsAnswerKey(t *testing.T) {
	q := model.Question{
		Text:          "Q",
		Options:       []model.Option{{Label: "a"}, {Label: "b"}, {Label: "c"}, {Label: "d"}},
		AnswerLetters: []string{"b", "d"},
	}
	opts := ShuffleOptions(testRng(), q)
	if len(opts) != 4 {
		t.Fatalf("expected 4 options, got %d", len(opts))
	}
	if q.Options[0].Label != "a" || q.AnswerLetters[0] != "b" {
		t.Error("question mutated by option shuffle")
	}
}
