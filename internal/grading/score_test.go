package grading

import (
	"testing"

	"github.com/pavelanni/timedexam/internal/model"
)

func item(letters ...string) model.Question {
	return model.Question{
		Text: "Q",
		Options: []model.Option{
			{Label: "a", Text: "A"}, {Label: "b", Text: "B"}, {Label: "c", Text: "C"},
		},
		AnswerLetters: letters,
	}
}

func TestItemCorrect(t *testing.T) {
	tests := []struct {
		name   string
		key    []string
		answer []string
		want   bool
	}{
		{"single match", []string{"a"}, []string{"a"}, true},
		{"single wrong", []string{"a"}, []string{"b"}, false},
		{"multi any order", []string{"c", "a"}, []string{"a", "c"}, true},
		{"multi missing one", []string{"a", "c"}, []string{"a"}, false},
		{"multi extra one", []string{"a", "c"}, []string{"a", "b", "c"}, false},
		{"unset", []string{"a"}, nil, false},
		{"empty", []string{"a"}, []string{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ItemCorrect(item(tt.key...), tt.answer); got != tt.want {
				t.Errorf("ItemCorrect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRequiredCount(t *testing.T) {
	tests := []struct{ total, want int }{
		{0, 0}, {1, 1}, {3, 3}, {10, 7}, {11, 8}, {42, 30}, {50, 35},
	}
	for _, tt := range tests {
		if got := RequiredCount(tt.total); got != tt.want {
			t.Errorf("RequiredCount(%d) = %d, want %d", tt.total, got, tt.want)
		}
	}
}

func TestScorePassBoundary(t *testing.T) {
	items := make([]model.Question, 10)
	for i := range items {
		items[i] = item("a")
	}
	answers := make([][]string, 10)
	for i := 0; i < 7; i++ {
		answers[i] = []string{"a"}
	}

	res := Score(items, answers)
	if res.Correct != 7 || res.Required != 7 || !res.Passed {
		t.Errorf("7/10: got %+v, want passed with required 7", res)
	}
	if res.Grade != 14 {
		t.Errorf("grade = %v, want 14", res.Grade)
	}

	answers[6] = nil
	res = Score(items, answers)
	if res.Correct != 6 || res.Passed {
		t.Errorf("6/10: got %+v, want failed", res)
	}
}

func TestScoreEmpty(t *testing.T) {
	res := Score(nil, nil)
	if res.Grade != 0 || res.Total != 0 || !res.Passed {
		t.Errorf("empty score = %+v", res)
	}
}

func TestScoreOrderInsensitive(t *testing.T) {
	items := []model.Question{item("a", "b"), item("c")}
	a1 := [][]string{{"b", "a"}, {"c"}}
	a2 := [][]string{{"a", "b"}, {"c"}}
	if Score(items, a1) != Score(items, a2) {
		t.Error("score should not depend on letter order")
	}
	if Score([]model.Question{item("b", "a"), item("c")}, a2) != Score(items, a2) {
		t.Error("score should not depend on key order")
	}
}

func TestScoreShortAnswers(t *testing.T) {
	items := []model.Question{item("a"), item("b")}
	res := Score(items, [][]string{{"a"}})
	if res.Correct != 1 || res.Total != 2 {
		t.Errorf("got %+v", res)
	}
}
