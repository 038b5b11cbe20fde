package report

import (
	"fmt"
	"strings"

	"github.com/pavelanni/timedexam/internal/grading"
	"github.com/pavelanni/timedexam/internal/model"
)

// Row statuses as they appear in every artifact.
const (
	StatusCorrect   = "Correcta"
	StatusIncorrect = "Incorrecta"
)

// textSeparator joins multiple option texts in one cell.
const textSeparator = " | "

// item is the shared per-question derivation behind every renderer.
type item struct {
	number   int
	question model.Question
	key      []string
	marked   []string
	correct  bool
}

func derive(items []model.Question, answers [][]string) ([]item, error) {
	if len(answers) != len(items) {
		return nil, fmt.Errorf("answers length %d does not match %d items", len(answers), len(items))
	}
	out := make([]item, len(items))
	for i, q := range items {
		out[i] = item{
			number:   q.DisplayNumber(i),
			question: q,
			key:      grading.SortedLetters(q.AnswerLetters),
			marked:   grading.SortedLetters(answers[i]),
			correct:  grading.ItemCorrect(q, answers[i]),
		}
	}
	return out, nil
}

func (it item) status() string {
	if it.correct {
		return StatusCorrect
	}
	return StatusIncorrect
}

// OptionTexts maps letters to option texts, matching labels case-insensitively.
// Letters without a matching option, or whose option has no text, are dropped.
func OptionTexts(q model.Question, letters []string) []string {
	dict := make(map[string]string, len(q.Options))
	for _, o := range q.Options {
		dict[strings.ToLower(o.Label)] = o.Text
	}
	var out []string
	for _, l := range letters {
		if t := dict[strings.ToLower(l)]; t != "" {
			out = append(out, t)
		}
	}
	return out
}

// BuildRows derives the user-facing report rows.
func BuildRows(items []model.Question, answers [][]string) ([]model.ReportRow, error) {
	derived, err := derive(items, answers)
	if err != nil {
		return nil, err
	}
	rows := make([]model.ReportRow, len(derived))
	for i, it := range derived {
		rows[i] = model.ReportRow{
			Number:     it.number,
			Question:   it.question.Text,
			UserAnswer: strings.Join(OptionTexts(it.question, it.marked), textSeparator),
			Correct:    strings.Join(OptionTexts(it.question, it.key), textSeparator),
			Status:     it.status(),
		}
	}
	return rows, nil
}
