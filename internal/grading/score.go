package grading

import (
	"slices"

	"github.com/pavelanni/timedexam/internal/model"
)

// MaxGrade is the top of the grading scale.
const MaxGrade = 20.0

// SortedLetters returns a sorted copy of letters.
func SortedLetters(letters []string) []string {
	out := slices.Clone(letters)
	slices.Sort(out)
	return out
}

// ItemCorrect reports whether answer matches the key as a set.
// An unset answer is the empty set and never matches a non-empty key.
func ItemCorrect(q model.Question, answer []string) bool {
	return slices.Equal(SortedLetters(q.AnswerLetters), SortedLetters(answer))
}

// RequiredCount is ceil(0.7 * total), computed without floating point.
func RequiredCount(total int) int {
	return (7*total + 9) / 10
}

// Score grades answers against items. answers[i] belongs to items[i];
// missing trailing slots count as unset.
func Score(items []model.Question, answers [][]string) model.Result {
	res := model.Result{Total: len(items), Required: RequiredCount(len(items))}
	for i, q := range items {
		var a []string
		if i < len(answers) {
			a = answers[i]
		}
		if ItemCorrect(q, a) {
			res.Correct++
		}
	}
	if res.Total > 0 {
		res.Grade = float64(res.Correct) / float64(res.Total) * MaxGrade
	}
	res.Passed = res.Correct >= res.Required
	return res
}
