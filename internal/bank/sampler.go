package bank

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/pavelanni/timedexam/internal/model"
)

// ErrShortBank is returned by strict sampling when the bank holds fewer records than requested.
var ErrShortBank = errors.New("question bank smaller than requested sample")

// Shuffle returns a uniformly random permutation of s. The input is left untouched.
// A nil rng uses the global source.
func Shuffle[T any](rng *rand.Rand, s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	for i := len(out) - 1; i > 0; i-- {
		var j int
		if rng != nil {
			j = rng.IntN(i + 1)
		} else {
			j = rand.IntN(i + 1)
		}
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// PickN shuffles s and keeps the first n elements, or all of them when s is shorter.
func PickN[T any](rng *rand.Rand, s []T, n int) []T {
	out := Shuffle(rng, s)
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Sample draws the question list of a new session.
func Sample(rng *rand.Rand, questions []model.Question, n int, strict bool) ([]model.Question, error) {
	if len(questions) == 0 {
		return nil, ErrEmptyBank
	}
	if len(questions) < n {
		if strict {
			return nil, fmt.Errorf("%w: have %d, want %d", ErrShortBank, len(questions), n)
		}
		slog.Warn("question bank smaller than sample size, using whole bank",
			"available", len(questions), "requested", n)
	}
	return PickN(rng, questions, n), nil
}

// ShuffleOptions returns the options of q in a fresh random order.
func ShuffleOptions(rng *rand.Rand, q model.Question) []model.Option {
	return Shuffle(rng, q.Options)
}
