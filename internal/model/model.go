package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}

// Ordinal is the display number of a question as written in the bank.
// Banks carry it either as a JSON number or a numeric string; zero means absent.
type Ordinal int

// UnmarshalJSON accepts numbers, numeric strings, and null.
func (o *Ordinal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*o = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("numero %q: %w", s, err)
		}
		*o = Ordinal(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("numero: %w", err)
	}
	*o = Ordinal(n)
	return nil
}

// Option is one selectable answer of a question.
type Option struct {
	Label string `json:"label" validate:"required,len=1"`
	Text  string `json:"text"`
}

// Question is one record of the question bank. It is never mutated after loading.
type Question struct {
	Numero        Ordinal  `json:"numero,omitempty"`
	Text          string   `json:"question" validate:"required"`
	Options       []Option `json:"options" validate:"required,min=1,dive"`
	AnswerLetters []string `json:"answer_letters" validate:"required,min=1,dive,required"`
	Justification string   `json:"justificacion,omitempty"`
}

// Multi reports whether more than one option is correct.
func (q Question) Multi() bool {
	return len(q.AnswerLetters) > 1
}

// DisplayNumber returns the bank ordinal, or position+1 when the bank has none.
func (q Question) DisplayNumber(position int) int {
	if q.Numero > 0 {
		return int(q.Numero)
	}
	return position + 1
}

// SessionState is the phase of an exam session.
type SessionState string

const (
	StateNotStarted SessionState = "not_started"
	StateInProgress SessionState = "in_progress"
	StateFinished   SessionState = "finished"
)

// FinishReason records why a session ended.
type FinishReason string

const (
	FinishManual FinishReason = "manual"
	FinishTime   FinishReason = "time"
)

// Result is the score of a finished session.
type Result struct {
	Correct  int     `json:"correct"`
	Total    int     `json:"total"`
	Grade    float64 `json:"grade"`
	Required int     `json:"required"`
	Passed   bool    `json:"passed"`
}

// ReportRow is the human-readable comparison for one question.
type ReportRow struct {
	Number     int    `json:"number"`
	Question   string `json:"question"`
	UserAnswer string `json:"user_answer"`
	Correct    string `json:"correct_answer"`
	Status     string `json:"status"`
}

// ExamConfig holds runtime exam parameters set via CLI flags.
type ExamConfig struct {
	NumQuestions  int           // items sampled per session
	Duration      time.Duration // default time limit, overridable per attempt
	WarnWindow    time.Duration // countdown is flagged once remaining drops below this
	StrictCount   bool          // fail start when the bank holds fewer than NumQuestions
	BasePath      string        // URL prefix for sub-path deployments (e.g. "/es")
	SecureCookies bool          // Set Secure flag on cookies (disable for local dev)
}

// Attempt is an archived, finished session.
type Attempt struct {
	ID         string       `json:"id"`
	Reason     FinishReason `json:"reason"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Items      []Question   `json:"items"`
	Answers    [][]string   `json:"answers"`
	Result     Result       `json:"result"`
}
