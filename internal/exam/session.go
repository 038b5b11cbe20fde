package exam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/timedexam/internal/bank"
	"github.com/pavelanni/timedexam/internal/grading"
	"github.com/pavelanni/timedexam/internal/model"
	"github.com/pavelanni/timedexam/internal/proctor"
	"github.com/pavelanni/timedexam/internal/report"
)

var (
	// ErrNotInProgress is returned by transitions that need a running session.
	ErrNotInProgress = errors.New("exam is not in progress")
	// ErrAlreadyActive is returned when starting over a session that was not reset.
	ErrAlreadyActive = errors.New("an exam session already exists, restart first")
	// ErrEmptySelection is returned when an answer is submitted with nothing selected.
	ErrEmptySelection = errors.New("select at least one option")
	// ErrInvalidSelection is returned when a submitted label is not an option of the question.
	ErrInvalidSelection = errors.New("selected option does not belong to the question")
	// ErrNotConfirmed is returned when finishing early without confirmation.
	ErrNotConfirmed = errors.New("finishing the exam requires confirmation")
	// ErrNoReport is returned when no report is available yet.
	ErrNoReport = errors.New("no report yet, finish an exam first")
)

// Controller owns one exam session and drives its transitions.
// NotStarted -> InProgress -> Finished(manual|time); Restart returns to NotStarted.
type Controller struct {
	mu       sync.Mutex
	id       string
	cfg      model.ExamConfig
	clock    Clock
	rng      *rand.Rand
	proctor  *proctor.Adapter
	onFinish func(model.Attempt)
	interval time.Duration

	state     model.SessionState
	items     []model.Question
	index     int
	answers   [][]string
	startedAt time.Time
	deadline  time.Time
	total     time.Duration
	reason    model.FinishReason
	result    model.Result
	artifacts *report.Artifacts
	finished  time.Time

	stopTimer context.CancelFunc
	done      chan struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option { return func(ctl *Controller) { ctl.clock = c } }

// WithRand fixes the random source used for sampling and option order.
func WithRand(r *rand.Rand) Option { return func(ctl *Controller) { ctl.rng = r } }

// WithProctor attaches the capture adapter stopped on finalize.
func WithProctor(p *proctor.Adapter) Option { return func(ctl *Controller) { ctl.proctor = p } }

// WithFinishHook registers a callback run once per finished session.
func WithFinishHook(fn func(model.Attempt)) Option {
	return func(ctl *Controller) { ctl.onFinish = fn }
}

// WithTickInterval sets the timer period; zero disables the background ticker.
func WithTickInterval(d time.Duration) Option { return func(ctl *Controller) { ctl.interval = d } }

// NewController creates a controller in the NotStarted state.
func NewController(cfg model.ExamConfig, opts ...Option) *Controller {
	c := &Controller{
		id:       uuid.NewString(),
		cfg:      cfg,
		clock:    SystemClock{},
		interval: TickInterval,
		state:    model.StateNotStarted,
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ID identifies the controller's client.
func (c *Controller) ID() string { return c.id }

// Proctor returns the attached capture adapter, or nil.
func (c *Controller) Proctor() *proctor.Adapter { return c.proctor }

// State returns the current phase.
func (c *Controller) State() model.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed when the current session finishes.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Start samples the bank and opens a session. A non-positive duration uses the configured default.
func (c *Controller) Start(questions []model.Question, duration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != model.StateNotStarted {
		return ErrAlreadyActive
	}
	items, err := bank.Sample(c.rng, questions, c.cfg.NumQuestions, c.cfg.StrictCount)
	if err != nil {
		return fmt.Errorf("sample questions: %w", err)
	}
	if duration <= 0 {
		duration = c.cfg.Duration
	}

	now := c.clock.Now()
	c.items = items
	c.index = 0
	c.answers = make([][]string, len(items))
	c.startedAt = now
	c.deadline = now.Add(duration)
	c.total = c.deadline.Sub(now)
	c.state = model.StateInProgress

	if c.interval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		c.stopTimer = cancel
		go RunTicker(ctx, c.interval, func() bool {
			return !c.Tick().Expired
		})
	}
	slog.Info("exam started", "session", c.id, "items", len(items), "duration", duration)
	return nil
}

// Submit records the selection for the current question and advances.
// Submitting on the last question finishes the session.
func (c *Controller) Submit(selected []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expireLocked() || c.state != model.StateInProgress {
		return ErrNotInProgress
	}
	if len(selected) == 0 {
		return ErrEmptySelection
	}
	q := c.items[c.index]
	answer := make([]string, 0, len(selected))
	for _, s := range selected {
		if !hasLabel(q, s) {
			return ErrInvalidSelection
		}
		if !slices.Contains(answer, s) {
			answer = append(answer, s)
		}
	}
	c.answers[c.index] = grading.SortedLetters(answer)

	if c.index == len(c.items)-1 {
		c.finalizeLocked(model.FinishManual)
		return nil
	}
	c.index++
	return nil
}

func hasLabel(q model.Question, label string) bool {
	for _, o := range q.Options {
		if o.Label == label {
			return true
		}
	}
	return false
}

// RequestFinish ends the session early once the candidate confirmed it.
func (c *Controller) RequestFinish(confirmed bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expireLocked() || c.state != model.StateInProgress {
		return ErrNotInProgress
	}
	if !confirmed {
		return ErrNotConfirmed
	}
	c.finalizeLocked(model.FinishManual)
	return nil
}

// Tick recomputes the countdown and forces a time finish at the deadline.
func (c *Controller) Tick() Countdown {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked()
	return c.countdownLocked()
}

// expireLocked finishes an overdue session and reports whether it did.
func (c *Controller) expireLocked() bool {
	if c.state != model.StateInProgress {
		return false
	}
	if c.clock.Now().Before(c.deadline) {
		return false
	}
	c.finalizeLocked(model.FinishTime)
	return true
}

func (c *Controller) countdownLocked() Countdown {
	switch c.state {
	case model.StateInProgress:
		return NewCountdown(c.deadline, c.clock.Now(), c.total, c.cfg.WarnWindow)
	case model.StateFinished:
		cd := NewCountdown(c.deadline, c.finished, c.total, c.cfg.WarnWindow)
		cd.Expired = true
		return cd
	default:
		return Countdown{Remaining: c.cfg.Duration, Total: c.cfg.Duration}
	}
}

func (c *Controller) finalizeLocked(reason model.FinishReason) {
	if c.state != model.StateInProgress {
		return
	}
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
	if c.proctor != nil {
		c.proctor.StopAll()
	}

	now := c.clock.Now()
	c.state = model.StateFinished
	c.reason = reason
	c.finished = now
	c.result = grading.Score(c.items, c.answers)

	art, err := report.Build(c.items, c.answers, c.result, now)
	if err != nil {
		slog.Error("report build failed", "session", c.id, "error", err)
		art = nil
	}
	c.artifacts = art
	close(c.done)

	slog.Info("exam finished",
		"session", c.id,
		"reason", reason,
		"correct", c.result.Correct,
		"total", c.result.Total,
		"grade", fmt.Sprintf("%.2f", c.result.Grade),
		"passed", c.result.Passed,
	)

	if c.onFinish != nil {
		c.onFinish(model.Attempt{
			ID:         uuid.NewString(),
			Reason:     reason,
			StartedAt:  c.startedAt,
			FinishedAt: now,
			Items:      slices.Clone(c.items),
			Answers:    cloneAnswers(c.answers),
			Result:     c.result,
		})
	}
}

func cloneAnswers(in [][]string) [][]string {
	out := make([][]string, len(in))
	for i, a := range in {
		out[i] = slices.Clone(a)
	}
	return out
}

// Restart discards the session and returns to NotStarted.
func (c *Controller) Restart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
	if c.proctor != nil {
		c.proctor.Reset()
	}
	if c.state == model.StateInProgress {
		close(c.done)
	}
	c.state = model.StateNotStarted
	c.items = nil
	c.index = 0
	c.answers = nil
	c.startedAt = time.Time{}
	c.deadline = time.Time{}
	c.total = 0
	c.reason = ""
	c.result = model.Result{}
	c.artifacts = nil
	c.finished = time.Time{}
	c.done = make(chan struct{})
}

// QuestionView is the current question as rendered, with options freshly shuffled.
type QuestionView struct {
	Position int
	Number   int
	Text     string
	Multi    bool
	Options  []model.Option
}

// View is a read-only snapshot of the session.
type View struct {
	ID              string
	State           model.SessionState
	Index           int
	Total           int
	IsLast          bool
	Question        *QuestionView
	Countdown       Countdown
	Reason          model.FinishReason
	Result          model.Result
	ReportAvailable bool
}

// View snapshots the session for rendering.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked()
	v := View{
		ID:              c.id,
		State:           c.state,
		Index:           c.index,
		Total:           len(c.items),
		Countdown:       c.countdownLocked(),
		Reason:          c.reason,
		Result:          c.result,
		ReportAvailable: c.artifacts != nil,
	}
	if c.state == model.StateInProgress {
		q := c.items[c.index]
		v.IsLast = c.index == len(c.items)-1
		v.Question = &QuestionView{
			Position: c.index + 1,
			Number:   q.DisplayNumber(c.index),
			Text:     q.Text,
			Multi:    q.Multi(),
			Options:  bank.ShuffleOptions(c.rng, q),
		}
	}
	return v
}

// Answers returns a copy of the recorded answers; unset slots are nil.
func (c *Controller) Answers() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneAnswers(c.answers)
}

// Report returns the artifacts built when the session finished.
func (c *Controller) Report() (*report.Artifacts, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != model.StateFinished || c.artifacts == nil {
		return nil, ErrNoReport
	}
	return c.artifacts, nil
}

// Final returns the finished (items, answers) pair the report was built from.
func (c *Controller) Final() ([]model.Question, [][]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != model.StateFinished {
		return nil, nil, ErrNoReport
	}
	return slices.Clone(c.items), cloneAnswers(c.answers), nil
}

// ParseSelection splits submitted values, trimming blanks.
func ParseSelection(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
