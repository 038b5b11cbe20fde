package exam

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/pavelanni/timedexam/internal/bank"
	"github.com/pavelanni/timedexam/internal/model"
	"github.com/pavelanni/timedexam/internal/proctor"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func makeBank(n int) []model.Question {
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{
			Numero: model.Ordinal(i + 1),
			Text:   fmt.Sprintf("Q%d", i+1),
			Options: []model.Option{
				{Label: "a", Text: "yes"},
				{Label: "b", Text: "no"},
				{Label: "c", Text: "maybe"},
			},
			AnswerLetters: []string{"a"},
		}
	}
	return qs
}

func testConfig(n int) model.ExamConfig {
	return model.ExamConfig{
		NumQuestions: n,
		Duration:     10 * time.Minute,
		WarnWindow:   5 * time.Minute,
	}
}

func newController(t *testing.T, n int, clock Clock, opts ...Option) *Controller {
	t.Helper()
	base := []Option{
		WithClock(clock),
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithTickInterval(0),
	}
	return NewController(testConfig(n), append(base, opts...)...)
}

func TestStartSamplesAndSetsDeadline(t *testing.T) {
	clock := newClock()
	c := newController(t, 5, clock)
	if err := c.Start(makeBank(20), 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	v := c.View()
	if v.State != model.StateInProgress {
		t.Fatalf("state = %s, want in_progress", v.State)
	}
	if v.Total != 5 || v.Index != 0 {
		t.Errorf("total/index = %d/%d, want 5/0", v.Total, v.Index)
	}
	if v.Countdown.Remaining != 10*time.Minute {
		t.Errorf("remaining = %v, want 10m", v.Countdown.Remaining)
	}
	if err := c.Start(makeBank(20), 0); !errors.Is(err, ErrAlreadyActive) {
		t.Errorf("second Start: got %v, want ErrAlreadyActive", err)
	}
}

func TestStartEmptyBank(t *testing.T) {
	c := newController(t, 5, newClock())
	err := c.Start(nil, 0)
	if !errors.Is(err, bank.ErrEmptyBank) {
		t.Fatalf("got %v, want ErrEmptyBank", err)
	}
	if c.State() != model.StateNotStarted {
		t.Errorf("state = %s, want not_started", c.State())
	}
}

func TestStartDurationOverride(t *testing.T) {
	c := newController(t, 2, newClock())
	if err := c.Start(makeBank(3), 30*time.Second); err != nil {
		t.Fatal(err)
	}
	if got := c.Tick().HMS(); got != "00:00:30" {
		t.Errorf("HMS = %s, want 00:00:30", got)
	}
}

func TestSubmitEmptySelectionKeepsState(t *testing.T) {
	c := newController(t, 3, newClock())
	if err := c.Start(makeBank(3), 0); err != nil {
		t.Fatal(err)
	}
	if err := c.Submit(nil); !errors.Is(err, ErrEmptySelection) {
		t.Fatalf("got %v, want ErrEmptySelection", err)
	}
	if err := c.Submit([]string{"z"}); !errors.Is(err, ErrInvalidSelection) {
		t.Fatalf("got %v, want ErrInvalidSelection", err)
	}
	v := c.View()
	if v.Index != 0 {
		t.Errorf("index = %d, want 0", v.Index)
	}
	for i, a := range c.Answers() {
		if a != nil {
			t.Errorf("answer %d = %v, want unset", i, a)
		}
	}
}

func TestSubmitAdvancesAndFinishesOnLast(t *testing.T) {
	var archived []model.Attempt
	c := newController(t, 3, newClock(), WithFinishHook(func(a model.Attempt) {
		archived = append(archived, a)
	}))
	if err := c.Start(makeBank(3), 0); err != nil {
		t.Fatal(err)
	}
	for i := range 3 {
		if got := c.View().Index; got != i {
			t.Fatalf("index = %d, want %d", got, i)
		}
		sel := []string{"a"}
		if i == 1 {
			sel = []string{"b", "a", "b"}
		}
		if err := c.Submit(sel); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}
	v := c.View()
	if v.State != model.StateFinished || v.Reason != model.FinishManual {
		t.Fatalf("state/reason = %s/%s", v.State, v.Reason)
	}
	if v.Result.Correct != 2 || v.Result.Total != 3 {
		t.Errorf("result = %+v, want 2/3", v.Result)
	}
	if got := c.Answers()[1]; len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("answer 1 = %v, want [a b]", got)
	}
	if len(archived) != 1 {
		t.Fatalf("archived %d attempts, want 1", len(archived))
	}
	if err := c.Submit([]string{"a"}); !errors.Is(err, ErrNotInProgress) {
		t.Errorf("Submit after finish: got %v, want ErrNotInProgress", err)
	}
	if len(archived) != 1 {
		t.Errorf("finish hook ran %d times", len(archived))
	}
}

func TestFullExamAllCorrect(t *testing.T) {
	bank := makeBank(50)
	for i := range bank {
		if i%4 == 0 {
			bank[i].AnswerLetters = []string{"c", "a"}
		} else if i%4 == 1 {
			bank[i].AnswerLetters = []string{"b"}
		}
	}
	keys := make(map[int][]string, len(bank))
	for _, q := range bank {
		keys[int(q.Numero)] = q.AnswerLetters
	}

	c := newController(t, 42, newClock())
	if err := c.Start(bank, 0); err != nil {
		t.Fatal(err)
	}
	seen := make(map[int]bool)
	for c.State() == model.StateInProgress {
		q := c.View().Question
		if seen[q.Number] {
			t.Fatalf("question %d drawn twice", q.Number)
		}
		seen[q.Number] = true
		if err := c.Submit(keys[q.Number]); err != nil {
			t.Fatalf("Submit %d: %v", q.Number, err)
		}
	}
	if len(seen) != 42 {
		t.Errorf("answered %d questions, want 42", len(seen))
	}
	want := model.Result{Correct: 42, Total: 42, Grade: 20, Required: 30, Passed: true}
	if got := c.View().Result; got != want {
		t.Errorf("result = %+v, want %+v", got, want)
	}
}

func TestRequestFinishNeedsConfirmation(t *testing.T) {
	c := newController(t, 4, newClock())
	if err := c.Start(makeBank(4), 0); err != nil {
		t.Fatal(err)
	}
	if err := c.Submit([]string{"a"}); err != nil {
		t.Fatal(err)
	}
	if err := c.RequestFinish(false); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("got %v, want ErrNotConfirmed", err)
	}
	if c.State() != model.StateInProgress {
		t.Fatal("declined finish must not end the session")
	}
	if err := c.RequestFinish(true); err != nil {
		t.Fatal(err)
	}
	v := c.View()
	if v.Reason != model.FinishManual {
		t.Errorf("reason = %s, want manual", v.Reason)
	}
	// unanswered items count as incorrect
	if v.Result.Correct != 1 || v.Result.Total != 4 {
		t.Errorf("result = %+v, want 1/4", v.Result)
	}
	if !v.ReportAvailable {
		t.Error("report should be available after finish")
	}
}

func TestTickForcesTimeFinishAtDeadline(t *testing.T) {
	clock := newClock()
	c := newController(t, 3, clock)
	if err := c.Start(makeBank(3), time.Minute); err != nil {
		t.Fatal(err)
	}
	clock.Advance(59 * time.Second)
	if cd := c.Tick(); cd.Expired || c.State() != model.StateInProgress {
		t.Fatalf("finished before deadline: %+v", cd)
	}
	clock.Advance(time.Second)
	cd := c.Tick()
	if !cd.Expired || cd.Remaining != 0 {
		t.Errorf("countdown = %+v, want expired at 0", cd)
	}
	v := c.View()
	if v.State != model.StateFinished || v.Reason != model.FinishTime {
		t.Errorf("state/reason = %s/%s, want finished/time", v.State, v.Reason)
	}
}

func TestSubmitAfterDeadlineFinishesByTime(t *testing.T) {
	clock := newClock()
	c := newController(t, 3, clock)
	if err := c.Start(makeBank(3), time.Minute); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Minute)
	if err := c.Submit([]string{"a"}); !errors.Is(err, ErrNotInProgress) {
		t.Fatalf("got %v, want ErrNotInProgress", err)
	}
	if v := c.View(); v.Reason != model.FinishTime {
		t.Errorf("reason = %s, want time", v.Reason)
	}
	for _, a := range c.Answers() {
		if a != nil {
			t.Error("late submit must not record an answer")
		}
	}
}

func TestFinalizeStopsCapture(t *testing.T) {
	p := proctor.NewAdapter(proctor.Relay{}, true)
	ctx := proctor.WithGrant(context.Background(), proctor.Grant{Granted: true})
	if err := p.ActivateCamera(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := p.ToggleRecording(ctx); err != nil {
		t.Fatal(err)
	}
	c := newController(t, 1, newClock(), WithProctor(p))
	if err := c.Start(makeBank(1), 0); err != nil {
		t.Fatal(err)
	}
	if err := c.Submit([]string{"a"}); err != nil {
		t.Fatal(err)
	}
	st := p.Status()
	if st.Camera != proctor.CameraOff {
		t.Errorf("camera = %v, want off", st.Camera)
	}
	if st.Recording == proctor.RecordingActive {
		t.Error("recording still active after finish")
	}
}

func TestReportAvailability(t *testing.T) {
	c := newController(t, 2, newClock())
	if _, err := c.Report(); !errors.Is(err, ErrNoReport) {
		t.Fatalf("before start: got %v, want ErrNoReport", err)
	}
	if err := c.Start(makeBank(2), 0); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Report(); !errors.Is(err, ErrNoReport) {
		t.Fatalf("in progress: got %v, want ErrNoReport", err)
	}
	if err := c.RequestFinish(true); err != nil {
		t.Fatal(err)
	}
	art, err := c.Report()
	if err != nil {
		t.Fatal(err)
	}
	if len(art.Rows) != 2 {
		t.Errorf("rows = %d, want 2", len(art.Rows))
	}
	items, answers, err := c.Final()
	if err != nil || len(items) != 2 || len(answers) != 2 {
		t.Errorf("Final = %d items, %d answers, %v", len(items), len(answers), err)
	}
}

func TestRestartResets(t *testing.T) {
	c := newController(t, 2, newClock())
	if err := c.Start(makeBank(2), 0); err != nil {
		t.Fatal(err)
	}
	done := c.Done()
	c.Restart()
	select {
	case <-done:
	default:
		t.Error("restart should release waiters on the old session")
	}
	v := c.View()
	if v.State != model.StateNotStarted || v.Total != 0 || v.Question != nil {
		t.Errorf("after restart: %+v", v)
	}
	if _, err := c.Report(); !errors.Is(err, ErrNoReport) {
		t.Error("report should be cleared by restart")
	}
	if err := c.Start(makeBank(2), 0); err != nil {
		t.Errorf("Start after restart: %v", err)
	}
}

func TestViewShufflesOptionsOnly(t *testing.T) {
	c := newController(t, 1, newClock())
	if err := c.Start(makeBank(1), 0); err != nil {
		t.Fatal(err)
	}
	q := c.View().Question
	if q == nil || q.Number != 1 || q.Text != "Q1" || q.Multi {
		t.Fatalf("question = %+v", q)
	}
	if !c.View().IsLast {
		t.Error("single item should be last")
	}
	seen := map[string]bool{}
	for _, o := range q.Options {
		seen[o.Label] = true
	}
	if len(seen) != 3 {
		t.Errorf("options = %v, want a,b,c", q.Options)
	}
}

func TestCountdown(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	total := 2 * time.Hour

	tests := []struct {
		name     string
		left     time.Duration
		hms      string
		warning  bool
		expired  bool
		progress float64
	}{
		{"full", total, "02:00:00", false, false, 0},
		{"half", time.Hour, "01:00:00", false, false, 0.5},
		{"warning", 4*time.Minute + 59*time.Second, "00:04:59", true, false, 1 - (299.0 / 7200)},
		{"overdue", -time.Minute, "00:00:00", true, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cd := NewCountdown(now.Add(tt.left), now, total, 5*time.Minute)
			if got := cd.HMS(); got != tt.hms {
				t.Errorf("HMS = %s, want %s", got, tt.hms)
			}
			if cd.Warning != tt.warning || cd.Expired != tt.expired {
				t.Errorf("warning/expired = %v/%v", cd.Warning, cd.Expired)
			}
			if diff := cd.Progress - tt.progress; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("progress = %f, want %f", cd.Progress, tt.progress)
			}
		})
	}
}

func TestRunTickerStops(t *testing.T) {
	calls := 0
	RunTicker(context.Background(), time.Millisecond, func() bool {
		calls++
		return calls < 3
	})
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	RunTicker(ctx, time.Hour, func() bool {
		t.Error("fn called after cancel")
		return false
	})
}

func TestRegistry(t *testing.T) {
	clock := newClock()
	reg := NewRegistry(func() *Controller {
		return NewController(testConfig(1), WithClock(clock), WithTickInterval(0))
	}, clock)

	a := reg.Acquire("")
	if a == nil || reg.Len() != 1 {
		t.Fatalf("Acquire created %d sessions", reg.Len())
	}
	if got := reg.Acquire(a.ID()); got != a {
		t.Error("same id must return the same controller")
	}
	if got := reg.Acquire("unknown"); got == a {
		t.Error("unknown id must get a fresh controller")
	}
	if err := a.Start(makeBank(1), 0); err != nil {
		t.Fatal(err)
	}

	clock.Advance(2 * time.Hour)
	if n := reg.Prune(time.Hour); n != 1 {
		t.Errorf("pruned %d, want 1 (running session kept)", n)
	}
	if _, ok := reg.Lookup(a.ID()); !ok {
		t.Error("running session should survive prune")
	}
}
