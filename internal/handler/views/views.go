// Package views renders the exam pages as templ components.
package views

import (
	"context"
	"embed"
	"io/fs"
	"strconv"

	"github.com/pavelanni/timedexam/internal/exam"
	appI18n "github.com/pavelanni/timedexam/internal/i18n"
	"github.com/pavelanni/timedexam/internal/model"
	"github.com/pavelanni/timedexam/internal/proctor"
	"github.com/pavelanni/timedexam/internal/report"
	"github.com/pavelanni/timedexam/internal/store"
)

//go:embed static
var staticFS embed.FS

// Static returns the embedded script and stylesheet.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// IndexData feeds the start screen.
type IndexData struct {
	Available int
	PerExam   int
	Minutes   int
	Mins      string // per-attempt duration override carried from the query string
	Error     string
	Proctor   proctor.Status
}

// QuestionData feeds the in-progress screen.
type QuestionData struct {
	View    exam.View
	Error   string
	Proctor proctor.Status
}

// ResultData feeds the finished screen.
type ResultData struct {
	View    exam.View
	Rows    []model.ReportRow
	Proctor proctor.Status
}

// AttemptsData feeds the admin archive list.
type AttemptsData struct {
	Attempts []model.Attempt
	Bank     store.BankInfo
}

// AttemptData feeds the admin detail view of one attempt.
type AttemptData struct {
	Attempt model.Attempt
	Rows    []model.ReportRow
}

const timeLayout = "2006-01-02 15:04:05"

func t(ctx context.Context, id string) string { return appI18n.T(ctx, id) }

func path(ctx context.Context, p string) string {
	return model.BasePathFromContext(ctx) + p
}

func finishedTitle(ctx context.Context, r model.FinishReason) string {
	if r == model.FinishTime {
		return t(ctx, "FinishedTime")
	}
	return t(ctx, "FinishedManual")
}

func reasonText(ctx context.Context, r model.FinishReason) string {
	if r == model.FinishTime {
		return t(ctx, "ReasonTime")
	}
	return t(ctx, "ReasonManual")
}

func recordLabel(ctx context.Context, s proctor.RecordingState) string {
	switch s {
	case proctor.RecordingActive:
		return t(ctx, "RecordStop")
	case proctor.RecordingReady:
		return t(ctx, "RecordReady")
	}
	return t(ctx, "RecordStart")
}

func cameraLabel(ctx context.Context, s proctor.CameraState) string {
	if s == proctor.CameraActive {
		return t(ctx, "CameraOn")
	}
	return t(ctx, "CameraOff")
}

func passClass(passed bool, yes, no string) string {
	if passed {
		return yes
	}
	return no
}

func rowClass(r model.ReportRow) string {
	return passClass(r.Status == report.StatusCorrect, "ok", "ko")
}

func modeLabel(ctx context.Context, multi bool) string {
	if multi {
		return t(ctx, "ModeMulti")
	}
	return t(ctx, "ModeSingle")
}

func inputType(multi bool) string {
	if multi {
		return "checkbox"
	}
	return "radio"
}

func submitLabel(ctx context.Context, last bool) string {
	if last {
		return t(ctx, "Finish")
	}
	return t(ctx, "Continue")
}

func progress(c exam.Countdown) string {
	return strconv.FormatFloat(c.Progress, 'f', 4, 64)
}

func attemptPath(ctx context.Context, id, suffix string) string {
	return path(ctx, "/admin/attempts/"+id+suffix)
}
