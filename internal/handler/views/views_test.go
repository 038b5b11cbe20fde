package views

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/pavelanni/timedexam/internal/exam"
	appI18n "github.com/pavelanni/timedexam/internal/i18n"
	"github.com/pavelanni/timedexam/internal/model"
	"github.com/pavelanni/timedexam/internal/proctor"
)

func renderString(t *testing.T, fn func(*bytes.Buffer) error) string {
	t.Helper()
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	return buf.String()
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	if err := appI18n.Init("es"); err != nil {
		t.Fatalf("init i18n: %v", err)
	}
	ctx := model.ContextWithBasePath(context.Background(), "/exam-app")
	return model.ContextWithCSRFToken(ctx, "tok")
}

func TestQuestionFragment(t *testing.T) {
	ctx := testContext(t)
	d := QuestionData{View: exam.View{
		State: model.StateInProgress,
		Total: 2,
		Question: &exam.QuestionView{
			Position: 1,
			Number:   7,
			Text:     "Which <tag> is right?",
			Multi:    true,
			Options:  []model.Option{{Label: "b", Text: "second"}, {Label: "a", Text: "first"}},
		},
	}}
	out := renderString(t, func(b *bytes.Buffer) error { return QuestionFragment(d).Render(ctx, b) })

	for _, want := range []string{
		`data-exam-state="in_progress"`,
		`<strong>B.</strong> second`,
		`<strong>A.</strong> first`,
		`type="checkbox" name="option" value="a"`,
		`class="pill multi"`,
		`Which &lt;tag&gt; is right?`,
		`action="/exam-app/exam/answer"`,
		`name="csrf_token" value="tok"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("fragment missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<!DOCTYPE") {
		t.Error("fragment should not carry the page shell")
	}
	if strings.Index(out, "second") > strings.Index(out, "first") {
		t.Error("options should keep the order they were given")
	}
}

func TestProctorPanelButtons(t *testing.T) {
	ctx := testContext(t)
	tests := []struct {
		name         string
		st           proctor.Status
		camDisabled  bool
		recDisabled  bool
		insecureHint bool
	}{
		{"idle", proctor.Status{Secure: true, Camera: proctor.CameraOff, Recording: proctor.RecordingIdle}, false, false, false},
		{"camera active", proctor.Status{Secure: true, Camera: proctor.CameraActive, Recording: proctor.RecordingIdle}, true, false, false},
		{"recording ready", proctor.Status{Secure: true, Camera: proctor.CameraOff, Recording: proctor.RecordingReady}, false, true, false},
		{"insecure", proctor.Status{Camera: proctor.CameraOff, Recording: proctor.RecordingIdle}, true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := IndexData{Available: 3, PerExam: 2, Minutes: 10, Proctor: tt.st}
			out := renderString(t, func(b *bytes.Buffer) error { return IndexPage(d).Render(ctx, b) })
			if got := strings.Contains(out, `id="camera-toggle" disabled`); got != tt.camDisabled {
				t.Errorf("camera disabled = %v, want %v", got, tt.camDisabled)
			}
			if got := strings.Contains(out, `id="record-toggle" disabled`); got != tt.recDisabled {
				t.Errorf("record disabled = %v, want %v", got, tt.recDisabled)
			}
			if got := strings.Contains(out, "requieren https o localhost"); got != tt.insecureHint {
				t.Errorf("insecure hint shown = %v, want %v", got, tt.insecureHint)
			}
			if strings.Contains(out, ".webm") {
				t.Error("page should not offer a recording download")
			}
			if !strings.HasPrefix(out, "<!DOCTYPE html>") {
				t.Errorf("page should start with a doctype: %.40q", out)
			}
		})
	}
}
