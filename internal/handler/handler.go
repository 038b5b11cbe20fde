package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/timedexam/internal/bank"
	"github.com/pavelanni/timedexam/internal/exam"
	"github.com/pavelanni/timedexam/internal/handler/views"
	appI18n "github.com/pavelanni/timedexam/internal/i18n"
	"github.com/pavelanni/timedexam/internal/model"
	"github.com/pavelanni/timedexam/internal/proctor"
	"github.com/pavelanni/timedexam/internal/store"
)

// maxMinutes bounds the per-attempt duration override.
const maxMinutes = 24 * 60

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store     *store.Store
	sessions  *exam.Registry
	questions []model.Question
	config    model.ExamConfig
	adminHash []byte
	upgrader  websocket.Upgrader
	ctlOpts   []exam.Option
}

// New creates a new Handler. An empty adminPassword disables the admin pages.
// opts are applied to every exam controller the handler creates.
func New(s *store.Store, questions []model.Question, cfg model.ExamConfig, adminPassword string, opts ...exam.Option) (*Handler, error) {
	h := &Handler{
		store:     s,
		questions: questions,
		config:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		ctlOpts: opts,
	}
	if adminPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		h.adminHash = hash
	}
	h.sessions = exam.NewRegistry(h.newController, exam.SystemClock{})
	return h, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Handle("/static/*", http.StripPrefix(h.path("/static/"), http.FileServer(http.FS(views.Static()))))

	r.Group(func(r chi.Router) {
		r.Use(h.clientMiddleware)
		r.Use(h.csrfMiddleware)

		r.Get("/", h.handleIndex)
		r.Post("/exam/start", h.handleStart)
		r.Post("/exam/answer", h.handleAnswer)
		r.Post("/exam/finish", h.handleFinish)
		r.Post("/exam/restart", h.handleRestart)
		r.Get("/exam/timer", h.handleTimer)
		r.Get("/exam/ws", h.handleTimerFeed)

		r.Get("/exam/report.csv", h.handleReportCSV)
		r.Get("/exam/report/print", h.handleReportPrint)
		r.Get("/exam/report/detailed.csv", h.handleDetailedCSV)
		r.Get("/exam/report.xlsx", h.handleReportXLSX)

		r.Get("/proctor/status", h.handleProctorStatus)
		r.Post("/proctor/camera", h.handleCameraOn)
		r.Post("/proctor/recording", h.handleRecordingToggle)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Get("/attempts", h.handleAdminAttempts)
		r.Get("/attempts/{attemptID}", h.handleAdminAttempt)
		r.Get("/attempts/{attemptID}/report.csv", h.handleAdminAttemptCSV)
		r.Get("/attempts/{attemptID}/detailed.csv", h.handleAdminAttemptDetailed)
		r.Get("/attempts/{attemptID}/report.xlsx", h.handleAdminAttemptXLSX)
	})
}

// PruneIdle drops clients idle for longer than ttl until ctx is done.
func (h *Handler) PruneIdle(ctx context.Context, ttl time.Duration) {
	exam.RunTicker(ctx, ttl/4, func() bool {
		h.sessions.Prune(ttl)
		return true
	})
}

func (h *Handler) newController() *exam.Controller {
	opts := []exam.Option{
		exam.WithProctor(proctor.NewAdapter(proctor.Relay{}, false)),
		exam.WithFinishHook(h.archive),
	}
	return exam.NewController(h.config, append(opts, h.ctlOpts...)...)
}

func (h *Handler) archive(a model.Attempt) {
	if err := h.store.SaveAttempt(a); err != nil {
		slog.Error("failed to archive attempt", "id", a.ID, "error", err)
	}
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.renderState(w, r, controllerFrom(r), "", http.StatusOK)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctl := h.claim(w, r)
	if err := ctl.Start(h.questions, parseMinutes(r.FormValue("mins"))); err != nil {
		h.fail(w, r, ctl, err)
		return
	}
	h.respond(w, r, ctl)
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	ctl := controllerFrom(r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if err := ctl.Submit(exam.ParseSelection(r.PostForm["option"])); err != nil {
		h.fail(w, r, ctl, err)
		return
	}
	h.respond(w, r, ctl)
}

func (h *Handler) handleFinish(w http.ResponseWriter, r *http.Request) {
	ctl := controllerFrom(r)
	if err := ctl.RequestFinish(r.FormValue("confirmed") == "true"); err != nil {
		h.fail(w, r, ctl, err)
		return
	}
	h.respond(w, r, ctl)
}

func (h *Handler) handleRestart(w http.ResponseWriter, r *http.Request) {
	ctl := controllerFrom(r)
	ctl.Restart()
	h.respond(w, r, ctl)
}

// parseMinutes reads the leading whole number of minutes, up to a day. Anything
// else yields zero, which selects the configured duration.
func parseMinutes(s string) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(leadingInt(s))
	if err != nil || n <= 0 || n > maxMinutes {
		slog.Warn("ignoring invalid mins parameter", "mins", s)
		return 0
	}
	return time.Duration(n) * time.Minute
}

// leadingInt returns the optionally signed run of digits s starts with, so
// "90abc" and "12.5" read as 90 and 12.
func leadingInt(s string) string {
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	return s[:end]
}

// respond shows the new state: htmx requests get the fragment, plain forms a redirect.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, ctl *exam.Controller) {
	if isHTMX(r) {
		h.renderState(w, r, ctl, "", http.StatusOK)
		return
	}
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

// fail renders the current state with a localized message for user errors.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, ctl *exam.Controller, err error) {
	msgID, status := userError(err)
	if msgID == "" {
		slog.Error("exam transition failed", "session", ctl.ID(), "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	slog.Debug("rejected exam action", "session", ctl.ID(), "error", err)
	if isHTMX(r) {
		// htmx does not swap error responses
		status = http.StatusOK
	}
	h.renderState(w, r, ctl, appI18n.T(r.Context(), msgID), status)
}

func userError(err error) (string, int) {
	switch {
	case errors.Is(err, exam.ErrEmptySelection):
		return "ErrEmptySelection", http.StatusBadRequest
	case errors.Is(err, exam.ErrInvalidSelection):
		return "ErrInvalidSelection", http.StatusBadRequest
	case errors.Is(err, exam.ErrNotConfirmed):
		return "ErrNotConfirmed", http.StatusBadRequest
	case errors.Is(err, exam.ErrNotInProgress):
		return "ErrNotInProgress", http.StatusConflict
	case errors.Is(err, exam.ErrAlreadyActive):
		return "ErrAlreadyActive", http.StatusConflict
	case errors.Is(err, bank.ErrEmptyBank):
		return "NoQuestions", http.StatusBadRequest
	case errors.Is(err, bank.ErrShortBank):
		return "ErrShortBank", http.StatusConflict
	}
	return "", 0
}

func (h *Handler) renderState(w http.ResponseWriter, r *http.Request, ctl *exam.Controller, flash string, status int) {
	v := ctl.View()
	st := ctl.Proctor().Status()
	hx := isHTMX(r)

	var c templ.Component
	switch v.State {
	case model.StateInProgress:
		d := views.QuestionData{View: v, Error: flash, Proctor: st}
		c = pick(hx, views.QuestionFragment(d), views.QuestionPage(d))
	case model.StateFinished:
		d := views.ResultData{View: v, Proctor: st}
		if art, err := ctl.Report(); err == nil {
			d.Rows = art.Rows
		}
		c = pick(hx, views.ResultFragment(d), views.ResultPage(d))
	default:
		mins := r.FormValue("mins")
		minutes := int(h.config.Duration / time.Minute)
		if d := parseMinutes(mins); d > 0 {
			minutes = int(d / time.Minute)
		} else {
			mins = ""
		}
		d := views.IndexData{
			Available: len(h.questions),
			PerExam:   min(h.config.NumQuestions, len(h.questions)),
			Minutes:   minutes,
			Mins:      mins,
			Error:     flash,
			Proctor:   st,
		}
		c = pick(hx, views.IndexFragment(d), views.IndexPage(d))
	}
	h.render(w, r, status, c)
}

func pick(fragment bool, frag, full templ.Component) templ.Component {
	if fragment {
		return frag
	}
	return full
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) message(w http.ResponseWriter, r *http.Request, status int, titleID, msgID string) {
	ctx := r.Context()
	h.render(w, r, status, views.MessagePage(appI18n.T(ctx, titleID), appI18n.T(ctx, msgID)))
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
