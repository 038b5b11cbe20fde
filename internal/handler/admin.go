package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/timedexam/internal/handler/views"
	"github.com/pavelanni/timedexam/internal/model"
	"github.com/pavelanni/timedexam/internal/report"
)

func (h *Handler) handleAdminAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.store.ListAttempts()
	if err != nil {
		slog.Error("failed to list attempts", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	info, err := h.store.GetBankInfo()
	if err != nil {
		slog.Error("failed to read bank info", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.render(w, r, http.StatusOK, views.AdminAttemptsPage(views.AttemptsData{Attempts: attempts, Bank: info}))
}

// loadAttempt fetches the attempt named in the URL and its report rows.
func (h *Handler) loadAttempt(w http.ResponseWriter, r *http.Request) (*model.Attempt, []model.ReportRow, bool) {
	id := chi.URLParam(r, "attemptID")
	a, err := h.store.GetAttempt(id)
	if err != nil {
		slog.Error("failed to get attempt", "id", id, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, nil, false
	}
	if a == nil {
		http.NotFound(w, r)
		return nil, nil, false
	}
	rows, err := report.BuildRows(a.Items, a.Answers)
	if err != nil {
		slog.Error("archived attempt is inconsistent", "id", id, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, nil, false
	}
	return a, rows, true
}

func (h *Handler) handleAdminAttempt(w http.ResponseWriter, r *http.Request) {
	a, rows, ok := h.loadAttempt(w, r)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, views.AdminAttemptPage(views.AttemptData{Attempt: *a, Rows: rows}))
}

func (h *Handler) handleAdminAttemptCSV(w http.ResponseWriter, r *http.Request) {
	a, rows, ok := h.loadAttempt(w, r)
	if !ok {
		return
	}
	attachment(w, report.ContentTypeCSV, report.Filename(report.FilePrefix, a.FinishedAt, "csv"), report.SimpleCSV(rows))
}

func (h *Handler) handleAdminAttemptDetailed(w http.ResponseWriter, r *http.Request) {
	a, _, ok := h.loadAttempt(w, r)
	if !ok {
		return
	}
	data, err := report.DetailedCSV(a.Items, a.Answers)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	attachment(w, report.ContentTypeCSV, report.Filename(report.FilePrefix+"-detallado", a.FinishedAt, "csv"), data)
}

func (h *Handler) handleAdminAttemptXLSX(w http.ResponseWriter, r *http.Request) {
	a, _, ok := h.loadAttempt(w, r)
	if !ok {
		return
	}
	data, err := report.DetailedXLSX(a.Items, a.Answers)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	attachment(w, report.ContentTypeXLSX, report.Filename(report.FilePrefix, a.FinishedAt, "xlsx"), data)
}
