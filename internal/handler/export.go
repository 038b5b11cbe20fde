package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pavelanni/timedexam/internal/exam"
	appI18n "github.com/pavelanni/timedexam/internal/i18n"
	"github.com/pavelanni/timedexam/internal/report"
)

func attachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(data); err != nil {
		slog.Warn("write download", "file", filename, "error", err)
	}
}

// finishedReport returns the client's report, answering "no report yet" itself when absent.
func (h *Handler) finishedReport(w http.ResponseWriter, r *http.Request) (*report.Artifacts, bool) {
	art, err := controllerFrom(r).Report()
	if errors.Is(err, exam.ErrNoReport) {
		h.message(w, r, http.StatusNotFound, "AppTitle", "ErrNoReport")
		return nil, false
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return art, true
}

func (h *Handler) handleReportCSV(w http.ResponseWriter, r *http.Request) {
	art, ok := h.finishedReport(w, r)
	if !ok {
		return
	}
	attachment(w, report.ContentTypeCSV, art.CSVFilename(), art.CSV)
}

func (h *Handler) handleReportPrint(w http.ResponseWriter, r *http.Request) {
	art, ok := h.finishedReport(w, r)
	if !ok {
		return
	}
	doc := art.Document(time.Now())
	doc.Lang = appI18n.Lang(r.Context())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.Printable(w, doc); err != nil {
		slog.Error("render printable report", "error", err)
	}
}

func (h *Handler) handleDetailedCSV(w http.ResponseWriter, r *http.Request) {
	art, ok := h.finishedReport(w, r)
	if !ok {
		return
	}
	items, answers, err := controllerFrom(r).Final()
	if err != nil {
		h.message(w, r, http.StatusNotFound, "AppTitle", "ErrNoReport")
		return
	}
	data, err := report.DetailedCSV(items, answers)
	if err != nil {
		slog.Error("build detailed csv", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	attachment(w, report.ContentTypeCSV, report.Filename(report.FilePrefix+"-detallado", art.GeneratedAt, "csv"), data)
}

func (h *Handler) handleReportXLSX(w http.ResponseWriter, r *http.Request) {
	art, ok := h.finishedReport(w, r)
	if !ok {
		return
	}
	items, answers, err := controllerFrom(r).Final()
	if err != nil {
		h.message(w, r, http.StatusNotFound, "AppTitle", "ErrNoReport")
		return
	}
	data, err := report.DetailedXLSX(items, answers)
	if err != nil {
		slog.Error("build xlsx", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	attachment(w, report.ContentTypeXLSX, report.Filename(report.FilePrefix, art.GeneratedAt, "xlsx"), data)
}
