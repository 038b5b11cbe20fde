package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/pavelanni/timedexam/internal/model"
)

// Document is the input of the printable report.
type Document struct {
	Lang        string
	Title       string
	GeneratedAt time.Time
	ScoreText   string
	PassText    string
	Passed      bool
	Rows        []model.ReportRow
	AutoPrint   bool
}

// ScoreText is the default score summary, e.g. "14.00 / 20 (aciertos: 7/10)".
func ScoreText(res model.Result) string {
	return fmt.Sprintf("%.2f / 20 (aciertos: %d/%d)", res.Grade, res.Correct, res.Total)
}

// PassText is the default pass/fail summary.
func PassText(res model.Result) string {
	if res.Passed {
		return fmt.Sprintf("Aprobado ✅ ¡Felicitaciones! (%d/%d, requiere %d)", res.Correct, res.Total, res.Required)
	}
	return fmt.Sprintf("No aprobado ❌ (%d/%d, requiere %d)", res.Correct, res.Total, res.Required)
}

var printableTmpl = template.Must(template.New("printable").Parse(`<!doctype html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
  body{font-family:system-ui,-apple-system,Segoe UI,Roboto,Ubuntu,Arial; margin:24px; color:#111}
  h1{margin:0 0 4px 0; font-size:20px}
  .muted{color:#555; margin:0 0 12px 0}
  .badge{display:inline-block; padding:4px 8px; border-radius:8px; font-size:12px; border:1px solid #ddd}
  .pass{background:rgba(34,197,94,.18); border-color:rgba(34,197,94,.45)}
  .fail{background:rgba(239,68,68,.18); border-color:rgba(239,68,68,.45)}
  table{width:100%; border-collapse:collapse; margin-top:12px; font-size:12px}
  th,td{border:1px solid #ddd; padding:8px; vertical-align:top}
  th{background:#f5f5f5; text-align:left}
</style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="muted">{{.GeneratedAt.Format "02/01/2006 15:04:05"}}</div>
  <div class="badge">{{.ScoreText}}</div>
  <div class="badge {{if .Passed}}pass{{else}}fail{{end}}" style="margin-left:8px">{{.PassText}}</div>
  <table>
    <thead>
      <tr><th style="width:40px">N°</th><th>Pregunta</th><th style="width:28%">Respuesta del usuario</th><th style="width:28%">Respuesta correcta</th><th style="width:100px">Estado</th></tr>
    </thead>
    <tbody>
{{- range .Rows}}
      <tr><td>{{.Number}}</td><td>{{.Question}}</td><td>{{.UserAnswer}}</td><td>{{.Correct}}</td><td>{{.Status}}</td></tr>
{{- end}}
    </tbody>
  </table>
{{- if .AutoPrint}}
  <script>window.onload=()=>{setTimeout(()=>window.print(),300)}</script>
{{- end}}
</body>
</html>
`))

// Printable writes the self-contained HTML report meant for print-to-PDF.
func Printable(w io.Writer, doc Document) error {
	if doc.Lang == "" {
		doc.Lang = "es"
	}
	if doc.Title == "" {
		doc.Title = "Reporte de examen"
	}
	return printableTmpl.Execute(w, doc)
}

// PrintableString renders the printable report to a string.
func PrintableString(doc Document) (string, error) {
	var buf bytes.Buffer
	if err := Printable(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}
