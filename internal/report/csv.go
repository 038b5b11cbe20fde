package report

import (
	"bytes"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pavelanni/timedexam/internal/model"
)

// SimpleHeader is the column set of the user-facing CSV.
var SimpleHeader = []string{"N°", "Pregunta", "Respuesta del usuario", "Respuesta correcta", "Estado"}

// DetailedHeader is the column set of the audit CSV.
var DetailedHeader = []string{
	"Nro", "Pregunta", "Tipo", "Opciones (label:text)",
	"Correctas (letras)", "Marcadas (letras)", "Estado",
	"Respuesta correcta (expandida)", "Justificacion",
}

// ContentTypeCSV is the media type of both CSV artifacts.
const ContentTypeCSV = "text/csv; charset=utf-8"

const lineBreak = "\r\n"

// Quote wraps v in double quotes, doubling any inner quote.
func Quote(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

func writeRecord(buf *bytes.Buffer, fields []string, quote bool) {
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		if quote {
			f = Quote(f)
		}
		buf.WriteString(f)
	}
}

func writeCSV(header []string, quoteHeader bool, records [][]string) []byte {
	var buf bytes.Buffer
	writeRecord(&buf, header, quoteHeader)
	for _, rec := range records {
		buf.WriteString(lineBreak)
		writeRecord(&buf, rec, true)
	}
	return buf.Bytes()
}

// SimpleCSV renders report rows as the user-facing CSV.
func SimpleCSV(rows []model.ReportRow) []byte {
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = []string{strconv.Itoa(r.Number), r.Question, r.UserAnswer, r.Correct, r.Status}
	}
	return writeCSV(SimpleHeader, true, records)
}

// detailedRecords derives the audit columns for every item.
func detailedRecords(items []model.Question, answers [][]string) ([][]string, error) {
	derived, err := derive(items, answers)
	if err != nil {
		return nil, err
	}
	records := make([][]string, len(derived))
	for i, it := range derived {
		kind := "Unica"
		if it.question.Multi() {
			kind = "Multiple"
		}
		var opts, expanded []string
		for _, o := range it.question.Options {
			opts = append(opts, strings.ToUpper(o.Label)+": "+o.Text)
			if slices.Contains(it.key, o.Label) {
				expanded = append(expanded, strings.ToUpper(o.Label)+". "+o.Text)
			}
		}
		records[i] = []string{
			strconv.Itoa(it.number),
			it.question.Text,
			kind,
			strings.Join(opts, textSeparator),
			strings.Join(it.key, ","),
			strings.Join(it.marked, ","),
			it.status(),
			strings.Join(expanded, textSeparator),
			it.question.Justification,
		}
	}
	return records, nil
}

// DetailedCSV renders the audit CSV with options by letter and justifications.
func DetailedCSV(items []model.Question, answers [][]string) ([]byte, error) {
	records, err := detailedRecords(items, answers)
	if err != nil {
		return nil, err
	}
	return writeCSV(DetailedHeader, false, records), nil
}

// Filename builds a download name such as reporte-examen-2025-01-31-14-05-09.csv.
func Filename(prefix string, at time.Time, ext string) string {
	stamp := at.UTC().Format("2006-01-02T15:04:05")
	stamp = strings.NewReplacer(":", "-", "T", "-").Replace(stamp)
	return prefix + "-" + stamp + "." + ext
}
