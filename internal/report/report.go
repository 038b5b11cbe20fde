package report

import (
	"time"

	"github.com/pavelanni/timedexam/internal/model"
)

// FilePrefix starts every downloaded report name.
const FilePrefix = "reporte-examen"

// Artifacts is everything derived once when a session finishes.
type Artifacts struct {
	GeneratedAt time.Time
	Result      model.Result
	Rows        []model.ReportRow
	CSV         []byte
}

// Build derives rows and the user-facing CSV from one (items, answers) pair.
func Build(items []model.Question, answers [][]string, res model.Result, now time.Time) (*Artifacts, error) {
	rows, err := BuildRows(items, answers)
	if err != nil {
		return nil, err
	}
	return &Artifacts{
		GeneratedAt: now,
		Result:      res,
		Rows:        rows,
		CSV:         SimpleCSV(rows),
	}, nil
}

// CSVFilename is the download name of the user-facing CSV.
func (a *Artifacts) CSVFilename() string {
	return Filename(FilePrefix, a.GeneratedAt, "csv")
}

// Document builds the printable report over the same rows as the CSV.
func (a *Artifacts) Document(now time.Time) Document {
	return Document{
		GeneratedAt: now,
		ScoreText:   ScoreText(a.Result),
		PassText:    PassText(a.Result),
		Passed:      a.Result.Passed,
		Rows:        a.Rows,
		AutoPrint:   true,
	}
}
