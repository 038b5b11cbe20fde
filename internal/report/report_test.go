package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/timedexam/internal/grading"
	"github.com/pavelanni/timedexam/internal/model"
)

func sampleItems() []model.Question {
	return []model.Question{
		{
			Numero:        1,
			Text:          "Q1",
			Options:       []model.Option{{Label: "a", Text: "X"}, {Label: "b", Text: "Y"}},
			AnswerLetters: []string{"a"},
		},
	}
}

func TestSimpleCSVSingleRow(t *testing.T) {
	items := sampleItems()
	answers := [][]string{{"a"}}
	rows, err := BuildRows(items, answers)
	if err != nil {
		t.Fatalf("BuildRows: %v", err)
	}
	lines := strings.Split(string(SimpleCSV(rows)), "\r\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), lines)
	}
	if lines[0] != `"N°","Pregunta","Respuesta del usuario","Respuesta correcta","Estado"` {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != `"1","Q1","X","X","Correcta"` {
		t.Errorf("row = %q", lines[1])
	}
}

func TestBuildRows(t *testing.T) {
	items := []model.Question{
		{Text: "multi", Options: []model.Option{{Label: "a", Text: "A"}, {Label: "b", Text: "B"}, {Label: "c", Text: "C"}}, AnswerLetters: []string{"c", "a"}},
		{Numero: 9, Text: "unanswered", Options: []model.Option{{Label: "A", Text: "upper"}}, AnswerLetters: []string{"a"}},
	}
	rows, err := BuildRows(items, [][]string{{"b", "a"}, nil})
	if err != nil {
		t.Fatalf("BuildRows: %v", err)
	}
	want := []model.ReportRow{
		{Number: 1, Question: "multi", UserAnswer: "A | B", Correct: "A | C", Status: StatusIncorrect},
		{Number: 9, Question: "unanswered", UserAnswer: "", Correct: "upper", Status: StatusIncorrect},
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, rows[i], want[i])
		}
	}
}

func TestBuildRowsShapeMismatch(t *testing.T) {
	if _, err := BuildRows(sampleItems(), nil); err == nil {
		t.Fatal("expected error for mismatched answers")
	}
	if _, err := DetailedCSV(sampleItems(), [][]string{{"a"}, {"b"}}); err == nil {
		t.Fatal("expected error for mismatched answers")
	}
}

func TestRowsMatchScorer(t *testing.T) {
	items := []model.Question{
		{Text: "1", Options: []model.Option{{Label: "a", Text: "A"}}, AnswerLetters: []string{"a"}},
		{Text: "2", Options: []model.Option{{Label: "a", Text: "A"}, {Label: "b", Text: "B"}}, AnswerLetters: []string{"b"}},
		{Text: "3", Options: []model.Option{{Label: "a", Text: "A"}, {Label: "b", Text: "B"}}, AnswerLetters: []string{"a", "b"}},
	}
	answers := [][]string{{"a"}, {"a"}, {"b", "a"}}
	rows, err := BuildRows(items, answers)
	if err != nil {
		t.Fatal(err)
	}
	res := grading.Score(items, answers)
	correct := 0
	for _, r := range rows {
		if r.Status == StatusCorrect {
			correct++
		}
	}
	if correct != res.Correct {
		t.Errorf("rows report %d correct, scorer %d", correct, res.Correct)
	}
}

func TestQuote(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", `""`},
		{"plain", `"plain"`},
		{`say "hi"`, `"say ""hi"""`},
		{"a,b\r\nc", "\"a,b\r\nc\""},
	}
	for _, tt := range tests {
		if got := Quote(tt.in); got != tt.want {
			t.Errorf("Quote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDetailedCSV(t *testing.T) {
	items := []model.Question{
		{
			Numero:        4,
			Text:          `Pick "two"`,
			Options:       []model.Option{{Label: "a", Text: "X"}, {Label: "b", Text: "Y"}, {Label: "c", Text: "Z"}},
			AnswerLetters: []string{"c", "a"},
			Justification: "see manual",
		},
	}
	out, err := DetailedCSV(items, [][]string{{"a", "c"}})
	if err != nil {
		t.Fatalf("DetailedCSV: %v", err)
	}
	lines := strings.Split(string(out), "\r\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0] != strings.Join(DetailedHeader, ",") {
		t.Errorf("header = %q", lines[0])
	}
	want := `"4","Pick ""two""","Multiple","A: X | B: Y | C: Z","a,c","a,c","Correcta","A. X | C. Z","see manual"`
	if lines[1] != want {
		t.Errorf("row =\n%s\nwant\n%s", lines[1], want)
	}
}

func TestFilename(t *testing.T) {
	at := time.Date(2025, 3, 7, 14, 5, 9, 0, time.UTC)
	if got := Filename(FilePrefix, at, "csv"); got != "reporte-examen-2025-03-07-14-05-09.csv" {
		t.Errorf("Filename = %q", got)
	}
}

func TestPrintableEscapesAndMatchesRows(t *testing.T) {
	items := []model.Question{
		{Text: "<b>bold</b> & co", Options: []model.Option{{Label: "a", Text: "X<Y"}}, AnswerLetters: []string{"a"}},
	}
	answers := [][]string{{"a"}}
	res := grading.Score(items, answers)
	art, err := Build(items, answers, res, time.Now())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	html, err := PrintableString(art.Document(time.Now()))
	if err != nil {
		t.Fatalf("PrintableString: %v", err)
	}
	if strings.Contains(html, "<b>bold</b>") {
		t.Error("question text not escaped")
	}
	if !strings.Contains(html, "&lt;b&gt;bold&lt;/b&gt; &amp; co") {
		t.Error("escaped question text missing")
	}
	if !strings.Contains(html, "20.00 / 20 (aciertos: 1/1)") {
		t.Error("score summary missing")
	}
	if !strings.Contains(html, "Aprobado") || !strings.Contains(html, "window.print") {
		t.Error("pass badge or print trigger missing")
	}
	if strings.Count(html, "<tr><td>") != len(art.Rows) {
		t.Errorf("expected %d body rows", len(art.Rows))
	}
}

func TestSummaryTexts(t *testing.T) {
	fail := model.Result{Correct: 6, Total: 10, Grade: 12, Required: 7}
	if got := ScoreText(fail); got != "12.00 / 20 (aciertos: 6/10)" {
		t.Errorf("ScoreText = %q", got)
	}
	if got := PassText(fail); got != "No aprobado ❌ (6/10, requiere 7)" {
		t.Errorf("PassText = %q", got)
	}
}

func TestDetailedXLSX(t *testing.T) {
	data, err := DetailedXLSX(sampleItems(), [][]string{{"b"}})
	if err != nil {
		t.Fatalf("DetailedXLSX: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(xlsxSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Nro" || rows[1][6] != StatusIncorrect {
		t.Errorf("unexpected cells: %v", rows)
	}
}
