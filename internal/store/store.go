package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pavelanni/timedexam/internal/model"

	_ "modernc.org/sqlite"
)

// Store archives finished attempts in SQLite.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// each pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attempts (
		id TEXT PRIMARY KEY,
		reason TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		items TEXT NOT NULL,
		answers TEXT NOT NULL,
		correct INTEGER NOT NULL,
		total INTEGER NOT NULL,
		grade REAL NOT NULL,
		required INTEGER NOT NULL,
		passed INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS attempts_finished_at ON attempts (finished_at);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL,
		imported_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exam_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveAttempt stores a finished attempt. Saving the same id twice fails.
func (s *Store) SaveAttempt(a model.Attempt) error {
	items, err := json.Marshal(a.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO attempts (id, reason, started_at, finished_at, items, answers, correct, total, grade, required, passed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Reason, a.StartedAt.UTC(), a.FinishedAt.UTC(), string(items), string(answers),
		a.Result.Correct, a.Result.Total, a.Result.Grade, a.Result.Required, a.Result.Passed,
	)
	if err != nil {
		slog.Error("failed to save attempt", "id", a.ID, "error", err)
		return err
	}
	slog.Debug("saved attempt", "id", a.ID, "reason", a.Reason)
	return nil
}

const attemptColumns = `id, reason, started_at, finished_at, items, answers, correct, total, grade, required, passed`

type scanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row scanner) (model.Attempt, error) {
	var (
		a              model.Attempt
		items, answers string
	)
	err := row.Scan(&a.ID, &a.Reason, &a.StartedAt, &a.FinishedAt, &items, &answers,
		&a.Result.Correct, &a.Result.Total, &a.Result.Grade, &a.Result.Required, &a.Result.Passed)
	if err != nil {
		return a, err
	}
	if err := json.Unmarshal([]byte(items), &a.Items); err != nil {
		return a, fmt.Errorf("decode items of %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(answers), &a.Answers); err != nil {
		return a, fmt.Errorf("decode answers of %s: %w", a.ID, err)
	}
	return a, nil
}

// GetAttempt returns an attempt by id, or nil if it does not exist.
func (s *Store) GetAttempt(id string) (*model.Attempt, error) {
	a, err := scanAttempt(s.db.QueryRow(`SELECT `+attemptColumns+` FROM attempts WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAttempts returns all attempts, most recently finished first.
func (s *Store) ListAttempts() ([]model.Attempt, error) {
	rows, err := s.db.Query(`SELECT ` + attemptColumns + ` FROM attempts ORDER BY finished_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// AttemptCount returns the number of archived attempts.
func (s *Store) AttemptCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM attempts`).Scan(&count)
	return count, err
}
