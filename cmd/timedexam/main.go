package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/timedexam/internal/bank"
	"github.com/pavelanni/timedexam/internal/handler"
	appI18n "github.com/pavelanni/timedexam/internal/i18n"
	"github.com/pavelanni/timedexam/internal/model"
	"github.com/pavelanni/timedexam/internal/report"
	"github.com/pavelanni/timedexam/internal/store"
)

//go:generate templ generate -path ../../internal/handler/views

// idleTTL is how long an untouched browser session is kept in memory.
const idleTTL = 6 * time.Hour

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "load .env:", err)
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "timedexam",
		Short: "Timed multiple-choice exam server",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), bankCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `timedexam --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP exam server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "timedexam.db", "SQLite database path")
	f.StringSliceP("questions", "q", []string{"questions/sample_es.json"}, "Paths to question bank JSON files (repeatable)")
	f.IntP("num-questions", "n", 42, "Number of questions per exam")
	f.IntP("duration", "d", 120, "Default exam duration in minutes")
	f.StringP("lang", "l", "es", "UI language (es, en)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /es)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("admin-password", "", "Password for the /admin pages (or set TIMEDEXAM_ADMIN_PASSWORD); empty disables them")
	f.Bool("strict-count", false, "Refuse to start an exam when the bank holds fewer questions than --num-questions")
	f.Int("warn-minutes", 5, "Highlight the countdown when fewer minutes remain")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export archived attempts",
		Long: `Export archived attempts.

Without --id, csv writes one summary line per attempt and json dumps the whole archive.
With --id, csv, detailed and xlsx write the report of that attempt.`,
		RunE: runExport,
	}
	f := cmd.Flags()
	f.String("db", "timedexam.db", "SQLite database path")
	f.StringP("format", "f", "json", "Output format (csv, detailed, xlsx, json)")
	f.String("id", "", "Attempt id")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func bankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bank",
		Short: "Question bank utilities",
	}
	check := &cobra.Command{
		Use:   "check [file...]",
		Short: "Flatten and validate question bank files",
		RunE:  runBankCheck,
	}
	f := check.Flags()
	f.StringSliceP("questions", "q", nil, "Paths to question bank JSON files (repeatable)")
	f.String("log-level", "warn", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	cmd.AddCommand(check)
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("TIMEDEXAM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("timedexam")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/timedexam")
	v.AddConfigPath("/etc/timedexam")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	questions, err := loadBank(db, v.GetStringSlice("questions"), v.GetInt("num-questions"))
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	examCfg := model.ExamConfig{
		NumQuestions:  v.GetInt("num-questions"),
		Duration:      time.Duration(v.GetInt("duration")) * time.Minute,
		WarnWindow:    time.Duration(v.GetInt("warn-minutes")) * time.Minute,
		StrictCount:   v.GetBool("strict-count"),
		BasePath:      basePath,
		SecureCookies: v.GetBool("secure-cookies"),
	}
	if examCfg.NumQuestions <= 0 {
		return fmt.Errorf("num-questions must be positive, got %d", examCfg.NumQuestions)
	}
	if examCfg.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %d", v.GetInt("duration"))
	}

	h, err := handler.New(db, questions, examCfg, v.GetString("admin-password"))
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware())

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go h.PruneIdle(ctx, idleTTL)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"questions", len(questions),
		"num_questions", examCfg.NumQuestions,
		"duration", examCfg.Duration,
		"strict_count", examCfg.StrictCount,
		"base_path", basePath,
		"admin", v.GetString("admin-password") != "",
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// loadBank reads the bank files and records their hashes so the archive can
// tell whether the bank changed since the previous start.
func loadBank(db *store.Store, paths []string, perExam int) ([]model.Question, error) {
	questions, files, err := bank.LoadFiles(paths)
	if err != nil {
		return nil, err
	}
	hashes := make([]store.FileHash, len(files))
	names := make([]string, len(files))
	for i, f := range files {
		hashes[i] = store.FileHash{Path: f.Path, Hash: f.Hash}
		names[i] = f.Path
	}
	changed, err := db.RecordImport(hashes)
	if err != nil {
		return nil, fmt.Errorf("record import: %w", err)
	}
	if changed {
		slog.Warn("question bank changed since last import; archived attempts keep their own items")
	}
	if len(questions) < perExam {
		slog.Warn("question bank is smaller than the exam size", "available", len(questions), "num_questions", perExam)
	}
	err = db.SetBankInfo(store.BankInfo{
		Files:      names,
		Questions:  len(questions),
		LoadedAt:   time.Now(),
		Changed:    changed,
		NumPerExam: perExam,
	})
	if err != nil {
		return nil, fmt.Errorf("record bank info: %w", err)
	}
	return questions, nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	data, err := exportData(db, strings.ToLower(v.GetString("format")), v.GetString("id"))
	if err != nil {
		return err
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func exportData(db *store.Store, format, id string) ([]byte, error) {
	if id == "" {
		switch format {
		case "json":
			var buf bytes.Buffer
			if err := db.ExportJSON(&buf); err != nil {
				return nil, fmt.Errorf("export attempts: %w", err)
			}
			return buf.Bytes(), nil
		case "csv":
			attempts, err := db.ListAttempts()
			if err != nil {
				return nil, fmt.Errorf("list attempts: %w", err)
			}
			return summaryCSV(attempts), nil
		case "detailed", "xlsx":
			return nil, fmt.Errorf("format %s needs --id", format)
		}
		return nil, fmt.Errorf("unknown format %q", format)
	}

	a, err := db.GetAttempt(id)
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if a == nil {
		return nil, fmt.Errorf("attempt %s not found", id)
	}
	switch format {
	case "json":
		data, err := json.MarshalIndent(a, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal JSON: %w", err)
		}
		return append(data, '\n'), nil
	case "csv":
		rows, err := report.BuildRows(a.Items, a.Answers)
		if err != nil {
			return nil, fmt.Errorf("build report: %w", err)
		}
		return report.SimpleCSV(rows), nil
	case "detailed":
		return report.DetailedCSV(a.Items, a.Answers)
	case "xlsx":
		return report.DetailedXLSX(a.Items, a.Answers)
	}
	return nil, fmt.Errorf("unknown format %q", format)
}

func summaryCSV(attempts []model.Attempt) []byte {
	var buf bytes.Buffer
	buf.WriteString("id,started_at,finished_at,reason,correct,total,grade,passed\r\n")
	for _, a := range attempts {
		fields := []string{
			a.ID,
			a.StartedAt.UTC().Format(time.RFC3339),
			a.FinishedAt.UTC().Format(time.RFC3339),
			string(a.Reason),
			strconv.Itoa(a.Result.Correct),
			strconv.Itoa(a.Result.Total),
			strconv.FormatFloat(a.Result.Grade, 'f', 2, 64),
			strconv.FormatBool(a.Result.Passed),
		}
		for i, f := range fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(report.Quote(f))
		}
		buf.WriteString("\r\n")
	}
	return buf.Bytes()
}

func runBankCheck(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	paths := append(v.GetStringSlice("questions"), args...)
	if len(paths) == 0 {
		return errors.New("no bank files given")
	}
	out := cmd.OutOrStdout()
	total := 0
	for _, path := range paths {
		questions, files, err := bank.LoadFiles([]string{path})
		if err != nil {
			return err
		}
		multi := 0
		for _, q := range questions {
			if q.Multi() {
				multi++
			}
		}
		fmt.Fprintf(out, "%s\t%d questions (%d multi-answer)\tsha256 %s\n", path, len(questions), multi, files[0].Hash[:12])
		total += len(questions)
	}
	fmt.Fprintf(out, "total\t%d questions\n", total)
	return nil
}
