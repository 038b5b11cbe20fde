package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateSpanish(t *testing.T) {
	ctx := initLang(t, "es")

	if got := T(ctx, "StartExam"); got != "Iniciar examen" {
		t.Errorf("T(StartExam) = %q, want 'Iniciar examen'", got)
	}
	if got := T(ctx, "CameraOn"); got != "Cámara activa" {
		t.Errorf("T(CameraOn) = %q, want 'Cámara activa'", got)
	}
	if got := T(ctx, "RecordStop"); got != "Detener grabación" {
		t.Errorf("T(RecordStop) = %q, want 'Detener grabación'", got)
	}
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "AppTitle"); got != "Timed Exam" {
		t.Errorf("T(AppTitle) = %q, want 'Timed Exam'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "QuestionsAvailable", 1); got != "1 question available." {
		t.Errorf("Tp(QuestionsAvailable, 1) = %q", got)
	}
	if got := Tp(ctx, "QuestionsAvailable", 5); got != "5 questions available." {
		t.Errorf("Tp(QuestionsAvailable, 5) = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "es")

	got := Td(ctx, "QuestionN", map[string]any{"Index": 3, "Total": 42})
	if got != "Pregunta 3 de 42" {
		t.Errorf("Td(QuestionN) = %q, want 'Pregunta 3 de 42'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestLocaleKeysMatch(t *testing.T) {
	initLang(t, "es")
	en := WithLocalizer(context.Background(), NewLocalizer("en"))
	es := WithLocalizer(context.Background(), NewLocalizer("es"))
	for _, id := range []string{"AppTitle", "Finish", "ErrNoReport", "RecordReady", "BankChanged"} {
		if T(en, id) == id || T(es, id) == id {
			t.Errorf("message %s missing in a locale", id)
		}
	}
}

func TestMatch(t *testing.T) {
	if err := Init("es"); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		prefs []string
		want  string
	}{
		{nil, "es"},
		{[]string{"en-US,en;q=0.9"}, "en"},
		{[]string{"de-DE"}, "es"},
		{[]string{"", "fr;q=0.8,en;q=0.5"}, "en"},
		{[]string{"es", "en"}, "es"},
	}
	for _, tt := range tests {
		if got := Match(tt.prefs...); got != tt.want {
			t.Errorf("Match(%q) = %q, want %q", tt.prefs, got, tt.want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	if err := Init("es"); err != nil {
		t.Fatal(err)
	}
	var gotLang, gotText string
	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLang = Lang(r.Context())
		gotText = T(r.Context(), "Restart")
	}))

	tests := []struct {
		name, url, accept, cookie string
		wantLang, wantText        string
	}{
		{"default", "/", "", "", "es", "Reiniciar"},
		{"accept", "/", "en-GB", "", "en", "Start over"},
		{"cookie", "/", "es", "en", "en", "Start over"},
		{"query", "/?lang=es", "en", "en", "es", "Reiniciar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: LangCookie, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if gotLang != tt.wantLang || gotText != tt.wantText {
				t.Errorf("lang/text = %s/%q, want %s/%q", gotLang, gotText, tt.wantLang, tt.wantText)
			}
		})
	}
}
