package i18n

import "net/http"

// LangCookie remembers an explicit language choice.
const LangCookie = "lang"

// Middleware negotiates the language of every request and injects its localizer.
// Precedence: ?lang= query, lang cookie, Accept-Language, then the bundle default.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var prefs []string
			if q := r.URL.Query().Get("lang"); q != "" {
				prefs = append(prefs, q)
				http.SetCookie(w, &http.Cookie{
					Name:     LangCookie,
					Value:    Match(q),
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			} else if c, err := r.Cookie(LangCookie); err == nil {
				prefs = append(prefs, c.Value)
			}
			prefs = append(prefs, r.Header.Get("Accept-Language"))

			lang := Match(prefs...)
			ctx := WithLang(r.Context(), lang)
			ctx = WithLocalizer(ctx, NewLocalizer(lang))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
