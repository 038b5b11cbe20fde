package handler

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/timedexam/internal/exam"
	appI18n "github.com/pavelanni/timedexam/internal/i18n"
	"github.com/pavelanni/timedexam/internal/model"
	"github.com/pavelanni/timedexam/internal/proctor"
)

const (
	clientCookieName = "exam_client"
	csrfCookieName   = "csrf_token"
	csrfHeaderName   = "X-CSRF-Token"
	adminUser        = "admin"
)

type controllerCtxKey struct{}

func controllerFrom(r *http.Request) *exam.Controller {
	ctl, _ := r.Context().Value(controllerCtxKey{}).(*exam.Controller)
	return ctl
}

// path prefixes p with the configured base path.
func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func (h *Handler) cookiePath() string {
	if h.config.BasePath != "" {
		return h.config.BasePath + "/"
	}
	return "/"
}

// BasePathMiddleware exposes the base path to views through the request context.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientMiddleware binds the request to the client's exam controller. Browsers
// without a registered controller get a throwaway one that is never stored; a
// controller is registered only once the client acts, see claim.
func (h *Handler) clientMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctl, ok := h.sessions.Lookup(clientID(r))
		if !ok {
			ctl = h.newController()
		}
		ctl.Proctor().SetSecure(proctor.IsSecureOrigin(r))

		ctx := context.WithValue(r.Context(), controllerCtxKey{}, ctl)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientID(r *http.Request) string {
	if c, err := r.Cookie(clientCookieName); err == nil {
		return c.Value
	}
	return ""
}

// claim returns the client's registered controller, registering a new one and
// issuing the client cookie when the browser has none or presents an unknown one.
func (h *Handler) claim(w http.ResponseWriter, r *http.Request) *exam.Controller {
	id := clientID(r)
	if ctl, ok := h.sessions.Lookup(id); ok {
		return ctl
	}
	ctl := h.sessions.Acquire(id)
	http.SetCookie(w, &http.Cookie{
		Name:     clientCookieName,
		Value:    ctl.ID(),
		Path:     h.cookiePath(),
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	ctl.Proctor().SetSecure(proctor.IsSecureOrigin(r))
	return ctl
}

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// csrfMiddleware implements double-submit tokens. The token lives for the browser
// session so pages that poll in the background keep their forms valid.
func (h *Handler) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(csrfCookieName)
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			var token string
			if err == nil && cookie.Value != "" {
				token = cookie.Value
			} else {
				token, err = generateCSRFToken()
				if err != nil {
					slog.Error("failed to generate CSRF token", "error", err)
					http.Error(w, "internal error", http.StatusInternalServerError)
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     csrfCookieName,
					Value:    token,
					Path:     h.cookiePath(),
					HttpOnly: false,
					Secure:   h.config.SecureCookies,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx := model.ContextWithCSRFToken(r.Context(), token)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if err != nil || cookie.Value == "" {
			slog.Warn("CSRF cookie missing")
			http.Error(w, "csrf token missing", http.StatusForbidden)
			return
		}

		token := r.Header.Get(csrfHeaderName)
		if token == "" {
			token = r.FormValue("csrf_token")
		}
		if token == "" {
			slog.Warn("CSRF form token missing")
			http.Error(w, "csrf token missing", http.StatusForbidden)
			return
		}

		if len(token) != len(cookie.Value) || subtle.ConstantTimeCompare([]byte(token), []byte(cookie.Value)) != 1 {
			slog.Warn("CSRF token mismatch")
			http.Error(w, "invalid csrf token", http.StatusForbidden)
			return
		}

		ctx := model.ContextWithCSRFToken(r.Context(), cookie.Value)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin guards the archive with HTTP basic auth against the bcrypt hash
// of the configured admin password.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(h.adminHash) == 0 {
			http.NotFound(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != adminUser || bcrypt.CompareHashAndPassword(h.adminHash, []byte(pass)) != nil {
			if ok {
				slog.Warn("admin authentication failed", "user", user, "remote", r.RemoteAddr)
			}
			w.Header().Set("WWW-Authenticate", `Basic realm="timedexam", charset="UTF-8"`)
			http.Error(w, appI18n.T(r.Context(), "Unauthorized"), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
