package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	slogctx "github.com/veqryn/slog-context"

	"github.com/truid-app/client-integration/internal/config"
	"github.com/truid-app/client-integration/internal/flow"
	"github.com/truid-app/client-integration/internal/serviceerr"
	"github.com/truid-app/client-integration/internal/session"
	"github.com/truid-app/client-integration/pkg/fingerprint"
)

// csrfTokenHeader carries the double-submit CSRF token on
// state-changing API calls. The front end reads the token from the CSRF
// cookie and echoes it here.
const csrfTokenHeader = "X-CSRF-Token"

type handler struct {
	sessions *session.Manager
	flows    *flow.Manager
	web      config.Web
}

func newRouter(cfg *config.Config, sessions *session.Manager, flows *flow.Manager) http.Handler {
	h := &handler{
		sessions: sessions,
		flows:    flows,
		web:      cfg.Web,
	}

	r := chi.NewRouter()
	r.Use(requestMiddleware)

	r.Get("/ping", h.ping)
	r.Get(flow.DocumentPath, h.document)

	r.Route("/truid/v1", func(r chi.Router) {
		r.Get("/confirm-signup", h.startFlow(flow.KindSignup))
		r.Get("/complete-signup", h.completeAuthentication(flow.KindSignup, h.web.SignupSuccess, h.web.SignupFailure))
		r.Get("/login-session", h.startFlow(flow.KindLogin))
		r.Get("/complete-login", h.completeAuthentication(flow.KindLogin, h.web.LoginSuccess, h.web.LoginFailure))
		r.Get("/sign", h.startFlow(flow.KindSign))
		r.Get("/complete-sign", h.completeSign)
		r.Get("/presentation", h.presentation)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/user-info", h.userInfo)
		r.Post("/perform-action", h.performAction)
	})

	return r
}

// startFlow begins an authorization flow and points the user agent at
// the provider. A fetch caller (X-Requested-With: XMLHttpRequest) gets
// 202 with a Location header to follow itself; a plain browser gets a
// 302.
func (h *handler) startFlow(kind flow.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		s, err := h.sessions.Resolve(ctx, w, r)
		if err != nil {
			h.writeError(ctx, w, err)

			return
		}

		fp, err := fingerprint.FromHTTPRequest(r)
		if err != nil {
			h.writeError(ctx, w, err)

			return
		}

		location, err := h.flows.Start(ctx, s, kind, fp)
		if err != nil {
			h.writeError(ctx, w, err)

			return
		}

		if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
			w.Header().Set("Location", location)
			w.WriteHeader(http.StatusAccepted)

			return
		}

		http.Redirect(w, r, location, http.StatusFound)
	}
}

func (h *handler) completeAuthentication(kind flow.Kind, successURL, failureURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		s, err := h.sessions.Resolve(ctx, w, r)
		if err != nil {
			h.writeError(ctx, w, err)

			return
		}

		err = h.runCallback(ctx, r, s, func(cb flow.Callback, fp string) error {
			return h.flows.CompleteAuthentication(ctx, s, kind, cb, fp)
		})
		if err == nil {
			h.sessions.IssueCSRFCookie(ctx, w, s.ID)
		}

		h.completed(ctx, w, r, successURL, failureURL, err)
	}
}

func (h *handler) completeSign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	s, err := h.sessions.Resolve(ctx, w, r)
	if err != nil {
		h.writeError(ctx, w, err)

		return
	}

	err = h.runCallback(ctx, r, s, func(cb flow.Callback, fp string) error {
		return h.flows.CompleteSign(ctx, s, cb, fp)
	})

	h.completed(ctx, w, r, h.web.SignSuccess, h.web.SignFailure, err)
}

func (h *handler) runCallback(ctx context.Context, r *http.Request, s session.Session, complete func(flow.Callback, string) error) error {
	fp, err := fingerprint.FromHTTPRequest(r)
	if err != nil {
		return err
	}

	query := r.URL.Query()

	return complete(flow.Callback{
		Code:  query.Get("code"),
		State: query.Get("state"),
		Error: query.Get("error"),
	}, fp)
}

// completed finishes a callback request. Browsers (Accept: text/html)
// are redirected to the configured web page, with the error code as a
// query parameter on failure; API callers get a status code and a JSON
// body.
func (h *handler) completed(ctx context.Context, w http.ResponseWriter, r *http.Request, successURL, failureURL string, err error) {
	wantsHTML := strings.Contains(r.Header.Get("Accept"), "text/html")

	if err == nil {
		if wantsHTML {
			http.Redirect(w, r, successURL, http.StatusFound)

			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

		return
	}

	slogctx.Warn(ctx, "Authorization flow failed", "error", err)

	if wantsHTML {
		u, parseErr := url.Parse(failureURL)
		if parseErr != nil {
			h.writeError(ctx, w, parseErr)

			return
		}

		q := u.Query()
		q.Set("error", serviceerr.CodeOf(err))
		u.RawQuery = q.Encode()

		http.Redirect(w, r, u.String(), http.StatusFound)

		return
	}

	writeJSON(w, statusOf(err), map[string]string{"error": serviceerr.CodeOf(err)})
}

func (h *handler) userInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	s, err := h.sessions.Resolve(ctx, w, r)
	if err != nil {
		h.writeError(ctx, w, err)

		return
	}

	info, err := h.flows.UserInfo(ctx, s.ID)
	if err != nil {
		h.writeError(ctx, w, err)

		return
	}
	if info == nil {
		h.writeError(ctx, w, serviceerr.AuthenticationRequired("session has no user info"))

		return
	}

	writeJSON(w, http.StatusOK, info)
}

func (h *handler) presentation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	s, err := h.sessions.Resolve(ctx, w, r)
	if err != nil {
		h.writeError(ctx, w, err)

		return
	}

	presentation, err := h.flows.Presentation(ctx, s.ID)
	if err != nil {
		h.writeError(ctx, w, err)

		return
	}

	writeJSON(w, http.StatusOK, presentation)
}

// performAction is the guarded example endpoint: it demands a session
// with fresh credentials and a valid CSRF token.
func (h *handler) performAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	s, err := h.sessions.Resolve(ctx, w, r)
	if err != nil {
		h.writeError(ctx, w, err)

		return
	}

	if !h.sessions.ValidateCSRFToken(r.Header.Get(csrfTokenHeader), s.ID) {
		slogctx.Warn(ctx, "Rejected request with an invalid CSRF token", "session_id", s.ID)
		h.writeError(ctx, w, serviceerr.AccessDenied("invalid CSRF token"))

		return
	}

	if err := h.flows.ConfirmAuthenticated(ctx, s.ID); err != nil {
		h.writeError(ctx, w, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) document(w http.ResponseWriter, _ *http.Request) {
	document, contentType := h.flows.Document()

	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(document)
}

func (h *handler) ping(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"result": "ping"})
}

// writeError maps a domain error to its status code and outward error
// code. The Reason stays in the logs; the body only ever carries the
// code.
func (h *handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		slogctx.Error(ctx, "Request failed", "error", err)
	} else {
		slogctx.Warn(ctx, "Request denied", "error", err)
	}

	writeJSON(w, status, map[string]string{"error": serviceerr.CodeOf(err)})
}

func statusOf(err error) int {
	var unauthorized *serviceerr.Unauthorized
	if errors.As(err, &unauthorized) {
		return http.StatusUnauthorized
	}

	var forbidden *serviceerr.Forbidden
	if errors.As(err, &forbidden) {
		return http.StatusForbidden
	}

	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
