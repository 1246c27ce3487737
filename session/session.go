// Package session carries the identity of the caller between requests.
//
// A session is a random id kept in a cookie, the id maps to a user id in a
// Store. The package never loads users itself, it only knows their ids.
package session

import (
	"context"
	"fmt"
	"net/http"

	"github.com/andrebq/gatekeeper/internal/logutil"
	"github.com/google/uuid"
)

const (
	DefaultCookieName = "gatekeeper.sid"
)

type (
	key byte

	// Session is attached to every request that goes through Manager.Load.
	// A zero UserID means nobody is signed in.
	Session struct {
		UserID int64

		id     string
		loaded int64
	}

	Manager struct {
		store          Store
		cookieName     string
		insecureCookie bool
	}

	Option func(*Manager)
)

var (
	sessionKey = key(1)
)

func WithCookieName(name string) Option {
	return func(m *Manager) {
		m.cookieName = name
	}
}

// WithInsecureCookie allows the session cookie to travel over plain HTTP,
// only useful for local development.
func WithInsecureCookie(allow bool) Option {
	return func(m *Manager) {
		m.insecureCookie = allow
	}
}

func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		cookieName: DefaultCookieName,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Load resolves the session cookie (if any) and makes the result available
// to next via FromContext. Unknown or expired cookies result in an empty
// session, never in an error.
func (m *Manager) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess := &Session{}
		if c, err := r.Cookie(m.cookieName); err == nil && c.Value != "" {
			uid, found, err := m.store.Lookup(ctx, c.Value)
			if err != nil {
				log := logutil.GetOrDefault(ctx)
				log.Error().Err(err).Msg("Unexpected error when loading session, proceeding without one")
			} else if found {
				sess.id = c.Value
				sess.UserID = uid
				sess.loaded = uid
			}
		}
		next.ServeHTTP(w, r.WithContext(WithSession(ctx, sess)))
	})
}

// Save persists sess and sends the cookie back to the client. The session
// gets a fresh id whenever its owner changes.
func (m *Manager) Save(w http.ResponseWriter, r *http.Request, sess *Session) error {
	ctx := r.Context()
	if sess.id != "" && sess.loaded != sess.UserID {
		if err := m.store.Delete(ctx, sess.id); err != nil {
			return fmt.Errorf("unable to discard previous session, cause %w", err)
		}
		sess.id = ""
	}
	if sess.id == "" {
		sess.id = uuid.NewString()
	}
	err := m.store.Save(ctx, sess.id, sess.UserID)
	if err != nil {
		return fmt.Errorf("unable to save session, cause %w", err)
	}
	sess.loaded = sess.UserID
	http.SetCookie(w, m.cookie(sess.id, 0))
	return nil
}

// Clear removes sess from the store and asks the client to forget the cookie
func (m *Manager) Clear(w http.ResponseWriter, r *http.Request, sess *Session) error {
	if sess.id != "" {
		err := m.store.Delete(r.Context(), sess.id)
		if err != nil {
			return fmt.Errorf("unable to clear session, cause %w", err)
		}
	}
	sess.id = ""
	sess.UserID = 0
	sess.loaded = 0
	http.SetCookie(w, m.cookie("", -1))
	return nil
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   !m.insecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// FromContext returns the session attached to ctx, or nil when the request
// did not go through Manager.Load.
func FromContext(ctx context.Context) *Session {
	v, _ := ctx.Value(sessionKey).(*Session)
	return v
}
