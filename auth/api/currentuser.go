package api

import (
	"context"
	"net/http"

	"github.com/andrebq/gatekeeper/auth"
	"github.com/andrebq/gatekeeper/internal/logutil"
	"github.com/andrebq/gatekeeper/session"
)

type (
	key byte

	CurrentUserResolver interface {
		CurrentUser(ctx context.Context, userID int64) (*auth.User, error)
	}
)

var (
	currentUserKey = key(1)
)

// WithCurrentUser resolves the user referenced by the request session and
// makes it available through CurrentUserFrom. Requests without a session,
// or with an anonymous one, pass through untouched.
//
// It must run after session.Manager.Load.
func WithCurrentUser(users CurrentUserResolver, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess := session.FromContext(ctx)
		if sess == nil || sess.UserID == 0 {
			next.ServeHTTP(w, r)
			return
		}
		u, err := users.CurrentUser(ctx, sess.UserID)
		if err != nil {
			log := logutil.GetOrDefault(ctx)
			log.Error().Err(err).Int64("user.id", sess.UserID).Msg("Unable to resolve current user")
			http.Error(w, "unable to resolve current user, check logs for more information", http.StatusInternalServerError)
			return
		}
		if u != nil {
			ctx = context.WithValue(ctx, currentUserKey, u)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CurrentUserFrom returns the signed in user or nil
func CurrentUserFrom(ctx context.Context) *auth.User {
	u, _ := ctx.Value(currentUserKey).(*auth.User)
	return u
}
