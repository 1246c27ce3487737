package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/andrebq/gatekeeper/auth"
	"github.com/andrebq/gatekeeper/internal/testutil"
	"github.com/andrebq/gatekeeper/session"
	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
	"github.com/stretchr/testify/require"
)

const credentials = `{"email":"a@b.com","password":"secret"}`

func TestSignupSigninFlow(t *testing.T) {
	handler, cleanup := acquireHandler(t)
	defer cleanup()

	res := apitest.Handler(handler).
		Post("/auth/signup").
		JSON(credentials).
		Expect(t).
		Status(http.StatusCreated).
		Assert(jsonpath.Equal("$.email", "a@b.com")).
		Assert(jsonpath.Present("$.id")).
		Assert(jsonpath.NotPresent("$.password")).
		CookiePresent(session.DefaultCookieName).
		End()
	sid := sessionCookie(t, res.Response)

	apitest.Handler(handler).
		Get("/auth/whoami").
		Cookie(session.DefaultCookieName, sid).
		Expect(t).
		Status(http.StatusOK).
		Body(`{"id":1,"email":"a@b.com"}`).
		End()

	apitest.Handler(handler).
		Post("/auth/signin").
		JSON(`{"email":"a@b.com","password":"wrong"}`).
		Expect(t).
		Status(http.StatusUnauthorized).
		End()

	res = apitest.Handler(handler).
		Post("/auth/signin").
		JSON(credentials).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.id", float64(1))).
		End()
	signedIn := sessionCookie(t, res.Response)

	apitest.Handler(handler).
		Post("/auth/signout").
		Cookie(session.DefaultCookieName, signedIn).
		Expect(t).
		Status(http.StatusNoContent).
		End()

	apitest.Handler(handler).
		Get("/auth/whoami").
		Cookie(session.DefaultCookieName, signedIn).
		Expect(t).
		Status(http.StatusForbidden).
		End()
}

func TestSignupErrors(t *testing.T) {
	handler, cleanup := acquireHandler(t)
	defer cleanup()

	apitest.Handler(handler).Post("/auth/signup").JSON(credentials).Expect(t).Status(http.StatusCreated).End()
	apitest.Handler(handler).Post("/auth/signup").JSON(credentials).Expect(t).Status(http.StatusConflict).End()

	for _, body := range []string{
		`{"email":"not-an-email","password":"secret"}`,
		`{"email":"c@d.com"}`,
		`{"email":`,
	} {
		apitest.Handler(handler).Post("/auth/signup").JSON(body).Expect(t).Status(http.StatusBadRequest).End()
	}

	apitest.Handler(handler).
		Post("/auth/signin").
		JSON(`{"email":"nobody@b.com","password":"secret"}`).
		Expect(t).
		Status(http.StatusNotFound).
		End()

	apitest.Handler(handler).Get("/auth/whoami").Expect(t).Status(http.StatusForbidden).End()
}

func TestUserManagement(t *testing.T) {
	handler, cleanup := acquireHandler(t)
	defer cleanup()

	for i := 0; i < 3; i++ {
		apitest.Handler(handler).
			Post("/auth/signup").
			JSON(fmt.Sprintf(`{"email":"user%v@b.com","password":"secret"}`, i)).
			Expect(t).
			Status(http.StatusCreated).
			End()
	}

	apitest.Handler(handler).Get("/auth").Expect(t).Status(http.StatusOK).Assert(jsonpath.Len("$", 3)).End()
	apitest.Handler(handler).
		Get("/auth").
		Query("email", "user1@b.com").
		Expect(t).
		Status(http.StatusOK).
		Body(`[{"id":2,"email":"user1@b.com"}]`).
		End()
	apitest.Handler(handler).Get("/auth").Query("email", "nobody@b.com").Expect(t).Body(`[]`).End()

	apitest.Handler(handler).Get("/auth/users/2").Expect(t).Status(http.StatusOK).Assert(jsonpath.Equal("$.email", "user1@b.com")).End()
	apitest.Handler(handler).Get("/auth/users/99").Expect(t).Status(http.StatusNotFound).End()
	apitest.Handler(handler).Get("/auth/users/abc").Expect(t).Status(http.StatusBadRequest).End()

	apitest.Handler(handler).
		Patch("/auth/users/2").
		JSON(`{"email":"renamed@b.com","password":"changed"}`).
		Expect(t).
		Status(http.StatusOK).
		Body(`{"id":2,"email":"renamed@b.com"}`).
		End()
	apitest.Handler(handler).
		Post("/auth/signin").
		JSON(`{"email":"renamed@b.com","password":"changed"}`).
		Expect(t).
		Status(http.StatusOK).
		End()
	apitest.Handler(handler).Patch("/auth/users/99").JSON(`{"email":"x@b.com"}`).Expect(t).Status(http.StatusNotFound).End()

	apitest.Handler(handler).Delete("/auth/users/2").Expect(t).Status(http.StatusOK).Body(`{"id":2,"email":"renamed@b.com"}`).End()
	apitest.Handler(handler).Delete("/auth/users/2").Expect(t).Status(http.StatusNotFound).End()
	apitest.Handler(handler).Get("/auth").Expect(t).Assert(jsonpath.Len("$", 2)).End()
}

func TestStaleSessionIsAnonymous(t *testing.T) {
	handler, cleanup := acquireHandler(t)
	defer cleanup()

	res := apitest.Handler(handler).Post("/auth/signup").JSON(credentials).Expect(t).Status(http.StatusCreated).End()
	sid := sessionCookie(t, res.Response)

	apitest.Handler(handler).Delete("/auth/users/1").Expect(t).Status(http.StatusOK).End()
	apitest.Handler(handler).
		Get("/auth/whoami").
		Cookie(session.DefaultCookieName, sid).
		Expect(t).
		Status(http.StatusForbidden).
		End()
}

func acquireHandler(t *testing.T) (http.Handler, func()) {
	ctx := context.Background()
	store, cleanup := testutil.AcquireUserStore(ctx, t, "users")
	sessions, err := session.InMemoryStore(time.Minute)
	if err != nil {
		cleanup()
		t.Fatal(err)
	}
	svc := auth.NewService(store, testutil.FastHasher())
	return AsHandler(ctx, svc, session.NewManager(sessions, session.WithInsecureCookie(true))), cleanup
}

func sessionCookie(t *testing.T, res *http.Response) string {
	for _, c := range res.Cookies() {
		if c.Name == session.DefaultCookieName {
			return c.Value
		}
	}
	require.FailNow(t, "session cookie not found")
	return ""
}
