package serve

import (
	"crypto/rand"
	"time"

	"github.com/andrebq/gatekeeper/auth"
	"github.com/andrebq/gatekeeper/auth/api"
	"github.com/andrebq/gatekeeper/auth/policy"
	"github.com/andrebq/gatekeeper/credential"
	"github.com/andrebq/gatekeeper/internal/cmdflags"
	"github.com/andrebq/gatekeeper/internal/httpserver"
	"github.com/andrebq/gatekeeper/internal/logutil"
	"github.com/andrebq/gatekeeper/session"
	"github.com/andrebq/gatekeeper/userstore"
	"github.com/urfave/cli/v2"
)

func Cmd() *cli.Command {
	bindAddr := "localhost:7007"
	var db string
	sessionTTL := 24 * time.Hour
	var insecureCookie bool
	var signupPolicy string
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP server exposing the /auth endpoints",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "bind",
				Usage:       "Address to bind for incoming requests",
				EnvVars:     []string{"GATEKEEPER_BIND"},
				Value:       bindAddr,
				Destination: &bindAddr,
			},
			cmdflags.Database(&db),
			&cli.DurationFlag{
				Name:        "session-ttl",
				Usage:       "How long a session is remembered after it was last saved",
				EnvVars:     []string{"GATEKEEPER_SESSION_TTL"},
				Value:       sessionTTL,
				Destination: &sessionTTL,
			},
			&cli.BoolFlag{
				Name:        "insecure-cookie",
				Usage:       "Allow the session cookie over plain HTTP (development only)",
				EnvVars:     []string{"GATEKEEPER_INSECURE_COOKIE"},
				Destination: &insecureCookie,
			},
			&cli.StringFlag{
				Name:        "signup-policy",
				Usage:       "Lua script defining admit(email), called before every signup",
				EnvVars:     []string{"GATEKEEPER_SIGNUP_POLICY"},
				Destination: &signupPolicy,
			},
		},
		Action: func(ctx *cli.Context) error {
			log := logutil.GetOrDefault(ctx.Context)
			store, err := userstore.Open(ctx.Context, db, true)
			if err != nil {
				return err
			}
			defer store.Close()

			var opts []auth.Option
			if signupPolicy != "" {
				p, err := policy.FromFile(signupPolicy)
				if err != nil {
					return err
				}
				opts = append(opts, auth.WithSignupPolicy(p))
				log.Info().Str("policy.file", signupPolicy).Msg("Signup policy loaded")
			}
			svc := auth.NewService(store, credential.New(credential.DefaultParams, rand.Reader), opts...)

			sessions, err := session.InMemoryStore(sessionTTL)
			if err != nil {
				return err
			}
			if insecureCookie {
				log.Warn().Msg("Session cookies will be sent over plain HTTP")
			}
			manager := session.NewManager(sessions, session.WithInsecureCookie(insecureCookie))

			handler := api.AsHandler(ctx.Context, svc, manager)
			return httpserver.Serve(ctx.Context, bindAddr, handler)
		},
	}
}
