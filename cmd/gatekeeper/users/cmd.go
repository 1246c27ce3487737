package users

import (
	"bufio"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/andrebq/gatekeeper/auth"
	"github.com/andrebq/gatekeeper/credential"
	"github.com/andrebq/gatekeeper/internal/cmdflags"
	"github.com/andrebq/gatekeeper/userstore"
	"github.com/urfave/cli/v2"
)

func Cmd() *cli.Command {
	var store *userstore.Store
	var svc *auth.Service
	var db string
	return &cli.Command{
		Name:  "users",
		Usage: "Manage users directly on the database, without going through the HTTP server",
		Flags: []cli.Flag{
			cmdflags.Database(&db),
		},
		Before: func(ctx *cli.Context) error {
			var err error
			store, err = userstore.Open(ctx.Context, db, true)
			if err != nil {
				return err
			}
			svc = auth.NewService(store, credential.New(credential.DefaultParams, rand.Reader))
			return nil
		},
		After: func(ctx *cli.Context) error {
			if store == nil {
				return nil
			}
			return store.Close()
		},
		Subcommands: []*cli.Command{
			registerCmd(&svc),
			listCmd(&svc),
			removeCmd(&svc),
		},
	}
}

func registerCmd(svc **auth.Service) *cli.Command {
	var email string
	return &cli.Command{
		Name:  "register",
		Usage: "Register a new user (password is read from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "email",
				Aliases:     []string{"e"},
				Usage:       "E-mail of the user to register",
				Destination: &email,
				Required:    true,
			},
		},
		Action: func(ctx *cli.Context) error {
			sc := bufio.NewScanner(os.Stdin)
			if !sc.Scan() {
				if sc.Err() != nil {
					return sc.Err()
				}
				return errors.New("missing password from stdin")
			}
			password := strings.TrimSpace(sc.Text())
			if len(password) == 0 {
				return errors.New("missing password from stdin")
			}
			u, err := (*svc).Signup(ctx.Context, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(ctx.App.Writer, "%v\t%v\n", u.ID, u.Email)
			return nil
		},
	}
}

func listCmd(svc **auth.Service) *cli.Command {
	var email string
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List registered users",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "email",
				Aliases:     []string{"e"},
				Usage:       "Only list users with this e-mail",
				Destination: &email,
			},
		},
		Action: func(ctx *cli.Context) error {
			users, err := (*svc).Users(ctx.Context, email)
			if err != nil {
				return err
			}
			for _, u := range users {
				fmt.Fprintf(ctx.App.Writer, "%v\t%v\n", u.ID, u.Email)
			}
			return nil
		},
	}
}

func removeCmd(svc **auth.Service) *cli.Command {
	var id int64
	return &cli.Command{
		Name:    "remove",
		Aliases: []string{"rm"},
		Usage:   "Remove a user by id",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:        "id",
				Usage:       "Id of the user to remove",
				Destination: &id,
				Required:    true,
			},
		},
		Action: func(ctx *cli.Context) error {
			u, err := (*svc).Remove(ctx.Context, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(ctx.App.Writer, "%v\t%v\n", u.ID, u.Email)
			return nil
		},
	}
}
