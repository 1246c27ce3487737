package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/andrebq/gatekeeper/cmd/gatekeeper/serve"
	"github.com/andrebq/gatekeeper/cmd/gatekeeper/users"
	"github.com/andrebq/gatekeeper/internal/cmdflags"
	"github.com/andrebq/gatekeeper/internal/logutil"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	var logLevel string
	var pretty bool
	app := &cli.App{
		Name:  "gatekeeper",
		Usage: "Sign users up, sign them in and remember who they are",
		Flags: []cli.Flag{
			cmdflags.LogLevel(&logLevel),
			cmdflags.Pretty(&pretty),
		},
		Before: func(ctx *cli.Context) error {
			logger, err := logutil.Setup(logLevel, pretty)
			if err != nil {
				return err
			}
			ctx.Context = logutil.WithLogger(ctx.Context, logger)
			return nil
		},
		Commands: []*cli.Command{
			serve.Cmd(),
			users.Cmd(),
		},
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	err := app.RunContext(ctx, os.Args)
	if err != nil {
		log.Error().Err(err).Msg("Application failed")
		os.Exit(1)
	}
}
