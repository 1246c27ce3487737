package cmdflags

import (
	"github.com/urfave/cli/v2"
)

const (
	envPrefix = "GATEKEEPER_"
)

func Database(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = "gatekeeper.db"
	}
	return &cli.StringFlag{
		Name:        "db",
		Aliases:     []string{"d"},
		Usage:       "Path to the SQLite file that holds the users (use :memory: for a throw-away database)",
		EnvVars:     []string{envPrefix + "DB"},
		Value:       *out,
		Destination: out,
	}
}

func LogLevel(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = "info"
	}
	return &cli.StringFlag{
		Name:        "log-level",
		Usage:       "Minimum level of log messages (trace, debug, info, warn, error)",
		EnvVars:     []string{envPrefix + "LOG_LEVEL"},
		Value:       *out,
		Destination: out,
	}
}

func Pretty(out *bool) cli.Flag {
	return &cli.BoolFlag{
		Name:        "pretty",
		Usage:       "Write human friendly logs instead of JSON",
		EnvVars:     []string{envPrefix + "PRETTY"},
		Value:       *out,
		Destination: out,
	}
}
