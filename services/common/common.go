package common

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var (
	LogLevelFlag          = "log-level"
	LogFormatFlag         = "log-format"
	SentryDSNFlag         = "sentry-dsn"
	SentryEnvironmentFlag = "sentry-environment"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   LogLevelFlag,
			Usage:  "log level (debug, info, warn, error)",
			Value:  "info",
			EnvVar: "LOG_LEVEL",
		},
		cli.StringFlag{
			Name:   LogFormatFlag,
			Usage:  "log format (text, json)",
			Value:  "text",
			EnvVar: "LOG_FORMAT",
		},
		cli.StringFlag{
			Name:   SentryDSNFlag,
			Usage:  "sentry dsn, empty disables error reporting",
			EnvVar: "SENTRY_DSN",
		},
		cli.StringFlag{
			Name:   SentryEnvironmentFlag,
			Usage:  "sentry environment",
			Value:  "development",
			EnvVar: "SENTRY_ENVIRONMENT",
		},
	)
}

func InitLog(c *cli.Context) error {
	lvl, err := log.ParseLevel(c.GlobalString(LogLevelFlag))
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", c.GlobalString(LogLevelFlag))
	}
	log.SetLevel(lvl)
	if c.GlobalString(LogFormatFlag) == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
	return nil
}

// InitSentry configures error reporting. The returned function flushes
// buffered events and must be called before exit.
func InitSentry(c *cli.Context) (func(), error) {
	dsn := c.GlobalString(SentryDSNFlag)
	if dsn == "" {
		return func() {}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: c.GlobalString(SentryEnvironmentFlag),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to init sentry")
	}
	log.Info("sentry error reporting enabled")
	return func() {
		sentry.Flush(2 * time.Second)
	}, nil
}
