package cmd

import (
	"os"

	"github.com/szellmann/warpvr/log"
	"github.com/urfave/cli"
)

var logger = log.New("warpvr")

// Apply the log level from the config file; the -v and -vv flags take
// precedence.
func setupLogging(ctx *cli.Context, cfg *Config) error {
	if cfg.LogLevel != "" {
		level, err := log.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		log.SetLevel(level)
	}

	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}
	return nil
}

// Log err and exit with a non-zero status.
func Fatal(err error) {
	logger.Error(err.Error())
	os.Exit(1)
}
