package main

import (
	"os"

	"github.com/fjod/agromarket/internal/config"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "marketplace",
		Usage: "farm produce marketplace backend",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "dotenv files to load before reading AGRO_* variables",
				Value: cli.NewStringSlice(".env"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override AGRO_LOG_LEVEL",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			consumeOrdersCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("marketplace failed")
	}
}

// loadConfig reads the configuration and applies command line overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.StringSlice("env-file")...)
	if err != nil {
		return nil, err
	}

	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("port") {
		cfg.HTTP.Port = c.Int("port")
	}
	if c.IsSet("backend") {
		cfg.Store.Backend = c.String("backend")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid command line overrides")
	}
	return cfg, nil
}
