package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"
	_ "go.uber.org/automaxprocs"

	"github.com/amariwan/cmd-chat/internal/logging"
	"github.com/amariwan/cmd-chat/internal/server"
)

// VERSION is populated via build flags when packaging official binaries.
var VERSION = "SELFBUILD"

func main() {
	app := cli.NewApp()
	app.Name = "cmdchat-server"
	app.Usage = "run the CMD Chat secure server"
	app.Version = VERSION
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "host",
			Value: "127.0.0.1",
			Usage: "host interface to bind to",
		},
		cli.IntFlag{
			Name:  "port,p",
			Value: 5050,
			Usage: "port to listen on",
		},
		cli.StringFlag{
			Name:  "certfile",
			Usage: "TLS certificate file (PEM); enables TLS together with --keyfile",
		},
		cli.StringFlag{
			Name:  "keyfile",
			Usage: "TLS private key file (PEM); enables TLS together with --certfile",
		},
		cli.IntFlag{
			Name:  "metrics-interval",
			Value: 0,
			Usage: "interval in seconds for logging basic metrics (0 disables)",
		},
		cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "optional HTTP listen address for Prometheus metrics, e.g. :9090",
		},
	}
	app.Action = func(c *cli.Context) error {
		cfg, err := server.LoadConfig()
		if err != nil {
			return err
		}
		cfg.Host = c.String("host")
		cfg.Port = c.Int("port")
		cfg.CertFile = c.String("certfile")
		cfg.KeyFile = c.String("keyfile")
		cfg.MetricsInterval = c.Int("metrics-interval")
		if cfg.MetricsInterval < 0 {
			cfg.MetricsInterval = 0
		}
		cfg.MetricsAddr = c.String("metrics-addr")

		logger := logging.New(logging.Config{
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
			Service: "cmdchat-server",
		})
		logger.Info().Str("version", VERSION).Str("log_level", cfg.LogLevel).Msg("starting CMD Chat server")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return server.New(cfg, logger).Run(ctx)
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
