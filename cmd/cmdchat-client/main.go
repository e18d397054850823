package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/amariwan/cmd-chat/internal/client"
	"github.com/amariwan/cmd-chat/internal/logging"
)

// VERSION is populated via build flags when packaging official binaries.
var VERSION = "SELFBUILD"

func main() {
	app := cli.NewApp()
	app.Name = "cmdchat"
	app.Usage = "connect to a CMD Chat server"
	app.Version = VERSION
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "host",
			Value: "127.0.0.1",
			Usage: "server host",
		},
		cli.IntFlag{
			Name:  "port,p",
			Value: 5050,
			Usage: "server port",
		},
		cli.StringFlag{
			Name:  "name,n",
			Value: "anonymous",
			Usage: "display name used in chat",
		},
		cli.StringFlag{
			Name:  "room,r",
			Value: "lobby",
			Usage: "room to join",
		},
		cli.StringFlag{
			Name:   "token",
			Usage:  "invite or bearer token for authentication",
			EnvVar: "CMDCHAT_TOKEN",
		},
		cli.StringFlag{
			Name:  "renderer",
			Value: "rich",
			Usage: "output renderer style: rich, minimal, json, plain, markdown",
		},
		cli.IntFlag{
			Name:  "buffer-size",
			Value: 200,
			Usage: "number of messages retained locally",
		},
		cli.BoolFlag{
			Name:  "quiet-reconnect",
			Usage: "use quiet status messages while reconnecting",
		},
		cli.StringFlag{
			Name:  "history-file",
			Usage: "optional encrypted history file path",
		},
		cli.StringFlag{
			Name:  "history-passphrase",
			Usage: "passphrase for encrypting local history",
		},
		cli.BoolFlag{
			Name:  "tls",
			Usage: "enable TLS for the server connection",
		},
		cli.BoolFlag{
			Name:  "tls-insecure",
			Usage: "disable certificate verification (insecure; for testing only)",
		},
		cli.StringFlag{
			Name:  "ca-file",
			Usage: "custom CA bundle for TLS",
		},
	}
	app.Action = func(c *cli.Context) error {
		cfg := &client.Config{
			Host:              c.String("host"),
			Port:              c.Int("port"),
			Name:              c.String("name"),
			Room:              c.String("room"),
			Renderer:          c.String("renderer"),
			BufferSize:        clamp(c.Int("buffer-size"), 10, 1000),
			QuietReconnect:    c.Bool("quiet-reconnect"),
			HistoryFile:       c.String("history-file"),
			HistoryPassphrase: c.String("history-passphrase"),
			TLS:               c.Bool("tls"),
			TLSInsecure:       c.Bool("tls-insecure"),
			CAFile:            c.String("ca-file"),
		}
		if token := c.String("token"); token != "" {
			cfg.Token = &token
		}
		if cfg.HistoryFile != "" && cfg.HistoryPassphrase == "" {
			return errors.New("--history-file requires --history-passphrase")
		}

		logger := logging.New(logging.Config{
			Level:   os.Getenv("CMDCHAT_LOG_LEVEL"),
			Format:  os.Getenv("CMDCHAT_LOG_FORMAT"),
			Service: "cmdchat-client",
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cl, err := client.New(cfg, logger)
		if err != nil {
			return err
		}
		return cl.Run(ctx)
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
