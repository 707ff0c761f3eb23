// Package cmd ...
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Dyastin-0/lanbyte/core"
	"github.com/Dyastin-0/lanbyte/logger"
	"github.com/common-nighthawk/go-figure"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
)

const (
	Version = "0.1.0"

	defaultDir = "lanbyte/received"
)

func New() *cli.Command {
	return &cli.Command{
		Name:    "lanbyte",
		Usage:   "discover peers and send files across the local network",
		Version: Version,
		Action:  lanbyteAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log",
				Usage:   "log file path",
				Sources: cli.EnvVars("LANBYTE_LOG"),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "also write logs to stderr",
			},
		},
		Commands: []*cli.Command{
			discoverCommand(),
			receiveCommand(),
			sendCommand(),
		},
	}
}

func lanbyteAction(ctx context.Context, cmd *cli.Command) error {
	figure := figure.NewFigure("lanbyte", "", true)
	figure.Print()

	fmt.Println()

	return cli.ShowAppHelp(cmd)
}

func nameFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "name",
		Aliases: []string{"n"},
		Usage:   "name announced to peers",
		Value:   hostname(),
		Sources: cli.EnvVars("LANBYTE_NAME"),
	}
}

func timeoutFlag() cli.Flag {
	return &cli.DurationFlag{
		Name:    "timeout",
		Aliases: []string{"t"},
		Usage:   "how long to wait for peers to answer",
		Value:   core.DefaultDiscoveryTimeout,
		Sources: cli.EnvVars("LANBYTE_TIMEOUT"),
	}
}

func mdnsFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "mdns",
		Usage: "also use mDNS alongside UDP broadcast",
	}
}

// newLogger writes to the --log path, or ~/lanbyte/logs/lanbyte.log.
func newLogger(cmd *cli.Command) (logger.Logger, error) {
	path := cmd.String("log")
	if path == "" {
		p, err := logger.LogPath("logs")
		if err != nil {
			return nil, err
		}
		path = p
	} else if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	log := logger.New()
	if cmd.Bool("verbose") {
		log.InitMultiWriter(path)
	} else {
		log.Init(path)
	}

	return log, nil
}

// eventLogger records every transfer outcome in the log.
func eventLogger(log logger.Logger) func(core.Event) {
	return func(e core.Event) {
		l := log.WithStr("action", e.Action).
			WithStr("file", e.File).
			WithUint64("size", e.Size).
			WithStr("peer", e.Peer).
			WithStr("result", e.Result).
			WithUint64("bytes", e.Bytes)

		if e.Err != nil {
			l.WithErr(e.Err).Warn("transfer event")
			return
		}
		l.Info("transfer event")
	}
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || core.CompressName(name) == "" {
		return "unknown-" + uuid.NewString()[:8]
	}
	return name
}

func homeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "./"
	}

	return homeDir
}
