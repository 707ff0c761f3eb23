package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Dyastin-0/lanbyte/core"
	"github.com/Dyastin-0/lanbyte/logger"
	"github.com/Dyastin-0/lanbyte/progress"
	"github.com/Dyastin-0/lanbyte/prompt"
	"github.com/Dyastin-0/lanbyte/styles"
	"github.com/cenkalti/backoff"
	"github.com/urfave/cli/v3"
)

func sendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "send a file to a peer",
		ArgsUsage: "[FILE]",
		Flags: []cli.Flag{
			timeoutFlag(),
			mdnsFlag(),
			&cli.StringFlag{
				Name:  "to",
				Usage: "receiver address, host or host:port",
			},
			&cli.StringFlag{
				Name:  "peer",
				Usage: "pick the discovered peer with this name",
			},
			&cli.IntFlag{
				Name:  "retries",
				Usage: "connection attempts after the first one fails",
				Value: 3,
			},
		},
		Action: sendAction,
	}
}

func sendAction(ctx context.Context, cmd *cli.Command) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}

	path := cmd.Args().First()
	if path == "" {
		path, err = prompt.NewFileSelector(".").Run()
		if err != nil {
			return err
		}
	}

	stat, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to get file info: %w", err)
	}

	if !stat.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}

	target := cmd.String("to")
	if target != "" {
		target = core.Target(target)
	} else {
		peer, err := pickPeer(ctx, cmd, log)
		if err != nil {
			return err
		}
		target = peer.Addr.String()
	}

	bar := progress.DefaultBar(stat.Size(), filepath.Base(path))

	s := core.NewSender()
	s.OnProgress = progress.BarFunc(bar)
	s.OnEvent = eventLogger(log)
	s.Log = log

	outcome, err := sendWithRetry(ctx, s, target, path, cmd.Int("retries"), log)
	if err != nil {
		fmt.Println(styles.ERROR.Render(fmt.Sprintf("failed to send %s: %v", path, err)))
		return err
	}

	switch outcome {
	case core.OutcomeRejected:
		fmt.Println(styles.WARN.Render(fmt.Sprintf("%s rejected %s", target, filepath.Base(path))))
	default:
		fmt.Println(styles.SUCCESS.Render(fmt.Sprintf("sent %s to %s", styles.File(filepath.Base(path), uint64(stat.Size())), target)))
	}

	return nil
}

// pickPeer discovers peers and lets the user choose one. A --peer name
// matching exactly one peer skips the prompt.
func pickPeer(ctx context.Context, cmd *cli.Command, log logger.Logger) (core.Peer, error) {
	d := core.NewDiscoverer()
	d.MDNS = cmd.Bool("mdns")
	d.Filter = core.PeerFilter{Name: cmd.String("peer")}
	d.StopOnMatch = d.Filter.Name != ""
	d.Log = log

	peers, err := discoverWithSpinner(ctx, d, cmd.Duration("timeout"))
	if err != nil {
		return core.Peer{}, err
	}

	return choosePeer(peers, d.Filter.Name != "", func(peers []core.Peer) (core.Peer, error) {
		return prompt.NewPeerSelector(peers).Run()
	})
}

func choosePeer(peers []core.Peer, named bool, pick func([]core.Peer) (core.Peer, error)) (core.Peer, error) {
	switch {
	case len(peers) == 0:
		return core.Peer{}, errors.New("no peers found")
	case len(peers) == 1 && named:
		return peers[0], nil
	default:
		return pick(peers)
	}
}

// sendWithRetry retries only connection failures, with exponential
// backoff. A handshake or transfer error ends the attempts.
func sendWithRetry(ctx context.Context, s *core.Sender, target, path string, retries int, log logger.Logger) (core.Outcome, error) {
	var (
		outcome core.Outcome
		final   error
	)

	op := func() error {
		if err := ctx.Err(); err != nil {
			final = err
			return nil
		}

		o, err := s.SendFile(ctx, target, path)
		if errors.Is(err, core.ErrDial) && ctx.Err() == nil {
			return err
		}

		outcome, final = o, err
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxElapsedTime = 0

	notify := func(err error, next time.Duration) {
		log.WithStr("peer", target).WithErr(err).WithStr("retry_in", next.String()).Warn("connect failed")
	}

	if err := backoff.RetryNotify(op, backoff.WithMaxRetries(b, uint64(max(retries, 0))), notify); err != nil {
		return 0, err
	}

	return outcome, final
}
