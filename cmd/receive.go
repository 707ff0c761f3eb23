package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Dyastin-0/lanbyte/core"
	"github.com/Dyastin-0/lanbyte/progress"
	"github.com/Dyastin-0/lanbyte/prompt"
	"github.com/Dyastin-0/lanbyte/styles"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

func receiveCommand() *cli.Command {
	return &cli.Command{
		Name:  "receive",
		Usage: "announce this host and accept incoming files",
		Flags: []cli.Flag{
			nameFlag(),
			mdnsFlag(),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "TCP port for incoming transfers",
				Value:   int(core.TransferPort),
				Sources: cli.EnvVars("LANBYTE_PORT"),
			},
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "directory received files are written to",
				Value:   filepath.Join(homeDir(), defaultDir),
				Sources: cli.EnvVars("LANBYTE_DIR"),
			},
			&cli.BoolFlag{
				Name:    "confirm",
				Aliases: []string{"c"},
				Usage:   "ask before accepting each file",
			},
			&cli.StringFlag{
				Name:  "max-size",
				Usage: "reject files larger than this, e.g. 500MB",
			},
		},
		Action: receiveAction,
	}
}

func receiveAction(ctx context.Context, cmd *cli.Command) error {
	port, err := transferPort(cmd.Int("port"))
	if err != nil {
		return err
	}

	policy, err := receivePolicy(cmd.Bool("confirm"), cmd.String("max-size"))
	if err != nil {
		return err
	}

	log, err := newLogger(cmd)
	if err != nil {
		return err
	}

	bars := progress.New()

	r := core.NewReceiver(cmd.String("dir"))
	r.Policy = policy
	r.Track = bars.Track
	r.OnEvent = eventLogger(log)
	r.Log = log
	r.OnError = func(remote string, err error) {
		fmt.Println(styles.ERROR.Render(fmt.Sprintf("transfer from %s failed: %v", remote, err)))
	}

	ln, err := r.Listen(fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}

	responder := core.NewResponder(cmd.String("name"), port)
	responder.MDNS = cmd.Bool("mdns")
	responder.Log = log

	if err := responder.Init(); err != nil {
		ln.Close()
		return err
	}

	fmt.Println(
		styles.TITLE.Render("lanbyte"),
		styles.SUCCESS.Render(fmt.Sprintf("receiving as %s on port %d", responder.Name, port)),
	)
	fmt.Println(styles.INFO.Render(fmt.Sprintf("saving to %s", r.Dir())))

	errch := make(chan error, 2)

	go func() {
		errch <- responder.Serve(ctx)
	}()

	go func() {
		errch <- r.Serve(ctx, ln)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errch:
		return err
	}
}

func transferPort(port int) (uint16, error) {
	if port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port %d", port)
	}
	return uint16(port), nil
}

func receivePolicy(confirm bool, maxSize string) (core.Policy, error) {
	policy := core.Policy(core.AcceptAll)
	if confirm {
		policy = prompt.Confirm()
	}

	if maxSize == "" {
		return policy, nil
	}

	limit, err := humanize.ParseBytes(maxSize)
	if err != nil {
		return nil, fmt.Errorf("invalid max size %q: %w", maxSize, err)
	}

	return core.MaxSize(limit, policy), nil
}
