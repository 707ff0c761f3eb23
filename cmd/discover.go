package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Dyastin-0/lanbyte/core"
	"github.com/Dyastin-0/lanbyte/styles"
	"github.com/charmbracelet/huh/spinner"
	"github.com/urfave/cli/v3"
)

func discoverCommand() *cli.Command {
	return &cli.Command{
		Name:  "discover",
		Usage: "list peers on the local network",
		Flags: []cli.Flag{
			timeoutFlag(),
			mdnsFlag(),
			&cli.StringFlag{
				Name:  "peer",
				Usage: "only show peers with this name",
			},
			&cli.StringFlag{
				Name:  "ip",
				Usage: "only show peers whose address starts with this prefix",
			},
		},
		Action: discoverAction,
	}
}

func discoverAction(ctx context.Context, cmd *cli.Command) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}

	d := core.NewDiscoverer()
	d.MDNS = cmd.Bool("mdns")
	d.Filter = core.PeerFilter{Name: cmd.String("peer"), IP: cmd.String("ip")}
	d.Log = log

	peers, err := discoverWithSpinner(ctx, d, cmd.Duration("timeout"))
	if err != nil {
		return err
	}

	printPeers(peers)
	return nil
}

func discoverWithSpinner(ctx context.Context, d *core.Discoverer, timeout time.Duration) ([]core.Peer, error) {
	var peers []core.Peer

	err := spinner.New().
		Title(styles.INFO.Render(fmt.Sprintf("searching for peers (%s)...", timeout))).
		Context(ctx).
		ActionWithErr(func(ctx context.Context) error {
			var err error
			peers, err = d.Discover(ctx, timeout)
			return err
		}).
		Run()

	return peers, err
}

func printPeers(peers []core.Peer) {
	if len(peers) == 0 {
		fmt.Println(styles.WARN.Render("no peers found"))
		return
	}

	core.SortPeers(peers)

	fmt.Println(styles.TITLE.Render(fmt.Sprintf("%d peer(s)", len(peers))))
	for _, p := range peers {
		fmt.Printf("  %-20s %s\n", p.Name, styles.INFO.Render(p.Addr.String()))
	}
}
