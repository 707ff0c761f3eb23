package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Dyastin-0/lanbyte/cmd"
	"github.com/Dyastin-0/lanbyte/prompt"
	"github.com/Dyastin-0/lanbyte/styles"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.New().Run(ctx, os.Args); err != nil {
		if errors.Is(err, prompt.ErrCanceled) {
			return
		}

		fmt.Fprintln(os.Stderr, styles.ERROR.Render(err.Error()))
		stop()
		os.Exit(1)
	}
}
