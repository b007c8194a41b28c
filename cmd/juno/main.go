package main

import (
	"context"
	"os"
	"os/signal"
	_ "time/tzdata"

	"github.com/itayakad/juno-master/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	cli.Main(ctx)
}
