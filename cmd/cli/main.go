// Command vemu runs vehicle scenarios and hosts live sessions.
//
//	vemu run scenario.json        # SimulationLog JSON on stdout
//	vemu batch scenarios/ -o out  # many scenarios in parallel
//	vemu serve                    # websocket session on server.addr
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/cxd309/vehicle-emulator/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
