package cmd

import (
	"fmt"
	"os"

	"github.com/cxd309/vehicle-emulator/internal/server"
	"github.com/cxd309/vehicle-emulator/internal/vehicle"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host a live vehicle over websockets",
		Long: `Serve runs one vehicle in real time at server.tick_rate and streams its
pose to websocket clients on /ws at up to server.broadcast_rate. Clients
drive it with input, key and axes messages.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Server()
			if addr != "" {
				cfg.Addr = addr
			}
			params, err := loadParams(cfg.Vehicle, a.cfg.Simulation().MaxStep)
			if err != nil {
				return err
			}

			srv, err := server.New(cfg, params, a.logger)
			if err != nil {
				return err
			}
			a.logger.Info("Serving vehicle", zap.String("vehicle", params.Name), zap.String("addr", cfg.Addr))
			return srv.ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

// loadParams reads vehicle parameters from path over the stock values. An
// empty path gives the stock vehicle. maxStep applies when the file sets none.
func loadParams(path string, maxStep float64) (vehicle.Params, error) {
	var p vehicle.Params
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return vehicle.Params{}, fmt.Errorf("reading vehicle params: %w", err)
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return vehicle.Params{}, fmt.Errorf("decoding vehicle params %s: %w", path, err)
		}
	}
	if p.MaxStep == 0 {
		p.MaxStep = maxStep
	}
	p = p.WithDefaults()
	if err := p.Validate(); err != nil {
		return vehicle.Params{}, fmt.Errorf("vehicle params %s: %w", path, err)
	}
	return p, nil
}
