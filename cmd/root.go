// Package cmd holds the vemu command tree.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/cxd309/vehicle-emulator/internal/config"
	"github.com/cxd309/vehicle-emulator/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Version is set at build time.
var Version = "dev"

// app is the state shared by every subcommand of one root command.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
}

// NewRootCommand builds a fresh command tree. Each call gets its own flags
// and configuration, so tests can execute it repeatedly.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "vemu",
		Short:         "Vehicle dynamics emulator",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.New(), a.cfgFile)
			if err != nil {
				logging.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "vemu"})
				return err
			}
			logging.InitializeLogger(cfg.Logger())
			a.cfg = cfg
			a.logger = logging.GetLogger()
			a.logger.Debug("Starting vemu", zap.String("version", Version), zap.String("command", cmd.Name()))
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./vemu.yaml)")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newRunCommand(a),
		newBatchCommand(a),
		newServeCommand(a),
		newRunsCommand(a),
	)
	return root
}

// Execute runs the command tree with ctx, logging any failure.
func Execute(ctx context.Context) error {
	defer logging.Sync()
	err := NewRootCommand().ExecuteContext(ctx)
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	logging.GetLogger().Error("Command execution failed", zap.Error(err))
	fmt.Fprintln(os.Stderr, "Error:", err)
	return err
}
