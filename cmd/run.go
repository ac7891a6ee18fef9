package cmd

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cxd309/vehicle-emulator/internal/config"
	"github.com/cxd309/vehicle-emulator/internal/simulation"
	"github.com/cxd309/vehicle-emulator/internal/storage"
	"github.com/cxd309/vehicle-emulator/internal/telemetry"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// outputs selects where a run's telemetry goes besides the returned log.
type outputs struct {
	store     *storage.Store
	influx    bool
	telemetry string // gzipped record dump, one file per run
}

func newRunCommand(a *app) *cobra.Command {
	var (
		outPath string
		store   bool
		dump    string
		influx  bool
		records string
		pretty  bool
	)
	cmd := &cobra.Command{
		Use:   "run [scenario.json|-]",
		Short: "Run one scenario and print its log",
		Long: `Run reads a scenario from the file argument, or from stdin when it is
missing or "-", and writes the resulting log as JSON to stdout or --out.
Unset timing, integrator and maximum step come from the simulation config.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			data, err := readScenario(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			out := outputs{influx: influx || a.cfg.Influx().Enabled, telemetry: records}
			if store || storageConfigured(a.cfg.Storage()) {
				s, err := openStore(a, store)
				if err != nil {
					return err
				}
				defer s.Close()
				out.store = s
			}

			simLog, err := runScenario(ctx, a, data, out)
			if err != nil {
				return err
			}

			if out.store != nil && dump != "" {
				if err := out.store.Dump(dump); err != nil {
					return err
				}
			}

			w := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("creating output: %w", err)
				}
				defer f.Close()
				w = f
			}
			return writeLog(w, outPath, simLog, pretty)
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the log to this file (gzipped when it ends in .gz)")
	cmd.Flags().BoolVar(&store, "store", false, "persist the run (sqlite in memory unless storage is configured)")
	cmd.Flags().StringVar(&dump, "dump", "", "after the run, dump the sqlite store to this file")
	cmd.Flags().BoolVar(&influx, "influx", false, "write telemetry to InfluxDB")
	cmd.Flags().StringVar(&records, "records", "", "write the gzipped telemetry records to this file")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON log")
	return cmd
}

func readScenario(stdin io.Reader, args []string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return nil, fmt.Errorf("error reading input: %w", err)
	}
	return data, nil
}

func storageConfigured(cfg config.StorageConfig) bool {
	return cfg.Type != config.StorageNone && cfg.Type != ""
}

// openStore opens the configured store. force falls back to an in-memory
// sqlite database when storage is configured off.
func openStore(a *app, force bool) (*storage.Store, error) {
	cfg := a.cfg.Storage()
	if !storageConfigured(cfg) {
		if !force {
			return nil, storage.ErrDisabled
		}
		cfg.Type = config.StorageSQLite
	}
	return storage.Open(cfg, a.logger.Named("storage"))
}

// runScenario decodes one scenario, applies the config defaults, and runs it
// with every requested sink attached.
func runScenario(ctx context.Context, a *app, data []byte, out outputs) (simulation.SimulationLog, error) {
	var in simulation.SimulationInput
	if err := json.Unmarshal(data, &in); err != nil {
		return simulation.SimulationLog{}, fmt.Errorf("invalid input JSON: %w", err)
	}
	in = in.WithConfig(a.cfg.Simulation())

	if in.Meta.SimulationID == "" {
		in.Meta.SimulationID = uuid.NewString()
	}
	meta := in.Meta
	logger := a.logger.Named("simulation")

	var (
		sinks   []telemetry.Sink
		closers []io.Closer
		memory  *telemetry.Memory
	)
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Warn("Closing telemetry sink failed", zap.Error(err))
			}
		}
	}()
	if out.store != nil {
		sinks = append(sinks, out.store.Sink())
	}
	if out.influx {
		lp, err := telemetry.NewInflux(ctx, a.cfg.Influx(), time.Now(), logger)
		if err != nil {
			return simulation.SimulationLog{}, err
		}
		closers = append(closers, lp)
		sinks = append(sinks, lp)
	}
	if out.telemetry != "" {
		memory = telemetry.NewMemory()
		sinks = append(sinks, memory)
	}

	sim, err := simulation.NewSimulation(in, simulation.WithLogger(logger), simulation.WithSink(telemetry.Multi(sinks...)))
	if err != nil {
		return simulation.SimulationLog{}, err
	}

	if out.store != nil {
		params, err := json.Marshal(sim.Vehicle().Params())
		if err != nil {
			return simulation.SimulationLog{}, err
		}
		run := &storage.Run{
			ID:         meta.SimulationID,
			Name:       meta.Name,
			Driver:     string(sim.Driver().Kind()),
			TimeStep:   meta.TimeStep,
			RunTime:    meta.RunTime,
			Integrator: sim.Vehicle().Integrator().Name(),
			Params:     datatypes.JSON(params),
		}
		if err := out.store.CreateRun(ctx, run); err != nil {
			return simulation.SimulationLog{}, err
		}
	}

	simLog, err := sim.Run(ctx)
	if err != nil {
		return simulation.SimulationLog{}, err
	}

	if out.store != nil {
		if err := out.store.FinishRun(ctx, meta.SimulationID, len(simLog.Output)-1, simLog.Distance); err != nil {
			return simulation.SimulationLog{}, err
		}
	}
	if memory != nil {
		if err := writeRecords(out.telemetry, memory); err != nil {
			return simulation.SimulationLog{}, err
		}
	}
	return simLog, nil
}

func writeRecords(path string, m *telemetry.Memory) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating records file: %w", err)
	}
	if err := m.WriteGzip(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeLog encodes simLog to w, through gzip when path ends in ".gz".
func writeLog(w io.Writer, path string, simLog simulation.SimulationLog, pretty bool) error {
	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(w)
		if err := encodeLog(gz, simLog, pretty); err != nil {
			gz.Close()
			return err
		}
		return gz.Close()
	}
	return encodeLog(w, simLog, pretty)
}

func encodeLog(w io.Writer, simLog simulation.SimulationLog, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(simLog); err != nil {
		return fmt.Errorf("encoding log: %w", err)
	}
	return nil
}
