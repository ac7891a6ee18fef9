package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/cxd309/vehicle-emulator/internal/simulation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// batchResult summarises one scenario of a batch.
type batchResult struct {
	file     string
	id       string
	rows     int
	distance float64
	speed    float64
	phase    string
}

func newBatchCommand(a *app) *cobra.Command {
	var (
		outDir   string
		parallel int
		store    bool
		dump     string
	)
	cmd := &cobra.Command{
		Use:   "batch <scenario.json|dir>...",
		Short: "Run many scenarios concurrently",
		Long: `Batch runs every scenario file given, and every *.json file in each
directory given, with at most --parallel runs at once. Logs are written to
--out-dir as <name>.log.json when it is set; a summary table goes to stdout.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := expandScenarios(args)
			if err != nil {
				return err
			}
			if outDir != "" {
				if err := os.MkdirAll(outDir, 0o755); err != nil {
					return fmt.Errorf("creating output directory: %w", err)
				}
			}

			out := outputs{influx: a.cfg.Influx().Enabled}
			if store || storageConfigured(a.cfg.Storage()) {
				s, err := openStore(a, store)
				if err != nil {
					return err
				}
				defer s.Close()
				out.store = s
			}

			results := make([]batchResult, len(files))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(parallel)
			for i, file := range files {
				i, file := i, file
				g.Go(func() error {
					data, err := os.ReadFile(file)
					if err != nil {
						return fmt.Errorf("%s: %w", file, err)
					}
					simLog, err := runScenario(ctx, a, data, out)
					if err != nil {
						return fmt.Errorf("%s: %w", file, err)
					}
					results[i] = summarise(file, simLog)
					a.logger.Info("Scenario finished",
						zap.String("file", file),
						zap.String("simulation_id", simLog.Meta.SimulationID),
						zap.Float64("distance", simLog.Distance))

					if outDir == "" {
						return nil
					}
					name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)) + ".log.json"
					f, err := os.Create(filepath.Join(outDir, name))
					if err != nil {
						return err
					}
					defer f.Close()
					return writeLog(f, name, simLog, false)
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			if out.store != nil && dump != "" {
				if err := out.store.Dump(dump); err != nil {
					return err
				}
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FILE\tSIMULATION\tROWS\tDISTANCE\tSPEED\tPHASE")
			for _, r := range results {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%.2f\t%s\n", r.file, r.id, r.rows, r.distance, r.speed, r.phase)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "directory for the per-scenario logs")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", runtime.NumCPU(), "maximum concurrent runs")
	cmd.Flags().BoolVar(&store, "store", false, "persist every run (sqlite in memory unless storage is configured)")
	cmd.Flags().StringVar(&dump, "dump", "", "after the batch, dump the sqlite store to this file")
	return cmd
}

// expandScenarios replaces each directory argument with the JSON files in it.
func expandScenarios(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, "*.json"))
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no scenarios found in %s", strings.Join(args, ", "))
	}
	return files, nil
}

func summarise(file string, simLog simulation.SimulationLog) batchResult {
	r := batchResult{
		file:     file,
		id:       simLog.Meta.SimulationID,
		rows:     len(simLog.Output),
		distance: simLog.Distance,
		phase:    string(simLog.Phase),
	}
	if n := len(simLog.Output); n > 0 {
		r.speed = simLog.Output[n-1].Vehicle.Speed
	}
	if r.phase == "" {
		r.phase = "-"
	}
	return r
}
