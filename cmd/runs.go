package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/cxd309/vehicle-emulator/internal/config"
	"github.com/cxd309/vehicle-emulator/internal/storage"
	"github.com/cxd309/vehicle-emulator/internal/telemetry"
	"github.com/spf13/cobra"
)

func newRunsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored runs",
		Long:  `Runs lists, exports and deletes runs kept in the configured storage.`,
	}
	cmd.AddCommand(newRunsListCommand(a), newRunsShowCommand(a), newRunsDeleteCommand(a))
	return cmd
}

// persistentStore opens storage for the runs commands, which have nothing to
// read from a fresh in-memory database.
func persistentStore(a *app) (*storage.Store, error) {
	cfg := a.cfg.Storage()
	if !storageConfigured(cfg) || (cfg.Type == config.StorageSQLite && cfg.Path == "") {
		return nil, errors.New("runs need storage.type postgres, or sqlite with storage.path set")
	}
	return openStore(a, false)
}

func newRunsListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := persistentStore(a)
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.Runs(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDRIVER\tSTEPS\tDISTANCE\tCREATED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.2f\t%s\n",
					r.ID, r.Name, r.Driver, r.Steps, r.Distance, r.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}

func newRunsShowCommand(a *app) *cobra.Command {
	var records string
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a stored run and its trajectory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := persistentStore(a)
			if err != nil {
				return err
			}
			defer s.Close()

			run, err := s.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			recs, err := s.LoadSamples(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			line := telemetry.Trajectory(recs)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:         %s\n", run.ID)
			fmt.Fprintf(out, "name:       %s\n", run.Name)
			fmt.Fprintf(out, "driver:     %s\n", run.Driver)
			fmt.Fprintf(out, "integrator: %s\n", run.Integrator)
			fmt.Fprintf(out, "samples:    %d\n", len(recs))
			fmt.Fprintf(out, "distance:   %.2f\n", line.Length())
			fmt.Fprintf(out, "trajectory: %s\n", line.AsText())

			if records == "" {
				return nil
			}
			m := telemetry.NewMemory()
			for _, r := range recs {
				if err := m.Write(cmd.Context(), r); err != nil {
					return err
				}
			}
			return writeRecords(records, m)
		},
	}
	cmd.Flags().StringVar(&records, "records", "", "also export the samples as gzipped JSON to this file")
	return cmd
}

func newRunsDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>...",
		Short: "Delete stored runs and their samples",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := persistentStore(a)
			if err != nil {
				return err
			}
			defer s.Close()

			var errs []error
			for _, id := range args {
				if err := s.DeleteRun(cmd.Context(), id); err != nil {
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			}
			return errors.Join(errs...)
		},
	}
}
