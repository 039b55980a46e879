package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"tallybook/internal/bootstrap"
	"tallybook/internal/bootstrap/logging"
	"tallybook/internal/errs"
	"tallybook/internal/ports"
)

// backfillCmd scans a dataset version and marks checksum-less raw records as
// legacy so later reads can flag them without re-deciding per record.
var backfillCmd = &cobra.Command{
	Use:   "backfill-legacy",
	Short: "Mark checksum-less raw records of a dataset version as legacy",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svcs *services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		datasetVersionID, _ := cmd.Flags().GetString("dataset-version")
		report, err := svcs.Datasets.BackfillLegacyFlags(ctx, datasetVersionID, ports.SystemActor(""))
		if err != nil {
			return errs.Wrap(err, "backfill legacy flags")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(),
			"backfill completed dataset-version=%s scanned=%d flagged=%d failed=%d\n",
			datasetVersionID, report.Scanned, report.Flagged, len(report.Failed)); err != nil {
			return errs.Wrap(err, "write backfill output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(backfillCmd)
	backfillCmd.Flags().String("dataset-version", "", "Dataset version id to scan")
	_ = backfillCmd.MarkFlagRequired("dataset-version")
}
