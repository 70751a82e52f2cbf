package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/gdriveapp/internal/tools/batch"
)

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <fileID>...",
		Short: "Permanently delete files",
		Long: `Permanently delete files by ID. Deleted files skip the trash and
cannot be recovered. Every ID is attempted even if an earlier one fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newDriveClient(cmd.Context(), false, nil)
			if err != nil {
				return err
			}

			results := batch.ProcessBatch(cmd.Context(), args, func(ctx context.Context, id string) (string, error) {
				return "deleted", client.DeleteFile(ctx, id)
			})

			for _, r := range results {
				if r.Status == batch.StatusSuccess {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tdeleted\n", r.ID)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tfailed: %s\n", r.ID, r.Error)
				}
			}

			if summary := batch.Summarize(results); summary.Failed > 0 {
				return fmt.Errorf("%d of %d deletions failed", summary.Failed, summary.Total)
			}
			return nil
		},
	}
}
