package cmd

import (
	"github.com/spf13/cobra"

	"github.com/teemow/gdriveapp/internal/drive"
)

func newUploadCmd() *cobra.Command {
	var (
		parentID string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "upload <path>...",
		Short: "Upload local files",
		Long: `Upload one or more local files into --parent (default: My Drive).
Files are sent in chunks through a resumable upload session.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newDriveClient(cmd.Context(), false, nil)
			if err != nil {
				return err
			}

			uploaded := make([]*drive.FileInfo, 0, len(args))
			for _, path := range args {
				file, err := client.UploadLocalFile(cmd.Context(), path, parentID)
				if err != nil {
					return err
				}
				uploaded = append(uploaded, file)
			}
			return printFiles(cmd.OutOrStdout(), uploaded, asJSON)
		},
	}

	cmd.Flags().StringVar(&parentID, "parent", drive.RootFolderID, "ID of the destination folder")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	return cmd
}

func newMkdirCmd() *cobra.Command {
	var (
		parentID string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "mkdir <name>",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newDriveClient(cmd.Context(), false, nil)
			if err != nil {
				return err
			}

			folder, err := client.CreateFolder(cmd.Context(), args[0], []string{parentID})
			if err != nil {
				return err
			}
			return printFiles(cmd.OutOrStdout(), []*drive.FileInfo{folder}, asJSON)
		},
	}

	cmd.Flags().StringVar(&parentID, "parent", drive.RootFolderID, "ID of the parent folder")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	return cmd
}
