package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/gdriveapp/internal/drive"
)

func newListCmd() *cobra.Command {
	var (
		recursive bool
		prefix    string
		dump      string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "list <folderID>",
		Short: "List the contents of a folder",
		Long: `List the contents of a folder. Each entry is shown with its path
below --prefix. With -r, subfolder contents follow their folder.

--dump[=PREFIX] also writes the listing to PREFIX.file.json and the paths to
PREFIX.paths.txt (PREFIX defaults to "info").`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newDriveClient(cmd.Context(), false, nil)
			if err != nil {
				return err
			}

			files, err := client.ListFolder(cmd.Context(), args[0], drive.ListFolderOptions{
				Recursive: recursive,
				Prefix:    prefix,
			})
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("dump") {
				if err := drive.DumpFilesInfo(files, dump); err != nil {
					return fmt.Errorf("failed to dump listing: %w", err)
				}
			}

			return printFiles(cmd.OutOrStdout(), files, asJSON)
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Include the contents of subfolders")
	cmd.Flags().StringVar(&prefix, "prefix", ".", "Prefix for entry paths")
	cmd.Flags().StringVar(&dump, "dump", "", "Write PREFIX.file.json and PREFIX.paths.txt (PREFIX defaults to \"info\")")
	cmd.Flags().Lookup("dump").NoOptDefVal = "info"
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	return cmd
}
