package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/teemow/gdriveapp/internal/drive"
)

func newSearchCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search files with a Drive query",
		Long: `Search files with the Drive query language, for example:

  gdriveapp search "name contains 'invoice' and mimeType = 'application/pdf'"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newDriveClient(cmd.Context(), false, nil)
			if err != nil {
				return err
			}

			files, err := client.SearchFiles(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printFiles(cmd.OutOrStdout(), files, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	return cmd
}

func newFindCmd() *cobra.Command {
	var (
		folders  bool
		files    bool
		parentID string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "find <search>",
		Short: "Find files by name",
		Long: `Find files whose name contains every term of <search>. Terms are
separated by '+'; a term starting with '!' excludes names containing it.

  gdriveapp find 'budget+2024+!draft' --files`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			findOpts, err := findOptions(folders, files, parentID)
			if err != nil {
				return err
			}

			client, err := newDriveClient(cmd.Context(), false, nil)
			if err != nil {
				return err
			}

			found, err := client.FindFiles(cmd.Context(), args[0], findOpts)
			if err != nil {
				return err
			}
			return printFiles(cmd.OutOrStdout(), found, asJSON)
		},
	}

	cmd.Flags().BoolVar(&folders, "folders", false, "Only return folders")
	cmd.Flags().BoolVar(&files, "files", false, "Only return files that are not folders")
	cmd.Flags().StringVar(&parentID, "parent", "", "Only return direct children of this folder ID")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	return cmd
}

func findOptions(folders, files bool, parentID string) (drive.FindOptions, error) {
	findOpts := drive.FindOptions{ParentID: parentID}
	switch {
	case folders && files:
		return findOpts, errors.New("--folders and --files are mutually exclusive")
	case folders:
		findOpts.IsFolder = drive.Bool(true)
	case files:
		findOpts.IsFolder = drive.Bool(false)
	}
	return findOpts, nil
}
