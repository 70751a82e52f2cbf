package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to Google Drive",
		Long: `Authorize gdriveapp to access your Google Drive.

If no usable token is cached, a consent URL is printed. After you grant
access in the browser, Google redirects to a temporary listener on
127.0.0.1 and the token is stored at the --token path. Later commands and
the MCP server reuse and refresh it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := newDriveClient(cmd.Context(), false, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Authorized. Token stored at %s\n", opts.tokenPath)
			return nil
		},
	}
}
