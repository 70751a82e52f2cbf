package cmd

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/teemow/gdriveapp/internal/drive"
)

func newDownloadCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <fileID>",
		Short: "Download a single file",
		Long: `Download a file to --output, or to stdout when no output is given.
Google Docs, Sheets, Slides and Drawings are exported to Office and PNG
formats.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			fileID := args[0]

			client, err := newDriveClient(ctx, false, nil)
			if err != nil {
				return err
			}

			file, err := client.GetFile(ctx, fileID)
			if err != nil {
				return err
			}
			if file.IsFolder() {
				return fmt.Errorf("%s is a folder, use download-folder", file.Name)
			}

			var exportMime string
			if file.IsGoogleNative() {
				format, ok := drive.ExportFormatFor(file.MimeType)
				if !ok {
					return fmt.Errorf("%s (%s) cannot be downloaded", file.Name, file.MimeType)
				}
				exportMime = format.MimeType
			}

			var n int64
			switch {
			case output == "" && exportMime != "":
				n, err = client.ExportFile(ctx, fileID, exportMime, cmd.OutOrStdout())
			case output == "":
				n, err = client.DownloadFile(ctx, fileID, cmd.OutOrStdout())
			case exportMime != "":
				n, err = client.ExportFileTo(ctx, fileID, exportMime, output)
			default:
				n, err = client.DownloadFileTo(ctx, fileID, output)
			}
			if err != nil {
				return err
			}

			if output != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Downloaded %s (%d bytes) to %s\n", file.Name, n, output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func newDownloadFolderCmd() *cobra.Command {
	var (
		output     string
		resume     bool
		noProgress bool
	)

	cmd := &cobra.Command{
		Use:   "download-folder <folderID>",
		Short: "Download a folder tree",
		Long: `Download every file below a folder into --output, recreating the
folder structure. The listing is saved as <folderID>.filelist.json and the
files that could not be downloaded as <folderID>.skipped.json.

With --resume (the default) files already present locally are skipped, so an
interrupted download can be restarted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			folderID := args[0]

			client, err := newDriveClient(ctx, false, nil)
			if err != nil {
				return err
			}

			var bar *progressbar.ProgressBar
			dlOpts := drive.DownloadFolderOptions{
				OutputPath: output,
				Resume:     resume,
			}
			if !noProgress {
				dlOpts.Progress = func(done, total int) {
					if bar == nil {
						bar = progressbar.NewOptions(total,
							progressbar.OptionSetWriter(cmd.ErrOrStderr()),
							progressbar.OptionSetDescription("downloading"),
							progressbar.OptionShowCount(),
						)
					}
					_ = bar.Set(done)
				}
			}

			report, err := client.DownloadFolder(ctx, folderID, dlOpts)
			if bar != nil {
				_ = bar.Finish()
				fmt.Fprintln(cmd.ErrOrStderr())
			}
			if report != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%d files: %d downloaded, %d already present, %d failed, %d not downloadable\n",
					len(report.Results),
					report.Count(drive.StatusSuccess),
					report.Count(drive.StatusAlready),
					report.Count(drive.StatusError),
					report.Count(drive.StatusUnsupported))
			}
			if err != nil {
				return err
			}
			if report.Count(drive.StatusError) > 0 {
				return fmt.Errorf("%d files failed to download, see %s.skipped.json", report.Count(drive.StatusError), folderID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", ".", "Output directory")
	cmd.Flags().BoolVar(&resume, "resume", true, "Skip files that already exist locally")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")

	return cmd
}
