package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/gdriveapp/internal/drive"
	"github.com/teemow/gdriveapp/internal/google"
	"github.com/teemow/gdriveapp/internal/instrumentation"
	"github.com/teemow/gdriveapp/internal/logging"
)

// globalOptions holds the persistent flags shared by all commands.
type globalOptions struct {
	clientSecret string
	tokenPath    string
	logLevel     string
	logFormat    string
	maxRetries   int
}

var (
	opts   globalOptions
	logger = slog.Default()
)

// rootCmd represents the base command for the gdriveapp application
var rootCmd = &cobra.Command{
	Use:   "gdriveapp",
	Short: "Search, list, download and upload Google Drive files",
	Long: `gdriveapp is a small Google Drive client. It authorizes once through
your browser, caches the OAuth token, and then lets you search Drive, list
folder trees, mirror folders to disk, upload and delete files.

It can run as:
  - A standalone CLI tool
  - An MCP (Model Context Protocol) server for AI assistants (serve)`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(logging.Options{
			Level:  opts.logLevel,
			Format: opts.logFormat,
			Writer: cmd.ErrOrStderr(),
		})
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(l)
		return nil
	},
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application.
// SIGINT and SIGTERM cancel the command's context.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "gdriveapp version %s\n" .Version}}`)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.clientSecret, "client-secret", envOrDefault("GDRIVE_CLIENT_SECRET", "client_secret.json"),
		"OAuth client secret JSON downloaded from the Google Cloud Console. Can also use GDRIVE_CLIENT_SECRET env var.")
	flags.StringVar(&opts.tokenPath, "token", envOrDefault("GDRIVE_TOKEN_FILE", google.DefaultTokenPath()),
		"Path of the cached OAuth token. Can also use GDRIVE_TOKEN_FILE env var.")
	flags.StringVar(&opts.logLevel, "log-level", envOrDefault("LOG_LEVEL", "info"),
		"Log level: debug, info, warn or error. Can also use LOG_LEVEL env var.")
	flags.StringVar(&opts.logFormat, "log-format", envOrDefault("LOG_FORMAT", logging.FormatText),
		"Log format: text or json. Can also use LOG_FORMAT env var.")
	flags.IntVar(&opts.maxRetries, "max-retries", envIntOrDefault("GDRIVE_MAX_RETRIES", int(drive.DefaultRetryConfig().MaxTries)),
		"Attempts per Drive call for rate-limited or failed requests (1 disables retries). Can also use GDRIVE_MAX_RETRIES env var.")

	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newFindCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newDownloadCmd())
	rootCmd.AddCommand(newDownloadFolderCmd())
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newMkdirCmd())
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func authConfig(nonInteractive bool, metrics *instrumentation.Metrics) google.AuthConfig {
	return google.AuthConfig{
		ClientSecretPath: opts.clientSecret,
		TokenPath:        opts.tokenPath,
		Prompt:           os.Stderr,
		NonInteractive:   nonInteractive,
		Logger:           logger,
		Metrics:          metrics,
	}
}

func retryConfig() drive.RetryConfig {
	cfg := drive.DefaultRetryConfig()
	if opts.maxRetries > 0 {
		cfg.MaxTries = uint(opts.maxRetries)
	}
	return cfg
}

// newDriveClient authorizes and builds a Drive client. ctx must outlive the
// client since token refreshes use it.
func newDriveClient(ctx context.Context, nonInteractive bool, metrics *instrumentation.Metrics) (*drive.Client, error) {
	httpClient, err := google.Authenticate(ctx, authConfig(nonInteractive, metrics))
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	return drive.NewClient(ctx, drive.Config{
		HTTPClient: httpClient,
		Logger:     logger,
		Metrics:    metrics,
		Retry:      retryConfig(),
	})
}
