package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/gdriveapp/internal/drive"
	"github.com/teemow/gdriveapp/internal/google"
	"github.com/teemow/gdriveapp/internal/instrumentation"
	"github.com/teemow/gdriveapp/internal/logging"
	"github.com/teemow/gdriveapp/internal/resources"
	"github.com/teemow/gdriveapp/internal/server"
	"github.com/teemow/gdriveapp/internal/tools/drive_tools"
)

const shutdownTimeout = 5 * time.Second

// serveOptions holds the flags of the serve command.
type serveOptions struct {
	yolo        bool
	downloadDir string
	metricsAddr string
}

func newServeCmd() *cobra.Command {
	var serveOpts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP (Model Context Protocol) server over stdio.

The server exposes Google Drive tools to AI assistants. Run 'gdriveapp auth'
once beforehand; the server never starts a browser flow itself.

By default only read tools are registered. Use --yolo to also register
tools that upload, create and delete files.

With --metrics-addr a Prometheus endpoint is served at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), serveOpts)
		},
	}

	cmd.Flags().BoolVar(&serveOpts.yolo, "yolo", envBoolOrDefault("GDRIVE_YOLO", false),
		"Enable write operations (upload, create folder, delete). Default is read-only mode. Can also use GDRIVE_YOLO env var.")
	cmd.Flags().StringVar(&serveOpts.downloadDir, "download-dir", envOrDefault("GDRIVE_DOWNLOAD_DIR", "."),
		"Directory that tools read local files from and download into. Can also use GDRIVE_DOWNLOAD_DIR env var.")
	cmd.Flags().StringVar(&serveOpts.metricsAddr, "metrics-addr", envOrDefault("METRICS_ADDR", ""),
		"Serve Prometheus metrics on this address (e.g. :9090). Disabled when empty. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(ctx context.Context, serveOpts serveOptions) error {
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	if serveOpts.metricsAddr != "" && provider.Enabled() {
		metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    serveOpts.metricsAddr,
			InstrumentationProvider: provider,
			Logger:                  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", logging.Err(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	metrics := provider.Metrics()
	serverContext, err := server.NewServerContext(ctx, server.Options{
		// Token refreshes use ctx, which outlives the tool call.
		NewClient: func(context.Context) (*drive.Client, error) {
			return newDriveClient(ctx, true, metrics)
		},
		TokenProvider: google.NewFileTokenProvider(opts.tokenPath),
		Metrics:       metrics,
		AuditLogger:   instrumentation.NewAuditLogger(logger, instrConfig.AuditLogging),
		Logger:        logger,
		DownloadDir:   serveOpts.downloadDir,
		ReadOnly:      !serveOpts.yolo,
	})
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		_ = serverContext.Shutdown()
	}()

	mcpSrv, err := newMCPServer(serverContext)
	if err != nil {
		return err
	}

	if serverContext.ReadOnly() {
		logger.Info("starting MCP server in read-only mode (use --yolo to enable write operations)")
	} else {
		logger.Info("starting MCP server with write operations enabled")
	}

	stdioSrv := mcpserver.NewStdioServer(mcpSrv)
	stdioSrv.SetErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))

	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

// newMCPServer creates the MCP server with all Drive tools and resources
// registered.
func newMCPServer(sc *server.ServerContext) (*mcpserver.MCPServer, error) {
	mcpSrv := mcpserver.NewMCPServer("gdriveapp", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false),
	)

	if err := drive_tools.RegisterDriveTools(mcpSrv, sc); err != nil {
		return nil, fmt.Errorf("failed to register Drive tools: %w", err)
	}

	if err := resources.RegisterResources(mcpSrv, sc); err != nil {
		return nil, fmt.Errorf("failed to register resources: %w", err)
	}

	return mcpSrv, nil
}
