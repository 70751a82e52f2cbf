package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teemow/gdriveapp/internal/drive"
	"github.com/teemow/gdriveapp/internal/google"
	"github.com/teemow/gdriveapp/internal/instrumentation"
)

// ErrShutdown is returned by DriveClient after Shutdown.
var ErrShutdown = errors.New("server is shutting down")

// ClientFactory builds an authorized Drive client.
type ClientFactory func(ctx context.Context) (*drive.Client, error)

// Options configures a ServerContext.
type Options struct {
	// NewClient creates the Drive client on first use.
	NewClient ClientFactory

	// TokenProvider, if set, is checked before NewClient is called so a
	// missing token produces a helpful message instead of a browser flow.
	TokenProvider google.TokenProvider

	Metrics     *instrumentation.Metrics
	AuditLogger *instrumentation.AuditLogger
	Logger      *slog.Logger

	// DownloadDir is the base directory for tools that write files locally.
	DownloadDir string

	// ReadOnly hides tools that modify Drive.
	ReadOnly bool
}

// ServerContext holds the context for the MCP server
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options

	mu       sync.RWMutex
	client   *drive.Client
	shutdown bool
}

// NewServerContext creates a new server context
func NewServerContext(ctx context.Context, opts Options) (*ServerContext, error) {
	if opts.NewClient == nil {
		return nil, errors.New("a Drive client factory is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DownloadDir == "" {
		opts.DownloadDir = "."
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:    shutdownCtx,
		cancel: cancel,
		opts:   opts,
	}, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// DriveClient returns the Drive client, creating and caching it on first use.
func (sc *ServerContext) DriveClient(ctx context.Context) (*drive.Client, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil, ErrShutdown
	}
	if sc.client != nil {
		return sc.client, nil
	}

	if sc.opts.TokenProvider != nil && !sc.opts.TokenProvider.HasToken() {
		return nil, fmt.Errorf("%w: authorize access first by running 'gdriveapp auth'", google.ErrNoToken)
	}

	client, err := sc.opts.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive client: %w", err)
	}

	sc.client = client
	return client, nil
}

// SetDriveClient replaces the cached Drive client.
func (sc *ServerContext) SetDriveClient(client *drive.Client) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.client = client
}

// Metrics returns the metrics recorder, which may be nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.opts.Metrics
}

// AuditLogger returns the audit logger, which may be nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	return sc.opts.AuditLogger
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.opts.Logger
}

// DownloadDir returns the base directory for local downloads.
func (sc *ServerContext) DownloadDir() string {
	return sc.opts.DownloadDir
}

// ReadOnly reports whether tools that modify Drive are disabled.
func (sc *ServerContext) ReadOnly() bool {
	return sc.opts.ReadOnly
}

// HasToken reports whether a cached OAuth token is available. Without a
// TokenProvider it reports true and leaves the check to the client factory.
func (sc *ServerContext) HasToken() bool {
	return sc.opts.TokenProvider == nil || sc.opts.TokenProvider.HasToken()
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
