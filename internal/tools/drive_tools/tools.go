package drive_tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/gdriveapp/internal/drive"
	"github.com/teemow/gdriveapp/internal/server"
)

// RegisterDriveTools registers all Google Drive tools with the MCP server.
// Tools that modify Drive are skipped when sc is read-only.
func RegisterDriveTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if err := registerFileTools(s, sc); err != nil {
		return fmt.Errorf("failed to register file tools: %w", err)
	}

	if err := registerFolderTools(s, sc); err != nil {
		return fmt.Errorf("failed to register folder tools: %w", err)
	}

	return nil
}

func getDriveClient(ctx context.Context, sc *server.ServerContext) (*drive.Client, error) {
	client, err := sc.DriveClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("google drive is not available: %w", err)
	}
	return client, nil
}

// resolveLocalPath joins rel onto the download directory. Absolute paths
// and paths that leave the directory are rejected.
func resolveLocalPath(sc *server.ServerContext, rel string) (string, error) {
	if rel == "" {
		return sc.DownloadDir(), nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if !filepath.IsLocal(cleaned) {
		return "", fmt.Errorf("path %q must be relative to the download directory", rel)
	}
	return filepath.Join(sc.DownloadDir(), cleaned), nil
}

// parseCommaList parses a comma-separated list of IDs
func parseCommaList(s string) []string {
	if s == "" {
		return nil
	}

	var result []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
