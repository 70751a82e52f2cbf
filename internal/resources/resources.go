package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/gdriveapp/internal/server"
)

const (
	AboutURI  = "drive://about"
	StatusURI = "gdriveapp://status"
)

// RegisterResources registers the account and server status resources.
func RegisterResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	aboutResource := mcp.NewResource(
		AboutURI,
		"Google Drive Account",
		mcp.WithResourceDescription("The authorized Google account and its Drive storage quota"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(aboutResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleAbout(ctx, request, sc)
	})

	statusResource := mcp.NewResource(
		StatusURI,
		"Server Status",
		mcp.WithResourceDescription("Whether write tools are enabled, where files are downloaded and whether Drive is authorized"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(statusResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleStatus(ctx, request, sc)
	})

	return nil
}

// handleAbout returns the account name, email and quota
func handleAbout(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	client, err := sc.DriveClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("google drive is not available: %w", err)
	}

	info, err := client.About(ctx)
	if err != nil {
		return nil, err
	}

	return jsonContents(request.Params.URI, info)
}

// handleStatus never contacts Drive
func handleStatus(_ context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	status := map[string]interface{}{
		"readOnly":    sc.ReadOnly(),
		"downloadDir": sc.DownloadDir(),
		"authorized":  sc.HasToken(),
	}
	return jsonContents(request.Params.URI, status)
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource data: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
