package drive_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/gdriveapp/internal/drive"
	"github.com/teemow/gdriveapp/internal/instrumentation"
	"github.com/teemow/gdriveapp/internal/server"
	"github.com/teemow/gdriveapp/internal/tools/common"
)

// registerFolderTools registers folder listing, download and creation tools
func registerFolderTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	listFolderTool := mcp.NewTool("drive_list_folder",
		mcp.WithDescription("List the contents of a Google Drive folder. Each entry carries a path relative to the folder."),
		mcp.WithString("folder_id",
			mcp.Required(),
			mcp.Description("The ID of the folder ('root' for My Drive)"),
		),
		mcp.WithBoolean("recursive",
			mcp.Description("Include the contents of subfolders (default: false)"),
		),
		mcp.WithString("prefix",
			mcp.Description("Prefix for entry paths (default: '.')"),
		),
	)
	s.AddTool(listFolderTool, common.InstrumentedToolHandler("drive_list_folder", instrumentation.OperationList, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListFolder(ctx, request, sc)
		}))

	downloadFolderTool := mcp.NewTool("drive_download_folder",
		mcp.WithDescription("Download every file below a Google Drive folder into a local directory. "+
			"Google-native documents are exported; failures are reported, not fatal."),
		mcp.WithString("folder_id",
			mcp.Required(),
			mcp.Description("The ID of the folder"),
		),
		mcp.WithString("output_path",
			mcp.Description("Target directory relative to the download directory (default: the download directory)"),
		),
		mcp.WithBoolean("resume",
			mcp.Description("Skip files that already exist locally (default: true)"),
		),
	)
	s.AddTool(downloadFolderTool, common.InstrumentedToolHandler("drive_download_folder", instrumentation.OperationDownload, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDownloadFolder(ctx, request, sc)
		}))

	if sc.ReadOnly() {
		return nil
	}

	createFolderTool := mcp.NewTool("drive_create_folder",
		mcp.WithDescription("Create a new folder in Google Drive"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("The name of the folder"),
		),
		mcp.WithString("parent_id",
			mcp.Description("Comma-separated IDs of parent folders (default: My Drive root)"),
		),
	)
	s.AddTool(createFolderTool, common.InstrumentedToolHandler("drive_create_folder", instrumentation.OperationCreate, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCreateFolder(ctx, request, sc)
		}))

	return nil
}

func handleListFolder(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	folderID, err := common.RequireString(args, "folder_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	client, err := getDriveClient(ctx, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	files, err := client.ListFolder(ctx, folderID, drive.ListFolderOptions{
		Recursive: common.GetBool(args, "recursive", false),
		Prefix:    common.GetString(args, "prefix"),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list folder: %v", err)), nil
	}

	return common.JSONResult(map[string]any{
		"folderId": folderID,
		"count":    len(files),
		"files":    files,
	}), nil
}

// folderSummary is the tool result of drive_download_folder. Per-file
// results are limited to the ones that did not download.
type folderSummary struct {
	FolderID    string             `json:"folderId"`
	OutputPath  string             `json:"outputPath"`
	Total       int                `json:"total"`
	Downloaded  int                `json:"downloaded"`
	Already     int                `json:"alreadyPresent"`
	Failed      int                `json:"failed"`
	Unsupported int                `json:"unsupported"`
	Problems    []drive.FileResult `json:"problems,omitempty"`
	Error       string             `json:"error,omitempty"`
}

func handleDownloadFolder(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	folderID, err := common.RequireString(args, "folder_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	outputPath, err := resolveLocalPath(sc, common.GetString(args, "output_path"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	client, err := getDriveClient(ctx, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	report, runErr := client.DownloadFolder(ctx, folderID, drive.DownloadFolderOptions{
		OutputPath: outputPath,
		Resume:     common.GetBool(args, "resume", true),
	})
	if report == nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to download folder: %v", runErr)), nil
	}

	summary := folderSummary{
		FolderID:    folderID,
		OutputPath:  outputPath,
		Total:       len(report.Results),
		Downloaded:  report.Count(drive.StatusSuccess),
		Already:     report.Count(drive.StatusAlready),
		Failed:      report.Count(drive.StatusError),
		Unsupported: report.Count(drive.StatusUnsupported),
	}
	for _, res := range report.Results {
		if res.Status == drive.StatusError || res.Status == drive.StatusUnsupported {
			summary.Problems = append(summary.Problems, res)
		}
	}
	if runErr != nil {
		summary.Error = runErr.Error()
		return mcp.NewToolResultError(common.ResultText(common.JSONResult(summary))), nil
	}

	return common.JSONResult(summary), nil
}

func handleCreateFolder(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	name, err := common.RequireString(args, "name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	parents := parseCommaList(common.GetString(args, "parent_id"))
	if len(parents) == 0 {
		parents = []string{drive.RootFolderID}
	}

	client, err := getDriveClient(ctx, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	folder, err := client.CreateFolder(ctx, name, parents)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create folder: %v", err)), nil
	}

	return common.JSONResult(folder), nil
}
