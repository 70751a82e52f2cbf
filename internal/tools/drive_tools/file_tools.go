package drive_tools

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/gdriveapp/internal/drive"
	"github.com/teemow/gdriveapp/internal/instrumentation"
	"github.com/teemow/gdriveapp/internal/server"
	"github.com/teemow/gdriveapp/internal/tools/batch"
	"github.com/teemow/gdriveapp/internal/tools/common"
)

// maxInlineBytes caps content returned directly in a tool result.
const maxInlineBytes = 5 << 20

// registerFileTools registers file search, download, upload and delete tools
func registerFileTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	searchFilesTool := mcp.NewTool("drive_search_files",
		mcp.WithDescription("Search Google Drive with a raw Drive query (e.g. \"name contains 'report' and mimeType = 'application/pdf'\")"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Drive query language expression"),
		),
	)
	s.AddTool(searchFilesTool, common.InstrumentedToolHandler("drive_search_files", instrumentation.OperationSearch, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSearchFiles(ctx, request, sc)
		}))

	findFilesTool := mcp.NewTool("drive_find_files",
		mcp.WithDescription("Find files by name. Terms are joined with '+'; a term starting with '!' excludes names containing it."),
		mcp.WithString("search",
			mcp.Required(),
			mcp.Description("Name terms, e.g. 'budget+2024+!draft'"),
		),
		mcp.WithString("type",
			mcp.Description("Restrict results: 'any' (default), 'files' or 'folders'"),
		),
		mcp.WithString("parent_id",
			mcp.Description("Only return direct children of this folder"),
		),
	)
	s.AddTool(findFilesTool, common.InstrumentedToolHandler("drive_find_files", instrumentation.OperationSearch, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleFindFiles(ctx, request, sc)
		}))

	getFileTool := mcp.NewTool("drive_get_file",
		mcp.WithDescription("Get metadata for a file or folder in Google Drive"),
		mcp.WithString("file_id",
			mcp.Required(),
			mcp.Description("The ID of the file"),
		),
	)
	s.AddTool(getFileTool, common.InstrumentedToolHandler("drive_get_file", instrumentation.OperationGet, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetFile(ctx, request, sc)
		}))

	downloadFileTool := mcp.NewTool("drive_download_file",
		mcp.WithDescription("Download a file. Google Docs, Sheets, Slides and Drawings are exported to Office/PNG formats. "+
			"Without output_path the content is returned as text, or base64 for binary data."),
		mcp.WithString("file_id",
			mcp.Required(),
			mcp.Description("The ID of the file"),
		),
		mcp.WithString("output_path",
			mcp.Description("Save to this path relative to the download directory instead of returning the content"),
		),
	)
	s.AddTool(downloadFileTool, common.InstrumentedToolHandler("drive_download_file", instrumentation.OperationDownload, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDownloadFile(ctx, request, sc)
		}))

	if sc.ReadOnly() {
		return nil
	}

	uploadFileTool := mcp.NewTool("drive_upload_file",
		mcp.WithDescription("Upload a file to Google Drive, either a local file or inline content"),
		mcp.WithString("local_path",
			mcp.Description("Path of a local file, relative to the download directory"),
		),
		mcp.WithString("name",
			mcp.Description("Name of the new file (required with content)"),
		),
		mcp.WithString("content",
			mcp.Description("Inline file content"),
		),
		mcp.WithBoolean("is_base64",
			mcp.Description("Whether content is base64-encoded (default: false)"),
		),
		mcp.WithString("mime_type",
			mcp.Description("MIME type of inline content (e.g. 'text/csv')"),
		),
		mcp.WithString("parent_id",
			mcp.Description("Comma-separated IDs of parent folders (default: My Drive root)"),
		),
		mcp.WithString("description",
			mcp.Description("A short description of the file"),
		),
	)
	s.AddTool(uploadFileTool, common.InstrumentedToolHandler("drive_upload_file", instrumentation.OperationUpload, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleUploadFile(ctx, request, sc)
		}))

	deleteFilesTool := mcp.NewTool("drive_delete_files",
		mcp.WithDescription("Permanently delete one or more files from Google Drive, bypassing the trash"),
		mcp.WithString("file_ids",
			mcp.Required(),
			mcp.Description("File ID or JSON array of file IDs to delete"),
		),
	)
	s.AddTool(deleteFilesTool, common.InstrumentedToolHandler("drive_delete_files", instrumentation.OperationDelete, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDeleteFiles(ctx, request, sc)
		}))

	return nil
}

func handleSearchFiles(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	query, err := common.RequireString(request.GetArguments(), "query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	client, err := getDriveClient(ctx, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	files, err := client.SearchFiles(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to search files: %v", err)), nil
	}

	return common.JSONResult(map[string]any{
		"count": len(files),
		"files": files,
	}), nil
}

func handleFindFiles(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	search, err := common.RequireString(args, "search")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	opts := drive.FindOptions{ParentID: common.GetString(args, "parent_id")}
	switch t := common.GetString(args, "type"); t {
	case "", "any":
	case "files":
		opts.IsFolder = drive.Bool(false)
	case "folders":
		opts.IsFolder = drive.Bool(true)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("invalid type %q: must be any, files or folders", t)), nil
	}

	client, err := getDriveClient(ctx, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	files, err := client.FindFiles(ctx, search, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to find files: %v", err)), nil
	}

	return common.JSONResult(map[string]any{
		"query": drive.BuildFindQuery(search, opts),
		"count": len(files),
		"files": files,
	}), nil
}

func handleGetFile(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	fileID, err := common.RequireString(request.GetArguments(), "file_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	client, err := getDriveClient(ctx, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	file, err := client.GetFile(ctx, fileID)
	if err != nil {
		if drive.IsNotFound(err) {
			return mcp.NewToolResultError(fmt.Sprintf("File %s not found", fileID)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get file: %v", err)), nil
	}

	return common.JSONResult(file), nil
}

func handleDownloadFile(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	fileID, err := common.RequireString(args, "file_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	client, err := getDriveClient(ctx, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	file, err := client.GetFile(ctx, fileID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get file: %v", err)), nil
	}
	if file.IsFolder() {
		return mcp.NewToolResultError(fmt.Sprintf("%s is a folder, use drive_download_folder", file.Name)), nil
	}

	var format drive.ExportFormat
	if file.IsGoogleNative() {
		var ok bool
		format, ok = drive.ExportFormatFor(file.MimeType)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("%s (%s) cannot be downloaded", file.Name, file.MimeType)), nil
		}
	}

	if outputPath := common.GetString(args, "output_path"); outputPath != "" {
		path, err := resolveLocalPath(sc, outputPath)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var n int64
		if format.MimeType != "" {
			n, err = client.ExportFileTo(ctx, fileID, format.MimeType, path)
		} else {
			n, err = client.DownloadFileTo(ctx, fileID, path)
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to download file: %v", err)), nil
		}

		return common.JSONResult(map[string]any{
			"file":  file,
			"path":  path,
			"bytes": n,
		}), nil
	}

	if format.MimeType == "" && file.Size > maxInlineBytes {
		return mcp.NewToolResultError(fmt.Sprintf("%s is %d bytes, too large to return inline; set output_path", file.Name, file.Size)), nil
	}

	buf := &limitedBuffer{limit: maxInlineBytes}
	if format.MimeType != "" {
		_, err = client.ExportFile(ctx, fileID, format.MimeType, buf)
	} else {
		_, err = client.DownloadFile(ctx, fileID, buf)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to download file: %v", err)), nil
	}

	content := buf.Bytes()
	result := map[string]any{
		"file":  file,
		"bytes": len(content),
	}
	if format.MimeType != "" {
		result["exportMimeType"] = format.MimeType
	}
	if utf8.Valid(content) {
		result["encoding"] = "text"
		result["content"] = string(content)
	} else {
		result["encoding"] = "base64"
		result["content"] = base64.StdEncoding.EncodeToString(content)
	}
	return common.JSONResult(result), nil
}

func handleUploadFile(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	localPath := common.GetString(args, "local_path")
	name := common.GetString(args, "name")
	contentStr := common.GetString(args, "content")
	parents := parseCommaList(common.GetString(args, "parent_id"))

	if localPath == "" && contentStr == "" {
		return mcp.NewToolResultError("either local_path or content is required"), nil
	}
	if localPath != "" && contentStr != "" {
		return mcp.NewToolResultError("local_path and content are mutually exclusive"), nil
	}

	client, err := getDriveClient(ctx, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if localPath != "" {
		path, err := resolveLocalPath(sc, localPath)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(parents) > 1 {
			return mcp.NewToolResultError("a local file can be uploaded into a single parent folder"), nil
		}
		parentID := ""
		if len(parents) == 1 {
			parentID = parents[0]
		}

		file, err := client.UploadLocalFile(ctx, path, parentID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to upload file: %v", err)), nil
		}
		return common.JSONResult(file), nil
	}

	if name == "" {
		return mcp.NewToolResultError("name is required with content"), nil
	}

	var content io.Reader = strings.NewReader(contentStr)
	if common.GetBool(args, "is_base64", false) {
		decoded, err := base64.StdEncoding.DecodeString(contentStr)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to decode base64 content: %v", err)), nil
		}
		content = bytes.NewReader(decoded)
	}

	if len(parents) == 0 {
		parents = []string{drive.RootFolderID}
	}

	file, err := client.UploadFile(ctx, name, content, &drive.UploadOptions{
		ParentFolders: parents,
		Description:   common.GetString(args, "description"),
		MimeType:      common.GetString(args, "mime_type"),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to upload file: %v", err)), nil
	}

	return common.JSONResult(file), nil
}

func handleDeleteFiles(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	fileIDs, err := batch.ParseStringOrArray(request.GetArguments()["file_ids"], "file_ids")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	client, err := getDriveClient(ctx, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	results := batch.ProcessBatch(ctx, fileIDs, func(ctx context.Context, fileID string) (string, error) {
		if err := client.DeleteFile(ctx, fileID); err != nil {
			return "", err
		}
		return fmt.Sprintf("File %s deleted", fileID), nil
	})

	summary := batch.Summarize(results)
	if summary.Successful == 0 {
		return mcp.NewToolResultError(batch.FormatResults(results)), nil
	}
	return mcp.NewToolResultText(batch.FormatResults(results)), nil
}

// limitedBuffer fails writes once more than limit bytes have been written.
type limitedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.buf.Len()+len(p) > b.limit {
		return 0, fmt.Errorf("content exceeds %d bytes; set output_path to save it locally", b.limit)
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}
