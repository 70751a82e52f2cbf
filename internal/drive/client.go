package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teemow/gdriveapp/internal/instrumentation"
	"github.com/teemow/gdriveapp/internal/logging"
)

const (
	fileFields = "id,name,kind,mimeType,size,md5Checksum,createdTime,modifiedTime,parents,trashed"
	listFields = "nextPageToken,files(" + fileFields + ")"

	// RootFolderID is the alias the API accepts for the user's My Drive root.
	RootFolderID = "root"
)

// Config configures a Client.
type Config struct {
	// HTTPClient must carry the OAuth credentials (see google.Authenticate).
	HTTPClient *http.Client

	// Endpoint overrides the API base URL. Used by tests.
	Endpoint string

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
	Retry   RetryConfig
}

// Client wraps the Google Drive API service
type Client struct {
	service *drive.Service
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	retry   RetryConfig
}

// NewClient creates a new Google Drive client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.HTTPClient == nil {
		return nil, errors.New("an authorized HTTP client is required")
	}

	opts := []option.ClientOption{option.WithHTTPClient(cfg.HTTPClient)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	driveService, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		service: driveService,
		logger:  logging.WithService(logger, instrumentation.ServiceDrive),
		metrics: cfg.Metrics,
		retry:   cfg.Retry.withDefaults(),
	}, nil
}

// SearchFiles runs a raw Drive query (the "q" parameter) and returns every
// match, following pagination until the result set is exhausted.
// See https://developers.google.com/drive/api/guides/search-files
func (c *Client) SearchFiles(ctx context.Context, query string) ([]*FileInfo, error) {
	files, err := c.search(ctx, instrumentation.OperationSearch, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search files: %w", err)
	}
	return files, nil
}

func (c *Client) search(ctx context.Context, operation, query string) ([]*FileInfo, error) {
	var files []*FileInfo
	pageToken := ""

	for {
		var page *drive.FileList
		err := c.call(ctx, operation, true, func(ctx context.Context) error {
			call := c.service.Files.List().
				Context(ctx).
				Spaces("drive").
				Fields(listFields)
			if query != "" {
				call = call.Q(query)
			}
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}

			var err error
			page, err = call.Do()
			return err
		}, attribute.String(instrumentation.SpanAttrQuery, query))
		if err != nil {
			return nil, err
		}

		for _, f := range page.Files {
			fi := convertToFileInfo(f)
			c.logger.Debug("found file", slog.String("name", fi.Name), logging.FileID(fi.ID))
			files = append(files, fi)
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			return files, nil
		}
	}
}

// GetFile retrieves metadata for a specific file
func (c *Client) GetFile(ctx context.Context, fileID string) (*FileInfo, error) {
	if fileID == "" {
		return nil, ErrMissingID
	}

	var file *drive.File
	err := c.call(ctx, instrumentation.OperationGet, true, func(ctx context.Context) error {
		var err error
		file, err = c.service.Files.Get(fileID).Context(ctx).Fields(fileFields).Do()
		return err
	}, attribute.String(instrumentation.SpanAttrFileID, fileID))
	if err != nil {
		return nil, fmt.Errorf("failed to get file %s: %w", fileID, err)
	}

	return convertToFileInfo(file), nil
}

// DownloadFile streams the content of a binary file to w and returns the
// number of bytes written. Google-native documents must be exported instead.
func (c *Client) DownloadFile(ctx context.Context, fileID string, w io.Writer) (int64, error) {
	if fileID == "" {
		return 0, ErrMissingID
	}

	n, err := c.fetch(ctx, instrumentation.OperationDownload, fileID, w, func(ctx context.Context) (*http.Response, error) {
		return c.service.Files.Get(fileID).Context(ctx).Download()
	})
	if err != nil {
		return n, fmt.Errorf("failed to download file %s: %w", fileID, err)
	}
	return n, nil
}

// ExportFile converts a Google-native document to mimeType and streams the
// result to w.
func (c *Client) ExportFile(ctx context.Context, fileID, mimeType string, w io.Writer) (int64, error) {
	if fileID == "" {
		return 0, ErrMissingID
	}
	if mimeType == "" {
		return 0, errors.New("export MIME type is required")
	}

	n, err := c.fetch(ctx, instrumentation.OperationExport, fileID, w, func(ctx context.Context) (*http.Response, error) {
		return c.service.Files.Export(fileID, mimeType).Context(ctx).Download()
	})
	if err != nil {
		return n, fmt.Errorf("failed to export file %s: %w", fileID, err)
	}
	return n, nil
}

// fetch retries opening the media response, then copies the body once.
// A failure mid-copy is not retried since w may already hold partial data.
func (c *Client) fetch(ctx context.Context, operation, fileID string, w io.Writer, open func(ctx context.Context) (*http.Response, error)) (int64, error) {
	var n int64
	err := c.call(ctx, operation, true, func(ctx context.Context) error {
		resp, err := open(ctx)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		n, err = io.Copy(w, resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to read content: %w", err))
		}
		return nil
	}, attribute.String(instrumentation.SpanAttrFileID, fileID))

	c.metrics.RecordTransferBytes(ctx, instrumentation.DirectionDownload, n)
	return n, err
}

// DownloadFileTo downloads a binary file to path, creating parent
// directories. The content is written to a temporary file in the same
// directory and renamed into place, so path never holds a partial file.
func (c *Client) DownloadFileTo(ctx context.Context, fileID, path string) (int64, error) {
	if fileID == "" {
		return 0, ErrMissingID
	}
	return writeFileAtomic(path, func(w io.Writer) (int64, error) {
		return c.DownloadFile(ctx, fileID, w)
	})
}

// ExportFileTo exports a Google-native document to path, like DownloadFileTo.
func (c *Client) ExportFileTo(ctx context.Context, fileID, mimeType, path string) (int64, error) {
	if fileID == "" {
		return 0, ErrMissingID
	}
	return writeFileAtomic(path, func(w io.Writer) (int64, error) {
		return c.ExportFile(ctx, fileID, mimeType, w)
	})
}

// UploadFile uploads content to Google Drive under the given name.
//
// Retries need to resend the content, so they only happen when content is
// an io.Seeker.
func (c *Client) UploadFile(ctx context.Context, name string, content io.Reader, options *UploadOptions) (*FileInfo, error) {
	if name == "" {
		return nil, ErrMissingName
	}
	if content == nil {
		return nil, errors.New("file content is required")
	}

	file := &drive.File{
		Name: name,
	}

	var mediaOpts []googleapi.MediaOption
	if options != nil {
		if len(options.ParentFolders) > 0 {
			file.Parents = options.ParentFolders
		}
		if options.Description != "" {
			file.Description = options.Description
		}
		if options.MimeType != "" {
			file.MimeType = options.MimeType
			mediaOpts = append(mediaOpts, googleapi.ContentType(options.MimeType))
		}
		if options.ModifiedTime != nil {
			file.ModifiedTime = options.ModifiedTime.Format(time.RFC3339)
		}
		if options.ChunkSize > 0 {
			mediaOpts = append(mediaOpts, googleapi.ChunkSize(options.ChunkSize))
		}
	}

	seeker, retryable := content.(io.Seeker)

	var (
		driveFile *drive.File
		sent      int64
	)
	err := c.call(ctx, instrumentation.OperationUpload, retryable, func(ctx context.Context) error {
		if seeker != nil {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to rewind content: %w", err))
			}
		}
		cr := &countingReader{r: content}

		var err error
		driveFile, err = c.service.Files.Create(file).
			Context(ctx).
			Media(cr, mediaOpts...).
			Fields(fileFields).
			Do()
		sent = cr.n
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}

	c.metrics.RecordTransferBytes(ctx, instrumentation.DirectionUpload, sent)
	return convertToFileInfo(driveFile), nil
}

// UploadLocalFile uploads the file at localPath into the folder parentID
// (default: the My Drive root) using a resumable, chunked upload. The MIME
// type is derived from the file extension when it is known.
func (c *Client) UploadLocalFile(ctx context.Context, localPath, parentID string) (*FileInfo, error) {
	if parentID == "" {
		parentID = RootFolderID
	}

	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", localPath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", localPath)
	}

	file, err := c.UploadFile(ctx, filepath.Base(localPath), f, &UploadOptions{
		ParentFolders: []string{parentID},
		MimeType:      mime.TypeByExtension(filepath.Ext(localPath)),
		ChunkSize:     googleapi.DefaultUploadChunkSize,
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("file uploaded",
		logging.Path(localPath),
		slog.String("name", file.Name),
		logging.FileID(file.ID))
	return file, nil
}

// CreateFolder creates a new folder in Google Drive
func (c *Client) CreateFolder(ctx context.Context, name string, parentFolders []string) (*FileInfo, error) {
	if name == "" {
		return nil, ErrMissingName
	}

	file := &drive.File{
		Name:     name,
		MimeType: MimeTypeFolder,
	}

	if len(parentFolders) > 0 {
		file.Parents = parentFolders
	}

	// Not retried: a create that timed out may still have succeeded.
	var driveFile *drive.File
	err := c.call(ctx, instrumentation.OperationCreate, false, func(ctx context.Context) error {
		var err error
		driveFile, err = c.service.Files.Create(file).Context(ctx).Fields(fileFields).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}

	return convertToFileInfo(driveFile), nil
}

// DeleteFile permanently deletes a file, bypassing the trash.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	if fileID == "" {
		return ErrMissingID
	}

	err := c.call(ctx, instrumentation.OperationDelete, true, func(ctx context.Context) error {
		return c.service.Files.Delete(fileID).Context(ctx).Do()
	}, attribute.String(instrumentation.SpanAttrFileID, fileID))
	if err != nil {
		return fmt.Errorf("failed to delete file %s: %w", fileID, err)
	}

	c.logger.Info("file deleted", logging.FileID(fileID))
	return nil
}

// convertToFileInfo converts a Drive API File to our FileInfo type
func convertToFileInfo(f *drive.File) *FileInfo {
	fileInfo := &FileInfo{
		ID:          f.Id,
		Name:        f.Name,
		Kind:        f.Kind,
		MimeType:    f.MimeType,
		Size:        f.Size,
		Md5Checksum: f.Md5Checksum,
		Parents:     f.Parents,
		Trashed:     f.Trashed,
	}

	if f.CreatedTime != "" {
		if t, err := time.Parse(time.RFC3339, f.CreatedTime); err == nil {
			fileInfo.CreatedTime = t
		}
	}
	if f.ModifiedTime != "" {
		if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
			fileInfo.ModifiedTime = t
		}
	}

	return fileInfo
}

type countingReader struct {
	r io.Reader
	n int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}

// writeFileAtomic creates path's directory, writes to a temp file next to
// path and renames it into place on success.
func writeFileAtomic(path string, write func(w io.Writer) (int64, error)) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".gdriveapp-*.part")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	n, err := write(tmp)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close temp file: %w", closeErr)
	}
	if err != nil {
		return n, err
	}

	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return n, fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return n, fmt.Errorf("failed to move download into place: %w", err)
	}
	return n, nil
}
