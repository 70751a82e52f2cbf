package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/teemow/gdriveapp/internal/instrumentation"
	"github.com/teemow/gdriveapp/internal/logging"
)

// ListFolder lists the direct children of a folder. Each entry's Path is
// set to prefix + "/" + name.
//
// In recursive mode each subfolder is followed directly by its own
// descendants (depth-first, pre-order). A folder reachable through more
// than one parent is expanded only once.
func (c *Client) ListFolder(ctx context.Context, folderID string, opts ListFolderOptions) ([]*FileInfo, error) {
	if folderID == "" {
		return nil, ErrMissingID
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "."
	}

	visited := map[string]bool{folderID: true}
	result := []*FileInfo{}
	if err := c.listFolder(ctx, folderID, prefix, "", opts.Recursive, visited, &result); err != nil {
		return nil, fmt.Errorf("failed to list folder %s: %w", folderID, err)
	}
	return result, nil
}

func (c *Client) listFolder(ctx context.Context, folderID, prefix, local string, recursive bool, visited map[string]bool, result *[]*FileInfo) error {
	children, err := c.search(ctx, instrumentation.OperationList, parentQuery(folderID))
	if err != nil {
		return err
	}

	for _, f := range children {
		f.Path = prefix + "/" + f.Name
		f.local = filepath.Join(local, safeName(f.Name))
		c.logger.Debug("listed", logging.Path(f.Path))
		*result = append(*result, f)

		if !recursive || !f.IsFolder() || visited[f.ID] {
			continue
		}
		visited[f.ID] = true
		if err := c.listFolder(ctx, f.ID, f.Path, f.local, recursive, visited, result); err != nil {
			return err
		}
	}
	return nil
}

// safeName turns a Drive name into a single local path element.
// Separators become "_" and the dot entries are renamed.
func safeName(name string) string {
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, name)

	switch name {
	case "":
		return "_"
	case ".", "..":
		return strings.Repeat("_", len(name))
	}
	return name
}

// checkFolderID rejects IDs that would not stay a plain file name when
// used for the listing and skipped reports.
func checkFolderID(folderID string) error {
	if folderID == "" {
		return ErrMissingID
	}
	if strings.ContainsAny(folderID, `/\`) || !filepath.IsLocal(folderID) {
		return fmt.Errorf("%w: %q", ErrInvalidID, folderID)
	}
	return nil
}

// withIDSuffix inserts "_<id>" before the extension of path.
func withIDSuffix(path, id string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_" + id + ext
}

// DownloadFolder mirrors a folder tree into opts.OutputPath.
//
// The recursive listing is written to <out>/<folderID>.filelist.json before
// anything is downloaded. Binary files are downloaded below out following
// their listed path; Google-native documents are exported (see ExportFormatFor) with the
// format's extension appended. Per-file failures are logged and collected
// rather than aborting the run; the files not downloaded are written to
// <out>/<folderID>.skipped.json. Only listing and report-writing errors, or
// a canceled context, are returned.
//
// Local paths are built from sanitized names and never leave out. Entries
// that would are reported as errors. Sibling files sharing a name get their
// ID appended so each one lands in its own file.
func (c *Client) DownloadFolder(ctx context.Context, folderID string, opts DownloadFolderOptions) (*DownloadReport, error) {
	if err := checkFolderID(folderID); err != nil {
		return nil, err
	}

	out := opts.OutputPath
	if out == "" {
		out = "."
	}
	if err := os.MkdirAll(out, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	logger := c.logger.With(logging.FolderID(folderID))

	files, err := c.ListFolder(ctx, folderID, ListFolderOptions{Recursive: true, Prefix: out})
	if err != nil {
		return nil, err
	}
	if err := writeJSONFile(filepath.Join(out, folderID+".filelist.json"), files); err != nil {
		return nil, err
	}

	report := &DownloadReport{
		FolderID:   folderID,
		OutputPath: out,
		Files:      files,
		Results:    []FileResult{},
		Skipped:    []*FileInfo{},
	}

	progress := opts.Progress
	if progress == nil {
		progress = func(int, int) {}
	}
	progress(0, len(files))

	claimed := map[string]string{}

	var runErr error
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		local, ok := localPath(out, f)
		switch {
		case !ok:
			logger.Error("refusing to write outside the output directory", logging.FileID(f.ID), logging.Path(f.Path))
			report.Results = append(report.Results, FileResult{File: f, Status: StatusError, Error: ErrUnsafePath.Error()})
			report.Skipped = append(report.Skipped, f)
		case f.IsFolder():
			if err := os.MkdirAll(local, 0755); err != nil {
				logger.Warn("failed to create folder", logging.Path(local), logging.Err(err))
			}
		default:
			res := c.downloadEntry(ctx, f, local, opts.Resume, claimed)
			report.Results = append(report.Results, res)

			switch res.Status {
			case StatusError:
				logger.Error("couldn't download file", logging.FileID(f.ID), logging.Path(f.Path), slog.String("error", res.Error))
				report.Skipped = append(report.Skipped, f)
			case StatusUnsupported:
				logger.Warn("skipping file without a download format", logging.FileID(f.ID), slog.String("mime_type", f.MimeType))
				report.Skipped = append(report.Skipped, f)
			}
		}

		progress(i+1, len(files))
	}

	if err := writeJSONFile(filepath.Join(out, folderID+".skipped.json"), report.Skipped); err != nil {
		return report, errors.Join(runErr, err)
	}

	logger.Info("folder download finished",
		logging.Count(len(files)),
		slog.Int("downloaded", report.Count(StatusSuccess)),
		slog.Int("already_present", report.Count(StatusAlready)),
		slog.Int("skipped", len(report.Skipped)))

	return report, runErr
}

// localPath returns where f is stored below out, and false if the entry
// has no path that stays inside it.
func localPath(out string, f *FileInfo) (string, bool) {
	if f.local == "" || !filepath.IsLocal(f.local) {
		return "", false
	}
	return filepath.Join(out, f.local), true
}

// downloadEntry fetches one file to local. claimed maps the local paths
// already used in this run to the file that owns them.
func (c *Client) downloadEntry(ctx context.Context, f *FileInfo, local string, resume bool, claimed map[string]string) FileResult {
	res := FileResult{File: f, LocalPath: local}

	var exportMime string
	if f.IsGoogleNative() {
		format, ok := ExportFormatFor(f.MimeType)
		if !ok {
			res.Status = StatusUnsupported
			return res
		}
		exportMime = format.MimeType
		if !strings.EqualFold(filepath.Ext(local), format.Extension) {
			res.LocalPath = local + format.Extension
		}
	}

	if owner, taken := claimed[res.LocalPath]; taken && owner != f.ID {
		renamed := withIDSuffix(res.LocalPath, f.ID)
		c.logger.Warn("duplicate name in folder, storing under a new name",
			logging.FileID(f.ID), logging.Path(res.LocalPath), slog.String("renamed", renamed))
		res.LocalPath = renamed
	}
	claimed[res.LocalPath] = f.ID

	if resume {
		if info, err := os.Stat(res.LocalPath); err == nil && info.Mode().IsRegular() {
			res.Status = StatusAlready
			return res
		}
	}

	var (
		n   int64
		err error
	)
	if exportMime != "" {
		n, err = c.ExportFileTo(ctx, f.ID, exportMime, res.LocalPath)
	} else {
		n, err = c.DownloadFileTo(ctx, f.ID, res.LocalPath)
	}
	res.Bytes = n
	if err != nil {
		res.Status = StatusError
		res.Error = err.Error()
		return res
	}

	res.Status = StatusSuccess
	return res
}

// DumpFilesInfo writes a listing to <prefix>.file.json and the entries'
// paths, one per line, to <prefix>.paths.txt. The prefix defaults to "info".
func DumpFilesInfo(files []*FileInfo, prefix string) error {
	if prefix == "" {
		prefix = "info"
	}

	if err := writeJSONFile(prefix+".file.json", files); err != nil {
		return err
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	if err := os.WriteFile(prefix+".paths.txt", []byte(strings.Join(paths, "\n")), 0644); err != nil {
		return fmt.Errorf("failed to write paths file: %w", err)
	}
	return nil
}

// writeJSONFile writes v as indented JSON without HTML escaping, so names
// are stored as-is.
func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
