package drive

import (
	"strings"
	"time"
)

// Google Drive MIME types.
const (
	MimeTypeGoogleFile   = "application/vnd.google-apps.file"
	MimeTypeFolder       = "application/vnd.google-apps.folder"
	MimeTypeShortcut     = "application/vnd.google-apps.shortcut"
	MimeTypeSpreadsheet  = "application/vnd.google-apps.spreadsheet"
	MimeTypeDocument     = "application/vnd.google-apps.document"
	MimeTypePresentation = "application/vnd.google-apps.presentation"
	MimeTypePhoto        = "application/vnd.google-apps.photo"
	MimeTypeAudio        = "application/vnd.google-apps.audio"
	MimeTypeVideo        = "application/vnd.google-apps.video"
	MimeTypeForm         = "application/vnd.google-apps.form"
	MimeTypeSite         = "application/vnd.google-apps.site"
	MimeTypeScript       = "application/vnd.google-apps.script"
	MimeTypeDrawing      = "application/vnd.google-apps.drawing"

	googleAppsPrefix = "application/vnd.google-apps."
)

// FileInfo represents metadata about a file or folder in Google Drive
type FileInfo struct {
	// ID is the unique identifier for the file
	ID string `json:"id"`

	// Name is the name of the file
	Name string `json:"name"`

	// Kind is the resource kind reported by the API ("drive#file")
	Kind string `json:"kind,omitempty"`

	// MimeType is the MIME type of the file
	MimeType string `json:"mimeType"`

	// Size is the size of the file in bytes (not populated for folders
	// and Google-native documents)
	Size int64 `json:"size,omitempty"`

	// Md5Checksum of the content, for binary files only
	Md5Checksum string `json:"md5Checksum,omitempty"`

	CreatedTime  time.Time `json:"createdTime,omitzero"`
	ModifiedTime time.Time `json:"modifiedTime,omitzero"`

	// Parents are the IDs of the parent folders
	Parents []string `json:"parents,omitempty"`

	Trashed bool `json:"trashed,omitempty"`

	// Path is the slash-separated location built while listing a folder
	// ("<prefix>/<name>/..."). Empty for files not obtained by listing.
	Path string `json:"path,omitempty"`

	// local is the sanitized, OS-specific path relative to the listing
	// root; set together with Path.
	local string
}

// IsFolder reports whether the entry is a Drive folder.
func (f *FileInfo) IsFolder() bool {
	return f.MimeType == MimeTypeFolder
}

// IsGoogleNative reports whether the entry is a Google Workspace object
// (document, sheet, shortcut, ...) that has no binary content of its own.
func (f *FileInfo) IsGoogleNative() bool {
	return strings.HasPrefix(f.MimeType, googleAppsPrefix)
}

// ExportFormat is the format a Google-native document is exported to.
type ExportFormat struct {
	MimeType  string
	Extension string
}

var exportFormats = map[string]ExportFormat{
	MimeTypeDocument:     {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", ".docx"},
	MimeTypeSpreadsheet:  {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ".xlsx"},
	MimeTypePresentation: {"application/vnd.openxmlformats-officedocument.presentationml.presentation", ".pptx"},
	MimeTypeDrawing:      {"image/png", ".png"},
	MimeTypeScript:       {"application/vnd.google-apps.script+json", ".json"},
}

// ExportFormatFor returns the export format for a Google-native MIME type.
// The second result is false for types that cannot be exported (folders,
// shortcuts, forms, sites, ...).
func ExportFormatFor(mimeType string) (ExportFormat, bool) {
	f, ok := exportFormats[mimeType]
	return f, ok
}

// FindOptions narrows FindFiles.
type FindOptions struct {
	// IsFolder restricts results to folders (true) or non-folders (false).
	// Nil means no restriction.
	IsFolder *bool

	// ParentID restricts results to direct children of this folder.
	ParentID string
}

// Bool returns a pointer to b, for FindOptions.IsFolder.
func Bool(b bool) *bool {
	return &b
}

// ListFolderOptions contains options for listing a folder
type ListFolderOptions struct {
	// Recursive lists the contents of subfolders too
	Recursive bool

	// Prefix is prepended to every entry's Path (default: ".")
	Prefix string
}

// UploadOptions contains options for uploading a file
type UploadOptions struct {
	// ParentFolders are the IDs of parent folders where the file should be placed
	ParentFolders []string

	// Description is a short description of the file
	Description string

	// MimeType is the MIME type of the file (e.g., "application/pdf", "image/png")
	// If not specified, the content type is detected from the data
	MimeType string

	// ModifiedTime allows setting a custom modification time
	ModifiedTime *time.Time

	// ChunkSize switches to a resumable upload sent in chunks of this many
	// bytes when the content is larger than one chunk. Zero uses the
	// library default.
	ChunkSize int
}

// DownloadFolderOptions contains options for downloading a folder
type DownloadFolderOptions struct {
	// OutputPath is the local directory to download into (default: ".")
	OutputPath string

	// Resume skips files that already exist locally
	Resume bool

	// Progress, if set, is called with (0, total) once the folder has been
	// listed and again after each entry is processed.
	Progress func(done, total int)
}

// Status is the outcome of downloading one file.
type Status string

const (
	StatusSuccess     Status = "Done!"
	StatusAlready     Status = "Already done!"
	StatusError       Status = "Something went wrong!"
	StatusUnsupported Status = "Not downloadable"
)

// FileResult records what happened to one listed file.
type FileResult struct {
	File      *FileInfo `json:"file"`
	LocalPath string    `json:"localPath"`
	Status    Status    `json:"status"`
	Bytes     int64     `json:"bytes,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// DownloadReport summarizes a folder download.
type DownloadReport struct {
	FolderID   string `json:"folderId"`
	OutputPath string `json:"outputPath"`

	// Files is the full recursive listing, folders included.
	Files []*FileInfo `json:"-"`

	Results []FileResult `json:"results"`

	// Skipped holds the files that were not downloaded, as written to
	// <folderID>.skipped.json.
	Skipped []*FileInfo `json:"skipped"`
}

// Count returns the number of results with the given status.
func (r *DownloadReport) Count(status Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}
