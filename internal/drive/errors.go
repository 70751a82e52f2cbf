package drive

import (
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"
)

var (
	// ErrMissingID is returned when an operation is called without a file or folder ID.
	ErrMissingID = errors.New("file ID is required")

	// ErrMissingName is returned when creating a file or folder without a name.
	ErrMissingName = errors.New("name is required")

	// ErrInvalidID is returned for IDs that cannot be used in a local file name.
	ErrInvalidID = errors.New("invalid ID")

	// ErrUnsafePath is reported for entries whose name would place them
	// outside the download directory.
	ErrUnsafePath = errors.New("path escapes the output directory")
)

// IsNotFound reports whether err is a Drive "file not found" response.
func IsNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
