package google

import "google.golang.org/api/drive/v3"

// DefaultScopes grants full access to the user's Drive. Folder downloads,
// uploads and deletes all need it.
var DefaultScopes = []string{
	drive.DriveScope,
}
