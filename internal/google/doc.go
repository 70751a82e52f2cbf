// Package google handles OAuth2 authorization for the Google Drive API.
//
// Credentials come from a client secret file downloaded from the Google
// Cloud Console ("Desktop app" / installed application). On first use the
// user is sent through a loopback browser flow; the resulting token is cached
// as JSON on disk and refreshed tokens are written back to the same file.
//
// Basic usage:
//
//	client, err := google.Authenticate(ctx, google.AuthConfig{
//		ClientSecretPath: "client_secret.json",
//	})
//	if err != nil {
//		return err
//	}
//	svc, err := drive.NewService(ctx, option.WithHTTPClient(client))
package google
