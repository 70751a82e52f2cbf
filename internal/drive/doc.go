// Package drive provides a client for the Google Drive v3 API.
//
// The client covers the operations needed to mirror and maintain a Drive
// tree from the command line:
//   - Searching with raw Drive queries or name-based find expressions
//   - Listing a folder, optionally with all of its descendants
//   - Downloading single files or a whole folder, exporting Google-native
//     documents to Office formats
//   - Uploading local files and creating folders
//   - Deleting files
//
// Transient API failures (rate limits, 5xx) are retried with exponential
// backoff. Every API call is traced and recorded in the instrumentation
// metrics.
//
// Example usage:
//
//	httpClient, err := google.Authenticate(ctx, google.AuthConfig{ClientSecretPath: "client_secret.json"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := drive.NewClient(ctx, drive.Config{HTTPClient: httpClient})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Everything named like "report" but not "draft", folders excluded
//	files, err := client.FindFiles(ctx, "report+!draft", drive.FindOptions{IsFolder: drive.Bool(false)})
package drive
