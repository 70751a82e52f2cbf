package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/teemow/gdriveapp/internal/drive"
)

// printFiles writes files as indented JSON, or as a table of name (or
// listing path, when set), ID and MIME type.
func printFiles(w io.Writer, files []*drive.FileInfo, asJSON bool) error {
	if asJSON {
		if files == nil {
			files = []*drive.FileInfo{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(files)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, f := range files {
		name := f.Name
		if f.Path != "" {
			name = f.Path
		}
		if f.IsFolder() {
			name += "/"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, f.ID, f.MimeType)
	}
	return tw.Flush()
}
