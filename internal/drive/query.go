package drive

import (
	"context"
	"fmt"
	"strings"
)

var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// escapeQueryValue escapes a value for use inside a single-quoted Drive
// query string.
func escapeQueryValue(v string) string {
	return queryEscaper.Replace(v)
}

// BuildFindQuery turns a find expression into a Drive query.
//
// The search string is split on '+'. Each part must appear in the name;
// a part starting with '!' must not. For example "hello+!cruel+world"
// matches names containing "hello" and "world" but not "cruel".
// Empty parts are ignored.
func BuildFindQuery(search string, opts FindOptions) string {
	var conditions []string

	for _, part := range strings.Split(search, "+") {
		if negated, ok := strings.CutPrefix(part, "!"); ok {
			if negated != "" {
				conditions = append(conditions, fmt.Sprintf("not name contains '%s'", escapeQueryValue(negated)))
			}
			continue
		}
		if part != "" {
			conditions = append(conditions, fmt.Sprintf("name contains '%s'", escapeQueryValue(part)))
		}
	}

	if opts.IsFolder != nil {
		op := "!="
		if *opts.IsFolder {
			op = "="
		}
		conditions = append(conditions, fmt.Sprintf("mimeType %s '%s'", op, MimeTypeFolder))
	}

	if opts.ParentID != "" {
		conditions = append(conditions, parentQuery(opts.ParentID))
	}

	return strings.Join(conditions, " and ")
}

func parentQuery(folderID string) string {
	return fmt.Sprintf("'%s' in parents", escapeQueryValue(folderID))
}

// FindFiles searches by name using a find expression (see BuildFindQuery).
func (c *Client) FindFiles(ctx context.Context, search string, opts FindOptions) ([]*FileInfo, error) {
	return c.SearchFiles(ctx, BuildFindQuery(search, opts))
}
