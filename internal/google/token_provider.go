package google

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// TokenProvider provides OAuth tokens for Google APIs.
type TokenProvider interface {
	// Token returns the current token.
	Token(ctx context.Context) (*oauth2.Token, error)

	// HasToken reports whether a token is available without prompting the user.
	HasToken() bool
}

// FileTokenProvider serves the token cached in a JSON file.
type FileTokenProvider struct {
	path string
}

// NewFileTokenProvider creates a provider reading the token at path.
// An empty path means DefaultTokenPath().
func NewFileTokenProvider(path string) *FileTokenProvider {
	if path == "" {
		path = DefaultTokenPath()
	}
	return &FileTokenProvider{path: path}
}

// Path returns the token file location.
func (p *FileTokenProvider) Path() string {
	return p.path
}

// Token reads the cached token. The token may be expired; refreshing is
// left to the HTTP client built by Authenticate.
func (p *FileTokenProvider) Token(ctx context.Context) (*oauth2.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tok, err := LoadToken(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to get token from file: %w", err)
	}
	return tok, nil
}

// HasToken checks if a usable token is cached.
func (p *FileTokenProvider) HasToken() bool {
	tok, err := LoadToken(p.path)
	return err == nil && tokenUsable(tok)
}
