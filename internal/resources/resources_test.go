package resources

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/gdriveapp/internal/drive"
	"github.com/teemow/gdriveapp/internal/server"
)

func readRequest(uri string) mcp.ReadResourceRequest {
	req := mcp.ReadResourceRequest{}
	req.Params.URI = uri
	return req
}

func decodeContents(t *testing.T, contents []mcp.ResourceContents) map[string]any {
	t.Helper()

	require.Len(t, contents, 1)
	text, ok := contents[0].(*mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "application/json", text.MIMEType)

	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &v))
	return v
}

func TestHandleAbout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/about", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"displayName":"Ada","emailAddress":"ada@example.com"},"storageQuota":{"limit":"100","usage":"40","usageInDrive":"30","usageInDriveTrash":"5"}}`))
	}))
	t.Cleanup(srv.Close)

	sc, err := server.NewServerContext(context.Background(), server.Options{
		NewClient: func(ctx context.Context) (*drive.Client, error) {
			return drive.NewClient(ctx, drive.Config{HTTPClient: srv.Client(), Endpoint: srv.URL + "/"})
		},
	})
	require.NoError(t, err)

	contents, err := handleAbout(context.Background(), readRequest(AboutURI), sc)
	require.NoError(t, err)

	v := decodeContents(t, contents)
	assert.Equal(t, "ada@example.com", v["emailAddress"])
	assert.EqualValues(t, 100, v["quotaLimit"])
	assert.EqualValues(t, 40, v["quotaUsage"])
}

func TestHandleAbout_NoClient(t *testing.T) {
	sc, err := server.NewServerContext(context.Background(), server.Options{
		NewClient: func(context.Context) (*drive.Client, error) {
			return nil, errors.New("no token")
		},
	})
	require.NoError(t, err)

	_, err = handleAbout(context.Background(), readRequest(AboutURI), sc)
	assert.ErrorContains(t, err, "google drive is not available")
}

func TestHandleStatus(t *testing.T) {
	sc, err := server.NewServerContext(context.Background(), server.Options{
		NewClient: func(context.Context) (*drive.Client, error) {
			return nil, errors.New("unused")
		},
		DownloadDir: "/srv/drive",
		ReadOnly:    true,
	})
	require.NoError(t, err)

	contents, err := handleStatus(context.Background(), readRequest(StatusURI), sc)
	require.NoError(t, err)

	v := decodeContents(t, contents)
	assert.Equal(t, true, v["readOnly"])
	assert.Equal(t, "/srv/drive", v["downloadDir"])
	assert.Equal(t, true, v["authorized"])
}

func TestRegisterResources(t *testing.T) {
	sc, err := server.NewServerContext(context.Background(), server.Options{
		NewClient: func(context.Context) (*drive.Client, error) {
			return nil, errors.New("unused")
		},
	})
	require.NoError(t, err)

	s := mcpserver.NewMCPServer("test", "test", mcpserver.WithResourceCapabilities(false, false))
	assert.NoError(t, RegisterResources(s, sc))
}
