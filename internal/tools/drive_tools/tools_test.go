package drive_tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	drive "google.golang.org/api/drive/v3"

	gdrive "github.com/teemow/gdriveapp/internal/drive"
	"github.com/teemow/gdriveapp/internal/google"
	"github.com/teemow/gdriveapp/internal/server"
	"github.com/teemow/gdriveapp/internal/tools/common"
)

var parentRe = regexp.MustCompile(`'([^']+)' in parents`)

// stubDrive serves the subset of the Drive v3 API the tools use.
type stubDrive struct {
	mu      sync.Mutex
	files   map[string]*drive.File
	order   []string
	content map[string][]byte
	uploads map[string][]byte
	queries []string
	deleted []string
	nextID  int
}

func newStubDrive() *stubDrive {
	return &stubDrive{
		files:   make(map[string]*drive.File),
		content: make(map[string][]byte),
		uploads: make(map[string][]byte),
	}
}

func (sd *stubDrive) add(id, name, mimeType, parent string, content []byte) {
	sd.files[id] = &drive.File{
		Id:       id,
		Name:     name,
		MimeType: mimeType,
		Parents:  []string{parent},
		Size:     int64(len(content)),
	}
	sd.order = append(sd.order, id)
	if content != nil {
		sd.content[id] = content
	}
}

func (sd *stubDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sd.mu.Lock()
	defer sd.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/files":
		q := r.URL.Query().Get("q")
		sd.queries = append(sd.queries, q)
		list := &drive.FileList{Files: []*drive.File{}}
		for _, id := range sd.order {
			f, ok := sd.files[id]
			if !ok {
				continue
			}
			if m := parentRe.FindStringSubmatch(q); m != nil && f.Parents[0] != m[1] {
				continue
			}
			list.Files = append(list.Files, f)
		}
		writeJSON(w, list)
	case r.Method == http.MethodPost && r.URL.Path == "/files":
		var meta drive.File
		_ = json.NewDecoder(r.Body).Decode(&meta)
		writeJSON(w, sd.create(meta, nil))
	case r.Method == http.MethodPost && r.URL.Path == "/upload/drive/v3/files":
		_, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		mr := multipart.NewReader(r.Body, params["boundary"])
		var meta drive.File
		part, err := mr.NextPart()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewDecoder(part).Decode(&meta)
		part, err = mr.NextPart()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		body, _ := io.ReadAll(part)
		writeJSON(w, sd.create(meta, body))
	case strings.HasPrefix(r.URL.Path, "/files/"):
		id, sub, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/files/"), "/")
		f, ok := sd.files[id]
		if !ok {
			writeNotFound(w)
			return
		}
		switch {
		case r.Method == http.MethodDelete:
			delete(sd.files, id)
			sd.deleted = append(sd.deleted, id)
			w.WriteHeader(http.StatusNoContent)
		case sub == "export":
			_, _ = fmt.Fprintf(w, "%s as %s", f.Name, r.URL.Query().Get("mimeType"))
		case r.URL.Query().Get("alt") == "media":
			_, _ = w.Write(sd.content[id])
		default:
			writeJSON(w, f)
		}
	default:
		http.NotFound(w, r)
	}
}

func (sd *stubDrive) create(meta drive.File, body []byte) *drive.File {
	sd.nextID++
	f := meta
	f.Id = fmt.Sprintf("new%d", sd.nextID)
	if body != nil {
		f.Size = int64(len(body))
		sd.uploads[f.Name] = body
	}
	sd.files[f.Id] = &f
	sd.order = append(sd.order, f.Id)
	return &f
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_, _ = io.WriteString(w, `{"error":{"code":404,"message":"File not found","errors":[{"reason":"notFound"}]}}`)
}

type testEnv struct {
	drive  *stubDrive
	server *mcpserver.MCPServer
	sc     *server.ServerContext
	dir    string
}

func newTestEnv(t *testing.T, readOnly bool) *testEnv {
	t.Helper()

	sd := newStubDrive()
	srv := httptest.NewServer(sd)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	sc, err := server.NewServerContext(context.Background(), server.Options{
		NewClient: func(ctx context.Context) (*gdrive.Client, error) {
			return gdrive.NewClient(ctx, gdrive.Config{
				HTTPClient: srv.Client(),
				Endpoint:   srv.URL + "/",
				Retry:      gdrive.RetryConfig{MaxTries: 1},
			})
		},
		DownloadDir: dir,
		ReadOnly:    readOnly,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	s := mcpserver.NewMCPServer("gdriveapp-test", "test", mcpserver.WithToolCapabilities(true))
	require.NoError(t, RegisterDriveTools(s, sc))

	return &testEnv{drive: sd, server: s, sc: sc, dir: dir}
}

func (e *testEnv) call(t *testing.T, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()

	tool, ok := e.server.ListTools()[name]
	require.True(t, ok, "tool %s is not registered", name)

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	result, err := tool.Handler(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func decode(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()

	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(common.ResultText(result)), &v), common.ResultText(result))
	return v
}

func toolNames(s *mcpserver.MCPServer) []string {
	var names []string
	for name := range s.ListTools() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func TestRegisterDriveTools(t *testing.T) {
	readTools := []string{
		"drive_download_file",
		"drive_download_folder",
		"drive_find_files",
		"drive_get_file",
		"drive_list_folder",
		"drive_search_files",
	}

	t.Run("read-only", func(t *testing.T) {
		env := newTestEnv(t, true)
		assert.Equal(t, readTools, toolNames(env.server))
	})

	t.Run("read-write", func(t *testing.T) {
		env := newTestEnv(t, false)
		want := append([]string{"drive_create_folder", "drive_delete_files"}, readTools...)
		want = append(want, "drive_upload_file")
		sort.Strings(want)
		assert.Equal(t, want, toolNames(env.server))
	})
}

func TestFindFiles(t *testing.T) {
	env := newTestEnv(t, true)
	env.drive.add("f1", "budget 2024.xlsx", "application/vnd.ms-excel", "root", []byte("x"))

	result := env.call(t, "drive_find_files", map[string]interface{}{
		"search": "budget+!draft",
		"type":   "files",
	})
	require.False(t, result.IsError, common.ResultText(result))

	v := decode(t, result)
	assert.Equal(t, "name contains 'budget' and not name contains 'draft' and mimeType != 'application/vnd.google-apps.folder'", v["query"])
	assert.EqualValues(t, 1, v["count"])
	assert.Equal(t, []string{v["query"].(string)}, env.drive.queries)
}

func TestFindFiles_InvalidType(t *testing.T) {
	env := newTestEnv(t, true)

	result := env.call(t, "drive_find_files", map[string]interface{}{"search": "x", "type": "links"})
	assert.True(t, result.IsError)
	assert.Contains(t, common.ResultText(result), "invalid type")
}

func TestSearchFiles_RequiresQuery(t *testing.T) {
	env := newTestEnv(t, true)

	result := env.call(t, "drive_search_files", map[string]interface{}{})
	assert.True(t, result.IsError)
	assert.Equal(t, "query is required", common.ResultText(result))
}

func TestListFolder_Recursive(t *testing.T) {
	env := newTestEnv(t, true)
	env.drive.add("docs", "docs", gdrive.MimeTypeFolder, "top", nil)
	env.drive.add("a", "a.txt", "text/plain", "docs", []byte("a"))
	env.drive.add("b", "b.txt", "text/plain", "top", []byte("b"))

	result := env.call(t, "drive_list_folder", map[string]interface{}{
		"folder_id": "top",
		"recursive": true,
	})
	require.False(t, result.IsError, common.ResultText(result))

	var v struct {
		Count int               `json:"count"`
		Files []*gdrive.FileInfo `json:"files"`
	}
	require.NoError(t, json.Unmarshal([]byte(common.ResultText(result)), &v))
	require.Equal(t, 3, v.Count)
	var paths []string
	for _, f := range v.Files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"./docs", "./docs/a.txt", "./b.txt"}, paths)
}

func TestGetFile_NotFound(t *testing.T) {
	env := newTestEnv(t, true)

	result := env.call(t, "drive_get_file", map[string]interface{}{"file_id": "missing"})
	assert.True(t, result.IsError)
	assert.Equal(t, "File missing not found", common.ResultText(result))
}

func TestDownloadFile(t *testing.T) {
	env := newTestEnv(t, true)
	env.drive.add("txt", "notes.txt", "text/plain", "root", []byte("hello drive"))
	env.drive.add("bin", "logo.png", "image/png", "root", []byte{0x89, 'P', 'N', 'G', 0xff, 0x00})
	env.drive.add("doc", "Plan", gdrive.MimeTypeDocument, "root", nil)
	env.drive.add("form", "Survey", gdrive.MimeTypeForm, "root", nil)

	t.Run("text inline", func(t *testing.T) {
		v := decode(t, env.call(t, "drive_download_file", map[string]interface{}{"file_id": "txt"}))
		assert.Equal(t, "text", v["encoding"])
		assert.Equal(t, "hello drive", v["content"])
	})

	t.Run("binary inline", func(t *testing.T) {
		v := decode(t, env.call(t, "drive_download_file", map[string]interface{}{"file_id": "bin"}))
		assert.Equal(t, "base64", v["encoding"])
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G', 0xff, 0x00}), v["content"])
	})

	t.Run("native document is exported", func(t *testing.T) {
		v := decode(t, env.call(t, "drive_download_file", map[string]interface{}{"file_id": "doc"}))
		exportMime := "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
		assert.Equal(t, exportMime, v["exportMimeType"])
		assert.Equal(t, "Plan as "+exportMime, v["content"])
	})

	t.Run("no export format", func(t *testing.T) {
		result := env.call(t, "drive_download_file", map[string]interface{}{"file_id": "form"})
		assert.True(t, result.IsError)
		assert.Contains(t, common.ResultText(result), "cannot be downloaded")
	})

	t.Run("to local path", func(t *testing.T) {
		v := decode(t, env.call(t, "drive_download_file", map[string]interface{}{
			"file_id":     "txt",
			"output_path": "out/notes.txt",
		}))
		path := filepath.Join(env.dir, "out", "notes.txt")
		assert.Equal(t, path, v["path"])
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "hello drive", string(data))
	})

	t.Run("path escaping the download directory", func(t *testing.T) {
		for _, p := range []string{"../escape.txt", "/etc/passwd"} {
			result := env.call(t, "drive_download_file", map[string]interface{}{
				"file_id":     "txt",
				"output_path": p,
			})
			assert.True(t, result.IsError, p)
			assert.Contains(t, common.ResultText(result), "must be relative")
		}
	})
}

func TestDownloadFolder(t *testing.T) {
	env := newTestEnv(t, true)
	env.drive.add("a", "a.txt", "text/plain", "top", []byte("a"))
	env.drive.add("form", "Survey", gdrive.MimeTypeForm, "top", nil)

	result := env.call(t, "drive_download_folder", map[string]interface{}{
		"folder_id":   "top",
		"output_path": "mirror",
	})
	require.False(t, result.IsError, common.ResultText(result))

	var summary folderSummary
	require.NoError(t, json.Unmarshal([]byte(common.ResultText(result)), &summary))
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Downloaded)
	assert.Equal(t, 1, summary.Unsupported)
	require.Len(t, summary.Problems, 1)
	assert.Equal(t, "form", summary.Problems[0].File.ID)

	data, err := os.ReadFile(filepath.Join(env.dir, "mirror", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))
	assert.FileExists(t, filepath.Join(env.dir, "mirror", "top.filelist.json"))
	assert.FileExists(t, filepath.Join(env.dir, "mirror", "top.skipped.json"))

	again := env.call(t, "drive_download_folder", map[string]interface{}{
		"folder_id":   "top",
		"output_path": "mirror",
	})
	require.NoError(t, json.Unmarshal([]byte(common.ResultText(again)), &summary))
	assert.Equal(t, 1, summary.Already)
	assert.Equal(t, 0, summary.Downloaded)
}

func TestDownloadFolder_HostileNames(t *testing.T) {
	env := newTestEnv(t, true)
	env.drive.add("esc", "../outside.txt", "text/plain", "top", []byte("x"))
	env.drive.add("up", "..", gdrive.MimeTypeFolder, "top", nil)
	env.drive.add("deep", "deeper.txt", "text/plain", "up", []byte("y"))

	result := env.call(t, "drive_download_folder", map[string]interface{}{
		"folder_id":   "top",
		"output_path": "mirror",
	})
	require.False(t, result.IsError, common.ResultText(result))

	var summary folderSummary
	require.NoError(t, json.Unmarshal([]byte(common.ResultText(result)), &summary))
	assert.Equal(t, 2, summary.Downloaded)

	assert.NoFileExists(t, filepath.Join(env.dir, "outside.txt"))
	assert.NoFileExists(t, filepath.Join(env.dir, "deeper.txt"))
	assert.FileExists(t, filepath.Join(env.dir, "mirror", ".._outside.txt"))
	assert.FileExists(t, filepath.Join(env.dir, "mirror", "__", "deeper.txt"))

	bad := env.call(t, "drive_download_folder", map[string]interface{}{
		"folder_id": "../top",
	})
	assert.True(t, bad.IsError)
	assert.Contains(t, common.ResultText(bad), "invalid ID")
}

func TestUploadFile(t *testing.T) {
	env := newTestEnv(t, false)

	t.Run("inline base64", func(t *testing.T) {
		result := env.call(t, "drive_upload_file", map[string]interface{}{
			"name":      "hello.bin",
			"content":   base64.StdEncoding.EncodeToString([]byte("binary!")),
			"is_base64": true,
			"parent_id": "folder1",
		})
		require.False(t, result.IsError, common.ResultText(result))

		v := decode(t, result)
		assert.Equal(t, "hello.bin", v["name"])
		assert.Equal(t, []any{"folder1"}, v["parents"])
		assert.Equal(t, []byte("binary!"), env.drive.uploads["hello.bin"])
	})

	t.Run("local file", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(env.dir, "report.csv"), []byte("a,b\n"), 0o644))

		result := env.call(t, "drive_upload_file", map[string]interface{}{"local_path": "report.csv"})
		require.False(t, result.IsError, common.ResultText(result))

		v := decode(t, result)
		assert.Equal(t, "report.csv", v["name"])
		assert.Equal(t, []any{gdrive.RootFolderID}, v["parents"])
		assert.Equal(t, []byte("a,b\n"), env.drive.uploads["report.csv"])
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name string
			args map[string]interface{}
			want string
		}{
			{"nothing to upload", map[string]interface{}{"name": "x"}, "either local_path or content is required"},
			{"both sources", map[string]interface{}{"local_path": "a", "content": "b"}, "local_path and content are mutually exclusive"},
			{"content without name", map[string]interface{}{"content": "b"}, "name is required with content"},
			{"bad base64", map[string]interface{}{"name": "x", "content": "%%%", "is_base64": true}, "Failed to decode base64 content"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				result := env.call(t, "drive_upload_file", tt.args)
				assert.True(t, result.IsError)
				assert.Contains(t, common.ResultText(result), tt.want)
			})
		}
	})
}

func TestCreateFolder(t *testing.T) {
	env := newTestEnv(t, false)

	v := decode(t, env.call(t, "drive_create_folder", map[string]interface{}{"name": "Reports"}))
	assert.Equal(t, "Reports", v["name"])
	assert.Equal(t, gdrive.MimeTypeFolder, v["mimeType"])
	assert.Equal(t, []any{gdrive.RootFolderID}, v["parents"])
}

func TestDeleteFiles(t *testing.T) {
	env := newTestEnv(t, false)
	env.drive.add("a", "a.txt", "text/plain", "root", []byte("a"))
	env.drive.add("b", "b.txt", "text/plain", "root", []byte("b"))

	result := env.call(t, "drive_delete_files", map[string]interface{}{
		"file_ids": `["a", "missing", "b"]`,
	})
	require.False(t, result.IsError, common.ResultText(result))

	v := decode(t, result)
	assert.EqualValues(t, 3, v["total"])
	assert.EqualValues(t, 2, v["successful"])
	assert.EqualValues(t, 1, v["failed"])
	assert.Equal(t, []string{"a", "b"}, env.drive.deleted)
}

func TestDriveClientUnavailable(t *testing.T) {
	sc, err := server.NewServerContext(context.Background(), server.Options{
		NewClient: func(context.Context) (*gdrive.Client, error) {
			return nil, errors.New("unreachable")
		},
		TokenProvider: google.NewFileTokenProvider(filepath.Join(t.TempDir(), "token.json")),
	})
	require.NoError(t, err)

	s := mcpserver.NewMCPServer("gdriveapp-test", "test")
	require.NoError(t, RegisterDriveTools(s, sc))

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{"file_id": "x"}
	result, err := s.ListTools()["drive_get_file"].Handler(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, common.ResultText(result), "gdriveapp auth")
}

func TestParseCommaList(t *testing.T) {
	assert.Nil(t, parseCommaList(""))
	assert.Equal(t, []string{"a", "b"}, parseCommaList(" a, ,b "))
}
