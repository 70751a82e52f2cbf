package drive

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	drive "google.golang.org/api/drive/v3"
)

var parentQueryRe = regexp.MustCompile(`^'([^']+)' in parents$`)

type fakeUpload struct {
	uploadType string
	meta       drive.File
	body       []byte
}

type uploadSession struct {
	meta drive.File
	buf  []byte
}

// fakeDrive is an in-memory stand-in for the Drive v3 REST API covering
// list (with pagination), get, media download, export, create, multipart
// and resumable uploads and delete.
type fakeDrive struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	files    map[string]*drive.File
	order    []string
	content  map[string][]byte
	pageSize int
	failures map[string][]int
	requests []string
	queries  []*http.Request
	exports  []string
	uploads  []fakeUpload
	sessions map[string]*uploadSession
	deleted  []string
	nextID   int
}

func newFakeDrive(t *testing.T) *fakeDrive {
	t.Helper()

	fd := &fakeDrive{
		t:        t,
		files:    make(map[string]*drive.File),
		content:  make(map[string][]byte),
		failures: make(map[string][]int),
		sessions: make(map[string]*uploadSession),
		pageSize: 2,
	}
	fd.srv = httptest.NewServer(fd)
	t.Cleanup(fd.srv.Close)
	return fd
}

// client returns a Client talking to the fake with fast retries.
func (fd *fakeDrive) client(t *testing.T) *Client {
	t.Helper()

	c, err := NewClient(t.Context(), Config{
		HTTPClient: fd.srv.Client(),
		Endpoint:   fd.srv.URL + "/",
		Retry: RetryConfig{
			MaxTries:        3,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
	})
	require.NoError(t, err)
	return c
}

func (fd *fakeDrive) addFile(id, name, mimeType, parent string, content []byte) {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	f := &drive.File{
		Id:           id,
		Name:         name,
		Kind:         "drive#file",
		MimeType:     mimeType,
		CreatedTime:  "2024-03-01T10:00:00Z",
		ModifiedTime: "2024-03-02T11:30:00Z",
	}
	if parent != "" {
		f.Parents = []string{parent}
	}
	if content != nil {
		f.Size = int64(len(content))
		fd.content[id] = content
	}
	fd.files[id] = f
	fd.order = append(fd.order, id)
}

func (fd *fakeDrive) addFolder(id, name, parent string) {
	fd.addFile(id, name, MimeTypeFolder, parent, nil)
}

// fail makes the next requests matching "METHOD /path" fail with codes, in order.
func (fd *fakeDrive) fail(key string, codes ...int) {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	fd.failures[key] = append(fd.failures[key], codes...)
}

func (fd *fakeDrive) requestCount(key string) int {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	n := 0
	for _, r := range fd.requests {
		if r == key {
			n++
		}
	}
	return n
}

func (fd *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	key := r.Method + " " + r.URL.Path
	fd.requests = append(fd.requests, key)

	if codes := fd.failures[key]; len(codes) > 0 {
		fd.failures[key] = codes[1:]
		reason := "backendError"
		switch codes[0] {
		case http.StatusForbidden:
			reason = "rateLimitExceeded"
		case http.StatusNotFound:
			reason = "notFound"
		case http.StatusTooManyRequests:
			reason = "rateLimitExceeded"
		}
		writeAPIError(w, codes[0], reason)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/about":
		writeJSON(w, &drive.About{
			User:         &drive.User{DisplayName: "Ada Lovelace", EmailAddress: "ada@example.com"},
			StorageQuota: &drive.AboutStorageQuota{Limit: 1000, Usage: 250, UsageInDrive: 200, UsageInDriveTrash: 10},
		})
	case r.Method == http.MethodGet && r.URL.Path == "/files":
		fd.list(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/files":
		var meta drive.File
		if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
			writeAPIError(w, http.StatusBadRequest, "parseError")
			return
		}
		writeJSON(w, fd.create(meta, nil))
	case r.Method == http.MethodPost && r.URL.Path == "/upload/drive/v3/files":
		fd.upload(w, r)
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/upload/session/"):
		fd.uploadChunk(w, r)
	case strings.HasPrefix(r.URL.Path, "/files/"):
		id, sub, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/files/"), "/")
		f, ok := fd.files[id]
		if !ok {
			writeAPIError(w, http.StatusNotFound, "notFound")
			return
		}
		switch {
		case r.Method == http.MethodDelete && sub == "":
			delete(fd.files, id)
			fd.deleted = append(fd.deleted, id)
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodGet && sub == "export":
			fd.exports = append(fd.exports, id+" "+r.URL.Query().Get("mimeType"))
			_, _ = fmt.Fprintf(w, "exported %s as %s", f.Name, r.URL.Query().Get("mimeType"))
		case r.Method == http.MethodGet && sub == "" && r.URL.Query().Get("alt") == "media":
			if strings.HasPrefix(f.MimeType, googleAppsPrefix) {
				writeAPIError(w, http.StatusForbidden, "fileNotDownloadable")
				return
			}
			_, _ = w.Write(fd.content[id])
		case r.Method == http.MethodGet && sub == "":
			writeJSON(w, f)
		default:
			http.NotFound(w, r)
		}
	default:
		http.NotFound(w, r)
	}
}

func (fd *fakeDrive) list(w http.ResponseWriter, r *http.Request) {
	fd.queries = append(fd.queries, r)
	q := r.URL.Query().Get("q")

	var matched []*drive.File
	for _, id := range fd.order {
		f, ok := fd.files[id]
		if !ok {
			continue
		}
		if m := parentQueryRe.FindStringSubmatch(q); m != nil {
			found := false
			for _, p := range f.Parents {
				found = found || p == m[1]
			}
			if !found {
				continue
			}
		}
		matched = append(matched, f)
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("pageToken"))
	end := min(offset+fd.pageSize, len(matched))
	page := &drive.FileList{Files: matched[offset:end]}
	if end < len(matched) {
		page.NextPageToken = strconv.Itoa(end)
	}
	writeJSON(w, page)
}

func (fd *fakeDrive) create(meta drive.File, body []byte) *drive.File {
	fd.nextID++
	id := fmt.Sprintf("new%d", fd.nextID)

	f := meta
	f.Id = id
	f.Kind = "drive#file"
	if body != nil {
		f.Size = int64(len(body))
		fd.content[id] = body
		if f.MimeType == "" {
			f.MimeType = "application/octet-stream"
		}
	}
	fd.files[id] = &f
	fd.order = append(fd.order, id)
	return &f
}

func (fd *fakeDrive) upload(w http.ResponseWriter, r *http.Request) {
	uploadType := r.URL.Query().Get("uploadType")

	switch uploadType {
	case "multipart":
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(fd.t, err)
		mr := multipart.NewReader(r.Body, params["boundary"])

		metaPart, err := mr.NextPart()
		require.NoError(fd.t, err)
		var meta drive.File
		require.NoError(fd.t, json.NewDecoder(metaPart).Decode(&meta))

		mediaPart, err := mr.NextPart()
		require.NoError(fd.t, err)
		body, err := io.ReadAll(mediaPart)
		require.NoError(fd.t, err)
		if ct := mediaPart.Header.Get("Content-Type"); meta.MimeType == "" {
			meta.MimeType = ct
		}

		fd.uploads = append(fd.uploads, fakeUpload{uploadType: uploadType, meta: meta, body: body})
		writeJSON(w, fd.create(meta, body))
	case "resumable":
		var meta drive.File
		require.NoError(fd.t, json.NewDecoder(r.Body).Decode(&meta))
		session := strconv.Itoa(len(fd.sessions) + 1)
		fd.sessions[session] = &uploadSession{meta: meta}
		w.Header().Set("Location", fd.srv.URL+"/upload/session/"+session)
		w.WriteHeader(http.StatusOK)
	default:
		writeAPIError(w, http.StatusBadRequest, "badUploadType")
	}
}

// uploadChunk handles one PUT of a resumable session. The total size is
// only known ("bytes a-b/N") on the final chunk.
func (fd *fakeDrive) uploadChunk(w http.ResponseWriter, r *http.Request) {
	session, ok := fd.sessions[strings.TrimPrefix(r.URL.Path, "/upload/session/")]
	if !ok {
		http.NotFound(w, r)
		return
	}

	chunk, err := io.ReadAll(r.Body)
	require.NoError(fd.t, err)
	session.buf = append(session.buf, chunk...)

	contentRange := r.Header.Get("Content-Range")
	_, total, _ := strings.Cut(contentRange, "/")
	if total != "*" && total == strconv.Itoa(len(session.buf)) {
		fd.uploads = append(fd.uploads, fakeUpload{uploadType: "resumable", meta: session.meta, body: session.buf})
		writeJSON(w, fd.create(session.meta, session.buf))
		return
	}

	w.Header().Set("Range", fmt.Sprintf("bytes=0-%d", len(session.buf)-1))
	if r.Header.Get("X-GUploader-No-308") == "yes" {
		w.Header().Set("X-Http-Status-Code-Override", "308")
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusPermanentRedirect)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, code int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": http.StatusText(code),
			"errors": []map[string]any{
				{"domain": "global", "reason": reason, "message": http.StatusText(code)},
			},
		},
	})
}
