package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"sdr-go/internal/sdr"
)

// Call is one request received by a FakeServer.
type Call struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// FakeServer emulates the repository API for tests. Uploads, created
// resources and job results are kept in memory and every request is
// recorded. Exported fields may be set before the first request.
type FakeServer struct {
	// Token is the bearer token the server accepts. Empty accepts any.
	Token string
	// Credentials maps login emails to passwords.
	Credentials map[string]string
	// IssuedToken is returned by a successful login.
	IssuedToken string
	// CreateStatus overrides the 201 of a resource create.
	CreateStatus int
	// FailContent makes content PUTs fail for these filenames.
	FailContent map[string]bool

	server *httptest.Server

	mu           sync.Mutex
	calls        []Call
	blobs        map[string]blob
	nextBlob     int
	nextJob      int
	jobStatuses  []sdr.JobStatus
	jobPolls     int
	unauthorized int
	expired      bool
	resources    map[string]string
}

type blob struct {
	filename    string
	contentType string
	byteSize    int64
	content     []byte
	uploaded    bool
}

// NewFakeServer starts a FakeServer that is closed when the test ends.
// Jobs report complete with no errors unless SetJobStatuses is called.
func NewFakeServer(t *testing.T) *FakeServer {
	t.Helper()

	s := &FakeServer{
		Credentials: map[string]string{},
		IssuedToken: "issued-token",
		FailContent: map[string]bool{},
		blobs:       map[string]blob{},
		resources:   map[string]string{},
		jobStatuses: []sdr.JobStatus{{Status: sdr.JobComplete}},
	}

	r := chi.NewRouter()
	r.Use(s.record)

	r.Put("/uploads/{key}", s.handlePutContent)
	r.Post("/v1/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/v1/direct_uploads", s.handleDirectUpload)
		r.Post("/v1/resources", s.handleCreate)
		r.Put("/v1/resources/{id}", s.handleUpdate)
		r.Get("/v1/resources/{id}", s.handleFind)
		r.Get("/v1/background_job_results/{id}", s.handleJob)
		r.Post("/v1/auth/proxy", s.handleProxy)
	})

	s.server = httptest.NewServer(r)
	t.Cleanup(s.server.Close)
	return s
}

// URL is the base URL of the server.
func (s *FakeServer) URL() string {
	return s.server.URL
}

// SetJobStatuses sets the statuses returned by successive job polls. The
// last one repeats.
func (s *FakeServer) SetJobStatuses(statuses ...sdr.JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobStatuses = statuses
}

// RejectNext answers the next n authenticated requests with 401. When
// expired is set the body says the token has expired.
func (s *FakeServer) RejectNext(n int, expired bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unauthorized = n
	s.expired = expired
}

// AddResource makes GET /v1/resources/{id} return body.
func (s *FakeServer) AddResource(id, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[id] = body
}

// Calls returns all recorded requests in arrival order.
func (s *FakeServer) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo returns the recorded requests with the given method whose path
// starts with prefix.
func (s *FakeServer) CallsTo(method, prefix string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method == method && strings.HasPrefix(c.Path, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// UploadedContent returns the content received for a filename.
func (s *FakeServer) UploadedContent(filename string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.blobs {
		if b.filename == filename && b.uploaded {
			return b.content, true
		}
	}
	return nil, false
}

// JobPolls returns the number of job status requests served.
func (s *FakeServer) JobPolls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobPolls
}

func (s *FakeServer) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.calls = append(s.calls, Call{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   body,
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *FakeServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		reject := s.unauthorized > 0
		expired := s.expired
		if reject {
			s.unauthorized--
		}
		s.mu.Unlock()

		auth := r.Header.Get("Authorization")
		if !reject && s.Token != "" && auth != "Bearer "+s.Token {
			reject = true
		}
		if !reject && !strings.HasPrefix(auth, "Bearer ") {
			reject = true
		}
		if reject {
			detail := "Not Authorized"
			if expired {
				detail = "Token has expired"
			}
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"errors": []map[string]string{{"title": "Unauthorized", "detail": detail}},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *FakeServer) handleDirectUpload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Blob sdr.UploadRequest `json:"blob"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Blob.Filename == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid blob"})
		return
	}

	s.mu.Lock()
	s.nextBlob++
	id := s.nextBlob
	key := fmt.Sprintf("key%d", id)
	s.blobs[key] = blob{
		filename:    req.Blob.Filename,
		contentType: req.Blob.ContentType,
		byteSize:    req.Blob.ByteSize,
	}
	s.mu.Unlock()

	// Like the real server, only the basename is echoed back.
	writeJSON(w, http.StatusOK, map[string]any{
		"id":           id,
		"key":          key,
		"filename":     path.Base(req.Blob.Filename),
		"content_type": req.Blob.ContentType,
		"byte_size":    req.Blob.ByteSize,
		"checksum":     req.Blob.Checksum,
		"signed_id":    "signed-" + key,
		"direct_upload": map[string]any{
			"url":     "/uploads/" + key,
			"headers": map[string]string{"Content-Type": req.Blob.ContentType},
		},
	})
}

func (s *FakeServer) handlePutContent(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.blobs[key]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if s.FailContent[b.filename] {
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}
	if r.Header.Get("Content-Type") != b.contentType ||
		r.ContentLength != b.byteSize ||
		int64(len(body)) != b.byteSize {
		http.Error(w, "content does not match upload", http.StatusBadRequest)
		return
	}
	b.content = body
	b.uploaded = true
	s.blobs[key] = b
	w.WriteHeader(http.StatusNoContent)
}

func (s *FakeServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	if s.CreateStatus != 0 && s.CreateStatus != http.StatusCreated {
		writeJSON(w, s.CreateStatus, map[string]string{"error": "rejected"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"jobId": s.newJob()})
}

func (s *FakeServer) handleUpdate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusAccepted, map[string]any{"jobId": s.newJob()})
}

func (s *FakeServer) handleFind(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	body, ok := s.resources[chi.URLParam(r, "id")]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

func (s *FakeServer) handleJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	i := s.jobPolls
	if i >= len(s.jobStatuses) {
		i = len(s.jobStatuses) - 1
	}
	status := s.jobStatuses[i]
	s.jobPolls++
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, status)
}

func (s *FakeServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid login"})
		return
	}
	if want, ok := s.Credentials[req.Email]; !ok || want != req.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": s.IssuedToken})
}

func (s *FakeServer) handleProxy(w http.ResponseWriter, r *http.Request) {
	to := r.URL.Query().Get("to")
	if to == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing to"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": "proxy-" + to})
}

func (s *FakeServer) newJob() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextJob++
	return s.nextJob
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
