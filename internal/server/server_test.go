package server

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"picdrop/internal/assets"
	"picdrop/internal/audit"
)

const (
	testUser = "admin"
	testPass = "secret"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newTestServer(t *testing.T, mutate func(*Config)) (*Server, *assets.DiskStore) {
	t.Helper()
	store := assets.NewDiskStore(filepath.Join(t.TempDir(), "uploads"), nil)
	require.NoError(t, store.Initialize(context.Background()))

	cfg := Config{
		Addr:  ":0",
		Build: BuildInfo{Version: "test", Commit: "abc123"},
		Store: store,
		Auth:  AuthConfig{User: testUser, Password: testPass, Realm: "Admin Area"},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s := New(cfg)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, store
}

type filePart struct {
	field, name, contentType string
	body                     []byte
}

func multipartBody(t *testing.T, parts ...filePart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		if p.name == "" {
			require.NoError(t, mw.WriteField(p.field, string(p.body)))
			continue
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+p.field+`"; filename="`+p.name+`"`)
		ct := p.contentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write(p.body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func uploadRequest(t *testing.T, parts ...filePart) *http.Request {
	t.Helper()
	body, ct := multipartBody(t, parts...)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)
	req.SetBasicAuth(testUser, testPass)
	return req
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func listImages(t *testing.T, s *Server) []assets.Asset {
	t.Helper()
	rr := do(s, httptest.NewRequest(http.MethodGet, "/get-images", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return decode[[]assets.Asset](t, rr)
}

func TestUploadListFetchDelete(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rr := do(s, uploadRequest(t, filePart{field: "picture", name: "pic.png", contentType: "image/png", body: []byte("abc")}))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	resp := decode[uploadResponse](t, rr)
	assert.Equal(t, "File uploaded successfully", resp.Message)
	assert.Equal(t, "picture", resp.File.FieldName)
	assert.Equal(t, "pic.png", resp.File.OriginalName)
	assert.Equal(t, "image/png", resp.File.MimeType)
	assert.EqualValues(t, 3, resp.File.Size)
	assert.True(t, strings.HasSuffix(resp.File.Filename, ".png"))
	assert.Equal(t, "/uploads/"+resp.File.Filename, resp.File.URL)

	list := listImages(t, s)
	require.Len(t, list, 1)
	assert.Equal(t, resp.File.Filename, list[0].ID)
	assert.Equal(t, resp.File.URL, list[0].URL)

	rr = do(s, httptest.NewRequest(http.MethodGet, list[0].URL, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "abc", rr.Body.String())

	del := httptest.NewRequest(http.MethodDelete, "/delete/"+list[0].ID, nil)
	del.SetBasicAuth(testUser, testPass)
	rr = do(s, del)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "File deleted successfully", decode[messageResponse](t, rr).Message)

	assert.Empty(t, listImages(t, s))

	del = httptest.NewRequest(http.MethodDelete, "/delete/"+list[0].ID, nil)
	del.SetBasicAuth(testUser, testPass)
	rr = do(s, del)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "File not found", decode[messageResponse](t, rr).Message)
}

func TestListImages_EmptyIsArray(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rr := do(s, httptest.NewRequest(http.MethodGet, "/get-images", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}

func TestListImages_StorageFailure(t *testing.T) {
	s, store := newTestServer(t, nil)
	require.NoError(t, os.RemoveAll(store.Dir()))

	rr := do(s, httptest.NewRequest(http.MethodGet, "/get-images", nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	resp := decode[messageResponse](t, rr)
	assert.Equal(t, "Error fetching images", resp.Message)
	assert.NotEmpty(t, resp.Error)
}

func TestAdminRoutes_RequireCredentials(t *testing.T) {
	s, store := newTestServer(t, nil)
	_, err := store.Put(context.Background(), []byte("x"), "keep.png")
	require.NoError(t, err)

	tests := []struct {
		name   string
		req    func() *http.Request
		status int
	}{
		{
			name: "upload without credentials",
			req: func() *http.Request {
				body, ct := multipartBody(t, filePart{field: "picture", name: "a.png", body: []byte("a")})
				r := httptest.NewRequest(http.MethodPost, "/upload", body)
				r.Header.Set("Content-Type", ct)
				return r
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "upload with wrong password",
			req: func() *http.Request {
				r := uploadRequest(t, filePart{field: "picture", name: "a.png", body: []byte("a")})
				r.SetBasicAuth(testUser, "nope")
				return r
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "delete with wrong user",
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodDelete, "/delete/keep.png", nil)
				r.SetBasicAuth("root", testPass)
				return r
			},
			status: http.StatusUnauthorized,
		},
		{
			name:   "audit without credentials",
			req:    func() *http.Request { return httptest.NewRequest(http.MethodGet, "/audit", nil) },
			status: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(s, tt.req())
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, `Basic realm="Admin Area"`, rr.Header().Get("WWW-Authenticate"))
		})
	}

	// nothing changed
	assert.Len(t, listImages(t, s), 1)
}

func TestAuth_BcryptHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte(testPass), bcrypt.MinCost)
	require.NoError(t, err)
	s, _ := newTestServer(t, func(c *Config) {
		c.Auth.Password = ""
		c.Auth.PasswordHash = string(hash)
	})

	rr := do(s, uploadRequest(t, filePart{field: "picture", name: "a.png", body: []byte("a")}))
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	req := uploadRequest(t, filePart{field: "picture", name: "a.png", body: []byte("a")})
	req.SetBasicAuth(testUser, "Secret")
	assert.Equal(t, http.StatusUnauthorized, do(s, req).Code)
}

func TestAuthConfig_Verify(t *testing.T) {
	tests := []struct {
		name       string
		cfg        AuthConfig
		user, pass string
		want       bool
	}{
		{"match", AuthConfig{User: "admin", Password: "pw"}, "admin", "pw", true},
		{"wrong password", AuthConfig{User: "admin", Password: "pw"}, "admin", "pw2", false},
		{"password prefix", AuthConfig{User: "admin", Password: "pw"}, "admin", "p", false},
		{"wrong user", AuthConfig{User: "admin", Password: "pw"}, "Admin", "pw", false},
		{"no credentials configured", AuthConfig{User: "admin"}, "admin", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.verify(tt.user, tt.pass))
		})
	}
}

func TestUpload_MissingOrEmptyFile(t *testing.T) {
	s, _ := newTestServer(t, nil)

	tests := []struct {
		name  string
		parts []filePart
	}{
		{"no parts", nil},
		{"wrong field", []filePart{{field: "image", name: "a.png", body: []byte("a")}}},
		{"text field only", []filePart{{field: "picture", body: []byte("not a file")}}},
		{"empty file", []filePart{{field: "picture", name: "a.png", body: nil}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(s, uploadRequest(t, tt.parts...))
			require.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, "No file uploaded", decode[messageResponse](t, rr).Message)
		})
	}

	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(`{"picture":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		req.SetBasicAuth(testUser, testPass)
		rr := do(s, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	assert.Empty(t, listImages(t, s))
}

func TestUpload_IgnoresOtherParts(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rr := do(s, uploadRequest(t,
		filePart{field: "title", body: []byte("holiday")},
		filePart{field: "other", name: "b.gif", body: []byte("gif")},
		filePart{field: "picture", name: "a.jpg", body: []byte("jpeg")},
	))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[uploadResponse](t, rr)
	assert.Equal(t, "a.jpg", resp.File.OriginalName)
	assert.True(t, strings.HasSuffix(resp.File.Filename, ".jpg"))
	assert.Len(t, listImages(t, s), 1)
}

func TestUpload_PreservesMissingExtension(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rr := do(s, uploadRequest(t, filePart{field: "picture", name: "README", body: []byte("x")}))
	require.Equal(t, http.StatusOK, rr.Code)
	id := decode[uploadResponse](t, rr).File.Filename
	assert.NotContains(t, id, ".")
}

func TestUpload_TooLarge(t *testing.T) {
	s, _ := newTestServer(t, func(c *Config) { c.Upload.MaxBytes = 4 })

	rr := do(s, uploadRequest(t, filePart{field: "picture", name: "a.png", body: []byte("0123456789")}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)

	rr = do(s, uploadRequest(t, filePart{field: "picture", name: "a.png", body: []byte("0123")}))
	assert.Equal(t, http.StatusOK, rr.Code)

	assert.Len(t, listImages(t, s), 1)
	assert.EqualValues(t, 1, s.Metrics().Snapshot().UploadRejectedTotal)
}

func TestUpload_TypeChecks(t *testing.T) {
	tests := []struct {
		name       string
		imagesOnly bool
		file       string
		body       []byte
		status     int
	}{
		{"executable always rejected", false, "run.exe", []byte("MZ"), http.StatusUnsupportedMediaType},
		{"shell script always rejected", false, "x.SH", []byte("#!/bin/sh"), http.StatusUnsupportedMediaType},
		{"text allowed by default", false, "notes.txt", []byte("hello"), http.StatusOK},
		{"images only accepts png", true, "a.png", pngHeader, http.StatusOK},
		{"images only rejects text named png", true, "a.png", []byte("hello"), http.StatusUnsupportedMediaType},
		{"images only rejects txt", true, "a.txt", pngHeader, http.StatusUnsupportedMediaType},
		{"images only rejects svg", true, "a.svg", []byte("<svg/>"), http.StatusUnsupportedMediaType},
		{"images only rejects no extension", true, "picture", pngHeader, http.StatusUnsupportedMediaType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, func(c *Config) { c.Upload.ImagesOnly = tt.imagesOnly })
			rr := do(s, uploadRequest(t, filePart{field: "picture", name: tt.file, body: tt.body}))
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
			if tt.status != http.StatusOK {
				assert.Empty(t, listImages(t, s))
			}
		})
	}
}

func TestDelete_RejectsTraversal(t *testing.T) {
	s, store := newTestServer(t, nil)
	secret := filepath.Join(filepath.Dir(store.Dir()), "secret")
	require.NoError(t, os.WriteFile(secret, []byte("keep"), 0o600))

	for _, target := range []string{"/delete/..%2Fsecret", "/delete/a%5C..%5Csecret", "/delete/..%2F..%2Fetc%2Fpasswd"} {
		t.Run(target, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, target, nil)
			req.SetBasicAuth(testUser, testPass)
			rr := do(s, req)
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.Equal(t, "Invalid file id", decode[messageResponse](t, rr).Message)
		})
	}

	data, err := os.ReadFile(secret)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))
}

func TestDelivery(t *testing.T) {
	s, store := newTestServer(t, nil)
	a, err := store.Put(context.Background(), []byte("0123456789"), "pic.png")
	require.NoError(t, err)

	t.Run("full body", func(t *testing.T) {
		rr := do(s, httptest.NewRequest(http.MethodGet, a.URL, nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "0123456789", rr.Body.String())
		assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
		assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
		assert.Contains(t, rr.Header().Get("Content-Security-Policy"), "sandbox")
	})

	t.Run("range", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, a.URL, nil)
		req.Header.Set("Range", "bytes=2-4")
		rr := do(s, req)
		require.Equal(t, http.StatusPartialContent, rr.Code)
		assert.Equal(t, "234", rr.Body.String())
	})

	t.Run("head", func(t *testing.T) {
		rr := do(s, httptest.NewRequest(http.MethodHead, a.URL, nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "10", rr.Header().Get("Content-Length"))
	})

	t.Run("unknown", func(t *testing.T) {
		rr := do(s, httptest.NewRequest(http.MethodGet, "/uploads/nope.png", nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("traversal", func(t *testing.T) {
		rr := do(s, httptest.NewRequest(http.MethodGet, "/uploads/..%2Fsecret", nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	snap := s.Metrics().Snapshot()
	assert.EqualValues(t, 3, snap.DeliveriesTotal)
	assert.EqualValues(t, 2, snap.DeliveryMissesTotal)
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rr := do(s, httptest.NewRequest(http.MethodGet, "/get-images", nil))
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodOptions, "/delete/a.png", nil)
	req.Header.Set("Origin", "https://gallery.example")
	req.Header.Set("Access-Control-Request-Method", "DELETE")
	req.Header.Set("Access-Control-Request-Headers", "authorization")
	rr = do(s, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "DELETE")
	assert.Equal(t, "authorization", rr.Header().Get("Access-Control-Allow-Headers"))
	assert.Empty(t, rr.Body.String())
}

func TestCORS_ConfiguredOrigin(t *testing.T) {
	s, _ := newTestServer(t, func(c *Config) { c.CORSOrigin = "https://gallery.example" })
	rr := do(s, httptest.NewRequest(http.MethodGet, "/get-images", nil))
	assert.Equal(t, "https://gallery.example", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Values("Vary"), "Origin")
}

func TestRequestID(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rr := do(s, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Len(t, rr.Header().Get("X-Request-Id"), 36)

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rr = do(s, req)
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-Id"))
}

func TestRateLimit_AdminRoutes(t *testing.T) {
	s, _ := newTestServer(t, func(c *Config) {
		c.RateLimit = RateLimitConfig{Requests: 2, Window: time.Minute}
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodDelete, "/delete/missing.png", nil)
		req.SetBasicAuth(testUser, testPass)
		assert.Equal(t, http.StatusNotFound, do(s, req).Code)
	}

	req := httptest.NewRequest(http.MethodDelete, "/delete/missing.png", nil)
	req.SetBasicAuth(testUser, testPass)
	rr := do(s, req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	// public routes are not limited
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(s, httptest.NewRequest(http.MethodGet, "/get-images", nil)).Code)
	}
}

func TestLockout_AfterRepeatedFailures(t *testing.T) {
	s, _ := newTestServer(t, func(c *Config) {
		c.Auth.MaxFailures = 2
		c.Auth.Lockout = time.Minute
	})

	bad := func() *http.Request {
		r := httptest.NewRequest(http.MethodDelete, "/delete/a.png", nil)
		r.SetBasicAuth(testUser, "guess")
		return r
	}
	assert.Equal(t, http.StatusUnauthorized, do(s, bad()).Code)
	assert.Equal(t, http.StatusUnauthorized, do(s, bad()).Code)

	good := httptest.NewRequest(http.MethodDelete, "/delete/a.png", nil)
	good.SetBasicAuth(testUser, testPass)
	rr := do(s, good)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	// another client is unaffected
	other := httptest.NewRequest(http.MethodDelete, "/delete/a.png", nil)
	other.RemoteAddr = "203.0.113.9:5555"
	other.SetBasicAuth(testUser, testPass)
	assert.Equal(t, http.StatusNotFound, do(s, other).Code)

	assert.EqualValues(t, 2, s.Metrics().Snapshot().AuthFailuresTotal)
}

func TestHealthEndpoints(t *testing.T) {
	s, store := newTestServer(t, nil)

	rr := do(s, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(s, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	h := decode[Health](t, rr)
	assert.Equal(t, HealthStatusHealthy, h.Status)
	assert.Equal(t, "test", h.Version)
	assert.Equal(t, ComponentStatusUp, h.Components["storage"].Status)
	assert.Equal(t, ComponentStatusDisabled, h.Components["audit"].Status)

	require.NoError(t, os.RemoveAll(store.Dir()))

	rr = do(s, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = do(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, HealthStatusUnhealthy, decode[Health](t, rr).Status)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rr := do(s, uploadRequest(t, filePart{field: "picture", name: "a.png", body: []byte("abc")}))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, body, `picdrop_info{version="test",commit="abc123"} 1`)
	assert.Contains(t, body, "picdrop_uploads_total 1\n")
	assert.Contains(t, body, "picdrop_upload_bytes_total 3\n")
	assert.Contains(t, body, "picdrop_assets 1\n")
	assert.Contains(t, body, "picdrop_asset_bytes 3\n")
	assert.Contains(t, body, "picdrop_auth_success_total 1\n")
}

func TestCompression(t *testing.T) {
	s, store := newTestServer(t, nil)
	a, err := store.Put(context.Background(), []byte("raw-bytes"), "pic.png")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/get-images", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := do(s, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rr.Body)
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(plain), a.ID)

	req = httptest.NewRequest(http.MethodGet, a.URL, nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr = do(s, req)
	assert.Empty(t, rr.Header().Get("Content-Encoding"))
	assert.Equal(t, "raw-bytes", rr.Body.String())
}

// fakeRecorder keeps events in memory.
type fakeRecorder struct {
	mu     sync.Mutex
	events []audit.Event
	err    error
}

func (f *fakeRecorder) Record(_ context.Context, e audit.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakeRecorder) Recent(_ context.Context, limit int) ([]audit.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]audit.Event, 0, limit)
	for i := len(f.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.events[i])
	}
	return out, nil
}

func TestAudit_RecordsMutations(t *testing.T) {
	rec := &fakeRecorder{}
	s, _ := newTestServer(t, func(c *Config) { c.Audit = rec })

	rr := do(s, uploadRequest(t, filePart{field: "picture", name: "a.png", body: []byte("abc")}))
	require.Equal(t, http.StatusOK, rr.Code)
	id := decode[uploadResponse](t, rr).File.Filename

	del := httptest.NewRequest(http.MethodDelete, "/delete/"+id, nil)
	del.SetBasicAuth(testUser, testPass)
	del.Header.Set("User-Agent", "gallery-admin/1.0")
	require.Equal(t, http.StatusOK, do(s, del).Code)

	req := httptest.NewRequest(http.MethodGet, "/audit?limit=10", nil)
	req.SetBasicAuth(testUser, testPass)
	rr = do(s, req)
	require.Equal(t, http.StatusOK, rr.Code)
	events := decode[[]audit.Event](t, rr)
	require.Len(t, events, 2)

	assert.Equal(t, audit.ActionDelete, events[0].Action)
	assert.Equal(t, id, events[0].AssetID)
	assert.Equal(t, testUser, events[0].Username)
	assert.Equal(t, "gallery-admin/1.0", events[0].UserAgent)
	assert.True(t, events[0].Success)
	assert.Equal(t, "192.0.2.1", events[0].IPAddress)

	assert.Equal(t, audit.ActionUpload, events[1].Action)
	assert.Equal(t, id, events[1].AssetID)
}

func TestAudit_FailureDoesNotFailRequest(t *testing.T) {
	rec := &fakeRecorder{err: assets.ErrStorageUnavailable}
	s, _ := newTestServer(t, func(c *Config) { c.Audit = rec })

	rr := do(s, uploadRequest(t, filePart{field: "picture", name: "a.png", body: []byte("abc")}))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAudit_Disabled(t *testing.T) {
	s, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/audit", nil)
	req.SetBasicAuth(testUser, testPass)
	rr := do(s, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Audit trail disabled", decode[messageResponse](t, rr).Message)

	req = httptest.NewRequest(http.MethodGet, "/audit?limit=zero", nil)
	req.SetBasicAuth(testUser, testPass)
	assert.Equal(t, http.StatusBadRequest, do(s, req).Code)
}

func TestUnknownRoutes(t *testing.T) {
	s, _ := newTestServer(t, nil)
	assert.Equal(t, http.StatusNotFound, do(s, httptest.NewRequest(http.MethodGet, "/nope", nil)).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(s, httptest.NewRequest(http.MethodPut, "/get-images", nil)).Code)
}
