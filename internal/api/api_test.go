package api

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webarportal/portal/internal/analytics"
	"github.com/webarportal/portal/internal/assets"
	"github.com/webarportal/portal/internal/config"
	"github.com/webarportal/portal/internal/ingest"
	"github.com/webarportal/portal/internal/model/core"
	"github.com/webarportal/portal/internal/pattern"
	"github.com/webarportal/portal/internal/registry"
	"github.com/webarportal/portal/internal/storage/memory"
	"github.com/webarportal/portal/internal/testutil"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type env struct {
	srv     *Server
	store   *assets.MemoryStore
	tracker *analytics.Tracker
	reg     *registry.Registry
}

func newEnv(t *testing.T, opts ...func(*Dependencies, *registry.Dependencies)) *env {
	t.Helper()
	store := assets.NewMemoryStore("/assets/")
	backend := memory.New(config.MemoryConfig{})
	require.NoError(t, backend.Init())

	rdeps := registry.Dependencies{
		Backend:       backend,
		Store:         store,
		Pipeline:      ingest.New(pattern.DefaultConfig(), 256, 0, store),
		Logger:        zerolog.Nop(),
		Clock:         func() time.Time { return testNow },
		PruneOnDelete: true,
	}
	deps := Dependencies{
		Store:   store,
		Tracker: analytics.NewTracker(100, nil),
		Logger:  zerolog.Nop(),
		Server: config.ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:3000"},
			MaxUploadBytes: 10 << 20,
		},
		Clock: func() time.Time { return testNow },
	}
	for _, o := range opts {
		o(&deps, &rdeps)
	}

	reg, err := registry.New(rdeps)
	require.NoError(t, err)
	deps.Registry = reg

	srv, err := New(deps)
	require.NoError(t, err)
	return &env{srv: srv, store: store, tracker: deps.Tracker, reg: reg}
}

func (e *env) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *env) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (e *env) del(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodDelete, path, nil))
}

type filePart struct {
	field, name string
	data        []byte
}

func multipartRequest(t *testing.T, path string, fields map[string]string, file *filePart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		part, err := w.CreateFormFile(file.field, file.name)
		require.NoError(t, err)
		_, err = part.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func (e *env) uploadMarker(t *testing.T, name string, image []byte) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(multipartRequest(t, "/api/upload/marker",
		map[string]string{"name": name, "description": "test marker"},
		&filePart{field: "markerImage", name: "marker.png", data: image}))
}

func (e *env) createMarker(t *testing.T) MarkerCreated {
	t.Helper()
	rec := e.uploadMarker(t, "Poster", testutil.MarkerPNG(t))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out MarkerCreated
	decode(t, rec, &out)
	return out
}

func (e *env) uploadContent(t *testing.T, fields map[string]string, name string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(multipartRequest(t, "/api/upload/content", fields,
		&filePart{field: "contentFile", name: name, data: data}))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestUploadMarker_Success(t *testing.T) {
	e := newEnv(t)

	created := e.createMarker(t)
	assert.True(t, created.Success)
	assert.Equal(t, uint64(1), created.MarkerID)
	assert.Equal(t, "Poster", created.Marker.Name)
	assert.True(t, strings.HasPrefix(created.ImageURL, "/assets/"))
	assert.True(t, strings.HasSuffix(created.ImageURL, ".png"))
	assert.True(t, strings.HasSuffix(created.PattURL, ".patt"))

	rec := e.get(created.PattURL)
	require.Equal(t, http.StatusOK, rec.Code)
	desc, err := pattern.ParseDescriptor(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 16, desc.Size)

	rec = e.get(created.ImageURL)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = e.get("/api/markers/1")
	require.Equal(t, http.StatusOK, rec.Code)
	var m core.Marker
	decode(t, rec, &m)
	assert.Equal(t, created.Marker, m)

	rec = e.get("/api/markers")
	var list []core.Marker
	decode(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, testNow, list[0].CreatedAt)
}

func TestUploadMarker_Rejections(t *testing.T) {
	marker := func(t *testing.T) []byte { return testutil.MarkerPNG(t) }

	tests := []struct {
		name       string
		fields     map[string]string
		filename   string
		image      func(t *testing.T) []byte
		wantStatus int
		wantInBody string
	}{
		{
			name:     "too small",
			fields:   map[string]string{"name": "small"},
			filename: "small.png",
			image: func(t *testing.T) []byte {
				return testutil.PNG(t, testutil.Checker(128, 16))
			},
			wantStatus: http.StatusBadRequest,
			wantInBody: "image is too small (minimum 256x256)",
		},
		{
			name:     "low variance",
			fields:   map[string]string{"name": "flat"},
			filename: "flat.png",
			image: func(t *testing.T) []byte {
				return testutil.PNG(t, testutil.Uniform(512, 512, 90))
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantInBody: "low_variance",
		},
		{
			name:       "missing name",
			fields:     map[string]string{"name": ""},
			filename:   "m.png",
			image:      marker,
			wantStatus: http.StatusBadRequest,
			wantInBody: "name is required",
		},
		{
			name:       "blank name",
			fields:     map[string]string{"name": "   "},
			filename:   "m.png",
			image:      marker,
			wantStatus: http.StatusBadRequest,
			wantInBody: core.ErrNameRequired.Error(),
		},
		{
			name:       "missing file",
			fields:     map[string]string{"name": "x"},
			wantStatus: http.StatusBadRequest,
			wantInBody: "markerImage file is required",
		},
		{
			name:       "not an image",
			fields:     map[string]string{"name": "x"},
			filename:   "notes.txt",
			image:      func(*testing.T) []byte { return []byte("hello") },
			wantStatus: http.StatusBadRequest,
			wantInBody: "image could not be decoded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			var file *filePart
			if tt.image != nil {
				file = &filePart{field: "markerImage", name: tt.filename, data: tt.image(t)}
			}

			rec := e.do(multipartRequest(t, "/api/upload/marker", tt.fields, file))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantInBody)

			var body ErrorResponse
			decode(t, rec, &body)
			assert.False(t, body.Success)
			assert.Equal(t, 0, e.reg.Markers.Count())
			assert.Equal(t, 0, e.store.Len(), "rejected uploads must not be kept")
		})
	}
}

func TestUploadMarker_BodyTooLarge(t *testing.T) {
	e := newEnv(t, func(d *Dependencies, _ *registry.Dependencies) {
		d.Server.MaxUploadBytes = 1024
	})

	rec := e.uploadMarker(t, "big", testutil.MarkerPNG(t))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, 0, e.store.Len())
}

func TestUploadContent_AndScene(t *testing.T) {
	e := newEnv(t)
	e.createMarker(t)

	rec := e.uploadContent(t, map[string]string{
		"markerId":    "1",
		"contentType": "model",
		"position":    "0 0.5 0",
		"rotation":    "0 90 0",
	}, "robot.glb", []byte("glTF binary"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created ContentCreated
	decode(t, rec, &created)
	assert.Equal(t, uint64(1), created.ContentID)
	assert.True(t, strings.HasSuffix(created.ContentURL, ".glb"))
	assert.Equal(t, core.Vec3{X: 0, Y: 0.5, Z: 0}, created.Content.Transform.Position)
	assert.Equal(t, core.Vec3{X: 1, Y: 1, Z: 1}, created.Content.Transform.Scale)

	rec = e.uploadContent(t, map[string]string{"markerId": "1", "contentType": "video"}, "clip.mp4", []byte("mp4"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.get("/api/markers/1/content")
	var contents []core.ContentBinding
	decode(t, rec, &contents)
	require.Len(t, contents, 2)
	assert.Equal(t, core.ContentModel, contents[0].ContentType)

	req := httptest.NewRequest(http.MethodGet, "/api/ar-scene/1", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 Firefox/121.0")
	rec = e.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	var scene core.Scene
	decode(t, rec, &scene)
	assert.Equal(t, uint64(1), scene.Marker.ID)
	assert.Len(t, scene.Bindings, 2)
	assert.Equal(t, core.SceneInfo{ContentCount: 2, Has3DModels: true, HasVideos: true}, scene.Info)

	stats, ok := e.tracker.MarkerStats(1)
	require.True(t, ok)
	assert.Equal(t, 1, stats.TotalViews)
	assert.Equal(t, map[string]int{analytics.BrowserFirefox: 1}, stats.Browsers)
	assert.Equal(t, testNow, stats.LastViewed)
}

func TestUploadContent_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		fields     map[string]string
		file       string
		size       int
		wantStatus int
	}{
		{"unknown marker", map[string]string{"markerId": "999", "contentType": "image"}, "a.png", 10, http.StatusNotFound},
		{"invalid content type", map[string]string{"markerId": "1", "contentType": "audio"}, "a.mp3", 10, http.StatusBadRequest},
		{"missing content type", map[string]string{"markerId": "1"}, "a.png", 10, http.StatusBadRequest},
		{"non-numeric marker", map[string]string{"markerId": "one", "contentType": "image"}, "a.png", 10, http.StatusBadRequest},
		{"bad transform", map[string]string{"markerId": "1", "contentType": "image", "scale": "1 2"}, "a.png", 10, http.StatusBadRequest},
		{"bad extension", map[string]string{"markerId": "1", "contentType": "image"}, "a.p_n_g", 10, http.StatusBadRequest},
		{"model too large", map[string]string{"markerId": "1", "contentType": "model"}, "big.glb", 2048, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, func(_ *Dependencies, r *registry.Dependencies) {
				r.Limits = map[core.ContentType]int64{core.ContentModel: 1024}
			})
			e.createMarker(t)
			before := e.store.Len()

			rec := e.uploadContent(t, tt.fields, tt.file, make([]byte, tt.size))
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, 0, e.reg.Contents.Count())
			assert.Equal(t, before, e.store.Len())
		})
	}
}

func TestDeleteMarker_Cascades(t *testing.T) {
	e := newEnv(t)
	e.createMarker(t)
	rec := e.uploadContent(t, map[string]string{"markerId": "1", "contentType": "image"}, "a.png", []byte("png"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.del("/api/markers/1")
	require.Equal(t, http.StatusOK, rec.Code)
	var deleted Deleted
	decode(t, rec, &deleted)
	assert.Equal(t, Deleted{Success: true, MarkerID: 1}, deleted)

	assert.Equal(t, http.StatusNotFound, e.get("/api/ar-scene/1").Code)
	assert.Equal(t, http.StatusNotFound, e.get("/api/markers/1").Code)
	assert.Equal(t, "[]\n", e.get("/api/markers/1/content").Body.String())
	assert.Equal(t, http.StatusNotFound, e.del("/api/markers/1").Code)
	assert.Equal(t, 0, e.store.Len())

	rec = e.uploadContent(t, map[string]string{"markerId": "1", "contentType": "image"}, "a.png", []byte("png"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteContent(t *testing.T) {
	e := newEnv(t)
	e.createMarker(t)
	rec := e.uploadContent(t, map[string]string{"markerId": "1", "contentType": "image"}, "a.png", []byte("png"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.del("/api/content/1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"deletedContentId":1}`, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, e.del("/api/content/1").Code)
}

func TestInvalidIDs(t *testing.T) {
	e := newEnv(t)
	for _, path := range []string{"/api/markers/abc", "/api/markers/0", "/api/ar-scene/-1", "/api/analytics/markers/x"} {
		assert.Equal(t, http.StatusBadRequest, e.get(path).Code, path)
	}
	assert.Equal(t, http.StatusBadRequest, e.del("/api/content/nope").Code)
}

func TestAnalyticsEndpoints(t *testing.T) {
	e := newEnv(t)
	e.createMarker(t)

	rec := e.get("/api/analytics/markers/1")
	require.Equal(t, http.StatusOK, rec.Code)
	var ma MarkerAnalytics
	decode(t, rec, &ma)
	assert.Equal(t, 0, ma.Stats.TotalViews)

	assert.Equal(t, http.StatusNotFound, e.get("/api/analytics/markers/42").Code)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, e.get("/api/ar-scene/1").Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/analytics/errors",
		strings.NewReader(`{"errorType":"camera_denied","markerId":1,"errorDetails":"NotAllowedError"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = e.do(req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/analytics/errors", strings.NewReader(`{"markerId":1}`))
	assert.Equal(t, http.StatusBadRequest, e.do(req).Code)
	req = httptest.NewRequest(http.MethodPost, "/api/analytics/errors", strings.NewReader(`not json`))
	assert.Equal(t, http.StatusBadRequest, e.do(req).Code)

	rec = e.get("/api/analytics/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var overall AnalyticsStats
	decode(t, rec, &overall)
	assert.Equal(t, analytics.DailyStats{TotalViews: 3, MarkersUsed: 1}, overall.Today)
	assert.Equal(t, 1, overall.TotalMarkers)
	assert.Equal(t, 3, overall.TotalViews)
	assert.Equal(t, []analytics.Popular{{MarkerID: 1, Views: 3}}, overall.PopularMarkers)
	require.Len(t, overall.RecentErrors, 1)
	assert.Equal(t, "camera_denied", overall.RecentErrors[0].Type)
	assert.Equal(t, testNow, overall.RecentErrors[0].At)
}

func TestStatus(t *testing.T) {
	e := newEnv(t)
	e.createMarker(t)

	rec := e.get("/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var st Status
	decode(t, rec, &st)
	assert.Equal(t, Status{Status: "running", ServerTime: testNow, MarkersCount: 1, Port: 8080}, st)
}

func TestSecurityHeadersAndNotFound(t *testing.T) {
	e := newEnv(t)

	rec := e.get("/api/nothing-here")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"route not found","path":"/api/nothing-here"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "1; mode=block", rec.Header().Get("X-XSS-Protection"))

	assert.Equal(t, http.StatusNotFound, e.get("/assets/missing.png").Code)
	assert.Equal(t, http.StatusNotFound, e.get("/assets/..%2Fsecret").Code)
}

func TestCORS(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/markers", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	rec := e.do(req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/markers", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = e.do(req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	e := newEnv(t, func(d *Dependencies, _ *registry.Dependencies) {
		d.Server.RateLimit = 2
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, e.get("/api/status").Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv(t)
	e.createMarker(t)
	e.get("/api/markers/1")

	rec := e.get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `portal_http_requests_total{method="GET",route="/api/markers/{id}",status="200"} 1`)
	assert.Contains(t, body, `portal_uploads_total{kind="marker",result="accepted"} 1`)
	assert.Contains(t, body, "portal_http_request_duration_seconds_bucket")
}

func TestPublicDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>portal</h1>"), 0o644))
	e := newEnv(t, func(d *Dependencies, _ *registry.Dependencies) {
		d.Server.PublicDir = dir
	})

	rec := e.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, "<h1>portal</h1>", string(body))
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Dependencies{})
	assert.Error(t, err)
}

func TestFileExt(t *testing.T) {
	for in, want := range map[string]string{
		"a.PNG":          "png",
		"archive.tar.gz": "gz",
		"noext":          "bin",
		"":               "bin",
	} {
		assert.Equal(t, want, fileExt(in), fmt.Sprintf("fileExt(%q)", in))
	}
}
