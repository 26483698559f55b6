// internal/api/client_test.go
package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/webarportal/portal/internal/testutil"
)

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	c := NewClient("http://localhost:8080/")
	if c.baseURL != "http://localhost:8080" {
		t.Errorf("expected trailing slash trimmed, got %s", c.baseURL)
	}
	if c.httpClient == nil {
		t.Error("httpClient is nil")
	}
}

func TestClient_Status(t *testing.T) {
	e := newEnv(t)
	server := httptest.NewServer(e.srv.Handler())
	defer server.Close()

	st, err := NewClient(server.URL).Status(context.Background())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.Status != "running" || st.Port != 8080 {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestClient_ServerDown(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1").Status(context.Background())
	if err == nil {
		t.Error("expected error for unreachable server")
	}
}

func TestClient_UploadMarker(t *testing.T) {
	e := newEnv(t)
	server := httptest.NewServer(e.srv.Handler())
	defer server.Close()

	path := filepath.Join(t.TempDir(), "poster.png")
	if err := os.WriteFile(path, testutil.MarkerPNG(t), 0o644); err != nil {
		t.Fatal(err)
	}

	created, err := NewClient(server.URL).UploadMarker(context.Background(), path, "Poster", "lobby")
	if err != nil {
		t.Fatalf("UploadMarker failed: %v", err)
	}
	if created.MarkerID != 1 || created.Marker.Description != "lobby" {
		t.Errorf("unexpected response %+v", created)
	}
	if e.reg.Markers.Count() != 1 {
		t.Errorf("expected 1 marker, got %d", e.reg.Markers.Count())
	}
}

func TestClient_UploadMarker_Rejected(t *testing.T) {
	e := newEnv(t)
	server := httptest.NewServer(e.srv.Handler())
	defer server.Close()

	path := filepath.Join(t.TempDir(), "small.png")
	if err := os.WriteFile(path, testutil.PNG(t, testutil.Checker(64, 8)), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewClient(server.URL).UploadMarker(context.Background(), path, "Small", "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", apiErr.StatusCode)
	}
	if len(apiErr.Body.Issues) != 1 {
		t.Errorf("expected one issue, got %v", apiErr.Body.Issues)
	}
}

func TestClient_UploadMarker_MissingFile(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1").UploadMarker(context.Background(), "/does/not/exist.png", "x", "")
	if err == nil {
		t.Error("expected error for missing file")
	}
}
