// internal/api/client.go
package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Client talks to a running portal.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the portal at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Status fetches the service status.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var out Status
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/status", nil)
	if err != nil {
		return out, fmt.Errorf("failed to create request: %w", err)
	}
	err = c.do(req, http.StatusOK, &out)
	return out, err
}

// UploadMarker registers the image at imagePath as a new marker.
func (c *Client) UploadMarker(ctx context.Context, imagePath, name, description string) (MarkerCreated, error) {
	var out MarkerCreated
	file, err := os.Open(imagePath)
	if err != nil {
		return out, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	// the pipe is fed concurrently with the request body being sent
	errCh := make(chan error, 1)
	go func() {
		errCh <- writeMarkerForm(pw, writer, file, imagePath, name, description)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload/marker", pr)
	if err != nil {
		pr.CloseWithError(err)
		<-errCh
		return out, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	reqErr := c.do(req, http.StatusCreated, &out)
	pr.Close()
	if writeErr := <-errCh; writeErr != nil && reqErr == nil {
		return out, writeErr
	}
	return out, reqErr
}

func writeMarkerForm(pw *io.PipeWriter, writer *multipart.Writer, file io.Reader, imagePath, name, description string) (err error) {
	defer func() {
		if cerr := writer.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	if err := writer.WriteField("name", name); err != nil {
		return fmt.Errorf("failed to write form field: %w", err)
	}
	if err := writer.WriteField("description", description); err != nil {
		return fmt.Errorf("failed to write form field: %w", err)
	}
	part, err := writer.CreateFormFile("markerImage", filepath.Base(imagePath))
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to copy file: %w", err)
	}
	return nil
}

// do sends req and decodes a response with the wanted status into out. Any
// other status is returned as an *APIError.
func (c *Client) do(req *http.Request, want int, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr.Body)
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// APIError is a non-success response from the portal.
type APIError struct {
	StatusCode int
	Body       ErrorResponse
}

func (e *APIError) Error() string {
	msg := e.Body.Error
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if len(e.Body.Issues) > 0 {
		msg += ": " + strings.Join(e.Body.Issues, ", ")
	}
	return fmt.Sprintf("portal returned status %d: %s", e.StatusCode, msg)
}
