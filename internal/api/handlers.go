package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/webarportal/portal/internal/analytics"
	"github.com/webarportal/portal/internal/model/core"
)

// MarkerCreated is the response to a marker upload.
type MarkerCreated struct {
	Success  bool        `json:"success"`
	MarkerID uint64      `json:"markerId"`
	ImageURL string      `json:"imageUrl"`
	PattURL  string      `json:"pattUrl"`
	Marker   core.Marker `json:"marker"`
}

// ContentCreated is the response to a content upload.
type ContentCreated struct {
	Success    bool                `json:"success"`
	ContentID  uint64              `json:"contentId"`
	ContentURL string              `json:"contentUrl"`
	Content    core.ContentBinding `json:"content"`
}

// Deleted is the response to a successful delete.
type Deleted struct {
	Success   bool   `json:"success"`
	MarkerID  uint64 `json:"deletedMarkerId,omitempty"`
	ContentID uint64 `json:"deletedContentId,omitempty"`
}

// Status is the service status summary.
type Status struct {
	Status        string    `json:"status"`
	ServerTime    time.Time `json:"serverTime"`
	MarkersCount  int       `json:"markersCount"`
	ContentsCount int       `json:"contentsCount"`
	Port          int       `json:"port"`
}

// AnalyticsStats is the overall analytics response. Today covers the current
// UTC day.
type AnalyticsStats struct {
	analytics.Overall
	Today analytics.DailyStats `json:"dailyStats"`
}

// MarkerAnalytics is the per-marker analytics response.
type MarkerAnalytics struct {
	MarkerID uint64                `json:"markerId"`
	Stats    analytics.MarkerStats `json:"stats"`
}

func idParam(r *http.Request, name string) (uint64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func (s *Server) listMarkers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Registry.Markers.List())
}

func (s *Server) getMarker(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := s.deps.Registry.Markers.Get(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) deleteMarker(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Registry.Markers.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Deleted{Success: true, MarkerID: id})
}

func (s *Server) listContent(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Registry.Contents.ListFor(id))
}

func (s *Server) uploadMarker(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.parseUpload(w, r); err != nil {
		s.fail(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	form := markerForm{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
	}
	if issues := s.check(form); issues != nil {
		writeError(w, http.StatusBadRequest, "invalid marker form", issues...)
		return
	}

	data, filename, err := formFile(r, "markerImage")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ref, err := s.deps.Store.Put(ctx, fileExt(filename), data)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	m, err := s.deps.Registry.Markers.Create(ctx, form.Name, form.Description, ref)
	if err != nil {
		s.discard(ctx, ref)
		s.deps.Metrics.upload("marker", false)
		s.fail(w, r, err)
		return
	}

	s.deps.Metrics.upload("marker", true)
	writeJSON(w, http.StatusCreated, MarkerCreated{
		Success:  true,
		MarkerID: m.ID,
		ImageURL: m.SourceImageRef,
		PattURL:  m.DescriptorRef,
		Marker:   m,
	})
}

func (s *Server) uploadContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.parseUpload(w, r); err != nil {
		s.fail(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	form := contentForm{
		MarkerID:    r.FormValue("markerId"),
		ContentType: r.FormValue("contentType"),
		Position:    r.FormValue("position"),
		Scale:       r.FormValue("scale"),
		Rotation:    r.FormValue("rotation"),
	}
	if issues := s.check(form); issues != nil {
		writeError(w, http.StatusBadRequest, "invalid content form", issues...)
		return
	}

	markerID, err := strconv.ParseUint(form.MarkerID, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid markerId %q", form.MarkerID))
		return
	}
	contentType := core.ContentType(form.ContentType)
	if !contentType.Valid() {
		s.fail(w, r, fmt.Errorf("%w: %q", core.ErrInvalidContentType, form.ContentType))
		return
	}
	transform, err := core.ParseTransform(form.Position, form.Scale, form.Rotation)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	// checked again under lock by Bind; this only avoids storing a doomed upload
	if !s.deps.Registry.Markers.Exists(markerID) {
		s.fail(w, r, fmt.Errorf("%w: %d", core.ErrMarkerNotFound, markerID))
		return
	}

	data, filename, err := formFile(r, "contentFile")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ref, err := s.deps.Store.Put(ctx, fileExt(filename), data)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	b, err := s.deps.Registry.Contents.Bind(ctx, markerID, contentType, ref, transform)
	if err != nil {
		s.discard(ctx, ref)
		s.deps.Metrics.upload("content", false)
		s.fail(w, r, err)
		return
	}

	s.deps.Metrics.upload("content", true)
	writeJSON(w, http.StatusCreated, ContentCreated{
		Success:    true,
		ContentID:  b.ID,
		ContentURL: b.AssetRef,
		Content:    b,
	})
}

func (s *Server) deleteContent(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Registry.Contents.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Deleted{Success: true, ContentID: id})
}

func (s *Server) scene(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "markerId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	scene, err := s.deps.Registry.Scenes.Compose(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.deps.Analytics.MarkerViewed(analytics.View{
		MarkerID:  id,
		UserAgent: r.UserAgent(),
		IP:        clientIP(r),
		At:        s.deps.Clock(),
	})
	writeJSON(w, http.StatusOK, scene)
}

func (s *Server) reportError(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)

	var form clientErrorForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if issues := s.check(form); issues != nil {
		writeError(w, http.StatusBadRequest, "invalid error report", issues...)
		return
	}

	s.deps.Analytics.ClientError(analytics.ClientError{
		At:        s.deps.Clock(),
		Type:      form.ErrorType,
		MarkerID:  form.MarkerID,
		UserAgent: r.UserAgent(),
		Details:   form.ErrorDetails,
		IP:        clientIP(r),
	})
	writeJSON(w, http.StatusAccepted, map[string]bool{"success": true})
}

func (s *Server) overallStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, AnalyticsStats{
		Overall: s.deps.Tracker.Overall(),
		Today:   s.deps.Tracker.Daily(s.deps.Clock()),
	})
}

func (s *Server) markerStats(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, ok := s.deps.Tracker.MarkerStats(id)
	if !ok {
		if !s.deps.Registry.Markers.Exists(id) {
			s.fail(w, r, fmt.Errorf("%w: %d", core.ErrMarkerNotFound, id))
			return
		}
		stats = analytics.MarkerStats{DailyViews: map[string]int{}, Browsers: map[string]int{}}
	}
	writeJSON(w, http.StatusOK, MarkerAnalytics{MarkerID: id, Stats: stats})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Status{
		Status:        "running",
		ServerTime:    s.deps.Clock().UTC(),
		MarkersCount:  s.deps.Registry.Markers.Count(),
		ContentsCount: s.deps.Registry.Contents.Count(),
		Port:          s.deps.Server.Port,
	})
}

func (s *Server) asset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	data, err := s.deps.Store.Get(r.Context(), s.deps.AssetPrefix+name)
	if errors.Is(err, core.ErrAssetNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
}

// parseUpload caps the body at the configured upload size and parses the
// multipart form.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) error {
	limit := s.deps.Server.MaxUploadBytes
	if r.ContentLength > limit {
		return &http.MaxBytesError{Limit: limit}
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return tooLarge
		}
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return nil
}

func formFile(r *http.Request, field string) ([]byte, string, error) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return nil, "", fmt.Errorf("%s file is required", field)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", field, err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%s file is empty", field)
	}
	return data, hdr.Filename, nil
}

// fileExt returns the lower-case extension of name without the dot, or "bin".
func fileExt(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return "bin"
	}
	return ext
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) discard(ctx context.Context, ref string) {
	if err := s.deps.Store.Delete(ctx, ref); err != nil && !errors.Is(err, core.ErrAssetNotFound) {
		s.log.Warn().Err(err).Str("ref", ref).Msg("Failed to remove rejected upload")
	}
}
