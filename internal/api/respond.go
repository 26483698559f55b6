package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/webarportal/portal/internal/assets"
	"github.com/webarportal/portal/internal/model/core"
)

var errMalformedBody = errors.New("malformed request body")

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Issues  []string `json:"issues,omitempty"`
	Path    string   `json:"path,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// the status line is already sent, an encode error cannot be reported
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, issues ...string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Issues: issues})
}

// fail maps err onto a status code and writes it. Unexpected errors are
// logged and reported without detail.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *core.ValidationError
		encoding   *core.EncodingError
		tooLarge   *core.AssetTooLargeError
		bodyLimit  *http.MaxBytesError
	)

	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, "image is not usable as a marker", validation.Issues...)
	case errors.As(err, &encoding) && encoding.Reason != core.ReasonStorage:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.As(err, &bodyLimit):
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("upload is too large (maximum %d MB)", bodyLimit.Limit>>20))
	case errors.Is(err, core.ErrNameRequired),
		errors.Is(err, core.ErrInvalidTransform),
		errors.Is(err, core.ErrInvalidContentType),
		errors.Is(err, assets.ErrInvalidExtension),
		errors.Is(err, errMalformedBody):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrMarkerNotFound),
		errors.Is(err, core.ErrContentNotFound),
		errors.Is(err, core.ErrAssetNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "route not found", Path: r.URL.Path})
}
