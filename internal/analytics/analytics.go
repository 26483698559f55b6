// Package analytics records marker views and client-side AR errors.
//
// Sinks are fire-and-forget: nothing in the request path waits on them or
// sees their failures.
package analytics

import (
	"strings"
	"time"
)

// View is a single scene request for a marker.
type View struct {
	MarkerID  uint64
	UserAgent string
	IP        string
	At        time.Time
}

// ClientError is an error reported by the AR viewer.
type ClientError struct {
	At        time.Time `json:"timestamp"`
	Type      string    `json:"errorType"`
	MarkerID  uint64    `json:"markerId,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	Details   string    `json:"errorDetails,omitempty"`
	IP        string    `json:"ip,omitempty"`
}

// Sink receives analytics events.
type Sink interface {
	MarkerViewed(View)
	ClientError(ClientError)
}

// Multi fans events out to each sink in order.
type Multi []Sink

func (m Multi) MarkerViewed(v View) {
	for _, s := range m {
		s.MarkerViewed(v)
	}
}

func (m Multi) ClientError(e ClientError) {
	for _, s := range m {
		s.ClientError(e)
	}
}

// Browser buckets.
const (
	BrowserChrome  = "Chrome"
	BrowserFirefox = "Firefox"
	BrowserSafari  = "Safari"
	BrowserMobile  = "Mobile Browser"
	BrowserOther   = "Other"
)

// Browser maps a User-Agent header onto a coarse browser bucket. Chrome is
// checked before Safari because Chrome user agents also mention Safari.
func Browser(userAgent string) string {
	switch {
	case strings.Contains(userAgent, "Chrome"):
		return BrowserChrome
	case strings.Contains(userAgent, "Firefox"):
		return BrowserFirefox
	case strings.Contains(userAgent, "Safari"):
		return BrowserSafari
	case strings.Contains(userAgent, "Mobile"):
		return BrowserMobile
	}
	return BrowserOther
}

const dayLayout = "2006-01-02"

func day(t time.Time) string {
	return t.UTC().Format(dayLayout)
}
