package analytics

import (
	"sort"
	"sync"
	"time"

	"github.com/webarportal/portal/internal/queue"
)

const (
	popularLimit = 10
	recentLimit  = 10
)

// MarkerStats aggregates views of one marker.
type MarkerStats struct {
	TotalViews int            `json:"totalViews"`
	DailyViews map[string]int `json:"dailyViews"`
	Browsers   map[string]int `json:"userAgents"`
	LastViewed time.Time      `json:"lastViewed"`
}

// DailyStats aggregates views across markers for one UTC day.
type DailyStats struct {
	TotalViews  int `json:"totalViews"`
	MarkersUsed int `json:"markersUsed"`
}

// Popular is one entry of the most viewed markers.
type Popular struct {
	MarkerID uint64 `json:"id"`
	Views    int    `json:"views"`
}

// Overall summarises everything tracked so far.
type Overall struct {
	TotalMarkers   int           `json:"totalMarkers"`
	TotalViews     int           `json:"totalViews"`
	PopularMarkers []Popular     `json:"popularMarkers"`
	RecentErrors   []ClientError `json:"recentErrors"`
}

type dailyAgg struct {
	views   int
	markers map[uint64]struct{}
}

// Tracker keeps analytics aggregates in memory.
type Tracker struct {
	clock func() time.Time

	mu      sync.Mutex
	markers map[uint64]*MarkerStats
	daily   map[string]*dailyAgg
	errors  *queue.Ring[ClientError]
}

// NewTracker returns a tracker keeping the last maxErrors client errors. A nil
// clock means time.Now.
func NewTracker(maxErrors int, clock func() time.Time) *Tracker {
	if clock == nil {
		clock = time.Now
	}
	return &Tracker{
		clock:   clock,
		markers: make(map[uint64]*MarkerStats),
		daily:   make(map[string]*dailyAgg),
		errors:  queue.NewRing[ClientError](maxErrors),
	}
}

func (t *Tracker) MarkerViewed(v View) {
	at := v.At
	if at.IsZero() {
		at = t.clock()
	}
	at = at.UTC()
	d := day(at)

	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.markers[v.MarkerID]
	if !ok {
		s = &MarkerStats{
			DailyViews: make(map[string]int),
			Browsers:   make(map[string]int),
		}
		t.markers[v.MarkerID] = s
	}
	s.TotalViews++
	s.DailyViews[d]++
	s.Browsers[Browser(v.UserAgent)]++
	if at.After(s.LastViewed) {
		s.LastViewed = at
	}

	agg, ok := t.daily[d]
	if !ok {
		agg = &dailyAgg{markers: make(map[uint64]struct{})}
		t.daily[d] = agg
	}
	agg.views++
	agg.markers[v.MarkerID] = struct{}{}
}

func (t *Tracker) ClientError(e ClientError) {
	if e.At.IsZero() {
		e.At = t.clock()
	}
	e.At = e.At.UTC()
	t.errors.Push(e)
}

// MarkerStats returns a copy of the aggregates for markerID.
func (t *Tracker) MarkerStats(markerID uint64) (MarkerStats, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.markers[markerID]
	if !ok {
		return MarkerStats{}, false
	}
	out := *s
	out.DailyViews = make(map[string]int, len(s.DailyViews))
	for k, v := range s.DailyViews {
		out.DailyViews[k] = v
	}
	out.Browsers = make(map[string]int, len(s.Browsers))
	for k, v := range s.Browsers {
		out.Browsers[k] = v
	}
	return out, true
}

// Daily returns the totals for the UTC day containing at.
func (t *Tracker) Daily(at time.Time) DailyStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	agg, ok := t.daily[day(at)]
	if !ok {
		return DailyStats{}
	}
	return DailyStats{TotalViews: agg.views, MarkersUsed: len(agg.markers)}
}

// Overall returns totals, the ten most viewed markers (ties by id) and the
// ten most recent client errors, oldest first.
func (t *Tracker) Overall() Overall {
	t.mu.Lock()
	out := Overall{
		TotalMarkers:   len(t.markers),
		PopularMarkers: make([]Popular, 0, len(t.markers)),
	}
	for id, s := range t.markers {
		out.TotalViews += s.TotalViews
		out.PopularMarkers = append(out.PopularMarkers, Popular{MarkerID: id, Views: s.TotalViews})
	}
	t.mu.Unlock()

	sort.Slice(out.PopularMarkers, func(i, j int) bool {
		a, b := out.PopularMarkers[i], out.PopularMarkers[j]
		if a.Views != b.Views {
			return a.Views > b.Views
		}
		return a.MarkerID < b.MarkerID
	})
	if len(out.PopularMarkers) > popularLimit {
		out.PopularMarkers = out.PopularMarkers[:popularLimit]
	}
	out.RecentErrors = t.errors.Last(recentLimit)
	return out
}
