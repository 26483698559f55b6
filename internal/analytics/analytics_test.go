package analytics

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webarportal/portal/internal/config"
)

const (
	uaChrome  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	uaFirefox = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	uaSafari  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_2) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15"
)

func TestBrowser(t *testing.T) {
	tests := []struct {
		ua   string
		want string
	}{
		{uaChrome, BrowserChrome},
		{uaFirefox, BrowserFirefox},
		{uaSafari, BrowserSafari},
		{"SomeApp/1.0 Mobile", BrowserMobile},
		{"curl/8.0", BrowserOther},
		{"", BrowserOther},
	}
	for _, tt := range tests {
		t.Run(tt.want+"/"+tt.ua, func(t *testing.T) {
			assert.Equal(t, tt.want, Browser(tt.ua))
		})
	}
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestTracker_MarkerViewed(t *testing.T) {
	day1 := time.Date(2025, 3, 1, 23, 0, 0, 0, time.UTC)
	day2 := day1.Add(2 * time.Hour)
	tr := NewTracker(10, fixedClock(day2))

	tr.MarkerViewed(View{MarkerID: 1, UserAgent: uaChrome, At: day1})
	tr.MarkerViewed(View{MarkerID: 1, UserAgent: uaFirefox, At: day1})
	tr.MarkerViewed(View{MarkerID: 1, UserAgent: uaChrome}) // clock
	tr.MarkerViewed(View{MarkerID: 2, UserAgent: uaSafari, At: day1})

	s, ok := tr.MarkerStats(1)
	require.True(t, ok)
	assert.Equal(t, 3, s.TotalViews)
	assert.Equal(t, map[string]int{"2025-03-01": 2, "2025-03-02": 1}, s.DailyViews)
	assert.Equal(t, map[string]int{BrowserChrome: 2, BrowserFirefox: 1}, s.Browsers)
	assert.Equal(t, day2, s.LastViewed)

	_, ok = tr.MarkerStats(3)
	assert.False(t, ok)

	assert.Equal(t, DailyStats{TotalViews: 3, MarkersUsed: 2}, tr.Daily(day1))
	assert.Equal(t, DailyStats{TotalViews: 1, MarkersUsed: 1}, tr.Daily(day2))
	assert.Equal(t, DailyStats{}, tr.Daily(day1.AddDate(0, 0, -5)))
}

func TestTracker_MarkerStatsIsACopy(t *testing.T) {
	tr := NewTracker(10, nil)
	tr.MarkerViewed(View{MarkerID: 1})

	s, _ := tr.MarkerStats(1)
	s.Browsers[BrowserChrome] = 99

	again, _ := tr.MarkerStats(1)
	assert.Equal(t, map[string]int{BrowserOther: 1}, again.Browsers)
}

func TestTracker_Overall(t *testing.T) {
	tr := NewTracker(100, nil)
	for id := uint64(1); id <= 12; id++ {
		for i := uint64(0); i < id%5; i++ {
			tr.MarkerViewed(View{MarkerID: id})
		}
		if id%5 == 0 {
			tr.MarkerViewed(View{MarkerID: id})
		}
	}

	o := tr.Overall()
	assert.Equal(t, 12, o.TotalMarkers)
	require.Len(t, o.PopularMarkers, 10)
	assert.Equal(t, Popular{MarkerID: 4, Views: 4}, o.PopularMarkers[0])
	assert.Equal(t, Popular{MarkerID: 9, Views: 4}, o.PopularMarkers[1])
	assert.Equal(t, Popular{MarkerID: 3, Views: 3}, o.PopularMarkers[2])
	for i := 1; i < len(o.PopularMarkers); i++ {
		assert.GreaterOrEqual(t, o.PopularMarkers[i-1].Views, o.PopularMarkers[i].Views)
	}

	total := 0
	for id := uint64(1); id <= 12; id++ {
		s, _ := tr.MarkerStats(id)
		total += s.TotalViews
	}
	assert.Equal(t, total, o.TotalViews)
	assert.NotNil(t, o.RecentErrors)
	assert.Empty(t, o.RecentErrors)
}

func TestTracker_ErrorsKeepNewest(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := NewTracker(15, fixedClock(now))

	for i := 0; i < 20; i++ {
		tr.ClientError(ClientError{Type: fmt.Sprintf("e%d", i)})
	}

	o := tr.Overall()
	require.Len(t, o.RecentErrors, 10)
	assert.Equal(t, "e10", o.RecentErrors[0].Type)
	assert.Equal(t, "e19", o.RecentErrors[9].Type)
	assert.Equal(t, now, o.RecentErrors[0].At)
	assert.Equal(t, 15, tr.errors.Len())
}

func TestTracker_Concurrent(t *testing.T) {
	tr := NewTracker(10, nil)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				tr.MarkerViewed(View{MarkerID: uint64(i % 3)})
				tr.ClientError(ClientError{Type: "x"})
				_ = tr.Overall()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, tr.Overall().TotalViews)
}

type recordingSink struct {
	views  []View
	errors []ClientError
}

func (r *recordingSink) MarkerViewed(v View)       { r.views = append(r.views, v) }
func (r *recordingSink) ClientError(e ClientError) { r.errors = append(r.errors, e) }

func TestMulti(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	var s Sink = Multi{a, b}

	s.MarkerViewed(View{MarkerID: 3})
	s.ClientError(ClientError{Type: "camera"})

	for _, r := range []*recordingSink{a, b} {
		assert.Equal(t, []View{{MarkerID: 3}}, r.views)
		assert.Equal(t, []ClientError{{Type: "camera"}}, r.errors)
	}
}

func unreachable(backupPath string) config.InfluxConfig {
	return config.InfluxConfig{
		Enabled:    true,
		Host:       "127.0.0.1",
		Port:       "1",
		Protocol:   "http",
		Org:        "portal",
		Bucket:     "portal-analytics",
		BackupPath: backupPath,
	}
}

func TestInfluxSink_BackupWhenUnreachable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "analytics.lp.gz")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sink, err := NewInfluxSink(ctx, unreachable(path), zerolog.Nop())
	require.NoError(t, err)

	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	sink.MarkerViewed(View{MarkerID: 7, UserAgent: uaChrome, At: at})
	sink.ClientError(ClientError{Type: "tracking_lost", MarkerID: 7, Details: `no "marker"`, At: at})
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)

	var lines []string
	sc := bufio.NewScanner(zr)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	require.Len(t, lines, 2)

	ts := fmt.Sprint(at.UnixNano())
	assert.Equal(t, "marker_view,browser=Chrome,marker_id=7 count=1i "+ts, lines[0])
	assert.Equal(t, `client_error,browser=Other,error_type=tracking_lost,marker_id=7 count=1i,details="no \"marker\"" `+ts, lines[1])
}

func TestInfluxSink_UnreachableWithoutBackup(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := NewInfluxSink(ctx, unreachable(""), zerolog.Nop())
	assert.Error(t, err)
}
