package analytics

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/webarportal/portal/internal/config"
)

const (
	measurementView  = "marker_view"
	measurementError = "client_error"

	retentionSeconds = 60 * 60 * 24 * 90 // 90 days
)

// InfluxSink writes analytics points to InfluxDB through the non-blocking
// write API. When the server cannot be reached at startup the points go to a
// gzipped line protocol backup file instead.
type InfluxSink struct {
	log    zerolog.Logger
	client influxdb2.Client
	writer influxdb2_api.WriteAPI

	mu         sync.Mutex
	backupFile *os.File
	backup     *gzip.Writer
}

// NewInfluxSink connects to the configured server. If the ping fails and
// cfg.BackupPath is set, the sink falls back to the backup file.
func NewInfluxSink(ctx context.Context, cfg config.InfluxConfig, log zerolog.Logger) (*InfluxSink, error) {
	s := &InfluxSink{log: log.With().Str("component", "influx").Logger()}

	s.client = influxdb2.NewClientWithOptions(
		cfg.URL(),
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := s.client.Ping(ctx)
	if err != nil || !running {
		s.client.Close()
		s.client = nil
		if cfg.BackupPath == "" {
			return nil, fmt.Errorf("influxdb at %s is unreachable: %v", cfg.URL(), err)
		}
		if err := s.openBackup(cfg.BackupPath); err != nil {
			return nil, err
		}
		s.log.Warn().Str("backupPath", cfg.BackupPath).Msg("InfluxDB unreachable, writing analytics to backup file")
		return s, nil
	}

	if err := s.ensureBucket(ctx, cfg.Org, cfg.Bucket); err != nil {
		s.client.Close()
		return nil, err
	}

	s.writer = s.client.WriteAPI(cfg.Org, cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			s.log.Error().Err(writeErr).Str("bucket", cfg.Bucket).Msg("Error sending data to InfluxDB")
		}
	}(s.writer.Errors())

	s.log.Info().Str("url", cfg.URL()).Str("bucket", cfg.Bucket).Msg("InfluxDB client initialized")
	return s, nil
}

func (s *InfluxSink) openBackup(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating backup directory: %v", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %v", err)
	}
	s.backupFile = file
	s.backup = gzip.NewWriter(file)
	return nil
}

func (s *InfluxSink) ensureBucket(ctx context.Context, orgName, bucket string) error {
	org, err := s.client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		s.log.Info().Str("org", orgName).Msg("Organization not found, creating")
		org, err = s.client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			return fmt.Errorf("error creating organization %s: %w", orgName, err)
		}
	}

	if _, err := s.client.BucketsAPI().FindBucketByName(ctx, bucket); err == nil {
		return nil
	}
	s.log.Info().Str("bucket", bucket).Msg("Bucket not found, creating")
	rule := domain.RetentionRuleTypeExpire
	_, err = s.client.BucketsAPI().CreateBucketWithName(ctx, org, bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: retentionSeconds,
	})
	if err != nil {
		return fmt.Errorf("error creating bucket %s: %w", bucket, err)
	}
	return nil
}

func (s *InfluxSink) MarkerViewed(v View) {
	s.write(viewPoint(v))
}

func (s *InfluxSink) ClientError(e ClientError) {
	s.write(errorPoint(e))
}

func (s *InfluxSink) write(p *influxdb2_write.Point) {
	if s.writer != nil {
		s.writer.WritePoint(p)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backup == nil {
		return
	}
	line := influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
	if _, err := s.backup.Write([]byte(line + "\n")); err != nil {
		s.log.Error().Err(err).Msg("Error writing to InfluxDB backup file")
	}
}

// Close flushes pending points and releases the client or backup file.
func (s *InfluxSink) Close() error {
	if s.writer != nil {
		s.writer.Flush()
	}
	if s.client != nil {
		s.client.Close()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backup == nil {
		return nil
	}
	err := s.backup.Close()
	if cerr := s.backupFile.Close(); err == nil {
		err = cerr
	}
	s.backup = nil
	return err
}

func viewPoint(v View) *influxdb2_write.Point {
	at := v.At
	if at.IsZero() {
		at = time.Now()
	}
	return influxdb2_write.NewPoint(
		measurementView,
		map[string]string{
			"marker_id": strconv.FormatUint(v.MarkerID, 10),
			"browser":   Browser(v.UserAgent),
		},
		map[string]interface{}{"count": 1},
		at,
	)
}

func errorPoint(e ClientError) *influxdb2_write.Point {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	tags := map[string]string{
		"error_type": e.Type,
		"browser":    Browser(e.UserAgent),
	}
	if e.MarkerID != 0 {
		tags["marker_id"] = strconv.FormatUint(e.MarkerID, 10)
	}
	return influxdb2_write.NewPoint(
		measurementError,
		tags,
		map[string]interface{}{"details": e.Details, "count": 1},
		at,
	)
}
