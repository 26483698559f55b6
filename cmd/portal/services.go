package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/webarportal/portal/internal/analytics"
	"github.com/webarportal/portal/internal/api"
	"github.com/webarportal/portal/internal/assets"
	"github.com/webarportal/portal/internal/config"
	"github.com/webarportal/portal/internal/ingest"
	"github.com/webarportal/portal/internal/model/core"
	"github.com/webarportal/portal/internal/pattern"
	"github.com/webarportal/portal/internal/registry"
	"github.com/webarportal/portal/internal/storage"
)

// services is the wired application behind `portal serve`.
type services struct {
	backend storage.Backend
	influx  *analytics.InfluxSink
	server  *api.Server
}

func newServices(ctx context.Context, log zerolog.Logger) (*services, error) {
	storageCfg := config.GetStorageConfig()
	backend, err := storage.NewBackend(storageCfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	log.Info().Str("type", storageCfg.Type).Msg("Storage backend initialized")

	s := &services{backend: backend}
	if err := s.wire(ctx, log); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *services) wire(ctx context.Context, log zerolog.Logger) error {
	assetsCfg := config.GetAssetsConfig()
	store, err := assets.NewFSStore(assetsCfg.Dir, assetsCfg.URLPrefix)
	if err != nil {
		return fmt.Errorf("failed to open asset store: %w", err)
	}
	log.Info().Str("dir", store.Dir()).Str("urlPrefix", store.URLPrefix()).Msg("Asset store opened")

	pipeline := newPipeline(config.GetPatternConfig(), store)

	reg, err := registry.New(registry.Dependencies{
		Backend:       s.backend,
		Store:         store,
		Pipeline:      pipeline,
		Logger:        log,
		Limits:        contentLimits(config.GetContentConfig()),
		PruneOnDelete: assetsCfg.PruneOnDelete,
	})
	if err != nil {
		return fmt.Errorf("failed to restore registry: %w", err)
	}
	log.Info().
		Int("markers", reg.Markers.Count()).
		Int("contents", reg.Contents.Count()).
		Msg("Registry restored")

	analyticsCfg := config.GetAnalyticsConfig()
	tracker := analytics.NewTracker(analyticsCfg.MaxErrors, nil)
	sinks := analytics.Multi{tracker}
	if analyticsCfg.Influx.Enabled {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		influx, err := analytics.NewInfluxSink(pingCtx, analyticsCfg.Influx, log)
		cancel()
		if err != nil {
			// analytics export is optional, the portal runs without it
			log.Warn().Err(err).Msg("InfluxDB analytics export disabled")
		} else {
			s.influx = influx
			sinks = append(sinks, influx)
		}
	}

	s.server, err = api.New(api.Dependencies{
		Registry:    reg,
		Store:       store,
		Tracker:     tracker,
		Analytics:   sinks,
		Metrics:     api.NewMetrics(),
		Logger:      log,
		Server:      config.GetServerConfig(),
		AssetPrefix: assetsCfg.URLPrefix,
	})
	return err
}

// Close releases the analytics export and the storage backend.
func (s *services) Close() error {
	var errs []error
	if s.influx != nil {
		errs = append(errs, s.influx.Close())
	}
	if s.backend != nil {
		errs = append(errs, s.backend.Close())
	}
	return errors.Join(errs...)
}

func newPipeline(cfg config.PatternConfig, store assets.Store) *ingest.Pipeline {
	return ingest.New(pattern.Config{
		GridSize:    cfg.GridSize,
		MinVariance: cfg.MinVariance,
	}, cfg.MinImageSize, cfg.MaxImageSize, store)
}

// contentLimits maps configured ceilings onto content types. Non-positive
// values leave a type unlimited.
func contentLimits(cfg config.ContentConfig) map[core.ContentType]int64 {
	limits := make(map[core.ContentType]int64, len(core.ContentTypes))
	for _, ct := range core.ContentTypes {
		if n := cfg.MaxBytes[string(ct)]; n > 0 {
			limits[ct] = n
		}
	}
	return limits
}
