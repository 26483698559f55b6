// Package gormstorage implements the storage.Backend interface on top of GORM.
// Every mutation runs in a single transaction together with the sequence
// high-water mark it advances.
package gormstorage

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/webarportal/portal/internal/database"
	"github.com/webarportal/portal/internal/model"
	"github.com/webarportal/portal/internal/model/convert"
	"github.com/webarportal/portal/internal/model/core"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger zerolog.Logger
}

// Backend implements storage.Backend using GORM.
type Backend struct {
	deps Dependencies
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	return &Backend{deps: deps}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return errors.New("gorm backend has no database")
	}
	if err := database.Migrate(b.deps.DB); err != nil {
		return err
	}
	b.deps.Logger.Debug().Str("dialect", b.deps.DB.Dialector.Name()).Msg("Registry schema migrated")
	return nil
}

// Close closes the underlying connection pool.
func (b *Backend) Close() error {
	if b.deps.DB == nil {
		return nil
	}
	sqlDB, err := b.deps.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	return sqlDB.Close()
}

// Load reads all markers, bindings and sequence values.
func (b *Backend) Load() (*core.Snapshot, error) {
	db := b.deps.DB

	var markers []model.Marker
	if err := db.Order("id").Find(&markers).Error; err != nil {
		return nil, fmt.Errorf("failed to load markers: %w", err)
	}
	var bindings []model.ContentBinding
	if err := db.Order("id").Find(&bindings).Error; err != nil {
		return nil, fmt.Errorf("failed to load content bindings: %w", err)
	}
	var seqs []model.Sequence
	if err := db.Find(&seqs).Error; err != nil {
		return nil, fmt.Errorf("failed to load sequences: %w", err)
	}

	snap := &core.Snapshot{
		Markers:  make([]core.Marker, 0, len(markers)),
		Bindings: make([]core.ContentBinding, 0, len(bindings)),
	}
	for _, m := range markers {
		snap.Markers = append(snap.Markers, convert.MarkerToCore(m))
		snap.MarkerSeq = max(snap.MarkerSeq, m.ID)
	}
	for _, bd := range bindings {
		snap.Bindings = append(snap.Bindings, convert.ContentBindingToCore(bd))
		snap.BindingSeq = max(snap.BindingSeq, bd.ID)
	}
	for _, s := range seqs {
		switch s.Name {
		case model.SequenceMarkers:
			snap.MarkerSeq = max(snap.MarkerSeq, s.Value)
		case model.SequenceBindings:
			snap.BindingSeq = max(snap.BindingSeq, s.Value)
		}
	}
	return snap, nil
}

func (b *Backend) InsertMarker(m core.Marker) error {
	row := convert.CoreToMarker(m)
	err := b.deps.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return advanceSequence(tx, model.SequenceMarkers, m.ID)
	})
	if err != nil {
		return fmt.Errorf("failed to insert marker %d: %w", m.ID, err)
	}
	return nil
}

func (b *Backend) DeleteMarker(id uint64) error {
	return b.deps.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("marker_id = ?", id).Delete(&model.ContentBinding{}).Error; err != nil {
			return fmt.Errorf("failed to delete bindings of marker %d: %w", id, err)
		}
		res := tx.Delete(&model.Marker{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete marker %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %d", core.ErrMarkerNotFound, id)
		}
		return nil
	})
}

func (b *Backend) InsertBinding(bd core.ContentBinding) error {
	row := convert.CoreToContentBinding(bd)
	return b.deps.DB.Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.Marker{}).Where("id = ?", bd.MarkerID).Count(&n).Error; err != nil {
			return fmt.Errorf("failed to check marker %d: %w", bd.MarkerID, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %d", core.ErrMarkerNotFound, bd.MarkerID)
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to insert binding %d: %w", bd.ID, err)
		}
		return advanceSequence(tx, model.SequenceBindings, bd.ID)
	})
}

func (b *Backend) DeleteBinding(id uint64) error {
	res := b.deps.DB.Delete(&model.ContentBinding{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete binding %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", core.ErrContentNotFound, id)
	}
	return nil
}

// advanceSequence upserts the high-water mark for name. Ids only grow, so the
// new value always replaces the stored one.
func advanceSequence(tx *gorm.DB, name string, value uint64) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"value": value}),
	}).Create(&model.Sequence{Name: name, Value: value}).Error
}
