package model

import (
	"time"

	"github.com/webarportal/portal/internal/model/core"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Marker{},
	&ContentBinding{},
	&Sequence{},
}

// Sequence names
const (
	SequenceMarkers  = "markers"
	SequenceBindings = "content_bindings"
)

////////////////////////
// REGISTRY MODELS
////////////////////////

// Marker is a registered tracking reference image. IDs are allocated by the
// registry, never by the database.
type Marker struct {
	ID             uint64    `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name           string    `json:"name" gorm:"size:255;not null"`
	Description    string    `json:"description" gorm:"type:text"`
	SourceImageRef string    `json:"sourceImageRef" gorm:"size:512;not null"`
	DescriptorRef  string    `json:"descriptorRef" gorm:"size:512;not null"`
	CreatedAt      time.Time `json:"createdAt" gorm:"index:idx_marker_created_at"`

	Bindings []ContentBinding `json:"-" gorm:"foreignKey:MarkerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (*Marker) TableName() string {
	return "markers"
}

// ContentBinding attaches a positioned asset to a marker.
type ContentBinding struct {
	ID          uint64                             `json:"id" gorm:"primaryKey;autoIncrement:false"`
	MarkerID    uint64                             `json:"markerId" gorm:"index:idx_binding_marker_id;not null"`
	ContentType string                             `json:"contentType" gorm:"size:16;not null"`
	AssetRef    string                             `json:"assetRef" gorm:"size:512;not null"`
	Transform   datatypes.JSONType[core.Transform] `json:"transform"`
	CreatedAt   time.Time                          `json:"createdAt"`
}

func (*ContentBinding) TableName() string {
	return "content_bindings"
}

// Sequence stores the id high-water mark of a registry collection, so ids
// are not reused after the newest record is deleted.
type Sequence struct {
	Name  string `json:"name" gorm:"primaryKey;size:32"`
	Value uint64 `json:"value" gorm:"not null;default:0"`
}

func (*Sequence) TableName() string {
	return "sequences"
}
