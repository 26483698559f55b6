package convert

import (
	"github.com/webarportal/portal/internal/model"
	"github.com/webarportal/portal/internal/model/core"
	"gorm.io/datatypes"
)

// CoreToMarker converts a core.Marker to a GORM Marker.
func CoreToMarker(m core.Marker) model.Marker {
	return model.Marker{
		ID:             m.ID,
		Name:           m.Name,
		Description:    m.Description,
		SourceImageRef: m.SourceImageRef,
		DescriptorRef:  m.DescriptorRef,
		CreatedAt:      m.CreatedAt,
	}
}

// CoreToContentBinding converts a core.ContentBinding to a GORM ContentBinding.
func CoreToContentBinding(b core.ContentBinding) model.ContentBinding {
	return model.ContentBinding{
		ID:          b.ID,
		MarkerID:    b.MarkerID,
		ContentType: string(b.ContentType),
		AssetRef:    b.AssetRef,
		Transform:   datatypes.NewJSONType(b.Transform),
		CreatedAt:   b.CreatedAt,
	}
}
