// Package convert provides functions to convert GORM models to core models
package convert

import (
	"github.com/webarportal/portal/internal/model"
	"github.com/webarportal/portal/internal/model/core"
)

// MarkerToCore converts a GORM Marker to a core.Marker.
func MarkerToCore(m model.Marker) core.Marker {
	return core.Marker{
		ID:             m.ID,
		Name:           m.Name,
		Description:    m.Description,
		SourceImageRef: m.SourceImageRef,
		DescriptorRef:  m.DescriptorRef,
		CreatedAt:      m.CreatedAt.UTC(),
	}
}

// ContentBindingToCore converts a GORM ContentBinding to a core.ContentBinding.
func ContentBindingToCore(b model.ContentBinding) core.ContentBinding {
	return core.ContentBinding{
		ID:          b.ID,
		MarkerID:    b.MarkerID,
		ContentType: core.ContentType(b.ContentType),
		AssetRef:    b.AssetRef,
		Transform:   b.Transform.Data(),
		CreatedAt:   b.CreatedAt.UTC(),
	}
}
