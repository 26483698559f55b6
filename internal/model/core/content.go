// internal/model/core/content.go
package core

import "time"

// ContentType is the kind of asset bound to a marker.
type ContentType string

const (
	ContentImage ContentType = "image"
	ContentVideo ContentType = "video"
	ContentModel ContentType = "model"
)

// ContentTypes lists every recognised content type.
var ContentTypes = []ContentType{ContentImage, ContentVideo, ContentModel}

// Valid reports whether t is one of the recognised content types.
func (t ContentType) Valid() bool {
	switch t {
	case ContentImage, ContentVideo, ContentModel:
		return true
	}
	return false
}

// ContentBinding attaches a positioned asset to a marker.
type ContentBinding struct {
	ID          uint64      `json:"id"`
	MarkerID    uint64      `json:"markerId"`
	ContentType ContentType `json:"contentType"`
	AssetRef    string      `json:"contentUrl"`
	Transform   Transform   `json:"transform"`
	CreatedAt   time.Time   `json:"created"`
}

// SceneInfo summarises what a scene contains.
type SceneInfo struct {
	ContentCount int  `json:"contentCount"`
	Has3DModels  bool `json:"has3DModels"`
	HasVideos    bool `json:"hasVideos"`
	HasImages    bool `json:"hasImages"`
}

// Scene is the read-time join of a marker and its bindings.
type Scene struct {
	Marker   Marker           `json:"marker"`
	Bindings []ContentBinding `json:"contents"`
	Info     SceneInfo        `json:"sceneInfo"`
}

// NewScene joins m with bindings and derives the summary.
func NewScene(m Marker, bindings []ContentBinding) Scene {
	info := SceneInfo{ContentCount: len(bindings)}
	for _, b := range bindings {
		switch b.ContentType {
		case ContentModel:
			info.Has3DModels = true
		case ContentVideo:
			info.HasVideos = true
		case ContentImage:
			info.HasImages = true
		}
	}
	if bindings == nil {
		bindings = []ContentBinding{}
	}
	return Scene{Marker: m, Bindings: bindings, Info: info}
}
