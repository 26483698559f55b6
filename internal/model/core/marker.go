// internal/model/core/marker.go
package core

import "time"

// Marker is a registered square reference image. DescriptorRef always points
// at a successfully generated pattern descriptor.
type Marker struct {
	ID             uint64    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	SourceImageRef string    `json:"imageUrl"`
	DescriptorRef  string    `json:"pattUrl"`
	CreatedAt      time.Time `json:"created"`
}
