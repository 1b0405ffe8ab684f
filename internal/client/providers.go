// Package client implements the participant side of the sync protocol:
// session lifecycle, readiness gating and segmentation reconciliation.
// The rendering runtime stays behind the provider interfaces below.
package client

import "github.com/dkeye/Cine/internal/domain"

// ViewerStateProvider exposes the viewer's viewport state.
type ViewerStateProvider interface {
	ActiveViewportID() string
	ViewportState(viewportID string) (domain.DisplaySetSnapshot, bool)
	ApplyDisplaySet(ds domain.DisplaySetSnapshot) error
	RefreshViewport(viewportID string)
}

// VolumeProvider answers whether image data for a display set is loaded.
type VolumeProvider interface {
	HasVolume(displaySetUID string) bool
}

// SegmentationProvider owns local segmentation objects.
type SegmentationProvider interface {
	Get(id domain.SegmentationID) (*domain.SegmentationSnapshot, bool)
	// CreatePlaceholder builds a metadata-only labelmap; no voxel data yet.
	CreatePlaceholder(snap *domain.SegmentationSnapshot) error
	Rename(id domain.SegmentationID, label string) error
	ApplyMeta(id domain.SegmentationID, idx domain.SegmentIndex, patch domain.SegmentPatch) error
	// Import replaces the object wholesale with metadata plus voxel data.
	Import(id domain.SegmentationID, meta *domain.SegmentationSnapshot, data []byte) error
	Remove(id domain.SegmentationID)
	// Export produces the full transfer payload; host side only.
	Export(id domain.SegmentationID) (*domain.SegmentationSnapshot, []byte, error)
}

// LocalSegmentationEvent is a host-local mutation reported by the viewer
// runtime, to be fanned out to the room.
type LocalSegmentationEvent struct {
	Name     string // added | modified | removed | data-modified
	ID       domain.SegmentationID
	Label    string
	Snapshot *domain.SegmentationSnapshot                // added
	Patches  map[domain.SegmentIndex]domain.SegmentPatch // modified
}

// SegmentationEventSource lets the controller observe host-local edits.
type SegmentationEventSource interface {
	Subscribe(fn func(LocalSegmentationEvent)) (unsubscribe func())
}
