package main

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cine/internal/client"
	"github.com/dkeye/Cine/internal/domain"
)

// memProviders is a headless stand-in for the viewer runtime: it keeps
// snapshots in memory and logs every applied mutation.
type memProviders struct {
	mu      sync.Mutex
	display domain.DisplaySetSnapshot
	hasDS   bool
	snaps   map[domain.SegmentationID]*domain.SegmentationSnapshot
}

func newMemProviders() *memProviders {
	return &memProviders{snaps: make(map[domain.SegmentationID]*domain.SegmentationSnapshot)}
}

func (m *memProviders) ActiveViewportID() string { return "viewport-1" }

func (m *memProviders) ViewportState(string) (domain.DisplaySetSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.display, m.hasDS
}

func (m *memProviders) ApplyDisplaySet(ds domain.DisplaySetSnapshot) error {
	m.mu.Lock()
	m.display = ds
	m.hasDS = true
	m.mu.Unlock()
	log.Info().Str("display_set", ds.DisplaySetInstanceUID).Str("modality", ds.Modality).Int("frame", ds.FrameIndex).Msg("display set applied")
	return nil
}

func (m *memProviders) RefreshViewport(id string) {
	log.Debug().Str("viewport", id).Msg("viewport refreshed")
}

func (m *memProviders) HasVolume(string) bool { return true }

func (m *memProviders) Get(id domain.SegmentationID) (*domain.SegmentationSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[id]
	if !ok {
		return nil, false
	}
	return snap.Clone(), true
}

func (m *memProviders) CreatePlaceholder(snap *domain.SegmentationSnapshot) error {
	m.mu.Lock()
	m.snaps[snap.ID] = snap.Clone()
	m.mu.Unlock()
	log.Info().Str("segmentation", string(snap.ID)).Str("label", snap.Label).Int("segments", len(snap.Segments)).Msg("placeholder created")
	return nil
}

func (m *memProviders) Rename(id domain.SegmentationID, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[id]
	if !ok {
		return errors.Errorf("segmentation %s not found", id)
	}
	snap.Label = label
	return nil
}

func (m *memProviders) ApplyMeta(id domain.SegmentationID, idx domain.SegmentIndex, patch domain.SegmentPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[id]
	if !ok {
		return errors.Errorf("segmentation %s not found", id)
	}
	if !snap.Apply(idx, patch) {
		return errors.Errorf("segment %d not found", idx)
	}
	return nil
}

func (m *memProviders) Import(id domain.SegmentationID, meta *domain.SegmentationSnapshot, data []byte) error {
	snap := meta.Clone()
	if snap == nil {
		snap = &domain.SegmentationSnapshot{ID: id, Segments: make(map[domain.SegmentIndex]domain.SegmentMeta)}
	}
	snap.ID = id
	snap.Data = data
	m.mu.Lock()
	m.snaps[id] = snap
	m.mu.Unlock()
	log.Info().Str("segmentation", string(id)).Int("bytes", len(data)).Msg("segmentation imported")
	return nil
}

func (m *memProviders) Remove(id domain.SegmentationID) {
	m.mu.Lock()
	delete(m.snaps, id)
	m.mu.Unlock()
	log.Info().Str("segmentation", string(id)).Msg("segmentation removed")
}

func (m *memProviders) Export(id domain.SegmentationID) (*domain.SegmentationSnapshot, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[id]
	if !ok {
		return nil, nil, errors.Errorf("segmentation %s not found", id)
	}
	meta := snap.Clone()
	data := meta.Data
	meta.Data = nil
	return meta, data, nil
}

var _ client.ViewerStateProvider = (*memProviders)(nil)
var _ client.VolumeProvider = (*memProviders)(nil)
var _ client.SegmentationProvider = (*memProviders)(nil)
