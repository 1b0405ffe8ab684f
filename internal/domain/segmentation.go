package domain

// SegmentMeta describes a single labeled region inside a segmentation.
type SegmentMeta struct {
	Label   string  `json:"label"`
	Locked  bool    `json:"locked"`
	Active  bool    `json:"active"`
	Visible bool    `json:"visible"`
	Color   [4]byte `json:"color"`
}

// SegmentPatch carries only the fields present in a modified event.
// Nil means "leave as is"; color, visibility and lock are independently optional.
type SegmentPatch struct {
	Label   *string  `json:"label,omitempty"`
	Locked  *bool    `json:"locked,omitempty"`
	Active  *bool    `json:"active,omitempty"`
	Visible *bool    `json:"visible,omitempty"`
	Color   *[4]byte `json:"color,omitempty"`
}

// SegmentationSnapshot is the sync-relevant view of one segmentation.
// Metadata (Segments) and the voxel payload (Data) travel in separate
// messages; Data is nil until a data transfer happened.
type SegmentationSnapshot struct {
	ID       SegmentationID               `json:"segmentationId"`
	Label    string                       `json:"label"`
	Segments map[SegmentIndex]SegmentMeta `json:"segments"`
	Data     []byte                       `json:"data,omitempty"`
}

func (s *SegmentationSnapshot) Hydrated() bool { return len(s.Data) > 0 }

// Clone returns a deep copy safe to hand out across goroutines.
func (s *SegmentationSnapshot) Clone() *SegmentationSnapshot {
	if s == nil {
		return nil
	}
	cp := &SegmentationSnapshot{
		ID:       s.ID,
		Label:    s.Label,
		Segments: make(map[SegmentIndex]SegmentMeta, len(s.Segments)),
	}
	for idx, meta := range s.Segments {
		cp.Segments[idx] = meta
	}
	if s.Data != nil {
		cp.Data = make([]byte, len(s.Data))
		copy(cp.Data, s.Data)
	}
	return cp
}

// Apply merges a patch into an existing segment. Returns false when the index
// is unknown; updates never fabricate segments.
func (s *SegmentationSnapshot) Apply(idx SegmentIndex, p SegmentPatch) bool {
	meta, ok := s.Segments[idx]
	if !ok {
		return false
	}
	if p.Label != nil {
		meta.Label = *p.Label
	}
	if p.Locked != nil {
		meta.Locked = *p.Locked
	}
	if p.Active != nil {
		meta.Active = *p.Active
	}
	if p.Visible != nil {
		meta.Visible = *p.Visible
	}
	if p.Color != nil {
		meta.Color = *p.Color
	}
	s.Segments[idx] = meta
	return true
}
