package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cine/internal/domain"
)

// sessionImpl is a threadsafe in-memory session.
// It never closes adapter-owned resources.
type sessionImpl struct {
	id domain.SessionID

	mu    sync.RWMutex
	host  domain.ConnectionID
	order []domain.ConnectionID // join order, drives host promotion
	byID  map[domain.ConnectionID]ParticipantSession

	displaySet    *domain.DisplaySetSnapshot
	segmentations map[domain.SegmentationID]*domain.SegmentationSnapshot
}

func NewSessionService(id domain.SessionID) SessionService {
	return &sessionImpl{
		id:            id,
		byID:          make(map[domain.ConnectionID]ParticipantSession),
		segmentations: make(map[domain.SegmentationID]*domain.SegmentationSnapshot),
	}
}

func (s *sessionImpl) ID() domain.SessionID { return s.id }

func (s *sessionImpl) Host() domain.ConnectionID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.host
}

func (s *sessionImpl) ParticipantCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *sessionImpl) IsMember(id domain.ConnectionID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[id]
	return ok
}

func (s *sessionImpl) AddParticipant(ps ParticipantSession) {
	id := ps.Meta().ID
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		s.order = append(s.order, id)
	}
	s.byID[id] = ps
	if len(s.byID) == 1 {
		s.host = id
	}
	log.Info().Str("module", "core.session").Str("session", string(s.id)).Str("conn", string(id)).Msg("participant added")
}

func (s *sessionImpl) RemoveParticipant(id domain.ConnectionID) (bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return false, len(s.byID)
	}
	delete(s.byID, id)
	for i, other := range s.order {
		if other == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	wasHost := s.host == id
	if wasHost {
		s.host = ""
	}
	log.Info().Str("module", "core.session").Str("session", string(s.id)).Str("conn", string(id)).Bool("was_host", wasHost).Msg("participant removed")
	return wasHost, len(s.byID)
}

func (s *sessionImpl) PromoteNext() (domain.ConnectionID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) == 0 {
		return "", false
	}
	s.host = s.order[0]
	log.Info().Str("module", "core.session").Str("session", string(s.id)).Str("conn", string(s.host)).Msg("host promoted")
	return s.host, true
}

func (s *sessionImpl) ParticipantsSnapshot() []ParticipantDTO {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ParticipantDTO, 0, len(s.order))
	for _, id := range s.order {
		meta := s.byID[id].Meta()
		out = append(out, ParticipantDTO{ID: meta.ID, Name: meta.Name})
	}
	return out
}

func (s *sessionImpl) SetDisplaySet(ds *domain.DisplaySetSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displaySet = ds
}

// UpsertSegmentation stores metadata from an added event. Data stays whatever
// was cached before unless the incoming snapshot carries its own.
func (s *sessionImpl) UpsertSegmentation(snap *domain.SegmentationSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := snap.Clone()
	if cp.Data == nil {
		if prev, ok := s.segmentations[snap.ID]; ok {
			cp.Data = prev.Data
		}
	}
	s.segmentations[snap.ID] = cp
}

func (s *sessionImpl) PatchSegmentation(id domain.SegmentationID, label string, patches map[domain.SegmentIndex]domain.SegmentPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.segmentations[id]
	if !ok {
		// Nothing cached yet; the relay still forwards the event, viewers
		// resolve it by requesting data.
		return
	}
	if label != "" {
		snap.Label = label
	}
	for idx, p := range patches {
		if !snap.Apply(idx, p) {
			log.Debug().Str("module", "core.session").Str("segmentation", string(id)).Int("segment", int(idx)).Msg("patch for unknown segment dropped")
		}
	}
}

func (s *sessionImpl) RemoveSegmentation(id domain.SegmentationID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.segmentations, id)
}

func (s *sessionImpl) SetSegmentationData(id domain.SegmentationID, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.segmentations[id]
	if !ok {
		snap = &domain.SegmentationSnapshot{ID: id, Segments: make(map[domain.SegmentIndex]domain.SegmentMeta)}
		s.segmentations[id] = snap
	}
	snap.Data = data
}

func (s *sessionImpl) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := SessionState{Segmentations: make([]*domain.SegmentationSnapshot, 0, len(s.segmentations))}
	if s.displaySet != nil {
		ds := *s.displaySet
		st.DisplaySet = &ds
	}
	for _, snap := range s.segmentations {
		st.Segmentations = append(st.Segmentations, snap.Clone())
	}
	return st
}

func (s *sessionImpl) Broadcast(data Frame) PublishResult {
	return s.BroadcastExcept("", data)
}

func (s *sessionImpl) BroadcastExcept(from domain.ConnectionID, data Frame) PublishResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := PublishResult{}
	for id, ps := range s.byID {
		if id == from {
			continue
		}
		if err := ps.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, id)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.session").Str("session", string(s.id)).Str("from", string(from)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (s *sessionImpl) SendTo(id domain.ConnectionID, data Frame) bool {
	s.mu.RLock()
	ps, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	return ps.Signal().TrySend(data) == nil
}
