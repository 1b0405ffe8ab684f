package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cine/internal/domain"
)

type segState int

const (
	stateUnknown segState = iota
	stateMetadataOnly
	stateHydrated
)

// DefaultDebounceWindow bounds redraw cost under bursty host edits.
const DefaultDebounceWindow = 500 * time.Millisecond

// EmitFunc sends one protocol message to the server.
type EmitFunc func(v any) error

// Reconciler applies host-originated segmentation events to the local viewer.
// Metadata arrives with every event; voxel data only on request. The pending
// set enforces at most one outstanding data request per segmentation id, the
// debounce window collapses rapid modify bursts to the most recent state.
type Reconciler struct {
	provider SegmentationProvider
	emit     EmitFunc
	window   time.Duration

	probe       func() bool // nil: always ready
	maxAttempts int
	backoff     time.Duration

	mu       sync.Mutex
	states   map[domain.SegmentationID]segState
	pending  map[domain.SegmentationID]struct{}
	debounce map[domain.SegmentationID]*time.Timer
	latest   map[domain.SegmentationID]segmentationEventMsg
}

func NewReconciler(provider SegmentationProvider, emit EmitFunc, window time.Duration) *Reconciler {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Reconciler{
		provider: provider,
		emit:     emit,
		window:   window,
		states:   make(map[domain.SegmentationID]segState),
		pending:  make(map[domain.SegmentationID]struct{}),
		debounce: make(map[domain.SegmentationID]*time.Timer),
		latest:   make(map[domain.SegmentationID]segmentationEventMsg),
	}
}

// SetReadiness installs the gate used before touching viewer objects.
func (r *Reconciler) SetReadiness(probe func() bool, maxAttempts int, backoff time.Duration) {
	r.probe = probe
	r.maxAttempts = maxAttempts
	r.backoff = backoff
}

func (r *Reconciler) gated(ctx context.Context, action func() error) error {
	if r.probe == nil {
		return action()
	}
	return EnsureReady(ctx, r.probe, action, r.maxAttempts, r.backoff)
}

type segmentationEventMsg struct {
	Type      string `json:"type"`
	EventName string `json:"eventName"`
	Evt       struct {
		SegmentationID domain.SegmentationID `json:"segmentationId"`
		Label          string                `json:"label"`
		Segments       json.RawMessage       `json:"segments"`
	} `json:"evt"`
}

type segmentationDataMsg struct {
	Type           string                       `json:"type"`
	SegmentationID domain.SegmentationID        `json:"segmentationId"`
	Metadata       *domain.SegmentationSnapshot `json:"metadata"`
	Data           []byte                       `json:"data"`
}

// HandleEvent processes one segmentationEvent frame.
func (r *Reconciler) HandleEvent(ctx context.Context, raw []byte) error {
	var msg segmentationEventMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return errors.Wrap(err, "decode segmentationEvent failed")
	}
	if msg.Evt.SegmentationID == "" {
		return errors.New("segmentationEvent without id")
	}

	switch msg.EventName {
	case "added":
		return r.handleAdded(ctx, msg)
	case "modified":
		return r.handleModified(msg)
	case "removed":
		r.handleRemoved(msg.Evt.SegmentationID)
		return nil
	default:
		log.Warn().Str("module", "client.reconciler").Str("event_name", msg.EventName).Msg("unknown segmentation event")
		return nil
	}
}

func (r *Reconciler) handleAdded(ctx context.Context, msg segmentationEventMsg) error {
	id := msg.Evt.SegmentationID
	segments := make(map[domain.SegmentIndex]domain.SegmentMeta)
	if len(msg.Evt.Segments) > 0 {
		if err := json.Unmarshal(msg.Evt.Segments, &segments); err != nil {
			return errors.Wrap(err, "decode added segments failed")
		}
	}
	snap := &domain.SegmentationSnapshot{ID: id, Label: msg.Evt.Label, Segments: segments}

	if err := r.gated(ctx, func() error {
		return r.provider.CreatePlaceholder(snap)
	}); err != nil {
		return errors.Wrap(err, "create placeholder failed")
	}

	r.mu.Lock()
	r.states[id] = stateMetadataOnly
	r.mu.Unlock()

	return r.requestData(id)
}

func (r *Reconciler) handleModified(msg segmentationEventMsg) error {
	id := msg.Evt.SegmentationID

	r.mu.Lock()
	st := r.states[id]
	r.mu.Unlock()
	if st == stateUnknown {
		// Nothing local to update yet; a full transfer covers it instead.
		return r.requestData(id)
	}

	r.mu.Lock()
	r.latest[id] = msg
	if t, ok := r.debounce[id]; ok {
		t.Stop()
	}
	r.debounce[id] = time.AfterFunc(r.window, func() { r.flushModified(id) })
	r.mu.Unlock()
	return nil
}

func (r *Reconciler) flushModified(id domain.SegmentationID) {
	r.mu.Lock()
	msg, ok := r.latest[id]
	delete(r.latest, id)
	delete(r.debounce, id)
	r.mu.Unlock()
	if !ok {
		return
	}

	snap, exists := r.provider.Get(id)
	if !exists {
		if err := r.requestData(id); err != nil {
			log.Error().Err(err).Str("module", "client.reconciler").Str("segmentation", string(id)).Msg("re-request after lost snapshot")
		}
		return
	}

	if msg.Evt.Label != "" {
		if err := r.provider.Rename(id, msg.Evt.Label); err != nil {
			log.Error().Err(err).Str("module", "client.reconciler").Str("segmentation", string(id)).Msg("rename failed")
		}
	}

	patches := make(map[domain.SegmentIndex]domain.SegmentPatch)
	if len(msg.Evt.Segments) > 0 {
		if err := json.Unmarshal(msg.Evt.Segments, &patches); err != nil {
			log.Error().Err(err).Str("module", "client.reconciler").Msg("decode modified segments failed")
			return
		}
	}
	for idx, patch := range patches {
		if _, known := snap.Segments[idx]; !known {
			log.Debug().Str("module", "client.reconciler").Str("segmentation", string(id)).Int("segment", int(idx)).Msg("patch for unknown segment dropped")
			continue
		}
		if err := r.provider.ApplyMeta(id, idx, patch); err != nil {
			log.Error().Err(err).Str("module", "client.reconciler").Str("segmentation", string(id)).Int("segment", int(idx)).Msg("apply segment meta failed")
		}
	}
}

func (r *Reconciler) handleRemoved(id domain.SegmentationID) {
	r.mu.Lock()
	if t, ok := r.debounce[id]; ok {
		t.Stop()
		delete(r.debounce, id)
	}
	delete(r.latest, id)
	delete(r.pending, id)
	delete(r.states, id)
	r.mu.Unlock()
	r.provider.Remove(id)
}

// HandleData processes one segmentationData frame: the local object is
// replaced wholesale, never merged, so a failed transfer can't leave a mixed
// state behind.
func (r *Reconciler) HandleData(ctx context.Context, raw []byte) error {
	var msg segmentationDataMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return errors.Wrap(err, "decode segmentationData failed")
	}
	if msg.SegmentationID == "" {
		return errors.New("segmentationData without id")
	}
	id := msg.SegmentationID

	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()

	return r.gated(ctx, func() error {
		if _, ok := r.provider.Get(id); ok {
			r.provider.Remove(id)
		}
		if err := r.provider.Import(id, msg.Metadata, msg.Data); err != nil {
			placeholder := msg.Metadata
			if placeholder == nil {
				placeholder = &domain.SegmentationSnapshot{ID: id, Segments: make(map[domain.SegmentIndex]domain.SegmentMeta)}
			}
			if perr := r.provider.CreatePlaceholder(placeholder); perr != nil {
				log.Error().Err(perr).Str("module", "client.reconciler").Str("segmentation", string(id)).Msg("fallback placeholder failed")
			}
			r.mu.Lock()
			r.states[id] = stateMetadataOnly
			r.mu.Unlock()
			if rerr := r.requestData(id); rerr != nil {
				log.Error().Err(rerr).Str("module", "client.reconciler").Str("segmentation", string(id)).Msg("re-request after import failure")
			}
			return errors.Wrap(err, "import segmentation failed")
		}
		r.mu.Lock()
		r.states[id] = stateHydrated
		r.mu.Unlock()
		return nil
	})
}

// Seed hydrates the reconciler from a join's initial state: snapshots with
// cached data import directly, metadata-only ones get the added treatment.
func (r *Reconciler) Seed(ctx context.Context, snaps []*domain.SegmentationSnapshot) {
	for _, snap := range snaps {
		if snap == nil || snap.ID == "" {
			continue
		}
		if snap.Hydrated() {
			raw, err := json.Marshal(segmentationDataMsg{
				Type:           "segmentationData",
				SegmentationID: snap.ID,
				Metadata:       snap,
				Data:           snap.Data,
			})
			if err == nil {
				if err := r.HandleData(ctx, raw); err != nil {
					log.Error().Err(err).Str("module", "client.reconciler").Str("segmentation", string(snap.ID)).Msg("seed import failed")
				}
				continue
			}
		}
		if err := r.seedMetadata(ctx, snap); err != nil {
			log.Error().Err(err).Str("module", "client.reconciler").Str("segmentation", string(snap.ID)).Msg("seed metadata failed")
		}
	}
}

func (r *Reconciler) seedMetadata(ctx context.Context, snap *domain.SegmentationSnapshot) error {
	if err := r.gated(ctx, func() error {
		return r.provider.CreatePlaceholder(snap.Clone())
	}); err != nil {
		return err
	}
	r.mu.Lock()
	r.states[snap.ID] = stateMetadataOnly
	r.mu.Unlock()
	return r.requestData(snap.ID)
}

// requestData asks the host for the full payload, suppressing the request
// while one for the same id is already in flight.
func (r *Reconciler) requestData(id domain.SegmentationID) error {
	r.mu.Lock()
	if _, inflight := r.pending[id]; inflight {
		r.mu.Unlock()
		return nil
	}
	r.pending[id] = struct{}{}
	r.mu.Unlock()

	err := r.emit(struct {
		Type           string                `json:"type"`
		SegmentationID domain.SegmentationID `json:"segmentationId"`
	}{"requestSegmentationData", id})
	if err != nil {
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
		return errors.Wrap(err, "request segmentation data failed")
	}
	return nil
}

// Reset drops all reconciler state; in-flight responses become no-ops.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.debounce {
		t.Stop()
		delete(r.debounce, id)
	}
	r.states = make(map[domain.SegmentationID]segState)
	r.pending = make(map[domain.SegmentationID]struct{})
	r.latest = make(map[domain.SegmentationID]segmentationEventMsg)
}
