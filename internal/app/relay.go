package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cine/internal/core"
	"github.com/dkeye/Cine/internal/domain"
)

type Scope int

const (
	ScopeRoom Scope = iota
	ScopeRoomExceptSender
	ScopeHostOnly
)

// routes maps every relayable event to its rebroadcast scope. Events outside
// this table never reach the relay.
var routes = map[string]Scope{
	"chat-message":            ScopeRoom,
	"displaySetChange":        ScopeRoomExceptSender,
	"segmentationEvent":       ScopeRoomExceptSender,
	"segmentationData":        ScopeRoomExceptSender,
	"requestSegmentationData": ScopeHostOnly,
}

// RelayRouter applies the state-cache mutation associated with an inbound
// event and rebroadcasts the original frame per the event's scope.
type RelayRouter struct {
	Store *SessionStore
}

func NewRelayRouter(store *SessionStore) *RelayRouter {
	return &RelayRouter{Store: store}
}

// Relay forwards one inbound event. A sender that is not a member of any
// session is dropped and logged, never a fault.
func (r *RelayRouter) Relay(sender domain.ConnectionID, event string, raw []byte) {
	sess, ok := r.Store.SessionOf(sender)
	if !ok {
		log.Warn().Str("module", "app.relay").Str("conn", string(sender)).Str("event", event).Msg("event from non-member dropped")
		return
	}
	scope, ok := routes[event]
	if !ok {
		log.Warn().Str("module", "app.relay").Str("event", event).Msg("unroutable event dropped")
		return
	}

	r.mutate(sess, event, raw)

	switch scope {
	case ScopeRoom:
		sess.Broadcast(core.Frame(raw))
	case ScopeRoomExceptSender:
		sess.BroadcastExcept(sender, core.Frame(raw))
	case ScopeHostOnly:
		if !sess.SendTo(sess.Host(), core.Frame(raw)) {
			log.Warn().Str("module", "app.relay").Str("session", string(sess.ID())).Str("event", event).Msg("host unreachable")
		}
	}
}

// mutate updates the per-session state cache. Malformed payloads are logged
// and skipped; the frame is still relayed so clients decide for themselves.
func (r *RelayRouter) mutate(sess core.SessionService, event string, raw []byte) {
	switch event {
	case "displaySetChange":
		var msg struct {
			DisplaySet *domain.DisplaySetSnapshot `json:"displaySet"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil || msg.DisplaySet == nil {
			log.Error().Err(err).Str("module", "app.relay").Msg("bad displaySetChange payload")
			return
		}
		sess.SetDisplaySet(msg.DisplaySet)

	case "segmentationEvent":
		r.mutateSegmentation(sess, raw)

	case "segmentationData":
		var msg struct {
			SegmentationID domain.SegmentationID        `json:"segmentationId"`
			Metadata       *domain.SegmentationSnapshot `json:"metadata"`
			Data           []byte                       `json:"data"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil || msg.SegmentationID == "" {
			log.Error().Err(err).Str("module", "app.relay").Msg("bad segmentationData payload")
			return
		}
		if msg.Metadata != nil {
			msg.Metadata.ID = msg.SegmentationID
			sess.UpsertSegmentation(msg.Metadata)
		}
		sess.SetSegmentationData(msg.SegmentationID, msg.Data)
	}
}

func (r *RelayRouter) mutateSegmentation(sess core.SessionService, raw []byte) {
	var msg struct {
		EventName string `json:"eventName"`
		Evt       struct {
			SegmentationID domain.SegmentationID `json:"segmentationId"`
			Label          string                `json:"label"`
			Segments       json.RawMessage       `json:"segments"`
		} `json:"evt"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Evt.SegmentationID == "" {
		log.Error().Err(err).Str("module", "app.relay").Msg("bad segmentationEvent payload")
		return
	}

	switch msg.EventName {
	case "added":
		segments := make(map[domain.SegmentIndex]domain.SegmentMeta)
		if len(msg.Evt.Segments) > 0 {
			if err := json.Unmarshal(msg.Evt.Segments, &segments); err != nil {
				log.Error().Err(err).Str("module", "app.relay").Msg("bad added segments")
				return
			}
		}
		sess.UpsertSegmentation(&domain.SegmentationSnapshot{
			ID:       msg.Evt.SegmentationID,
			Label:    msg.Evt.Label,
			Segments: segments,
		})
	case "modified":
		patches := make(map[domain.SegmentIndex]domain.SegmentPatch)
		if len(msg.Evt.Segments) > 0 {
			if err := json.Unmarshal(msg.Evt.Segments, &patches); err != nil {
				log.Error().Err(err).Str("module", "app.relay").Msg("bad modified segments")
				return
			}
		}
		sess.PatchSegmentation(msg.Evt.SegmentationID, msg.Evt.Label, patches)
	case "removed":
		sess.RemoveSegmentation(msg.Evt.SegmentationID)
	default:
		log.Warn().Str("module", "app.relay").Str("event_name", msg.EventName).Msg("unknown segmentation event")
	}
}
