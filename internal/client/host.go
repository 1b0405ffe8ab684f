package client

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cine/internal/domain"
)

// bindHostEvents subscribes to the local viewer's segmentation mutations and
// fans them out to the room. Idempotent; only the host publishes.
func (c *Controller) bindHostEvents() {
	if c.source == nil {
		return
	}
	c.mu.Lock()
	if c.unsubscribe != nil {
		c.mu.Unlock()
		return
	}
	c.unsubscribe = c.source.Subscribe(c.onLocalEvent)
	c.mu.Unlock()
}

func (c *Controller) onLocalEvent(evt LocalSegmentationEvent) {
	if c.Role() != RoleHost {
		return
	}
	var err error
	switch evt.Name {
	case "added":
		err = c.emitSegmentationEvent("added", evt.ID, evt.Label, evt.Snapshot.Segments)
	case "modified":
		err = c.emitSegmentationEvent("modified", evt.ID, evt.Label, evt.Patches)
	case "removed":
		err = c.emitSegmentationEvent("removed", evt.ID, evt.Label, nil)
	case "data-modified":
		err = c.publishSegmentationData(evt.ID)
	default:
		log.Warn().Str("module", "client.host").Str("name", evt.Name).Msg("unknown local event")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "client.host").Str("segmentation", string(evt.ID)).Msg("publish local event")
	}
}

func (c *Controller) emitSegmentationEvent(name string, id domain.SegmentationID, label string, segments any) error {
	evt := struct {
		SegmentationID domain.SegmentationID `json:"segmentationId"`
		Label          string                `json:"label,omitempty"`
		Segments       json.RawMessage       `json:"segments,omitempty"`
	}{SegmentationID: id, Label: label}
	if segments != nil {
		raw, err := json.Marshal(segments)
		if err != nil {
			return errors.Wrap(err, "marshal segments failed")
		}
		evt.Segments = raw
	}
	return c.send(struct {
		Type      string `json:"type"`
		EventName string `json:"eventName"`
		Evt       any    `json:"evt"`
	}{"segmentationEvent", name, evt})
}

// publishSegmentationData exports the full payload and broadcasts it. Also
// answers viewers' explicit data requests.
func (c *Controller) publishSegmentationData(id domain.SegmentationID) error {
	if c.segmentations == nil {
		return errors.New("no segmentation provider")
	}
	meta, data, err := c.segmentations.Export(id)
	if err != nil {
		return errors.Wrap(err, "export segmentation failed")
	}
	return c.send(segmentationDataMsg{
		Type:           "segmentationData",
		SegmentationID: id,
		Metadata:       meta,
		Data:           data,
	})
}

// serveDataRequest handles a host-routed requestSegmentationData frame.
func (c *Controller) serveDataRequest(data []byte) error {
	if c.Role() != RoleHost {
		log.Warn().Str("module", "client.host").Msg("data request while not host, ignored")
		return nil
	}
	var msg struct {
		SegmentationID domain.SegmentationID `json:"segmentationId"`
	}
	if err := json.Unmarshal(data, &msg); err != nil || msg.SegmentationID == "" {
		return errors.Wrap(err, "decode data request failed")
	}
	return c.publishSegmentationData(msg.SegmentationID)
}
