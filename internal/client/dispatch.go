package client

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cine/internal/core"
	"github.com/dkeye/Cine/internal/domain"
)

// readLoop pulls frames off the socket. Acks are delivered inline so a slow
// event handler never delays a create/join acknowledgement; everything else is
// queued for the ordered event loop.
func (c *Controller) readLoop(conn *websocket.Conn) {
	defer close(c.done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Info().Err(err).Str("module", "client").Msg("read loop closing")
			return
		}
		var env struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			log.Error().Err(err).Str("module", "client").Msg("bad frame")
			continue
		}
		if strings.HasSuffix(env.Type, "-ack") {
			c.deliverAck(env.Type, data)
			continue
		}
		select {
		case c.events <- data:
		default:
			log.Warn().Str("module", "client").Str("type", env.Type).Msg("event queue full, frame dropped")
		}
	}
}

// eventLoop applies server events one at a time, in arrival order. A failing
// handler is logged and isolated; it never blocks later unrelated events.
func (c *Controller) eventLoop(ctx context.Context) {
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case data := <-c.events:
			if err := c.dispatch(ctx, data); err != nil {
				log.Error().Err(err).Str("module", "client").Msg("event handling failed")
			}
		}
	}
}

func (c *Controller) dispatch(ctx context.Context, data []byte) error {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return errors.Wrap(err, "decode envelope failed")
	}

	switch env.Type {
	case "update-users":
		var msg struct {
			Users []core.ParticipantDTO `json:"users"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			return errors.Wrap(err, "decode update-users failed")
		}
		c.mu.Lock()
		c.users = msg.Users
		c.mu.Unlock()
		if c.onUsers != nil {
			c.onUsers(msg.Users)
		}

	case "participant-update":
		var msg struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			return errors.Wrap(err, "decode participant-update failed")
		}
		log.Debug().Str("module", "client").Int("count", msg.Count).Msg("participant update")

	case "chat-message":
		var msg ChatMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return errors.Wrap(err, "decode chat failed")
		}
		if c.onChat != nil {
			c.onChat(msg)
		}

	case "promoted-to-host":
		c.mu.Lock()
		c.role = RoleHost
		c.mu.Unlock()
		log.Info().Str("module", "client").Msg("promoted to host")
		c.bindHostEvents()
		if c.onPromoted != nil {
			c.onPromoted()
		}

	case "displaySetChange":
		var msg struct {
			DisplaySet *domain.DisplaySetSnapshot `json:"displaySet"`
		}
		if err := json.Unmarshal(data, &msg); err != nil || msg.DisplaySet == nil {
			return errors.Wrap(err, "decode displaySetChange failed")
		}
		c.applyDisplaySet(ctx, *msg.DisplaySet)

	case "segmentationEvent":
		return c.withReconciler(func(r *Reconciler) error { return r.HandleEvent(ctx, data) })

	case "segmentationData":
		return c.withReconciler(func(r *Reconciler) error { return r.HandleData(ctx, data) })

	case "requestSegmentationData":
		return c.serveDataRequest(data)

	case "left", "pong", "error":
		log.Debug().Str("module", "client").Str("type", env.Type).RawJSON("frame", data).Msg("server notice")

	default:
		log.Warn().Str("module", "client").Str("type", env.Type).Msg("unknown event")
	}
	return nil
}

func (c *Controller) withReconciler(fn func(*Reconciler) error) error {
	c.mu.RLock()
	rec := c.rec
	c.mu.RUnlock()
	if rec == nil {
		return nil
	}
	return fn(rec)
}

// applyDisplaySet switches the active image once the referenced volume is
// loaded. Gate exhaustion is abandoned silently: the next display-set event
// gets its own fresh attempt.
func (c *Controller) applyDisplaySet(ctx context.Context, ds domain.DisplaySetSnapshot) {
	if c.viewer == nil {
		return
	}
	probe := func() bool {
		return c.volumes == nil || c.volumes.HasVolume(ds.DisplaySetInstanceUID)
	}
	err := EnsureReady(ctx, probe, func() error {
		if err := c.viewer.ApplyDisplaySet(ds); err != nil {
			return err
		}
		c.viewer.RefreshViewport(c.viewer.ActiveViewportID())
		return nil
	}, c.gateAttempts, c.gateBackoff)
	switch {
	case errors.Is(err, ErrNotReady):
		log.Warn().Str("module", "client").Str("display_set", ds.DisplaySetInstanceUID).Msg("display set apply abandoned, viewer not ready")
	case err != nil:
		log.Error().Err(err).Str("module", "client").Msg("display set apply failed")
	}
}
