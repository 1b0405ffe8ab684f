package client

import (
	"time"

	"github.com/dkeye/Cine/internal/core"
)

// Cfg configures a Controller.
type Cfg func(*Controller) error

// WithServerURL sets the websocket endpoint, e.g. ws://localhost:8080/api/ws/signal.
func WithServerURL(u string) Cfg {
	return func(c *Controller) error {
		c.serverURL = u
		return nil
	}
}

// WithDisplayName sets the name shown to other participants.
func WithDisplayName(name string) Cfg {
	return func(c *Controller) error {
		c.displayName = name
		return nil
	}
}

// WithProviders wires the viewer runtime behind the capability interfaces.
func WithProviders(viewer ViewerStateProvider, volumes VolumeProvider, segmentations SegmentationProvider) Cfg {
	return func(c *Controller) error {
		c.viewer = viewer
		c.volumes = volumes
		c.segmentations = segmentations
		return nil
	}
}

// WithEventSource wires the host-side segmentation event feed.
func WithEventSource(src SegmentationEventSource) Cfg {
	return func(c *Controller) error {
		c.source = src
		return nil
	}
}

// WithRejoinStore sets where the persisted session record lives.
func WithRejoinStore(store RejoinStore) Cfg {
	return func(c *Controller) error {
		c.rejoin = store
		return nil
	}
}

// WithStateFile persists the session record to a JSON file.
func WithStateFile(path string) Cfg {
	return WithRejoinStore(NewFileRejoinStore(path))
}

// WithAckTimeout bounds the wait for server acknowledgements.
func WithAckTimeout(d time.Duration) Cfg {
	return func(c *Controller) error {
		c.ackTimeout = d
		return nil
	}
}

// WithDialTimeout bounds the websocket handshake.
func WithDialTimeout(d time.Duration) Cfg {
	return func(c *Controller) error {
		c.dialTimeout = d
		return nil
	}
}

// WithDebounceWindow overrides the modify-burst collapse window.
func WithDebounceWindow(d time.Duration) Cfg {
	return func(c *Controller) error {
		c.window = d
		return nil
	}
}

// WithReadiness tunes the bounded-retry gate.
func WithReadiness(maxAttempts int, backoff time.Duration) Cfg {
	return func(c *Controller) error {
		c.gateAttempts = maxAttempts
		c.gateBackoff = backoff
		return nil
	}
}

// WithReadinessProbe gates segmentation mutations on a viewer-supplied
// precondition. Segmentations don't depend on the active display set, so
// without a probe the reconciler applies events immediately; display-set
// changes stay gated on volume load either way.
func WithReadinessProbe(probe func() bool) Cfg {
	return func(c *Controller) error {
		c.readyProbe = probe
		return nil
	}
}

// WithChatHandler receives relayed chat messages.
func WithChatHandler(fn func(ChatMessage)) Cfg {
	return func(c *Controller) error {
		c.onChat = fn
		return nil
	}
}

// WithPromotionHandler fires when this client becomes host.
func WithPromotionHandler(fn func()) Cfg {
	return func(c *Controller) error {
		c.onPromoted = fn
		return nil
	}
}

// WithUsersHandler receives membership mirror updates.
func WithUsersHandler(fn func([]core.ParticipantDTO)) Cfg {
	return func(c *Controller) error {
		c.onUsers = fn
		return nil
	}
}
