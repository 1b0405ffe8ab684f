package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cine/internal/core"
	"github.com/dkeye/Cine/internal/domain"
)

type Role string

const (
	RoleNone   Role = ""
	RoleHost   Role = "host"
	RoleViewer Role = "viewer"
)

type ChatMessage struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

const (
	DefaultAckTimeout   = 5 * time.Second
	DefaultDialTimeout  = 5 * time.Second
	DefaultGateAttempts = 20
	DefaultGateBackoff  = 250 * time.Millisecond
)

// Controller owns the local session identity: id, role, membership mirror.
// Everything it mirrors is derived and disposable, a fresh join rebuilds it.
type Controller struct {
	serverURL   string
	displayName string

	ackTimeout   time.Duration
	dialTimeout  time.Duration
	window       time.Duration
	gateAttempts int
	gateBackoff  time.Duration

	viewer        ViewerStateProvider
	volumes       VolumeProvider
	segmentations SegmentationProvider
	source        SegmentationEventSource
	rejoin        RejoinStore
	readyProbe    func() bool

	onChat     func(ChatMessage)
	onPromoted func()
	onUsers    func([]core.ParticipantDTO)

	mu        sync.RWMutex
	conn      *websocket.Conn
	sessionID domain.SessionID
	role      Role
	users     []core.ParticipantDTO
	acks      map[string]chan json.RawMessage
	rejoined  bool

	writeMu sync.Mutex

	events      chan []byte
	done        chan struct{}
	rec         *Reconciler
	unsubscribe func()
}

// NewController creates a Controller with the given configuration.
func NewController(cfgs ...Cfg) (*Controller, error) {
	c := &Controller{
		ackTimeout:   DefaultAckTimeout,
		dialTimeout:  DefaultDialTimeout,
		window:       DefaultDebounceWindow,
		gateAttempts: DefaultGateAttempts,
		gateBackoff:  DefaultGateBackoff,
		rejoin:       &memoryRejoinStore{},
		acks:         make(map[string]chan json.RawMessage),
	}
	for _, cfg := range cfgs {
		if err := cfg(c); err != nil {
			return nil, errors.Wrap(err, "apply Controller cfg failed")
		}
	}
	return c, nil
}

// Connect dials the server and starts the dispatch loops. With a persisted
// session record present, a rejoin is attempted before any user action, so a
// transient drop recovers without re-entering the session id.
func (c *Controller) Connect(ctx context.Context) error {
	if c.displayName == "" {
		return ErrNoDisplayName
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.dialTimeout}
	conn, _, err := dialer.DialContext(ctx, c.serverURL, nil)
	if err != nil {
		return errors.Wrapf(err, "connect to %s failed", c.serverURL)
	}

	c.mu.Lock()
	c.conn = conn
	c.done = make(chan struct{})
	c.events = make(chan []byte, 64)
	c.rec = NewReconciler(c.segmentations, c.send, c.window)
	c.rec.SetReadiness(c.readyProbe, c.gateAttempts, c.gateBackoff)
	c.mu.Unlock()

	go c.readLoop(conn)
	go c.eventLoop(ctx)

	log.Info().Str("module", "client").Str("url", c.serverURL).Msg("connected")

	if rec, ok := c.rejoin.Load(); ok && !c.isRejoined() {
		c.setRejoined()
		if err := c.JoinSession(ctx, rec.SessionID); err != nil {
			log.Warn().Err(err).Str("module", "client").Str("session", string(rec.SessionID)).Msg("rejoin failed")
			if errors.Is(err, ErrSessionNotFound) {
				c.rejoin.Clear()
			}
		}
	}
	return nil
}

// Close tears the connection down; session state on the server is cleaned up
// by the disconnect path.
func (c *Controller) Close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	unsub := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

// CreateSession registers a new session with this client as host. The id is
// generated locally; a conflict is reported, not retried.
func (c *Controller) CreateSession(ctx context.Context) (domain.SessionID, error) {
	if c.displayName == "" {
		return "", ErrNoDisplayName
	}
	if !c.connected() {
		return "", ErrNotConnected
	}

	id := domain.NewSessionID("cine")
	ch := c.registerAck("create-session-ack")
	defer c.unregisterAck("create-session-ack")

	if err := c.send(struct {
		Type      string           `json:"type"`
		SessionID domain.SessionID `json:"sessionId"`
		Username  string           `json:"username"`
	}{"create-session", id, c.displayName}); err != nil {
		return "", err
	}

	raw, err := c.awaitAck(ctx, ch)
	if err != nil {
		return "", err
	}
	var ack struct {
		Status    string           `json:"status"`
		SessionID domain.SessionID `json:"sessionId"`
	}
	if err := json.Unmarshal(raw, &ack); err != nil {
		return "", errors.Wrap(err, "decode create ack failed")
	}
	if ack.Status != "ok" {
		if ack.Status == "already-in-session" {
			return "", errors.Wrap(ErrAlreadyInSession, "create rejected")
		}
		return "", errors.Wrapf(ErrSessionConflict, "status %s", ack.Status)
	}

	c.mu.Lock()
	c.sessionID = id
	c.role = RoleHost
	c.users = nil
	c.mu.Unlock()

	if err := c.rejoin.Save(SessionRecord{SessionID: id, DisplayName: c.displayName}); err != nil {
		log.Warn().Err(err).Str("module", "client").Msg("persist session record")
	}
	c.bindHostEvents()
	return id, nil
}

// JoinSession enters an existing session as viewer and hydrates the local
// mirrors from the returned initial state.
func (c *Controller) JoinSession(ctx context.Context, id domain.SessionID) (err error) {
	if c.displayName == "" {
		return ErrNoDisplayName
	}
	if id == "" {
		return errors.Wrap(ErrSessionNotFound, "blank session id")
	}
	if !c.connected() {
		return ErrNotConnected
	}

	ch := c.registerAck("join-session-ack")
	defer c.unregisterAck("join-session-ack")

	if err := c.send(struct {
		Type      string           `json:"type"`
		SessionID domain.SessionID `json:"sessionId"`
		Username  string           `json:"username"`
	}{"join-session", id, c.displayName}); err != nil {
		return err
	}

	raw, err := c.awaitAck(ctx, ch)
	if err != nil {
		return err
	}
	var ack struct {
		Status       string                `json:"status"`
		Error        string                `json:"error"`
		InitialState *core.SessionState    `json:"initialState"`
		Participants []core.ParticipantDTO `json:"participants"`
	}
	if err := json.Unmarshal(raw, &ack); err != nil {
		return errors.Wrap(err, "decode join ack failed")
	}
	if ack.Status != "ok" {
		// Local session state stays untouched on a rejected join.
		switch ack.Status {
		case "not-found":
			return errors.Wrap(ErrSessionNotFound, ack.Error)
		case "already-in-session":
			return errors.Wrap(ErrAlreadyInSession, ack.Error)
		}
		return errors.Errorf("join rejected: %s", ack.Error)
	}

	c.mu.Lock()
	c.sessionID = id
	c.role = RoleViewer
	c.users = ack.Participants
	rec := c.rec
	c.mu.Unlock()

	if err := c.rejoin.Save(SessionRecord{SessionID: id, DisplayName: c.displayName}); err != nil {
		log.Warn().Err(err).Str("module", "client").Msg("persist session record")
	}

	if ack.InitialState != nil {
		if ds := ack.InitialState.DisplaySet; ds != nil {
			go c.applyDisplaySet(ctx, *ds)
		}
		rec.Seed(ctx, ack.InitialState.Segmentations)
	}
	return nil
}

// LeaveSession is best-effort from the caller's perspective: local state is
// cleared regardless of what the server answers.
func (c *Controller) LeaveSession(ctx context.Context) error {
	c.mu.RLock()
	id := c.sessionID
	c.mu.RUnlock()
	if id == "" {
		return nil
	}

	if c.connected() {
		ch := c.registerAck("leave-session-ack")
		if err := c.send(struct {
			Type      string           `json:"type"`
			SessionID domain.SessionID `json:"sessionId"`
		}{"leave-session", id}); err == nil {
			if _, err := c.awaitAck(ctx, ch); err != nil {
				log.Warn().Err(err).Str("module", "client").Msg("leave ack")
			}
		}
		c.unregisterAck("leave-session-ack")
	}

	c.clearSession()
	return nil
}

// PublishDisplaySet pushes the host's active display set to the room.
func (c *Controller) PublishDisplaySet(ds domain.DisplaySetSnapshot) error {
	if c.Role() != RoleHost {
		return errors.New("only the host publishes display sets")
	}
	return c.send(struct {
		Type       string                    `json:"type"`
		DisplaySet domain.DisplaySetSnapshot `json:"displaySet"`
	}{"displaySetChange", ds})
}

// SendChat relays a chat line to the whole room.
func (c *Controller) SendChat(text string) error {
	c.mu.RLock()
	id := c.sessionID
	c.mu.RUnlock()
	if id == "" {
		return errors.New("no active session")
	}
	return c.send(ChatMessage{UserName: c.displayName, Text: text, Timestamp: time.Now().UnixMilli()}.envelope())
}

func (m ChatMessage) envelope() any {
	return struct {
		Type string `json:"type"`
		ChatMessage
	}{"chat-message", m}
}

func (c *Controller) SessionID() domain.SessionID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

func (c *Controller) Role() Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

func (c *Controller) Users() []core.ParticipantDTO {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]core.ParticipantDTO, len(c.users))
	copy(out, c.users)
	return out
}

func (c *Controller) connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

func (c *Controller) isRejoined() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rejoined
}

func (c *Controller) setRejoined() {
	c.mu.Lock()
	c.rejoined = true
	c.mu.Unlock()
}

func (c *Controller) clearSession() {
	c.mu.Lock()
	c.sessionID = ""
	c.role = RoleNone
	c.users = nil
	rec := c.rec
	unsub := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	if rec != nil {
		rec.Reset()
	}
	c.rejoin.Clear()
}

func (c *Controller) send(v any) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return errors.Wrap(conn.WriteJSON(v), "write failed")
}

func (c *Controller) registerAck(ackType string) chan json.RawMessage {
	ch := make(chan json.RawMessage, 1)
	c.mu.Lock()
	c.acks[ackType] = ch
	c.mu.Unlock()
	return ch
}

func (c *Controller) unregisterAck(ackType string) {
	c.mu.Lock()
	delete(c.acks, ackType)
	c.mu.Unlock()
}

func (c *Controller) awaitAck(ctx context.Context, ch chan json.RawMessage) (json.RawMessage, error) {
	select {
	case raw := <-ch:
		return raw, nil
	case <-time.After(c.ackTimeout):
		return nil, ErrAckTimeout
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "await ack canceled")
	}
}

func (c *Controller) deliverAck(ackType string, raw []byte) {
	c.mu.RLock()
	ch, ok := c.acks[ackType]
	c.mu.RUnlock()
	if !ok {
		log.Warn().Str("module", "client").Str("type", ackType).Msg("unexpected ack")
		return
	}
	select {
	case ch <- raw:
	default:
	}
}
