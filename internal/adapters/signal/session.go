package signal

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cine/internal/app"
	"github.com/dkeye/Cine/internal/core"
	"github.com/dkeye/Cine/internal/domain"
)

func (ctl *SignalWSController) handleCreate(
	sid domain.ConnectionID,
	conn *WsSignalConn,
	data []byte,
) {
	type createPayload struct {
		Type      string           `json:"type"`
		SessionID domain.SessionID `json:"sessionId"`
		Username  string           `json:"username"`
	}
	var p createPayload
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad create payload")
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "bad_payload",
		})
		return
	}

	meta, err := domain.NewParticipant(sid, p.Username)
	if err != nil {
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "invalid_name",
		})
		return
	}

	type createAck struct {
		Type      string           `json:"type"`
		Status    string           `json:"status"`
		SessionID domain.SessionID `json:"sessionId"`
	}

	ps := core.NewParticipantSession(meta, conn)
	sess, err := ctl.Store.Create(p.SessionID, ps)
	switch {
	case errors.Is(err, app.ErrSessionExists):
		ctl.sendJSON(conn, createAck{"create-session-ack", "conflict", p.SessionID})
		return
	case errors.Is(err, app.ErrAlreadyInSession):
		ctl.sendJSON(conn, createAck{"create-session-ack", "already-in-session", p.SessionID})
		return
	case err != nil:
		log.Error().Err(err).Str("module", "signal").Str("session", string(p.SessionID)).Msg("create failed")
		ctl.sendJSON(conn, createAck{"create-session-ack", "error", p.SessionID})
		return
	}

	log.Info().Str("module", "signal").Str("conn", string(sid)).Str("session", string(p.SessionID)).Msg("session created")
	ctl.sendJSON(conn, createAck{"create-session-ack", "ok", p.SessionID})
	app.NotifyMembership(sess)
}

func (ctl *SignalWSController) handleJoin(
	sid domain.ConnectionID,
	conn *WsSignalConn,
	data []byte,
) {
	type joinPayload struct {
		Type      string           `json:"type"`
		SessionID domain.SessionID `json:"sessionId"`
		Username  string           `json:"username"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "bad_payload",
		})
		return
	}

	meta, err := domain.NewParticipant(sid, p.Username)
	if err != nil {
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "invalid_name",
		})
		return
	}

	type joinAck struct {
		Type         string                `json:"type"`
		Status       string                `json:"status"`
		Error        string                `json:"error,omitempty"`
		InitialState *core.SessionState    `json:"initialState,omitempty"`
		Participants []core.ParticipantDTO `json:"participants,omitempty"`
	}

	ps := core.NewParticipantSession(meta, conn)
	sess, err := ctl.Store.Join(p.SessionID, ps)
	if errors.Is(err, app.ErrAlreadyInSession) {
		log.Warn().Str("module", "signal").Str("conn", string(sid)).Msg("join: connection already in a session")
		ctl.sendJSON(conn, joinAck{Type: "join-session-ack", Status: "already-in-session", Error: "connection already in a session"})
		return
	}
	if err != nil {
		log.Warn().Str("module", "signal").Str("session", string(p.SessionID)).Msg("join: session not found")
		ctl.sendJSON(conn, joinAck{Type: "join-session-ack", Status: "not-found", Error: "session not found"})
		return
	}

	log.Info().Str("module", "signal").Str("conn", string(sid)).Str("session", string(p.SessionID)).Msg("join")
	state := sess.State()
	ctl.sendJSON(conn, joinAck{
		Type:         "join-session-ack",
		Status:       "ok",
		InitialState: &state,
		Participants: sess.ParticipantsSnapshot(),
	})
	app.NotifyMembership(sess)
}

// handleLeave — выход из сессии, соединение при этом не рвётся.
func (ctl *SignalWSController) handleLeave(
	sid domain.ConnectionID,
	conn *WsSignalConn,
) {
	log.Info().Str("module", "signal").Str("conn", string(sid)).Msg("leave")
	ctl.Failover.OnLeave(sid)
	ctl.sendJSON(conn, struct {
		Type   string `json:"type"`
		Status string `json:"status"`
	}{"leave-session-ack", "ok"})
}
