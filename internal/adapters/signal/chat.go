package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cine/internal/domain"
)

func (ctl *SignalWSController) handleChat(
	sid domain.ConnectionID,
	conn *WsSignalConn,
	data []byte,
) {
	if !ctl.Limiter.Allow(sid) {
		log.Warn().Str("module", "signal").Str("conn", string(sid)).Msg("chat rate limited")
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "rate_limited",
		})
		return
	}
	ctl.Relay.Relay(sid, "chat-message", data)
}
