package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cine/internal/core"
)

func encode(v any) (core.Frame, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app").Msg("encode frame")
		return nil, false
	}
	return core.Frame(b), true
}

// NotifyMembership pushes the membership mirror to the whole room so every
// client converges within one broadcast round-trip.
func NotifyMembership(sess core.SessionService) {
	users := sess.ParticipantsSnapshot()
	if frame, ok := encode(struct {
		Type  string                `json:"type"`
		Users []core.ParticipantDTO `json:"users"`
	}{"update-users", users}); ok {
		sess.Broadcast(frame)
	}
	if frame, ok := encode(struct {
		Type  string `json:"type"`
		Count int    `json:"count"`
	}{"participant-update", len(users)}); ok {
		sess.Broadcast(frame)
	}
}
