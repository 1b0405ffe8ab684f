package app

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cine/internal/domain"
)

// HostFailover keeps the host invariant across departures: while a session
// has participants, exactly one of them is host. No data migrates on
// promotion, the session cache already holds all live state.
type HostFailover struct {
	Store *SessionStore
}

func NewHostFailover(store *SessionStore) *HostFailover {
	return &HostFailover{Store: store}
}

// OnDisconnect handles a dropped transport connection.
func (f *HostFailover) OnDisconnect(conn domain.ConnectionID) {
	f.depart(conn)
}

// OnLeave handles an explicit leave-session. Same bookkeeping as a
// disconnect; only the adapter-side ack differs.
func (f *HostFailover) OnLeave(conn domain.ConnectionID) {
	f.depart(conn)
}

func (f *HostFailover) depart(conn domain.ConnectionID) {
	sess, wasHost, remaining, ok := f.Store.Leave(conn)
	if !ok {
		return
	}
	if remaining == 0 {
		log.Info().Str("module", "app.failover").Str("session", string(sess.ID())).Msg("last participant left, session terminated")
		return
	}
	if wasHost {
		if newHost, ok := sess.PromoteNext(); ok {
			if frame, ok := encode(struct {
				Type string `json:"type"`
			}{"promoted-to-host"}); ok {
				sess.SendTo(newHost, frame)
			}
		}
	}
	NotifyMembership(sess)
}
