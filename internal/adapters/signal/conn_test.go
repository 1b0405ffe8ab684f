package signal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/Cine/internal/core"
)

func TestWsSignalConn_TrySendBackpressure(t *testing.T) {
	c := &WsSignalConn{send: make(chan core.Frame, 1)}

	require.NoError(t, c.TrySend(core.Frame(`{"type":"x"}`)))

	err := c.TrySend(core.Frame(`{"type":"y"}`))
	require.ErrorIs(t, err, core.ErrBackpressure)
}

func TestWsSignalConn_TrySendAfterClose(t *testing.T) {
	c := &WsSignalConn{send: make(chan core.Frame, 1)}
	c.closed = true

	require.Error(t, c.TrySend(core.Frame(`{"type":"x"}`)))
}
