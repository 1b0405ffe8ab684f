package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewParticipant(t *testing.T) {
	p, err := NewParticipant("c-1", "alice")
	require.NoError(t, err)
	require.Equal(t, ConnectionID("c-1"), p.ID)
	require.Equal(t, "alice", p.Name)
}

func TestNewParticipant_RejectsEmptyName(t *testing.T) {
	_, err := NewParticipant("c-1", "")
	require.ErrorIs(t, err, ErrDisplayNameEmpty)

	_, err = NewParticipant("c-1", "   ")
	require.ErrorIs(t, err, ErrDisplayNameEmpty)
}

func TestNewParticipant_RejectsOverlongName(t *testing.T) {
	_, err := NewParticipant("c-1", strings.Repeat("x", MaxDisplayNameLen+1))
	require.ErrorIs(t, err, ErrDisplayNameTooLong)
}

func TestNewSessionID(t *testing.T) {
	id := NewSessionID("cine")
	require.True(t, strings.HasPrefix(string(id), "cine-"))
	require.NotEqual(t, id, NewSessionID("cine"))
}
