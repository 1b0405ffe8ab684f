package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/Cine/internal/domain"
)

func TestFailover_HostDisconnectPromotesNextInOrder(t *testing.T) {
	store, _, conns := threeMemberSession(t)
	fo := NewHostFailover(store)

	fo.OnDisconnect("c-alice")

	sess, ok := store.Get("cine-1")
	require.True(t, ok)
	require.Equal(t, domain.ConnectionID("c-bob"), sess.Host())
	require.Equal(t, 2, sess.ParticipantCount())

	// Exactly the new host hears about the promotion.
	require.Contains(t, conns["bob"].typed(t), "promoted-to-host")
	require.NotContains(t, conns["carol"].typed(t), "promoted-to-host")

	// Everyone left gets the refreshed membership mirror.
	for _, who := range []string{"bob", "carol"} {
		types := conns[who].typed(t)
		require.Contains(t, types, "update-users")
		require.Contains(t, types, "participant-update")
	}
}

func TestFailover_ViewerLeaveKeepsHost(t *testing.T) {
	store, _, conns := threeMemberSession(t)
	fo := NewHostFailover(store)

	fo.OnLeave("c-carol")

	sess, _ := store.Get("cine-1")
	require.Equal(t, domain.ConnectionID("c-alice"), sess.Host())
	require.Equal(t, 2, sess.ParticipantCount())
	require.NotContains(t, conns["alice"].typed(t), "promoted-to-host")
	require.NotContains(t, conns["bob"].typed(t), "promoted-to-host")
}

func TestFailover_LastParticipantTerminatesSession(t *testing.T) {
	store := NewSessionStore()
	alice, _ := participant(t, "c-alice", "alice")
	_, err := store.Create("cine-1", alice)
	require.NoError(t, err)

	fo := NewHostFailover(store)
	fo.OnDisconnect("c-alice")

	_, ok := store.Get("cine-1")
	require.False(t, ok)
	require.Empty(t, store.List())
}

func TestFailover_UnknownConnectionIsNoop(t *testing.T) {
	store, _, _ := threeMemberSession(t)
	fo := NewHostFailover(store)

	fo.OnDisconnect("c-ghost")

	sess, _ := store.Get("cine-1")
	require.Equal(t, 3, sess.ParticipantCount())
}

// Two-participant walkthrough: alice hosts, bob joins, alice drops, bob is
// promoted with the count unchanged, then bob leaves and the session dies.
func TestFailover_TwoParticipantLifecycle(t *testing.T) {
	store := NewSessionStore()
	alice, _ := participant(t, "c-alice", "alice")
	bob, bobConn := participant(t, "c-bob", "bob")

	sess, err := store.Create("cine-1", alice)
	require.NoError(t, err)
	_, err = store.Join("cine-1", bob)
	require.NoError(t, err)
	require.Equal(t, 2, sess.ParticipantCount())

	fo := NewHostFailover(store)
	fo.OnDisconnect("c-alice")

	require.Equal(t, domain.ConnectionID("c-bob"), sess.Host())
	require.Equal(t, 1, sess.ParticipantCount())
	require.Contains(t, bobConn.typed(t), "promoted-to-host")

	var update struct {
		Type  string `json:"type"`
		Count int    `json:"count"`
	}
	bobConn.last(t, &update)
	require.Equal(t, "participant-update", update.Type)
	require.Equal(t, 1, update.Count)

	fo.OnLeave("c-bob")
	_, ok := store.Get("cine-1")
	require.False(t, ok)
}
