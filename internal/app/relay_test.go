package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func threeMemberSession(t *testing.T) (*SessionStore, *RelayRouter, map[string]*recordConn) {
	t.Helper()
	store := NewSessionStore()
	conns := make(map[string]*recordConn)

	alice, aliceConn := participant(t, "c-alice", "alice")
	bob, bobConn := participant(t, "c-bob", "bob")
	carol, carolConn := participant(t, "c-carol", "carol")
	conns["alice"], conns["bob"], conns["carol"] = aliceConn, bobConn, carolConn

	_, err := store.Create("cine-1", alice)
	require.NoError(t, err)
	_, err = store.Join("cine-1", bob)
	require.NoError(t, err)
	_, err = store.Join("cine-1", carol)
	require.NoError(t, err)

	return store, NewRelayRouter(store), conns
}

func TestRelay_NonMemberDropped(t *testing.T) {
	_, relay, conns := threeMemberSession(t)

	relay.Relay("c-ghost", "chat-message", []byte(`{"type":"chat-message","text":"hi"}`))

	for _, c := range conns {
		require.Empty(t, c.typed(t))
	}
}

func TestRelay_ChatReachesWholeRoom(t *testing.T) {
	_, relay, conns := threeMemberSession(t)

	raw := []byte(`{"type":"chat-message","userName":"bob","text":"hello"}`)
	relay.Relay("c-bob", "chat-message", raw)

	for _, c := range conns {
		require.Equal(t, []string{"chat-message"}, c.typed(t))
	}
}

func TestRelay_DisplaySetChangeSkipsSenderAndCaches(t *testing.T) {
	store, relay, conns := threeMemberSession(t)

	raw := []byte(`{"type":"displaySetChange","displaySet":{"displaySetInstanceUID":"ds-9","modality":"MR","frameIndex":3}}`)
	relay.Relay("c-alice", "displaySetChange", raw)

	require.Empty(t, conns["alice"].typed(t))
	require.Equal(t, []string{"displaySetChange"}, conns["bob"].typed(t))
	require.Equal(t, []string{"displaySetChange"}, conns["carol"].typed(t))

	sess, _ := store.Get("cine-1")
	st := sess.State()
	require.NotNil(t, st.DisplaySet)
	require.Equal(t, "ds-9", st.DisplaySet.DisplaySetInstanceUID)
	require.Equal(t, 3, st.DisplaySet.FrameIndex)
}

func TestRelay_SegmentationAddedThenModified(t *testing.T) {
	store, relay, _ := threeMemberSession(t)

	added := []byte(`{"type":"segmentationEvent","eventName":"added","evt":{"segmentationId":"seg-1","label":"lesions","segments":{"0":{"label":"tumor","visible":true}}}}`)
	relay.Relay("c-alice", "segmentationEvent", added)

	modified := []byte(`{"type":"segmentationEvent","eventName":"modified","evt":{"segmentationId":"seg-1","segments":{"0":{"label":"tumor-core"},"7":{"visible":false}}}}`)
	relay.Relay("c-alice", "segmentationEvent", modified)

	sess, _ := store.Get("cine-1")
	st := sess.State()
	require.Len(t, st.Segmentations, 1)
	segs := st.Segmentations[0].Segments
	require.Len(t, segs, 1)
	require.Equal(t, "tumor-core", segs[0].Label)
	require.True(t, segs[0].Visible)
}

func TestRelay_SegmentationRemovedClearsCache(t *testing.T) {
	store, relay, _ := threeMemberSession(t)

	added := []byte(`{"type":"segmentationEvent","eventName":"added","evt":{"segmentationId":"seg-1","label":"lesions"}}`)
	relay.Relay("c-alice", "segmentationEvent", added)
	removed := []byte(`{"type":"segmentationEvent","eventName":"removed","evt":{"segmentationId":"seg-1"}}`)
	relay.Relay("c-alice", "segmentationEvent", removed)

	sess, _ := store.Get("cine-1")
	require.Empty(t, sess.State().Segmentations)
}

func TestRelay_SegmentationDataCachedAndFannedOut(t *testing.T) {
	store, relay, conns := threeMemberSession(t)

	raw := []byte(`{"type":"segmentationData","segmentationId":"seg-1","metadata":{"segmentationId":"seg-1","label":"lesions"},"data":"AQID"}`)
	relay.Relay("c-alice", "segmentationData", raw)

	require.Empty(t, conns["alice"].typed(t))
	require.Equal(t, []string{"segmentationData"}, conns["bob"].typed(t))

	sess, _ := store.Get("cine-1")
	st := sess.State()
	require.Len(t, st.Segmentations, 1)
	require.True(t, st.Segmentations[0].Hydrated())
	require.Equal(t, []byte{1, 2, 3}, st.Segmentations[0].Data)
}

func TestRelay_DataRequestRoutedToHostOnly(t *testing.T) {
	_, relay, conns := threeMemberSession(t)

	raw := []byte(`{"type":"requestSegmentationData","segmentationId":"seg-1"}`)
	relay.Relay("c-carol", "requestSegmentationData", raw)

	require.Equal(t, []string{"requestSegmentationData"}, conns["alice"].typed(t))
	require.Empty(t, conns["bob"].typed(t))
	require.Empty(t, conns["carol"].typed(t))
}

func TestRelay_MalformedPayloadStillRelayed(t *testing.T) {
	store, relay, conns := threeMemberSession(t)

	raw := []byte(`{"type":"displaySetChange","displaySet":"not-an-object"}`)
	relay.Relay("c-alice", "displaySetChange", raw)

	require.Equal(t, []string{"displaySetChange"}, conns["bob"].typed(t))
	sess, _ := store.Get("cine-1")
	require.Nil(t, sess.State().DisplaySet)
}
