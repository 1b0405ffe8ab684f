package core

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/Cine/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []Frame
	fail   bool
}

func (f *fakeConn) TrySend(fr Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return ErrBackpressure
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func member(t *testing.T, id, name string) (ParticipantSession, *fakeConn) {
	t.Helper()
	meta, err := domain.NewParticipant(domain.ConnectionID(id), name)
	require.NoError(t, err)
	conn := &fakeConn{}
	return NewParticipantSession(meta, conn), conn
}

func TestSession_FirstParticipantBecomesHost(t *testing.T) {
	sess := NewSessionService("s1")
	alice, _ := member(t, "c-alice", "alice")
	bob, _ := member(t, "c-bob", "bob")

	sess.AddParticipant(alice)
	require.Equal(t, domain.ConnectionID("c-alice"), sess.Host())

	sess.AddParticipant(bob)
	require.Equal(t, domain.ConnectionID("c-alice"), sess.Host())
	require.Equal(t, 2, sess.ParticipantCount())
}

func TestSession_PromoteNextFollowsJoinOrder(t *testing.T) {
	sess := NewSessionService("s1")
	for _, m := range []struct{ id, name string }{
		{"c-alice", "alice"}, {"c-bob", "bob"}, {"c-carol", "carol"},
	} {
		ps, _ := member(t, m.id, m.name)
		sess.AddParticipant(ps)
	}

	wasHost, remaining := sess.RemoveParticipant("c-alice")
	require.True(t, wasHost)
	require.Equal(t, 2, remaining)

	newHost, ok := sess.PromoteNext()
	require.True(t, ok)
	require.Equal(t, domain.ConnectionID("c-bob"), newHost)
	require.Equal(t, newHost, sess.Host())
	require.True(t, sess.IsMember(newHost))
}

func TestSession_RemoveUnknownParticipantIsNoop(t *testing.T) {
	sess := NewSessionService("s1")
	alice, _ := member(t, "c-alice", "alice")
	sess.AddParticipant(alice)

	wasHost, remaining := sess.RemoveParticipant("c-ghost")
	require.False(t, wasHost)
	require.Equal(t, 1, remaining)
}

func TestSession_BroadcastExceptSkipsSender(t *testing.T) {
	sess := NewSessionService("s1")
	alice, aliceConn := member(t, "c-alice", "alice")
	bob, bobConn := member(t, "c-bob", "bob")
	sess.AddParticipant(alice)
	sess.AddParticipant(bob)

	res := sess.BroadcastExcept("c-alice", Frame(`{"type":"x"}`))
	require.Equal(t, 1, res.SentTo)
	require.Equal(t, 0, aliceConn.count())
	require.Equal(t, 1, bobConn.count())
}

func TestSession_BroadcastReportsDropped(t *testing.T) {
	sess := NewSessionService("s1")
	alice, _ := member(t, "c-alice", "alice")
	bob, bobConn := member(t, "c-bob", "bob")
	bobConn.fail = true
	sess.AddParticipant(alice)
	sess.AddParticipant(bob)

	res := sess.Broadcast(Frame(`{"type":"x"}`))
	require.Equal(t, 1, res.SentTo)
	require.Equal(t, []domain.ConnectionID{"c-bob"}, res.Dropped)
}

func TestSession_StateCarriesCacheForLateJoiners(t *testing.T) {
	sess := NewSessionService("s1")
	alice, _ := member(t, "c-alice", "alice")
	sess.AddParticipant(alice)

	sess.SetDisplaySet(&domain.DisplaySetSnapshot{DisplaySetInstanceUID: "ds-1", Modality: "CT", FrameIndex: 7})
	sess.UpsertSegmentation(&domain.SegmentationSnapshot{
		ID:    "seg-1",
		Label: "lesions",
		Segments: map[domain.SegmentIndex]domain.SegmentMeta{
			0: {Label: "tumor", Visible: true},
		},
	})
	sess.SetSegmentationData("seg-1", []byte{1, 2, 3})

	st := sess.State()
	require.NotNil(t, st.DisplaySet)
	require.Equal(t, "ds-1", st.DisplaySet.DisplaySetInstanceUID)
	require.Len(t, st.Segmentations, 1)
	require.Equal(t, domain.SegmentationID("seg-1"), st.Segmentations[0].ID)
	require.True(t, st.Segmentations[0].Hydrated())
}

func TestSession_PatchIgnoresUnknownSegmentIndex(t *testing.T) {
	sess := NewSessionService("s1")
	sess.UpsertSegmentation(&domain.SegmentationSnapshot{
		ID: "seg-1",
		Segments: map[domain.SegmentIndex]domain.SegmentMeta{
			0: {Label: "tumor"},
		},
	})

	visible := true
	label := "renamed"
	sess.PatchSegmentation("seg-1", "", map[domain.SegmentIndex]domain.SegmentPatch{
		0: {Label: &label},
		5: {Visible: &visible},
	})

	st := sess.State()
	require.Len(t, st.Segmentations, 1)
	segs := st.Segmentations[0].Segments
	require.Len(t, segs, 1)
	require.Equal(t, "renamed", segs[0].Label)
	_, fabricated := segs[5]
	require.False(t, fabricated)
}

func TestSession_UpsertKeepsCachedData(t *testing.T) {
	sess := NewSessionService("s1")
	sess.UpsertSegmentation(&domain.SegmentationSnapshot{ID: "seg-1", Segments: map[domain.SegmentIndex]domain.SegmentMeta{}})
	sess.SetSegmentationData("seg-1", []byte{9})

	// Metadata refresh must not wipe a previously transferred blob.
	sess.UpsertSegmentation(&domain.SegmentationSnapshot{
		ID:       "seg-1",
		Label:    "updated",
		Segments: map[domain.SegmentIndex]domain.SegmentMeta{0: {Label: "tumor"}},
	})

	st := sess.State()
	require.True(t, st.Segmentations[0].Hydrated())
	require.Equal(t, "updated", st.Segmentations[0].Label)
}

func TestSession_SegmentIndexMapSurvivesJSON(t *testing.T) {
	snap := &domain.SegmentationSnapshot{
		ID: "seg-1",
		Segments: map[domain.SegmentIndex]domain.SegmentMeta{
			2: {Label: "node", Color: [4]byte{255, 0, 0, 255}},
		},
	}
	b, err := json.Marshal(snap)
	require.NoError(t, err)

	var back domain.SegmentationSnapshot
	require.NoError(t, json.Unmarshal(b, &back))
	require.Equal(t, "node", back.Segments[2].Label)
	require.Equal(t, [4]byte{255, 0, 0, 255}, back.Segments[2].Color)
}
