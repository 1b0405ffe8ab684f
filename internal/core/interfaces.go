package core

import (
	"errors"

	"github.com/dkeye/Cine/internal/domain"
)

// Frame is a raw outbound payload (marshaled JSON envelope).
type Frame []byte

var ErrBackpressure = errors.New("backpressure")

// SignalConnection abstracts the messaging transport of one participant.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// ParticipantSession binds domain.Participant and its transport endpoint.
// This is what a session stores and fans out to.
type ParticipantSession interface {
	Meta() *domain.Participant
	Signal() SignalConnection
}

// PublishResult reports delivery stats/backpressure to the relay.
type PublishResult struct {
	SentTo  int
	Dropped []domain.ConnectionID
}

// ParticipantDTO is a read-only view for APIs (no transport fields).
type ParticipantDTO struct {
	ID   domain.ConnectionID `json:"id"`
	Name string              `json:"name"`
}

// SessionState is everything a late joiner needs to reconstruct the room
// without replaying history: last display set plus every segmentation
// snapshot the server has seen (metadata always, data when cached).
type SessionState struct {
	DisplaySet    *domain.DisplaySetSnapshot     `json:"displaySet,omitempty"`
	Segmentations []*domain.SegmentationSnapshot `json:"segmentations"`
}

type SessionInfo struct {
	ID               domain.SessionID `json:"sessionId"`
	ParticipantCount int              `json:"participant_count"`
}

// SessionService is the core-facing API of a live session. It owns the
// membership set, the host pointer and the last-known-state cache, but never
// touches transport resources.
type SessionService interface {
	ID() domain.SessionID
	Host() domain.ConnectionID
	ParticipantCount() int
	ParticipantsSnapshot() []ParticipantDTO
	IsMember(domain.ConnectionID) bool

	// AddParticipant registers a member; the first one becomes host.
	AddParticipant(ps ParticipantSession)
	// RemoveParticipant reports whether the removed member was the host and
	// how many participants remain.
	RemoveParticipant(id domain.ConnectionID) (wasHost bool, remaining int)
	// PromoteNext makes the longest-joined remaining participant the host.
	PromoteNext() (domain.ConnectionID, bool)

	SetDisplaySet(*domain.DisplaySetSnapshot)
	UpsertSegmentation(*domain.SegmentationSnapshot)
	PatchSegmentation(id domain.SegmentationID, label string, patches map[domain.SegmentIndex]domain.SegmentPatch)
	RemoveSegmentation(id domain.SegmentationID)
	SetSegmentationData(id domain.SegmentationID, data []byte)
	State() SessionState

	Broadcast(data Frame) PublishResult
	BroadcastExcept(from domain.ConnectionID, data Frame) PublishResult
	SendTo(id domain.ConnectionID, data Frame) bool
}
