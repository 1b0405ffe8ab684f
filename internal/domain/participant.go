package domain

import (
	"errors"
	"strings"
)

const MaxDisplayNameLen = 36

var (
	ErrDisplayNameEmpty   = errors.New("display name empty")
	ErrDisplayNameTooLong = errors.New("display name too long")
)

// Participant is one connection's identity inside a session.
type Participant struct {
	ID   ConnectionID `json:"id"`
	Name string       `json:"name"`
}

// NewParticipant is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewParticipant(id ConnectionID, name string) (*Participant, error) {
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		return nil, ErrDisplayNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return nil, ErrDisplayNameTooLong
	}
	return &Participant{ID: id, Name: name}, nil
}
