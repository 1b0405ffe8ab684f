// Package domain contains entity without logic, just meta-data
package domain

import (
	"strings"

	"github.com/google/uuid"
)

type (
	SessionID      string
	ConnectionID   string
	SegmentationID string
)

type SegmentIndex int

// NewSessionID builds a session id from a human prefix plus a short random
// alphanumeric suffix. Ids are generated on the client; collisions are treated
// as negligible, the server still answers a conflict if one happens.
func NewSessionID(prefix string) SessionID {
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	if prefix == "" {
		return SessionID(suffix)
	}
	return SessionID(prefix + "-" + suffix)
}
