package client

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/dkeye/Cine/internal/domain"
)

// SessionRecord is what survives a transport drop: enough to rejoin the same
// session without the user re-entering anything.
type SessionRecord struct {
	SessionID   domain.SessionID `json:"sessionId"`
	DisplayName string           `json:"displayName"`
}

type RejoinStore interface {
	Load() (SessionRecord, bool)
	Save(SessionRecord) error
	Clear()
}

// FileRejoinStore keeps the record in a small JSON file next to the client.
type FileRejoinStore struct {
	path string
}

func NewFileRejoinStore(path string) *FileRejoinStore {
	return &FileRejoinStore{path: path}
}

func (s *FileRejoinStore) Load() (SessionRecord, bool) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return SessionRecord{}, false
	}
	var rec SessionRecord
	if err := json.Unmarshal(b, &rec); err != nil || rec.SessionID == "" {
		return SessionRecord{}, false
	}
	return rec, true
}

func (s *FileRejoinStore) Save(rec SessionRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal session record failed")
	}
	return errors.Wrap(os.WriteFile(s.path, b, 0o600), "write session record failed")
}

func (s *FileRejoinStore) Clear() {
	_ = os.Remove(s.path)
}

// memoryRejoinStore is the default when no file is configured.
type memoryRejoinStore struct {
	rec SessionRecord
	ok  bool
}

func (s *memoryRejoinStore) Load() (SessionRecord, bool) { return s.rec, s.ok }
func (s *memoryRejoinStore) Save(rec SessionRecord) error {
	s.rec, s.ok = rec, true
	return nil
}
func (s *memoryRejoinStore) Clear() { s.rec, s.ok = SessionRecord{}, false }
