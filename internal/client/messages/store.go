package messages

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// SeenStore is the persisted set of message ids that count as already
// shown. Injected into the gate as a capability so history is explicit
// and testable rather than ambient global state.
type SeenStore interface {
	Contains(id string) bool
	Add(id string)
}

// MemorySeenStore is the in-memory implementation, used in tests and for
// sessions that do not want persistence.
type MemorySeenStore struct {
	mu  sync.Mutex
	ids map[string]bool
}

func NewMemorySeenStore() *MemorySeenStore {
	return &MemorySeenStore{ids: make(map[string]bool)}
}

func (s *MemorySeenStore) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids[id]
}

func (s *MemorySeenStore) Add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = true
}

const seenFileName = "shown_message_ids"

// FileSeenStore persists the set as a comma-joined line in a single file
// under an injected root directory. Write failures are swallowed: losing
// show history only risks showing a one-time message again.
type FileSeenStore struct {
	mu   sync.Mutex
	path string
}

func NewFileSeenStore(rootDir string) *FileSeenStore {
	return &FileSeenStore{path: filepath.Join(rootDir, seenFileName)}
}

func (s *FileSeenStore) load() map[string]bool {
	ids := make(map[string]bool)
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return ids
	}
	for _, id := range strings.Split(strings.TrimSpace(string(raw)), ",") {
		if id != "" {
			ids[id] = true
		}
	}
	return ids
}

func (s *FileSeenStore) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()[id]
}

func (s *FileSeenStore) Add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.load()
	if ids[id] {
		return
	}
	ids[id] = true

	joined := make([]string, 0, len(ids))
	for v := range ids {
		joined = append(joined, v)
	}
	_ = os.MkdirAll(filepath.Dir(s.path), 0o755)
	_ = os.WriteFile(s.path, []byte(strings.Join(joined, ",")), 0o644)
}
