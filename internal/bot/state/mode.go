package state

import "sync"

// Mode is the user's active conversation mode. Exactly one mode is
// active at a time; Idle means the next message is a menu selection.
type Mode int

const (
	ModeIdle Mode = iota
	ModeFetch
	ModeChat
	ModePredict
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeFetch:
		return "fetch"
	case ModeChat:
		return "chat"
	case ModePredict:
		return "predict"
	default:
		return "unknown"
	}
}

// ModeStore maps users to their active mode. Absent users are Idle.
type ModeStore struct {
	mu    sync.Mutex
	modes map[string]Mode
}

func NewModeStore() *ModeStore {
	return &ModeStore{modes: map[string]Mode{}}
}

func (s *ModeStore) Get(userID string) Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modes[userID]
}

func (s *ModeStore) Set(userID string, m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m == ModeIdle {
		delete(s.modes, userID)
	} else {
		s.modes[userID] = m
	}
}

// Reset returns the user to Idle.
func (s *ModeStore) Reset(userID string) {
	s.Set(userID, ModeIdle)
}
