package state

import "sync"

// Session carries one user's prepared training data between the ticker
// step and the epoch step of the prediction flow.
type Session struct {
	Ticker string
	X      [][]float64
	Y      []int
	Ready  bool
}

// TrainingStore maps users to their in-flight session. A session is
// either fully ready or absent: storing a not-ready session clears the
// user instead, so stale data can never leak into a later flow.
type TrainingStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func NewTrainingStore() *TrainingStore {
	return &TrainingStore{sessions: map[string]Session{}}
}

func (s *TrainingStore) Get(userID string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}

func (s *TrainingStore) Put(userID string, sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !sess.Ready {
		delete(s.sessions, userID)
		return
	}
	s.sessions[userID] = sess
}

func (s *TrainingStore) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}
