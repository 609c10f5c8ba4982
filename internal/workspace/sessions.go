package workspace

import "sync"

// Session is the in-memory working copy of one open file.
type Session struct {
	FileID               string
	WorkingContent       string
	LastPersistedContent string
}

// Dirty reports whether the working copy differs from the persisted one.
func (s Session) Dirty() bool {
	return s.WorkingContent != s.LastPersistedContent
}

// SessionStore maps open file ids to their working content.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore returns an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Open creates a session from initial content. An already open session keeps
// its working copy unless reset is true. It reports whether the session was
// created or replaced.
func (s *SessionStore) Open(fileID, initial string, reset bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[fileID]; ok && !reset {
		return false
	}
	s.sessions[fileID] = &Session{
		FileID:               fileID,
		WorkingContent:       initial,
		LastPersistedContent: initial,
	}
	return true
}

// Content returns the working content of an open file.
func (s *SessionStore) Content(fileID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[fileID]
	if !ok {
		return "", false
	}
	return sess.WorkingContent, true
}

// SetContent replaces the working content of an open file.
func (s *SessionStore) SetContent(fileID, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[fileID]
	if !ok {
		return false
	}
	sess.WorkingContent = content
	return true
}

// MarkPersisted records content as the last persisted text of an open file.
func (s *SessionStore) MarkPersisted(fileID, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[fileID]
	if !ok {
		return false
	}
	sess.LastPersistedContent = content
	return true
}

// Close discards the working copy without saving.
func (s *SessionStore) Close(fileID string) {
	s.mu.Lock()
	delete(s.sessions, fileID)
	s.mu.Unlock()
}

// Session returns a snapshot of one session.
func (s *SessionStore) Session(fileID string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[fileID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// IDs returns the open file ids in no particular order.
func (s *SessionStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of open sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
