package auth

import (
	"context"
	"strings"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps everything in process memory. Returned records are copies.
type MemoryStore struct {
	mu       sync.RWMutex
	now      func() time.Time
	users    map[string]*User
	byEmail  map[string]string
	sessions map[string]*Session
	codes    map[verificationKey]*Verification
}

type verificationKey struct {
	email   string
	purpose Purpose
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:      time.Now,
		users:    make(map[string]*User),
		byEmail:  make(map[string]string),
		sessions: make(map[string]*Session),
		codes:    make(map[verificationKey]*Verification),
	}
}

func (m *MemoryStore) Users(context.Context) UserStore                 { return memUsers{m} }
func (m *MemoryStore) Sessions(context.Context) SessionStore           { return memSessions{m} }
func (m *MemoryStore) Verifications(context.Context) VerificationStore { return memCodes{m} }

type memUsers struct{ m *MemoryStore }

func (s memUsers) Create(ctx context.Context, u *User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	email := strings.ToLower(u.Email)
	if _, ok := s.m.byEmail[email]; ok {
		return ErrAlreadyExists
	}
	if _, ok := s.m.users[u.ID]; ok {
		return ErrAlreadyExists
	}
	cp := *u
	cp.Email = email
	s.m.users[cp.ID] = &cp
	s.m.byEmail[email] = cp.ID
	return nil
}

func (s memUsers) Find(ctx context.Context, id string) (*User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	u, ok := s.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s memUsers) FindByEmail(ctx context.Context, email string) (*User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	id, ok := s.m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.m.users[id]
	return &cp, nil
}

func (s memUsers) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	upd.Apply(u)
	u.UpdatedAt = s.m.now().UTC()
	cp := *u
	return &cp, nil
}

func (s memUsers) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = s.m.now().UTC()
	return nil
}

type memSessions struct{ m *MemoryStore }

func (s memSessions) Create(ctx context.Context, sess *Session) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.sessions[sess.ID]; ok {
		return ErrAlreadyExists
	}
	cp := *sess
	s.m.sessions[cp.ID] = &cp
	return nil
}

func (s memSessions) Find(ctx context.Context, id string) (*Session, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	sess, ok := s.m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s memSessions) MarkRevoked(ctx context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	sess, ok := s.m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	sess.Revoked = true
	return nil
}

func (s memSessions) MarkRevokedByUser(ctx context.Context, userID string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, sess := range s.m.sessions {
		if sess.UserID == userID {
			sess.Revoked = true
		}
	}
	return nil
}

type memCodes struct{ m *MemoryStore }

func (s memCodes) Put(ctx context.Context, v *Verification) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	cp := *v
	cp.Email = strings.ToLower(cp.Email)
	if v.VerifiedAt != nil {
		at := *v.VerifiedAt
		cp.VerifiedAt = &at
	}
	s.m.codes[verificationKey{cp.Email, cp.Purpose}] = &cp
	return nil
}

func (s memCodes) Find(ctx context.Context, email string, purpose Purpose) (*Verification, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	v, ok := s.m.codes[verificationKey{strings.ToLower(email), purpose}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	if v.VerifiedAt != nil {
		at := *v.VerifiedAt
		cp.VerifiedAt = &at
	}
	return &cp, nil
}

func (s memCodes) Delete(ctx context.Context, email string, purpose Purpose) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	delete(s.m.codes, verificationKey{strings.ToLower(email), purpose})
	return nil
}
