package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/grebenindmitry/babilado-backend/cmd/internal/apperr"
	"github.com/grebenindmitry/babilado-backend/cmd/internal/ids"
	"github.com/grebenindmitry/babilado-backend/cmd/security/password"
)

type memUser struct {
	user User
	hash string
}

// InMemoryStore is a process-local Store for development and tests.
type InMemoryStore struct {
	pw password.Config

	mu     sync.RWMutex
	byID   map[string]*memUser
	byNorm map[string]*memUser
}

func NewInMemoryStore(cfg password.Config) *InMemoryStore {
	return &InMemoryStore{
		pw:     cfg,
		byID:   make(map[string]*memUser),
		byNorm: make(map[string]*memUser),
	}
}

func (s *InMemoryStore) CreateUser(_ context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	username := strings.TrimSpace(in.Username)
	if !validUsername(username) {
		return User{}, apperr.InvalidInput(op, "invalid username")
	}
	hash, err := s.pw.Hash(in.Password)
	if err != nil {
		return User{}, apperr.InvalidInput(op, err.Error())
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	norm := NormalizeUsername(username)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byNorm[norm]; taken {
		return User{}, apperr.Conflict(op, "username")
	}
	u := &memUser{
		user: User{ID: ids.NewUserID(), Username: username, CreatedAt: now},
		hash: hash,
	}
	s.byID[u.user.ID] = u
	s.byNorm[norm] = u
	return u.user, nil
}

func (s *InMemoryStore) GetUserByID(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return User{}, apperr.NotFound("identity.GetUserByID", "user not found")
	}
	return u.user, nil
}

func (s *InMemoryStore) GetUserByUsername(_ context.Context, username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byNorm[NormalizeUsername(username)]
	if !ok {
		return User{}, apperr.NotFound("identity.GetUserByUsername", "user not found")
	}
	return u.user, nil
}

func (s *InMemoryStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byID[strings.TrimSpace(id)]
	return ok, nil
}

func (s *InMemoryStore) CheckPassword(_ context.Context, id, secret string) (bool, error) {
	s.mu.RLock()
	u, ok := s.byID[strings.TrimSpace(id)]
	var hash string
	if ok {
		hash = u.hash
	}
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}
	match, err := s.pw.Verify(hash, secret)
	if err != nil {
		return false, apperr.Internal("identity.CheckPassword", err)
	}
	return match, nil
}
