package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/lachlan2k/storefront-gate/internal/kvstore"
)

// Durable keys. These match what existing clients already persisted.
const (
	KeyToken = "token"
	KeyRole  = "role"
	KeyEmail = "email"
)

// AdminRole is the only role name with a meaning to access control.
const AdminRole = "Admin"

var keys = []string{KeyToken, KeyRole, KeyEmail}

// ErrPersist is returned by Login and Logout when the in-memory session was
// updated but the durable store could not be.
var ErrPersist = errors.New("session could not be persisted")

type SessionData struct {
	Token string `json:"token"`
	Role  string `json:"role"`
	Email string `json:"email"`
}

func (d SessionData) IsAuthenticated() bool {
	return d.Token != ""
}

// IsAdmin is an exact, case sensitive comparison.
func (d SessionData) IsAdmin() bool {
	return d.Role == AdminRole
}

// Store is the current actor's session. It is safe for concurrent use.
type Store struct {
	// writeMu serializes Login and Logout so memory and the durable store
	// always end up holding the same session. mu only guards data, readers
	// never wait on the durable store.
	writeMu sync.Mutex
	mu      sync.RWMutex
	data    SessionData
	kv      kvstore.Store
	logger  *zap.Logger
}

// New loads the session from kv. A key that is missing or unreadable leaves
// its field empty; read faults are logged, not returned.
func New(ctx context.Context, kv kvstore.Store, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{kv: kv, logger: logger}

	fields := map[string]*string{
		KeyToken: &s.data.Token,
		KeyRole:  &s.data.Role,
		KeyEmail: &s.data.Email,
	}
	for key, field := range fields {
		v, _, err := kv.Get(ctx, key)
		if err != nil {
			logger.Warn("couldn't restore session field", zap.String("key", key), zap.Error(err))
			continue
		}
		*field = v
	}

	return s
}

// Login replaces the session. The in-memory state is always replaced; a
// non-nil error means it was not mirrored to the durable store.
func (s *Store) Login(ctx context.Context, token, role, email string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.data = SessionData{Token: token, Role: role, Email: email}
	s.mu.Unlock()

	err := s.kv.Set(ctx, map[string]string{
		KeyToken: token,
		KeyRole:  role,
		KeyEmail: email,
	})
	if err != nil {
		s.logger.Warn("session login kept in memory only", zap.String("email", email), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}

	s.logger.Info("session started", zap.String("email", email), zap.String("role", role))
	return nil
}

// Logout clears the session and removes it from the durable store. Calling it
// without a session is a no-op.
func (s *Store) Logout(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	email := s.data.Email
	s.data = SessionData{}
	s.mu.Unlock()

	if err := s.kv.Delete(ctx, keys...); err != nil {
		s.logger.Warn("session logout not persisted", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}

	if email != "" {
		s.logger.Info("session ended", zap.String("email", email))
	}
	return nil
}

// Snapshot returns a consistent copy of all three fields.
func (s *Store) Snapshot() SessionData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

func (s *Store) IsAuthenticated() bool {
	return s.Snapshot().IsAuthenticated()
}

func (s *Store) IsAdmin() bool {
	return s.Snapshot().IsAdmin()
}

func (s *Store) Token() string {
	return s.Snapshot().Token
}

func (s *Store) Role() string {
	return s.Snapshot().Role
}

func (s *Store) Email() string {
	return s.Snapshot().Email
}
