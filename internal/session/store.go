package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"pro-headshot-ai/internal/headshot"
)

var ErrNotFound = errors.New("session not found")

// Session holds the capture state of one browser session. Nothing is
// persisted; sessions disappear when their TTL elapses.
type Session struct {
	ID        string
	Capture   headshot.CaptureState
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Options struct {
	TTL time.Duration
}

// Store keeps sessions in a TTL cache keyed by random ID. Each activity on
// a session slides its expiry forward.
type Store struct {
	mu    sync.Mutex
	ttl   time.Duration
	cache *cache.Cache
}

func NewStore(opts Options) *Store {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	return &Store{
		ttl:   ttl,
		cache: cache.New(ttl, ttl/2),
	}
}

func (s *Store) Create() Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.cache.Set(sess.ID, sess, s.ttl)
	return *sess
}

func (s *Store) Get(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getLocked(id)
	if err != nil {
		return Session{}, err
	}
	return *sess, nil
}

// Update applies fn to the session's capture state under the store lock and
// returns the resulting snapshot. The error returned by fn is passed
// through; the state change it made is kept either way.
func (s *Store) Update(id string, fn func(*headshot.CaptureState) error) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getLocked(id)
	if err != nil {
		return Session{}, err
	}

	var fnErr error
	if fn != nil {
		fnErr = fn(&sess.Capture)
	}
	sess.UpdatedAt = time.Now()
	s.cache.Set(sess.ID, sess, s.ttl)
	return *sess, fnErr
}

func (s *Store) getLocked(id string) (*Session, error) {
	value, ok := s.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	sess, ok := value.(*Session)
	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}
