package memstore

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/dmitrymomot/taskflow/svc/otp"
)

type codeEntry struct {
	rec      otp.Record
	attempts int
	expires  time.Time
}

// Codes implements otp.Store.
type Codes struct {
	mu      sync.Mutex
	entries map[string]*codeEntry
	now     func() time.Time
}

func NewCodes() *Codes {
	return &Codes{entries: make(map[string]*codeEntry), now: time.Now}
}

func (s *Codes) Put(_ context.Context, address string, rec otp.Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[address] = &codeEntry{rec: rec, expires: s.now().Add(ttl)}
	return nil
}

func (s *Codes) Verify(_ context.Context, address, codeHash string, maxAttempts int) (otp.Purpose, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[address]
	if !ok || !s.now().Before(e.expires) {
		delete(s.entries, address)
		return "", otp.ErrCodeNotFound
	}
	if subtle.ConstantTimeCompare([]byte(e.rec.CodeHash), []byte(codeHash)) != 1 {
		e.attempts++
		if e.attempts >= maxAttempts {
			delete(s.entries, address)
		}
		return "", otp.ErrCodeMismatch
	}
	delete(s.entries, address)
	return e.rec.Purpose, nil
}

// Keys is a set of expiring keys. It implements auth.Revocations and
// auth.StateStore. Tickets and Invites give the single-use views.
type Keys struct {
	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

func NewKeys() *Keys {
	return &Keys{keys: make(map[string]time.Time), now: time.Now}
}

func (s *Keys) live(key string) bool {
	exp, ok := s.keys[key]
	if ok && !s.now().Before(exp) {
		delete(s.keys, key)
		return false
	}
	return ok
}

func (s *Keys) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys["revoked:"+jti] = s.now().Add(ttl)
	return nil
}

func (s *Keys) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live("revoked:" + jti), nil
}

func (s *Keys) Save(_ context.Context, state string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys["state:"+state] = s.now().Add(ttl)
	return nil
}

// Consume removes an OAuth state. It reports whether the state was live.
func (s *Keys) Consume(_ context.Context, state string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.live("state:" + state)
	delete(s.keys, "state:"+state)
	return ok, nil
}

// Tickets returns the reset ticket view of the set.
func (s *Keys) Tickets() *Tickets { return &Tickets{keys: s, prefix: "ticket:"} }

// Invites returns the invitation redemption view of the set.
func (s *Keys) Invites() *Tickets { return &Tickets{keys: s, prefix: "invite:"} }

// Tickets implements auth.TicketStore and invite.Redemptions on top of Keys.
type Tickets struct {
	keys   *Keys
	prefix string
}

func (t *Tickets) Consume(_ context.Context, jti string, ttl time.Duration) (bool, error) {
	s := t.keys
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live(t.prefix + jti) {
		return false, nil
	}
	s.keys[t.prefix+jti] = s.now().Add(max(ttl, time.Second))
	return true, nil
}

func (t *Tickets) Release(_ context.Context, jti string) error {
	s := t.keys
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, t.prefix+jti)
	return nil
}
