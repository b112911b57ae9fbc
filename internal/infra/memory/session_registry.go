package memory

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"quizzy-service/internal/domain"
	"quizzy-service/internal/game"
)

// pinSpace is the number of distinct 6-digit PINs (100000-999999).
const pinSpace = 900000

// SessionRegistry is the in-memory implementation of game.SessionRegistry.
// PINs are drawn uniformly and retried on collision; with realistic session
// counts that is an expected O(1) loop.
type SessionRegistry struct {
	defaultTimeLimitMs int

	mu       sync.Mutex
	rnd      *rand.Rand
	sessions map[string]*game.Session
}

func NewSessionRegistry(defaultTimeLimitMs int) *SessionRegistry {
	return NewSessionRegistryWithRand(defaultTimeLimitMs, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewSessionRegistryWithRand allows deterministic PIN draws in tests.
func NewSessionRegistryWithRand(defaultTimeLimitMs int, rnd *rand.Rand) *SessionRegistry {
	return &SessionRegistry{
		defaultTimeLimitMs: defaultTimeLimitMs,
		rnd:                rnd,
		sessions:           make(map[string]*game.Session),
	}
}

func (r *SessionRegistry) Create(quiz domain.Quiz, hostConnID string, maxPlayers int) (*game.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= pinSpace {
		return nil, domain.ErrPinSpaceExhausted
	}

	var pin string
	for {
		pin = fmt.Sprintf("%06d", 100000+r.rnd.Intn(pinSpace))
		if _, taken := r.sessions[pin]; !taken {
			break
		}
	}

	session := game.NewSession(pin, quiz, hostConnID, maxPlayers, r.defaultTimeLimitMs)
	r.sessions[pin] = session
	return session, nil
}

func (r *SessionRegistry) Get(pin string) (*game.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[pin]
	return session, ok
}

func (r *SessionRegistry) Remove(pin string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, pin)
}

func (r *SessionRegistry) Sweep(maxIdle time.Duration) []*game.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	var removed []*game.Session
	for pin, session := range r.sessions {
		if session.LastActivity().Before(cutoff) {
			removed = append(removed, session)
			delete(r.sessions, pin)
		}
	}
	return removed
}
