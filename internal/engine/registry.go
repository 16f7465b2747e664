package engine

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Registry maps rooms to their single live session
type Registry struct {
	logger   zerolog.Logger
	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
	build    func(room string, variant Variant, initiator User, stake int64) *Session
}

func newRegistry(logger zerolog.Logger, build func(string, Variant, User, int64) *Session) *Registry {
	return &Registry{
		logger:   logger.With().Str("component", "registry").Logger(),
		sessions: make(map[string]*Session),
		build:    build,
	}
}

// Create registers a new session for room and starts it. It fails with
// ErrAlreadyActive while another session holds the room, and with
// ErrDisabled once the registry has been closed.
func (r *Registry) Create(room string, variant Variant, initiator User, stake int64) (*Session, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, reject(ErrDisabled, "Games are unavailable right now.")
	}
	if _, exists := r.sessions[room]; exists {
		r.mu.Unlock()
		return nil, reject(ErrAlreadyActive, "Game already in progress!")
	}
	s := r.build(room, variant, initiator, stake)
	r.sessions[room] = s
	r.mu.Unlock()

	r.logger.Info().
		Str("room", room).
		Str("session_id", s.ID).
		Str("variant", string(variant)).
		Str("initiator", initiator.ID).
		Msg("Session created")

	// open arms the first deadline before the actor starts consuming its
	// inbox, so anything posted in between runs against an opened session
	s.open()
	go s.run()
	return s, nil
}

// Get returns the live session for room, or nil
func (r *Registry) Get(room string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[room]
}

// Destroy removes the session registered for room and cancels it, refunding
// confirmed stakes. The room is free for a new session as soon as Destroy
// returns.
func (r *Registry) Destroy(room string) *Session {
	r.mu.Lock()
	s, ok := r.sessions[room]
	if ok {
		delete(r.sessions, room)
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}
	s.post(func() { s.cancel("This game was closed.") })
	return s
}

// release removes s only if it still owns room, so a stale session can
// never evict its successor
func (r *Registry) release(room string, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[room] != s {
		return false
	}
	delete(r.sessions, room)
	r.logger.Debug().Str("room", room).Str("session_id", s.ID).Msg("Session released")
	return true
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// All returns the live sessions ordered by room
func (r *Registry) All() []*Session {
	r.mu.RLock()
	out := r.snapshot()
	r.mu.RUnlock()
	return out
}

// close stops further creates and returns every session still live. No
// session can be created after the snapshot is taken.
func (r *Registry) close() []*Session {
	r.mu.Lock()
	r.closed = true
	out := r.snapshot()
	r.mu.Unlock()
	return out
}

func (r *Registry) snapshot() []*Session {
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Room < out[j].Room })
	return out
}
