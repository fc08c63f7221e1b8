package go_chat_rooms

import (
    crand "crypto/rand"
    "encoding/hex"
    "sync"
    "sync/atomic"
    "time"
)

// For how long a session stays resumable, counted from its creation. The
// deadline is fixed: activity on the session does not refresh it.
const defSessionTTL = time.Minute * 30

// Delay between executions of the session cleanup routine.
const defSessionSweepDelay = time.Minute * 5

// Session binds an authenticated username to its resume token, its current
// room (if any) and the handler currently driving the connection.
//
// A session outlives the connection that created it: an unclean disconnect
// leaves the session in the registry, so the user may resume it with their
// token until the deadline lapses.
type Session struct {
    // The authenticated username. Immutable after creation.
    username string

    // Expiration time for this session.
    deadline time.Time

    // lock `roomName` and `handler`, which are swapped by joins, exits
    // and reconnections.
    mu sync.Mutex

    // roomName of the room the user is currently in. Empty while the user
    // sits in the lobby.
    roomName string

    // handler currently bound to this session. Swapped on reconnection;
    // the previous handler is simply discarded, closing it is its own
    // responsibility once its transport fails.
    handler *Handler
}

// Username return the name of the authenticated user.
func (s *Session) Username() string {
    return s.username
}

// Expired check whether the session's fixed deadline has lapsed.
func (s *Session) Expired() bool {
    return time.Now().After(s.deadline)
}

// RoomName return the name of the room recorded on the session, or the
// empty string if the user is in the lobby.
func (s *Session) RoomName() string {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.roomName
}

// setRoomName record `name` as the user's current room. Joining a room
// stores its name and exiting stores the empty string, so a resumed
// connection knows whether to re-join.
func (s *Session) setRoomName(name string) {
    s.mu.Lock()
    s.roomName = name
    s.mu.Unlock()
}

// bindHandler swap the handler driving this session, discarding the
// previous one.
func (s *Session) bindHandler(h *Handler) {
    s.mu.Lock()
    s.handler = h
    s.mu.Unlock()
}

// SessionRegistry own every live session, keyed by its resume token.
//
// Every operation locks the registry-wide mutex, so concurrent
// authentications, reconnections and logouts never race on the map.
// Expired sessions are evicted lazily on lookup and periodically by the
// sweep goroutine.
type SessionRegistry struct {
    // ttl applied to newly created sessions.
    ttl time.Duration

    // Delay between executions of the sweep routine.
    sweepDelay time.Duration

    // Every live session. The resume token is the map's key.
    sessions map[string]*Session

    // Synchronizes access to sessions.
    mu sync.Mutex

    // Whether the registry's sweep goroutine is currently running.
    running uint32

    // stop signals, by getting closed, that the sweep goroutine should
    // get stopped.
    stop chan struct{}
}

// newToken generate a fresh resume token from a cryptographically secure
// source, encoded as a hexadecimal string.
func newToken() (string, error) {
    var raw [32]byte

    _, err := crand.Read(raw[:])
    if err != nil {
        return "", err
    }

    return hex.EncodeToString(raw[:]), nil
}

// Create store a new session for `username`, driven by `h`, and return its
// resume token.
//
// Create does not check for a previous session for that username; callers
// that must reject duplicate logins should use `CreateExclusive` instead.
func (r *SessionRegistry) Create(username string, h *Handler) (string, *Session, error) {
    token, err := newToken()
    if err != nil {
        return "", nil, err
    }

    s := &Session {
        username: username,
        deadline: time.Now().Add(r.ttl),
        handler: h,
    }

    r.mu.Lock()
    r.sessions[token] = s
    r.mu.Unlock()

    sessionsCreated.Inc()

    return token, s, nil
}

// CreateExclusive atomically check that `username` has no live session and
// store a new one, returning `AlreadyLoggedIn` otherwise.
//
// The check and the insertion happen under a single critical section, so
// two concurrent authentications for the same user never both succeed.
func (r *SessionRegistry) CreateExclusive(username string, h *Handler) (string, *Session, error) {
    token, err := newToken()
    if err != nil {
        return "", nil, err
    }

    s := &Session {
        username: username,
        deadline: time.Now().Add(r.ttl),
        handler: h,
    }

    r.mu.Lock()
    defer r.mu.Unlock()

    for _, cur := range r.sessions {
        if cur.username == username && !cur.Expired() {
            return "", nil, AlreadyLoggedIn
        }
    }
    r.sessions[token] = s

    sessionsCreated.Inc()

    return token, s, nil
}

// Get return the session bound to `token`, if present and not expired.
//
// An expired session is evicted as a side effect of the lookup and
// reported as `InvalidToken`, same as an unknown one.
func (r *SessionRegistry) Get(token string) (*Session, error) {
    r.mu.Lock()
    defer r.mu.Unlock()

    s, ok := r.sessions[token]
    if !ok {
        return nil, InvalidToken
    }
    if s.Expired() {
        delete(r.sessions, token)
        return nil, InvalidToken
    }

    return s, nil
}

// IsLoggedIn check whether `username` has any live, unexpired session.
func (r *SessionRegistry) IsLoggedIn(username string) bool {
    r.mu.Lock()
    defer r.mu.Unlock()

    for _, s := range r.sessions {
        if s.username == username && !s.Expired() {
            return true
        }
    }

    return false
}

// Remove evict `sess` unconditionally. Used on explicit logout.
func (r *SessionRegistry) Remove(sess *Session) {
    r.mu.Lock()
    for token, s := range r.sessions {
        if s == sess {
            delete(r.sessions, token)
        }
    }
    r.mu.Unlock()
}

// sweep periodically evict every expired session, so tokens of users that
// never resumed don't accumulate in the registry.
func (r *SessionRegistry) sweep() {
    ticker := time.NewTicker(r.sweepDelay)
    defer ticker.Stop()

    for {
        select {
        case <-r.stop:
            return
        case <-ticker.C:
            r.mu.Lock()
            now := time.Now()
            for token, s := range r.sessions {
                if now.After(s.deadline) {
                    delete(r.sessions, token)
                }
            }
            r.mu.Unlock()
        }
    }
}

// Close the registry, stopping its sweep goroutine.
//
// This can safely be called multiple times.
func (r *SessionRegistry) Close() error {
    if atomic.CompareAndSwapUint32(&r.running, 1, 0) {
        close(r.stop)
    }

    return nil
}

// newSessionRegistry create a new SessionRegistry with the supplied
// session `ttl` and `sweepDelay`, starting the sweep goroutine.
func newSessionRegistry(ttl, sweepDelay time.Duration) *SessionRegistry {
    r := &SessionRegistry {
        ttl: ttl,
        sweepDelay: sweepDelay,
        sessions: make(map[string]*Session),
        running: 1,
        stop: make(chan struct{}),
    }

    go r.sweep()

    return r
}
