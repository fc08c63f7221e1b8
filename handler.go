package go_chat_rooms

import (
    "strings"
    "sync/atomic"

    "github.com/google/uuid"
    "github.com/rs/zerolog"
)

// How many outbound lines may be queued per connection before deliveries
// start getting dropped.
const defSendQueueSize = 64

// Handler drives the protocol state machine for a single connection.
//
// A handler owns its transport and its parsing cursor. It runs in the
// goroutine that accepted the connection and spawns exactly one extra
// goroutine, the write loop, which drains the outbound queue. Its session
// and room back-references are private to the handler's own goroutine and
// require no locking.
type Handler struct {
    // id of this connection, for membership identity and log correlation.
    id string

    // The connection to the remote endpoint.
    conn Conn

    // The server whose registries this handler operates on.
    srv *server

    // The authenticated username. Empty until authentication succeeds.
    username string

    // session backing this connection, once authenticated.
    session *Session

    // room the user is currently in, or nil while in the lobby.
    room *Room

    // out queues lines for the write loop. Pushes never block: on a full
    // queue the line is dropped and counted.
    out chan string

    // Whether the handler is currently running.
    running uint32

    // stop signals, by getting closed, that the write loop should get
    // stopped.
    stop chan struct{}

    logger zerolog.Logger
}

// ID return the handler's unique connection identifier.
func (h *Handler) ID() string {
    return h.id
}

// Username return the authenticated username, or the empty string if the
// connection hasn't authenticated yet.
func (h *Handler) Username() string {
    return h.username
}

// Send queue `msg` for delivery to the remote endpoint.
//
// Send never blocks: if the connection's queue is full the line is
// dropped, so one slow member can't stall a room-wide broadcast. Dropped
// lines are only ever recoverable by the remote reconnecting.
func (h *Handler) Send(msg string) {
    if atomic.LoadUint32(&h.running) == 0 {
        return
    }

    select {
    case h.out <- msg:
    default:
        messagesDropped.Inc()
        h.logger.Warn().Msg("send queue full, dropping line")
    }
}

// writeLoop drain the outbound queue into the connection.
//
// A failed write closes the transport, which in turn fails the read loop;
// every cleanup then happens on the handler's own goroutine.
func (h *Handler) writeLoop() {
    for {
        select {
        case msg := <-h.out:
            if err := h.conn.SendStr(msg); err != nil {
                h.conn.Close()
                return
            }
        case <-h.stop:
            return
        }
    }
}

// Run execute the protocol state machine, blocking until the connection
// terminates.
//
// The handler greets the remote, authenticates it (or resumes a session),
// then relays lobby and room commands until logout or transport failure.
func (h *Handler) Run() {
    totalConnections.Inc()
    activeConnections.Inc()
    defer h.Close()

    go h.writeLoop()

    h.Send(LineWelcome)

    if !h.authenticate() {
        return
    }

    h.relay()
}

// splitCredential parse `line` as `<verb> <user> <secret>`.
func splitCredential(line string) (user, secret string, ok bool) {
    parts := strings.SplitN(line, " ", 3)
    if len(parts) < 3 || parts[1] == "" || parts[2] == "" {
        return "", "", false
    }

    return parts[1], parts[2], true
}

// authenticate repeatedly offer the auth prompt and read one command line,
// until an AUTH, REGISTER or TOKEN command succeeds.
//
// It returns false if the stream ended first; that's a silent terminal
// close, with no further lines sent.
func (h *Handler) authenticate() bool {
    for {
        h.Send(LineAuthPrompt)

        line, err := h.conn.Recv()
        if err != nil {
            return false
        }
        line = strings.TrimSpace(line)

        verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
        switch verb {
        case CmdToken:
            if h.resume(line) {
                return true
            }
        case CmdAuth:
            if h.login(line) {
                return true
            }
        case CmdRegister:
            if h.register(line) {
                return true
            }
        default:
            h.Send(LineInvalidCommand)
        }
    }
}

// resume handle a `TOKEN <token>` line, re-binding this handler to the
// stored session on success.
//
// A missing, unknown or expired token fails the attempt with
// `INVALID_TOKEN`; the prompt repeats and the remote decides whether to
// retry or fall back to a full authentication.
func (h *Handler) resume(line string) bool {
    parts := strings.SplitN(line, " ", 2)
    if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
        h.Send(LineInvalidToken)
        return false
    }

    sess, err := h.srv.sessions.Get(strings.TrimSpace(parts[1]))
    if err != nil {
        authFailures.WithLabelValues("invalid_token").Inc()
        h.Send(LineInvalidToken)
        return false
    }

    h.session = sess
    h.username = sess.Username()
    sess.bindHandler(h)
    h.Send(LineReconnectOk)

    h.logger.Info().
        Str("user", h.username).
        Msg("session resumed")

    // If the session records a room, the server re-joins it on the
    // user's behalf; the client must not re-send the room selection.
    if name := sess.RoomName(); name != "" {
        r := h.srv.rooms.GetOrCreate(name)
        r.AddClient(h)
        h.room = r
        h.Send(LineJoinedPrefix + name)
    }

    return true
}

// login handle an `AUTH <user> <secret>` line.
//
// The credential check runs first, then the duplicate-login check; a
// second live session for the same user is rejected, never merged.
func (h *Handler) login(line string) bool {
    user, secret, ok := splitCredential(line)
    if !ok {
        h.Send(LineInvalidCommand)
        return false
    }

    if !h.srv.users.Authenticate(user, secret) {
        authFailures.WithLabelValues("bad_credentials").Inc()
        h.Send(LineAuthFail)
        return false
    }

    token, sess, err := h.srv.sessions.CreateExclusive(user, h)
    if err == AlreadyLoggedIn {
        authFailures.WithLabelValues("already_logged_in").Inc()
        h.Send(LineAlreadyLoggedIn)
        return false
    } else if err != nil {
        h.logger.Error().Err(err).Msg("couldn't create a session")
        h.Send(LineAuthFail)
        return false
    }

    h.accept(user, token, sess)
    return true
}

// register handle a `REGISTER <user> <secret>` line, persisting the new
// credential and creating a session for it.
func (h *Handler) register(line string) bool {
    user, secret, ok := splitCredential(line)
    if !ok {
        h.Send(LineInvalidCommand)
        return false
    }

    err := h.srv.users.Register(user, secret)
    if err == UserExists {
        h.Send(LineExists)
        return false
    } else if err != nil {
        h.logger.Error().Err(err).Msg("couldn't persist the credential")
        h.Send(LineAuthFail)
        return false
    }

    token, sess, err := h.srv.sessions.Create(user, h)
    if err != nil {
        h.logger.Error().Err(err).Msg("couldn't create a session")
        h.Send(LineAuthFail)
        return false
    }

    h.accept(user, token, sess)
    return true
}

// accept bind the fresh session to this handler and acknowledge the
// authentication.
func (h *Handler) accept(user, token string, sess *Session) {
    h.username = user
    h.session = sess

    h.Send(LineAuthOk)
    h.Send(LineTokenPrefix + token)

    h.logger.Info().
        Str("user", user).
        Msg("user authenticated")
}

// relay read one line at a time, dispatching it to the lobby or in-room
// command set until the session ends.
//
// End-of-stream or a read failure here is an unclean disconnect: the
// handler closes without sending any reply and without evicting the
// session, which stays resumable until its deadline.
func (h *Handler) relay() {
    for {
        line, err := h.conn.Recv()
        if err != nil {
            return
        }
        line = strings.TrimSpace(line)
        if line == "" {
            continue
        }

        if h.room == nil {
            if h.lobbyCommand(line) {
                return
            }
        } else {
            if h.roomCommand(line) {
                return
            }
        }
    }
}

// lobbyCommand process one line while in the lobby. It reports whether
// the session ended.
//
// Anything that isn't LOGOUT or LIST is treated as a room name.
func (h *Handler) lobbyCommand(line string) bool {
    switch {
    case strings.EqualFold(line, CmdLogout):
        h.srv.sessions.Remove(h.session)
        h.Send(LineLogoutOk)
        return true
    case strings.EqualFold(line, CmdList):
        for _, name := range h.srv.rooms.Names() {
            h.Send(name)
        }
        h.Send("")
        return false
    default:
        r := h.srv.rooms.GetOrCreate(line)
        r.AddClient(h)
        h.room = r
        h.session.setRoomName(line)
        h.Send(LineJoinedPrefix + line)
        return false
    }
}

// roomCommand process one line while in a room. It reports whether the
// session ended.
func (h *Handler) roomCommand(line string) bool {
    switch {
    case strings.EqualFold(line, CmdExit):
        h.room.RemoveClient(h)
        h.room = nil
        h.session.setRoomName("")
        return false
    case strings.EqualFold(line, CmdLogout):
        h.room.RemoveClient(h)
        h.room = nil
        h.session.setRoomName("")
        h.srv.sessions.Remove(h.session)
        h.Send(LineLogoutOk)
        return true
    case strings.EqualFold(line, CmdList):
        // Deliberately inert while in a room.
        return false
    default:
        h.room.UserMessage(h.username + ": " + line, h)
        return false
    }
}

// Close the handler, detaching it from its room and releasing the
// transport.
//
// Closing is terminal for the handler instance but not for its session:
// unless the user logged out explicitly, the session stays in the
// registry, resumable by token until its deadline lapses.
//
// This can safely be called multiple times, as it will only run on the
// first call.
func (h *Handler) Close() error {
    if atomic.CompareAndSwapUint32(&h.running, 1, 0) {
        if h.room != nil {
            h.room.RemoveClient(h)
            h.room = nil
        }
        close(h.stop)
        h.conn.Close()
        activeConnections.Dec()

        h.logger.Debug().Msg("connection closed")
    }

    return nil
}

// newHandler create a handler for `conn`, operating on `srv`'s
// registries.
func newHandler(srv *server, conn Conn) *Handler {
    id := uuid.NewString()

    return &Handler {
        id: id,
        conn: conn,
        srv: srv,
        out: make(chan string, srv.conf.SendQueueSize),
        running: 1,
        stop: make(chan struct{}),
        logger: srv.logger.With().Str("conn", id).Logger(),
    }
}
