// Package client implements the client side of the go-chat-rooms
// protocol, most importantly the reconnection contract: after a transport
// failure, the client keeps re-dialing on a fixed delay and replaying its
// resume token until the server explicitly accepts or rejects it.
//
// The package is transport-agnostic: it dials through a caller-supplied
// `Dialer`, so a TLS socket and a websocket endpoint work the same way.
package client

import (
    "bufio"
    "fmt"
    "os"
    "strconv"
    "strings"
    "sync"
    "sync/atomic"
    "syscall"
    "time"

    gochat "github.com/SirGFM/go-chat-rooms"
    "github.com/rs/zerolog"
)

// defRetryDelay between reconnection attempts. There's no maximum retry
// count and no backoff: attempts continue on this fixed delay for as long
// as the client holds a token.
const defRetryDelay = time.Second * 2

// Dialer open a fresh connection to the chat server.
type Dialer func() (gochat.Conn, error)

// Conf configure a chat client.
type Conf struct {
    // Dial open connections to the server. Required.
    Dial Dialer

    // StateFile persists the token, the last room and the owning process
    // ID between runs. Empty disables persistence.
    StateFile string

    // RetryDelay between reconnection attempts.
    RetryDelay time.Duration

    // OnLine is invoked for every line received from the server. If nil,
    // received lines are discarded.
    OnLine func(line string)

    // OnReconnect is invoked after a successful resume, with the room
    // the server re-joined (or the empty string for the lobby).
    OnReconnect func(room string)

    // OnSessionExpired is invoked when the server rejects the resume
    // token for good and the client must re-authenticate.
    OnSessionExpired func()

    // Logger used by the client to report events. Defaults to a no-op
    // logger.
    Logger zerolog.Logger
}

// Client talk to a chat server, transparently resuming its session after
// a connection loss.
type Client struct {
    conf Conf

    // lock `conn`, `token` and `room`, which are swapped by
    // (re)connections and room changes.
    mu sync.Mutex

    // The current connection, or nil while disconnected.
    conn gochat.Conn

    // token for resuming the current session. Empty while logged out.
    token string

    // room last joined, as remembered locally. Empty in the lobby.
    room string

    // Whether the client is currently running.
    running uint32

    // stop signals, by getting closed, that the client should get
    // closed.
    stop chan struct{}

    logger zerolog.Logger
}

// isRunning check if the client is still running.
func (c *Client) isRunning() bool {
    return atomic.LoadUint32(&c.running) == 1
}

// Token retrieve the session token held by the client, if any.
func (c *Client) Token() string {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.token
}

// Room retrieve the room the client believes it's in, if any.
func (c *Client) Room() string {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.room
}

// send a line to the server over the current connection.
func (c *Client) send(line string) error {
    c.mu.Lock()
    conn := c.conn
    c.mu.Unlock()

    if conn == nil {
        return gochat.NotConnected
    }

    return conn.SendStr(line)
}

// onLine forward a received line to the application.
func (c *Client) onLine(line string) {
    if c.conf.OnLine != nil {
        c.conf.OnLine(line)
    }
}

// greet consume the two greeting lines sent on every fresh connection.
func greet(conn gochat.Conn) error {
    for i := 0; i < 2; i++ {
        if _, err := conn.Recv(); err != nil {
            return err
        }
    }

    return nil
}

// authenticate dial a fresh connection and run one credential handshake,
// where `verb` is either gochat.CmdAuth or gochat.CmdRegister.
func (c *Client) authenticate(verb, user, secret string) error {
    conn, err := c.conf.Dial()
    if err != nil {
        return fmt.Errorf("dial chat server: %w", err)
    }

    if err := greet(conn); err != nil {
        conn.Close()
        return gochat.ConnEOF
    }

    if err := conn.SendStr(verb + " " + user + " " + secret); err != nil {
        conn.Close()
        return gochat.ConnEOF
    }

    reply, err := conn.Recv()
    if err != nil {
        conn.Close()
        return gochat.ConnEOF
    }

    switch reply {
    case gochat.LineAuthOk:
        /* Fall through to read the token line */
    case gochat.LineAuthFail:
        conn.Close()
        return gochat.InvalidCredentials
    case gochat.LineExists:
        conn.Close()
        return gochat.UserExists
    case gochat.LineAlreadyLoggedIn:
        conn.Close()
        return gochat.AlreadyLoggedIn
    default:
        conn.Close()
        return gochat.InvalidCommand
    }

    tokenLine, err := conn.Recv()
    if err != nil || !strings.HasPrefix(tokenLine, gochat.LineTokenPrefix) {
        conn.Close()
        return gochat.ConnEOF
    }

    c.mu.Lock()
    c.conn = conn
    c.token = strings.TrimSpace(strings.TrimPrefix(tokenLine, gochat.LineTokenPrefix))
    c.room = ""
    c.mu.Unlock()
    c.saveState()

    go c.listen(conn)

    return nil
}

// Login authenticate with an existing credential, establishing a new
// session.
func (c *Client) Login(user, secret string) error {
    return c.authenticate(gochat.CmdAuth, user, secret)
}

// Register create a new credential and establish a session for it.
func (c *Client) Register(user, secret string) error {
    return c.authenticate(gochat.CmdRegister, user, secret)
}

// Resume re-establish the session from the stored token, retrying on a
// fixed delay for as long as it takes.
//
// It returns nil once the server accepted the resume, `InvalidToken` if
// the server rejected the token for good (the stored state is discarded
// and the caller must authenticate again), or `ConnEOF` if the client
// was closed while retrying.
func (c *Client) Resume() error {
    for {
        if !c.isRunning() {
            return gochat.ConnEOF
        }

        token := c.Token()
        if token == "" {
            return gochat.InvalidToken
        }

        select {
        case <-c.stop:
            return gochat.ConnEOF
        case <-time.After(c.conf.RetryDelay):
        }

        conn, err := c.conf.Dial()
        if err != nil {
            c.logger.Debug().Err(err).Msg("reconnect dial failed")
            continue
        }

        switch c.resumeHandshake(conn, token) {
        case resumeAccepted:
            return nil
        case resumeRejected:
            return gochat.InvalidToken
        case resumeRetry:
            /* Try again after the delay */
        }
    }
}

// Outcome of a single resume attempt.
type resumeOutcome int

const (
    resumeAccepted resumeOutcome = iota
    resumeRejected
    resumeRetry
)

// resumeHandshake replay the token handshake over a fresh connection and
// classify the single reply line.
func (c *Client) resumeHandshake(conn gochat.Conn, token string) resumeOutcome {
    if err := greet(conn); err != nil {
        conn.Close()
        return resumeRetry
    }

    if err := conn.SendStr(gochat.LineTokenPrefix + token); err != nil {
        conn.Close()
        return resumeRetry
    }

    reply, err := conn.Recv()
    if err != nil {
        conn.Close()
        return resumeRetry
    }

    switch {
    case reply == gochat.LineReconnectOk:
        c.mu.Lock()
        c.conn = conn
        room := c.room
        c.mu.Unlock()
        c.saveState()

        go c.listen(conn)

        // If a room was remembered, the server already re-joined it on
        // our behalf; otherwise head back to the lobby listing.
        if room == "" {
            c.send(gochat.CmdList)
        }

        c.logger.Info().Str("room", room).Msg("session resumed")
        if c.conf.OnReconnect != nil {
            c.conf.OnReconnect(room)
        }

        return resumeAccepted
    case strings.EqualFold(reply, gochat.LineInvalidToken):
        conn.Close()

        c.mu.Lock()
        c.token = ""
        c.room = ""
        c.mu.Unlock()
        c.clearState()

        c.logger.Info().Msg("session expired, authentication required")
        if c.conf.OnSessionExpired != nil {
            c.conf.OnSessionExpired()
        }

        return resumeRejected
    default:
        // Anything else is just another transient failure.
        conn.Close()
        return resumeRetry
    }
}

// listen forward every received line to the application, kicking off the
// reconnection loop if the transport fails while a token is held.
func (c *Client) listen(conn gochat.Conn) {
    for {
        line, err := conn.Recv()
        if err != nil {
            if c.isRunning() && c.Token() != "" {
                c.logger.Warn().Msg("connection lost, reconnecting")
                go c.Resume()
            }
            return
        }

        c.onLine(line)
    }
}

// Join enter (or create) the room named `name`. The room is remembered
// locally right away, so a reconnection during the join still resumes
// into it.
func (c *Client) Join(name string) error {
    if err := c.send(name); err != nil {
        return err
    }

    c.mu.Lock()
    c.room = name
    c.mu.Unlock()
    c.saveState()

    return nil
}

// List request the known room names. The response arrives through
// `OnLine`, one name per line, terminated by a blank line.
func (c *Client) List() error {
    return c.send(gochat.CmdList)
}

// Say broadcast `text` to the current room.
func (c *Client) Say(text string) error {
    return c.send(text)
}

// Exit leave the current room, back to the lobby.
func (c *Client) Exit() error {
    if err := c.send(gochat.CmdExit); err != nil {
        return err
    }

    c.mu.Lock()
    c.room = ""
    c.mu.Unlock()
    c.saveState()

    return nil
}

// Logout end the session for good, discarding the stored token.
func (c *Client) Logout() error {
    err := c.send(gochat.CmdLogout)

    c.mu.Lock()
    c.token = ""
    c.room = ""
    c.mu.Unlock()
    c.clearState()

    return err
}

// Drop close the transport without logging out, as a network failure
// would. The session stays resumable server-side.
func (c *Client) Drop() {
    c.mu.Lock()
    conn := c.conn
    c.mu.Unlock()

    if conn != nil {
        conn.Close()
    }
}

// Close the client and its connection, if any.
//
// This can safely be called multiple times, as it will only run on the
// first call.
func (c *Client) Close() error {
    if atomic.CompareAndSwapUint32(&c.running, 1, 0) {
        close(c.stop)
        c.Drop()
    }

    return nil
}

// pidAlive check whether a process with `pid` currently exists.
func pidAlive(pid int) bool {
    proc, err := os.FindProcess(pid)
    if err != nil {
        return false
    }

    // Signal 0 probes for existence without delivering anything. EPERM
    // still means the process exists, just owned by someone else.
    err = proc.Signal(syscall.Signal(0))
    return err == nil || err == syscall.EPERM
}

// loadState restore the token and last room from the state file, if the
// record isn't owned by another live process.
func (c *Client) loadState() {
    if c.conf.StateFile == "" {
        return
    }

    f, err := os.Open(c.conf.StateFile)
    if err != nil {
        return
    }
    defer f.Close()

    var lines []string
    scanner := bufio.NewScanner(f)
    for scanner.Scan() {
        lines = append(lines, scanner.Text())
    }
    if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
        return
    }

    // A record owned by another live process is someone else's session;
    // a dead owner's record (or an ownerless one) may be taken over.
    if len(lines) >= 3 {
        if pid, err := strconv.Atoi(strings.TrimSpace(lines[2])); err == nil {
            if pid != os.Getpid() && pidAlive(pid) {
                return
            }
        }
    }

    c.token = strings.TrimSpace(lines[0])
    if len(lines) >= 2 {
        c.room = strings.TrimSpace(lines[1])
    }
    c.saveState()
}

// saveState persist the token, last room and owning process ID.
func (c *Client) saveState() {
    if c.conf.StateFile == "" {
        return
    }

    c.mu.Lock()
    token, room := c.token, c.room
    c.mu.Unlock()

    content := fmt.Sprintf("%s\n%s\n%d\n", token, room, os.Getpid())
    err := os.WriteFile(c.conf.StateFile, []byte(content), 0600)
    if err != nil {
        c.logger.Warn().Err(err).Msg("couldn't persist the session state")
    }
}

// clearState remove the persisted session state.
func (c *Client) clearState() {
    if c.conf.StateFile == "" {
        return
    }

    os.Remove(c.conf.StateFile)
}

// New create a chat client, restoring any persisted session state from
// `conf.StateFile`.
//
// If a token was restored, the caller should run `Resume` to pick the
// session back up; otherwise it should authenticate with `Login` or
// `Register`.
func New(conf Conf) *Client {
    if conf.RetryDelay == 0 {
        conf.RetryDelay = defRetryDelay
    }

    c := &Client {
        conf: conf,
        running: 1,
        stop: make(chan struct{}),
        logger: conf.Logger,
    }
    c.loadState()

    return c
}
