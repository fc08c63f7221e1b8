// Package gorilla_ws_conn implements the Conn interface from
// https://github.com/SirGFM/go-chat-rooms over a server-side WebSocket
// connection from https://github.com/gorilla/websocket.
//
// One text message carries exactly one protocol line, without any line
// terminator. Empty text messages are meaningful (the LIST response ends
// on one), so liveness checking uses real ping frames only.
package gorilla_ws_conn

import (
    "net/http"
    "sync"
    "sync/atomic"
    "time"

    gochat "github.com/SirGFM/go-chat-rooms"
    gows "github.com/gorilla/websocket"
    "github.com/rs/zerolog/log"
)

// defaultPing is sent on ping messages as the application data.
const defaultPing = "go-chat-rooms says hi"

// gwsConn wrap a gorilla/ws connection into a gochat.Conn.
type gwsConn struct {
    // The gorilla WebSocket connection.
    conn *gows.Conn

    // How long the connection waits until pinging the remote endpoint.
    timeout time.Duration

    // ticker generates a message on a channel if `timeout` elapsed
    // without receiving anything.
    ticker *time.Ticker

    // timeoutCount counts the number of consecutive timeouts that
    // happened.
    timeoutCount uint32

    // sendMutex synchronizes write operations on `conn`.
    sendMutex sync.Mutex

    // Whether the connection is currently active.
    active uint32

    // stop signals, by getting closed, that the connection should get
    // closed.
    stop chan struct{}
}

// isActive check if the connection is still active.
func (c *gwsConn) isActive() bool {
    return atomic.LoadUint32(&c.active) == 1
}

// Close the connection.
func (c *gwsConn) Close() error {
    if atomic.CompareAndSwapUint32(&c.active, 1, 0) {
        c.sendMutex.Lock()
        c.conn.Close()
        c.sendMutex.Unlock()

        c.ticker.Stop()
        close(c.stop)
    }

    return nil
}

// resetTimeout reset the last timeout.
//
// This must be called whenever this connection receives anything from its
// remote endpoint.
func (c *gwsConn) resetTimeout() {
    atomic.StoreUint32(&c.timeoutCount, 0)
    c.ticker.Reset(c.timeout)
}

// Recv blocks until the next line was received.
func (c *gwsConn) Recv() (string, error) {
    for c.isActive() {
        typ, txt, err := c.conn.ReadMessage()
        if err != nil {
            c.Close()
            return "", gochat.ConnEOF
        }

        c.resetTimeout()

        switch typ {
        case gows.CloseMessage:
            c.Close()
            return "", gochat.ConnEOF
        case gows.TextMessage:
            return string(txt), nil
        default:
            continue
        }
    }

    return "", gochat.ConnEOF
}

// send the message, properly synchronizing the connection.
func (c *gwsConn) send(mType int, data []byte) error {
    c.sendMutex.Lock()
    defer c.sendMutex.Unlock()

    if !c.isActive() {
        return gochat.ConnEOF
    }

    return c.conn.WriteMessage(mType, data)
}

// SendStr send the line `msg`, previously formatted by the caller.
//
// Empty lines are sent as-is: the protocol uses them as terminators, so
// they must arrive as regular text messages.
func (c *gwsConn) SendStr(msg string) error {
    err := c.send(gows.TextMessage, []byte(msg))
    if err != nil {
        return gochat.ConnEOF
    }

    return nil
}

// detectTimeout wait some time checking if the connection timed out.
//
// After two consecutive timeouts, the connection is automatically closed.
func (c *gwsConn) detectTimeout() {
    for c.isActive() {
        select {
        case <-c.ticker.C:
            if atomic.CompareAndSwapUint32(&c.timeoutCount, 0, 1) {
                // Try to ping the remote endpoint and see if there's
                // any response.
                err := c.send(gows.PingMessage, []byte(defaultPing))
                if err != nil {
                    log.Warn().Err(err).Msg("gorilla-ws-conn: couldn't ping on timeout")
                    c.Close()
                }
            } else {
                // This is the second time that this connection timed
                // out, so just close it.
                c.Close()
            }
        case <-c.stop:
            /* Do nothing and simply exit */
        }
    }
}

// ping handle received ping messages.
//
// The WebSocket protocol defines that the receiver must respond with a
// pong with the same `appData` as received.
//
// Instead of using the default ping handler, it's important to use a
// custom one to guarantee that this write isn't concurrent to other
// messages.
func (c *gwsConn) ping(appData string) error {
    c.resetTimeout()

    return c.send(gows.PongMessage, []byte(appData))
}

// pong handle received pong messages, which only reset the time without
// messages.
func (c *gwsConn) pong(appData string) error {
    c.resetTimeout()
    return nil
}

// Upgrade a HTTP request to a chat connection.
//
// The supplied `upgrader` is used to upgrade the HTTP request into a
// WebSocket connection. The connection pings its remote endpoint if it
// stays silent for `timeout`, and closes it if the silence persists.
//
// Gorilla/ws's documentation specifies that if `SetReadDeadline` is set
// and a read times out, the websocket becomes corrupt. To work around
// that, `Upgrade` spawns a goroutine to manually detect timeouts.
func Upgrade(upgrader gows.Upgrader, timeout time.Duration,
        w http.ResponseWriter, req *http.Request) (gochat.Conn, error) {

    conn, err := upgrader.Upgrade(w, req, nil)
    if err != nil {
        return nil, err
    }

    c := &gwsConn {
        conn: conn,
        timeout: timeout,
        ticker: time.NewTicker(timeout),
        timeoutCount: 0,
        active: 1,
        stop: make(chan struct{}),
    }
    conn.SetPingHandler(c.ping)
    conn.SetPongHandler(c.pong)
    go c.detectTimeout()

    return c, nil
}
