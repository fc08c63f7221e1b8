// Package gobwas_ws_conn implements the Conn interface from
// https://github.com/SirGFM/go-chat-rooms over a client-side WebSocket
// connection from https://github.com/gobwas/ws.
//
// It's the counterpart of the gorilla-ws-conn package: the chat client
// dials the server's websocket endpoint with it when a TLS socket isn't
// an option (say, behind a proxy that only forwards HTTP).
package gobwas_ws_conn

import (
    "context"
    "crypto/tls"
    "net"
    "sync"
    "sync/atomic"

    gochat "github.com/SirGFM/go-chat-rooms"
    "github.com/gobwas/ws"
    "github.com/gobwas/ws/wsutil"
)

// cwsConn wrap a dialed gobwas/ws connection into a gochat.Conn.
type cwsConn struct {
    // The underlying network connection, with the websocket handshake
    // already done.
    conn net.Conn

    // pending lines decoded from a frame batch but not yet returned by
    // `Recv`. Only the reading goroutine touches this.
    pending []string

    // sendMutex synchronizes write operations on `conn`, as pongs may
    // race regular lines.
    sendMutex sync.Mutex

    // Whether the connection is currently active.
    active uint32
}

// Close the connection.
//
// This can safely be called multiple times, as it will only run on the
// first call.
func (c *cwsConn) Close() error {
    if atomic.CompareAndSwapUint32(&c.active, 1, 0) {
        return c.conn.Close()
    }

    return nil
}

// send a raw frame, properly synchronizing the connection.
func (c *cwsConn) send(op ws.OpCode, data []byte) error {
    c.sendMutex.Lock()
    defer c.sendMutex.Unlock()

    if atomic.LoadUint32(&c.active) == 0 {
        return gochat.ConnEOF
    }

    return wsutil.WriteClientMessage(c.conn, op, data)
}

// Recv blocks until the next line was received.
//
// Control frames are handled transparently: pings are ponged back and a
// close frame ends the connection.
func (c *cwsConn) Recv() (string, error) {
    for atomic.LoadUint32(&c.active) == 1 {
        if len(c.pending) > 0 {
            line := c.pending[0]
            c.pending = c.pending[1:]
            return line, nil
        }

        msgs, err := wsutil.ReadServerMessage(c.conn, nil)
        if err != nil {
            c.Close()
            return "", gochat.ConnEOF
        }

        for i := range msgs {
            data := &msgs[i]
            switch data.OpCode {
            case ws.OpClose:
                c.Close()
                return "", gochat.ConnEOF
            case ws.OpPing:
                if err := c.send(ws.OpPong, data.Payload); err != nil {
                    c.Close()
                    return "", gochat.ConnEOF
                }
            case ws.OpText:
                c.pending = append(c.pending, string(data.Payload))
            default:
                /* Ignore other control frames */
            }
        }
    }

    return "", gochat.ConnEOF
}

// SendStr send the line `msg`, previously formatted by the caller.
func (c *cwsConn) SendStr(msg string) error {
    err := c.send(ws.OpText, []byte(msg))
    if err != nil {
        return gochat.ConnEOF
    }

    return nil
}

// Dial the chat server's websocket endpoint at `url` (a ws:// or wss://
// address), returning the established chat connection.
//
// `tlsConf` configures the wss:// handshake and may be nil for the
// library's defaults.
func Dial(ctx context.Context, url string, tlsConf *tls.Config) (gochat.Conn, error) {
    dialer := ws.Dialer {
        TLSConfig: tlsConf,
    }

    conn, _, _, err := dialer.Dial(ctx, url)
    if err != nil {
        return nil, err
    }

    return &cwsConn {
        conn: conn,
        active: 1,
    }, nil
}
