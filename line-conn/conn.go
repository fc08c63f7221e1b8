// Package line_conn implements the Conn interface from
// https://github.com/SirGFM/go-chat-rooms over any net.Conn, exchanging
// newline-terminated UTF-8 lines.
//
// The package doesn't set up the transport itself: hand it a plain TCP
// connection for testing, or a *tls.Conn for the confidential transport
// the chat protocol expects.
package line_conn

import (
    "bufio"
    "net"
    "strings"
    "sync"
    "sync/atomic"

    gochat "github.com/SirGFM/go-chat-rooms"
)

// lineConn wrap a net.Conn into a gochat.Conn.
type lineConn struct {
    // The underlying network connection.
    conn net.Conn

    // rd buffers reads from `conn`, so the parsing cursor survives
    // between `Recv` calls.
    rd *bufio.Reader

    // sendMutex synchronizes write operations on `conn`.
    sendMutex sync.Mutex

    // Whether the connection is currently active.
    active uint32
}

// Close the connection.
//
// This can safely be called multiple times, as it will only run on the
// first call.
func (c *lineConn) Close() error {
    if atomic.CompareAndSwapUint32(&c.active, 1, 0) {
        return c.conn.Close()
    }

    return nil
}

// Recv blocks until the next line was received.
//
// The trailing line terminator (and an optional carriage return before
// it) is stripped. Any read failure, a partial trailing line included,
// closes the connection and is reported as `gochat.ConnEOF`.
func (c *lineConn) Recv() (string, error) {
    line, err := c.rd.ReadString('\n')
    if err != nil {
        c.Close()
        return "", gochat.ConnEOF
    }

    line = strings.TrimSuffix(line, "\n")
    line = strings.TrimSuffix(line, "\r")

    return line, nil
}

// SendStr send the line `msg`, previously formatted by the caller. The
// line terminator is appended here.
func (c *lineConn) SendStr(msg string) error {
    c.sendMutex.Lock()
    defer c.sendMutex.Unlock()

    if atomic.LoadUint32(&c.active) == 0 {
        return gochat.ConnEOF
    }

    _, err := c.conn.Write([]byte(msg + "\n"))
    if err != nil {
        return gochat.ConnEOF
    }

    return nil
}

// New wrap `conn` into a line-oriented chat connection.
//
// If `conn` is nil, then this function will panic!
func New(conn net.Conn) gochat.Conn {
    if conn == nil {
        panic("go-chat-rooms/line-conn New: nil conn")
    }

    return &lineConn {
        conn: conn,
        rd: bufio.NewReader(conn),
        active: 1,
    }
}
