package go_chat_rooms

import (
    "strings"
    "sync/atomic"
    "testing"
    "time"
)

// A simple mock connection, used to test the chat server without an actual
// network connection.
//
// Although the `Handler` uses the `Conn` API to drive this connection,
// tests must access this structure directly to simulate interactions.
//
// To simulate a line arriving from the client's remote endpoint, push it
// into `fromClient`, or use the `TestSend` helper:
//
//     c := newMockConn()
//     /* Hand the conn to a handler. */
//     c.TestSend("LIST")
//
// On the other hand, to simulate a client receiving a line, pop it from
// `fromServer` with `TestRecv`, which fails instead of hanging if the
// server stays silent for too long.
type mockConn struct {
    // fromClient simulates incoming lines (from the server's perspective)
    // from the client's remote endpoint. Therefore, tests must push
    // directly to this channel.
    fromClient chan string

    // fromServer simulates outgoing lines (from the server's perspective)
    // to the client's remote endpoint. Therefore, tests must read
    // directly from this channel.
    fromServer chan string

    // stop signals, by getting closed, that the connection was closed.
    stop chan struct{}

    // Whether the connection is currently running.
    running uint32
}

// isClosed check if the connection is closed.
func (mc *mockConn) isClosed() bool {
    return atomic.LoadUint32(&mc.running) == 0
}

// Close the connection.
//
// This can safely be called multiple times without any issue.
func (mc *mockConn) Close() error {
    if atomic.CompareAndSwapUint32(&mc.running, 1, 0) {
        close(mc.stop)
    }
    return nil
}

// Recv blocks until a new line was received.
func (mc *mockConn) Recv() (string, error) {
    var msg string

    select {
    case msg = <-mc.fromClient:
        return msg, nil
    case <-mc.stop:
        return msg, ConnEOF
    }
}

// SendStr send `msg`, previously formatted by the caller.
func (mc *mockConn) SendStr(msg string) error {
    if mc.isClosed() {
        return ConnEOF
    }

    mc.fromServer <- msg

    return nil
}

// TestSend send a line from the client to the server.
func (mc *mockConn) TestSend(msg string) error {
    if mc.isClosed() {
        return ConnEOF
    }

    mc.fromClient <- msg
    return nil
}

// TestRecv wait for `timeout` to receive a line from the server.
func (mc *mockConn) TestRecv(timeout time.Duration) (string, error) {
    select {
    case msg := <-mc.fromServer:
        return msg, nil
    case <-time.After(timeout):
        return "", TestTimeout
    case <-mc.stop:
        return "", ConnEOF
    }
}

// newMockConn create a dummy, mock connection that may be used in tests.
func newMockConn() *mockConn {
    return &mockConn {
        fromClient: make(chan string),
        fromServer: make(chan string, 100),
        stop: make(chan struct{}),
        running: 1,
    }
}

// recvTimeout is how long tests wait for a single line from the server.
const recvTimeout = time.Second

// expectLine fail the test unless the next line received on `mc` is
// exactly `want`.
func expectLine(t *testing.T, mc *mockConn, want string) {
    t.Helper()

    got, err := mc.TestRecv(recvTimeout)
    if err != nil {
        t.Fatalf("Couldn't receive %q: %+v", want, err)
    } else if want != got {
        t.Fatalf("Invalid line received: expected %q but got %q", want, got)
    }
}

// expectPrefix fail the test unless the next line received on `mc` starts
// with `prefix`, returning the rest of the line.
func expectPrefix(t *testing.T, mc *mockConn, prefix string) string {
    t.Helper()

    got, err := mc.TestRecv(recvTimeout)
    if err != nil {
        t.Fatalf("Couldn't receive a %q line: %+v", prefix, err)
    } else if !strings.HasPrefix(got, prefix) {
        t.Fatalf("Invalid line received: expected prefix %q but got %q", prefix, got)
    }

    return strings.TrimPrefix(got, prefix)
}

// expectSilence fail the test if `mc` receives any line within a short
// window.
func expectSilence(t *testing.T, mc *mockConn) {
    t.Helper()

    got, err := mc.TestRecv(time.Millisecond * 50)
    if err == nil {
        t.Fatalf("Expected no line, but got %q", got)
    } else if err != TestTimeout {
        t.Fatalf("Expected a silent connection, but got error %+v", err)
    }
}
