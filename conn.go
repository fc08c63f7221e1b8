package go_chat_rooms

import (
    "io"
)

// Conn is a generic interface for exchanging protocol lines with a remote
// endpoint.
//
// The chat server only requires that the underlying transport is
// confidential, authenticated and ordered/reliable. Adapters for a TLS
// socket and for WebSocket connections are provided in sub-packages.
type Conn interface {
    io.Closer

    // Recv blocks until the next line was received.
    //
    // The returned line must not include the trailing line terminator.
    Recv() (string, error)

    // SendStr send the line `msg`, previously formatted by the caller.
    SendStr(msg string) error
}
