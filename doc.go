/*
Package go_chat_rooms implements a connection-agnostic, token-authenticated
multi-room chat server.

The server is divided into four components:

 - `ChatServer`: the protocol engine, tying the registries together
 - `SessionRegistry`: token-bound sessions, with expiry and reconnection
 - `RoomRegistry` / `Room`: room creation, membership and broadcast
 - `Conn`: a line-oriented connection to the remote client

Internally there's also a fifth component, the `Handler`, which drives the
protocol state machine for a single connection.

The first step to start a chat server is to open the credential store and
instantiate the server through `NewServer` or `NewServerConf`. The last one
should be the preferred variant, as it's the one that allows the most
customization:

    users, err := go_chat_rooms.OpenUserStore("users.txt")
    if err != nil {
        // Handle the error
    }

    conf := go_chat_rooms.GetDefaultServerConf()
    // Modify 'conf' as desired
    server := go_chat_rooms.NewServerConf(conf, users)

The `ChatServer` doesn't own any listener. Whatever accepts connections
(a TLS listener, a WebSocket endpoint...) wraps each accepted connection
into a `Conn` and hands it over, one goroutine per connection:

    for {
        sock, err := listener.Accept()
        if err != nil {
            break
        }
        go server.Handle(line_conn.New(sock))
    }

`Handle` then walks the connection through the protocol: a greeting, the
authentication loop (`AUTH`, `REGISTER` or a `TOKEN` resume), the lobby
(`LIST`, `LOGOUT` or a room name to join) and finally the in-room relay
loop, where every received line is broadcast to the room's members.

Authentication creates a `Session` and returns its resume token to the
client. The session survives the connection: if the transport drops
uncleanly, the client may open a fresh connection and replay
`TOKEN <token>` to resume, and the server re-joins the recorded room on
its behalf. Sessions expire 30 minutes after creation regardless of
activity; an expired token is reported as `INVALID_TOKEN` and the client
must authenticate again. The `client` sub-package implements this
reconnection contract.

Rooms are created lazily, on first reference, and a room whose name starts
with `AI_` is a bot room: every message is recorded into the room's
history and handed to the configured `Responder`, whose reply is broadcast
with a `Bot: ` tag. The `ollama` sub-package implements the `Responder`
against an Ollama chat endpoint.

Each registry and each room guards its state with its own lock, so
unrelated rooms and sessions never serialize on each other. Within one
room, membership changes and broadcasts are totally ordered; delivery to
each member is best-effort and never blocks on another member's
connection.
*/
package go_chat_rooms
