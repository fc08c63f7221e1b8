package go_chat_rooms

import (
    "io"
    "time"

    "github.com/rs/zerolog"
)

// ServerConf configure a chat server.
type ServerConf struct {
    // SessionTTL is for how long a session stays resumable, counted from
    // its creation. The deadline is not refreshed by activity.
    SessionTTL time.Duration

    // SessionSweepDelay is the delay between executions of the session
    // cleanup routine.
    SessionSweepDelay time.Duration

    // SendQueueSize is how many outbound lines may be queued per
    // connection before deliveries start getting dropped.
    SendQueueSize int

    // Responder invoked by bot rooms. If nil, bot rooms always broadcast
    // the fallback reply.
    Responder Responder

    // Logger used by the server to report events. Defaults to a no-op
    // logger.
    Logger zerolog.Logger
}

// GetDefaultServerConf retrieve the default configuration for the chat
// server.
func GetDefaultServerConf() ServerConf {
    return ServerConf {
        SessionTTL: defSessionTTL,
        SessionSweepDelay: defSessionSweepDelay,
        SendQueueSize: defSendQueueSize,
        Logger: zerolog.Nop(),
    }
}

// The chat server.
type server struct {
    conf ServerConf

    // users hold the registered credentials.
    users *UserStore

    // sessions own every live session and its resume token.
    sessions *SessionRegistry

    // rooms own every room.
    rooms *RoomRegistry

    logger zerolog.Logger
}

// The public interface of the chat server.
type ChatServer interface {
    io.Closer

    // Handle run the chat protocol over `conn`, blocking until the
    // connection terminates.
    //
    // The server never spawns connection goroutines on its own: callers
    // accepting connections should call Handle from one goroutine per
    // accepted connection.
    Handle(conn Conn)

    // GetConf retrieve the server's configuration.
    GetConf() ServerConf
}

// Handle run the chat protocol over `conn`.
//
// See `ChatServer.Handle` for a more complete description.
func (s *server) Handle(conn Conn) {
    newHandler(s, conn).Run()
}

// GetConf retrieve the server's configuration.
func (s *server) GetConf() ServerConf {
    return s.conf
}

// Close the server, stopping its cleanup goroutine.
//
// Close doesn't tear down running handlers: each one stops naturally when
// its transport closes.
func (s *server) Close() error {
    return s.sessions.Close()
}

// NewServerConf create a new chat server on top of the credentials in
// `users`, fully configured by `conf`.
func NewServerConf(conf ServerConf, users *UserStore) ChatServer {
    def := GetDefaultServerConf()
    if conf.SessionTTL == 0 {
        conf.SessionTTL = def.SessionTTL
    }
    if conf.SessionSweepDelay == 0 {
        conf.SessionSweepDelay = def.SessionSweepDelay
    }
    if conf.SendQueueSize == 0 {
        conf.SendQueueSize = def.SendQueueSize
    }

    return &server {
        conf: conf,
        users: users,
        sessions: newSessionRegistry(conf.SessionTTL, conf.SessionSweepDelay),
        rooms: newRoomRegistry(conf.Responder, conf.Logger),
        logger: conf.Logger,
    }
}

// NewServer create a new chat server on top of the credentials in `users`,
// with the default configuration.
func NewServer(users *UserStore) ChatServer {
    return NewServerConf(GetDefaultServerConf(), users)
}
