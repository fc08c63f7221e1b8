package main

import (
    "net/http"
    "time"

    gochat "github.com/SirGFM/go-chat-rooms"
    gochat_ws "github.com/SirGFM/go-chat-rooms/gorilla-ws-conn"
    "github.com/go-chi/chi/v5"
    "github.com/go-chi/chi/v5/middleware"
    gows "github.com/gorilla/websocket"
    "github.com/prometheus/client_golang/prometheus/promhttp"
    "github.com/rs/zerolog/log"
)

// How long a remote websocket connection may stay idle.
const wsTimeout = time.Minute

func ignoreOrigin(r *http.Request) bool {
    return true
}

// newRouter build the HTTP surface: the websocket chat endpoint, the
// embedded chat page, metrics and the health probe.
func newRouter(chat gochat.ChatServer, args Args) http.Handler {
    upgrader := gows.Upgrader {
        ReadBufferSize: args.ReadSize,
        WriteBufferSize: args.WriteSize,
    }
    if args.IgnoreOrigin {
        upgrader.CheckOrigin = ignoreOrigin
    }

    r := chi.NewRouter()
    r.Use(middleware.Recoverer)

    r.Get("/", func(w http.ResponseWriter, req *http.Request) {
        serveChatPage(w)
    })

    r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
        conn, err := gochat_ws.Upgrade(upgrader, wsTimeout, w, req)
        if err != nil {
            // Upgrade already replied with an HTTP error.
            log.Warn().Err(err).Str("remote", req.RemoteAddr).Msg("websocket upgrade failed")
            return
        }

        log.Debug().Str("remote", req.RemoteAddr).Msg("websocket connection accepted")
        chat.Handle(conn)
    })

    r.Handle("/metrics", promhttp.Handler())

    r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
        w.Header().Set("Content-Type", "text/plain")
        w.WriteHeader(http.StatusOK)
        w.Write([]byte("ok\n"))
    })

    return r
}
