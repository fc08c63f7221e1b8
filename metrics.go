package go_chat_rooms

import (
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors are registered on the default registry; the chat-server
// command exposes them through promhttp.
var (
    activeConnections = promauto.NewGauge(prometheus.GaugeOpts {
        Name: "chat_connections_active",
        Help: "The current number of connections with a running handler.",
    })
    totalConnections = promauto.NewCounter(prometheus.CounterOpts {
        Name: "chat_connections_total",
        Help: "The total number of accepted connections.",
    })
    sessionsCreated = promauto.NewCounter(prometheus.CounterOpts {
        Name: "chat_sessions_created_total",
        Help: "The total number of sessions created by AUTH and REGISTER.",
    })
    authFailures = promauto.NewCounterVec(prometheus.CounterOpts {
        Name: "chat_auth_failures_total",
        Help: "The total number of rejected authentication attempts.",
    }, []string{"reason"})
    messagesBroadcast = promauto.NewCounter(prometheus.CounterOpts {
        Name: "chat_messages_broadcast_total",
        Help: "The total number of per-member message deliveries.",
    })
    messagesDropped = promauto.NewCounter(prometheus.CounterOpts {
        Name: "chat_messages_dropped_total",
        Help: "The total number of deliveries dropped on a full send queue.",
    })
    botRequests = promauto.NewCounterVec(prometheus.CounterOpts {
        Name: "chat_bot_requests_total",
        Help: "The total number of calls into the bot responder.",
    }, []string{"result"})
)
