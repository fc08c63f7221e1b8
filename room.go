package go_chat_rooms

import (
    "context"
    "strings"
    "sync"

    "github.com/rs/zerolog"
)

// Room is a named broadcast group.
//
// A single mutex serializes membership changes, broadcasts and bot calls
// on the room, so no member ever observes a broadcast that starts before
// its own AddClient completes or after its own RemoveClient completes.
// Different rooms are fully independent of each other.
type Room struct {
    // name of this room. Immutable after creation.
    name string

    // Whether this is a bot room. Fixed at creation from the name's
    // prefix.
    bot bool

    // responder invoked by bot rooms. Ignored on regular rooms.
    responder Responder

    // lock membership, history and the responder call.
    mu sync.Mutex

    // Currently attached handlers, in attachment order. Broadcasts
    // deliver in this order.
    members []*Handler

    // Ordered conversation history, kept on bot rooms only. It's held in
    // memory for prompting the responder, not for durability.
    history []Turn

    logger zerolog.Logger
}

// Name retrieve the room's name.
func (r *Room) Name() string {
    return r.name
}

// IsBotRoom check whether messages on this room are forwarded to the bot
// responder.
func (r *Room) IsBotRoom() bool {
    return r.bot
}

// broadcastUnsafe deliver `msg` to every current member, in membership
// order, assuming that `r.mu` is held.
//
// Each member's delivery is independent and best-effort: a member with a
// slow or dead connection neither blocks nor aborts delivery to the
// others, and a failed delivery does not remove the member. Removal only
// happens through RemoveClient, driven by the member's own read loop.
func (r *Room) broadcastUnsafe(msg string) {
    for _, h := range r.members {
        h.Send(msg)
        messagesBroadcast.Inc()
    }
}

// AddClient attach `h` to the room and announce it to every member,
// including the new one. Enter and leave announcements are plain
// messages, not distinguished metadata.
func (r *Room) AddClient(h *Handler) {
    r.mu.Lock()
    r.members = append(r.members, h)
    r.broadcastUnsafe("[" + h.Username() + " enters the room]")
    r.mu.Unlock()

    r.logger.Debug().
        Str("room", r.name).
        Str("user", h.Username()).
        Str("conn", h.ID()).
        Msg("user entered room")
}

// RemoveClient detach `h` from the room and announce it to the remaining
// members.
//
// Calling this for a handler that isn't currently a member is a no-op on
// the membership, but the leave announcement is still broadcast.
func (r *Room) RemoveClient(h *Handler) {
    r.mu.Lock()
    for i, cur := range r.members {
        if cur == h {
            r.members = append(r.members[:i], r.members[i+1:]...)
            break
        }
    }
    r.broadcastUnsafe("[" + h.Username() + " leaves the room]")
    r.mu.Unlock()

    r.logger.Debug().
        Str("room", r.name).
        Str("user", h.Username()).
        Str("conn", h.ID()).
        Msg("user left room")
}

// BroadcastAll deliver `msg` to every current member.
func (r *Room) BroadcastAll(msg string) {
    r.mu.Lock()
    r.broadcastUnsafe(msg)
    r.mu.Unlock()
}

// UserMessage broadcast `text` verbatim to the room.
//
// On a bot room, the message is additionally appended to the history as a
// user turn and the responder is invoked with the full history, still
// under the room's lock: messages on one bot room are strictly serialized
// with the pending reply, while other rooms proceed independently. The
// reply (or the fixed fallback on failure) is broadcast with the bot tag;
// only successful replies are recorded as assistant turns.
func (r *Room) UserMessage(text string, from *Handler) {
    r.mu.Lock()
    defer r.mu.Unlock()

    r.broadcastUnsafe(text)

    if !r.bot {
        return
    }

    r.history = append(r.history, Turn{Role: RoleUser, Content: text})

    reply, err := r.respond()
    if err != nil {
        botRequests.WithLabelValues("error").Inc()
        r.logger.Warn().
            Err(err).
            Str("room", r.name).
            Msg("bot responder failed")

        r.broadcastUnsafe(botTag + botFallbackReply)
        return
    }

    botRequests.WithLabelValues("ok").Inc()
    r.history = append(r.history, Turn{Role: RoleAssistant, Content: reply})
    r.broadcastUnsafe(botTag + reply)
}

// respond invoke the responder with a snapshot of the history.
func (r *Room) respond() (string, error) {
    if r.responder == nil {
        return "", NotConnected
    }

    history := make([]Turn, len(r.history))
    copy(history, r.history)

    return r.responder.Respond(context.Background(), history)
}

// History retrieve a snapshot of the room's conversation history.
func (r *Room) History() []Turn {
    r.mu.Lock()
    defer r.mu.Unlock()

    history := make([]Turn, len(r.history))
    copy(history, r.history)

    return history
}

// RoomRegistry own every room, keyed by name.
//
// Rooms are created lazily on first reference and never deleted: an empty
// room persists, bounded by the number of distinct names ever used.
type RoomRegistry struct {
    // Every known room. The room's name is the map's key.
    rooms map[string]*Room

    // Room names in creation order, so LIST responses are stable.
    order []string

    // Synchronizes access to rooms and order.
    mu sync.Mutex

    // responder handed to newly created bot rooms.
    responder Responder

    logger zerolog.Logger
}

// GetOrCreate find the room named `name`, creating it if this is the
// first reference. The bot flag is fixed here, from the name's prefix.
func (rr *RoomRegistry) GetOrCreate(name string) *Room {
    rr.mu.Lock()
    defer rr.mu.Unlock()

    if r, ok := rr.rooms[name]; ok {
        return r
    }

    r := &Room {
        name: name,
        bot: strings.HasPrefix(name, BotRoomPrefix),
        responder: rr.responder,
        logger: rr.logger,
    }
    rr.rooms[name] = r
    rr.order = append(rr.order, name)

    rr.logger.Info().
        Str("room", name).
        Bool("bot", r.bot).
        Msg("room created")

    return r
}

// Names retrieve a snapshot of every known room name, in creation order.
func (rr *RoomRegistry) Names() []string {
    rr.mu.Lock()
    defer rr.mu.Unlock()

    names := make([]string, len(rr.order))
    copy(names, rr.order)

    return names
}

// newRoomRegistry create an empty room registry. Bot rooms created by the
// registry will invoke `responder`.
func newRoomRegistry(responder Responder, logger zerolog.Logger) *RoomRegistry {
    return &RoomRegistry {
        rooms: make(map[string]*Room),
        responder: responder,
        logger: logger,
    }
}
