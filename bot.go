package go_chat_rooms

import (
    "context"
)

// BotRoomPrefix marks a room as bot-enabled. The flag is derived from the
// room's name once, at creation, and never changes.
const BotRoomPrefix = "AI_"

// botTag prefixes every reply broadcast on behalf of the bot.
const botTag = "Bot: "

// botFallbackReply is broadcast in place of a reply whenever the responder
// fails. Responder errors are absorbed here and never reach the room's
// members as protocol errors.
const botFallbackReply = "[No response available]"

// Turn role tags, as expected by the response-generating service.
const (
    RoleUser = "user"
    RoleAssistant = "assistant"
)

// Turn is a single role-tagged entry of a bot room's conversation history.
type Turn struct {
    Role string `json:"role"`
    Content string `json:"content"`
}

// Responder produce the next assistant reply for an ordered conversation
// history.
//
// The room invokes the responder synchronously while holding its own lock,
// so a slow responder blocks further message processing on that room only;
// other rooms and other handlers are unaffected.
type Responder interface {
    // Respond return the next assistant turn for `history`, or an error
    // if no reply could be produced.
    //
    // Implementations must not retain or mutate `history`.
    Respond(ctx context.Context, history []Turn) (string, error)
}
