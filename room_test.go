package go_chat_rooms

import (
    "context"
    "errors"
    "sync"
    "testing"
)

// newTestServer create a chat server over a temporary credential store,
// returning the internal representation so tests may reach the
// registries.
func newTestServer(t *testing.T, responder Responder) *server {
    t.Helper()

    conf := GetDefaultServerConf()
    conf.Responder = responder

    return NewServerConf(conf, newTestStore(t)).(*server)
}

// newTestMember create a handler that already went through
// authentication, with its write loop running, so it may be attached to
// rooms directly.
func newTestMember(srv *server, name string) (*Handler, *mockConn) {
    mc := newMockConn()
    h := newHandler(srv, mc)
    h.username = name
    go h.writeLoop()

    return h, mc
}

// stubResponder implement Responder from a canned reply, recording the
// history it was last invoked with.
type stubResponder struct {
    reply string
    err error

    mu sync.Mutex
    history []Turn
}

func (r *stubResponder) Respond(_ context.Context, history []Turn) (string, error) {
    r.mu.Lock()
    r.history = history
    r.mu.Unlock()

    return r.reply, r.err
}

func (r *stubResponder) lastHistory() []Turn {
    r.mu.Lock()
    defer r.mu.Unlock()
    return r.history
}

// TestRoomBroadcast check the broadcast fan-out: every attached member
// receives every message, in order, and a removed member receives nothing
// sent after its removal completes.
func TestRoomBroadcast(t *testing.T) {
    srv := newTestServer(t, nil)
    defer srv.Close()

    room := srv.rooms.GetOrCreate("general")

    alice, aliceConn := newTestMember(srv, "alice")
    bob, bobConn := newTestMember(srv, "bob")

    room.AddClient(alice)
    expectLine(t, aliceConn, "[alice enters the room]")

    room.AddClient(bob)
    expectLine(t, aliceConn, "[bob enters the room]")
    expectLine(t, bobConn, "[bob enters the room]")

    room.UserMessage("alice: hi", alice)
    expectLine(t, aliceConn, "alice: hi")
    expectLine(t, bobConn, "alice: hi")

    // The removed member doesn't get its own leave notice, nor anything
    // broadcast afterwards.
    room.RemoveClient(bob)
    expectLine(t, aliceConn, "[bob leaves the room]")

    room.UserMessage("alice: still there?", alice)
    expectLine(t, aliceConn, "alice: still there?")
    expectSilence(t, bobConn)

    bob.Close()
}

// TestRoomGhostLeaveNotice record the reference behavior for removing a
// handler that was never a member: the membership is untouched, but the
// leave notice is still broadcast.
func TestRoomGhostLeaveNotice(t *testing.T) {
    srv := newTestServer(t, nil)
    defer srv.Close()

    room := srv.rooms.GetOrCreate("general")

    alice, aliceConn := newTestMember(srv, "alice")
    ghost, _ := newTestMember(srv, "ghost")

    room.AddClient(alice)
    expectLine(t, aliceConn, "[alice enters the room]")

    room.RemoveClient(ghost)
    expectLine(t, aliceConn, "[ghost leaves the room]")

    room.mu.Lock()
    count := len(room.members)
    room.mu.Unlock()
    if want, got := 1, count; want != got {
        t.Errorf("Invalid member count: expected '%d' but got '%d'", want, got)
    }
}

// TestRoomBot check the bot-room round trip on a successful responder
// call: exactly one user turn and one assistant turn are recorded, and
// both the original text and the tagged reply are broadcast.
func TestRoomBot(t *testing.T) {
    responder := &stubResponder{reply: "hello there"}
    srv := newTestServer(t, responder)
    defer srv.Close()

    room := srv.rooms.GetOrCreate("AI_help")
    if !room.IsBotRoom() {
        t.Fatal("Expected a room with the reserved prefix to be bot-enabled")
    }

    alice, aliceConn := newTestMember(srv, "alice")
    room.AddClient(alice)
    expectLine(t, aliceConn, "[alice enters the room]")

    room.UserMessage("alice: hi bot", alice)
    expectLine(t, aliceConn, "alice: hi bot")
    expectLine(t, aliceConn, "Bot: hello there")

    history := room.History()
    if want, got := 2, len(history); want != got {
        t.Fatalf("Invalid history length: expected '%d' but got '%d'", want, got)
    }
    if want, got := RoleUser, history[0].Role; want != got {
        t.Errorf("Invalid first turn role: expected '%s' but got '%s'", want, got)
    }
    if want, got := "alice: hi bot", history[0].Content; want != got {
        t.Errorf("Invalid first turn content: expected '%s' but got '%s'", want, got)
    }
    if want, got := RoleAssistant, history[1].Role; want != got {
        t.Errorf("Invalid second turn role: expected '%s' but got '%s'", want, got)
    }
    if want, got := "hello there", history[1].Content; want != got {
        t.Errorf("Invalid second turn content: expected '%s' but got '%s'", want, got)
    }

    // The responder saw the history up to, and including, the user turn.
    seen := responder.lastHistory()
    if want, got := 1, len(seen); want != got {
        t.Fatalf("Invalid responder history length: expected '%d' but got '%d'", want, got)
    }
}

// TestRoomBotFailure check that a failing responder is fully absorbed:
// the room broadcasts the tagged fallback reply and records only the user
// turn.
func TestRoomBotFailure(t *testing.T) {
    responder := &stubResponder{err: errors.New("service unreachable")}
    srv := newTestServer(t, responder)
    defer srv.Close()

    room := srv.rooms.GetOrCreate("AI_help")

    alice, aliceConn := newTestMember(srv, "alice")
    room.AddClient(alice)
    expectLine(t, aliceConn, "[alice enters the room]")

    room.UserMessage("alice: hi bot", alice)
    expectLine(t, aliceConn, "alice: hi bot")
    expectLine(t, aliceConn, "Bot: [No response available]")

    history := room.History()
    if want, got := 1, len(history); want != got {
        t.Fatalf("Invalid history length: expected '%d' but got '%d'", want, got)
    }
    if want, got := RoleUser, history[0].Role; want != got {
        t.Errorf("Invalid turn role: expected '%s' but got '%s'", want, got)
    }
}

// TestRoomNames check that the registry reports each created room exactly
// once, in creation order, and that regular rooms don't get the bot flag.
func TestRoomNames(t *testing.T) {
    srv := newTestServer(t, nil)
    defer srv.Close()

    if srv.rooms.GetOrCreate("general").IsBotRoom() {
        t.Error("Expected a regular room not to be bot-enabled")
    }
    srv.rooms.GetOrCreate("AI_help")
    srv.rooms.GetOrCreate("general")

    names := srv.rooms.Names()
    if want, got := 2, len(names); want != got {
        t.Fatalf("Invalid name count: expected '%d' but got '%d'", want, got)
    }
    if want, got := "general", names[0]; want != got {
        t.Errorf("Invalid first name: expected '%s' but got '%s'", want, got)
    }
    if want, got := "AI_help", names[1]; want != got {
        t.Errorf("Invalid second name: expected '%s' but got '%s'", want, got)
    }
}
