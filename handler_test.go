package go_chat_rooms

import (
    "testing"
    "time"
)

// startConn hand a fresh mock connection to the server, returning the
// test's side of it. The greeting lines are consumed before returning.
func startConn(t *testing.T, srv *server) *mockConn {
    t.Helper()

    mc := newMockConn()
    go srv.Handle(mc)

    expectLine(t, mc, LineWelcome)
    expectLine(t, mc, LineAuthPrompt)

    return mc
}

// registerUser run a REGISTER handshake on a fresh connection, returning
// the connection and the issued resume token.
func registerUser(t *testing.T, srv *server, user, secret string) (*mockConn, string) {
    t.Helper()

    mc := startConn(t, srv)
    mc.TestSend(CmdRegister + " " + user + " " + secret)
    expectLine(t, mc, LineAuthOk)
    token := expectPrefix(t, mc, LineTokenPrefix)

    return mc, token
}

// TestHandlerRegisterAndChat walk the happy path: register, join a room
// and exchange a broadcast with another member.
func TestHandlerRegisterAndChat(t *testing.T) {
    srv := newTestServer(t, nil)
    defer srv.Close()

    alice, _ := registerUser(t, srv, "alice", "secret")

    alice.TestSend("general")
    expectLine(t, alice, "[alice enters the room]")
    expectLine(t, alice, LineJoinedPrefix+"general")

    bob, _ := registerUser(t, srv, "bob", "hunter2")
    bob.TestSend("general")
    expectLine(t, alice, "[bob enters the room]")
    expectLine(t, bob, "[bob enters the room]")
    expectLine(t, bob, LineJoinedPrefix+"general")

    alice.TestSend("hi")
    expectLine(t, alice, "alice: hi")
    expectLine(t, bob, "alice: hi")
}

// TestHandlerAuthFlow check the credential error replies: a failed match
// keeps the connection in the authenticating state, and the prompt
// repeats until a command succeeds.
func TestHandlerAuthFlow(t *testing.T) {
    srv := newTestServer(t, nil)
    defer srv.Close()

    // Register and log out, so the credential exists without a live
    // session.
    mc, _ := registerUser(t, srv, "alice", "secret")
    mc.TestSend(CmdLogout)
    expectLine(t, mc, LineLogoutOk)

    mc = startConn(t, srv)

    mc.TestSend("AUTH alice wrong")
    expectLine(t, mc, LineAuthFail)
    expectLine(t, mc, LineAuthPrompt)

    mc.TestSend("REGISTER alice other")
    expectLine(t, mc, LineExists)
    expectLine(t, mc, LineAuthPrompt)

    mc.TestSend("AUTH alice secret")
    expectLine(t, mc, LineAuthOk)
    expectPrefix(t, mc, LineTokenPrefix)
}

// TestHandlerAlreadyLoggedIn check that a second successful credential
// match for a user with a live session is rejected, not merged.
func TestHandlerAlreadyLoggedIn(t *testing.T) {
    srv := newTestServer(t, nil)
    defer srv.Close()

    registerUser(t, srv, "alice", "secret")

    mc := startConn(t, srv)
    mc.TestSend("AUTH alice secret")
    expectLine(t, mc, LineAlreadyLoggedIn)
    expectLine(t, mc, LineAuthPrompt)
}

// TestHandlerInvalidCommand check the replies to lines that can't be
// parsed while authenticating.
func TestHandlerInvalidCommand(t *testing.T) {
    srv := newTestServer(t, nil)
    defer srv.Close()

    mc := startConn(t, srv)

    mc.TestSend("FROB one two")
    expectLine(t, mc, LineInvalidCommand)
    expectLine(t, mc, LineAuthPrompt)

    mc.TestSend("AUTH alice")
    expectLine(t, mc, LineInvalidCommand)
    expectLine(t, mc, LineAuthPrompt)

    // A TOKEN line without an argument fails as a resume attempt.
    mc.TestSend("TOKEN")
    expectLine(t, mc, LineInvalidToken)
    expectLine(t, mc, LineAuthPrompt)
}

// TestHandlerList check the LIST response in the lobby: each known room
// name on its own line, then a single blank terminator line.
func TestHandlerList(t *testing.T) {
    srv := newTestServer(t, nil)
    defer srv.Close()

    srv.rooms.GetOrCreate("general")
    srv.rooms.GetOrCreate("AI_help")

    mc, _ := registerUser(t, srv, "alice", "secret")

    mc.TestSend(CmdList)
    expectLine(t, mc, "general")
    expectLine(t, mc, "AI_help")
    expectLine(t, mc, "")
}

// TestHandlerListInRoom check that LIST is deliberately inert while in a
// room: no reply, and the connection keeps relaying messages.
func TestHandlerListInRoom(t *testing.T) {
    srv := newTestServer(t, nil)
    defer srv.Close()

    mc, _ := registerUser(t, srv, "alice", "secret")
    mc.TestSend("general")
    expectLine(t, mc, "[alice enters the room]")
    expectLine(t, mc, LineJoinedPrefix+"general")

    mc.TestSend(CmdList)
    expectSilence(t, mc)

    mc.TestSend("still here")
    expectLine(t, mc, "alice: still here")
}

// TestHandlerExit check that EXIT detaches from the room, with no reply
// beyond the room's own broadcast, and returns the connection to the
// lobby.
func TestHandlerExit(t *testing.T) {
    srv := newTestServer(t, nil)
    defer srv.Close()

    alice, _ := registerUser(t, srv, "alice", "secret")
    alice.TestSend("general")
    expectLine(t, alice, "[alice enters the room]")
    expectLine(t, alice, LineJoinedPrefix+"general")

    bob, _ := registerUser(t, srv, "bob", "hunter2")
    bob.TestSend("general")
    expectLine(t, alice, "[bob enters the room]")
    expectLine(t, bob, "[bob enters the room]")
    expectLine(t, bob, LineJoinedPrefix+"general")

    alice.TestSend(CmdExit)
    expectLine(t, bob, "[alice leaves the room]")
    expectSilence(t, alice)

    // Back in the lobby: LIST responds again.
    alice.TestSend(CmdList)
    expectLine(t, alice, "general")
    expectLine(t, alice, "")
}

// TestHandlerLogoutInRoom check that an in-room LOGOUT detaches from the
// room, evicts the session and acknowledges, leaving the token unusable.
func TestHandlerLogoutInRoom(t *testing.T) {
    srv := newTestServer(t, nil)
    defer srv.Close()

    mc, token := registerUser(t, srv, "alice", "secret")
    mc.TestSend("general")
    expectLine(t, mc, "[alice enters the room]")
    expectLine(t, mc, LineJoinedPrefix+"general")

    mc.TestSend(CmdLogout)
    expectLine(t, mc, LineLogoutOk)

    resumed := startConn(t, srv)
    resumed.TestSend(LineTokenPrefix + token)
    expectLine(t, resumed, LineInvalidToken)
}

// TestHandlerReconnect check the resume contract: after an unclean
// disconnect, replaying the token on a fresh connection re-binds the
// session and the server re-joins the recorded room on its own, without
// the client re-sending the room selection.
func TestHandlerReconnect(t *testing.T) {
    srv := newTestServer(t, nil)
    defer srv.Close()

    alice, token := registerUser(t, srv, "alice", "secret")
    alice.TestSend("general")
    expectLine(t, alice, "[alice enters the room]")
    expectLine(t, alice, LineJoinedPrefix+"general")

    bob, _ := registerUser(t, srv, "bob", "hunter2")
    bob.TestSend("general")
    expectLine(t, bob, "[bob enters the room]")
    expectLine(t, bob, LineJoinedPrefix+"general")
    expectLine(t, alice, "[bob enters the room]")

    // Drop alice's transport without a LOGOUT.
    alice.Close()
    expectLine(t, bob, "[alice leaves the room]")

    resumed := startConn(t, srv)
    resumed.TestSend(LineTokenPrefix + token)
    expectLine(t, resumed, LineReconnectOk)
    expectLine(t, resumed, "[alice enters the room]")
    expectLine(t, resumed, LineJoinedPrefix+"general")
    expectLine(t, bob, "[alice enters the room]")

    // The resumed connection relays messages again.
    resumed.TestSend("back")
    expectLine(t, resumed, "alice: back")
    expectLine(t, bob, "alice: back")
}

// TestHandlerExpiredToken check that resuming after the deadline fails
// with INVALID_TOKEN and that a fresh authentication then succeeds.
func TestHandlerExpiredToken(t *testing.T) {
    const ttl = time.Millisecond * 20

    conf := GetDefaultServerConf()
    conf.SessionTTL = ttl
    srv := NewServerConf(conf, newTestStore(t)).(*server)
    defer srv.Close()

    mc, token := registerUser(t, srv, "alice", "secret")
    mc.Close()

    time.Sleep(ttl + ttl/2)

    resumed := startConn(t, srv)
    resumed.TestSend(LineTokenPrefix + token)
    expectLine(t, resumed, LineInvalidToken)
    expectLine(t, resumed, LineAuthPrompt)

    resumed.TestSend("AUTH alice secret")
    expectLine(t, resumed, LineAuthOk)
    expectPrefix(t, resumed, LineTokenPrefix)
}
