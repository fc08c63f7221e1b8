package go_chat_rooms

// Wire protocol lines, shared between the server's handler and the
// reconnecting client. Every line is newline-terminated UTF-8 text over a
// confidential, ordered transport.

const (
    // LineWelcome is the first line sent on every new connection.
    LineWelcome = "Welcome to ChatServer."

    // LineAuthPrompt is the second greeting line, repeated before every
    // read while the connection is unauthenticated.
    LineAuthPrompt = "AUTH <user> <pw>  or  REGISTER <user> <pw>  or  TOKEN <token>"

    // LineAuthOk acknowledge a successful authentication. It's always
    // followed by a `LineTokenPrefix` line carrying the session token.
    LineAuthOk = "AUTH_OK"

    // LineAuthFail report that the credential pair didn't match.
    LineAuthFail = "AUTH_FAIL"

    // LineExists report a username collision on registration.
    LineExists = "EXISTS"

    // LineAlreadyLoggedIn report that the user already has a live session.
    LineAlreadyLoggedIn = "ALREADY_LOGGED_IN"

    // LineInvalidToken report that a resume token is absent or expired.
    LineInvalidToken = "INVALID_TOKEN"

    // LineInvalidCommand report a line that couldn't be parsed.
    LineInvalidCommand = "INVALID_COMMAND"

    // LineReconnectOk acknowledge a successful session resume.
    LineReconnectOk = "RECONNECT_OK"

    // LineLogoutOk acknowledge an explicit logout.
    LineLogoutOk = "LOGOUT_OK"

    // LineTokenPrefix prefixes the session token sent after `LineAuthOk`.
    // The same verb is sent by clients to resume a session.
    LineTokenPrefix = "TOKEN "

    // LineJoinedPrefix prefixes the room-entry acknowledgement.
    LineJoinedPrefix = "JOINED "
)

// Client-issued command verbs.
const (
    CmdAuth = "AUTH"
    CmdRegister = "REGISTER"
    CmdToken = "TOKEN"
    CmdList = "LIST"
    CmdLogout = "LOGOUT"
    CmdExit = "EXIT"
)
