package go_chat_rooms

// Error type for this package.
type ChatError uint

const (
    // Invalid token. Either the token doesn't exist or its session has
    // already expired.
    InvalidToken ChatError = iota
    // The supplied username/secret pair didn't match a stored credential.
    InvalidCredentials
    // The username has already been registered.
    UserExists
    // The user already has a live session on the server.
    AlreadyLoggedIn
    // The received line couldn't be parsed as a protocol command.
    InvalidCommand
    // The remote endpoint closed the connection.
    ConnEOF
    // The client isn't currently connected to the server.
    NotConnected
    // A test waited too long for a message.
    TestTimeout
)

func (c ChatError) Error() string {
    switch c {
    case InvalidToken:
        return "Invalid token"
    case InvalidCredentials:
        return "Invalid username or secret"
    case UserExists:
        return "Username already registered"
    case AlreadyLoggedIn:
        return "User already has a live session"
    case InvalidCommand:
        return "Invalid command"
    case ConnEOF:
        return "Connection closed by the remote endpoint"
    case NotConnected:
        return "Not connected to the server"
    case TestTimeout:
        return "Test timed out"
    default:
        return "Unknown error"
    }
}
