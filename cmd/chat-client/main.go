package main

import (
    "bufio"
    "context"
    "crypto/tls"
    "fmt"
    "os"
    "strings"
    "time"

    gochat "github.com/SirGFM/go-chat-rooms"
    "github.com/SirGFM/go-chat-rooms/client"
    gochat_cws "github.com/SirGFM/go-chat-rooms/gobwas-ws-conn"
    line_conn "github.com/SirGFM/go-chat-rooms/line-conn"
    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
    "github.com/spf13/cobra"
)

var rootCmd = &cobra.Command {
    Use: "chat-client",
    Short: "Terminal client for the chat server",
    RunE: run,
    SilenceUsage: true,
}

var (
    flagAddr string
    flagWsURL string
    flagInsecure bool
    flagSessionFile string
    flagVerbose bool
)

func init() {
    flags := rootCmd.Flags()
    flags.StringVar(&flagAddr, "addr", "localhost:6667", "host:port of the server's TLS chat listener")
    flags.StringVar(&flagWsURL, "ws", "", "websocket URL of the server (e.g. wss://host:8888/ws); takes precedence over --addr")
    flags.BoolVar(&flagInsecure, "insecure", false, "skip TLS certificate verification (self-signed servers)")
    flags.StringVar(&flagSessionFile, "session", "session.dat", "file where the session is persisted for reconnection")
    flags.BoolVar(&flagVerbose, "verbose", false, "enable debug logging")
}

func main() {
    log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

    if err := rootCmd.Execute(); err != nil {
        log.Fatal().Err(err).Msg("chat-client exited")
    }
}

// newDialer for either transport, from the CLI arguments.
func newDialer() client.Dialer {
    tlsConf := &tls.Config{InsecureSkipVerify: flagInsecure}

    if flagWsURL != "" {
        return func() (gochat.Conn, error) {
            ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
            defer cancel()
            return gochat_cws.Dial(ctx, flagWsURL, tlsConf)
        }
    }

    return func() (gochat.Conn, error) {
        conn, err := tls.Dial("tcp", flagAddr, tlsConf)
        if err != nil {
            return nil, err
        }
        return line_conn.New(conn), nil
    }
}

const usage = `commands:
    /login <user> <secret>     authenticate an existing user
    /register <user> <secret>  create a new user and log in
    /join <room>               enter (or create) a room; "AI_" rooms host a bot
    /list                      list the known rooms
    /exit                      leave the current room
    /logout                    end the session for good
    /drop                      kill the connection (to exercise reconnection)
    /quit                      leave the program, keeping the session resumable
anything else is sent as a chat message (or a room name while in the lobby)`

func run(cmd *cobra.Command, _ []string) error {
    zerolog.SetGlobalLevel(zerolog.InfoLevel)
    if flagVerbose {
        zerolog.SetGlobalLevel(zerolog.DebugLevel)
    }

    c := client.New(client.Conf {
        Dial: newDialer(),
        StateFile: flagSessionFile,
        OnLine: func(line string) {
            fmt.Println(line)
        },
        OnReconnect: func(room string) {
            if room != "" {
                log.Info().Str("room", room).Msg("reconnected, back in the room")
            } else {
                log.Info().Msg("reconnected")
            }
        },
        OnSessionExpired: func() {
            log.Warn().Msg("session expired: log in again with /login or /register")
        },
        Logger: log.Logger,
    })
    defer c.Close()

    if c.Token() != "" {
        log.Info().Msg("resuming the previous session")
        go func() {
            if err := c.Resume(); err == gochat.InvalidToken {
                /* Already reported through OnSessionExpired */
            }
        } ()
    } else {
        fmt.Println(usage)
    }

    scanner := bufio.NewScanner(os.Stdin)
    for scanner.Scan() {
        line := strings.TrimSpace(scanner.Text())
        if line == "" {
            continue
        }

        var err error
        verb, arg, _ := strings.Cut(line, " ")
        switch verb {
        case "/login", "/register":
            user, secret, ok := strings.Cut(strings.TrimSpace(arg), " ")
            if !ok {
                fmt.Printf("usage: %s <user> <secret>\n", verb)
                continue
            }
            if verb == "/login" {
                err = c.Login(user, secret)
            } else {
                err = c.Register(user, secret)
            }
            if err == nil {
                log.Info().Str("user", user).Msg("logged in")
            }
        case "/join":
            if arg == "" {
                fmt.Println("usage: /join <room>")
                continue
            }
            err = c.Join(strings.TrimSpace(arg))
        case "/list":
            err = c.List()
        case "/exit":
            err = c.Exit()
        case "/logout":
            err = c.Logout()
        case "/drop":
            c.Drop()
            log.Info().Msg("dropped the connection")
        case "/help":
            fmt.Println(usage)
        case "/quit":
            return nil
        default:
            if c.Room() == "" && c.Token() != "" {
                err = c.Join(line)
            } else {
                err = c.Say(line)
            }
        }

        if err != nil {
            log.Error().Err(err).Msg("command failed")
        }
    }

    return scanner.Err()
}
