package main

import (
    "context"
    "crypto/tls"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    gochat "github.com/SirGFM/go-chat-rooms"
    "github.com/SirGFM/go-chat-rooms/ollama"
    line_conn "github.com/SirGFM/go-chat-rooms/line-conn"
    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
    "github.com/spf13/cobra"
)

var rootCmd = &cobra.Command {
    Use: "chat-server",
    Short: "Multi-room chat server with resumable sessions",
    RunE: run,
    SilenceUsage: true,
}

var args Args
var confFile string

func init() {
    flags := rootCmd.Flags()
    registerFlags(flags, &args)
    flags.StringVar(&confFile, "conf", "", "JSON file with the configuration options, overridden by other CLI arguments")
}

func main() {
    log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

    if err := rootCmd.Execute(); err != nil {
        log.Fatal().Err(err).Msg("chat-server exited")
    }
}

func run(cmd *cobra.Command, _ []string) error {
    if confFile != "" {
        if err := loadConfFile(confFile, cmd.Flags(), &args); err != nil {
            return err
        }
    }

    zerolog.SetGlobalLevel(zerolog.InfoLevel)
    if args.Verbose {
        zerolog.SetGlobalLevel(zerolog.DebugLevel)
    }

    if args.CertFile == "" || args.KeyFile == "" {
        return fmt.Errorf("both --cert and --key are required, chat connections are TLS only")
    }
    cert, err := tls.LoadX509KeyPair(args.CertFile, args.KeyFile)
    if err != nil {
        return fmt.Errorf("couldn't load the TLS key pair: %w", err)
    }

    users, err := gochat.OpenUserStore(args.UsersFile)
    if err != nil {
        return fmt.Errorf("couldn't open the user store: %w", err)
    }

    conf := gochat.GetDefaultServerConf()
    conf.Logger = log.Logger
    if !args.DisableBot {
        conf.Responder = ollama.New(args.OllamaURL, args.OllamaModel)
    }
    srv := gochat.NewServerConf(conf, users)
    defer srv.Close()

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    ln, err := tls.Listen("tcp", args.Addr, &tls.Config{Certificates: []tls.Certificate{cert}})
    if err != nil {
        return fmt.Errorf("couldn't listen on %s: %w", args.Addr, err)
    }
    log.Info().Str("addr", args.Addr).Msg("accepting TLS chat connections")

    go func() {
        for {
            conn, err := ln.Accept()
            if err != nil {
                if ctx.Err() == nil {
                    log.Error().Err(err).Msg("accept failed")
                }
                return
            }

            go srv.Handle(line_conn.New(conn))
        }
    } ()

    var httpSrv *http.Server
    if args.HTTPAddr != "" {
        httpSrv = &http.Server {
            Addr: args.HTTPAddr,
            Handler: newRouter(srv, args),
            ReadHeaderTimeout: 5 * time.Second,
        }
        log.Info().Str("addr", args.HTTPAddr).Msg("accepting websocket chat connections")

        go func() {
            err := httpSrv.ListenAndServe()
            if err != nil && err != http.ErrServerClosed {
                log.Error().Err(err).Msg("http server stopped")
            }
        } ()
    }

    <-ctx.Done()
    log.Info().Msg("shutting down")

    ln.Close()
    if httpSrv != nil {
        sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
        defer cancel()
        if err := httpSrv.Shutdown(sctx); err != nil {
            log.Warn().Err(err).Msg("http server shutdown error")
        }
    }

    return nil
}
