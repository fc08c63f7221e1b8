package main

import (
    "encoding/json"
    "fmt"
    "os"

    "github.com/spf13/pflag"
)

type Args struct {
    // Addr on which the server accepts TLS chat connections. Defaults to 0.0.0.0:6667
    Addr string
    // HTTPAddr on which the server accepts websocket chat connections (plus /metrics and /healthz). Empty disables the HTTP listener
    HTTPAddr string
    // CertFile with the PEM-encoded certificate for the TLS listener
    CertFile string
    // KeyFile with the PEM-encoded private key for the TLS listener
    KeyFile string
    // UsersFile where credentials are stored. Created on first use
    UsersFile string
    // OllamaURL of the response service backing bot rooms
    OllamaURL string
    // OllamaModel requested from the response service
    OllamaModel string
    // DisableBot rooms, so "AI_" rooms behave as regular ones
    DisableBot bool
    // ReadSize allocated for gorilla-ws's buffer when a new connection is accepted. Defaults to 1024
    ReadSize int
    // WriteSize allocated for gorilla-ws's buffer when a new connection is accepted. Defaults to 1024
    WriteSize int
    // IgnoreOrigin and accept websocket connections from any source (mostly for development)
    IgnoreOrigin bool
    // Verbose enables debug logging
    Verbose bool
}

// registerFlags for every argument, using `args` to hold the parsed
// values.
func registerFlags(flags *pflag.FlagSet, args *Args) {
    flags.StringVar(&args.Addr, "addr", "0.0.0.0:6667", "address on which the server accepts TLS chat connections")
    flags.StringVar(&args.HTTPAddr, "http-addr", "0.0.0.0:8888", "address for websocket connections, /metrics and /healthz (empty disables it)")
    flags.StringVar(&args.CertFile, "cert", "", "PEM-encoded certificate for the TLS listener")
    flags.StringVar(&args.KeyFile, "key", "", "PEM-encoded private key for the TLS listener")
    flags.StringVar(&args.UsersFile, "users", "users.dat", "file where credentials are stored")
    flags.StringVar(&args.OllamaURL, "ollama-url", "", "base URL of the response service backing bot rooms (empty for the default)")
    flags.StringVar(&args.OllamaModel, "ollama-model", "", "model requested from the response service (empty for the default)")
    flags.BoolVar(&args.DisableBot, "no-bot", false, "treat \"AI_\" rooms as regular rooms")
    flags.IntVar(&args.ReadSize, "read-size", 1024, "gorilla-ws read buffer size for accepted connections")
    flags.IntVar(&args.WriteSize, "write-size", 1024, "gorilla-ws write buffer size for accepted connections")
    flags.BoolVar(&args.IgnoreOrigin, "ignore-origin", true, "accept websocket connections from any source")
    flags.BoolVar(&args.Verbose, "verbose", false, "enable debug logging")
}

// loadConfFile layer the arguments from the JSON file `path` under the
// flags in `flags`: the file provides the defaults and any flag set on
// the command line overrides it.
func loadConfFile(path string, flags *pflag.FlagSet, args *Args) error {
    f, err := os.Open(path)
    if err != nil {
        return fmt.Errorf("couldn't open the configuration file: %w", err)
    }
    defer f.Close()

    var fileArgs Args

    dec := json.NewDecoder(f)
    if err := dec.Decode(&fileArgs); err != nil {
        return fmt.Errorf("couldn't decode the configuration file: %w", err)
    }

    // Walk over every CLI-set flag to override the JSON file.
    if flags.Changed("addr") {
        fileArgs.Addr = args.Addr
    }
    if flags.Changed("http-addr") {
        fileArgs.HTTPAddr = args.HTTPAddr
    }
    if flags.Changed("cert") {
        fileArgs.CertFile = args.CertFile
    }
    if flags.Changed("key") {
        fileArgs.KeyFile = args.KeyFile
    }
    if flags.Changed("users") {
        fileArgs.UsersFile = args.UsersFile
    }
    if flags.Changed("ollama-url") {
        fileArgs.OllamaURL = args.OllamaURL
    }
    if flags.Changed("ollama-model") {
        fileArgs.OllamaModel = args.OllamaModel
    }
    if flags.Changed("no-bot") {
        fileArgs.DisableBot = args.DisableBot
    }
    if flags.Changed("read-size") {
        fileArgs.ReadSize = args.ReadSize
    }
    if flags.Changed("write-size") {
        fileArgs.WriteSize = args.WriteSize
    }
    if flags.Changed("ignore-origin") {
        fileArgs.IgnoreOrigin = args.IgnoreOrigin
    }
    if flags.Changed("verbose") {
        fileArgs.Verbose = args.Verbose
    }

    *args = fileArgs

    return nil
}
