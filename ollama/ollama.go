// Package ollama implements the Responder interface from
// https://github.com/SirGFM/go-chat-rooms against an Ollama chat
// endpoint.
//
// The conversation history is forwarded as-is to /api/chat and the
// returned assistant message becomes the room's reply. Reasoning models
// may wrap their chain of thought in <think> tags; those are stripped
// before the reply is broadcast.
package ollama

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "strings"
    "time"

    gochat "github.com/SirGFM/go-chat-rooms"
)

// DefaultBaseURL of a locally running Ollama server.
const DefaultBaseURL = "http://localhost:11434"

// DefaultModel requested when none is configured.
const DefaultModel = "llama3.2"

// defRequestTimeout bounds a single /api/chat call. Since the room blocks
// on the responder, a hung upstream would otherwise freeze the room for
// good.
const defRequestTimeout = time.Minute

// Client is a Responder backed by an Ollama server.
type Client struct {
    // baseURL of the Ollama server, without the trailing slash.
    baseURL string

    // model requested on every call.
    model string

    // hc used for every call.
    hc *http.Client
}

// chatRequest is the payload of a /api/chat call.
type chatRequest struct {
    Model string `json:"model"`
    Messages []gochat.Turn `json:"messages"`
    Stream bool `json:"stream"`
}

// chatResponse is the subset of the /api/chat reply that the client
// consumes.
type chatResponse struct {
    Message gochat.Turn `json:"message"`
}

// Respond forward `history` to the Ollama server and return the
// assistant's reply.
func (c *Client) Respond(ctx context.Context, history []gochat.Turn) (string, error) {
    payload, err := json.Marshal(chatRequest {
        Model: c.model,
        Messages: history,
        Stream: false,
    })
    if err != nil {
        return "", fmt.Errorf("encode chat request: %w", err)
    }

    req, err := http.NewRequestWithContext(ctx, http.MethodPost,
            c.baseURL+"/api/chat", bytes.NewReader(payload))
    if err != nil {
        return "", fmt.Errorf("build chat request: %w", err)
    }
    req.Header.Set("Content-Type", "application/json")

    resp, err := c.hc.Do(req)
    if err != nil {
        return "", fmt.Errorf("call chat endpoint: %w", err)
    }
    defer resp.Body.Close()

    if resp.StatusCode != http.StatusOK {
        return "", fmt.Errorf("chat endpoint replied with status %d", resp.StatusCode)
    }

    var decoded chatResponse
    if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
        return "", fmt.Errorf("decode chat response: %w", err)
    }

    reply := decoded.Message.Content
    reply = strings.ReplaceAll(reply, "<think>", "")
    reply = strings.ReplaceAll(reply, "</think>", "")
    reply = strings.TrimSpace(reply)

    if reply == "" {
        return "", fmt.Errorf("chat endpoint replied with an empty message")
    }

    return reply, nil
}

// New create a Client against the Ollama server at `baseURL`, requesting
// `model`. Either may be empty to use the default.
func New(baseURL, model string) *Client {
    if baseURL == "" {
        baseURL = DefaultBaseURL
    }
    if model == "" {
        model = DefaultModel
    }

    return &Client {
        baseURL: strings.TrimSuffix(baseURL, "/"),
        model: model,
        hc: &http.Client {
            Timeout: defRequestTimeout,
        },
    }
}
