package rippled

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/net/websocket"
)

const maxReconnectDelay = time.Minute

// Stream subscribes to account transaction notifications over a websocket.
type Stream struct {
	wsURL     string
	origin    string
	baseDelay time.Duration
}

// NewStream creates a websocket stream client. baseDelay is the first
// reconnect delay; it doubles per consecutive failure up to one minute.
func NewStream(wsURL, origin string, baseDelay time.Duration) *Stream {
	if origin == "" {
		origin = "http://localhost/"
	}
	return &Stream{wsURL: wsURL, origin: origin, baseDelay: baseDelay}
}

type subscribeCommand struct {
	ID       int      `json:"id"`
	Command  string   `json:"command"`
	Accounts []string `json:"accounts"`
}

type streamMessage struct {
	Type         string      `json:"type"`
	Status       string      `json:"status"`
	Error        string      `json:"error"`
	EngineResult string      `json:"engine_result"`
	LedgerIndex  uint32      `json:"ledger_index"`
	Validated    bool        `json:"validated"`
	Transaction  Transaction `json:"transaction"`
	Meta         Meta        `json:"meta"`
}

// Subscribe delivers every transaction touching account to handle until ctx
// is cancelled, reconnecting after connection failures. It always returns a
// non-nil error: ctx.Err() on cancellation.
func (s *Stream) Subscribe(ctx context.Context, account string, handle func(TxEntry)) error {
	delay := s.baseDelay
	for {
		subscribed, err := s.run(ctx, account, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if subscribed {
			delay = s.baseDelay
		}
		slog.Warn("stream: connection lost, reconnecting", "account", account, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, maxReconnectDelay)
	}
}

// run holds one connection. subscribed reports whether the server
// acknowledged the subscription before the connection ended.
func (s *Stream) run(ctx context.Context, account string, handle func(TxEntry)) (subscribed bool, err error) {
	conn, err := websocket.Dial(s.wsURL, "", s.origin)
	if err != nil {
		return false, fmt.Errorf("dialing %s: %w", s.wsURL, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	cmd := subscribeCommand{ID: 1, Command: "subscribe", Accounts: []string{account}}
	if err := websocket.JSON.Send(conn, cmd); err != nil {
		return false, fmt.Errorf("sending subscribe: %w", err)
	}

	for {
		var frame []byte
		if err := websocket.Message.Receive(conn, &frame); err != nil {
			return subscribed, fmt.Errorf("receiving: %w", err)
		}

		var msg streamMessage
		if err := json.Unmarshal(frame, &msg); err != nil {
			slog.Warn("stream: skipping undecodable message", "account", account, "error", err)
			continue
		}

		switch msg.Type {
		case "response":
			if msg.Status != "success" {
				return false, errors.New("subscribe rejected: " + msg.Error)
			}
			subscribed = true
			slog.Info("stream: subscribed", "account", account)
		case "transaction":
			tx := msg.Transaction
			if tx.LedgerIndex == 0 {
				tx.LedgerIndex = msg.LedgerIndex
			}
			handle(TxEntry{Tx: tx, Meta: msg.Meta, Validated: msg.Validated})
		}
	}
}

// Remote is the full network collaborator: RPC requests plus the stream.
type Remote struct {
	*Client
	*Stream
}

// NewRemote combines a client and a stream.
func NewRemote(client *Client, stream *Stream) *Remote {
	return &Remote{Client: client, Stream: stream}
}
