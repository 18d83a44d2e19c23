package rippled

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"
)

func TestStreamDeliversTransactions(t *testing.T) {
	subscribed := make(chan []string, 1)

	server := httptest.NewServer(websocket.Handler(func(conn *websocket.Conn) {
		var cmd subscribeCommand
		if err := websocket.JSON.Receive(conn, &cmd); err != nil {
			t.Errorf("receiving subscribe: %v", err)
			return
		}
		subscribed <- cmd.Accounts

		websocket.Message.Send(conn, `{"id":1,"type":"response","status":"success","result":{}}`)
		websocket.Message.Send(conn, `{"type":"ledgerClosed","ledger_index":41}`)
		websocket.Message.Send(conn, `not json`)
		websocket.Message.Send(conn, `{"type":"transaction","engine_result":"tesSUCCESS","ledger_index":42,"validated":true,
			"transaction":{"TransactionType":"TrustSet","Account":"rPEER1","hash":"HT"},
			"meta":{"TransactionResult":"tesSUCCESS","TransactionIndex":5,"AffectedNodes":[]}}`)

		// Hold the connection until the client goes away.
		var discard string
		websocket.Message.Receive(conn, &discard)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	stream := NewStream(wsURL, server.URL, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan TxEntry, 1)
	errc := make(chan error, 1)
	go func() {
		errc <- stream.Subscribe(ctx, "rACC1", func(e TxEntry) { got <- e })
	}()

	select {
	case accounts := <-subscribed:
		if len(accounts) != 1 || accounts[0] != "rACC1" {
			t.Errorf("subscribed accounts = %v, want [rACC1]", accounts)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for subscribe command")
	}

	select {
	case e := <-got:
		if e.Tx.Hash != "HT" {
			t.Errorf("hash = %q, want HT", e.Tx.Hash)
		}
		if e.Tx.Ledger() != 42 {
			t.Errorf("ledger = %d, want 42 (copied from message)", e.Tx.Ledger())
		}
		if e.Meta.TransactionIndex != 5 || !e.Validated {
			t.Errorf("entry = %+v", e)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for transaction")
	}

	cancel()
	select {
	case err := <-errc:
		if err == nil {
			t.Error("Subscribe returned nil, want context error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Subscribe did not return after cancellation")
	}
}

func TestStreamReturnsOnCancelledContextWhileDialFails(t *testing.T) {
	stream := NewStream("ws://127.0.0.1:1/", "", 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := stream.Subscribe(ctx, "rACC1", func(TxEntry) {}); err == nil {
		t.Fatal("expected context error")
	}
}
