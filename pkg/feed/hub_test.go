// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package feed

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	return conn
}

// waitClients polls until the hub has registered n clients
func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Len() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Len() = %d, want %d", h.Len(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if mt != websocket.BinaryMessage {
		t.Errorf("message type = %d, want binary", mt)
	}
	return msg
}

func TestHub_SendsLatestOnConnect(t *testing.T) {
	h := NewHub(func() []byte { return []byte{0x82, 0x18, 0x30} }, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	if msg := readMessage(t, conn); !bytes.Equal(msg, []byte{0x82, 0x18, 0x30}) {
		t.Errorf("first message = %x", msg)
	}
}

func TestHub_Broadcast(t *testing.T) {
	h := NewHub(nil, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	a := dial(t, srv)
	defer a.Close()
	b := dial(t, srv)
	defer b.Close()
	waitClients(t, h, 2)

	h.Broadcast([]byte("snapshot"))

	for _, conn := range []*websocket.Conn{a, b} {
		if msg := readMessage(t, conn); string(msg) != "snapshot" {
			t.Errorf("message = %q", msg)
		}
	}
}

func TestHub_ClientDisconnect(t *testing.T) {
	h := NewHub(nil, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv)
	waitClients(t, h, 1)

	conn.Close()
	waitClients(t, h, 0)
}

func TestHub_Close(t *testing.T) {
	h := NewHub(nil, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	waitClients(t, h, 1)

	h.Close()
	if h.Len() != 0 {
		t.Errorf("Len() after Close = %d", h.Len())
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected read error after Close")
	}
}
