package network

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// dialTestServer runs serve against a real websocket peer and returns
// the client side wrapped in a WSConnection.
func dialTestServer(t *testing.T, serve func(*websocket.Conn)) *WSConnection {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewWSConnection(conn)
}

func echo(conn *websocket.Conn) {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := conn.WriteMessage(mt, data); err != nil {
			return
		}
	}
}

func TestFrameRoundTrip(t *testing.T) {
	c := dialTestServer(t, echo)

	payload := []byte(`{"score":42}`)
	if err := c.Send(MsgTypeUpdateGameState, payload); err != nil {
		t.Fatalf("send: %v", err)
	}

	packet, err := c.ReadPacket()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if packet.MsgID != MsgTypeUpdateGameState {
		t.Errorf("msgID = %d, want %d", packet.MsgID, MsgTypeUpdateGameState)
	}
	if packet.Length != uint16(len(payload)) || !bytes.Equal(packet.Data, payload) {
		t.Errorf("payload mangled: %q (len %d)", packet.Data, packet.Length)
	}
}

// A payload past what the 2-byte length header can describe must be
// refused outright, never framed with a wrapped header.
func TestSendRejectsOversizedPayload(t *testing.T) {
	c := dialTestServer(t, echo)

	if err := c.Send(MsgTypeUpdateGameState, make([]byte, maxPayloadSize+1)); err != ErrPayloadTooLarge {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}

	// The limit itself still goes through the framing check.
	if err := c.Send(MsgTypeUpdateGameState, make([]byte, maxPayloadSize)); err != nil {
		t.Fatalf("payload at the limit refused: %v", err)
	}
}

func TestHeartbeatDeadlineCutsSilentPeer(t *testing.T) {
	c := dialTestServer(t, func(conn *websocket.Conn) {
		// The peer reads but never writes.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c.SetHeartbeat(25 * time.Millisecond)
	if _, err := c.ReadPacket(); err == nil {
		t.Fatal("expected a deadline error from a silent peer")
	}
}
