package transport_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/graphtalk/cypher-web-ui/internal/transport"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestRunDeliversFramesInOrder(t *testing.T) {
	frames := []string{
		`{"type":"debug","detail":"connected"}`,
		`{"type":"start"}`,
		`{"type":"stream","output":"a"}`,
		`{"type":"stream","output":"b"}`,
		`{"type":"end","generated_cypher":"Q"}`,
	}

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// Keep the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	received := make(chan string, len(frames))
	client := transport.NewClient(wsURL(srv), discardLogger())
	client.OnFrame(func(data []byte) {
		received <- string(data)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	for i, want := range frames {
		select {
		case got := <-received:
			if got != want {
				t.Fatalf("frame %d = %q, want %q", i, got, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for frame %d", i)
		}
	}
}

func TestSendBeforeConnect(t *testing.T) {
	client := transport.NewClient("ws://localhost:0", discardLogger())

	err := client.Send(map[string]string{"type": "question"})
	if !errors.Is(err, transport.ErrNotConnected) {
		t.Errorf("Send() error = %v, want ErrNotConnected", err)
	}
}

func TestSendReachesServer(t *testing.T) {
	upgrader := websocket.Upgrader{}
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		got <- string(data)
	}))
	defer srv.Close()

	connected := make(chan struct{})
	client := transport.NewClient(wsURL(srv), discardLogger())
	client.OnStatus(func(up bool) {
		if up {
			select {
			case <-connected:
			default:
				close(connected)
			}
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	select {
	case <-connected:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for connection")
	}

	if err := client.Send(map[string]string{"type": "question", "question": "q"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case data := <-got:
		if !strings.Contains(data, `"question":"q"`) {
			t.Errorf("server received %q, want question payload", data)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for server to receive frame")
	}
}

func TestRunReconnectsAfterDrop(t *testing.T) {
	upgrader := websocket.Upgrader{}
	dials := make(chan struct{}, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		dials <- struct{}{}
		// Drop the connection immediately to force a redial.
		conn.Close()
	}))
	defer srv.Close()

	client := transport.NewClient(wsURL(srv), discardLogger())
	client.OnFrame(func([]byte) {})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	for i := 0; i < 2; i++ {
		select {
		case <-dials:
		case <-time.After(10 * time.Second):
			t.Fatalf("timed out waiting for dial %d", i+1)
		}
	}
}
