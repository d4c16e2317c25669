package push

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/matheus3301/wachat/internal/message"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  Event
	}{
		{
			"status update",
			`{"event":"status-update","data":{"id":"m1","status":"read"}}`,
			Event{Kind: KindStatusUpdate, ID: "m1", Status: message.StatusRead},
		},
		{
			"delete by oid",
			`{"event":"delete-message","data":{"_id":{"$oid":"65a"}}}`,
			Event{Kind: KindDeleteMessage, ID: "65a"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.frame))
			if err != nil {
				t.Fatal(err)
			}
			if got.Kind != tt.want.Kind || got.ID != tt.want.ID || got.Status != tt.want.Status {
				t.Errorf("Decode() = %+v, want %+v", got, tt.want)
			}
		})
	}

	evt, err := Decode([]byte(`{"event":"new-message","data":{"id":"m1","wa_id":"A","message":"hi","timestamp":1000}}`))
	if err != nil {
		t.Fatal(err)
	}
	if evt.Kind != KindNewMessage || evt.Record.ID != "m1" || evt.Record.Message != "hi" {
		t.Errorf("new-message = %+v", evt)
	}

	if _, err := Decode([]byte(`{"event":"typing","data":{}}`)); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("unknown event err = %v", err)
	}
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Error("expected error for garbage frame")
	}
}

type recorder struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 64)}
}

func (r *recorder) handle(evt Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
	r.notify <- struct{}{}
}

func (r *recorder) kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func (r *recorder) waitFor(t *testing.T, n int) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if len(r.kinds()) >= n {
			return
		}
		select {
		case <-r.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d events, got %v", n, r.kinds())
		}
	}
}

func TestClientDeliversAndReconnects(t *testing.T) {
	var mu sync.Mutex
	sessions := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		sessions++
		n := sessions
		mu.Unlock()

		ctx := r.Context()
		frame, _ := Encode(KindNewMessage, map[string]any{"id": "m1", "wa_id": "A", "message": "hi"})
		_ = conn.Write(ctx, websocket.MessageText, frame)
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"event":"typing","data":{}}`))
		frame, _ = Encode(KindStatusUpdate, map[string]any{"id": "m1", "status": "read"})
		_ = conn.Write(ctx, websocket.MessageText, frame)

		if n == 1 {
			// Drop the first session to force a reconnect.
			_ = conn.Close(websocket.StatusGoingAway, "restart")
			return
		}
		ctx = conn.CloseRead(ctx)
		<-ctx.Done()
	}))
	defer srv.Close()

	rec := newRecorder()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := New(url, rec.handle, nil, WithBackoff(10*time.Millisecond, 50*time.Millisecond), WithPingInterval(0))
	c.Start(context.Background())

	// connected, new-message, status-update, disconnected, connected
	rec.waitFor(t, 5)
	c.Stop()

	got := rec.kinds()
	want := []Kind{KindConnected, KindNewMessage, KindStatusUpdate, KindDisconnected, KindConnected}
	for i, k := range want {
		if got[i] != k {
			t.Fatalf("events = %v, want prefix %v", got, want)
		}
	}
	if last := got[len(got)-1]; last != KindDisconnected {
		t.Errorf("last event after Stop = %s, want disconnected", last)
	}
}

func TestClientStopWhileDialing(t *testing.T) {
	c := New("ws://127.0.0.1:1/unreachable", nil, nil, WithBackoff(time.Hour, time.Hour))
	c.Start(context.Background())
	done := make(chan struct{})
	go func() {
		c.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
}
