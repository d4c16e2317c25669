package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matheus3301/wachat/internal/message"
)

func TestFetchAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/messages" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID")
		}
		_, _ = io.WriteString(w, `[{"id":"m1","wa_id":"A","message":"hi","timestamp":1000}, "junk", {"wa_id":"B","message":"yo"}]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", nil, nil)
	recs, err := c.FetchAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0].ID != "m1" || recs[1].WaID != "B" {
		t.Errorf("recs = %+v", recs)
	}
}

func TestFetchAllHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "db down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil, nil).FetchAll(context.Background())
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("err = %v, want *HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusServiceUnavailable || httpErr.Body != "db down" {
		t.Errorf("HTTPError = %+v", httpErr)
	}
}

func TestCreateMessageSendsRecord(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	rec := message.Record{ID: "B-1-hello", WaID: "B", To: "B", From: "P", Message: "hello", Type: "text", Timestamp: int64(1), Status: "sent"}
	if err := NewClient(srv.URL, nil, nil).CreateMessage(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	if got["id"] != "B-1-hello" || got["message"] != "hello" || got["timestamp"] != float64(1) {
		t.Errorf("posted body = %v", got)
	}
}

func TestDeleteMessageEscapesID(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.EscapedPath()
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL, nil, nil).DeleteMessage(context.Background(), "A-1000-a/b c"); err != nil {
		t.Fatal(err)
	}
	if path != "/api/messages/A-1000-a%2Fb%20c" {
		t.Errorf("path = %q", path)
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewClient(url, nil, nil).DeleteMessage(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error against closed server")
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		t.Error("network failure reported as HTTPError")
	}
}
