package mcp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tmaxmax/go-sse"

	"github.com/jpowersdev/gomcp"
)

type sseTestServer struct {
	url      string
	sessions *mcp.SessionStore
	broker   *mcp.Broker
}

func newSSETestServer(t *testing.T) sseTestServer {
	t.Helper()

	mux := http.NewServeMux()
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	sessions := mcp.NewSessionStore()
	adapter := mcp.NewProtocolAdapter(
		mcp.Info{Name: "test-server", Version: "1.0.0"},
		sessions,
		mcp.WithToolServer(&mockToolServer{}),
	)
	broker := mcp.NewBroker(sessions, adapter, ts.URL+"/messages")
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = broker.Shutdown(ctx)
	})

	srv := mcp.NewSSEServer(sessions, broker)
	mux.Handle("/sse", srv.HandleSSE())
	mux.Handle("/messages", srv.HandleMessage())

	return sseTestServer{url: ts.URL, sessions: sessions, broker: broker}
}

// connect opens the SSE stream and returns a channel of parsed events.
func (s sseTestServer) connect(t *testing.T, ctx context.Context) <-chan sse.Event {
	t.Helper()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url+"/sse", nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status code: %d", resp.StatusCode)
	}

	events := make(chan sse.Event, 16)
	go func() {
		defer close(events)
		for ev, err := range sse.Read(resp.Body, nil) {
			if err != nil {
				return
			}
			events <- ev
		}
	}()
	return events
}

func nextSSEEvent(t *testing.T, events <-chan sse.Event) sse.Event {
	t.Helper()

	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("SSE stream closed unexpectedly")
		}
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for SSE event")
	}
	return sse.Event{}
}

func TestSSEServerEndToEnd(t *testing.T) {
	srv := newSSETestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := srv.connect(t, ctx)

	greeting := nextSSEEvent(t, events)
	if greeting.Type != "endpoint" {
		t.Fatalf("first event type = %s, want endpoint", greeting.Type)
	}
	if !strings.Contains(greeting.Data, "sessionId=") {
		t.Fatalf("endpoint data missing sessionId: %s", greeting.Data)
	}

	body, err := json.Marshal(request("1", mcp.MethodInitialize, nil))
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	resp, err := http.Post(greeting.Data, "application/json", strings.NewReader(string(body)))
	if err != nil {
		t.Fatalf("failed to post message: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status code = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	ev := nextSSEEvent(t, events)
	if ev.Type != "message" {
		t.Fatalf("event type = %s, want message", ev.Type)
	}

	var reply mcp.JSONRPCMessage
	if err := json.Unmarshal([]byte(ev.Data), &reply); err != nil {
		t.Fatalf("failed to unmarshal reply: %v", err)
	}
	if reply.ID != mcp.MustString("1") {
		t.Errorf("reply ID = %s, want 1", reply.ID)
	}
	if !strings.Contains(string(reply.Result), "protocolVersion") {
		t.Errorf("initialize result missing protocolVersion: %s", reply.Result)
	}
}

func TestSSEHandleMessageNegativeCases(t *testing.T) {
	srv := newSSETestServer(t)

	sess := srv.sessions.Initialize()

	tests := []struct {
		name       string
		url        string
		body       string
		wantStatus int
	}{
		{
			name:       "missing session id",
			url:        srv.url + "/messages",
			body:       `{"jsonrpc":"2.0","id":"1","method":"ping"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown session",
			url:        srv.url + "/messages?sessionId=no-such-session",
			body:       `{"jsonrpc":"2.0","id":"1","method":"ping"}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "malformed body",
			url:        fmt.Sprintf("%s/messages?sessionId=%s", srv.url, sess.ID),
			body:       `{not json`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(tt.url, "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("failed to post message: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status code = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestSSEEachConnectionGetsOwnSession(t *testing.T) {
	srv := newSSETestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := nextSSEEvent(t, srv.connect(t, ctx))
	second := nextSSEEvent(t, srv.connect(t, ctx))

	if first.Data == second.Data {
		t.Errorf("expected distinct session endpoints, both were %s", first.Data)
	}
}
