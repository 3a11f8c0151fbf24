package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"trailgo/pkg/marker"
	"trailgo/pkg/sim"
)

func TestStreamHub_Broadcast(t *testing.T) {
	trails := NewTrailHandler(nil, nil)
	hub := NewStreamHub(trails)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleStream))
	defer srv.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	trails.Upload(testFrame("Earth", 10))
	trails.Upload(testFrame("Mars", 3)) // stale, pruned by EndFrame
	trails.UploadMarker(&marker.State{Name: "Earth", Kind: marker.KindDot, Time: 10})
	hub.EndFrame(sim.Status{Time: 10, State: sim.StateRunning})

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var got Batch
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("failed to decode batch: %v", err)
	}
	if got.Clock.Time != 10 {
		t.Errorf("clock time = %v, want 10", got.Clock.Time)
	}
	if len(got.Trails) != 1 || got.Trails[0].Name != "Earth" {
		t.Errorf("trails = %+v, want only Earth", got.Trails)
	}
	if len(got.Markers) != 1 {
		t.Errorf("markers = %+v, want 1", got.Markers)
	}
}

func TestStreamHub_Disconnect(t *testing.T) {
	hub := NewStreamHub(NewTrailHandler(nil, nil))
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleStream))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn.Close()

	deadline = time.Now().Add(time.Second)
	for hub.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client was not removed after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Frames without clients are a no-op.
	hub.EndFrame(sim.Status{Time: 1})
}

func TestStreamHub_SlowClientDoesNotBlock(t *testing.T) {
	hub := NewStreamHub(NewTrailHandler(nil, nil))
	c := &streamClient{id: "slow", send: make(chan []byte, streamSendBuffer)}
	hub.clients[c.id] = c

	done := make(chan struct{})
	go func() {
		for i := 0; i < streamSendBuffer*3; i++ {
			hub.EndFrame(sim.Status{Time: float64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("EndFrame blocked on a full client")
	}
	if len(c.send) != streamSendBuffer {
		t.Errorf("queued = %d, want %d", len(c.send), streamSendBuffer)
	}
}
