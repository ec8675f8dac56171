package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"ontrack-driver/internal/events"
	"ontrack-driver/internal/logx"
)

func TestSocket_PublishesNotificationsAndConnectivity(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"order_id":"o1","message":"updated"}`))
		// keep the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	bus := events.NewBus()
	online := make(chan bool, 4)
	notes := make(chan events.OrderNotification, 4)
	bus.SubscribeConnectivityChanged(func(e events.ConnectivityChanged) { online <- e.Online })
	bus.SubscribeOrderNotification(func(e events.OrderNotification) { notes <- e })

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	s := NewSocket(wsURL, "tok", bus, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	select {
	case got := <-online:
		if !got {
			t.Fatalf("first connectivity event was offline")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no connectivity event")
	}

	select {
	case n := <-notes:
		if n.OrderID != "o1" || n.Message != "updated" {
			t.Fatalf("unexpected notification: %#v", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no notification")
	}
}

func TestSocket_NilURLIsNoop(t *testing.T) {
	t.Parallel()

	s := NewSocket("", "tok", events.NewBus(), logx.Nop())
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}
