package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"ontrack-driver/internal/events"
	"ontrack-driver/internal/logx"
)

// Socket keeps a websocket open to the platform's push channel and
// publishes order notifications and connectivity changes. It reconnects
// with a capped backoff; each successful connect publishes online, each
// drop publishes offline.
type Socket struct {
	url    string
	bus    *events.Bus
	logger logx.Logger

	dial         func(ctx context.Context, url string) (*websocket.Conn, error)
	reconnectMin time.Duration
	reconnectMax time.Duration
}

// NewSocket wires a Socket for the given push endpoint.
func NewSocket(url, token string, bus *events.Bus, logger logx.Logger) *Socket {
	return &Socket{
		url:    url,
		bus:    bus,
		logger: logger,
		dial: func(ctx context.Context, url string) (*websocket.Conn, error) {
			var header http.Header
			if token != "" {
				header = http.Header{"Authorization": []string{"Bearer " + token}}
			}
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
			return conn, err
		},
		reconnectMin: time.Second,
		reconnectMax: 30 * time.Second,
	}
}

// Run connects and reads until the context is canceled.
func (s *Socket) Run(ctx context.Context) error {
	if s == nil || s.url == "" {
		return nil
	}

	delay := s.reconnectMin
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, err := s.dial(ctx, s.url)
		if err != nil {
			s.logger.Warn("socket dial failed", logx.Err(err))
			s.bus.PublishConnectivityChanged(events.ConnectivityChanged{Online: false})
			if !sleepCtx(ctx, delay) {
				return ctx.Err()
			}
			delay = min(delay*2, s.reconnectMax)
			continue
		}

		delay = s.reconnectMin
		s.bus.PublishConnectivityChanged(events.ConnectivityChanged{Online: true})
		s.logger.Info("socket connected", logx.String("url", s.url))

		s.readLoop(ctx, conn)
		_ = conn.Close()
		s.bus.PublishConnectivityChanged(events.ConnectivityChanged{Online: false})
	}
}

func (s *Socket) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("socket read failed", logx.Err(err))
			}
			return
		}
		var ev orderEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			s.logger.Debug("socket message ignored", logx.Err(err))
			continue
		}
		if ev.OrderID == "" {
			continue
		}
		s.bus.PublishOrderNotification(events.OrderNotification{
			OrderID: ev.OrderID,
			Message: ev.Message,
		})
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
