package controller

import (
	"context"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pump-pill/arenax/pkg/redis"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to the arena front-end origins in production
		return true
	},
}

// ServerMessage represents messages sent to WebSocket clients.
type ServerMessage struct {
	Type    string      `json:"type"`    // "epoch.closed", "grant.claimed", "ping", "error"
	Payload interface{} `json:"payload"` // Event-specific data
}

// HandleWebSocket upgrades the connection and streams real-time epoch and
// claim events relayed from Redis Pub/Sub. Clients receive every event; there
// is no per-client subscription protocol.
func (c *Controller) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if c.App.RedisClient == nil {
		http.Error(w, "Real-time events not available (Redis disabled)", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	c.App.Logger.Info("WebSocket client connected", zap.String("remote_addr", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	send := make(chan ServerMessage, 256)
	var producers, writer sync.WaitGroup

	producers.Add(1)
	go func() {
		defer producers.Done()
		defer c.recoverWS(cancel, r.RemoteAddr, "redis relay")
		c.relayRedisEvents(ctx, send)
	}()

	producers.Add(1)
	go func() {
		defer producers.Done()
		defer c.recoverWS(cancel, r.RemoteAddr, "ping")
		sendPings(ctx, send)
	}()

	writer.Add(1)
	go func() {
		defer writer.Done()
		defer c.recoverWS(cancel, r.RemoteAddr, "writer")
		writeMessages(conn, send)
	}()

	// Read loop detects the client closing the connection.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	// Producers drain on ctx before the channel closes under the writer.
	cancel()
	producers.Wait()
	close(send)
	writer.Wait()

	c.App.Logger.Info("WebSocket client disconnected", zap.String("remote_addr", r.RemoteAddr))
}

func (c *Controller) recoverWS(cancel context.CancelFunc, remoteAddr, role string) {
	if rec := recover(); rec != nil {
		c.App.Logger.Error("Panic in WebSocket goroutine",
			zap.Any("panic", rec),
			zap.String("role", role),
			zap.String("stack", string(debug.Stack())),
			zap.String("remote_addr", remoteAddr))
		cancel()
	}
}

// relayRedisEvents forwards epoch and claim events to the send channel until
// the connection context ends.
func (c *Controller) relayRedisEvents(ctx context.Context, send chan<- ServerMessage) {
	sub := c.App.RedisClient.Subscribe(ctx, redis.ChannelEpochClosed, redis.ChannelGrantClaimed)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			msgType := "epoch.closed"
			if msg.Channel == redis.ChannelGrantClaimed {
				msgType = "grant.claimed"
			}

			var payload interface{}
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				payload = msg.Payload
			}

			select {
			case send <- ServerMessage{Type: msgType, Payload: payload}:
			case <-ctx.Done():
				return
			default:
				// Slow client; drop rather than block the relay.
			}
		}
	}
}

func writeMessages(conn *websocket.Conn, send <-chan ServerMessage) {
	for msg := range send {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func sendPings(ctx context.Context, send chan<- ServerMessage) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case send <- ServerMessage{Type: "ping", Payload: map[string]int64{"timestamp": time.Now().Unix()}}:
			case <-ctx.Done():
				return
			}
		}
	}
}
