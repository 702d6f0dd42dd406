package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/probekit/internal/events"
	"github.com/nerrad567/probekit/internal/infrastructure/config"
	"github.com/nerrad567/probekit/internal/infrastructure/logging"
	"github.com/nerrad567/probekit/internal/mqtttester"
	"github.com/nerrad567/probekit/internal/tester"
	"github.com/nerrad567/probekit/internal/wstester"
)

// WebSocket constants.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256

	defaultRelayPingInterval   = 30
	defaultRelayPongTimeout    = 10
	defaultRelayMaxMessageSize = 8192

	// Channel prefixes for relayed engine events.
	ChannelWebSocket = "websocket"
	ChannelMQTT      = "mqtt"
)

// WSMessage represents a message sent to/from a relay client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// Hub manages relay connections and broadcasts engine events.
type Hub struct {
	cfg     config.RelayConfig
	cors    config.CORSConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex

	upgrader websocket.Upgrader
}

// WSClient represents a connected relay client.
type WSClient struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]struct{}
	mu            sync.RWMutex
}

// NewHub creates a new relay hub.
func NewHub(cfg config.RelayConfig, cors config.CORSConfig, logger *logging.Logger) *Hub {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultRelayPingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaultRelayPongTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultRelayMaxMessageSize
	}
	h := &Hub{
		cfg:     cfg,
		cors:    cors,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || isAllowedOrigin(h.cors.AllowedOrigins, origin)
		},
	}
	return h
}

// Run blocks until the context is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("relay client connected", "clients", h.ClientCount())
}

// Unregister removes a client from the hub.
// Only the goroutine that successfully removes the client from the map
// closes the send channel, preventing double-close panics during shutdown.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("relay client disconnected", "clients", h.ClientCount())
}

// Broadcast sends an event to all clients subscribed to the given channel.
// The hub lock is released before per-client subscription checks so hub and
// client locks are never held together.
func (h *Hub) Broadcast(channel string, payload any) {
	msg := WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if client.isSubscribed(channel) {
			client.trySend(data)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll disconnects all clients and closes their send channels
// so writePump goroutines can exit cleanly.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// RelayTesters forwards every engine event to the hub. The returned
// function removes the listeners.
func (h *Hub) RelayTesters(ws *wstester.Tester, mq *mqtttester.Tester) (detach func()) {
	var offs []func()

	wsBus := ws.Events()
	offs = append(offs,
		relay(h, wsBus, ChannelWebSocket, tester.EventStateChange),
		relay(h, wsBus, ChannelWebSocket, tester.EventError),
		relay(h, wsBus, ChannelWebSocket, tester.EventMessagesCleared),
		relay(h, wsBus, ChannelWebSocket, wstester.EventConnected),
		relay(h, wsBus, ChannelWebSocket, wstester.EventDisconnected),
		relay(h, wsBus, ChannelWebSocket, wstester.EventMessageSent),
		relay(h, wsBus, ChannelWebSocket, wstester.EventMessageReceived),
		relay(h, wsBus, ChannelWebSocket, wstester.EventSendError),
	)

	mqBus := mq.Events()
	offs = append(offs,
		relay(h, mqBus, ChannelMQTT, tester.EventStateChange),
		relay(h, mqBus, ChannelMQTT, tester.EventError),
		relay(h, mqBus, ChannelMQTT, tester.EventMessagesCleared),
		relay(h, mqBus, ChannelMQTT, mqtttester.EventConnected),
		relay(h, mqBus, ChannelMQTT, mqtttester.EventDisconnected),
		relay(h, mqBus, ChannelMQTT, mqtttester.EventMessagePublished),
		relay(h, mqBus, ChannelMQTT, mqtttester.EventMessageReceived),
		relay(h, mqBus, ChannelMQTT, mqtttester.EventPublishError),
		relay(h, mqBus, ChannelMQTT, mqtttester.EventSubscribed),
		relay(h, mqBus, ChannelMQTT, mqtttester.EventUnsubscribed),
		relay(h, mqBus, ChannelMQTT, mqtttester.EventSubscribeError),
		relay(h, mqBus, ChannelMQTT, mqtttester.EventUnsubscribeError),
	)

	return func() {
		for _, off := range offs {
			off()
		}
	}
}

func relay[T any](h *Hub, bus *events.Bus, prefix string, k events.Key[T]) func() {
	channel := prefix + "." + k.Name()
	id := events.On(bus, k, func(v T) {
		h.Broadcast(channel, eventPayload(v))
	})
	return func() { events.Off(bus, k, id) }
}

// eventPayload makes event values JSON friendly.
func eventPayload(v any) any {
	switch p := v.(type) {
	case error:
		return map[string]string{"message": p.Error()}
	case struct{}:
		return nil
	case string:
		return map[string]string{"topic": p}
	}
	return v
}

// handleEvents upgrades the connection to a relay stream.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("relay upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}

	s.hub.Register(client)

	go client.writePump(s.hub.cfg)
	go client.readPump(s.hub.cfg)
}

// readPump reads messages from the relay connection.
func (c *WSClient) readPump(cfg config.RelayConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	deadline := relayDeadline(cfg)
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(deadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("relay read error", "error", err)
			} else {
				c.hub.logger.Debug("relay closed", "error", err)
			}
			return
		}
		// Any client message resets the read deadline.
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(deadline))
		c.handleMessage(message)
	}
}

// writePump writes messages to the relay connection.
func (c *WSClient) writePump(cfg config.RelayConfig) {
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	writeWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func relayDeadline(cfg config.RelayConfig) time.Duration {
	return time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
}

// handleMessage processes an incoming relay message.
func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.handleSubscription(msg, true)
	case WSTypeUnsubscribe:
		c.handleSubscription(msg, false)
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// handleSubscription adds or removes channels.
func (c *WSClient) handleSubscription(msg WSMessage, subscribe bool) {
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		c.sendError(msg.ID, "invalid payload")
		return
	}

	var sub WSSubscribePayload
	if err := json.Unmarshal(payloadBytes, &sub); err != nil || len(sub.Channels) == 0 {
		c.sendError(msg.ID, "invalid "+msg.Type+" payload")
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		if subscribe {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
	c.mu.Unlock()

	key := "unsubscribed"
	if subscribe {
		key = "subscribed"
		c.hub.logger.Debug("relay client subscribed", "channels", sub.Channels)
	}
	c.sendResponse(msg.ID, WSTypeResponse, map[string]any{key: sub.Channels})
}

// trySend attempts to send data to the client's send channel.
// It silently handles closed channels (client disconnected during broadcast)
// and full buffers (slow client).
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
		// Client buffer full, skip
	}
}

// isSubscribed matches exact channels, "<protocol>.*" and "*".
func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.subscriptions[channel]; ok {
		return true
	}
	if _, ok := c.subscriptions["*"]; ok {
		return true
	}
	if prefix, _, found := strings.Cut(channel, "."); found {
		_, ok := c.subscriptions[prefix+".*"]
		return ok
	}
	return false
}

// sendResponse sends a response message to the client.
// Routes through trySend to safely handle closed channels during shutdown.
func (c *WSClient) sendResponse(id, msgType string, payload any) {
	msg := WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.trySend(data)
}

// sendError sends an error message to the client.
func (c *WSClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}
