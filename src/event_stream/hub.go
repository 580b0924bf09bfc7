// Package event_stream serves the bidirectional websocket event stream.
// Monitor events are broadcast to every client; replies to client requests
// go to the requesting client only.
package event_stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/events"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/monitor"
)

const (
	defaultSendBuffer   = 64
	defaultWriteTimeout = 10 * time.Second
	defaultPongWait     = 60 * time.Second
	maxMessageSize      = 4096

	connectedMessage = "Successfully connected to WiFi Analyzer"
)

// ErrHubClosed is returned by Publish after Close.
var ErrHubClosed = errors.New("event stream closed")

// Options configures a Hub.
type Options struct {
	// AllowedOrigin is "*" or a single origin; requests without Origin are always accepted.
	AllowedOrigin string
	SendBuffer    int
	WriteTimeout  time.Duration
	PongWait      time.Duration
}

// Hub tracks connected clients and implements monitor.Publisher.
type Hub struct {
	opts       Options
	upgrader   websocket.Upgrader
	controller Controller
	recorder   StreamRecorder
	now        func() time.Time

	mu      sync.RWMutex // guards clients and closed; sends happen under RLock, closes under Lock
	clients map[string]*client
	closed  bool
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub. Attach the monitor with SetController.
func NewHub(opts Options) *Hub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaultPongWait
	}
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "*"
	}

	h := &Hub{
		opts:    opts,
		clients: make(map[string]*client),
		now:     time.Now,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// SetController attaches the monitor that client requests drive.
func (h *Hub) SetController(c Controller) {
	h.controller = c
}

// SetRecorder attaches stream telemetry.
func (h *Hub) SetRecorder(r StreamRecorder) {
	h.recorder = r
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.opts.AllowedOrigin == "*" || origin == h.opts.AllowedOrigin {
		return true
	}
	logger.WithFields(logrus.Fields{
		"origin":         origin,
		"allowed_origin": h.opts.AllowedOrigin,
	}).Warn("WebSocket origin not allowed")
	return false
}

// Publish broadcasts an event to every client. Clients whose buffers are
// full are disconnected rather than blocking the monitor.
func (h *Hub) Publish(e events.Event) error {
	payload, err := events.Encode(e)
	if err != nil {
		return err
	}

	var slow []*client
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return ErrHubClosed
	}
	for _, c := range h.clients {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		logger.WithField("client_id", c.id).Warn("Client send buffer full, disconnecting")
		h.unregister(c)
	}
	if h.recorder != nil {
		h.recorder.ObserveStreamEvent(string(e.EventName()))
	}
	return nil
}

// reply sends an event to one client.
func (h *Hub) reply(c *client, e events.Event) {
	payload, err := events.Encode(e)
	if err != nil {
		logger.WithError(err).Error("Failed to encode reply")
		return
	}

	h.mu.RLock()
	_, ok := h.clients[c.id]
	full := false
	if ok {
		select {
		case c.send <- payload:
		default:
			full = true
		}
	}
	h.mu.RUnlock()

	if full {
		h.unregister(c)
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()

	logger.WithFields(logrus.Fields{
		"client_id": c.id,
		"clients":   n,
	}).Info("Event stream client connected")
	if h.recorder != nil {
		h.recorder.SetStreamClients(n)
	}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()

	logger.WithFields(logrus.Fields{
		"client_id": c.id,
		"clients":   n,
	}).Info("Event stream client disconnected")
	if h.recorder != nil {
		h.recorder.SetStreamClients(n)
	}
}

// Close disconnects every client and rejects further publishes.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
	h.mu.Unlock()

	if h.recorder != nil {
		h.recorder.SetStreamClients(0)
	}
}

// ServeHTTP upgrades the connection and serves the client until it leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"remote_addr": r.RemoteAddr,
			"error":       err,
		}).Warn("Failed to upgrade to WebSocket")
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.opts.SendBuffer),
	}
	if !h.register(c) {
		conn.Close()
		return
	}

	go h.writePump(c)
	h.reply(c, events.ConnectionStatus{
		Status:    "connected",
		Message:   connectedMessage,
		ClientID:  c.id,
		Timestamp: events.Timestamp(h.now()),
	})
	h.readPump(r.Context(), c)
}

func (h *Hub) readPump(ctx context.Context, c *client) {
	defer h.unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.WithFields(logrus.Fields{
					"client_id": c.id,
					"error":     err,
				}).Warn("WebSocket read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
		h.handleMessage(ctx, c, raw)
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.opts.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.WithFields(logrus.Fields{
					"client_id": c.id,
					"error":     err,
				}).Debug("WebSocket write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage validates one client request and replies to its sender.
func (h *Hub) handleMessage(ctx context.Context, c *client, raw []byte) {
	req, err := events.DecodeClientEvent(raw)
	if err != nil {
		h.reply(c, events.Error{Message: err.Error()})
		return
	}
	if h.controller == nil {
		h.reply(c, events.Error{Message: "monitor unavailable"})
		return
	}

	logger.WithFields(logrus.Fields{
		"client_id": c.id,
		"event":     req.ClientEventName(),
	}).Debug("Client event received")

	switch req := req.(type) {
	case events.StartMonitoring:
		err := h.controller.Start(req.Focus()...)
		selected := h.controller.Status().SelectedNetworks
		switch {
		case errors.Is(err, monitor.ErrAlreadyRunning):
			h.reply(c, events.MonitoringStatus{
				Status:           events.StatusAlreadyRunning,
				Message:          "Monitoring already active",
				SelectedNetworks: selected,
			})
		case err != nil:
			h.reply(c, events.Error{Message: err.Error()})
		default:
			h.reply(c, events.MonitoringStatus{
				Status:           events.StatusStarted,
				Message:          "Monitoring started",
				SelectedNetwork:  firstOf(selected),
				SelectedNetworks: selected,
			})
		}

	case events.StopMonitoring:
		h.controller.Stop()
		h.reply(c, events.MonitoringStatus{
			Status:           events.StatusStopped,
			Message:          "Monitoring stopped",
			SelectedNetworks: []string{},
		})

	case events.SelectNetwork:
		selected, err := h.controller.Select(req.SSID, req.Action)
		if err != nil {
			h.reply(c, events.Error{Message: err.Error()})
			return
		}
		h.reply(c, events.MonitoringStatus{
			Status:           events.StatusNetworkSelected,
			Message:          fmt.Sprintf("Selection updated (%s)", actionOrDefault(req.Action)),
			SelectedNetwork:  req.SSID,
			SelectedNetworks: selected,
		})

	case events.ScanOnce:
		go func() {
			if _, err := h.controller.ScanOnce(ctx); err != nil {
				h.reply(c, events.Error{Message: err.Error()})
			}
		}()
	}
}

func firstOf(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func actionOrDefault(action string) string {
	if action == "" {
		return monitor.ActionSet
	}
	return action
}
