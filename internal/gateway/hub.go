package gateway

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"candlescope/internal/chart"
	"candlescope/internal/model"
	"candlescope/internal/pipeline"
	"candlescope/internal/session"
)

// Analyzer is the part of the pipeline a websocket session drives.
type Analyzer interface {
	Analyze(ctx context.Context, q pipeline.Query) (*pipeline.Analysis, error)
	Render(a *pipeline.Analysis, mode chart.Mode, highlight string, width, height int) ([]byte, error)
}

// HubConfig holds per-session defaults.
type HubConfig struct {
	DefaultInterval int           // used when SELECT omits interval
	RequestTimeout  time.Duration // bound on one analysis
	SendBuffer      int           // queued frames per client
}

// Hub tracks connected websocket sessions. Each session computes its own
// analyses; the hub only owns the client set and periodic status pushes.
type Hub struct {
	svc Analyzer
	cfg HubConfig

	mu      sync.RWMutex
	clients map[*Client]bool

	// OnClientCount, if set, is called with the new total after every
	// connect and disconnect.
	OnClientCount func(n int)

	now func() time.Time
}

// NewHub creates a Hub serving analyses from svc.
func NewHub(svc Analyzer, cfg HubConfig) *Hub {
	if cfg.DefaultInterval <= 0 {
		cfg.DefaultInterval = model.DefaultInterval
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	return &Hub{
		svc:     svc,
		cfg:     cfg,
		clients: make(map[*Client]bool),
		now:     time.Now,
	}
}

// HandleWSRequest registers an upgraded connection and starts its pumps.
func (h *Hub) HandleWSRequest(conn *websocket.Conn) {
	client := &Client{
		conn: conn,
		send: make(chan []byte, h.cfg.SendBuffer),
		hub:  h,
		mode: chart.ModeCandlestick,
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("[gateway] ws client connected (%d total)", count)
	if h.OnClientCount != nil {
		h.OnClientCount(count)
	}

	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	close(c.send)
	h.mu.Unlock()

	if h.OnClientCount != nil {
		h.OnClientCount(count)
	}
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Status describes the trading calendar at now.
func (h *Hub) Status(now time.Time) StatusFrame {
	ist := now.In(session.IST)
	trading := session.IsTradingDay(ist)
	return StatusFrame{
		Type:       "STATUS",
		TradingDay: trading,
		InSession:  trading && session.InSession(ist.Hour()*60+ist.Minute()),
		Clients:    h.ClientCount(),
		ServerTS:   now.UnixMilli(),
	}
}

// StartStatusBroadcast sends a STATUS frame to all WS clients every period.
// Blocks until ctx is cancelled.
func (h *Hub) StartStatusBroadcast(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.broadcast(h.Status(h.now()))
		}
	}
}

func (h *Hub) broadcast(v interface{}) {
	envelope, err := json.Marshal(v)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- envelope:
		default:
		}
	}
}
