package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"candlescope/internal/chart"
	"candlescope/internal/pipeline"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 4096
)

// Client represents a single WebSocket peer and its current selection.
// Selection state is only touched from readPump.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	analysis  *pipeline.Analysis
	mode      chart.Mode
	highlight string
	width     int
	height    int
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			// Write coalescing: use NextWriter to batch queued messages
			// into a single WebSocket frame with newline separators
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[gateway] ws client disconnected")
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var msg ClientMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			SendError(c, "", "bad_request", "invalid JSON: "+err.Error())
			continue
		}

		switch msg.Type {
		case MsgSelect:
			c.handleSelect(msg)
		case MsgHighlight:
			c.handleHighlight(msg)
		case MsgMode:
			c.handleMode(msg)
		default:
			// Handle ping/pong (backward compat)
			if msg.Ping > 0 {
				pong, _ := json.Marshal(map[string]interface{}{
					"type":      "pong",
					"ping":      msg.Ping,
					"server_ts": time.Now().UnixMilli(),
				})
				select {
				case c.send <- pong:
				default:
				}
				continue
			}
			SendError(c, msg.ReqID, "bad_request", "unknown message type "+msg.Type)
		}
	}
}

// handleSelect runs a fresh analysis and answers with ANALYSIS then CHART.
// A failed selection leaves the previous one in place.
func (c *Client) handleSelect(msg ClientMsg) {
	mode, err := c.parseMode(msg.Mode)
	if err != nil {
		SendError(c, msg.ReqID, "bad_request", err.Error())
		return
	}
	if err := pipeline.CheckChartSize(msg.Width, msg.Height); err != nil {
		SendError(c, msg.ReqID, "bad_request", err.Error())
		return
	}
	q := pipeline.Query{
		Instrument: msg.Instrument,
		Date:       msg.Date,
		Interval:   msg.Interval,
		Window:     pipeline.DefaultWindow,
	}
	if q.Interval == 0 {
		q.Interval = c.hub.cfg.DefaultInterval
	}
	if msg.Window != nil {
		q.Window = *msg.Window
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.hub.cfg.RequestTimeout)
	defer cancel()
	a, err := c.hub.svc.Analyze(ctx, q)
	if err != nil {
		sendFailure(c, msg.ReqID, err)
		return
	}

	c.analysis = a
	c.mode = mode
	c.highlight = msg.Highlight
	if msg.Width > 0 {
		c.width = msg.Width
	}
	if msg.Height > 0 {
		c.height = msg.Height
	}

	log.Printf("[gateway] select: %s %s %dm candles=%d patterns=%d",
		a.Instrument, a.Date, a.Interval, len(a.Candles), len(a.Matches))
	SendJSON(c, AnalysisFrame{Type: "ANALYSIS", ReqID: msg.ReqID, Analysis: a})
	c.sendChart(msg.ReqID)
}

func (c *Client) handleHighlight(msg ClientMsg) {
	if c.analysis == nil {
		SendError(c, msg.ReqID, "bad_request", "HIGHLIGHT before SELECT")
		return
	}
	c.highlight = msg.Highlight
	c.sendChart(msg.ReqID)
}

func (c *Client) handleMode(msg ClientMsg) {
	if c.analysis == nil {
		SendError(c, msg.ReqID, "bad_request", "MODE before SELECT")
		return
	}
	mode, err := chart.ParseMode(msg.Mode)
	if err != nil {
		SendError(c, msg.ReqID, "bad_request", err.Error())
		return
	}
	c.mode = mode
	c.sendChart(msg.ReqID)
}

// parseMode keeps the current mode when s is empty.
func (c *Client) parseMode(s string) (chart.Mode, error) {
	if s == "" {
		return c.mode, nil
	}
	return chart.ParseMode(s)
}

func (c *Client) sendChart(reqID string) {
	png, err := c.hub.svc.Render(c.analysis, c.mode, c.highlight, c.width, c.height)
	if err != nil {
		sendFailure(c, reqID, err)
		return
	}
	SendJSON(c, ChartFrame{
		Type:      "CHART",
		ReqID:     reqID,
		Mode:      c.mode,
		Highlight: c.highlight,
		PNG:       base64.StdEncoding.EncodeToString(png),
	})
}

func sendFailure(c *Client, reqID string, err error) {
	switch {
	case errors.Is(err, pipeline.ErrNoData):
		SendError(c, reqID, "no_data", err.Error())
	case errors.Is(err, pipeline.ErrInvalidQuery):
		SendError(c, reqID, "bad_request", err.Error())
	default:
		log.Printf("[gateway] request %s failed: %v", reqID, err)
		SendError(c, reqID, "internal", "internal error")
	}
}
