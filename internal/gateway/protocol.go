package gateway

import (
	"encoding/json"
	"log"

	"candlescope/internal/chart"
	"candlescope/internal/pipeline"
)

// ── WS Protocol Message Types ──

// Inbound message types.
const (
	MsgSelect    = "SELECT"    // choose instrument/date/interval; answered with ANALYSIS + CHART
	MsgHighlight = "HIGHLIGHT" // emphasize one candle of the current selection; answered with CHART
	MsgMode      = "MODE"      // switch chart mode for the current selection; answered with CHART
)

// ClientMsg is any client → server message. Fields not used by Type are
// ignored.
type ClientMsg struct {
	Type  string `json:"type"`
	ReqID string `json:"reqId"` // client-generated request ID, echoed back
	Ping  int64  `json:"ping"`  // legacy keepalive

	// SELECT
	Instrument string `json:"instrument"`
	Date       string `json:"date"`
	Interval   int    `json:"interval"` // 0 = server default
	Window     *int   `json:"window"`   // nil = server default, 0 = all

	// SELECT, MODE, HIGHLIGHT
	Mode      string `json:"mode"`
	Highlight string `json:"highlight"` // candle time label, "" for none
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// AnalysisFrame carries candles, pattern matches and the day summary.
type AnalysisFrame struct {
	Type     string             `json:"type"` // "ANALYSIS"
	ReqID    string             `json:"reqId"`
	Analysis *pipeline.Analysis `json:"analysis"`
}

// ChartFrame carries a rendered chart as base64 PNG.
type ChartFrame struct {
	Type      string     `json:"type"` // "CHART"
	ReqID     string     `json:"reqId"`
	Mode      chart.Mode `json:"mode"`
	Highlight string     `json:"highlight"`
	PNG       string     `json:"png"`
}

// StatusFrame is pushed periodically to every client.
type StatusFrame struct {
	Type       string `json:"type"` // "STATUS"
	TradingDay bool   `json:"tradingDay"`
	InSession  bool   `json:"inSession"`
	Clients    int    `json:"clients"`
	ServerTS   int64  `json:"serverTs"`
}

// ErrorResponse reports a failed request. Code is "no_data", "bad_request"
// or "internal".
type ErrorResponse struct {
	Type  string `json:"type"` // "ERROR"
	ReqID string `json:"reqId"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// SendJSON queues v for the client, dropping it if the send buffer is full.
func SendJSON(c *Client, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[gateway] json marshal error: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
		log.Println("[gateway] client send buffer full, dropping message")
	}
}

// SendError sends an error response to the client.
func SendError(c *Client, reqID, code, errMsg string) {
	SendJSON(c, ErrorResponse{
		Type:  "ERROR",
		ReqID: reqID,
		Code:  code,
		Error: errMsg,
	})
}
