package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candlescope/internal/chart"
	"candlescope/internal/model"
	"candlescope/internal/pipeline"
	"candlescope/internal/session"
)

type stubAnalyzer struct {
	mu      sync.Mutex
	queries []pipeline.Query
}

func (s *stubAnalyzer) Analyze(_ context.Context, q pipeline.Query) (*pipeline.Analysis, error) {
	s.mu.Lock()
	s.queries = append(s.queries, q)
	s.mu.Unlock()
	switch q.Instrument {
	case "NONE":
		return nil, fmt.Errorf("%w: %s %s", pipeline.ErrNoData, q.Instrument, q.Date)
	case "":
		return nil, fmt.Errorf("%w: instrument is required", pipeline.ErrInvalidQuery)
	}
	return &pipeline.Analysis{
		Instrument: q.Instrument,
		Date:       q.Date,
		Interval:   q.Interval,
		Candles: []model.Candle{
			{Time: "09:15", Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10, Ticks: 2},
			{Time: "09:20", Open: 100.5, High: 102, Low: 100, Close: 101.5, Volume: 7, Ticks: 1},
		},
		Matches:    []model.PatternMatch{},
		MostCommon: "None",
	}, nil
}

func (s *stubAnalyzer) Render(a *pipeline.Analysis, mode chart.Mode, highlight string, w, h int) ([]byte, error) {
	return []byte(fmt.Sprintf("%s|%s|%s|%dx%d", a.Instrument, mode, highlight, w, h)), nil
}

func dial(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	mux := http.NewServeMux()
	RegisterRoutes(mux, hub)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// frameReader splits coalesced websocket messages back into frames.
type frameReader struct {
	t       *testing.T
	conn    *websocket.Conn
	pending [][]byte
}

func (r *frameReader) next() map[string]json.RawMessage {
	r.t.Helper()
	for len(r.pending) == 0 {
		r.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := r.conn.ReadMessage()
		require.NoError(r.t, err)
		r.pending = bytes.Split(msg, []byte{'\n'})
	}
	raw := r.pending[0]
	r.pending = r.pending[1:]

	var f map[string]json.RawMessage
	require.NoError(r.t, json.Unmarshal(raw, &f))
	return f
}

func typeOf(f map[string]json.RawMessage) string {
	var s string
	json.Unmarshal(f["type"], &s)
	return s
}

func decodeChart(t *testing.T, f map[string]json.RawMessage) (ChartFrame, string) {
	t.Helper()
	var cf ChartFrame
	b, _ := json.Marshal(f)
	require.NoError(t, json.Unmarshal(b, &cf))
	png, err := base64.StdEncoding.DecodeString(cf.PNG)
	require.NoError(t, err)
	return cf, string(png)
}

func TestSession_SelectHighlightMode(t *testing.T) {
	an := &stubAnalyzer{}
	hub := NewHub(an, HubConfig{DefaultInterval: 5})
	conn := dial(t, hub)
	r := &frameReader{t: t, conn: conn}

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "SELECT", "reqId": "r1", "instrument": "TCS", "date": "02-01-2025",
		"mode": "line", "width": 640, "height": 320,
	}))

	f := r.next()
	require.Equal(t, "ANALYSIS", typeOf(f))
	var af AnalysisFrame
	b, _ := json.Marshal(f)
	require.NoError(t, json.Unmarshal(b, &af))
	assert.Equal(t, "r1", af.ReqID)
	assert.Len(t, af.Analysis.Candles, 2)

	f = r.next()
	require.Equal(t, "CHART", typeOf(f))
	cf, png := decodeChart(t, f)
	assert.Equal(t, chart.ModeLine, cf.Mode)
	assert.Equal(t, "TCS|line||640x320", png)

	an.mu.Lock()
	require.Len(t, an.queries, 1)
	assert.Equal(t, 5, an.queries[0].Interval, "server default interval")
	assert.Equal(t, pipeline.DefaultWindow, an.queries[0].Window)
	an.mu.Unlock()

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "HIGHLIGHT", "reqId": "r2", "highlight": "09:20"}))
	f = r.next()
	require.Equal(t, "CHART", typeOf(f))
	cf, png = decodeChart(t, f)
	assert.Equal(t, "r2", cf.ReqID)
	assert.Equal(t, "09:20", cf.Highlight)
	assert.Equal(t, "TCS|line|09:20|640x320", png)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "MODE", "reqId": "r3", "mode": "volume"}))
	f = r.next()
	_, png = decodeChart(t, f)
	assert.Equal(t, "TCS|volume|09:20|640x320", png, "mode switch keeps the highlight")
}

func TestSession_Errors(t *testing.T) {
	hub := NewHub(&stubAnalyzer{}, HubConfig{})
	conn := dial(t, hub)
	r := &frameReader{t: t, conn: conn}

	expectError := func(code string) {
		t.Helper()
		f := r.next()
		require.Equal(t, "ERROR", typeOf(f))
		var e ErrorResponse
		b, _ := json.Marshal(f)
		require.NoError(t, json.Unmarshal(b, &e))
		assert.Equal(t, code, e.Code, e.Error)
	}

	conn.WriteJSON(map[string]any{"type": "HIGHLIGHT", "highlight": "09:20"})
	expectError("bad_request")

	conn.WriteJSON(map[string]any{"type": "SELECT", "instrument": "NONE", "date": "02-01-2025"})
	expectError("no_data")

	conn.WriteJSON(map[string]any{"type": "SELECT", "date": "02-01-2025"})
	expectError("bad_request")

	conn.WriteJSON(map[string]any{"type": "SELECT", "instrument": "TCS", "date": "02-01-2025", "mode": "pie"})
	expectError("bad_request")

	conn.WriteJSON(map[string]any{
		"type": "SELECT", "instrument": "TCS", "date": "02-01-2025", "width": 100000, "height": 100000,
	})
	expectError("bad_request")

	// The oversize SELECT was rejected before it replaced the selection.
	conn.WriteJSON(map[string]any{"type": "HIGHLIGHT", "highlight": "09:20"})
	expectError("bad_request")

	conn.WriteJSON(map[string]any{"type": "WHAT"})
	expectError("bad_request")

	conn.WriteMessage(websocket.TextMessage, []byte("{nope"))
	expectError("bad_request")
}

func TestSession_Ping(t *testing.T) {
	conn := dial(t, NewHub(&stubAnalyzer{}, HubConfig{}))
	r := &frameReader{t: t, conn: conn}

	require.NoError(t, conn.WriteJSON(map[string]any{"ping": 42}))
	f := r.next()
	assert.Equal(t, "pong", typeOf(f))
	assert.Equal(t, "42", string(f["ping"]))
}

func TestHub_ClientCount(t *testing.T) {
	hub := NewHub(&stubAnalyzer{}, HubConfig{})
	var mu sync.Mutex
	var counts []int
	hub.OnClientCount = func(n int) {
		mu.Lock()
		counts = append(counts, n)
		mu.Unlock()
	}

	conn := dial(t, hub)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 0}, counts)
}

func TestHub_Status(t *testing.T) {
	hub := NewHub(&stubAnalyzer{}, HubConfig{})

	open := time.Date(2025, 1, 2, 10, 0, 0, 0, session.IST)
	st := hub.Status(open)
	assert.Equal(t, "STATUS", st.Type)
	assert.True(t, st.TradingDay)
	assert.True(t, st.InSession)

	evening := time.Date(2025, 1, 2, 18, 0, 0, 0, session.IST)
	assert.False(t, hub.Status(evening).InSession)

	holi := time.Date(2025, 3, 14, 10, 0, 0, 0, session.IST)
	st = hub.Status(holi)
	assert.False(t, st.TradingDay)
	assert.False(t, st.InSession)
}

func TestHub_StatusBroadcast(t *testing.T) {
	hub := NewHub(&stubAnalyzer{}, HubConfig{})
	conn := dial(t, hub)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.StartStatusBroadcast(ctx, 20*time.Millisecond)

	r := &frameReader{t: t, conn: conn}
	f := r.next()
	assert.Equal(t, "STATUS", typeOf(f))
	assert.Equal(t, "1", string(f["clients"]))
}
