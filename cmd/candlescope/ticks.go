package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"candlescope/internal/model"
)

// decodeTicks reads a JSON array of tick objects
// ({"time","open","high","low","close","volume"}). Only a document that is not
// an array fails; a malformed element is kept as a malformed tick so the
// aggregator skips it.
func decodeTicks(r io.Reader) ([]model.Tick, error) {
	var raws []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raws); err != nil {
		return nil, fmt.Errorf("decode ticks: %w", err)
	}
	ticks := make([]model.Tick, len(raws))
	for i, raw := range raws {
		ticks[i] = decodeTick(raw)
	}
	return ticks, nil
}

// decodeTick maps a missing, null or non-numeric price field to NaN and a
// non-string time to "".
func decodeTick(raw json.RawMessage) model.Tick {
	var fields map[string]json.RawMessage
	json.Unmarshal(raw, &fields)

	var t model.Tick
	json.Unmarshal(fields["time"], &t.Time)
	t.Open = number(fields["open"])
	t.High = number(fields["high"])
	t.Low = number(fields["low"])
	t.Close = number(fields["close"])
	t.Volume = number(fields["volume"])
	return t
}

func number(raw json.RawMessage) float64 {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return math.NaN()
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return math.NaN()
	}
	return f
}

func readTicksFile(path string) ([]model.Tick, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeTicks(f)
}

// fileSource serves one file's ticks for whatever instrument/date is asked.
type fileSource struct {
	ticks []model.Tick
}

func (s fileSource) Ticks(context.Context, string, string) ([]model.Tick, error) {
	return s.ticks, nil
}
