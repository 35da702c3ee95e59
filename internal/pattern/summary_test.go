package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"candlescope/internal/model"
)

func match(ts string, name model.PatternName) model.PatternMatch {
	return model.PatternMatch{Time: ts, Pattern: name, Signal: model.SignalOf(name)}
}

func TestLabels(t *testing.T) {
	ms := []model.PatternMatch{
		match("09:20", model.Hammer),
		match("09:20", model.DragonflyDoji),
	}
	assert.Equal(t, []string{"09:20 - Hammer", "09:20 - Dragonfly Doji"}, Labels(ms, ""))
	assert.Equal(t, []string{"01-01-2025 09:20 - Hammer", "01-01-2025 09:20 - Dragonfly Doji"}, Labels(ms, "01-01-2025 "))
	assert.Empty(t, Labels(nil, ""))
}

func TestMostCommon(t *testing.T) {
	assert.Equal(t, "None", MostCommon(nil))

	ms := []model.PatternMatch{
		match("09:15", model.RisingWindow),
		match("09:20", model.Hammer),
		match("09:25", model.Hammer),
		match("09:30", model.RisingWindow),
		match("09:35", model.Hammer),
	}
	assert.Equal(t, "Hammer (3 times)", MostCommon(ms))

	// Ties go to the pattern seen first.
	tie := []model.PatternMatch{
		match("09:15", model.DragonflyDoji),
		match("09:20", model.Hammer),
		match("09:25", model.Hammer),
		match("09:30", model.DragonflyDoji),
	}
	assert.Equal(t, "Dragonfly Doji (2 times)", MostCommon(tie))
}

func TestTally(t *testing.T) {
	ms := []model.PatternMatch{
		match("09:15", model.Hammer),
		match("09:20", model.RisingWindow),
		match("09:25", model.RisingWindow),
	}
	assert.Equal(t, []Count{
		{Pattern: model.RisingWindow, Count: 2},
		{Pattern: model.Hammer, Count: 1},
	}, Tally(ms))
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))

	cs := []model.Candle{
		{Time: "09:15", Open: 1500.5, High: 1520.75, Low: 1495.25, Close: 1510, Volume: 125000},
		{Time: "09:20", Open: 1510, High: 1535.5, Low: 1508, Close: 1525.25, Volume: 145000},
		{Time: "09:25", Open: 1525.25, High: 1540, Low: 1520.5, Close: 1535.75, Volume: 135000},
	}
	assert.Equal(t, Summary{
		Open:   1500.5,
		High:   1540,
		Low:    1495.25,
		Close:  1535.75,
		Volume: 405000,
	}, Summarize(cs))
}
