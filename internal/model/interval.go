package model

// IntervalOption is one entry of the interval picker offered to clients.
type IntervalOption struct {
	Label   string `json:"label"`
	Minutes int    `json:"value"`
}

// IntervalOptions is the closed set of intervals the presentation layer offers.
// The aggregator itself accepts any positive number of minutes.
var IntervalOptions = []IntervalOption{
	{Label: "1 min", Minutes: 1},
	{Label: "5 min", Minutes: 5},
	{Label: "10 min", Minutes: 10},
	{Label: "15 min", Minutes: 15},
	{Label: "30 min", Minutes: 30},
	{Label: "1 hour", Minutes: 60},
}

// DefaultInterval is the interval selected when a client does not ask for one.
const DefaultInterval = 5
