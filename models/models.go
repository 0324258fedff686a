package models

import (
	"time"
)

// Config holds runtime settings loaded from the environment.
type Config struct {
	Addr             string
	LogLevel         string
	CacheTTL         int // seconds
	CandleLimit      int
	ProviderBaseURL  string
	ProviderAPIKey   string
	RequestTimeout   int // seconds
	DatabaseURL      string
	TelegramToken    string
	TelegramChatID   int64
	SignalRefreshSec int
	RateLimitPerSec  float64
}

// Interval identifies a candle timeframe
type Interval string

const (
	IntervalM15 Interval = "15m"
	IntervalH1  Interval = "1h"
	IntervalD1  Interval = "1d"
)

// Candle represents a single OHLCV price candle
type Candle struct {
	Timestamp int64   `json:"t"` // unix seconds
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
}

// MiniSignal is a per-timeframe directional vote
type MiniSignal string

const (
	MiniBullish MiniSignal = "Bullish"
	MiniBearish MiniSignal = "Bearish"
	MiniNeutral MiniSignal = "Neutral"
)

// Recommendation is the final trading call
type Recommendation string

const (
	RecommendationBuy     Recommendation = "Buy"
	RecommendationSell    Recommendation = "Sell"
	RecommendationNeutral Recommendation = "Neutral"
)

// SignalBreakdown holds the per-timeframe mini signals
type SignalBreakdown struct {
	D1  MiniSignal `json:"d1"`
	H1  MiniSignal `json:"h1"`
	M15 MiniSignal `json:"m15"`
}

// SignalResult is the final output of the signal engine
type SignalResult struct {
	Symbol         string          `json:"symbol"`
	Recommendation Recommendation  `json:"recommendation"`
	Strength       int             `json:"strength"` // 0-100
	Breakdown      SignalBreakdown `json:"breakdown"`
	Rationale      []string        `json:"rationale"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// WatchlistItem is a tracked symbol
type WatchlistItem struct {
	ID      string    `json:"id"`
	Symbol  string    `json:"symbol"`
	Note    string    `json:"note,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// Alert fires when a generated signal matches its conditions
type Alert struct {
	ID          string         `json:"id"`
	Symbol      string         `json:"symbol"`
	Direction   Recommendation `json:"direction"`    // Buy, Sell, or Neutral for any
	MinStrength int            `json:"min_strength"` // 0-100
	Active      bool           `json:"active"`
	CreatedAt   time.Time      `json:"created_at"`
	TriggeredAt *time.Time     `json:"triggered_at,omitempty"`
}

// JournalEntry is a trade journal record
type JournalEntry struct {
	ID         string     `json:"id"`
	Symbol     string     `json:"symbol"`
	Side       string     `json:"side"` // long or short
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  float64    `json:"exit_price,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
}
