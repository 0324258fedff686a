// Package ict detects institutional order-flow patterns: order blocks,
// fair value gaps, break of structure, breaker blocks, and market maker
// accumulation/distribution models.
package ict

import (
	"sort"
	"strconv"
	"sync"

	"github.com/quantfold/ictsignal/models"
)

// SignalType identifies an ICT pattern signal.
type SignalType string

const (
	BullishBreaker SignalType = "bullish_breaker"
	BearishBreaker SignalType = "bearish_breaker"
	FVGBullish     SignalType = "fvg_bullish"
	FVGBearish     SignalType = "fvg_bearish"
	MMBuyModel     SignalType = "mm_buy_model"
	MMSellModel    SignalType = "mm_sell_model"
	BOSBullish     SignalType = "bos_bullish"
	BOSBearish     SignalType = "bos_bearish"
	MSSBullish     SignalType = "mss_bullish"
	MSSBearish     SignalType = "mss_bearish"
)

// OrderBlock is a candle range believed to mark institutional entry. Once
// price trades through it against its type it becomes a breaker.
type OrderBlock struct {
	High             float64
	Low              float64
	Timestamp        int64
	Type             string // bullish or bearish
	Broken           bool
	BreakerConfirmed bool
}

// FairValueGap is a three-candle price imbalance.
type FairValueGap struct {
	High           float64
	Low            float64
	StartTimestamp int64
	EndTimestamp   int64
	Direction      string // bullish or bearish
	Filled         bool
	FillPrice      float64
}

// MarketStructure tracks swing points and BOS/MSS confirmation state.
type MarketStructure struct {
	Trend              string
	LastSwingHigh      float64
	LastSwingLow       float64
	SwingHighTimestamp int64
	SwingLowTimestamp  int64
	BOSConfirmed       bool
	BOSDirection       string
	MSSConfirmed       bool
	MSSDirection       string
}

// SignalResult is one detected ICT pattern with trade levels.
type SignalResult struct {
	Type          SignalType
	Strength      float64 // 0-100
	Confidence    float64 // 0-100
	Price         float64
	EntryLow      float64
	EntryHigh     float64
	StopLoss      float64
	TakeProfit    float64
	Rationale     []string
	MarketPhase   string
	LiquidityPool float64
}

// LiquidityPools maps order-block levels to resting liquidity by side.
type LiquidityPools struct {
	BuySide  map[string]float64 // bearish block highs (resistance)
	SellSide map[string]float64 // bullish block lows (support)
}

// Bias summarizes the detector's structure state.
type Bias struct {
	Trend        string
	BOSStatus    string // confirmed or pending
	BOSDirection string
	MSSStatus    string
	MSSDirection string
}

// Retention caps keep long-lived per-symbol detectors bounded.
const (
	maxOrderBlocks   = 100
	maxFairValueGaps = 200
)

const minCandles = 50

// Detector holds per-symbol ICT state. Safe for concurrent use.
type Detector struct {
	mu            sync.Mutex
	orderBlocks   []OrderBlock
	fairValueGaps []FairValueGap
	structure     MarketStructure
}

func NewDetector() *Detector {
	return &Detector{structure: MarketStructure{Trend: "neutral"}}
}

// Analyze scans a candle series for ICT patterns. Returns at most the top 3
// signals ranked by strength*confidence; fewer than 50 candles yields none.
func (d *Detector) Analyze(candles []models.Candle) []SignalResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(candles) < minCandles {
		return nil
	}

	d.detectOrderBlocks(candles)
	d.detectFairValueGaps(candles)

	var results []SignalResult
	results = append(results, d.analyzeMarketStructure(candles)...)
	results = append(results, d.detectBreakerBlocks(candles)...)
	results = append(results, d.analyzeMarketMakerModel(candles)...)

	return rankAndFilter(results)
}

func tail(candles []models.Candle, n int) []models.Candle {
	if len(candles) <= n {
		return candles
	}
	return candles[len(candles)-n:]
}

// detectOrderBlocks marks the prior candle's range as an order block when
// the current close moves 2% or more against it.
func (d *Detector) detectOrderBlocks(candles []models.Candle) {
	recent := tail(candles, 20)

	for i := 1; i < len(recent); i++ {
		current := recent[i]
		previous := recent[i-1]

		if current.Close < previous.Close*0.98 {
			d.appendOrderBlock(OrderBlock{
				High:      previous.High,
				Low:       previous.Low,
				Timestamp: current.Timestamp,
				Type:      "bearish",
			})
		} else if current.Close > previous.Close*1.02 {
			d.appendOrderBlock(OrderBlock{
				High:      previous.High,
				Low:       previous.Low,
				Timestamp: current.Timestamp,
				Type:      "bullish",
			})
		}
	}
}

func (d *Detector) appendOrderBlock(block OrderBlock) {
	d.orderBlocks = append(d.orderBlocks, block)
	if len(d.orderBlocks) > maxOrderBlocks {
		d.orderBlocks = d.orderBlocks[len(d.orderBlocks)-maxOrderBlocks:]
	}
}

// detectFairValueGaps records three-candle imbalances of 0.1% or more.
func (d *Detector) detectFairValueGaps(candles []models.Candle) {
	for i := 2; i < len(candles); i++ {
		current := candles[i]
		prev := candles[i-2]

		if current.Low > prev.Low*1.001 {
			d.appendFVG(FairValueGap{
				High:           current.Low,
				Low:            prev.Low,
				StartTimestamp: prev.Timestamp,
				EndTimestamp:   current.Timestamp,
				Direction:      "bullish",
			})
		} else if current.High < prev.High*0.999 {
			d.appendFVG(FairValueGap{
				High:           prev.High,
				Low:            current.High,
				StartTimestamp: prev.Timestamp,
				EndTimestamp:   current.Timestamp,
				Direction:      "bearish",
			})
		}
	}
}

func (d *Detector) appendFVG(gap FairValueGap) {
	d.fairValueGaps = append(d.fairValueGaps, gap)
	if len(d.fairValueGaps) > maxFairValueGaps {
		d.fairValueGaps = d.fairValueGaps[len(d.fairValueGaps)-maxFairValueGaps:]
	}
}

// analyzeMarketStructure scans the last 10 candles for swing extremes and
// confirms BOS when a new swing breaks the most extreme unbroken
// opposite-type order block by at least 0.1%.
func (d *Detector) analyzeMarketStructure(candles []models.Candle) []SignalResult {
	var results []SignalResult

	recent := tail(candles, 10)
	if len(recent) < 10 {
		return results
	}

	for i := 2; i < len(recent)-2; i++ {
		current := recent[i]

		if isSwingHigh(recent, i) {
			d.structure.LastSwingHigh = current.High
			d.structure.SwingHighTimestamp = current.Timestamp

			if d.checkBullishBOS() {
				results = append(results, SignalResult{
					Type:          BOSBullish,
					Strength:      75,
					Confidence:    80,
					Price:         current.High,
					EntryLow:      current.Low,
					EntryHigh:     current.High,
					StopLoss:      current.Low * 0.995,
					TakeProfit:    current.High * 1.02,
					Rationale:     []string{"Bullish Break of Structure confirmed", "Higher high established"},
					LiquidityPool: current.High,
				})
				d.structure.BOSConfirmed = true
				d.structure.BOSDirection = "bullish"
			}
		} else if isSwingLow(recent, i) {
			d.structure.LastSwingLow = current.Low
			d.structure.SwingLowTimestamp = current.Timestamp

			if d.checkBearishBOS() {
				results = append(results, SignalResult{
					Type:          BOSBearish,
					Strength:      75,
					Confidence:    80,
					Price:         current.Low,
					EntryLow:      current.Low,
					EntryHigh:     current.High,
					StopLoss:      current.High * 1.005,
					TakeProfit:    current.Low * 0.98,
					Rationale:     []string{"Bearish Break of Structure confirmed", "Lower low established"},
					LiquidityPool: current.Low,
				})
				d.structure.BOSConfirmed = true
				d.structure.BOSDirection = "bearish"
			}
		}
	}

	return results
}

func isSwingHigh(candles []models.Candle, i int) bool {
	for j := i - 2; j <= i+2; j++ {
		if candles[i].High < candles[j].High {
			return false
		}
	}
	return true
}

func isSwingLow(candles []models.Candle, i int) bool {
	for j := i - 2; j <= i+2; j++ {
		if candles[i].Low > candles[j].Low {
			return false
		}
	}
	return true
}

func (d *Detector) checkBullishBOS() bool {
	resistance := 0.0
	found := false
	for _, block := range d.orderBlocks {
		if block.Type == "bearish" && !block.Broken && (!found || block.High > resistance) {
			resistance = block.High
			found = true
		}
	}
	return found && d.structure.LastSwingHigh > resistance*1.001
}

func (d *Detector) checkBearishBOS() bool {
	support := 0.0
	found := false
	for _, block := range d.orderBlocks {
		if block.Type == "bullish" && !block.Broken && (!found || block.Low < support) {
			support = block.Low
			found = true
		}
	}
	return found && d.structure.LastSwingLow < support*0.999
}

// detectBreakerBlocks flips order blocks the current close traded through
// into high-confidence reversal signals.
func (d *Detector) detectBreakerBlocks(candles []models.Candle) []SignalResult {
	var results []SignalResult

	recent := tail(candles, 20)
	if len(recent) < 3 {
		return results
	}
	currentPrice := recent[len(recent)-1].Close

	start := 0
	if len(d.orderBlocks) > 10 {
		start = len(d.orderBlocks) - 10
	}

	for idx := start; idx < len(d.orderBlocks); idx++ {
		block := &d.orderBlocks[idx]
		if block.Broken {
			continue
		}

		if block.Type == "bearish" && currentPrice > block.High {
			block.Broken = true
			block.BreakerConfirmed = true

			results = append(results, SignalResult{
				Type:       BullishBreaker,
				Strength:   85,
				Confidence: 90,
				Price:      currentPrice,
				EntryLow:   block.Low,
				EntryHigh:  block.High,
				StopLoss:   block.Low * 0.997,
				TakeProfit: block.High * 1.03,
				Rationale: []string{
					"Bearish order block broken to upside",
					"Support-resistance role reversal confirmed",
					"High-probability bullish setup",
				},
				MarketPhase: "Smart Money Reversal (SMR)",
			})
		} else if block.Type == "bullish" && currentPrice < block.Low {
			block.Broken = true
			block.BreakerConfirmed = true

			results = append(results, SignalResult{
				Type:       BearishBreaker,
				Strength:   85,
				Confidence: 90,
				Price:      currentPrice,
				EntryLow:   block.Low,
				EntryHigh:  block.High,
				StopLoss:   block.High * 1.003,
				TakeProfit: block.Low * 0.97,
				Rationale: []string{
					"Bullish order block broken to downside",
					"Support-resistance role reversal confirmed",
					"High-probability bearish setup",
				},
				MarketPhase: "Smart Money Reversal (SMR)",
			})
		}
	}

	return results
}

// analyzeMarketMakerModel looks for accumulation (five higher lows plus a
// range breakout) or the mirrored distribution pattern in the last 30
// candles.
func (d *Detector) analyzeMarketMakerModel(candles []models.Candle) []SignalResult {
	var results []SignalResult

	recent := tail(candles, 30)
	if len(recent) < 30 {
		return results
	}

	currentPrice := recent[len(recent)-1].Close
	var avgPrice, lowest, highest float64
	lowest = recent[0].Low
	highest = recent[0].High
	for _, c := range recent {
		avgPrice += c.Close
		if c.Low < lowest {
			lowest = c.Low
		}
		if c.High > highest {
			highest = c.High
		}
	}
	avgPrice /= float64(len(recent))

	if detectBuyModel(recent) {
		results = append(results, SignalResult{
			Type:       MMBuyModel,
			Strength:   90,
			Confidence: 85,
			Price:      currentPrice,
			EntryLow:   avgPrice * 0.99,
			EntryHigh:  avgPrice,
			StopLoss:   lowest * 0.997,
			TakeProfit: avgPrice * 1.05,
			Rationale: []string{
				"Market Maker Buy Model phase detected",
				"Accumulation to distribution pattern identified",
				"Smart Money accumulation in progress",
			},
			MarketPhase: "Accumulation to Distribution",
		})
	} else if detectSellModel(recent) {
		results = append(results, SignalResult{
			Type:       MMSellModel,
			Strength:   90,
			Confidence: 85,
			Price:      currentPrice,
			EntryLow:   avgPrice,
			EntryHigh:  avgPrice * 1.01,
			StopLoss:   highest * 1.003,
			TakeProfit: avgPrice * 0.95,
			Rationale: []string{
				"Market Maker Sell Model phase detected",
				"Distribution to accumulation pattern identified",
				"Smart Money distribution in progress",
			},
			MarketPhase: "Distribution to Accumulation",
		})
	}

	return results
}

func detectBuyModel(candles []models.Candle) bool {
	lows := tail(candles, 5)
	for i := 1; i < len(lows); i++ {
		if lows[i].Low < lows[i-1].Low*0.9995 {
			return false
		}
	}

	recentHigh := 0.0
	for _, c := range tail(candles, 10) {
		if c.High > recentHigh {
			recentHigh = c.High
		}
	}
	return candles[len(candles)-1].Close > recentHigh*0.998
}

func detectSellModel(candles []models.Candle) bool {
	highs := tail(candles, 5)
	for i := 1; i < len(highs); i++ {
		if highs[i].High > highs[i-1].High*1.0005 {
			return false
		}
	}

	tenth := tail(candles, 10)
	recentLow := tenth[0].Low
	for _, c := range tenth {
		if c.Low < recentLow {
			recentLow = c.Low
		}
	}
	return candles[len(candles)-1].Close < recentLow*1.002
}

// rankAndFilter orders signals by strength*confidence, drops duplicate
// types, and keeps the top 3.
func rankAndFilter(signals []SignalResult) []SignalResult {
	if len(signals) == 0 {
		return nil
	}

	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Strength*signals[i].Confidence > signals[j].Strength*signals[j].Confidence
	})

	seen := make(map[SignalType]bool)
	var unique []SignalResult
	for _, s := range signals {
		if !seen[s.Type] && len(unique) < 3 {
			unique = append(unique, s)
			seen[s.Type] = true
		}
	}
	return unique
}

// Pools lists resting liquidity implied by unbroken order blocks.
func (d *Detector) Pools() LiquidityPools {
	d.mu.Lock()
	defer d.mu.Unlock()

	pools := LiquidityPools{
		BuySide:  make(map[string]float64),
		SellSide: make(map[string]float64),
	}
	for _, block := range d.orderBlocks {
		key := blockKey(block.Timestamp)
		if block.Type == "bearish" {
			pools.BuySide[key] = block.High
		} else {
			pools.SellSide[key] = block.Low
		}
	}
	return pools
}

func blockKey(ts int64) string {
	return "block_" + strconv.FormatInt(ts, 10)
}

// TimeframeBias reports the current structure state.
func (d *Detector) TimeframeBias() Bias {
	d.mu.Lock()
	defer d.mu.Unlock()

	bias := Bias{
		Trend:        d.structure.Trend,
		BOSStatus:    "pending",
		BOSDirection: "none",
		MSSStatus:    "pending",
		MSSDirection: "none",
	}
	if d.structure.BOSConfirmed {
		bias.BOSStatus = "confirmed"
		bias.BOSDirection = d.structure.BOSDirection
	}
	if d.structure.MSSConfirmed {
		bias.MSSStatus = "confirmed"
		bias.MSSDirection = d.structure.MSSDirection
	}
	return bias
}

// Counts returns the retained order-block and fair-value-gap totals.
func (d *Detector) Counts() (orderBlocks, fairValueGaps int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.orderBlocks), len(d.fairValueGaps)
}
