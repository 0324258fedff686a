// Package ai scores signal quality with statistical heuristics: market
// regime classification, regime alignment, false-signal risk, and the
// confluence between ICT and SMC detections. No external model is used.
package ai

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
)

// Regime classifies the prevailing market condition.
type Regime string

const (
	RegimeStrongTrendUp   Regime = "strong_trend_up"
	RegimeTrendUp         Regime = "trend_up"
	RegimeRanging         Regime = "ranging"
	RegimeTrendDown       Regime = "trend_down"
	RegimeStrongTrendDown Regime = "strong_trend_down"
	RegimeVolatile        Regime = "volatile"
	RegimeUnknown         Regime = "unknown"
)

// Title renders a regime as a display name, e.g. "Strong Trend Up".
func (r Regime) Title() string {
	parts := strings.Split(string(r), "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

// Quality buckets a success probability.
type Quality string

const (
	QualityExcellent Quality = "excellent" // 90-100
	QualityGood      Quality = "good"      // 75-89
	QualityModerate  Quality = "moderate"  // 50-74
	QualityPoor      Quality = "poor"      // 25-49
	QualityReject    Quality = "reject"    // 0-24
)

// Candle is the minimal OHLCV view the scorer needs.
type Candle struct {
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Score is the full confidence assessment for one signal.
type Score struct {
	SuccessProbability float64
	Quality            Quality
	Regime             Regime
	RegimeAlignment    float64
	FalseSignalRisk    float64
	ConfluenceBonus    float64
	AdjustedStrength   float64
	Rationale          []string
	Recommendations    []string
}

// PatternPerformance tracks win rates for a pattern on a symbol/timeframe.
type PatternPerformance struct {
	PatternType string
	Symbol      string
	Timeframe   string
	Total       int
	Successes   int
	Failures    int
	WinRate     float64
	AvgReturnR  float64
	LastUpdated time.Time
}

// WinRateProvider supplies an external historical win rate, e.g. from the
// performance tracker. Returning false falls back to in-memory records.
type WinRateProvider interface {
	WinRate(patternType, symbol, timeframe string) (float64, int, bool)
}

// Enhancer scores signals. Safe for concurrent use.
type Enhancer struct {
	mu          sync.Mutex
	performance map[string]*PatternPerformance
	winRates    WinRateProvider
}

func NewEnhancer() *Enhancer {
	return &Enhancer{performance: make(map[string]*PatternPerformance)}
}

// SetWinRateProvider wires an external win-rate source.
func (e *Enhancer) SetWinRateProvider(p WinRateProvider) {
	e.mu.Lock()
	e.winRates = p
	e.mu.Unlock()
}

// Enhance scores one signal against current market conditions.
// ictTypes and smcTypes carry the signal-type names of the detections used
// for confluence, e.g. "bullish_breaker" or "liquidity_sweep_bearish".
func (e *Enhancer) Enhance(candles []Candle, patternType string, baseStrength, baseConfidence float64, symbol, timeframe string, ictTypes, smcTypes []string) Score {
	regime := ClassifyRegime(candles)
	alignment := regimeAlignment(patternType, regime, baseStrength)
	perf := e.patternPerformance(patternType, symbol, timeframe)
	risk := falseSignalRisk(candles, regime)
	confluence := confluenceBonus(ictTypes, smcTypes)

	probability := successProbability(baseConfidence, perf.WinRate, alignment, risk, confluence)
	quality := qualityRating(probability)

	adjusted := baseStrength + confluence
	if adjusted > 100 {
		adjusted = 100
	}

	return Score{
		SuccessProbability: probability,
		Quality:            quality,
		Regime:             regime,
		RegimeAlignment:    alignment,
		FalseSignalRisk:    risk,
		ConfluenceBonus:    confluence,
		AdjustedStrength:   adjusted,
		Rationale:          buildRationale(regime, alignment, perf, risk, confluence),
		Recommendations:    buildRecommendations(quality, regime, risk),
	}
}

// ClassifyRegime labels the market using trend slope, volatility, and
// directional movement over the series. Under 20 candles it is unknown.
func ClassifyRegime(candles []Candle) Regime {
	if len(candles) < 20 {
		return RegimeUnknown
	}

	closes := make([]float64, len(candles))
	ranges := make([]float64, len(candles))
	var meanClose float64
	for i, c := range candles {
		closes[i] = c.Close
		ranges[i] = c.High - c.Low
		meanClose += c.Close
	}
	meanClose /= float64(len(closes))

	slope := regressionSlope(closes)
	slopeNorm := slope / meanClose * 100

	recentVol := stddev(ranges[len(ranges)-10:]) / meanClose * 100
	avgVol := stddev(ranges) / meanClose * 100

	directionalMove := math.Abs(closes[len(closes)-1]-closes[len(closes)-10]) / meanClose * 100

	last20 := candles[len(candles)-20:]
	recentHigh := last20[0].High
	recentLow := last20[0].Low
	for _, c := range last20 {
		if c.High > recentHigh {
			recentHigh = c.High
		}
		if c.Low < recentLow {
			recentLow = c.Low
		}
	}
	priceRange := (recentHigh - recentLow) / recentLow * 100

	if recentVol > avgVol*1.5 {
		return RegimeVolatile
	}
	if math.Abs(slopeNorm) < 0.1 && priceRange < 3 {
		return RegimeRanging
	}
	switch {
	case slopeNorm > 0.3 && directionalMove > 2:
		return RegimeStrongTrendUp
	case slopeNorm > 0.1:
		return RegimeTrendUp
	case slopeNorm < -0.3 && directionalMove > 2:
		return RegimeStrongTrendDown
	case slopeNorm < -0.1:
		return RegimeTrendDown
	}
	return RegimeRanging
}

// regressionSlope fits y = a + bx by least squares and returns b.
func regressionSlope(values []float64) float64 {
	n := float64(len(values))
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// stddev is the population standard deviation.
func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

func regimeAlignment(patternType string, regime Regime, strength float64) float64 {
	pattern := strings.ToLower(patternType)
	isBullish := strings.Contains(pattern, "bullish") || strings.Contains(pattern, "buy")
	isBearish := strings.Contains(pattern, "bearish") || strings.Contains(pattern, "sell")

	alignment := 50.0

	switch regime {
	case RegimeStrongTrendUp, RegimeTrendUp:
		if isBullish {
			alignment = 75
			if regime == RegimeStrongTrendUp {
				alignment = 85
			}
		} else if isBearish {
			alignment = 25
		}
	case RegimeStrongTrendDown, RegimeTrendDown:
		if isBearish {
			alignment = 75
			if regime == RegimeStrongTrendDown {
				alignment = 85
			}
		} else if isBullish {
			alignment = 25
		}
	case RegimeRanging:
		if strings.Contains(pattern, "breaker") || strings.Contains(pattern, "mitigation") {
			alignment = 80
		} else {
			alignment = 60
		}
	case RegimeVolatile:
		alignment = 40
	}

	alignment *= 0.5 + strength/200
	return clamp(alignment, 0, 100)
}

func (e *Enhancer) patternPerformance(patternType, symbol, timeframe string) PatternPerformance {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.winRates != nil {
		if rate, samples, ok := e.winRates.WinRate(patternType, symbol, timeframe); ok {
			return PatternPerformance{
				PatternType: patternType,
				Symbol:      symbol,
				Timeframe:   timeframe,
				Total:       samples,
				WinRate:     rate,
				AvgReturnR:  1.0,
				LastUpdated: time.Now().UTC(),
			}
		}
	}

	if perf, ok := e.performance[perfKey(patternType, symbol, timeframe)]; ok {
		return *perf
	}
	return PatternPerformance{
		PatternType: patternType,
		Symbol:      symbol,
		Timeframe:   timeframe,
		WinRate:     50,
		AvgReturnR:  1.0,
		LastUpdated: time.Now().UTC(),
	}
}

func perfKey(patternType, symbol, timeframe string) string {
	return patternType + "_" + symbol + "_" + timeframe
}

// falseSignalRisk accumulates risk points from low volume, choppy closes,
// wide spreads, and volatile regimes. Capped at 100.
func falseSignalRisk(candles []Candle, regime Regime) float64 {
	if len(candles) == 0 {
		return 0
	}

	var risk float64

	var avgVolume, recentVolume float64
	for _, c := range candles {
		avgVolume += c.Volume
	}
	avgVolume /= float64(len(candles))

	last5 := candles
	if len(last5) > 5 {
		last5 = last5[len(last5)-5:]
	}
	for _, c := range last5 {
		recentVolume += c.Volume
	}
	recentVolume /= float64(len(last5))

	if recentVolume < avgVolume*0.5 {
		risk += 20
	}

	if len(candles) >= 10 {
		changes := 0
		prevDirection := 0
		n := len(candles)
		for i := 1; i < 10; i++ {
			direction := -1
			if candles[n-i].Close > candles[n-i-1].Close {
				direction = 1
			}
			if prevDirection != 0 && direction != prevDirection {
				changes++
			}
			prevDirection = direction
		}
		if changes >= 4 {
			risk += 25
		}
	}

	var avgSpread, recentSpread float64
	for _, c := range candles {
		avgSpread += (c.High - c.Low) / c.Close
	}
	avgSpread /= float64(len(candles))

	last3 := candles
	if len(last3) > 3 {
		last3 = last3[len(last3)-3:]
	}
	for _, c := range last3 {
		recentSpread += (c.High - c.Low) / c.Close
	}
	recentSpread /= float64(len(last3))

	if recentSpread > avgSpread*1.5 {
		risk += 15
	}

	if regime == RegimeVolatile {
		risk += 20
	}

	if risk > 100 {
		risk = 100
	}
	return risk
}

// confluenceBonus rewards ICT and SMC agreement and penalizes conflict.
// Result is clamped to [0, 20].
func confluenceBonus(ictTypes, smcTypes []string) float64 {
	if len(ictTypes) == 0 || len(smcTypes) == 0 {
		return 0
	}

	ictBullish := containsDirection(ictTypes, "bullish", "buy")
	ictBearish := containsDirection(ictTypes, "bearish", "sell")
	smcBullish := containsDirection(smcTypes, "bullish", "buy")
	smcBearish := containsDirection(smcTypes, "bearish", "sell")

	var bonus float64
	switch {
	case ictBullish && smcBullish:
		bonus += 12
	case ictBearish && smcBearish:
		bonus += 12
	case (ictBullish && smcBearish) || (ictBearish && smcBullish):
		bonus -= 5
	}

	if len(ictTypes) >= 2 && len(smcTypes) >= 1 {
		bonus += 5
	}

	return clamp(bonus, 0, 20)
}

func containsDirection(types []string, words ...string) bool {
	for _, t := range types {
		lower := strings.ToLower(t)
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
	}
	return false
}

func successProbability(baseConfidence, winRate, alignment, risk, confluence float64) float64 {
	probability := baseConfidence*0.30 +
		winRate*0.25 +
		alignment*0.25 +
		(100-risk)*0.20
	probability += confluence
	return clamp(probability, 0, 100)
}

func qualityRating(probability float64) Quality {
	switch {
	case probability >= 90:
		return QualityExcellent
	case probability >= 75:
		return QualityGood
	case probability >= 50:
		return QualityModerate
	case probability >= 25:
		return QualityPoor
	default:
		return QualityReject
	}
}

func buildRationale(regime Regime, alignment float64, perf PatternPerformance, risk, confluence float64) []string {
	rationale := []string{fmt.Sprintf("Market regime: %s", regime.Title())}

	switch {
	case alignment >= 75:
		rationale = append(rationale, fmt.Sprintf("Strong regime alignment (%.0f%%)", alignment))
	case alignment >= 50:
		rationale = append(rationale, fmt.Sprintf("Moderate regime alignment (%.0f%%)", alignment))
	default:
		rationale = append(rationale, fmt.Sprintf("Weak regime alignment (%.0f%%) - counter-trend risk", alignment))
	}

	if perf.Total > 10 {
		rationale = append(rationale,
			fmt.Sprintf("Historical win rate: %.1f%% (%d samples)", perf.WinRate, perf.Total))
	}

	switch {
	case risk > 50:
		rationale = append(rationale, fmt.Sprintf("High false signal risk: %.0f%%", risk))
	case risk > 25:
		rationale = append(rationale, fmt.Sprintf("Moderate risk detected: %.0f%%", risk))
	default:
		rationale = append(rationale, fmt.Sprintf("Low false signal risk: %.0f%%", risk))
	}

	if confluence > 5 {
		rationale = append(rationale, fmt.Sprintf("Strong ICT+SMC confluence (+%.0f%%)", confluence))
	} else if confluence > 0 {
		rationale = append(rationale, fmt.Sprintf("Some confluence detected (+%.0f%%)", confluence))
	}

	return rationale
}

func buildRecommendations(quality Quality, regime Regime, risk float64) []string {
	var recs []string

	switch quality {
	case QualityExcellent, QualityGood:
		recs = append(recs, "High-confidence setup - consider full position size")
		if regime == RegimeStrongTrendUp || regime == RegimeStrongTrendDown {
			recs = append(recs, "Trend aligned - consider holding longer")
		}
	case QualityModerate:
		recs = append(recs, "Moderate setup - consider reduced position size")
		if risk > 40 {
			recs = append(recs, "Wait for confirmation before entry")
		}
	case QualityPoor:
		recs = append(recs, "Weak setup - consider skipping or paper trading")
		if regime == RegimeVolatile {
			recs = append(recs, "Volatile conditions - reduce risk exposure")
		}
	default:
		recs = append(recs, "Signal rejected - conditions unfavorable")
		recs = append(recs, "Wait for better setup or different market conditions")
	}

	return recs
}

// RecordOutcome updates the in-memory performance record for a pattern
// after trade completion.
func (e *Enhancer) RecordOutcome(patternType, symbol, timeframe string, success bool, returnR float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := perfKey(patternType, symbol, timeframe)
	perf, ok := e.performance[key]
	if !ok {
		perf = &PatternPerformance{
			PatternType: patternType,
			Symbol:      symbol,
			Timeframe:   timeframe,
			WinRate:     50,
			AvgReturnR:  1.0,
		}
		e.performance[key] = perf
	}

	perf.Total++
	if success {
		perf.Successes++
	} else {
		perf.Failures++
	}
	perf.WinRate = float64(perf.Successes) / float64(perf.Total) * 100

	if perf.Total == 1 {
		perf.AvgReturnR = returnR
	} else {
		perf.AvgReturnR = (perf.AvgReturnR*float64(perf.Total-1) + returnR) / float64(perf.Total)
	}
	perf.LastUpdated = time.Now().UTC()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
