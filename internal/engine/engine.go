// Package engine aggregates multi-timeframe technical analysis, ICT and SMC
// pattern detection, session timing, and AI confidence scoring into one
// trading recommendation per symbol.
package engine

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantfold/ictsignal/internal/engine/ai"
	"github.com/quantfold/ictsignal/internal/engine/ict"
	"github.com/quantfold/ictsignal/internal/engine/killzone"
	"github.com/quantfold/ictsignal/internal/engine/phase1"
	"github.com/quantfold/ictsignal/internal/engine/smc"
	"github.com/quantfold/ictsignal/internal/indicators"
	"github.com/quantfold/ictsignal/models"
)

// Timeframe weights for the final recommendation.
const (
	weightM15 = 0.35
	weightH1  = 0.35
	weightD1  = 0.30
)

// Engine is the signal orchestrator. Detector instances are scoped per
// symbol and reused across calls; everything else is stateless per call.
type Engine struct {
	mu     sync.Mutex
	ict    map[string]*ict.Detector
	smc    map[string]*smc.Detector
	phase1 *phase1.Enhancer
	ai     *ai.Enhancer
	logger zerolog.Logger
}

func New() *Engine {
	return &Engine{
		ict:    make(map[string]*ict.Detector),
		smc:    make(map[string]*smc.Detector),
		phase1: phase1.NewEnhancer(),
		ai:     ai.NewEnhancer(),
		logger: log.With().Str("component", "signal_engine").Logger(),
	}
}

// AI exposes the confidence scorer, e.g. to wire a win-rate provider or
// record trade outcomes.
func (e *Engine) AI() *ai.Enhancer {
	return e.ai
}

func (e *Engine) detectorsFor(symbol string) (*ict.Detector, *smc.Detector) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ictDet, ok := e.ict[symbol]
	if !ok {
		ictDet = ict.NewDetector()
		e.ict[symbol] = ictDet
	}
	smcDet, ok := e.smc[symbol]
	if !ok {
		smcDet = smc.NewDetector()
		e.smc[symbol] = smcDet
	}
	return ictDet, smcDet
}

// EvaluateTimeframe scores one candle series with SMA, RSI, and MACD checks
// on the latest closed candle. Under 200 candles, or with indicators still
// warming up, it degrades to a zero-contribution Neutral.
func (e *Engine) EvaluateTimeframe(candles []models.Candle, interval models.Interval) (models.MiniSignal, float64, string) {
	if len(candles) < 200 {
		return models.MiniNeutral, 0, fmt.Sprintf("%s: Insufficient data", interval)
	}

	set := indicators.CalculateAll(candles)
	idx := len(candles) - 1

	closePrice := set.Closes[idx]
	sma50 := set.SMA50[idx]
	sma200 := set.SMA200[idx]
	rsi := set.RSI[idx]
	macdLine := set.MACDLine[idx]
	macdSignal := set.MACDSignal[idx]
	macdHist := set.MACDHistogram[idx]

	for _, v := range []float64{sma50, sma200, rsi, macdLine, macdSignal} {
		if !indicators.Defined(v) {
			return models.MiniNeutral, 0, fmt.Sprintf("%s: Indicators not ready", interval)
		}
	}

	var bullish, bearish int
	var parts []string

	// 1. Trend: SMA50 vs SMA200
	switch {
	case sma50 > sma200:
		bullish += 30
		parts = append(parts, "SMA50>200 (Bullish trend)")
	case sma50 < sma200:
		bearish += 30
		parts = append(parts, "SMA50<200 (Bearish trend)")
	default:
		parts = append(parts, "SMA50=200 (Neutral trend)")
	}

	// 2. Location: close vs SMA50
	if closePrice > sma50 {
		bullish += 25
		parts = append(parts, fmt.Sprintf("Price>$%.2f (Above SMA50)", sma50))
	} else if closePrice < sma50 {
		bearish += 25
		parts = append(parts, fmt.Sprintf("Price<$%.2f (Below SMA50)", sma50))
	}

	// 3. Momentum: RSI zones
	switch {
	case rsi < 30:
		bullish += 25
		parts = append(parts, fmt.Sprintf("RSI %.1f (Oversold)", rsi))
	case rsi > 70:
		bearish += 25
		parts = append(parts, fmt.Sprintf("RSI %.1f (Overbought)", rsi))
	case rsi >= 40 && rsi <= 60:
		parts = append(parts, fmt.Sprintf("RSI %.1f (Neutral)", rsi))
	case rsi > 60:
		bearish += 10
		parts = append(parts, fmt.Sprintf("RSI %.1f (Slightly overbought)", rsi))
	default:
		bullish += 10
		parts = append(parts, fmt.Sprintf("RSI %.1f (Slightly oversold)", rsi))
	}

	// 4. MACD cross
	if macdLine > macdSignal && macdHist > 0 {
		bullish += 20
		parts = append(parts, "MACD bullish cross")
	} else if macdLine < macdSignal && macdHist < 0 {
		bearish += 20
		parts = append(parts, "MACD bearish cross")
	} else {
		parts = append(parts, "MACD neutral")
	}

	net := bullish - bearish

	mini := models.MiniNeutral
	if net > 30 {
		mini = models.MiniBullish
	} else if net < -30 {
		mini = models.MiniBearish
	}

	contribution := float64(net)
	if contribution < 0 {
		contribution = -contribution
	}
	if contribution > 100 {
		contribution = 100
	}

	rationale := fmt.Sprintf("%s: %s", interval, joinParts(parts))
	return mini, contribution, rationale
}

// confluence turns the per-timeframe votes into a preliminary direction
// and a bonus of 15 points per agreeing timeframe once at least two agree.
func confluence(signals ...models.MiniSignal) (models.Recommendation, float64) {
	bullish, bearish := 0, 0
	for _, s := range signals {
		switch s {
		case models.MiniBullish:
			bullish++
		case models.MiniBearish:
			bearish++
		}
	}
	if bullish >= 2 {
		return models.RecommendationBuy, 15 * float64(bullish)
	}
	if bearish >= 2 {
		return models.RecommendationSell, 15 * float64(bearish)
	}
	return models.RecommendationNeutral, 0
}

func joinParts(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

// GenerateSignal runs the full pipeline for a symbol. Malformed candle
// input is rejected with a validation error; missing data only degrades
// the result toward Neutral.
func (e *Engine) GenerateSignal(symbol string, candles15m, candles1h, candles1d []models.Candle, now time.Time) (*models.SignalResult, error) {
	for _, in := range []struct {
		candles  []models.Candle
		interval models.Interval
	}{
		{candles15m, models.IntervalM15},
		{candles1h, models.IntervalH1},
		{candles1d, models.IntervalD1},
	} {
		if err := models.ValidateCandles(in.candles, in.interval); err != nil {
			return nil, err
		}
	}

	// 1H gives ICT/SMC the best balance of noise and context.
	analysisCandles := candles1h
	if len(analysisCandles) == 0 {
		analysisCandles = candles15m
	}

	ictDet, smcDet := e.detectorsFor(symbol)

	ictSignals := ictDet.Analyze(analysisCandles)
	bias := ictDet.TimeframeBias()
	pools := ictDet.Pools()

	smcSignals := smcDet.Analyze(analysisCandles)
	liquidity := smcDet.Liquidity()

	m15Signal, m15Strength, m15Rationale := e.EvaluateTimeframe(candles15m, models.IntervalM15)
	h1Signal, h1Strength, h1Rationale := e.EvaluateTimeframe(candles1h, models.IntervalH1)
	d1Signal, d1Strength, d1Rationale := e.EvaluateTimeframe(candles1d, models.IntervalD1)

	weightedStrength := m15Strength*weightM15 + h1Strength*weightH1 + d1Strength*weightD1

	preliminary, confluenceBonus := confluence(m15Signal, h1Signal, d1Signal)

	phase1Bonus, phase1Rationale := e.phase1.CalculateEnhancement(
		analysisCandles,
		phase1.Pools{BuySide: pools.BuySide, SellSide: pools.SellSide},
		preliminary,
	)

	patternType := "neutral"
	baseStrength := weightedStrength
	baseConfidence := 50.0

	var strongestICT *ict.SignalResult
	if len(ictSignals) > 0 {
		strongestICT = &ictSignals[0]
		patternType = string(strongestICT.Type)
		baseStrength = strongestICT.Strength
		baseConfidence = strongestICT.Confidence
	}
	var strongestSMC *smc.SignalResult
	if len(smcSignals) > 0 {
		strongestSMC = &smcSignals[0]
		if strongestICT == nil {
			patternType = string(strongestSMC.Type)
			baseStrength = strongestSMC.Strength
			baseConfidence = strongestSMC.Confidence
		}
	}

	aiScore := e.ai.Enhance(
		toAICandles(analysisCandles),
		patternType,
		baseStrength,
		baseConfidence,
		symbol,
		string(models.IntervalH1),
		ictTypeNames(ictSignals),
		smcTypeNames(smcSignals),
	)

	finalStrength := weightedStrength + confluenceBonus + phase1Bonus +
		(aiScore.SuccessProbability-50)*0.3
	finalStrength = clamp(finalStrength, 0, 100)

	zoneInfo := killzone.Classify(now)
	shouldTrade, zoneReason := killzone.ShouldTrade(now, finalStrength)

	// Session timing adjusts strength before the neutrality checks so a
	// borderline off-hours signal can still be downgraded.
	if zoneInfo.IsActive && zoneInfo.OptimalForEntries {
		finalStrength = clamp(finalStrength+5, 0, 100)
	} else if zoneInfo.Zone == killzone.ZoneOffHours && !shouldTrade {
		finalStrength = clamp(finalStrength-15, 0, 100)
	}

	recommendation := preliminary
	if aiScore.Quality == ai.QualityPoor || aiScore.Quality == ai.QualityReject {
		if finalStrength < 50 {
			recommendation = models.RecommendationNeutral
		}
	}
	if finalStrength < 40 {
		recommendation = models.RecommendationNeutral
	}

	rationale := e.buildRationale(
		[]string{d1Rationale, h1Rationale, m15Rationale},
		zoneInfo,
		strongestICT,
		strongestSMC,
		len(liquidity.SweptPools),
		aiScore,
		phase1Rationale,
		bias,
	)
	if !shouldTrade {
		rationale = append(rationale, fmt.Sprintf("Timing Caution: %s", zoneReason))
	}

	e.logger.Debug().
		Str("symbol", symbol).
		Str("recommendation", string(recommendation)).
		Float64("strength", finalStrength).
		Int("ict_signals", len(ictSignals)).
		Int("smc_signals", len(smcSignals)).
		Msg("Signal generated")

	return &models.SignalResult{
		Symbol:         symbol,
		Recommendation: recommendation,
		Strength:       int(finalStrength),
		Breakdown: models.SignalBreakdown{
			D1:  d1Signal,
			H1:  h1Signal,
			M15: m15Signal,
		},
		Rationale: rationale,
		UpdatedAt: now.UTC(),
	}, nil
}

func (e *Engine) buildRationale(
	timeframeRationale []string,
	zoneInfo killzone.Info,
	strongestICT *ict.SignalResult,
	strongestSMC *smc.SignalResult,
	sweptCount int,
	aiScore ai.Score,
	phase1Rationale []string,
	bias ict.Bias,
) []string {
	rationale := append([]string{}, timeframeRationale...)

	zoneName := zoneInfo.Zone.Title()
	if zoneInfo.IsActive {
		rationale = append(rationale, fmt.Sprintf("Kill Zone: %s", zoneName))
		if zoneInfo.TimeRemaining > 0 {
			rationale = append(rationale,
				fmt.Sprintf("Time Remaining: %s", killzone.FormatMinutes(zoneInfo.TimeRemaining)))
		}
		rationale = append(rationale, fmt.Sprintf("Volatility: %s", titleWord(zoneInfo.VolatilityExpected)))
		if zoneInfo.OptimalForEntries {
			rationale = append(rationale, "Optimal entry window")
		}
	} else {
		rationale = append(rationale, fmt.Sprintf("Outside Kill Zone - %s", zoneName))
		if zoneInfo.TimeUntilNext > 0 {
			rationale = append(rationale,
				fmt.Sprintf("Next Kill Zone: %s", killzone.FormatMinutes(zoneInfo.TimeUntilNext)))
		}
	}

	if strongestICT != nil {
		rationale = append(rationale, fmt.Sprintf("ICT: %s", titleType(string(strongestICT.Type))))
		rationale = append(rationale, topN(strongestICT.Rationale, 2)...)
		if strongestICT.MarketPhase != "" {
			rationale = append(rationale, fmt.Sprintf("Phase: %s", strongestICT.MarketPhase))
		}
	}

	if strongestSMC != nil {
		rationale = append(rationale, fmt.Sprintf("SMC: %s", titleType(string(strongestSMC.Type))))
		rationale = append(rationale, topN(strongestSMC.Rationale, 2)...)
		if sweptCount > 0 {
			rationale = append(rationale, fmt.Sprintf("Liquidity swept: %d pool(s)", sweptCount))
		}
	}

	rationale = append(rationale,
		fmt.Sprintf("AI Confidence: %.0f%% (%s)", aiScore.SuccessProbability, titleWord(string(aiScore.Quality))))
	rationale = append(rationale, fmt.Sprintf("Market Regime: %s", aiScore.Regime.Title()))
	if aiScore.ConfluenceBonus > 5 {
		rationale = append(rationale,
			fmt.Sprintf("Strong ICT+SMC Confluence (+%.0f%%)", aiScore.ConfluenceBonus))
	}
	if aiScore.FalseSignalRisk > 40 {
		rationale = append(rationale,
			fmt.Sprintf("False Signal Risk: %.0f%%", aiScore.FalseSignalRisk))
	}
	if len(aiScore.Recommendations) > 0 {
		rationale = append(rationale, "AI Recommendations:")
		for _, rec := range topN(aiScore.Recommendations, 2) {
			rationale = append(rationale, "  - "+rec)
		}
	}

	rationale = append(rationale, phase1Rationale...)

	if bias.BOSStatus == "confirmed" {
		rationale = append(rationale, fmt.Sprintf("Structure: BOS %s confirmed", bias.BOSDirection))
	}

	return rationale
}

func topN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

// titleType renders a snake_case signal type as display text.
func titleType(s string) string {
	parts := strings.Split(s, "_")
	for i, p := range parts {
		parts[i] = titleWord(p)
	}
	return strings.Join(parts, " ")
}

func titleWord(s string) string {
	if s == "" {
		return s
	}
	up := s[0]
	if up >= 'a' && up <= 'z' {
		up -= 'a' - 'A'
	}
	return string(up) + s[1:]
}

func toAICandles(candles []models.Candle) []ai.Candle {
	out := make([]ai.Candle, len(candles))
	for i, c := range candles {
		out[i] = ai.Candle{
			Timestamp: c.Timestamp,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		}
	}
	return out
}

func ictTypeNames(signals []ict.SignalResult) []string {
	names := make([]string, len(signals))
	for i, s := range signals {
		names[i] = string(s.Type)
	}
	return names
}

func smcTypeNames(signals []smc.SignalResult) []string {
	names := make([]string, len(signals))
	for i, s := range signals {
		names[i] = string(s.Type)
	}
	return names
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
