// Package server exposes the signal engine over HTTP and WebSocket using
// gorilla/mux routing.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantfold/ictsignal/internal/adapters"
	"github.com/quantfold/ictsignal/internal/cache"
	"github.com/quantfold/ictsignal/internal/engine"
	"github.com/quantfold/ictsignal/internal/engine/killzone"
	"github.com/quantfold/ictsignal/internal/service"
	"github.com/quantfold/ictsignal/models"
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9/]+$`)

// ValidateSymbol normalizes a trading symbol and rejects malformed input.
func ValidateSymbol(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", errors.New("symbol cannot be empty")
	}
	if len(symbol) > 20 {
		return "", errors.New("symbol is too long, maximum 20 characters")
	}
	if !symbolPattern.MatchString(symbol) {
		return "", errors.New("invalid symbol format, only alphanumeric characters and '/' are allowed")
	}
	return symbol, nil
}

// Server wires the engine, data provider, cache, and user stores behind
// the HTTP API.
type Server struct {
	engine      *engine.Engine
	provider    adapters.Provider
	cache       *cache.Cache
	watchlist   *service.Watchlist
	alerts      *service.Alerts
	journal     *service.Journal
	hub         *Hub
	alertSink   AlertSink
	candleLimit int
	logger      zerolog.Logger
}

// Options configures a Server.
type Options struct {
	Engine      *engine.Engine
	Provider    adapters.Provider
	Cache       *cache.Cache
	Watchlist   *service.Watchlist
	Alerts      *service.Alerts
	Journal     *service.Journal
	CandleLimit int
}

func New(opts Options) *Server {
	if opts.CandleLimit == 0 {
		opts.CandleLimit = 250
	}
	return &Server{
		engine:      opts.Engine,
		provider:    opts.Provider,
		cache:       opts.Cache,
		watchlist:   opts.Watchlist,
		alerts:      opts.Alerts,
		journal:     opts.Journal,
		hub:         NewHub(),
		candleLimit: opts.CandleLimit,
		logger:      log.With().Str("component", "http_server").Logger(),
	}
}

// Hub exposes the WebSocket hub for the background refresher.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/signal/{symbol}", s.handleSignal).Methods(http.MethodGet)
	api.HandleFunc("/killzone", s.handleKillZone).Methods(http.MethodGet)

	api.HandleFunc("/watchlist", s.handleWatchlistList).Methods(http.MethodGet)
	api.HandleFunc("/watchlist", s.handleWatchlistAdd).Methods(http.MethodPost)
	api.HandleFunc("/watchlist/{id}", s.handleWatchlistRemove).Methods(http.MethodDelete)

	api.HandleFunc("/alerts", s.handleAlertsList).Methods(http.MethodGet)
	api.HandleFunc("/alerts", s.handleAlertsCreate).Methods(http.MethodPost)
	api.HandleFunc("/alerts/{id}", s.handleAlertsDelete).Methods(http.MethodDelete)

	api.HandleFunc("/journal", s.handleJournalList).Methods(http.MethodGet)
	api.HandleFunc("/journal", s.handleJournalOpen).Methods(http.MethodPost)
	api.HandleFunc("/journal/{id}/close", s.handleJournalClose).Methods(http.MethodPost)

	r.HandleFunc("/ws/signal/{symbol}", s.handleSignalWS)

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	candleEntries, signalEntries := s.cache.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"provider":       s.provider.Name(),
		"cached_candles": candleEntries,
		"cached_signals": signalEntries,
	})
}

// GenerateSignal fetches candles (cache first) and runs the engine.
func (s *Server) GenerateSignal(ctx context.Context, symbol string) (*models.SignalResult, error) {
	if cached, ok := s.cache.Signal(symbol); ok {
		return cached, nil
	}

	series := make(map[models.Interval][]models.Candle, 3)
	for _, interval := range []models.Interval{models.IntervalM15, models.IntervalH1, models.IntervalD1} {
		if candles, ok := s.cache.Candles(symbol, interval); ok {
			series[interval] = candles
			continue
		}
		candles, err := s.provider.GetCandles(ctx, symbol, interval, s.candleLimit)
		if err != nil {
			return nil, fmt.Errorf("fetching %s candles: %w", interval, err)
		}
		s.cache.SetCandles(symbol, interval, candles)
		series[interval] = candles
	}

	signal, err := s.engine.GenerateSignal(
		symbol,
		series[models.IntervalM15],
		series[models.IntervalH1],
		series[models.IntervalD1],
		time.Now().UTC(),
	)
	if err != nil {
		return nil, err
	}

	s.cache.SetSignal(symbol, signal)
	s.dispatchAlerts(signal)
	return signal, nil
}

// AlertSink receives alerts matched against fresh signals.
type AlertSink interface {
	SendSignalAlert(alert models.Alert, signal *models.SignalResult) error
}

// SetAlertSink wires an optional notifier for triggered alerts.
func (s *Server) SetAlertSink(sink AlertSink) {
	s.alertSink = sink
}

func (s *Server) dispatchAlerts(signal *models.SignalResult) {
	matched := s.alerts.Match(signal)
	if len(matched) == 0 || s.alertSink == nil {
		return
	}
	for _, alert := range matched {
		if err := s.alertSink.SendSignalAlert(alert, signal); err != nil {
			s.logger.Warn().Err(err).Str("alert_id", alert.ID).Msg("Alert delivery failed")
		}
	}
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	symbol, err := ValidateSymbol(mux.Vars(r)["symbol"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	signal, err := s.GenerateSignal(r.Context(), symbol)
	if err != nil {
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusUnprocessableEntity, vErr.Error())
			return
		}
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("Signal generation failed")
		writeError(w, http.StatusBadGateway, "failed to generate signal")
		return
	}

	writeJSON(w, http.StatusOK, signal)
}

func (s *Server) handleKillZone(w http.ResponseWriter, _ *http.Request) {
	info := killzone.Classify(time.Now().UTC())
	writeJSON(w, http.StatusOK, map[string]any{
		"zone":                string(info.Zone),
		"is_active":           info.IsActive,
		"multiplier":          info.Multiplier,
		"optimal_for_entries": info.OptimalForEntries,
		"volatility_expected": info.VolatilityExpected,
		"time_remaining":      info.TimeRemaining,
		"time_until_next":     info.TimeUntilNext,
		"description":         info.Description,
	})
}

func (s *Server) handleWatchlistList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.watchlist.List())
}

func (s *Server) handleWatchlistAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
		Note   string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	symbol, err := ValidateSymbol(req.Symbol)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := s.watchlist.Add(symbol, req.Note)
	if err != nil {
		if errors.Is(err, service.ErrDuplicate) {
			writeError(w, http.StatusConflict, "symbol already on watchlist")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleWatchlistRemove(w http.ResponseWriter, r *http.Request) {
	if err := s.watchlist.Remove(mux.Vars(r)["id"]); err != nil {
		writeError(w, http.StatusNotFound, "watchlist item not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAlertsList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.alerts.List())
}

func (s *Server) handleAlertsCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol      string `json:"symbol"`
		Direction   string `json:"direction"`
		MinStrength int    `json:"min_strength"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	symbol, err := ValidateSymbol(req.Symbol)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.MinStrength < 0 || req.MinStrength > 100 {
		writeError(w, http.StatusBadRequest, "min_strength must be 0-100")
		return
	}

	direction := models.Recommendation(req.Direction)
	switch direction {
	case models.RecommendationBuy, models.RecommendationSell, models.RecommendationNeutral:
	case "":
		direction = models.RecommendationNeutral
	default:
		writeError(w, http.StatusBadRequest, "direction must be Buy, Sell, or Neutral")
		return
	}

	writeJSON(w, http.StatusCreated, s.alerts.Create(symbol, direction, req.MinStrength))
}

func (s *Server) handleAlertsDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.alerts.Delete(mux.Vars(r)["id"]); err != nil {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleJournalList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.journal.List())
}

func (s *Server) handleJournalOpen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol     string  `json:"symbol"`
		Side       string  `json:"side"`
		EntryPrice float64 `json:"entry_price"`
		Notes      string  `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	symbol, err := ValidateSymbol(req.Symbol)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Side != "long" && req.Side != "short" {
		writeError(w, http.StatusBadRequest, "side must be long or short")
		return
	}

	writeJSON(w, http.StatusCreated, s.journal.Open(symbol, req.Side, req.EntryPrice, req.Notes))
}

func (s *Server) handleJournalClose(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExitPrice float64 `json:"exit_price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	entry, err := s.journal.CloseEntry(mux.Vars(r)["id"], req.ExitPrice)
	if err != nil {
		writeError(w, http.StatusNotFound, "journal entry not found")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
