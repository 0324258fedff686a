package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/quantfold/ictsignal/models"
)

// REST fetches candles from a market-data HTTP API with rate limiting and
// exponential-backoff retries.
type REST struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	apiKey     string
	logger     zerolog.Logger
}

// NewREST creates a REST provider. ratePerSec bounds outgoing requests.
func NewREST(baseURL, apiKey string, timeout time.Duration, ratePerSec float64) *REST {
	return &REST{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), int(ratePerSec)),
		baseURL:    baseURL,
		apiKey:     apiKey,
		logger:     log.With().Str("component", "rest_provider").Logger(),
	}
}

func (r *REST) Name() string { return "rest" }

type candleResponse struct {
	Status  string          `json:"status,omitempty"`
	Message string          `json:"message,omitempty"`
	Candles []models.Candle `json:"candles"`
}

func (r *REST) GetCandles(ctx context.Context, symbol string, interval models.Interval, limit int) ([]models.Candle, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	url := fmt.Sprintf(
		"%s/candles?symbol=%s&interval=%s&limit=%d&apikey=%s",
		r.baseURL, symbol, interval, limit, r.apiKey,
	)

	r.logger.Debug().Str("symbol", symbol).Str("interval", string(interval)).Msg("Fetching candles")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	var resp *http.Response
	operation := func() error {
		var err error
		resp, err = r.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("HTTP request failed: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("non-200 status code: %d", resp.StatusCode)
		}
		return nil
	}

	backoffStrategy := backoff.NewExponentialBackOff()
	backoffStrategy.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(backoffStrategy, ctx)); err != nil {
		return nil, fmt.Errorf("after retries: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var data candleResponse
	if err := json.Unmarshal(body, &data); err != nil {
		r.logger.Error().Err(err).Msg("Error parsing JSON")
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if data.Status == "error" {
		r.logger.Error().Str("message", data.Message).Msg("Provider API error")
		return nil, fmt.Errorf("provider API error: %s", data.Message)
	}
	if len(data.Candles) == 0 {
		r.logger.Warn().Str("symbol", symbol).Msg("No candles in response")
		return nil, fmt.Errorf("empty data returned")
	}

	// Oldest first for proper calculations
	sort.Slice(data.Candles, func(i, j int) bool {
		return data.Candles[i].Timestamp < data.Candles[j].Timestamp
	})

	r.logger.Debug().Int("count", len(data.Candles)).Msg("Fetched candles")
	return data.Candles, nil
}

// Failover tries providers in order until one succeeds.
type Failover struct {
	providers []Provider
	logger    zerolog.Logger
}

func NewFailover(providers ...Provider) *Failover {
	return &Failover{
		providers: providers,
		logger:    log.With().Str("component", "failover_provider").Logger(),
	}
}

func (f *Failover) Name() string { return "failover" }

func (f *Failover) GetCandles(ctx context.Context, symbol string, interval models.Interval, limit int) ([]models.Candle, error) {
	var lastErr error
	for _, p := range f.providers {
		candles, err := p.GetCandles(ctx, symbol, interval, limit)
		if err == nil {
			return candles, nil
		}
		f.logger.Warn().Err(err).Str("provider", p.Name()).Msg("Provider failed, trying next")
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no providers configured")
	}
	return nil, lastErr
}
