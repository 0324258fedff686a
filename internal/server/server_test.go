package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quantfold/ictsignal/internal/adapters"
	"github.com/quantfold/ictsignal/internal/cache"
	"github.com/quantfold/ictsignal/internal/engine"
	"github.com/quantfold/ictsignal/internal/service"
	"github.com/quantfold/ictsignal/models"
)

func TestValidateSymbol(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"Plain ticker", "AAPL", "AAPL", false},
		{"Lowercase normalized", " btc/usd ", "BTC/USD", false},
		{"Digits allowed", "BRK2", "BRK2", false},
		{"Empty rejected", "   ", "", true},
		{"Too long rejected", "ABCDEFGHIJKLMNOPQRSTU", "", true},
		{"Punctuation rejected", "AAPL;DROP", "", true},
		{"Spaces inside rejected", "AA PL", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateSymbol(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateSymbol(%q) error = %v, wantErr %t", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ValidateSymbol(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func testServer() *Server {
	return New(Options{
		Engine:      engine.New(),
		Provider:    adapters.NewDemo(42),
		Cache:       cache.New(time.Minute),
		Watchlist:   service.NewWatchlist(),
		Alerts:      service.NewAlerts(),
		Journal:     service.NewJournal(),
		CandleLimit: 250,
	})
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer()
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "ok" || body["provider"] != "demo" {
		t.Errorf("body = %v", body)
	}
}

func TestSignalEndpoint(t *testing.T) {
	srv := testServer()
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/signal/AAPL", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var signal models.SignalResult
	if err := json.Unmarshal(rec.Body.Bytes(), &signal); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if signal.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want AAPL", signal.Symbol)
	}
	if signal.Strength < 0 || signal.Strength > 100 {
		t.Errorf("Strength = %d, outside [0,100]", signal.Strength)
	}
	switch signal.Recommendation {
	case models.RecommendationBuy, models.RecommendationSell, models.RecommendationNeutral:
	default:
		t.Errorf("Recommendation = %q", signal.Recommendation)
	}

	// Second request is served from the signal cache.
	rec2 := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/api/v1/signal/AAPL", nil))
	if rec2.Code != http.StatusOK {
		t.Fatalf("cached status = %d", rec2.Code)
	}
	var cached models.SignalResult
	if err := json.Unmarshal(rec2.Body.Bytes(), &cached); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !cached.UpdatedAt.Equal(signal.UpdatedAt) {
		t.Error("expected the cached signal on the second request")
	}
}

func TestSignalEndpointBadSymbol(t *testing.T) {
	srv := testServer()
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/signal/bad;symbol", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestKillZoneEndpoint(t *testing.T) {
	srv := testServer()
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/killzone", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := body["zone"]; !ok {
		t.Error("expected a zone field")
	}
	if _, ok := body["multiplier"]; !ok {
		t.Error("expected a multiplier field")
	}
}

func TestWatchlistEndpoints(t *testing.T) {
	srv := testServer()
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/watchlist",
		bytes.NewBufferString(`{"symbol":"aapl","note":"swing"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var item models.WatchlistItem
	if err := json.Unmarshal(rec.Body.Bytes(), &item); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if item.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want AAPL", item.Symbol)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/watchlist",
		bytes.NewBufferString(`{"symbol":"AAPL"}`)))
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/watchlist", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var items []models.WatchlistItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("list = %d items, want 1", len(items))
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/watchlist/"+item.ID, nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/watchlist/"+item.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("repeat delete status = %d, want 404", rec.Code)
	}
}

func TestAlertsEndpoints(t *testing.T) {
	srv := testServer()
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/alerts",
		bytes.NewBufferString(`{"symbol":"TSLA","direction":"Buy","min_strength":60}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var alert models.Alert
	if err := json.Unmarshal(rec.Body.Bytes(), &alert); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if alert.Direction != models.RecommendationBuy || alert.MinStrength != 60 {
		t.Errorf("alert = %+v", alert)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/alerts",
		bytes.NewBufferString(`{"symbol":"TSLA","direction":"sideways"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad direction status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/alerts",
		bytes.NewBufferString(`{"symbol":"TSLA","min_strength":150}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad strength status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/alerts/"+alert.ID, nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}
}

func TestJournalEndpoints(t *testing.T) {
	srv := testServer()
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/journal",
		bytes.NewBufferString(`{"symbol":"NVDA","side":"long","entry_price":500.5,"notes":"breaker"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("open status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var entry models.JournalEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/journal",
		bytes.NewBufferString(`{"symbol":"NVDA","side":"diagonal"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad side status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/journal/"+entry.ID+"/close",
		bytes.NewBufferString(`{"exit_price":512.0}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("close status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var closed models.JournalEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &closed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if closed.ExitPrice != 512.0 || closed.ClosedAt == nil {
		t.Errorf("closed = %+v, want exit price and close time", closed)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/journal/missing/close",
		bytes.NewBufferString(`{"exit_price":1}`)))
	if rec.Code != http.StatusNotFound {
		t.Errorf("close missing status = %d, want 404", rec.Code)
	}
}

type captureSink struct {
	alerts []models.Alert
}

func (c *captureSink) SendSignalAlert(alert models.Alert, _ *models.SignalResult) error {
	c.alerts = append(c.alerts, alert)
	return nil
}

func TestAlertDispatchOnSignal(t *testing.T) {
	srv := testServer()
	sink := &captureSink{}
	srv.SetAlertSink(sink)

	// Strength 0 with Neutral direction matches any generated signal.
	srv.alerts.Create("AAPL", models.RecommendationNeutral, 0)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/signal/AAPL", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(sink.alerts) != 1 {
		t.Fatalf("dispatched alerts = %d, want 1", len(sink.alerts))
	}
	if sink.alerts[0].Symbol != "AAPL" {
		t.Errorf("alert symbol = %q, want AAPL", sink.alerts[0].Symbol)
	}
}
