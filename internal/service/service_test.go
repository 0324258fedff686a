package service

import (
	"errors"
	"testing"

	"github.com/quantfold/ictsignal/models"
)

func TestWatchlistAddAndRemove(t *testing.T) {
	w := NewWatchlist()

	item, err := w.Add("aapl ", "swing setup")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if item.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want normalized AAPL", item.Symbol)
	}
	if item.ID == "" {
		t.Error("expected a generated ID")
	}

	if _, err := w.Add("AAPL", ""); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate Add() error = %v, want ErrDuplicate", err)
	}

	if got := w.Symbols(); len(got) != 1 || got[0] != "AAPL" {
		t.Errorf("Symbols() = %v, want [AAPL]", got)
	}

	if err := w.Remove(item.ID); err != nil {
		t.Errorf("Remove() error = %v", err)
	}
	if err := w.Remove(item.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove() error = %v, want ErrNotFound", err)
	}
	if got := w.List(); len(got) != 0 {
		t.Errorf("List() = %d items after removal, want 0", len(got))
	}
}

func TestAlertsMatch(t *testing.T) {
	a := NewAlerts()
	buy := a.Create("AAPL", models.RecommendationBuy, 60)
	anyDir := a.Create("AAPL", models.RecommendationNeutral, 50)
	a.Create("TSLA", models.RecommendationBuy, 0)

	signal := &models.SignalResult{
		Symbol:         "AAPL",
		Recommendation: models.RecommendationBuy,
		Strength:       70,
	}

	matched := a.Match(signal)
	if len(matched) != 2 {
		t.Fatalf("Match() = %d alerts, want 2", len(matched))
	}
	ids := map[string]bool{matched[0].ID: true, matched[1].ID: true}
	if !ids[buy.ID] || !ids[anyDir.ID] {
		t.Error("expected both the Buy and the any-direction alert to fire")
	}
	for _, m := range matched {
		if m.Active || m.TriggeredAt == nil {
			t.Error("fired alerts must be deactivated with a trigger time")
		}
	}

	// One-shot: the same signal must not re-fire deactivated alerts.
	if again := a.Match(signal); len(again) != 0 {
		t.Errorf("second Match() = %d alerts, want 0", len(again))
	}
}

func TestAlertsMatchFilters(t *testing.T) {
	a := NewAlerts()
	a.Create("AAPL", models.RecommendationSell, 0)
	a.Create("AAPL", models.RecommendationBuy, 90)

	signal := &models.SignalResult{
		Symbol:         "AAPL",
		Recommendation: models.RecommendationBuy,
		Strength:       70,
	}
	if matched := a.Match(signal); len(matched) != 0 {
		t.Errorf("Match() = %d alerts, want 0 for wrong direction or low strength", len(matched))
	}
}

func TestAlertsDelete(t *testing.T) {
	a := NewAlerts()
	alert := a.Create("AAPL", models.RecommendationBuy, 50)

	if err := a.Delete(alert.ID); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
	if err := a.Delete(alert.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestJournalLifecycle(t *testing.T) {
	j := NewJournal()
	entry := j.Open("tsla", "long", 240.5, "breaker retest")
	if entry.Symbol != "TSLA" {
		t.Errorf("Symbol = %q, want TSLA", entry.Symbol)
	}
	if entry.ClosedAt != nil {
		t.Error("new entry must be open")
	}

	closed, err := j.CloseEntry(entry.ID, 251.0)
	if err != nil {
		t.Fatalf("CloseEntry() error = %v", err)
	}
	if closed.ExitPrice != 251.0 || closed.ClosedAt == nil {
		t.Errorf("closed entry = %+v, want exit price and close time set", closed)
	}

	if _, err := j.CloseEntry("missing", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("CloseEntry(missing) error = %v, want ErrNotFound", err)
	}

	if got := j.List(); len(got) != 1 {
		t.Errorf("List() = %d entries, want 1", len(got))
	}
}
