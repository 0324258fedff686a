// Package service holds the user-facing stores: watchlist, alerts, and the
// trade journal. Stores are in-memory and safe for concurrent use.
package service

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantfold/ictsignal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// Watchlist tracks symbols the user follows.
type Watchlist struct {
	mu    sync.RWMutex
	items map[string]models.WatchlistItem
}

func NewWatchlist() *Watchlist {
	return &Watchlist{items: make(map[string]models.WatchlistItem)}
}

// Add inserts a symbol. Duplicate symbols are rejected.
func (w *Watchlist) Add(symbol, note string) (models.WatchlistItem, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, item := range w.items {
		if item.Symbol == symbol {
			return models.WatchlistItem{}, ErrDuplicate
		}
	}

	item := models.WatchlistItem{
		ID:      uuid.NewString(),
		Symbol:  symbol,
		Note:    note,
		AddedAt: time.Now().UTC(),
	}
	w.items[item.ID] = item
	return item, nil
}

// List returns all items, newest first.
func (w *Watchlist) List() []models.WatchlistItem {
	w.mu.RLock()
	defer w.mu.RUnlock()

	items := make([]models.WatchlistItem, 0, len(w.items))
	for _, item := range w.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].AddedAt.After(items[j].AddedAt)
	})
	return items
}

// Symbols returns the watched symbols.
func (w *Watchlist) Symbols() []string {
	items := w.List()
	symbols := make([]string, len(items))
	for i, item := range items {
		symbols[i] = item.Symbol
	}
	return symbols
}

// Remove deletes an item by ID.
func (w *Watchlist) Remove(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.items[id]; !ok {
		return ErrNotFound
	}
	delete(w.items, id)
	return nil
}

// Alerts fires notifications when generated signals meet user conditions.
type Alerts struct {
	mu     sync.RWMutex
	alerts map[string]models.Alert
}

func NewAlerts() *Alerts {
	return &Alerts{alerts: make(map[string]models.Alert)}
}

// Create registers an alert. Direction Neutral matches any recommendation.
func (a *Alerts) Create(symbol string, direction models.Recommendation, minStrength int) models.Alert {
	a.mu.Lock()
	defer a.mu.Unlock()

	alert := models.Alert{
		ID:          uuid.NewString(),
		Symbol:      strings.ToUpper(strings.TrimSpace(symbol)),
		Direction:   direction,
		MinStrength: minStrength,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
	a.alerts[alert.ID] = alert
	return alert
}

// List returns all alerts, newest first.
func (a *Alerts) List() []models.Alert {
	a.mu.RLock()
	defer a.mu.RUnlock()

	alerts := make([]models.Alert, 0, len(a.alerts))
	for _, alert := range a.alerts {
		alerts = append(alerts, alert)
	}
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})
	return alerts
}

// Delete removes an alert by ID.
func (a *Alerts) Delete(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.alerts[id]; !ok {
		return ErrNotFound
	}
	delete(a.alerts, id)
	return nil
}

// Match returns active alerts triggered by a signal and marks them fired.
func (a *Alerts) Match(signal *models.SignalResult) []models.Alert {
	a.mu.Lock()
	defer a.mu.Unlock()

	var matched []models.Alert
	now := time.Now().UTC()
	for id, alert := range a.alerts {
		if !alert.Active || alert.Symbol != signal.Symbol {
			continue
		}
		if alert.Direction != models.RecommendationNeutral && alert.Direction != signal.Recommendation {
			continue
		}
		if signal.Strength < alert.MinStrength {
			continue
		}
		alert.Active = false
		alert.TriggeredAt = &now
		a.alerts[id] = alert
		matched = append(matched, alert)
	}
	return matched
}

// Journal records trades for later review.
type Journal struct {
	mu      sync.RWMutex
	entries map[string]models.JournalEntry
}

func NewJournal() *Journal {
	return &Journal{entries: make(map[string]models.JournalEntry)}
}

// Open creates a journal entry for a new position.
func (j *Journal) Open(symbol, side string, entryPrice float64, notes string) models.JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry := models.JournalEntry{
		ID:         uuid.NewString(),
		Symbol:     strings.ToUpper(strings.TrimSpace(symbol)),
		Side:       side,
		EntryPrice: entryPrice,
		Notes:      notes,
		CreatedAt:  time.Now().UTC(),
	}
	j.entries[entry.ID] = entry
	return entry
}

// CloseEntry records the exit price on an open entry.
func (j *Journal) CloseEntry(id string, exitPrice float64) (models.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry, ok := j.entries[id]
	if !ok {
		return models.JournalEntry{}, ErrNotFound
	}
	now := time.Now().UTC()
	entry.ExitPrice = exitPrice
	entry.ClosedAt = &now
	j.entries[id] = entry
	return entry, nil
}

// List returns all entries, newest first.
func (j *Journal) List() []models.JournalEntry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	entries := make([]models.JournalEntry, 0, len(j.entries))
	for _, entry := range j.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, k int) bool {
		return entries[i].CreatedAt.After(entries[k].CreatedAt)
	})
	return entries
}
