package server

import (
	"context"
	"time"
)

// RunRefresher periodically regenerates signals for watched and subscribed
// symbols and broadcasts them to WebSocket clients. Blocks until ctx is
// cancelled.
func (s *Server) RunRefresher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshAll(ctx)
		}
	}
}

func (s *Server) refreshAll(ctx context.Context) {
	seen := make(map[string]bool)
	for _, symbol := range append(s.watchlist.Symbols(), s.hub.Symbols()...) {
		if seen[symbol] {
			continue
		}
		seen[symbol] = true

		s.cache.Invalidate(symbol)
		signal, err := s.GenerateSignal(ctx, symbol)
		if err != nil {
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Signal refresh failed")
			continue
		}
		s.hub.Broadcast(signal)
	}
}
