package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/quantfold/ictsignal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Hub fans generated signals out to WebSocket subscribers by symbol.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]map[*websocket.Conn]chan *models.SignalResult
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[*websocket.Conn]chan *models.SignalResult)}
}

func (h *Hub) subscribe(symbol string, conn *websocket.Conn) chan *models.SignalResult {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan *models.SignalResult, 8)
	if h.subscribers[symbol] == nil {
		h.subscribers[symbol] = make(map[*websocket.Conn]chan *models.SignalResult)
	}
	h.subscribers[symbol][conn] = ch
	return ch
}

func (h *Hub) unsubscribe(symbol string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.subscribers[symbol]; ok {
		if ch, ok := conns[conn]; ok {
			close(ch)
			delete(conns, conn)
		}
		if len(conns) == 0 {
			delete(h.subscribers, symbol)
		}
	}
}

// Broadcast delivers a signal to every subscriber of its symbol. Slow
// subscribers drop updates instead of blocking the refresher.
func (h *Hub) Broadcast(signal *models.SignalResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subscribers[signal.Symbol] {
		select {
		case ch <- signal:
		default:
		}
	}
}

// Symbols lists symbols with at least one subscriber.
func (h *Hub) Symbols() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	symbols := make([]string, 0, len(h.subscribers))
	for symbol := range h.subscribers {
		symbols = append(symbols, symbol)
	}
	return symbols
}

func (s *Server) handleSignalWS(w http.ResponseWriter, r *http.Request) {
	symbol, err := ValidateSymbol(mux.Vars(r)["symbol"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	ch := s.hub.subscribe(symbol, conn)
	defer func() {
		s.hub.unsubscribe(symbol, conn)
		conn.Close()
	}()

	// Push the current signal immediately when available.
	if signal, err := s.GenerateSignal(r.Context(), symbol); err == nil {
		_ = conn.WriteJSON(signal)
	}

	// Drain client frames to surface close errors.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case signal, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(signal); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
