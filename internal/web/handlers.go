package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/vitos/signal_engine/internal/domain"
	"go.uber.org/zap"
)

type signalView struct {
	Strategy  string         `json:"strategy"`
	Symbol    string         `json:"symbol"`
	Mode      string         `json:"mode"`
	Stopped   bool           `json:"stopped"`
	Active    *domain.Signal `json:"active,omitempty"`
	Scheduled *domain.Signal `json:"scheduled,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	views := []signalView{}
	for _, e := range s.engines.Engines() {
		mode := "live"
		if e.Backtest() {
			mode = "backtest"
		}
		views = append(views, signalView{
			Strategy:  e.StrategyName(),
			Symbol:    e.Symbol(),
			Mode:      mode,
			Stopped:   e.Stopped(),
			Active:    e.Active(),
			Scheduled: e.Scheduled(),
		})
	}
	s.writeJSON(w, views)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	trades, err := s.tradeRepo.ListTrades(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list trades", zap.Error(err))
		http.Error(w, "Failed to list trades", http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []*domain.Trade{}
	}
	s.writeJSON(w, trades)
}
