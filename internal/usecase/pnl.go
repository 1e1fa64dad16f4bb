package usecase

import "github.com/vitos/signal_engine/internal/domain"

// tradePnL applies slippage to both fills and the round-trip fee.
func tradePnL(side domain.Side, open, close, feePct, slippagePct float64) domain.PnL {
	slip := slippagePct / 100
	var openAdj, closeAdj, pct float64
	if side == domain.SideShort {
		openAdj = open * (1 - slip)
		closeAdj = close * (1 + slip)
		pct = (openAdj - closeAdj) / openAdj * 100
	} else {
		openAdj = open * (1 + slip)
		closeAdj = close * (1 - slip)
		pct = (closeAdj - openAdj) / openAdj * 100
	}
	return domain.PnL{
		Percentage: pct - 2*feePct,
		PriceOpen:  openAdj,
		PriceClose: closeAdj,
	}
}

// signalPnL weights partial closes by their share and the remainder at closePrice.
func signalPnL(sig *domain.Signal, closePrice, feePct, slippagePct float64) domain.PnL {
	final := tradePnL(sig.Position, sig.PriceOpen, closePrice, feePct, slippagePct)
	if len(sig.Partials) == 0 {
		return final
	}

	var weighted, executed float64
	for _, p := range sig.Partials {
		part := tradePnL(sig.Position, sig.PriceOpen, p.Price, feePct, slippagePct)
		weighted += part.Percentage * p.Percent / 100
		executed += p.Percent
	}
	remaining := max(0, 100-executed)
	weighted += final.Percentage * remaining / 100

	final.Percentage = weighted
	return final
}
