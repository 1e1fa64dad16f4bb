package usecase

import (
	"fmt"
	"math"

	"github.com/vitos/signal_engine/internal/config"
	"github.com/vitos/signal_engine/internal/domain"
)

// RuleFunc adapts a plain function to domain.RiskRule.
type RuleFunc struct {
	name string
	fn   func(domain.RiskCheckPayload) error
}

func NewRule(name string, fn func(domain.RiskCheckPayload) error) RuleFunc {
	return RuleFunc{name: name, fn: fn}
}

func (r RuleFunc) Name() string { return r.name }

func (r RuleFunc) Validate(payload domain.RiskCheckPayload) error { return r.fn(payload) }

// MaxConcurrentPositions rejects when n positions are already open.
func MaxConcurrentPositions(n int) domain.RiskRule {
	return NewRule("max_concurrent_positions", func(p domain.RiskCheckPayload) error {
		if p.ActivePositionCount >= n {
			return &domain.RiskRejection{Rule: "max_concurrent_positions", Reason: fmt.Sprintf("%d positions open, limit %d", p.ActivePositionCount, n)}
		}
		return nil
	})
}

// MaxPositionsPerSymbol rejects when n positions on the symbol are open across strategies.
func MaxPositionsPerSymbol(n int) domain.RiskRule {
	return NewRule("max_positions_per_symbol", func(p domain.RiskCheckPayload) error {
		count := 0
		for _, pos := range p.ActivePositions {
			if pos.Symbol == p.Symbol {
				count++
			}
		}
		if count >= n {
			return &domain.RiskRejection{Rule: "max_positions_per_symbol", Reason: fmt.Sprintf("%d positions open on %s, limit %d", count, p.Symbol, n)}
		}
		return nil
	})
}

// MinRiskReward rejects signals whose reward/risk ratio is below ratio.
func MinRiskReward(ratio float64) domain.RiskRule {
	return NewRule("min_risk_reward", func(p domain.RiskCheckPayload) error {
		sig := p.PendingSignal
		if sig == nil {
			return &domain.RiskRejection{Rule: "min_risk_reward", Reason: "no pending signal"}
		}
		risk := math.Abs(sig.PriceOpen - sig.PriceStopLoss)
		reward := math.Abs(sig.PriceTakeProfit - sig.PriceOpen)
		if risk == 0 || reward/risk < ratio {
			return &domain.RiskRejection{Rule: "min_risk_reward", Reason: fmt.Sprintf("reward/risk %.2f below %.2f", reward/risk, ratio)}
		}
		return nil
	})
}

// RulesFromConfig builds the opted-in built-in rules.
func RulesFromConfig(cfg config.Risk) []domain.RiskRule {
	var rules []domain.RiskRule
	if cfg.MaxConcurrentPositions > 0 {
		rules = append(rules, MaxConcurrentPositions(cfg.MaxConcurrentPositions))
	}
	if cfg.MaxPositionsPerSymbol > 0 {
		rules = append(rules, MaxPositionsPerSymbol(cfg.MaxPositionsPerSymbol))
	}
	if cfg.MinRiskReward > 0 {
		rules = append(rules, MinRiskReward(cfg.MinRiskReward))
	}
	return rules
}
