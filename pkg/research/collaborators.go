package research

import (
	"context"
	"log/slog"

	"github.com/quantmemo/memocore/pkg/models"
)

// enrichInput fetches the options chain, fundamentals, and market-context
// collaborators (when configured) and folds whatever they return into a
// fresh AgentInput for Phase A. A failed or absent fetch is never fatal —
// it produces a Confidence Adjustment note instead, per spec.md §4.7's
// "safe fallbacks" rule.
func (o *Orchestrator) enrichInput(ctx context.Context, summary models.StrategySummary) (models.AgentInput, []string) {
	var notes []string
	marketContext := map[string]any{}

	if o.chainAdapter != nil {
		expiry := ""
		if len(summary.Legs) > 0 {
			expiry = summary.Legs[0].Expiry
		}
		chain, err := o.chainAdapter.GetChain(ctx, summary.Symbol, expiry)
		switch {
		case err != nil:
			slog.Warn("research: chain adapter failed", "symbol", summary.Symbol, "error", err)
			notes = append(notes, "Option chain data unavailable")
		case !chain.Complete:
			notes = append(notes, "Option chain data is partial")
			summary.OptionChainContext = map[string]any{"calls": chain.Calls, "puts": chain.Puts, "spot_price": chain.SpotPrice}
		default:
			summary.OptionChainContext = map[string]any{"calls": chain.Calls, "puts": chain.Puts, "spot_price": chain.SpotPrice}
		}
	} else if len(summary.OptionChainContext) == 0 {
		notes = append(notes, "Option chain data unavailable")
	}

	if o.fundamentalsAdapter != nil {
		profile, err := o.fundamentalsAdapter.GetProfile(ctx, summary.Symbol)
		if err != nil {
			slog.Warn("research: fundamentals adapter failed", "symbol", summary.Symbol, "error", err)
			notes = append(notes, "Fundamental data unavailable")
		} else if len(profile) == 0 {
			notes = append(notes, "Fundamental data is partial")
		} else {
			summary.FundamentalSnapshot = profile
		}
	} else if len(summary.FundamentalSnapshot) == 0 {
		notes = append(notes, "Fundamental data unavailable")
	}

	if o.marketContextSvc != nil {
		mc, err := o.marketContextSvc.GetContext(ctx, summary.Symbol)
		if err != nil {
			slog.Warn("research: market context service failed", "symbol", summary.Symbol, "error", err)
		} else {
			for k, v := range mc {
				marketContext[k] = v
			}
		}
	}

	if len(summary.FundamentalSnapshot) > 0 {
		marketContext["fundamental_snapshot"] = summary.FundamentalSnapshot
	}
	if len(summary.OptionChainContext) > 0 {
		marketContext["option_chain_context"] = summary.OptionChainContext
	}
	if len(marketContext) == 0 {
		marketContext["sector"] = "unknown"
	}

	return models.AgentInput{StrategySummary: summary, MarketContext: marketContext}, notes
}
