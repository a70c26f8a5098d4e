package agent

import "github.com/quantmemo/memocore/pkg/models"

// Composite scoring weights. original_source/ carried no recoverable
// figures for these (nothing was retrieved for this spec beyond its own
// text), so these are fixed, named constants rather than ad-hoc literals
// scattered through the scoring functions below — the open-question
// resolution DESIGN.md records.
const (
	weightDeltaRisk = 0.4
	weightVegaRisk  = 0.3
	weightThetaRisk = 0.3

	weightFundamental = 0.5
	weightTechnical   = 0.5

	weightGreeksRisk   = 0.30
	weightIVRank       = 0.20
	weightAlignment    = 0.25
	weightScenarioRisk = 0.25
)

// normalizePer100 expresses a raw portfolio Greek as a per-100-underlying-
// notional quantity — (greek * 100) / notional — so a strategy on a $10
// stock and one on a $500 stock land on the same scale. Division by zero
// notional is "unavailable", not an error, per safeDivide's contract.
func normalizePer100(greek, notionalPer100Shares float64) (float64, bool) {
	return safeDivide(greek*100, notionalPer100Shares)
}

// thetaToMaxProfitRatio expresses daily theta as a fraction of max profit,
// clamped to [0, 1].
func thetaToMaxProfitRatio(dailyTheta, maxProfit float64) (float64, bool) {
	ratio, ok := safeDivide(dailyTheta, maxProfit)
	if !ok {
		return 0, false
	}
	return clamp(ratio, 0, 1), true
}

// applyGreeksNormalization overwrites per_100_delta, per_100_vega, and
// theta_to_max_profit_ratio in data with values computed deterministically
// from the strategy's own PortfolioGreeks/StrategyMetrics — whatever the
// model self-reported for these three fields is discarded, since an
// unnormalized LLM guess is not comparable across strategies. It returns a
// deterministic risk_score built only from the normalized figures that were
// actually available.
func applyGreeksNormalization(summary models.StrategySummary, data map[string]any) float64 {
	notional := summary.NotionalPer100Shares()
	greeks := summary.PortfolioGreeks

	perDelta, deltaOK := normalizePer100(greeks.Delta, notional)
	perVega, vegaOK := normalizePer100(greeks.Vega, notional)
	thetaRatio, thetaOK := thetaToMaxProfitRatio(greeks.Theta, summary.StrategyMetrics.MaxProfit)

	if deltaOK {
		data["per_100_delta"] = perDelta
	} else {
		delete(data, "per_100_delta")
	}
	if vegaOK {
		data["per_100_vega"] = perVega
	} else {
		delete(data, "per_100_vega")
	}
	if thetaOK {
		data["theta_to_max_profit_ratio"] = thetaRatio
	} else {
		delete(data, "theta_to_max_profit_ratio")
	}

	var score float64
	if deltaOK {
		score += absFloat(perDelta) * weightDeltaRisk
	}
	if vegaOK {
		score += absFloat(perVega) * weightVegaRisk
	}
	if thetaOK {
		score += thetaRatio * 10 * weightThetaRisk
	}
	risk := clamp(score, 0, 10)
	data["risk_score"] = risk
	return risk
}

// compositeAlignmentScore recomputes alignment_score deterministically as a
// weighted average of the model's own fundamental_score/technical_score
// sub-fields, rather than trusting a single self-reported alignment_score.
// Falls back to the self-reported figure only when neither sub-field
// parses, so a provider that skips the sub-field breakdown still scores.
func compositeAlignmentScore(data map[string]any) (float64, bool) {
	fundamental, fOK := safeFloat(data, "fundamental_score")
	technical, tOK := safeFloat(data, "technical_score")
	if !fOK && !tOK {
		return safeFloat(data, "alignment_score")
	}

	var score, weight float64
	if fOK {
		score += fundamental * weightFundamental
		weight += weightFundamental
	}
	if tOK {
		score += technical * weightTechnical
		weight += weightTechnical
	}
	composite := clamp(score/weight, 0, 10)
	data["alignment_score"] = composite
	return composite, true
}

// compositeOverallScore recomputes overall_score deterministically as a
// weighted average of the prior panel's own Score values, rescaled onto a
// common 0..10 range, instead of trusting the synthesis model's
// self-reported overall_score. An agent missing a Score (failed, or no
// Score applies) is simply excluded and the average is taken over the
// weights of the agents that remain, so a panel with every upstream agent
// missing yields (0, false) and the caller can fall back to the model's
// own figure.
func compositeOverallScore(previous map[string]models.AgentResult) (float64, bool) {
	inputs := []struct {
		id     string
		weight float64
		scale  float64 // divides the stored Score onto a comparable 0..10 range
	}{
		{"options_greeks_analyst", weightGreeksRisk, 1},
		{"iv_environment_analyst", weightIVRank, 10},
		{"market_context_analyst", weightAlignment, 1},
		{"risk_scenario_analyst", weightScenarioRisk, 1},
	}

	var score, totalWeight float64
	for _, in := range inputs {
		res, ok := previous[in.id]
		if !ok || !res.Success || res.Score == nil {
			continue
		}
		score += (*res.Score / in.scale) * in.weight
		totalWeight += in.weight
	}
	if totalWeight == 0 {
		return 0, false
	}
	return clamp(score/totalWeight, 0, 10), true
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
