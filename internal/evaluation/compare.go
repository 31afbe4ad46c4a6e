package evaluation

import (
	"context"
	"fmt"
	"time"

	"github.com/kosonkh7/SOPO-Dashboard/internal/features"
	"github.com/kosonkh7/SOPO-Dashboard/internal/forecast"
)

// StrategyScore is one strategy's result in a comparison.
type StrategyScore struct {
	Strategy    string            `json:"strategy"`
	Metrics     Metrics           `json:"metrics"`
	Predictions []forecast.Result `json:"predictions"`
	Error       string            `json:"error,omitempty"`
}

// Comparison aligns several strategies on the same train/test split.
type Comparison struct {
	PeriodDays int             `json:"period_days"`
	Dates      []time.Time     `json:"dates"`
	Actual     []float64       `json:"actual"`
	Scores     []StrategyScore `json:"scores"`
}

// Best returns the strategy with the lowest RMSE among those that succeeded.
func (c *Comparison) Best() (string, bool) {
	best, found := "", false
	var bestRMSE float64
	for _, s := range c.Scores {
		if s.Error != "" {
			continue
		}
		if !found || s.Metrics.RMSE < bestRMSE {
			best, bestRMSE, found = s.Strategy, s.Metrics.RMSE, true
		}
	}
	return best, found
}

// Compare runs every strategy on the same split of rows. A strategy that fails
// to fit is reported in its score rather than failing the comparison; an
// insufficient history fails the whole comparison since no split exists.
func Compare(ctx context.Context, rows []features.Row, periodDays int, strategies ...forecast.Strategy) (*Comparison, error) {
	_, test, err := features.Split(rows, periodDays)
	if err != nil {
		return nil, err
	}

	cmp := &Comparison{
		PeriodDays: periodDays,
		Dates:      features.Dates(test),
		Actual:     features.Values(test),
		Scores:     make([]StrategyScore, 0, len(strategies)),
	}

	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("compare strategies: %w", err)
		}

		score := StrategyScore{Strategy: s.Name()}
		eval, err := forecast.Run(ctx, s, rows, periodDays)
		if err == nil {
			score.Predictions = eval.Predictions
			score.Metrics, err = Compute(eval.Actual, eval.PredictedValues())
		}
		if err != nil {
			score.Error = err.Error()
		}
		cmp.Scores = append(cmp.Scores, score)
	}
	return cmp, nil
}
