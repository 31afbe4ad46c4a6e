// Package forecast implements the interchangeable forecasting strategies and
// the shared train/test contract they are evaluated under.
//
// Two strategies are provided:
//
//   - SeasonalRegression: additive trend, yearly Fourier seasonality and the
//     is_holiday, weekday and lag_1 regressors, fitted by ridge least squares.
//   - GradientBoosting: boosted regression trees over lag_1, lag_7,
//     rolling_mean_7, weekday and is_holiday.
//
// Every prediction and interval bound returned through this package is clamped
// to zero or above. A panic inside a strategy is reported as errors.ErrModelFit.
package forecast

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	apperrors "github.com/kosonkh7/SOPO-Dashboard/internal/errors"
	"github.com/kosonkh7/SOPO-Dashboard/internal/features"
)

// Result is one forecast point. Lower and Upper are set only by strategies
// that produce an interval.
type Result struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
	Lower *float64  `json:"lower,omitempty"`
	Upper *float64  `json:"upper,omitempty"`
}

// Model is a fitted strategy.
type Model interface {
	Predict(rows []features.Row) ([]Result, error)
}

// Strategy fits a Model on training rows.
type Strategy interface {
	Name() string
	Fit(ctx context.Context, train []features.Row) (Model, error)
}

// Evaluation is the outcome of one train/test run.
type Evaluation struct {
	Strategy    string      `json:"strategy"`
	TrainRows   int         `json:"train_rows"`
	Dates       []time.Time `json:"dates"`
	Actual      []float64   `json:"actual"`
	Predictions []Result    `json:"predictions"`
}

// PredictedValues returns the point forecasts.
func (e *Evaluation) PredictedValues() []float64 {
	out := make([]float64, len(e.Predictions))
	for i, p := range e.Predictions {
		out[i] = p.Value
	}
	return out
}

// Fit runs s.Fit, converting a panic into a model-fit error.
func Fit(ctx context.Context, s Strategy, train []features.Row) (model Model, err error) {
	defer func() {
		if r := recover(); r != nil {
			model = nil
			err = apperrors.NewModelFitError(s.Name(), fmt.Errorf("panic: %v", r))
		}
	}()

	if len(train) == 0 {
		return nil, apperrors.NewModelFitError(s.Name(), fmt.Errorf("no training rows"))
	}

	model, err = s.Fit(ctx, train)
	if err != nil {
		if apperrors.TypeOf(err) != "" {
			return nil, err
		}
		return nil, apperrors.NewModelFitError(s.Name(), err)
	}
	return model, nil
}

// Predict runs m.Predict, converting a panic or a non-finite output into a
// model-fit error and clamping every value to zero or above.
func Predict(name string, m Model, rows []features.Row) (results []Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = apperrors.NewModelFitError(name, fmt.Errorf("panic: %v", r))
		}
	}()

	results, err = m.Predict(rows)
	if err != nil {
		return nil, apperrors.NewModelFitError(name, err)
	}
	if len(results) != len(rows) {
		return nil, apperrors.NewModelFitError(name, fmt.Errorf("predicted %d values for %d rows", len(results), len(rows)))
	}
	for i := range results {
		if !finite(results[i].Value) {
			return nil, apperrors.NewModelFitError(name, fmt.Errorf("non-finite prediction at %s", results[i].Date.Format("2006-01-02")))
		}
	}
	return Clamp(results), nil
}

// Run holds out the final periodDays rows, fits s on the rest and predicts
// the held-out rows.
func Run(ctx context.Context, s Strategy, rows []features.Row, periodDays int) (*Evaluation, error) {
	train, test, err := features.Split(rows, periodDays)
	if err != nil {
		return nil, err
	}

	model, err := Fit(ctx, s, train)
	if err != nil {
		return nil, err
	}

	preds, err := Predict(s.Name(), model, test)
	if err != nil {
		return nil, err
	}

	return &Evaluation{
		Strategy:    s.Name(),
		TrainRows:   len(train),
		Dates:       features.Dates(test),
		Actual:      features.Values(test),
		Predictions: preds,
	}, nil
}

// Clamp raises every value and bound below zero to zero, in place.
func Clamp(results []Result) []Result {
	for i := range results {
		results[i].Value = math.Max(0, results[i].Value)
		if results[i].Lower != nil {
			v := math.Max(0, *results[i].Lower)
			results[i].Lower = &v
		}
		if results[i].Upper != nil {
			v := math.Max(0, *results[i].Upper)
			results[i].Upper = &v
		}
	}
	return results
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Registry resolves strategies by name.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry registers strategies under their names.
func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		r.strategies[s.Name()] = s
	}
	return r
}

// Get returns the strategy registered as name.
func (r *Registry) Get(name string) (Strategy, error) {
	s, ok := r.strategies[name]
	if !ok {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("unknown strategy %q, want one of %v", name, r.Names()))
	}
	return s, nil
}

// Names returns the registered names in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns the registered strategies ordered by name.
func (r *Registry) All() []Strategy {
	out := make([]Strategy, 0, len(r.strategies))
	for _, name := range r.Names() {
		out = append(out, r.strategies[name])
	}
	return out
}
