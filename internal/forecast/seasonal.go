package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kosonkh7/SOPO-Dashboard/internal/features"
)

// SeasonalRegressionName identifies Strategy A.
const SeasonalRegressionName = "seasonal_regression"

const (
	// YearlyPeriod is the length of the yearly seasonal cycle in days.
	YearlyPeriod = 365.25

	// DefaultFourierOrder is the number of sine/cosine pairs of the yearly term.
	DefaultFourierOrder = 10

	// DefaultIntervalWidth is the coverage of the prediction interval.
	DefaultIntervalWidth = 0.8

	// DefaultRidge is the penalty on every standardised non-intercept coefficient.
	DefaultRidge = 1.0
)

// SeasonalOptions configures SeasonalRegression.
type SeasonalOptions struct {
	FourierOrder  int
	IntervalWidth float64
	Ridge         float64
}

// DefaultSeasonalOptions returns order 10, an 80% interval and ridge 1.
func DefaultSeasonalOptions() SeasonalOptions {
	return SeasonalOptions{
		FourierOrder:  DefaultFourierOrder,
		IntervalWidth: DefaultIntervalWidth,
		Ridge:         DefaultRidge,
	}
}

// SeasonalRegression models the series as linear trend + yearly Fourier
// seasonality + is_holiday + one-hot weekday (Monday baseline) + lag_1.
type SeasonalRegression struct {
	opts SeasonalOptions
}

// NewSeasonalRegression creates Strategy A.
func NewSeasonalRegression(opts SeasonalOptions) *SeasonalRegression {
	if opts.FourierOrder < 0 {
		opts.FourierOrder = 0
	}
	if opts.IntervalWidth <= 0 || opts.IntervalWidth >= 1 {
		opts.IntervalWidth = DefaultIntervalWidth
	}
	if opts.Ridge < 0 {
		opts.Ridge = 0
	}
	return &SeasonalRegression{opts: opts}
}

// Name implements Strategy.
func (s *SeasonalRegression) Name() string { return SeasonalRegressionName }

// Fit implements Strategy.
func (s *SeasonalRegression) Fit(ctx context.Context, train []features.Row) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := &seasonalModel{
		order:  s.opts.FourierOrder,
		origin: train[0].Date,
		span:   math.Max(1, days(train[0].Date, train[len(train)-1].Date)),
	}

	n, p := len(train), m.width()
	raw := mat.NewDense(n, p, nil)
	for i, r := range train {
		raw.SetRow(i, m.design(r))
	}

	// Standardise every column except the intercept.
	m.mean = make([]float64, p)
	m.scale = make([]float64, p)
	m.scale[0] = 1
	col := make([]float64, n)
	for j := 1; j < p; j++ {
		mat.Col(col, j, raw)
		mu, sd := stat.MeanStdDev(col, nil)
		m.mean[j] = mu
		if sd > 0 && !math.IsNaN(sd) {
			m.scale[j] = sd
		}
	}
	x := mat.NewDense(n, p, nil)
	x.Apply(func(i, j int, v float64) float64 {
		if j == 0 {
			return 1
		}
		if m.scale[j] == 0 {
			return 0
		}
		return (v - m.mean[j]) / m.scale[j]
	}, raw)

	y := mat.NewVecDense(n, features.Values(train))

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	for j := 1; j < p; j++ {
		xtx.Set(j, j, xtx.At(j, j)+s.opts.Ridge)
	}
	var xty mat.VecDense
	xty.MulVec(x.T(), y)

	var beta mat.VecDense
	if err := beta.SolveVec(&xtx, &xty); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("solve normal equations: %w", err)
		}
	}
	m.beta = mat.VecDenseCopyOf(&beta)

	var fitted mat.VecDense
	fitted.MulVec(x, m.beta)
	var ssr float64
	for i := 0; i < n; i++ {
		d := y.AtVec(i) - fitted.AtVec(i)
		ssr += d * d
	}
	dof := n - p
	if dof < 1 {
		dof = n
	}
	m.sigma = math.Sqrt(ssr / float64(dof))
	m.z = distuv.UnitNormal.Quantile(0.5 + s.opts.IntervalWidth/2)

	for j := 0; j < m.beta.Len(); j++ {
		if !finite(m.beta.AtVec(j)) {
			return nil, fmt.Errorf("non-finite coefficient %d", j)
		}
	}
	return m, nil
}

type seasonalModel struct {
	order  int
	origin time.Time
	span   float64
	mean   []float64
	scale  []float64
	beta   *mat.VecDense
	sigma  float64
	z      float64
}

// width is intercept + trend + 2*order Fourier + holiday + 6 weekday + lag_1.
func (m *seasonalModel) width() int {
	return 2 + 2*m.order + 1 + 6 + 1
}

func (m *seasonalModel) design(r features.Row) []float64 {
	v := make([]float64, 0, m.width())
	v = append(v, 1, days(m.origin, r.Date)/m.span)

	t := float64(r.Date.Unix()) / 86400
	for k := 1; k <= m.order; k++ {
		angle := 2 * math.Pi * float64(k) * t / YearlyPeriod
		v = append(v, math.Sin(angle), math.Cos(angle))
	}

	v = append(v, r.HolidayFlag())
	for wd := 1; wd <= 6; wd++ {
		if r.Weekday == wd {
			v = append(v, 1)
		} else {
			v = append(v, 0)
		}
	}
	return append(v, r.Lag1)
}

// Predict implements Model.
func (m *seasonalModel) Predict(rows []features.Row) ([]Result, error) {
	out := make([]Result, len(rows))
	for i, r := range rows {
		raw := m.design(r)
		var yhat float64
		for j, v := range raw {
			if j > 0 {
				if m.scale[j] == 0 {
					v = 0
				} else {
					v = (v - m.mean[j]) / m.scale[j]
				}
			}
			yhat += v * m.beta.AtVec(j)
		}
		lower := yhat - m.z*m.sigma
		upper := yhat + m.z*m.sigma
		out[i] = Result{Date: r.Date, Value: yhat, Lower: &lower, Upper: &upper}
	}
	return Clamp(out), nil
}

func days(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}
