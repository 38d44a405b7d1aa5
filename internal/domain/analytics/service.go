package analytics

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/validation"
)

const (
	DefaultTrendMonths     = 6
	MaxTrendMonths         = 36
	DefaultForecastPeriods = 12
	MaxForecastPeriods     = 24
	// forecastHistory is how many past months feed the regression.
	forecastHistory = 12
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	return s.repo.Dashboard(ctx, monthStart(s.now()))
}

// Trends returns one point per calendar month, oldest first, ending with the
// current month. Months without referrals are reported as zero.
func (s *Service) Trends(ctx context.Context, months int) ([]TrendPoint, error) {
	if months == 0 {
		months = DefaultTrendMonths
	}
	if months < 1 || months > MaxTrendMonths {
		var v validation.Errors
		v.Add("months", "must be between 1 and %d", MaxTrendMonths)
		return nil, v.Err()
	}

	first := monthStart(s.now()).AddDate(0, -(months - 1), 0)
	counts, err := s.repo.MonthlyCounts(ctx, first)
	if err != nil {
		return nil, err
	}

	points := make([]TrendPoint, months)
	for i := range points {
		m := first.AddDate(0, i, 0).Format("2006-01")
		points[i] = TrendPoint{Month: m, Count: counts[m]}
	}
	return points, nil
}

// Forecast projects monthly referral counts for the next periods months from
// a least-squares line through the last twelve months.
func (s *Service) Forecast(ctx context.Context, periods int) (*Forecast, error) {
	if periods == 0 {
		periods = DefaultForecastPeriods
	}
	if periods < 1 || periods > MaxForecastPeriods {
		var v validation.Errors
		v.Add("periods", "must be between 1 and %d", MaxForecastPeriods)
		return nil, v.Err()
	}

	history, err := s.Trends(ctx, forecastHistory)
	if err != nil {
		return nil, err
	}
	ys := make([]float64, len(history))
	for i, p := range history {
		ys[i] = float64(p.Count)
	}
	values, slope, intercept := LinearForecast(ys, periods)

	next := monthStart(s.now()).AddDate(0, 1, 0)
	predictions := make([]ForecastPoint, periods)
	for i, v := range values {
		predictions[i] = ForecastPoint{Month: next.AddDate(0, i, 0).Format("2006-01"), Value: v}
	}

	s.logger.Debug().Int("periods", periods).Float64("slope", slope).Msg("referral forecast computed")
	return &Forecast{
		Method:      "linear_regression",
		Periods:     periods,
		Slope:       round2(slope),
		Intercept:   round2(intercept),
		History:     history,
		Predictions: predictions,
	}, nil
}

// LinearForecast fits y = intercept + slope*x over x = 0..len(ys)-1 and
// returns the next periods values, clamped at zero and rounded to two
// decimals. With fewer than two points the line is flat at the mean.
func LinearForecast(ys []float64, periods int) (values []float64, slope, intercept float64) {
	n := float64(len(ys))
	if len(ys) > 0 {
		var sumX, sumY, sumXY, sumXX float64
		for i, y := range ys {
			x := float64(i)
			sumX += x
			sumY += y
			sumXY += x * y
			sumXX += x * x
		}
		intercept = sumY / n
		if denom := n*sumXX - sumX*sumX; denom != 0 {
			slope = (n*sumXY - sumX*sumY) / denom
			intercept = (sumY - slope*sumX) / n
		}
	}

	values = make([]float64, periods)
	for i := range values {
		v := intercept + slope*(n+float64(i))
		values[i] = round2(math.Max(0, v))
	}
	return values, slope, intercept
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
