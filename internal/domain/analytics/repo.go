package analytics

import (
	"context"
	"time"
)

type Repository interface {
	// Dashboard counts all referrals; ThisMonth counts those created at or
	// after monthStart.
	Dashboard(ctx context.Context, monthStart time.Time) (*Dashboard, error)
	// MonthlyCounts returns referral counts keyed by YYYY-MM for months
	// starting at or after from. Months without referrals are absent.
	MonthlyCounts(ctx context.Context, from time.Time) (map[string]int, error)
}
