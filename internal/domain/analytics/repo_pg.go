package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type analyticsRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &analyticsRepoPG{pool: pool}
}

func (r *analyticsRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *analyticsRepoPG) Dashboard(ctx context.Context, monthStart time.Time) (*Dashboard, error) {
	d := &Dashboard{
		ByStatus:    map[string]int{},
		ByUrgency:   map[string]int{},
		ByCondition: map[string]int{},
	}
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE created_at >= $1),
			COUNT(*) FILTER (WHERE salesforce_id IS NOT NULL),
			COUNT(*) FILTER (WHERE sync_mode = 'live'),
			COUNT(*) FILTER (WHERE sync_mode = 'simulation'),
			COUNT(*) FILTER (WHERE salesforce_id IS NULL AND sync_error IS NOT NULL)
		FROM referrals`, monthStart).
		Scan(&d.Total, &d.ThisMonth, &d.Sync.Synced, &d.Sync.Live, &d.Sync.Simulated, &d.Sync.Failed)
	if err != nil {
		return nil, fmt.Errorf("referral totals: %w", err)
	}
	d.Sync.Unsynced = d.Total - d.Sync.Synced

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT 'status', status, COUNT(*) FROM referrals GROUP BY status
		UNION ALL
		SELECT 'urgency', urgency, COUNT(*) FROM referrals GROUP BY urgency
		UNION ALL
		SELECT 'condition', condition, COUNT(*) FROM referrals GROUP BY condition`)
	if err != nil {
		return nil, fmt.Errorf("referral breakdown: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dim, key string
		var n int
		if err := rows.Scan(&dim, &key, &n); err != nil {
			return nil, err
		}
		switch dim {
		case "status":
			d.ByStatus[key] = n
		case "urgency":
			d.ByUrgency[key] = n
		case "condition":
			d.ByCondition[key] = n
		}
	}
	return d, rows.Err()
}

func (r *analyticsRepoPG) MonthlyCounts(ctx context.Context, from time.Time) (map[string]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT to_char(date_trunc('month', created_at AT TIME ZONE 'UTC'), 'YYYY-MM'), COUNT(*)
		FROM referrals WHERE created_at >= $1
		GROUP BY 1`, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var month string
		var n int
		if err := rows.Scan(&month, &n); err != nil {
			return nil, err
		}
		out[month] = n
	}
	return out, rows.Err()
}
