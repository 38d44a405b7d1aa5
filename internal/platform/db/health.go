package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
		Healthy:         stat.TotalConns() > 0,
	}
}

// Checker pings the database for the /health endpoint.
type Checker struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewChecker(pool *pgxpool.Pool) *Checker {
	return &Checker{pool: pool, timeout: 5 * time.Second}
}

// Check pings with a short timeout and returns the pool stats; Healthy is
// false whenever the ping fails.
func (h *Checker) Check(ctx context.Context) (*PoolStats, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	err := h.pool.Ping(ctx)
	stats := GetPoolStats(h.pool)
	if err != nil {
		stats.Healthy = false
		return stats, err
	}
	return stats, nil
}
