package db

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestPoolStats_JSON(t *testing.T) {
	stats := PoolStats{
		TotalConns:      1,
		IdleConns:       1,
		MaxConns:        10,
		AcquireCount:    50,
		AcquireDuration: "250ms",
		Healthy:         true,
	}

	b, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`"total_conns":1`, `"max_conns":10`, `"acquire_duration":"250ms"`, `"healthy":true`} {
		if !strings.Contains(string(b), want) {
			t.Errorf("expected %s in %s", want, b)
		}
	}
}

func TestNewChecker_DefaultTimeout(t *testing.T) {
	c := NewChecker(nil)
	if c.timeout.Seconds() != 5 {
		t.Errorf("expected 5s timeout, got %s", c.timeout)
	}
}
