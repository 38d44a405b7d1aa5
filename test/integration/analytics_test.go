package integration

import (
	"context"
	"testing"
	"time"

	"github.com/kalanithib94/eyeDocs-KTP/internal/domain/analytics"
	"github.com/kalanithib94/eyeDocs-KTP/internal/domain/referral"
	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/salesforce"
)

func TestAnalyticsQueries(t *testing.T) {
	ctx := context.Background()
	resetTables(t)

	now := time.Now().UTC()
	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastMonth := thisMonth.AddDate(0, -1, 0)

	a := createTestReferral(t, ctx, "Emma", "Thompson", nil)
	b := createTestReferral(t, ctx, "James", "Wilson", nil)
	c := createTestReferral(t, ctx, "Amira", "Khan", nil)
	setCreatedAt(t, ctx, a.ID, thisMonth.Add(time.Hour))
	setCreatedAt(t, ctx, b.ID, lastMonth.Add(time.Hour))
	setCreatedAt(t, ctx, c.ID, lastMonth.Add(48*time.Hour))

	refs := referral.NewRepoPG(globalDB.Pool)
	if _, err := refs.RecordSync(ctx, a.ID, "REF_1_abc", salesforce.ModeSimulation, now); err != nil {
		t.Fatalf("RecordSync: %v", err)
	}
	if err := refs.UpdateStatus(ctx, c.ID, referral.StatusCompleted); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	repo := analytics.NewRepoPG(globalDB.Pool)

	t.Run("Dashboard", func(t *testing.T) {
		d, err := repo.Dashboard(ctx, thisMonth)
		if err != nil {
			t.Fatalf("Dashboard: %v", err)
		}
		if d.Total != 3 || d.ThisMonth != 1 {
			t.Errorf("expected total 3 and 1 this month, got %d/%d", d.Total, d.ThisMonth)
		}
		if d.ByStatus["new"] != 2 || d.ByStatus["completed"] != 1 {
			t.Errorf("unexpected status breakdown %v", d.ByStatus)
		}
		if d.ByCondition["glaucoma"] != 3 {
			t.Errorf("unexpected condition breakdown %v", d.ByCondition)
		}
		if d.Sync.Synced != 1 || d.Sync.Simulated != 1 || d.Sync.Unsynced != 2 {
			t.Errorf("unexpected sync counts %+v", d.Sync)
		}
	})

	t.Run("MonthlyCounts", func(t *testing.T) {
		counts, err := repo.MonthlyCounts(ctx, lastMonth)
		if err != nil {
			t.Fatalf("MonthlyCounts: %v", err)
		}
		if counts[lastMonth.Format("2006-01")] != 2 || counts[thisMonth.Format("2006-01")] != 1 {
			t.Errorf("unexpected monthly counts %v", counts)
		}
	})
}
