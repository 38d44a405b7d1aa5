package client

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/kalanithib94/eyeDocs-KTP/pkg/apiclient"
)

// RecentLimit is how many referrals the dashboard lists.
const RecentLimit = 5

// DashboardAPI is the part of apiclient.Client the dashboard reads.
type DashboardAPI interface {
	ReferralStats(ctx context.Context) (*apiclient.ReferralStats, error)
	ListReferrals(ctx context.Context, opts apiclient.ListOptions) (*apiclient.List[*apiclient.Referral], error)
	SalesforceStatus(ctx context.Context) (*apiclient.SalesforceStatus, error)
}

type DashboardData struct {
	Stats      *apiclient.ReferralStats
	Recent     []*apiclient.Referral
	Salesforce *apiclient.SalesforceStatus
	// SampleStats and SampleRecent report which widgets hold generated data.
	SampleStats  bool
	SampleRecent bool
}

type Dashboard struct {
	api    DashboardAPI
	bus    *Bus
	gen    *SampleGenerator
	logger zerolog.Logger
}

func NewDashboard(api DashboardAPI, bus *Bus, gen *SampleGenerator, logger zerolog.Logger) *Dashboard {
	if gen == nil {
		gen = NewSampleGenerator()
	}
	return &Dashboard{api: api, bus: bus, gen: gen, logger: logger}
}

// Load fetches the widgets concurrently. Stats and recent referrals fall back
// to generated samples when their call fails; the Salesforce widget is left
// nil. Load itself never fails.
func (d *Dashboard) Load(ctx context.Context) *DashboardData {
	data := &DashboardData{}
	var statsErr, recentErr error

	var wg conc.WaitGroup
	wg.Go(func() {
		data.Stats, statsErr = d.api.ReferralStats(ctx)
	})
	wg.Go(func() {
		var list *apiclient.List[*apiclient.Referral]
		list, recentErr = d.api.ListReferrals(ctx, apiclient.ListOptions{Limit: RecentLimit})
		if recentErr == nil {
			data.Recent = list.Data
		}
	})
	wg.Go(func() {
		st, err := d.api.SalesforceStatus(ctx)
		if err != nil {
			d.logger.Warn().Err(err).Msg("salesforce status unavailable")
			return
		}
		data.Salesforce = st
	})
	wg.Wait()

	if statsErr != nil {
		d.logger.Warn().Err(statsErr).Msg("using sample stats data")
		data.Stats = d.gen.Stats()
		data.SampleStats = true
		d.bus.Publish(SampleDataSubstituted{Widget: "stats", Err: statsErr})
	}
	if recentErr != nil {
		d.logger.Warn().Err(recentErr).Msg("using sample referrals data")
		data.Recent = d.gen.Referrals(RecentLimit)
		data.SampleRecent = true
		d.bus.Publish(SampleDataSubstituted{Widget: "recent_referrals", Err: recentErr})
	}
	return data
}
