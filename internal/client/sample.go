package client

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/Pallinder/go-randomdata"

	"github.com/kalanithib94/eyeDocs-KTP/pkg/apiclient"
)

var (
	sampleConditions = []string{"cataract", "amd", "oculoplastics", "vitreoretinal"}
	sampleStatuses   = []string{"new", "under_review", "scheduled", "completed"}
)

// SampleGenerator produces placeholder dashboard data shown when the API is
// unreachable. Rows are marked with Source "sample".
type SampleGenerator struct {
	now func() time.Time
}

func NewSampleGenerator() *SampleGenerator {
	return &SampleGenerator{now: time.Now}
}

func between(lo, hi int) int {
	return lo + rand.IntN(hi-lo+1)
}

// Stats returns counts in fixed demo ranges: new 5-24, under review 3-17,
// scheduled 8-32, completed 20-69.
func (g *SampleGenerator) Stats() *apiclient.ReferralStats {
	s := &apiclient.ReferralStats{
		New:         between(5, 24),
		UnderReview: between(3, 17),
		Scheduled:   between(8, 32),
		Completed:   between(20, 69),
	}
	s.Total = s.New + s.UnderReview + s.Scheduled + s.Completed
	s.Unsynced = s.Total
	return s
}

// Referrals returns n referrals numbered REF-YYYYMM-0001 upwards for the
// current month, received within the last week.
func (g *SampleGenerator) Referrals(n int) []*apiclient.Referral {
	now := g.now()
	out := make([]*apiclient.Referral, n)
	for i := range out {
		urgency := "routine"
		if rand.Float64() < 0.3 {
			urgency = "urgent"
		}
		first := randomdata.FirstName(randomdata.RandomGender)
		last := randomdata.LastName()
		out[i] = &apiclient.Referral{
			ID:             fmt.Sprintf("sample-%d", i+1),
			ReferralNumber: fmt.Sprintf("REF-%s-%04d", now.Format("200601"), i+1),
			PatientName:    first + " " + last,
			FirstName:      first,
			LastName:       last,
			Condition:      sampleConditions[rand.IntN(len(sampleConditions))],
			Status:         sampleStatuses[rand.IntN(len(sampleStatuses))],
			Urgency:        urgency,
			Source:         "sample",
			CreatedAt:      now.Add(-time.Duration(rand.Int64N(int64(7 * 24 * time.Hour)))),
		}
	}
	return out
}
