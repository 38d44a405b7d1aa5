package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalanithib94/eyeDocs-KTP/pkg/apiclient"
)

type fakeReferralAPI struct {
	err  error
	sent []*apiclient.Referral
}

func (f *fakeReferralAPI) CreateReferral(_ context.Context, r *apiclient.Referral) (*apiclient.CreateResult, error) {
	f.sent = append(f.sent, r)
	if f.err != nil {
		return nil, f.err
	}
	return &apiclient.CreateResult{
		Referral:   &apiclient.Referral{ID: "r1", ReferralNumber: "REF-202503-0001", Urgency: r.Urgency},
		Salesforce: &apiclient.SyncOutcome{Success: true, Mode: "simulation"},
	}, nil
}

type fakeDrafts struct{ cleared []string }

func (f *fakeDrafts) ClearDraft(name string) error {
	f.cleared = append(f.cleared, name)
	return nil
}

func TestSubmit_Success(t *testing.T) {
	api := &fakeReferralAPI{}
	drafts := &fakeDrafts{}
	bus := NewBus()
	var got []SubmitSucceeded
	Subscribe(bus, func(e SubmitSucceeded) { got = append(got, e) })

	o := NewFormOrchestrator(api, bus, drafts, zerolog.Nop())
	res, err := o.Submit(context.Background(), validForm(), "emma")
	require.NoError(t, err)

	assert.Equal(t, "REF-202503-0001", res.Referral.ReferralNumber)
	require.Len(t, api.sent, 1)
	assert.Equal(t, "routine", api.sent[0].Urgency)
	assert.Equal(t, []string{"emma"}, drafts.cleared)
	assert.Len(t, got, 1)
}

func TestSubmit_InvalidNeverCallsAPI(t *testing.T) {
	api := &fakeReferralAPI{}
	bus := NewBus()
	var failed []SubmitFailed
	Subscribe(bus, func(e SubmitFailed) { failed = append(failed, e) })

	o := NewFormOrchestrator(api, bus, nil, zerolog.Nop())
	_, err := o.Submit(context.Background(), &apiclient.Referral{}, "")

	var fe *FormError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Fields, "condition")
	assert.Empty(t, api.sent)
	require.Len(t, failed, 1)
	assert.Equal(t, fe.Fields, failed[0].Fields)
}

func TestSubmit_TimeoutMessage(t *testing.T) {
	api := &fakeReferralAPI{err: &apiclient.NetworkTimeoutError{Method: http.MethodPost, URL: "/referrals", Timeout: 30 * time.Second}}
	bus := NewBus()
	var failed []SubmitFailed
	Subscribe(bus, func(e SubmitFailed) { failed = append(failed, e) })
	drafts := &fakeDrafts{}

	o := NewFormOrchestrator(api, bus, drafts, zerolog.Nop())
	_, err := o.Submit(context.Background(), validForm(), "emma")

	assert.True(t, apiclient.IsTimeout(err))
	require.Len(t, failed, 1)
	assert.Equal(t, "The request timed out. Please try again later.", failed[0].Message)
	assert.Empty(t, drafts.cleared)
}

func TestFailureMessage(t *testing.T) {
	assert.Equal(t, "Your session has expired. Please log in again.",
		FailureMessage(&apiclient.HTTPError{Status: http.StatusUnauthorized}))
	assert.Equal(t, "condition: invalid value",
		FailureMessage(&apiclient.HTTPError{Status: http.StatusBadRequest, Message: "condition: invalid value"}))
	assert.Equal(t, "Unable to submit the referral right now. Please try again later.",
		FailureMessage(&apiclient.HTTPError{Status: http.StatusBadGateway, Message: "upstream"}))
	assert.Equal(t, "Unable to submit the referral right now. Please try again later.",
		FailureMessage(errors.New("connection refused")))
}
