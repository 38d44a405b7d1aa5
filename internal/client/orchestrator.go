package client

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kalanithib94/eyeDocs-KTP/pkg/apiclient"
)

// ReferralAPI is the part of apiclient.Client used to submit referrals.
type ReferralAPI interface {
	CreateReferral(ctx context.Context, r *apiclient.Referral) (*apiclient.CreateResult, error)
}

// DraftStore keeps unsent forms. *Store satisfies it.
type DraftStore interface {
	ClearDraft(name string) error
}

// FormError is returned by Submit when the form fails validation.
type FormError struct {
	Fields map[string]string
}

func (e *FormError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "invalid referral: " + strings.Join(parts, "; ")
}

// FormOrchestrator validates and submits referral forms and reports the
// outcome on its Bus.
type FormOrchestrator struct {
	api    ReferralAPI
	bus    *Bus
	drafts DraftStore
	logger zerolog.Logger
}

func NewFormOrchestrator(api ReferralAPI, bus *Bus, drafts DraftStore, logger zerolog.Logger) *FormOrchestrator {
	return &FormOrchestrator{api: api, bus: bus, drafts: drafts, logger: logger}
}

func applyDefaults(r *apiclient.Referral) {
	if r.Urgency == "" {
		r.Urgency = "routine"
	}
}

// FailureMessage turns a submission error into a message for the user.
func FailureMessage(err error) string {
	var he *apiclient.HTTPError
	switch {
	case apiclient.IsTimeout(err):
		return "The request timed out. Please try again later."
	case apiclient.IsUnauthorized(err):
		return "Your session has expired. Please log in again."
	case errors.As(err, &he) && he.Status < 500 && he.Message != "":
		return he.Message
	default:
		return "Unable to submit the referral right now. Please try again later."
	}
}

// Submit validates form, applies defaults and sends it. draft names the
// saved draft to clear on success; empty means none.
func (o *FormOrchestrator) Submit(ctx context.Context, form *apiclient.Referral, draft string) (*apiclient.CreateResult, error) {
	applyDefaults(form)
	if fields := ValidateReferral(form); len(fields) > 0 {
		err := &FormError{Fields: fields}
		o.bus.Publish(SubmitFailed{Fields: fields, Err: err, Message: "Please correct the highlighted fields."})
		return nil, err
	}

	res, err := o.api.CreateReferral(ctx, form)
	if err != nil {
		msg := FailureMessage(err)
		o.logger.Error().Err(err).Msg("referral submission failed")
		o.bus.Publish(SubmitFailed{Err: err, Message: msg})
		return nil, fmt.Errorf("submit referral: %w", err)
	}

	if draft != "" && o.drafts != nil {
		if err := o.drafts.ClearDraft(draft); err != nil {
			o.logger.Warn().Err(err).Str("draft", draft).Msg("could not clear draft")
		}
	}

	ev := o.logger.Info()
	if res.Referral != nil {
		ev = ev.Str("referral_number", res.Referral.ReferralNumber)
	}
	if res.Salesforce != nil {
		ev = ev.Str("salesforce_mode", res.Salesforce.Mode)
	}
	ev.Msg("referral submitted")

	o.bus.Publish(SubmitSucceeded{Result: res})
	return res, nil
}
