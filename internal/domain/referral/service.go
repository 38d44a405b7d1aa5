package referral

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"

	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/db"
	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/middleware"
	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/salesforce"
	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/validation"
)

// CRM receives referral copies. *salesforce.Adapter satisfies it.
type CRM interface {
	CreateReferral(ctx context.Context, r salesforce.Referral) (*salesforce.SyncResult, error)
}

const (
	defaultSyncWorkers = 4
	defaultSyncBatch   = 100
)

type Service struct {
	repo   Repository
	crm    CRM
	logger zerolog.Logger
	now    func() time.Time

	syncWorkers int
	syncBatch   int
}

func NewService(repo Repository, crm CRM, logger zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		crm:         crm,
		logger:      logger,
		now:         time.Now,
		syncWorkers: defaultSyncWorkers,
		syncBatch:   defaultSyncBatch,
	}
}

func clean(fields ...*string) {
	for _, f := range fields {
		*f = middleware.SanitizeString(*f)
	}
}

// normalize cleans free text and applies defaults in place.
func (s *Service) normalize(r *Referral) {
	clean(&r.PatientName, &r.FirstName, &r.LastName, &r.Email, &r.Phone, &r.DateOfBirth,
		&r.Address, &r.Postcode, &r.NHSNumber, &r.EmergencyContact, &r.MedicalHistory,
		&r.Allergies, &r.Medications, &r.ClinicalNotes, &r.Source)
	r.splitPatientName()
	r.Email = strings.ToLower(r.Email)
	r.Phone = validation.NormalizePhone(r.Phone)
	r.NHSNumber = validation.NormalizeNHSNumber(r.NHSNumber)
	r.Postcode = strings.ToUpper(r.Postcode)
	r.Condition = Condition(strings.ToLower(string(r.Condition)))
	r.Urgency = Urgency(strings.ToLower(string(r.Urgency)))
	if r.Urgency == "" {
		r.Urgency = UrgencyRoutine
	}
	r.Status = NormalizeStatus(string(r.Status))
	if r.Status == "" {
		r.Status = StatusNew
	}
	if r.Source == "" {
		r.Source = DefaultSource
	}
	r.PatientName = r.FullName()
}

func (s *Service) validate(r *Referral, creating bool) error {
	var v validation.Errors
	v.Required("first_name", r.FirstName)
	v.MaxLength("first_name", r.FirstName, validation.MaxNameLength)
	v.MaxLength("last_name", r.LastName, validation.MaxNameLength)

	if v.Required("condition", string(r.Condition)) {
		validation.OneOf(&v, "condition", r.Condition, validConditions)
	}
	if v.Required("clinical_notes", r.ClinicalNotes) {
		if len([]rune(r.ClinicalNotes)) < validation.MinClinicalNotesLength {
			v.Add("clinical_notes", "must be at least %d characters", validation.MinClinicalNotesLength)
		}
		v.MaxLength("clinical_notes", r.ClinicalNotes, validation.MaxClinicalNotesLength)
	}

	v.Match("email", r.Email, validation.EmailPattern, "email address")
	v.Match("phone", r.Phone, validation.PhonePattern, "phone number")
	v.Match("nhs_number", r.NHSNumber, validation.NHSNumberPattern, "10 digit NHS number")
	if r.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", r.DateOfBirth)
		switch {
		case err != nil:
			v.Add("date_of_birth", "must be a date in YYYY-MM-DD format")
		case dob.After(s.now()):
			v.Add("date_of_birth", "must not be in the future")
		}
	}

	validation.OneOf(&v, "urgency", r.Urgency, validUrgencies)
	validation.OneOf(&v, "status", r.Status, validStatuses)

	if creating {
		if !r.Consent {
			v.Add("consent", "patient consent is required")
		}
		if !r.GDPRConsent {
			v.Add("gdpr", "GDPR acknowledgement is required")
		}
	}
	return v.Err()
}

// CreateReferral validates and stores r, then mirrors it to the CRM. A failed
// sync is recorded on the referral and reported in the result; the referral
// itself stays created.
func (s *Service) CreateReferral(ctx context.Context, r *Referral) (*CreateResult, error) {
	s.normalize(r)
	r.Status = StatusNew
	if err := s.validate(r, true); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create referral: %w", err)
	}
	s.logger.Info().
		Str("referral_id", r.ID.String()).
		Str("referral_number", r.ReferralNumber).
		Str("urgency", string(r.Urgency)).
		Msg("referral created")

	out := s.sync(ctx, r)
	if fresh, err := s.repo.GetByID(ctx, r.ID); err == nil {
		r = fresh
	}
	return &CreateResult{Referral: r, Salesforce: out}, nil
}

func (s *Service) GetReferral(ctx context.Context, id uuid.UUID) (*Referral, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateReferral replaces the editable fields of an existing referral. The
// referral number, source and sync columns are kept from the stored row.
func (s *Service) UpdateReferral(ctx context.Context, r *Referral) error {
	existing, err := s.repo.GetByID(ctx, r.ID)
	if err != nil {
		return err
	}
	if r.Status == "" {
		r.Status = existing.Status
	}
	s.normalize(r)
	if err := s.validate(r, false); err != nil {
		return err
	}
	r.ReferralNumber = existing.ReferralNumber
	r.Source = existing.Source
	r.SalesforceID = existing.SalesforceID
	r.SyncMode = existing.SyncMode
	r.SyncError = existing.SyncError
	r.SyncedAt = existing.SyncedAt
	r.CreatedAt = existing.CreatedAt
	return s.repo.Update(ctx, r)
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, raw string) (*Referral, error) {
	status := NormalizeStatus(raw)
	if !status.Valid() {
		var v validation.Errors
		v.Add("status", "invalid value %q", raw)
		return nil, v.Err()
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	s.logger.Info().Str("referral_id", id.String()).Str("status", string(status)).Msg("referral status changed")
	return s.repo.GetByID(ctx, id)
}

func (s *Service) DeleteReferral(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// ListReferrals validates enum filters before querying.
func (s *Service) ListReferrals(ctx context.Context, params map[string]string, limit, offset int) ([]*Referral, int, error) {
	var v validation.Errors
	if st, ok := params["status"]; ok && st != "" {
		params["status"] = string(NormalizeStatus(st))
		validation.OneOf(&v, "status", Status(params["status"]), validStatuses)
	}
	if u, ok := params["urgency"]; ok {
		validation.OneOf(&v, "urgency", Urgency(u), validUrgencies)
	}
	if c, ok := params["condition"]; ok {
		validation.OneOf(&v, "condition", Condition(c), validConditions)
	}
	if id, ok := params["optician_id"]; ok && id != "" {
		if _, err := uuid.Parse(id); err != nil {
			v.Add("optician_id", "must be a UUID")
		}
	}
	for _, k := range []string{"from", "to"} {
		v.Match(k, params[k], validation.DatePattern, "date in YYYY-MM-DD format")
	}
	if err := v.Err(); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, params, limit, offset)
}

// SearchReferrals matches q against names, referral number, email, NHS
// number and clinical notes.
func (s *Service) SearchReferrals(ctx context.Context, q string, limit, offset int) ([]*Referral, int, error) {
	q = middleware.SanitizeString(q)
	if q == "" {
		var v validation.Errors
		v.Add("q", "is required")
		return nil, 0, v.Err()
	}
	return s.repo.List(ctx, map[string]string{"q": q}, limit, offset)
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}

// SyncReferral mirrors one referral. A live id is never replaced; force
// allows a simulated id to be replaced by a live one.
func (s *Service) SyncReferral(ctx context.Context, id uuid.UUID, force bool) (*SyncOutcome, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Synced() && !(force && r.SimulatedSync()) {
		return skipped(r), nil
	}
	out := s.sync(ctx, r)
	if !out.Success {
		return out, &SyncError{Outcome: out, Err: out.syncErr}
	}
	return out, nil
}

// SyncError is returned when the CRM rejected a sync.
type SyncError struct {
	Outcome *SyncOutcome
	Err     error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync referral %s: %s", e.Outcome.ReferralNumber, e.Outcome.Error)
}

func (e *SyncError) Unwrap() error { return e.Err }

func skipped(r *Referral) *SyncOutcome {
	out := &SyncOutcome{
		ReferralID:     r.ID,
		ReferralNumber: r.ReferralNumber,
		Success:        true,
		Skipped:        true,
		Message:        "already synced",
	}
	if r.SalesforceID != nil {
		out.SalesforceID = *r.SalesforceID
	}
	if r.SyncMode != nil {
		out.Mode = salesforce.Mode(*r.SyncMode)
	}
	return out
}

// sync calls the CRM and records the result on the referral.
func (s *Service) sync(ctx context.Context, r *Referral) *SyncOutcome {
	out := &SyncOutcome{ReferralID: r.ID, ReferralNumber: r.ReferralNumber}

	res, err := s.crm.CreateReferral(ctx, r.CRMRecord())
	if err != nil {
		out.Error = err.Error()
		if recErr := s.repo.RecordSyncError(ctx, r.ID, err.Error()); recErr != nil {
			s.logger.Error().Err(recErr).Str("referral_id", r.ID.String()).Msg("failed to record sync error")
		}
		s.logger.Warn().Err(err).Str("referral_id", r.ID.String()).Msg("referral sync failed")
		out.syncErr = err
		return out
	}

	out.Success = true
	out.SalesforceID = res.SalesforceID
	out.Mode = res.Mode
	out.Message = res.Message

	changed, err := s.repo.RecordSync(ctx, r.ID, res.SalesforceID, res.Mode, s.now().UTC())
	if err != nil {
		s.logger.Error().Err(err).Str("referral_id", r.ID.String()).Msg("failed to record sync result")
		out.Success = false
		out.Error = "synced but failed to store salesforce id: " + err.Error()
		out.syncErr = err
		return out
	}
	if !changed && r.SalesforceID != nil {
		// Simulated result on a forced resync: keep the stored id.
		out.SalesforceID = *r.SalesforceID
		out.Skipped = true
		out.Message = "kept existing salesforce id"
	}
	return out
}

// SyncAll mirrors every referral without a remote id (and, with force, every
// referral holding a simulated id) using a bounded worker pool. Per-referral
// failures are collected; the returned error combines them.
func (s *Service) SyncAll(ctx context.Context, force bool) (*BulkSyncResult, error) {
	refs, err := s.repo.ListForSync(ctx, force, s.syncBatch)
	if err != nil {
		return nil, fmt.Errorf("list referrals for sync: %w", err)
	}

	// A pgx conn serves one query at a time.
	workerCtx := db.WithoutConn(ctx)
	p := pool.NewWithResults[*SyncOutcome]().WithMaxGoroutines(s.syncWorkers)
	for _, r := range refs {
		p.Go(func() *SyncOutcome {
			return s.sync(workerCtx, r)
		})
	}
	outcomes := p.Wait()
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].ReferralNumber < outcomes[j].ReferralNumber
	})

	res := &BulkSyncResult{Total: len(outcomes), Results: outcomes}
	var errs error
	for _, o := range outcomes {
		switch {
		case o.Skipped:
			res.Skipped++
		case o.Success:
			res.Synced++
		default:
			res.Failed++
			errs = multierr.Append(errs, &SyncError{Outcome: o, Err: o.syncErr})
		}
	}
	s.logger.Info().
		Int("total", res.Total).
		Int("synced", res.Synced).
		Int("failed", res.Failed).
		Bool("force", force).
		Msg("bulk referral sync finished")
	return res, errs
}

// IsRemoteFailure reports whether err came from the CRM rather than storage.
func IsRemoteFailure(err error) bool {
	var createErr *salesforce.RemoteCreateError
	var authErr *salesforce.RemoteAuthError
	return errors.As(err, &createErr) || errors.As(err, &authErr)
}
