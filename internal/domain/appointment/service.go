package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kalanithib94/eyeDocs-KTP/internal/domain/referral"
	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/db"
	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/middleware"
	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/validation"
)

// ErrSlotTaken means another active appointment starts at the same time.
var ErrSlotTaken = errors.New("time slot already booked")

// ErrTerminalStatus means the appointment can no longer change status.
var ErrTerminalStatus = errors.New("appointment status can no longer change")

// Referrals is the part of the referral store used when booking from a
// referral. referral.Repository satisfies it.
type Referrals interface {
	GetByID(ctx context.Context, id uuid.UUID) (*referral.Referral, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status referral.Status) error
}

type Service struct {
	repo      Repository
	referrals Referrals
	tx        db.Transactor
	logger    zerolog.Logger
	now       func() time.Time
	loc       *time.Location
}

func NewService(repo Repository, referrals Referrals, tx db.Transactor, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		referrals: referrals,
		tx:        tx,
		logger:    logger,
		now:       time.Now,
		loc:       time.Local,
	}
}

func (s *Service) normalize(a *Appointment) {
	a.PatientName = middleware.SanitizeString(a.PatientName)
	a.Notes = middleware.SanitizeString(a.Notes)
	a.Date = strings.TrimSpace(a.Date)
	a.Time = strings.TrimSpace(a.Time)
	a.Type = Type(strings.ToLower(string(a.Type)))
	if a.Type == "" {
		a.Type = TypeGeneral
	}
	a.Status = Status(strings.ToLower(string(a.Status)))
	if a.Status == "" {
		a.Status = StatusScheduled
		if a.Type == TypeEmergency {
			a.Status = StatusUrgent
		}
	}
	if a.Duration == 0 {
		a.Duration = DefaultDuration
	}
}

func (s *Service) validate(a *Appointment) error {
	var v validation.Errors
	v.Required("patient_name", a.PatientName)
	v.MaxLength("patient_name", a.PatientName, validation.MaxNameLength)
	if v.Required("date", a.Date) {
		if _, err := time.Parse("2006-01-02", a.Date); err != nil {
			v.Add("date", "must be a date in YYYY-MM-DD format")
		}
	}
	if v.Required("time", a.Time) {
		v.Match("time", a.Time, validation.TimePattern, "time in HH:MM format")
	}
	validation.OneOf(&v, "type", a.Type, validTypes)
	validation.OneOf(&v, "status", a.Status, validStatuses)
	if a.Duration < 5 || a.Duration > MaxDuration {
		v.Add("duration", "must be between 5 and %d minutes", MaxDuration)
	}
	v.MaxLength("notes", a.Notes, validation.MaxClinicalNotesLength)
	return v.Err()
}

// CreateAppointment books a. When a is linked to a referral the referral must
// exist, supplies the patient name if missing, and moves to scheduled in the
// same transaction.
func (s *Service) CreateAppointment(ctx context.Context, a *Appointment) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		var ref *referral.Referral
		if a.ReferralID != nil {
			r, err := s.referrals.GetByID(ctx, *a.ReferralID)
			if err != nil {
				return fmt.Errorf("referral %s: %w", a.ReferralID, err)
			}
			ref = r
			if a.PatientName == "" {
				a.PatientName = ref.FullName()
			}
			if a.Type == "" && ref.Urgency == referral.UrgencyEmergency {
				a.Type = TypeEmergency
			}
		}

		s.normalize(a)
		if err := s.validate(a); err != nil {
			return err
		}
		if err := s.checkSlot(ctx, a, uuid.Nil); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, a); err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		if ref != nil && (ref.Status == referral.StatusNew || ref.Status == referral.StatusUnderReview) {
			if err := s.referrals.UpdateStatus(ctx, ref.ID, referral.StatusScheduled); err != nil {
				return fmt.Errorf("schedule referral: %w", err)
			}
		}
		s.logger.Info().
			Str("appointment_id", a.ID.String()).
			Str("date", a.Date).
			Str("time", a.Time).
			Msg("appointment booked")
		return nil
	})
}

func (s *Service) checkSlot(ctx context.Context, a *Appointment, exclude uuid.UUID) error {
	if a.Status.Terminal() {
		return nil
	}
	taken, err := s.repo.SlotTaken(ctx, a.Date, a.Time, exclude)
	if err != nil {
		return err
	}
	if taken {
		return ErrSlotTaken
	}
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateAppointment(ctx context.Context, a *Appointment) error {
	existing, err := s.repo.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	if a.Status == "" {
		a.Status = existing.Status
	}
	if a.ReferralID == nil {
		a.ReferralID = existing.ReferralID
	}
	s.normalize(a)
	if err := s.validate(a); err != nil {
		return err
	}
	if a.Date != existing.Date || a.Time != existing.Time {
		if err := s.checkSlot(ctx, a, a.ID); err != nil {
			return err
		}
	}
	a.CreatedAt = existing.CreatedAt
	return s.repo.Update(ctx, a)
}

// UpdateStatus moves an appointment to status. Completed, cancelled and
// no-show appointments are final.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, raw string) (*Appointment, error) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !validStatuses[status] {
		var v validation.Errors
		v.Add("status", "invalid value %q", raw)
		return nil, v.Err()
	}
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status == status {
		return existing, nil
	}
	if existing.Status.Terminal() {
		return nil, ErrTerminalStatus
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	existing.Status = status
	s.logger.Info().Str("appointment_id", id.String()).Str("status", string(status)).Msg("appointment status changed")
	return existing, nil
}

func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	var v validation.Errors
	for _, k := range []string{"date", "from", "to"} {
		v.Match(k, params[k], validation.DatePattern, "date in YYYY-MM-DD format")
	}
	validation.OneOf(&v, "status", Status(params["status"]), validStatuses)
	validation.OneOf(&v, "type", Type(params["type"]), validTypes)
	if id := params["referral_id"]; id != "" {
		if _, err := uuid.Parse(id); err != nil {
			v.Add("referral_id", "must be a UUID")
		}
	}
	if err := v.Err(); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, params, limit, offset)
}

// Today lists the appointments for the current clinic date, earliest first.
func (s *Service) Today(ctx context.Context) (string, []*Appointment, error) {
	date := s.now().In(s.loc).Format("2006-01-02")
	items, err := s.repo.ListByDate(ctx, date)
	return date, items, err
}
