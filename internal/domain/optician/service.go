package optician

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/middleware"
	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/validation"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) validate(o *Optician) error {
	for _, f := range []*string{&o.PracticeName, &o.ContactPerson, &o.Email, &o.Phone, &o.Address, &o.Postcode} {
		*f = middleware.SanitizeString(*f)
	}
	o.Email = strings.ToLower(o.Email)
	o.Phone = validation.NormalizePhone(o.Phone)
	o.Postcode = strings.ToUpper(o.Postcode)

	var v validation.Errors
	v.Required("practice_name", o.PracticeName)
	v.MaxLength("practice_name", o.PracticeName, validation.MaxNameLength)
	v.MaxLength("contact_person", o.ContactPerson, validation.MaxNameLength)
	v.Match("email", o.Email, validation.EmailPattern, "email address")
	v.Match("phone", o.Phone, validation.PhonePattern, "phone number")
	return v.Err()
}

func (s *Service) CreateOptician(ctx context.Context, o *Optician) error {
	if err := s.validate(o); err != nil {
		return err
	}
	return s.repo.Create(ctx, o)
}

func (s *Service) GetOptician(ctx context.Context, id uuid.UUID) (*Optician, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateOptician(ctx context.Context, o *Optician) error {
	existing, err := s.repo.GetByID(ctx, o.ID)
	if err != nil {
		return err
	}
	if o.Active == nil {
		o.Active = existing.Active
	}
	if err := s.validate(o); err != nil {
		return err
	}
	o.CreatedAt = existing.CreatedAt
	return s.repo.Update(ctx, o)
}

func (s *Service) DeleteOptician(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListOpticians(ctx context.Context, params map[string]string, limit, offset int) ([]*Optician, int, error) {
	if a, ok := params["active"]; ok {
		b, err := strconv.ParseBool(a)
		if err != nil {
			var v validation.Errors
			v.Add("active", "must be true or false")
			return nil, 0, v.Err()
		}
		params["active"] = strconv.FormatBool(b)
	}
	return s.repo.List(ctx, params, limit, offset)
}
