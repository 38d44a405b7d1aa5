package optician

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/validation"
)

// -- Mock Repository --

type mockOpticianRepo struct {
	store map[uuid.UUID]*Optician
}

func newMockOpticianRepo() *mockOpticianRepo {
	return &mockOpticianRepo{store: make(map[uuid.UUID]*Optician)}
}

func (m *mockOpticianRepo) Create(_ context.Context, o *Optician) error {
	o.ID = uuid.New()
	o.CreatedAt = time.Now()
	c := *o
	m.store[o.ID] = &c
	return nil
}

func (m *mockOpticianRepo) GetByID(_ context.Context, id uuid.UUID) (*Optician, error) {
	o, ok := m.store[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := *o
	return &c, nil
}

func (m *mockOpticianRepo) Update(_ context.Context, o *Optician) error {
	if _, ok := m.store[o.ID]; !ok {
		return pgx.ErrNoRows
	}
	c := *o
	m.store[o.ID] = &c
	return nil
}

func (m *mockOpticianRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.store, id)
	return nil
}

func (m *mockOpticianRepo) List(_ context.Context, params map[string]string, limit, offset int) ([]*Optician, int, error) {
	var r []*Optician
	for _, o := range m.store {
		if a, ok := params["active"]; ok && (a == "true") != o.IsActive() {
			continue
		}
		r = append(r, o)
	}
	return r, len(r), nil
}

func newTestService() *Service {
	return NewService(newMockOpticianRepo())
}

func boolPtr(b bool) *bool { return &b }

// -- Tests --

func TestCreateOptician(t *testing.T) {
	svc := newTestService()
	o := &Optician{
		PracticeName:  "  High Street Opticians ",
		ContactPerson: "Sarah Jones",
		Email:         "Sarah@HighStreet.co.uk",
		Phone:         "+44 20 7946 0000",
		Postcode:      "sw1a 1aa",
	}
	if err := svc.CreateOptician(context.Background(), o); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if o.PracticeName != "High Street Opticians" || o.Email != "sarah@highstreet.co.uk" || o.Postcode != "SW1A 1AA" {
		t.Errorf("expected normalized fields, got %+v", o)
	}
	if !o.IsActive() {
		t.Error("new opticians default to active")
	}
}

func TestCreateOptician_Validation(t *testing.T) {
	svc := newTestService()
	err := svc.CreateOptician(context.Background(), &Optician{Email: "bad", Phone: "abc"})
	fields := validation.Fields(err)
	for _, f := range []string{"practice_name", "email", "phone"} {
		if fields[f] == "" {
			t.Errorf("expected %s error, got %v", f, fields)
		}
	}
}

func TestUpdateOptician_KeepsActive(t *testing.T) {
	svc := newTestService()
	o := &Optician{PracticeName: "Vision Plus", Active: boolPtr(false)}
	svc.CreateOptician(context.Background(), o)

	upd := &Optician{ID: o.ID, PracticeName: "Vision Plus Ltd"}
	if err := svc.UpdateOptician(context.Background(), upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := svc.GetOptician(context.Background(), o.ID)
	if got.PracticeName != "Vision Plus Ltd" || got.IsActive() {
		t.Errorf("unexpected optician %+v", got)
	}
}

func TestUpdateOptician_NotFound(t *testing.T) {
	svc := newTestService()
	err := svc.UpdateOptician(context.Background(), &Optician{ID: uuid.New(), PracticeName: "X"})
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("expected ErrNoRows, got %v", err)
	}
}

func TestListOpticians_ActiveFilter(t *testing.T) {
	svc := newTestService()
	svc.CreateOptician(context.Background(), &Optician{PracticeName: "A"})
	svc.CreateOptician(context.Background(), &Optician{PracticeName: "B", Active: boolPtr(false)})

	_, total, err := svc.ListOpticians(context.Background(), map[string]string{"active": "1"}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 {
		t.Errorf("expected 1 active optician, got %d", total)
	}

	_, _, err = svc.ListOpticians(context.Background(), map[string]string{"active": "maybe"}, 20, 0)
	if !validation.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}
