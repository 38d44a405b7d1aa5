package appointment

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/kalanithib94/eyeDocs-KTP/internal/domain/referral"
	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/db"
	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/validation"
)

// -- Mock Repository --

type mockAppointmentRepo struct {
	store map[uuid.UUID]*Appointment
}

func newMockAppointmentRepo() *mockAppointmentRepo {
	return &mockAppointmentRepo{store: make(map[uuid.UUID]*Appointment)}
}

func (m *mockAppointmentRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	c := *a
	m.store[a.ID] = &c
	return nil
}

func (m *mockAppointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.store[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := *a
	return &c, nil
}

func (m *mockAppointmentRepo) Update(_ context.Context, a *Appointment) error {
	if _, ok := m.store[a.ID]; !ok {
		return pgx.ErrNoRows
	}
	c := *a
	m.store[a.ID] = &c
	return nil
}

func (m *mockAppointmentRepo) UpdateStatus(_ context.Context, id uuid.UUID, status Status) error {
	a, ok := m.store[id]
	if !ok {
		return pgx.ErrNoRows
	}
	a.Status = status
	return nil
}

func (m *mockAppointmentRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.store, id)
	return nil
}

func (m *mockAppointmentRepo) List(_ context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	var r []*Appointment
	for _, a := range m.store {
		if v := params["status"]; v != "" && string(a.Status) != v {
			continue
		}
		if v := params["date"]; v != "" && a.Date != v {
			continue
		}
		c := *a
		r = append(r, &c)
	}
	sortByStart(r)
	total := len(r)
	if offset >= len(r) {
		return nil, total, nil
	}
	r = r[offset:]
	if limit < len(r) {
		r = r[:limit]
	}
	return r, total, nil
}

func (m *mockAppointmentRepo) ListByDate(_ context.Context, date string) ([]*Appointment, error) {
	var r []*Appointment
	for _, a := range m.store {
		if a.Date == date {
			c := *a
			r = append(r, &c)
		}
	}
	sortByStart(r)
	return r, nil
}

func (m *mockAppointmentRepo) SlotTaken(_ context.Context, date, at string, excludeID uuid.UUID) (bool, error) {
	for id, a := range m.store {
		if id == excludeID || a.Status == StatusCancelled || a.Status == StatusNoShow {
			continue
		}
		if a.Date == date && a.Time == at {
			return true, nil
		}
	}
	return false, nil
}

func sortByStart(r []*Appointment) {
	sort.Slice(r, func(i, j int) bool {
		return r[i].Date+r[i].Time < r[j].Date+r[j].Time
	})
}

// -- Mock Referrals --

type mockReferrals struct {
	store   map[uuid.UUID]*referral.Referral
	updates map[uuid.UUID]referral.Status
}

func newMockReferrals(refs ...*referral.Referral) *mockReferrals {
	m := &mockReferrals{
		store:   make(map[uuid.UUID]*referral.Referral),
		updates: make(map[uuid.UUID]referral.Status),
	}
	for _, r := range refs {
		m.store[r.ID] = r
	}
	return m
}

func (m *mockReferrals) GetByID(_ context.Context, id uuid.UUID) (*referral.Referral, error) {
	r, ok := m.store[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := *r
	return &c, nil
}

func (m *mockReferrals) UpdateStatus(_ context.Context, id uuid.UUID, status referral.Status) error {
	r, ok := m.store[id]
	if !ok {
		return pgx.ErrNoRows
	}
	r.Status = status
	m.updates[id] = status
	return nil
}

// recordingTx counts transactions.
type recordingTx struct {
	calls int
}

func (t *recordingTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

func newTestService(refs ...*referral.Referral) (*Service, *mockAppointmentRepo, *mockReferrals) {
	repo := newMockAppointmentRepo()
	referrals := newMockReferrals(refs...)
	svc := NewService(repo, referrals, db.NoTx{}, zerolog.Nop())
	svc.loc = time.UTC
	svc.now = func() time.Time { return time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC) }
	return svc, repo, referrals
}

func validAppointment() *Appointment {
	return &Appointment{
		PatientName: "Emma Thompson",
		Date:        "2025-03-14",
		Time:        "10:30",
	}
}

// -- Tests --

func TestService_CreateAppointment_Defaults(t *testing.T) {
	svc, _, _ := newTestService()
	a := validAppointment()
	if err := svc.CreateAppointment(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if a.Type != TypeGeneral {
		t.Errorf("expected type general, got %s", a.Type)
	}
	if a.Status != StatusScheduled {
		t.Errorf("expected status scheduled, got %s", a.Status)
	}
	if a.Duration != DefaultDuration {
		t.Errorf("expected duration %d, got %d", DefaultDuration, a.Duration)
	}
}

func TestService_CreateAppointment_EmergencyIsUrgent(t *testing.T) {
	svc, _, _ := newTestService()
	a := validAppointment()
	a.Type = "Emergency"
	if err := svc.CreateAppointment(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Type != TypeEmergency || a.Status != StatusUrgent {
		t.Errorf("expected emergency/urgent, got %s/%s", a.Type, a.Status)
	}
}

func TestService_CreateAppointment_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	a := &Appointment{Date: "14/03/2025", Time: "25:99", Type: "checkup", Duration: 600}
	err := svc.CreateAppointment(context.Background(), a)
	if !validation.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	fields := validation.Fields(err)
	for _, f := range []string{"patient_name", "date", "time", "type", "duration"} {
		if _, ok := fields[f]; !ok {
			t.Errorf("expected error on %s, got %v", f, fields)
		}
	}
}

func TestService_CreateAppointment_SlotTaken(t *testing.T) {
	svc, _, _ := newTestService()
	if err := svc.CreateAppointment(context.Background(), validAppointment()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := svc.CreateAppointment(context.Background(), validAppointment())
	if !errors.Is(err, ErrSlotTaken) {
		t.Errorf("expected ErrSlotTaken, got %v", err)
	}
}

func TestService_CreateAppointment_CancelledSlotIsFree(t *testing.T) {
	svc, _, _ := newTestService()
	first := validAppointment()
	if err := svc.CreateAppointment(context.Background(), first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), first.ID, "cancelled"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.CreateAppointment(context.Background(), validAppointment()); err != nil {
		t.Errorf("expected slot to be free after cancellation, got %v", err)
	}
}

func TestService_CreateAppointment_FromReferral(t *testing.T) {
	ref := &referral.Referral{
		ID:        uuid.New(),
		FirstName: "Oliver",
		LastName:  "Hughes",
		Status:    referral.StatusNew,
		Urgency:   referral.UrgencyEmergency,
	}
	svc, _, refs := newTestService(ref)
	tx := &recordingTx{}
	svc.tx = tx

	a := &Appointment{ReferralID: &ref.ID, Date: "2025-03-15", Time: "09:00"}
	if err := svc.CreateAppointment(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.calls != 1 {
		t.Errorf("expected one transaction, got %d", tx.calls)
	}
	if a.PatientName != "Oliver Hughes" {
		t.Errorf("expected patient name from referral, got %q", a.PatientName)
	}
	if a.Type != TypeEmergency {
		t.Errorf("expected emergency type from referral urgency, got %s", a.Type)
	}
	if refs.updates[ref.ID] != referral.StatusScheduled {
		t.Errorf("expected referral scheduled, got %q", refs.updates[ref.ID])
	}
}

func TestService_CreateAppointment_ReferralAlreadyProgressed(t *testing.T) {
	ref := &referral.Referral{ID: uuid.New(), FirstName: "A", LastName: "B", Status: referral.StatusInProgress}
	svc, _, refs := newTestService(ref)

	a := &Appointment{ReferralID: &ref.ID, Date: "2025-03-15", Time: "09:00"}
	if err := svc.CreateAppointment(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := refs.updates[ref.ID]; ok {
		t.Error("expected in-progress referral to keep its status")
	}
}

func TestService_CreateAppointment_UnknownReferral(t *testing.T) {
	svc, repo, _ := newTestService()
	id := uuid.New()
	a := &Appointment{ReferralID: &id, PatientName: "X", Date: "2025-03-15", Time: "09:00"}
	err := svc.CreateAppointment(context.Background(), a)
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("expected ErrNoRows, got %v", err)
	}
	if len(repo.store) != 0 {
		t.Error("expected nothing stored")
	}
}

func TestService_UpdateAppointment_KeepsStatusAndReferral(t *testing.T) {
	ref := &referral.Referral{ID: uuid.New(), FirstName: "A", LastName: "B", Status: referral.StatusNew}
	svc, _, _ := newTestService(ref)
	a := validAppointment()
	a.ReferralID = &ref.ID
	a.Status = StatusConfirmed
	if err := svc.CreateAppointment(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	upd := &Appointment{ID: a.ID, PatientName: "Emma Thompson", Date: a.Date, Time: "11:00", Notes: "moved"}
	if err := svc.UpdateAppointment(context.Background(), upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := svc.GetAppointment(context.Background(), a.ID)
	if got.Status != StatusConfirmed {
		t.Errorf("expected status confirmed, got %s", got.Status)
	}
	if got.ReferralID == nil || *got.ReferralID != ref.ID {
		t.Error("expected referral link to be kept")
	}
	if got.Time != "11:00" {
		t.Errorf("expected time 11:00, got %s", got.Time)
	}
}

func TestService_UpdateAppointment_SameSlotIsNotConflict(t *testing.T) {
	svc, _, _ := newTestService()
	a := validAppointment()
	if err := svc.CreateAppointment(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	upd := *a
	upd.Notes = "bring glasses"
	if err := svc.UpdateAppointment(context.Background(), &upd); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestService_UpdateAppointment_MoveIntoTakenSlot(t *testing.T) {
	svc, _, _ := newTestService()
	first := validAppointment()
	second := validAppointment()
	second.Time = "14:00"
	for _, a := range []*Appointment{first, second} {
		if err := svc.CreateAppointment(context.Background(), a); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	second.Time = first.Time
	if err := svc.UpdateAppointment(context.Background(), second); !errors.Is(err, ErrSlotTaken) {
		t.Errorf("expected ErrSlotTaken, got %v", err)
	}
}

func TestService_UpdateStatus(t *testing.T) {
	svc, _, _ := newTestService()
	a := validAppointment()
	if err := svc.CreateAppointment(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := svc.UpdateStatus(context.Background(), a.ID, "Completed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}

	if _, err := svc.UpdateStatus(context.Background(), a.ID, "completed"); err != nil {
		t.Errorf("expected same status to be a no-op, got %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), a.ID, "scheduled"); !errors.Is(err, ErrTerminalStatus) {
		t.Errorf("expected ErrTerminalStatus, got %v", err)
	}
}

func TestService_UpdateStatus_Invalid(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.UpdateStatus(context.Background(), uuid.New(), "postponed")
	if !validation.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestService_Today(t *testing.T) {
	svc, _, _ := newTestService()
	late := validAppointment()
	late.Time = "16:00"
	early := validAppointment()
	early.Time = "08:15"
	tomorrow := validAppointment()
	tomorrow.Date = "2025-03-15"
	for _, a := range []*Appointment{late, early, tomorrow} {
		if err := svc.CreateAppointment(context.Background(), a); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	date, items, err := svc.Today(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if date != "2025-03-14" {
		t.Errorf("expected 2025-03-14, got %s", date)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 appointments, got %d", len(items))
	}
	if items[0].Time != "08:15" {
		t.Errorf("expected earliest first, got %s", items[0].Time)
	}
}

func TestService_ListAppointments_InvalidParams(t *testing.T) {
	svc, _, _ := newTestService()
	_, _, err := svc.ListAppointments(context.Background(), map[string]string{
		"date": "tomorrow", "status": "maybe", "referral_id": "abc",
	}, 20, 0)
	fields := validation.Fields(err)
	for _, f := range []string{"date", "status", "referral_id"} {
		if _, ok := fields[f]; !ok {
			t.Errorf("expected error on %s, got %v", f, fields)
		}
	}
}

func TestService_DeleteAppointment_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	if err := svc.DeleteAppointment(context.Background(), uuid.New()); !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("expected ErrNoRows, got %v", err)
	}
}
