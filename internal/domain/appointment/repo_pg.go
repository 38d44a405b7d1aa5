package appointment

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const appointmentCols = `id, referral_id, patient_name, to_char(date, 'YYYY-MM-DD'), time,
	type, COALESCE(notes, ''), status, duration, created_at, updated_at`

var appointmentFilters = map[string]db.Filter{
	"date":        {Type: db.FilterEq, Columns: []string{"date"}},
	"from":        {Type: db.FilterDateFrom, Columns: []string{"date"}},
	"to":          {Type: db.FilterDateTo, Columns: []string{"date"}},
	"status":      {Type: db.FilterEq, Columns: []string{"status"}},
	"type":        {Type: db.FilterEq, Columns: []string{"type"}},
	"referral_id": {Type: db.FilterUUID, Columns: []string{"referral_id"}},
	"q":           {Type: db.FilterText, Columns: []string{"patient_name", "notes"}},
}

func (r *appointmentRepoPG) scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.ReferralID, &a.PatientName, &a.Date, &a.Time,
		&a.Type, &a.Notes, &a.Status, &a.Duration, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, referral_id, patient_name, date, time, type, notes, status, duration)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		a.ID, a.ReferralID, a.PatientName, a.Date, a.Time, a.Type, a.Notes, a.Status, a.Duration,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+appointmentCols+` FROM appointments WHERE id = $1`, id))
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments SET referral_id=$2, patient_name=$3, date=$4::date, time=$5,
			type=$6, notes=$7, status=$8, duration=$9, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.ReferralID, a.PatientName, a.Date, a.Time, a.Type, a.Notes, a.Status, a.Duration)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointments SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *appointmentRepoPG) collect(rows pgx.Rows) ([]*Appointment, error) {
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) List(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	qb := db.NewQuery("appointments", appointmentCols)
	qb.ApplyParams(params, appointmentFilters)
	qb.OrderBy("date ASC, time ASC")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	items, err := r.collect(rows)
	return items, total, err
}

func (r *appointmentRepoPG) ListByDate(ctx context.Context, date string) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+appointmentCols+` FROM appointments WHERE date = $1::date ORDER BY time ASC`, date)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *appointmentRepoPG) SlotTaken(ctx context.Context, date, at string, excludeID uuid.UUID) (bool, error) {
	var taken bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE date = $1::date AND time = $2
			  AND status NOT IN ('cancelled', 'no-show')
			  AND ($3::uuid IS NULL OR id <> $3)
		)`, date, at, nullableID(excludeID)).Scan(&taken)
	return taken, err
}

func nullableID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
