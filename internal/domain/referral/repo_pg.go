package referral

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/db"
	"github.com/kalanithib94/eyeDocs-KTP/internal/platform/salesforce"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type referralRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &referralRepoPG{pool: pool}
}

func (r *referralRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const referralCols = `id, referral_number, first_name, last_name,
	COALESCE(email, ''), COALESCE(phone, ''),
	COALESCE(to_char(date_of_birth, 'YYYY-MM-DD'), ''),
	COALESCE(address, ''), COALESCE(postcode, ''), COALESCE(nhs_number, ''),
	COALESCE(emergency_contact, ''), COALESCE(medical_history, ''),
	COALESCE(allergies, ''), COALESCE(medications, ''),
	condition, clinical_notes, optician_id, status, urgency, source,
	consent, gdpr, salesforce_id, sync_mode, sync_error, synced_at,
	created_at, updated_at`

var referralFilters = map[string]db.Filter{
	"status":      {Type: db.FilterEq, Columns: []string{"status"}},
	"urgency":     {Type: db.FilterEq, Columns: []string{"urgency"}},
	"condition":   {Type: db.FilterEq, Columns: []string{"condition"}},
	"optician_id": {Type: db.FilterUUID, Columns: []string{"optician_id"}},
	"from":        {Type: db.FilterDateFrom, Columns: []string{"created_at"}},
	"to":          {Type: db.FilterDateTo, Columns: []string{"created_at::date"}},
	"q": {Type: db.FilterText, Columns: []string{
		"first_name", "last_name", "referral_number", "email", "nhs_number", "clinical_notes",
	}},
}

var referralSortable = map[string]string{
	"created":         "created_at",
	"updated":         "updated_at",
	"last_name":       "last_name",
	"urgency":         "urgency",
	"status":          "status",
	"referral_number": "referral_number",
}

func (r *referralRepoPG) scanReferral(row pgx.Row) (*Referral, error) {
	var ref Referral
	err := row.Scan(&ref.ID, &ref.ReferralNumber, &ref.FirstName, &ref.LastName,
		&ref.Email, &ref.Phone, &ref.DateOfBirth,
		&ref.Address, &ref.Postcode, &ref.NHSNumber,
		&ref.EmergencyContact, &ref.MedicalHistory, &ref.Allergies, &ref.Medications,
		&ref.Condition, &ref.ClinicalNotes, &ref.OpticianID, &ref.Status, &ref.Urgency, &ref.Source,
		&ref.Consent, &ref.GDPRConsent, &ref.SalesforceID, &ref.SyncMode, &ref.SyncError, &ref.SyncedAt,
		&ref.CreatedAt, &ref.UpdatedAt)
	if err != nil {
		return nil, err
	}
	ref.PatientName = ref.FullName()
	return &ref, nil
}

func (r *referralRepoPG) Create(ctx context.Context, ref *Referral) error {
	q := r.conn(ctx)
	var seq int64
	if err := q.QueryRow(ctx, `SELECT nextval('referral_number_seq')`).Scan(&seq); err != nil {
		return fmt.Errorf("next referral number: %w", err)
	}
	ref.ID = uuid.New()
	now := time.Now().UTC()
	ref.ReferralNumber = ReferralNumber(now, seq)

	err := q.QueryRow(ctx, `
		INSERT INTO referrals (id, referral_number, first_name, last_name, email, phone,
			date_of_birth, address, postcode, nhs_number, emergency_contact,
			medical_history, allergies, medications, condition, clinical_notes,
			optician_id, status, urgency, source, consent, gdpr)
		VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7, '')::date,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
		RETURNING created_at, updated_at`,
		ref.ID, ref.ReferralNumber, ref.FirstName, ref.LastName, ref.Email, ref.Phone,
		ref.DateOfBirth, ref.Address, ref.Postcode, ref.NHSNumber, ref.EmergencyContact,
		ref.MedicalHistory, ref.Allergies, ref.Medications, ref.Condition, ref.ClinicalNotes,
		ref.OpticianID, ref.Status, ref.Urgency, ref.Source, ref.Consent, ref.GDPRConsent,
	).Scan(&ref.CreatedAt, &ref.UpdatedAt)
	if err != nil {
		return err
	}
	ref.PatientName = ref.FullName()
	return nil
}

func (r *referralRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Referral, error) {
	return r.scanReferral(r.conn(ctx).QueryRow(ctx, `SELECT `+referralCols+` FROM referrals WHERE id = $1`, id))
}

// Update writes the editable fields. Sync columns are left alone.
func (r *referralRepoPG) Update(ctx context.Context, ref *Referral) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE referrals SET first_name=$2, last_name=$3, email=$4, phone=$5,
			date_of_birth=NULLIF($6, '')::date, address=$7, postcode=$8, nhs_number=$9,
			emergency_contact=$10, medical_history=$11, allergies=$12, medications=$13,
			condition=$14, clinical_notes=$15, optician_id=$16, status=$17, urgency=$18,
			consent=$19, gdpr=$20, updated_at=NOW()
		WHERE id = $1`,
		ref.ID, ref.FirstName, ref.LastName, ref.Email, ref.Phone,
		ref.DateOfBirth, ref.Address, ref.Postcode, ref.NHSNumber,
		ref.EmergencyContact, ref.MedicalHistory, ref.Allergies, ref.Medications,
		ref.Condition, ref.ClinicalNotes, ref.OpticianID, ref.Status, ref.Urgency,
		ref.Consent, ref.GDPRConsent)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *referralRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE referrals SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *referralRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM referrals WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *referralRepoPG) List(ctx context.Context, params map[string]string, limit, offset int) ([]*Referral, int, error) {
	qb := db.NewQuery("referrals", referralCols)
	qb.ApplyParams(params, referralFilters)
	qb.ApplySort(params["sort"], "created_at DESC", referralSortable)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := r.collect(rows)
	return items, total, err
}

func (r *referralRepoPG) collect(rows pgx.Rows) ([]*Referral, error) {
	var items []*Referral
	for rows.Next() {
		ref, err := r.scanReferral(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, ref)
	}
	return items, rows.Err()
}

func (r *referralRepoPG) Stats(ctx context.Context) (*Stats, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT status, COUNT(*),
			COUNT(*) FILTER (WHERE salesforce_id IS NOT NULL),
			COUNT(*) FILTER (WHERE sync_mode = 'simulation')
		FROM referrals GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	st := &Stats{}
	for rows.Next() {
		var status string
		var n, synced, simulated int
		if err := rows.Scan(&status, &n, &synced, &simulated); err != nil {
			return nil, err
		}
		st.Add(NormalizeStatus(status), n)
		st.Synced += synced
		st.SimulatedIDs += simulated
	}
	st.Unsynced = st.Total - st.Synced
	return st, rows.Err()
}

func (r *referralRepoPG) ListForSync(ctx context.Context, includeSimulated bool, limit int) ([]*Referral, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+referralCols+` FROM referrals
		WHERE salesforce_id IS NULL OR ($1 AND sync_mode = 'simulation')
		ORDER BY created_at ASC LIMIT $2`, includeSimulated, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *referralRepoPG) RecordSync(ctx context.Context, id uuid.UUID, salesforceID string, mode salesforce.Mode, at time.Time) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE referrals SET salesforce_id = $2, sync_mode = $3, sync_error = NULL,
			synced_at = $4, updated_at = NOW()
		WHERE id = $1
		  AND (salesforce_id IS NULL OR (sync_mode = 'simulation' AND $3 = 'live'))`,
		id, salesforceID, string(mode), at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *referralRepoPG) RecordSyncError(ctx context.Context, id uuid.UUID, msg string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE referrals SET sync_error = $2, updated_at = NOW() WHERE id = $1`, id, msg)
	return err
}
