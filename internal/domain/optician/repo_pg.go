package optician

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

type opticianRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &opticianRepoPG{pool: pool}
}

func (r *opticianRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const opticianCols = `id, practice_name, COALESCE(contact_person, ''), COALESCE(email, ''),
	COALESCE(phone, ''), COALESCE(address, ''), COALESCE(postcode, ''), active,
	created_at, updated_at`

var opticianFilters = map[string]db.Filter{
	"active":   {Type: db.FilterEq, Columns: []string{"active"}},
	"postcode": {Type: db.FilterEq, Columns: []string{"postcode"}},
	"q":        {Type: db.FilterText, Columns: []string{"practice_name", "contact_person", "email"}},
}

func (r *opticianRepoPG) scanOptician(row pgx.Row) (*Optician, error) {
	var o Optician
	err := row.Scan(&o.ID, &o.PracticeName, &o.ContactPerson, &o.Email,
		&o.Phone, &o.Address, &o.Postcode, &o.Active, &o.CreatedAt, &o.UpdatedAt)
	return &o, err
}

func (r *opticianRepoPG) Create(ctx context.Context, o *Optician) error {
	o.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO opticians (id, practice_name, contact_person, email, phone, address, postcode, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		o.ID, o.PracticeName, o.ContactPerson, o.Email, o.Phone, o.Address, o.Postcode, o.IsActive(),
	).Scan(&o.CreatedAt, &o.UpdatedAt)
}

func (r *opticianRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Optician, error) {
	o, err := r.scanOptician(r.conn(ctx).QueryRow(ctx, `SELECT `+opticianCols+` FROM opticians WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *opticianRepoPG) Update(ctx context.Context, o *Optician) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE opticians SET practice_name=$2, contact_person=$3, email=$4, phone=$5,
			address=$6, postcode=$7, active=$8, updated_at=NOW()
		WHERE id = $1`,
		o.ID, o.PracticeName, o.ContactPerson, o.Email, o.Phone, o.Address, o.Postcode, o.IsActive())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *opticianRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM opticians WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *opticianRepoPG) List(ctx context.Context, params map[string]string, limit, offset int) ([]*Optician, int, error) {
	qb := db.NewQuery("opticians", opticianCols)
	qb.ApplyParams(params, opticianFilters)
	qb.OrderBy("practice_name ASC")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Optician
	for rows.Next() {
		o, err := r.scanOptician(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, o)
	}
	return items, total, rows.Err()
}
