package template

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cliniq/emr/internal/domain/canvas"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type pgRepo struct{ pool *pgxpool.Pool }

// NewPGRepo creates a Postgres-backed Repository. Components are stored as a
// JSONB document; templates are small and always read whole.
func NewPGRepo(pool *pgxpool.Pool) Repository { return &pgRepo{pool: pool} }

// EnsureSchema creates the template table if it does not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS canvas_template (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			specialty TEXT NOT NULL,
			doctor_id TEXT NOT NULL DEFAULT '',
			components JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_canvas_template_specialty ON canvas_template (specialty);`)
	return err
}

func (r *pgRepo) conn(context.Context) queryable { return r.pool }

const templateCols = `id, name, specialty, doctor_id, components, created_at, updated_at`

func (r *pgRepo) scanTemplate(row pgx.Row) (*Template, error) {
	var t Template
	var components []byte
	err := row.Scan(&t.ID, &t.Name, &t.Specialty, &t.DoctorID, &components, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(components, &t.Components); err != nil {
		return nil, fmt.Errorf("decode components: %w", err)
	}
	return &t, nil
}

func marshalComponents(comps []*canvas.Component) ([]byte, error) {
	if comps == nil {
		comps = []*canvas.Component{}
	}
	return json.Marshal(comps)
}

func (r *pgRepo) Create(ctx context.Context, t *Template) error {
	t.ID = uuid.New()
	components, err := marshalComponents(t.Components)
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO canvas_template (id, name, specialty, doctor_id, components)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at, updated_at`,
		t.ID, t.Name, t.Specialty, t.DoctorID, components).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *pgRepo) GetByID(ctx context.Context, id uuid.UUID) (*Template, error) {
	return r.scanTemplate(r.conn(ctx).QueryRow(ctx,
		`SELECT `+templateCols+` FROM canvas_template WHERE id = $1`, id))
}

func (r *pgRepo) Update(ctx context.Context, t *Template) error {
	components, err := marshalComponents(t.Components)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		UPDATE canvas_template SET name=$2, specialty=$3, doctor_id=$4, components=$5, updated_at=NOW()
		WHERE id = $1`,
		t.ID, t.Name, t.Specialty, t.DoctorID, components)
	return err
}

func (r *pgRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM canvas_template WHERE id = $1`, id)
	return err
}

func (r *pgRepo) List(ctx context.Context, limit, offset int) ([]*Template, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM canvas_template`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+templateCols+` FROM canvas_template ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return r.collect(rows, total)
}

func (r *pgRepo) ListBySpecialty(ctx context.Context, specialty string, limit, offset int) ([]*Template, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM canvas_template WHERE LOWER(specialty) = LOWER($1)`, specialty).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+templateCols+` FROM canvas_template WHERE LOWER(specialty) = LOWER($1)
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		specialty, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return r.collect(rows, total)
}

func (r *pgRepo) collect(rows pgx.Rows, total int) ([]*Template, int, error) {
	var items []*Template
	for rows.Next() {
		t, err := r.scanTemplate(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, nil
}
