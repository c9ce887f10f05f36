package clinic

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/therapynet/clinic-server/internal/platform/auth"
	"github.com/therapynet/clinic-server/internal/platform/db"
)

const clinicColumns = `id, name, slug, phone, email, address, active, created_at, updated_at`

// Inline UNIQUE on clinic.slug gets the default constraint name.
const uniqueSlugConstraint = "clinic_slug_key"

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

// queryable abstracts pgxpool.Pool, pgxpool.Conn and pgx.Tx so queries
// join the request's tenant connection and any in-flight transaction.
type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *repoPG) Create(ctx context.Context, c *Clinic) error {
	c.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO clinic (id, name, slug, phone, email, address, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.Name, c.Slug, c.Phone, c.Email, c.Address, c.Active,
	)
	if db.IsUniqueViolation(err, uniqueSlugConstraint) {
		return ErrSlugTaken
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Clinic, error) {
	// The clinic row is its own scope: a non-admin can only read the
	// clinic their filter names.
	if cid, ok := scope.Clinic(); ok && cid != id {
		return nil, ErrNotFound
	}
	return r.scan(r.conn(ctx).QueryRow(ctx,
		`SELECT `+clinicColumns+` FROM clinic WHERE id = $1`, id))
}

func (r *repoPG) GetBySlug(ctx context.Context, slug string, scope auth.ClinicFilter) (*Clinic, error) {
	query := `SELECT ` + clinicColumns + ` FROM clinic WHERE slug = $1`
	args := []interface{}{slug}
	if cid, ok := scope.Clinic(); ok {
		query += ` AND id = $2`
		args = append(args, cid)
	}
	return r.scan(r.conn(ctx).QueryRow(ctx, query, args...))
}

func (r *repoPG) Update(ctx context.Context, c *Clinic) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE clinic SET
			name = $2, slug = $3, phone = $4, email = $5, address = $6,
			active = $7, updated_at = NOW()
		WHERE id = $1`,
		c.ID, c.Name, c.Slug, c.Phone, c.Email, c.Address, c.Active,
	)
	if db.IsUniqueViolation(err, uniqueSlugConstraint) {
		return ErrSlugTaken
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, scope auth.ClinicFilter, limit, offset int) ([]*Clinic, int, error) {
	where := ``
	args := []interface{}{}
	if cid, ok := scope.Clinic(); ok {
		where = ` WHERE id = $1`
		args = append(args, cid)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM clinic`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT `+clinicColumns+` FROM clinic`+where+
		` ORDER BY name LIMIT $%d OFFSET $%d`, n+1, n+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var clinics []*Clinic
	for rows.Next() {
		c, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		clinics = append(clinics, c)
	}
	return clinics, total, rows.Err()
}

func (r *repoPG) scan(row pgx.Row) (*Clinic, error) {
	var c Clinic
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Phone, &c.Email, &c.Address,
		&c.Active, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repoPG) scanRow(rows pgx.Rows) (*Clinic, error) {
	var c Clinic
	err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Phone, &c.Email, &c.Address,
		&c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
