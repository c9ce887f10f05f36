package client

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

const clientColumns = `id, clinic_id, first_name, last_name, birth_date, phone, email,
	status, notes, created_at, updated_at`

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

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

func (r *repoPG) Create(ctx context.Context, c *Client) error {
	c.ID = uuid.New()
	if c.Status == "" {
		c.Status = StatusNew
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO client (
			id, clinic_id, first_name, last_name, birth_date, phone, email, status, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.ClinicID, c.FirstName, c.LastName, c.BirthDate, c.Phone, c.Email, c.Status, c.Notes,
	)
	return err
}

func (r *repoPG) get(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter, lock bool) (*Client, error) {
	query := `SELECT ` + clientColumns + ` FROM client WHERE id = $1`
	args := []interface{}{id}
	if cid, ok := scope.Clinic(); ok {
		query += ` AND clinic_id = $2`
		args = append(args, cid)
	}
	if lock {
		query += ` FOR UPDATE`
	}
	return r.scan(r.conn(ctx).QueryRow(ctx, query, args...))
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Client, error) {
	return r.get(ctx, id, scope, false)
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Client, error) {
	return r.get(ctx, id, scope, true)
}

func (r *repoPG) Update(ctx context.Context, c *Client) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE client SET
			first_name = $2, last_name = $3, birth_date = $4, phone = $5,
			email = $6, notes = $7, updated_at = NOW()
		WHERE id = $1`,
		c.ID, c.FirstName, c.LastName, c.BirthDate, c.Phone, c.Email, c.Notes,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE client SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, scope auth.ClinicFilter, status Status, limit, offset int) ([]*Client, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	if cid, ok := scope.Clinic(); ok {
		args = append(args, cid)
		where += fmt.Sprintf(` AND clinic_id = $%d`, len(args))
	}
	if status != "" {
		args = append(args, status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	} else {
		// Archived clients stay out of default listings.
		where += ` AND status <> 'archived'`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM client`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT `+clientColumns+` FROM client`+where+
		` ORDER BY last_name, first_name LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var clients []*Client
	for rows.Next() {
		c, err := r.scanRows(rows)
		if err != nil {
			return nil, 0, err
		}
		clients = append(clients, c)
	}
	return clients, total, rows.Err()
}

func (r *repoPG) scan(row pgx.Row) (*Client, error) {
	var c Client
	err := row.Scan(
		&c.ID, &c.ClinicID, &c.FirstName, &c.LastName, &c.BirthDate, &c.Phone, &c.Email,
		&c.Status, &c.Notes, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repoPG) scanRows(rows pgx.Rows) (*Client, error) {
	var c Client
	err := rows.Scan(
		&c.ID, &c.ClinicID, &c.FirstName, &c.LastName, &c.BirthDate, &c.Phone, &c.Email,
		&c.Status, &c.Notes, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
