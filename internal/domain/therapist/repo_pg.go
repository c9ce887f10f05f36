package therapist

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

const therapistColumns = `id, clinic_id, user_id, first_name, last_name, license_number,
	specialties, bio, status, current_load, created_at, updated_at`

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

func (r *repoPG) Create(ctx context.Context, t *Therapist) error {
	t.ID = uuid.New()
	if t.Status == "" {
		t.Status = StatusActive
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO therapist (
			id, clinic_id, user_id, first_name, last_name,
			license_number, specialties, bio, status, current_load
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0)`,
		t.ID, t.ClinicID, t.UserID, t.FirstName, t.LastName,
		t.LicenseNumber, t.Specialties, t.Bio, t.Status,
	)
	return err
}

func (r *repoPG) get(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter, lock bool) (*Therapist, error) {
	query := `SELECT ` + therapistColumns + ` FROM therapist WHERE id = $1`
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

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Therapist, error) {
	return r.get(ctx, id, scope, false)
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Therapist, error) {
	return r.get(ctx, id, scope, true)
}

func (r *repoPG) Update(ctx context.Context, t *Therapist) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE therapist SET
			user_id = $2, first_name = $3, last_name = $4, license_number = $5,
			specialties = $6, bio = $7, status = $8, updated_at = NOW()
		WHERE id = $1`,
		t.ID, t.UserID, t.FirstName, t.LastName, t.LicenseNumber,
		t.Specialties, t.Bio, t.Status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, scope auth.ClinicFilter, status Status, limit, offset int) ([]*Therapist, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	if cid, ok := scope.Clinic(); ok {
		args = append(args, cid)
		where += fmt.Sprintf(` AND clinic_id = $%d`, len(args))
	}
	if status != "" {
		args = append(args, status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM therapist`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT `+therapistColumns+` FROM therapist`+where+
		` ORDER BY last_name, first_name LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var therapists []*Therapist
	for rows.Next() {
		t, err := r.scanRows(rows)
		if err != nil {
			return nil, 0, err
		}
		therapists = append(therapists, t)
	}
	return therapists, total, rows.Err()
}

func (r *repoPG) AdjustLoad(ctx context.Context, id uuid.UUID, delta int) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE therapist
		SET current_load = current_load + $2, updated_at = NOW()
		WHERE id = $1 AND current_load + $2 >= 0`,
		id, delta,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLoadUnderflow
	}
	return nil
}

func (r *repoPG) CountActiveAssignments(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM client_assignment WHERE therapist_id = $1 AND status = 'active'`,
		id,
	).Scan(&n)
	return n, err
}

func (r *repoPG) scan(row pgx.Row) (*Therapist, error) {
	var t Therapist
	err := row.Scan(
		&t.ID, &t.ClinicID, &t.UserID, &t.FirstName, &t.LastName, &t.LicenseNumber,
		&t.Specialties, &t.Bio, &t.Status, &t.CurrentLoad, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repoPG) scanRows(rows pgx.Rows) (*Therapist, error) {
	var t Therapist
	err := rows.Scan(
		&t.ID, &t.ClinicID, &t.UserID, &t.FirstName, &t.LastName, &t.LicenseNumber,
		&t.Specialties, &t.Bio, &t.Status, &t.CurrentLoad, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
