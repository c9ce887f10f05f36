package assignment

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

const assignmentColumns = `id, clinic_id, client_id, therapist_id, assigned_by_id,
	assigned_date, status, end_date, transfer_reason, notes, created_at`

// uniqueActiveConstraint is the partial unique index guaranteeing at most
// one active assignment per client. Racing inserts lose here, not in
// application code.
const uniqueActiveConstraint = "client_assignment_one_active"

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

func (r *repoPG) Create(ctx context.Context, a *Assignment) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO client_assignment (
			id, clinic_id, client_id, therapist_id, assigned_by_id,
			assigned_date, status, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.ClinicID, a.ClientID, a.TherapistID, a.AssignedByID,
		a.AssignedDate, a.Status, a.Notes,
	)
	if db.IsUniqueViolation(err, uniqueActiveConstraint) {
		return ErrDuplicateActiveAssignment
	}
	return err
}

func (r *repoPG) get(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter, lock bool) (*Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM client_assignment WHERE id = $1`
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

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Assignment, error) {
	return r.get(ctx, id, scope, false)
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Assignment, error) {
	return r.get(ctx, id, scope, true)
}

func (r *repoPG) Terminate(ctx context.Context, a *Assignment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE client_assignment SET
			status = $2, end_date = $3, transfer_reason = $4
		WHERE id = $1`,
		a.ID, a.Status, a.EndDate, a.TransferReason,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ActiveForClient(ctx context.Context, clientID uuid.UUID, scope auth.ClinicFilter) (*Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM client_assignment
		WHERE client_id = $1 AND status = 'active'`
	args := []interface{}{clientID}
	if cid, ok := scope.Clinic(); ok {
		query += ` AND clinic_id = $2`
		args = append(args, cid)
	}
	a, err := r.scan(r.conn(ctx).QueryRow(ctx, query, args...))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNoActiveAssignment
	}
	return a, err
}

func (r *repoPG) ListByClient(ctx context.Context, clientID uuid.UUID, scope auth.ClinicFilter, limit, offset int) ([]*Assignment, int, error) {
	where := ` WHERE client_id = $1`
	args := []interface{}{clientID}
	if cid, ok := scope.Clinic(); ok {
		args = append(args, cid)
		where += fmt.Sprintf(` AND clinic_id = $%d`, len(args))
	}
	return r.list(ctx, where, args, limit, offset)
}

func (r *repoPG) ListByTherapist(ctx context.Context, therapistID uuid.UUID, scope auth.ClinicFilter, status Status, limit, offset int) ([]*Assignment, int, error) {
	where := ` WHERE therapist_id = $1`
	args := []interface{}{therapistID}
	if cid, ok := scope.Clinic(); ok {
		args = append(args, cid)
		where += fmt.Sprintf(` AND clinic_id = $%d`, len(args))
	}
	if status != "" {
		args = append(args, status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	return r.list(ctx, where, args, limit, offset)
}

func (r *repoPG) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*Assignment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM client_assignment`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT `+assignmentColumns+` FROM client_assignment`+where+
		` ORDER BY assigned_date DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var assignments []*Assignment
	for rows.Next() {
		a, err := r.scanRows(rows)
		if err != nil {
			return nil, 0, err
		}
		assignments = append(assignments, a)
	}
	return assignments, total, rows.Err()
}

func (r *repoPG) scan(row pgx.Row) (*Assignment, error) {
	var a Assignment
	err := row.Scan(
		&a.ID, &a.ClinicID, &a.ClientID, &a.TherapistID, &a.AssignedByID,
		&a.AssignedDate, &a.Status, &a.EndDate, &a.TransferReason, &a.Notes, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) scanRows(rows pgx.Rows) (*Assignment, error) {
	var a Assignment
	err := rows.Scan(
		&a.ID, &a.ClinicID, &a.ClientID, &a.TherapistID, &a.AssignedByID,
		&a.AssignedDate, &a.Status, &a.EndDate, &a.TransferReason, &a.Notes, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
