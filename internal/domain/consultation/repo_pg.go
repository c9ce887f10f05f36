package consultation

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

const consultationColumns = `id, clinic_id, client_id, therapist_id, status,
	summary, findings, started_at, completed_at, created_at, updated_at`

// uniqueClientConstraint enforces one consultation record per client.
const uniqueClientConstraint = "consultation_client_unique"

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

func (r *repoPG) Create(ctx context.Context, cons *Consultation) error {
	cons.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO consultation (
			id, clinic_id, client_id, therapist_id, status, summary, findings, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		cons.ID, cons.ClinicID, cons.ClientID, cons.TherapistID,
		cons.Status, cons.Summary, cons.Findings, cons.StartedAt,
	)
	if db.IsUniqueViolation(err, uniqueClientConstraint) {
		return ErrConsultationExists
	}
	return err
}

func (r *repoPG) get(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter, lock bool) (*Consultation, error) {
	query := `SELECT ` + consultationColumns + ` FROM consultation WHERE id = $1`
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

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Consultation, error) {
	return r.get(ctx, id, scope, false)
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Consultation, error) {
	return r.get(ctx, id, scope, true)
}

func (r *repoPG) GetByClient(ctx context.Context, clientID uuid.UUID, scope auth.ClinicFilter) (*Consultation, error) {
	query := `SELECT ` + consultationColumns + ` FROM consultation WHERE client_id = $1`
	args := []interface{}{clientID}
	if cid, ok := scope.Clinic(); ok {
		query += ` AND clinic_id = $2`
		args = append(args, cid)
	}
	return r.scan(r.conn(ctx).QueryRow(ctx, query, args...))
}

func (r *repoPG) Update(ctx context.Context, cons *Consultation) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE consultation SET
			summary = $2, findings = $3, updated_at = NOW()
		WHERE id = $1`,
		cons.ID, cons.Summary, cons.Findings,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, cons *Consultation) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE consultation SET
			status = $2, started_at = $3, completed_at = $4, updated_at = NOW()
		WHERE id = $1`,
		cons.ID, cons.Status, cons.StartedAt, cons.CompletedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, scope auth.ClinicFilter, status Status, limit, offset int) ([]*Consultation, int, error) {
	where := ``
	var args []interface{}
	if cid, ok := scope.Clinic(); ok {
		args = append(args, cid)
		where = fmt.Sprintf(` WHERE clinic_id = $%d`, len(args))
	}
	if status != "" {
		args = append(args, status)
		if where == "" {
			where = fmt.Sprintf(` WHERE status = $%d`, len(args))
		} else {
			where += fmt.Sprintf(` AND status = $%d`, len(args))
		}
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM consultation`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT `+consultationColumns+` FROM consultation`+where+
		` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var consultations []*Consultation
	for rows.Next() {
		cons, err := r.scanRows(rows)
		if err != nil {
			return nil, 0, err
		}
		consultations = append(consultations, cons)
	}
	return consultations, total, rows.Err()
}

func (r *repoPG) scan(row pgx.Row) (*Consultation, error) {
	var cons Consultation
	err := row.Scan(
		&cons.ID, &cons.ClinicID, &cons.ClientID, &cons.TherapistID, &cons.Status,
		&cons.Summary, &cons.Findings, &cons.StartedAt, &cons.CompletedAt,
		&cons.CreatedAt, &cons.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cons, nil
}

func (r *repoPG) scanRows(rows pgx.Rows) (*Consultation, error) {
	var cons Consultation
	err := rows.Scan(
		&cons.ID, &cons.ClinicID, &cons.ClientID, &cons.TherapistID, &cons.Status,
		&cons.Summary, &cons.Findings, &cons.StartedAt, &cons.CompletedAt,
		&cons.CreatedAt, &cons.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &cons, nil
}
