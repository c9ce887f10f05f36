package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/therapynet/clinic-server/internal/platform/auth"
	"github.com/therapynet/clinic-server/internal/platform/db"
)

const sessionColumns = `id, clinic_id, client_id, therapist_id, session_number, status,
	scheduled_at, duration_min, started_at, completed_at, notes, created_at, updated_at`

// uniqueNumberConstraint keeps session numbers unique per
// client-therapist pair; a racing double create loses here.
const uniqueNumberConstraint = "therapy_session_number_unique"

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

func (r *repoPG) Create(ctx context.Context, s *Session) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO therapy_session (
			id, clinic_id, client_id, therapist_id, session_number,
			status, scheduled_at, duration_min, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.ClinicID, s.ClientID, s.TherapistID, s.SessionNumber,
		s.Status, s.ScheduledAt, s.DurationMin, s.Notes,
	)
	if db.IsUniqueViolation(err, uniqueNumberConstraint) {
		return ErrDuplicateSessionNumber
	}
	return err
}

func (r *repoPG) get(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter, lock bool) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM therapy_session WHERE id = $1`
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

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Session, error) {
	return r.get(ctx, id, scope, false)
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Session, error) {
	return r.get(ctx, id, scope, true)
}

func (r *repoPG) Update(ctx context.Context, s *Session) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE therapy_session SET
			status = $2, scheduled_at = $3, duration_min = $4,
			started_at = $5, completed_at = $6, notes = $7, updated_at = NOW()
		WHERE id = $1`,
		s.ID, s.Status, s.ScheduledAt, s.DurationMin,
		s.StartedAt, s.CompletedAt, s.Notes,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM therapy_session WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) NextSessionNumber(ctx context.Context, clientID, therapistID uuid.UUID) (int, error) {
	var next int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(MAX(session_number), 0) + 1 FROM therapy_session
		WHERE client_id = $1 AND therapist_id = $2`,
		clientID, therapistID,
	).Scan(&next)
	return next, err
}

func (r *repoPG) TherapistBusyAt(ctx context.Context, therapistID uuid.UUID, from, to time.Time, exclude uuid.UUID) (bool, error) {
	var busy bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM therapy_session
			WHERE therapist_id = $1
			  AND id <> $2
			  AND status IN ('scheduled', 'in_progress')
			  AND scheduled_at IS NOT NULL
			  AND scheduled_at < $4
			  AND scheduled_at + duration_min * interval '1 minute' > $3
		)`,
		therapistID, exclude, from, to,
	).Scan(&busy)
	return busy, err
}

func (r *repoPG) ListByClient(ctx context.Context, clientID uuid.UUID, scope auth.ClinicFilter, limit, offset int) ([]*Session, int, error) {
	where := ` WHERE client_id = $1`
	args := []interface{}{clientID}
	if cid, ok := scope.Clinic(); ok {
		args = append(args, cid)
		where += fmt.Sprintf(` AND clinic_id = $%d`, len(args))
	}
	return r.list(ctx, where, args, limit, offset)
}

func (r *repoPG) ListByTherapist(ctx context.Context, therapistID uuid.UUID, scope auth.ClinicFilter, f ListFilter, limit, offset int) ([]*Session, int, error) {
	where := ` WHERE therapist_id = $1`
	args := []interface{}{therapistID}
	if cid, ok := scope.Clinic(); ok {
		args = append(args, cid)
		where += fmt.Sprintf(` AND clinic_id = $%d`, len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where += fmt.Sprintf(` AND scheduled_at >= $%d`, len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where += fmt.Sprintf(` AND scheduled_at < $%d`, len(args))
	}
	return r.list(ctx, where, args, limit, offset)
}

func (r *repoPG) CountCompleted(ctx context.Context, clientID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM therapy_session
		WHERE client_id = $1 AND status = 'completed'`,
		clientID,
	).Scan(&n)
	return n, err
}

func (r *repoPG) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*Session, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM therapy_session`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT `+sessionColumns+` FROM therapy_session`+where+
		` ORDER BY session_number DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := r.scanRows(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, s)
	}
	return sessions, total, rows.Err()
}

func (r *repoPG) scan(row pgx.Row) (*Session, error) {
	var s Session
	err := row.Scan(
		&s.ID, &s.ClinicID, &s.ClientID, &s.TherapistID, &s.SessionNumber, &s.Status,
		&s.ScheduledAt, &s.DurationMin, &s.StartedAt, &s.CompletedAt, &s.Notes,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repoPG) scanRows(rows pgx.Rows) (*Session, error) {
	var s Session
	err := rows.Scan(
		&s.ID, &s.ClinicID, &s.ClientID, &s.TherapistID, &s.SessionNumber, &s.Status,
		&s.ScheduledAt, &s.DurationMin, &s.StartedAt, &s.CompletedAt, &s.Notes,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
