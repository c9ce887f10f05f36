package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/therapynet/clinic-server/internal/domain/assignment"
	"github.com/therapynet/clinic-server/internal/domain/client"
	"github.com/therapynet/clinic-server/internal/platform/auth"
	"github.com/therapynet/clinic-server/internal/platform/workflow"
)

type fakeTx struct{}

func (fakeTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memSessions struct {
	rows map[uuid.UUID]*Session
}

func (r *memSessions) visible(s *Session, scope auth.ClinicFilter) bool {
	cid, ok := scope.Clinic()
	return !ok || s.ClinicID == cid
}

func (r *memSessions) Create(ctx context.Context, s *Session) error {
	for _, ex := range r.rows {
		if ex.ClientID == s.ClientID && ex.TherapistID == s.TherapistID && ex.SessionNumber == s.SessionNumber {
			return ErrDuplicateSessionNumber
		}
	}
	s.ID = uuid.New()
	cp := *s
	r.rows[s.ID] = &cp
	return nil
}

func (r *memSessions) GetByID(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Session, error) {
	s, ok := r.rows[id]
	if !ok || !r.visible(s, scope) {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memSessions) GetForUpdate(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Session, error) {
	return r.GetByID(ctx, id, scope)
}

func (r *memSessions) Update(ctx context.Context, s *Session) error {
	if _, ok := r.rows[s.ID]; !ok {
		return ErrNotFound
	}
	cp := *s
	r.rows[s.ID] = &cp
	return nil
}

func (r *memSessions) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.rows[id]; !ok {
		return ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memSessions) NextSessionNumber(ctx context.Context, clientID, therapistID uuid.UUID) (int, error) {
	max := 0
	for _, s := range r.rows {
		if s.ClientID == clientID && s.TherapistID == therapistID && s.SessionNumber > max {
			max = s.SessionNumber
		}
	}
	return max + 1, nil
}

func (r *memSessions) TherapistBusyAt(ctx context.Context, therapistID uuid.UUID, from, to time.Time, exclude uuid.UUID) (bool, error) {
	for _, s := range r.rows {
		if s.TherapistID != therapistID || s.ID == exclude {
			continue
		}
		if s.Status != StatusScheduled && s.Status != StatusInProgress {
			continue
		}
		start, end, ok := s.Window()
		if !ok {
			continue
		}
		if start.Before(to) && end.After(from) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memSessions) ListByClient(ctx context.Context, clientID uuid.UUID, scope auth.ClinicFilter, limit, offset int) ([]*Session, int, error) {
	var out []*Session
	for _, s := range r.rows {
		if s.ClientID == clientID && r.visible(s, scope) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (r *memSessions) ListByTherapist(ctx context.Context, therapistID uuid.UUID, scope auth.ClinicFilter, f ListFilter, limit, offset int) ([]*Session, int, error) {
	var out []*Session
	for _, s := range r.rows {
		if s.TherapistID != therapistID || !r.visible(s, scope) {
			continue
		}
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if f.From != nil && (s.ScheduledAt == nil || s.ScheduledAt.Before(*f.From)) {
			continue
		}
		if f.To != nil && (s.ScheduledAt == nil || !s.ScheduledAt.Before(*f.To)) {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (r *memSessions) CountCompleted(ctx context.Context, clientID uuid.UUID) (int, error) {
	n := 0
	for _, s := range r.rows {
		if s.ClientID == clientID && s.Status == StatusCompleted {
			n++
		}
	}
	return n, nil
}

type stubAssignments struct {
	active map[uuid.UUID]*assignment.Assignment
}

func (r *stubAssignments) Create(ctx context.Context, a *assignment.Assignment) error { return nil }
func (r *stubAssignments) GetByID(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*assignment.Assignment, error) {
	return nil, assignment.ErrNotFound
}
func (r *stubAssignments) GetForUpdate(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*assignment.Assignment, error) {
	return nil, assignment.ErrNotFound
}
func (r *stubAssignments) Terminate(ctx context.Context, a *assignment.Assignment) error { return nil }
func (r *stubAssignments) ActiveForClient(ctx context.Context, clientID uuid.UUID, scope auth.ClinicFilter) (*assignment.Assignment, error) {
	a, ok := r.active[clientID]
	if !ok {
		return nil, assignment.ErrNoActiveAssignment
	}
	cp := *a
	return &cp, nil
}
func (r *stubAssignments) ListByClient(ctx context.Context, clientID uuid.UUID, scope auth.ClinicFilter, limit, offset int) ([]*assignment.Assignment, int, error) {
	return nil, 0, nil
}
func (r *stubAssignments) ListByTherapist(ctx context.Context, therapistID uuid.UUID, scope auth.ClinicFilter, status assignment.Status, limit, offset int) ([]*assignment.Assignment, int, error) {
	return nil, 0, nil
}

type memClients struct {
	rows map[uuid.UUID]*client.Client
}

func (r *memClients) Create(ctx context.Context, c *client.Client) error { return nil }
func (r *memClients) GetByID(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*client.Client, error) {
	c, ok := r.rows[id]
	if !ok {
		return nil, client.ErrNotFound
	}
	cp := *c
	return &cp, nil
}
func (r *memClients) GetForUpdate(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*client.Client, error) {
	return r.GetByID(ctx, id, scope)
}
func (r *memClients) Update(ctx context.Context, c *client.Client) error { return nil }
func (r *memClients) UpdateStatus(ctx context.Context, id uuid.UUID, status client.Status) error {
	c, ok := r.rows[id]
	if !ok {
		return client.ErrNotFound
	}
	c.Status = status
	return nil
}
func (r *memClients) List(ctx context.Context, scope auth.ClinicFilter, status client.Status, limit, offset int) ([]*client.Client, int, error) {
	return nil, 0, nil
}

type fixture struct {
	svc      *Service
	repo     *memSessions
	clients  *memClients
	clinicID uuid.UUID
	scope    auth.ClinicFilter
	clientID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := &memSessions{rows: make(map[uuid.UUID]*Session)}
	assignments := &stubAssignments{active: make(map[uuid.UUID]*assignment.Assignment)}
	clients := &memClients{rows: make(map[uuid.UUID]*client.Client)}
	clientSvc := client.NewService(clients, fakeTx{})
	clinicID := uuid.New()

	cl := &client.Client{ID: uuid.New(), ClinicID: clinicID, Status: client.StatusInConsultation}
	clients.rows[cl.ID] = cl
	assignments.active[cl.ID] = &assignment.Assignment{
		ID:          uuid.New(),
		ClinicID:    clinicID,
		ClientID:    cl.ID,
		TherapistID: uuid.New(),
		Status:      assignment.StatusActive,
	}

	return &fixture{
		svc:      NewService(repo, assignments, clientSvc, fakeTx{}),
		repo:     repo,
		clients:  clients,
		clinicID: clinicID,
		scope:    auth.ScopeClinic(clinicID),
		clientID: cl.ID,
	}
}

func at(h int) *time.Time {
	ts := time.Date(2026, 6, 1, h, 0, 0, 0, time.UTC)
	return &ts
}

func TestCreatePlanned(t *testing.T) {
	f := newFixture(t)

	sess, err := f.svc.Create(context.Background(), CreateInput{ClientID: f.clientID}, f.scope)
	if err != nil {
		t.Fatalf("Create = %v, want nil", err)
	}
	if sess.Status != StatusPlanned {
		t.Errorf("status = %s, want planned", sess.Status)
	}
	if sess.SessionNumber != 1 {
		t.Errorf("session number = %d, want 1", sess.SessionNumber)
	}
	if sess.DurationMin != defaultDurationMin {
		t.Errorf("duration = %d, want default %d", sess.DurationMin, defaultDurationMin)
	}
}

func TestCreateScheduled(t *testing.T) {
	f := newFixture(t)

	sess, err := f.svc.Create(context.Background(), CreateInput{ClientID: f.clientID, ScheduledAt: at(9)}, f.scope)
	if err != nil {
		t.Fatalf("Create = %v, want nil", err)
	}
	if sess.Status != StatusScheduled {
		t.Errorf("status = %s, want scheduled", sess.Status)
	}
}

func TestSessionNumbersIncrement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		sess, err := f.svc.Create(ctx, CreateInput{ClientID: f.clientID}, f.scope)
		if err != nil {
			t.Fatalf("Create #%d = %v", want, err)
		}
		if sess.SessionNumber != want {
			t.Errorf("session number = %d, want %d", sess.SessionNumber, want)
		}
	}
}

func TestCreateWithoutAssignment(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), CreateInput{ClientID: uuid.New()}, f.scope)
	if !errors.Is(err, ErrClientNotReady) {
		t.Errorf("Create(no assignment) = %v, want ErrClientNotReady", err)
	}
}

func TestScheduleConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, CreateInput{ClientID: f.clientID, ScheduledAt: at(9), DurationMin: 60}, f.scope); err != nil {
		t.Fatalf("first Create = %v", err)
	}

	// Same therapist, overlapping window.
	_, err := f.svc.Create(ctx, CreateInput{ClientID: f.clientID, ScheduledAt: at(9), DurationMin: 30}, f.scope)
	if !errors.Is(err, ErrScheduleConflict) {
		t.Errorf("overlapping Create = %v, want ErrScheduleConflict", err)
	}

	// Adjacent window is fine.
	if _, err := f.svc.Create(ctx, CreateInput{ClientID: f.clientID, ScheduledAt: at(10), DurationMin: 30}, f.scope); err != nil {
		t.Errorf("adjacent Create = %v, want nil", err)
	}
}

func TestScheduleIgnoresOwnSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Create(ctx, CreateInput{ClientID: f.clientID, ScheduledAt: at(9), DurationMin: 60}, f.scope)
	if err != nil {
		t.Fatalf("Create = %v", err)
	}

	// Moving a session within its own slot must not conflict with itself.
	moved, err := f.svc.Schedule(ctx, sess.ID, at(9).Add(15*time.Minute), f.scope)
	if err != nil {
		t.Fatalf("Schedule = %v, want nil", err)
	}
	if moved.Status != StatusScheduled {
		t.Errorf("status = %s, want scheduled", moved.Status)
	}
}

func TestLifecycleToCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Create(ctx, CreateInput{ClientID: f.clientID, ScheduledAt: at(9)}, f.scope)
	if err != nil {
		t.Fatalf("Create = %v", err)
	}

	started, err := f.svc.Start(ctx, sess.ID, f.scope)
	if err != nil {
		t.Fatalf("Start = %v", err)
	}
	if started.StartedAt == nil {
		t.Error("starting must stamp started_at")
	}

	notes := "good progress"
	done, err := f.svc.Complete(ctx, sess.ID, &notes, f.scope)
	if err != nil {
		t.Fatalf("Complete = %v", err)
	}
	if done.Status != StatusCompleted || done.CompletedAt == nil {
		t.Errorf("completed = (%s, %v), want (completed, stamped)", done.Status, done.CompletedAt)
	}
	if done.Notes == nil || *done.Notes != notes {
		t.Error("completion notes must be stored")
	}

	if got := f.clients.rows[f.clientID].Status; got != client.StatusInTherapy {
		t.Errorf("client status = %s, want in_therapy after first completed session", got)
	}
}

func TestStartPlannedRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Create(ctx, CreateInput{ClientID: f.clientID}, f.scope)
	if err != nil {
		t.Fatalf("Create = %v", err)
	}

	_, err = f.svc.Start(ctx, sess.ID, f.scope)
	var inv *workflow.InvalidTransitionError
	if !errors.As(err, &inv) {
		t.Errorf("Start(planned) = %v, want InvalidTransitionError", err)
	}
}

func TestCancelAndRevive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Create(ctx, CreateInput{ClientID: f.clientID, ScheduledAt: at(9)}, f.scope)
	if err != nil {
		t.Fatalf("Create = %v", err)
	}
	if _, err := f.svc.Cancel(ctx, sess.ID, f.scope); err != nil {
		t.Fatalf("Cancel = %v", err)
	}

	revived, err := f.svc.Schedule(ctx, sess.ID, *at(14), f.scope)
	if err != nil {
		t.Fatalf("Schedule(cancelled) = %v, want nil", err)
	}
	if revived.Status != StatusScheduled {
		t.Errorf("status = %s, want scheduled", revived.Status)
	}
}

func TestReplanClearsSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Create(ctx, CreateInput{ClientID: f.clientID, ScheduledAt: at(9)}, f.scope)
	if err != nil {
		t.Fatalf("Create = %v", err)
	}

	planned, err := f.svc.Replan(ctx, sess.ID, f.scope)
	if err != nil {
		t.Fatalf("Replan = %v", err)
	}
	if planned.Status != StatusPlanned || planned.ScheduledAt != nil {
		t.Errorf("replanned = (%s, %v), want (planned, no slot)", planned.Status, planned.ScheduledAt)
	}
}

func TestDeleteCompletedRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Create(ctx, CreateInput{ClientID: f.clientID, ScheduledAt: at(9)}, f.scope)
	if err != nil {
		t.Fatalf("Create = %v", err)
	}
	if _, err := f.svc.Start(ctx, sess.ID, f.scope); err != nil {
		t.Fatalf("Start = %v", err)
	}
	if _, err := f.svc.Complete(ctx, sess.ID, nil, f.scope); err != nil {
		t.Fatalf("Complete = %v", err)
	}

	err = f.svc.Delete(ctx, sess.ID, f.scope)
	if !errors.Is(err, ErrSessionNotDeletable) {
		t.Errorf("Delete(completed) = %v, want ErrSessionNotDeletable", err)
	}
	if _, ok := f.repo.rows[sess.ID]; !ok {
		t.Error("rejected delete must leave the row in place")
	}
}

func TestDeletePlanned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Create(ctx, CreateInput{ClientID: f.clientID}, f.scope)
	if err != nil {
		t.Fatalf("Create = %v", err)
	}
	if err := f.svc.Delete(ctx, sess.ID, f.scope); err != nil {
		t.Fatalf("Delete(planned) = %v, want nil", err)
	}
	if _, ok := f.repo.rows[sess.ID]; ok {
		t.Error("deleted session still present")
	}
}

func TestCompletedIsTerminal(t *testing.T) {
	if !Transitions.Terminal(string(StatusCompleted)) {
		t.Error("completed must be terminal")
	}
	if Transitions.Can(string(StatusCompleted), string(StatusCancelled)) {
		t.Error("completed sessions cannot be cancelled")
	}
}

func TestListByTherapistWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	morning, err := f.svc.Create(ctx, CreateInput{ClientID: f.clientID, ScheduledAt: at(9)}, f.scope)
	if err != nil {
		t.Fatalf("Create morning = %v", err)
	}
	if _, err := f.svc.Create(ctx, CreateInput{ClientID: f.clientID, ScheduledAt: at(15)}, f.scope); err != nil {
		t.Fatalf("Create afternoon = %v", err)
	}
	if _, err := f.svc.Create(ctx, CreateInput{ClientID: f.clientID}, f.scope); err != nil {
		t.Fatalf("Create unscheduled = %v", err)
	}

	filter := ListFilter{From: at(8), To: at(12)}
	items, total, err := f.svc.ListByTherapist(ctx, morning.TherapistID, f.scope, filter, 20, 0)
	if err != nil {
		t.Fatalf("ListByTherapist = %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("window list returned %d items (total %d), want 1", len(items), total)
	}
	if items[0].ID != morning.ID {
		t.Errorf("window list returned session %s, want %s", items[0].ID, morning.ID)
	}

	items, _, err = f.svc.ListByTherapist(ctx, morning.TherapistID, f.scope, ListFilter{}, 20, 0)
	if err != nil {
		t.Fatalf("ListByTherapist unfiltered = %v", err)
	}
	if len(items) != 3 {
		t.Errorf("unfiltered list returned %d items, want 3", len(items))
	}
}
