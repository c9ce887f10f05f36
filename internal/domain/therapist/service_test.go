package therapist

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/therapynet/clinic-server/internal/platform/auth"
)

type memRepo struct {
	rows        map[uuid.UUID]*Therapist
	activeCount map[uuid.UUID]int
}

func newMemRepo() *memRepo {
	return &memRepo{
		rows:        make(map[uuid.UUID]*Therapist),
		activeCount: make(map[uuid.UUID]int),
	}
}

func (r *memRepo) visible(t *Therapist, scope auth.ClinicFilter) bool {
	cid, ok := scope.Clinic()
	return !ok || t.ClinicID == cid
}

func (r *memRepo) Create(ctx context.Context, t *Therapist) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	cp := *t
	r.rows[t.ID] = &cp
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Therapist, error) {
	t, ok := r.rows[id]
	if !ok || !r.visible(t, scope) {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memRepo) GetForUpdate(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) (*Therapist, error) {
	return r.GetByID(ctx, id, scope)
}

func (r *memRepo) Update(ctx context.Context, t *Therapist) error {
	if _, ok := r.rows[t.ID]; !ok {
		return ErrNotFound
	}
	cp := *t
	r.rows[t.ID] = &cp
	return nil
}

func (r *memRepo) List(ctx context.Context, scope auth.ClinicFilter, status Status, limit, offset int) ([]*Therapist, int, error) {
	var out []*Therapist
	for _, t := range r.rows {
		if !r.visible(t, scope) {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (r *memRepo) AdjustLoad(ctx context.Context, id uuid.UUID, delta int) error {
	t, ok := r.rows[id]
	if !ok {
		return ErrNotFound
	}
	if t.CurrentLoad+delta < 0 {
		return ErrLoadUnderflow
	}
	t.CurrentLoad += delta
	return nil
}

func (r *memRepo) CountActiveAssignments(ctx context.Context, id uuid.UUID) (int, error) {
	return r.activeCount[id], nil
}

func seed(repo *memRepo, clinicID uuid.UUID, status Status, load int) *Therapist {
	t := &Therapist{
		ID:          uuid.New(),
		ClinicID:    clinicID,
		FirstName:   "Sam",
		LastName:    "Ther",
		Status:      status,
		CurrentLoad: load,
	}
	repo.rows[t.ID] = t
	return t
}

func TestCreateResetsManagedFields(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)

	th := &Therapist{ClinicID: uuid.New(), FirstName: "Sam", LastName: "Ther", Status: StatusInactive, CurrentLoad: 7}
	if err := svc.Create(context.Background(), th); err != nil {
		t.Fatalf("Create = %v, want nil", err)
	}
	stored := repo.rows[th.ID]
	if stored.Status != StatusActive || stored.CurrentLoad != 0 {
		t.Errorf("created = (%s, %d), want (active, 0)", stored.Status, stored.CurrentLoad)
	}
}

func TestUpdatePreservesStatusAndLoad(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	clinicID := uuid.New()
	th := seed(repo, clinicID, StatusInactive, 3)

	upd := *th
	upd.FirstName = "Renamed"
	upd.Status = StatusActive
	upd.CurrentLoad = 0
	if err := svc.Update(context.Background(), &upd, auth.ScopeClinic(clinicID)); err != nil {
		t.Fatalf("Update = %v, want nil", err)
	}
	stored := repo.rows[th.ID]
	if stored.FirstName != "Renamed" {
		t.Error("update must apply profile fields")
	}
	if stored.Status != StatusInactive || stored.CurrentLoad != 3 {
		t.Errorf("stored = (%s, %d), managed fields must survive updates", stored.Status, stored.CurrentLoad)
	}
}

func TestDeactivateActivate(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	clinicID := uuid.New()
	th := seed(repo, clinicID, StatusActive, 0)
	scope := auth.ScopeClinic(clinicID)
	ctx := context.Background()

	if err := svc.Deactivate(ctx, th.ID, scope); err != nil {
		t.Fatalf("Deactivate = %v", err)
	}
	if repo.rows[th.ID].Status != StatusInactive {
		t.Error("therapist should be inactive")
	}

	if err := svc.Activate(ctx, th.ID, scope); err != nil {
		t.Fatalf("Activate = %v", err)
	}
	if repo.rows[th.ID].Status != StatusActive {
		t.Error("therapist should be active again")
	}
}

func TestGetOutOfScope(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	th := seed(repo, uuid.New(), StatusActive, 0)

	_, err := svc.Get(context.Background(), th.ID, auth.ScopeClinic(uuid.New()))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(out of scope) = %v, want ErrNotFound", err)
	}
}

func TestVerifyLoad(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	clinicID := uuid.New()
	th := seed(repo, clinicID, StatusActive, 2)
	repo.activeCount[th.ID] = 2

	stored, actual, err := svc.VerifyLoad(context.Background(), th.ID, auth.ScopeClinic(clinicID))
	if err != nil {
		t.Fatalf("VerifyLoad = %v", err)
	}
	if stored != 2 || actual != 2 {
		t.Errorf("VerifyLoad = (%d, %d), want (2, 2)", stored, actual)
	}

	repo.activeCount[th.ID] = 1
	stored, actual, err = svc.VerifyLoad(context.Background(), th.ID, auth.ScopeClinic(clinicID))
	if err != nil {
		t.Fatalf("VerifyLoad = %v", err)
	}
	if stored == actual {
		t.Error("drifted counter should be reported as a mismatch")
	}
}

func TestAdjustLoadUnderflow(t *testing.T) {
	repo := newMemRepo()
	clinicID := uuid.New()
	th := seed(repo, clinicID, StatusActive, 0)

	err := repo.AdjustLoad(context.Background(), th.ID, -1)
	if !errors.Is(err, ErrLoadUnderflow) {
		t.Errorf("AdjustLoad(-1 at zero) = %v, want ErrLoadUnderflow", err)
	}
}
