package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sogos/mirai-scheduler/internal/domain/apperr"
	"github.com/sogos/mirai-scheduler/internal/domain/entity"
	"github.com/sogos/mirai-scheduler/internal/domain/repository"
	domainservice "github.com/sogos/mirai-scheduler/internal/domain/service"
	"github.com/sogos/mirai-scheduler/internal/domain/valueobject"
)

// nopLogger satisfies service.Logger for tests.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any)                            {}
func (nopLogger) Info(string, ...any)                             {}
func (nopLogger) Warn(string, ...any)                             {}
func (nopLogger) Error(string, ...any)                            {}
func (l nopLogger) With(...any) domainservice.Logger              { return l }
func (l nopLogger) WithContext(context.Context) domainservice.Logger { return l }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// recordingNotifier captures NotifyClaimAvailable calls.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []valueobject.RunType
}

func (n *recordingNotifier) NotifyClaimAvailable(_ context.Context, runType valueobject.RunType, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, runType)
}

// memTaskRepo is an in-memory repository.TaskRepository. Claim methods are
// stubbed; the engines under test here exercise the non-claim surface.
type memTaskRepo struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*entity.Task
}

func newMemTaskRepo(tasks ...*entity.Task) *memTaskRepo {
	r := &memTaskRepo{tasks: make(map[uuid.UUID]*entity.Task)}
	for _, t := range tasks {
		r.tasks[t.ID] = t
	}
	return r
}

func (r *memTaskRepo) Create(_ context.Context, task *entity.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	r.tasks[task.ID] = task
	return nil
}

func (r *memTaskRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, apperr.NotFound("task")
	}
	return t, nil
}

func (r *memTaskRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*entity.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Task
	for _, id := range ids {
		if t, ok := r.tasks[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memTaskRepo) ClaimServiceMode(context.Context, *entity.Worker, *valueobject.RunType, bool) (*entity.Task, error) {
	return nil, nil
}

func (r *memTaskRepo) ClaimUserMode(context.Context, uuid.UUID, *valueobject.RunType, bool) (*entity.Task, error) {
	return nil, nil
}

func (r *memTaskRepo) CountInProgressByUser(context.Context, uuid.UUID) (int, error) { return 0, nil }

func (r *memTaskRepo) CountEligibleQueuedByUser(context.Context, uuid.UUID) (int, error) {
	return 0, nil
}

func (r *memTaskRepo) UpdateStatus(_ context.Context, id uuid.UUID, status valueobject.TaskStatus, outputLocation, errorMessage *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return false, nil
	}
	switch {
	case status == valueobject.TaskStatusInProgress && t.Status == valueobject.TaskStatusQueued:
	case status.IsTerminal() && t.Status == valueobject.TaskStatusInProgress:
	default:
		return false, nil
	}
	t.Status = status
	if outputLocation != nil {
		t.OutputLocation = outputLocation
	}
	if errorMessage != nil {
		t.ErrorMessage = errorMessage
	}
	if status.IsTerminal() {
		now := time.Now()
		t.GenerationProcessedAt = &now
	}
	return true, nil
}

func (r *memTaskRepo) MarkGenerationCreated(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.GenerationCreated {
		return false, nil
	}
	t.GenerationCreated = true
	return true, nil
}

func (r *memTaskRepo) ListStuckTasks(context.Context, time.Time) ([]*entity.Task, error) {
	return nil, nil
}

// memTaskTypeRepo is an in-memory repository.TaskTypeRepository.
type memTaskTypeRepo struct {
	types map[string]*entity.TaskType
}

func newMemTaskTypeRepo(types ...*entity.TaskType) *memTaskTypeRepo {
	r := &memTaskTypeRepo{types: make(map[string]*entity.TaskType)}
	for _, tt := range types {
		r.types[tt.Name] = tt
	}
	return r
}

func (r *memTaskTypeRepo) GetByName(_ context.Context, name string) (*entity.TaskType, error) {
	tt, ok := r.types[name]
	if !ok {
		return nil, apperr.NotFound("task_type")
	}
	return tt, nil
}

// memGenerationRepo is an in-memory repository.GenerationRepository.
type memGenerationRepo struct {
	mu          sync.Mutex
	generations map[uuid.UUID]*entity.Generation
}

func newMemGenerationRepo() *memGenerationRepo {
	return &memGenerationRepo{generations: make(map[uuid.UUID]*entity.Generation)}
}

func (r *memGenerationRepo) Create(_ context.Context, gen *entity.Generation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen.ID == uuid.Nil {
		gen.ID = uuid.New()
	}
	r.generations[gen.ID] = gen
	return nil
}

func (r *memGenerationRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.Generation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.generations[id]
	if !ok {
		return nil, apperr.NotFound("generation")
	}
	return g, nil
}

func (r *memGenerationRepo) UpdateShotData(_ context.Context, id uuid.UUID, data entity.ShotFrames) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.generations[id]
	if !ok {
		return apperr.NotFound("generation")
	}
	g.ShotData = data
	return nil
}

func (r *memGenerationRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.generations)
}

func (r *memGenerationRepo) single() *entity.Generation {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.generations {
		return g
	}
	return nil
}

// memShotLinkRepo is an in-memory repository.ShotLinkRepository whose
// listing order matches the persistence layer's: timeline_frame ascending
// nulls last, then created_at, then generation id.
type memShotLinkRepo struct {
	mu    sync.Mutex
	links []*entity.ShotLink
	seq   int
}

func newMemShotLinkRepo() *memShotLinkRepo { return &memShotLinkRepo{} }

func (r *memShotLinkRepo) Create(_ context.Context, link *entity.ShotLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	r.seq++
	link.CreatedAt = time.Unix(int64(r.seq), 0)
	r.links = append(r.links, link)
	return nil
}

func sortLinks(links []*entity.ShotLink) {
	sort.SliceStable(links, func(i, j int) bool {
		a, b := links[i], links[j]
		switch {
		case a.TimelineFrame == nil && b.TimelineFrame == nil:
		case a.TimelineFrame == nil:
			return false
		case b.TimelineFrame == nil:
			return true
		case *a.TimelineFrame != *b.TimelineFrame:
			return *a.TimelineFrame < *b.TimelineFrame
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.GenerationID.String() < b.GenerationID.String()
	})
}

func (r *memShotLinkRepo) ListByShot(_ context.Context, shotID uuid.UUID) ([]*entity.ShotLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.ShotLink
	for _, l := range r.links {
		if l.ShotID == shotID {
			out = append(out, l)
		}
	}
	sortLinks(out)
	return out, nil
}

func (r *memShotLinkRepo) ListByGeneration(_ context.Context, generationID uuid.UUID) ([]*entity.ShotLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.ShotLink
	for _, l := range r.links {
		if l.GenerationID == generationID {
			out = append(out, l)
		}
	}
	sortLinks(out)
	return out, nil
}

func (r *memShotLinkRepo) ClearFrames(_ context.Context, ids []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for _, l := range r.links {
		if want[l.ID] {
			l.TimelineFrame = nil
		}
	}
	return nil
}

func (r *memShotLinkRepo) SetFrame(_ context.Context, id uuid.UUID, frame *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.ID == id {
			if frame != nil {
				f := *frame
				l.TimelineFrame = &f
			} else {
				l.TimelineFrame = nil
			}
			return nil
		}
	}
	return apperr.NotFound("shot_link")
}

// memTransactor satisfies repository.Transactor without transactional
// semantics; the engines' two-stage protocols are what the tests observe.
type memTransactor struct {
	links *memShotLinkRepo
	gens  *memGenerationRepo
}

func (t *memTransactor) WithinShotTx(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context, links repository.ShotLinkRepository, gens repository.GenerationRepository) error) error {
	return fn(ctx, t.links, t.gens)
}

func newShotLinkEngineForTest() (*ShotLinkEngine, *memShotLinkRepo, *memGenerationRepo) {
	links := newMemShotLinkRepo()
	gens := newMemGenerationRepo()
	return NewShotLinkEngine(&memTransactor{links: links, gens: gens}), links, gens
}

// memAnalysisRepo serves canned analysis rows and eligibility listings.
type memAnalysisRepo struct {
	rows  []repository.AnalysisRow
	users []repository.UserEligibility
}

func (r *memAnalysisRepo) ListQueuedAnalysisRows(context.Context) ([]repository.AnalysisRow, error) {
	return r.rows, nil
}

func (r *memAnalysisRepo) ListEligibleUsers(_ context.Context, serviceMode bool) ([]repository.UserEligibility, error) {
	var out []repository.UserEligibility
	for _, u := range r.users {
		if u.Credits <= 0 {
			continue
		}
		if serviceMode && !u.AllowsCloud {
			continue
		}
		if !serviceMode && !u.AllowsLocal {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func intPtr(v int) *int { return &v }

func strPtr(s string) *string { return &s }
