package handlers_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pablopunk/doceq"
	"github.com/pablopunk/doceq/handlers"
	"github.com/pablopunk/doceq/job"
	"github.com/pablopunk/doceq/store"
	gsql "github.com/pablopunk/doceq/store/sql"
)

// fakeProjectStore is an in-memory handlers.ProjectStore, standing in
// for store/sql/projects.go the way pool_test.go stands in for a real
// worker process: enough to exercise the handler's control flow
// without a second SQLite table.
type fakeProjectStore struct {
	mu       sync.Mutex
	projects map[uuid.UUID]*handlers.Project
}

func newFakeProjectStore() *fakeProjectStore {
	return &fakeProjectStore{projects: map[uuid.UUID]*handlers.Project{}}
}

func (f *fakeProjectStore) CreateProject(ctx context.Context, p handlers.CreateProjectParams) (*handlers.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	proj := &handlers.Project{
		ID:          p.ID,
		OwnerUserID: p.OwnerUserID,
		Status:      handlers.ProjectCreated,
		Dir:         p.Dir,
		PreviewPort: p.PreviewPort,
		SessionPort: p.SessionPort,
		APIKey:      p.APIKey,
	}
	f.projects[p.ID] = proj
	return proj, nil
}

func (f *fakeProjectStore) GetProject(ctx context.Context, id uuid.UUID) (*handlers.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProjectStore) ListProjectIDsByOwner(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for id, p := range f.projects {
		if p.OwnerUserID == userID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeProjectStore) UpdateStatus(ctx context.Context, id uuid.UUID, status handlers.ProjectStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.projects[id]; ok {
		p.Status = status
	}
	return nil
}

func (f *fakeProjectStore) SetBootstrapSessionID(ctx context.Context, id uuid.UUID, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.projects[id]; ok {
		p.BootstrapSessionID = sessionID
	}
	return nil
}

func (f *fakeProjectStore) SetInitialPromptSent(ctx context.Context, id uuid.UUID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.projects[id]; ok {
		p.InitialPromptSent = true
		p.InitialMessageID = messageID
	}
	return nil
}

func (f *fakeProjectStore) SetProductionFields(ctx context.Context, id uuid.UUID, fields handlers.ProductionFields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.projects[id]; ok {
		p.ProductionHash = fields.ProductionHash
		p.ProductionPort = fields.ProductionPort
		p.ProductionURL = fields.ProductionURL
		p.ProductionStatus = fields.ProductionStatus
		p.ProductionError = fields.ProductionError
	}
	return nil
}

func (f *fakeProjectStore) HardDelete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.projects, id)
	return nil
}

// fakePorts hands out deterministic, always-distinct ports.
type fakePorts struct {
	next atomic.Int32
}

func newFakePorts() *fakePorts {
	p := &fakePorts{}
	p.next.Store(20000)
	return p
}

func (p *fakePorts) AllocateProjectPorts(ctx context.Context, projectID uuid.UUID) (int, int, error) {
	return int(p.next.Add(1)), int(p.next.Add(1)), nil
}

func (p *fakePorts) AllocateProductionPort(ctx context.Context, projectID uuid.UUID) (int, error) {
	return int(p.next.Add(1)), nil
}

// fakeTemplate records Materialize calls instead of touching a
// filesystem.
type fakeTemplate struct {
	mu    sync.Mutex
	calls int
}

func (t *fakeTemplate) Materialize(ctx context.Context, dir string, previewPort, sessionPort int, apiKey string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	return nil
}

func (t *fakeTemplate) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// fakeRuntime lets tests control whether docker.composeUp's compose up
// succeeds.
type fakeRuntime struct {
	composeUpResult handlers.ExecResult
	composeUpErr    error
}

func (r *fakeRuntime) ComposeUp(ctx context.Context, projectDir string) (handlers.ExecResult, error) {
	return r.composeUpResult, r.composeUpErr
}
func (r *fakeRuntime) ComposeStop(ctx context.Context, projectDir string) (handlers.ExecResult, error) {
	return handlers.ExecResult{Success: true}, nil
}
func (r *fakeRuntime) ComposeDown(ctx context.Context, projectDir string, removeVolumes bool) (handlers.ExecResult, error) {
	return handlers.ExecResult{Success: true}, nil
}
func (r *fakeRuntime) BuildImage(ctx context.Context, dir, tag string) (handlers.ExecResult, error) {
	return handlers.ExecResult{Success: true}, nil
}
func (r *fakeRuntime) RunContainer(ctx context.Context, spec handlers.ContainerSpec) (handlers.ExecResult, error) {
	return handlers.ExecResult{Success: true}, nil
}
func (r *fakeRuntime) RemoveContainer(ctx context.Context, name string) (handlers.ExecResult, error) {
	return handlers.ExecResult{Success: true}, nil
}
func (r *fakeRuntime) RemoveImage(ctx context.Context, tag string) (handlers.ExecResult, error) {
	return handlers.ExecResult{Success: true}, nil
}
func (r *fakeRuntime) PushAuth(ctx context.Context, projectDir, apiKey string) (handlers.ExecResult, error) {
	return handlers.ExecResult{Success: true}, nil
}

func newTestHandlers(t *testing.T, engine *doceq.Engine, projects *fakeProjectStore, runtime *fakeRuntime, tmpl *fakeTemplate) *handlers.Handlers {
	t.Helper()
	return &handlers.Handlers{
		Engine:    engine,
		Projects:  projects,
		Runtime:   runtime,
		Ports:     newFakePorts(),
		Template:  tmpl,
		HTTPClient: &http.Client{Timeout: time.Second},
		Log:       slog.Default(),
		ImageRepo: "doce-prod",
		DataDir:   t.TempDir(),
	}
}

func newHandlerTestStore(t *testing.T) *gsql.Store {
	t.Helper()
	db, err := gsql.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	if err := gsql.InitDB(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return gsql.NewStore(db)
}

func handlerTestConfig() doceq.Config {
	cfg := doceq.DefaultConfig()
	cfg.Concurrency = 1
	cfg.PollInterval = 10 * time.Millisecond
	cfg.LeaseDuration = 500 * time.Millisecond
	cfg.Backoff.InitialInterval = 10 * time.Millisecond
	cfg.Backoff.MaxInterval = 50 * time.Millisecond
	return cfg
}

// TestProjectCreateMaterializesOnce verifies project.create's
// idempotency guard: a fresh project materializes its template and
// chains into docker.composeUp, and a retried project.create for the
// same already-created project skips straight to the chain without
// re-materializing.
func TestProjectCreateMaterializesOnce(t *testing.T) {
	st := newHandlerTestStore(t)
	engine := doceq.NewEngine(st)
	registry := doceq.NewRegistry(st)

	tmpl := &fakeTemplate{}
	h := newTestHandlers(t, engine, newFakeProjectStore(), &fakeRuntime{}, tmpl)
	h.RegisterAll(registry)

	pool := doceq.NewPool("worker-1", st, registry, handlerTestConfig(), slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := pool.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer pool.Stop(time.Second)

	projectID := uuid.New()
	payload, err := json.Marshal(handlers.ProjectCreatePayload{
		ProjectID:   projectID,
		OwnerUserID: uuid.New(),
		Prompt:      "build me a todo app",
	})
	if err != nil {
		t.Fatal(err)
	}

	j := &job.Job{ID: uuid.New(), Type: job.TypeProjectCreate, Payload: payload, MaxAttempts: 3}
	if err := st.InsertJob(context.Background(), j); err != nil {
		t.Fatal(err)
	}
	waitForJobState(t, st, j.ID, job.Succeeded)

	waitForComposeUpQueued(t, st, projectID)
	if got := tmpl.callCount(); got != 1 {
		t.Fatalf("Materialize called %d times, want 1", got)
	}

	// Retry with the same payload: the project row already exists, so
	// Materialize must not run again.
	retry := &job.Job{ID: uuid.New(), Type: job.TypeProjectCreate, Payload: payload, MaxAttempts: 3}
	if err := st.InsertJob(context.Background(), retry); err != nil {
		t.Fatal(err)
	}
	waitForJobState(t, st, retry.ID, job.Succeeded)

	if got := tmpl.callCount(); got != 1 {
		t.Fatalf("Materialize called %d times after retry, want still 1", got)
	}
}

// TestDockerComposeUpFailureMarksProjectError verifies that a failed
// docker compose up fails the job and leaves the project in the Error
// status, per docker.composeUp's contract.
func TestDockerComposeUpFailureMarksProjectError(t *testing.T) {
	st := newHandlerTestStore(t)
	engine := doceq.NewEngine(st)
	registry := doceq.NewRegistry(st)

	projects := newFakeProjectStore()
	projectID := uuid.New()
	if _, err := projects.CreateProject(context.Background(), handlers.CreateProjectParams{ID: projectID, Dir: "/tmp/doceq-test"}); err != nil {
		t.Fatal(err)
	}

	runtime := &fakeRuntime{composeUpResult: handlers.ExecResult{Success: false, Stderr: "compose exploded"}}
	h := newTestHandlers(t, engine, projects, runtime, &fakeTemplate{})
	h.RegisterAll(registry)

	pool := doceq.NewPool("worker-1", st, registry, handlerTestConfig(), slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := pool.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer pool.Stop(time.Second)

	payload, err := json.Marshal(handlers.DockerComposeUpPayload{ProjectID: projectID})
	if err != nil {
		t.Fatal(err)
	}
	j := &job.Job{ID: uuid.New(), Type: job.TypeDockerComposeUp, Payload: payload, MaxAttempts: 1}
	if err := st.InsertJob(context.Background(), j); err != nil {
		t.Fatal(err)
	}
	waitForJobState(t, st, j.ID, job.Failed)

	proj, err := projects.GetProject(context.Background(), projectID)
	if err != nil {
		t.Fatal(err)
	}
	if proj.Status != handlers.ProjectError {
		t.Fatalf("project status = %s, want %s", proj.Status, handlers.ProjectError)
	}
}

func waitForJobState(t *testing.T, st *gsql.Store, id uuid.UUID, want job.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := st.GetJob(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if got != nil && got.State == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach state %s in time", id, want)
}

func waitForComposeUpQueued(t *testing.T, st *gsql.Store, projectID uuid.UUID) {
	t.Helper()
	filters := store.Filters{ProjectID: &projectID, Type: job.TypeDockerComposeUp}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		jobs, err := st.ListJobs(context.Background(), filters, 10, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(jobs) > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("docker.composeUp was never enqueued for project %s", projectID)
}
