package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/qdispatch/api/internal/backend"
	"github.com/qdispatch/api/internal/model"
	"github.com/qdispatch/api/internal/registry"
)

const bellCircuit = `OPENQASM 2.0;
include "qelib1.inc";
qreg q[2];
creg c[2];
h q[0];
cx q[0], q[1];
measure q[0] -> c[0];
measure q[1] -> c[1];
`

const identityCircuit = `OPENQASM 2.0;
include "qelib1.inc";
qreg q[1];
creg c[1];
measure q[0] -> c[0];
`

// memStore is an in-memory StorageClient for tests.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = data
	return nil
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.data[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

// goSpawner runs tasks on fresh goroutines, standing in for the worker pool.
type goSpawner struct{}

func (goSpawner) Spawn(task func(ctx context.Context)) error {
	go task(context.Background())
	return nil
}

// fullSpawner rejects everything, standing in for a saturated pool.
type fullSpawner struct{}

func (fullSpawner) Spawn(func(ctx context.Context)) error {
	return errors.New("worker queue full")
}

// fakeHardware scripts the two-phase remote flow: Poll walks the status
// sequence, FetchResult returns the canned raw result.
type fakeHardware struct {
	mu        sync.Mutex
	submitErr error
	statuses  []string
	polls     int
	result    *backend.RawResult
	fetchErr  error
}

func (f *fakeHardware) Name() string    { return model.ProviderIBM }
func (f *fakeHardware) Available() bool { return true }

func (f *fakeHardware) Submit(_ context.Context, _ string, _ int, _ string, _ map[string]any) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "remote-123", nil
}

func (f *fakeHardware) Poll(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.polls
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	f.polls++
	return f.statuses[i], nil
}

func (f *fakeHardware) FetchResult(_ context.Context, _ string) (*backend.RawResult, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.result, nil
}

func newTestExecutor(t *testing.T, hw backend.Hardware) (*ExecutorService, *memStore) {
	t.Helper()
	catalog := backend.NewCatalog()
	catalog.Register(backend.NewQiskitSimulator())
	catalog.Register(backend.NewCirqSimulator())
	catalog.Register(backend.NewBraketSimulator())
	if hw != nil {
		catalog.RegisterHardware(hw)
	}
	store := newMemStore()
	svc := NewExecutorService(registry.New(), catalog, store, nil, goSpawner{}, time.Millisecond, 50*time.Millisecond)
	return svc, store
}

func waitTerminal(t *testing.T, svc *ExecutorService, jobID string) *model.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := svc.Registry().Get(jobID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("job never reached a terminal status")
	return nil
}

func TestSubmitSyncSimulator(t *testing.T) {
	svc, store := newTestExecutor(t, nil)

	job, err := svc.Submit(context.Background(), &model.ExecuteRequest{
		CircuitFile:     identityCircuit,
		Shots:           1024,
		BackendType:     model.BackendTypeSimulator,
		BackendProvider: model.ProviderQiskit,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if job.Status != model.JobStatusCompleted {
		t.Fatalf("expected completed, got %s (error: %v)", job.Status, job.Error)
	}

	result, err := svc.JobResult(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("JobResult failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	// No gates before measurement, so every shot lands on the zero state.
	if result.Counts["0"] != 1024 {
		t.Errorf("expected counts {\"0\": 1024}, got %v", result.Counts)
	}

	// Circuit and result documents are both persisted.
	if _, err := store.Get(context.Background(), "circuits/"+job.ID+".qasm"); err != nil {
		t.Error("circuit source was not persisted")
	}
	stored, err := store.Get(context.Background(), "results/"+job.ID+".json")
	if err != nil {
		t.Fatal("result document was not persisted")
	}
	if string(stored) != string(job.Result) {
		t.Error("stored result bytes differ from registry result bytes")
	}
}

func TestSubmitSyncBellCounts(t *testing.T) {
	svc, _ := newTestExecutor(t, nil)

	job, err := svc.Submit(context.Background(), &model.ExecuteRequest{
		CircuitFile:     bellCircuit,
		Shots:           512,
		BackendType:     model.BackendTypeSimulator,
		BackendProvider: model.ProviderCirq,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	result, err := svc.JobResult(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("JobResult failed: %v", err)
	}
	total := 0.0
	for outcome, n := range result.Counts {
		if outcome != "00" && outcome != "11" {
			t.Errorf("bell state produced impossible outcome %q", outcome)
		}
		total += n
	}
	if total != 512 {
		t.Errorf("expected counts summing to 512, got %v", total)
	}
}

func TestSubmitValidation(t *testing.T) {
	svc, _ := newTestExecutor(t, nil)

	tests := []struct {
		name string
		req  model.ExecuteRequest
		want string
	}{
		{
			name: "empty circuit",
			req: model.ExecuteRequest{
				CircuitFile:     "   \n",
				Shots:           100,
				BackendType:     model.BackendTypeSimulator,
				BackendProvider: model.ProviderQiskit,
			},
			want: "circuit file is empty",
		},
		{
			name: "negative shots",
			req: model.ExecuteRequest{
				CircuitFile:     identityCircuit,
				Shots:           -5,
				BackendType:     model.BackendTypeSimulator,
				BackendProvider: model.ProviderQiskit,
			},
			want: "shots must be a positive integer",
		},
		{
			name: "zero shots without probability support",
			req: model.ExecuteRequest{
				CircuitFile:     identityCircuit,
				Shots:           0,
				BackendType:     model.BackendTypeSimulator,
				BackendProvider: model.ProviderQiskit,
			},
			want: "shots must be a positive integer",
		},
		{
			name: "unknown simulator provider",
			req: model.ExecuteRequest{
				CircuitFile:     identityCircuit,
				Shots:           100,
				BackendType:     model.BackendTypeSimulator,
				BackendProvider: "pennylane",
			},
			want: "invalid simulator provider",
		},
		{
			name: "hardware provider on simulator type",
			req: model.ExecuteRequest{
				CircuitFile:     identityCircuit,
				Shots:           100,
				BackendType:     model.BackendTypeSimulator,
				BackendProvider: model.ProviderIBM,
			},
			want: "invalid simulator provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), &tt.req)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !IsValidation(err) {
				t.Fatalf("expected ValidationError, got %T: %v", err, err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.want)
			}
		})
	}

	if n := svc.Registry().Len(); n != 0 {
		t.Errorf("validation failures created %d jobs", n)
	}
}

func TestSubmitZeroShotsProbabilityMode(t *testing.T) {
	svc, _ := newTestExecutor(t, nil)

	job, err := svc.Submit(context.Background(), &model.ExecuteRequest{
		CircuitFile:     bellCircuit,
		Shots:           0,
		BackendType:     model.BackendTypeSimulator,
		BackendProvider: model.ProviderBraket,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	result, err := svc.JobResult(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("JobResult failed: %v", err)
	}
	if result.Metadata["result_type"] != "probabilities" {
		t.Errorf("expected probabilities result type, got %v", result.Metadata["result_type"])
	}
	total := 0.0
	for outcome, p := range result.Counts {
		if len(outcome) != 2 {
			t.Errorf("expected 2-bit outcome keys, got %q", outcome)
		}
		total += p
	}
	if total < 0.999 || total > 1.001 {
		t.Errorf("probabilities should sum to 1, got %v", total)
	}
}

func TestSubmitAsync(t *testing.T) {
	svc, _ := newTestExecutor(t, nil)

	job, err := svc.Submit(context.Background(), &model.ExecuteRequest{
		CircuitFile:     identityCircuit,
		Shots:           256,
		BackendType:     model.BackendTypeSimulator,
		BackendProvider: model.ProviderQiskit,
		AsyncMode:       true,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if job.Status.Terminal() {
		// The goroutine may win the race, but a queued observation is the
		// expected async shape.
		t.Logf("async job already terminal: %s", job.Status)
	}

	final := waitTerminal(t, svc, job.ID)
	if final.Status != model.JobStatusCompleted {
		t.Fatalf("expected completed, got %s (error: %v)", final.Status, final.Error)
	}
}

func TestSubmitAsyncQueueFull(t *testing.T) {
	svc, _ := newTestExecutor(t, nil)
	svc.spawner = fullSpawner{}

	_, err := svc.Submit(context.Background(), &model.ExecuteRequest{
		CircuitFile:     identityCircuit,
		Shots:           256,
		BackendType:     model.BackendTypeSimulator,
		BackendProvider: model.ProviderQiskit,
		AsyncMode:       true,
	})
	if err == nil {
		t.Fatal("expected dispatch failure")
	}
	if IsValidation(err) {
		t.Error("queue saturation is not a validation error")
	}
}

func TestSubmitDisabledProvider(t *testing.T) {
	svc, _ := newTestExecutor(t, nil)
	svc.catalog.Disable(model.ProviderCirq)

	_, err := svc.Submit(context.Background(), &model.ExecuteRequest{
		CircuitFile:     bellCircuit,
		Shots:           100,
		BackendType:     model.BackendTypeSimulator,
		BackendProvider: model.ProviderCirq,
	})
	if err == nil || !IsValidation(err) {
		t.Fatalf("expected validation error for disabled provider, got %v", err)
	}
	if !strings.Contains(err.Error(), "not available") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestHardwareTwoPhaseSuccess(t *testing.T) {
	hw := &fakeHardware{
		statuses: []string{"JobStatus.RUNNING", "JobStatus.DONE"},
		result: &backend.RawResult{
			PubResults: []backend.PubResult{{
				Registers: map[string]backend.RegisterData{
					"c": {Counts: map[string]float64{"00": 300, "11": 212}},
				},
			}},
		},
	}
	svc, _ := newTestExecutor(t, hw)

	job, err := svc.Submit(context.Background(), &model.ExecuteRequest{
		CircuitFile:     bellCircuit,
		Shots:           512,
		BackendType:     model.BackendTypeHardware,
		BackendProvider: model.ProviderIBM,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if job.Status != model.JobStatusCompleted {
		t.Fatalf("expected completed, got %s (error: %v)", job.Status, job.Error)
	}
	if job.ProviderJobID != "remote-123" {
		t.Errorf("provider job id not recorded: %q", job.ProviderJobID)
	}
	if job.ProviderStatus != "JobStatus.DONE" {
		t.Errorf("expected verbatim provider status, got %q", job.ProviderStatus)
	}

	result, err := svc.JobResult(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("JobResult failed: %v", err)
	}
	if result.Counts["00"] != 300 || result.Counts["11"] != 212 {
		t.Errorf("unexpected counts: %v", result.Counts)
	}
	if result.Metadata["register"] != "c" {
		t.Errorf("expected register metadata, got %v", result.Metadata["register"])
	}
}

func TestHardwareSubmitErrorVerbatim(t *testing.T) {
	hw := &fakeHardware{submitErr: errors.New("IBM API error (status 401): invalid token")}
	svc, _ := newTestExecutor(t, hw)

	job, err := svc.Submit(context.Background(), &model.ExecuteRequest{
		CircuitFile:     bellCircuit,
		Shots:           512,
		BackendType:     model.BackendTypeHardware,
		BackendProvider: model.ProviderIBM,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if job.Status != model.JobStatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if job.Error == nil || *job.Error != "IBM API error (status 401): invalid token" {
		t.Errorf("adapter error was not preserved verbatim: %v", job.Error)
	}
}

func TestHardwareProviderFailureStatus(t *testing.T) {
	hw := &fakeHardware{statuses: []string{"QUEUED", "ERROR"}}
	svc, _ := newTestExecutor(t, hw)

	job, err := svc.Submit(context.Background(), &model.ExecuteRequest{
		CircuitFile:     bellCircuit,
		Shots:           512,
		BackendType:     model.BackendTypeHardware,
		BackendProvider: model.ProviderIBM,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if job.Status != model.JobStatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if job.Error == nil || !strings.Contains(*job.Error, "ended with status ERROR") {
		t.Errorf("unexpected error: %v", job.Error)
	}
}

func TestHardwarePollTimeout(t *testing.T) {
	hw := &fakeHardware{statuses: []string{"QUEUED"}}
	svc, _ := newTestExecutor(t, hw)
	svc.pollTimeout = 10 * time.Millisecond

	job, err := svc.Submit(context.Background(), &model.ExecuteRequest{
		CircuitFile:     bellCircuit,
		Shots:           512,
		BackendType:     model.BackendTypeHardware,
		BackendProvider: model.ProviderIBM,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if job.Status != model.JobStatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if job.Error == nil || !strings.Contains(*job.Error, `last status "QUEUED"`) {
		t.Errorf("timeout error should carry last provider status: %v", job.Error)
	}
}

func TestHardwareNoWait(t *testing.T) {
	hw := &fakeHardware{statuses: []string{"QUEUED"}}
	svc, _ := newTestExecutor(t, hw)

	job, err := svc.Submit(context.Background(), &model.ExecuteRequest{
		CircuitFile:     bellCircuit,
		Shots:           512,
		BackendType:     model.BackendTypeHardware,
		BackendProvider: model.ProviderIBM,
		Parameters:      map[string]any{"wait_for_results": false},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if job.Status != model.JobStatusCompleted {
		t.Fatalf("expected completed, got %s (error: %v)", job.Status, job.Error)
	}
	if job.ProviderJobID != "remote-123" {
		t.Errorf("provider job id not recorded: %q", job.ProviderJobID)
	}

	result, err := svc.JobResult(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("JobResult failed: %v", err)
	}
	if result.Counts["pending"] != 512 {
		t.Errorf("expected pending placeholder counts, got %v", result.Counts)
	}
	if result.Metadata["result_type"] != "pending" {
		t.Errorf("expected pending result type, got %v", result.Metadata["result_type"])
	}
	if result.Metadata["status"] != "QUEUED" {
		t.Errorf("placeholder should carry the provider-side QUEUED status, got %v", result.Metadata["status"])
	}
}

func TestCancelQueuedJob(t *testing.T) {
	svc, _ := newTestExecutor(t, nil)
	svc.spawner = fullSpawner{}

	// Place a job directly in the registry so it stays queued.
	job := &model.Job{
		ID:          "queued-1",
		BackendType: model.BackendTypeSimulator,
		Provider:    model.ProviderQiskit,
		Shots:       100,
		Circuit:     identityCircuit,
	}
	svc.Registry().Create(job)

	resp, err := svc.Cancel("queued-1")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if !resp.Success || resp.Status != model.JobStatusCancelled {
		t.Errorf("unexpected cancel response: %+v", resp)
	}

	// A late runner observes the terminal status and does nothing.
	svc.runJob(context.Background(), "queued-1")
	final, _ := svc.Registry().Get("queued-1")
	if final.Status != model.JobStatusCancelled {
		t.Errorf("late runner overwrote cancellation: %s", final.Status)
	}

	if _, err := svc.Cancel("queued-1"); !errors.Is(err, registry.ErrTerminal) {
		t.Errorf("second cancel: expected ErrTerminal, got %v", err)
	}
}

func TestJobResultNotReady(t *testing.T) {
	svc, _ := newTestExecutor(t, nil)
	svc.Registry().Create(&model.Job{ID: "queued-1"})

	if _, err := svc.JobResult(context.Background(), "queued-1"); !errors.Is(err, ErrResultNotReady) {
		t.Errorf("expected ErrResultNotReady, got %v", err)
	}
	if _, err := svc.JobResult(context.Background(), "missing"); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestProviders(t *testing.T) {
	svc, _ := newTestExecutor(t, &fakeHardware{})
	svc.catalog.Disable(model.ProviderCirq)

	resp := svc.Providers()
	if len(resp.Simulators) != 3 || len(resp.Hardware) != 3 {
		t.Fatalf("expected 3+3 providers, got %d+%d", len(resp.Simulators), len(resp.Hardware))
	}
	for _, p := range resp.Simulators {
		switch p.Name {
		case model.ProviderCirq:
			if p.Available {
				t.Error("disabled provider reported available")
			}
		case model.ProviderQiskit, model.ProviderBraket:
			if !p.Available {
				t.Errorf("provider %s should be available", p.Name)
			}
		}
	}
	ibmSeen := false
	for _, p := range resp.Hardware {
		if p.Name == model.ProviderIBM {
			ibmSeen = true
			if !p.Available {
				t.Error("registered hardware provider should be available")
			}
		} else if p.Available {
			t.Errorf("unregistered hardware provider %s reported available", p.Name)
		}
	}
	if !ibmSeen {
		t.Error("ibm missing from hardware provider list")
	}
}
