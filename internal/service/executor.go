package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/qdispatch/api/internal/backend"
	"github.com/qdispatch/api/internal/client"
	"github.com/qdispatch/api/internal/model"
	"github.com/qdispatch/api/internal/qasm"
	"github.com/qdispatch/api/internal/registry"
)

// ErrResultNotReady is returned when a result is requested for a job that has
// not completed.
var ErrResultNotReady = errors.New("job result not ready")

// ValidationError is a request rejection from the admission ladder. No job is
// created when one is returned.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is an admission rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Notifier receives job lifecycle events for push delivery. The hub implements
// it; a nil notifier disables push.
type Notifier interface {
	BroadcastStatus(jobID string, status model.JobStatus, detail string)
	BroadcastResult(jobID string, result interface{})
	BroadcastError(jobID string, code, message string)
}

// Spawner admits tasks for background execution.
type Spawner interface {
	Spawn(task func(ctx context.Context)) error
}

// ExecutorService is the dispatch engine: it validates execution requests,
// persists circuit sources, tracks jobs in the registry and runs them either
// inline (sync) or on the worker pool (async). Both modes share one runner so
// the lifecycle is identical.
type ExecutorService struct {
	registry *registry.Registry
	catalog  *backend.Catalog
	store    client.StorageClient
	notifier Notifier
	spawner  Spawner

	pollInterval time.Duration
	pollTimeout  time.Duration
}

// NewExecutorService creates a new dispatch engine
func NewExecutorService(reg *registry.Registry, catalog *backend.Catalog, store client.StorageClient, notifier Notifier, spawner Spawner, pollInterval, pollTimeout time.Duration) *ExecutorService {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	if pollTimeout <= 0 {
		pollTimeout = time.Hour
	}
	return &ExecutorService{
		registry:     reg,
		catalog:      catalog,
		store:        store,
		notifier:     notifier,
		spawner:      spawner,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
	}
}

// Registry exposes the job table for read paths.
func (s *ExecutorService) Registry() *registry.Registry {
	return s.registry
}

// Submit validates a request, persists the circuit, registers the job and
// dispatches it. In sync mode the returned job is terminal; in async mode it
// is queued. Validation failures create no job.
func (s *ExecutorService) Submit(ctx context.Context, req *model.ExecuteRequest) (*model.Job, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	jobID := uuid.New().String()
	circuitKey := fmt.Sprintf("circuits/%s.qasm", jobID)
	if err := s.store.Put(ctx, circuitKey, []byte(req.CircuitFile)); err != nil {
		return nil, fmt.Errorf("failed to persist circuit: %w", err)
	}

	job := &model.Job{
		ID:          jobID,
		BackendType: req.BackendType,
		Provider:    req.BackendProvider,
		DeviceID:    req.BackendName,
		Shots:       req.Shots,
		Parameters:  req.Parameters,
		CircuitKey:  circuitKey,
		Circuit:     req.CircuitFile,
	}
	s.registry.Create(job)

	if req.AsyncMode {
		if err := s.spawner.Spawn(func(ctx context.Context) {
			s.runJob(ctx, jobID)
		}); err != nil {
			_ = s.registry.Fail(jobID, "execution queue full")
			return nil, fmt.Errorf("failed to dispatch job: %w", err)
		}
		return s.registry.Get(jobID)
	}

	s.runJob(ctx, jobID)
	return s.registry.Get(jobID)
}

// validate is the admission ladder. Checks run in a fixed order so the caller
// always sees the first applicable rejection.
func (s *ExecutorService) validate(req *model.ExecuteRequest) error {
	if strings.TrimSpace(req.CircuitFile) == "" {
		return validationf("circuit file is empty")
	}
	if req.Shots < 0 {
		return validationf("shots must be a positive integer, got %d", req.Shots)
	}
	if req.BackendType != model.BackendTypeSimulator && req.BackendType != model.BackendTypeHardware {
		return validationf("invalid backend type %q", req.BackendType)
	}
	if !model.ValidProvider(req.BackendType, req.BackendProvider) {
		return validationf("invalid %s provider %q, valid providers: %s",
			req.BackendType, req.BackendProvider, strings.Join(model.ProvidersFor(req.BackendType), ", "))
	}
	if req.Shots == 0 {
		// shots=0 selects probability mode, which only some simulators offer.
		sim, ok := s.catalog.Simulator(req.BackendProvider)
		if req.BackendType != model.BackendTypeSimulator || !ok || !sim.SupportsProbabilities() {
			return validationf("shots must be a positive integer, got 0")
		}
	}
	if !s.catalog.Available(req.BackendType, req.BackendProvider) {
		return validationf("provider %q is not available", req.BackendProvider)
	}
	return nil
}

// runJob is the single execution path shared by sync and async dispatch:
// transition to running, route to the adapter, normalize, persist, commit the
// terminal status.
func (s *ExecutorService) runJob(ctx context.Context, jobID string) {
	job, err := s.registry.Get(jobID)
	if err != nil {
		log.Printf("executor: job %s vanished before execution: %v", jobID, err)
		return
	}
	if job.Status.Terminal() {
		// Cancelled while queued.
		return
	}

	if err := s.registry.MarkRunning(jobID); err != nil {
		log.Printf("executor: could not start job %s: %v", jobID, err)
		return
	}
	s.notifyStatus(jobID, model.JobStatusRunning, "")

	start := time.Now()
	var raw *backend.RawResult
	if job.BackendType == model.BackendTypeHardware {
		raw, err = s.runHardware(ctx, job)
	} else {
		raw, err = s.runSimulator(ctx, job)
	}
	if err != nil {
		s.failJob(jobID, err.Error())
		return
	}

	counts, metadata := backend.Normalize(raw, registerHints(job.Circuit))
	result := &model.ExecutionResult{
		Counts:        counts,
		Metadata:      metadata,
		ExecutionTime: time.Since(start).Seconds(),
		Success:       true,
	}

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		s.failJob(jobID, fmt.Sprintf("failed to encode result: %v", err))
		return
	}
	resultKey := fmt.Sprintf("results/%s.json", jobID)
	if err := s.store.Put(ctx, resultKey, payload); err != nil {
		s.failJob(jobID, fmt.Sprintf("failed to persist result: %v", err))
		return
	}

	if err := s.registry.Complete(jobID, payload); err != nil {
		log.Printf("executor: could not complete job %s: %v", jobID, err)
		return
	}
	log.Printf("executor: job %s completed in %.3fs", jobID, result.ExecutionTime)
	if s.notifier != nil {
		s.notifier.BroadcastStatus(jobID, model.JobStatusCompleted, "")
		s.notifier.BroadcastResult(jobID, result)
	}
}

func (s *ExecutorService) runSimulator(ctx context.Context, job *model.Job) (*backend.RawResult, error) {
	sim, ok := s.catalog.Simulator(job.Provider)
	if !ok {
		return nil, fmt.Errorf("no simulator adapter for provider %q", job.Provider)
	}
	return sim.Execute(ctx, job.Circuit, job.Shots, job.Parameters)
}

// runHardware is the two-phase remote path: submit, record the provider's job
// id, then poll the provider's lifecycle label until a terminal status or the
// timeout. When the caller opts out of waiting, a pending placeholder result
// is returned immediately and the provider id remains on the job for direct
// tracking.
func (s *ExecutorService) runHardware(ctx context.Context, job *model.Job) (*backend.RawResult, error) {
	hw, ok := s.catalog.Hardware(job.Provider)
	if !ok {
		return nil, fmt.Errorf("no hardware adapter for provider %q", job.Provider)
	}

	providerJobID, err := hw.Submit(ctx, job.Circuit, job.Shots, job.DeviceID, job.Parameters)
	if err != nil {
		return nil, err
	}
	if err := s.registry.SetProviderJob(job.ID, providerJobID); err != nil {
		return nil, err
	}
	log.Printf("executor: job %s submitted to %s as %s", job.ID, job.Provider, providerJobID)

	if !waitForResults(job.Parameters) {
		// The provider-side job is still queued; the placeholder marks that.
		return &backend.RawResult{
			Counts: map[string]float64{"pending": float64(job.Shots)},
			Metadata: map[string]any{
				"platform":        job.Provider,
				"provider_job_id": providerJobID,
				"status":          "QUEUED",
				"result_type":     "pending",
			},
		}, nil
	}

	deadline := time.Now().Add(s.pollTimeout)
	lastStatus := ""
	for {
		status, err := hw.Poll(ctx, providerJobID)
		if err != nil {
			// Transient API failures shouldn't kill a job the provider is
			// still running.
			log.Printf("executor: poll failed for job %s (%s): %v", job.ID, providerJobID, err)
		} else {
			lastStatus = status
			_ = s.registry.SetProviderStatus(job.ID, status)

			switch classifyProviderStatus(status) {
			case providerStatusSucceeded:
				return hw.FetchResult(ctx, providerJobID)
			case providerStatusFailed:
				return nil, fmt.Errorf("provider job %s ended with status %s", providerJobID, status)
			}
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out waiting for provider job %s, last status %q", providerJobID, lastStatus)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
}

type providerStatusClass int

const (
	providerStatusPending providerStatusClass = iota
	providerStatusSucceeded
	providerStatusFailed
)

// classifyProviderStatus reduces a provider's own lifecycle label to
// pending/succeeded/failed. Labels arrive in several spellings, some with an
// enum-repr prefix like "JobStatus.DONE"; the label itself stays on the job
// verbatim.
func classifyProviderStatus(status string) providerStatusClass {
	label := strings.ToUpper(status)
	if i := strings.LastIndex(label, "."); i >= 0 {
		label = label[i+1:]
	}
	switch label {
	case "DONE", "COMPLETED", "SUCCESS":
		return providerStatusSucceeded
	case "ERROR", "FAILED", "FAILURE", "CANCELLED", "CANCELED":
		return providerStatusFailed
	}
	return providerStatusPending
}

// waitForResults reads the opt-out flag from the parameter bag; waiting is the
// default.
func waitForResults(params map[string]any) bool {
	if params == nil {
		return true
	}
	if v, ok := params["wait_for_results"].(bool); ok {
		return v
	}
	return true
}

// registerHints extracts the circuit's declared classical register names for
// the normalizer. A parse failure just means no hints.
func registerHints(source string) []string {
	circuit, err := qasm.Parse(source)
	if err != nil {
		return nil
	}
	return circuit.RegisterNames()
}

func (s *ExecutorService) failJob(jobID, message string) {
	if err := s.registry.Fail(jobID, message); err != nil {
		log.Printf("executor: could not fail job %s: %v", jobID, err)
		return
	}
	log.Printf("executor: job %s failed: %s", jobID, message)
	if s.notifier != nil {
		s.notifier.BroadcastStatus(jobID, model.JobStatusFailed, message)
		s.notifier.BroadcastError(jobID, "EXECUTION_FAILED", message)
	}
}

func (s *ExecutorService) notifyStatus(jobID string, status model.JobStatus, detail string) {
	if s.notifier != nil {
		s.notifier.BroadcastStatus(jobID, status, detail)
	}
}

// JobStatus builds the status-inquiry view of a job.
func (s *ExecutorService) JobStatus(jobID string) (*model.JobStatusResponse, error) {
	job, err := s.registry.Get(jobID)
	if err != nil {
		return nil, err
	}
	return &model.JobStatusResponse{
		JobID:          job.ID,
		Status:         job.Status,
		BackendType:    job.BackendType,
		Provider:       job.Provider,
		DeviceID:       job.DeviceID,
		Shots:          job.Shots,
		ProviderJobID:  job.ProviderJobID,
		ProviderStatus: job.ProviderStatus,
		Error:          job.Error,
		CreatedAt:      job.CreatedAt,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
	}, nil
}

// JobResult returns the persisted result document for a completed job. The
// registry copy is served when present, with the store as fallback.
func (s *ExecutorService) JobResult(ctx context.Context, jobID string) (*model.ExecutionResult, error) {
	job, err := s.registry.Get(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusCompleted {
		return nil, ErrResultNotReady
	}

	payload := job.Result
	if len(payload) == 0 {
		payload, err = s.store.Get(ctx, fmt.Sprintf("results/%s.json", jobID))
		if err != nil {
			return nil, err
		}
	}

	var result model.ExecutionResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to decode stored result: %w", err)
	}
	return &result, nil
}

// Cancel cancels a queued job.
func (s *ExecutorService) Cancel(jobID string) (*model.CancelResponse, error) {
	if err := s.registry.Cancel(jobID); err != nil {
		return nil, err
	}
	job, err := s.registry.Get(jobID)
	if err != nil {
		return nil, err
	}
	s.notifyStatus(jobID, job.Status, "cancelled by request")
	return &model.CancelResponse{
		Success: true,
		JobID:   job.ID,
		Status:  job.Status,
	}, nil
}

// Providers lists the closed provider sets with current availability.
func (s *ExecutorService) Providers() *model.ProvidersResponse {
	return &model.ProvidersResponse{
		Simulators: s.catalog.Providers(model.BackendTypeSimulator),
		Hardware:   s.catalog.Providers(model.BackendTypeHardware),
	}
}
