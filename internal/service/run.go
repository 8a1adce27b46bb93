package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/grantforge/backend/config"
	"github.com/grantforge/backend/internal/eventbus"
	"github.com/grantforge/backend/internal/model"
	"github.com/grantforge/backend/internal/pkg/llm"
	"github.com/grantforge/backend/internal/repository"
	"github.com/grantforge/backend/internal/service/agency"
	"github.com/grantforge/backend/internal/service/assembly"
	"github.com/grantforge/backend/internal/service/costtracker"
	"github.com/grantforge/backend/internal/service/drafter"
	"github.com/grantforge/backend/internal/service/orchestrator"
	"github.com/grantforge/backend/internal/service/statemachine"
	"github.com/grantforge/backend/internal/service/validator"
	"github.com/grantforge/backend/internal/service/workflow"
	"github.com/grantforge/backend/internal/utils"
	"k8s.io/klog/v2"
)

// Refinement loops multiply model calls per section; the cap keeps one
// request from burning an unbounded budget.
const maxIterations = 5

// ErrInvalidRequest marks run-creation input the caller can fix.
var ErrInvalidRequest = errors.New("invalid request")

// CreateRunRequest is the payload for starting a generation run.
// Iterations defaults from config when omitted; Company overrides the
// configured profile file for this run only.
type CreateRunRequest struct {
	Agency     string                `json:"agency" binding:"required"`
	Iterations *int                  `json:"iterations"`
	Company    *model.CompanyContext `json:"company"`
}

// RunService owns the generation run lifecycle: creation, queueing,
// execution, cancellation, and the stored proposal that results.
type RunService struct {
	cfg          *config.Config
	runRepo      repository.RunRepository
	proposalRepo repository.ProposalRepository
	usageRepo    repository.UsageRepository
	agencies     *agency.Service
	companies    *CompanyService
	completer    llm.Completer
	bus          *eventbus.RunEventBus
	sm           *statemachine.RunStateMachine
	orchestrator *orchestrator.Orchestrator
}

func NewRunService(
	cfg *config.Config,
	runRepo repository.RunRepository,
	proposalRepo repository.ProposalRepository,
	usageRepo repository.UsageRepository,
	agencies *agency.Service,
	companies *CompanyService,
	completer llm.Completer,
	bus *eventbus.RunEventBus,
) *RunService {
	return &RunService{
		cfg:          cfg,
		runRepo:      runRepo,
		proposalRepo: proposalRepo,
		usageRepo:    usageRepo,
		agencies:     agencies,
		companies:    companies,
		completer:    completer,
		bus:          bus,
		sm:           statemachine.NewRunStateMachine(),
	}
}

// SetOrchestrator breaks the construction cycle: the orchestrator needs
// this service as its executor, and this service needs the orchestrator
// for enqueue and cancel.
func (s *RunService) SetOrchestrator(o *orchestrator.Orchestrator) {
	s.orchestrator = o
}

// Create validates the request, persists a pending run, and hands it to
// the orchestrator. Agency problems surface here, before anything is
// queued.
func (s *RunService) Create(ctx context.Context, req *CreateRunRequest) (*model.GenerationRun, error) {
	reqs, err := s.agencies.Load(req.Agency)
	if err != nil {
		return nil, err
	}

	iterations := s.cfg.Drafting.DefaultIterations
	if req.Iterations != nil {
		iterations = *req.Iterations
	}
	if iterations < 0 || iterations > maxIterations {
		return nil, fmt.Errorf("%w: iterations must be between 0 and %d", ErrInvalidRequest, maxIterations)
	}

	var companyName, companyJSON string
	if req.Company != nil {
		if err := ValidateCompany(req.Company); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		raw, err := json.Marshal(req.Company)
		if err != nil {
			return nil, fmt.Errorf("encode company context: %w", err)
		}
		companyName = req.Company.CompanyName
		companyJSON = string(raw)
	} else {
		company, err := s.companies.Load()
		if err != nil {
			return nil, err
		}
		companyName = company.CompanyName
	}

	run := &model.GenerationRun{
		RunID:         uuid.NewString(),
		Agency:        string(reqs.Code),
		CompanyName:   companyName,
		GrantType:     fmt.Sprintf("%s %s", reqs.Agency, reqs.Program),
		Status:        string(statemachine.RunStatusPending),
		Iterations:    iterations,
		TotalSections: len(reqs.RequiredSections()),
		CompanyJSON:   companyJSON,
	}
	if err := s.runRepo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	klog.V(6).Infof("run created: runID=%s, agency=%s, iterations=%d", run.RunID, run.Agency, run.Iterations)

	if err := s.enqueue(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// enqueue moves a run from pending into the orchestrator queue.
// On submission failure the status change rolls back, leaving the row
// pending as a record of the rejected request.
func (s *RunService) enqueue(ctx context.Context, run *model.GenerationRun) error {
	oldStatus := statemachine.RunStatus(run.Status)
	newStatus := statemachine.RunStatusQueued

	// Already queued happens on startup requeue; refresh the row only.
	if oldStatus == newStatus {
		klog.V(6).Infof("run already queued, resubmitting: runID=%s", run.RunID)
		if err := s.runRepo.Save(ctx, run); err != nil {
			return fmt.Errorf("refresh run: %w", err)
		}
	} else {
		if err := s.sm.Transition(oldStatus, newStatus, run.RunID); err != nil {
			return fmt.Errorf("run state transition: %w", err)
		}
		run.Status = string(newStatus)
		if err := s.runRepo.Save(ctx, run); err != nil {
			return fmt.Errorf("update run status: %w", err)
		}
	}

	if err := s.orchestrator.EnqueueRun(run.ID); err != nil {
		if oldStatus != newStatus {
			run.Status = string(oldStatus)
			_ = s.runRepo.Save(ctx, run)
		}
		return fmt.Errorf("enqueue run: %w", err)
	}
	return nil
}

// RequeueInterrupted resubmits runs that were waiting when the process
// last stopped. The queue does not survive a restart; the rows do.
func (s *RunService) RequeueInterrupted(ctx context.Context) (int, error) {
	requeued := 0
	for _, status := range []statemachine.RunStatus{statemachine.RunStatusPending, statemachine.RunStatusQueued} {
		runs, err := s.runRepo.GetByStatus(ctx, string(status))
		if err != nil {
			return requeued, fmt.Errorf("load %s runs: %w", status, err)
		}
		for i := range runs {
			run := &runs[i]
			if err := s.enqueue(ctx, run); err != nil {
				klog.Errorf("requeue failed: runID=%s, error=%v", run.RunID, err)
				continue
			}
			requeued++
		}
	}
	return requeued, nil
}

// Get returns a run by its public UUID.
func (s *RunService) Get(ctx context.Context, runID string) (*model.GenerationRun, error) {
	return s.runRepo.GetByRunID(ctx, runID)
}

// List returns the most recent runs, newest first.
func (s *RunService) List(ctx context.Context, limit int) ([]model.GenerationRun, error) {
	return s.runRepo.List(ctx, limit)
}

// Cancel stops a run wherever it is in the lifecycle. A running run gets
// its context canceled; a waiting run is marked so the worker skips it.
// Canceling an already-canceled run is a no-op.
func (s *RunService) Cancel(ctx context.Context, runID string) error {
	run, err := s.runRepo.GetByRunID(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}

	oldStatus := statemachine.RunStatus(run.Status)
	newStatus := statemachine.RunStatusCanceled
	if oldStatus == newStatus {
		return nil
	}

	if oldStatus == statemachine.RunStatusRunning {
		if s.orchestrator != nil && s.orchestrator.CancelRun(run.ID) {
			klog.V(6).Infof("cancel signaled to executing worker: runID=%s", run.RunID)
		} else {
			klog.Warningf("cancel requested for running run not found in orchestrator: runID=%s", run.RunID)
		}
	}

	if err := s.sm.Transition(oldStatus, newStatus, run.RunID); err != nil {
		return fmt.Errorf("run state transition: %w", err)
	}

	now := time.Now()
	run.Status = string(newStatus)
	run.CompletedAt = &now
	run.ErrorMsg = "canceled by user"
	if err := s.runRepo.Save(ctx, run); err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	klog.V(6).Infof("run canceled: runID=%s, was=%s", run.RunID, oldStatus)

	s.publish(ctx, eventbus.RunEvent{
		Type:    eventbus.RunEventError,
		RunID:   run.RunID,
		Message: "generation canceled",
	})
	return nil
}

// ExecuteRun is the orchestrator worker's entry point for one queued
// run. Status bookkeeping lives here; generate holds the pipeline.
func (s *RunService) ExecuteRun(ctx context.Context, id uint) error {
	run, err := s.runRepo.Get(ctx, id)
	if err != nil {
		klog.Errorf("load run failed: id=%d, error=%v", id, err)
		return err
	}

	// Canceled while waiting in the queue.
	if statemachine.RunStatus(run.Status) == statemachine.RunStatusCanceled {
		klog.V(6).Infof("skipping canceled run: runID=%s", run.RunID)
		return nil
	}

	if err := s.sm.Transition(statemachine.RunStatus(run.Status), statemachine.RunStatusRunning, run.RunID); err != nil {
		return fmt.Errorf("run state transition: %w", err)
	}
	now := time.Now()
	run.Status = string(statemachine.RunStatusRunning)
	run.StartedAt = &now
	run.ErrorMsg = ""
	if err := s.runRepo.Save(ctx, run); err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	klog.V(6).Infof("run started: runID=%s, agency=%s", run.RunID, run.Agency)

	if execErr := s.generate(ctx, run); execErr != nil {
		s.concludeFailed(run, execErr)
		return execErr
	}

	_ = s.succeedRun(run)
	return nil
}

// generate runs the drafting pipeline for one run and persists the
// assembled proposal. No status transitions happen here.
func (s *RunService) generate(ctx context.Context, run *model.GenerationRun) error {
	reqs, err := s.agencies.Load(run.Agency)
	if err != nil {
		return err
	}
	company, err := s.companyForRun(run)
	if err != nil {
		return err
	}

	s.publish(ctx, eventbus.RunEvent{
		Type:    eventbus.RunEventStatus,
		RunID:   run.RunID,
		Message: fmt.Sprintf("Starting %s proposal generation for %s", run.GrantType, company.CompanyName),
	})

	start := time.Now()
	tracker := costtracker.New(run.ID, s.usageRepo)
	sectionDrafter := drafter.New(s.completer, tracker, s.cfg.Drafting, company, reqs)
	controller := workflow.New(sectionDrafter, reqs, &workflow.Progress{
		Bus:   s.bus,
		RunID: run.RunID,
		Costs: tracker,
	})

	sections, err := controller.GenerateFullProposal(ctx, run.Iterations)
	if err != nil {
		return err
	}

	proposal := assembly.BuildProposal(company.CompanyName, reqs, sections)
	proposal.TotalCost = tracker.TotalCost()
	proposal.GenerationSeconds = time.Since(start).Seconds()

	s.publish(ctx, eventbus.RunEvent{
		Type:    eventbus.RunEventStatus,
		RunID:   run.RunID,
		Message: "Running quality checks...",
	})

	report := validator.New(reqs).Validate(proposal, company)
	report.ApplyTrims(proposal)
	klog.V(6).Infof("quality checks: runID=%s, passed=%d/%d, band=%s", run.RunID, report.ChecksPassed, report.ChecksRun, report.Band)
	klog.V(8).Infof("quality report: %s", utils.ToJSON(report))

	if err := s.persistProposal(ctx, run, proposal); err != nil {
		return fmt.Errorf("persist proposal: %w", err)
	}

	run.TotalWords = proposal.TotalWordCount
	run.TotalCost = proposal.TotalCost
	run.GenerationSeconds = proposal.GenerationSeconds
	klog.V(6).Info(tracker.Summary().TargetNote())

	s.publish(ctx, eventbus.RunEvent{
		Type:           eventbus.RunEventComplete,
		RunID:          run.RunID,
		TotalWords:     proposal.TotalWordCount,
		TotalCost:      fmt.Sprintf("$%.2f", proposal.TotalCost),
		GenerationTime: fmt.Sprintf("%.1fs", proposal.GenerationSeconds),
		OutputFile:     ExportFilename(run),
	})
	return nil
}

// companyForRun resolves the inline override stored on the run, falling
// back to the configured profile file.
func (s *RunService) companyForRun(run *model.GenerationRun) (*model.CompanyContext, error) {
	if run.CompanyJSON != "" {
		return DecodeCompanyOverride(run.CompanyJSON)
	}
	return s.companies.Load()
}

// persistProposal stores the assembled proposal with one row per filled
// slot, in document order.
func (s *RunService) persistProposal(ctx context.Context, run *model.GenerationRun, proposal *model.GrantProposal) error {
	record := &model.Proposal{
		RunID:             run.ID,
		CompanyName:       proposal.CompanyName,
		GrantType:         proposal.GrantType,
		TotalWordCount:    proposal.TotalWordCount,
		TotalCost:         proposal.TotalCost,
		GenerationSeconds: proposal.GenerationSeconds,
	}
	for i, slot := range model.SlotKeys {
		section := proposal.Section(slot)
		if section == nil || section.Content == model.PlaceholderContent {
			// Placeholder slots are rebuilt on read, not stored.
			continue
		}
		record.Sections = append(record.Sections, model.ProposalSection{
			Slot:            slot,
			Name:            section.Name,
			Content:         section.Content,
			WordCount:       section.WordCount,
			Iteration:       section.Iteration,
			Critique:        section.Critique,
			RefinementNotes: section.RefinementNotes,
			SortOrder:       i,
		})
	}
	return s.proposalRepo.Create(ctx, record)
}

// concludeFailed marks a run failed after its pipeline errored, unless a
// cancel closed it first. The worker's context dies on cancel, so the
// pipeline error may just be the cancellation surfacing.
func (s *RunService) concludeFailed(run *model.GenerationRun, execErr error) {
	ctx := context.Background()
	if fresh, err := s.runRepo.Get(ctx, run.ID); err == nil {
		if statemachine.RunStatus(fresh.Status) == statemachine.RunStatusCanceled {
			klog.V(6).Infof("run canceled during generation: runID=%s", run.RunID)
			return
		}
		// The fresh row carries the progress the subscriber recorded
		// while the pipeline ran; fail that, not the stale copy.
		run = fresh
	}

	msg := execErr.Error()
	if errors.Is(execErr, context.DeadlineExceeded) {
		msg = fmt.Sprintf("generation timed out: %v", execErr)
	}
	_ = s.failRun(ctx, run, msg)

	s.publish(ctx, eventbus.RunEvent{
		Type:    eventbus.RunEventError,
		RunID:   run.RunID,
		Message: msg,
	})
}

// succeedRun transitions running -> succeeded and stamps completion.
func (s *RunService) succeedRun(run *model.GenerationRun) error {
	ctx := context.Background()
	if err := s.sm.Transition(statemachine.RunStatus(run.Status), statemachine.RunStatusSucceeded, run.RunID); err != nil {
		klog.Errorf("run state transition failed: runID=%s, error=%v", run.RunID, err)
		return err
	}

	completedAt := time.Now()
	run.Status = string(statemachine.RunStatusSucceeded)
	run.CompletedAt = &completedAt
	run.Progress = 100
	run.CompletedSections = run.TotalSections
	if err := s.runRepo.Save(ctx, run); err != nil {
		klog.Errorf("update run status failed: runID=%s, error=%v", run.RunID, err)
		return err
	}

	if run.StartedAt != nil {
		klog.V(6).Infof("run succeeded: runID=%s, duration=%v, words=%d, cost=$%.2f",
			run.RunID, completedAt.Sub(*run.StartedAt), run.TotalWords, run.TotalCost)
	}
	return nil
}

// failRun transitions running -> failed and records the cause.
func (s *RunService) failRun(ctx context.Context, run *model.GenerationRun, errMsg string) error {
	klog.V(6).Infof("run failed: runID=%s, error=%s", run.RunID, errMsg)

	if err := s.sm.Transition(statemachine.RunStatus(run.Status), statemachine.RunStatusFailed, run.RunID); err != nil {
		klog.Errorf("run state transition failed: runID=%s, error=%v", run.RunID, err)
		return err
	}

	completedAt := time.Now()
	run.Status = string(statemachine.RunStatusFailed)
	run.CompletedAt = &completedAt
	run.ErrorMsg = errMsg
	if err := s.runRepo.Save(ctx, run); err != nil {
		klog.Errorf("update run status failed: runID=%s, error=%v", run.RunID, err)
		return err
	}
	return nil
}

// Proposal returns the stored proposal for a run, rebuilt into its
// assembled eight-slot form.
func (s *RunService) Proposal(ctx context.Context, runID string) (*model.GrantProposal, *model.GenerationRun, error) {
	run, err := s.runRepo.GetByRunID(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	record, err := s.proposalRepo.GetByRunID(ctx, run.ID)
	if err != nil {
		return nil, nil, err
	}
	return assembly.FromRecord(record), run, nil
}

// ValidateStored reruns the quality checks against the stored proposal.
// Useful after editing the company profile or to inspect a past run;
// trims are reported but not applied to the stored copy.
func (s *RunService) ValidateStored(ctx context.Context, runID string) (*validator.Report, error) {
	proposal, run, err := s.Proposal(ctx, runID)
	if err != nil {
		return nil, err
	}
	reqs, err := s.agencies.Load(run.Agency)
	if err != nil {
		return nil, err
	}
	company, err := s.companyForRun(run)
	if err != nil {
		// Bio checks need the roster; everything else still runs.
		klog.Warningf("company context unavailable for validation: runID=%s, error=%v", runID, err)
		company = nil
	}
	return validator.New(reqs).Validate(proposal, company), nil
}

// Usage returns the per-call cost ledger and its rollup for a run.
func (s *RunService) Usage(ctx context.Context, runID string) ([]model.UsageRecord, *costtracker.Summary, error) {
	run, err := s.runRepo.GetByRunID(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	records, err := s.usageRepo.ListByRun(ctx, run.ID)
	if err != nil {
		return nil, nil, err
	}
	return records, costtracker.Summarize(records), nil
}

// CleanupStuckRuns fails queued or running runs that have not progressed
// within timeout. Called at startup and on a timer; recovers runs
// orphaned by a crash or a dropped queue submission.
func (s *RunService) CleanupStuckRuns(ctx context.Context, timeout time.Duration) (int64, error) {
	affected, err := s.runRepo.CleanupStuckRuns(ctx, timeout)
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		klog.Warningf("marked %d stuck runs as failed", affected)
	}
	return affected, nil
}

// QueueStatus reports the orchestrator's queue and worker occupancy.
func (s *RunService) QueueStatus() *orchestrator.QueueStatus {
	if s.orchestrator == nil {
		return &orchestrator.QueueStatus{}
	}
	return s.orchestrator.GetQueueStatus()
}

func (s *RunService) publish(ctx context.Context, event eventbus.RunEvent) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, event.Type, event); err != nil {
		klog.V(6).Infof("event publish: type=%s, runID=%s, error=%v", event.Type, event.RunID, err)
	}
}
