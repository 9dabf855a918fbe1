package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driven"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driving"
	"github.com/editnori/psych-intake-brief-sub001/internal/logger"
)

// Ensure BatchService implements the interface.
var _ driving.BatchRunner = (*BatchService)(nil)

// BatchService runs generation jobs over a shared pull queue with a fixed
// worker budget and per-target cancellation.
//
// Cancellation is target-scoped: registering a job for a target replaces
// (and cancels) any in-flight predecessor for the same target, and a
// cancelled job's result is discarded before it can reach the section
// store. Job failures are isolated; the batch report is assembled only
// after every job has reached a terminal state exactly once.
type BatchService struct {
	ranker       driving.EvidenceRanker
	generator    driving.SectionGenerator
	docStore     driven.DocumentStore
	sectionStore driven.SectionStore
	settings     domain.GenerationSettings

	mu       sync.Mutex
	inFlight map[string]*flightEntry
}

// flightEntry identifies one in-flight job so a finishing worker releases
// only its own registry slot, never a successor's.
type flightEntry struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewBatchService creates a new batch runner. The section store is
// optional: without it, accepted results are only reported, not persisted.
func NewBatchService(
	ranker driving.EvidenceRanker,
	generator driving.SectionGenerator,
	docStore driven.DocumentStore,
	sectionStore driven.SectionStore,
	settings domain.GenerationSettings,
) *BatchService {
	settings.Normalise()
	return &BatchService{
		ranker:       ranker,
		generator:    generator,
		docStore:     docStore,
		sectionStore: sectionStore,
		settings:     settings,
		inFlight:     make(map[string]*flightEntry),
	}
}

// RunAll runs the jobs with at most maxWorkers concurrent workers.
// Zero maxWorkers means min(3, len(jobs)).
func (s *BatchService) RunAll(ctx context.Context, jobs []domain.GenerationJob, maxWorkers int) *domain.BatchReport {
	logger.Section("Generation Batch")
	logger.Info("Jobs: %d", len(jobs))

	report := &domain.BatchReport{}
	if len(jobs) == 0 {
		return report
	}

	workers := maxWorkers
	if workers <= 0 {
		workers = s.settings.MaxWorkers
	}
	if workers <= 0 {
		workers = domain.DefaultMaxWorkers
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}
	logger.Debug("Workers: %d", workers)

	// The evidence index is read once per batch; it is read-only while
	// the batch runs.
	var index []domain.Chunk
	if s.docStore != nil {
		var err error
		index, err = s.docStore.ListChunks(ctx)
		if err != nil {
			logger.Warn("Evidence index load failed: %v", err)
		}
	}

	// Shared pull queue: idle workers take the next job, so a slow
	// section does not hold up the rest.
	queue := make(chan domain.GenerationJob)
	outcomes := make(chan domain.JobOutcome, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range queue {
				outcomes <- s.runJob(ctx, job, index)
			}
		}()
	}

	for _, job := range jobs {
		queue <- job
	}
	close(queue)
	wg.Wait()
	close(outcomes)

	cited := make(map[string]bool)
	for outcome := range outcomes {
		report.Outcomes = append(report.Outcomes, outcome)
		if outcome.Result != nil {
			for _, c := range outcome.Result.Citations {
				cited[c.SourceID] = true
			}
		}
	}

	report.UncitedSources = s.uncitedSources(ctx, cited)
	if u, ok := s.generator.(interface{ Usage() domain.Usage }); ok {
		report.Usage = u.Usage()
	}

	logger.Info("Batch complete: %d succeeded, %d failed", report.Succeeded(), report.Failed())
	return report
}

// Cancel discards any in-flight generation for the target.
func (s *BatchService) Cancel(targetID string) {
	s.mu.Lock()
	entry, ok := s.inFlight[targetID]
	if ok {
		delete(s.inFlight, targetID)
	}
	s.mu.Unlock()

	if ok {
		logger.Info("Cancelled in-flight generation for %s", targetID)
		entry.cancel()
	}
}

// runJob executes one job to its terminal state. Errors stay job-scoped.
func (s *BatchService) runJob(ctx context.Context, job domain.GenerationJob, index []domain.Chunk) domain.JobOutcome {
	jobCtx := s.register(ctx, job.TargetID)
	defer s.release(job.TargetID, jobCtx)

	evidence, pool := s.selectEvidence(jobCtx, job, index)

	result, err := s.generator.Generate(jobCtx, job.Section, evidence, driving.GenerateOptions{
		EvidenceLimit: s.settings.EvidenceLimit,
		EvidencePool:  pool,
	})

	if jobCtx.Err() != nil {
		// Superseded or cancelled mid-flight: the result, if any, is
		// discarded and never persisted.
		return domain.JobOutcome{
			TargetID: job.TargetID,
			Err:      fmt.Errorf("%s: %w", job.TargetID, domain.ErrJobCancelled),
		}
	}
	if err != nil {
		return domain.JobOutcome{TargetID: job.TargetID, Err: err}
	}

	if s.sectionStore != nil {
		if saveErr := s.sectionStore.SaveResult(jobCtx, job.TargetID, result); saveErr != nil {
			return domain.JobOutcome{
				TargetID: job.TargetID,
				Err:      fmt.Errorf("save %s: %w", job.TargetID, saveErr),
			}
		}
	}
	return domain.JobOutcome{TargetID: job.TargetID, Result: result}
}

// selectEvidence ranks the index for the job's query. The wider pool
// backs the generator's widened-evidence repair step.
func (s *BatchService) selectEvidence(ctx context.Context, job domain.GenerationJob, index []domain.Chunk) (evidence, pool []domain.Chunk) {
	if s.ranker == nil || len(index) == 0 {
		return nil, nil
	}

	opts := driving.RankOptions{
		Strategy:                s.settings.Strategy,
		IncludeUnmatchedSources: true,
		PrioritySourceIDs:       job.PrioritySourceIDs,
	}

	evidence = s.ranker.Rank(ctx, job.Query, index, s.settings.EvidenceLimit, opts)
	pool = s.ranker.Rank(ctx, job.Query, index, len(index), opts)
	return evidence, pool
}

// register creates the job's cancellable context and installs it in the
// per-target registry, cancelling any in-flight predecessor for the same
// target.
func (s *BatchService) register(ctx context.Context, targetID string) context.Context {
	jobCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	prev, had := s.inFlight[targetID]
	s.inFlight[targetID] = &flightEntry{ctx: jobCtx, cancel: cancel}
	s.mu.Unlock()

	if had {
		logger.Debug("Superseding in-flight generation for %s", targetID)
		prev.cancel()
	}
	return jobCtx
}

// release removes the job's registry entry if it still owns it. An entry
// replaced by a successor is left alone.
func (s *BatchService) release(targetID string, jobCtx context.Context) {
	s.mu.Lock()
	entry, ok := s.inFlight[targetID]
	if ok && entry.ctx == jobCtx {
		delete(s.inFlight, targetID)
	} else {
		entry = nil
	}
	s.mu.Unlock()

	if entry != nil {
		entry.cancel()
	}
}

// uncitedSources lists stored documents that contributed no accepted
// citation across the batch.
func (s *BatchService) uncitedSources(ctx context.Context, cited map[string]bool) []string {
	if s.docStore == nil {
		return nil
	}
	docs, err := s.docStore.ListDocuments(ctx)
	if err != nil {
		logger.Warn("Uncited-source audit skipped: %v", err)
		return nil
	}

	var out []string
	for _, d := range docs {
		if !cited[d.ID] {
			out = append(out, d.ID)
		}
	}
	return out
}
