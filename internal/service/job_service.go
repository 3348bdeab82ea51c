package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/event"
	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/metrics"
	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/model"
	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/repository"
)

// PullBatchLimit caps how many queued jobs one poll may carry off.
const PullBatchLimit = 3

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrAgentOffline      = errors.New("agent offline")
	ErrAgentMismatch     = errors.New("job belongs to a different agent")
	ErrDeviceNotFound    = errors.New("device not found")
	ErrMissingDeviceID   = errors.New("device id required")
	ErrMissingArtifactID = errors.New("artifact id required")
)

type ReportRequest struct {
	JobID    string
	AgentID  string
	Status   *string
	Progress *int
	Message  *string
}

type JobService struct {
	jobRepo    repository.JobRepository
	agentRepo  repository.AgentRepository
	deviceRepo repository.DeviceRepository
	bus        *event.Bus
	logger     *zap.Logger
}

func NewJobService(
	jobRepo repository.JobRepository,
	agentRepo repository.AgentRepository,
	deviceRepo repository.DeviceRepository,
	bus *event.Bus,
	logger *zap.Logger,
) *JobService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &JobService{
		jobRepo:    jobRepo,
		agentRepo:  agentRepo,
		deviceRepo: deviceRepo,
		bus:        bus,
		logger:     logger,
	}
}

// Enqueue creates a firmware-update job and appends it to the agent's queue.
// An offline agent cannot receive new work: the policy blocks creation, not
// just dispatch.
func (s *JobService) Enqueue(ctx context.Context, agentID, deviceID, artifactID string) (*model.Job, error) {
	agent, err := s.findAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, ErrMissingDeviceID
	}
	artifactID = strings.TrimSpace(artifactID)
	if artifactID == "" {
		return nil, ErrMissingArtifactID
	}

	now := time.Now().UTC()
	if !Online(agent.LastSeenAt, now) {
		return nil, ErrAgentOffline
	}

	if _, err := s.deviceRepo.FindByID(ctx, agent.ID, deviceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("find device: %w", err)
	}

	job := &model.Job{
		ID:        uuid.NewString(),
		Type:      model.JobTypeFirmwareUpdate,
		AgentID:   agent.ID,
		DeviceID:  deviceID,
		Payload:   map[string]any{"artifact_id": artifactID},
		Status:    model.JobStatusQueued,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	if err := s.jobRepo.Enqueue(ctx, agent.ID, job.ID); err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	s.logger.Info("job queued",
		zap.String("job_id", job.ID),
		zap.String("agent_id", agent.ID),
		zap.String("device_id", deviceID),
	)
	s.bus.Publish(event.EventJobQueued, event.JobPayload{
		JobID:     job.ID,
		AgentID:   agent.ID,
		DeviceID:  deviceID,
		Status:    job.Status,
		Timestamp: now,
	})

	return job, nil
}

// PullNext destructively pops up to limit job ids from the head of the
// agent's queue, in enqueue order, and returns their reduced descriptors.
// Popped jobs are never requeued; there is no lease or lock with timeout.
// A poll counts as liveness.
func (s *JobService) PullNext(ctx context.Context, agentID string, limit int) ([]*model.JobDescriptor, error) {
	agent, err := s.findAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > PullBatchLimit {
		limit = PullBatchLimit
	}

	now := time.Now().UTC()
	if err := s.agentRepo.Touch(ctx, agent.ID, now); err != nil {
		return nil, fmt.Errorf("touch agent: %w", err)
	}

	jobIDs, err := s.jobRepo.DequeueN(ctx, agent.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("dequeue jobs: %w", err)
	}

	descriptors := make([]*model.JobDescriptor, 0, len(jobIDs))
	for _, jobID := range jobIDs {
		job, err := s.jobRepo.FindByID(ctx, jobID)
		if err != nil {
			s.logger.Warn("queued job id without ledger record",
				zap.String("job_id", jobID),
				zap.String("agent_id", agent.ID),
			)
			continue
		}
		descriptors = append(descriptors, job.Descriptor())
	}

	metrics.AddJobsDispatched(len(descriptors))
	return descriptors, nil
}

// Report applies a partial update to the ledger: whichever of status,
// progress, and message were supplied, independent of each other. Status
// transitions are deliberately not validated; a flaky agent may re-assert or
// even revert a status. The only hard rule is the timestamp latch: StartedAt
// is set the first time status becomes running, FinishedAt the first time it
// becomes terminal, and neither is ever overwritten.
func (s *JobService) Report(ctx context.Context, req ReportRequest) (*model.Job, error) {
	startedAt := time.Now()

	job, err := s.jobRepo.FindByID(ctx, strings.TrimSpace(req.JobID))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find job: %w", err)
	}

	reporterID := strings.TrimSpace(req.AgentID)
	if reporterID != "" && reporterID != job.AgentID {
		return nil, ErrAgentMismatch
	}

	now := time.Now().UTC()
	finishedBefore := job.FinishedAt != nil

	if req.Status != nil {
		status := strings.TrimSpace(*req.Status)
		job.Status = status
		if status == model.JobStatusRunning && job.StartedAt == nil {
			started := now
			job.StartedAt = &started
		}
		if model.IsTerminalJobStatus(status) && job.FinishedAt == nil {
			finished := now
			job.FinishedAt = &finished
		}
		metrics.IncJobReport(status)
	} else {
		metrics.IncJobReport("none")
	}
	if req.Progress != nil {
		job.Progress = clampProgress(*req.Progress)
	}
	if req.Message != nil {
		job.Message = strings.TrimSpace(*req.Message)
	}
	job.UpdatedAt = now

	if err := s.jobRepo.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}

	if reporterID != "" {
		// Best effort: the job was validated against its owning agent, so a
		// miss here only means the registry lost the record mid-flight.
		if err := s.agentRepo.Touch(ctx, reporterID, now); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("touch agent: %w", err)
		}
	}

	if !finishedBefore && job.FinishedAt != nil {
		s.logger.Info("job finished",
			zap.String("job_id", job.ID),
			zap.String("agent_id", job.AgentID),
			zap.String("status", job.Status),
			zap.Int("progress", job.Progress),
		)
		s.bus.Publish(event.EventJobFinished, event.JobPayload{
			JobID:     job.ID,
			AgentID:   job.AgentID,
			DeviceID:  job.DeviceID,
			Status:    job.Status,
			Timestamp: now,
		})
	}

	metrics.ObserveJobReportDuration(time.Since(startedAt))
	return job, nil
}

// Get returns the full ledger record.
func (s *JobService) Get(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := s.jobRepo.FindByID(ctx, strings.TrimSpace(jobID))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find job: %w", err)
	}
	return job, nil
}

func (s *JobService) findAgent(ctx context.Context, agentID string) (*model.Agent, error) {
	agent, err := s.agentRepo.FindByID(ctx, strings.TrimSpace(agentID))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find agent: %w", err)
	}
	return agent, nil
}

func clampProgress(progress int) int {
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}
