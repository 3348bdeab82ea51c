package memory

import (
	"context"
	"sync"

	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/model"
	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/repository"
)

// jobRepository owns both the job ledger and the per-agent queues of pending
// job ids. A dispatched id leaves its queue immediately; the ledger record
// lives on for the process lifetime.
type jobRepository struct {
	mu     sync.Mutex
	jobs   map[string]*model.Job
	queues map[string][]string
}

func NewJobRepository() repository.JobRepository {
	return &jobRepository{
		jobs:   make(map[string]*model.Job),
		queues: make(map[string][]string),
	}
}

var _ repository.JobRepository = (*jobRepository)(nil)

func (r *jobRepository) Create(_ context.Context, job *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; ok {
		return repository.ErrDuplicate
	}
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *jobRepository) FindByID(_ context.Context, id string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneJob(job), nil
}

func (r *jobRepository) Update(_ context.Context, job *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; !ok {
		return repository.ErrNotFound
	}
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *jobRepository) Enqueue(_ context.Context, agentID, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.queues[agentID] = append(r.queues[agentID], jobID)
	return nil
}

func (r *jobRepository) DequeueN(_ context.Context, agentID string, n int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	queue := r.queues[agentID]
	if n > len(queue) {
		n = len(queue)
	}
	if n <= 0 {
		return nil, nil
	}

	popped := make([]string, n)
	copy(popped, queue[:n])
	r.queues[agentID] = queue[n:]
	return popped, nil
}

func (r *jobRepository) QueueLen(_ context.Context, agentID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queues[agentID]), nil
}

func (r *jobRepository) DropQueue(_ context.Context, agentID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := len(r.queues[agentID])
	delete(r.queues, agentID)
	return dropped, nil
}

func (r *jobRepository) CountByStatus(_ context.Context) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[string]int)
	for _, job := range r.jobs {
		counts[job.Status]++
	}
	return counts, nil
}

func cloneJob(job *model.Job) *model.Job {
	if job == nil {
		return nil
	}
	clone := *job
	clone.StartedAt = cloneTimePtr(job.StartedAt)
	clone.FinishedAt = cloneTimePtr(job.FinishedAt)
	clone.Payload = cloneMap(job.Payload)
	return &clone
}
