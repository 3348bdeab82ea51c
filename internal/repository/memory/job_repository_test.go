package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/model"
	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/repository"
)

func newLedgerJob(id, agentID string) *model.Job {
	now := time.Now().UTC()
	return &model.Job{
		ID:        id,
		Type:      model.JobTypeFirmwareUpdate,
		AgentID:   agentID,
		DeviceID:  "dev-1",
		Status:    model.JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestJobRepository_DequeuePreservesFIFO(t *testing.T) {
	repo := NewJobRepository()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("job-%d", i)
		if err := repo.Create(ctx, newLedgerJob(id, "agent-1")); err != nil {
			t.Fatalf("create job %s: %v", id, err)
		}
		if err := repo.Enqueue(ctx, "agent-1", id); err != nil {
			t.Fatalf("enqueue job %s: %v", id, err)
		}
	}

	first, err := repo.DequeueN(ctx, "agent-1", 3)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(first))
	}
	for i, id := range first {
		if want := fmt.Sprintf("job-%d", i); id != want {
			t.Fatalf("position %d: got %s, want %s", i, id, want)
		}
	}

	second, err := repo.DequeueN(ctx, "agent-1", 3)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("expected 2 remaining ids, got %d", len(second))
	}
	if second[0] != "job-3" || second[1] != "job-4" {
		t.Fatalf("unexpected tail: %v", second)
	}

	third, err := repo.DequeueN(ctx, "agent-1", 3)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if len(third) != 0 {
		t.Fatalf("drained queue returned ids: %v", third)
	}
}

func TestJobRepository_DequeueNeverRedelivers(t *testing.T) {
	repo := NewJobRepository()
	ctx := context.Background()

	if err := repo.Enqueue(ctx, "agent-1", "job-a"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	ids, err := repo.DequeueN(ctx, "agent-1", 1)
	if err != nil || len(ids) != 1 {
		t.Fatalf("first pop: ids=%v err=%v", ids, err)
	}

	ids, err = repo.DequeueN(ctx, "agent-1", 1)
	if err != nil {
		t.Fatalf("second pop: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("popped id was redelivered: %v", ids)
	}
}

func TestJobRepository_DropQueueLeavesLedger(t *testing.T) {
	repo := NewJobRepository()
	ctx := context.Background()

	for _, id := range []string{"job-a", "job-b"} {
		if err := repo.Create(ctx, newLedgerJob(id, "agent-1")); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
		if err := repo.Enqueue(ctx, "agent-1", id); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}

	dropped, err := repo.DropQueue(ctx, "agent-1")
	if err != nil {
		t.Fatalf("drop queue: %v", err)
	}
	if dropped != 2 {
		t.Fatalf("dropped = %d, want 2", dropped)
	}

	length, err := repo.QueueLen(ctx, "agent-1")
	if err != nil || length != 0 {
		t.Fatalf("queue length after drop: %d err=%v", length, err)
	}

	for _, id := range []string{"job-a", "job-b"} {
		if _, err := repo.FindByID(ctx, id); err != nil {
			t.Fatalf("ledger record %s lost after drop: %v", id, err)
		}
	}
}

func TestJobRepository_CountByStatus(t *testing.T) {
	repo := NewJobRepository()
	ctx := context.Background()

	jobA := newLedgerJob("job-a", "agent-1")
	jobB := newLedgerJob("job-b", "agent-1")
	jobB.Status = model.JobStatusSucceeded
	jobC := newLedgerJob("job-c", "agent-2")

	for _, job := range []*model.Job{jobA, jobB, jobC} {
		if err := repo.Create(ctx, job); err != nil {
			t.Fatalf("create %s: %v", job.ID, err)
		}
	}

	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("count by status: %v", err)
	}
	if counts[model.JobStatusQueued] != 2 {
		t.Fatalf("queued = %d, want 2", counts[model.JobStatusQueued])
	}
	if counts[model.JobStatusSucceeded] != 1 {
		t.Fatalf("succeeded = %d, want 1", counts[model.JobStatusSucceeded])
	}
}

func TestJobRepository_UpdateUnknownJob(t *testing.T) {
	repo := NewJobRepository()

	err := repo.Update(context.Background(), newLedgerJob("missing", "agent-1"))
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJobRepository_CloneIsolation(t *testing.T) {
	repo := NewJobRepository()
	ctx := context.Background()

	job := newLedgerJob("job-a", "agent-1")
	job.Payload = map[string]any{"artifact_id": "fw-1"}
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	job.Payload["artifact_id"] = "tampered"

	stored, err := repo.FindByID(ctx, "job-a")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.Payload["artifact_id"] != "fw-1" {
		t.Fatalf("stored payload mutated via caller reference: %v", stored.Payload)
	}
}
