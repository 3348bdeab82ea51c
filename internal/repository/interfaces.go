package repository

import (
	"context"
	"errors"
	"time"

	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/model"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")

	// Pairing-session consumption outcomes. Consume reports these so the
	// check-then-mark sequence stays a single critical section inside the
	// store.
	ErrSessionUsed    = errors.New("pairing session already used")
	ErrSessionExpired = errors.New("pairing session expired")
)

type AgentListFilter struct {
	TenantID *string
	Paired   *bool
}

type AgentRepository interface {
	FindByID(ctx context.Context, id string) (*model.Agent, error)
	Create(ctx context.Context, agent *model.Agent) error
	Update(ctx context.Context, agent *model.Agent) error
	// Touch refreshes LastSeenAt without rewriting the rest of the record.
	Touch(ctx context.Context, id string, at time.Time) error
	// List returns agents sorted by registration time.
	List(ctx context.Context, filter AgentListFilter) ([]*model.Agent, error)
	Count(ctx context.Context) (int, error)
}

type PairingRepository interface {
	// Create fails with ErrDuplicate when another live (unused, unexpired)
	// session already holds the same code.
	Create(ctx context.Context, session *model.PairingSession) error
	// Consume atomically marks the live session for code as used and returns
	// it. ErrNotFound when the code was never issued, ErrSessionUsed when it
	// was already consumed, ErrSessionExpired when its window has passed.
	Consume(ctx context.Context, code string, now time.Time) (*model.PairingSession, error)
}

type DeviceRepository interface {
	// ReplaceAll swaps the agent's whole inventory for the given list. No
	// merging: an empty prior list and a stale one are treated alike.
	ReplaceAll(ctx context.Context, agentID string, devices []*model.Device) error
	ListByAgent(ctx context.Context, agentID string) ([]*model.Device, error)
	FindByID(ctx context.Context, agentID, deviceID string) (*model.Device, error)
}

type JobRepository interface {
	Create(ctx context.Context, job *model.Job) error
	FindByID(ctx context.Context, id string) (*model.Job, error)
	Update(ctx context.Context, job *model.Job) error

	// Per-agent FIFO of pending job ids. DequeueN is a destructive pop of up
	// to n ids in enqueue order; dispatched ids are never requeued.
	Enqueue(ctx context.Context, agentID, jobID string) error
	DequeueN(ctx context.Context, agentID string, n int) ([]string, error)
	QueueLen(ctx context.Context, agentID string) (int, error)
	// DropQueue discards the agent's pending queue and returns how many ids
	// were dropped. Ledger records are left untouched.
	DropQueue(ctx context.Context, agentID string) (int, error)

	CountByStatus(ctx context.Context) (map[string]int, error)
}
