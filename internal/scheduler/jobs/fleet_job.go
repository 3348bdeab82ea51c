package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/event"
	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/metrics"
	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/model"
	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/repository"
	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/service"
	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/sse"
)

// FleetJob periodically recomputes fleet gauges and emits offline
// transitions for agents that crossed the liveness TTL since the last sweep.
// It reads the stores and mutates nothing in them.
type FleetJob struct {
	agentRepo repository.AgentRepository
	jobRepo   repository.JobRepository
	bus       *event.Bus
	sseHub    *sse.Hub
	logger    *zap.Logger

	mu         sync.Mutex
	lastOnline map[string]bool
}

func NewFleetJob(
	agentRepo repository.AgentRepository,
	jobRepo repository.JobRepository,
	bus *event.Bus,
	sseHub *sse.Hub,
	logger *zap.Logger,
) *FleetJob {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FleetJob{
		agentRepo:  agentRepo,
		jobRepo:    jobRepo,
		bus:        bus,
		sseHub:     sseHub,
		logger:     logger,
		lastOnline: make(map[string]bool),
	}
}

func (j *FleetJob) Refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	agents, err := j.agentRepo.List(ctx, repository.AgentListFilter{})
	if err != nil {
		j.logger.Warn("list agents for fleet refresh failed", zap.Error(err))
		return
	}

	now := time.Now().UTC()
	online := 0
	paired := 0

	j.mu.Lock()
	for _, agent := range agents {
		isOnline := service.Online(agent.LastSeenAt, now)
		if isOnline {
			online++
		}
		if agent.Paired {
			paired++
		}

		if was, seen := j.lastOnline[agent.ID]; seen && was && !isOnline {
			j.emitOffline(agent, now)
		}
		j.lastOnline[agent.ID] = isOnline
	}
	j.mu.Unlock()

	metrics.SetAgentsRegistered(len(agents))
	metrics.SetAgentsOnline(online)
	metrics.SetAgentsPaired(paired)

	counts, err := j.jobRepo.CountByStatus(ctx)
	if err != nil {
		j.logger.Warn("count jobs for fleet refresh failed", zap.Error(err))
		return
	}
	for _, status := range []string{
		model.JobStatusQueued,
		model.JobStatusRunning,
		model.JobStatusSucceeded,
		model.JobStatusFailed,
	} {
		metrics.SetJobCount(status, counts[status])
	}

	if j.sseHub != nil {
		j.sseHub.Broadcast(sse.NewEvent(sse.EventFleetSummary, map[string]any{
			"agents": len(agents),
			"online": online,
			"paired": paired,
			"jobs":   counts,
			"ts":     now.Format(time.RFC3339Nano),
		}))
	}
}

func (j *FleetJob) emitOffline(agent *model.Agent, now time.Time) {
	tenantID := ""
	if agent.TenantID != nil {
		tenantID = *agent.TenantID
	}

	j.logger.Info("agent went offline",
		zap.String("agent_id", agent.ID),
		zap.String("tenant_id", tenantID),
	)
	j.bus.Publish(event.EventAgentOffline, event.AgentPayload{
		AgentID:   agent.ID,
		TenantID:  tenantID,
		Timestamp: now,
	})
}
