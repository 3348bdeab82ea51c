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
	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/model"
	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/repository"
)

const (
	// Fallbacks applied when a claim supplies no tenant or operator identity.
	// No verification happens here; tenant identifiers are taken on trust.
	defaultTenantID = "default"
	defaultPairedBy = "operator"
)

var ErrAgentNotFound = errors.New("agent not found")

type RegisterRequest struct {
	AgentID      string
	AgentVersion string
	MachineInfo  map[string]any
}

type ClaimRequest struct {
	AgentID     string
	TenantID    string
	UserID      string
	DisplayName string
	SiteID      string
}

type AgentService struct {
	agentRepo repository.AgentRepository
	jobRepo   repository.JobRepository
	bus       *event.Bus
	logger    *zap.Logger
}

func NewAgentService(
	agentRepo repository.AgentRepository,
	jobRepo repository.JobRepository,
	bus *event.Bus,
	logger *zap.Logger,
) *AgentService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AgentService{
		agentRepo: agentRepo,
		jobRepo:   jobRepo,
		bus:       bus,
		logger:    logger,
	}
}

// Register reuses the record for a known agent id and allocates a fresh
// identity otherwise. It always refreshes last-seen and version metadata and
// never changes pairing state.
func (s *AgentService) Register(ctx context.Context, req RegisterRequest) (*model.AgentView, error) {
	now := time.Now().UTC()

	if id := strings.TrimSpace(req.AgentID); id != "" {
		agent, err := s.agentRepo.FindByID(ctx, id)
		if err == nil {
			applyRegistration(agent, req, now)
			if err := s.agentRepo.Update(ctx, agent); err != nil {
				return nil, fmt.Errorf("update agent: %w", err)
			}
			return viewOf(agent, now), nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("find agent: %w", err)
		}
	}

	agent := &model.Agent{
		ID:           uuid.NewString(),
		RegisteredAt: now,
	}
	applyRegistration(agent, req, now)
	agent.DisplayName = defaultDisplayName(req.MachineInfo, agent.ID)

	if err := s.agentRepo.Create(ctx, agent); err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}

	s.logger.Info("agent registered",
		zap.String("agent_id", agent.ID),
		zap.String("display_name", agent.DisplayName),
	)
	s.bus.Publish(event.EventAgentRegistered, event.AgentPayload{
		AgentID:   agent.ID,
		Timestamp: now,
	})

	return viewOf(agent, now), nil
}

// Heartbeat refreshes liveness and overwrites (not merges) version and
// capability metadata when supplied.
func (s *AgentService) Heartbeat(ctx context.Context, agentID, agentVersion string, capabilities map[string]any) error {
	agent, err := s.getAgent(ctx, agentID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	agent.LastSeenAt = &now
	if v := strings.TrimSpace(agentVersion); v != "" {
		agent.AgentVersion = v
	}
	if capabilities != nil {
		agent.Capabilities = capabilities
	}

	if err := s.agentRepo.Update(ctx, agent); err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	return nil
}

// Claim binds an agent to a tenant. Omitted tenant and operator identities
// fall back to fixed defaults.
func (s *AgentService) Claim(ctx context.Context, req ClaimRequest) (*model.AgentView, error) {
	agent, err := s.getAgent(ctx, req.AgentID)
	if err != nil {
		return nil, err
	}

	tenantID := strings.TrimSpace(req.TenantID)
	if tenantID == "" {
		tenantID = defaultTenantID
	}
	pairedBy := strings.TrimSpace(req.UserID)
	if pairedBy == "" {
		pairedBy = defaultPairedBy
	}

	now := time.Now().UTC()
	agent.Paired = true
	agent.TenantID = &tenantID
	agent.PairedBy = &pairedBy
	agent.PairedAt = &now
	if name := strings.TrimSpace(req.DisplayName); name != "" {
		agent.DisplayName = name
	}
	if site := strings.TrimSpace(req.SiteID); site != "" {
		agent.SiteID = &site
	}

	if err := s.agentRepo.Update(ctx, agent); err != nil {
		return nil, fmt.Errorf("update agent: %w", err)
	}

	s.logger.Info("agent paired",
		zap.String("agent_id", agent.ID),
		zap.String("tenant_id", tenantID),
		zap.String("paired_by", pairedBy),
	)
	s.bus.Publish(event.EventAgentPaired, event.AgentPayload{
		AgentID:   agent.ID,
		TenantID:  tenantID,
		Timestamp: now,
	})

	return viewOf(agent, now), nil
}

// Unpair releases tenant ownership and discards the agent's pending job
// queue so no work authorized under the old tenant is ever dispatched.
// Ledger records for already-issued jobs are left untouched.
func (s *AgentService) Unpair(ctx context.Context, agentID string) error {
	agent, err := s.getAgent(ctx, agentID)
	if err != nil {
		return err
	}

	tenantID := ""
	if agent.TenantID != nil {
		tenantID = *agent.TenantID
	}

	agent.Paired = false
	agent.TenantID = nil
	agent.SiteID = nil
	agent.PairedAt = nil
	agent.PairedBy = nil

	if err := s.agentRepo.Update(ctx, agent); err != nil {
		return fmt.Errorf("update agent: %w", err)
	}

	dropped, err := s.jobRepo.DropQueue(ctx, agent.ID)
	if err != nil {
		return fmt.Errorf("drop job queue: %w", err)
	}

	now := time.Now().UTC()
	s.logger.Info("agent unpaired",
		zap.String("agent_id", agent.ID),
		zap.String("tenant_id", tenantID),
		zap.Int("jobs_dropped", dropped),
	)
	s.bus.Publish(event.EventAgentUnpaired, event.AgentPayload{
		AgentID:   agent.ID,
		TenantID:  tenantID,
		Timestamp: now,
	})

	return nil
}

// List returns the fleet, optionally filtered by tenant, each record
// annotated with the derived online flag.
func (s *AgentService) List(ctx context.Context, tenantID *string) ([]*model.AgentView, error) {
	agents, err := s.agentRepo.List(ctx, repository.AgentListFilter{TenantID: tenantID})
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}

	now := time.Now().UTC()
	views := make([]*model.AgentView, 0, len(agents))
	for _, agent := range agents {
		views = append(views, viewOf(agent, now))
	}
	return views, nil
}

func (s *AgentService) Get(ctx context.Context, agentID string) (*model.AgentView, error) {
	agent, err := s.getAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return viewOf(agent, time.Now().UTC()), nil
}

func (s *AgentService) getAgent(ctx context.Context, agentID string) (*model.Agent, error) {
	agent, err := s.agentRepo.FindByID(ctx, strings.TrimSpace(agentID))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find agent: %w", err)
	}
	return agent, nil
}

func applyRegistration(agent *model.Agent, req RegisterRequest, now time.Time) {
	seen := now
	agent.LastSeenAt = &seen
	if v := strings.TrimSpace(req.AgentVersion); v != "" {
		agent.AgentVersion = v
	}
	if req.MachineInfo != nil {
		agent.MachineInfo = req.MachineInfo
	}
}

func defaultDisplayName(machineInfo map[string]any, agentID string) string {
	if machineInfo != nil {
		if hostname, ok := machineInfo["hostname"].(string); ok {
			if name := strings.TrimSpace(hostname); name != "" {
				return name
			}
		}
	}
	short := agentID
	if len(short) > 8 {
		short = short[:8]
	}
	return "agent-" + short
}

func viewOf(agent *model.Agent, now time.Time) *model.AgentView {
	return &model.AgentView{
		Agent:  *agent,
		Online: Online(agent.LastSeenAt, now),
	}
}
