package memory

import (
	"context"
	"sync"
	"time"

	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/model"
	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/repository"
)

type agentRepository struct {
	mu     sync.RWMutex
	agents map[string]*model.Agent
	order  []string
}

func NewAgentRepository() repository.AgentRepository {
	return &agentRepository{
		agents: make(map[string]*model.Agent),
	}
}

var _ repository.AgentRepository = (*agentRepository)(nil)

func (r *agentRepository) FindByID(_ context.Context, id string) (*model.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, ok := r.agents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneAgent(agent), nil
}

func (r *agentRepository) Create(_ context.Context, agent *model.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.agents[agent.ID]; ok {
		return repository.ErrDuplicate
	}
	r.agents[agent.ID] = cloneAgent(agent)
	r.order = append(r.order, agent.ID)
	return nil
}

func (r *agentRepository) Update(_ context.Context, agent *model.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.agents[agent.ID]; !ok {
		return repository.ErrNotFound
	}
	r.agents[agent.ID] = cloneAgent(agent)
	return nil
}

func (r *agentRepository) Touch(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, ok := r.agents[id]
	if !ok {
		return repository.ErrNotFound
	}
	seen := at
	agent.LastSeenAt = &seen
	return nil
}

func (r *agentRepository) List(_ context.Context, filter repository.AgentListFilter) ([]*model.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.Agent, 0, len(r.order))
	for _, id := range r.order {
		agent, ok := r.agents[id]
		if !ok {
			continue
		}
		if filter.TenantID != nil {
			if agent.TenantID == nil || *agent.TenantID != *filter.TenantID {
				continue
			}
		}
		if filter.Paired != nil && agent.Paired != *filter.Paired {
			continue
		}
		result = append(result, cloneAgent(agent))
	}
	return result, nil
}

func (r *agentRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents), nil
}

func cloneAgent(agent *model.Agent) *model.Agent {
	if agent == nil {
		return nil
	}

	clone := *agent
	clone.TenantID = cloneStringPtr(agent.TenantID)
	clone.SiteID = cloneStringPtr(agent.SiteID)
	clone.PairedBy = cloneStringPtr(agent.PairedBy)
	clone.PairedAt = cloneTimePtr(agent.PairedAt)
	clone.LastSeenAt = cloneTimePtr(agent.LastSeenAt)
	clone.Capabilities = cloneMap(agent.Capabilities)
	clone.MachineInfo = cloneMap(agent.MachineInfo)
	return &clone
}

func cloneStringPtr(v *string) *string {
	if v == nil {
		return nil
	}
	value := *v
	return &value
}

func cloneTimePtr(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	value := *v
	return &value
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
