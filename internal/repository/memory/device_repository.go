package memory

import (
	"context"
	"sync"

	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/model"
	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/repository"
)

type deviceRepository struct {
	mu      sync.RWMutex
	byAgent map[string][]*model.Device
}

func NewDeviceRepository() repository.DeviceRepository {
	return &deviceRepository{
		byAgent: make(map[string][]*model.Device),
	}
}

var _ repository.DeviceRepository = (*deviceRepository)(nil)

func (r *deviceRepository) ReplaceAll(_ context.Context, agentID string, devices []*model.Device) error {
	stored := make([]*model.Device, 0, len(devices))
	for _, device := range devices {
		clone := *device
		stored = append(stored, &clone)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byAgent[agentID] = stored
	return nil
}

func (r *deviceRepository) ListByAgent(_ context.Context, agentID string) ([]*model.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := r.byAgent[agentID]
	result := make([]*model.Device, 0, len(devices))
	for _, device := range devices {
		clone := *device
		result = append(result, &clone)
	}
	return result, nil
}

func (r *deviceRepository) FindByID(_ context.Context, agentID, deviceID string) (*model.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, device := range r.byAgent[agentID] {
		if device.DeviceID == deviceID {
			clone := *device
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}
