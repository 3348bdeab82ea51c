package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/model"
	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/repository"
)

var ErrNoDevices = errors.New("device report contains no devices")

type DeviceReport struct {
	DeviceID     string `json:"device_id"`
	SerialNumber string `json:"serial_number"`
	Model        string `json:"model"`
	FWVersion    string `json:"fw_version"`
	Status       string `json:"status"`
}

type DeviceService struct {
	deviceRepo repository.DeviceRepository
	agentRepo  repository.AgentRepository
	logger     *zap.Logger
}

func NewDeviceService(
	deviceRepo repository.DeviceRepository,
	agentRepo repository.AgentRepository,
	logger *zap.Logger,
) *DeviceService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DeviceService{
		deviceRepo: deviceRepo,
		agentRepo:  agentRepo,
		logger:     logger,
	}
}

// Report replaces the agent's whole device inventory with the reported list.
// Validation happens before any mutation: there are no partial writes.
func (s *DeviceService) Report(ctx context.Context, agentID string, reports []DeviceReport) ([]*model.Device, error) {
	agentID = strings.TrimSpace(agentID)
	if _, err := s.agentRepo.FindByID(ctx, agentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("find agent: %w", err)
	}
	if len(reports) == 0 {
		return nil, ErrNoDevices
	}

	now := time.Now().UTC()
	devices := make([]*model.Device, 0, len(reports))
	for _, report := range reports {
		deviceID := strings.TrimSpace(report.DeviceID)
		if deviceID == "" {
			deviceID = uuid.NewString()
		}
		devices = append(devices, &model.Device{
			DeviceID:     deviceID,
			AgentID:      agentID,
			SerialNumber: strings.TrimSpace(report.SerialNumber),
			Model:        strings.TrimSpace(report.Model),
			FWVersion:    strings.TrimSpace(report.FWVersion),
			Status:       strings.TrimSpace(report.Status),
			ReportedAt:   now,
		})
	}

	if err := s.deviceRepo.ReplaceAll(ctx, agentID, devices); err != nil {
		return nil, fmt.Errorf("replace devices: %w", err)
	}
	if err := s.agentRepo.Touch(ctx, agentID, now); err != nil {
		return nil, fmt.Errorf("touch agent: %w", err)
	}

	s.logger.Debug("device inventory replaced",
		zap.String("agent_id", agentID),
		zap.Int("devices", len(devices)),
	)
	return devices, nil
}

// List returns the agent's current inventory. An agent with no report yet
// has an empty list; an unknown agent is an error.
func (s *DeviceService) List(ctx context.Context, agentID string) ([]*model.Device, error) {
	agentID = strings.TrimSpace(agentID)
	if _, err := s.agentRepo.FindByID(ctx, agentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("find agent: %w", err)
	}

	devices, err := s.deviceRepo.ListByAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devices, nil
}
