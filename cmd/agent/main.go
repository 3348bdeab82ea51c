package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const agentVersion = "0.3.0"

type agentConfig struct {
	ServerURL         string        `mapstructure:"server_url"`
	StateDir          string        `mapstructure:"state_dir"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	ReportInterval    time.Duration `mapstructure:"report_interval"`
	LogLevel          string        `mapstructure:"log_level"`
}

func main() {
	cfg, err := loadAgentConfig()
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	logger, err := newAgentLogger(cfg)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer logger.Sync() //nolint:errcheck

	agentID, err := loadOrCreateAgentID(cfg.StateDir)
	if err != nil {
		logger.Fatal("load agent identity failed", zap.Error(err))
	}

	client := newHubClient(cfg.ServerURL)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	result, err := registerWithRetry(ctx, client, agentID, logger)
	if err != nil {
		logger.Fatal("register failed", zap.Error(err))
	}
	if result.AgentID != agentID {
		// The server allocated a fresh id; persist it so restarts keep it.
		agentID = result.AgentID
		if err := saveAgentID(cfg.StateDir, agentID); err != nil {
			logger.Warn("persist agent id failed", zap.Error(err))
		}
	}

	logger.Info("agent registered",
		zap.String("agent_id", agentID),
		zap.Bool("paired", result.Paired),
	)

	if !result.Paired {
		code, err := client.RequestPairingCode(ctx, agentID)
		if err != nil {
			logger.Warn("pairing code request failed", zap.Error(err))
		} else {
			fmt.Printf("\n  Pairing code: %s (valid until %s)\n\n", code.Code, code.ExpiresAt.Local().Format(time.Kitchen))
		}
	}

	if err := client.ReportDevices(ctx, agentID, simulatedDevices()); err != nil {
		logger.Warn("initial device report failed", zap.Error(err))
	}

	runLoops(ctx, cfg, client, agentID, logger)

	logger.Info("agent stopped")
}

// runLoops drives the three periodic duties on one goroutine. The loops are
// deliberately sequential: a slow firmware simulation delays the next poll
// rather than piling up concurrent updates on the same device.
func runLoops(ctx context.Context, cfg agentConfig, client *hubClient, agentID string, logger *zap.Logger) {
	heartbeat := time.NewTicker(cfg.HeartbeatInterval)
	defer heartbeat.Stop()
	poll := time.NewTicker(cfg.PollInterval)
	defer poll.Stop()
	report := time.NewTicker(cfg.ReportInterval)
	defer report.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			err := client.Heartbeat(ctx, agentID, agentVersion, collectCapabilities())
			if err != nil {
				logger.Warn("heartbeat failed", zap.Error(err))
			}
		case <-report.C:
			if err := client.ReportDevices(ctx, agentID, simulatedDevices()); err != nil {
				logger.Warn("device report failed", zap.Error(err))
			}
		case <-poll.C:
			jobs, err := client.NextJobs(ctx, agentID)
			if err != nil {
				logger.Warn("job poll failed", zap.Error(err))
				continue
			}
			for _, job := range jobs {
				runFirmwareUpdate(ctx, client, agentID, job, logger)
			}
		}
	}
}

// runFirmwareUpdate walks a job through running to succeeded with staged
// progress reports, standing in for a real flash cycle.
func runFirmwareUpdate(ctx context.Context, client *hubClient, agentID string, job jobDescriptor, logger *zap.Logger) {
	logger.Info("firmware update started",
		zap.String("job_id", job.ID),
		zap.String("device_id", job.DeviceID),
	)

	steps := []struct {
		progress int
		message  string
	}{
		{10, "downloading artifact"},
		{40, "verifying checksum"},
		{70, "flashing"},
		{95, "rebooting device"},
	}

	if err := client.ReportJobProgress(ctx, job.ID, agentID, "running", 0, "starting"); err != nil {
		logger.Warn("progress report failed", zap.Error(err), zap.String("job_id", job.ID))
	}

	for _, step := range steps {
		select {
		case <-ctx.Done():
			return
		case <-time.After(500 * time.Millisecond):
		}

		err := client.ReportJobProgress(ctx, job.ID, agentID, "running", step.progress, step.message)
		if err != nil {
			logger.Warn("progress report failed", zap.Error(err), zap.String("job_id", job.ID))
		}
	}

	if err := client.ReportJobProgress(ctx, job.ID, agentID, "succeeded", 100, "firmware updated"); err != nil {
		logger.Warn("final report failed", zap.Error(err), zap.String("job_id", job.ID))
		return
	}

	logger.Info("firmware update finished", zap.String("job_id", job.ID))
}

func registerWithRetry(ctx context.Context, client *hubClient, agentID string, logger *zap.Logger) (*registerResult, error) {
	backoff := time.Second
	for {
		result, err := client.Register(ctx, agentID, agentVersion, collectMachineInfo())
		if err == nil {
			return result, nil
		}

		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			return nil, err
		}

		logger.Warn("register attempt failed, retrying",
			zap.Error(err),
			zap.Duration("backoff", backoff),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}

		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// simulatedDevices fakes a small downstream inventory so the end-to-end flow
// can be exercised without real hardware on the bench.
func simulatedDevices() []deviceReport {
	return []deviceReport{
		{
			DeviceID:     "cam-front-door",
			SerialNumber: "SN-4821-A",
			Model:        "IPC-2230",
			FWVersion:    "2.4.1",
			Status:       "healthy",
		},
		{
			DeviceID:     "cam-warehouse",
			SerialNumber: "SN-4821-B",
			Model:        "IPC-2230",
			FWVersion:    "2.3.9",
			Status:       "healthy",
		},
	}
}

func loadAgentConfig() (agentConfig, error) {
	v := viper.New()
	v.SetConfigName("agent")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ODM_AGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("state_dir", ".")
	v.SetDefault("heartbeat_interval", "5s")
	v.SetDefault("poll_interval", "3s")
	v.SetDefault("report_interval", "60s")
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(err, &notFoundErr) {
			return agentConfig{}, fmt.Errorf("read config file failed: %w", err)
		}
	}

	var cfg agentConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return agentConfig{}, fmt.Errorf("decode config failed: %w", err)
	}

	if cfg.HeartbeatInterval <= 0 || cfg.PollInterval <= 0 || cfg.ReportInterval <= 0 {
		return agentConfig{}, errors.New("intervals must be greater than 0")
	}

	return cfg, nil
}

func newAgentLogger(cfg agentConfig) (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	if cfg.LogLevel != "" {
		if err := zapCfg.Level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return nil, fmt.Errorf("invalid log_level: %w", err)
		}
	}
	return zapCfg.Build()
}

func agentIDPath(stateDir string) string {
	return filepath.Join(stateDir, "agent_id")
}

func loadOrCreateAgentID(stateDir string) (string, error) {
	raw, err := os.ReadFile(agentIDPath(stateDir))
	if err == nil {
		id := strings.TrimSpace(string(raw))
		if id != "" {
			return id, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	id := uuid.NewString()
	if err := saveAgentID(stateDir, id); err != nil {
		return "", err
	}
	return id, nil
}

func saveAgentID(stateDir, id string) error {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(agentIDPath(stateDir), []byte(id+"\n"), 0o600)
}
