package agentapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/api/response"
	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/service"
)

// AgentHandler serves the endpoints the edge agent binary talks to. Requests
// carry the agent id in the body or query string; there is no transport
// authentication on this surface.
type AgentHandler struct {
	agentService   *service.AgentService
	pairingService *service.PairingService
	deviceService  *service.DeviceService
	jobService     *service.JobService
	logger         *zap.Logger
}

func NewAgentHandler(
	agentService *service.AgentService,
	pairingService *service.PairingService,
	deviceService *service.DeviceService,
	jobService *service.JobService,
	logger *zap.Logger,
) *AgentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AgentHandler{
		agentService:   agentService,
		pairingService: pairingService,
		deviceService:  deviceService,
		jobService:     jobService,
		logger:         logger,
	}
}

func RegisterRoutes(
	router gin.IRoutes,
	agentService *service.AgentService,
	pairingService *service.PairingService,
	deviceService *service.DeviceService,
	jobService *service.JobService,
	logger *zap.Logger,
) {
	handler := NewAgentHandler(agentService, pairingService, deviceService, jobService, logger)
	router.POST("/agent/register", handler.Register)
	router.POST("/agent/heartbeat", handler.Heartbeat)
	router.POST("/agent/pairing/code", handler.PairingCode)
	router.POST("/agent/devices/report", handler.ReportDevices)
	router.GET("/agent/jobs/next", handler.NextJobs)
	router.POST("/agent/jobs/:jobId/progress", handler.JobProgress)
}

type registerRequest struct {
	AgentID      string         `json:"agent_id"`
	AgentVersion string         `json:"agent_version"`
	MachineInfo  map[string]any `json:"machine_info"`
}

// Register creates the agent record on first contact and is a lookup on
// every later call. Agents retry it freely after restarts.
func (h *AgentHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.CodeInvalidRequest, "invalid request body")
		return
	}

	view, err := h.agentService.Register(c.Request.Context(), service.RegisterRequest{
		AgentID:      strings.TrimSpace(req.AgentID),
		AgentVersion: strings.TrimSpace(req.AgentVersion),
		MachineInfo:  req.MachineInfo,
	})
	if err != nil {
		h.logger.Error("agent register failed", zap.Error(err))
		response.Fail(c, http.StatusInternalServerError, response.CodeInternal, "register failed")
		return
	}

	response.Success(c, gin.H{
		"agent_id": view.ID,
		"paired":   view.Paired,
		"online":   view.Online,
	})
}

type heartbeatRequest struct {
	AgentID      string         `json:"agent_id"`
	AgentVersion string         `json:"agent_version"`
	Capabilities map[string]any `json:"capabilities"`
}

func (h *AgentHandler) Heartbeat(c *gin.Context) {
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.CodeInvalidRequest, "invalid request body")
		return
	}

	err := h.agentService.Heartbeat(c.Request.Context(), strings.TrimSpace(req.AgentID), strings.TrimSpace(req.AgentVersion), req.Capabilities)
	if err != nil {
		if errors.Is(err, service.ErrAgentNotFound) {
			response.Fail(c, http.StatusBadRequest, response.CodeUnknownAgent, "agent is not registered")
			return
		}
		h.logger.Error("agent heartbeat failed", zap.Error(err))
		response.Fail(c, http.StatusInternalServerError, response.CodeInternal, "heartbeat failed")
		return
	}

	response.Success(c, gin.H{"acknowledged": true})
}

type pairingCodeRequest struct {
	AgentID string `json:"agent_id"`
}

// PairingCode mints a fresh short-lived code for the agent to display.
// Asking again before the previous code expires simply issues another one.
func (h *AgentHandler) PairingCode(c *gin.Context) {
	var req pairingCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.CodeInvalidRequest, "invalid request body")
		return
	}

	session, err := h.pairingService.Issue(c.Request.Context(), strings.TrimSpace(req.AgentID))
	if err != nil {
		if errors.Is(err, service.ErrAgentNotFound) {
			response.Fail(c, http.StatusBadRequest, response.CodeUnknownAgent, "agent is not registered")
			return
		}
		h.logger.Error("pairing code issue failed", zap.Error(err))
		response.Fail(c, http.StatusInternalServerError, response.CodeInternal, "pairing code issue failed")
		return
	}

	response.Success(c, gin.H{
		"code":       session.Code,
		"expires_at": session.ExpiresAt,
	})
}

type deviceReportRequest struct {
	AgentID string                 `json:"agent_id"`
	Devices []service.DeviceReport `json:"devices"`
}

func (h *AgentHandler) ReportDevices(c *gin.Context) {
	var req deviceReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.CodeInvalidRequest, "invalid request body")
		return
	}

	devices, err := h.deviceService.Report(c.Request.Context(), strings.TrimSpace(req.AgentID), req.Devices)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAgentNotFound):
			response.Fail(c, http.StatusBadRequest, response.CodeUnknownAgent, "agent is not registered")
		case errors.Is(err, service.ErrNoDevices):
			response.Fail(c, http.StatusBadRequest, response.CodeMissingDevices, "device report contains no devices")
		default:
			h.logger.Error("device report failed", zap.Error(err))
			response.Fail(c, http.StatusInternalServerError, response.CodeInternal, "device report failed")
		}
		return
	}

	response.Success(c, gin.H{"accepted": len(devices)})
}

// NextJobs pops up to the batch limit of queued jobs for the polling agent.
// The pop is destructive: a job handed out here is never handed out again.
func (h *AgentHandler) NextJobs(c *gin.Context) {
	agentID := strings.TrimSpace(c.Query("agentId"))
	if agentID == "" {
		response.Fail(c, http.StatusBadRequest, response.CodeInvalidRequest, "agentId query parameter required")
		return
	}

	jobs, err := h.jobService.PullNext(c.Request.Context(), agentID, service.PullBatchLimit)
	if err != nil {
		if errors.Is(err, service.ErrAgentNotFound) {
			response.Fail(c, http.StatusBadRequest, response.CodeUnknownAgent, "agent is not registered")
			return
		}
		h.logger.Error("job pull failed", zap.Error(err), zap.String("agent_id", agentID))
		response.Fail(c, http.StatusInternalServerError, response.CodeInternal, "job pull failed")
		return
	}

	response.Success(c, gin.H{"jobs": jobs})
}

type jobProgressRequest struct {
	AgentID  string  `json:"agent_id"`
	Status   *string `json:"status"`
	Progress *int    `json:"progress"`
	Message  *string `json:"message"`
}

func (h *AgentHandler) JobProgress(c *gin.Context) {
	jobID := strings.TrimSpace(c.Param("jobId"))

	var req jobProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.CodeInvalidRequest, "invalid request body")
		return
	}

	job, err := h.jobService.Report(c.Request.Context(), service.ReportRequest{
		JobID:    jobID,
		AgentID:  strings.TrimSpace(req.AgentID),
		Status:   req.Status,
		Progress: req.Progress,
		Message:  req.Message,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			response.Fail(c, http.StatusNotFound, response.CodeUnknownJob, "job not found")
		case errors.Is(err, service.ErrAgentMismatch):
			response.Fail(c, http.StatusForbidden, response.CodeAgentMismatch, "job belongs to a different agent")
		default:
			h.logger.Error("job progress report failed", zap.Error(err), zap.String("job_id", jobID))
			response.Fail(c, http.StatusInternalServerError, response.CodeInternal, "job progress report failed")
		}
		return
	}

	response.Success(c, job)
}
