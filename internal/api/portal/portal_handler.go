package portal

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/api/response"
	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/service"
)

// PortalHandler serves the operator-facing endpoints. Tenant identifiers are
// accepted as-is; this surface assumes a trusted network in front of it.
type PortalHandler struct {
	agentService   *service.AgentService
	pairingService *service.PairingService
	deviceService  *service.DeviceService
	jobService     *service.JobService
	logger         *zap.Logger
}

func NewPortalHandler(
	agentService *service.AgentService,
	pairingService *service.PairingService,
	deviceService *service.DeviceService,
	jobService *service.JobService,
	logger *zap.Logger,
) *PortalHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PortalHandler{
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
	handler := NewPortalHandler(agentService, pairingService, deviceService, jobService, logger)
	router.POST("/portal/agents/pair", handler.Pair)
	router.GET("/portal/agents/all", handler.ListAll)
	router.GET("/portal/agents", handler.ListByTenant)
	router.POST("/portal/agents/:id/unpair", handler.Unpair)
	router.POST("/portal/agents/:id/pairing-code", handler.IssuePairingCode)
	router.GET("/portal/agents/:id/devices", handler.ListDevices)
	router.POST("/portal/agents/:id/jobs/firmware-update", handler.EnqueueFirmwareUpdate)
	router.GET("/portal/jobs/:jobId", handler.GetJob)
}

type pairRequest struct {
	Code        string `json:"code"`
	TenantID    string `json:"tenant_id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	SiteID      string `json:"site_id"`
}

// Pair redeems a pairing code shown on an agent and attaches the agent to
// the caller's tenant. Codes are single use: a second redeem of the same
// code fails even when the first one happened seconds earlier.
func (h *PortalHandler) Pair(c *gin.Context) {
	var req pairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.CodeInvalidRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Code) == "" {
		response.Fail(c, http.StatusBadRequest, response.CodeMissingCode, "pairing code required")
		return
	}

	view, err := h.pairingService.Claim(c.Request.Context(), service.ClaimCodeRequest{
		Code:        req.Code,
		TenantID:    strings.TrimSpace(req.TenantID),
		UserID:      strings.TrimSpace(req.UserID),
		DisplayName: strings.TrimSpace(req.DisplayName),
		SiteID:      strings.TrimSpace(req.SiteID),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCode):
			response.Fail(c, http.StatusNotFound, response.CodeInvalidCode, "pairing code is not valid")
		case errors.Is(err, service.ErrCodeUsed):
			response.Fail(c, http.StatusConflict, response.CodeAlreadyUsed, "pairing code already used")
		case errors.Is(err, service.ErrCodeExpired):
			response.Fail(c, http.StatusGone, response.CodeExpired, "pairing code expired")
		default:
			h.logger.Error("pairing claim failed", zap.Error(err))
			response.Fail(c, http.StatusInternalServerError, response.CodeInternal, "pairing claim failed")
		}
		return
	}

	response.Success(c, view)
}

func (h *PortalHandler) ListAll(c *gin.Context) {
	views, err := h.agentService.List(c.Request.Context(), nil)
	if err != nil {
		h.logger.Error("agent list failed", zap.Error(err))
		response.Fail(c, http.StatusInternalServerError, response.CodeInternal, "agent list failed")
		return
	}

	response.Success(c, gin.H{"agents": views})
}

func (h *PortalHandler) ListByTenant(c *gin.Context) {
	tenantID := strings.TrimSpace(c.Query("tenantId"))
	if tenantID == "" {
		response.Fail(c, http.StatusBadRequest, response.CodeInvalidRequest, "tenantId query parameter required")
		return
	}

	views, err := h.agentService.List(c.Request.Context(), &tenantID)
	if err != nil {
		h.logger.Error("agent list failed", zap.Error(err), zap.String("tenant_id", tenantID))
		response.Fail(c, http.StatusInternalServerError, response.CodeInternal, "agent list failed")
		return
	}

	response.Success(c, gin.H{"agents": views})
}

// Unpair detaches the agent from its tenant and throws away any jobs still
// waiting in its queue. Already-dispatched jobs keep reporting as usual.
func (h *PortalHandler) Unpair(c *gin.Context) {
	agentID := strings.TrimSpace(c.Param("id"))

	if err := h.agentService.Unpair(c.Request.Context(), agentID); err != nil {
		if errors.Is(err, service.ErrAgentNotFound) {
			response.Fail(c, http.StatusNotFound, response.CodeUnknownAgent, "agent not found")
			return
		}
		h.logger.Error("agent unpair failed", zap.Error(err), zap.String("agent_id", agentID))
		response.Fail(c, http.StatusInternalServerError, response.CodeInternal, "agent unpair failed")
		return
	}

	response.Success(c, gin.H{"unpaired": true})
}

// IssuePairingCode mints a code on behalf of an agent, for flows where the
// operator reads the code off a provisioning screen instead of the device.
func (h *PortalHandler) IssuePairingCode(c *gin.Context) {
	agentID := strings.TrimSpace(c.Param("id"))

	session, err := h.pairingService.Issue(c.Request.Context(), agentID)
	if err != nil {
		if errors.Is(err, service.ErrAgentNotFound) {
			response.Fail(c, http.StatusNotFound, response.CodeUnknownAgent, "agent not found")
			return
		}
		h.logger.Error("pairing code issue failed", zap.Error(err), zap.String("agent_id", agentID))
		response.Fail(c, http.StatusInternalServerError, response.CodeInternal, "pairing code issue failed")
		return
	}

	response.Success(c, gin.H{
		"code":       session.Code,
		"expires_at": session.ExpiresAt,
	})
}

func (h *PortalHandler) ListDevices(c *gin.Context) {
	agentID := strings.TrimSpace(c.Param("id"))

	devices, err := h.deviceService.List(c.Request.Context(), agentID)
	if err != nil {
		if errors.Is(err, service.ErrAgentNotFound) {
			response.Fail(c, http.StatusNotFound, response.CodeUnknownAgent, "agent not found")
			return
		}
		h.logger.Error("device list failed", zap.Error(err), zap.String("agent_id", agentID))
		response.Fail(c, http.StatusInternalServerError, response.CodeInternal, "device list failed")
		return
	}

	response.Success(c, gin.H{"devices": devices})
}

type firmwareUpdateRequest struct {
	DeviceID   string `json:"device_id"`
	ArtifactID string `json:"artifact_id"`
}

func (h *PortalHandler) EnqueueFirmwareUpdate(c *gin.Context) {
	agentID := strings.TrimSpace(c.Param("id"))

	var req firmwareUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.CodeInvalidRequest, "invalid request body")
		return
	}

	job, err := h.jobService.Enqueue(c.Request.Context(), agentID, strings.TrimSpace(req.DeviceID), strings.TrimSpace(req.ArtifactID))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAgentNotFound):
			response.Fail(c, http.StatusNotFound, response.CodeUnknownAgent, "agent not found")
		case errors.Is(err, service.ErrMissingDeviceID):
			response.Fail(c, http.StatusBadRequest, response.CodeMissingDeviceID, "device id required")
		case errors.Is(err, service.ErrMissingArtifactID):
			response.Fail(c, http.StatusBadRequest, response.CodeMissingArtifactID, "artifact id required")
		case errors.Is(err, service.ErrAgentOffline):
			response.Fail(c, http.StatusConflict, response.CodeAgentOffline, "agent is offline")
		case errors.Is(err, service.ErrDeviceNotFound):
			response.Fail(c, http.StatusNotFound, response.CodeUnknownDevice, "device not reported by this agent")
		default:
			h.logger.Error("firmware update enqueue failed", zap.Error(err), zap.String("agent_id", agentID))
			response.Fail(c, http.StatusInternalServerError, response.CodeInternal, "firmware update enqueue failed")
		}
		return
	}

	response.Success(c, job)
}

func (h *PortalHandler) GetJob(c *gin.Context) {
	jobID := strings.TrimSpace(c.Param("jobId"))

	job, err := h.jobService.Get(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			response.Fail(c, http.StatusNotFound, response.CodeUnknownJob, "job not found")
			return
		}
		h.logger.Error("job lookup failed", zap.Error(err), zap.String("job_id", jobID))
		response.Fail(c, http.StatusInternalServerError, response.CodeInternal, "job lookup failed")
		return
	}

	response.Success(c, job)
}
