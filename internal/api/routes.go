package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/api/agentapi"
	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/api/portal"
	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/service"
	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/sse"
)

func RegisterAgentRoutes(
	router gin.IRoutes,
	agentService *service.AgentService,
	pairingService *service.PairingService,
	deviceService *service.DeviceService,
	jobService *service.JobService,
	logger *zap.Logger,
) {
	agentapi.RegisterRoutes(router, agentService, pairingService, deviceService, jobService, logger)
}

func RegisterPortalRoutes(
	router gin.IRoutes,
	agentService *service.AgentService,
	pairingService *service.PairingService,
	deviceService *service.DeviceService,
	jobService *service.JobService,
	hub *sse.Hub,
	logger *zap.Logger,
) {
	portal.RegisterRoutes(router, agentService, pairingService, deviceService, jobService, logger)
	if hub != nil {
		portal.RegisterSSERoutes(router, hub)
	}
}
