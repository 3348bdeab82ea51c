package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/metrics"
	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/model"
	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/repository"
	"github.com/AchrafDrissi1991/odm-demo-cloud/pkg/paircode"
)

const (
	// pairingCodeTTL is the validity window of an issued code. Like the
	// online TTL it is a design constant.
	pairingCodeTTL = 10 * time.Minute

	// pairingCodeAttempts bounds the retry loop when a freshly generated
	// code collides with a live session.
	pairingCodeAttempts = 8
)

var (
	ErrInvalidCode = errors.New("pairing code was never issued")
	ErrCodeUsed    = errors.New("pairing code already used")
	ErrCodeExpired = errors.New("pairing code expired")
)

type ClaimCodeRequest struct {
	Code        string
	TenantID    string
	UserID      string
	DisplayName string
	SiteID      string
}

type PairingService struct {
	pairingRepo repository.PairingRepository
	agentSvc    *AgentService
	logger      *zap.Logger
}

func NewPairingService(
	pairingRepo repository.PairingRepository,
	agentSvc *AgentService,
	logger *zap.Logger,
) *PairingService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PairingService{
		pairingRepo: pairingRepo,
		agentSvc:    agentSvc,
		logger:      logger,
	}
}

// Issue creates a single-use code bound to a registered agent. Codes are
// unique among live sessions; generation retries a bounded number of times
// on collision.
func (s *PairingService) Issue(ctx context.Context, agentID string) (*model.PairingSession, error) {
	view, err := s.agentSvc.Get(ctx, agentID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for attempt := 0; attempt < pairingCodeAttempts; attempt++ {
		code, err := paircode.New()
		if err != nil {
			return nil, fmt.Errorf("generate pairing code: %w", err)
		}

		session := &model.PairingSession{
			Code:      code,
			AgentID:   view.ID,
			CreatedAt: now,
			ExpiresAt: now.Add(pairingCodeTTL),
		}
		err = s.pairingRepo.Create(ctx, session)
		if errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("store pairing session: %w", err)
		}

		metrics.IncPairingCodeIssued()
		s.logger.Info("pairing code issued",
			zap.String("agent_id", view.ID),
			zap.Time("expires_at", session.ExpiresAt),
		)
		return session, nil
	}

	return nil, fmt.Errorf("no unique pairing code after %d attempts", pairingCodeAttempts)
}

// Claim consumes a code and binds its agent to the caller's tenant. The
// consume step is atomic inside the session store, so a code yields at most
// one successful claim no matter how claims interleave.
func (s *PairingService) Claim(ctx context.Context, req ClaimCodeRequest) (*model.AgentView, error) {
	now := time.Now().UTC()
	session, err := s.pairingRepo.Consume(ctx, paircode.Normalize(req.Code), now)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		metrics.IncPairingClaim("invalid")
		return nil, ErrInvalidCode
	case errors.Is(err, repository.ErrSessionUsed):
		metrics.IncPairingClaim("used")
		return nil, ErrCodeUsed
	case errors.Is(err, repository.ErrSessionExpired):
		metrics.IncPairingClaim("expired")
		return nil, ErrCodeExpired
	case err != nil:
		return nil, fmt.Errorf("consume pairing session: %w", err)
	}

	view, err := s.agentSvc.Claim(ctx, ClaimRequest{
		AgentID:     session.AgentID,
		TenantID:    req.TenantID,
		UserID:      req.UserID,
		DisplayName: req.DisplayName,
		SiteID:      req.SiteID,
	})
	if err != nil {
		return nil, err
	}

	metrics.IncPairingClaim("ok")
	return view, nil
}
