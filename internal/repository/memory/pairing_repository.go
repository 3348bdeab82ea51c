package memory

import (
	"context"
	"sync"
	"time"

	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/model"
	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/repository"
)

// pairingRepository keeps every issued session, newest last per code. Dead
// sessions (used or expired) are never purged; expiry is evaluated at use
// time. A dead session may be shadowed by a newly issued one with the same
// code, in which case Consume prefers the live one.
type pairingRepository struct {
	mu       sync.Mutex
	sessions map[string][]*model.PairingSession
}

func NewPairingRepository() repository.PairingRepository {
	return &pairingRepository{
		sessions: make(map[string][]*model.PairingSession),
	}
}

var _ repository.PairingRepository = (*pairingRepository)(nil)

func (r *pairingRepository) Create(_ context.Context, session *model.PairingSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.sessions[session.Code] {
		if existing.Live(session.CreatedAt) {
			return repository.ErrDuplicate
		}
	}
	r.sessions[session.Code] = append(r.sessions[session.Code], clonePairingSession(session))
	return nil
}

func (r *pairingRepository) Consume(_ context.Context, code string, now time.Time) (*model.PairingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	issued := r.sessions[code]
	if len(issued) == 0 {
		return nil, repository.ErrNotFound
	}

	for i := len(issued) - 1; i >= 0; i-- {
		if issued[i].Live(now) {
			used := now
			issued[i].UsedAt = &used
			return clonePairingSession(issued[i]), nil
		}
	}

	// No live session: report why the newest one is dead.
	latest := issued[len(issued)-1]
	if latest.UsedAt != nil {
		return nil, repository.ErrSessionUsed
	}
	return nil, repository.ErrSessionExpired
}

func clonePairingSession(session *model.PairingSession) *model.PairingSession {
	if session == nil {
		return nil
	}
	clone := *session
	clone.UsedAt = cloneTimePtr(session.UsedAt)
	return &clone
}
