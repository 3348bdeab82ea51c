package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/event"
	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/model"
	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/repository"
	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/repository/memory"
	"github.com/AchrafDrissi1991/odm-demo-cloud/pkg/paircode"
)

func newPairingFixture(t *testing.T) (*PairingService, *AgentService, repository.PairingRepository) {
	t.Helper()
	agentRepo := memory.NewAgentRepository()
	jobRepo := memory.NewJobRepository()
	pairingRepo := memory.NewPairingRepository()
	agentSvc := NewAgentService(agentRepo, jobRepo, event.NewBus(), nil)
	pairingSvc := NewPairingService(pairingRepo, agentSvc, nil)
	return pairingSvc, agentSvc, pairingRepo
}

func TestIssue_CodeShape(t *testing.T) {
	pairingSvc, agentSvc, _ := newPairingFixture(t)
	ctx := context.Background()

	view, err := agentSvc.Register(ctx, RegisterRequest{})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	session, err := pairingSvc.Issue(ctx, view.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !paircode.Valid(session.Code) {
		t.Fatalf("issued code %q has invalid shape", session.Code)
	}
	if session.AgentID != view.ID {
		t.Fatalf("session bound to %q, want %q", session.AgentID, view.ID)
	}
	if got := session.ExpiresAt.Sub(session.CreatedAt); got != 10*time.Minute {
		t.Fatalf("ttl = %v, want 10m", got)
	}
}

func TestIssue_UnknownAgent(t *testing.T) {
	pairingSvc, _, _ := newPairingFixture(t)

	_, err := pairingSvc.Issue(context.Background(), "missing")
	if !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("got %v, want ErrAgentNotFound", err)
	}
}

func TestIssue_RepeatedCallsGetDistinctSessions(t *testing.T) {
	pairingSvc, agentSvc, _ := newPairingFixture(t)
	ctx := context.Background()

	view, err := agentSvc.Register(ctx, RegisterRequest{})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	first, err := pairingSvc.Issue(ctx, view.ID)
	if err != nil {
		t.Fatalf("first issue: %v", err)
	}
	second, err := pairingSvc.Issue(ctx, view.ID)
	if err != nil {
		t.Fatalf("second issue: %v", err)
	}
	if first.Code == second.Code {
		t.Fatalf("both sessions share code %q", first.Code)
	}
}

func TestClaim_HappyPath(t *testing.T) {
	pairingSvc, agentSvc, _ := newPairingFixture(t)
	ctx := context.Background()

	view, err := agentSvc.Register(ctx, RegisterRequest{})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	session, err := pairingSvc.Issue(ctx, view.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claimed, err := pairingSvc.Claim(ctx, ClaimCodeRequest{
		Code:        session.Code,
		TenantID:    "tenant-a",
		UserID:      "user-7",
		DisplayName: "Dock Camera Hub",
		SiteID:      "site-3",
	})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.ID != view.ID {
		t.Fatalf("claim bound %q, want %q", claimed.ID, view.ID)
	}
	if !claimed.Paired || claimed.TenantID == nil || *claimed.TenantID != "tenant-a" {
		t.Fatalf("claim did not pair the agent: %+v", claimed)
	}
	if claimed.DisplayName != "Dock Camera Hub" {
		t.Fatalf("display name = %q", claimed.DisplayName)
	}
	if claimed.SiteID == nil || *claimed.SiteID != "site-3" {
		t.Fatalf("site = %v, want site-3", claimed.SiteID)
	}
}

func TestClaim_CodeIsCaseInsensitive(t *testing.T) {
	pairingSvc, agentSvc, _ := newPairingFixture(t)
	ctx := context.Background()

	view, err := agentSvc.Register(ctx, RegisterRequest{})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	session, err := pairingSvc.Issue(ctx, view.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	typed := "  " + lower(session.Code) + " "
	if _, err := pairingSvc.Claim(ctx, ClaimCodeRequest{Code: typed}); err != nil {
		t.Fatalf("claim with lowercased padded code: %v", err)
	}
}

func TestClaim_SecondUseFails(t *testing.T) {
	pairingSvc, agentSvc, _ := newPairingFixture(t)
	ctx := context.Background()

	view, err := agentSvc.Register(ctx, RegisterRequest{})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	session, err := pairingSvc.Issue(ctx, view.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := pairingSvc.Claim(ctx, ClaimCodeRequest{Code: session.Code, TenantID: "tenant-a"}); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	_, err = pairingSvc.Claim(ctx, ClaimCodeRequest{Code: session.Code, TenantID: "tenant-b"})
	if !errors.Is(err, ErrCodeUsed) {
		t.Fatalf("second claim: got %v, want ErrCodeUsed", err)
	}
}

func TestClaim_UnknownCode(t *testing.T) {
	pairingSvc, _, _ := newPairingFixture(t)

	_, err := pairingSvc.Claim(context.Background(), ClaimCodeRequest{Code: "ZZZZ-ZZZZ"})
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("got %v, want ErrInvalidCode", err)
	}
}

func TestClaim_ExpiredCode(t *testing.T) {
	pairingSvc, agentSvc, pairingRepo := newPairingFixture(t)
	ctx := context.Background()

	view, err := agentSvc.Register(ctx, RegisterRequest{})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	// Plant an already-expired session directly in the store.
	issued := time.Now().UTC().Add(-time.Hour)
	session := &model.PairingSession{
		Code:      "AAAA-BBBB",
		AgentID:   view.ID,
		CreatedAt: issued,
		ExpiresAt: issued.Add(10 * time.Minute),
	}
	if err := pairingRepo.Create(ctx, session); err != nil {
		t.Fatalf("plant session: %v", err)
	}

	_, err = pairingSvc.Claim(ctx, ClaimCodeRequest{Code: "AAAA-BBBB"})
	if !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("got %v, want ErrCodeExpired", err)
	}
}

func lower(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'A' && c <= 'Z' {
			out[i] = c + ('a' - 'A')
		}
	}
	return string(out)
}
