package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/model"
	"github.com/AchrafDrissi1991/odm-demo-cloud/internal/repository"
)

func TestAgentRepository_ListKeepsRegistrationOrder(t *testing.T) {
	repo := NewAgentRepository()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		agent := &model.Agent{
			ID:           fmt.Sprintf("agent-%d", i),
			RegisteredAt: time.Now().UTC(),
		}
		if err := repo.Create(ctx, agent); err != nil {
			t.Fatalf("create %s: %v", agent.ID, err)
		}
	}

	agents, err := repo.List(ctx, repository.AgentListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(agents) != 4 {
		t.Fatalf("listed %d agents, want 4", len(agents))
	}
	for i, agent := range agents {
		if want := fmt.Sprintf("agent-%d", i); agent.ID != want {
			t.Fatalf("position %d: got %s, want %s", i, agent.ID, want)
		}
	}
}

func TestAgentRepository_ListFiltersByTenant(t *testing.T) {
	repo := NewAgentRepository()
	ctx := context.Background()

	tenantA := "tenant-a"
	tenantB := "tenant-b"

	seed := []*model.Agent{
		{ID: "agent-1", Paired: true, TenantID: &tenantA},
		{ID: "agent-2", Paired: true, TenantID: &tenantB},
		{ID: "agent-3"},
	}
	for _, agent := range seed {
		if err := repo.Create(ctx, agent); err != nil {
			t.Fatalf("create %s: %v", agent.ID, err)
		}
	}

	agents, err := repo.List(ctx, repository.AgentListFilter{TenantID: &tenantA})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(agents) != 1 || agents[0].ID != "agent-1" {
		t.Fatalf("tenant filter returned %+v", agents)
	}
}

func TestAgentRepository_TouchOnlyUpdatesLastSeen(t *testing.T) {
	repo := NewAgentRepository()
	ctx := context.Background()

	agent := &model.Agent{
		ID:           "agent-1",
		DisplayName:  "bench-unit",
		AgentVersion: "1.0.0",
	}
	if err := repo.Create(ctx, agent); err != nil {
		t.Fatalf("create: %v", err)
	}

	at := time.Now().UTC().Add(-2 * time.Second)
	if err := repo.Touch(ctx, "agent-1", at); err != nil {
		t.Fatalf("touch: %v", err)
	}

	got, err := repo.FindByID(ctx, "agent-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.LastSeenAt == nil || !got.LastSeenAt.Equal(at) {
		t.Fatalf("last seen = %v, want %v", got.LastSeenAt, at)
	}
	if got.DisplayName != "bench-unit" || got.AgentVersion != "1.0.0" {
		t.Fatalf("touch rewrote unrelated fields: %+v", got)
	}
}

func TestAgentRepository_TouchUnknownAgent(t *testing.T) {
	repo := NewAgentRepository()

	err := repo.Touch(context.Background(), "missing", time.Now().UTC())
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestAgentRepository_DuplicateCreate(t *testing.T) {
	repo := NewAgentRepository()
	ctx := context.Background()

	if err := repo.Create(ctx, &model.Agent{ID: "agent-1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := repo.Create(ctx, &model.Agent{ID: "agent-1"})
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("got %v, want ErrDuplicate", err)
	}
}

func TestAgentRepository_ReadsAreIsolated(t *testing.T) {
	repo := NewAgentRepository()
	ctx := context.Background()

	if err := repo.Create(ctx, &model.Agent{
		ID:          "agent-1",
		MachineInfo: map[string]any{"hostname": "edge-01"},
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := repo.FindByID(ctx, "agent-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	first.MachineInfo["hostname"] = "tampered"

	second, err := repo.FindByID(ctx, "agent-1")
	if err != nil {
		t.Fatalf("find again: %v", err)
	}
	if second.MachineInfo["hostname"] != "edge-01" {
		t.Fatalf("stored machine info mutated via returned copy: %v", second.MachineInfo)
	}
}
