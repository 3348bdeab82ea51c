package service

import (
	"testing"
	"time"
)

func TestOnline_NeverSeen(t *testing.T) {
	t.Parallel()
	if Online(nil, time.Now().UTC()) {
		t.Fatal("agent without last-seen must be offline")
	}
}

func TestOnline_WithinWindow(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()

	fresh := now.Add(-time.Second)
	if !Online(&fresh, now) {
		t.Fatal("agent seen 1s ago must be online")
	}

	edge := now.Add(-OnlineTTL + time.Millisecond)
	if !Online(&edge, now) {
		t.Fatal("agent just inside the window must be online")
	}
}

func TestOnline_AtAndPastBoundary(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()

	exact := now.Add(-OnlineTTL)
	if Online(&exact, now) {
		t.Fatal("agent seen exactly OnlineTTL ago must be offline")
	}

	stale := now.Add(-time.Hour)
	if Online(&stale, now) {
		t.Fatal("agent seen an hour ago must be offline")
	}
}

func TestOnline_ZeroAge(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	if !Online(&now, now) {
		t.Fatal("agent seen right now must be online")
	}
}

func TestOnline_FutureLastSeen(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	future := now.Add(time.Minute)
	if Online(&future, now) {
		t.Fatal("future last-seen (clock skew) must not count as online")
	}
}
