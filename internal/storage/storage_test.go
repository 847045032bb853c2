package storage

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestAddAndListEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	events := []Event{
		{GuildID: "g1", UserID: "u1", Level: "info", Event: "giveaway_created", Details: "id=g1-1-a", CreatedAt: now.Add(-2 * time.Hour)},
		{GuildID: "g1", Level: "info", Event: "giveaway_completed", Details: "id=g1-1-a", CreatedAt: now},
		{GuildID: "g2", Level: "warn", Event: "giveaway_deleted", Details: "id=g2-1-b", CreatedAt: now},
	}
	for _, event := range events {
		if err := store.AddEvent(ctx, event); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	got, err := store.ListEvents(ctx, "g1", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events for g1, got %d", len(got))
	}
	if got[0].Event != "giveaway_completed" {
		t.Fatalf("expected newest first, got %q", got[0].Event)
	}
	if got[1].UserID != "u1" || got[1].Details != "id=g1-1-a" {
		t.Fatalf("event fields lost in roundtrip: %+v", got[1])
	}
}

func TestListEventsRespectsSince(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	old := Event{GuildID: "g1", Level: "info", Event: "giveaway_created", CreatedAt: now.Add(-48 * time.Hour)}
	fresh := Event{GuildID: "g1", Level: "info", Event: "giveaway_completed", CreatedAt: now}
	for _, event := range []Event{old, fresh} {
		if err := store.AddEvent(ctx, event); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	got, err := store.ListEvents(ctx, "g1", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Event != "giveaway_completed" {
		t.Fatalf("since filter not applied: %+v", got)
	}
}

func TestCleanupEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	old := Event{GuildID: "g1", Level: "info", Event: "giveaway_created", CreatedAt: now.AddDate(0, 0, -90)}
	fresh := Event{GuildID: "g1", Level: "info", Event: "giveaway_completed", CreatedAt: now}
	for _, event := range []Event{old, fresh} {
		if err := store.AddEvent(ctx, event); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	if err := store.CleanupEvents(ctx, 30); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	got, err := store.ListEvents(ctx, "g1", time.Unix(0, 0))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Event != "giveaway_completed" {
		t.Fatalf("expected only the fresh event to survive: %+v", got)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	if err := store.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}
