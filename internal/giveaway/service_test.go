package giveaway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mickeymth28-del/mickey-bot/internal/audit"
	"github.com/mickeymth28-del/mickey-bot/internal/confstore"
	"github.com/mickeymth28-del/mickey-bot/internal/scheduler"
	"github.com/mickeymth28-del/mickey-bot/internal/storage"

	"go.uber.org/zap"
)

type fakeTimer struct {
	stopped bool
	fires   time.Time
	fn      func()
}

func (t *fakeTimer) Stop() bool {
	was := t.stopped
	t.stopped = true
	return !was
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) AfterFunc(d time.Duration, fn func()) scheduler.Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{fires: f.now.Add(d), fn: fn}
	f.timers = append(f.timers, t)
	return t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	var due, rest []*fakeTimer
	for _, t := range f.timers {
		if t.stopped {
			continue
		}
		if !t.fires.After(f.now) {
			due = append(due, t)
		} else {
			rest = append(rest, t)
		}
	}
	f.timers = rest
	f.mu.Unlock()
	for _, t := range due {
		t.fn()
	}
}

type fakeAnnouncer struct {
	mu         sync.Mutex
	posts      int
	failPost   bool
	signals    []string
	updates    []Record
	winnerSets [][]string
	winnerRecs []Record
	notified   []string
}

func (a *fakeAnnouncer) PostAnnouncement(ctx context.Context, rec Record) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failPost {
		return "", errors.New("boom")
	}
	a.posts++
	return fmt.Sprintf("m%d", a.posts), nil
}

func (a *fakeAnnouncer) RegisterJoinSignal(ctx context.Context, channelID, messageID, signal string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signals = append(a.signals, signal)
	return nil
}

func (a *fakeAnnouncer) UpdateAnnouncement(ctx context.Context, rec Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.updates = append(a.updates, rec)
	return nil
}

func (a *fakeAnnouncer) AnnounceWinners(ctx context.Context, rec Record, winners []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.winnerSets = append(a.winnerSets, winners)
	a.winnerRecs = append(a.winnerRecs, rec)
	return nil
}

func (a *fakeAnnouncer) NotifyWinner(ctx context.Context, userID string, rec Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.notified = append(a.notified, userID)
	return nil
}

func (a *fakeAnnouncer) winnerAnnouncements() [][]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([][]string, len(a.winnerSets))
	copy(out, a.winnerSets)
	return out
}

func newTestService(t *testing.T) (*Service, *fakeClock, *fakeAnnouncer, *confstore.Store) {
	return newTestServiceWithCap(t, MaxWinners)
}

func newTestServiceWithCap(t *testing.T, maxWinners int) (*Service, *fakeClock, *fakeAnnouncer, *confstore.Store) {
	t.Helper()

	store, err := confstore.New(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("confstore: %v", err)
	}
	events, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	t.Cleanup(events.Close)
	if err := events.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	sched := scheduler.New()
	clock := &fakeClock{now: time.UnixMilli(1700000000000)}
	sched.WithClock(clock)

	announcer := &fakeAnnouncer{}
	svc := NewService(store, sched, announcer, audit.NewLogger(events, zap.NewNop()), zap.NewNop(), testSettings, maxWinners)
	return svc, clock, announcer, store
}

func TestCreateSchedulesAndRegistersSignal(t *testing.T) {
	svc, _, announcer, _ := newTestService(t)

	rec, err := svc.Create(context.Background(), "G1", "c1", "X", 1, 30*time.Second)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.MessageID != "m1" {
		t.Fatalf("expected locator from announcement post, got %q", rec.MessageID)
	}
	if len(announcer.signals) != 1 || announcer.signals[0] != testSettings.JoinSignal {
		t.Fatalf("join signal not registered: %v", announcer.signals)
	}
	if got := svc.List("G1"); len(got) != 1 || got[0].ID != rec.ID {
		t.Fatalf("record not listed after create: %v", got)
	}
}

func TestCreateRejectsBadParameters(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	if _, err := svc.Create(context.Background(), "G1", "c1", "X", 0, time.Minute); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if _, err := svc.Create(context.Background(), "G1", "c1", "X", 51, time.Minute); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if _, err := svc.Create(context.Background(), "G1", "c1", "X", 1, 0); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if got := svc.List("G1"); len(got) != 0 {
		t.Fatalf("invalid creations persisted: %v", got)
	}
}

func TestCreateFailsWhenAnnouncementCannotBePosted(t *testing.T) {
	svc, _, announcer, _ := newTestService(t)
	announcer.failPost = true

	if _, err := svc.Create(context.Background(), "G1", "c1", "X", 1, time.Minute); err == nil {
		t.Fatalf("expected error when announcement post fails")
	}
	if got := svc.List("G1"); len(got) != 0 {
		t.Fatalf("record persisted without locator: %v", got)
	}
}

// Scenario A: two entrants, timer fires, exactly one wins.
func TestScheduledCompletionDrawsWinner(t *testing.T) {
	svc, clock, announcer, _ := newTestService(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, "G1", "c1", "X", 1, 30*time.Second)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	svc.HandleSignalAdded(ctx, rec.ChannelID, rec.MessageID, rec.JoinSignal, "u1")
	svc.HandleSignalAdded(ctx, rec.ChannelID, rec.MessageID, rec.JoinSignal, "u2")

	clock.Advance(30 * time.Second)

	sets := announcer.winnerAnnouncements()
	if len(sets) != 1 {
		t.Fatalf("expected 1 winner announcement, got %d", len(sets))
	}
	if len(sets[0]) != 1 || (sets[0][0] != "u1" && sets[0][0] != "u2") {
		t.Fatalf("expected one of the entrants to win, got %v", sets[0])
	}
	got := svc.List("G1")
	if len(got) != 1 || !got[0].Ended {
		t.Fatalf("expected ended record after completion: %v", got)
	}
	if len(announcer.notified) != 1 {
		t.Fatalf("expected 1 winner notification, got %d", len(announcer.notified))
	}
}

// Scenario B: nobody entered, completion takes the no-winners path.
func TestCompletionWithoutParticipants(t *testing.T) {
	svc, clock, announcer, _ := newTestService(t)

	if _, err := svc.Create(context.Background(), "G1", "c1", "X", 2, time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}
	clock.Advance(time.Minute)

	sets := announcer.winnerAnnouncements()
	if len(sets) != 1 || len(sets[0]) != 0 {
		t.Fatalf("expected empty winner set, got %v", sets)
	}
	if len(announcer.notified) != 0 {
		t.Fatalf("nobody should be notified, got %v", announcer.notified)
	}
	got := svc.List("G1")
	if len(got) != 1 || !got[0].Ended || len(got[0].Participants) != 0 {
		t.Fatalf("unexpected record state: %+v", got)
	}
}

// Scenario C: deletion before the deadline removes the record and the timer.
func TestDeleteCancelsPendingCompletion(t *testing.T) {
	svc, clock, announcer, _ := newTestService(t)

	rec, err := svc.Create(context.Background(), "G1", "c1", "X", 1, time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(context.Background(), rec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := svc.List("G1"); len(got) != 0 {
		t.Fatalf("expected empty list after delete, got %v", got)
	}

	clock.Advance(time.Hour)
	if sets := announcer.winnerAnnouncements(); len(sets) != 0 {
		t.Fatalf("completion fired for deleted giveaway: %v", sets)
	}
}

// Scenario D: a deadline missed while the process was down completes on
// recovery instead of being dropped.
func TestRecoverCompletesOverdueGiveaway(t *testing.T) {
	svc, clock, announcer, store := newTestService(t)

	overdue := Record{
		ScopeID:      "G1",
		ChannelID:    "c1",
		MessageID:    "m9",
		Prize:        "X",
		Winners:      1,
		CreatedAt:    clock.Now().Add(-time.Minute).UnixMilli(),
		EndsAt:       clock.Now().Add(-10 * time.Second).UnixMilli(),
		Participants: []string{"u1"},
		JoinSignal:   testSettings.JoinSignal,
	}
	store.Save("giveaways", map[string]Record{"G1-123-abc": overdue})

	if n := svc.Recover(context.Background()); n != 1 {
		t.Fatalf("expected 1 rescheduled giveaway, got %d", n)
	}
	clock.Advance(0)

	sets := announcer.winnerAnnouncements()
	if len(sets) != 1 || len(sets[0]) != 1 || sets[0][0] != "u1" {
		t.Fatalf("expected immediate completion with winner u1, got %v", sets)
	}
	got := svc.List("G1")
	if len(got) != 1 || !got[0].Ended {
		t.Fatalf("expected ended record after recovery: %v", got)
	}
}

func TestRecoverSkipsEndedRecords(t *testing.T) {
	svc, _, _, store := newTestService(t)

	ended := Record{ScopeID: "G1", ChannelID: "c1", MessageID: "m1", Winners: 1, Ended: true}
	store.Save("giveaways", map[string]Record{"G1-1-a": ended})

	if n := svc.Recover(context.Background()); n != 0 {
		t.Fatalf("expected nothing rescheduled, got %d", n)
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	svc, _, announcer, _ := newTestService(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, "G1", "c1", "X", 1, time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	svc.HandleSignalAdded(ctx, rec.ChannelID, rec.MessageID, rec.JoinSignal, "u1")

	svc.Complete(ctx, rec.ID)
	svc.Complete(ctx, rec.ID)
	if sets := announcer.winnerAnnouncements(); len(sets) != 1 {
		t.Fatalf("expected a single announcement, got %d", len(sets))
	}
	svc.Complete(ctx, "missing")
}

func TestForceEndErrorTaxonomy(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.ForceEnd(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	rec, err := svc.Create(ctx, "G1", "c1", "X", 1, time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.ForceEnd(ctx, rec.ID); err != nil {
		t.Fatalf("force end: %v", err)
	}
	if err := svc.ForceEnd(ctx, rec.ID); !errors.Is(err, ErrAlreadyEnded) {
		t.Fatalf("expected ErrAlreadyEnded, got %v", err)
	}
}

func TestForceEndDoesNotRedraw(t *testing.T) {
	svc, clock, announcer, _ := newTestService(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, "G1", "c1", "X", 1, time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	svc.HandleSignalAdded(ctx, rec.ChannelID, rec.MessageID, rec.JoinSignal, "u1")
	if err := svc.ForceEnd(ctx, rec.ID); err != nil {
		t.Fatalf("force end: %v", err)
	}

	// the original timer must not fire a second completion
	clock.Advance(time.Hour)
	if sets := announcer.winnerAnnouncements(); len(sets) != 1 {
		t.Fatalf("expected exactly one draw, got %d", len(sets))
	}
}

func TestRerollErrorTaxonomy(t *testing.T) {
	svc, clock, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Reroll(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	empty, err := svc.Create(ctx, "G1", "c1", "X", 1, time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Reroll(ctx, empty.ID); !errors.Is(err, ErrNotEnded) {
		t.Fatalf("expected ErrNotEnded, got %v", err)
	}

	clock.Advance(time.Minute)
	if _, err := svc.Reroll(ctx, empty.ID); !errors.Is(err, ErrNoParticipants) {
		t.Fatalf("expected ErrNoParticipants, got %v", err)
	}
}

func TestRerollDrawsFreshSetWithoutMutation(t *testing.T) {
	svc, clock, _, _ := newTestService(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, "G1", "c1", "X", 1, time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	svc.HandleSignalAdded(ctx, rec.ChannelID, rec.MessageID, rec.JoinSignal, "u1")
	svc.HandleSignalAdded(ctx, rec.ChannelID, rec.MessageID, rec.JoinSignal, "u2")
	clock.Advance(time.Minute)

	winners, err := svc.Reroll(ctx, rec.ID)
	if err != nil {
		t.Fatalf("reroll: %v", err)
	}
	if len(winners) != 1 {
		t.Fatalf("expected 1 winner, got %v", winners)
	}
	got := svc.List("G1")
	if len(got) != 1 || !got[0].Ended || len(got[0].Participants) != 2 {
		t.Fatalf("reroll mutated the record: %+v", got)
	}
}

func TestDeleteUnknownID(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	if err := svc.Delete(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateHonorsConfiguredWinnerCap(t *testing.T) {
	svc, _, _, _ := newTestServiceWithCap(t, 5)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "G1", "c1", "X", 6, time.Minute); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter above the cap, got %v", err)
	}
	if _, err := svc.Create(ctx, "G1", "c1", "X", 5, time.Minute); err != nil {
		t.Fatalf("create at the cap: %v", err)
	}
}

func TestUpdateSettingsConcurrentScopes(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	const scopes = 64
	var wg sync.WaitGroup
	for i := 0; i < scopes; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			scopeID := fmt.Sprintf("G%d", i)
			svc.UpdateSettings(scopeID, Settings{Color: i + 1, JoinSignal: "⭐"})
		}(i)
	}
	wg.Wait()

	for i := 0; i < scopes; i++ {
		scopeID := fmt.Sprintf("G%d", i)
		if got := svc.SettingsFor(scopeID); got.Color != i+1 {
			t.Fatalf("settings update for %s lost: %+v", scopeID, got)
		}
	}
}

func TestSettingsSnapshotAtCreation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	svc.UpdateSettings("G1", Settings{Color: 0x123456, JoinSignal: "\U0001F381"})
	rec, err := svc.Create(ctx, "G1", "c1", "X", 1, time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.JoinSignal != "\U0001F381" || rec.Color != 0x123456 {
		t.Fatalf("scope settings not applied: %+v", rec)
	}

	// later settings changes leave the snapshot alone
	svc.UpdateSettings("G1", Settings{Color: 0x654321, JoinSignal: "⭐"})
	got := svc.List("G1")
	if len(got) != 1 || got[0].JoinSignal != "\U0001F381" {
		t.Fatalf("settings change retroactively applied: %+v", got)
	}
}
