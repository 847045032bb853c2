package giveaway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/mickeymth28-del/mickey-bot/internal/audit"
	"github.com/mickeymth28-del/mickey-bot/internal/confstore"
	"github.com/mickeymth28-del/mickey-bot/internal/scheduler"

	"go.uber.org/zap"
)

const (
	namespaceGiveaways = "giveaways"
	namespaceSettings  = "giveaway-settings"
)

// Announcer is the presentation collaborator: it renders the public
// announcement surface and winner notifications. Every method is best-effort
// from the service's point of view except PostAnnouncement, whose message id
// becomes the record's locator and is therefore required.
type Announcer interface {
	PostAnnouncement(ctx context.Context, rec Record) (messageID string, err error)
	RegisterJoinSignal(ctx context.Context, channelID, messageID, signal string) error
	UpdateAnnouncement(ctx context.Context, rec Record) error
	AnnounceWinners(ctx context.Context, rec Record, winners []string) error
	NotifyWinner(ctx context.Context, userID string, rec Record) error
}

// Service orchestrates the giveaway lifecycle: creation, scheduled and manual
// completion, reroll, deletion, and participation events. All read-modify-write
// cycles on the giveaways namespace run under one mutex; network side effects
// happen after the persisted write, outside the critical section, so a slow
// Discord call can never cause a lost update between concurrent handlers.
type Service struct {
	mu         sync.Mutex
	store      *confstore.Store
	sched      *scheduler.Scheduler
	announcer  Announcer
	audit      *audit.Logger
	logger     *zap.Logger
	rng        *rand.Rand
	defaults   Settings
	maxWinners int
}

// NewService builds the controller. maxWinners is the operator-configured
// winner cap; values outside [1, MaxWinners] fall back to the hard limit.
func NewService(store *confstore.Store, sched *scheduler.Scheduler, announcer Announcer, auditLogger *audit.Logger, logger *zap.Logger, defaults Settings, maxWinners int) *Service {
	if maxWinners <= 0 || maxWinners > MaxWinners {
		maxWinners = MaxWinners
	}
	return &Service{
		store:      store,
		sched:      sched,
		announcer:  announcer,
		audit:      auditLogger,
		logger:     logger,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		defaults:   defaults,
		maxWinners: maxWinners,
	}
}

// Create builds and persists a new giveaway, posts its announcement, seeds the
// join reaction, and schedules completion. The returned record carries the id
// operators use for end/reroll/delete.
func (s *Service) Create(ctx context.Context, scopeID, channelID, prize string, winners int, duration time.Duration) (Record, error) {
	if winners > s.maxWinners {
		return Record{}, fmt.Errorf("%w: winners must be between 1 and %d", ErrInvalidParameter, s.maxWinners)
	}
	now := s.sched.Clock().Now()
	rec, err := NewRecord(scopeID, channelID, prize, winners, duration, now, s.SettingsFor(scopeID))
	if err != nil {
		return Record{}, err
	}

	messageID, err := s.announcer.PostAnnouncement(ctx, rec)
	if err != nil {
		return Record{}, fmt.Errorf("post announcement: %w", err)
	}
	rec.MessageID = messageID
	if err := s.announcer.RegisterJoinSignal(ctx, rec.ChannelID, rec.MessageID, rec.JoinSignal); err != nil {
		s.logger.Warn("join signal registration failed", zap.String("giveaway_id", rec.ID), zap.Error(err))
	}

	s.mu.Lock()
	records := s.loadRecords()
	records[rec.ID] = rec
	s.saveRecords(records)
	s.mu.Unlock()

	s.scheduleCompletion(rec)
	s.audit.Log(ctx, audit.LevelInfo, scopeID, "", "giveaway_created",
		fmt.Sprintf("id=%s prize=%q winners=%d ends_in=%s", rec.ID, prize, winners, duration))
	return rec, nil
}

// Complete ends the giveaway, draws winners, and announces the result. It is
// idempotent: an unknown id or an already-ended record returns without side
// effects, so a timer firing after a manual end is harmless.
func (s *Service) Complete(ctx context.Context, id string) {
	s.mu.Lock()
	records := s.loadRecords()
	rec, ok := records[id]
	if !ok || !rec.MarkEnded() {
		s.mu.Unlock()
		return
	}
	records[id] = rec
	s.saveRecords(records)
	winners := rec.DrawWinners(s.rng)
	s.mu.Unlock()

	if err := s.announcer.UpdateAnnouncement(ctx, rec); err != nil {
		s.logger.Warn("terminal announcement update failed", zap.String("giveaway_id", id), zap.Error(err))
	}
	if err := s.announcer.AnnounceWinners(ctx, rec, winners); err != nil {
		s.logger.Warn("winner announcement failed", zap.String("giveaway_id", id), zap.Error(err))
	}
	for _, userID := range winners {
		if err := s.announcer.NotifyWinner(ctx, userID, rec); err != nil {
			s.logger.Warn("winner notification failed", zap.String("giveaway_id", id), zap.String("user_id", userID), zap.Error(err))
		}
	}

	s.audit.Log(ctx, audit.LevelInfo, rec.ScopeID, "", "giveaway_completed",
		fmt.Sprintf("id=%s participants=%d winners=%d", id, len(rec.Participants), len(winners)))
}

// ForceEnd completes a running giveaway ahead of its deadline.
func (s *Service) ForceEnd(ctx context.Context, id string) error {
	s.mu.Lock()
	records := s.loadRecords()
	rec, ok := records[id]
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if rec.Ended {
		return ErrAlreadyEnded
	}

	s.sched.Cancel(id)
	s.Complete(ctx, id)
	s.audit.Log(ctx, audit.LevelWarn, rec.ScopeID, "", "giveaway_forced", "id="+id)
	return nil
}

// Reroll draws and announces a fresh winner set for an ended giveaway. The
// draw is independent of earlier ones and may repeat previous winners; the
// record itself is not mutated.
func (s *Service) Reroll(ctx context.Context, id string) ([]string, error) {
	s.mu.Lock()
	records := s.loadRecords()
	rec, ok := records[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if !rec.Ended {
		s.mu.Unlock()
		return nil, ErrNotEnded
	}
	if len(rec.Participants) == 0 {
		s.mu.Unlock()
		return nil, ErrNoParticipants
	}
	winners := rec.DrawWinners(s.rng)
	s.mu.Unlock()

	if err := s.announcer.AnnounceWinners(ctx, rec, winners); err != nil {
		s.logger.Warn("reroll announcement failed", zap.String("giveaway_id", id), zap.Error(err))
	}
	s.audit.Log(ctx, audit.LevelInfo, rec.ScopeID, "", "giveaway_rerolled",
		fmt.Sprintf("id=%s winners=%d", id, len(winners)))
	return winners, nil
}

// Delete removes the record unconditionally, ended or not, and cancels any
// pending completion so the timer cannot fire for a vanished giveaway.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.sched.Cancel(id)

	s.mu.Lock()
	records := s.loadRecords()
	rec, ok := records[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(records, id)
	s.saveRecords(records)
	s.mu.Unlock()

	s.audit.Log(ctx, audit.LevelWarn, rec.ScopeID, "", "giveaway_deleted", "id="+id)
	return nil
}

// List returns every record for the scope, ended or not, in no particular
// order.
func (s *Service) List(scopeID string) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.loadRecords()
	var out []Record
	for _, rec := range records {
		if rec.ScopeID == scopeID {
			out = append(out, rec)
		}
	}
	return out
}

// Recover reschedules completion for every open giveaway after a restart.
// Records whose deadline passed while the process was down are scheduled with
// zero delay and therefore complete immediately.
func (s *Service) Recover(ctx context.Context) int {
	s.mu.Lock()
	records := s.loadRecords()
	s.mu.Unlock()

	scheduled := 0
	for _, rec := range records {
		if rec.Ended {
			continue
		}
		s.scheduleCompletion(rec)
		scheduled++
	}
	if scheduled > 0 {
		s.logger.Info("giveaway recovery complete", zap.Int("rescheduled", scheduled))
	}
	_ = ctx
	return scheduled
}

// SettingsFor returns the scope's defaults for new giveaways, falling back to
// the process-wide configuration.
func (s *Service) SettingsFor(scopeID string) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make(map[string]Settings)
	s.store.Load(namespaceSettings, &all)
	settings, ok := all[scopeID]
	if !ok {
		return s.defaults
	}
	if settings.JoinSignal == "" {
		settings.JoinSignal = s.defaults.JoinSignal
	}
	if settings.Color == 0 {
		settings.Color = s.defaults.Color
	}
	return settings
}

// UpdateSettings stores new per-scope defaults. Existing records keep the
// snapshot taken at their creation. The read-modify-write runs under the
// service mutex like every other namespace cycle; command handlers arrive on
// separate goroutines.
func (s *Service) UpdateSettings(scopeID string, settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make(map[string]Settings)
	s.store.Load(namespaceSettings, &all)
	all[scopeID] = settings
	s.store.Save(namespaceSettings, all)
}

func (s *Service) scheduleCompletion(rec Record) {
	id := rec.ID
	delay := rec.EndsIn(s.sched.Clock().Now())
	s.sched.Schedule(id, delay, func() {
		s.Complete(context.Background(), id)
	})
}

// loadRecords and saveRecords must be called with s.mu held.
func (s *Service) loadRecords() map[string]Record {
	records := make(map[string]Record)
	s.store.Load(namespaceGiveaways, &records)
	for id, rec := range records {
		rec.ID = id
		records[id] = rec
	}
	return records
}

func (s *Service) saveRecords(records map[string]Record) {
	s.store.Save(namespaceGiveaways, records)
}
