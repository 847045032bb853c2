package giveaway

import (
	"context"

	"go.uber.org/zap"
)

// Participation event adapter. Raw platform reaction events arrive here as
// plain data (locator, signal, user); the bot layer has already filtered out
// the bot's own reactions. Records are matched by announcement locator, never
// by id. Upstream delivery is neither exactly-once nor ordered, which is why
// both handlers reduce to idempotent set operations.

// HandleSignalAdded enters userID into the giveaway attached to the message,
// if one exists, is still open, and the reacted signal is its join signal.
// The persisted participant set is authoritative; the visible counter on the
// announcement is refreshed best-effort afterwards.
func (s *Service) HandleSignalAdded(ctx context.Context, channelID, messageID, signal, userID string) {
	s.applyParticipation(ctx, channelID, messageID, signal, userID, true)
}

// HandleSignalRemoved is the symmetric withdrawal path.
func (s *Service) HandleSignalRemoved(ctx context.Context, channelID, messageID, signal, userID string) {
	s.applyParticipation(ctx, channelID, messageID, signal, userID, false)
}

func (s *Service) applyParticipation(ctx context.Context, channelID, messageID, signal, userID string, add bool) {
	s.mu.Lock()
	records := s.loadRecords()
	rec, ok := findByLocator(records, channelID, messageID)
	if !ok || rec.Ended || rec.JoinSignal != signal {
		s.mu.Unlock()
		return
	}

	var changed bool
	if add {
		changed = rec.AddParticipant(userID)
	} else {
		changed = rec.RemoveParticipant(userID)
	}
	if !changed {
		s.mu.Unlock()
		return
	}
	records[rec.ID] = rec
	s.saveRecords(records)
	s.mu.Unlock()

	if err := s.announcer.UpdateAnnouncement(ctx, rec); err != nil {
		s.logger.Warn("entry counter update failed", zap.String("giveaway_id", rec.ID), zap.Error(err))
	}
}

func findByLocator(records map[string]Record, channelID, messageID string) (Record, bool) {
	for _, rec := range records {
		if rec.ChannelID == channelID && rec.MessageID == messageID {
			return rec, true
		}
	}
	return Record{}, false
}
