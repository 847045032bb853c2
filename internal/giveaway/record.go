package giveaway

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxWinners bounds the number of winners an operator may request.
const MaxWinners = 50

var (
	ErrInvalidParameter = errors.New("invalid giveaway parameter")
	ErrNotFound         = errors.New("giveaway not found")
	ErrAlreadyEnded     = errors.New("giveaway already ended")
	ErrNotEnded         = errors.New("giveaway not ended")
	ErrNoParticipants   = errors.New("giveaway has no participants")
)

// Record is one giveaway as persisted in the "giveaways" namespace, keyed by
// ID. The (ChannelID, MessageID) pair locates the single announcement post the
// giveaway is attached to; reaction events are matched by that pair, never by
// ID. Timestamps are Unix milliseconds.
type Record struct {
	ID           string   `json:"-"`
	ScopeID      string   `json:"scopeId"`
	ChannelID    string   `json:"channelId"`
	MessageID    string   `json:"messageId"`
	Prize        string   `json:"prize"`
	Winners      int      `json:"winners"`
	CreatedAt    int64    `json:"createdAt"`
	EndsAt       int64    `json:"endsAt"`
	Participants []string `json:"participants"`
	Ended        bool     `json:"ended"`
	Color        int      `json:"presentationColor"`
	JoinSignal   string   `json:"joinSignal"`
}

// Settings are the per-scope defaults applied to new giveaways at creation
// time. Changing them never touches existing records.
type Settings struct {
	Color      int    `json:"presentationColor"`
	JoinSignal string `json:"joinSignal"`
}

// NewRecord validates the creation parameters and builds an open record.
// The ID keeps the operator-visible scope+timestamp shape and carries a short
// random suffix so two creations in the same scope and millisecond cannot
// collide.
func NewRecord(scopeID, channelID, prize string, winners int, duration time.Duration, now time.Time, settings Settings) (Record, error) {
	if winners < 1 || winners > MaxWinners {
		return Record{}, fmt.Errorf("%w: winners must be between 1 and %d", ErrInvalidParameter, MaxWinners)
	}
	if duration <= 0 {
		return Record{}, fmt.Errorf("%w: duration must be positive", ErrInvalidParameter)
	}

	created := now.UnixMilli()
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return Record{
		ID:           fmt.Sprintf("%s-%d-%s", scopeID, created, suffix),
		ScopeID:      scopeID,
		ChannelID:    channelID,
		Prize:        prize,
		Winners:      winners,
		CreatedAt:    created,
		EndsAt:       now.Add(duration).UnixMilli(),
		Participants: []string{},
		Color:        settings.Color,
		JoinSignal:   settings.JoinSignal,
	}, nil
}

// AddParticipant appends userID to the entry set. It is a no-op on a
// duplicate and on an ended record, which makes replayed reaction events safe.
func (r *Record) AddParticipant(userID string) bool {
	if r.Ended || r.HasParticipant(userID) {
		return false
	}
	r.Participants = append(r.Participants, userID)
	return true
}

// RemoveParticipant drops userID from the entry set; no-op when absent.
func (r *Record) RemoveParticipant(userID string) bool {
	for i, id := range r.Participants {
		if id == userID {
			r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Record) HasParticipant(userID string) bool {
	for _, id := range r.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// MarkEnded flips the record to its terminal state. The return value reports
// whether this call performed the transition; a second call is a no-op.
func (r *Record) MarkEnded() bool {
	if r.Ended {
		return false
	}
	r.Ended = true
	return true
}

// DrawWinners picks min(Winners, len(Participants)) distinct entrants
// uniformly at random without replacement. Participants is not mutated.
func (r *Record) DrawWinners(rng *rand.Rand) []string {
	if len(r.Participants) == 0 {
		return nil
	}
	pool := make([]string, len(r.Participants))
	copy(pool, r.Participants)
	rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	count := r.Winners
	if count > len(pool) {
		count = len(pool)
	}
	return pool[:count]
}

// EndsIn reports how long until the deadline; zero or negative means due.
func (r *Record) EndsIn(now time.Time) time.Duration {
	return time.UnixMilli(r.EndsAt).Sub(now)
}
