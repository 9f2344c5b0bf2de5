package engagement

import (
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

type key struct {
	guildID    snowflake.ID
	giveawayID int64
}

// Registry owns one Tracker per open giveaway and routes guild events to
// every tracker of that guild, so concurrent windows never share counters.
type Registry struct {
	mu       sync.RWMutex
	trackers map[key]*Tracker
}

func NewRegistry() *Registry {
	return &Registry{trackers: make(map[key]*Tracker)}
}

// Open creates a fresh tracker for the giveaway, replacing any previous one.
func (r *Registry) Open(guildID snowflake.ID, giveawayID int64) *Tracker {
	t := NewTracker()

	r.mu.Lock()
	r.trackers[key{guildID, giveawayID}] = t
	r.mu.Unlock()
	return t
}

func (r *Registry) Get(guildID snowflake.ID, giveawayID int64) (*Tracker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.trackers[key{guildID, giveawayID}]
	return t, ok
}

// Close drops the giveaway's tracker.
func (r *Registry) Close(guildID snowflake.ID, giveawayID int64) {
	r.mu.Lock()
	delete(r.trackers, key{guildID, giveawayID})
	r.mu.Unlock()
}

// Len returns the number of open trackers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.trackers)
}

// RecordMessage counts a non-bot message in every open window of the guild.
func (r *Registry) RecordMessage(guildID, userID snowflake.ID) {
	for _, t := range r.guildTrackers(guildID) {
		t.RecordMessage(userID)
	}
}

// RecordVoiceState applies a voice state change. A nil channel means "not
// in voice". Moving between channels keeps the session open.
func (r *Registry) RecordVoiceState(guildID, userID snowflake.ID, prev, next *snowflake.ID, at time.Time) {
	joined := prev == nil && next != nil
	left := prev != nil && next == nil
	if !joined && !left {
		return
	}

	for _, t := range r.guildTrackers(guildID) {
		if joined {
			t.RecordVoiceJoin(userID, at)
		} else {
			t.RecordVoiceLeave(userID, at)
		}
	}
}

func (r *Registry) guildTrackers(guildID snowflake.ID) []*Tracker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Tracker
	for k, t := range r.trackers {
		if k.guildID == guildID {
			out = append(out, t)
		}
	}
	return out
}
