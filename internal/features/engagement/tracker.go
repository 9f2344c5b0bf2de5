// Package engagement counts message activity and voice presence for open
// giveaway windows.
package engagement

import (
	"maps"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/models"
)

// Tracker holds the counters of a single giveaway window. Safe for
// concurrent use.
type Tracker struct {
	mu           sync.Mutex
	messages     map[snowflake.ID]int
	voiceMinutes map[snowflake.ID]float64
	sessions     map[snowflake.ID]time.Time
}

func NewTracker() *Tracker {
	t := &Tracker{}
	t.Reset()
	return t
}

// Reset clears all counters and open sessions.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.messages = make(map[snowflake.ID]int)
	t.voiceMinutes = make(map[snowflake.ID]float64)
	t.sessions = make(map[snowflake.ID]time.Time)
}

// RecordMessage counts one message. Callers filter out bot authors.
func (t *Tracker) RecordMessage(userID snowflake.ID) {
	t.mu.Lock()
	t.messages[userID]++
	t.mu.Unlock()
}

// RecordVoiceJoin opens a session. A second join overwrites the first.
func (t *Tracker) RecordVoiceJoin(userID snowflake.ID, at time.Time) {
	t.mu.Lock()
	t.sessions[userID] = at
	t.mu.Unlock()
}

// RecordVoiceLeave closes the open session and credits its duration.
// Without an open session it does nothing.
func (t *Tracker) RecordVoiceLeave(userID snowflake.ID, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closeSession(userID, at)
}

// PrimeExistingPresence opens sessions for users already in voice when the
// window starts.
func (t *Tracker) PrimeExistingPresence(userIDs []snowflake.ID, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, id := range userIDs {
		t.sessions[id] = at
	}
}

// FlushOpenSessions credits users still in voice at expiry for the time since
// their last join. Users not in presentUserIDs keep whatever was already
// credited; their stale session is dropped.
func (t *Tracker) FlushOpenSessions(presentUserIDs []snowflake.ID, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, id := range presentUserIDs {
		t.closeSession(id, at)
	}
	clear(t.sessions)
}

// FlushAllSessions credits every open session up to at. Used when current
// voice presence cannot be read, so the open sessions stand in for it.
func (t *Tracker) FlushAllSessions(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id := range t.sessions {
		t.closeSession(id, at)
	}
}

// Snapshot returns the counters of one user.
func (t *Tracker) Snapshot(userID snowflake.ID) (int, float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.messages[userID], t.voiceMinutes[userID]
}

// DropSessions discards open sessions without crediting them. Used after a
// restart, when leave events during downtime were never observed.
func (t *Tracker) DropSessions() {
	t.mu.Lock()
	clear(t.sessions)
	t.mu.Unlock()
}

// Export copies the tracker state for persistence.
func (t *Tracker) Export(at time.Time) models.EngagementCounters {
	t.mu.Lock()
	defer t.mu.Unlock()

	return models.EngagementCounters{
		Messages:     maps.Clone(t.messages),
		VoiceMinutes: maps.Clone(t.voiceMinutes),
		Sessions:     maps.Clone(t.sessions),
		SavedAt:      at,
	}
}

// Restore replaces the tracker state with persisted counters.
func (t *Tracker) Restore(c models.EngagementCounters) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.messages = make(map[snowflake.ID]int, len(c.Messages))
	maps.Copy(t.messages, c.Messages)
	t.voiceMinutes = make(map[snowflake.ID]float64, len(c.VoiceMinutes))
	maps.Copy(t.voiceMinutes, c.VoiceMinutes)
	t.sessions = make(map[snowflake.ID]time.Time, len(c.Sessions))
	maps.Copy(t.sessions, c.Sessions)
}

func (t *Tracker) closeSession(userID snowflake.ID, at time.Time) {
	start, ok := t.sessions[userID]
	if !ok {
		return
	}
	delete(t.sessions, userID)

	elapsed := at.Sub(start).Minutes()
	if elapsed > 0 {
		t.voiceMinutes[userID] += elapsed
	}
}
