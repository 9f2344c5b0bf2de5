package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/models"
)

type fakeChat struct {
	mu sync.Mutex

	nextMessage   snowflake.ID
	announcements map[snowflake.ID][]models.Announcement // message id -> edits
	reactions     map[snowflake.ID][]string
	reactors      map[snowflake.ID][]snowflake.ID
	reactorsErr   map[snowflake.ID]error
	fetchFailures int // transient failures before FetchReactors succeeds
	fetchCalls    int
	editErr       error
	postErr       error
	fetchDelay    time.Duration
	members       map[snowflake.ID]bool
	memberDelay   time.Duration
	voice         []snowflake.ID
	voiceErr      error
	notifications []string
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		nextMessage:   1000,
		announcements: make(map[snowflake.ID][]models.Announcement),
		reactions:     make(map[snowflake.ID][]string),
		reactors:      make(map[snowflake.ID][]snowflake.ID),
		reactorsErr:   make(map[snowflake.ID]error),
		members:       make(map[snowflake.ID]bool),
	}
}

func (f *fakeChat) PostAnnouncement(_ context.Context, channelID snowflake.ID, a models.Announcement) (models.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return models.MessageRef{}, f.postErr
	}
	f.nextMessage++
	f.announcements[f.nextMessage] = append(f.announcements[f.nextMessage], a)
	return models.MessageRef{ChannelID: channelID, MessageID: f.nextMessage}, nil
}

func (f *fakeChat) AddReaction(_ context.Context, ref models.MessageRef, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions[ref.MessageID] = append(f.reactions[ref.MessageID], emoji)
	return nil
}

func (f *fakeChat) EditAnnouncement(_ context.Context, ref models.MessageRef, a models.Announcement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	f.announcements[ref.MessageID] = append(f.announcements[ref.MessageID], a)
	return nil
}

func (f *fakeChat) FetchReactors(_ context.Context, ref models.MessageRef, _ string) ([]snowflake.ID, error) {
	time.Sleep(f.fetchDelay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchFailures > 0 {
		f.fetchFailures--
		return nil, errors.New("gateway timeout")
	}
	if err := f.reactorsErr[ref.MessageID]; err != nil {
		return nil, err
	}
	return append([]snowflake.ID(nil), f.reactors[ref.MessageID]...), nil
}

func (f *fakeChat) ResolveMember(_ context.Context, _ snowflake.ID, userID snowflake.ID) (*models.Member, error) {
	time.Sleep(f.memberDelay)
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.members[userID] {
		return nil, ErrMemberNotFound
	}
	return &models.Member{UserID: userID, Username: "user"}, nil
}

func (f *fakeChat) VoiceOccupants(context.Context, snowflake.ID) ([]snowflake.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.voiceErr != nil {
		return nil, f.voiceErr
	}
	return append([]snowflake.ID(nil), f.voice...), nil
}

func (f *fakeChat) SendNotification(_ context.Context, _ snowflake.ID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, content)
	return nil
}

func (f *fakeChat) setReactors(msg snowflake.ID, users ...snowflake.ID) {
	f.mu.Lock()
	f.reactors[msg] = users
	f.mu.Unlock()
}

func (f *fakeChat) setReactorsErr(msg snowflake.ID, err error) {
	f.mu.Lock()
	f.reactorsErr[msg] = err
	f.mu.Unlock()
}

func (f *fakeChat) edits(msg snowflake.ID) []models.Announcement {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Announcement(nil), f.announcements[msg]...)
}

func (f *fakeChat) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.notifications...)
}

func (f *fakeChat) setVoiceErr(err error) {
	f.mu.Lock()
	f.voiceErr = err
	f.mu.Unlock()
}
