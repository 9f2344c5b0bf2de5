package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/rs/zerolog"

	apperrors "github.com/roblox669900-cpu/giveaway-bot/internal/common/errors"
	"github.com/roblox669900-cpu/giveaway-bot/internal/common/logger"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/engagement"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/models"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/repository"
	"github.com/roblox669900-cpu/giveaway-bot/internal/metrics"
	"github.com/roblox669900-cpu/giveaway-bot/internal/utils/random"
)

var errShuttingDown = errors.New("giveaway engine is shutting down")

type Option func(*Engine)

func WithEntryEmoji(emoji string) Option {
	return func(e *Engine) { e.emoji = emoji }
}

func WithRefreshInterval(d time.Duration) Option {
	return func(e *Engine) { e.refreshInterval = d }
}

func WithResolveRetries(n int) Option {
	return func(e *Engine) { e.resolveRetries = n }
}

// WithRetryBackoff bounds the delay between reactor fetch attempts.
func WithRetryBackoff(minDelay, maxDelay time.Duration) Option {
	return func(e *Engine) {
		e.retryMin = minDelay
		e.retryMax = maxDelay
	}
}

func WithMaxConcurrentResolutions(n int) Option {
	return func(e *Engine) { e.maxResolutions = n }
}

// WithSource replaces the winner draw randomness, e.g. with a seeded source.
func WithSource(src random.Source) Option {
	return func(e *Engine) { e.src = src }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithOutcomeHook registers fn to run after every terminal transition.
func WithOutcomeHook(fn func(models.Outcome)) Option {
	return func(e *Engine) { e.hooks = append(e.hooks, fn) }
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// lifecycle is the in-process handle of one running giveaway.
type lifecycle struct {
	cancel context.CancelFunc
	// set by whichever of expiry or cancellation gets there first
	claimed atomic.Bool
	// serializes countdown edits with the final edit
	displayMu sync.Mutex
}

// Engine drives giveaways from announcement to resolution. Each giveaway has
// its own countdown and expiry goroutines and its own engagement tracker, so
// any number of giveaways may run at once.
type Engine struct {
	ctx      context.Context
	cancel   context.CancelFunc
	repo     repository.GiveawayRepository
	chat     ChatClient
	trackers *engagement.Registry
	logger   zerolog.Logger

	emoji           string
	refreshInterval time.Duration
	resolveRetries  int
	retryMin        time.Duration
	retryMax        time.Duration
	maxResolutions  int
	src             random.Source
	now             func() time.Time
	hooks           []func(models.Outcome)

	sem        chan struct{}
	mu         sync.Mutex
	lifecycles map[int64]*lifecycle
	closed     bool
	wg         sync.WaitGroup
}

func NewEngine(repo repository.GiveawayRepository, chat ChatClient, trackers *engagement.Registry, opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		ctx:             ctx,
		cancel:          cancel,
		repo:            repo,
		chat:            chat,
		trackers:        trackers,
		logger:          logger.Component("giveaway_engine"),
		emoji:           DefaultEntryEmoji,
		refreshInterval: DefaultRefreshInterval,
		resolveRetries:  DefaultResolveRetries,
		retryMin:        DefaultRetryMin,
		retryMax:        DefaultRetryMax,
		maxResolutions:  DefaultMaxConcurrentResolutions,
		now:             time.Now,
		lifecycles:      make(map[int64]*lifecycle),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.src == nil {
		e.src = random.NewSecure()
	}
	if e.maxResolutions < 1 {
		e.maxResolutions = 1
	}
	if e.resolveRetries < 1 {
		e.resolveRetries = 1
	}
	e.sem = make(chan struct{}, e.maxResolutions)
	return e
}

func (e *Engine) EntryEmoji() string {
	return e.emoji
}

// Running returns the number of giveaways with live goroutines.
func (e *Engine) Running() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.lifecycles)
}

// Start validates req, posts the announcement and opens the entry window.
func (e *Engine) Start(ctx context.Context, req CreateRequest) (*models.Giveaway, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if e.isClosed() {
		return nil, apperrors.Wrap(errShuttingDown, apperrors.ErrCodeConflict, "Giveaways cannot be started right now")
	}

	now := e.now()
	g := &models.Giveaway{
		GuildID:      req.GuildID,
		HostID:       req.HostID,
		Prize:        req.Prize,
		ImageURL:     req.ImageURL,
		WinnerCount:  req.WinnerCount,
		Requirements: req.Requirements,
		Message:      models.MessageRef{ChannelID: req.ChannelID},
		StartedAt:    now,
		EndsAt:       now.Add(req.Duration),
		Status:       models.StatusAnnounced,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.repo.Create(ctx, g); err != nil {
		return nil, apperrors.NewStoreError("create giveaway", err)
	}
	log := e.logger.With().Int64("giveaway_id", g.ID).Str("guild_id", g.GuildID.String()).Logger()

	// the window starts now: fresh counters, current voice occupants primed
	tracker := e.trackers.Open(g.GuildID, g.ID)
	if occupants, err := e.chat.VoiceOccupants(ctx, g.GuildID); err != nil {
		log.Warn().Err(err).Msg("Failed to read voice occupants, pre-existing presence not primed")
	} else {
		tracker.PrimeExistingPresence(occupants, now)
	}

	ref, err := e.chat.PostAnnouncement(ctx, req.ChannelID, RenderAnnouncement(g, now, e.emoji))
	if err != nil {
		e.trackers.Close(g.GuildID, g.ID)
		if rmErr := e.repo.Remove(context.WithoutCancel(ctx), g.ID); rmErr != nil {
			log.Error().Err(rmErr).Msg("Failed to remove giveaway after announcement failure")
		}
		return nil, apperrors.NewDiscordAPIError("post announcement", err)
	}
	if err := e.chat.AddReaction(ctx, ref, e.emoji); err != nil {
		log.Warn().Err(err).Msg("Failed to add entry reaction")
	}

	g.Message = ref
	g.Status = models.StatusCounting
	g.UpdatedAt = e.now()
	if err := e.repo.Update(ctx, g); err != nil {
		e.trackers.Close(g.GuildID, g.ID)
		if rmErr := e.repo.Remove(context.WithoutCancel(ctx), g.ID); rmErr != nil {
			log.Error().Err(rmErr).Msg("Failed to remove giveaway after store failure")
		}
		log.Error().Err(err).Str("message_id", ref.MessageID.String()).Msg("Giveaway announced but could not be stored")
		return nil, storeError("update giveaway", g.ID, err)
	}

	e.launch(g)
	metrics.RecordGiveawayStarted()
	log.Info().
		Str("prize", g.Prize).
		Int("winners", g.WinnerCount).
		Time("ends_at", g.EndsAt).
		Msg("Giveaway started")
	return g.Clone(), nil
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Engine) launch(g *models.Giveaway) {
	ctx, cancel := context.WithCancel(e.ctx)
	lc := &lifecycle{cancel: cancel}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		cancel()
		return
	}
	if old, ok := e.lifecycles[g.ID]; ok {
		old.cancel()
	}
	e.lifecycles[g.ID] = lc
	metrics.SetActiveGiveaways(len(e.lifecycles))
	e.wg.Add(2)
	e.mu.Unlock()

	id, endsAt := g.ID, g.EndsAt
	go func() {
		defer e.wg.Done()
		e.runCountdown(ctx, lc, id)
	}()
	go func() {
		defer e.wg.Done()
		e.runExpiry(ctx, lc, id, endsAt)
	}()
}

func (e *Engine) lookup(id int64) *lifecycle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lifecycles[id]
}

func (e *Engine) forget(id int64, lc *lifecycle) {
	e.mu.Lock()
	if e.lifecycles[id] == lc {
		delete(e.lifecycles, id)
	}
	metrics.SetActiveGiveaways(len(e.lifecycles))
	e.mu.Unlock()
}

func (e *Engine) tracker(g *models.Giveaway) *engagement.Tracker {
	if t, ok := e.trackers.Get(g.GuildID, g.ID); ok {
		return t
	}
	return engagement.NewTracker()
}

func (e *Engine) persistCounters(ctx context.Context, g *models.Giveaway) {
	t, ok := e.trackers.Get(g.GuildID, g.ID)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	if err := e.repo.SaveCounters(ctx, g.ID, t.Export(e.now())); err != nil {
		e.logger.Warn().Err(err).Int64("giveaway_id", g.ID).Msg("Failed to persist engagement counters")
	}
}

// Get returns an active giveaway.
func (e *Engine) Get(ctx context.Context, id int64) (*models.Giveaway, error) {
	g, err := e.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("get giveaway", id, err)
	}
	return g, nil
}

// GetArchived returns a resolved giveaway.
func (e *Engine) GetArchived(ctx context.Context, id int64) (*models.Giveaway, error) {
	g, err := e.repo.GetArchived(ctx, id)
	if err != nil {
		return nil, storeError("get archived giveaway", id, err)
	}
	return g, nil
}

// ListActive returns active giveaways of a guild; guild 0 lists all.
func (e *Engine) ListActive(ctx context.Context, guildID snowflake.ID) ([]*models.Giveaway, error) {
	all, err := e.repo.ListActive(ctx)
	if err != nil {
		return nil, apperrors.NewStoreError("list giveaways", err)
	}
	if guildID == 0 {
		return all, nil
	}
	out := make([]*models.Giveaway, 0, len(all))
	for _, g := range all {
		if g.GuildID == guildID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (e *Engine) ListArchived(ctx context.Context, guildID snowflake.ID) ([]*models.Giveaway, error) {
	list, err := e.repo.ListArchived(ctx, guildID)
	if err != nil {
		return nil, apperrors.NewStoreError("list archived giveaways", err)
	}
	return list, nil
}

// Resume restarts lifecycles of giveaways left active by a previous run.
// Voice sessions open at shutdown are dropped and users currently in voice
// are primed again, so time spent in voice while the bot was down is lost.
func (e *Engine) Resume(ctx context.Context) (int, error) {
	list, err := e.repo.ListActive(ctx)
	if err != nil {
		return 0, apperrors.NewStoreError("list giveaways", err)
	}

	now := e.now()
	resumed := 0
	for _, g := range list {
		log := e.logger.With().Int64("giveaway_id", g.ID).Logger()

		if g.Status.IsTerminal() {
			// resolved but not cleaned up before the last exit
			if err := e.repo.Archive(ctx, g); err != nil {
				log.Error().Err(err).Msg("Failed to archive resolved giveaway")
				continue
			}
			_ = e.repo.Remove(ctx, g.ID)
			continue
		}
		if g.Message.IsZero() {
			log.Warn().Msg("Dropping giveaway whose announcement was never posted")
			_ = e.repo.Remove(ctx, g.ID)
			continue
		}

		tracker := e.trackers.Open(g.GuildID, g.ID)
		counters, err := e.repo.LoadCounters(ctx, g.ID)
		switch {
		case err == nil:
			tracker.Restore(*counters)
		case !errors.Is(err, repository.ErrCountersNotFound):
			log.Warn().Err(err).Msg("Failed to load engagement counters")
		}
		tracker.DropSessions()
		if occupants, err := e.chat.VoiceOccupants(ctx, g.GuildID); err != nil {
			log.Warn().Err(err).Msg("Failed to read voice occupants")
		} else {
			tracker.PrimeExistingPresence(occupants, now)
		}

		if g.Status != models.StatusCounting {
			g.Status = models.StatusCounting
			g.UpdatedAt = now
			if err := e.repo.Update(ctx, g); err != nil {
				log.Warn().Err(err).Msg("Failed to reset giveaway status")
			}
		}

		e.launch(g)
		resumed++
		log.Info().Time("ends_at", g.EndsAt).Msg("Giveaway resumed")
	}

	return resumed, nil
}

// Shutdown saves counters and stops every lifecycle without resolving it.
// Records stay active so Resume can pick them up.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	ids := make([]int64, 0, len(e.lifecycles))
	for id := range e.lifecycles {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownPersistTimeout)
	defer cancel()
	for _, id := range ids {
		g, err := e.repo.GetByID(persistCtx, id)
		if err != nil {
			continue
		}
		e.persistCounters(persistCtx, g)
	}

	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		e.logger.Info().Int("giveaways", len(ids)).Msg("Giveaway engine stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
