package workers

import (
	"context"
	"encoding/json"
	"time"

	go_redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/models"
)

const (
	outcomeBuffer    = 256
	outcomeStreamLen = 10000
	publishTimeout   = 5 * time.Second
)

// OutcomePublisher appends resolved giveaways to a Redis stream so other
// services can react to them. Publish never blocks the engine: outcomes
// are dropped when the buffer is full.
type OutcomePublisher struct {
	rdb    go_redis.Cmdable
	stream string
	queue  chan models.Outcome
	logger zerolog.Logger
}

func NewOutcomePublisher(rdb go_redis.Cmdable, stream string, logger zerolog.Logger) *OutcomePublisher {
	return &OutcomePublisher{
		rdb:    rdb,
		stream: stream,
		queue:  make(chan models.Outcome, outcomeBuffer),
		logger: logger,
	}
}

// Publish is meant to be registered as an engine outcome hook.
func (p *OutcomePublisher) Publish(o models.Outcome) {
	select {
	case p.queue <- o:
	default:
		p.logger.Warn().Int64("giveaway_id", o.GiveawayID).Msg("Outcome queue full, dropping")
	}
}

// Start drains the queue until ctx is cancelled, then flushes what is left.
func (p *OutcomePublisher) Start(ctx context.Context) {
	p.logger.Info().Str("stream", p.stream).Msg("Starting outcome publisher")

	for {
		select {
		case <-ctx.Done():
			p.drain()
			p.logger.Info().Msg("Stopping outcome publisher")
			return
		case o := <-p.queue:
			p.write(context.Background(), o)
		}
	}
}

func (p *OutcomePublisher) drain() {
	for {
		select {
		case o := <-p.queue:
			p.write(context.Background(), o)
		default:
			return
		}
	}
}

func (p *OutcomePublisher) write(ctx context.Context, o models.Outcome) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	payload, err := json.Marshal(o)
	if err != nil {
		p.logger.Error().Err(err).Int64("giveaway_id", o.GiveawayID).Msg("Failed to encode outcome")
		return
	}

	err = p.rdb.XAdd(ctx, &go_redis.XAddArgs{
		Stream: p.stream,
		MaxLen: outcomeStreamLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":        "giveaway_resolved",
			"giveaway_id": o.GiveawayID,
			"guild_id":    o.GuildID.String(),
			"status":      string(o.Status),
			"payload":     string(payload),
		},
	}).Err()
	if err != nil {
		p.logger.Error().Err(err).Int64("giveaway_id", o.GiveawayID).Msg("Failed to publish outcome")
	}
}
