package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"trivia-bot-service/internal/app"
	"trivia-bot-service/internal/domain"
)

// DefaultSpec fires the daily question at 07:00 in the configured timezone.
const DefaultSpec = "0 7 * * *"

// Announcer delivers a published question to a channel and returns the id of
// the message it sent. The presentation layer (bot gateway, webhook bridge)
// implements this; the dispatcher works without one and only records.
type Announcer interface {
	AnnounceQuestion(ctx context.Context, channelID int64, published *app.PublishedQuestion) (int64, error)
}

// ChannelResolver picks a delivery channel for guilds that never configured
// one, typically the first channel the bot may post in.
type ChannelResolver interface {
	DailyChannel(ctx context.Context, guildID int64) (int64, bool, error)
}

// Dispatcher publishes one question per guild on a cron schedule. A failure
// in one guild logs and moves on; one broken config must not starve the rest.
type Dispatcher struct {
	service   *app.QuizService
	announcer Announcer
	resolver  ChannelResolver
	cron      *cron.Cron
	logger    *zap.Logger
}

// New builds a dispatcher on the given cron spec. An unknown timezone falls
// back to UTC rather than failing startup.
func New(service *app.QuizService, announcer Announcer, resolver ChannelResolver, spec, timezone string, logger *zap.Logger) (*Dispatcher, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	location := time.UTC
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			logger.Warn("unknown timezone, using UTC", zap.String("timezone", timezone), zap.Error(err))
		} else {
			location = loc
		}
	}

	d := &Dispatcher{
		service:   service,
		announcer: announcer,
		resolver:  resolver,
		cron:      cron.New(cron.WithLocation(location)),
		logger:    logger,
	}
	if _, err := d.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		d.DispatchDaily(ctx)
	}); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dispatcher) Start() {
	d.cron.Start()
}

// Stop halts scheduling and returns once any in-flight dispatch completed.
func (d *Dispatcher) Stop() {
	<-d.cron.Stop().Done()
}

// DispatchDaily publishes a question for every known guild. Also invoked
// directly by the admin trigger endpoint.
func (d *Dispatcher) DispatchDaily(ctx context.Context) {
	configs, err := d.service.ListGuildConfigs(ctx)
	if err != nil {
		d.logger.Error("daily dispatch aborted", zap.Error(err))
		return
	}
	for _, cfg := range configs {
		if err := d.dispatchGuild(ctx, cfg); err != nil {
			d.logger.Warn("daily dispatch skipped guild", zap.Int64("guild", cfg.GuildID), zap.Error(err))
		}
	}
}

func (d *Dispatcher) dispatchGuild(ctx context.Context, cfg domain.GuildConfig) error {
	var channelID int64
	switch {
	case cfg.DailyChannelID != nil:
		channelID = *cfg.DailyChannelID
	case d.resolver != nil:
		id, ok, err := d.resolver.DailyChannel(ctx, cfg.GuildID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNoChannel
		}
		channelID = id
	default:
		return domain.ErrNoChannel
	}

	published, err := d.service.Publish(ctx, channelID, "")
	if err != nil {
		if cooldown, ok := domain.AsCooldown(err); ok {
			d.logger.Info("channel on cooldown",
				zap.Int64("guild", cfg.GuildID),
				zap.Int64("channel", channelID),
				zap.Duration("remaining", cooldown.Remaining))
			return nil
		}
		return err
	}

	if d.announcer == nil {
		d.logger.Info("question published without announcer",
			zap.Int64("guild", cfg.GuildID),
			zap.Int64("channel", channelID),
			zap.Int64("question", published.Question.ID))
		return nil
	}

	messageID, err := d.announcer.AnnounceQuestion(ctx, channelID, published)
	if err != nil {
		// The question stays published; hydration tolerates a missing
		// message id.
		return err
	}
	return d.service.AttachMessage(ctx, published.Question.ID, messageID)
}
