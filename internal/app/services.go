package app

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-mastery/internal/data/aggregates"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
	"github.com/yungbote/neurobridge-mastery/internal/services"
)

type Services struct {
	Mastery services.MasteryService

	cache  services.MasteryCache
	events services.MasteryEventPublisher
}

func (s Services) Close() error {
	var errs []error
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	if s.events != nil {
		errs = append(errs, s.events.Close())
	}
	return errors.Join(errs...)
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos) (Services, error) {
	log.Info("Wiring services...")

	cache := services.NewNoopMasteryCache()
	if cfg.Redis.Addr != "" {
		c, err := services.NewRedisMasteryCache(log, cfg.Redis)
		if err != nil {
			return Services{}, err
		}
		cache = c
	} else {
		log.Info("REDIS_ADDR not set; mastery read cache disabled")
	}

	events := services.NewNoopMasteryEventPublisher()
	if cfg.AMQP.URL != "" {
		p, err := services.NewAMQPMasteryEventPublisher(log, cfg.AMQP)
		if err != nil {
			_ = cache.Close()
			return Services{}, err
		}
		events = p
	} else {
		log.Info("AMQP_URL not set; mastery events disabled")
	}

	agg := aggregates.NewMasteryAggregate(aggregates.MasteryAggregateDeps{
		Base: aggregates.BaseDeps{
			DB:    db,
			Log:   log,
			Hooks: aggregates.NewLogHooks(log),
			Retry: &cfg.Retry,
		},
		Records:  reposet.MasteryRecord,
		Attempts: reposet.MasteryAttempt,
	})

	return Services{
		Mastery: services.NewMasteryService(log, agg, reposet.MasteryRecord, reposet.MasteryAttempt, cache, events),
		cache:   cache,
		events:  events,
	}, nil
}
