package bootstrap

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mindnote/counsel/internal/config"
	"github.com/mindnote/counsel/internal/infra/blob"
	"github.com/mindnote/counsel/internal/infra/cache"
	"github.com/mindnote/counsel/internal/infra/db"
	"github.com/mindnote/counsel/internal/infra/llm"
	"github.com/mindnote/counsel/internal/infra/logger"
	"github.com/mindnote/counsel/internal/infra/queue"
	"github.com/mindnote/counsel/internal/modules/handler"
	"github.com/mindnote/counsel/internal/modules/repo"
	"github.com/mindnote/counsel/internal/modules/service"
	"github.com/mindnote/counsel/internal/pkg/convmem"
	"github.com/mindnote/counsel/internal/pkg/worker"
)

func BuildContainer() *do.Injector {
	inj := do.New()

	// config
	do.Provide(inj, func(i *do.Injector) (*config.Config, error) {
		return config.Load()
	})

	// logger
	do.Provide(inj, func(i *do.Injector) (*zap.Logger, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return logger.New(cfg.Log.Level)
	})

	// DB
	do.Provide(inj, func(i *do.Injector) (*gorm.DB, error) {
		cfg := do.MustInvoke[*config.Config](i)
		d, err := db.New(cfg)
		if err != nil {
			return nil, err
		}
		if cfg.Database.AutoMigrate {
			if err := db.Migrate(d); err != nil {
				return nil, err
			}
		}
		return d, nil
	})

	// Redis, optional: nil when no address is configured
	do.Provide(inj, func(i *do.Injector) (*redis.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.Redis.Addr == "" {
			return nil, nil
		}
		return cache.New(cfg), nil
	})

	// chat turn lock: redis when available, in-process otherwise
	do.Provide(inj, func(i *do.Injector) (service.TurnLocker, error) {
		cfg := do.MustInvoke[*config.Config](i)
		rdb := do.MustInvoke[*redis.Client](i)
		if rdb == nil {
			do.MustInvoke[*zap.Logger](i).Sugar().Warnw("redis not configured, chat turn lock is process-local")
			return cache.NewLocalTurnLocker(cache.DefaultLockWait), nil
		}
		ttl := time.Duration(cfg.Redis.TurnLockTTLSec) * time.Second
		return cache.NewRedisTurnLocker(rdb, ttl, cache.DefaultLockWait), nil
	})

	// RabbitMQ, optional
	do.Provide(inj, func(i *do.Injector) (*amqp.Connection, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.RabbitMQ.URL == "" {
			return nil, nil
		}
		return amqp.Dial(cfg.RabbitMQ.URL)
	})
	do.Provide(inj, func(i *do.Injector) (service.TaskEventPublisher, error) {
		conn := do.MustInvoke[*amqp.Connection](i)
		if conn == nil {
			return nil, nil
		}
		cfg := do.MustInvoke[*config.Config](i)
		return queue.NewPublisher(conn, cfg.RabbitMQ, do.MustInvoke[*zap.Logger](i))
	})

	// S3, optional: transcripts are only archived when a bucket is set
	do.Provide(inj, func(i *do.Injector) (*blob.S3Deps, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.S3.Bucket == "" {
			return nil, nil
		}
		return blob.NewS3(context.Background(), cfg)
	})
	do.Provide(inj, func(i *do.Injector) (service.TranscriptArchiver, error) {
		s3 := do.MustInvoke[*blob.S3Deps](i)
		if s3 == nil {
			return nil, nil
		}
		return s3, nil
	})

	// text generation backend
	do.Provide(inj, func(i *do.Injector) (llm.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return llm.NewOpenAI(cfg.LLM, do.MustInvoke[*zap.Logger](i)), nil
	})

	do.Provide(inj, func(i *do.Injector) (*convmem.Store, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return convmem.New(cfg.Chat.MemoryWindow), nil
	})
	do.Provide(inj, func(i *do.Injector) (*worker.Pool, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return worker.NewPool(cfg.Analysis.Workers, do.MustInvoke[*zap.Logger](i)), nil
	})

	// Repo
	do.Provide(inj, func(i *do.Injector) (repo.AnalysisTaskRepo, error) {
		return repo.NewAnalysisTaskRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.DiaryRepo, error) {
		return repo.NewDiaryRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.UserRepo, error) {
		return repo.NewUserRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.SessionRepo, error) {
		return repo.NewSessionRepo(do.MustInvoke[*gorm.DB](i)), nil
	})

	// Service
	do.Provide(inj, func(i *do.Injector) (service.AnalysisTaskService, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return service.NewAnalysisTaskService(
			do.MustInvoke[repo.AnalysisTaskRepo](i),
			do.MustInvoke[repo.DiaryRepo](i),
			do.MustInvoke[repo.UserRepo](i),
			do.MustInvoke[service.TaskEventPublisher](i),
			do.MustInvoke[*zap.Logger](i),
			cfg.Analysis.MaxRetryCount,
			cfg.Analysis.BatchLimit,
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.EmotionService, error) {
		return service.NewEmotionService(
			do.MustInvoke[llm.Client](i),
			do.MustInvoke[service.AnalysisTaskService](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.SessionService, error) {
		return service.NewSessionService(
			do.MustInvoke[repo.SessionRepo](i),
			do.MustInvoke[*convmem.Store](i),
			do.MustInvoke[*worker.Pool](i),
			do.MustInvoke[service.TranscriptArchiver](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.ChatService, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return service.NewChatService(service.ChatDeps{
			Sessions:     do.MustInvoke[service.SessionService](i),
			Repo:         do.MustInvoke[repo.SessionRepo](i),
			Memory:       do.MustInvoke[*convmem.Store](i),
			LLM:          do.MustInvoke[llm.Client](i),
			Emotion:      do.MustInvoke[service.EmotionService](i),
			Locker:       do.MustInvoke[service.TurnLocker](i),
			Pool:         do.MustInvoke[*worker.Pool](i),
			Log:          do.MustInvoke[*zap.Logger](i),
			RebuildLimit: cfg.Chat.HistoryRebuildLimit,
		}), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.DiaryAnalysisService, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return service.NewDiaryAnalysisService(
			do.MustInvoke[service.AnalysisTaskService](i),
			do.MustInvoke[service.EmotionService](i),
			do.MustInvoke[repo.DiaryRepo](i),
			do.MustInvoke[*worker.Pool](i),
			do.MustInvoke[*zap.Logger](i),
			cfg.Analysis.BatchLimit,
		), nil
	})

	// Handler
	do.Provide(inj, func(i *do.Injector) (*handler.SessionHandler, error) {
		return handler.NewSessionHandler(
			do.MustInvoke[service.SessionService](i),
			do.MustInvoke[service.ChatService](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.AnalysisHandler, error) {
		return handler.NewAnalysisHandler(
			do.MustInvoke[service.AnalysisTaskService](i),
			do.MustInvoke[service.DiaryAnalysisService](i),
		), nil
	})

	return inj
}
