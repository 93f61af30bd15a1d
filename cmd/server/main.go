package main

//	@title			Mindnote Counsel API
//	@version		1.0
//	@description	Counseling chat and diary emotion analysis for Mindnote.
//	@schemes		http https
//	@BasePath		/api/v1

//  Bearer at user level
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				User bearer token (e.g., "Bearer eyJhbGciOi...")

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mindnote/counsel/internal/bootstrap"
	"github.com/mindnote/counsel/internal/config"
	"github.com/mindnote/counsel/internal/modules/handler"
	"github.com/mindnote/counsel/internal/pkg/worker"
	"github.com/mindnote/counsel/internal/router"
	"github.com/mindnote/counsel/internal/telemetry"
)

func main() {
	inj := bootstrap.BuildContainer()

	cfg := do.MustInvoke[*config.Config](inj)
	log := do.MustInvoke[*zap.Logger](inj)
	defer func() { _ = log.Sync() }()

	tp, err := telemetry.SetupTracing(context.Background(), cfg)
	if err != nil {
		log.Sugar().Warnw("failed to setup tracing, continuing without tracing", "err", err)
	} else if tp != nil {
		log.Sugar().Infow("OpenTelemetry tracing enabled", "endpoint", cfg.Telemetry.OtlpEndpoint)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				log.Sugar().Errorw("failed to shutdown tracer", "err", err)
			}
		}()
	}

	gin.SetMode(cfg.App.Env)

	engine := router.NewRouter(router.RouterDeps{
		Config:          cfg,
		Log:             log,
		SessionHandler:  do.MustInvoke[*handler.SessionHandler](inj),
		AnalysisHandler: do.MustInvoke[*handler.AnalysisHandler](inj),
	})

	addr := fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port)
	srv := &http.Server{Addr: addr, Handler: engine, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		log.Sugar().Infow("starting http server", "addr", addr)
		log.Sugar().Infow("swagger url", "url", addr+"/swagger/index.html")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Sugar().Fatalw("listen error", "err", err)
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Sugar().Errorw("server shutdown", "err", err)
	}

	// let in-flight analyses and chat finalization finish
	if err := do.MustInvoke[*worker.Pool](inj).Shutdown(ctx); err != nil {
		log.Sugar().Errorw("worker pool shutdown", "err", err)
	}
	closeInfra(inj, log)
	log.Sugar().Info("server exited")
}

func closeInfra(inj *do.Injector, log *zap.Logger) {
	if rdb := do.MustInvoke[*redis.Client](inj); rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Sugar().Warnw("close redis", "err", err)
		}
	}
	if conn := do.MustInvoke[*amqp.Connection](inj); conn != nil {
		if err := conn.Close(); err != nil {
			log.Sugar().Warnw("close rabbitmq", "err", err)
		}
	}
	if sqlDB, err := do.MustInvoke[*gorm.DB](inj).DB(); err == nil {
		_ = sqlDB.Close()
	}
}
