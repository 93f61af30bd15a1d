package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/mindnote/counsel/docs"
	"github.com/mindnote/counsel/internal/config"
	"github.com/mindnote/counsel/internal/middleware"
	"github.com/mindnote/counsel/internal/modules/handler"
	"github.com/mindnote/counsel/internal/modules/serializer"
)

type RouterDeps struct {
	Config          *config.Config
	Log             *zap.Logger
	SessionHandler  *handler.SessionHandler
	AnalysisHandler *handler.AnalysisHandler
}

func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	if d.Config.Telemetry.Enabled && d.Config.Telemetry.OtlpEndpoint != "" {
		r.Use(middleware.OtelTracing(d.Config.App.Name))
		r.Use(middleware.TraceID())
	}

	r.Use(middleware.ZapLogger(d.Log))

	// health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, serializer.Response{Msg: "ok"}) })

	// swagger
	r.GET("/swagger", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	{
		v1.Use(middleware.JWTAuth(d.Config))

		v1.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, serializer.Response{Msg: "pong"}) })

		sessions := v1.Group("/sessions")
		{
			sessions.POST("", d.SessionHandler.StartSession)
			sessions.GET("", d.SessionHandler.ListSessions)
			sessions.DELETE("/:session_id", d.SessionHandler.DeleteSession)

			sessions.PUT("/:session_id/title", d.SessionHandler.RenameSession)
			sessions.POST("/:session_id/end", d.SessionHandler.EndSession)

			sessions.POST("/:session_id/stream", d.SessionHandler.StreamChat)
			sessions.GET("/:session_id/messages", d.SessionHandler.ListMessages)
			sessions.GET("/:session_id/emotion", d.SessionHandler.GetEmotion)
		}

		v1.POST("/diaries/:diary_id/analyze", d.AnalysisHandler.AnalyzeDiary)

		admin := v1.Group("/admin/analysis", middleware.RequireAdmin())
		{
			admin.GET("/tasks", d.AnalysisHandler.QueryTasks)
			admin.GET("/statistics", d.AnalysisHandler.Statistics)
			admin.POST("/tasks/:task_id/retry", d.AnalysisHandler.RetryTask)
			admin.POST("/tasks/batch_retry", d.AnalysisHandler.BatchRetry)
			admin.POST("/batch_analyze", d.AnalysisHandler.BatchAnalyze)
			admin.POST("/diaries/:diary_id/analyze", d.AnalysisHandler.AdminAnalyzeDiary)
		}
	}
	return r
}
