package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/construxio/sitehub-backend/internal/http/handlers"
	httpMW "github.com/construxio/sitehub-backend/internal/http/middleware"
	"github.com/construxio/sitehub-backend/internal/observability"
	"github.com/construxio/sitehub-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log     *logger.Logger
	Metrics *observability.Metrics

	ProjectHandler      *httpH.ProjectHandler
	TaskHandler         *httpH.TaskHandler
	TaskScheduleHandler *httpH.TaskScheduleHandler
	MilestoneHandler    *httpH.MilestoneHandler
	ParticipantHandler  *httpH.ParticipantHandler
	HealthHandler       *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api/v1")
	{
		if cfg.ProjectHandler != nil {
			api.GET("/projects", cfg.ProjectHandler.List)
			api.GET("/projects/:id", cfg.ProjectHandler.Get)
			api.POST("/projects", cfg.ProjectHandler.Create)
			api.PUT("/projects/:id", cfg.ProjectHandler.Update)
			api.DELETE("/projects/:id", cfg.ProjectHandler.Delete)
			api.POST("/projects/:id/reschedule", cfg.ProjectHandler.Reschedule)
		}

		if cfg.TaskHandler != nil {
			api.GET("/tasks", cfg.TaskHandler.List)
			api.GET("/tasks/:id", cfg.TaskHandler.Get)
			api.POST("/tasks", cfg.TaskHandler.Create)
			api.PUT("/tasks/:id", cfg.TaskHandler.Update)
			api.DELETE("/tasks/:id", cfg.TaskHandler.Delete)
			api.POST("/tasks/:id/send", cfg.TaskHandler.Send)
			api.POST("/tasks/:id/start", cfg.TaskHandler.Start)
			api.POST("/tasks/:id/close", cfg.TaskHandler.Close)
			api.POST("/tasks/:id/accept", cfg.TaskHandler.Accept)
		}

		if cfg.TaskScheduleHandler != nil {
			api.GET("/schedules", cfg.TaskScheduleHandler.List)
			api.GET("/schedules/:id", cfg.TaskScheduleHandler.Get)
			api.POST("/schedules", cfg.TaskScheduleHandler.Create)
			api.PUT("/schedules/:id", cfg.TaskScheduleHandler.Update)
			api.DELETE("/schedules/:id", cfg.TaskScheduleHandler.Delete)
		}

		if cfg.MilestoneHandler != nil {
			api.GET("/milestones", cfg.MilestoneHandler.List)
			api.GET("/milestones/:id", cfg.MilestoneHandler.Get)
			api.POST("/milestones", cfg.MilestoneHandler.Create)
			api.PUT("/milestones/:id", cfg.MilestoneHandler.Update)
			api.DELETE("/milestones/:id", cfg.MilestoneHandler.Delete)
		}

		if cfg.ParticipantHandler != nil {
			api.GET("/participants/:userId", cfg.ParticipantHandler.Get)
			api.GET("/participants", cfg.ParticipantHandler.List)
		}
	}

	return r
}
