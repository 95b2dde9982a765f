package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"projectdash/internal/handler"
	"projectdash/internal/service"
)

// Handlers bundles the HTTP handlers the router mounts.
type Handlers struct {
	Auth     *handler.AuthHandler
	Projects *handler.ProjectHandler
	Tasks    *handler.TaskHandler
	Users    *handler.UserHandler
}

func NewRouter(h Handlers, auth *service.AuthService, logger *zap.Logger, db *pgxpool.Pool, rdb *redis.Client) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger))
	r.Use(Metrics())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			c.JSON(500, gin.H{"status": "redis_not_ready", "error": err.Error()})
			return
		}

		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	api.POST("/auth/register", h.Auth.Register)
	api.POST("/auth/login", h.Auth.Login)

	authed := api.Group("")
	authed.Use(Auth(auth, logger))

	authed.POST("/auth/logout", h.Auth.Logout)
	authed.GET("/auth/me", h.Auth.Me)
	authed.POST("/auth/change-password", h.Auth.ChangePassword)

	authed.GET("/projects", h.Projects.List)
	authed.GET("/my-projects", h.Projects.My)
	authed.POST("/projects", h.Projects.Create)
	authed.GET("/projects/:id", h.Projects.Get)
	authed.PUT("/projects/:id", h.Projects.Update)
	authed.PATCH("/projects/:id", h.Projects.Update)
	authed.DELETE("/projects/:id", h.Projects.Delete)

	authed.GET("/projects/:id/tasks", h.Tasks.ListByProject)
	authed.POST("/projects/:id/tasks", h.Tasks.Create)

	authed.GET("/tasks/:id", h.Tasks.Get)
	authed.PATCH("/tasks/:id", h.Tasks.Update)
	authed.DELETE("/tasks/:id", h.Tasks.Delete)
	authed.POST("/tasks/bulk-update", h.Tasks.BulkUpdate)

	authed.GET("/users", h.Users.List)
	authed.GET("/users/role/:role", h.Users.ListByRole)
	authed.GET("/users/project-managers", h.Users.ProjectManagers)
	authed.PATCH("/users/:id/role", h.Users.UpdateRole)

	return r
}
