package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"sitegen-backend/internal/config"
	"sitegen-backend/internal/provider"
	"sitegen-backend/internal/service"
	"sitegen-backend/internal/settings"
)

const proxyPath = "/functions/v1/generate-code"

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Workspace *service.WorkspaceService
	Projects  *service.ProjectService
	Proxy     *service.ProxyService
	Settings  *settings.Service
	Registry  *provider.Registry
}

func NewRouter(cfg *config.Config, deps Deps) *gin.Engine {
	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// The proxy route sets its own CORS headers.
	apiCORS := cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	})
	router.Use(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, proxyPath) {
			c.Next()
			return
		}
		apiCORS(c)
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"providers": deps.Registry.IDs(),
			"timestamp": time.Now().Unix(),
		})
	})

	workspaceHandler := NewWorkspaceHandler(deps.Workspace, cfg.Generation.Heartbeat)
	projectHandler := NewProjectHandler(deps.Projects)
	settingsHandler := NewSettingsHandler(cfg, deps.Settings, deps.Registry)
	previewHandler := NewPreviewHandler(deps.Workspace)
	proxyHandler := NewProxyHandler(deps.Proxy)

	api := router.Group("/api")
	{
		ws := api.Group("/workspace")
		{
			ws.POST("/session", workspaceHandler.CreateSession)
			ws.GET("/session/list", workspaceHandler.ListSessions)
			ws.GET("/session/:session_id", workspaceHandler.GetSession)
			ws.DELETE("/session/:session_id", workspaceHandler.DeleteSession)

			ws.POST("/:session_id/generate", workspaceHandler.Generate)
			ws.POST("/:session_id/revert", workspaceHandler.Revert)
			ws.POST("/:session_id/reset", workspaceHandler.Reset)
			ws.GET("/:session_id/versions/:index", workspaceHandler.Version)
			ws.GET("/:session_id/diff", workspaceHandler.Diff)
			ws.GET("/:session_id/export", workspaceHandler.Export)
			ws.POST("/:session_id/save", workspaceHandler.Save)
		}

		api.GET("/projects", projectHandler.List)
		api.DELETE("/projects/:project_id", projectHandler.Delete)

		api.GET("/settings", settingsHandler.Get)
		api.PUT("/settings", settingsHandler.Update)
		api.PUT("/settings/credentials/:provider", settingsHandler.SetCredential)
		api.DELETE("/settings/credentials/:provider", settingsHandler.DeleteCredential)
	}

	router.GET("/preview/:session_id", previewHandler.Serve)

	proxy := router.Group(proxyPath, proxyHandler.CORS)
	{
		proxy.POST("", proxyHandler.GenerateCode)
		proxy.OPTIONS("", proxyHandler.CORS)
	}

	return router
}
