package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/richnote/internal/middleware"
)

type RouterDeps struct {
	Documents     *DocumentHandler
	Entries       *EntryHandler
	Publish       *PublishHandler
	Files         *FileHandler
	Properties    *PropertiesHandler
	JWTSecret     []byte
	PublishWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.POST("/documents", deps.Documents.Create)
	authGroup.GET("/documents", deps.Documents.List)
	authGroup.GET("/documents/:id", deps.Documents.Get)
	authGroup.PUT("/documents/:id", deps.Documents.Update)
	authGroup.DELETE("/documents/:id", deps.Documents.Delete)
	authGroup.GET("/documents/:id/render", deps.Documents.Render)
	authGroup.GET("/documents/:id/chunks", deps.Documents.Chunks)
	authGroup.POST("/documents/:id/duplicate", deps.Documents.Duplicate)

	limited := middleware.RateLimit(deps.PublishWindow)
	authGroup.POST("/documents/:id/publish", limited, deps.Publish.Publish)
	authGroup.POST("/publish", limited, deps.Publish.PublishAll)

	authGroup.POST("/entries", deps.Entries.Create)
	authGroup.GET("/entries", deps.Entries.List)
	authGroup.GET("/entries/:id", deps.Entries.Get)
	authGroup.PUT("/entries/:id", deps.Entries.Update)
	authGroup.DELETE("/entries/:id", deps.Entries.Delete)
	authGroup.GET("/entries/:id/references", deps.Entries.References)

	api.GET("/files/*key", deps.Files.Get)
	api.GET("/properties", deps.Properties.Get)
}
