package http

import (
	"github.com/gin-gonic/gin"

	"docchat/internal/bootstrap"
	"docchat/internal/logger"
	"docchat/internal/transport/http/handler"
	"docchat/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.MaxMultipartMemory = app.Config.Upload.MaxBytes
	router.Use(
		gin.Recovery(),
		middleware.RequestLogger(logger.Component(app.Log, "http")),
		middleware.Metrics(app.Metrics),
	)

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(app.Metrics.Handler()))

	authHandler := handler.NewAuthHandler(app.Auth)
	documentHandler := handler.NewDocumentHandler(app.Documents, app.Chat, app.Config.Upload.MaxBytes)
	chatHandler := handler.NewChatHandler(app.Documents, app.Chat)
	activityHandler := handler.NewActivityHandler(app.Activity)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(app.Config.Auth.JWTSecret), authHandler.Me)

	api := v1.Group("")
	api.Use(middleware.Workspace(app.Config.Auth.Enabled, app.Config.Auth.JWTSecret))
	api.POST("/documents", documentHandler.Upload)
	api.GET("/documents", documentHandler.List)
	api.GET("/documents/:id", documentHandler.Get)
	api.DELETE("/documents/:id", documentHandler.Delete)
	api.GET("/documents/:id/file", documentHandler.File)
	api.POST("/documents/:id/session", chatHandler.CreateSession)
	api.GET("/documents/:id/session", chatHandler.GetDocumentSession)
	api.POST("/documents/:id/messages", chatHandler.SendMessage)
	api.GET("/sessions/:id", chatHandler.GetSession)
	api.GET("/activity", activityHandler.List)

	return router
}
