package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRouter(sessionController *SessionController, userController *UserController) *gin.Engine {
	router := gin.Default()
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{
		"http://localhost:3000",
		"http://localhost:5173",
	}
	config.AllowCredentials = true
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	router.Use(cors.New(config))
	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	if userController != nil {
		users := api.Group("/users")
		users.POST("/create", userController.CreateUser)
		users.GET("/:userID", userController.GetUser)
	}

	if sessionController != nil {
		session := api.Group("/session")
		session.GET("/ws", sessionController.JoinSession)
		session.GET("/stats", sessionController.Stats)
	}

	return router
}
