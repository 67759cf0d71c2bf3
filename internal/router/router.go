package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jiuwen-dev/agent-studio/internal/handlers"
	"github.com/jiuwen-dev/agent-studio/internal/middleware"
	"github.com/jiuwen-dev/agent-studio/internal/types"
	"gorm.io/gorm"
)

func NewRouter(conn *gorm.DB) *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     types.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	events := handlers.NewEventHub()

	authHandler := handlers.NewAuthHandler(conn)
	userHandler := handlers.NewUserHandler(conn)
	modelConfigHandler := handlers.NewModelConfigHandler(conn)
	workflowHandler := handlers.NewWorkflowHandler(conn, events)
	agentHandler := handlers.NewAgentHandler(conn)
	promptHandler := handlers.NewPromptHandler(conn)

	requireAuth := middleware.AuthMiddleware(conn)

	api := r.Group("/api")
	{
		api.GET("/health", handlers.HealthCheck)
		api.GET("/ws", requireAuth, events.WebSocket)

		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.GET("/me", requireAuth, authHandler.Me)
			auth.POST("/logout", requireAuth, authHandler.Logout)
		}

		users := api.Group("/users", requireAuth)
		{
			users.GET("", middleware.RequireSuperuser(), userHandler.ListUsers)
			users.GET("/:id", userHandler.GetUser)
			users.PUT("/:id", userHandler.UpdateUser)
			users.DELETE("/:id", middleware.RequireSuperuser(), userHandler.DeleteUser)
		}

		modelConfigs := api.Group("/models", requireAuth)
		{
			modelConfigs.GET("", modelConfigHandler.ListModelConfigs)
			modelConfigs.POST("", modelConfigHandler.CreateModelConfig)
			modelConfigs.GET("/:id", modelConfigHandler.GetModelConfig)
			modelConfigs.PUT("/:id", modelConfigHandler.UpdateModelConfig)
			modelConfigs.DELETE("/:id", modelConfigHandler.DeleteModelConfig)
			modelConfigs.POST("/:id/test", modelConfigHandler.TestModelConfig)
		}

		workflows := api.Group("/workflows", requireAuth)
		{
			workflows.GET("", workflowHandler.ListWorkflows)
			workflows.POST("", workflowHandler.CreateWorkflow)
			workflows.GET("/:id", workflowHandler.GetWorkflow)
			workflows.PUT("/:id", workflowHandler.UpdateWorkflow)
			workflows.DELETE("/:id", workflowHandler.DeleteWorkflow)
			workflows.POST("/:id/run", workflowHandler.RunWorkflow)
		}

		agents := api.Group("/agents", requireAuth)
		{
			agents.GET("", agentHandler.ListAgents)
			agents.POST("", agentHandler.CreateAgent)
			agents.GET("/:id", agentHandler.GetAgent)
			agents.PUT("/:id", agentHandler.UpdateAgent)
			agents.DELETE("/:id", agentHandler.DeleteAgent)
		}

		prompts := api.Group("/prompts", requireAuth)
		{
			prompts.GET("", promptHandler.ListPrompts)
			prompts.POST("", promptHandler.CreatePrompt)
			prompts.GET("/:id", promptHandler.GetPrompt)
			prompts.PUT("/:id", promptHandler.UpdatePrompt)
			prompts.DELETE("/:id", promptHandler.DeletePrompt)
		}
	}

	return r
}
