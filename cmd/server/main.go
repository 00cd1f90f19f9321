package main

import (
	"log"

	"github.com/gin-contrib/sessions"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/ktsujino/projecthub-api/internal/config"
	"github.com/ktsujino/projecthub-api/internal/database"
	"github.com/ktsujino/projecthub-api/internal/events"
	"github.com/ktsujino/projecthub-api/internal/handlers"
	"github.com/ktsujino/projecthub-api/internal/middleware"
	"github.com/ktsujino/projecthub-api/internal/repository"
	"github.com/ktsujino/projecthub-api/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	// Connect to database
	if err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize Gin router
	r := gin.Default()

	// Setup session middleware with Redis
	redisAddr := cfg.RedisHost + ":" + cfg.RedisPort
	store, err := redisStore.NewStore(
		10,        // Redis pool size
		"tcp",     // network type
		redisAddr, // Redis address from config
		"",        // username (empty for default user)
		"",        // password (empty = no password)
		[]byte(cfg.SessionSecret), // authentication key
	)
	if err != nil {
		log.Fatalf("Failed to create Redis store: %v", err)
	}
	// Configure session options based on environment
	isProduction := cfg.GinMode == "release"
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: 2, // SameSite=Lax (1=Strict, 2=Lax, 3=None)
	})
	r.Use(sessions.Sessions("projecthub_session", store))

	// Initialize services
	gormStore := repository.NewStore(database.GetDB())
	fanout := events.NewChannelFanout()
	rbacService := services.NewRBACService(gormStore)
	activityService := services.NewActivityService(gormStore, rbacService)
	authService := services.NewAuthService(gormStore)
	workspaceService := services.NewWorkspaceService(gormStore, rbacService, activityService, fanout)
	projectService := services.NewProjectService(gormStore, rbacService, activityService, fanout)
	taskService := services.NewTaskService(gormStore, rbacService, activityService, fanout)
	commentService := services.NewCommentService(gormStore, rbacService, activityService, fanout)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	workspaceHandler := handlers.NewWorkspaceHandler(workspaceService)
	projectHandler := handlers.NewProjectHandler(projectService)
	taskHandler := handlers.NewTaskHandler(taskService, commentService)
	activityHandler := handlers.NewActivityHandler(activityService)
	eventsHandler := handlers.NewEventsHandler(fanout, rbacService)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "ProjectHub API is running",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/signup", authHandler.Signup)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", middleware.RequireAuth(), authHandler.GetCurrentUser)
		}

		// Workspace routes (protected)
		workspaces := api.Group("/workspaces")
		workspaces.Use(middleware.RequireAuth())
		{
			workspaces.POST("", workspaceHandler.CreateWorkspace)
			workspaces.GET("", workspaceHandler.ListWorkspaces)
			workspaces.GET("/:id", workspaceHandler.GetWorkspace)
			workspaces.PATCH("/:id", workspaceHandler.UpdateWorkspace)
			workspaces.GET("/:id/members", workspaceHandler.ListMembers)
			workspaces.POST("/:id/members", workspaceHandler.AddMember)
			workspaces.PATCH("/:id/members/:userId", workspaceHandler.UpdateMemberRole)
			workspaces.DELETE("/:id/members/:userId", workspaceHandler.RemoveMember)
			workspaces.POST("/:id/invitations", workspaceHandler.InviteMember)
			workspaces.POST("/:id/projects", projectHandler.CreateProject)
			workspaces.GET("/:id/projects", projectHandler.ListProjects)
			workspaces.GET("/:id/activity", activityHandler.WorkspaceActivity)
			workspaces.GET("/:id/events", eventsHandler.WorkspaceEvents)
		}

		// Invitation acceptance (protected, not workspace-scoped: the token
		// identifies the workspace)
		api.POST("/invitations/accept", middleware.RequireAuth(), workspaceHandler.AcceptInvitation)

		// Project routes (protected)
		projects := api.Group("/projects")
		projects.Use(middleware.RequireAuth())
		{
			projects.GET("/:id", projectHandler.GetProject)
			projects.PATCH("/:id", projectHandler.UpdateProject)
			projects.DELETE("/:id", projectHandler.DeleteProject)
			projects.GET("/:id/members", projectHandler.ListMembers)
			projects.POST("/:id/members", projectHandler.AddMember)
			projects.PATCH("/:id/members/:userId", projectHandler.UpdateMemberRole)
			projects.DELETE("/:id/members/:userId", projectHandler.RemoveMember)
			projects.POST("/:id/tasks", taskHandler.CreateTask)
			projects.GET("/:id/tasks", taskHandler.ListProjectTasks)
			projects.GET("/:id/stats", taskHandler.GetProjectTaskStats)
			projects.GET("/:id/activity", activityHandler.ProjectActivity)
			projects.GET("/:id/events", eventsHandler.ProjectEvents)
		}

		// Task routes (protected)
		tasks := api.Group("/tasks")
		tasks.Use(middleware.RequireAuth())
		{
			tasks.GET("/my", taskHandler.ListMyTasks)
			tasks.POST("/bulk-status", taskHandler.BulkUpdateStatus)
			tasks.GET("/:id", taskHandler.GetTask)
			tasks.PATCH("/:id", taskHandler.UpdateTask)
			tasks.DELETE("/:id", taskHandler.DeleteTask)
			tasks.POST("/:id/assign", taskHandler.AssignTask)
			tasks.GET("/:id/comments", taskHandler.ListComments)
			tasks.POST("/:id/comments", taskHandler.AddComment)
			tasks.DELETE("/:id/comments/:commentId", taskHandler.DeleteComment)
			tasks.GET("/:id/activity", activityHandler.TaskActivity)
		}

		// Current user's feeds (protected)
		me := api.Group("/me")
		me.Use(middleware.RequireAuth())
		{
			me.GET("/activity", activityHandler.MyActivity)
			me.GET("/events", eventsHandler.MyEvents)
		}
	}

	// Start server
	log.Printf("Starting server on %s", cfg.ListenAddr)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
