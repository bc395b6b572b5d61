package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) registerRoutes() {
	r := s.router
	r.GET("/healthz", s.handleHealth)

	api := r.Group("/api")
	api.POST("/boards", s.rateLimited(), s.handleCreateBoard)
	api.GET("/boards", s.handleListBoards)

	b := api.Group("/boards/:board")
	b.GET("", s.handleGetBoard)
	b.PATCH("", s.handleUpdateBoard)
	b.POST("/archive", s.handleArchiveBoard)
	b.POST("/unarchive", s.handleUnarchiveBoard)

	b.POST("/columns", s.handleCreateColumn)
	b.PUT("/columns/order", s.handleReorderColumns)
	b.PATCH("/columns/:column", s.handleUpdateColumn)
	b.DELETE("/columns/:column", s.handleDeleteColumn)
	b.POST("/columns/:column/archive", s.handleArchiveColumn)
	b.POST("/columns/:column/unarchive", s.handleUnarchiveColumn)

	b.GET("/tasks", s.handleListTasks)
	b.POST("/tasks", s.handleCreateTask)
	b.GET("/tasks/:task", s.handleGetTask)
	b.PATCH("/tasks/:task", s.handleUpdateTask)
	b.DELETE("/tasks/:task", s.handleDeleteTask)
	b.POST("/tasks/:task/move", s.handleMoveTask)
	b.POST("/tasks/:task/claim", s.handleClaimTask)
	b.POST("/tasks/:task/release", s.handleReleaseTask)
	b.POST("/tasks/:task/archive", s.handleArchiveTask)
	b.POST("/tasks/:task/unarchive", s.handleUnarchiveTask)
	b.POST("/tasks/:task/done", s.handleQuickDone)
	b.POST("/tasks/:task/reassign", s.handleQuickReassign)
	b.GET("/tasks/:task/comments", s.handleListComments)
	b.POST("/tasks/:task/comments", s.handleAddComment)
	b.POST("/batch", s.handleBatch)

	b.GET("/events", s.handleEvents)
	b.GET("/stream", s.handleStream)

	b.GET("/webhooks", s.handleListWebhooks)
	b.POST("/webhooks", s.handleCreateWebhook)
	b.PATCH("/webhooks/:webhook", s.handleUpdateWebhook)
	b.DELETE("/webhooks/:webhook", s.handleDeleteWebhook)
}

func (s *Server) handleHealth(c *gin.Context) {
	sqlDB, err := s.board.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "version": s.opts.Version})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": s.opts.Version})
}
