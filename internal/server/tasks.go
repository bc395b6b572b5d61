package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/corkboard/internal/board"
	"github.com/zulandar/corkboard/internal/models"
)

func (s *Server) handleListTasks(c *gin.Context) {
	f := board.TaskFilter{
		ColumnID:        c.Query("column"),
		Assignee:        c.Query("assignee"),
		ClaimedBy:       c.Query("claimed_by"),
		Label:           c.Query("label"),
		IncludeArchived: c.Query("archived") == "true",
	}
	if p, err := strconv.Atoi(c.Query("priority")); err == nil {
		f.Priority = &p
	}

	var (
		tasks []models.Task
		err   error
	)
	if q, ok := c.GetQuery("q"); ok {
		tasks, err = s.board.SearchTasks(c.Request.Context(), c.Param("board"), q, f)
	} else {
		tasks, err = s.board.ListTasks(c.Request.Context(), c.Param("board"), f)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var opts board.CreateTaskOpts
	if err := bind(c, &opts); err != nil {
		s.fail(c, err)
		return
	}
	t, err := s.board.CreateTask(c.Request.Context(), authFrom(c), c.Param("board"), opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (s *Server) handleGetTask(c *gin.Context) {
	t, err := s.board.GetTask(c.Request.Context(), c.Param("board"), c.Param("task"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	var opts board.UpdateTaskOpts
	if err := bind(c, &opts); err != nil {
		s.fail(c, err)
		return
	}
	t, err := s.board.UpdateTask(c.Request.Context(), authFrom(c), c.Param("board"), c.Param("task"), opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	if err := s.board.DeleteTask(c.Request.Context(), authFrom(c), c.Param("board"), c.Param("task")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleMoveTask(c *gin.Context) {
	var opts board.MoveOpts
	if err := bind(c, &opts); err != nil {
		s.fail(c, err)
		return
	}
	t, err := s.board.MoveTask(c.Request.Context(), authFrom(c), c.Param("board"), c.Param("task"), opts)
	s.taskResult(c, t, err)
}

func (s *Server) handleClaimTask(c *gin.Context) {
	t, err := s.board.ClaimTask(c.Request.Context(), authFrom(c), c.Param("board"), c.Param("task"))
	s.taskResult(c, t, err)
}

func (s *Server) handleReleaseTask(c *gin.Context) {
	t, err := s.board.ReleaseTask(c.Request.Context(), authFrom(c), c.Param("board"), c.Param("task"))
	s.taskResult(c, t, err)
}

func (s *Server) handleArchiveTask(c *gin.Context) {
	t, err := s.board.ArchiveTask(c.Request.Context(), authFrom(c), c.Param("board"), c.Param("task"))
	s.taskResult(c, t, err)
}

func (s *Server) handleUnarchiveTask(c *gin.Context) {
	t, err := s.board.UnarchiveTask(c.Request.Context(), authFrom(c), c.Param("board"), c.Param("task"))
	s.taskResult(c, t, err)
}

func (s *Server) handleQuickDone(c *gin.Context) {
	t, err := s.board.QuickDone(c.Request.Context(), authFrom(c), c.Param("board"), c.Param("task"))
	s.taskResult(c, t, err)
}

type reassignRequest struct {
	Assignee string `json:"assignee"`
}

func (s *Server) handleQuickReassign(c *gin.Context) {
	var req reassignRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	t, err := s.board.QuickReassign(c.Request.Context(), authFrom(c), c.Param("board"), c.Param("task"), req.Assignee)
	s.taskResult(c, t, err)
}

func (s *Server) taskResult(c *gin.Context, t *models.Task, err error) {
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleListComments(c *gin.Context) {
	comments, err := s.board.ListComments(c.Request.Context(), c.Param("board"), c.Param("task"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

type commentRequest struct {
	Body string `json:"body"`
}

func (s *Server) handleAddComment(c *gin.Context) {
	var req commentRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	comment, err := s.board.AddComment(c.Request.Context(), authFrom(c), c.Param("board"), c.Param("task"), req.Body)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

type batchRequest struct {
	Ops []board.BatchOp `json:"ops"`
}

func (s *Server) handleBatch(c *gin.Context) {
	var req batchRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	results, err := s.board.Batch(c.Request.Context(), authFrom(c), c.Param("board"), req.Ops)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
