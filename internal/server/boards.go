package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/corkboard/internal/board"
)

func (s *Server) handleCreateBoard(c *gin.Context) {
	var opts board.CreateBoardOpts
	if err := bind(c, &opts); err != nil {
		s.fail(c, err)
		return
	}
	opts.Actor = authFrom(c).Actor
	created, err := s.board.CreateBoard(c.Request.Context(), opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleListBoards(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	boards, err := s.board.ListBoards(c.Request.Context(), board.ListBoardsOpts{Limit: limit, Offset: offset})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"boards": boards})
}

func (s *Server) handleGetBoard(c *gin.Context) {
	b, err := s.board.GetBoard(c.Request.Context(), c.Param("board"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) handleUpdateBoard(c *gin.Context) {
	var opts board.UpdateBoardOpts
	if err := bind(c, &opts); err != nil {
		s.fail(c, err)
		return
	}
	b, err := s.board.UpdateBoard(c.Request.Context(), authFrom(c), c.Param("board"), opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) handleArchiveBoard(c *gin.Context) {
	if err := s.board.ArchiveBoard(c.Request.Context(), authFrom(c), c.Param("board")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleUnarchiveBoard(c *gin.Context) {
	if err := s.board.UnarchiveBoard(c.Request.Context(), authFrom(c), c.Param("board")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCreateColumn(c *gin.Context) {
	var opts board.ColumnOpts
	if err := bind(c, &opts); err != nil {
		s.fail(c, err)
		return
	}
	col, err := s.board.CreateColumn(c.Request.Context(), authFrom(c), c.Param("board"), opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, col)
}

func (s *Server) handleUpdateColumn(c *gin.Context) {
	var opts board.UpdateColumnOpts
	if err := bind(c, &opts); err != nil {
		s.fail(c, err)
		return
	}
	col, err := s.board.UpdateColumn(c.Request.Context(), authFrom(c), c.Param("board"), c.Param("column"), opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, col)
}

func (s *Server) handleDeleteColumn(c *gin.Context) {
	if err := s.board.DeleteColumn(c.Request.Context(), authFrom(c), c.Param("board"), c.Param("column")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleArchiveColumn(c *gin.Context) {
	col, err := s.board.ArchiveColumn(c.Request.Context(), authFrom(c), c.Param("board"), c.Param("column"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, col)
}

func (s *Server) handleUnarchiveColumn(c *gin.Context) {
	col, err := s.board.UnarchiveColumn(c.Request.Context(), authFrom(c), c.Param("board"), c.Param("column"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, col)
}

type reorderRequest struct {
	ColumnIDs []string `json:"column_ids"`
}

func (s *Server) handleReorderColumns(c *gin.Context) {
	var req reorderRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	cols, err := s.board.ReorderColumns(c.Request.Context(), authFrom(c), c.Param("board"), req.ColumnIDs)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"columns": cols})
}
