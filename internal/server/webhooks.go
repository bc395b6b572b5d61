package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/corkboard/internal/webhook"
)

// authorized checks the board token for webhook endpoints; registrations
// expose delivery targets, so even listing needs the token. Changes are
// also refused on an archived board.
func (s *Server) authorized(c *gin.Context, write bool) bool {
	check := s.board.Authorize
	if write {
		check = s.board.AuthorizeWrite
	}
	if err := check(c.Request.Context(), c.Param("board"), tokenFrom(c)); err != nil {
		s.fail(c, err)
		return false
	}
	return true
}

func (s *Server) handleListWebhooks(c *gin.Context) {
	if !s.authorized(c, false) {
		return
	}
	hooks, err := webhook.List(s.board.DB().WithContext(c.Request.Context()), c.Param("board"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"webhooks": hooks})
}

func (s *Server) handleCreateWebhook(c *gin.Context) {
	if !s.authorized(c, true) {
		return
	}
	var opts webhook.CreateOpts
	if err := bind(c, &opts); err != nil {
		s.fail(c, err)
		return
	}
	reg, err := webhook.Create(s.board.DB().WithContext(c.Request.Context()), c.Param("board"), opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, reg)
}

func (s *Server) handleUpdateWebhook(c *gin.Context) {
	if !s.authorized(c, true) {
		return
	}
	var opts webhook.UpdateOpts
	if err := bind(c, &opts); err != nil {
		s.fail(c, err)
		return
	}
	hook, err := webhook.Update(s.board.DB().WithContext(c.Request.Context()), c.Param("board"), c.Param("webhook"), opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, hook)
}

func (s *Server) handleDeleteWebhook(c *gin.Context) {
	if !s.authorized(c, true) {
		return
	}
	if err := webhook.Delete(s.board.DB().WithContext(c.Request.Context()), c.Param("board"), c.Param("webhook")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
