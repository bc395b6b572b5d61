package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/corkboard/internal/eventlog"
	"github.com/zulandar/corkboard/internal/kanban"
)

// eventQuery parses the event log query parameters.
func eventQuery(c *gin.Context) (eventlog.QueryOpts, error) {
	var opts eventlog.QueryOpts
	if v := c.Query("after"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return opts, kanban.New(kanban.InvalidRequest, "after must be a non-negative sequence number")
		}
		opts.After = n
	}
	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return opts, kanban.New(kanban.InvalidRequest, "since must be an RFC 3339 timestamp")
		}
		opts.Since = &t
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, kanban.New(kanban.InvalidRequest, "limit must be a non-negative integer")
		}
		opts.Limit = n
	}
	for _, k := range c.QueryArray("kind") {
		for _, part := range strings.Split(k, ",") {
			if part = strings.TrimSpace(part); part != "" {
				opts.Kinds = append(opts.Kinds, part)
			}
		}
	}
	opts.TaskID = c.Query("task")
	opts.Recent = c.Query("recent") == "true"
	return opts, nil
}

func (s *Server) handleEvents(c *gin.Context) {
	ctx := c.Request.Context()
	boardID := c.Param("board")
	if _, err := s.board.GetBoard(ctx, boardID); err != nil {
		s.fail(c, err)
		return
	}
	opts, err := eventQuery(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	db := s.board.DB().WithContext(ctx)
	events, err := eventlog.Query(db, boardID, opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	enriched, err := eventlog.Enrich(db, events, eventlog.EnrichOpts{RecentComments: s.opts.RecentComments})
	if err != nil {
		s.fail(c, err)
		return
	}
	last, err := eventlog.LastSeq(db, boardID)
	if err != nil {
		s.fail(c, err)
		return
	}
	if enriched == nil {
		enriched = []eventlog.Enriched{}
	}
	c.JSON(http.StatusOK, gin.H{"events": enriched, "last_seq": last})
}
