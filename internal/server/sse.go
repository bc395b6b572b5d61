package server

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/corkboard/internal/eventlog"
	"github.com/zulandar/corkboard/internal/kanban"
	"github.com/zulandar/corkboard/internal/models"
	"github.com/zulandar/corkboard/internal/stream"
	"go.uber.org/zap"
)

// Synthetic stream event names.
const (
	sseConnected = "connected"
	sseHeartbeat = "heartbeat"
)

// handleStream serves a board's live events as server-sent events. A client
// resuming with ?after= or Last-Event-ID first receives everything it missed
// from the log, then live events, with no gap and no duplicate.
func (s *Server) handleStream(c *gin.Context) {
	ctx := c.Request.Context()
	boardID := c.Param("board")
	if _, err := s.board.GetBoard(ctx, boardID); err != nil {
		s.fail(c, err)
		return
	}
	cursor, resume, err := streamCursor(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	// Subscribe before reading the log so nothing committed in between is
	// lost; overlap is removed by sequence below.
	sub := s.stream.Subscribe(boardID)
	defer s.stream.Unsubscribe(sub)

	db := s.board.DB().WithContext(ctx)
	last, err := eventlog.LastSeq(db, boardID)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	writeSSE(c.Writer, "", sseConnected, map[string]any{"board_id": boardID, "last_seq": last})
	c.Writer.Flush()

	// A cursor past the head cannot have been seen; clamp it so live events
	// are not filtered out.
	lastSent := min(cursor, last)
	if resume {
		for {
			events, err := eventlog.Query(db, boardID, eventlog.QueryOpts{After: lastSent, Limit: eventlog.MaxLimit})
			if err != nil {
				s.log.Error("stream catch-up", zap.String("board", boardID), zap.Error(err))
				return
			}
			lastSent = s.sendEvents(c.Writer, events, lastSent)
			c.Writer.Flush()
			if len(events) < eventlog.MaxLimit {
				break
			}
		}
	}

	heartbeat := time.NewTicker(s.opts.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			writeSSE(c.Writer, "", sseHeartbeat, map[string]string{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			c.Writer.Flush()
			continue
		case msg, ok := <-sub.Events():
			if !ok {
				return
			}
			if msg.Kind == stream.KindWarning {
				writeSSE(c.Writer, "", stream.KindWarning, map[string]any{
					"message":  "events were dropped; reconcile from the event log",
					"dropped":  msg.Dropped,
					"last_seq": lastSent,
				})
			} else {
				lastSent = s.sendEvents(c.Writer, []models.Event{*msg.Event}, lastSent)
			}
			c.Writer.Flush()
		}
		heartbeat.Reset(s.opts.Heartbeat)
	}
}

// sendEvents writes the events newer than lastSent and returns the new high
// water mark.
func (s *Server) sendEvents(w io.Writer, events []models.Event, lastSent int64) int64 {
	fresh := events[:0:0]
	for _, ev := range events {
		if ev.Seq > lastSent {
			fresh = append(fresh, ev)
		}
	}
	if len(fresh) == 0 {
		return lastSent
	}
	enriched, err := eventlog.Enrich(s.board.DB(), fresh, eventlog.EnrichOpts{RecentComments: s.opts.RecentComments})
	if err != nil {
		s.log.Warn("stream enrich", zap.Error(err))
		enriched = make([]eventlog.Enriched, len(fresh))
		for i, ev := range fresh {
			enriched[i].Event = ev
		}
	}
	for _, ev := range enriched {
		writeSSE(w, strconv.FormatInt(ev.Seq, 10), ev.Kind, ev)
		lastSent = ev.Seq
	}
	return lastSent
}

// streamCursor reads the resume point from ?after or Last-Event-ID. ok is
// false when the client sent neither; an explicit 0 replays the whole log.
func streamCursor(c *gin.Context) (cursor int64, ok bool, err error) {
	v, ok := c.GetQuery("after")
	if !ok {
		v = c.GetHeader("Last-Event-ID")
		ok = v != ""
	}
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, false, kanban.New(kanban.InvalidRequest, "stream cursor must be a non-negative sequence number")
	}
	return n, true, nil
}

// writeSSE writes a single SSE event. id is omitted when empty.
func writeSSE(w io.Writer, id, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	if id != "" {
		fmt.Fprintf(w, "id: %s\n", id)
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData)
}
