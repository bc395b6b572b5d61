package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/zulandar/corkboard/internal/board"
	"github.com/zulandar/corkboard/internal/kanban"
	"github.com/zulandar/corkboard/internal/ratelimit"
	"go.uber.org/zap"
)

// Request headers.
const (
	HeaderToken = "X-Board-Token"
	HeaderActor = "X-Actor"
)

// accessLog logs one line per request.
func accessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// tokenFrom finds the board token in the Authorization bearer, the
// X-Board-Token header or the token query parameter, in that order.
func tokenFrom(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if rest, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(rest)
		}
	}
	if h := c.GetHeader(HeaderToken); h != "" {
		return strings.TrimSpace(h)
	}
	return c.Query("token")
}

type actorBody struct {
	Actor string `json:"actor"`
}

// authFrom builds the caller's credentials. The actor comes from X-Actor or,
// failing that, an "actor" field in the JSON body.
func authFrom(c *gin.Context) board.Auth {
	auth := board.Auth{Token: tokenFrom(c), Actor: c.GetHeader(HeaderActor)}
	if auth.Actor == "" {
		var body actorBody
		if bind(c, &body) == nil {
			auth.Actor = body.Actor
		}
	}
	return auth
}

// bind decodes the JSON body into v. The body is cached so it can be bound
// more than once; an empty body leaves v untouched.
func bind(c *gin.Context, v any) error {
	if c.Request.Body == nil || c.Request.Method == http.MethodGet {
		return nil
	}
	if err := c.ShouldBindBodyWith(v, binding.JSON); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return kanban.New(kanban.InvalidRequest, "malformed JSON body: %v", err)
	}
	return nil
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind kanban.Kind) int {
	if kind == kanban.DisplayNameRequired {
		return http.StatusUnprocessableEntity
	}
	switch kind.Class() {
	case kanban.ClassValidation:
		return http.StatusBadRequest
	case kanban.ClassReferential:
		return http.StatusNotFound
	case kanban.ClassPolicy, kanban.ClassConflict:
		return http.StatusConflict
	case kanban.ClassAuthorization:
		return http.StatusUnauthorized
	case kanban.ClassThrottling:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Kind    kanban.Kind `json:"kind"`
	Message string      `json:"message"`
}

// fail writes err as a JSON error response. Internal errors are logged and
// their details withheld.
func (s *Server) fail(c *gin.Context, err error) {
	kind := kanban.KindOf(err)
	status := statusFor(kind)
	msg := err.Error()
	var ke *kanban.Error
	if errors.As(err, &ke) && ke.Msg != "" {
		msg = ke.Msg
	}
	if status == http.StatusInternalServerError {
		s.log.Error("internal error", zap.String("path", c.FullPath()), zap.Error(err))
		msg = "internal error"
	}
	var exceeded *ratelimit.Exceeded
	if errors.As(err, &exceeded) {
		setRateHeaders(c, exceeded.Result)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": errorBody{Kind: kind, Message: msg}})
}

func setRateHeaders(c *gin.Context, r ratelimit.Result) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(r.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(r.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(r.Reset.Round(time.Second)/time.Second), 10))
	if !r.Allowed {
		secs := int64((r.RetryIn + time.Second - 1) / time.Second)
		c.Header("Retry-After", strconv.FormatInt(max(secs, 1), 10))
	}
}

// rateLimited guards an endpoint with the server's limiter, keyed by client
// address.
func (s *Server) rateLimited() gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := s.limiter.Check(c.ClientIP())
		if err != nil {
			s.fail(c, err)
			return
		}
		setRateHeaders(c, res)
		c.Next()
	}
}
