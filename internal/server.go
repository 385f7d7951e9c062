package internal

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/KLM-Nandhu/bentsblog/internal/transcript"
)

// BlogService is what the web and MCP surfaces need from the App.
type BlogService interface {
	Generate(ctx context.Context, videoID string) (*BlogResult, error)
	Transcript(ctx context.Context, videoID string) (transcript.Transcript, string, error)
	Metadata(ctx context.Context, videoID string) (*VideoInfo, error)
	Comments(ctx context.Context, videoID string, limit int) ([]Comment, error)
	Renderer() *Renderer
}

// Server is the web UI.
type Server struct {
	svc     BlogService
	log     logrus.FieldLogger
	app     *fiber.App
	timeout time.Duration
	// base parents every request context; Start replaces it with the
	// server's own context so shutdown cancels in-flight generations.
	base context.Context
}

// NewServer builds the fiber app and its routes. timeout bounds each generation.
func NewServer(svc BlogService, log logrus.FieldLogger, timeout time.Duration) *Server {
	s := &Server{
		svc:     svc,
		log:     log,
		timeout: timeout,
		base:    context.Background(),
		app: fiber.New(fiber.Config{
			AppName:               AppName,
			DisableStartupMessage: true,
			ReadTimeout:           30 * time.Second,
		}),
	}

	s.app.Use(RequestLogger(log))
	s.app.Get("/", s.handleIndex)
	s.app.Get("/blog", s.handleBlog)
	s.app.Get("/healthz", s.handleHealth)

	api := s.app.Group("/api")
	api.Get("/blog/:id", s.handleBlogAPI)
	api.Get("/transcript/:id", s.handleTranscript)
	api.Get("/metadata/:id", s.handleMetadata)
	api.Get("/comments/:id", s.handleComments)

	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App { return s.app }

// Start listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.base = ctx
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("web server listening")
		errCh <- s.app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.log.Info("shutting down web server")
		return s.app.ShutdownWithTimeout(10 * time.Second)
	}
}

// RequestLogger creates a middleware handler for structured request logging with logrus.
func RequestLogger(log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID := uuid.NewString()
		c.Locals("requestid", requestID)
		c.Set("X-Request-ID", requestID)

		err := c.Next()

		statusCode := c.Response().StatusCode()
		entry := log.WithFields(logrus.Fields{
			"request_id":  requestID,
			"http_method": c.Method(),
			"uri":         c.OriginalURL(),
			"status_code": statusCode,
			"latency_ms":  time.Since(start).Milliseconds(),
			"client_ip":   c.IP(),
			"user_agent":  string(c.Request().Header.UserAgent()),
		})

		switch {
		case err != nil:
			entry.WithError(err).Error("request processing failed")
		case statusCode >= 500:
			entry.Error("request completed with server error")
		case statusCode >= 400:
			entry.Warn("request completed with client error")
		default:
			entry.Info("request completed")
		}
		return err
	}
}

// requestContext derives from the server context rather than
// c.UserContext, which fiber never cancels.
func (s *Server) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	ctx := s.base
	if ctx == nil {
		ctx = context.Background()
	}
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

// statusFor maps generation errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidVideo):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrVideoNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, transcript.ErrAllMethodsExhausted):
		return fiber.StatusBadGateway
	case errors.Is(err, ErrLLMRateLimited):
		return fiber.StatusTooManyRequests
	case errors.Is(err, ErrLLMTimeout), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, ErrCommentsUnavailable):
		return fiber.StatusNotImplemented
	case errors.Is(err, ErrCommentsDisabled):
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return s.svc.Renderer().Index(c, "", "")
}

func (s *Server) handleBlog(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	query := c.Query("v")
	videoID, err := ParseVideoArg(query)
	if err != nil {
		c.Status(fiber.StatusBadRequest)
		return s.svc.Renderer().Index(c, query, UserMessage(err))
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	res, err := s.svc.Generate(ctx, videoID)
	if err != nil {
		s.log.WithError(err).WithField("video_id", videoID).Warn("blog generation failed")
		c.Status(statusFor(err))
		return s.svc.Renderer().Error(c, UserMessage(err))
	}
	return s.svc.Renderer().Blog(c, res, c.QueryBool("transcript"))
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// respondWithError sends a JSON error response.
func respondWithError(c *fiber.Ctx, statusCode int, message string) error {
	return c.Status(statusCode).JSON(fiber.Map{
		"status":  "error",
		"message": message,
	})
}

// respondWithJSON sends a JSON success response.
func respondWithJSON(c *fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{
		"status": "success",
		"data":   data,
	})
}

func (s *Server) apiVideoID(c *fiber.Ctx) (string, error) {
	videoID, err := ParseVideoArg(c.Params("id"))
	if err != nil {
		return "", respondWithError(c, fiber.StatusBadRequest, UserMessage(err))
	}
	return videoID, nil
}

func (s *Server) handleBlogAPI(c *fiber.Ctx) error {
	videoID, err := s.apiVideoID(c)
	if videoID == "" {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	res, err := s.svc.Generate(ctx, videoID)
	if err != nil {
		s.log.WithError(err).WithField("video_id", videoID).Warn("blog generation failed")
		return respondWithError(c, statusFor(err), UserMessage(err))
	}
	return respondWithJSON(c, res)
}

func (s *Server) handleTranscript(c *fiber.Ctx) error {
	videoID, err := s.apiVideoID(c)
	if videoID == "" {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	t, method, err := s.svc.Transcript(ctx, videoID)
	if err != nil {
		return respondWithError(c, statusFor(err), UserMessage(err))
	}
	return respondWithJSON(c, fiber.Map{
		"video_id": videoID,
		"method":   method,
		"segments": t,
		"text":     transcript.Text(t),
	})
}

func (s *Server) handleMetadata(c *fiber.Ctx) error {
	videoID, err := s.apiVideoID(c)
	if videoID == "" {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	info, err := s.svc.Metadata(ctx, videoID)
	if err != nil {
		return respondWithError(c, statusFor(err), UserMessage(err))
	}
	return respondWithJSON(c, info)
}

func (s *Server) handleComments(c *fiber.Ctx) error {
	videoID, err := s.apiVideoID(c)
	if videoID == "" {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	comments, err := s.svc.Comments(ctx, videoID, c.QueryInt("limit", 0))
	if err != nil {
		return respondWithError(c, statusFor(err), UserMessage(err))
	}
	return respondWithJSON(c, comments)
}
