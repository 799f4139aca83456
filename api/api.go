// Package api exposes a vesting engine over HTTP. The read-only query
// surface is open; mutating endpoints require an API key that maps to a
// caller identity and its granted capabilities.
package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/vestflow-xyz/go-vestflow/access"
	"github.com/vestflow-xyz/go-vestflow/engine"
	"github.com/vestflow-xyz/go-vestflow/vesting"
)

const apiKeyHeader = "X-Api-Key"

// Server serves one engine instance.
type Server struct {
	app   *fiber.App
	eng   *engine.Engine
	keys  map[string]access.Caller
	log   zerolog.Logger
	clock func() uint64
}

// Option configures the server.
type Option func(*Server)

// WithAPIKeys installs the API key to caller mapping for mutating endpoints.
func WithAPIKeys(keys map[string]access.Caller) Option {
	return func(s *Server) { s.keys = keys }
}

// WithLogger attaches a structured logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithClock overrides the time source (unix seconds). Used by tests.
func WithClock(clock func() uint64) Option {
	return func(s *Server) { s.clock = clock }
}

// New builds the HTTP server for an engine.
func New(eng *engine.Engine, opts ...Option) *Server {
	s := &Server{
		eng:   eng,
		keys:  make(map[string]access.Caller),
		log:   zerolog.Nop(),
		clock: func() uint64 { return uint64(time.Now().Unix()) },
	}
	for _, opt := range opts {
		opt(s)
	}

	s.app = fiber.New(fiber.Config{
		ErrorHandler: s.errorHandler,
	})
	s.routes()
	return s
}

// App returns the underlying fiber app (used by tests).
func (s *Server) App() *fiber.App { return s.app }

// Listen serves the API on the given address until shutdown.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) routes() {
	v1 := s.app.Group("/api/v1")

	v1.Get("/schedules/count", s.getScheduleCount)
	v1.Get("/schedules/:id", s.getSchedule)
	v1.Get("/schedules/:id/releasable", s.getReleasable)
	v1.Get("/holders/:address/schedules/count", s.getHolderCount)
	v1.Get("/holders/:address/schedules/last", s.getLastForHolder)
	v1.Get("/holders/:address/schedules/:index/id", s.getScheduleID)
	v1.Get("/pool/withdrawable", s.getWithdrawable)

	mutating := v1.Group("", s.requireCaller)
	mutating.Post("/schedules", s.postCreate)
	mutating.Post("/schedules/:id/release", s.postRelease)
	mutating.Post("/schedules/:id/revoke", s.postRevoke)
	mutating.Post("/pool/lock", s.postLock)
	mutating.Post("/pool/release-locked", s.postReleaseLocked)
	mutating.Post("/pool/withdraw", s.postWithdraw)
}

// requireCaller resolves the API key into the caller capability context.
func (s *Server) requireCaller(c *fiber.Ctx) error {
	key := c.Get(apiKeyHeader)
	if key == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "missing api key")
	}
	caller, ok := s.keys[key]
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unknown api key")
	}
	c.Locals("caller", caller)
	return nil
}

func (s *Server) caller(c *fiber.Ctx) access.Caller {
	caller, _ := c.Locals("caller").(access.Caller)
	return caller
}

// now returns the request's effective timestamp, sampled once. Tests may pin
// it with a "now" query parameter.
func (s *Server) now(c *fiber.Ctx) uint64 {
	if v := c.QueryInt("now", 0); v > 0 {
		return uint64(v)
	}
	return s.clock()
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(errorResponse{Error: fiberErr.Message})
	}

	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, vesting.ErrInvalidSchedule):
		status = fiber.StatusBadRequest
	case errors.Is(err, vesting.ErrUnauthorized):
		status = fiber.StatusForbidden
	case errors.Is(err, vesting.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, vesting.ErrInsufficientFunds),
		errors.Is(err, vesting.ErrInsufficientWithdrawable),
		errors.Is(err, vesting.ErrInsufficientVested),
		errors.Is(err, vesting.ErrAlreadyRevoked),
		errors.Is(err, vesting.ErrNotRevocable):
		status = fiber.StatusConflict
	default:
		s.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}

	return c.Status(status).JSON(errorResponse{Error: err.Error()})
}
