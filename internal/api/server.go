package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/triagedesk/internal/feed"
	"github.com/triagedesk/internal/ingest"
	"github.com/triagedesk/pkg/models"
)

// ReportQueue accepts incoming call reports for background processing.
type ReportQueue interface {
	Enqueue(ctx context.Context, args ingest.CallReportArgs) error
}

// CallReader serves point lookups that bypass the in-memory feed window.
type CallReader interface {
	FetchByID(ctx context.Context, id string) (models.CallRecord, error)
}

// Server hosts the dashboard API and the voice webhook.
type Server struct {
	echo          *echo.Echo
	port          int
	feed          *feed.Feed
	calls         CallReader
	queue         ReportQueue
	limiter       *rate.Limiter
	webhookSecret string
}

// Config carries the HTTP-facing settings for NewServer.
type Config struct {
	Port          int
	WebhookSecret string
	// WebhookRatePerSec and WebhookBurst bound how fast the voice
	// provider may post call reports. Zero values fall back to 10/20.
	WebhookRatePerSec float64
	WebhookBurst      int
}

// NewServer wires the echo instance, middleware and routes.
func NewServer(cfg Config, f *feed.Feed, calls CallReader, queue ReportQueue) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	if cfg.WebhookRatePerSec <= 0 {
		cfg.WebhookRatePerSec = 10
	}
	if cfg.WebhookBurst <= 0 {
		cfg.WebhookBurst = 20
	}

	s := &Server{
		echo:          e,
		port:          cfg.Port,
		feed:          f,
		calls:         calls,
		queue:         queue,
		limiter:       rate.NewLimiter(rate.Limit(cfg.WebhookRatePerSec), cfg.WebhookBurst),
		webhookSecret: cfg.WebhookSecret,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.GET("/calls", s.handleListCalls)
	v1.GET("/calls/:id", s.handleGetCall)

	s.echo.POST("/webhooks/voice", s.handleVoiceWebhook)
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + strconv.Itoa(s.port)
		log.Info().Str("addr", addr).Msg("starting API server")
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down API server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routed http.Handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"feed":   s.feed.Status().String(),
	})
}

type callsResponse struct {
	Calls            []models.CallRecord `json:"calls"`
	ConnectionStatus string              `json:"connection_status"`
	Highlights       []string            `json:"highlights"`
}

func (s *Server) handleListCalls(c echo.Context) error {
	snap := s.feed.Snapshot()
	resp := callsResponse{
		Calls:            snap.Records,
		ConnectionStatus: snap.Status.String(),
		Highlights:       snap.Highlights,
	}
	if resp.Calls == nil {
		resp.Calls = []models.CallRecord{}
	}
	if resp.Highlights == nil {
		resp.Highlights = []string{}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetCall(c echo.Context) error {
	id := c.Param("id")
	rec, err := s.calls.FetchByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, feed.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "call not found")
		}
		log.Error().Err(err).Str("call_id", id).Msg("call lookup failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "lookup failed")
	}
	return c.JSON(http.StatusOK, rec)
}

// voiceWebhookRequest is the payload posted by the voice provider at
// the end of a triage call.
type voiceWebhookRequest struct {
	CallID        string               `json:"call_id"`
	CallerPhone   string               `json:"caller_phone"`
	Transcript    string               `json:"transcript"`
	WeeksPregnant int                  `json:"weeks_pregnant"`
	Symptoms      models.SymptomReport `json:"symptoms"`
}

func (s *Server) handleVoiceWebhook(c echo.Context) error {
	if !s.limiter.Allow() {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
	}

	if s.webhookSecret != "" {
		got := c.Request().Header.Get("x-webhook-secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.webhookSecret)) != 1 {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook secret")
		}
	}

	var req voiceWebhookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if req.CallID != "" {
		if err := uuid.Validate(req.CallID); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "call_id must be a UUID")
		}
	}

	args := ingest.CallReportArgs{
		CallID:        req.CallID,
		CallerPhone:   req.CallerPhone,
		Transcript:    req.Transcript,
		WeeksPregnant: req.WeeksPregnant,
		Symptoms:      req.Symptoms,
		ReceivedAt:    time.Now().UTC(),
	}
	if err := s.queue.Enqueue(c.Request().Context(), args); err != nil {
		log.Error().Err(err).Str("call_id", req.CallID).Msg("failed to enqueue call report")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to queue report")
	}

	log.Info().Str("call_id", req.CallID).Msg("call report queued")
	return c.JSON(http.StatusAccepted, map[string]string{"status": "queued"})
}
