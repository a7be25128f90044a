package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"echo-planner/internal/ai"
	"echo-planner/internal/repository"
	"echo-planner/internal/service"
)

// UpdateDispatcher forwards transport callbacks to the bot. The webhook
// route and the long-poll loop share one handler set through it.
type UpdateDispatcher interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

// HTTPServer exposes the task service to the mini-app.
type HTTPServer struct {
	gin        *gin.Engine
	logger     *zap.SugaredLogger
	addr       string
	taskSvc    *service.TaskService
	userRepo   *repository.UserRepository
	enricher   *ai.Enricher
	dispatcher UpdateDispatcher
	ratePerMin int
}

// Config is the dependency bag passed to New().
type Config struct {
	Logger     *zap.SugaredLogger
	Addr       string
	TaskSvc    *service.TaskService
	UserRepo   *repository.UserRepository
	Enricher   *ai.Enricher // nil disables enrichment on create
	Dispatcher UpdateDispatcher
	RatePerMin int
}

// New creates the server and maps all routes.
func New(cfg Config) (*HTTPServer, error) {
	gin.SetMode(gin.ReleaseMode)

	srv := &HTTPServer{
		gin:        gin.New(),
		logger:     cfg.Logger,
		addr:       cfg.Addr,
		taskSvc:    cfg.TaskSvc,
		userRepo:   cfg.UserRepo,
		enricher:   cfg.Enricher,
		dispatcher: cfg.Dispatcher,
		ratePerMin: cfg.RatePerMin,
	}

	if err := srv.validate(); err != nil {
		return nil, err
	}

	srv.mapHandlers()
	return srv, nil
}

func (srv *HTTPServer) validate() error {
	if srv.logger == nil {
		return errors.New("logger is required")
	}
	if srv.addr == "" {
		return errors.New("addr is required")
	}
	if srv.taskSvc == nil {
		return errors.New("task service is required")
	}
	if srv.userRepo == nil {
		return errors.New("user repository is required")
	}
	return nil
}

// Run serves until ctx is cancelled. The engine is wrapped in an
// allow-all CORS handler so the mini-app can call from its own origin.
func (srv *HTTPServer) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    srv.addr,
		Handler: cors.AllowAll().Handler(srv.gin),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			srv.logger.Warnw("http shutdown", "error", err)
		}
	}()

	srv.logger.Infow("http server listening", "addr", srv.addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Engine exposes the router for tests.
func (srv *HTTPServer) Engine() *gin.Engine {
	return srv.gin
}
