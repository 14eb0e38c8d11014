// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medconnect-service/internal/config"
	adminHandler "medconnect-service/internal/handlers/admin"
	appointmentHandler "medconnect-service/internal/handlers/appointment"
	assistantHandler "medconnect-service/internal/handlers/assistant"
	healthHandler "medconnect-service/internal/handlers/health"
	subscriptionHandler "medconnect-service/internal/handlers/subscription"
	usageHandler "medconnect-service/internal/handlers/usage"
	wsHandler "medconnect-service/internal/handlers/websocket"
	"medconnect-service/internal/middleware"
	"medconnect-service/internal/pkg/jwt"
	appointmentUsecase "medconnect-service/internal/service/appointment"
	assistantUsecase "medconnect-service/internal/service/assistant"
	notifyUsecase "medconnect-service/internal/service/notification"
	subscriptionUsecase "medconnect-service/internal/service/subscription"
	usageUsecase "medconnect-service/internal/service/usage"
	"medconnect-service/internal/websocket"
	wsHandlers "medconnect-service/internal/websocket/handler"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
}

func NewServer(cfg config.AppConfig, logger *zap.Logger) *Server {
	if !cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}
	return &Server{cfg: cfg, engine: gin.New(), logger: logger}
}

// Start wires every dependency and serves HTTP until ctx is cancelled, then
// drains in-flight requests within the shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	logger := s.logger

	// ----- Infrastructure -----
	infra, err := connectInfra(ctx, s.cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	// ----- JWT -----
	jwtManager, err := jwt.LoadAndBuild(s.cfg.JWT.Token())
	if err != nil {
		return fmt.Errorf("failed to load JWT keys: %w", err)
	}

	stores, err := buildStores(s.cfg, infra)
	if err != nil {
		return err
	}

	catalog, err := buildCatalog(s.cfg)
	if err != nil {
		return err
	}

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(jwtManager.Verifier, infra.revocations(), logger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	// ----- Services -----
	sender, err := buildEmailSender(s.cfg, logger)
	if err != nil {
		return err
	}

	subscriptionService := subscriptionUsecase.NewSubscriptionService(
		stores.subscriptions,
		stores.billing,
		stores.planLogs,
		stores.ledger,
		catalog,
		subscriptionUsecase.NewSimulatedGateway(logger),
		logger,
	).WithPublisher(hub)

	notifService := notifyUsecase.NewNotificationService(
		sender,
		infra.cache,
		subscriptionService,
		s.cfg.PublicURL,
		logger,
	)
	subscriptionService.WithMailer(notifService)

	usageService := usageUsecase.NewUsageService(stores.ledger, catalog, subscriptionService, logger).
		WithPublisher(hub).
		WithNotifier(notifService).
		WithProfiles(subscriptionService).
		WithCache(infra.cache, s.cfg.AnalyticsCacheTTL)

	responder, err := buildResponder(ctx, s.cfg.AI)
	if err != nil {
		return err
	}
	assistantService := assistantUsecase.NewAssistantService(responder, s.cfg.AI.Timeout, logger)
	appointmentService := appointmentUsecase.NewAppointmentService(stores.appointments, logger)

	if err := hub.RegisterHandler(wsHandlers.NewUsageHandler(usageService)); err != nil {
		return err
	}

	// ----- Handlers -----
	handlers := &Handlers{
		UsageHandler:        usageHandler.NewUsageHandler(usageService),
		SubscriptionHandler: subscriptionHandler.NewSubscriptionHandler(subscriptionService),
		AdminHandler:        adminHandler.NewAdminHandler(subscriptionService),
		AssistantHandler:    assistantHandler.NewAssistantHandler(assistantService),
		AppointmentHandler:  appointmentHandler.NewAppointmentHandler(appointmentService),
		HealthHandler:       healthHandler.NewHealthHandler(infra.healthChecks(), hub.TotalClients),
		WSHandler:           wsHandler.NewWebSocketHandler(hub, s.cfg.AllowedOrigins, logger),
		AuthMiddleware:      middleware.NewAuthMiddleware(jwtManager.Verifier, infra.revocations(), logger),
		UsageGate:           usageService,
		RateLimiter:         infra.rateLimiter(),
	}

	// ----- Middlewares -----
	s.engine.Use(
		middleware.RequestID(),
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(s.cfg.AllowedOrigins),
	)

	// ----- Router -----
	SetupRouter(s.engine, s.cfg, logger, handlers)

	// ----- Start HTTP -----
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", s.cfg.HTTPAddr),
			zap.String("ledger", s.cfg.LedgerBackend),
			zap.String("store", s.cfg.StoreBackend),
			zap.String("ai_provider", responder.Name()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	stopHub()
	logger.Info("server stopped gracefully")
	return nil
}
