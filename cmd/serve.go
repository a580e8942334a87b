package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	authclient "github.com/vibast-solutions/lib-go-auth/client"
	authmiddleware "github.com/vibast-solutions/lib-go-auth/middleware"
	authlibservice "github.com/vibast-solutions/lib-go-auth/service"
	"github.com/vibast-solutions/ms-go-azul-payments/app/controller"
	"github.com/vibast-solutions/ms-go-azul-payments/app/entity"
	"github.com/vibast-solutions/ms-go-azul-payments/app/gateway"
	paymentgrpc "github.com/vibast-solutions/ms-go-azul-payments/app/grpc"
	"github.com/vibast-solutions/ms-go-azul-payments/app/repository"
	"github.com/vibast-solutions/ms-go-azul-payments/app/service"
	"github.com/vibast-solutions/ms-go-azul-payments/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  "Start both HTTP (Echo) and gRPC servers for the Azul 3-D Secure payments service.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

type sessionStore interface {
	Create(ctx context.Context, session *entity.Session) error
	FindBySessionID(ctx context.Context, sessionID string) (*entity.Session, error)
	Patch(ctx context.Context, sessionID string, patch *entity.SessionPatch) error
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
	Ping(ctx context.Context) error
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, paymentService, cleanup := mustCreatePaymentService()
	defer cleanup()

	paymentController := controller.NewPaymentController(paymentService, cfg.ThreeDS)
	grpcHealthServer := paymentgrpc.NewServer(paymentService)

	var (
		echoInternalAuthMiddleware *authmiddleware.EchoInternalAuthMiddleware
		grpcInternalAuthMiddleware *authmiddleware.GRPCInternalAuthMiddleware
	)
	if cfg.InternalEndpoints.AuthGRPCAddr != "" {
		authGRPCClient, err := authclient.NewGRPCClientFromAddr(context.Background(), cfg.InternalEndpoints.AuthGRPCAddr)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to initialize auth gRPC client")
		}
		defer authGRPCClient.Close()

		internalAuthService := authlibservice.NewInternalAuthService(authGRPCClient)
		echoInternalAuthMiddleware = authmiddleware.NewEchoInternalAuthMiddleware(internalAuthService)
		grpcInternalAuthMiddleware = authmiddleware.NewGRPCInternalAuthMiddleware(internalAuthService)
	} else {
		logrus.Warn("AUTH_SERVICE_GRPC_ADDR is not set, internal endpoints are disabled")
	}

	e := setupHTTPServer(cfg, paymentController, echoInternalAuthMiddleware)
	grpcSrv, lis := setupGRPCServer(cfg, grpcHealthServer, grpcInternalAuthMiddleware)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	go func() {
		logrus.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
		if err := grpcSrv.Serve(lis); err != nil {
			logrus.WithError(err).Fatal("gRPC server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	grpcSrv.GracefulStop()
	paymentService.Wait()

	logrus.Info("Server stopped")
}

func setupHTTPServer(
	cfg *config.Config,
	paymentController *controller.PaymentController,
	internalAuthMiddleware *authmiddleware.EchoInternalAuthMiddleware,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(ensureRequestID())
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"request_id": v.RequestID,
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        redactQuery(v.URI),
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.BodyLimit("256K"))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: []string{cfg.ThreeDS.AllowedOrigin},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAccept, echo.HeaderXRequestID},
	}))

	e.GET("/health", paymentController.Health)

	api := e.Group("/api")
	api.POST("/payment", paymentController.InitiatePayment)

	threeDS := api.Group("/3ds")
	threeDS.POST("/method-notify", paymentController.MethodNotify)
	threeDS.POST("/continue", paymentController.Continue)
	threeDS.POST("/callback", paymentController.ChallengeCallback)
	threeDS.GET("/status", paymentController.SessionStatus)

	if internalAuthMiddleware != nil {
		internal := e.Group("/internal", internalAuthMiddleware.RequireInternalAccess(cfg.App.ServiceName))
		internal.GET("/sessions/:id", paymentController.GetSession)
		internal.POST("/sessions/purge", paymentController.PurgeSessions)
	}

	return e
}

// ensureRequestID keeps the caller's X-Request-ID or assigns a fresh one.
func ensureRequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			requestID := strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderXRequestID))
			if requestID == "" || len(requestID) > 128 {
				requestID = uuid.NewString()
			}
			ctx.Request().Header.Set(echo.HeaderXRequestID, requestID)
			ctx.Response().Header().Set(echo.HeaderXRequestID, requestID)
			return next(ctx)
		}
	}
}

// redactQuery drops query strings from logged URIs. Session ids travel there.
func redactQuery(uri string) string {
	if idx := strings.IndexByte(uri, '?'); idx >= 0 {
		return uri[:idx]
	}
	return uri
}

func setupGRPCServer(
	cfg *config.Config,
	healthServer *paymentgrpc.Server,
	internalAuthMiddleware *authmiddleware.GRPCInternalAuthMiddleware,
) (*grpc.Server, net.Listener) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	interceptors := []grpc.UnaryServerInterceptor{
		paymentgrpc.RecoveryInterceptor(),
		paymentgrpc.RequestIDInterceptor(),
		paymentgrpc.LoggingInterceptor(),
	}
	if internalAuthMiddleware != nil {
		interceptors = append(interceptors, internalAuthMiddleware.UnaryRequireInternalAccess(cfg.App.ServiceName))
	}

	grpcSrv := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	healthpb.RegisterHealthServer(grpcSrv, healthServer)

	return grpcSrv, lis
}

func mustCreatePaymentService() (*config.Config, *service.PaymentService, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	store, closeStore, err := newSessionStore(cfg)
	if err != nil {
		logrus.WithError(err).WithField("driver", cfg.Store.Driver).Fatal("Failed to initialize session store")
	}

	tlsConfig, err := gateway.LoadTLSConfig(gateway.TLSMaterial{
		CertFile: cfg.Azul.CertFile,
		KeyFile:  cfg.Azul.KeyFile,
		CertB64:  cfg.Azul.CertB64,
		KeyB64:   cfg.Azul.KeyB64,
		CAFile:   cfg.Azul.CAFile,
	})
	if err != nil {
		closeStore()
		logrus.WithError(err).Fatal("Failed to load Azul client certificate")
	}

	gatewayClient := gateway.NewClient(gateway.Config{
		URL:        cfg.Azul.URL,
		MerchantID: cfg.Azul.MerchantID,
		Auth1:      cfg.Azul.Auth1,
		Auth2:      cfg.Azul.Auth2,
		Timeout:    cfg.Azul.HTTPTimeout,
		TLS:        tlsConfig,
	})

	paymentService := service.NewPaymentService(store, gatewayClient, cfg.ThreeDS)

	return cfg, paymentService, closeStore
}

func newSessionStore(cfg *config.Config) (sessionStore, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMySQL:
		db, err := sql.Open("mysql", cfg.Store.MySQL.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		db.SetMaxOpenConns(cfg.Store.MySQL.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Store.MySQL.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Store.MySQL.ConnMaxLifetime)

		store := repository.NewSessionRepository(db, cfg.Store.CallTimeout)
		if err := store.Ping(context.Background()); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ping database: %w", err)
		}
		return store, func() {
			if err := db.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close database")
			}
		}, nil

	case config.StoreDriverRedis:
		opts, err := redis.ParseURL(cfg.Store.Redis.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)

		store := repository.NewRedisSessionRepository(client, repository.RedisSessionRepositoryConfig{
			KeyPrefix:   cfg.Store.Redis.KeyPrefix,
			Retention:   cfg.ThreeDS.SessionRetention,
			ApprovedTTL: cfg.Store.Redis.ApprovedTTL,
			CallTimeout: cfg.Store.CallTimeout,
		})
		if err := store.Ping(context.Background()); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return store, func() {
			if err := client.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close redis client")
			}
		}, nil

	case config.StoreDriverREST:
		store := repository.NewRESTSessionRepository(repository.RESTSessionRepositoryConfig{
			BaseURL:     cfg.Store.REST.URL,
			APIKey:      cfg.Store.REST.Key,
			Table:       cfg.Store.REST.Table,
			CallTimeout: cfg.Store.CallTimeout,
		})
		if err := store.Ping(context.Background()); err != nil {
			logrus.WithError(err).Warn("Session store is not reachable yet")
		}
		return store, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported session store driver %q", cfg.Store.Driver)
	}
}
