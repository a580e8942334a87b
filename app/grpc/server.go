package grpc

import (
	"context"
	"time"

	"github.com/vibast-solutions/ms-go-azul-payments/app/service"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const defaultPingTimeout = 2 * time.Second

// Server answers grpc.health.v1 checks. The service is SERVING only while the session store responds.
type Server struct {
	healthpb.UnimplementedHealthServer
	paymentService *service.PaymentService
	pingTimeout    time.Duration
}

func NewServer(paymentService *service.PaymentService) *Server {
	return &Server{paymentService: paymentService, pingTimeout: defaultPingTimeout}
}

func (s *Server) Check(ctx context.Context, _ *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	pingCtx, cancel := context.WithTimeout(ctx, s.pingTimeout)
	defer cancel()

	if err := s.paymentService.Ping(pingCtx); err != nil {
		loggerWithContext(ctx).WithError(err).Warn("Session store ping failed")
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
