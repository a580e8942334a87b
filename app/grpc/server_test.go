package grpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-azul-payments/app/entity"
	"github.com/vibast-solutions/ms-go-azul-payments/app/gateway"
	"github.com/vibast-solutions/ms-go-azul-payments/app/service"
	"github.com/vibast-solutions/ms-go-azul-payments/config"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type grpcSessionRepo struct {
	pingErr error
}

func (r *grpcSessionRepo) Create(context.Context, *entity.Session) error { return nil }

func (r *grpcSessionRepo) FindBySessionID(context.Context, string) (*entity.Session, error) {
	return nil, nil
}

func (r *grpcSessionRepo) Patch(context.Context, string, *entity.SessionPatch) error { return nil }

func (r *grpcSessionRepo) DeleteStale(context.Context, time.Time) (int64, error) { return 0, nil }

func (r *grpcSessionRepo) Ping(context.Context) error { return r.pingErr }

type grpcGateway struct{}

func (grpcGateway) Authorize(context.Context, *gateway.SaleRequest) (*gateway.Response, error) {
	return nil, errors.New("not used")
}

func (grpcGateway) ProcessMethod(context.Context, *gateway.MethodRequest) (*gateway.Response, error) {
	return nil, errors.New("not used")
}

func (grpcGateway) ProcessChallenge(context.Context, *gateway.ChallengeRequest) (*gateway.Response, error) {
	return nil, errors.New("not used")
}

func TestHealthCheckServing(t *testing.T) {
	srv := NewServer(service.NewPaymentService(&grpcSessionRepo{}, grpcGateway{}, config.ThreeDSConfig{}))

	resp, err := srv.Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", resp.GetStatus())
	}
}

func TestHealthCheckNotServingWhenStoreIsDown(t *testing.T) {
	srv := NewServer(service.NewPaymentService(&grpcSessionRepo{pingErr: errors.New("down")}, grpcGateway{}, config.ThreeDSConfig{}))

	resp, err := srv.Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING, got %v", resp.GetStatus())
	}
}
