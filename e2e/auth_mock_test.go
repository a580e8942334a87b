//go:build e2e
// +build e2e

package e2e

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"

	authpb "github.com/vibast-solutions/ms-go-auth/app/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	azulServiceAccess = "azul-payments-service"
	backofficeService = "restaurant-backoffice"

	authMockListenAddr = "0.0.0.0:38085"
)

// apiKeyEnv pairs the environment variable of a test API key with the value used when it is unset.
type apiKeyEnv struct {
	name     string
	fallback string
}

var (
	backofficeKey = apiKeyEnv{name: "AZUL_PAYMENTS_BACKOFFICE_API_KEY", fallback: "azul-backoffice-key"}
	outsiderKey   = apiKeyEnv{name: "AZUL_PAYMENTS_OUTSIDER_API_KEY", fallback: "azul-outsider-key"}
	serviceKey    = apiKeyEnv{name: "AZUL_PAYMENTS_APP_API_KEY", fallback: "azul-payments-app-key"}
)

func (k apiKeyEnv) value() string {
	return envOrDefault(k.name, k.fallback)
}

func envOrDefault(name, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}

// internalAccessMock answers ValidateInternalAccess the way the auth service does for the
// backoffice, which may reach this service, and for an outsider, which may not.
type internalAccessMock struct {
	authpb.UnimplementedAuthServiceServer

	grants map[string][]string
}

func newInternalAccessMock() *internalAccessMock {
	return &internalAccessMock{grants: map[string][]string{
		backofficeKey.value(): {azulServiceAccess, "orders-service"},
		outsiderKey.value():   {"orders-service"},
	}}
}

func (m *internalAccessMock) ValidateInternalAccess(ctx context.Context, req *authpb.ValidateInternalAccessRequest) (*authpb.ValidateInternalAccessResponse, error) {
	if callerAPIKey(ctx) != serviceKey.value() {
		return nil, status.Error(codes.Unauthenticated, "unauthorized caller")
	}

	access, ok := m.grants[strings.TrimSpace(req.GetApiKey())]
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "invalid api key")
	}
	return &authpb.ValidateInternalAccessResponse{
		ServiceName:   backofficeService,
		AllowedAccess: access,
	}, nil
}

func callerAPIKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get("x-api-key"); len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}

func startInternalAccessMock(addr string) (func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	server := grpc.NewServer()
	authpb.RegisterAuthServiceServer(server, newInternalAccessMock())
	go func() {
		_ = server.Serve(listener)
	}()

	return func() {
		server.GracefulStop()
		_ = listener.Close()
	}, nil
}

func TestMain(m *testing.M) {
	for _, key := range []apiKeyEnv{backofficeKey, outsiderKey, serviceKey} {
		_ = os.Setenv(key.name, key.value())
	}

	stop, err := startInternalAccessMock(authMockListenAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "internal access mock: %v\n", err)
		os.Exit(1)
	}

	exitCode := m.Run()
	stop()
	os.Exit(exitCode)
}
