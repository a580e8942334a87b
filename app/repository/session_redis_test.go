package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/vibast-solutions/ms-go-azul-payments/app/entity"
)

func newRedisRepository(t *testing.T) (*RedisSessionRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisSessionRepository(client, RedisSessionRepositoryConfig{
		Retention:   15 * time.Minute,
		ApprovedTTL: 24 * time.Hour,
		CallTimeout: time.Second,
	}), mr
}

func seedRedisSession(t *testing.T, repo *RedisSessionRepository, status entity.SessionStatus) {
	t.Helper()
	orderID := "ORD1"
	now := time.Now().UTC()
	err := repo.Create(context.Background(), &entity.Session{
		SessionID:   testSessionID,
		AzulOrderID: &orderID,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func TestRedisSessionRepositoryCreateAndFind(t *testing.T) {
	repo, mr := newRedisRepository(t)
	seedRedisSession(t, repo, entity.SessionStatusInitiated)

	if ttl := mr.TTL("3ds:session:" + testSessionID); ttl != 15*time.Minute {
		t.Fatalf("expected retention ttl, got %v", ttl)
	}

	session, err := repo.FindBySessionID(context.Background(), testSessionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session == nil || session.Status != entity.SessionStatusInitiated || *session.AzulOrderID != "ORD1" {
		t.Fatalf("unexpected session: %+v", session)
	}

	err = repo.Create(context.Background(), &entity.Session{SessionID: testSessionID, Status: entity.SessionStatusInitiated})
	if !errors.Is(err, ErrSessionAlreadyExists) {
		t.Fatalf("expected ErrSessionAlreadyExists, got %v", err)
	}
}

func TestRedisSessionRepositoryFindMissing(t *testing.T) {
	repo, _ := newRedisRepository(t)

	session, err := repo.FindBySessionID(context.Background(), testSessionID)
	if err != nil || session != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", session, err)
	}
}

func TestRedisSessionRepositoryPatchForwardOnly(t *testing.T) {
	repo, mr := newRedisRepository(t)
	seedRedisSession(t, repo, entity.SessionStatusInitiated)
	ctx := context.Background()

	if err := repo.Patch(ctx, testSessionID, &entity.SessionPatch{Status: entity.StatusPtr(entity.SessionStatusChallenge)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.Patch(ctx, testSessionID, &entity.SessionPatch{Status: entity.StatusPtr(entity.SessionStatusMethod)}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected regression to be rejected, got %v", err)
	}
	if ttl := mr.TTL("3ds:session:" + testSessionID); ttl != 15*time.Minute {
		t.Fatalf("expected ttl to be kept, got %v", ttl)
	}

	if err := repo.Patch(ctx, testSessionID, &entity.SessionPatch{
		Status:          entity.StatusPtr(entity.SessionStatusApproved),
		GatewayResponse: []byte(`{"IsoCode":"00"}`),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ttl := mr.TTL("3ds:session:" + testSessionID); ttl != 24*time.Hour {
		t.Fatalf("expected approved ttl, got %v", ttl)
	}

	session, _ := repo.FindBySessionID(ctx, testSessionID)
	if session.Status != entity.SessionStatusApproved || string(session.GatewayResponse) != `{"IsoCode":"00"}` {
		t.Fatalf("unexpected session: %+v", session)
	}
	if session.AzulOrderID == nil || *session.AzulOrderID != "ORD1" {
		t.Fatalf("gateway order id must survive patches: %+v", session)
	}
}

func TestRedisSessionRepositoryPatchMissing(t *testing.T) {
	repo, _ := newRedisRepository(t)

	err := repo.Patch(context.Background(), testSessionID, &entity.SessionPatch{MethodNotificationReceived: true})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRedisSessionRepositoryPingAndDeleteStale(t *testing.T) {
	repo, _ := newRedisRepository(t)

	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
	deleted, err := repo.DeleteStale(context.Background(), time.Now())
	if err != nil || deleted != 0 {
		t.Fatalf("expected no-op delete, got %d, %v", deleted, err)
	}
}
