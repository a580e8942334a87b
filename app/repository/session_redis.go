package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vibast-solutions/ms-go-azul-payments/app/entity"
)

const redisPatchAttempts = 3

type RedisSessionRepositoryConfig struct {
	KeyPrefix   string
	Retention   time.Duration
	ApprovedTTL time.Duration
	CallTimeout time.Duration
}

// RedisSessionRepository keeps one JSON document per session. Sessions expire after the
// retention window unless approved, so stale sessions never need an explicit sweep.
type RedisSessionRepository struct {
	client redis.UniversalClient
	cfg    RedisSessionRepositoryConfig
}

func NewRedisSessionRepository(client redis.UniversalClient, cfg RedisSessionRepositoryConfig) *RedisSessionRepository {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "3ds:session:"
	}
	return &RedisSessionRepository{client: client, cfg: cfg}
}

func (r *RedisSessionRepository) key(sessionID string) string {
	return r.cfg.KeyPrefix + sessionID
}

func (r *RedisSessionRepository) Create(ctx context.Context, session *entity.Session) error {
	ctx, cancel := withCallTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()

	data, err := json.Marshal(newSessionRecord(session))
	if err != nil {
		return err
	}

	created, err := r.client.SetNX(ctx, r.key(session.SessionID), data, r.ttlFor(session.Status)).Result()
	if err != nil {
		return err
	}
	if !created {
		return ErrSessionAlreadyExists
	}
	return nil
}

func (r *RedisSessionRepository) FindBySessionID(ctx context.Context, sessionID string) (*entity.Session, error) {
	ctx, cancel := withCallTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var record sessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return record.toEntity(), nil
}

// Patch reads, applies and writes the document under WATCH so concurrent patches of the
// same session cannot overwrite each other.
func (r *RedisSessionRepository) Patch(ctx context.Context, sessionID string, patch *entity.SessionPatch) error {
	ctx, cancel := withCallTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()

	key := r.key(sessionID)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}

		var record sessionRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return err
		}
		session := record.toEntity()
		if !patch.Apply(session, time.Now().UTC()) {
			return ErrSessionNotFound
		}

		updated, err := json.Marshal(newSessionRecord(session))
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, redis.KeepTTL)
			if session.Status == entity.SessionStatusApproved {
				pipe.Expire(ctx, key, r.ttlFor(session.Status))
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < redisPatchAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return redis.TxFailedErr
}

// DeleteStale is a no-op: non-approved sessions expire on their own.
func (r *RedisSessionRepository) DeleteStale(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (r *RedisSessionRepository) Ping(ctx context.Context) error {
	ctx, cancel := withCallTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

func (r *RedisSessionRepository) ttlFor(status entity.SessionStatus) time.Duration {
	if status == entity.SessionStatusApproved {
		return r.cfg.ApprovedTTL
	}
	return r.cfg.Retention
}
