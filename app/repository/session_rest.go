package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/vibast-solutions/ms-go-azul-payments/app/entity"
)

type RESTSessionRepositoryConfig struct {
	BaseURL     string
	APIKey      string
	Table       string
	CallTimeout time.Duration
}

// RESTSessionRepository stores sessions through a PostgREST endpoint (Supabase).
type RESTSessionRepository struct {
	client   *resty.Client
	endpoint string
	timeout  time.Duration
}

func NewRESTSessionRepository(cfg RESTSessionRepositoryConfig) *RESTSessionRepository {
	table := cfg.Table
	if table == "" {
		table = "sessions_3ds"
	}

	client := resty.New().
		SetHeader("apikey", cfg.APIKey).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &RESTSessionRepository{
		client:   client,
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/rest/v1/" + table,
		timeout:  cfg.CallTimeout,
	}
}

func (r *RESTSessionRepository) Create(ctx context.Context, session *entity.Session) error {
	ctx, cancel := withCallTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=minimal").
		SetBody(newSessionRecord(session)).
		Post(r.endpoint)
	if err != nil {
		return err
	}
	if resp.StatusCode() == http.StatusConflict {
		return ErrSessionAlreadyExists
	}
	return checkRESTStatus("create", resp)
}

func (r *RESTSessionRepository) FindBySessionID(ctx context.Context, sessionID string) (*entity.Session, error) {
	ctx, cancel := withCallTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParam("session_id", "eq."+sessionID).
		SetQueryParam("select", "*").
		SetQueryParam("limit", "1").
		Get(r.endpoint)
	if err != nil {
		return nil, err
	}
	if err := checkRESTStatus("find", resp); err != nil {
		return nil, err
	}

	var rows []sessionRecord
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return nil, fmt.Errorf("decode session rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toEntity(), nil
}

// Patch applies the patch only when the stored status may move to the patched status.
func (r *RESTSessionRepository) Patch(ctx context.Context, sessionID string, patch *entity.SessionPatch) error {
	ctx, cancel := withCallTimeout(ctx, r.timeout)
	defer cancel()

	req := r.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParam("session_id", "eq."+sessionID).
		SetQueryParam("select", "session_id").
		SetBody(patchFields(patch, time.Now().UTC()))

	if patch.Status != nil {
		predecessors := patch.Status.Predecessors()
		if len(predecessors) == 0 {
			return ErrSessionNotFound
		}
		req.SetQueryParam("status", "in.("+strings.Join(statusStrings(predecessors), ",")+")")
	}

	resp, err := req.Patch(r.endpoint)
	if err != nil {
		return err
	}
	if err := checkRESTStatus("patch", resp); err != nil {
		return err
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return fmt.Errorf("decode patched rows: %w", err)
	}
	if len(rows) == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *RESTSessionRepository) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := withCallTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParam("created_at", "lt."+before.UTC().Format(time.RFC3339)).
		SetQueryParam("status", "neq."+string(entity.SessionStatusApproved)).
		SetQueryParam("select", "session_id").
		Delete(r.endpoint)
	if err != nil {
		return 0, err
	}
	if err := checkRESTStatus("delete", resp); err != nil {
		return 0, err
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return 0, fmt.Errorf("decode deleted rows: %w", err)
	}
	return int64(len(rows)), nil
}

func (r *RESTSessionRepository) Ping(ctx context.Context) error {
	ctx, cancel := withCallTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParam("select", "session_id").
		SetQueryParam("limit", "1").
		Get(r.endpoint)
	if err != nil {
		return err
	}
	return checkRESTStatus("ping", resp)
}

func checkRESTStatus(op string, resp *resty.Response) error {
	if resp.StatusCode() >= 200 && resp.StatusCode() < 300 {
		return nil
	}
	body := resp.Body()
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Errorf("session store %s failed: status=%d body=%s", op, resp.StatusCode(), string(body))
}
