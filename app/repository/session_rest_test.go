package repository

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-azul-payments/app/entity"
)

func newRESTRepository(url string) *RESTSessionRepository {
	return NewRESTSessionRepository(RESTSessionRepositoryConfig{
		BaseURL:     url + "/",
		APIKey:      "service-key",
		CallTimeout: time.Second,
	})
}

func TestRESTSessionRepositoryCreate(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rest/v1/sessions_3ds" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("apikey") != "service-key" || r.Header.Get("Authorization") != "Bearer service-key" {
			t.Errorf("missing auth headers: %v", r.Header)
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	orderID := "ORD1"
	now := time.Now().UTC()
	err := newRESTRepository(srv.URL).Create(context.Background(), &entity.Session{
		SessionID:       testSessionID,
		AzulOrderID:     &orderID,
		Status:          entity.SessionStatusInitiated,
		GatewayResponse: []byte(`{"AzulOrderId":"ORD1"}`),
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body["session_id"] != testSessionID || body["azul_order_id"] != "ORD1" || body["status"] != "initiated" {
		t.Fatalf("unexpected body: %v", body)
	}
	if gw, ok := body["gateway_response"].(map[string]interface{}); !ok || gw["AzulOrderId"] != "ORD1" {
		t.Fatalf("gateway response must be sent as JSON, got %v", body["gateway_response"])
	}
}

func TestRESTSessionRepositoryCreateConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	err := newRESTRepository(srv.URL).Create(context.Background(), &entity.Session{SessionID: testSessionID})
	if !errors.Is(err, ErrSessionAlreadyExists) {
		t.Fatalf("expected ErrSessionAlreadyExists, got %v", err)
	}
}

func TestRESTSessionRepositoryFind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("session_id") != "eq."+testSessionID {
			t.Errorf("unexpected filter %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[{"session_id":"` + testSessionID + `","azul_order_id":"ORD1","custom_order_id":"","status":"challenge","method_notification_received":true,"gateway_response":null,"cres":null,"created_at":"2026-01-02T03:04:05.123+00:00","updated_at":"2026-01-02T03:04:06+00:00"}]`))
	}))
	defer srv.Close()

	session, err := newRESTRepository(srv.URL).FindBySessionID(context.Background(), testSessionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session == nil || session.Status != entity.SessionStatusChallenge || !session.MethodNotificationReceived {
		t.Fatalf("unexpected session: %+v", session)
	}
	if session.GatewayResponse != nil || session.CreatedAt.IsZero() {
		t.Fatalf("unexpected decoded fields: %+v", session)
	}
}

func TestRESTSessionRepositoryFindEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	session, err := newRESTRepository(srv.URL).FindBySessionID(context.Background(), testSessionID)
	if err != nil || session != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", session, err)
	}
}

func TestRESTSessionRepositoryFindServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := newRESTRepository(srv.URL).FindBySessionID(context.Background(), testSessionID); err == nil {
		t.Fatal("expected error")
	}
}

func TestRESTSessionRepositoryPatch(t *testing.T) {
	var (
		query patchFilters
		body  map[string]interface{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("unexpected method %s", r.Method)
		}
		if r.Header.Get("Prefer") != "return=representation" {
			t.Errorf("unexpected prefer header %q", r.Header.Get("Prefer"))
		}
		query = patchFilters{session: r.URL.Query().Get("session_id"), status: r.URL.Query().Get("status")}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		_, _ = w.Write([]byte(`[{"session_id":"` + testSessionID + `"}]`))
	}))
	defer srv.Close()

	err := newRESTRepository(srv.URL).Patch(context.Background(), testSessionID, &entity.SessionPatch{
		Status:          entity.StatusPtr(entity.SessionStatusChallenge),
		GatewayResponse: []byte(`{"ResponseMessage":"3D_SECURE_CHALLENGE"}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if query.session != "eq."+testSessionID || query.status != "in.(initiated,3ds_method)" {
		t.Fatalf("unexpected filters: %+v", query)
	}
	if body["status"] != "challenge" || body["updated_at"] == nil {
		t.Fatalf("unexpected body: %v", body)
	}
	if _, ok := body["method_notification_received"]; ok {
		t.Fatalf("flag must not be written when not set: %v", body)
	}
	if _, ok := body["azul_order_id"]; ok {
		t.Fatalf("gateway order id must never be patched: %v", body)
	}
}

type patchFilters struct {
	session string
	status  string
}

func TestRESTSessionRepositoryPatchNoRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	err := newRESTRepository(srv.URL).Patch(context.Background(), testSessionID, &entity.SessionPatch{MethodNotificationReceived: true})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRESTSessionRepositoryDeleteStale(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method %s", r.Method)
		}
		if r.URL.Query().Get("status") != "neq.approved" || r.URL.Query().Get("created_at") != "lt.2026-01-02T03:04:05Z" {
			t.Errorf("unexpected filters %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[{"session_id":"a"},{"session_id":"b"}]`))
	}))
	defer srv.Close()

	deleted, err := newRESTRepository(srv.URL).DeleteStale(context.Background(), time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	if err != nil || deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d, %v", deleted, err)
	}
}
