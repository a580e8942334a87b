package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/vibast-solutions/ms-go-azul-payments/app/entity"
)

const testSessionID = "0b6f0a52-7c55-4c47-9d2e-8f7d6f2e1a10"

func newMockRepository(t *testing.T) (*SessionRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewSessionRepository(db, time.Second), mock
}

func TestSessionRepositoryCreate(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now().UTC()
	orderID := "ORD1"

	mock.ExpectExec("INSERT INTO sessions_3ds").
		WithArgs(testSessionID, "ORD1", "order-7", "initiated", false, `{"AzulOrderId":"ORD1"}`, nil, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &entity.Session{
		SessionID:       testSessionID,
		AzulOrderID:     &orderID,
		CustomOrderID:   "order-7",
		Status:          entity.SessionStatusInitiated,
		GatewayResponse: []byte(`{"AzulOrderId":"ORD1"}`),
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSessionRepositoryCreateDuplicate(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec("INSERT INTO sessions_3ds").
		WillReturnError(&mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := repo.Create(context.Background(), &entity.Session{SessionID: testSessionID, Status: entity.SessionStatusInitiated})
	if !errors.Is(err, ErrSessionAlreadyExists) {
		t.Fatalf("expected ErrSessionAlreadyExists, got %v", err)
	}
}

func TestSessionRepositoryFindBySessionID(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"session_id", "azul_order_id", "custom_order_id", "status", "method_notification_received",
		"gateway_response", "cres", "created_at", "updated_at",
	}).AddRow(testSessionID, "ORD1", "order-7", "3ds_method", true, `{"ResponseMessage":"3D_SECURE_2_METHOD"}`, nil, now, now)

	mock.ExpectQuery("SELECT (.+) FROM sessions_3ds").WithArgs(testSessionID).WillReturnRows(rows)

	session, err := repo.FindBySessionID(context.Background(), testSessionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session == nil || session.Status != entity.SessionStatusMethod || !session.MethodNotificationReceived {
		t.Fatalf("unexpected session: %+v", session)
	}
	if session.AzulOrderID == nil || *session.AzulOrderID != "ORD1" || session.CRes != nil {
		t.Fatalf("unexpected nullable fields: %+v", session)
	}
	if string(session.GatewayResponse) != `{"ResponseMessage":"3D_SECURE_2_METHOD"}` {
		t.Fatalf("unexpected gateway response: %s", session.GatewayResponse)
	}
}

func TestSessionRepositoryFindMissingReturnsNil(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT (.+) FROM sessions_3ds").WithArgs(testSessionID).
		WillReturnRows(sqlmock.NewRows([]string{"session_id"}))

	session, err := repo.FindBySessionID(context.Background(), testSessionID)
	if err != nil || session != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", session, err)
	}
}

func TestSessionRepositoryPatchGuardsStatus(t *testing.T) {
	repo, mock := newMockRepository(t)

	query := "UPDATE sessions_3ds SET updated_at = ?, status = ?, gateway_response = ?, cres = ? WHERE session_id = ? AND status IN (?, ?, ?)"
	mock.ExpectExec(regexp.QuoteMeta(query)).
		WithArgs(sqlmock.AnyArg(), "approved", `{"IsoCode":"00"}`, "cres-1", testSessionID, "initiated", "3ds_method", "challenge").
		WillReturnResult(sqlmock.NewResult(0, 1))

	cres := "cres-1"
	err := repo.Patch(context.Background(), testSessionID, &entity.SessionPatch{
		Status:          entity.StatusPtr(entity.SessionStatusApproved),
		GatewayResponse: []byte(`{"IsoCode":"00"}`),
		CRes:            &cres,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSessionRepositoryPatchRejectedTransition(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions_3ds SET updated_at = ?, status = ? WHERE session_id = ? AND status IN (?)")).
		WithArgs(sqlmock.AnyArg(), "3ds_method", testSessionID, "initiated").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Patch(context.Background(), testSessionID, &entity.SessionPatch{Status: entity.StatusPtr(entity.SessionStatusMethod)})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionRepositoryPatchMethodFlag(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions_3ds SET updated_at = ?, method_notification_received = 1 WHERE session_id = ?")).
		WithArgs(sqlmock.AnyArg(), testSessionID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Patch(context.Background(), testSessionID, &entity.SessionPatch{MethodNotificationReceived: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSessionRepositoryPatchToInitiatedNeverQueries(t *testing.T) {
	repo, mock := newMockRepository(t)

	err := repo.Patch(context.Background(), testSessionID, &entity.SessionPatch{Status: entity.StatusPtr(entity.SessionStatusInitiated)})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSessionRepositoryDeleteStale(t *testing.T) {
	repo, mock := newMockRepository(t)
	before := time.Now().Add(-15 * time.Minute).UTC()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions_3ds WHERE created_at < ? AND status <> ?")).
		WithArgs(before, "approved").
		WillReturnResult(sqlmock.NewResult(0, 4))

	deleted, err := repo.DeleteStale(context.Background(), before)
	if err != nil || deleted != 4 {
		t.Fatalf("expected 4 deleted, got %d, %v", deleted, err)
	}
}

func TestSessionRepositoryPing(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1")).WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
