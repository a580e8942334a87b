package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/vibast-solutions/ms-go-azul-payments/app/entity"
)

var (
	// ErrSessionNotFound is returned by Patch when no session matched, either because the id
	// is unknown or because the requested status transition was not allowed.
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
)

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func isDuplicateEntryError(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

func nullableStringValue(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableJSONValue(v json.RawMessage) interface{} {
	if len(v) == 0 {
		return nil
	}
	return string(v)
}

func stringPtrFromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func rawJSONFromNull(v sql.NullString) json.RawMessage {
	if !v.Valid || v.String == "" || v.String == "null" {
		return nil
	}
	return json.RawMessage(v.String)
}

func withCallTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// sessionRecord is the JSON shape of a session row, shared by the PostgREST and Redis stores.
type sessionRecord struct {
	SessionID                  string          `json:"session_id"`
	AzulOrderID                *string         `json:"azul_order_id"`
	CustomOrderID              string          `json:"custom_order_id"`
	Status                     string          `json:"status"`
	MethodNotificationReceived bool            `json:"method_notification_received"`
	GatewayResponse            json.RawMessage `json:"gateway_response,omitempty"`
	CRes                       *string         `json:"cres"`
	CreatedAt                  time.Time       `json:"created_at"`
	UpdatedAt                  time.Time       `json:"updated_at"`
}

func newSessionRecord(session *entity.Session) *sessionRecord {
	return &sessionRecord{
		SessionID:                  session.SessionID,
		AzulOrderID:                session.AzulOrderID,
		CustomOrderID:              session.CustomOrderID,
		Status:                     string(session.Status),
		MethodNotificationReceived: session.MethodNotificationReceived,
		GatewayResponse:            session.GatewayResponse,
		CRes:                       session.CRes,
		CreatedAt:                  session.CreatedAt.UTC(),
		UpdatedAt:                  session.UpdatedAt.UTC(),
	}
}

func (r *sessionRecord) toEntity() *entity.Session {
	gatewayResponse := r.GatewayResponse
	if string(gatewayResponse) == "null" {
		gatewayResponse = nil
	}
	return &entity.Session{
		SessionID:                  r.SessionID,
		AzulOrderID:                r.AzulOrderID,
		CustomOrderID:              r.CustomOrderID,
		Status:                     entity.SessionStatus(r.Status),
		MethodNotificationReceived: r.MethodNotificationReceived,
		GatewayResponse:            gatewayResponse,
		CRes:                       r.CRes,
		CreatedAt:                  r.CreatedAt,
		UpdatedAt:                  r.UpdatedAt,
	}
}

// patchFields lists the columns a patch writes, keyed by column name.
func patchFields(patch *entity.SessionPatch, now time.Time) map[string]interface{} {
	fields := map[string]interface{}{"updated_at": now}
	if patch.Status != nil {
		fields["status"] = string(*patch.Status)
	}
	if patch.MethodNotificationReceived {
		fields["method_notification_received"] = true
	}
	if len(patch.GatewayResponse) > 0 {
		fields["gateway_response"] = patch.GatewayResponse
	}
	if patch.CRes != nil {
		fields["cres"] = *patch.CRes
	}
	return fields
}

func statusStrings(statuses []entity.SessionStatus) []string {
	items := make([]string, 0, len(statuses))
	for _, status := range statuses {
		items = append(items, string(status))
	}
	return items
}
