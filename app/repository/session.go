package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-azul-payments/app/entity"
)

// SessionRepository stores sessions in the MySQL sessions_3ds table.
type SessionRepository struct {
	db      DBTX
	timeout time.Duration
}

func NewSessionRepository(db DBTX, callTimeout time.Duration) *SessionRepository {
	return &SessionRepository{db: db, timeout: callTimeout}
}

func (r *SessionRepository) Create(ctx context.Context, session *entity.Session) error {
	ctx, cancel := withCallTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO sessions_3ds (
			session_id, azul_order_id, custom_order_id, status, method_notification_received,
			gateway_response, cres, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		session.SessionID,
		nullableStringValue(session.AzulOrderID),
		session.CustomOrderID,
		string(session.Status),
		session.MethodNotificationReceived,
		nullableJSONValue(session.GatewayResponse),
		nullableStringValue(session.CRes),
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrSessionAlreadyExists
		}
		return err
	}
	return nil
}

func (r *SessionRepository) FindBySessionID(ctx context.Context, sessionID string) (*entity.Session, error) {
	ctx, cancel := withCallTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT session_id, azul_order_id, custom_order_id, status, method_notification_received,
			gateway_response, cres, created_at, updated_at
		FROM sessions_3ds
		WHERE session_id = ?
	`

	session := &entity.Session{}
	if err := scanSession(r.db.QueryRowContext(ctx, query, sessionID), session); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return session, nil
}

// Patch applies the patch only when the stored status may move to the patched status.
func (r *SessionRepository) Patch(ctx context.Context, sessionID string, patch *entity.SessionPatch) error {
	ctx, cancel := withCallTimeout(ctx, r.timeout)
	defer cancel()

	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC()}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	if patch.MethodNotificationReceived {
		sets = append(sets, "method_notification_received = 1")
	}
	if len(patch.GatewayResponse) > 0 {
		sets = append(sets, "gateway_response = ?")
		args = append(args, string(patch.GatewayResponse))
	}
	if patch.CRes != nil {
		sets = append(sets, "cres = ?")
		args = append(args, *patch.CRes)
	}

	where := "session_id = ?"
	args = append(args, sessionID)
	if patch.Status != nil {
		predecessors := patch.Status.Predecessors()
		if len(predecessors) == 0 {
			return ErrSessionNotFound
		}
		where += " AND status IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(predecessors)), ", ") + ")"
		for _, status := range predecessors {
			args = append(args, string(status))
		}
	}

	query := "UPDATE sessions_3ds SET " + strings.Join(sets, ", ") + " WHERE " + where

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := withCallTimeout(ctx, r.timeout)
	defer cancel()

	query := `DELETE FROM sessions_3ds WHERE created_at < ? AND status <> ?`
	result, err := r.db.ExecContext(ctx, query, before.UTC(), string(entity.SessionStatusApproved))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *SessionRepository) Ping(ctx context.Context) error {
	ctx, cancel := withCallTimeout(ctx, r.timeout)
	defer cancel()

	var one int
	return r.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

func scanSession(scanner interface{ Scan(dest ...interface{}) error }, session *entity.Session) error {
	var (
		azulOrderID     sql.NullString
		status          string
		gatewayResponse sql.NullString
		cres            sql.NullString
	)

	if err := scanner.Scan(
		&session.SessionID,
		&azulOrderID,
		&session.CustomOrderID,
		&status,
		&session.MethodNotificationReceived,
		&gatewayResponse,
		&cres,
		&session.CreatedAt,
		&session.UpdatedAt,
	); err != nil {
		return err
	}

	session.AzulOrderID = stringPtrFromNull(azulOrderID)
	session.Status = entity.SessionStatus(status)
	session.GatewayResponse = rawJSONFromNull(gatewayResponse)
	session.CRes = stringPtrFromNull(cres)
	return nil
}
