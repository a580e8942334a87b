package entity

import (
	"encoding/json"
	"regexp"
	"time"

	"github.com/google/uuid"
)

var sessionIDPattern = regexp.MustCompile(`^[0-9a-fA-F-]{36}$`)

// ValidSessionID reports whether id has the shape of a generated session id.
func ValidSessionID(id string) bool {
	if !sessionIDPattern.MatchString(id) {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

func NewSessionID() string {
	return uuid.NewString()
}

type SessionStatus string

const (
	SessionStatusInitiated SessionStatus = "initiated"
	SessionStatusMethod    SessionStatus = "3ds_method"
	SessionStatusChallenge SessionStatus = "challenge"
	SessionStatusApproved  SessionStatus = "approved"
	SessionStatusDeclined  SessionStatus = "declined"
	SessionStatusError     SessionStatus = "error"
)

var allStatuses = []SessionStatus{
	SessionStatusInitiated,
	SessionStatusMethod,
	SessionStatusChallenge,
	SessionStatusApproved,
	SessionStatusDeclined,
	SessionStatusError,
}

// rank orders statuses along the 3DS flow. Terminal statuses share the last rank.
func (s SessionStatus) rank() int {
	switch s {
	case SessionStatusInitiated:
		return 0
	case SessionStatusMethod:
		return 1
	case SessionStatusChallenge:
		return 2
	case SessionStatusApproved, SessionStatusDeclined, SessionStatusError:
		return 3
	default:
		return -1
	}
}

func (s SessionStatus) Valid() bool {
	return s.rank() >= 0
}

func (s SessionStatus) Terminal() bool {
	return s.rank() == 3
}

// CanTransitionTo reports whether a session in status s may move to next.
// Statuses only move forward and terminal statuses never change.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	if !s.Valid() || !next.Valid() || s.Terminal() {
		return false
	}
	return next.rank() > s.rank()
}

// Predecessors lists the statuses from which a session may move to s.
func (s SessionStatus) Predecessors() []SessionStatus {
	items := make([]SessionStatus, 0, 3)
	for _, candidate := range allStatuses {
		if candidate.CanTransitionTo(s) {
			items = append(items, candidate)
		}
	}
	return items
}

type Session struct {
	SessionID string

	AzulOrderID   *string
	CustomOrderID string

	Status                     SessionStatus
	MethodNotificationReceived bool

	GatewayResponse json.RawMessage
	CRes            *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionPatch carries the fields a flow step may change on an existing session.
// Nil/empty fields are left untouched. The gateway order id is fixed at creation and
// the method flag can only be raised.
type SessionPatch struct {
	Status                     *SessionStatus
	MethodNotificationReceived bool
	GatewayResponse            json.RawMessage
	CRes                       *string
}

func (p *SessionPatch) Empty() bool {
	return p == nil || (p.Status == nil && !p.MethodNotificationReceived && len(p.GatewayResponse) == 0 && p.CRes == nil)
}

// Apply mutates session in place. It returns false without touching the session when the
// patch asks for a status transition the state machine does not allow.
func (p *SessionPatch) Apply(session *Session, now time.Time) bool {
	if p.Status != nil && !session.Status.CanTransitionTo(*p.Status) {
		return false
	}
	if p.Status != nil {
		session.Status = *p.Status
	}
	if p.MethodNotificationReceived {
		session.MethodNotificationReceived = true
	}
	if len(p.GatewayResponse) > 0 {
		session.GatewayResponse = append(json.RawMessage(nil), p.GatewayResponse...)
	}
	if p.CRes != nil {
		cres := *p.CRes
		session.CRes = &cres
	}
	session.UpdatedAt = now
	return true
}

func StatusPtr(status SessionStatus) *SessionStatus {
	return &status
}
