package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vibast-solutions/ms-go-azul-payments/app/entity"
	"github.com/vibast-solutions/ms-go-azul-payments/app/gateway"
)

// CallbackStatusSessionNotFound is reported when the issuer posts back for an unknown session.
const CallbackStatusSessionNotFound = "session_not_found"

// ChallengeResult is the outcome of a challenge callback. Outcome is nil when no gateway
// decision was obtained during this call.
type ChallengeResult struct {
	SessionID string
	Status    string
	Outcome   Outcome
}

func (r *ChallengeResult) Approved() bool {
	return r != nil && r.Status == string(entity.SessionStatusApproved)
}

// CompleteChallenge finalizes authorization after the cardholder answered the issuer challenge.
// It always returns a result. A non-nil error means the flow failed internally and the
// session was marked as errored in the background.
func (s *PaymentService) CompleteChallenge(ctx context.Context, sessionID, cres string) (*ChallengeResult, error) {
	if !entity.ValidSessionID(sessionID) {
		return nil, ErrInvalidRequest
	}

	session, err := s.sessionRepo.FindBySessionID(ctx, sessionID)
	if err != nil {
		return s.failChallenge(ctx, sessionID, fmt.Errorf("read session: %w", err))
	}
	if session == nil {
		return &ChallengeResult{SessionID: sessionID, Status: CallbackStatusSessionNotFound}, nil
	}
	if session.Status.Terminal() {
		return &ChallengeResult{SessionID: sessionID, Status: string(session.Status)}, nil
	}
	if session.AzulOrderID == nil || *session.AzulOrderID == "" {
		return s.failChallenge(ctx, sessionID, errors.New("session has no azul order id"))
	}

	resp, err := s.gateway.ProcessChallenge(ctx, &gateway.ChallengeRequest{
		AzulOrderID: *session.AzulOrderID,
		CRes:        cres,
	})
	if err != nil {
		return s.failChallenge(ctx, sessionID, fmt.Errorf("%w: %w", ErrGatewayFailure, err))
	}

	outcome := finalOutcome(Classify(resp), resp)
	s.patchInBackground(ctx, sessionID, &entity.SessionPatch{
		Status:          entity.StatusPtr(outcome.Status()),
		GatewayResponse: resp.Raw,
		CRes:            &cres,
	})

	return &ChallengeResult{SessionID: sessionID, Status: string(outcome.Status()), Outcome: outcome}, nil
}

func (s *PaymentService) failChallenge(ctx context.Context, sessionID string, cause error) (*ChallengeResult, error) {
	raw, _ := json.Marshal(map[string]string{"error": cause.Error()})
	s.patchInBackground(ctx, sessionID, &entity.SessionPatch{
		Status:          entity.StatusPtr(entity.SessionStatusError),
		GatewayResponse: raw,
	})
	return &ChallengeResult{SessionID: sessionID, Status: string(entity.SessionStatusError)}, cause
}
