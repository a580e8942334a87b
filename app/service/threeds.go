package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vibast-solutions/ms-go-azul-payments/app/entity"
	"github.com/vibast-solutions/ms-go-azul-payments/app/gateway"
	"github.com/vibast-solutions/ms-go-azul-payments/app/repository"
)

type continuePaymentRequest interface {
	GetSessionId() string
	GetAzulOrderId() string
}

// MethodNotified records that the issuer finished the 3DS method step. Repeated calls are harmless.
func (s *PaymentService) MethodNotified(ctx context.Context, sessionID string) error {
	if !entity.ValidSessionID(sessionID) {
		return ErrInvalidRequest
	}

	err := s.sessionRepo.Patch(ctx, sessionID, &entity.SessionPatch{MethodNotificationReceived: true})
	if errors.Is(err, repository.ErrSessionNotFound) {
		return ErrSessionNotFound
	}
	return err
}

// Continue resumes authorization after the method step, or after the client gave up waiting for it.
func (s *PaymentService) Continue(ctx context.Context, req continuePaymentRequest) (*FlowResult, error) {
	sessionID := strings.TrimSpace(req.GetSessionId())
	azulOrderID := strings.TrimSpace(req.GetAzulOrderId())
	if sessionID == "" || azulOrderID == "" || !entity.ValidSessionID(sessionID) {
		return nil, ErrInvalidRequest
	}

	methodReceived := false
	session, err := s.sessionRepo.FindBySessionID(ctx, sessionID)
	switch {
	case err != nil:
		s.logger.WithError(err).WithField("session_id", sessionID).Warn("Session read failed, continuing without method confirmation")
	case session == nil:
		return nil, ErrSessionNotFound
	default:
		if session.AzulOrderID != nil && *session.AzulOrderID != azulOrderID {
			return nil, fmt.Errorf("%w: azulOrderId does not match session", ErrInvalidRequest)
		}
		if session.Status.Terminal() {
			return &FlowResult{
				SessionID:   sessionID,
				AzulOrderID: azulOrderID,
				Outcome:     storedOutcome(session),
			}, nil
		}
		methodReceived = session.MethodNotificationReceived
	}

	methodStatus := gateway.MethodNotificationExpectedNotReceived
	if methodReceived {
		methodStatus = gateway.MethodNotificationReceived
	}

	resp, err := s.gateway.ProcessMethod(ctx, &gateway.MethodRequest{
		AzulOrderID:              azulOrderID,
		MethodNotificationStatus: methodStatus,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGatewayFailure, err)
	}

	outcome := Classify(resp)
	if challenge, ok := outcome.(ChallengeRequired); ok && challenge.AzulOrderID == "" {
		challenge.AzulOrderID = azulOrderID
		outcome = challenge
	}

	patch := &entity.SessionPatch{GatewayResponse: resp.Raw}
	if session == nil || session.Status.CanTransitionTo(outcome.Status()) {
		patch.Status = entity.StatusPtr(outcome.Status())
	}
	s.patchInBackground(ctx, sessionID, patch)

	return &FlowResult{
		SessionID:   sessionID,
		AzulOrderID: firstNonEmpty(resp.AzulOrderID, azulOrderID),
		Outcome:     outcome,
	}, nil
}
