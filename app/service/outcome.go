package service

import (
	"encoding/json"

	"github.com/vibast-solutions/ms-go-azul-payments/app/entity"
	"github.com/vibast-solutions/ms-go-azul-payments/app/gateway"
)

const (
	isoCodeApproved      = "00"
	responseCodeError    = "Error"
	messageMethod        = "3D_SECURE_2_METHOD"
	messageChallenge     = "3D_SECURE_CHALLENGE"
	messageChallengeV2   = "3D_SECURE_2_CHALLENGE"
	defaultDeclinedText  = "Tarjeta declinada"
	defaultRejectedText  = "Pago rechazado"
	defaultErrorDescText = "Error del sistema"
)

// Outcome is the classified result of a gateway response.
type Outcome interface {
	Status() entity.SessionStatus
}

type Approved struct {
	AuthorizationCode string
	AzulOrderID       string
	CustomOrderID     string
	Message           string
	RRN               string
	Ticket            string
}

type MethodRequired struct {
	AzulOrderID string
	MethodForm  string
}

type ChallengeRequired struct {
	AzulOrderID      string
	RedirectURL      string
	RedirectPostData string
}

type GatewayError struct {
	Description string
}

type Declined struct {
	IsoCode string
	Message string
}

func (Approved) Status() entity.SessionStatus          { return entity.SessionStatusApproved }
func (MethodRequired) Status() entity.SessionStatus    { return entity.SessionStatusMethod }
func (ChallengeRequired) Status() entity.SessionStatus { return entity.SessionStatusChallenge }
func (GatewayError) Status() entity.SessionStatus      { return entity.SessionStatusError }
func (Declined) Status() entity.SessionStatus          { return entity.SessionStatusDeclined }

// Classify maps a gateway response onto the 3DS state machine. Rules are checked in order:
// approval code, method step, challenge step, gateway error, then decline.
func Classify(resp *gateway.Response) Outcome {
	switch {
	case resp.IsoCode == isoCodeApproved:
		return Approved{
			AuthorizationCode: resp.AuthorizationCode,
			AzulOrderID:       resp.AzulOrderID,
			CustomOrderID:     resp.CustomOrderID,
			Message:           resp.ResponseMessage,
			RRN:               resp.RRN,
			Ticket:            resp.Ticket,
		}
	case resp.ResponseMessage == messageMethod:
		methodForm := ""
		if resp.ThreeDSMethod != nil {
			methodForm = resp.ThreeDSMethod.MethodForm
		}
		return MethodRequired{AzulOrderID: resp.AzulOrderID, MethodForm: methodForm}
	case resp.ResponseMessage == messageChallenge || resp.ResponseMessage == messageChallengeV2:
		challenge := ChallengeRequired{
			AzulOrderID:      resp.AzulOrderID,
			RedirectURL:      resp.RedirectURL,
			RedirectPostData: resp.RedirectPostData,
		}
		if resp.ThreeDSChallenge != nil {
			challenge.RedirectURL = firstNonEmpty(challenge.RedirectURL, resp.ThreeDSChallenge.RedirectPostURL)
			challenge.RedirectPostData = firstNonEmpty(challenge.RedirectPostData, resp.ThreeDSChallenge.CReq)
		}
		return challenge
	case resp.ResponseCode == responseCodeError:
		return GatewayError{Description: firstNonEmpty(resp.ErrorDescription, resp.ResponseMessage, defaultErrorDescText)}
	default:
		return Declined{
			IsoCode: resp.IsoCode,
			Message: firstNonEmpty(resp.ResponseMessage, resp.ErrorDescription, defaultDeclinedText),
		}
	}
}

// finalOutcome narrows an outcome to the terminal ones. No 3DS step can follow a challenge,
// so anything else counts as a decline.
func finalOutcome(outcome Outcome, resp *gateway.Response) Outcome {
	if outcome.Status().Terminal() {
		return outcome
	}
	return Declined{
		IsoCode: resp.IsoCode,
		Message: firstNonEmpty(resp.ResponseMessage, resp.ErrorDescription, defaultRejectedText),
	}
}

// storedOutcome rebuilds the outcome of a finished session from its stored status and the
// last gateway body. The status wins over whatever the body would classify as.
func storedOutcome(session *entity.Session) Outcome {
	resp := &gateway.Response{}
	if len(session.GatewayResponse) > 0 {
		_ = json.Unmarshal(session.GatewayResponse, resp)
	}

	switch session.Status {
	case entity.SessionStatusApproved:
		azulOrderID := resp.AzulOrderID
		if azulOrderID == "" && session.AzulOrderID != nil {
			azulOrderID = *session.AzulOrderID
		}
		return Approved{
			AuthorizationCode: resp.AuthorizationCode,
			AzulOrderID:       azulOrderID,
			CustomOrderID:     firstNonEmpty(resp.CustomOrderID, session.CustomOrderID),
			Message:           resp.ResponseMessage,
			RRN:               resp.RRN,
			Ticket:            resp.Ticket,
		}
	case entity.SessionStatusDeclined:
		return Declined{
			IsoCode: resp.IsoCode,
			Message: firstNonEmpty(resp.ResponseMessage, resp.ErrorDescription, defaultDeclinedText),
		}
	default:
		return GatewayError{Description: firstNonEmpty(resp.ErrorDescription, defaultErrorDescText)}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
