package types

import (
	"encoding/json"
	"errors"
	"net"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-azul-payments/app/entity"
)

var (
	errSessionIDRequired = errors.New("session is required")
	errSessionIDInvalid  = errors.New("session is invalid")
)

var cresFields = []string{"cRes", "cres", "CRes"}

func NewInitiatePaymentRequestFromContext(ctx echo.Context) (*InitiatePaymentRequest, error) {
	var body InitiatePaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.CardNumber = strings.Join(strings.Fields(body.CardNumber), "")
	body.Expiration = strings.TrimSpace(body.Expiration)
	body.Cvc = strings.TrimSpace(body.Cvc)
	body.Amount = FlexString(strings.TrimSpace(string(body.Amount)))
	body.Itbis = FlexString(strings.TrimSpace(string(body.Itbis)))
	body.CustomOrderId = strings.TrimSpace(body.CustomOrderId)
	body.CustomerName = strings.TrimSpace(body.CustomerName)
	body.CustomerPhone = strings.TrimSpace(body.CustomerPhone)

	body.ClientIp = ClientIPFromContext(ctx)
	body.HeaderAccept = strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderAccept))
	body.HeaderAgent = strings.TrimSpace(ctx.Request().UserAgent())

	return &body, nil
}

func (r *InitiatePaymentRequest) Validate() error {
	if r.GetCardNumber() == "" || r.GetExpiration() == "" || r.GetCvc() == "" || r.GetAmount() == "" {
		return errors.New("missing required fields: cardNumber, expiration, cvc, amount")
	}
	return nil
}

func NewContinuePaymentRequestFromContext(ctx echo.Context) (*ContinuePaymentRequest, error) {
	var body ContinuePaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.SessionId = strings.TrimSpace(body.SessionId)
	body.AzulOrderId = strings.TrimSpace(body.AzulOrderId)
	return &body, nil
}

func (r *ContinuePaymentRequest) Validate() error {
	if r.GetSessionId() == "" || r.GetAzulOrderId() == "" {
		return errors.New("missing sessionId or azulOrderId")
	}
	if !entity.ValidSessionID(r.GetSessionId()) {
		return errors.New("sessionId is invalid")
	}
	return nil
}

// NewSessionQueryRequestFromContext reads the session id from the `session` query parameter.
func NewSessionQueryRequestFromContext(ctx echo.Context) *SessionQueryRequest {
	return &SessionQueryRequest{SessionId: ctx.QueryParam("session")}
}

func NewSessionPathRequestFromContext(ctx echo.Context) *SessionQueryRequest {
	return &SessionQueryRequest{SessionId: ctx.Param("id")}
}

func (r *SessionQueryRequest) Validate() error {
	return validateSessionID(r.GetSessionId())
}

// NewChallengeCallbackRequestFromContext reads the session id from the query string and the
// challenge result from a form or JSON body under any of its known spellings.
func NewChallengeCallbackRequestFromContext(ctx echo.Context) *ChallengeCallbackRequest {
	req := &ChallengeCallbackRequest{SessionId: ctx.QueryParam("session")}

	contentType := ctx.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(contentType, echo.MIMEApplicationJSON) {
		var body map[string]interface{}
		if err := json.NewDecoder(ctx.Request().Body).Decode(&body); err == nil {
			for _, field := range cresFields {
				if value, ok := body[field].(string); ok && value != "" {
					req.CRes = value
					break
				}
			}
		}
		return req
	}

	for _, field := range cresFields {
		if value := ctx.FormValue(field); value != "" {
			req.CRes = value
			break
		}
	}
	return req
}

func (r *ChallengeCallbackRequest) Validate() error {
	return validateSessionID(r.GetSessionId())
}

// ClientIPFromContext prefers the first X-Forwarded-For hop, then X-Real-IP, then the socket address.
func ClientIPFromContext(ctx echo.Context) string {
	header := ctx.Request().Header
	if forwarded := header.Get(echo.HeaderXForwardedFor); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if realIP := strings.TrimSpace(header.Get(echo.HeaderXRealIP)); net.ParseIP(realIP) != nil {
		return realIP
	}
	return ctx.RealIP()
}

func validateSessionID(sessionID string) error {
	if sessionID == "" {
		return errSessionIDRequired
	}
	if !entity.ValidSessionID(sessionID) {
		return errSessionIDInvalid
	}
	return nil
}
