package controller

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-azul-payments/app/entity"
	"github.com/vibast-solutions/ms-go-azul-payments/app/factory"
	"github.com/vibast-solutions/ms-go-azul-payments/app/service"
	"github.com/vibast-solutions/ms-go-azul-payments/app/types"
)

const (
	methodNotifyBody   = "<html><body>OK</body></html>"
	challengeEventType = "3ds_challenge_complete"
	resultApproved     = "approved"
	resultDeclined     = "declined"
)

var callbackTemplate = template.Must(template.New("challenge-callback").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>3DS</title></head>
<body>
<script>
(function () {
  var message = {type: {{.Type}}, session: {{.SessionID}}, approved:{{.Approved}}, result: {{.Result}}};
  if (window.parent && window.parent !== window) {
    window.parent.postMessage(message, {{.AllowedOrigin}});
  } else {
    window.location.href = {{.RedirectURL}};
  }
})();
</script>
</body>
</html>
`))

type callbackPageData struct {
	Type          string
	SessionID     string
	Approved      bool
	Result        string
	AllowedOrigin string
	RedirectURL   string
}

// callbackPage renders the document the issuer's challenge frame lands on.
type callbackPage struct {
	allowedOrigin string
	returnURL     string
}

func newCallbackPage(allowedOrigin, returnURL string) *callbackPage {
	if returnURL == "" {
		returnURL = "/"
	}
	return &callbackPage{allowedOrigin: allowedOrigin, returnURL: returnURL}
}

func (p *callbackPage) render(result *service.ChallengeResult) ([]byte, error) {
	outcome := resultDeclined
	if result.Approved() {
		outcome = resultApproved
	}

	var buf bytes.Buffer
	err := callbackTemplate.Execute(&buf, callbackPageData{
		Type:          challengeEventType,
		SessionID:     result.SessionID,
		Approved:      result.Approved(),
		Result:        result.Status,
		AllowedOrigin: p.allowedOrigin,
		RedirectURL:   p.redirectURL(result.SessionID, outcome),
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *callbackPage) redirectURL(sessionID, outcome string) string {
	target, err := url.Parse(p.returnURL)
	if err != nil {
		target = &url.URL{Path: "/"}
	}
	query := target.Query()
	query.Set("session", sessionID)
	query.Set("result", outcome)
	target.RawQuery = query.Encode()
	return target.String()
}

// MethodNotify always answers 200 so the issuer's hidden frame never sees an error.
func (c *PaymentController) MethodNotify(ctx echo.Context) error {
	req := types.NewSessionQueryRequestFromContext(ctx)
	logger := factory.LoggerWithContext(c.logger, ctx)

	if err := req.Validate(); err != nil {
		logger.WithError(err).Warn("Method notification without a usable session")
		return ctx.HTML(http.StatusOK, methodNotifyBody)
	}

	if err := c.paymentService.MethodNotified(ctx.Request().Context(), req.GetSessionId()); err != nil {
		entry := logger.WithError(err).WithField("session_id", req.GetSessionId())
		if errors.Is(err, service.ErrSessionNotFound) {
			entry.Warn("Method notification for unknown session")
		} else {
			entry.Error("Method notification update failed")
		}
	}

	return ctx.HTML(http.StatusOK, methodNotifyBody)
}

// ChallengeCallback receives the issuer's post after the challenge and hands the result to the
// parent page. It never answers with a server error.
func (c *PaymentController) ChallengeCallback(ctx echo.Context) error {
	req := types.NewChallengeCallbackRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return ctx.String(http.StatusBadRequest, "Invalid session")
	}

	logger := factory.LoggerWithContext(c.logger, ctx).WithField("session_id", req.GetSessionId())
	result, err := c.paymentService.CompleteChallenge(ctx.Request().Context(), req.GetSessionId(), req.GetCRes())
	if err != nil {
		logger.WithError(err).Error("Challenge completion failed")
	}
	if result == nil {
		result = &service.ChallengeResult{SessionID: req.GetSessionId(), Status: string(entity.SessionStatusError)}
	}
	if result.Status == service.CallbackStatusSessionNotFound {
		logger.Warn("Challenge callback for unknown session")
	}

	body, err := c.callbackPage.render(result)
	if err != nil {
		logger.WithError(err).Error("Challenge page rendering failed")
		return ctx.HTML(http.StatusOK, methodNotifyBody)
	}

	ctx.Response().Header().Set("Cache-Control", "no-store")
	return ctx.HTMLBlob(http.StatusOK, body)
}
