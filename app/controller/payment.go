package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-azul-payments/app/factory"
	"github.com/vibast-solutions/ms-go-azul-payments/app/mapper"
	"github.com/vibast-solutions/ms-go-azul-payments/app/service"
	"github.com/vibast-solutions/ms-go-azul-payments/app/types"
	"github.com/vibast-solutions/ms-go-azul-payments/config"
)

const (
	paymentFailedMessage = "No se pudo completar el pago"
	systemErrorMessage   = "Error del sistema"
)

type PaymentController struct {
	paymentService *service.PaymentService
	callbackPage   *callbackPage
	logger         logrus.FieldLogger
}

func NewPaymentController(paymentService *service.PaymentService, threeDSCfg config.ThreeDSConfig) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		callbackPage:   newCallbackPage(threeDSCfg.AllowedOrigin, threeDSCfg.ReturnURL),
		logger:         factory.NewModuleLogger("payments-controller"),
	}
}

func (c *PaymentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *PaymentController) InitiatePayment(ctx echo.Context) error {
	req, err := types.NewInitiatePaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.paymentService.Initiate(ctx.Request().Context(), req)
	if err != nil {
		return c.writeFlowError(ctx, "Initiate payment failed", err)
	}

	return ctx.JSON(http.StatusOK, mapper.FlowResultToResponse(result))
}

func (c *PaymentController) Continue(ctx echo.Context) error {
	req, err := types.NewContinuePaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.paymentService.Continue(ctx.Request().Context(), req)
	if err != nil {
		return c.writeFlowError(ctx, "Continue payment failed", err)
	}

	return ctx.JSON(http.StatusOK, mapper.FlowResultToResponse(result))
}

func (c *PaymentController) SessionStatus(ctx echo.Context) error {
	req := types.NewSessionQueryRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.GetSession(ctx.Request().Context(), req.GetSessionId())
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "session not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get session status failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, mapper.SessionToStatusResponse(item))
}

func (c *PaymentController) GetSession(ctx echo.Context) error {
	req := types.NewSessionPathRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.GetSession(ctx.Request().Context(), req.GetSessionId())
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "session not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get session failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, mapper.SessionToResponse(item))
}

func (c *PaymentController) PurgeSessions(ctx echo.Context) error {
	deleted, err := c.paymentService.PurgeStaleSessions(ctx.Request().Context())
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Purge sessions failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.PurgeSessionsResponse{Deleted: deleted})
}

func (c *PaymentController) writeFlowError(ctx echo.Context, message string, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrSessionNotFound):
		return c.writeError(ctx, http.StatusNotFound, paymentFailedMessage)
	case errors.Is(err, service.ErrGatewayFailure):
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(message)
		return c.writeError(ctx, http.StatusBadGateway, systemErrorMessage)
	default:
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(message)
		return c.writeError(ctx, http.StatusInternalServerError, systemErrorMessage)
	}
}

func (c *PaymentController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
