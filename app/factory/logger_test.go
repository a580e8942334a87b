package factory

import (
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

func TestNewModuleLogger(t *testing.T) {
	logger := NewModuleLogger("threeds-controller")
	entry, ok := logger.(*logrus.Entry)
	if !ok {
		t.Fatalf("expected *logrus.Entry, got %T", logger)
	}
	if entry.Data["module"] != "threeds-controller" {
		t.Fatalf("expected module field, got %v", entry.Data)
	}
}

func TestLoggerWithContextAddsRequestID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	logger := LoggerWithContext(NewModuleLogger("threeds-controller"), ctx)
	entry, ok := logger.(*logrus.Entry)
	if !ok || entry.Data["request_id"] != "req-123" {
		t.Fatalf("expected request_id field, got %#v", logger)
	}
}

func TestLoggerWithContextPrefersResponseHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Response().Header().Set(echo.HeaderXRequestID, "generated-1")

	entry := LoggerWithContext(NewModuleLogger("threeds-controller"), ctx).(*logrus.Entry)
	if entry.Data["request_id"] != "generated-1" {
		t.Fatalf("expected generated request id, got %v", entry.Data)
	}
}
