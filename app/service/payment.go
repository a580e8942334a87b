package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-azul-payments/app/entity"
	"github.com/vibast-solutions/ms-go-azul-payments/app/factory"
	"github.com/vibast-solutions/ms-go-azul-payments/app/gateway"
	"github.com/vibast-solutions/ms-go-azul-payments/app/repository"
	"github.com/vibast-solutions/ms-go-azul-payments/config"
)

const (
	defaultItbis             = "000"
	defaultBrowserLanguage   = "es-DO"
	defaultScreenWidth       = "1920"
	defaultScreenHeight      = "1080"
	defaultColorDepth        = "24"
	defaultTimeZone          = "240"
	defaultAcceptHeader      = "text/html"
	defaultJavaScriptEnabled = "true"

	callbackPath           = "/api/3ds/callback"
	methodNotificationPath = "/api/3ds/method-notify"
)

type initiatePaymentRequest interface {
	GetCardNumber() string
	GetExpiration() string
	GetCvc() string
	GetAmount() string
	GetItbis() string
	GetCustomOrderId() string
	GetCustomerName() string
	GetCustomerPhone() string
	GetClientIp() string
	GetAcceptHeader() string
	GetUserAgent() string
	GetLanguage() string
	GetScreenWidth() string
	GetScreenHeight() string
	GetColorDepth() string
	GetTimeZone() string
	GetJavaScriptEnabled() string
}

type sessionRepository interface {
	Create(ctx context.Context, session *entity.Session) error
	FindBySessionID(ctx context.Context, sessionID string) (*entity.Session, error)
	Patch(ctx context.Context, sessionID string, patch *entity.SessionPatch) error
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
	Ping(ctx context.Context) error
}

type gatewayClient interface {
	Authorize(ctx context.Context, req *gateway.SaleRequest) (*gateway.Response, error)
	ProcessMethod(ctx context.Context, req *gateway.MethodRequest) (*gateway.Response, error)
	ProcessChallenge(ctx context.Context, req *gateway.ChallengeRequest) (*gateway.Response, error)
}

// FlowResult is what Initiate and Continue hand back to the caller.
type FlowResult struct {
	SessionID   string
	AzulOrderID string
	Outcome     Outcome
}

type PaymentService struct {
	sessionRepo sessionRepository
	gateway     gatewayClient
	threeDSCfg  config.ThreeDSConfig
	logger      logrus.FieldLogger

	newSessionID func() string
	now          func() time.Time

	background sync.WaitGroup
}

func NewPaymentService(
	sessionRepo sessionRepository,
	gatewayClient gatewayClient,
	threeDSCfg config.ThreeDSConfig,
) *PaymentService {
	if threeDSCfg.SessionRetention <= 0 {
		threeDSCfg.SessionRetention = 15 * time.Minute
	}
	threeDSCfg.PublicBaseURL = strings.TrimRight(threeDSCfg.PublicBaseURL, "/")

	return &PaymentService{
		sessionRepo:  sessionRepo,
		gateway:      gatewayClient,
		threeDSCfg:   threeDSCfg,
		logger:       factory.NewModuleLogger("threeds-service"),
		newSessionID: entity.NewSessionID,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Initiate starts a 3DS-aware sale. The session row is written before returning so later
// callbacks can find it; the classified status is written in the background.
func (s *PaymentService) Initiate(ctx context.Context, req initiatePaymentRequest) (*FlowResult, error) {
	cardNumber := strings.Join(strings.Fields(req.GetCardNumber()), "")
	expiration := strings.TrimSpace(req.GetExpiration())
	cvc := strings.TrimSpace(req.GetCvc())
	amount := strings.TrimSpace(req.GetAmount())
	if cardNumber == "" || expiration == "" || cvc == "" || amount == "" {
		return nil, ErrInvalidRequest
	}

	sessionID := s.newSessionID()

	if s.threeDSCfg.PurgeOnInitiate {
		s.runBestEffort(ctx, "purge_stale_sessions", "", func(ctx context.Context) error {
			_, err := s.PurgeStaleSessions(ctx)
			return err
		})
	}

	sale := &gateway.SaleRequest{
		CardNumber:      cardNumber,
		Expiration:      expiration,
		CVC:             cvc,
		PosInputMode:    gateway.PosInputECommerce,
		TrxType:         gateway.TrxTypeSale,
		Amount:          amount,
		Itbis:           firstNonEmpty(strings.TrimSpace(req.GetItbis()), defaultItbis),
		CurrencyPosCode: gateway.CurrencyPosCodeDOP,
		Payments:        "1",
		Plan:            "0",
		AcquirerRefData: "1",
		ECommerceURL:    s.threeDSCfg.ECommerceURL,
		CustomOrderID:   strings.TrimSpace(req.GetCustomOrderId()),
		SaveToDataVault: "0",
		ForceNo3DS:      "0",
		ThreeDSAuth: gateway.ThreeDSAuth{
			TermURL:                   s.callbackURL(callbackPath, sessionID),
			MethodNotificationURL:     s.callbackURL(methodNotificationPath, sessionID),
			RequestChallengeIndicator: gateway.ChallengeIndicatorNoPreference,
		},
		CardHolderInfo: gateway.CardHolderInfo{
			Name:        strings.TrimSpace(req.GetCustomerName()),
			PhoneMobile: strings.TrimSpace(req.GetCustomerPhone()),
		},
		BrowserInfo: gateway.BrowserInfo{
			AcceptHeader:      firstNonEmpty(strings.TrimSpace(req.GetAcceptHeader()), defaultAcceptHeader),
			IPAddress:         strings.TrimSpace(req.GetClientIp()),
			Language:          firstNonEmpty(strings.TrimSpace(req.GetLanguage()), defaultBrowserLanguage),
			ColorDepth:        firstNonEmpty(strings.TrimSpace(req.GetColorDepth()), defaultColorDepth),
			ScreenWidth:       firstNonEmpty(strings.TrimSpace(req.GetScreenWidth()), defaultScreenWidth),
			ScreenHeight:      firstNonEmpty(strings.TrimSpace(req.GetScreenHeight()), defaultScreenHeight),
			TimeZone:          firstNonEmpty(strings.TrimSpace(req.GetTimeZone()), defaultTimeZone),
			UserAgent:         strings.TrimSpace(req.GetUserAgent()),
			JavaScriptEnabled: firstNonEmpty(strings.TrimSpace(req.GetJavaScriptEnabled()), defaultJavaScriptEnabled),
		},
	}

	resp, err := s.gateway.Authorize(ctx, sale)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGatewayFailure, err)
	}

	now := s.now()
	session := &entity.Session{
		SessionID:       sessionID,
		AzulOrderID:     normalizeOptionalString(resp.AzulOrderID),
		CustomOrderID:   sale.CustomOrderID,
		Status:          entity.SessionStatusInitiated,
		GatewayResponse: resp.Raw,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreWriteFailure, err)
	}

	outcome := Classify(resp)
	if outcome.Status() != entity.SessionStatusInitiated {
		s.patchInBackground(ctx, sessionID, &entity.SessionPatch{Status: entity.StatusPtr(outcome.Status())})
	}

	return &FlowResult{SessionID: sessionID, AzulOrderID: resp.AzulOrderID, Outcome: outcome}, nil
}

// GetSession returns the stored session or ErrSessionNotFound.
func (s *PaymentService) GetSession(ctx context.Context, sessionID string) (*entity.Session, error) {
	if !entity.ValidSessionID(sessionID) {
		return nil, ErrInvalidRequest
	}

	session, err := s.sessionRepo.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *PaymentService) Ping(ctx context.Context) error {
	return s.sessionRepo.Ping(ctx)
}

// Wait blocks until every background write started so far has finished.
func (s *PaymentService) Wait() {
	s.background.Wait()
}

func (s *PaymentService) patchInBackground(ctx context.Context, sessionID string, patch *entity.SessionPatch) {
	s.runBestEffort(ctx, "patch_session", sessionID, func(ctx context.Context) error {
		return s.sessionRepo.Patch(ctx, sessionID, patch)
	})
}

// runBestEffort runs fn detached from the caller's cancellation. Failures are only logged.
func (s *PaymentService) runBestEffort(ctx context.Context, operation, sessionID string, fn func(ctx context.Context) error) {
	detached := context.WithoutCancel(ctx)

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer func() {
			if recovered := recover(); recovered != nil {
				s.logger.WithField("operation", operation).WithField("panic", recovered).Error("Best-effort write panicked")
			}
		}()

		if err := fn(detached); err != nil {
			entry := s.logger.WithError(err).WithField("operation", operation)
			if sessionID != "" {
				entry = entry.WithField("session_id", sessionID)
			}
			if errors.Is(err, repository.ErrSessionNotFound) {
				entry.Warn("Best-effort write matched no session")
				return
			}
			entry.Error("Best-effort write failed")
		}
	}()
}

func (s *PaymentService) callbackURL(path, sessionID string) string {
	return s.threeDSCfg.PublicBaseURL + path + "?session=" + url.QueryEscape(sessionID)
}

func normalizeOptionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
