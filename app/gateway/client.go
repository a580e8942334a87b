package gateway

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/vibast-solutions/ms-go-azul-payments/app/factory"
)

const (
	operationProcessMethod    = "processthreedsmethod"
	operationProcessChallenge = "processthreedschallenge"

	defaultTimeout = 9500 * time.Millisecond
)

type Config struct {
	URL        string
	MerchantID string
	Auth1      string
	Auth2      string
	Timeout    time.Duration
	TLS        *tls.Config
}

// Client talks to the Azul JSON web service. It is safe for concurrent use; the
// underlying transport keeps connections alive across calls.
type Client struct {
	cfg  Config
	http *resty.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetLogger(factory.NewModuleLogger("azul-gateway")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Auth1", cfg.Auth1).
		SetHeader("Auth2", cfg.Auth2)
	if cfg.TLS != nil {
		httpClient.SetTLSClientConfig(cfg.TLS)
	}

	return &Client{cfg: cfg, http: httpClient}
}

func (c *Client) Authorize(ctx context.Context, req *SaleRequest) (*Response, error) {
	payload := *req
	payload.Channel = ChannelECommerce
	payload.Store = c.cfg.MerchantID
	return c.post(ctx, c.cfg.URL, &payload)
}

func (c *Client) ProcessMethod(ctx context.Context, req *MethodRequest) (*Response, error) {
	payload := *req
	payload.Channel = ChannelECommerce
	payload.Store = c.cfg.MerchantID
	return c.post(ctx, withOperation(c.cfg.URL, operationProcessMethod), &payload)
}

func (c *Client) ProcessChallenge(ctx context.Context, req *ChallengeRequest) (*Response, error) {
	payload := *req
	payload.Channel = ChannelECommerce
	payload.Store = c.cfg.MerchantID
	return c.post(ctx, withOperation(c.cfg.URL, operationProcessChallenge), &payload)
}

func (c *Client) post(ctx context.Context, url string, payload interface{}) (*Response, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(url)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	return decodeResponse(resp.StatusCode(), resp.Body())
}

func decodeResponse(statusCode int, body []byte) (*Response, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body (status %d)", ErrGatewayMalformedResponse, statusCode)
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: status %d body %s", ErrGatewayMalformedResponse, statusCode, snippet(trimmed))
	}

	result := &Response{}
	if err := json.Unmarshal(trimmed, result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayMalformedResponse, err)
	}
	result.Raw = append(json.RawMessage(nil), trimmed...)
	return result, nil
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrGatewayUnreachable, err)
}

func withOperation(baseURL, operation string) string {
	if strings.Contains(baseURL, "?") {
		return baseURL + "&" + operation
	}
	return baseURL + "?" + operation
}

func snippet(body []byte) string {
	if len(body) > 200 {
		return string(body[:200])
	}
	return string(body)
}
